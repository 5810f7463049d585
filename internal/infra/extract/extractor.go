package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/rs/zerolog"

	"github.com/bryanwahyu/docanalyst/internal/domain/documents"
)

var pdfMagic = []byte("%PDF-")

// Extractor reads text out of PDFs and plain-text uploads. It implements
// documents.Extractor and never returns an error: unreadable input becomes
// an empty document and a warning in the log.
type Extractor struct {
	logger zerolog.Logger
}

func New(logger zerolog.Logger) *Extractor {
	return &Extractor{logger: logger}
}

func (e *Extractor) Extract(ctx context.Context, fileName string, data []byte) documents.Document {
	if ctx.Err() != nil || len(data) == 0 {
		return documents.Document{}
	}
	log := e.logger.With().Str("file_name", fileName).Logger()

	switch {
	case isPDF(fileName, data):
		doc, err := extractPDF(data)
		if err != nil {
			log.Warn().Err(err).Msg("pdf text extraction failed")
		}
		return doc
	case isText(fileName, data):
		return documents.Document{Text: normalize(string(data)), Pages: 1}
	default:
		log.Warn().Str("content_type", http.DetectContentType(data)).Msg("unsupported file type, no text extracted")
		return documents.Document{}
	}
}

// extractPDF uses pdfcpu for a relaxed page count and ledongthuc/pdf for the
// text layer. The text parser panics on some malformed files, hence recover.
func extractPDF(data []byte) (doc documents.Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			doc.Text = ""
			err = fmt.Errorf("pdf parser panic: %v", r)
		}
	}()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	if n, cerr := api.PageCount(bytes.NewReader(data), conf); cerr == nil {
		doc.Pages = n
	}

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return doc, fmt.Errorf("open pdf: %w", err)
	}
	if doc.Pages == 0 {
		doc.Pages = r.NumPage()
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return doc, fmt.Errorf("read text layer: %w", err)
	}
	b, err := io.ReadAll(plain)
	if err != nil {
		return doc, fmt.Errorf("read text layer: %w", err)
	}
	doc.Text = normalize(string(b))
	return doc, nil
}

func isPDF(fileName string, data []byte) bool {
	return bytes.HasPrefix(data, pdfMagic) || strings.EqualFold(filepath.Ext(fileName), ".pdf")
}

func isText(fileName string, data []byte) bool {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".txt", ".md", ".markdown", ".csv", ".json":
		return true
	}
	return strings.HasPrefix(http.DetectContentType(data), "text/plain")
}

// normalize drops invalid UTF-8 and NUL bytes and unifies line endings.
func normalize(s string) string {
	s = strings.ToValidUTF8(s, "")
	s = strings.ReplaceAll(s, "\x00", "")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.TrimSpace(s)
}
