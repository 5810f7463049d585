package documents

import (
	"context"
	"strings"
)

// Document is the text pulled out of an uploaded artifact.
type Document struct {
	Text  string
	Pages int
}

// Empty reports whether extraction produced no usable text.
func (d Document) Empty() bool { return strings.TrimSpace(d.Text) == "" }

// Extractor turns raw artifact bytes into text. Implementations never fail:
// anything they cannot read yields an empty Document.
type Extractor interface {
	Extract(ctx context.Context, fileName string, data []byte) Document
}
