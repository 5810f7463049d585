package storage

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ArtifactName is the stored name of an upload: {jobId}_{fileName}.
// The job id prefix keeps same-named uploads apart.
func ArtifactName(jobID, fileName string) string {
	return fmt.Sprintf("%s_%s", jobID, filepath.Base(fileName))
}

// contentType picks a MIME type from the file extension.
func contentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return "application/pdf"
	case ".json":
		return "application/json"
	case ".txt":
		return "text/plain; charset=utf-8"
	case ".md", ".markdown":
		return "text/markdown; charset=utf-8"
	case ".html", ".htm":
		return "text/html"
	default:
		return "application/octet-stream"
	}
}
