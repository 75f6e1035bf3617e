// Package extract converts uploaded document bytes into plain text.
package extract

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// Supported file extensions.
const (
	ExtPDF = ".pdf"
	ExtTXT = ".txt"
)

// MIMETextPlain marks an upload as plain text regardless of its extension.
const MIMETextPlain = "text/plain"

// isTextContentType matches text/plain, ignoring media type parameters
// such as charset.
func isTextContentType(contentType string) bool {
	mediaType := strings.TrimSpace(strings.Split(contentType, ";")[0])
	return strings.EqualFold(mediaType, MIMETextPlain)
}

// Result holds the extracted text and document statistics.
type Result struct {
	// Text is the extracted plain text.
	Text string

	// PageCount is the number of pages, 1 for plain text files.
	PageCount int
}

// IsSupported reports whether the file can be extracted. A text/plain
// content type is accepted even when the file name carries no .txt
// extension.
func IsSupported(fileName, contentType string) bool {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ExtPDF, ExtTXT:
		return true
	}
	return isTextContentType(contentType)
}

// FileType returns the normalized extension without the leading dot.
// Extensionless plain-text uploads report "txt".
func FileType(fileName, contentType string) string {
	if ext := strings.ToLower(filepath.Ext(fileName)); ext != "" {
		return strings.TrimPrefix(ext, ".")
	}
	if isTextContentType(contentType) {
		return "txt"
	}
	return ""
}

// FromFile extracts plain text from the uploaded file content.
// The extension of fileName selects the extractor; the content type is
// the fallback for extensionless plain text.
func FromFile(fileName, contentType string, data []byte) (*Result, error) {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ExtPDF:
		return fromPDF(data)
	case ExtTXT:
		return fromText(data)
	}
	if isTextContentType(contentType) {
		return fromText(data)
	}
	return nil, fmt.Errorf("unsupported file type: %s", fileName)
}

func fromText(data []byte) (*Result, error) {
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("text file is not valid UTF-8")
	}
	return &Result{Text: string(data), PageCount: 1}, nil
}

func fromPDF(data []byte) (*Result, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("parse pdf: %w", err)
	}

	numPages := reader.NumPage()
	var sb strings.Builder
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// A single malformed page should not sink the whole document.
			continue
		}
		if sb.Len() > 0 && text != "" {
			sb.WriteString("\n")
		}
		sb.WriteString(text)
	}

	return &Result{Text: sb.String(), PageCount: numPages}, nil
}
