package docstore

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// ExtractText pulls plain text out of a stored original document. PDFs are
// parsed page by page; anything else is treated as text when it decodes as
// UTF-8.
func ExtractText(data []byte, contentType string) (string, error) {
	if isPDF(data, contentType) {
		return extractPDFText(data)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("unsupported content type %q: not valid text", contentType)
	}
	return string(data), nil
}

func isPDF(data []byte, contentType string) bool {
	if strings.Contains(contentType, "application/pdf") {
		return true
	}
	return bytes.HasPrefix(data, []byte("%PDF-"))
}

func extractPDFText(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	var b strings.Builder
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// Scanned pages without a text layer are skipped, not fatal.
			continue
		}
		b.WriteString(text)
		b.WriteByte('\n')
	}

	out := strings.TrimSpace(b.String())
	if out == "" {
		return "", fmt.Errorf("pdf contains no extractable text")
	}
	return out, nil
}
