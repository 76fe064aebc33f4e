package loader

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrEncryptedPDF is returned for PDFs the reader cannot decrypt.
var ErrEncryptedPDF = errors.New("encrypted pdf not supported")

// PDFExtractor reads page text with github.com/ledongthuc/pdf.
type PDFExtractor struct{}

// Pages returns the plain text of each page, empty for pages without content.
func (PDFExtractor) Pages(path string) ([]string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "encrypt") {
			return nil, fmt.Errorf("%w: %v", ErrEncryptedPDF, err)
		}
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	n := r.NumPage()
	pages := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		pages = append(pages, text)
	}
	return pages, nil
}
