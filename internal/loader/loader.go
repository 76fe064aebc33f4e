// Package loader reads a document directory into domain documents.
package loader

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"ragreader/internal/domain"
	"ragreader/internal/logger"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// PageExtractor returns the plain text of every page of a PDF, in page order.
type PageExtractor interface {
	Pages(path string) ([]string, error)
}

// Loader turns .txt files and PDF pages into documents.
type Loader struct {
	pdf PageExtractor
}

// Option configures a Loader.
type Option func(*Loader)

// WithPageExtractor replaces the PDF page extractor.
func WithPageExtractor(e PageExtractor) Option {
	return func(l *Loader) {
		if e != nil {
			l.pdf = e
		}
	}
}

// New creates a Loader backed by the in-process PDF reader.
func New(opts ...Option) *Loader {
	l := &Loader{pdf: PDFExtractor{}}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Supported reports whether a filename has an extension the loader reads.
func Supported(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt", ".pdf":
		return true
	}
	return false
}

// Load reads every supported file in dir. Text files come first, then PDFs,
// each group in filename order. A PDF contributes one document per page.
func (l *Loader) Load(ctx context.Context, dir string) ([]domain.Document, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, domain.NewLoadError("stat "+dir, err)
	}
	if !info.IsDir() {
		return nil, domain.NewLoadError("stat "+dir, fmt.Errorf("%s is not a directory", dir))
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, domain.NewLoadError("read dir", err)
	}

	var txtPaths, pdfPaths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".txt":
			txtPaths = append(txtPaths, filepath.Join(dir, e.Name()))
		case ".pdf":
			pdfPaths = append(pdfPaths, filepath.Join(dir, e.Name()))
		}
	}

	var documents []domain.Document
	for _, p := range txtPaths {
		if err := ctx.Err(); err != nil {
			return nil, domain.NewLoadError("load", err)
		}
		doc, ok, err := readText(p)
		if err != nil {
			return nil, domain.NewLoadError("read "+filepath.Base(p), err)
		}
		if ok {
			documents = append(documents, doc)
		}
	}
	for _, p := range pdfPaths {
		if err := ctx.Err(); err != nil {
			return nil, domain.NewLoadError("load", err)
		}
		pages, err := l.readPDF(p)
		if err != nil {
			return nil, domain.NewLoadError("read "+filepath.Base(p), err)
		}
		documents = append(documents, pages...)
	}

	if len(documents) == 0 {
		return nil, domain.NewLoadError("load "+dir, domain.ErrNoDocuments)
	}
	logger.Debug("loaded %d documents from %s (%d text files, %d pdf files)", len(documents), dir, len(txtPaths), len(pdfPaths))
	return documents, nil
}

func readText(path string) (domain.Document, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Document{}, false, err
	}
	data = bytes.TrimPrefix(data, utf8BOM)
	content := strings.ToValidUTF8(string(data), "�")
	if strings.TrimSpace(content) == "" {
		logger.Debug("skipping empty file %s", path)
		return domain.Document{}, false, nil
	}
	return domain.Document{
		ID:      hashString(path),
		Name:    filepath.Base(path),
		Path:    path,
		Origin:  domain.OriginText,
		Content: content,
	}, true, nil
}

func (l *Loader) readPDF(path string) ([]domain.Document, error) {
	pages, err := l.pdf.Pages(path)
	if err != nil {
		return nil, err
	}
	var docs []domain.Document
	for i, text := range pages {
		if strings.TrimSpace(text) == "" {
			continue
		}
		page := i + 1
		docs = append(docs, domain.Document{
			ID:      hashString(path + "#" + strconv.Itoa(page)),
			Name:    filepath.Base(path),
			Path:    path,
			Origin:  domain.OriginPDF,
			Content: strings.ToValidUTF8(text, "�"),
			Page:    page,
		})
	}
	if len(docs) == 0 {
		logger.Warn("pdf %s has no extractable text", path)
	}
	return docs, nil
}

func hashString(s string) string {
	h := sha1.Sum([]byte(s))
	return hex.EncodeToString(h[:8])
}
