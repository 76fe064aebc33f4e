package loader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragreader/internal/domain"
)

type fakeExtractor struct {
	pages map[string][]string
	err   error
}

func (f *fakeExtractor) Pages(path string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.pages[filepath.Base(path)], nil
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoad_TextThenPDFInNameOrder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.txt", "second text")
	writeFile(t, dir, "a.txt", "first text")
	writeFile(t, dir, "manual.pdf", "%PDF-fake")
	writeFile(t, dir, "notes.md", "ignored")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.txt"), 0o755))

	ext := &fakeExtractor{pages: map[string][]string{
		"manual.pdf": {"page one", "   ", "page three"},
	}}
	docs, err := New(WithPageExtractor(ext)).Load(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, docs, 4)

	assert.Equal(t, "a.txt", docs[0].Name)
	assert.Equal(t, domain.OriginText, docs[0].Origin)
	assert.Equal(t, "first text", docs[0].Content)
	assert.Equal(t, 0, docs[0].Page)
	assert.Equal(t, "b.txt", docs[1].Name)

	assert.Equal(t, "manual.pdf", docs[2].Name)
	assert.Equal(t, domain.OriginPDF, docs[2].Origin)
	assert.Equal(t, 1, docs[2].Page)
	assert.Equal(t, 3, docs[3].Page, "blank pages are dropped but numbering is kept")
	assert.NotEqual(t, docs[2].ID, docs[3].ID)
}

func TestLoad_EmptyDirectory(t *testing.T) {
	_, err := New().Load(context.Background(), t.TempDir())
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindLoad))
	assert.ErrorIs(t, err, domain.ErrNoDocuments)
}

func TestLoad_OnlyBlankFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "blank.txt", " \n\t ")
	_, err := New().Load(context.Background(), dir)
	assert.ErrorIs(t, err, domain.ErrNoDocuments)
}

func TestLoad_MissingDirectory(t *testing.T) {
	_, err := New().Load(context.Background(), filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindLoad))
}

func TestLoad_NotADirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "x")
	_, err := New().Load(context.Background(), filepath.Join(dir, "a.txt"))
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindLoad))
}

func TestLoad_PDFFailureFailsWholeLoad(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "fine")
	writeFile(t, dir, "broken.pdf", "not a pdf")

	ext := &fakeExtractor{err: errors.New("malformed xref")}
	_, err := New(WithPageExtractor(ext)).Load(context.Background(), dir)
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindLoad))
	assert.Contains(t, err.Error(), "broken.pdf")
}

func TestLoad_StripsBOMAndInvalidUTF8(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bom.txt"), []byte("\xEF\xBB\xBFhello \xff world"), 0o644))

	docs, err := New().Load(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "hello � world", docs[0].Content)
}

func TestLoad_CancelledContext(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "text")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New().Load(ctx, dir)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSupported(t *testing.T) {
	assert.True(t, Supported("a.TXT"))
	assert.True(t, Supported("b.pdf"))
	assert.False(t, Supported("c.docx"))
	assert.False(t, Supported("noext"))
}

func TestPDFExtractor_Pages(t *testing.T) {
	pages, err := PDFExtractor{}.Pages(filepath.Join("testdata", "two_pages.pdf"))
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Contains(t, pages[0], "Lighthouses guide ships along the rocky coast.")
	assert.Contains(t, pages[1], "Tides rise and fall twice every day.")
	assert.NotContains(t, pages[0], "Tides")
}

func TestPDFExtractor_CorruptFile(t *testing.T) {
	_, err := PDFExtractor{}.Pages(filepath.Join("testdata", "corrupt.pdf"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrEncryptedPDF)
	assert.Contains(t, err.Error(), "open pdf")
}

func TestLoad_RealPDF(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("testdata", "two_pages.pdf"))
	require.NoError(t, err)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "guide.pdf"), data, 0o644))

	docs, err := New().Load(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	for i, d := range docs {
		assert.Equal(t, "guide.pdf", d.Name)
		assert.Equal(t, domain.OriginPDF, d.Origin)
		assert.Equal(t, i+1, d.Page)
	}
	assert.Contains(t, docs[0].Content, "Lighthouses")
	assert.Contains(t, docs[1].Content, "Tides")
}

func TestLoad_CorruptPDFFailsWholeLoad(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("testdata", "corrupt.pdf"))
	require.NoError(t, err)
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "fine")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.pdf"), data, 0o644))

	_, err = New().Load(context.Background(), dir)
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindLoad))
	assert.Contains(t, err.Error(), "broken.pdf")
}
