package parser

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestExtractTextPlainText(t *testing.T) {
	path := writeFile(t, "notes.txt", "  line one\nline two  \n")

	got, err := ExtractText(path)
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two", got)
}

func TestExtractTextMarkdownStripsMarkup(t *testing.T) {
	path := writeFile(t, "doc.md", "# Refund Policy\n\nRefunds are issued within *30 days*.\n\n- keep the receipt\n- contact support\n")

	got, err := ExtractText(path)
	require.NoError(t, err)

	assert.Contains(t, got, "Refund Policy")
	assert.Contains(t, got, "Refunds are issued within 30 days.")
	assert.Contains(t, got, "keep the receipt")
	assert.NotContains(t, got, "#")
	assert.NotContains(t, got, "*")
	assert.NotContains(t, got, "<")
}

func TestExtractTextUnsupportedFormat(t *testing.T) {
	path := writeFile(t, "binary.exe", "not a document")

	_, err := ExtractText(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported file format")
}

func TestExtractTextMissingFile(t *testing.T) {
	_, err := ExtractText(filepath.Join(t.TempDir(), "missing.txt"))
	require.Error(t, err)
}

func TestStripHTMLTags(t *testing.T) {
	assert.Equal(t, "hello world", stripHTMLTags("<p>hello <b>world</b></p>"))
	assert.Equal(t, "plain", stripHTMLTags("plain"))
}

func TestExtractSlideXMLText(t *testing.T) {
	xml := `<p:sld><a:t>first run</a:t><a:p/><a:t>second run</a:t></p:sld>`
	assert.Equal(t, "first run second run ", extractTextFromXML(xml))
}
