package biz

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadAndHash(t *testing.T) {
	content, err := ReadAndHash(strings.NewReader("hello world"))
	require.NoError(t, err)

	// echo -n "hello world" | sha256sum
	assert.Equal(t, "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9", content.Hash)
	assert.Equal(t, int64(11), content.Size)
	assert.Equal(t, []byte("hello world"), content.Data)

	data, err := io.ReadAll(content.Reader())
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))
}

func TestReadAndHashDeterministic(t *testing.T) {
	a, err := ReadAndHash(strings.NewReader("same bytes"))
	require.NoError(t, err)
	b, err := ReadAndHash(strings.NewReader("same bytes"))
	require.NoError(t, err)
	assert.Equal(t, a.Hash, b.Hash)

	c, err := ReadAndHash(strings.NewReader("other bytes"))
	require.NoError(t, err)
	assert.NotEqual(t, a.Hash, c.Hash)
}

func TestReadAndHashReadError(t *testing.T) {
	boom := errors.New("read failed")
	_, err := ReadAndHash(io.MultiReader(strings.NewReader("partial"), &failingReader{err: boom}))
	assert.ErrorIs(t, err, boom)
}

type failingReader struct{ err error }

func (r *failingReader) Read([]byte) (int, error) { return 0, r.err }

func TestDetectFileType(t *testing.T) {
	pdfHeader := []byte("%PDF-1.7 some content")

	tests := []struct {
		name     string
		filename string
		declared string
		data     []byte
		want     string
	}{
		{name: "declared wins", filename: "a.bin", declared: "application/pdf", data: []byte("junk"), want: "application/pdf"},
		{name: "declared with params", filename: "a.txt", declared: "text/plain; charset=utf-8", data: []byte("x"), want: "text/plain"},
		{name: "sniffed from content", filename: "noext", declared: "", data: pdfHeader, want: "application/pdf"},
		{name: "octet-stream declared falls through", filename: "doc.pdf", declared: "application/octet-stream", data: pdfHeader, want: "application/pdf"},
		{name: "plain text sniffed", filename: "notes", declared: "", data: []byte("just some text"), want: "text/plain"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, detectFileType(tt.filename, tt.declared, tt.data))
		})
	}
}

func TestExtensionForType(t *testing.T) {
	assert.Equal(t, "", ExtensionForType("not/a-real-type"))

	ext := ExtensionForType("application/pdf")
	assert.Equal(t, ".pdf", ext)
}
