package services

import (
	"archive/zip"
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubDocumentReader struct {
	text string
	mime string
}

func (r *stubDocumentReader) ExtractDocumentText(_ context.Context, _ []byte, mimeType string) (string, error) {
	r.mime = mimeType
	return r.text, nil
}

func buildDocx(t *testing.T, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` + body + `</w:body></w:document>`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestDetectResumeType(t *testing.T) {
	mime, ok := detectResumeType([]byte("%PDF-1.7\n1 0 obj\n<<>>\nendobj\n"))
	assert.True(t, ok)
	assert.Equal(t, mimePDF, mime)

	mime, ok = detectResumeType([]byte("Jane Doe\nSenior Go developer\n"))
	assert.True(t, ok)
	assert.Equal(t, mimeText, mime)

	_, ok = detectResumeType([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"))
	assert.False(t, ok)
}

func TestDocxText(t *testing.T) {
	data := buildDocx(t, `<w:p><w:r><w:t>Jane Doe</w:t></w:r></w:p>`+
		`<w:p><w:r><w:t>Go</w:t><w:tab/><w:t>Postgres</w:t></w:r></w:p>`)

	text, err := docxText(data)
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe\nGo\tPostgres\n", text)

	_, err = docxText([]byte("not a zip"))
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestExtractResumeText(t *testing.T) {
	ctx := context.Background()
	reader := &stubDocumentReader{text: "  From the PDF  "}

	text, err := extractResumeText(ctx, reader, []byte("%PDF-1.7"), mimePDF)
	require.NoError(t, err)
	assert.Equal(t, "From the PDF", text)
	assert.Equal(t, mimePDF, reader.mime)

	text, err = extractResumeText(ctx, reader, buildDocx(t, `<w:p><w:r><w:t>Word resume</w:t></w:r></w:p>`), mimeDOCX)
	require.NoError(t, err)
	assert.Equal(t, "Word resume", text)

	_, err = extractResumeText(ctx, reader, []byte{0xff, 0xfe, 0xfd}, mimeText)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = extractResumeText(ctx, reader, []byte("x"), "image/png")
	assert.ErrorIs(t, err, ErrInvalidArgument)

	long := strings.Repeat("é", maxResumeTextRunes+10)
	text, err = extractResumeText(ctx, reader, []byte(long), mimeText)
	require.NoError(t, err)
	assert.Equal(t, maxResumeTextRunes, len([]rune(text)))
}
