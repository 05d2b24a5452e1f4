package services

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
)

const (
	mimePDF  = "application/pdf"
	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimeText = "text/plain"

	maxResumeTextRunes = 50000
)

var resumeMIMETypes = []string{mimePDF, mimeDOCX, mimeText}

// detectResumeType sniffs the upload and returns its MIME type when it is an accepted resume format
func detectResumeType(data []byte) (string, bool) {
	detected := mimetype.Detect(data)
	for _, allowed := range resumeMIMETypes {
		if detected.Is(allowed) {
			return allowed, true
		}
	}
	return detected.String(), false
}

// extractResumeText returns the plain text of a resume. Text files are read
// directly, Word files are unpacked locally and PDFs go through reader.
func extractResumeText(ctx context.Context, reader DocumentReader, data []byte, mimeType string) (string, error) {
	var text string
	var err error
	switch mimeType {
	case mimeText:
		if !utf8.Valid(data) {
			return "", fmt.Errorf("%w: resume is not valid UTF-8 text", ErrInvalidArgument)
		}
		text = string(data)
	case mimeDOCX:
		text, err = docxText(data)
	case mimePDF:
		text, err = reader.ExtractDocumentText(ctx, data, mimeType)
	default:
		return "", fmt.Errorf("%w: unsupported resume type %s", ErrInvalidArgument, mimeType)
	}
	if err != nil {
		return "", err
	}

	text = strings.TrimSpace(text)
	if r := []rune(text); len(r) > maxResumeTextRunes {
		text = string(r[:maxResumeTextRunes])
	}
	return text, nil
}

// docxText collects the text runs of word/document.xml, one line per paragraph
func docxText(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: unreadable Word document", ErrInvalidArgument)
	}

	var doc *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			doc = f
			break
		}
	}
	if doc == nil {
		return "", fmt.Errorf("%w: Word document has no body", ErrInvalidArgument)
	}

	rc, err := doc.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open document body: %w", err)
	}
	defer rc.Close()

	var sb strings.Builder
	dec := xml.NewDecoder(io.LimitReader(rc, 20<<20))
	inText := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("%w: malformed Word document", ErrInvalidArgument)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				sb.WriteByte('\t')
			case "br":
				sb.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}
	return sb.String(), nil
}
