package ai

import (
	"bytes"
	"errors"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrNoText is returned for PDFs without an extractable text layer.
var ErrNoText = errors.New("pdf has no extractable text")

// PDFText returns the plain text of a PDF document.
func PDFText(data []byte) (text string, err error) {
	// The pdf reader panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			err = errors.New("pdf: unreadable document")
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", err
	}
	b, err := io.ReadAll(plain)
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(string(b))
	if text == "" {
		return "", ErrNoText
	}
	return text, nil
}
