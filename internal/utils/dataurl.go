package utils

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

const defaultMIME = "image/jpeg"

var ErrInvalidDataURL = errors.New("invalid data url")

// JPEGDataURL wraps raw base64 from the detection backend for display.
func JPEGDataURL(b64 string) string {
	return "data:" + defaultMIME + ";base64," + b64
}

// DecodeDataURL accepts "data:<mime>;base64,<payload>" or a bare base64
// payload and returns the bytes with their MIME type.
func DecodeDataURL(s string) ([]byte, string, error) {
	mime := defaultMIME
	payload := s

	if strings.HasPrefix(s, "data:") {
		header, rest, ok := strings.Cut(s, ",")
		if !ok {
			return nil, "", fmt.Errorf("%w: missing payload", ErrInvalidDataURL)
		}
		meta := strings.TrimPrefix(header, "data:")
		if m, _, _ := strings.Cut(meta, ";"); m != "" {
			mime = m
		}
		payload = rest
	}

	if payload == "" {
		return nil, "", fmt.Errorf("%w: empty payload", ErrInvalidDataURL)
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidDataURL, err)
	}
	return data, mime, nil
}
