package extractor

import (
	"errors"
	"unicode/utf8"
)

func extractPlaintext(raw []byte) (string, error) {
	if !utf8.Valid(raw) {
		return "", errors.New("content is not valid utf-8")
	}
	return string(raw), nil
}
