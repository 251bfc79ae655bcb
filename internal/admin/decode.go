package admin

import (
	"errors"
	"strings"

	"github.com/tidwall/gjson"
)

var (
	// ErrNoStructuredData is returned when output holds no '{' or '['.
	ErrNoStructuredData = errors.New("no JSON in output")
	// ErrMalformedData is returned when the text after the preamble is not valid JSON.
	ErrMalformedData = errors.New("malformed JSON in output")
)

// ExtractJSON skips any preamble the admin tool printed before its structured
// output and returns the JSON document together with the number of preamble
// bytes skipped. The document must be valid JSON in its entirety.
func ExtractJSON(output string) ([]byte, int, error) {
	output = strings.TrimSpace(output)
	start := strings.IndexAny(output, "{[")
	if start < 0 {
		return nil, 0, ErrNoStructuredData
	}
	doc := []byte(output[start:])
	if !gjson.ValidBytes(doc) {
		return nil, start, ErrMalformedData
	}
	return doc, start, nil
}
