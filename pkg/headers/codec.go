// Package headers decodes the textual header map foreign callers pass in.
//
// The wire form is a flat JSON object of string values:
//
//	{"Authorization": "Bearer token", "Accept": "application/json"}
//
// Empty or whitespace-only input means "no headers".
package headers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/tidwall/gjson"
	"golang.org/x/net/http/httpguts"
)

// ErrMalformed is wrapped by every decoding failure.
var ErrMalformed = errors.New("malformed headers")

// Decode parses raw into a header map. Keys that differ only by case are
// collapsed; the last occurrence wins.
func Decode(raw string) (map[string]string, error) {
	if strings.TrimSpace(raw) == "" {
		return map[string]string{}, nil
	}
	if !utf8.ValidString(raw) {
		return nil, fmt.Errorf("%w: headers are not valid UTF-8", ErrMalformed)
	}
	if !gjson.Valid(raw) {
		return nil, fmt.Errorf("%w: headers are not valid JSON", ErrMalformed)
	}

	doc := gjson.Parse(raw)
	if !doc.IsObject() {
		return nil, fmt.Errorf("%w: headers must be a JSON object, got %s", ErrMalformed, doc.Type)
	}

	out := make(map[string]string)
	var decodeErr error
	doc.ForEach(func(key, value gjson.Result) bool {
		name := key.String()
		if !httpguts.ValidHeaderFieldName(name) {
			decodeErr = fmt.Errorf("%w: invalid header name %q", ErrMalformed, name)
			return false
		}
		if value.Type != gjson.String {
			decodeErr = fmt.Errorf("%w: header value for %q must be a string", ErrMalformed, name)
			return false
		}
		if !httpguts.ValidHeaderFieldValue(value.Str) {
			decodeErr = fmt.Errorf("%w: invalid header value for %q", ErrMalformed, name)
			return false
		}
		out[http.CanonicalHeaderKey(name)] = value.Str
		return true
	})
	if decodeErr != nil {
		return nil, decodeErr
	}
	return out, nil
}

// Encode renders h in the form Decode accepts. The CLI uses it to turn
// -H flags into the JSON object the bridge expects.
func Encode(h map[string]string) (string, error) {
	if len(h) == 0 {
		return "", nil
	}
	for k := range h {
		if !httpguts.ValidHeaderFieldName(k) {
			return "", fmt.Errorf("%w: invalid header name %q", ErrMalformed, k)
		}
	}
	raw, err := json.Marshal(h)
	if err != nil {
		return "", fmt.Errorf("encode headers: %w", err)
	}
	return string(raw), nil
}
