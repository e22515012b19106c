package shortener

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ResultAliases lists, per logical field, the response keys accepted by
// ParseResult in lookup order. The service's naming is not stable, so the
// first key holding a non-empty value wins.
var ResultAliases = struct {
	ShortURL    []string
	OriginalURL []string
	TotalClicks []string
}{
	ShortURL:    []string{"shortUrl", "shortURL", "short_url", "url"},
	OriginalURL: []string{"redirectUrl", "originalURL", "original_url"},
	TotalClicks: []string{"totalClicks", "total_clicks"},
}

// errorAliases is the lookup order for the message of an error body.
var errorAliases = []string{"error", "message"}

// ErrMissingShortURL is wrapped when a success body has none of the
// ResultAliases.ShortURL keys.
var ErrMissingShortURL = errors.New("response did not include a short URL")

// ParseResult decodes a success body. OriginalURL falls back to requestURL
// and TotalClicks to 0 when the body does not carry them.
func ParseResult(body []byte, requestURL string) (*Result, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	res := &Result{
		ShortURL:    firstString(fields, ResultAliases.ShortURL),
		OriginalURL: firstString(fields, ResultAliases.OriginalURL),
		TotalClicks: firstCount(fields, ResultAliases.TotalClicks),
	}
	if res.OriginalURL == "" {
		res.OriginalURL = requestURL
	}
	if res.ShortURL == "" {
		return res, ErrMissingShortURL
	}
	return res, nil
}

func firstString(fields map[string]json.RawMessage, keys []string) string {
	for _, k := range keys {
		raw, ok := fields[k]
		if !ok {
			continue
		}
		var s string
		if json.Unmarshal(raw, &s) == nil && s != "" {
			return s
		}
	}
	return ""
}

func firstCount(fields map[string]json.RawMessage, keys []string) int {
	for _, k := range keys {
		raw, ok := fields[k]
		if !ok {
			continue
		}
		var f float64
		if json.Unmarshal(raw, &f) == nil {
			return clampCount(f)
		}
		var s string
		if json.Unmarshal(raw, &s) == nil {
			if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
				return clampCount(f)
			}
		}
	}
	return 0
}

func clampCount(f float64) int {
	if f <= 0 || math.IsNaN(f) {
		return 0
	}
	if f > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(f)
}

// decodeDetails reads a validation details array. Entries without a path
// and message are dropped.
func decodeDetails(raw json.RawMessage) ([]FieldError, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var wire []fieldErrorWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("decode details: %w", err)
	}
	out := make([]FieldError, 0, len(wire))
	for _, w := range wire {
		if w.Path == "" && w.Msg == "" {
			continue
		}
		out = append(out, FieldError{
			Path:  w.Path,
			Msg:   w.Msg,
			Value: valueText(w.Value),
		})
	}
	return out, nil
}

// valueText renders the offending value the way it should be echoed back.
// Absent, null, false, zero and empty values yield "".
func valueText(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		if !x {
			return ""
		}
		return "true"
	case float64:
		if x == 0 {
			return ""
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		b, _ := json.Marshal(x)
		return string(b)
	}
}
