package cache

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/tidwall/pretty"

	"github.com/LavishGent/scancache/internal/config"
	"github.com/LavishGent/scancache/internal/types"
)

// Codec compacts large product payloads before they are stored.
//
// A compacted payload is the JSON text with insignificant whitespace removed
// and the quotes dropped from identifier-shaped object keys. It is stored as a
// JSON string so both tiers can keep it in a JSON column.
type Codec struct {
	enabled   bool
	threshold int
}

// NewCodec creates a codec from configuration.
func NewCodec(cfg config.CompressionConfig) *Codec {
	return &Codec{enabled: cfg.Enabled, threshold: cfg.Threshold}
}

// Encode returns the stored form of raw and whether it was compacted.
// Payloads at or below the threshold are stored unchanged.
func (c *Codec) Encode(raw []byte) (json.RawMessage, bool, error) {
	if !json.Valid(raw) {
		return nil, false, errors.New("encode payload: invalid JSON")
	}
	if !c.enabled || len(raw) <= c.threshold {
		return append(json.RawMessage(nil), raw...), false, nil
	}

	compact := rewriteKeys(pretty.Ugly(raw), false)
	payload, err := json.Marshal(string(compact))
	if err != nil {
		return nil, false, fmt.Errorf("encode payload: %w", err)
	}
	return payload, true, nil
}

// Decode returns the JSON text of a stored payload. Compacted text is first
// parsed as-is and only repaired when that fails. Any failure wraps
// types.ErrDecompressionFailed.
func (c *Codec) Decode(payload json.RawMessage, compressed bool) ([]byte, error) {
	if !compressed {
		if !json.Valid(payload) {
			return nil, fmt.Errorf("%w: stored payload is not JSON", types.ErrDecompressionFailed)
		}
		return payload, nil
	}

	var text string
	if err := json.Unmarshal(payload, &text); err != nil {
		// Flagged compressed but stored as a plain document.
		if json.Valid(payload) {
			return payload, nil
		}
		return nil, fmt.Errorf("%w: %v", types.ErrDecompressionFailed, err)
	}

	if json.Valid([]byte(text)) {
		return []byte(text), nil
	}

	repaired := rewriteKeys([]byte(text), true)
	if !json.Valid(repaired) {
		return nil, fmt.Errorf("%w: payload could not be repaired", types.ErrDecompressionFailed)
	}
	return repaired, nil
}

// rewriteKeys walks JSON text and either strips the quotes from
// identifier-shaped object keys (quote=false) or restores them (quote=true).
// String literals are copied untouched.
func rewriteKeys(src []byte, quote bool) []byte {
	out := make([]byte, 0, len(src)+16)
	var stack []byte
	expectKey := false

	for i := 0; i < len(src); i++ {
		ch := src[i]
		switch {
		case ch == '"':
			end := stringEnd(src, i)
			lit := src[i : end+1]
			if expectKey && !quote && len(lit) >= 2 && isIdentifier(lit[1:len(lit)-1]) {
				out = append(out, lit[1:len(lit)-1]...)
			} else {
				out = append(out, lit...)
			}
			expectKey = false
			i = end
		case ch == '{':
			stack = append(stack, ch)
			expectKey = true
			out = append(out, ch)
		case ch == '[':
			stack = append(stack, ch)
			expectKey = false
			out = append(out, ch)
		case ch == '}' || ch == ']':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
			expectKey = false
			out = append(out, ch)
		case ch == ',':
			expectKey = len(stack) > 0 && stack[len(stack)-1] == '{'
			out = append(out, ch)
		case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r':
			out = append(out, ch)
		case expectKey && quote && isIdentStart(ch):
			j := i
			for j < len(src) && isIdentChar(src[j]) {
				j++
			}
			out = append(out, '"')
			out = append(out, src[i:j]...)
			out = append(out, '"')
			expectKey = false
			i = j - 1
		default:
			expectKey = false
			out = append(out, ch)
		}
	}
	return out
}

// stringEnd returns the index of the quote closing the literal opened at start,
// or the last index when the literal is unterminated.
func stringEnd(src []byte, start int) int {
	for i := start + 1; i < len(src); i++ {
		switch src[i] {
		case '\\':
			i++
		case '"':
			return i
		}
	}
	return len(src) - 1
}

func isIdentifier(b []byte) bool {
	if len(b) == 0 || !isIdentStart(b[0]) {
		return false
	}
	for _, ch := range b[1:] {
		if !isIdentChar(ch) {
			return false
		}
	}
	return true
}

func isIdentStart(ch byte) bool {
	return ch == '_' || ch == '$' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isIdentChar(ch byte) bool {
	return isIdentStart(ch) || (ch >= '0' && ch <= '9')
}
