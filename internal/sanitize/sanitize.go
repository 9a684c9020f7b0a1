// Package sanitize bounds untrusted request payloads before schema
// validation sees them. Sanitizing is total: it never fails, it only trims
// and drops.
package sanitize

import (
	"strings"
	"unicode/utf8"
)

const (
	// MaxStringLen is the longest string retained, in code points.
	MaxStringLen = 10000
	// MaxSliceLen is the most elements retained from a sequence.
	MaxSliceLen = 100
	// MaxMapKeys is the most keys considered from a mapping.
	MaxMapKeys = 50
	// MaxKeyLen drops any key longer than this outright.
	MaxKeyLen = 100
)

// Value recursively bounds a decoded JSON value:
//
//   - strings are whitespace-trimmed and truncated to MaxStringLen
//   - slices keep their first MaxSliceLen elements, each sanitized
//   - maps consider at most MaxMapKeys keys; pairs whose key exceeds
//     MaxKeyLen are dropped, retained values are sanitized. Which keys
//     survive an oversized map is iteration-order dependent, callers must
//     not rely on a specific subset.
//   - everything else passes through unchanged
func Value(v any) any {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		if utf8.RuneCountInString(s) > MaxStringLen {
			// Truncation can leave trailing whitespace that was interior
			// before the cut; trim again so sanitizing is idempotent.
			s = strings.TrimSpace(string([]rune(s)[:MaxStringLen]))
		}
		return s
	case []any:
		n := len(t)
		if n > MaxSliceLen {
			n = MaxSliceLen
		}
		out := make([]any, n)
		for i := 0; i < n; i++ {
			out[i] = Value(t[i])
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		seen := 0
		for k, val := range t {
			if seen >= MaxMapKeys {
				break
			}
			seen++
			if utf8.RuneCountInString(k) > MaxKeyLen {
				continue
			}
			out[k] = Value(val)
		}
		return out
	default:
		return v
	}
}
