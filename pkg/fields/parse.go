// Package fields normalises the polymorphic field encodings GLPI emits in
// search rows and resolves ids to display names through the cache.
package fields

import (
	"encoding/json"
	"strconv"
	"strings"
)

// ParseTechnicianID normalises the assigned-technician field to a canonical
// decimal string. GLPI delivers it as a number, a numeric string, a JSON
// array, or a JSON-encoded string of any of those; a list picks the first
// non-zero entry. ok is false when no usable id is present.
func ParseTechnicianID(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case float64:
		return fromInt(int(t))
	case int:
		return fromInt(t)
	case []any:
		for _, item := range t {
			if id, ok := ParseTechnicianID(item); ok {
				return id, true
			}
		}
		return "", false
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return "", false
		}
		if n, err := strconv.Atoi(s); err == nil {
			return fromInt(n)
		}
		// JSON-looking strings get one level of decoding and recurse.
		if strings.HasPrefix(s, "[") || strings.HasPrefix(s, "{") || strings.HasPrefix(s, "\"") {
			var decoded any
			if err := json.Unmarshal([]byte(s), &decoded); err == nil {
				return ParseTechnicianID(decoded)
			}
		}
		return "", false
	default:
		return "", false
	}
}

func fromInt(n int) (string, bool) {
	if n <= 0 {
		return "", false
	}
	return strconv.Itoa(n), true
}
