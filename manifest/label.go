package manifest

import (
	"sort"
	"strconv"
	"strings"
)

// labelKeys are probed in order when resolving a value out of a
// JSON-LD-ish object: value wrappers first, then language maps, then
// naming fallbacks.
var labelKeys = []string{"@value", "value", "en", "none", "label", "name", "id"}

// resolveString extracts a displayable string from a value of unknown
// shape. Primitives return directly, lists yield their first non-empty
// element, objects are probed through labelKeys and finally through
// every value in key order. The first non-empty result wins at any
// depth.
func resolveString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	case []interface{}:
		for _, e := range t {
			if s := resolveString(e); s != "" {
				return s
			}
		}
	case map[string]interface{}:
		for _, k := range labelKeys {
			if e, ok := t[k]; ok {
				if s := resolveString(e); s != "" {
					return s
				}
			}
		}
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if s := resolveString(t[k]); s != "" {
				return s
			}
		}
	}
	return ""
}

// firstString resolves the first of the given keys that yields a
// non-empty string.
func firstString(m map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if s := resolveString(v); s != "" {
				return s
			}
		}
	}
	return ""
}

// toInt reads a numeric value out of parsed JSON, tolerating documents
// that quote their dimensions.
func toInt(v interface{}) int {
	switch t := v.(type) {
	case float64:
		return int(t)
	case int:
		return t
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
			return n
		}
	}
	return 0
}
