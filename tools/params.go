package tools

import (
	"fmt"
	"strings"
)

// Params is the argument map passed to a tool.
type Params map[string]interface{}

// String returns the parameter as a trimmed string, or def when absent or empty.
func (p Params) String(key, def string) string {
	v, ok := p[key]
	if !ok || v == nil {
		return def
	}
	var s string
	switch x := v.(type) {
	case string:
		s = x
	default:
		s = fmt.Sprintf("%v", x)
	}
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "null") || strings.EqualFold(s, "none") {
		return def
	}
	return s
}
