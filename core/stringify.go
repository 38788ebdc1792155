package core

import (
	"encoding/json"
	"fmt"
)

// Stringify renders an arbitrary tool result as text for the model. Strings
// pass through, values implementing fmt.Stringer use String, everything else
// is JSON encoded with a %v fallback.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	case error:
		return t.Error()
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
