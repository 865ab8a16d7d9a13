// ABOUTME: Parser for the ${...:JSON} sentinel embedded in description text
// ABOUTME: Lets structured metadata ride inside a free-text description field

package wire

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	sentinelPrefix = "${"
	sentinelSuffix = ":JSON}"
)

// ParseSentinel recognizes a description of the form "${<json>:JSON}" and
// returns the enclosed object as a string map. It reports ok=false when the
// text is not a sentinel at all; a sentinel whose JSON fails to parse is a
// validation failure and also reports ok=false; callers treat the text as
// plain display text in either case.
func ParseSentinel(desc string) (map[string]string, bool) {
	if !strings.HasPrefix(desc, sentinelPrefix) || !strings.HasSuffix(desc, sentinelSuffix) {
		return nil, false
	}
	body := desc[len(sentinelPrefix) : len(desc)-len(sentinelSuffix)]
	var obj map[string]any
	if err := json.Unmarshal([]byte(body), &obj); err != nil {
		return nil, false
	}
	out := make(map[string]string, len(obj))
	for k, v := range obj {
		switch x := v.(type) {
		case string:
			out[k] = x
		case float64:
			out[k] = trimFloat(x)
		case bool:
			if x {
				out[k] = "1"
			} else {
				out[k] = "0"
			}
		default:
			// Nested structures are not part of the sentinel contract.
			return nil, false
		}
	}
	return out, true
}

// BuildSentinel renders a string map as a sentinel description. Keys are
// emitted in sorted order (json.Marshal sorts map keys), so output is
// deterministic.
func BuildSentinel(prop map[string]string) string {
	if len(prop) == 0 {
		return ""
	}
	b, err := json.Marshal(prop)
	if err != nil {
		return ""
	}
	return sentinelPrefix + string(b) + sentinelSuffix
}

func trimFloat(f float64) string {
	if f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%g", f)
}
