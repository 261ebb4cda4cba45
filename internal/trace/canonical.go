package trace

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

// Canonical serializes a payload value deterministically: object keys are
// sorted and floats are formatted without scientific notation, so the same
// value always renders to the same bytes regardless of map iteration
// order.
func Canonical(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case bool:
		if val {
			return "true"
		}
		return "false"
	case string:
		data, _ := json.Marshal(val)
		return string(data)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	case json.Number:
		return string(val)
	case []any:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = Canonical(item)
		}
		return "[" + strings.Join(parts, ",") + "]"
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			keyJSON, _ := json.Marshal(k)
			parts = append(parts, string(keyJSON)+":"+Canonical(val[k]))
		}
		return "{" + strings.Join(parts, ",") + "}"
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return strconv.Quote("!unserializable")
		}
		return string(data)
	}
}
