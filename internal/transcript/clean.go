package transcript

import (
	"encoding/json"
	"strconv"
	"strings"
)

// contentFields are tried in order when an object payload is displayed.
var contentFields = []string{"content", "message", "text"}

// CleanMessage resolves the display text of a payload. An empty result means
// the message is suppressed. Each recursive step unwraps one JSON layer, so
// the descent always terminates.
func CleanMessage(p Payload) string {
	if p.IsEmpty() {
		return ""
	}
	if IsRoutingMessage(p) {
		return ""
	}

	switch p.Kind {
	case KindObject:
		return cleanObject(p.Obj)
	case KindString:
		return cleanString(p.Str)
	}
	return ""
}

func cleanObject(obj map[string]any) string {
	if hasRoutingKeys(obj) {
		return ""
	}
	for _, field := range contentFields {
		if text, ok := fieldText(obj[field]); ok {
			return text
		}
	}
	// Unknown shapes still surface as their JSON text.
	return canonicalJSON(obj)
}

// fieldText renders a content field. Empty and missing values are skipped so
// the next field gets a chance.
func fieldText(v any) (string, bool) {
	switch val := v.(type) {
	case nil:
		return "", false
	case string:
		return val, val != ""
	case bool:
		return strconv.FormatBool(val), val
	case float64:
		if val == 0 {
			return "", false
		}
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case map[string]any:
		text := CleanMessage(ObjectPayload(val))
		return text, text != ""
	default:
		text := canonicalJSON(val)
		return text, text != ""
	}
}

func cleanString(s string) string {
	cleaned := strings.TrimSpace(s)

	if len(cleaned) >= 2 && strings.HasPrefix(cleaned, `"`) && strings.HasSuffix(cleaned, `"`) {
		cleaned = cleaned[1 : len(cleaned)-1]
	}

	if strings.HasPrefix(cleaned, "{") && strings.HasSuffix(cleaned, "}") {
		var parsed map[string]any
		if err := json.Unmarshal([]byte(cleaned), &parsed); err == nil && parsed != nil {
			return CleanMessage(ObjectPayload(parsed))
		}
	}

	if IsRoutingMessage(StringPayload(cleaned)) {
		return ""
	}
	return cleaned
}
