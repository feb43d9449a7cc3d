package transcript

import (
	"strings"
	"unicode/utf8"
)

// shortJSONLimit bounds the terse control messages caught by the heuristic
// check.
const shortJSONLimit = 100

// routingPatterns are matched against the lowercased payload text.
var routingPatterns = []string{
	`"route"`,
	`"output"`,
	`"reason"`,
	"routing to",
	"route to kit",
	"route to normal",
	"agente comum",
	"kit agent",
	`"route":"kit"`,
	`"route":"normal"`,
	`"route": "kit"`,
	`"route": "normal"`,
	`{"output":`,
	`{ "output":`,
	`"output": {`,
	`"output":{`,
}

// IsRoutingMessage reports whether a payload is an orchestrator routing
// decision that operators must never see.
func IsRoutingMessage(p Payload) bool {
	if p.IsEmpty() {
		return false
	}

	text := p.String()
	lower := strings.ToLower(text)

	for _, pattern := range routingPatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}

	if p.Kind == KindObject && hasRoutingKeys(p.Obj) {
		return true
	}

	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}") && utf8.RuneCountInString(trimmed) < shortJSONLimit {
		if strings.Contains(lower, "route") || strings.Contains(lower, "output") {
			return true
		}
	}

	return false
}

// hasRoutingKeys checks the top level for route/output/reason and the
// object under "output" for route/reason.
func hasRoutingKeys(obj map[string]any) bool {
	for _, key := range []string{"route", "output", "reason"} {
		if _, ok := obj[key]; ok {
			return true
		}
	}
	if nested, ok := obj["output"].(map[string]any); ok {
		_, route := nested["route"]
		_, reason := nested["reason"]
		return route || reason
	}
	return false
}
