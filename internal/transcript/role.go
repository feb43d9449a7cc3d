package transcript

import (
	"encoding/json"
	"strings"
)

// Role is the resolved speaker of a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ResolveRole picks the speaker of a stored record. The explicit role column
// wins; older rows only carry a nested `type` of human or ai. Anything else
// is attributed to the customer.
func ResolveRole(explicit string, p Payload) Role {
	switch Role(explicit) {
	case RoleUser, RoleAssistant:
		return Role(explicit)
	}

	obj := p.Obj
	if p.Kind == KindString && strings.HasPrefix(p.Str, "{") {
		var parsed map[string]any
		if err := json.Unmarshal([]byte(p.Str), &parsed); err == nil {
			obj = parsed
		}
	}

	if obj != nil {
		switch obj["type"] {
		case "human":
			return RoleUser
		case "ai":
			return RoleAssistant
		}
	}
	return RoleUser
}
