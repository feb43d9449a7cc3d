// Package transcript rebuilds a readable WhatsApp conversation from the rows
// of the message history table: it hides orchestrator routing decisions,
// unwraps JSON-encoded payloads and resolves who said what.
package transcript

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Kind tags the shape of a stored message payload.
type Kind int

const (
	KindEmpty Kind = iota
	KindString
	KindObject
)

// Payload is the decoded `message` column of a history record. The upstream
// automation writes plain strings, JSON-encoded strings and JSON objects into
// the same column, so every consumer switches on Kind.
type Payload struct {
	Kind Kind
	Str  string
	Obj  map[string]any
}

// StringPayload wraps a raw string payload.
func StringPayload(s string) Payload {
	if s == "" {
		return Payload{Kind: KindEmpty}
	}
	return Payload{Kind: KindString, Str: s}
}

// ObjectPayload wraps an already structured payload.
func ObjectPayload(obj map[string]any) Payload {
	if obj == nil {
		return Payload{Kind: KindEmpty}
	}
	return Payload{Kind: KindObject, Obj: obj}
}

// ParsePayload decodes a stored message column. JSON objects become object
// payloads and JSON strings become their decoded text; anything else,
// including text that is not JSON at all, is kept as the literal string.
func ParsePayload(raw []byte) Payload {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return Payload{Kind: KindEmpty}
	}

	switch trimmed[0] {
	case '{':
		var obj map[string]any
		if err := json.Unmarshal(trimmed, &obj); err == nil {
			return ObjectPayload(obj)
		}
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return StringPayload(s)
		}
	}
	return StringPayload(string(raw))
}

// IsEmpty reports whether the payload carries nothing at all.
func (p Payload) IsEmpty() bool {
	switch p.Kind {
	case KindString:
		return p.Str == ""
	case KindObject:
		return p.Obj == nil
	default:
		return true
	}
}

// String returns the canonical text form: the string itself, or the compact
// JSON encoding of an object.
func (p Payload) String() string {
	switch p.Kind {
	case KindString:
		return p.Str
	case KindObject:
		return canonicalJSON(p.Obj)
	default:
		return ""
	}
}

// MarshalJSON stores the payload back in the shape it was read in.
func (p Payload) MarshalJSON() ([]byte, error) {
	switch p.Kind {
	case KindString:
		return json.Marshal(p.Str)
	case KindObject:
		return json.Marshal(p.Obj)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts any JSON value.
func (p *Payload) UnmarshalJSON(data []byte) error {
	*p = ParsePayload(data)
	return nil
}

func canonicalJSON(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return ""
	}
	return strings.TrimRight(buf.String(), "\n")
}
