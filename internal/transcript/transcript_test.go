package transcript

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParsePayload(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		kind Kind
		str  string
	}{
		{name: "empty", raw: "", kind: KindEmpty},
		{name: "null", raw: "null", kind: KindEmpty},
		{name: "json string", raw: `"olá"`, kind: KindString, str: "olá"},
		{name: "json object", raw: `{"content":"hi"}`, kind: KindObject},
		{name: "plain text", raw: "Pode reservar", kind: KindString, str: "Pode reservar"},
		{name: "broken object", raw: `{"content":`, kind: KindString, str: `{"content":`},
		{name: "number", raw: "42", kind: KindString, str: "42"},
		{name: "array", raw: `["picanha","fraldinha"]`, kind: KindString, str: `["picanha","fraldinha"]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := ParsePayload([]byte(tt.raw))
			require.Equal(t, tt.kind, p.Kind)
			if tt.kind == KindString {
				require.Equal(t, tt.str, p.Str)
			}
		})
	}
}

func TestPayload_JSONRoundTripKeepsShape(t *testing.T) {
	obj := ObjectPayload(map[string]any{"type": "ai", "content": "Oi"})
	data, err := obj.MarshalJSON()
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"ai","content":"Oi"}`, string(data))

	str := StringPayload(`{"content":"hi"}`)
	data, err = str.MarshalJSON()
	require.NoError(t, err)

	var back Payload
	require.NoError(t, back.UnmarshalJSON(data))
	require.Equal(t, KindString, back.Kind)
	require.Equal(t, `{"content":"hi"}`, back.Str)
}

func TestIsRoutingMessage(t *testing.T) {
	tests := []struct {
		name string
		p    Payload
		want bool
	}{
		{name: "empty", p: Payload{}, want: false},
		{name: "route key", p: StringPayload(`{"route":"kit","reason":"x"}`), want: true},
		{name: "phrase", p: StringPayload("Route to Kit Agent"), want: true},
		{name: "routing to", p: StringPayload("Routing to normal flow"), want: true},
		{name: "portuguese marker", p: StringPayload("encaminhar para agente comum"), want: true},
		{name: "output prefix", p: StringPayload(`{ "output": "x" }`), want: true},
		{name: "object with output", p: ObjectPayload(map[string]any{"output": map[string]any{"route": "kit"}}), want: true},
		{name: "object with reason", p: ObjectPayload(map[string]any{"reason": "price question"}), want: true},
		{name: "short json mentioning route", p: StringPayload(`{"next":"reroute"}`), want: true},
		{name: "short accented json mentioning route", p: StringPayload(`{"nota":"reroute ` + strings.Repeat("ç", 45) + `"}`), want: true},
		{name: "long json mentioning route", p: StringPayload(`{"text":"` + longText(120) + ` reroute"}`), want: false},
		{name: "customer text", p: StringPayload("Pode reservar 1kg de picanha"), want: false},
		{name: "customer object", p: ObjectPayload(map[string]any{"type": "human", "content": "Oi"}), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, IsRoutingMessage(tt.p))
		})
	}
}

func TestCleanMessage(t *testing.T) {
	tests := []struct {
		name string
		p    Payload
		want string
	}{
		{name: "empty", p: Payload{}, want: ""},
		{name: "structured content", p: ObjectPayload(map[string]any{"content": "hello"}), want: "hello"},
		{name: "encoded content", p: StringPayload(`{"content":"hi"}`), want: "hi"},
		{name: "message field", p: ObjectPayload(map[string]any{"message": "m"}), want: "m"},
		{name: "text field", p: ObjectPayload(map[string]any{"text": "t"}), want: "t"},
		{name: "content wins over text", p: ObjectPayload(map[string]any{"text": "t", "content": "c"}), want: "c"},
		{name: "empty content falls through", p: ObjectPayload(map[string]any{"content": "", "message": "m"}), want: "m"},
		{name: "unknown shape surfaces json", p: ObjectPayload(map[string]any{"type": "ai", "foo": "bar"}), want: `{"foo":"bar","type":"ai"}`},
		{name: "routing json", p: StringPayload(`{"route":"kit","reason":"x"}`), want: ""},
		{name: "routing phrase", p: StringPayload("Route to Kit Agent"), want: ""},
		{name: "plain text", p: StringPayload("Pode reservar 1kg de picanha"), want: "Pode reservar 1kg de picanha"},
		{name: "trimmed", p: StringPayload("  Olá  "), want: "Olá"},
		{name: "one quote layer stripped", p: StringPayload(`"Olá"`), want: "Olá"},
		{name: "double encoded", p: StringPayload(`"{"content":"hi"}"`), want: "hi"},
		{name: "double encoded routing", p: StringPayload(`"{"output":{"route":"kit"}}"`), want: ""},
		{name: "array surfaces as text", p: ParsePayload([]byte(`["picanha","fraldinha"]`)), want: `["picanha","fraldinha"]`},
		{name: "scalar surfaces as text", p: ParsePayload([]byte("true")), want: "true"},
		{name: "malformed json kept", p: StringPayload("{ oi, tudo bem? }"), want: "{ oi, tudo bem? }"},
		{name: "nested type payload", p: ObjectPayload(map[string]any{"type": "human", "content": "Quero costela"}), want: "Quero costela"},
		{name: "nested content object", p: ObjectPayload(map[string]any{"content": map[string]any{"text": "inner"}}), want: "inner"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, CleanMessage(tt.p))
		})
	}
}

func TestCleanMessage_RoutingAlwaysSuppressed(t *testing.T) {
	payloads := []Payload{
		StringPayload(`{"route":"normal"}`),
		StringPayload("kit agent selected"),
		ObjectPayload(map[string]any{"route": "kit"}),
		ObjectPayload(map[string]any{"output": "anything", "content": "x"}),
		StringPayload(`{"output": {"reason": "y"}}`),
	}
	for _, p := range payloads {
		require.True(t, IsRoutingMessage(p), p.String())
		require.Empty(t, CleanMessage(p), p.String())
	}
}

func TestCleanMessage_IdempotentOnCleanText(t *testing.T) {
	inputs := []Payload{
		StringPayload("Bom dia, qual o valor da picanha?"),
		StringPayload(`"Olá"`),
		ObjectPayload(map[string]any{"content": "Até amanhã"}),
		StringPayload("{ não é json }"),
	}
	for _, p := range inputs {
		once := CleanMessage(p)
		require.Equal(t, once, CleanMessage(StringPayload(once)))
	}
}

func TestResolveRole(t *testing.T) {
	tests := []struct {
		name     string
		explicit string
		p        Payload
		want     Role
	}{
		{name: "explicit user", explicit: "user", p: ObjectPayload(map[string]any{"type": "ai"}), want: RoleUser},
		{name: "explicit assistant", explicit: "assistant", want: RoleAssistant},
		{name: "nested human", p: ObjectPayload(map[string]any{"type": "human"}), want: RoleUser},
		{name: "nested ai", p: ObjectPayload(map[string]any{"type": "ai"}), want: RoleAssistant},
		{name: "encoded ai", p: StringPayload(`{"type":"ai","content":"Oi"}`), want: RoleAssistant},
		{name: "broken encoded", p: StringPayload(`{"type":"ai"`), want: RoleUser},
		{name: "unknown explicit", explicit: "system", p: StringPayload("hello"), want: RoleUser},
		{name: "nothing", want: RoleUser},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, ResolveRole(tt.explicit, tt.p))
		})
	}
}

func TestNormalize_MissingTimestampUsesClock(t *testing.T) {
	fixed := time.Date(2025, 3, 1, 12, 30, 0, 0, time.UTC)
	turn := Normalize(Record{ID: 7, Message: StringPayload("Oi")}, func() time.Time { return fixed })

	require.Equal(t, "7", turn.ID)
	require.Equal(t, RoleUser, turn.Role)
	require.Equal(t, "Oi", turn.Content)
	require.Equal(t, "2025-03-01T12:30:00.000Z", turn.CreatedAt)
}

func TestAssemble_KeepsIDOrderAndFiltersSuppressed(t *testing.T) {
	records := []Record{
		{ID: 1, Message: StringPayload("primeiro"), CreatedAt: "2025-03-01T12:00:30Z"},
		{ID: 2, Message: StringPayload(`{"route":"kit"}`), CreatedAt: "2025-03-01T12:00:20Z"},
		{ID: 3, Role: "assistant", Message: StringPayload("terceiro"), CreatedAt: "2025-03-01T12:00:10Z"},
		{ID: 4, Message: StringPayload("   "), CreatedAt: "2025-03-01T12:00:00Z"},
	}

	turns := Assemble(records, nil)
	require.Len(t, turns, 2)
	require.Equal(t, "1", turns[0].ID)
	require.Equal(t, "primeiro", turns[0].Content)
	require.Equal(t, "3", turns[1].ID)
	require.Equal(t, RoleAssistant, turns[1].Role)
}

func TestParseTimestamp(t *testing.T) {
	for _, s := range []string{
		"2025-03-01T12:00:00Z",
		"2025-03-01T12:00:00.123Z",
		"2025-03-01T12:00:00.123456+00:00",
		"2025-03-01 12:00:00+00",
		"2025-03-01 12:00:00",
	} {
		_, ok := ParseTimestamp(s)
		require.True(t, ok, s)
	}
	_, ok := ParseTimestamp("ontem")
	require.False(t, ok)
}

func longText(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = 'a'
	}
	return string(b)
}
