package transcript

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func turnAt(id, content string, at time.Time) Turn {
	return Turn{ID: id, Role: RoleAssistant, Content: content, CreatedAt: FormatTimestamp(at)}
}

func TestLive_PushSuppressesEchoInsideWindow(t *testing.T) {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	live := NewLive(0)
	live.Reset("5521999991234", nil)
	live.AppendLocal(turnAt("local-1", "Olá", base))

	require.False(t, live.Push(turnAt("10", "Olá", base.Add(5*time.Second))))
	require.Len(t, live.Turns(), 1)

	require.True(t, live.Push(turnAt("11", "Olá", base.Add(15*time.Second))))
	require.Len(t, live.Turns(), 2)
}

func TestLive_EchoAfterPushIsDropped(t *testing.T) {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	live := NewLive(DefaultDedupeWindow)
	live.Reset("5521999991234", nil)

	require.True(t, live.Push(turnAt("20", "Olá, tudo bem?", base)))
	require.False(t, live.AppendLocal(turnAt("local-1", "Olá, tudo bem?", base.Add(2*time.Second))))
	require.Len(t, live.Turns(), 1)
	require.Equal(t, "20", live.Turns()[0].ID)

	// A pushed turn stands for a single echo; the next identical send shows.
	require.True(t, live.AppendLocal(turnAt("local-2", "Olá, tudo bem?", base.Add(3*time.Second))))
	require.Len(t, live.Turns(), 2)
}

func TestLive_EchoOnlyMatchesPushedTurns(t *testing.T) {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	live := NewLive(DefaultDedupeWindow)
	live.Reset("s", []Turn{turnAt("1", "ok", base)})

	require.True(t, live.AppendLocal(turnAt("local-1", "ok", base.Add(time.Second))))

	require.True(t, live.Push(turnAt("2", "ok", base.Add(time.Minute))))
	require.True(t, live.AppendLocal(turnAt("local-2", "ok", base.Add(time.Minute+DefaultDedupeWindow))))
	require.Len(t, live.Turns(), 4)
}

func TestLive_PushToleratesEarlierTimestamp(t *testing.T) {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	live := NewLive(DefaultDedupeWindow)
	live.AppendLocal(turnAt("local-1", "Pedido confirmado", base))

	require.False(t, live.Push(turnAt("12", "Pedido confirmado", base.Add(-3*time.Second))))
}

func TestLive_PushWindowIsExclusive(t *testing.T) {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	live := NewLive(DefaultDedupeWindow)
	live.AppendLocal(turnAt("local-1", "Oi", base))

	require.True(t, live.Push(turnAt("13", "Oi", base.Add(DefaultDedupeWindow))))
}

func TestLive_PushDifferentContentAppends(t *testing.T) {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	live := NewLive(DefaultDedupeWindow)
	live.AppendLocal(turnAt("local-1", "Oi", base))

	require.True(t, live.Push(turnAt("14", "Tudo bem?", base.Add(time.Second))))
	turns := live.Turns()
	require.Equal(t, []string{"Oi", "Tudo bem?"}, []string{turns[0].Content, turns[1].Content})
}

func TestLive_UnparseableTimestampNeverDuplicate(t *testing.T) {
	live := NewLive(DefaultDedupeWindow)
	live.AppendLocal(Turn{ID: "1", Content: "Oi", CreatedAt: "ontem"})

	require.True(t, live.Push(Turn{ID: "2", Content: "Oi", CreatedAt: "ontem"}))
}

func TestLive_SuppressedTurnsKeptButNotRendered(t *testing.T) {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	live := NewLive(DefaultDedupeWindow)
	live.Reset("s", []Turn{turnAt("1", "antes", base)})

	require.True(t, live.Push(turnAt("2", "", base.Add(time.Minute))))
	require.True(t, live.Push(turnAt("3", "depois", base.Add(2*time.Minute))))

	require.Equal(t, 3, live.Len())
	turns := live.Turns()
	require.Len(t, turns, 2)
	require.Equal(t, "1", turns[0].ID)
	require.Equal(t, "3", turns[1].ID)
}

func TestLive_ResetReplacesSession(t *testing.T) {
	live := NewLive(DefaultDedupeWindow)
	live.Reset("a", []Turn{{ID: "1", Content: "x", CreatedAt: "2025-03-01T12:00:00Z"}})
	live.Reset("b", nil)

	require.Equal(t, "b", live.Session())
	require.Empty(t, live.Turns())
}
