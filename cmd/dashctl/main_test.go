package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmau0/riobutcher/internal/auth"
	"github.com/jmau0/riobutcher/internal/store"
	"github.com/jmau0/riobutcher/internal/transcript"
	"github.com/stretchr/testify/require"
)

func seedDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dash.db")
	st, err := store.NewSQLiteStore(path, nil)
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	require.NoError(t, st.UpsertClient(ctx, &store.Client{SessionID: "5521999991234", Name: "Ana", Phone: "21999991234"}))
	require.NoError(t, st.UpsertClient(ctx, &store.Client{SessionID: "5521988885678", Name: "Bruno", Urgent: "true"}))
	for _, msg := range []string{
		`{"type":"human","content":"Tem costela?"}`,
		`{"output":{"route":"kit","reason":"pedido"}}`,
		`{"type":"ai","content":"Temos costela bovina."}`,
	} {
		require.NoError(t, st.InsertHistory(ctx, &store.HistoryRecord{
			SessionID: "5521999991234",
			Message:   json.RawMessage(msg),
			CreatedAt: transcript.FormatTimestamp(time.Now()),
		}))
	}
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestTranscriptCommand(t *testing.T) {
	db := seedDB(t)

	out, err := run(t, "transcript", "5521999991234", "--db", db)
	require.NoError(t, err)
	require.Contains(t, out, "Ana (5521999991234)")
	require.Contains(t, out, "Tem costela?")
	require.Contains(t, out, "Temos costela bovina.")
	require.NotContains(t, out, "route")

	out, err = run(t, "transcript", "5521999991234", "--db", db, "--format", "json")
	require.NoError(t, err)
	var decoded struct {
		Turns []transcript.Turn `json:"turns"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	require.Len(t, decoded.Turns, 2)

	_, err = run(t, "transcript", "5521999991234", "--db", db, "--format", "csv")
	require.Error(t, err)

	_, err = run(t, "transcript", "unknown", "--db", db)
	require.ErrorContains(t, err, "no conversation found")
}

func TestLeadsCommand(t *testing.T) {
	db := seedDB(t)

	out, err := run(t, "leads", "--db", db)
	require.NoError(t, err)
	require.Contains(t, out, "2 lead(s), 1 urgente(s)")
	require.Contains(t, out, "Temos costela bovina.")

	out, err = run(t, "leads", "--db", db, "--urgent")
	require.NoError(t, err)
	require.Contains(t, out, "Bruno")
	require.NotContains(t, out, "Ana")

	out, err = run(t, "leads", "--db", db, "--search", "nobody")
	require.NoError(t, err)
	require.Contains(t, out, "Nenhum lead encontrado")
}

func TestAttendanceCommand(t *testing.T) {
	db := seedDB(t)

	_, err := run(t, "attendance", "5521999991234", "robot", "--db", db)
	require.Error(t, err)

	_, err = run(t, "attendance", "5521999991234", "human", "--db", db)
	require.NoError(t, err)

	st, err := store.NewSQLiteStore(db, nil)
	require.NoError(t, err)
	defer st.Close()
	c, err := st.GetClient(context.Background(), "5521999991234")
	require.NoError(t, err)
	require.Equal(t, store.AttendanceHuman, c.Attendance)
}

func TestMetricsCommand(t *testing.T) {
	db := seedDB(t)

	out, err := run(t, "metrics", "--db", db)
	require.NoError(t, err)
	require.Contains(t, out, "total: 2  urgentes: 1  humano: 0  IA: 2")
	require.Contains(t, out, "eficiência da IA: 100.0%")
}

func TestHashPasswordCommand(t *testing.T) {
	out, err := run(t, "hash-password", "s3nha")
	require.NoError(t, err)
	require.True(t, auth.CheckPasswordHash("s3nha", string(bytes.TrimSpace([]byte(out)))))
}

func TestQRCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"base64": "iVBORw0KGgo=", "instance": body["instance"]})
	}))
	defer srv.Close()

	t.Setenv("WEBHOOK_BASE_URL", srv.URL)
	t.Setenv("WEBHOOK_QR_PATH", "/qr")

	out, err := run(t, "qr", "loja-centro", "--db", filepath.Join(t.TempDir(), "unused.db"))
	require.NoError(t, err)
	require.Equal(t, "data:image/png;base64,iVBORw0KGgo=\n", out)

	png := filepath.Join(t.TempDir(), "qr.png")
	_, err = run(t, "qr", "--out", png)
	require.NoError(t, err)
	data, err := os.ReadFile(png)
	require.NoError(t, err)
	require.Equal(t, []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}, data[:8])
}
