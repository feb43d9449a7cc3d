package api

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/jmau0/riobutcher/internal/store"
)

const maxHookBody = 1 << 20

// SignatureMiddleware checks the X-Signature-256 header of inbound hooks
// when an ingest secret is configured.
func (h *APIHandler) SignatureMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.opts.IngestSecret == "" {
			next.ServeHTTP(w, r)
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxHookBody))
		if err != nil {
			http.Error(w, "Failed to read body", http.StatusBadRequest)
			return
		}

		sig := r.Header.Get("X-Signature-256")
		if sig == "" {
			http.Error(w, "Missing signature", http.StatusUnauthorized)
			return
		}
		if !verifyHMAC(body, h.opts.IngestSecret, sig) {
			http.Error(w, "Invalid signature", http.StatusForbidden)
			return
		}

		r.Body = io.NopCloser(bytes.NewReader(body))
		next.ServeHTTP(w, r)
	})
}

// verifyHMAC verifies a "sha256=<hex>" signature of body.
func verifyHMAC(body []byte, secret, signature string) bool {
	hexSig, ok := strings.CutPrefix(signature, "sha256=")
	if !ok {
		return false
	}
	expected, err := hex.DecodeString(hexSig)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), expected)
}

// HistoryHookRequest is one message appended by the automation. Message is
// stored verbatim, whatever JSON shape it has.
type HistoryHookRequest struct {
	SessionID string          `json:"session_id"`
	Role      string          `json:"role"`
	Message   json.RawMessage `json:"message"`
	CreatedAt string          `json:"created_at"`
}

func (h *APIHandler) HistoryHookHandler(w http.ResponseWriter, r *http.Request) {
	var req HistoryHookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.SessionID == "" {
		http.Error(w, "session_id is required", http.StatusBadRequest)
		return
	}

	rec := &store.HistoryRecord{
		SessionID: req.SessionID,
		Role:      req.Role,
		Message:   storedMessage(req.Message),
		CreatedAt: req.CreatedAt,
	}
	if err := h.store.InsertHistory(r.Context(), rec); err != nil {
		h.logger.Error("failed to store history", "session_id", req.SessionID, "err", err)
		http.Error(w, "Failed to store message", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"id": rec.ID})
}

// storedMessage keeps JSON documents as they came and unwraps JSON strings so
// plain text lands in the column as text. null becomes an empty message.
func storedMessage(raw json.RawMessage) json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return nil
	}
	var s string
	if trimmed[0] == '"' && json.Unmarshal(trimmed, &s) == nil {
		return json.RawMessage(s)
	}
	return trimmed
}

type ClientHookRequest struct {
	SessionID  string `json:"session_id"`
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	Attendance string `json:"attendance"`
	Urgent     any    `json:"urgent"`
}

func (h *APIHandler) ClientHookHandler(w http.ResponseWriter, r *http.Request) {
	var req ClientHookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.SessionID == "" {
		http.Error(w, "session_id is required", http.StatusBadRequest)
		return
	}
	switch req.Attendance {
	case "", store.AttendanceHuman, store.AttendanceAI:
	default:
		http.Error(w, "attendance must be human or ia", http.StatusBadRequest)
		return
	}

	c := &store.Client{
		SessionID:  req.SessionID,
		Name:       req.Name,
		Phone:      req.Phone,
		Attendance: req.Attendance,
	}
	if req.Urgent != nil {
		c.Urgent = fmt.Sprint(req.Urgent)
	}
	if err := h.store.UpsertClient(r.Context(), c); err != nil {
		h.logger.Error("failed to upsert client", "session_id", req.SessionID, "err", err)
		http.Error(w, "Failed to store client", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// DeleteClientHookHandler removes a client and its history once the
// workflow has deleted the lead on its side.
func (h *APIHandler) DeleteClientHookHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	err := h.store.DeleteClient(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "client not found", http.StatusNotFound)
		} else {
			h.logger.Error("failed to delete client", "session_id", sessionID, "err", err)
			http.Error(w, "Failed to delete client", http.StatusInternalServerError)
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
