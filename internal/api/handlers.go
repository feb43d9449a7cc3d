package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jmau0/riobutcher/internal/auth"
	"github.com/jmau0/riobutcher/internal/core"
	"github.com/jmau0/riobutcher/internal/export"
	"github.com/jmau0/riobutcher/internal/store"
)

const authCookieName = "auth"

type contextKey string

const usernameKey contextKey = "username"

// Store is what the handlers need from storage: the read side shared with
// the services plus the writes performed by the ingest hooks.
type Store interface {
	core.Store
	UpsertClient(ctx context.Context, c *store.Client) error
	InsertHistory(ctx context.Context, rec *store.HistoryRecord) error
	DeleteClient(ctx context.Context, sessionID string) error
	CountClients(ctx context.Context) (int, error)
}

type Options struct {
	JWTSecret             string
	DashboardUser         string
	DashboardPasswordHash string
	IngestSecret          string
	WhatsAppInstance      string
	DedupeWindow          time.Duration
}

type APIHandler struct {
	store         Store
	leads         *core.LeadService
	conversations *core.ConversationService
	metrics       *core.MetricsService
	opts          Options
	logger        *slog.Logger
}

func NewAPIHandler(s Store, leads *core.LeadService, conversations *core.ConversationService, metrics *core.MetricsService, opts Options, logger *slog.Logger) *APIHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &APIHandler{
		store:         s,
		leads:         leads,
		conversations: conversations,
		metrics:       metrics,
		opts:          opts,
		logger:        logger,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// JWTAuthMiddleware accepts the token as a Bearer header or as the auth
// cookie set at login.
func (h *APIHandler) JWTAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := ""
		if authHeader := r.Header.Get("Authorization"); authHeader != "" {
			tokenString = strings.TrimPrefix(authHeader, "Bearer ")
		} else if cookie, err := r.Cookie(authCookieName); err == nil {
			tokenString = cookie.Value
		}
		if tokenString == "" {
			http.Error(w, "Authorization is required", http.StatusUnauthorized)
			return
		}

		username, err := auth.ValidateJWT(h.opts.JWTSecret, tokenString)
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), usernameKey, username)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	if req.Username == "" || req.Password == "" {
		http.Error(w, "Username and password are required", http.StatusBadRequest)
		return
	}

	if req.Username != h.opts.DashboardUser || !auth.CheckPasswordHash(req.Password, h.opts.DashboardPasswordHash) {
		h.logger.Warn("failed login attempt", "username", req.Username)
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	token, err := auth.GenerateJWT(h.opts.JWTSecret, req.Username)
	if err != nil {
		h.logger.Error("failed to generate token", "username", req.Username, "err", err)
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     authCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(auth.TokenTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (h *APIHandler) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     authCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

type StatusResponse struct {
	Storage       string `json:"storage"`
	StoredClients int    `json:"stored_clients"`
	LeadsLoaded   bool   `json:"leads_loaded"`
	UrgentCount   int    `json:"urgent_count"`
	Instance      string `json:"instance"`
}

func (h *APIHandler) StatusHandler(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Storage:     core.StorageStatus(r.Context(), h.store),
		LeadsLoaded: h.leads.Loaded(),
		UrgentCount: h.leads.UrgentCount(),
		Instance:    h.opts.WhatsAppInstance,
	}
	n, err := h.store.CountClients(r.Context())
	if err != nil {
		h.logger.Warn("failed to count clients", "err", err)
	}
	resp.StoredClients = n
	writeJSON(w, http.StatusOK, resp)
}

type LeadsResponse struct {
	Leads       []core.Lead `json:"leads"`
	UrgentCount int         `json:"urgent_count"`
}

func (h *APIHandler) ListLeadsHandler(w http.ResponseWriter, r *http.Request) {
	if !h.leads.Loaded() {
		if _, err := h.leads.Refresh(r.Context()); err != nil {
			http.Error(w, "Failed to load leads", http.StatusBadGateway)
			return
		}
	}

	filter := core.LeadFilter{
		Tab:    r.URL.Query().Get("tab"),
		Search: r.URL.Query().Get("q"),
	}
	writeJSON(w, http.StatusOK, LeadsResponse{
		Leads:       h.leads.Leads(filter),
		UrgentCount: h.leads.UrgentCount(),
	})
}

func (h *APIHandler) RefreshLeadsHandler(w http.ResponseWriter, r *http.Request) {
	leads, err := h.leads.Refresh(r.Context())
	if err != nil {
		http.Error(w, "Failed to refresh leads", http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, LeadsResponse{Leads: leads, UrgentCount: h.leads.UrgentCount()})
}

type PauseRequest struct {
	Paused bool `json:"paused"`
}

// LeadResponse carries a lead after an optimistic change. Warning is set
// when the workflow could not be notified; the change is kept anyway.
type LeadResponse struct {
	Lead    core.Lead `json:"lead"`
	Warning string    `json:"warning,omitempty"`
}

func (h *APIHandler) PauseLeadHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var req PauseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	lead, err := h.leads.TogglePause(r.Context(), sessionID, req.Paused)
	if errors.Is(err, core.ErrLeadNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	resp := LeadResponse{Lead: lead}
	if err != nil {
		resp.Warning = "Falha ao notificar a automação: " + err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *APIHandler) DeleteLeadHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	err := h.leads.Delete(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, core.ErrLeadNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
		} else {
			http.Error(w, "Failed to delete lead", http.StatusBadGateway)
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) GetMessagesHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	format := r.URL.Query().Get("format")

	exporter, err := export.NewExporter(format)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	turns, err := h.conversations.History(r.Context(), sessionID)
	if err != nil {
		h.logger.Error("failed to load conversation", "session_id", sessionID, "err", err)
		http.Error(w, "Failed to load conversation", http.StatusInternalServerError)
		return
	}

	t := &export.Transcript{SessionID: sessionID, Turns: turns}
	if lead, ok := h.leads.Lead(sessionID); ok {
		t.ClientName = lead.Name
		t.Phone = lead.Phone
	}

	w.Header().Set("Content-Type", exporter.ContentType())
	if format != "" && format != "json" {
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="conversa-%s.%s"`, sessionID, exporter.Extension()))
	}
	if err := exporter.Export(t, w); err != nil {
		h.logger.Error("failed to export conversation", "session_id", sessionID, "format", format, "err", err)
	}
}

type PostMessageRequest struct {
	Content string `json:"content"`
}

func (h *APIHandler) PostMessageHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var req PostMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	echo, err := h.conversations.Send(r.Context(), sessionID, req.Content)
	if errors.Is(err, core.ErrEmptyMessage) {
		http.Error(w, "Message content cannot be empty", http.StatusBadRequest)
		return
	}
	if err != nil {
		writeJSON(w, http.StatusAccepted, map[string]any{
			"turn":    echo,
			"warning": "Falha ao enviar pela automação: " + err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"turn": echo})
}

type QRRequest struct {
	Instance string `json:"instance"`
}

func (h *APIHandler) QRCodeHandler(w http.ResponseWriter, r *http.Request) {
	var req QRRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Instance == "" {
		req.Instance = h.opts.WhatsAppInstance
	}

	qr, err := h.conversations.GeneratePairingQR(r.Context(), req.Instance)
	if err != nil {
		http.Error(w, "Failed to generate QR code", http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"instance": req.Instance, "qrcode": qr})
}

func (h *APIHandler) MetricsHandler(w http.ResponseWriter, r *http.Request) {
	summary, err := h.metrics.Summary(r.Context())
	if err != nil {
		h.logger.Error("failed to compute metrics", "err", err)
		http.Error(w, "Failed to compute metrics", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
