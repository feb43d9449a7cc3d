package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(apiHandler *APIHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)

	r.Route("/api", func(r chi.Router) {
		// Public routes
		r.Post("/login", apiHandler.LoginHandler)
		r.Post("/logout", apiHandler.LogoutHandler)
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
		})

		// Writes coming from the automation
		r.Route("/hooks", func(r chi.Router) {
			r.Use(apiHandler.SignatureMiddleware)

			r.Post("/history", apiHandler.HistoryHookHandler)
			r.Post("/clients", apiHandler.ClientHookHandler)
			r.Delete("/clients/{sessionID}", apiHandler.DeleteClientHookHandler)
		})

		// Dashboard routes
		r.Group(func(r chi.Router) {
			r.Use(apiHandler.JWTAuthMiddleware)

			r.Get("/status", apiHandler.StatusHandler)
			r.Get("/metrics", apiHandler.MetricsHandler)

			r.Get("/leads", apiHandler.ListLeadsHandler)
			r.Post("/leads/refresh", apiHandler.RefreshLeadsHandler)
			r.Post("/leads/{sessionID}/pause", apiHandler.PauseLeadHandler)
			r.Delete("/leads/{sessionID}", apiHandler.DeleteLeadHandler)
			r.Get("/leads/{sessionID}/messages", apiHandler.GetMessagesHandler)
			r.Post("/leads/{sessionID}/messages", apiHandler.PostMessageHandler)

			r.Post("/whatsapp/qr", apiHandler.QRCodeHandler)

			r.Get("/ws", apiHandler.WebSocketHandler)
		})
	})

	return r
}
