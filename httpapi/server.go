// Package httpapi exposes the platform over HTTP: a chi router, bearer-token
// authentication, JSON handlers, and one place that maps domain errors to
// statuses.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"missionflow/admin"
	"missionflow/auth"
	"missionflow/chat"
	"missionflow/mission"
	"missionflow/payment"
	"missionflow/user"
)

// Server bundles the services the handlers dispatch to.
type Server struct {
	auth     *auth.Service
	users    *user.Service
	missions *mission.Service
	payments *payment.Service
	admin    *admin.Service
	hub      *chat.Hub
	messages chat.Repository
}

// Config wires a Server.
type Config struct {
	Auth     *auth.Service
	Users    *user.Service
	Missions *mission.Service
	Payments *payment.Service
	Admin    *admin.Service
	Hub      *chat.Hub
	Messages chat.Repository
}

// New builds the API handler.
func New(cfg Config) http.Handler {
	s := &Server{
		auth:     cfg.Auth,
		users:    cfg.Users,
		missions: cfg.Missions,
		payments: cfg.Payments,
		admin:    cfg.Admin,
		hub:      cfg.Hub,
		messages: cfg.Messages,
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", s.handleRegister)
			r.Post("/login", s.handleLogin)
			r.With(s.requireAuth).Get("/me", s.handleMe)
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Patch("/profile", s.handleUpdateProfile)
			r.Get("/providers/nearby", s.handleNearbyProviders)
		})

		r.Route("/missions", func(r chi.Router) {
			r.Use(s.requireAuth)
			r.With(s.requireRole(auth.RoleClient)).Post("/", s.handleCreateMission)
			r.Get("/", s.handleListMissions)
			r.Get("/user", s.handleListUserMissions)
			r.Get("/{id}", s.handleGetMission)
			r.With(s.requireRole(auth.RoleProvider)).Post("/{id}/accept", s.handleAcceptMission)
			r.Patch("/{id}/status", s.handleUpdateMissionStatus)
			r.Post("/{id}/cancel", s.handleCancelMission)
		})

		r.Route("/payments", func(r chi.Router) {
			// The webhook authenticates with its signature, not a bearer token.
			r.Post("/webhook", s.handlePaymentWebhook)

			r.Group(func(r chi.Router) {
				r.Use(s.requireAuth)
				r.Post("/create-intent", s.handleCreateIntent)
				r.Post("/confirm", s.handleConfirmPayment)
				r.Get("/history", s.handlePaymentHistory)
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(s.requireAuth, s.requireRole(auth.RoleAdmin))
			r.Get("/stats", s.handleAdminStats)
			r.Get("/users", s.handleAdminUsers)
			r.Get("/missions", s.handleAdminMissions)
			r.Get("/payments", s.handleAdminPayments)
		})
	})

	r.With(s.requireAuth).Get("/ws", s.handleWS)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	chat.ServeWS(s.hub, w, r, p.UserID)
}
