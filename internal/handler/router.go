package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/Shivanand-hulikatti/event-reservations/internal/auth"
	"github.com/Shivanand-hulikatti/event-reservations/internal/model"
)

// RouterOptions configures the outer HTTP surface.
type RouterOptions struct {
	Logger *slog.Logger
	// CORSOrigins lists the allowed browser origins; "*" allows any.
	// Empty disables CORS headers.
	CORSOrigins []string
	// StaticDir, when set, is served at the root for any unmatched path.
	StaticDir string
}

// NewRouter builds the API router with its middleware stack.
func NewRouter(h *Handler, tokens *auth.Tokens, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(Logger(opts.Logger))
	if len(opts.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.CORSOrigins,
			AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-Id"},
			ExposedHeaders: []string{"Content-Disposition"},
			MaxAge:         300,
		}))
	}
	r.Use(middleware.Compress(5))

	adminOnly := RequireRoles(model.RoleAdmin)
	participantOnly := RequireRoles(model.RoleParticipant)

	r.Get("/health", HealthCheck)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.With(Authenticate(tokens)).Get("/profile", h.Profile)
	})

	r.Route("/events", func(r chi.Router) {
		r.Get("/public", h.ListPublishedEvents)

		r.Group(func(r chi.Router) {
			r.Use(Authenticate(tokens))
			r.Get("/{id}", h.GetEvent)

			r.Group(func(r chi.Router) {
				r.Use(adminOnly)
				r.Get("/", h.ListEvents)
				r.Post("/", h.CreateEvent)
				r.Get("/stats", h.EventStats)
				r.Patch("/{id}", h.UpdateEvent)
				r.Patch("/{id}/publish", h.PublishEvent)
				r.Patch("/{id}/cancel", h.CancelEvent)
				r.Delete("/{id}", h.DeleteEvent)
			})
		})
	})

	r.Route("/reservations", func(r chi.Router) {
		r.Use(Authenticate(tokens))

		r.Group(func(r chi.Router) {
			r.Use(participantOnly)
			r.Post("/{id}", h.CreateReservation)
			r.Get("/me", h.MyReservations)
			r.Patch("/{id}/cancel", h.CancelReservation)
		})

		r.Group(func(r chi.Router) {
			r.Use(adminOnly)
			r.Get("/", h.ListReservations)
			r.Get("/{id}", h.GetReservation)
			r.Patch("/{id}/confirm", h.ConfirmReservation)
			r.Patch("/{id}/refuse", h.RefuseReservation)
			r.Patch("/{id}/admin-cancel", h.AdminCancelReservation)
		})
	})

	r.With(Authenticate(tokens), participantOnly).Get("/tickets/{id}", h.DownloadTicket)

	if opts.StaticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(opts.StaticDir)))
	}
	return r
}
