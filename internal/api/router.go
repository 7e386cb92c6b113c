// Package api exposes the HTTP endpoints of the video-call backend.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func NewRouter(h *Handler, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, requestLogger, middleware.Recoverer)

	if len(allowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   allowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

		r.Post("/signup", h.Signup)
		r.Post("/login", h.Login)

		r.Post("/meeting", h.CreateMeeting)
		r.Post("/meeting-add-participant", h.AddParticipant)
		r.Get("/meeting/{callId}/participants", h.Participants)
		r.Get("/meeting-participants", h.Participants)

		r.Post("/recording", h.Recording)
		r.Post("/call/{callId}/ended", h.CallEnded)
		r.Get("/jobs/{jobId}", h.GetJob)

		r.Get("/logs/{userId}", h.Logs)
		r.Get("/fetchlogs", h.Logs)
	})

	return r
}
