package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// conditionalHTTPLogger only logs HTTP requests when HTTP logging is enabled
func (h *Handlers) conditionalHTTPLogger(next http.Handler) http.Handler {
	logger := middleware.Logger(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.Log != nil && h.Log.IsHTTPLoggingEnabled() {
			logger.ServeHTTP(w, r)
		} else {
			next.ServeHTTP(w, r)
		}
	})
}

// Router returns a configured chi router with all routes
func (h *Handlers) Router() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.conditionalHTTPLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RedirectSlashes)

	// Inbound chat (always acknowledged)
	r.Post("/slack/events", h.handleSlackEvents)
	r.Post("/fulfillment", h.handleFulfillment)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	// Live feed and pages only exist when wired with templates and a hub
	if h.Hub != nil {
		r.Get("/ws", h.Hub.ServeWs)
	}
	if h.staticServer != nil {
		r.Handle("/static/*", http.StripPrefix("/static/", h.staticServer))
	}
	if h.templates != nil {
		r.Get("/", h.handleIndex)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))

		// Scheduled triggers
		r.Post("/triggers/{name}", h.handleTrigger)

		// Surveys
		r.Get("/api/surveys/current", h.handleGetCurrentSurvey)
		r.Get("/api/surveys/current/qr", h.handleSurveyQR)
		r.Get("/api/surveys/{weekID}", h.handleGetSurvey)

		// Option catalog
		r.Get("/api/options", h.handleGetOptions)
		r.Put("/api/options/{id}", h.handlePutOption)
		r.Delete("/api/options/{id}", h.handleDeleteOption)
	})

	return r
}
