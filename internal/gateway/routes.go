package gateway

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// router assembles the API surface. Health stays unauthenticated so
// orchestration probes work without credentials.
func (s *Server) router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	if len(s.cfg.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.cfg.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
			MaxAge:         300,
		}))
	}

	r.Get("/health", s.handleHealth)

	r.Route("/stores/{storeID}", func(r chi.Router) {
		r.Use(s.requireAuth)

		r.Route("/session", func(r chi.Router) {
			r.Post("/", s.handleSessionInit)
			r.Get("/", s.handleSessionStatus)
			r.Delete("/", s.handleSessionDisconnect)
		})

		r.Get("/settings", s.handleSettingsGet)
		r.Put("/settings", s.handleSettingsPut)

		r.Get("/contacts", s.handleContactsList)
		r.Get("/contacts/{contactID}/messages", s.handleMessagesList)

		r.Post("/messages", s.handleManualSend)

		r.Get("/products", s.handleProductsList)
		r.Post("/products", s.handleProductPut)
	})

	return r
}

// requestLogger logs one line per request at debug level.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}
