package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"
)

// GetRouter initialises a new http router and applies all routes
func GetRouter(d Database) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	return applyRoutes(r, &handler{db: d})
}

func applyRoutes(r chi.Router, h *handler) chi.Router {
	r.Get("/", h.getIndex)
	r.Route("/tables", func(r chi.Router) {
		r.Get("/", h.listTables)
		r.Route("/{table}", func(r chi.Router) {
			r.Get("/count", h.count)
			r.Post("/upsert", h.upsert)
			r.Post("/batch", h.insertBatch)
			r.Get("/records", h.listRecords)
			r.Post("/records", h.insertRecord)
			r.Delete("/records", h.truncate)
			r.Get("/records/{pk}", h.getRecord)
			r.Put("/records/{pk}", h.updateRecord)
		})
	})

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		log.WithFields(log.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   ww.Status(),
			"duration": time.Since(start),
		}).Debug("handled request")
	})
}
