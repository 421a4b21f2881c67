package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/atinyakov/TagLock/internal/middleware"
)

// NewRouter constructs the TagLock API handler.
//
// Routes:
//
//	GET    /api/status               → lockHandler.Status
//	GET    /api/profiles             → profileHandler.List
//	POST   /api/profiles             → profileHandler.Create
//	DELETE /api/profiles             → profileHandler.Delete
//	PUT    /api/profiles/{id}        → profileHandler.Update
//	GET    /api/profiles/{id}/payload → profileHandler.Payload
//	POST   /api/profiles/{id}/tag    → profileHandler.WriteTag
//	POST   /api/scan                 → lockHandler.Scan
//	POST   /api/scan/tag             → lockHandler.ScanTag
//	POST   /api/emergency-unlock     → lockHandler.EmergencyUnlock
//
// Middleware chain (applied in order):
//  1. AllowContentType("application/json") for requests with a body
//  2. WithRequestLogging(logger)
//  3. CertAuth, only when requireClientCert is set
func NewRouter(
	profileHandler *ProfileHandler,
	lockHandler *LockHandler,
	logger *zap.Logger,
	requireClientCert bool,
) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.AllowContentType("application/json"))
	r.Use(middleware.WithRequestLogging(logger))
	if requireClientCert {
		r.Use(middleware.CertAuth)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", lockHandler.Status)

		r.Route("/profiles", func(r chi.Router) {
			r.Get("/", profileHandler.List)
			r.Post("/", profileHandler.Create)
			r.Delete("/", profileHandler.Delete)
			r.Put("/{id}", profileHandler.Update)
			r.Get("/{id}/payload", profileHandler.Payload)
			r.Post("/{id}/tag", profileHandler.WriteTag)
		})

		r.Post("/scan", lockHandler.Scan)
		r.Post("/scan/tag", lockHandler.ScanTag)
		r.Post("/emergency-unlock", lockHandler.EmergencyUnlock)
	})

	return r
}
