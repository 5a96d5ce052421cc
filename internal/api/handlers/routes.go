package handlers

import "github.com/go-chi/chi/v5"

// Mount registers the API routes on r.
func Mount(r chi.Router, ing *IngestHandler, docs *DocumentHandler) {
	r.Route("/api", func(api chi.Router) {
		api.Post("/ingest", ing.Ingest)
		api.Get("/ingest/jobs/{id}", ing.Job)
		api.Post("/documents/upload", ing.Upload)

		api.Get("/documents", docs.List)
		api.Get("/documents/{id}", docs.Get)
		api.Get("/documents/{id}/chunks", docs.Chunks)
		api.Get("/documents/{id}/search", docs.Search)
	})
}
