package delivery

import (
	"time"

	"github.com/Vovarama1992/go-utils/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
)

func RegisterRoutes(r chi.Router, h *Handler, submitLimit int) {
	// --- страница ---
	r.With(httputil.RecoverMiddleware).
		Get("/", h.Page)

	// --- сессии ---
	r.Route("/api/sessions", func(sr chi.Router) {
		sr.Use(httputil.RecoverMiddleware)

		sr.Post("/", h.CreateSession)

		sr.Route("/{session_id}", func(pr chi.Router) {
			pr.Get("/", h.GetSession)
			pr.Delete("/", h.CloseSession)
			pr.Put("/input", h.UpdateInput)
			pr.Post("/help", h.Help)

			// --- перевод ---
			translate := pr.With()
			if submitLimit > 0 {
				translate = pr.With(httprate.LimitByIP(submitLimit, time.Minute))
			}
			translate.Post("/translate", h.Translate)

			// --- воспроизведение ---
			pr.Post("/playback/toggle", h.TogglePlayback)
			pr.Post("/playback/ended", h.PlaybackEnded)
			pr.Post("/playback/failed", h.PlaybackFailed)
			pr.Get("/audio", h.Audio)

			// --- обновления ---
			pr.Get("/ws", h.Stream)
		})
	})
}
