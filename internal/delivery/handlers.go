package delivery

import (
	"bytes"
	"errors"
	"net/http"
	"time"

	"github.com/Vovarama1992/go-utils/logger"
	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"

	"github.com/Vovarama1992/kashmiri_translator/internal/session"
	"github.com/Vovarama1992/kashmiri_translator/internal/translator"
)

const serviceName = "kashmiri_translator"

type Handler struct {
	sessions *session.Registry
	log      *logger.ZapLogger
}

func NewHandler(sessions *session.Registry, log *logger.ZapLogger) *Handler {
	return &Handler{
		sessions: sessions,
		log:      log,
	}
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id := chi.URLParam(r, "session_id")
	s, err := h.sessions.Get(id)
	if err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return nil, false
	}
	return s, true
}

func writeView(w http.ResponseWriter, status int, snap session.Snapshot) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(buildView(snap))
}

// POST /api/sessions
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	s := h.sessions.Create()
	writeView(w, http.StatusCreated, s.Snapshot())
}

// GET /api/sessions/{session_id}
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	writeView(w, http.StatusOK, s.Snapshot())
}

// DELETE /api/sessions/{session_id}
func (h *Handler) CloseSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "session_id")
	if err := h.sessions.Close(id); err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PUT /api/sessions/{session_id}/input
func (h *Handler) UpdateInput(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var body struct {
		Text                    *string `json:"text"`
		SourceIsPrimaryLanguage *bool   `json:"source_is_primary_language"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	snap := s.Snapshot()
	if body.Text != nil {
		snap = s.SetText(*body.Text)
	}
	if body.SourceIsPrimaryLanguage != nil {
		snap = s.SetSourceIsPrimaryLanguage(*body.SourceIsPrimaryLanguage)
	}

	writeView(w, http.StatusOK, snap)
}

// POST /api/sessions/{session_id}/translate[?wait=true]
func (h *Handler) Translate(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	task, err := s.Submit(r.Context())
	switch {
	case errors.Is(err, translator.ErrEmptyInput):
		// пустой ввод молча игнорируется
		writeView(w, http.StatusOK, s.Snapshot())
		return
	case errors.Is(err, translator.ErrBusy):
		writeView(w, http.StatusConflict, s.Snapshot())
		return
	case errors.Is(err, translator.ErrClosed):
		http.Error(w, "session closed", http.StatusGone)
		return
	case err != nil:
		h.log.Log(logger.LogEntry{Level: "error", Message: "submit failed", Error: err, Service: serviceName})
		http.Error(w, "submit failed", http.StatusInternalServerError)
		return
	}

	if r.URL.Query().Get("wait") == "true" {
		if _, err := task.Wait(r.Context()); err != nil {
			// клиент ушёл; запрос продолжится без него
			return
		}
		writeView(w, http.StatusOK, s.Snapshot())
		return
	}

	writeView(w, http.StatusAccepted, s.Snapshot())
}

// POST /api/sessions/{session_id}/playback/toggle
func (h *Handler) TogglePlayback(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	s.TogglePlayback(r.Context())
	writeView(w, http.StatusOK, s.Snapshot())
}

// POST /api/sessions/{session_id}/playback/ended
func (h *Handler) PlaybackEnded(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	s.PlaybackEnded()
	writeView(w, http.StatusOK, s.Snapshot())
}

// POST /api/sessions/{session_id}/playback/failed
func (h *Handler) PlaybackFailed(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var body struct {
		Reason string `json:"reason"`
	}
	// тело необязательно
	_ = json.NewDecoder(r.Body).Decode(&body)
	if body.Reason == "" {
		body.Reason = "unknown"
	}

	s.PlaybackFailed(r.Context(), body.Reason)
	writeView(w, http.StatusOK, s.Snapshot())
}

// GET /api/sessions/{session_id}/audio
func (h *Handler) Audio(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	clip, ok := s.Clip()
	if !ok {
		http.Error(w, "no audio loaded", http.StatusNotFound)
		return
	}

	if clip.ContentType != "" {
		w.Header().Set("Content-Type", clip.ContentType)
	}
	w.Header().Set("Cache-Control", "no-store")
	http.ServeContent(w, r, "clip", time.Time{}, bytes.NewReader(clip.Data))
}

// POST /api/sessions/{session_id}/help
func (h *Handler) Help(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var body struct {
		Visible bool `json:"visible"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	if body.Visible {
		writeView(w, http.StatusOK, s.ShowHelp())
		return
	}
	writeView(w, http.StatusOK, s.DismissHelp())
}
