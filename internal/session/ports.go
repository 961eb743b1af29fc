package session

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/Vovarama1992/kashmiri_translator/internal/diagnostics"
	"github.com/Vovarama1992/kashmiri_translator/internal/inference"
	"github.com/Vovarama1992/kashmiri_translator/internal/playback"
	"github.com/Vovarama1992/kashmiri_translator/internal/translator"
)

var ErrNotFound = errors.New("session not found")

// Deps: общие зависимости, из которых собирается каждая сессия.
type Deps struct {
	Client     inference.Client
	Diag       diagnostics.Recorder
	AudioHTTP  *http.Client
	Mirror     playback.Mirror
	Log        *zap.Logger
	Translator []translator.Option
}

// Snapshot: всё, что нужно странице для перерисовки.
type Snapshot struct {
	SessionID   string                 `json:"session_id"`
	Input       translator.InputState  `json:"input"`
	Result      translator.ResultState `json:"result"`
	Playback    playback.State         `json:"playback"`
	ArchiveURL  string                 `json:"archive_url,omitempty"`
	HelpVisible bool                   `json:"help_visible"`
	// как на странице: кнопка неактивна во время Pending и при пустом поле
	CanSubmit bool `json:"can_submit"`
}
