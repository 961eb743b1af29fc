package delivery

import (
	"unicode/utf8"

	"github.com/dustin/go-humanize"

	"github.com/Vovarama1992/kashmiri_translator/internal/playback"
	"github.com/Vovarama1992/kashmiri_translator/internal/session"
	"github.com/Vovarama1992/kashmiri_translator/internal/translator"
)

const (
	outputHeading = "Kashmiri"
	loadingText   = "Have some Nun Chai till we get your results"
	emptyText     = "Translation will appear here"
)

// View: снимок сессии плюс подписи для страницы.
type View struct {
	session.Snapshot

	InputLabel       string `json:"input_label"`
	InputPlaceholder string `json:"input_placeholder"`
	CharsLabel       string `json:"chars_label"`
	SubmitLabel      string `json:"submit_label"`
	OutputHeading    string `json:"output_heading"`
	Panel            string `json:"panel"` // loading | error | result | empty
	PlaybackVisible  bool   `json:"playback_visible"`
	PlaybackPlaying  bool   `json:"playback_playing"`
	AudioURL         string `json:"audio_url,omitempty"`
}

func buildView(snap session.Snapshot) View {
	v := View{
		Snapshot:      snap,
		OutputHeading: outputHeading,
		CharsLabel:    humanize.Comma(int64(utf8.RuneCountInString(snap.Input.Text))) + " chars",
		SubmitLabel:   "Translate",
	}

	if snap.Input.SourceIsPrimaryLanguage {
		v.InputLabel = "English"
		v.InputPlaceholder = "Enter English text here..."
	} else {
		v.InputLabel = "Kashmiri (Input)"
		v.InputPlaceholder = "Kashmiri text input..."
	}

	switch snap.Result.Status {
	case translator.StatusPending:
		v.Panel = "loading"
		v.SubmitLabel = "Generating..."
	case translator.StatusFailure:
		v.Panel = "error"
	case translator.StatusSuccess:
		if snap.Result.TranslatedText != "" {
			v.Panel = "result"
		} else {
			v.Panel = "empty"
		}
	default:
		v.Panel = "empty"
	}

	if snap.Result.HasAudio() {
		v.PlaybackVisible = true
		v.PlaybackPlaying = snap.Playback == playback.Playing
		v.AudioURL = "/api/sessions/" + snap.SessionID + "/audio"
	}

	return v
}
