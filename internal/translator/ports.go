package translator

import (
	"errors"
	"strings"
)

const (
	// Endpoint: Space с пайплайном перевода и синтеза.
	Endpoint  = "GAASH-Lab/Matcha-TTS-Kashmiri-Demo"
	Operation = "/pipeline"

	MinSpeaker = 1
	MaxSpeaker = 420

	// FailureMessage: единственный текст ошибки, который видит пользователь.
	FailureMessage = "Failed to translate. The model might be sleeping or busy."
)

var (
	ErrEmptyInput = errors.New("empty input")
	ErrBusy       = errors.New("translation already pending")
	ErrClosed     = errors.New("orchestrator closed")
)

// InputState: то, что пользователь ввёл на странице.
type InputState struct {
	Text                    string `json:"text"`
	SourceIsPrimaryLanguage bool   `json:"source_is_primary_language"`
}

func (in InputState) Blank() bool {
	return strings.TrimSpace(in.Text) == ""
}

// RequestParameters: неизменяемый снимок запроса на момент отправки.
type RequestParameters struct {
	RequestID     string
	Text          string
	DirectionFlag bool
	SpeakerID     int
}

type Status string

const (
	StatusEmpty   Status = "empty"
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// ResultState: ровно один вариант активен в каждый момент.
// TranslatedText/AudioRef заполнены только в Success, Message: только в Failure.
type ResultState struct {
	Status         Status `json:"status"`
	TranslatedText string `json:"translated_text,omitempty"`
	AudioRef       string `json:"audio_ref,omitempty"`
	Message        string `json:"message,omitempty"`
}

func Empty() ResultState   { return ResultState{Status: StatusEmpty} }
func Pending() ResultState { return ResultState{Status: StatusPending} }

func Success(text, audioRef string) ResultState {
	return ResultState{Status: StatusSuccess, TranslatedText: text, AudioRef: audioRef}
}

func Failed(message string) ResultState {
	return ResultState{Status: StatusFailure, Message: message}
}

func (r ResultState) HasAudio() bool {
	return r.Status == StatusSuccess && r.AudioRef != ""
}
