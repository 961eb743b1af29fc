package diagnostics

import (
	"context"
	"time"
)

type Kind string

const (
	KindConnection Kind = "connection"
	KindInvocation Kind = "invocation"
	KindMalformed  Kind = "malformed"
	KindPlayback   Kind = "playback"
	KindUnknown    Kind = "unknown"
)

// Failure: подробности сбоя, которые пользователю не показываются.
type Failure struct {
	RequestID  string
	SessionID  string
	Kind       Kind
	Operation  string
	SpeakerID  int
	InputChars int
	Err        error
	At         time.Time
}

// Recorder: сохраняет сбой для диагностики
type Recorder interface {
	Record(ctx context.Context, f Failure) error
}

// Sink: один из приёмников (БД, админ-чат)
type Sink interface {
	Name() string
	Write(ctx context.Context, f Failure) error
}
