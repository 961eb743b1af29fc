package playback

import (
	"context"
	"errors"
	"io"
)

type State string

const (
	Stopped State = "stopped"
	Playing State = "playing"
)

var (
	ErrNotLoaded = errors.New("no audio loaded")
	ErrNotAudio  = errors.New("resource is not audio")
)

// Resource: единственный аудио-ресурс сессии.
// Load всегда заменяет предыдущий источник.
type Resource interface {
	Load(ctx context.Context, uri string) error
	Play(ctx context.Context) error
	Pause()
	Reset()
}

// Mirror: копия клипа во внешнем хранилище (S3)
type Mirror interface {
	PutObject(ctx context.Context, key string, r io.Reader, size int64, contentType string) (publicURL string, err error)
}

// Clip: загруженный клип, отдаётся браузеру.
type Clip struct {
	Source      string
	ContentType string
	Data        []byte
	MirrorURL   string
}
