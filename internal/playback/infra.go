package playback

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/xid"
	"go.uber.org/zap"
)

const maxClipBytes = 32 << 20

// ClipResource скачивает клип по audioRef и держит его в памяти,
// браузер проигрывает его через /audio сессии.
type ClipResource struct {
	client *http.Client
	mirror Mirror
	log    *zap.Logger

	mu      sync.Mutex
	clip    *Clip
	playing bool
}

func NewClipResource(client *http.Client, mirror Mirror, log *zap.Logger) *ClipResource {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ClipResource{client: client, mirror: mirror, log: log}
}

func (r *ClipResource) Load(ctx context.Context, uri string) error {
	r.mu.Lock()
	if r.clip != nil && r.clip.Source == uri {
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()

	clip, err := r.fetch(ctx, uri)
	if err != nil {
		return err
	}

	if r.mirror != nil {
		key := clipKey(uri, clip.ContentType)
		u, err := r.mirror.PutObject(ctx, key, bytes.NewReader(clip.Data), int64(len(clip.Data)), clip.ContentType)
		if err != nil {
			// без копии клип всё равно играет
			r.log.Warn("clip mirror failed", zap.String("key", key), zap.Error(err))
		} else {
			clip.MirrorURL = u
		}
	}

	r.mu.Lock()
	r.clip = clip
	r.playing = false
	r.mu.Unlock()

	r.log.Debug("clip loaded",
		zap.String("source", uri),
		zap.String("size", humanize.Bytes(uint64(len(clip.Data)))),
	)
	return nil
}

func (r *ClipResource) fetch(ctx context.Context, uri string) (*Clip, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, fmt.Errorf("build clip request: %w", err)
	}
	req.Header.Set("Accept", "audio/*")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch clip: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch clip: status %s", resp.Status)
	}

	ct := resp.Header.Get("Content-Type")
	if !isAudio(ct, uri) {
		return nil, fmt.Errorf("%w: %q", ErrNotAudio, ct)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxClipBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read clip: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrNotAudio)
	}
	if len(data) > maxClipBytes {
		return nil, fmt.Errorf("clip exceeds %s", humanize.Bytes(maxClipBytes))
	}

	if ct == "" || strings.HasPrefix(ct, "application/octet-stream") {
		ct = audioTypes[strings.ToLower(path.Ext(uri))]
	}

	return &Clip{Source: uri, ContentType: ct, Data: data}, nil
}

// isAudio: audio/* или бинарный поток с аудио-расширением в URL.
func isAudio(contentType, uri string) bool {
	mt, _, _ := mime.ParseMediaType(contentType)
	if strings.HasPrefix(mt, "audio/") {
		return true
	}
	if mt == "" || mt == "application/octet-stream" {
		_, ok := audioTypes[strings.ToLower(path.Ext(uri))]
		return ok
	}
	return false
}

var audioTypes = map[string]string{
	".wav":  "audio/wav",
	".mp3":  "audio/mpeg",
	".ogg":  "audio/ogg",
	".flac": "audio/flac",
	".m4a":  "audio/mp4",
	".webm": "audio/webm",
}

func clipKey(uri, contentType string) string {
	ext := path.Ext(uri)
	if ext == "" {
		if exts, _ := mime.ExtensionsByType(contentType); len(exts) > 0 {
			ext = exts[0]
		}
	}
	date := time.Now().Format("2006-01-02")
	return fmt.Sprintf("clips/%s/%s%s", date, xid.New().String(), ext)
}

func (r *ClipResource) Play(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.clip == nil {
		return ErrNotLoaded
	}
	r.playing = true
	return nil
}

func (r *ClipResource) Pause() {
	r.mu.Lock()
	r.playing = false
	r.mu.Unlock()
}

func (r *ClipResource) Reset() {
	r.mu.Lock()
	r.clip = nil
	r.playing = false
	r.mu.Unlock()
}

// Current: привязанный клип, если есть.
func (r *ClipResource) Current() (*Clip, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.clip == nil {
		return nil, false
	}
	return r.clip, true
}

func (r *ClipResource) Playing() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.playing
}
