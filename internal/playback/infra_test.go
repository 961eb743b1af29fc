package playback

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

type memMirror struct {
	keys []string
	data [][]byte
	err  error
}

func (m *memMirror) PutObject(_ context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	b, _ := io.ReadAll(r)
	m.keys = append(m.keys, key)
	m.data = append(m.data, b)
	return "https://s3.example/bucket/" + key, nil
}

func newAudioHost(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	hits := &atomic.Int32{}
	mux := http.NewServeMux()
	mux.HandleFunc("/clip.wav", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "audio/wav")
		w.Write([]byte("RIFF....WAVEfmt "))
	})
	mux.HandleFunc("/file=tmp/out.wav", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write([]byte("RIFF"))
	})
	mux.HandleFunc("/page.html", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html>sleeping</html>"))
	})
	mux.HandleFunc("/empty.wav", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/wav")
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, hits
}

func TestClipResource_LoadPlay(t *testing.T) {
	t.Parallel()

	srv, hits := newAudioHost(t)
	mirror := &memMirror{}
	r := NewClipResource(srv.Client(), mirror, nil)

	if err := r.Play(context.Background()); !errors.Is(err, ErrNotLoaded) {
		t.Fatalf("expected ErrNotLoaded before Load, got %v", err)
	}

	uri := srv.URL + "/clip.wav"
	if err := r.Load(context.Background(), uri); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := r.Load(context.Background(), uri); err != nil {
		t.Fatalf("second Load: %v", err)
	}
	if hits.Load() != 1 {
		t.Errorf("expected the same source to be fetched once, got %d", hits.Load())
	}

	if err := r.Play(context.Background()); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if !r.Playing() {
		t.Error("expected playing")
	}

	clip, ok := r.Current()
	if !ok {
		t.Fatal("expected current clip")
	}
	if clip.ContentType != "audio/wav" || !bytes.HasPrefix(clip.Data, []byte("RIFF")) {
		t.Errorf("unexpected clip %+v", clip)
	}
	if len(mirror.keys) != 1 || clip.MirrorURL != "https://s3.example/bucket/"+mirror.keys[0] {
		t.Errorf("expected clip to be mirrored, got keys=%v url=%s", mirror.keys, clip.MirrorURL)
	}

	r.Pause()
	if r.Playing() {
		t.Error("expected paused")
	}
	r.Reset()
	if _, ok := r.Current(); ok {
		t.Error("expected no clip after Reset")
	}
}

func TestClipResource_OctetStreamWithAudioExtension(t *testing.T) {
	t.Parallel()

	srv, _ := newAudioHost(t)
	r := NewClipResource(srv.Client(), nil, nil)

	if err := r.Load(context.Background(), srv.URL+"/file=tmp/out.wav"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	clip, _ := r.Current()
	if clip.ContentType != "audio/wav" {
		t.Errorf("expected content type resolved from extension, got %q", clip.ContentType)
	}
}

func TestClipResource_Rejects(t *testing.T) {
	t.Parallel()

	srv, _ := newAudioHost(t)
	r := NewClipResource(srv.Client(), nil, nil)

	for _, p := range []string{"/page.html", "/empty.wav", "/missing.wav"} {
		if err := r.Load(context.Background(), srv.URL+p); err == nil {
			t.Errorf("%s: expected load error", p)
		}
	}
	if _, ok := r.Current(); ok {
		t.Error("failed loads must not bind a clip")
	}
}

func TestClipResource_MirrorFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	srv, _ := newAudioHost(t)
	r := NewClipResource(srv.Client(), &memMirror{err: errors.New("bucket gone")}, nil)

	if err := r.Load(context.Background(), srv.URL+"/clip.wav"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	clip, _ := r.Current()
	if clip.MirrorURL != "" {
		t.Errorf("expected no mirror url, got %s", clip.MirrorURL)
	}
}
