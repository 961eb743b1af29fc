package playback

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/Vovarama1992/kashmiri_translator/internal/diagnostics"
)

type fakeResource struct {
	mu      sync.Mutex
	loadErr error
	playErr error
	calls   []string
	loaded  string
}

func (f *fakeResource) Load(_ context.Context, uri string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "load "+uri)
	if f.loadErr != nil {
		return f.loadErr
	}
	f.loaded = uri
	return nil
}

func (f *fakeResource) Play(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "play "+f.loaded)
	return f.playErr
}

func (f *fakeResource) Pause() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "pause "+f.loaded)
}

func (f *fakeResource) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "reset")
	f.loaded = ""
}

func TestToggle_WithoutAudioIsNoop(t *testing.T) {
	t.Parallel()

	res := &fakeResource{}
	c := NewController(res, nil, nil, "s")

	if got := c.Toggle(context.Background(), ""); got != Stopped {
		t.Errorf("expected Stopped, got %s", got)
	}
	if len(res.calls) != 0 {
		t.Errorf("expected resource untouched, got %v", res.calls)
	}
}

func TestToggle_TwiceReturnsToStopped(t *testing.T) {
	t.Parallel()

	res := &fakeResource{}
	c := NewController(res, nil, nil, "s")

	var seen []State
	c.OnChange(func(s State) { seen = append(seen, s) })

	if got := c.Toggle(context.Background(), "https://host/a.wav"); got != Playing {
		t.Fatalf("expected Playing, got %s", got)
	}
	if got := c.Toggle(context.Background(), "https://host/a.wav"); got != Stopped {
		t.Fatalf("expected Stopped, got %s", got)
	}

	want := []string{"load https://host/a.wav", "play https://host/a.wav", "pause https://host/a.wav"}
	if len(res.calls) != len(want) {
		t.Fatalf("expected calls %v, got %v", want, res.calls)
	}
	for i := range want {
		if res.calls[i] != want[i] {
			t.Errorf("call %d: expected %q, got %q", i, want[i], res.calls[i])
		}
	}
	if len(seen) != 2 || seen[0] != Playing || seen[1] != Stopped {
		t.Errorf("unexpected transitions %v", seen)
	}
}

func TestToggle_StartFailureStaysStopped(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		res  *fakeResource
	}{
		{"load", &fakeResource{loadErr: ErrNotAudio}},
		{"play", &fakeResource{playErr: errors.New("decode error")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewController(tt.res, nil, nil, "s")
			notified := false
			c.OnChange(func(State) { notified = true })

			if got := c.Toggle(context.Background(), "https://host/a.wav"); got != Stopped {
				t.Errorf("expected Stopped, got %s", got)
			}
			if c.State() != Stopped || notified {
				t.Error("expected no transition on start failure")
			}
		})
	}
}

func TestEnded(t *testing.T) {
	t.Parallel()

	c := NewController(&fakeResource{}, nil, nil, "s")

	c.Ended()
	if c.State() != Stopped {
		t.Fatal("Ended on a stopped controller must stay Stopped")
	}

	c.Toggle(context.Background(), "https://host/a.wav")
	c.Ended()
	if c.State() != Stopped {
		t.Errorf("expected Stopped after natural completion, got %s", c.State())
	}
}

func TestReplace_ResetsAndDoesNotAutoplay(t *testing.T) {
	t.Parallel()

	res := &fakeResource{}
	c := NewController(res, nil, nil, "s")

	c.Toggle(context.Background(), "https://host/old.wav")
	c.Replace()

	if c.State() != Stopped {
		t.Errorf("expected Stopped after replace, got %s", c.State())
	}
	if res.loaded != "" {
		t.Errorf("expected previous binding to be discarded, still %q", res.loaded)
	}
	last := res.calls[len(res.calls)-1]
	if last != "reset" {
		t.Errorf("expected reset as last call, got %q", last)
	}

	if got := c.Toggle(context.Background(), "https://host/new.wav"); got != Playing {
		t.Errorf("expected new clip to play on demand, got %s", got)
	}
}

type memRecorder struct {
	mu  sync.Mutex
	got []diagnostics.Failure
}

func (m *memRecorder) Record(_ context.Context, f diagnostics.Failure) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.got = append(m.got, f)
	return nil
}

func TestStartFailed_RevertsToStoppedAndRecords(t *testing.T) {
	t.Parallel()

	res := &fakeResource{}
	rec := &memRecorder{}
	c := NewController(res, rec, nil, "s-1")

	var seen []State
	c.OnChange(func(s State) { seen = append(seen, s) })

	if got := c.Toggle(context.Background(), "https://host/a.wav"); got != Playing {
		t.Fatalf("expected Playing, got %s", got)
	}

	got := c.StartFailed(context.Background(), "https://host/a.wav", errors.New("NotSupportedError"))
	if got != Stopped || c.State() != Stopped {
		t.Fatalf("expected Stopped after failed start, got %s", c.State())
	}
	if len(seen) != 2 || seen[1] != Stopped {
		t.Errorf("unexpected transitions %v", seen)
	}
	if last := res.calls[len(res.calls)-1]; last != "pause https://host/a.wav" {
		t.Errorf("expected resource paused, got %q", last)
	}

	if len(rec.got) != 1 {
		t.Fatalf("expected one playback failure, got %d", len(rec.got))
	}
	if f := rec.got[0]; f.Kind != diagnostics.KindPlayback || f.SessionID != "s-1" || f.Err == nil {
		t.Errorf("unexpected failure record %+v", f)
	}
}

func TestStartFailed_IgnoredWhenStopped(t *testing.T) {
	t.Parallel()

	rec := &memRecorder{}
	c := NewController(&fakeResource{}, rec, nil, "s")

	if got := c.StartFailed(context.Background(), "https://host/a.wav", errors.New("late")); got != Stopped {
		t.Errorf("expected Stopped, got %s", got)
	}
	if len(rec.got) != 0 {
		t.Errorf("stale failure report must not be recorded, got %d", len(rec.got))
	}
}

func TestToggleFrom_ReadsRefUnderLock(t *testing.T) {
	t.Parallel()

	res := &fakeResource{}
	c := NewController(res, nil, nil, "s")

	ref := "https://host/a.wav"
	var mu sync.Mutex
	current := func() string {
		mu.Lock()
		defer mu.Unlock()
		return ref
	}

	// результат сменился на Pending до того, как Toggle взял блокировку
	mu.Lock()
	ref = ""
	mu.Unlock()
	c.Replace()

	if got := c.ToggleFrom(context.Background(), current); got != Stopped {
		t.Fatalf("expected no playback for a cleared result, got %s", got)
	}
	for _, call := range res.calls {
		if call != "reset" {
			t.Errorf("stale clip must not be loaded, got call %q", call)
		}
	}
}

func TestToggleFrom_ReplaceWaitsForStart(t *testing.T) {
	t.Parallel()

	res := &fakeResource{}
	c := NewController(res, nil, nil, "s")

	entered := make(chan struct{})
	proceed := make(chan struct{})
	done := make(chan State, 1)

	go func() {
		done <- c.ToggleFrom(context.Background(), func() string {
			close(entered)
			<-proceed
			return "https://host/a.wav"
		})
	}()

	<-entered
	replaced := make(chan struct{})
	go func() {
		c.Replace()
		close(replaced)
	}()

	close(proceed)
	if got := <-done; got != Playing {
		t.Fatalf("expected Playing, got %s", got)
	}
	<-replaced

	if c.State() != Stopped {
		t.Errorf("Replace issued during start must win, got %s", c.State())
	}
}
