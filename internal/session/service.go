package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Vovarama1992/kashmiri_translator/internal/playback"
	"github.com/Vovarama1992/kashmiri_translator/internal/translator"
)

// Session: состояние одной загрузки страницы.
// InputState меняют только интенты страницы, ResultState и PlaybackState :
// оркестратор и контроллер.
type Session struct {
	ID string

	orch   *translator.Orchestrator
	player *playback.Controller
	clip   *playback.ClipResource

	mu          sync.Mutex
	input       translator.InputState
	helpVisible bool
	audioRef    string
	lastSeen    time.Time
	closed      bool
	subs        map[int]chan Snapshot
	nextSub     int
}

func newSession(id string, d Deps, now time.Time) *Session {
	opts := append([]translator.Option{translator.WithSessionID(id)}, d.Translator...)

	clip := playback.NewClipResource(d.AudioHTTP, d.Mirror, d.Log)
	s := &Session{
		ID:       id,
		orch:     translator.NewOrchestrator(d.Client, d.Diag, d.Log, opts...),
		player:   playback.NewController(clip, d.Diag, d.Log, id),
		clip:     clip,
		input:    translator.InputState{SourceIsPrimaryLanguage: true},
		lastSeen: now,
		subs:     make(map[int]chan Snapshot),
	}

	s.orch.OnChange(s.onResult)
	s.player.OnChange(func(playback.State) { s.publish() })

	return s
}

func (s *Session) onResult(r translator.ResultState) {
	s.mu.Lock()
	changed := r.AudioRef != s.audioRef
	s.audioRef = r.AudioRef
	s.mu.Unlock()

	if changed {
		s.player.Replace()
	}
	s.publish()
}

func (s *Session) SetText(text string) Snapshot {
	s.mu.Lock()
	s.input.Text = text
	s.mu.Unlock()
	return s.publish()
}

func (s *Session) SetSourceIsPrimaryLanguage(v bool) Snapshot {
	s.mu.Lock()
	s.input.SourceIsPrimaryLanguage = v
	s.mu.Unlock()
	return s.publish()
}

func (s *Session) ShowHelp() Snapshot    { return s.setHelp(true) }
func (s *Session) DismissHelp() Snapshot { return s.setHelp(false) }

func (s *Session) setHelp(v bool) Snapshot {
	s.mu.Lock()
	s.helpVisible = v
	s.mu.Unlock()
	return s.publish()
}

// Submit отправляет текущий ввод.
func (s *Session) Submit(ctx context.Context) (*translator.Task, error) {
	s.mu.Lock()
	in := s.input
	s.mu.Unlock()

	return s.orch.Submit(ctx, in)
}

func (s *Session) TogglePlayback(ctx context.Context) playback.State {
	return s.player.ToggleFrom(ctx, s.currentAudio)
}

// currentAudio: ref текущего результата или "" без аудио.
func (s *Session) currentAudio() string {
	r := s.orch.State()
	if !r.HasAudio() {
		return ""
	}
	return r.AudioRef
}

func (s *Session) PlaybackEnded() {
	s.player.Ended()
}

// PlaybackFailed: браузер не смог запустить клип.
func (s *Session) PlaybackFailed(ctx context.Context, reason string) playback.State {
	return s.player.StartFailed(ctx, s.currentAudio(), fmt.Errorf("browser playback: %s", reason))
}

// Clip: загруженный клип для отдачи браузеру.
func (s *Session) Clip() (*playback.Clip, bool) {
	return s.clip.Current()
}

func (s *Session) Snapshot() Snapshot {
	result := s.orch.State()
	state := s.player.State()

	var archive string
	if c, ok := s.clip.Current(); ok {
		archive = c.MirrorURL
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return Snapshot{
		SessionID:   s.ID,
		Input:       s.input,
		Result:      result,
		Playback:    state,
		ArchiveURL:  archive,
		HelpVisible: s.helpVisible,
		CanSubmit:   result.Status != translator.StatusPending && s.input.Text != "",
	}
}

// Subscribe возвращает поток снимков; отписка: вызов cancel.
// Медленный подписчик получает только последний снимок.
func (s *Session) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

func (s *Session) publish() Snapshot {
	snap := s.Snapshot()

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
	return snap
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince(now time.Time) (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastSeen), len(s.subs) > 0
}

// Close: страница ушла: поздние ответы будут проигнорированы.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
	s.mu.Unlock()

	s.orch.Close()
	s.player.Close()
}
