package session

import (
	"context"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Registry struct {
	deps Deps
	log  *zap.Logger
	now  func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry(deps Deps) *Registry {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
		deps.Log = log
	}
	return &Registry{
		deps:     deps,
		log:      log,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

func (r *Registry) Create() *Session {
	id := uuid.NewString()
	s := newSession(id, r.deps, r.now())

	r.mu.Lock()
	r.sessions[id] = s
	r.mu.Unlock()

	r.log.Info("session created", zap.String("session_id", id))
	return s
}

func (r *Registry) Get(id string) (*Session, error) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	r.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}
	s.touch(r.now())
	return s, nil
}

func (r *Registry) Close(id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	s.Close()
	r.log.Info("session closed", zap.String("session_id", id))
	return nil
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// EvictIdle закрывает сессии без подписчиков, не трогавшиеся дольше ttl.
func (r *Registry) EvictIdle(ttl time.Duration) int {
	now := r.now()

	type staleSession struct {
		s    *Session
		idle time.Duration
	}

	r.mu.Lock()
	var stale []staleSession
	for id, s := range r.sessions {
		idle, watched := s.idleSince(now)
		if watched || idle < ttl {
			continue
		}
		stale = append(stale, staleSession{s: s, idle: idle})
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	for _, st := range stale {
		st.s.Close()
		r.log.Info("session evicted",
			zap.String("session_id", st.s.ID),
			zap.String("last_seen", humanize.RelTime(now.Add(-st.idle), now, "ago", "from now")),
		)
	}
	return len(stale)
}

// RunJanitor периодически чистит брошенные сессии до отмены ctx.
func (r *Registry) RunJanitor(ctx context.Context, interval, ttl time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.EvictIdle(ttl); n > 0 {
				r.log.Info("[cleanup-sessions] removed idle sessions", zap.Int("count", n))
			}
		}
	}
}

// CloseAll: при остановке сервера.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	all := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range all {
		s.Close()
	}
}
