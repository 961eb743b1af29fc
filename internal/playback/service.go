package playback

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Vovarama1992/kashmiri_translator/internal/diagnostics"
)

const recordTimeout = 5 * time.Second

// Controller: Stopped/Playing поверх Resource.
type Controller struct {
	res  Resource
	diag diagnostics.Recorder
	log  *zap.Logger

	// op сериализует Toggle/Replace: Load может ходить в сеть
	op sync.Mutex

	mu        sync.Mutex
	state     State
	sessionID string
	listeners []func(State)
}

func NewController(res Resource, diag diagnostics.Recorder, log *zap.Logger, sessionID string) *Controller {
	if log == nil {
		log = zap.NewNop()
	}
	return &Controller{
		res:       res,
		diag:      diag,
		log:       log,
		state:     Stopped,
		sessionID: sessionID,
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) OnChange(fn func(State)) {
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
}

// Toggle: Stopped → загрузить ref и играть; Playing → пауза.
// Без ref — no-op. Ошибка старта только логируется, состояние остаётся Stopped.
func (c *Controller) Toggle(ctx context.Context, ref string) State {
	return c.ToggleFrom(ctx, func() string { return ref })
}

// ToggleFrom читает ref уже под блокировкой: Replace, пришедший между
// чтением результата и стартом, не даст запустить устаревший клип.
func (c *Controller) ToggleFrom(ctx context.Context, current func() string) State {
	c.op.Lock()
	defer c.op.Unlock()

	if c.State() == Playing {
		c.res.Pause()
		c.set(Stopped)
		return Stopped
	}

	ref := current()
	if ref == "" {
		return Stopped
	}

	if err := c.res.Load(ctx, ref); err != nil {
		c.fail(ctx, ref, err)
		return Stopped
	}
	if err := c.res.Play(ctx); err != nil {
		c.fail(ctx, ref, err)
		return Stopped
	}

	c.set(Playing)
	return Playing
}

// StartFailed: клиент не смог запустить уже разрешённое воспроизведение.
// Откатывает Playing в Stopped и пишет сбой; в Stopped ничего не делает.
func (c *Controller) StartFailed(ctx context.Context, ref string, cause error) State {
	c.op.Lock()
	defer c.op.Unlock()

	if c.State() != Playing {
		return Stopped
	}

	c.res.Pause()
	c.set(Stopped)
	c.fail(ctx, ref, cause)
	return Stopped
}

// Ended: клип доигран до конца.
func (c *Controller) Ended() {
	c.mu.Lock()
	if c.state != Playing {
		c.mu.Unlock()
		return
	}
	c.state = Stopped
	listeners := c.listeners
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(Stopped)
	}
}

// Replace: пришёл новый audioRef (или он сброшен): старый источник отбрасывается,
// новый не запускается автоматически.
func (c *Controller) Replace() {
	c.op.Lock()
	defer c.op.Unlock()

	c.res.Reset()
	c.set(Stopped)
}

func (c *Controller) Close() {
	c.Replace()
	c.mu.Lock()
	c.listeners = nil
	c.mu.Unlock()
}

func (c *Controller) set(s State) {
	c.mu.Lock()
	changed := c.state != s
	c.state = s
	listeners := c.listeners
	c.mu.Unlock()

	if !changed {
		return
	}
	for _, fn := range listeners {
		fn(s)
	}
}

func (c *Controller) fail(ctx context.Context, ref string, err error) {
	if c.diag == nil {
		c.log.Warn("audio playback failed",
			zap.String("session_id", c.sessionID),
			zap.String("audio_ref", ref),
			zap.Error(err),
		)
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	_ = c.diag.Record(ctx, diagnostics.Failure{
		SessionID: c.sessionID,
		Kind:      diagnostics.KindPlayback,
		Operation: "play " + ref,
		Err:       err,
	})
}
