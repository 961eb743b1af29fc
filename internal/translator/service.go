package translator

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/rs/xid"
	"go.uber.org/zap"

	"github.com/Vovarama1992/kashmiri_translator/internal/diagnostics"
	"github.com/Vovarama1992/kashmiri_translator/internal/inference"
)

// recordTimeout ограничивает запись сбоя в диагностику.
const recordTimeout = 10 * time.Second

type Option func(*Orchestrator)

func WithEndpoint(endpoint string) Option {
	return func(o *Orchestrator) { o.endpoint = endpoint }
}

func WithRand(r *rand.Rand) Option {
	return func(o *Orchestrator) { o.rng = r }
}

func WithSessionID(id string) Option {
	return func(o *Orchestrator) { o.sessionID = id }
}

// Orchestrator владеет ResultState одной сессии.
type Orchestrator struct {
	client    inference.Client
	diag      diagnostics.Recorder
	log       *zap.Logger
	endpoint  string
	sessionID string

	// notifyMu берётся раньше mu и держится до конца оповещения:
	// слушатели видят переходы по порядку и могут читать State()
	notifyMu sync.Mutex

	mu        sync.Mutex
	rng       *rand.Rand
	state     ResultState
	gen       uint64
	closed    bool
	listeners []func(ResultState)
}

func NewOrchestrator(
	client inference.Client,
	diag diagnostics.Recorder,
	log *zap.Logger,
	opts ...Option,
) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}

	o := &Orchestrator{
		client:   client,
		diag:     diag,
		log:      log,
		endpoint: Endpoint,
		state:    Empty(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.rng == nil {
		o.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return o
}

// SampleSpeaker: равномерно из [MinSpeaker, MaxSpeaker].
func SampleSpeaker(r *rand.Rand) int {
	return MinSpeaker + r.IntN(MaxSpeaker-MinSpeaker+1)
}

// OnChange registers a listener called after every applied transition.
// Listeners run outside the lock, in transition order.
func (o *Orchestrator) OnChange(fn func(ResultState)) {
	o.mu.Lock()
	o.listeners = append(o.listeners, fn)
	o.mu.Unlock()
}

func (o *Orchestrator) State() ResultState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Close отвязывает оркестратор от сессии: запрос в полёте не отменяется,
// но его результат будет отброшен.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	o.closed = true
	o.listeners = nil
	o.mu.Unlock()
}

// Submit переводит состояние в Pending и запускает удалённый вызов.
// Пустой ввод: ErrEmptyInput без перехода, повторный вызов во время Pending: ErrBusy.
func (o *Orchestrator) Submit(ctx context.Context, in InputState) (*Task, error) {
	if in.Blank() {
		return nil, ErrEmptyInput
	}

	o.notifyMu.Lock()
	defer o.notifyMu.Unlock()

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil, ErrClosed
	}
	if o.state.Status == StatusPending {
		o.mu.Unlock()
		return nil, ErrBusy
	}

	o.state = Pending()
	o.gen++
	gen := o.gen
	params := RequestParameters{
		RequestID:     xid.New().String(),
		Text:          in.Text,
		DirectionFlag: in.SourceIsPrimaryLanguage,
		SpeakerID:     SampleSpeaker(o.rng),
	}
	listeners := o.listeners
	o.mu.Unlock()

	notify(listeners, Pending())

	task := &Task{params: params, done: make(chan struct{})}

	// запрос переживает HTTP-запрос, который его инициировал
	go o.run(context.WithoutCancel(ctx), gen, task)

	return task, nil
}

func (o *Orchestrator) run(ctx context.Context, gen uint64, task *Task) {
	start := time.Now()
	params := task.params

	o.log.Info("translate started",
		zap.String("request_id", params.RequestID),
		zap.String("session_id", o.sessionID),
		zap.Int("speaker_id", params.SpeakerID),
		zap.Bool("is_eng", params.DirectionFlag),
	)

	result, kind, err := o.invoke(ctx, params)
	if err != nil {
		result = Failed(FailureMessage)
	}

	// переход раньше записи: медленный приёмник не должен держать сессию в Pending
	applied := o.apply(gen, result)

	o.log.Info("translate finished",
		zap.String("request_id", params.RequestID),
		zap.String("status", string(result.Status)),
		zap.Bool("has_audio", result.AudioRef != ""),
		zap.Bool("applied", applied),
		zap.Duration("took", time.Since(start)),
	)

	if err != nil && o.diag != nil {
		recCtx, cancel := context.WithTimeout(ctx, recordTimeout)
		_ = o.diag.Record(recCtx, diagnostics.Failure{
			RequestID:  params.RequestID,
			SessionID:  o.sessionID,
			Kind:       kind,
			Operation:  Operation,
			SpeakerID:  params.SpeakerID,
			InputChars: len([]rune(params.Text)),
			Err:        err,
		})
		cancel()
	}

	task.finish(Outcome{Params: params, Result: result, Err: err, Applied: applied})
}

func (o *Orchestrator) invoke(ctx context.Context, params RequestParameters) (ResultState, diagnostics.Kind, error) {
	conn, err := o.client.Connect(ctx, o.endpoint)
	if err != nil {
		return ResultState{}, classify(err), err
	}

	pred, err := conn.Predict(ctx, Operation, inference.Payload{
		Text:  params.Text,
		IsEng: params.DirectionFlag,
		SpkID: params.SpeakerID,
	})
	if err != nil {
		return ResultState{}, classify(err), err
	}

	return demux(pred)
}

// demux раскладывает выходы пайплайна: [0]: текст, [1]: медиа-дескриптор.
// Текст без аудио: валидный успех.
func demux(pred *inference.Prediction) (ResultState, diagnostics.Kind, error) {
	if err := pred.Check(); err != nil {
		return ResultState{}, diagnostics.KindMalformed, &inference.InvocationError{Operation: Operation, Err: err}
	}

	text, _ := pred.Text()

	var audioRef string
	if media, ok := pred.Media(); ok {
		audioRef = media.URL
	}

	return Success(text, audioRef), "", nil
}

func classify(err error) diagnostics.Kind {
	var connErr *inference.ConnectionError
	var invErr *inference.InvocationError
	switch {
	case errors.As(err, &connErr):
		return diagnostics.KindConnection
	case errors.As(err, &invErr):
		return diagnostics.KindInvocation
	}
	return diagnostics.KindUnknown
}

// apply применяет результат, только если сессия жива и это последний запуск.
func (o *Orchestrator) apply(gen uint64, result ResultState) bool {
	o.notifyMu.Lock()
	defer o.notifyMu.Unlock()

	o.mu.Lock()
	if o.closed || gen != o.gen {
		o.mu.Unlock()
		return false
	}
	o.state = result
	listeners := o.listeners
	o.mu.Unlock()

	notify(listeners, result)
	return true
}

func notify(listeners []func(ResultState), s ResultState) {
	for _, fn := range listeners {
		fn(s)
	}
}
