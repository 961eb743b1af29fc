package diagnostics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// sinkTimeout: каждый приёмник получает не больше этого времени.
const sinkTimeout = 5 * time.Second

type Service struct {
	log   *zap.Logger
	sinks []Sink
}

func NewService(log *zap.Logger, sinks ...Sink) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{log: log, sinks: sinks}
}

// Record всегда пишет в лог, затем во все приёмники.
// Ошибка одного приёмника не мешает остальным.
func (s *Service) Record(ctx context.Context, f Failure) error {
	if f.At.IsZero() {
		f.At = time.Now()
	}
	if f.Kind == "" {
		f.Kind = KindUnknown
	}

	fields := []zap.Field{
		zap.String("request_id", f.RequestID),
		zap.String("session_id", f.SessionID),
		zap.String("kind", string(f.Kind)),
		zap.String("operation", f.Operation),
		zap.Int("speaker_id", f.SpeakerID),
		zap.Int("input_chars", f.InputChars),
		zap.Error(f.Err),
	}
	if f.Kind == KindPlayback {
		s.log.Warn("playback failure", fields...)
	} else {
		s.log.Error("translation failure", fields...)
	}

	var errs []error
	for _, sink := range s.sinks {
		if err := s.write(ctx, sink, f); err != nil {
			s.log.Warn("diagnostics sink failed", zap.String("sink", sink.Name()), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", sink.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func (s *Service) write(ctx context.Context, sink Sink, f Failure) error {
	ctx, cancel := context.WithTimeout(ctx, sinkTimeout)
	defer cancel()
	return sink.Write(ctx, f)
}
