package diagnostics

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// --------------------------------------------------
// Postgres
// --------------------------------------------------

type postgresSink struct {
	db *sql.DB
}

func NewPostgresSink(db *sql.DB) Sink {
	return &postgresSink{db: db}
}

func (p *postgresSink) Name() string { return "postgres" }

// EnsureSchema создаёт таблицу сбоев, если её ещё нет.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS translation_failures (
			id          BIGSERIAL PRIMARY KEY,
			request_id  TEXT        NOT NULL,
			session_id  TEXT        NOT NULL,
			kind        TEXT        NOT NULL,
			operation   TEXT        NOT NULL,
			speaker_id  INTEGER     NOT NULL,
			input_chars INTEGER     NOT NULL,
			detail      TEXT        NOT NULL,
			created_at  TIMESTAMPTZ NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("create translation_failures: %w", err)
	}
	return nil
}

func (p *postgresSink) Write(ctx context.Context, f Failure) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO translation_failures
			(request_id, session_id, kind, operation, speaker_id, input_chars, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, f.RequestID, f.SessionID, string(f.Kind), f.Operation, f.SpeakerID, f.InputChars, errText(f.Err), f.At)
	return err
}

// --------------------------------------------------
// Telegram
// --------------------------------------------------

type messageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type telegramSink struct {
	bot    messageSender
	chatID int64
}

func NewTelegramSink(bot *tgbotapi.BotAPI, chatID int64) Sink {
	return &telegramSink{bot: bot, chatID: chatID}
}

func (t *telegramSink) Name() string { return "telegram" }

func (t *telegramSink) Write(ctx context.Context, f Failure) error {
	// сбои воспроизведения локальные, админу не шлём
	if f.Kind == KindPlayback {
		return nil
	}

	// Send не принимает ctx: ждём его не дольше, чем позволяет ctx
	done := make(chan error, 1)
	go func() {
		_, err := t.bot.Send(tgbotapi.NewMessage(t.chatID, formatAlert(f)))
		done <- err
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("telegram alert: %w", ctx.Err())
	}
}

func formatAlert(f Failure) string {
	return fmt.Sprintf(
		"❗ Ошибка перевода (%s)\n\nЗапрос: %s\nСессия: %s\nОперация: %s\nСпикер: %d\nВвод: %s символов\nВремя: %s\n\nОшибка: %s",
		f.Kind,
		f.RequestID,
		f.SessionID,
		f.Operation,
		f.SpeakerID,
		humanize.Comma(int64(f.InputChars)),
		f.At.Format(time.RFC3339),
		errText(f.Err),
	)
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
