package inference

import (
	"context"
	"errors"
	"fmt"
	"strings"

	json "github.com/goccy/go-json"
)

// Client opens connections to hosted inference endpoints.
type Client interface {
	Connect(ctx context.Context, endpoint string) (Connection, error)
}

// Connection invokes named pipeline operations on a connected endpoint.
type Connection interface {
	Predict(ctx context.Context, operation string, payload Payload) (*Prediction, error)
}

// Payload: аргументы пайплайна перевода+синтеза.
// Порядок полей в Data() совпадает с порядком входов пайплайна.
type Payload struct {
	Text  string `json:"text"`
	IsEng bool   `json:"is_eng"`
	SpkID int    `json:"spk_id"`
}

func (p Payload) Data() []any {
	return []any{p.Text, p.IsEng, p.SpkID}
}

// Prediction: сырые выходы операции.
type Prediction struct {
	Data []json.RawMessage `json:"data"`

	// префикс для FileData без url: {host}{api_prefix}/file=
	fileBase string
}

// Check reports a protocol mismatch: no outputs, or outputs[0] is not text.
func (p *Prediction) Check() error {
	if p == nil || len(p.Data) == 0 {
		return errors.New("empty prediction")
	}

	first := p.Data[0]
	if len(first) == 0 || string(first) == "null" {
		return nil
	}

	var s string
	if err := json.Unmarshal(first, &s); err != nil {
		return fmt.Errorf("outputs[0] is not a string: %w", err)
	}
	return nil
}

// Text returns outputs[0] when it is a non-empty string.
func (p *Prediction) Text() (string, bool) {
	if p == nil || len(p.Data) == 0 {
		return "", false
	}

	var s string
	if err := json.Unmarshal(p.Data[0], &s); err != nil {
		return "", false
	}
	if s == "" {
		return "", false
	}
	return s, true
}

// Media returns outputs[1] when it is a media descriptor carrying a URL.
func (p *Prediction) Media() (*FileData, bool) {
	if p == nil || len(p.Data) < 2 {
		return nil, false
	}

	raw := p.Data[1]
	if len(raw) == 0 || string(raw) == "null" {
		return nil, false
	}

	var fd FileData
	if err := json.Unmarshal(raw, &fd); err != nil {
		return nil, false
	}
	if strings.TrimSpace(fd.URL) == "" && fd.Path != "" && p.fileBase != "" {
		fd.URL = p.fileBase + fd.Path
	}
	if strings.TrimSpace(fd.URL) == "" {
		return nil, false
	}
	return &fd, true
}

// FileData: медиа-дескриптор Gradio.
type FileData struct {
	Path     string `json:"path,omitempty"`
	URL      string `json:"url,omitempty"`
	OrigName string `json:"orig_name,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
	Size     *int64 `json:"size,omitempty"`
}

// ConnectionError: эндпоинт недоступен или не существует.
type ConnectionError struct {
	Endpoint string
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect %s: %v", e.Endpoint, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// InvocationError: удалённая ошибка или несовпадение протокола.
type InvocationError struct {
	Operation string
	Err       error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("invoke %s: %v", e.Operation, e.Err)
}

func (e *InvocationError) Unwrap() error { return e.Err }
