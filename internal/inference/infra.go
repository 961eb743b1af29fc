package inference

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"
)

const defaultHubURL = "https://huggingface.co"

type Options struct {
	HubURL     string
	Token      string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// GradioClient ходит в Space через HTTP "call" API Gradio.
type GradioClient struct {
	hubURL string
	token  string
	client *http.Client
	log    *zap.Logger
}

func NewGradioClient(opts Options) *GradioClient {
	hub := strings.TrimRight(opts.HubURL, "/")
	if hub == "" {
		hub = defaultHubURL
	}

	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 3 * time.Minute}
	}

	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &GradioClient{
		hubURL: hub,
		token:  opts.Token,
		client: hc,
		log:    log,
	}
}

type gradioConnection struct {
	c         *GradioClient
	host      string
	apiPrefix string
}

// Connect резолвит хост Space и читает его конфиг.
// endpoint: либо "owner/space", либо полный URL приложения.
func (c *GradioClient) Connect(ctx context.Context, endpoint string) (Connection, error) {
	host, err := c.resolveHost(ctx, endpoint)
	if err != nil {
		return nil, &ConnectionError{Endpoint: endpoint, Err: err}
	}

	prefix, err := c.fetchAPIPrefix(ctx, host)
	if err != nil {
		return nil, &ConnectionError{Endpoint: endpoint, Err: err}
	}

	c.log.Debug("gradio connected",
		zap.String("endpoint", endpoint),
		zap.String("host", host),
		zap.String("api_prefix", prefix),
	)

	return &gradioConnection{c: c, host: host, apiPrefix: prefix}, nil
}

func (c *GradioClient) resolveHost(ctx context.Context, endpoint string) (string, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return "", errors.New("empty endpoint")
	}

	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return strings.TrimRight(endpoint, "/"), nil
	}

	parts := strings.Split(endpoint, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", fmt.Errorf("invalid space id %q", endpoint)
	}

	u := fmt.Sprintf("%s/api/spaces/%s/%s/host", c.hubURL, url.PathEscape(parts[0]), url.PathEscape(parts[1]))
	body, err := c.get(ctx, u, "application/json")
	if err != nil {
		return "", fmt.Errorf("resolve space host: %w", err)
	}

	var out struct {
		Subdomain string `json:"subdomain"`
		Host      string `json:"host"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decode space host: %w", err)
	}
	if out.Host == "" {
		return "", fmt.Errorf("space %s has no host", endpoint)
	}

	return strings.TrimRight(out.Host, "/"), nil
}

func (c *GradioClient) fetchAPIPrefix(ctx context.Context, host string) (string, error) {
	body, err := c.get(ctx, host+"/config", "application/json")
	if err != nil {
		return "", fmt.Errorf("fetch config: %w", err)
	}

	var cfg struct {
		APIPrefix string `json:"api_prefix"`
		Version   string `json:"version"`
	}
	if err := json.Unmarshal(body, &cfg); err != nil {
		return "", fmt.Errorf("decode config: %w", err)
	}

	return strings.TrimRight(cfg.APIPrefix, "/"), nil
}

func (c *GradioClient) get(ctx context.Context, u, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", accept)
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: status %s", u, resp.Status)
	}
	return body, nil
}

func (c *GradioClient) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// Predict: POST /call/{op} → event_id, затем SSE до события complete/error.
func (g *gradioConnection) Predict(ctx context.Context, operation string, payload Payload) (*Prediction, error) {
	name := strings.TrimPrefix(operation, "/")
	if name == "" {
		return nil, &InvocationError{Operation: operation, Err: errors.New("empty operation name")}
	}

	callURL := fmt.Sprintf("%s%s/call/%s", g.host, g.apiPrefix, name)

	eventID, err := g.submit(ctx, callURL, payload)
	if err != nil {
		return nil, &InvocationError{Operation: operation, Err: err}
	}

	data, err := g.await(ctx, callURL+"/"+url.PathEscape(eventID))
	if err != nil {
		return nil, &InvocationError{Operation: operation, Err: err}
	}

	return &Prediction{
		Data:     data,
		fileBase: g.host + g.apiPrefix + "/file=",
	}, nil
}

func (g *gradioConnection) submit(ctx context.Context, callURL string, payload Payload) (string, error) {
	b, err := json.Marshal(map[string]any{"data": payload.Data()})
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, callURL, bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	g.c.authorize(req)

	resp, err := g.c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("gradio call: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gradio call status %s: %s", resp.Status, body)
	}

	var out struct {
		EventID string `json:"event_id"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decode event id: %w", err)
	}
	if out.EventID == "" {
		return "", errors.New("gradio returned empty event_id")
	}
	return out.EventID, nil
}

func (g *gradioConnection) await(ctx context.Context, streamURL string) ([]json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, streamURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	g.c.authorize(req)

	resp, err := g.c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gradio stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("gradio stream status %s: %s", resp.Status, b)
	}

	return readEvents(resp.Body)
}

// readEvents читает SSE-поток Gradio до первого терминального события.
func readEvents(r io.Reader) ([]json.RawMessage, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)

	var event string
	var data strings.Builder

	flush := func() ([]json.RawMessage, bool, error) {
		defer func() {
			event = ""
			data.Reset()
		}()

		switch event {
		case "complete":
			var out []json.RawMessage
			if err := json.Unmarshal([]byte(data.String()), &out); err != nil {
				return nil, true, fmt.Errorf("decode complete event: %w", err)
			}
			return out, true, nil
		case "error":
			return nil, true, fmt.Errorf("remote error: %s", errorDetail(data.String()))
		}
		return nil, false, nil
	}

	for sc.Scan() {
		line := sc.Text()

		if line == "" {
			if out, done, err := flush(); done {
				return out, err
			}
			continue
		}

		switch {
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read stream: %w", err)
	}

	// поток мог закончиться без пустой строки после последнего события
	if out, done, err := flush(); done {
		return out, err
	}

	return nil, errors.New("stream ended without result")
}

func errorDetail(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return "unknown"
	}

	var s string
	if err := json.Unmarshal([]byte(raw), &s); err == nil {
		return s
	}
	return raw
}
