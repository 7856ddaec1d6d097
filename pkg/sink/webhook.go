package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/datasynth/synth/internal/utils"
	"github.com/datasynth/synth/pkg/events"
	"github.com/hashicorp/go-retryablehttp"
	log "github.com/sirupsen/logrus"
)

const webhookTimeout = 5 * time.Second

// WebhookSink reports run progress and the final summary to an HTTP
// endpoint. Data items are not forwarded.
type WebhookSink struct {
	url    string
	token  string
	client *retryablehttp.Client
	logger *log.Logger

	mu      sync.Mutex
	pending *events.Progress
}

// NewWebhookClient returns a retrying client that logs through logger.
func NewWebhookClient(logger *log.Logger, retryMax int) *retryablehttp.Client {
	client := retryablehttp.NewClient()
	client.RetryMax = retryMax
	client.Logger = &utils.LeveledLogrus{Logger: logger}
	return client
}

func NewWebhookSink(url, token string, client *retryablehttp.Client, logger *log.Logger) *WebhookSink {
	return &WebhookSink{
		url:    url,
		token:  token,
		client: client,
		logger: logger,
	}
}

func (s *WebhookSink) Name() string {
	return "webhook"
}

// Process keeps the latest progress report for the next flush and posts
// the summary immediately. Progress still pending at that point is
// discarded, complete is the last post of a run.
func (s *WebhookSink) Process(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.ProgressEvent:
		progress := e.Progress
		s.mu.Lock()
		s.pending = &progress
		s.mu.Unlock()
	case events.CompleteEvent:
		s.mu.Lock()
		s.pending = nil
		s.mu.Unlock()
		return s.post(ctx, "complete", e.Summary)
	}
	return nil
}

func (s *WebhookSink) Flush(ctx context.Context) error {
	s.mu.Lock()
	progress := s.pending
	s.pending = nil
	s.mu.Unlock()

	if progress == nil {
		return nil
	}
	return s.post(ctx, "progress", progress)
}

func (s *WebhookSink) Close() error {
	return nil
}

func (s *WebhookSink) post(ctx context.Context, kind string, payload interface{}) error {
	body, err := json.Marshal(map[string]interface{}{
		"type":    kind,
		"payload": payload,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", kind, err)
	}

	ctx, cancel := context.WithTimeout(ctx, webhookTimeout)
	defer cancel()

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		s.logger.Errorf("Failed to send %s, response body: %s", kind, string(respBody))
		return fmt.Errorf("failed to send %s, code: %d", kind, resp.StatusCode)
	}
	s.logger.Debugf("[webhook] sent %s", kind)
	return nil
}
