// Package audit emits best-effort audit events: every event becomes a
// structured log line, and optionally a webhook POST. Webhook delivery is
// fire-and-forget; it never affects the caller's control flow.
package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const webhookTimeout = 5 * time.Second

// Event is the wire format sent to the audit webhook.
type Event struct {
	ID          string `json:"id"`
	Timestamp   string `json:"timestamp"`
	Service     string `json:"service"`
	Event       string `json:"event"`
	Details     string `json:"details"`
	Environment string `json:"environment"`
}

// Recorder records audit events for one service.
type Recorder struct {
	service    string
	webhookURL string
	token      string
	client     *http.Client
	now        func() time.Time
}

// New creates a Recorder. webhookURL may be empty, in which case events
// are only logged.
func New(service, webhookURL, token string) *Recorder {
	return &Recorder{
		service:    service,
		webhookURL: webhookURL,
		token:      token,
		client:     &http.Client{Timeout: webhookTimeout},
		now:        time.Now,
	}
}

// Record logs the event and, when a webhook is configured, posts it in the
// background. Failures are swallowed and logged at warn level.
func (r *Recorder) Record(name, details string) {
	ev := Event{
		ID:          uuid.NewString(),
		Timestamp:   r.now().UTC().Format(time.RFC3339),
		Service:     r.service,
		Event:       name,
		Details:     details,
		Environment: environment(),
	}

	logrus.WithFields(logrus.Fields{
		"audit_id": ev.ID,
		"service":  ev.Service,
		"event":    ev.Event,
		"details":  ev.Details,
	}).Info("audit event")

	if r.webhookURL == "" {
		return
	}
	go func() {
		if err := r.send(ev); err != nil {
			logrus.WithError(err).Warnf("audit webhook delivery failed for event %s", ev.Event)
		}
	}()
}

func (r *Recorder) send(ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), webhookTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.webhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func environment() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "unknown"
}
