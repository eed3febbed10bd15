// Package workflow triggers summarization jobs on the external workflow
// engine. A trigger call is synchronous: the engine runs the whole job
// (transcription and summarization) before answering, so the HTTP timeout
// has to tolerate jobs running for tens of minutes.
package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kalambet/meetsum/internal/summary"
)

// requestTimeout must tolerate jobs running up to ~25 minutes.
const requestTimeout = 1_500_000 * time.Millisecond

const probeTimeout = 5 * time.Second

// JobRequest describes one summarization job. Immutable once constructed;
// it lives only for the duration of one trigger call.
type JobRequest struct {
	FileID        string
	FileName      string
	MimeType      string
	FileSizeBytes int64
	ChannelID     string
	UserID        string
	UserName      string
	UserAvatarURL string
}

// wireRequest is the exact JSON body the engine expects. The field names
// are the wire contract and must not change.
type wireRequest struct {
	FileID        string `json:"fileId"`
	FileName      string `json:"fileName"`
	FileMimeType  string `json:"fileMimeType"`
	FileSize      int64  `json:"fileSize"`
	ChannelID     string `json:"channelId"`
	UserID        string `json:"userId"`
	UserName      string `json:"userName"`
	UserAvatarURL string `json:"userAvatarURL"`
	WorkflowID    string `json:"workflowId"`
}

// ResultHandler consumes the body of a successful workflow response.
// Delivery failures stay inside the handler; it never reports back.
type ResultHandler interface {
	Deliver(ctx context.Context, body []byte, dc summary.DeliveryContext)
}

// Trigger posts jobs to the workflow engine, falling back once to the
// external endpoint on retryable failures.
type Trigger struct {
	primaryURL  string
	externalURL string
	handler     ResultHandler
	client      *http.Client
	now         func() time.Time
}

// New creates a Trigger. externalURL may be empty or equal to primaryURL,
// in which case no fallback is ever attempted.
func New(primaryURL, externalURL string, handler ResultHandler) *Trigger {
	return &Trigger{
		primaryURL:  primaryURL,
		externalURL: externalURL,
		handler:     handler,
		client:      &http.Client{Timeout: requestTimeout},
		now:         time.Now,
	}
}

// Run sends the job and blocks until the engine answers. On success the
// response body is handed to the result handler and nil is returned; the
// caller only has to relay the returned *Error on failure. Run never
// contacts the chat channel itself.
func (t *Trigger) Run(ctx context.Context, job JobRequest) error {
	if t.primaryURL == "" {
		return &Error{Kind: Terminal, Message: "workflow webhook URL is not configured"}
	}

	log := logrus.WithFields(logrus.Fields{"file": job.FileName, "user": job.UserID})

	token := t.correlationToken(job.UserID, "")
	log.Infof("triggering workflow on primary endpoint, token=%s", token)

	body, err := t.post(ctx, t.primaryURL, job, token)
	if err == nil {
		log.Info("workflow completed via primary endpoint")
		t.handler.Deliver(ctx, body, deliveryContext(job))
		return nil
	}

	werr := classify(err)
	log.Warnf("primary endpoint failed (%s): %s", werr.Kind, werr.Message)

	if werr.Kind != Retryable || t.externalURL == "" || t.externalURL == t.primaryURL {
		return werr
	}

	// One fallback attempt over the externally-routed path, never more.
	extToken := t.correlationToken(job.UserID, "-ext")
	log.Infof("retrying via external endpoint, token=%s", extToken)

	body, err = t.post(ctx, t.externalURL, job, extToken)
	if err != nil {
		extErr := classify(err)
		log.Warnf("external endpoint also failed: %s", extErr.Message)
		return &Error{
			Kind:    Terminal,
			Message: "external URL failed: " + extErr.Message,
			Err:     extErr,
		}
	}

	log.Info("workflow completed via external endpoint")
	t.handler.Deliver(ctx, body, deliveryContext(job))
	return nil
}

// post issues one job request and returns the raw response body.
func (t *Trigger) post(ctx context.Context, endpoint string, job JobRequest, token string) ([]byte, error) {
	payload, err := json.Marshal(wireRequest{
		FileID:        job.FileID,
		FileName:      job.FileName,
		FileMimeType:  job.MimeType,
		FileSize:      job.FileSizeBytes,
		ChannelID:     job.ChannelID,
		UserID:        job.UserID,
		UserName:      job.UserName,
		UserAvatarURL: job.UserAvatarURL,
		WorkflowID:    token,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding job request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating job request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading workflow response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &statusError{code: resp.StatusCode}
	}

	if len(bytes.TrimSpace(body)) == 0 {
		return nil, &Error{
			Kind:    EmptyResponse,
			Message: fmt.Sprintf("workflow engine returned an empty response (status %d)", resp.StatusCode),
		}
	}

	return body, nil
}

func (t *Trigger) correlationToken(userID, suffix string) string {
	return fmt.Sprintf("%s-%d%s", userID, t.now().UnixMilli(), suffix)
}

func deliveryContext(job JobRequest) summary.DeliveryContext {
	return summary.DeliveryContext{
		ChannelID:     job.ChannelID,
		FileName:      job.FileName,
		UserID:        job.UserID,
		UserAvatarURL: job.UserAvatarURL,
	}
}

// Probe checks whether the engine is reachable, trying the primary
// endpoint's health path first and the external one on failure.
func (t *Trigger) Probe(ctx context.Context) error {
	err := t.probeOne(ctx, t.primaryURL)
	if err == nil {
		return nil
	}
	if t.externalURL != "" && t.externalURL != t.primaryURL {
		if extErr := t.probeOne(ctx, t.externalURL); extErr == nil {
			return nil
		}
	}
	return err
}

func (t *Trigger) probeOne(ctx context.Context, endpoint string) error {
	if endpoint == "" {
		return fmt.Errorf("no endpoint configured")
	}
	health, err := healthURL(endpoint)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, health, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("health endpoint answered %d", resp.StatusCode)
	}
	return nil
}

// healthURL maps a webhook URL onto its engine's health endpoint.
func healthURL(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parsing webhook URL: %w", err)
	}
	u.Path = "/healthz"
	u.RawQuery = ""
	return u.String(), nil
}
