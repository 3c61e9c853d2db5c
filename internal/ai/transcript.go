package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

var ErrTranscriptTimeout = errors.New("transcript not ready before deadline")

// TranscriptClient submits a video for speech-to-text and polls for the result
type TranscriptClient struct {
	client       *resty.Client
	baseURL      string
	timeout      time.Duration
	pollInterval time.Duration
}

type transcriptJob struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Text   string `json:"text"`
	Error  string `json:"error"`
}

func NewTranscriptClient(baseURL, apiKey string, timeout, pollInterval time.Duration) *TranscriptClient {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if pollInterval <= 0 {
		pollInterval = 3 * time.Second
	}
	return &TranscriptClient{
		client: resty.New().
			SetTimeout(15*time.Second).
			SetHeader("Authorization", apiKey).
			SetHeader("Content-Type", "application/json"),
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		timeout:      timeout,
		pollInterval: pollInterval,
	}
}

// Transcribe returns "" when the service produced no speech
func (t *TranscriptClient) Transcribe(ctx context.Context, mediaURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	var job transcriptJob
	resp, err := t.client.R().
		SetContext(ctx).
		SetBody(map[string]string{"audio_url": mediaURL}).
		SetResult(&job).
		Post(t.baseURL + "/transcript")
	if err != nil {
		return "", fmt.Errorf("submit transcript: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("submit transcript: status %d", resp.StatusCode())
	}
	if job.ID == "" {
		return "", fmt.Errorf("submit transcript: missing job id")
	}

	ticker := time.NewTicker(t.pollInterval)
	defer ticker.Stop()

	for {
		switch job.Status {
		case "completed":
			return strings.TrimSpace(job.Text), nil
		case "error":
			return "", fmt.Errorf("transcript failed: %s", job.Error)
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return "", ErrTranscriptTimeout
			}
			return "", ctx.Err()
		case <-ticker.C:
		}

		id := job.ID
		job = transcriptJob{}
		resp, err := t.client.R().
			SetContext(ctx).
			SetResult(&job).
			Get(t.baseURL + "/transcript/" + id)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			return "", fmt.Errorf("poll transcript: %w", err)
		}
		if resp.IsError() {
			return "", fmt.Errorf("poll transcript: status %d", resp.StatusCode())
		}
		if job.ID == "" {
			job.ID = id
		}
	}
}
