// Package callback delivers the single best-effort terminal notification for
// a job. Delivery is one HTTP POST; a failure is reported to the caller, who
// logs it, and is never retried.
package callback

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"stemworker/internal/services"
	"stemworker/internal/tracker"
)

const userAgent = "stemworker/0.1.0"

// Payload is the JSON body posted to a job's callback URL.
type Payload struct {
	ExecutionID             string               `json:"execution_id"`
	Status                  tracker.Status       `json:"status"`
	FolderName              string               `json:"folder_name"`
	Errors                  []tracker.ErrorEntry `json:"errors"`
	Results                 []tracker.Result     `json:"results"`
	ProcessedOutputLocation string               `json:"processed_output_location,omitempty"`
	CompletedAt             time.Time            `json:"completed_at"`
}

// FromJob builds the payload for a terminal job snapshot.
func FromJob(job tracker.Job) Payload {
	completed := job.UpdatedAt
	if job.CompletedAt != nil {
		completed = *job.CompletedAt
	}
	errs := job.Errors
	if errs == nil {
		errs = []tracker.ErrorEntry{}
	}
	results := job.Results
	if results == nil {
		results = []tracker.Result{}
	}
	return Payload{
		ExecutionID:             job.ExecutionID,
		Status:                  job.Status,
		FolderName:              job.FolderName,
		Errors:                  errs,
		Results:                 results,
		ProcessedOutputLocation: job.ProcessedOutputLocation,
		CompletedAt:             completed,
	}
}

// Notifier delivers a payload to url.
type Notifier interface {
	Notify(ctx context.Context, url string, payload Payload) error
}

// NewHTTP returns a notifier that POSTs JSON with the given timeout.
func NewHTTP(timeout time.Duration) *HTTPNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPNotifier{client: &http.Client{Timeout: timeout}}
}

// HTTPNotifier posts payloads over HTTP. Only a 200 response counts as
// delivered.
type HTTPNotifier struct {
	client *http.Client
}

func (n *HTTPNotifier) Notify(ctx context.Context, url string, payload Payload) error {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return services.Wrap(services.KindCallbackDelivery, "callback", "encode", "", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return services.Wrap(services.KindCallbackDelivery, "callback", "build request", "", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return services.Wrap(services.KindCallbackDelivery, "callback", "post", "", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return services.Wrap(services.KindCallbackDelivery, "callback", "post",
			fmt.Sprintf("callback returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail))), nil)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Noop discards every notification.
type Noop struct{}

func (Noop) Notify(context.Context, string, Payload) error { return nil }
