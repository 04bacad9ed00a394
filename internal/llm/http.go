package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// maxErrorBody bounds how much of a failed response ends up in an error message.
const maxErrorBody = 512

// HTTPError is a non-2xx answer from the model service.
type HTTPError struct {
	Status int
	Body   []byte
}

func (e *HTTPError) Error() string {
	body := e.Body
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return fmt.Sprintf("model service returned %d: %s", e.Status, body)
}

// Transient reports whether the status is worth another attempt.
func (e *HTTPError) Transient() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// Endpoint posts JSON payloads to one URL with fixed headers.
type Endpoint struct {
	URL    string
	Header http.Header
	Client *http.Client
	Logger *slog.Logger
}

// Post sends payload and returns the response body. A non-2xx status yields an *HTTPError
// and the body is still returned.
func (e Endpoint) Post(ctx context.Context, payload any) ([]byte, error) {
	logger := e.Logger
	if logger == nil {
		logger = slog.Default()
	}
	client := e.Client
	if client == nil {
		client = http.DefaultClient
	}
	reqID := uuid.NewString()

	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.URL, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, vs := range e.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	logger.Debug("llm.http.request", "req_id", reqID, "url", e.URL, "content_length", len(encoded))
	resp, err := client.Do(req)
	if err != nil {
		logger.Warn("llm.http.send_error", "req_id", reqID, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	logger.Debug("llm.http.response",
		"req_id", reqID,
		"status", resp.StatusCode,
		"bytes", len(body),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return body, &HTTPError{Status: resp.StatusCode, Body: body}
	}
	return body, nil
}
