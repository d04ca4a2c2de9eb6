package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// maxResponseBytes caps how much of a provider response is read
const maxResponseBytes = 4 << 20

// APIError is a non-200 answer from a provider endpoint
type APIError struct {
	Provider string
	Status   int
	Type     string // Provider-specific error kind, when reported
	Message  string
}

func (e *APIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("%s API error (%d): %s - %s", e.Provider, e.Status, e.Type, e.Message)
	}
	return fmt.Sprintf("%s API error (%d): %s", e.Provider, e.Status, e.Message)
}

// errorDecoder extracts the type and message from a provider error body.
// ok is false when the body is not in the provider's error shape.
type errorDecoder func(body []byte) (kind, message string, ok bool)

// jsonEndpoint is one provider's HTTP surface
type jsonEndpoint struct {
	provider  string
	client    *http.Client
	headers   map[string]string
	decodeErr errorDecoder
}

// post sends in as JSON to url and decodes a 200 answer into out
func (e jsonEndpoint) post(ctx context.Context, url string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return e.do(req, out)
}

// probe issues a GET and reports whether the endpoint answered 200
func (e jsonEndpoint) probe(ctx context.Context, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	if err := e.do(req, nil); err != nil {
		slog.Debug("provider availability check failed", "provider", e.provider, "error", err)
		return false
	}
	return true
}

func (e jsonEndpoint) do(req *http.Request, out any) error {
	for k, v := range e.headers {
		req.Header.Set(k, v)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{Provider: e.provider, Status: resp.StatusCode, Message: string(respBody)}
		if e.decodeErr != nil {
			if kind, msg, ok := e.decodeErr(respBody); ok {
				apiErr.Type, apiErr.Message = kind, msg
			}
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}
