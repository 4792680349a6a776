// Package adapters contains HTTP clients for the downstream subsystems the
// engine performs effects through: the messaging channel, the CRM contact
// store and the internal notification service.
package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/LLASTORI/cubo-magico-sub002/pkg/engine"
)

const defaultTimeout = 30 * time.Second

type client struct {
	baseURL    string
	httpClient *http.Client
}

func newClient(baseURL string) client {
	return client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
}

// doJSON performs a JSON request and decodes the response into out (when out
// is non-nil). Downstream failure statuses map to typed adapter errors.
func (c client) doJSON(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader

	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}

		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &engine.AdapterError{Kind: engine.ChannelUnavailable, Message: err.Error()}
	}

	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
	case resp.StatusCode == http.StatusUnprocessableEntity || resp.StatusCode == http.StatusBadRequest:
		return &engine.AdapterError{Kind: engine.InvalidPayload, Message: readErrorDetail(resp.Body)}
	case resp.StatusCode == http.StatusGone || resp.StatusCode >= 500:
		return &engine.AdapterError{Kind: engine.ChannelUnavailable, Message: readErrorDetail(resp.Body)}
	default:
		return fmt.Errorf("unexpected status %d from %s %s", resp.StatusCode, method, path)
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

func readErrorDetail(body io.Reader) string {
	var payload struct {
		Detail string `json:"detail"`
		Error  string `json:"error"`
	}

	if err := json.NewDecoder(body).Decode(&payload); err != nil {
		return "downstream request rejected"
	}

	if payload.Detail != "" {
		return payload.Detail
	}

	if payload.Error != "" {
		return payload.Error
	}

	return "downstream request rejected"
}
