// Package collab implements HTTP clients for the engine's external
// collaborators: the account store, the browser-automation sidecar and
// the mail relay. Each client is a thin JSON-over-HTTP adapter behind
// the interface the engine consumes.
package collab

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrCollaboratorUnavailable wraps transport-level failures so callers
// can treat any collaborator outage uniformly.
var ErrCollaboratorUnavailable = errors.New("collaborator unavailable")

// httpError carries a non-2xx collaborator response.
type httpError struct {
	Status int
	Body   string
}

func (e *httpError) Error() string {
	return fmt.Sprintf("collaborator returned %d: %s", e.Status, e.Body)
}

// client is the shared HTTP plumbing for all collaborator adapters.
type client struct {
	baseURL string
	http    *http.Client
}

func newClient(baseURL string, timeout time.Duration) client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// doJSON performs one request. in may be nil for body-less requests;
// out may be nil when the response body is ignored. Non-2xx responses
// come back as *httpError.
func (c client) doJSON(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCollaboratorUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &httpError{Status: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// statusOf returns the HTTP status behind err, or 0 if err is not a
// collaborator response error.
func statusOf(err error) int {
	var he *httpError
	if errors.As(err, &he) {
		return he.Status
	}
	return 0
}
