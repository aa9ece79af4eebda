// Package api is the typed HTTP client for the Kindred backend. Every
// request flows through the session guard: the bearer header is attached
// pre-send, and transport failures or 401 responses end the session.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Ibeneme/kindred-app-sub000/internal/logger"
	"github.com/Ibeneme/kindred-app-sub000/internal/session"
)

// ErrSessionExpired reports that the guard purged the session while
// handling this request. The caller is already signed out.
var ErrSessionExpired = errors.New("session expired")

// APIError carries a non-2xx response. Message is the server's own text,
// passed through verbatim.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: status %d", e.Status)
	}
	return fmt.Sprintf("api: %s (status %d)", e.Message, e.Status)
}

type Client struct {
	baseURL string
	http    *http.Client
	guard   *session.Guard
	log     *logger.Logger
}

func New(baseURL string, guard *session.Guard, log *logger.Logger) *Client {
	if log == nil {
		log = logger.NewNop()
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http: &http.Client{
			Transport: guard.Transport(nil),
			// No client-side deadline. Slow endpoints (large uploads,
			// first-launch syncs) are allowed to take their time; a dead
			// server still fails fast at the connection level.
			Timeout: 0,
		},
		guard: guard,
		log:   log,
	}
}

// Guard exposes the session guard, for callers that need to sign out or
// inspect the stored credential directly.
func (c *Client) Guard() *session.Guard { return c.guard }

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if c.guard.HandleFailure(path, 0, false) {
			return ErrSessionExpired
		}
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode, Message: errorMessage(data)}
		if c.guard.HandleFailure(path, resp.StatusCode, true) {
			return ErrSessionExpired
		}
		return apiErr
	}

	if out != nil && len(data) > 0 {
		return json.Unmarshal(data, out)
	}
	return nil
}

func errorMessage(data []byte) string {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(data, &body) == nil {
		if body.Error != "" {
			return body.Error
		}
		return body.Message
	}
	return ""
}
