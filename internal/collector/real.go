package collector

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// maxErrorBody bounds how much of a failed response is kept in the error.
const maxErrorBody = 512

// HTTPClient posts payloads to an actual collector.
type HTTPClient struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPClient creates a client for baseURL. timeout bounds each request,
// including reading the response.
func NewHTTPClient(baseURL, token string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

// UploadDoorStatus posts the door state.
func (c *HTTPClient) UploadDoorStatus(ctx context.Context, status DoorStatus) error {
	return c.post(ctx, PathDoorStatus, status)
}

// UploadTemperature posts a temperature reading.
func (c *HTTPClient) UploadTemperature(ctx context.Context, temp Temperature) error {
	return c.post(ctx, PathTemp, temp)
}

// SendAlert asks the collector to relay message.
func (c *HTTPClient) SendAlert(ctx context.Context, message string) error {
	return c.post(ctx, PathSendAlert, Alert{Message: message})
}

func (c *HTTPClient) post(ctx context.Context, path string, body any) error {
	payload, err := FormatPayload(body)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderAPIToken, c.token)
	req.Header.Set(HeaderRequestID, uuid.NewString())

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Path: path, Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// StatusError reports a non-2xx collector response.
type StatusError struct {
	Path string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("post %s: status %d", e.Path, e.Code)
	}
	return fmt.Sprintf("post %s: status %d: %s", e.Path, e.Code, e.Body)
}
