// Package callback delivers lifecycle responses to the pre-signed URL the
// orchestration system supplies with each event.
package callback

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	json "github.com/goccy/go-json"

	"github.com/gurre/sitedeploy-go/logic/lifecycle"
)

// maxErrorBody bounds how much of a rejected response body is kept.
const maxErrorBody = 4 * 1024

// Notifier PUTs responses to callback URLs.
type Notifier struct {
	httpClient *http.Client
	logger     *slog.Logger
}

// NewNotifier creates a notifier. Pass a non-nil transport to apply a custom
// round-tripper; nil uses Go's default transport.
//
//	n := callback.NewNotifier(nil, 30*time.Second, slog.Default())
//	err := n.Notify(ctx, ev.ResponseURL, resp)
func NewNotifier(transport http.RoundTripper, timeout time.Duration, logger *slog.Logger) *Notifier {
	return &Notifier{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
		logger: logger,
	}
}

// Notify sends resp as JSON with an HTTP PUT. The URL is pre-signed for an
// empty Content-Type, so the header is sent present but empty. A non-2xx
// status is returned as a *StatusError.
func (n *Notifier) Notify(ctx context.Context, responseURL string, resp lifecycle.Response) error {
	body, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("callback: marshal response: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, responseURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("callback: create request: %w", err)
	}
	req.Header["Content-Type"] = []string{""}
	req.Header.Set("Content-Length", strconv.Itoa(len(body)))
	req.ContentLength = int64(len(body))

	httpResp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("callback: put response: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	respBody, _ := io.ReadAll(io.LimitReader(httpResp.Body, maxErrorBody))

	n.logger.Info("callback delivered", "status", httpResp.Status, "requestID", resp.RequestID)
	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return &StatusError{StatusCode: httpResp.StatusCode, Status: httpResp.Status, Body: string(respBody)}
	}
	return nil
}

// StatusError is returned when the callback endpoint rejects the response.
type StatusError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("callback: %s: %s", e.Status, e.Body)
}
