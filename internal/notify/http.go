package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sweeney/parking-controller/internal/logic"
)

// ErrStatus is returned when the logging service answers with a non-2xx status.
var ErrStatus = errors.New("unexpected response status")

// HTTPLogger posts slot time-in/time-out notifications to the parking log service.
type HTTPLogger struct {
	endpoint string
	client   *http.Client
}

// NewHTTPLogger creates a logger posting to {endpoint}/time_in.php and
// {endpoint}/time_out.php. The client timeout caps every request.
func NewHTTPLogger(endpoint string, timeout time.Duration) *HTTPLogger {
	return &HTTPLogger{
		endpoint: strings.TrimRight(endpoint, "/"),
		client:   &http.Client{Timeout: timeout},
	}
}

// Name implements Sink.
func (h *HTTPLogger) Name() string { return "http" }

// Deliver implements Sink. Only slot events are sent; others are ignored.
// The body is form-encoded id={slot number}, 1-based.
func (h *HTTPLogger) Deliver(ctx context.Context, event logic.Event) error {
	var script string
	switch event.Type {
	case logic.EventTimeIn:
		script = "time_in.php"
	case logic.EventTimeOut:
		script = "time_out.php"
	default:
		return nil
	}

	form := url.Values{"id": {strconv.Itoa(event.Slot + 1)}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint+"/"+script, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", script, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("post %s: %w: %s", script, ErrStatus, resp.Status)
	}
	return nil
}
