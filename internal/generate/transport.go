package generate

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// errStreamDone ends event parsing at a provider's end-of-stream marker.
var errStreamDone = errors.New("stream done")

// maxBackoff caps the wait between transport retries.
const maxBackoff = 30 * time.Second

// newHTTPClient returns a retrying client. Retries happen only while no
// response body has been handed to the caller, so a stream is never replayed
// after its first token.
func newHTTPClient(retries int, log *slog.Logger) *retryablehttp.Client {
	c := retryablehttp.NewClient()
	c.RetryMax = retries
	c.RetryWaitMin = time.Second
	c.RetryWaitMax = maxBackoff
	c.Backoff = backoff
	c.CheckRetry = checkRetry
	c.ErrorHandler = retryablehttp.PassthroughErrorHandler
	if log != nil {
		c.Logger = log.With("component", "llm_http")
	} else {
		c.Logger = nil
	}
	// Streams can run for minutes; callers bound requests with their context.
	c.HTTPClient.Timeout = 0
	return c
}

// backoff doubles from lo per attempt, capped at hi, plus up to 50% jitter.
func backoff(lo, hi time.Duration, attempt int, _ *http.Response) time.Duration {
	base := lo << uint(attempt)
	if base <= 0 || base > hi {
		base = hi
	}
	jitter := time.Duration(rand.Int64N(int64(base)/2 + 1))
	return base + jitter
}

func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	}
	return resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500, nil
}

// postJSON sends body and returns the response when the status is 2xx.
// Other statuses are turned into *APIError after draining a bounded amount
// of the body.
func postJSON(ctx context.Context, c *retryablehttp.Client, provider, url string, body []byte, headers map[string]string) (*http.Response, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s api: %w", provider, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return nil, &APIError{Provider: provider, StatusCode: resp.StatusCode, Message: string(msg)}
	}
	return resp, nil
}

// readEvents parses a server-sent event stream, calling fn with each event's
// name (empty when absent) and its joined data lines.
func readEvents(r io.Reader, fn func(event, data string) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	var event string
	var data []string
	flush := func() error {
		if len(data) == 0 {
			event = ""
			return nil
		}
		err := fn(event, strings.Join(data, "\n"))
		event, data = "", data[:0]
		return err
	}
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			if err := flush(); err != nil {
				return err
			}
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read stream: %w", err)
	}
	return flush()
}
