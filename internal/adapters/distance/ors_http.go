package distance

import (
	"context"
	"courier-route-service/internal/domain"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

type httpStatusError struct {
	Code       int
	Body       string
	RetryAfter time.Duration
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("ors status %d: %s", e.Code, e.Body)
}

func (o *ORSClient) newRequest(
	ctx context.Context,
	method string,
	url string,
	body io.Reader,
) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Authorization", o.apiKey)
	req.Header.Set("Accept", "application/json")

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return req, nil
}

func (o *ORSClient) do(req *http.Request) (*http.Response, error) {
	resp, err := o.session.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &httpStatusError{
			Code:       resp.StatusCode,
			Body:       strings.TrimSpace(string(b)),
			RetryAfter: retryAfter(resp.Header.Get("Retry-After")),
		}
	}
	return resp, nil
}

// doWithRetry retries transient failures (network errors, 429 and 5xx) with
// exponential backoff. Only geocoding uses it; routing queries never retry.
func (o *ORSClient) doWithRetry(
	ctx context.Context,
	makeReq func() (*http.Request, error),
) (*http.Response, error) {
	backoff := o.retryBackoff
	var lastErr error

	for attempt := 1; attempt <= o.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		req, err := makeReq()
		if err != nil {
			return nil, fmt.Errorf("make request: %w", err)
		}

		resp, err := o.do(req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !retryable(err) || attempt == o.maxAttempts {
			return nil, lastErr
		}

		delay := backoff
		var he *httpStatusError
		if errors.As(err, &he) && he.RetryAfter > delay {
			delay = he.RetryAfter
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}

		backoff *= 2
	}

	return nil, lastErr
}

func retryable(err error) bool {
	var he *httpStatusError
	if errors.As(err, &he) {
		switch he.Code {
		case 429, 500, 502, 503, 504:
			return true
		}
		return false
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

// retryAfter parses the delay-seconds form of Retry-After, capped at 10s.
func retryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs <= 0 {
		return 0
	}
	return min(time.Duration(secs)*time.Second, 10*time.Second)
}

// classify maps transport errors onto the routing error taxonomy.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var he *httpStatusError
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", domain.ErrRoutingTimeout, err)
	case errors.Is(err, context.Canceled):
		return err
	case errors.As(err, &he):
		return fmt.Errorf("%w: %v", domain.ErrRoutingService, err)
	case errors.As(err, &netErr) && netErr.Timeout():
		return fmt.Errorf("%w: %v", domain.ErrRoutingTimeout, err)
	case errors.As(err, &netErr):
		return fmt.Errorf("%w: %v", domain.ErrRoutingUnreachable, err)
	default:
		return fmt.Errorf("%w: %v", domain.ErrRoutingService, err)
	}
}
