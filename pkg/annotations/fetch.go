// roles/pkg/annotations/fetch.go

package annotations

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// HTTPError is returned for non-2xx responses.
type HTTPError struct {
	StatusCode int
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("GET %s failed with status %d", e.URL, e.StatusCode)
}

func retryable(status int) bool {
	switch status {
	case http.StatusRequestTimeout, http.StatusTooManyRequests,
		http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

func defaultRetry() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	b.MaxElapsedTime = 10 * time.Second
	return backoff.WithMaxRetries(b, 3)
}

// fetch returns the body served at url, consulting the cache first.
// Concurrent fetches of the same url share one request.
func (r *Resolver) fetch(ctx context.Context, url string) ([]byte, error) {
	if body, ok := r.cache.Get(url); ok {
		return body, nil
	}
	v, err, _ := r.inflight.Do(url, func() (interface{}, error) {
		body, err := r.get(ctx, url)
		if err != nil {
			return nil, err
		}
		r.cache.Add(url, body)
		return body, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (r *Resolver) get(ctx context.Context, url string) ([]byte, error) {
	var body []byte
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := r.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			_, _ = io.Copy(io.Discard, resp.Body)
			httpErr := &HTTPError{StatusCode: resp.StatusCode, URL: url}
			if retryable(resp.StatusCode) {
				return httpErr
			}
			return backoff.Permanent(httpErr)
		}
		body, err = io.ReadAll(resp.Body)
		return err
	}

	notify := func(err error, wait time.Duration) {
		r.logger.Debug().Err(err).Str("url", url).Dur("wait", wait).Msg("Retrying fetch")
	}
	if err := backoff.RetryNotify(operation, backoff.WithContext(r.retry(), ctx), notify); err != nil {
		return nil, err
	}
	return body, nil
}
