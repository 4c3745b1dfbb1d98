package telegram

import (
	"net"
	"net/http"
	"time"

	"github.com/solboost/promobot/core/telegram/netutil"
)

// BuildHTTPClient returns the HTTP client used for Telegram API calls:
// pooled connections, tight per-phase timeouts and transparent retries of
// transient network failures.
func BuildHTTPClient() *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: 5 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
	return &http.Client{
		Timeout: 30 * time.Second,
		Transport: &retryTransport{
			base:     transport,
			attempts: 4,
			backoff:  2 * time.Second,
		},
	}
}

// retryTransport re-sends a request after transient transport errors, with
// linearly growing backoff. Only errors netutil.ShouldRetry classifies as
// transient are retried; HTTP-level failures pass through untouched.
type retryTransport struct {
	base     http.RoundTripper
	attempts int
	backoff  time.Duration
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}

	var lastErr error
	for attempt := 1; attempt <= t.attempts; attempt++ {
		attemptReq, err := t.requestForAttempt(req, attempt)
		if err != nil {
			return nil, err
		}
		if attemptReq == nil {
			break // body cannot be replayed
		}

		resp, err := base.RoundTrip(attemptReq)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !netutil.ShouldRetry(err) || attempt == t.attempts {
			break
		}
		if err := sleepOrCancel(req, t.backoff*time.Duration(attempt)); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

// requestForAttempt returns the request to send on the given attempt, or nil
// when a consumed body makes a retry impossible.
func (t *retryTransport) requestForAttempt(req *http.Request, attempt int) (*http.Request, error) {
	if attempt == 1 {
		return req, nil
	}
	clone := req.Clone(req.Context())
	switch {
	case req.GetBody != nil:
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		clone.Body = body
	case req.Body != nil:
		return nil, nil
	}
	return clone, nil
}

func sleepOrCancel(req *http.Request, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-req.Context().Done():
		return req.Context().Err()
	case <-timer.C:
		return nil
	}
}
