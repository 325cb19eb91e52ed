// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides the HTTP client and retry helper shared by the
// search and download collaborators.
package httputil

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pdiddy/paper-podcast/internal/logging"
	"github.com/pdiddy/paper-podcast/pkg/types"
)

// RetryBaseDelay is the first backoff step. Tests override it to avoid
// real sleeps.
var RetryBaseDelay = 2 * time.Second

// MaxRetryAfter caps the wait a server can request through Retry-After.
var MaxRetryAfter = time.Minute

const defaultMaxRetries = 3

var log = logging.New("httputil")

// NewClient returns an HTTP client honoring cfg.Timeout.
func NewClient(cfg types.HTTPConfig) *http.Client {
	return &http.Client{Timeout: cfg.Timeout}
}

// DoWithRetry executes req and retries when the server answers 429 (Too Many
// Requests) or 503 (Service Unavailable). The wait is the Retry-After header
// when present, otherwise RetryBaseDelay doubled per attempt.
//
// When maxRetries is 0 the default (3) is used. After exhausting retries the
// last throttled response is returned so the caller can inspect it. If ctx
// ends during a wait, ctx.Err() is returned.
func DoWithRetry(ctx context.Context, client *http.Client, req *http.Request, maxRetries int) (*http.Response, error) {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	for attempt := 0; ; attempt++ {
		resp, err := client.Do(req.Clone(ctx))
		if err != nil {
			return nil, err
		}
		if !throttled(resp.StatusCode) || attempt >= maxRetries {
			return resp, nil
		}

		wait := backoff(resp, attempt)
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		log.WithFields(logrus.Fields{
			"url":     req.URL.Redacted(),
			"status":  resp.StatusCode,
			"attempt": attempt + 1,
			"wait":    wait,
		}).Warn("throttled, retrying")

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}
}

func throttled(code int) bool {
	return code == http.StatusTooManyRequests || code == http.StatusServiceUnavailable
}

func backoff(resp *http.Response, attempt int) time.Duration {
	if s := resp.Header.Get("Retry-After"); s != "" {
		if secs, err := strconv.Atoi(s); err == nil && secs >= 0 {
			return min(time.Duration(secs)*time.Second, MaxRetryAfter)
		}
		if at, err := http.ParseTime(s); err == nil {
			return min(max(time.Until(at), 0), MaxRetryAfter)
		}
	}
	return RetryBaseDelay << attempt
}
