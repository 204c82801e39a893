package github

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	gogithub "github.com/google/go-github/v68/github"
)

// RateLimitError reports an exhausted GitHub rate limit and when it resets.
// The job engine parks the held job and sleeps until ResetAt.
type RateLimitError struct {
	StatusCode int
	Reset      time.Time
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("github rate limit exhausted (status %d), resets at %s",
		e.StatusCode, e.Reset.Format(time.RFC3339))
}

// ResetAt returns when the limit resets.
func (e *RateLimitError) ResetAt() time.Time { return e.Reset }

// translateError maps go-github failures onto pipeline error types. Typed
// rate-limit errors carry their own reset; raw 403/429 responses fall back
// to the x-ratelimit-reset header, then to now+60s.
func translateError(err error, resp *gogithub.Response) error {
	var rle *gogithub.RateLimitError
	if errors.As(err, &rle) {
		return &RateLimitError{StatusCode: http.StatusForbidden, Reset: rle.Rate.Reset.Time}
	}

	var arle *gogithub.AbuseRateLimitError
	if errors.As(err, &arle) {
		reset := time.Now().Add(60 * time.Second)
		if arle.RetryAfter != nil {
			reset = time.Now().Add(*arle.RetryAfter)
		}
		return &RateLimitError{StatusCode: http.StatusForbidden, Reset: reset}
	}

	if resp != nil && (resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests) {
		return &RateLimitError{StatusCode: resp.StatusCode, Reset: resetFromHeaders(resp)}
	}

	return err
}

func resetFromHeaders(resp *gogithub.Response) time.Time {
	if v := resp.Header.Get("x-ratelimit-reset"); v != "" {
		if epoch, err := strconv.ParseInt(v, 10, 64); err == nil {
			return time.Unix(epoch, 0)
		}
	}
	return time.Now().Add(60 * time.Second)
}
