package fetch

import (
	"context"
	"math/rand"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// DefaultMaxAttempts is the retry budget for scraper fetches.
const DefaultMaxAttempts = 3

// FetchWithRetry runs fetchFn up to maxAttempts times. Between attempts it
// sleeps 2^attempt seconds plus 500-1500ms of jitter; a 403 or 429 adds a
// further 3-6s so the upstream rate limiter can cool down. The final
// attempt's response (or error) is surfaced as-is.
func FetchWithRetry(ctx context.Context, maxAttempts int, log zerolog.Logger, fetchFn func() (*Response, error)) (*Response, error) {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	var resp *Response
	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		resp, err = fetchFn()
		if err == nil && resp.StatusCode < 400 {
			return resp, nil
		}
		if attempt == maxAttempts-1 {
			break
		}

		backoff := time.Duration(1<<uint(attempt))*time.Second +
			time.Duration(500+rng.Intn(1000))*time.Millisecond
		if err == nil && (resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests) {
			extra := time.Duration(3000+rng.Intn(3000)) * time.Millisecond
			log.Debug().
				Int("status", resp.StatusCode).
				Dur("extra", extra).
				Msg("Rate limited upstream, extending backoff")
			backoff += extra
		}

		log.Debug().
			Int("attempt", attempt+1).
			Dur("backoff", backoff).
			Err(err).
			Msg("Fetch attempt failed, retrying")

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return resp, err
}
