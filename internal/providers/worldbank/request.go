package worldbank

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"wbi/internal/logging"
)

// maxErrorBody bounds how much of a failed response ends up in the error.
const maxErrorBody = 512

// getWithRetry performs a GET, retrying transient failures on the backoff
// schedule. Permanent failures return immediately.
func (p *Provider) getWithRetry(ctx context.Context, path string, params url.Values, tgt target) ([]byte, error) {
	endpoint := p.buildURL(path, params)
	schedule := p.newBackOff()

	for attempt := 1; ; attempt++ {
		body, fetchErr := p.doRequest(ctx, endpoint, tgt)
		if fetchErr == nil {
			return body, nil
		}
		if !fetchErr.Transient() || ctx.Err() != nil {
			return nil, fetchErr
		}

		delay := schedule.NextBackOff()
		if delay == backoff.Stop {
			return nil, fetchErr
		}
		p.metrics.RecordRetry()
		p.logger.Warn(ctx, "[FETCH] transient failure, retrying", logging.Fields{
			"stage":     tgt.stage,
			"indicator": tgt.indicator,
			"page":      tgt.page,
			"attempt":   attempt,
			"delay":     delay.String(),
			"error":     fetchErr.Error(),
		})
		if err := p.config.Sleep(ctx, delay); err != nil {
			return nil, tgt.fail(KindNetwork, 0, "retry interrupted", err)
		}
	}
}

// newBackOff yields InitialBackoff, doubling up to MaxBackoff, for at most
// MaxRetries retries. No jitter, so delays are reproducible.
func (p *Provider) newBackOff() backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.config.InitialBackoff
	exp.Multiplier = 2
	exp.RandomizationFactor = 0
	exp.MaxInterval = p.config.MaxBackoff
	exp.MaxElapsedTime = 0
	schedule := backoff.WithMaxRetries(exp, uint64(p.config.MaxRetries))
	schedule.Reset()
	return schedule
}

func (p *Provider) doRequest(ctx context.Context, endpoint string, tgt target) ([]byte, *FetchError) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, tgt.fail(KindNetwork, 0, "rate limiter", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, tgt.fail(KindInvalidInput, 0, "build request", err)
	}
	req.Header.Set("Accept", "application/json")
	if p.config.UserAgent != "" {
		req.Header.Set("User-Agent", p.config.UserAgent)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.metrics.RecordFetchRequest(0)
		return nil, tgt.fail(KindNetwork, 0, "", err)
	}
	defer resp.Body.Close()
	p.metrics.RecordFetchRequest(resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, tgt.fail(KindNetwork, resp.StatusCode, "read body", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, tgt.fail(KindHTTP, resp.StatusCode, truncate(strings.TrimSpace(string(body)), maxErrorBody), nil)
	}
	return body, nil
}

func (p *Provider) buildURL(path string, params url.Values) string {
	endpoint := p.config.BaseURL + "/" + strings.TrimLeft(path, "/")
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	return endpoint
}

func truncate(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	return fmt.Sprintf("%s... (%d bytes)", value[:limit], len(value))
}

type rateLimiter struct {
	tokens chan struct{}
	stop   chan struct{}
	once   sync.Once
}

func newRateLimiter(ratePerSec, burst int) *rateLimiter {
	if ratePerSec <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}

	limiter := &rateLimiter{
		tokens: make(chan struct{}, burst),
		stop:   make(chan struct{}),
	}
	for i := 0; i < burst; i++ {
		limiter.tokens <- struct{}{}
	}

	interval := time.Second / time.Duration(ratePerSec)
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-limiter.stop:
				return
			case <-ticker.C:
			}
			select {
			case limiter.tokens <- struct{}{}:
			default:
			}
		}
	}()

	return limiter
}

// Close stops the refill goroutine. Waiters still drain leftover tokens.
func (l *rateLimiter) Close() {
	if l == nil {
		return
	}
	l.once.Do(func() { close(l.stop) })
}

func (l *rateLimiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.tokens:
		return nil
	}
}

func sleepWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
