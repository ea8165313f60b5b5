package transport

import (
	"bytes"
	"context"
	"fmt"
	"github.com/cenkalti/backoff/v4"
	"github.com/juju/errors"
	"github.com/thapovan-inc/orion-llmobs-relay/encoder"
	"github.com/thapovan-inc/orion-llmobs-relay/util"
	"go.uber.org/zap"
	"io"
	"net/http"
	"time"
)

const (
	DefaultTimeout = 5 * time.Second

	maxBodyExcerpt = 512
)

// RetrySettings bounds how often a failed post is tried again. The zero value sends
// every batch exactly once.
type RetrySettings struct {
	// Attempts is the number of extra tries after the first one.
	Attempts        int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func (r RetrySettings) Enabled() bool {
	return r.Attempts > 0
}

// StatusError is returned when the intake answers with a status of 300 or above.
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("got response code %d from %s, status: %s", e.StatusCode, e.URL, e.Body)
}

// Permanent reports whether sending the same payload again cannot succeed.
func (e *StatusError) Permanent() bool {
	return e.StatusCode < 500 && e.StatusCode != http.StatusTooManyRequests && e.StatusCode != http.StatusRequestTimeout
}

type Sender struct {
	httpClient *http.Client
	timeout    time.Duration
	retry      RetrySettings
	logger     *zap.Logger
}

func NewSender(httpClient *http.Client, timeout time.Duration, retry RetrySettings, logger *zap.Logger) *Sender {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = util.GetLogger("transport", "NewSender")
	}
	if retry.InitialInterval <= 0 {
		retry.InitialInterval = backoff.DefaultInitialInterval
	}
	if retry.MaxInterval <= 0 {
		retry.MaxInterval = backoff.DefaultMaxInterval
	}
	return &Sender{httpClient: httpClient, timeout: timeout, retry: retry, logger: logger}
}

func (s *Sender) Timeout() time.Duration {
	return s.timeout
}

// Send posts payload to c. Each try is bounded by the sender timeout.
func (s *Sender) Send(ctx context.Context, c *Client, payload encoder.Payload) error {
	if !s.retry.Enabled() {
		return s.post(ctx, c, payload)
	}

	expBackoff := backoff.ExponentialBackOff{
		InitialInterval:     s.retry.InitialInterval,
		RandomizationFactor: backoff.DefaultRandomizationFactor,
		Multiplier:          backoff.DefaultMultiplier,
		MaxInterval:         s.retry.MaxInterval,
		MaxElapsedTime:      0,
		Clock:               backoff.SystemClock,
	}
	expBackoff.Reset()
	for attempt := 0; ; attempt++ {
		err := s.post(ctx, c, payload)
		if err == nil {
			return nil
		}
		if IsPermanent(err) || attempt >= s.retry.Attempts {
			return err
		}
		delay := expBackoff.NextBackOff()
		s.logger.Warn("post failed, will retry", zap.String("url", c.URL), zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay), zap.Error(err))
		select {
		case <-ctx.Done():
			return errors.Annotate(err, "request is cancelled or timed out")
		case <-time.After(delay):
		}
	}
}

func (s *Sender) post(ctx context.Context, c *Client, payload encoder.Payload) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(payload.Body))
	if err != nil {
		return errors.Annotatef(err, "unable to build request to %s", c.URL)
	}
	for k, v := range c.Headers {
		req.Header.Set(k, v)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return errors.Annotatef(err, "post to %s", c.URL)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyExcerpt))
		return &StatusError{URL: c.URL, StatusCode: resp.StatusCode, Body: string(excerpt)}
	}
	io.Copy(io.Discard, resp.Body)
	s.logger.Debug("sent events", zap.Int("count", payload.Count), zap.String("event_type", payload.EventType),
		zap.String("url", c.URL))
	return nil
}

// IsPermanent reports whether err came from an intake response that must not be retried.
func IsPermanent(err error) bool {
	statusErr, ok := errors.Cause(err).(*StatusError)
	return ok && statusErr.Permanent()
}

// StatusCode extracts the intake response code from err, or 0 when the post never got
// an answer.
func StatusCode(err error) int {
	if statusErr, ok := errors.Cause(err).(*StatusError); ok {
		return statusErr.StatusCode
	}
	return 0
}
