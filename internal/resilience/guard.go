package resilience

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"oliv/internal/logger"
	"oliv/internal/metrics"

	"github.com/cenkalti/backoff/v4"
	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// ErrUnavailable is returned when the breaker rejects a call without attempting it
var ErrUnavailable = errors.New("collaborator temporarily unavailable")

// Settings controls retry and breaker behaviour for one collaborator
type Settings struct {
	MaxRetries      int
	InitialBackoff  time.Duration
	MaxBackoff      time.Duration
	BreakerFailures int
	BreakerOpenFor  time.Duration
}

// Guard wraps calls to one external collaborator in bounded jittered retry and a circuit breaker.
// One Do call is one breaker observation no matter how many attempts it takes.
type Guard struct {
	name      string
	settings  Settings
	breaker   *gobreaker.CircuitBreaker
	retryable func(error) bool
	logger    *zap.Logger
}

// NewGuard creates a guard named after the collaborator it protects
func NewGuard(name string, settings Settings, log *zap.Logger) *Guard {
	log = logger.OrNop(log).With(zap.String("collaborator", name))
	failures := settings.BreakerFailures
	if failures <= 0 {
		failures = 5
	}

	g := &Guard{
		name:      name,
		settings:  settings,
		retryable: IsRetryable,
		logger:    log,
	}
	g.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     settings.BreakerOpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(failures)
		},
		IsSuccessful: func(err error) bool {
			// caller cancellation says nothing about the collaborator's health
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return g
}

// Name returns the collaborator name
func (g *Guard) Name() string {
	return g.name
}

// State returns the current breaker state
func (g *Guard) State() gobreaker.State {
	return g.breaker.State()
}

// Check reports ErrUnavailable while the breaker is open
func (g *Guard) Check(ctx context.Context) error {
	if g.State() == gobreaker.StateOpen {
		return ErrUnavailable
	}
	return nil
}

// Do runs op until it succeeds, fails permanently, or the retry budget is spent
func (g *Guard) Do(ctx context.Context, op func(ctx context.Context) error) error {
	_, err := g.breaker.Execute(func() (interface{}, error) {
		return nil, g.retry(ctx, op)
	})

	switch {
	case err == nil:
		metrics.CollaboratorCallsTotal.WithLabelValues(g.name, "success").Inc()
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.CollaboratorCallsTotal.WithLabelValues(g.name, "rejected").Inc()
		return ErrUnavailable
	default:
		metrics.CollaboratorCallsTotal.WithLabelValues(g.name, "failure").Inc()
	}
	return err
}

// Call is Do for operations that produce a value
func Call[T any](ctx context.Context, g *Guard, op func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := g.Do(ctx, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

func (g *Guard) retry(ctx context.Context, op func(ctx context.Context) error) error {
	attempt := 0
	operation := func() error {
		attempt++
		err := op(ctx)
		if err == nil {
			return nil
		}
		if !g.retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		g.logger.Debug("retrying collaborator call",
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err))
	}

	return backoff.RetryNotify(operation, g.policy(ctx), notify)
}

func (g *Guard) policy(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if g.settings.InitialBackoff > 0 {
		b.InitialInterval = g.settings.InitialBackoff
	}
	if g.settings.MaxBackoff > 0 {
		b.MaxInterval = g.settings.MaxBackoff
	}
	b.RandomizationFactor = 0.5
	b.MaxElapsedTime = 0

	retries := g.settings.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)
}

// IsRetryable reports whether err is a transient failure worth another attempt:
// rate limiting, server errors, timeouts and connection failures.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return retryableStatus(reqErr.HTTPStatusCode)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return false
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code == http.StatusRequestTimeout || code >= 500
}
