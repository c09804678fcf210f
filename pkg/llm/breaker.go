package llm

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// BreakerCompleter guards a Completer with a CircuitBreaker. While the
// circuit is open calls fail immediately with an ErrorTypeCircuitOpen error.
// It never retries.
type BreakerCompleter struct {
	next    Completer
	breaker *CircuitBreaker
	logger  *zap.Logger
}

// NewBreakerCompleter wraps next with breaker.
func NewBreakerCompleter(next Completer, breaker *CircuitBreaker, logger *zap.Logger) *BreakerCompleter {
	return &BreakerCompleter{
		next:    next,
		breaker: breaker,
		logger:  logger.Named("llm_breaker"),
	}
}

// Complete implements Completer.
func (b *BreakerCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	if ok, err := b.breaker.Allow(); !ok {
		return "", NewError(ErrorTypeCircuitOpen, "model provider unavailable", false, err)
	}

	out, err := b.next.Complete(ctx, prompt)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			b.breaker.RecordCanceled()
			return "", err
		}
		b.breaker.RecordFailure()
		if b.breaker.State() == CircuitOpen {
			b.logger.Warn("Circuit breaker open",
				zap.Int("consecutive_failures", b.breaker.ConsecutiveFailures()),
				zap.Error(err))
		}
		return "", err
	}

	b.breaker.RecordSuccess()
	return out, nil
}

// State exposes the breaker state for health reporting.
func (b *BreakerCompleter) State() CircuitState {
	return b.breaker.State()
}
