package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	mssql "github.com/microsoft/go-mssqldb"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-askdb/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-askdb/pkg/llm"
)

func fastConfig() *Config {
	return &Config{
		MaxRetries:   3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.MaxRetries != 3 {
		t.Errorf("expected MaxRetries=3, got %d", cfg.MaxRetries)
	}
	if cfg.InitialDelay != 100*time.Millisecond {
		t.Errorf("expected InitialDelay=100ms, got %v", cfg.InitialDelay)
	}
	if cfg.MaxDelay != 5*time.Second {
		t.Errorf("expected MaxDelay=5s, got %v", cfg.MaxDelay)
	}
	if cfg.MaxSameErrorType != 5 {
		t.Errorf("expected MaxSameErrorType=5, got %d", cfg.MaxSameErrorType)
	}
}

func TestDo_SuccessAfterRetries(t *testing.T) {
	callCount := 0
	err := Do(context.Background(), fastConfig(), func() error {
		callCount++
		if callCount < 3 {
			return errors.New("temporary error")
		}
		return nil
	})

	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if callCount != 3 {
		t.Errorf("expected 3 calls, got %d", callCount)
	}
}

func TestDo_MaxRetriesExhausted(t *testing.T) {
	expectedErr := errors.New("persistent error")
	callCount := 0
	err := Do(context.Background(), fastConfig(), func() error {
		callCount++
		return expectedErr
	})

	if err != expectedErr {
		t.Errorf("expected %v, got %v", expectedErr, err)
	}
	if callCount != 4 {
		t.Errorf("expected 4 calls (1 initial + 3 retries), got %d", callCount)
	}
}

func TestDo_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := &Config{
		MaxRetries:   5,
		InitialDelay: time.Second,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
	}

	callCount := 0
	err := Do(ctx, cfg, func() error {
		callCount++
		cancel()
		return errors.New("error")
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if callCount != 1 {
		t.Errorf("expected 1 call before cancellation, got %d", callCount)
	}
}

func TestDo_MaxDelayRespected(t *testing.T) {
	cfg := &Config{
		MaxRetries:   4,
		InitialDelay: 20 * time.Millisecond,
		MaxDelay:     30 * time.Millisecond,
		Multiplier:   4.0,
	}

	var callTimes []time.Time
	_ = Do(context.Background(), cfg, func() error {
		callTimes = append(callTimes, time.Now())
		return errors.New("error")
	})

	for i := 2; i < len(callTimes); i++ {
		if d := callTimes[i].Sub(callTimes[i-1]); d > 80*time.Millisecond {
			t.Errorf("delay %d exceeded max delay: %v", i, d)
		}
	}
}

func TestDoWithResult(t *testing.T) {
	callCount := 0
	result, err := DoWithResult(context.Background(), fastConfig(), func() (int, error) {
		callCount++
		if callCount < 2 {
			return 0, errors.New("not yet")
		}
		return 42, nil
	})

	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if result != 42 {
		t.Errorf("expected 42, got %d", result)
	}
}

func TestDoWithResult_NilConfig(t *testing.T) {
	result, err := DoWithResult(context.Background(), nil, func() (bool, error) {
		return true, nil
	})

	if err != nil {
		t.Errorf("expected no error with nil config, got %v", err)
	}
	if !result {
		t.Error("expected true result")
	}
}

type declaredError struct{ retryable bool }

func (e declaredError) Error() string     { return "declared" }
func (e declaredError) IsRetryable() bool { return e.retryable }

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"connection refused", errors.New("connection refused"), true},
		{"Connection Refused (uppercase)", errors.New("Connection Refused"), true},
		{"broken pipe", errors.New("write: broken pipe"), true},
		{"i/o timeout", errors.New("read tcp: i/o timeout"), true},
		{"sql server transport", errors.New("A transport-level error has occurred"), true},
		{"rate limit", errors.New("HTTP 429 too many requests"), true},
		{"context canceled", fmt.Errorf("insert: %w", context.Canceled), false},
		{"context deadline", fmt.Errorf("insert: %w", context.DeadlineExceeded), false},
		{"declared retryable", declaredError{retryable: true}, true},
		{"declared permanent with transient text", fmt.Errorf("timeout: %w", declaredError{retryable: false}), false},
		{"pg serialization failure", &pgconn.PgError{Code: "40001"}, true},
		{"pg connection exception", fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: "08006"}), true},
		{"pg too many connections", &pgconn.PgError{Code: "53300"}, true},
		{"pg unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"pg undefined table", &pgconn.PgError{Code: "42P01"}, false},
		{"mssql deadlock victim", mssql.Error{Number: 1205, Message: "deadlock victim"}, true},
		{"mssql azure throttling", fmt.Errorf("query: %w", mssql.Error{Number: 40501}), true},
		{"mssql invalid object", mssql.Error{Number: 208, Message: "Invalid object name"}, false},
		{"auth error", errors.New("authentication failed"), false},
		{"syntax error", errors.New("syntax error at position 10"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsRetryable(tt.err)
			if result != tt.expected {
				t.Errorf("IsRetryable(%v) = %v, expected %v", tt.err, result, tt.expected)
			}
		})
	}
}

func TestDoIfRetryable_RetryableError(t *testing.T) {
	callCount := 0
	err := DoIfRetryable(context.Background(), fastConfig(), func() error {
		callCount++
		if callCount < 3 {
			return errors.New("connection timeout")
		}
		return nil
	})

	if err != nil {
		t.Errorf("expected no error after retries, got %v", err)
	}
	if callCount != 3 {
		t.Errorf("expected 3 calls, got %d", callCount)
	}
}

func TestDoIfRetryable_PermanentError(t *testing.T) {
	permanent := &pgconn.PgError{Code: "23505", Message: "duplicate key"}
	callCount := 0
	err := DoIfRetryable(context.Background(), fastConfig(), func() error {
		callCount++
		return permanent
	})

	if !errors.Is(err, permanent) {
		t.Errorf("expected permanent error, got %v", err)
	}
	if callCount != 1 {
		t.Errorf("expected 1 call (no retries), got %d", callCount)
	}
}

func TestDoIfRetryable_EscalatesRepeatedErrors(t *testing.T) {
	cfg := fastConfig()
	cfg.MaxRetries = 10
	cfg.MaxSameErrorType = 3

	callCount := 0
	err := DoIfRetryable(context.Background(), cfg, func() error {
		callCount++
		return errors.New("HTTP 503 service unavailable")
	})

	if err == nil {
		t.Fatal("expected error")
	}
	if callCount != 3 {
		t.Errorf("expected escalation after 3 calls, got %d", callCount)
	}
}

func TestClassifyErrorType(t *testing.T) {
	tests := []struct {
		err      error
		expected string
	}{
		{nil, "nil"},
		{errors.New("HTTP 503"), "503"},
		{errors.New("connection reset by peer"), "connection"},
		{errors.New("i/o timeout"), "timeout"},
		{&pgconn.PgError{Code: "40P01"}, "pg_40P01"},
		{mssql.Error{Number: 1205}, "mssql_1205"},
		{errors.New("something odd"), "unknown"},
	}

	for _, tt := range tests {
		if got := classifyErrorType(tt.err); got != tt.expected {
			t.Errorf("classifyErrorType(%v) = %q, expected %q", tt.err, got, tt.expected)
		}
	}
}

func TestIsRetryable_ModelErrors(t *testing.T) {
	endpointErr := llm.NewError(llm.ErrorTypeEndpoint, "server error", true, errors.New("HTTP 503"))
	authErr := llm.NewError(llm.ErrorTypeAuth, "authentication failed", false, errors.New("HTTP 401"))

	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "endpoint error", err: endpointErr, expected: true},
		{name: "auth error", err: authErr, expected: false},
		{name: "model unavailable wrapping endpoint error", err: fmt.Errorf("%w: %w", apperrors.ErrModelUnavailable, endpointErr), expected: true},
		{name: "model unavailable wrapping auth error", err: fmt.Errorf("%w: %w", apperrors.ErrModelUnavailable, authErr), expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.expected {
				t.Errorf("IsRetryable(%v) = %v, expected %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestIsRetryable_OpenCircuitIsPermanent(t *testing.T) {
	failing := &llm.MockCompleter{Err: llm.NewError(llm.ErrorTypeEndpoint, "connection refused", true, errors.New("dial tcp"))}
	breaker := llm.NewBreakerCompleter(failing, llm.NewCircuitBreaker(llm.CircuitBreakerConfig{Threshold: 1, ResetAfter: time.Hour}), zap.NewNop())

	_, err := breaker.Complete(context.Background(), "prompt")
	if !IsRetryable(err) {
		t.Fatalf("expected the provider error to be retryable, got %v", err)
	}

	calls := 0
	err = DoIfRetryable(context.Background(), fastConfig(), func() error {
		calls++
		_, err := breaker.Complete(context.Background(), "prompt")
		return err
	})

	if llm.GetErrorType(err) != llm.ErrorTypeCircuitOpen {
		t.Errorf("expected circuit_open error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call (no retries while open), got %d", calls)
	}
	if failing.Calls() != 1 {
		t.Errorf("expected the provider to be called once, got %d", failing.Calls())
	}
}
