package llm

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// NewCompleter creates the Completer for cfg.Provider and guards it with a
// circuit breaker.
func NewCompleter(cfg *Config, breakerCfg CircuitBreakerConfig, logger *zap.Logger) (Completer, error) {
	var (
		client Completer
		err    error
	)

	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderOpenAI:
		client, err = NewClient(cfg, logger)
	case ProviderAnthropic:
		client, err = NewAnthropicClient(cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s client: %w", cfg.Provider, err)
	}

	return NewBreakerCompleter(client, NewCircuitBreaker(breakerCfg), logger), nil
}
