package config

import (
	"fmt"
	"strings"

	"stratlab/internal/market"
)

// validate 对配置进行基础校验。
func validate(c *Config) error {
	if err := c.App.validate(); err != nil {
		return err
	}
	if err := c.Simulation.validate(); err != nil {
		return err
	}
	if err := c.Fetch.validate(); err != nil {
		return err
	}
	return nil
}

func (a *AppConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(a.LogLevel)) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("app.log_level must be one of debug/info/warn/error, got %q", a.LogLevel)
	}
	if strings.TrimSpace(a.DataRoot) == "" {
		return fmt.Errorf("app.data_root cannot be empty")
	}
	if strings.TrimSpace(a.ResultDB) == "" {
		return fmt.Errorf("app.result_db cannot be empty")
	}
	return nil
}

func (s *SimulationConfig) validate() error {
	if s.InitialCash <= 0 {
		return fmt.Errorf("simulation.initial_cash must be positive")
	}
	if s.FeeRate < 0 || s.FeeRate >= 1 {
		return fmt.Errorf("simulation.fee_rate must be in [0,1)")
	}
	if _, err := market.ParseTimeframe(s.ExecutionTimeframe); err != nil {
		return fmt.Errorf("simulation.execution_timeframe: %w", err)
	}
	for _, tf := range s.FallbackTimeframes {
		if _, err := market.ParseTimeframe(tf); err != nil {
			return fmt.Errorf("simulation.fallback_timeframes: %w", err)
		}
	}
	if s.MaxConcurrentRuns <= 0 {
		return fmt.Errorf("simulation.max_concurrent_runs must be positive")
	}
	return nil
}

func (f *FetchConfig) validate() error {
	if strings.TrimSpace(f.Exchange) == "" {
		return fmt.Errorf("fetch.exchange cannot be empty")
	}
	if f.RateLimitPerMin <= 0 {
		return fmt.Errorf("fetch.rate_limit_per_min must be positive")
	}
	return nil
}
