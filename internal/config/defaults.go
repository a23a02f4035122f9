package config

func (c *Config) applyDefaults() {
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.App.DataRoot == "" {
		c.App.DataRoot = "data/candles"
	}
	if c.App.ResultDB == "" {
		c.App.ResultDB = "data/results.db"
	}
	if c.App.ReportDir == "" {
		c.App.ReportDir = "data/reports"
	}
	if c.App.HTTPAddr == "" {
		c.App.HTTPAddr = ":9980"
	}

	if c.Simulation.InitialCash <= 0 {
		c.Simulation.InitialCash = 10000
	}
	if c.Simulation.FeeRate <= 0 {
		c.Simulation.FeeRate = 0.001
	}
	if c.Simulation.ExecutionTimeframe == "" {
		c.Simulation.ExecutionTimeframe = "1h"
	}
	if len(c.Simulation.FallbackTimeframes) == 0 {
		c.Simulation.FallbackTimeframes = []string{"4h", "1d"}
	}
	if c.Simulation.MaxConcurrentRuns <= 0 {
		c.Simulation.MaxConcurrentRuns = 2
	}

	if c.Fetch.Exchange == "" {
		c.Fetch.Exchange = "binance"
	}
	if c.Fetch.RateLimitPerMin <= 0 {
		c.Fetch.RateLimitPerMin = 480
	}
	if c.Fetch.MaxBatch <= 0 {
		c.Fetch.MaxBatch = 1000
	}
	if c.Fetch.MaxConcurrent <= 0 {
		c.Fetch.MaxConcurrent = 2
	}
}
