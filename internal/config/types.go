package config

// Config 进程级配置，按模块分节。
type Config struct {
	App        AppConfig        `yaml:"app"`
	Simulation SimulationConfig `yaml:"simulation"`
	Fetch      FetchConfig      `yaml:"fetch"`
	Schema     SchemaConfig     `yaml:"schema"`
}

// AppConfig 运行环境：日志、数据目录、HTTP 监听地址。
type AppConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogPath   string `yaml:"log_path"`
	AuditPath string `yaml:"audit_path"`
	DataRoot  string `yaml:"data_root"`
	ResultDB  string `yaml:"result_db"`
	ReportDir string `yaml:"report_dir"`
	HTTPAddr  string `yaml:"http_addr"`
}

// SimulationConfig 模拟引擎参数。
type SimulationConfig struct {
	InitialCash        float64  `yaml:"initial_cash"`
	FeeRate            float64  `yaml:"fee_rate"`
	ExecutionTimeframe string   `yaml:"execution_timeframe"`
	FallbackTimeframes []string `yaml:"fallback_timeframes"`
	MaxConcurrentRuns  int      `yaml:"max_concurrent_runs"`
}

// FetchConfig 历史行情拉取参数。
type FetchConfig struct {
	Exchange        string `yaml:"exchange"`
	BaseURL         string `yaml:"base_url"`
	ProxyURL        string `yaml:"proxy_url"`
	RateLimitPerMin int    `yaml:"rate_limit_per_min"`
	MaxBatch        int    `yaml:"max_batch"`
	MaxConcurrent   int    `yaml:"max_concurrent"`
}

// SchemaConfig 信号文档 JSON Schema 来源。
type SchemaConfig struct {
	Path  string `yaml:"path"`
	Watch bool   `yaml:"watch"`
}
