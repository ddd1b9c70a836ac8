package config

type Config struct {
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Server        ServerConfig        `mapstructure:"server"`
	ExamDate      ExamDateConfig      `mapstructure:"exam_date"`
	Assessment    AssessmentConfig    `mapstructure:"assessment"`
	Dedup         DedupConfig         `mapstructure:"dedup"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Logging       LoggingConfig       `mapstructure:"logging"`
}

type DatabaseConfig struct {
	Host       string                  `mapstructure:"host"`
	Port       int                     `mapstructure:"port"`
	User       string                  `mapstructure:"user"`
	Password   string                  `mapstructure:"password"`
	DBName     string                  `mapstructure:"dbname"`
	SSLMode    string                  `mapstructure:"sslmode"`
	Pool       DatabasePoolConfig      `mapstructure:"pool"`
	Migrations DatabaseMigrationConfig `mapstructure:"migrations"`
}

type DatabasePoolConfig struct {
	MaxOpenConns       int `mapstructure:"max_open_conns"`
	MaxIdleConns       int `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeMin int `mapstructure:"conn_max_lifetime_minutes"`
}

type DatabaseMigrationConfig struct {
	AutoMigrate bool `mapstructure:"auto_migrate"`
}

type RedisConfig struct {
	Addr                string `mapstructure:"addr"`
	DB                  int    `mapstructure:"db"`
	Username            string `mapstructure:"username"`
	Password            string `mapstructure:"password"`
	PoolSize            int    `mapstructure:"pool_size"`
	MinIdleConns        int    `mapstructure:"min_idle_conns"`
	DialTimeoutSeconds  int    `mapstructure:"dial_timeout_seconds"`
	ReadTimeoutSeconds  int    `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `mapstructure:"write_timeout_seconds"`
}

type ServerConfig struct {
	TimeoutSeconds int      `mapstructure:"timeout_seconds"`
	Environment    string   `mapstructure:"environment"`
	Timezone       string   `mapstructure:"timezone"` // IANA name used for "today", e.g. Asia/Shanghai
	Databases      []string `mapstructure:"databases"`
}

// ExamDateConfig points at the third-party exam-date lookup service.
// Either BaseURL or Host+Port must be set; there is no built-in endpoint.
type ExamDateConfig struct {
	BaseURL          string `mapstructure:"base_url"`
	Host             string `mapstructure:"host"`
	Port             int    `mapstructure:"port"`
	TimeoutMs        int    `mapstructure:"timeout_ms"`
	RetryCount       int    `mapstructure:"retry_count"`
	RetryDelayMs     int    `mapstructure:"retry_delay_ms"`
	BatchConcurrency int    `mapstructure:"batch_concurrency"`
}

type AssessmentConfig struct {
	VerifyCustomer bool       `mapstructure:"verify_customer"`
	Lock           LockConfig `mapstructure:"lock"`
}

type LockConfig struct {
	Enabled    bool `mapstructure:"enabled"`
	TTLSeconds int  `mapstructure:"ttl_seconds"`
}

type DedupConfig struct {
	Dependents []DependentTableConfig `mapstructure:"dependents"`
	Schedule   ScheduleConfig         `mapstructure:"schedule"`
}

// DependentTableConfig names a table whose Column holds an assessment id.
type DependentTableConfig struct {
	Table  string `mapstructure:"table"`
	Column string `mapstructure:"column"`
}

type ScheduleConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	IntervalMinutes int  `mapstructure:"interval_minutes"`
	RunOnStart      bool `mapstructure:"run_on_start"`
}

type ObservabilityConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	ServiceName    string        `mapstructure:"service_name"`
	ServiceVersion string        `mapstructure:"service_version"`
	Tracing        TracingConfig `mapstructure:"tracing"`
	Metrics        MetricsConfig `mapstructure:"metrics"`
}

type TracingConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	OTLPInsecure bool    `mapstructure:"otlp_insecure"`
	SamplingRate float64 `mapstructure:"sampling_rate"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
	Addr    string `mapstructure:"addr"` // listen address for the worker's metrics endpoint, e.g. ":9464"
}

type LoggingConfig struct {
	Level  string       `mapstructure:"level"`  // debug, info, warn, error
	Format string       `mapstructure:"format"` // text, json
	Output OutputConfig `mapstructure:"output"`
}

type OutputConfig struct {
	Stdout bool          `mapstructure:"stdout"`
	File   FileLogConfig `mapstructure:"file"`
	Loki   LokiConfig    `mapstructure:"loki"`
}

type FileLogConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Path       string `mapstructure:"path"`        // e.g. "logs/cellcare.log"
	MaxSizeMB  int    `mapstructure:"max_size_mb"` // rotate after N MB
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

type LokiConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"` // e.g. "http://localhost:3100"
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}
