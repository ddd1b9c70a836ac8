package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/cellcare/cellcare_backend/pkg/constants"
)

// envOnlyKeys have no defaults, so they are bound explicitly to make
// container deployments without a config file work.
var envOnlyKeys = []string{
	"exam_date.base_url",
	"exam_date.host",
	"exam_date.port",
	"exam_date.timeout_ms",
	"exam_date.retry_count",
	"exam_date.retry_delay_ms",
	"exam_date.batch_concurrency",
	"database.host",
	"database.user",
	"database.password",
	"database.dbname",
	"redis.addr",
	"redis.password",
}

func ReadConfig(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigName(constants.ConfigName)
	v.SetConfigType(constants.ConfigFormat)
	v.AddConfigPath(configPath)

	// e.g. CELLCARE_EXAM_DATE_BASE_URL overrides exam_date.base_url
	v.SetEnvPrefix(constants.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	for _, key := range envOnlyKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No file: only acceptable when the environment carries the configuration.
		if os.Getenv(constants.EnvPrefix+"_DATABASE_HOST") == "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.pool.max_open_conns", 25)
	v.SetDefault("database.pool.max_idle_conns", 5)
	v.SetDefault("database.pool.conn_max_lifetime_minutes", 5)

	v.SetDefault("server.timeout_seconds", 30)
	v.SetDefault("server.environment", "production")

	v.SetDefault("assessment.lock.ttl_seconds", 10)

	v.SetDefault("dedup.schedule.interval_minutes", 60)

	v.SetDefault("observability.service_name", constants.ServiceName)
	v.SetDefault("observability.metrics.path", "/metrics")
	v.SetDefault("observability.metrics.addr", ":9464")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output.stdout", true)
}
