package constants

const (
	// ConfigName is the base name of the config file, without extension.
	ConfigName = "config"

	// ConfigFormat is the viper config type.
	ConfigFormat = "yaml"

	// EnvPrefix is prepended to every environment override, e.g. CELLCARE_DATABASE_HOST.
	EnvPrefix = "CELLCARE"

	// ServiceName is used when observability.service_name is not configured.
	ServiceName = "cellcare_backend"
)
