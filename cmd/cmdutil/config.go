package cmdutil

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cellcare/cellcare_backend/config"
	"github.com/cellcare/cellcare_backend/pkg/logs"
)

// LoadConfig reads the file named by the root --config flag and installs the
// configured logger as the slog default.
func LoadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfgPath, err := cmd.Root().PersistentFlags().GetString("config")
	if err != nil {
		return nil, fmt.Errorf("failed to get config flag: %w", err)
	}
	cfg, err := config.ReadConfig(filepath.Dir(cfgPath))
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	slog.SetDefault(logs.New(cfg))
	return cfg, nil
}
