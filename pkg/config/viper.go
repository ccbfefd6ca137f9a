// Package config prepares the viper instance shared by the CLI commands. It
// registers defaults, search paths and GZX_* environment overrides, then
// reads the first config file it finds.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	internalconfig "github.com/PeakJoy/gzxspider/internal/config"
)

// InitConfig initializes v. An explicit cfgFile must exist; otherwise a
// missing config.yaml in the search paths is not an error.
func InitConfig(v *viper.Viper, cfgFile string, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/gzxspider/")
		v.AddConfigPath("$HOME/.gzxspider")
	}

	internalconfig.SetDefaults(v)

	v.SetEnvPrefix(internalconfig.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			logger.Debug("config file not found; using defaults, environment and flags")
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	logger.Info("using config file", zap.String("path", v.ConfigFileUsed()))
	return nil
}
