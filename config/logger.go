package config

import (
	loggercfg "github.com/nebulium/authcore/logging/logger/config"
	"github.com/spf13/viper"
)

// Logger logger config struct
type Logger = loggercfg.Config

func getLoggerConfig(v *viper.Viper) *Logger {
	return &Logger{
		Level:      getIntOrDefault(v, "logger.level", 1),
		Format:     getStringOrDefault(v, "logger.format", "json"),
		Output:     getStringOrDefault(v, "logger.output", "stdout"),
		OutputFile: v.GetString("logger.output_file"),
		Desensitization: &loggercfg.Desensitization{
			Enabled:         getBool(v, "logger.desensitization.enabled", true),
			SensitiveFields: v.GetStringSlice("logger.desensitization.sensitive_fields"),
		},
	}
}

func getBool(v *viper.Viper, key string, defaultValue bool) bool {
	if v.IsSet(key) {
		return v.GetBool(key)
	}
	return defaultValue
}
