// Package config defines logger configuration.
package config

// Desensitization controls masking of sensitive values in log fields.
type Desensitization struct {
	Enabled         bool     `json:"enabled" yaml:"enabled"`
	SensitiveFields []string `json:"sensitive_fields" yaml:"sensitive_fields"`
}

// Config represents the logger configuration.
type Config struct {
	Level           int              `json:"level" yaml:"level"`
	Format          string           `json:"format" yaml:"format"` // "json" or "text"
	Output          string           `json:"output" yaml:"output"` // "stdout", "stderr", "file"
	OutputFile      string           `json:"output_file" yaml:"output_file"`
	Desensitization *Desensitization `json:"desensitization" yaml:"desensitization"`
}
