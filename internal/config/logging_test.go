package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gopkg.in/yaml.v3"
)

func TestLoggingConfigYAMLParsing(t *testing.T) {
	yamlData := `
level: "debug"
format: "json"
dir: "/var/log/docflow"
rotation:
  max_size: 50
  compress: false
console:
  enabled: false
  level: "warn"
`
	var cfg LoggingConfig
	assert.NoError(t, yaml.Unmarshal([]byte(yamlData), &cfg))
	cfg.ApplyDefaults()

	assert.Equal(t, "debug", cfg.Level)
	assert.Equal(t, "json", cfg.Format)
	assert.Equal(t, "/var/log/docflow", cfg.Dir)
	assert.Equal(t, 50, cfg.Rotation.MaxSize)
	assert.Equal(t, 10, cfg.Rotation.MaxBackups)
	assert.False(t, cfg.Console.Enabled)
	assert.Equal(t, "warn", cfg.Console.Level)
	assert.True(t, cfg.File.Enabled)
	assert.Equal(t, "debug", cfg.File.Level)
	assert.Equal(t, "json", cfg.File.Format)
}

func TestLoggingConfigApplyDefaults(t *testing.T) {
	cfg := &LoggingConfig{}
	cfg.ApplyDefaults()

	d := DefaultLoggingConfig()
	assert.Equal(t, d.Level, cfg.Level)
	assert.Equal(t, d.Format, cfg.Format)
	assert.Equal(t, d.Dir, cfg.Dir)
	assert.Equal(t, d.Rotation.MaxAge, cfg.Rotation.MaxAge)
	// an unset compress flag cannot be told from false
	assert.False(t, cfg.Rotation.Compress)
	assert.True(t, cfg.Console.Enabled)
	assert.True(t, cfg.File.Enabled)
}

func TestLoggingConfigResolvePaths(t *testing.T) {
	tests := []struct {
		name      string
		configDir string
		dir       string
		expected  string
	}{
		{"next to config dir", "/app/config", "logs", "/app/logs"},
		{"nested", "/app/config", "logs/app", "/app/logs/app"},
		{"relative to config dir", "/app/config", "../var/logs", "/app/var/logs"},
		{"absolute", "/app/config", "/var/log/docflow", "/var/log/docflow"},
		{"empty", "/app/config", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &LoggingConfig{Dir: tt.dir}
			cfg.ResolvePaths(tt.configDir)
			assert.Equal(t, tt.expected, cfg.Dir)
		})
	}
}

func TestLoggingConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*LoggingConfig)
		wantErr string
	}{
		{"defaults", func(*LoggingConfig) {}, ""},
		{"bad level", func(c *LoggingConfig) { c.Level = "trace" }, "invalid log level"},
		{"bad format", func(c *LoggingConfig) { c.Format = "xml" }, "invalid log format"},
		{"empty dir", func(c *LoggingConfig) { c.Dir = "" }, "log directory cannot be empty"},
		{"bad console level", func(c *LoggingConfig) { c.Console.Level = "loud" }, "invalid console log level"},
		{"bad file format", func(c *LoggingConfig) { c.File.Format = "csv" }, "invalid file log format"},
		{"disabled file output is not checked", func(c *LoggingConfig) { c.File.Enabled = false; c.File.Format = "csv" }, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultLoggingConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestLoggingConfigApplyEnvOverrides(t *testing.T) {
	t.Setenv("DOCFLOW_LOG_LEVEL", "DEBUG")
	t.Setenv("DOCFLOW_LOG_FORMAT", "json")
	t.Setenv("DOCFLOW_LOG_DIR", "/tmp/docflow-logs")

	cfg := DefaultLoggingConfig()
	cfg.ApplyEnvOverrides()

	assert.Equal(t, "debug", cfg.Level)
	assert.Equal(t, "debug", cfg.Console.Level)
	assert.Equal(t, "debug", cfg.File.Level)
	assert.Equal(t, "json", cfg.Format)
	assert.Equal(t, "/tmp/docflow-logs", cfg.Dir)
}
