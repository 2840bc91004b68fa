// Package config loads process-wide settings. Values are read once at
// startup and treated as read-only afterwards.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Toolchain ToolchainConfig `mapstructure:"toolchain" yaml:"toolchain"`
	Worker    WorkerConfig    `mapstructure:"worker" yaml:"worker"`
	Severity  SeverityConfig  `mapstructure:"severity" yaml:"severity"`
	LLM       LLMConfig       `mapstructure:"llm" yaml:"llm"`
	Hardware  HardwareConfig  `mapstructure:"hardware" yaml:"hardware"`
	Speech    SpeechConfig    `mapstructure:"speech" yaml:"speech"`
	Logger    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr" yaml:"addr"`
	Mode            string        `mapstructure:"mode" yaml:"mode"`
	CORSOrigins     []string      `mapstructure:"cors_origins" yaml:"cors_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// ToolchainConfig selects and tunes the C toolchain.
type ToolchainConfig struct {
	Backend               string        `mapstructure:"backend" yaml:"backend"`
	Compiler              string        `mapstructure:"compiler" yaml:"compiler"`
	Flags                 []string      `mapstructure:"flags" yaml:"flags"`
	ScratchDir            string        `mapstructure:"scratch_dir" yaml:"scratch_dir"`
	KeepArtifacts         bool          `mapstructure:"keep_artifacts" yaml:"keep_artifacts"`
	CompileTimeout        time.Duration `mapstructure:"compile_timeout" yaml:"compile_timeout"`
	RunTimeout            time.Duration `mapstructure:"run_timeout" yaml:"run_timeout"`
	InteractiveRunTimeout time.Duration `mapstructure:"interactive_run_timeout" yaml:"interactive_run_timeout"`
	Judge0URL             string        `mapstructure:"judge0_url" yaml:"judge0_url"`
	Judge0AuthToken       string        `mapstructure:"judge0_auth_token" yaml:"-"`
	Judge0LanguageID      int           `mapstructure:"judge0_language_id" yaml:"judge0_language_id"`
}

// WorkerConfig sizes the pool that runs toolchain invocations.
type WorkerConfig struct {
	Concurrency int `mapstructure:"concurrency" yaml:"concurrency"`
	QueueSize   int `mapstructure:"queue_size" yaml:"queue_size"`
}

// SeverityConfig holds scoring defaults.
type SeverityConfig struct {
	DefaultMode string `mapstructure:"default_mode" yaml:"default_mode"`
}

// LLMConfig configures the explanation service.
type LLMConfig struct {
	APIKey            string        `mapstructure:"api_key" yaml:"-"`
	Model             string        `mapstructure:"model" yaml:"model"`
	FallbackModels    []string      `mapstructure:"fallback_models" yaml:"fallback_models"`
	Timeout           time.Duration `mapstructure:"timeout" yaml:"timeout"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
	Temperature       float32       `mapstructure:"temperature" yaml:"temperature"`
	MaxRetries        int           `mapstructure:"max_retries" yaml:"max_retries"`
}

// HardwareConfig configures the serial severity meter.
type HardwareConfig struct {
	Enabled    bool          `mapstructure:"enabled" yaml:"enabled"`
	Port       string        `mapstructure:"port" yaml:"port"`
	BaudRate   int           `mapstructure:"baud_rate" yaml:"baud_rate"`
	ResetDelay time.Duration `mapstructure:"reset_delay" yaml:"reset_delay"`
}

// SpeechConfig configures spoken alerts.
type SpeechConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Command string `mapstructure:"command" yaml:"command"`
	Voice   string `mapstructure:"voice" yaml:"voice"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// SetDefaults registers default values for every key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":5000")
	v.SetDefault("server.mode", "all")
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("toolchain.backend", "local")
	v.SetDefault("toolchain.compiler", "gcc")
	v.SetDefault("toolchain.flags", []string{"-Wall"})
	v.SetDefault("toolchain.scratch_dir", "temp_submissions")
	v.SetDefault("toolchain.keep_artifacts", false)
	v.SetDefault("toolchain.compile_timeout", 30*time.Second)
	v.SetDefault("toolchain.run_timeout", 3*time.Second)
	v.SetDefault("toolchain.interactive_run_timeout", 10*time.Second)
	v.SetDefault("toolchain.judge0_url", "http://judge0-server:2358")
	v.SetDefault("toolchain.judge0_language_id", 50)

	v.SetDefault("worker.concurrency", 4)
	v.SetDefault("worker.queue_size", 32)

	v.SetDefault("severity.default_mode", "pro")

	v.SetDefault("llm.model", "")
	v.SetDefault("llm.fallback_models", []string{"gemini-2.0-flash", "gemini-1.5-flash", "gemini-pro"})
	v.SetDefault("llm.timeout", 60*time.Second)
	v.SetDefault("llm.requests_per_minute", 15)
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.max_retries", 3)

	v.SetDefault("hardware.enabled", false)
	v.SetDefault("hardware.port", "")
	v.SetDefault("hardware.baud_rate", 9600)
	v.SetDefault("hardware.reset_delay", 2*time.Second)

	v.SetDefault("speech.enabled", false)
	v.SetDefault("speech.command", "espeak")
	v.SetDefault("speech.voice", "female")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", "codemate")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)
}

// NewDefaultConfig returns a Config holding only default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	// Unmarshalling defaults cannot fail.
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// Load reads the config file (if any) and CODEMATE_* environment variables
// into a validated Config. An empty path looks for ./config.yaml.
func Load(v *viper.Viper, path string) (*Config, error) {
	SetDefaults(v)
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("CODEMATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// GEMINI_API_KEY is honoured for compatibility with existing setups.
	_ = v.BindEnv("llm.api_key", "CODEMATE_LLM_API_KEY", "GEMINI_API_KEY")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail deep inside a request.
func (c *Config) Validate() error {
	var errs []error
	switch c.Server.Mode {
	case "all", "api":
	default:
		errs = append(errs, fmt.Errorf("server.mode must be \"all\" or \"api\", got %q", c.Server.Mode))
	}
	switch c.Toolchain.Backend {
	case "local":
		if c.Toolchain.Compiler == "" {
			errs = append(errs, errors.New("toolchain.compiler is required for the local backend"))
		}
	case "judge0":
		if c.Toolchain.Judge0URL == "" {
			errs = append(errs, errors.New("toolchain.judge0_url is required for the judge0 backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("toolchain.backend must be \"local\" or \"judge0\", got %q", c.Toolchain.Backend))
	}
	if c.Toolchain.CompileTimeout <= 0 {
		errs = append(errs, errors.New("toolchain.compile_timeout must be positive"))
	}
	if c.Toolchain.RunTimeout <= 0 {
		errs = append(errs, errors.New("toolchain.run_timeout must be positive"))
	}
	if c.Toolchain.InteractiveRunTimeout <= 0 {
		errs = append(errs, errors.New("toolchain.interactive_run_timeout must be positive"))
	}
	if c.Worker.Concurrency <= 0 {
		errs = append(errs, errors.New("worker.concurrency must be a positive integer"))
	}
	if c.Worker.QueueSize < 0 {
		errs = append(errs, errors.New("worker.queue_size must not be negative"))
	}
	switch strings.ToLower(c.Severity.DefaultMode) {
	case "student", "pro":
	default:
		errs = append(errs, fmt.Errorf("severity.default_mode must be \"student\" or \"pro\", got %q", c.Severity.DefaultMode))
	}
	if c.LLM.RequestsPerMinute < 0 {
		errs = append(errs, errors.New("llm.requests_per_minute must not be negative"))
	}
	if c.Hardware.Enabled && c.Hardware.BaudRate <= 0 {
		errs = append(errs, errors.New("hardware.baud_rate must be positive"))
	}
	return errors.Join(errs...)
}
