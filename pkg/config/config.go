package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cuemby/sentinel/pkg/client"
	"github.com/cuemby/sentinel/pkg/log"
	"github.com/cuemby/sentinel/pkg/remediation"
	"github.com/cuemby/sentinel/pkg/scanner"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// EnvAuthHeader overrides api.auth_header so credentials can stay out of the file
const EnvAuthHeader = "SENTINEL_API_AUTH_HEADER"

// Config is the complete service configuration
type Config struct {
	API        APIConfig        `yaml:"api"`
	Processing ProcessingConfig `yaml:"processing"`
	Queue      QueueConfig      `yaml:"queue"`
	Storage    StorageConfig    `yaml:"storage"`
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
}

// APIConfig describes the appliance inventory API
type APIConfig struct {
	BaseURL           string        `yaml:"base_url" validate:"required,url"`
	AuthHeader        string        `yaml:"auth_header" validate:"required"`
	ActorEmail        string        `yaml:"actor_email" validate:"required,email"`
	PageSize          int           `yaml:"page_size" validate:"gt=0"`
	Timeout           time.Duration `yaml:"timeout" validate:"gt=0"`
	RequestsPerSecond float64       `yaml:"requests_per_second" validate:"gte=0"`
	Burst             int           `yaml:"burst" validate:"gte=1"`
	Retry             RetryConfig   `yaml:"retry"`
}

// RetryConfig controls backoff for appliance API calls
type RetryConfig struct {
	ListMaxAttempts      int           `yaml:"list_max_attempts" validate:"gte=1"`
	OperationMaxAttempts int           `yaml:"operation_max_attempts" validate:"gte=1"`
	InitialDelay         time.Duration `yaml:"initial_delay" validate:"gte=0"`
	Multiplier           float64       `yaml:"multiplier" validate:"gte=1"`
}

// ProcessingConfig controls scanning and remediation
type ProcessingConfig struct {
	StaleThresholdMinutes int           `yaml:"stale_threshold_minutes" validate:"gt=0"`
	ScanInterval          time.Duration `yaml:"scan_interval" validate:"gt=0"`
	DispatchInterval      time.Duration `yaml:"dispatch_interval" validate:"gt=0"`
	WorkerPoolSize        int           `yaml:"worker_pool_size" validate:"gt=0"`
	WorkerBacklog         int           `yaml:"worker_backlog" validate:"gte=0"`
	ShutdownGrace         time.Duration `yaml:"shutdown_grace" validate:"gt=0"`
	FailureThreshold      int           `yaml:"failure_threshold" validate:"gte=1"`
}

// QueueConfig sizes the remediation queue
type QueueConfig struct {
	MaxSize int `yaml:"max_size" validate:"gt=0"`
}

// StorageConfig selects the operation store
type StorageConfig struct {
	Driver  string `yaml:"driver" validate:"oneof=bolt sqlite"`
	DataDir string `yaml:"data_dir" validate:"required"`
}

// ServerConfig holds the HTTP listener settings
type ServerConfig struct {
	Address string `yaml:"address" validate:"required,hostname_port"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `yaml:"json"`
}

// Default returns the configuration used for any value the file omits
func Default() *Config {
	return &Config{
		API: APIConfig{
			PageSize: 100,
			Timeout:  5 * time.Second,
			Burst:    1,
			Retry: RetryConfig{
				ListMaxAttempts:      5,
				OperationMaxAttempts: 3,
				InitialDelay:         500 * time.Millisecond,
				Multiplier:           1.5,
			},
		},
		Processing: ProcessingConfig{
			StaleThresholdMinutes: 30,
			ScanInterval:          5 * time.Minute,
			DispatchInterval:      100 * time.Millisecond,
			WorkerPoolSize:        10,
			WorkerBacklog:         50,
			ShutdownGrace:         60 * time.Second,
			FailureThreshold:      3,
		},
		Queue: QueueConfig{
			MaxSize: 1000,
		},
		Storage: StorageConfig{
			Driver:  "bolt",
			DataDir: "./sentinel-data",
		},
		Server: ServerConfig{
			Address: "0.0.0.0:8080",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads a YAML file over the defaults, applies environment overrides
// and validates the result
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if v := os.Getenv(EnvAuthHeader); v != "" {
		cfg.API.AuthHeader = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks every field and reports all violations at once
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("invalid config: %w", err)
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q (value %v)", fieldPath(fe), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// fieldPath drops the root struct name from the namespace
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

// StaleThreshold returns the staleness threshold as a duration
func (c *Config) StaleThreshold() time.Duration {
	return time.Duration(c.Processing.StaleThresholdMinutes) * time.Minute
}

// ClientConfig builds the appliance API client settings
func (c *Config) ClientConfig() client.Config {
	return client.Config{
		BaseURL:              c.API.BaseURL,
		AuthHeader:           c.API.AuthHeader,
		ActorEmail:           c.API.ActorEmail,
		Timeout:              c.API.Timeout,
		RequestsPerSecond:    c.API.RequestsPerSecond,
		Burst:                c.API.Burst,
		ListMaxAttempts:      c.API.Retry.ListMaxAttempts,
		OperationMaxAttempts: c.API.Retry.OperationMaxAttempts,
		InitialDelay:         c.API.Retry.InitialDelay,
		Multiplier:           c.API.Retry.Multiplier,
	}
}

// ScannerConfig builds the inventory scanner settings
func (c *Config) ScannerConfig() scanner.Config {
	return scanner.Config{
		PageSize:         c.API.PageSize,
		Interval:         c.Processing.ScanInterval,
		FailureThreshold: c.Processing.FailureThreshold,
	}
}

// PoolConfig builds the worker pool settings
func (c *Config) PoolConfig() remediation.PoolConfig {
	return remediation.PoolConfig{
		Size:    c.Processing.WorkerPoolSize,
		Backlog: c.Processing.WorkerBacklog,
	}
}

// LoggerConfig builds the logger settings
func (c *Config) LoggerConfig() log.Config {
	return log.Config{
		Level:      log.ParseLevel(c.Log.Level),
		JSONOutput: c.Log.JSON,
	}
}
