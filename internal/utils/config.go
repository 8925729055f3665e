package utils

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML configuration for the cloudshield API.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	API      APIConfig      `yaml:"api"`
	Seed     SeedConfig     `yaml:"seed"`
	Realtime RealtimeConfig `yaml:"realtime"`
	Session  SessionConfig  `yaml:"session"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Port           string   `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// APIConfig tunes the mock service layer's simulated behaviour.
type APIConfig struct {
	LatencyMinMS    int     `yaml:"latency_min_ms"`
	LatencyMaxMS    int     `yaml:"latency_max_ms"`
	FailureRate     float64 `yaml:"failure_rate"`
	AdminRate       float64 `yaml:"admin_rate"`
	TokenSecret     string  `yaml:"token_secret"`
	TokenTTLMinutes int     `yaml:"token_ttl_minutes"`
	TrainStepMS     int     `yaml:"train_step_ms"`
}

// SeedConfig sizes the synthetic dataset generated at startup.
type SeedConfig struct {
	Logs           int   `yaml:"logs"`
	Anomalies      int   `yaml:"anomalies"`
	TimeSeriesDays int   `yaml:"time_series_days"`
	RandomSeed     int64 `yaml:"random_seed"`
}

type RealtimeConfig struct {
	IntervalSeconds    int     `yaml:"interval_seconds"`
	AnomalyProbability float64 `yaml:"anomaly_probability"`
}

type SessionConfig struct {
	StatePath string `yaml:"state_path"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// LoadConfig reads a YAML config file. An empty path yields the defaults; a
// named file that cannot be read or parsed is an error.
func LoadConfig(filename string) (*Config, error) {
	config := defaultConfig()

	if filename != "" {
		data, err := os.ReadFile(filename)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", filename, err)
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config file %s: %w", filename, err)
		}
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &config, nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Port: "5001",
			AllowedOrigins: []string{
				"http://localhost:3000",
				"http://localhost:5000",
			},
		},
		API: APIConfig{
			LatencyMinMS:    300,
			LatencyMaxMS:    800,
			FailureRate:     0.05,
			AdminRate:       0.3,
			TokenTTLMinutes: 24 * 60,
			TrainStepMS:     800,
		},
		Seed: SeedConfig{
			Logs:           200,
			Anomalies:      50,
			TimeSeriesDays: 30,
		},
		Realtime: RealtimeConfig{
			IntervalSeconds:    5,
			AnomalyProbability: 0.15,
		},
		Session: SessionConfig{
			StatePath: "data/session.json",
		},
		Logging: LoggingConfig{
			Level: "INFO",
		},
	}
}

// Validate fills defaults for missing values and rejects contradictions.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		c.Server.Port = "5001"
	}
	if c.API.LatencyMinMS < 0 || c.API.LatencyMaxMS < 0 {
		return fmt.Errorf("latency bounds must be non-negative")
	}
	if c.API.LatencyMaxMS < c.API.LatencyMinMS {
		return fmt.Errorf("latency_max_ms must be >= latency_min_ms")
	}
	if c.API.FailureRate < 0 || c.API.FailureRate > 1 {
		return fmt.Errorf("failure_rate must be within [0, 1]")
	}
	if c.API.AdminRate < 0 || c.API.AdminRate > 1 {
		return fmt.Errorf("admin_rate must be within [0, 1]")
	}
	if c.API.TokenTTLMinutes <= 0 {
		c.API.TokenTTLMinutes = 24 * 60
	}
	if c.API.TrainStepMS <= 0 {
		c.API.TrainStepMS = 800
	}
	if c.Seed.Logs < 0 || c.Seed.Anomalies < 0 {
		return fmt.Errorf("seed sizes must be non-negative")
	}
	if c.Seed.TimeSeriesDays <= 0 {
		c.Seed.TimeSeriesDays = 30
	}
	if c.Realtime.IntervalSeconds <= 0 {
		c.Realtime.IntervalSeconds = 5
	}
	if c.Realtime.AnomalyProbability < 0 || c.Realtime.AnomalyProbability > 1 {
		return fmt.Errorf("anomaly_probability must be within [0, 1]")
	}
	if c.Realtime.AnomalyProbability == 0 {
		c.Realtime.AnomalyProbability = 0.15
	}
	if c.Session.StatePath == "" {
		c.Session.StatePath = "data/session.json"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "INFO"
	}
	return nil
}

// Latency helpers converting the wire-format integers to durations.

func (c *APIConfig) LatencyMin() time.Duration {
	return time.Duration(c.LatencyMinMS) * time.Millisecond
}

func (c *APIConfig) LatencyMax() time.Duration {
	return time.Duration(c.LatencyMaxMS) * time.Millisecond
}

func (c *APIConfig) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLMinutes) * time.Minute
}

func (c *APIConfig) TrainStep() time.Duration {
	return time.Duration(c.TrainStepMS) * time.Millisecond
}

func (c *RealtimeConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}
