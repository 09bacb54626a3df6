package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// EngineConfig holds the settings for snapshot collection and normalization.
type EngineConfig struct {
	// SupportedStates lists the raw socket states accepted by the
	// normalizer. Empty means the defaults (LISTENING, ESTABLISHED).
	SupportedStates []string `yaml:"supported_states"`
	ProcessCacheTTL string   `yaml:"process_cache_ttl"`
	CollectTimeout  string   `yaml:"collect_timeout"`
}

// SchedulerConfig holds the refresh scheduler settings.
type SchedulerConfig struct {
	// Periodic enables the background refresh ticker.
	Periodic     bool   `yaml:"periodic"`
	PollInterval string `yaml:"poll_interval"`
	// VerifyDelay is how long to let OS state settle before the
	// post-action verification refresh.
	VerifyDelay string `yaml:"verify_delay"`
}

// ActionsConfig holds the termination escalation bounds.
type ActionsConfig struct {
	GraceTimeout string `yaml:"grace_timeout"`
	KillTimeout  string `yaml:"kill_timeout"`
}

// MonitorConfig holds the single-port connection monitor settings.
type MonitorConfig struct {
	Interval string `yaml:"interval"`
}

// HistoryConfig holds the query history store settings.
type HistoryConfig struct {
	Path     string `yaml:"path"`
	Capacity int    `yaml:"capacity"`
}

// APIConfig holds the HTTP query surface settings.
type APIConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// NATSConfig holds the event sink settings.
type NATSConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// ClickHouseConfig holds the connection settings for the ClickHouse
// snapshot writer.
type ClickHouseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// WriterDef defines a single snapshot writer from the config file.
type WriterDef struct {
	Type       string           `yaml:"type"` // "text" or "clickhouse"
	Enabled    bool             `yaml:"enabled"`
	Interval   string           `yaml:"interval"`
	RootPath   string           `yaml:"root_path"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
}

// Config is the top-level configuration struct for the entire application.
type Config struct {
	Engine    EngineConfig      `yaml:"engine"`
	Scheduler SchedulerConfig   `yaml:"scheduler"`
	Actions   ActionsConfig     `yaml:"actions"`
	Monitor   MonitorConfig     `yaml:"monitor"`
	History   HistoryConfig     `yaml:"history"`
	Groups    map[string]string `yaml:"groups"`
	API       APIConfig         `yaml:"api"`
	NATS      NATSConfig        `yaml:"nats"`
	Writers   []WriterDef       `yaml:"writers"`
}

// LoadConfig reads the configuration from a YAML file and returns a Config struct.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	err = yaml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}

	return &cfg, nil
}
