package config

import "time"

// Config represents the main configuration structure
type Config struct {
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Pseudonym PseudonymConfig `yaml:"pseudonym" mapstructure:"pseudonym"`
	NER       NERConfig       `yaml:"ner" mapstructure:"ner"`
	Logging   LoggingConfig   `yaml:"logging" mapstructure:"logging"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Audit     AuditConfig     `yaml:"audit" mapstructure:"audit"`
	WebSocket WebSocketConfig `yaml:"websocket" mapstructure:"websocket"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port         int           `yaml:"port" mapstructure:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
	RateLimit    struct {
		Enabled        bool `yaml:"enabled" mapstructure:"enabled"`
		RequestsPerMin int  `yaml:"requests_per_min" mapstructure:"requests_per_min"`
		Burst          int  `yaml:"burst" mapstructure:"burst"`
	} `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// PseudonymConfig controls the core pseudonymization pipeline.
type PseudonymConfig struct {
	// SkipTypes lists entity types excluded from detection, e.g. ["NUMBER"].
	SkipTypes []string `yaml:"skip_types" mapstructure:"skip_types"`

	// RoleWindow is the context radius in bytes the role classifier scans
	// around a person entity for role keywords.
	RoleWindow int `yaml:"role_window" mapstructure:"role_window"`

	// Seed drives every randomized substitute. Identical seed + input +
	// extractor output reproduces identical results.
	Seed int64 `yaml:"seed" mapstructure:"seed"`

	// PatternOverrides maps a rule name to a replacement regex. Compiled at
	// load time; a malformed expression fails Load.
	PatternOverrides map[string]string `yaml:"pattern_overrides" mapstructure:"pattern_overrides"`

	// PatternOnly explicitly degrades to pattern-only mode when the NER
	// collaborator is unavailable. Never implied.
	PatternOnly bool `yaml:"pattern_only" mapstructure:"pattern_only"`

	// DateShiftRangeDays bounds the random day offset applied to dates.
	DateShiftRangeDays int `yaml:"date_shift_range_days" mapstructure:"date_shift_range_days"`
}

// NERConfig configures the model-backed extractor collaborator.
type NERConfig struct {
	// Backend selects the extractor implementation: "http", "onnx" or "none".
	Backend string `yaml:"backend" mapstructure:"backend"`

	// Endpoint is the HTTP NER service URL when Backend is "http".
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"`

	// ModelPath locates the ONNX token-classification model when Backend is
	// "onnx" (requires the onnx build tag).
	ModelPath string `yaml:"model_path" mapstructure:"model_path"`

	// VocabPath locates the tokenizer vocabulary for the ONNX backend.
	VocabPath string `yaml:"vocab_path" mapstructure:"vocab_path"`

	// Timeout bounds one extract call; expiry fails with ExtractorTimeout.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`

	// MinScore discards model spans below this confidence.
	MinScore float64 `yaml:"min_score" mapstructure:"min_score"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"` // json or console
	File   struct {
		Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
		Path     string `yaml:"path" mapstructure:"path"`
		MaxSize  int    `yaml:"max_size" mapstructure:"max_size"`
		MaxAge   int    `yaml:"max_age" mapstructure:"max_age"`
		Compress bool   `yaml:"compress" mapstructure:"compress"`
	} `yaml:"file" mapstructure:"file"`
}

// CacheConfig contains the Redis result-cache configuration.
type CacheConfig struct {
	Enabled        bool          `yaml:"enabled" mapstructure:"enabled"`
	RedisURL       string        `yaml:"redis_url" mapstructure:"redis_url"`
	MaxConnections int           `yaml:"max_connections" mapstructure:"max_connections"`
	MinIdleConns   int           `yaml:"min_idle_conns" mapstructure:"min_idle_conns"`
	DefaultTTL     time.Duration `yaml:"default_ttl" mapstructure:"default_ttl"`
	KeyPrefix      string        `yaml:"key_prefix" mapstructure:"key_prefix"`
}

// AuditConfig contains the Postgres audit-store configuration.
type AuditConfig struct {
	Enabled     bool   `yaml:"enabled" mapstructure:"enabled"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int    `yaml:"max_conns" mapstructure:"max_conns"`
}

// WebSocketConfig contains WebSocket event-feed configuration.
type WebSocketConfig struct {
	Enabled         bool          `yaml:"enabled" mapstructure:"enabled"`
	Path            string        `yaml:"path" mapstructure:"path"`
	MaxConnections  int           `yaml:"max_connections" mapstructure:"max_connections"`
	ReadBufferSize  int           `yaml:"read_buffer_size" mapstructure:"read_buffer_size"`
	WriteBufferSize int           `yaml:"write_buffer_size" mapstructure:"write_buffer_size"`
	PingInterval    time.Duration `yaml:"ping_interval" mapstructure:"ping_interval"`
	WriteTimeout    time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
}

// GetDefaults returns a configuration with sensible defaults
func GetDefaults() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Pseudonym: PseudonymConfig{
			RoleWindow:         60,
			Seed:               1,
			DateShiftRangeDays: 7300,
		},
		NER: NERConfig{
			Backend:  "http",
			Endpoint: "http://localhost:8500/extract",
			Timeout:  10 * time.Second,
			MinScore: 0.5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Cache: CacheConfig{
			Enabled:        false,
			RedisURL:       "redis://localhost:6379",
			MaxConnections: 10,
			MinIdleConns:   2,
			DefaultTTL:     time.Hour,
			KeyPrefix:      "pseudo",
		},
		Audit: AuditConfig{
			Enabled:  false,
			MaxConns: 5,
		},
		WebSocket: WebSocketConfig{
			Enabled:         true,
			Path:            "/ws",
			MaxConnections:  100,
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			PingInterval:    30 * time.Second,
			WriteTimeout:    10 * time.Second,
		},
	}
	cfg.Server.RateLimit.Enabled = true
	cfg.Server.RateLimit.RequestsPerMin = 120
	cfg.Server.RateLimit.Burst = 20
	return cfg
}
