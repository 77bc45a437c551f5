// Package config handles loading and validating the voicewrite configuration.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration for the voicewrite daemon.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Transports TransportsConfig `mapstructure:"transports"`
	TTS        TTSConfig        `mapstructure:"tts"`
	Player     PlayerConfig     `mapstructure:"player"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig holds the HTTP API and health server settings.
type ServerConfig struct {
	HTTPPort          int           `mapstructure:"http_port"`
	HealthPort        int           `mapstructure:"health_port"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
}

// TransportsConfig holds the configuration for the optional transports.
// The HTTP API is always served.
type TransportsConfig struct {
	GRPC GRPCConfig `mapstructure:"grpc"`
	NATS NATSConfig `mapstructure:"nats"`
}

// GRPCConfig configures the gRPC transport.
type GRPCConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// NATSConfig configures the NATS transport.
type NATSConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	Subject string `mapstructure:"subject"`
	Queue   string `mapstructure:"queue"` // optional queue group
	Token   string `mapstructure:"token"`
}

// TTSConfig selects and configures the text-to-speech backend.
type TTSConfig struct {
	Enabled      bool              `mapstructure:"enabled"`
	Backend      string            `mapstructure:"backend"` // "edge" or "piper"
	MaxChars     int               `mapstructure:"max_chars"`
	DefaultVoice string            `mapstructure:"default_voice"`
	Voices       map[string]string `mapstructure:"voices"`   // public key -> provider voice, merged over the built-in catalog
	TempDir      string            `mapstructure:"temp_dir"` // empty means os.TempDir()
	Edge         EdgeConfig        `mapstructure:"edge"`
	Piper        PiperConfig       `mapstructure:"piper"`
}

// EdgeConfig holds settings for the Microsoft Edge read-aloud backend.
type EdgeConfig struct {
	Endpoint     string        `mapstructure:"endpoint"`
	TrustedToken string        `mapstructure:"trusted_token"`
	OutputFormat string        `mapstructure:"output_format"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// PiperConfig holds Piper TTS settings (Wyoming protocol).
type PiperConfig struct {
	Endpoint     string `mapstructure:"endpoint"` // Wyoming TCP endpoint (host:port)
	DefaultVoice string `mapstructure:"default_voice"`
}

// PlayerConfig configures the local audio playback chain.
//
// Commands are tried in order; the audio file path is appended as the last
// argument. A command whose binary is missing falls through to the next one.
type PlayerConfig struct {
	Commands []string      `mapstructure:"commands"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, text
}

// Load reads the configuration from file, environment variables, and defaults.
// If configFile is non-empty it is used directly; otherwise the standard
// search order applies: ./voicewrite.yaml, ./configs/voicewrite.yaml, /etc/voicewrite/voicewrite.yaml.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.http_port", 8000)
	v.SetDefault("server.health_port", 8081)
	v.SetDefault("server.read_header_timeout", "10s")
	v.SetDefault("server.shutdown_timeout", "35s")
	v.SetDefault("transports.grpc.enabled", false)
	v.SetDefault("transports.grpc.port", 50051)
	v.SetDefault("transports.nats.enabled", false)
	v.SetDefault("transports.nats.url", "nats://localhost:4222")
	v.SetDefault("transports.nats.subject", "voicewrite.speak")
	v.SetDefault("transports.nats.queue", "")
	v.SetDefault("transports.nats.token", "")
	v.SetDefault("tts.enabled", true)
	v.SetDefault("tts.backend", "edge")
	v.SetDefault("tts.max_chars", 500)
	v.SetDefault("tts.default_voice", "af_heart")
	v.SetDefault("tts.temp_dir", "")
	v.SetDefault("tts.edge.endpoint", "wss://speech.platform.bing.com/consumer/speech/synthesize/readaloud/edge/v1")
	v.SetDefault("tts.edge.trusted_token", "6A5AA1D4EAFF4E9FB37E23D68491D6F4")
	v.SetDefault("tts.edge.output_format", "audio-24khz-48kbitrate-mono-mp3")
	v.SetDefault("tts.edge.timeout", "60s")
	v.SetDefault("tts.piper.endpoint", "localhost:10200")
	v.SetDefault("tts.piper.default_voice", "en_US-lessac-medium")
	v.SetDefault("player.commands", []string{
		"ffplay -nodisp -autoexit -loglevel quiet",
		"aplay -q",
	})
	v.SetDefault("player.timeout", "30s")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Config file
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("voicewrite")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/voicewrite")
	}

	// Environment variables: VOICEWRITE_SERVER_HTTP_PORT, VOICEWRITE_TTS_BACKEND, etc.
	v.SetEnvPrefix("VOICEWRITE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (optional, env vars and defaults are sufficient)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		slog.Info("no config file found, using defaults and environment variables")
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	// Resolve env var references in sensitive fields (e.g., "${NATS_TOKEN}")
	cfg.Transports.NATS.Token = resolveEnvRef(cfg.Transports.NATS.Token)
	cfg.TTS.Edge.TrustedToken = resolveEnvRef(cfg.TTS.Edge.TrustedToken)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the values that would otherwise fail late at runtime.
func (c *Config) Validate() error {
	switch c.TTS.Backend {
	case "edge", "piper":
	default:
		return fmt.Errorf("unknown tts backend %q", c.TTS.Backend)
	}
	if c.TTS.MaxChars <= 0 {
		return fmt.Errorf("tts.max_chars must be positive, got %d", c.TTS.MaxChars)
	}
	if c.Player.Timeout <= 0 {
		return fmt.Errorf("player.timeout must be positive, got %s", c.Player.Timeout)
	}
	if c.Transports.NATS.Enabled && c.Transports.NATS.Subject == "" {
		return fmt.Errorf("transports.nats.subject is required when nats is enabled")
	}
	return nil
}

// resolveEnvRef replaces "${VAR_NAME}" patterns with the corresponding env var value.
func resolveEnvRef(val string) string {
	if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
		envKey := val[2 : len(val)-1]
		if envVal := os.Getenv(envKey); envVal != "" {
			return envVal
		}
	}
	return val
}

// SetupLogging configures the global slog logger based on config.
func SetupLogging(cfg LoggingConfig) {
	slog.SetDefault(slog.New(newHandler(cfg, os.Stdout)))
}

func newHandler(cfg LoggingConfig, w io.Writer) slog.Handler {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	if strings.ToLower(cfg.Format) == "text" {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}
