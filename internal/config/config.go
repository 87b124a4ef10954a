package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

var ErrInvalid = errors.New("invalid config")

type Config struct {
	Mode     string `mapstructure:"mode"`
	Port     int    `mapstructure:"port"`
	TCPAddr  string `mapstructure:"tcp_addr"`
	Secret   string `mapstructure:"secret"`
	LogLevel string `mapstructure:"log_level"`

	ReadLimit    int64         `mapstructure:"read_limit"`
	ReadBuffer   int           `mapstructure:"read_buffer"`
	MaxPayload   uint32        `mapstructure:"max_payload"`
	SendQueue    int           `mapstructure:"send_queue"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	PingPeriod   time.Duration `mapstructure:"ping_period"`

	SelfDelivery  bool   `mapstructure:"self_delivery"`
	ForwardFramed bool   `mapstructure:"forward_framed"`
	Backpressure  string `mapstructure:"backpressure"`

	JoinLimit    int           `mapstructure:"join_limit"`
	JoinInterval time.Duration `mapstructure:"join_interval"`
}

// Load reads config/config.<CONFIG_ENV>.yaml, dev by default. A missing file
// leaves the defaults in place.
func Load() (*Config, error) {
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return LoadFile(fmt.Sprintf("config/config.%s.yaml", env))
}

func LoadFile(fileName string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(fileName)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Err(err).Msg("config file not loaded, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).
		Str("tcp", cfg.TCPAddr).Str("backpressure", cfg.Backpressure).Msg("config ready")
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("tcp_addr", ":20008")
	v.SetDefault("secret", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("read_buffer", 4096)
	v.SetDefault("max_payload", 1<<20)
	v.SetDefault("send_queue", 256)
	v.SetDefault("write_timeout", "5s")
	v.SetDefault("ping_period", "54s")
	v.SetDefault("self_delivery", true)
	v.SetDefault("forward_framed", false)
	v.SetDefault("backpressure", "kick")
	v.SetDefault("join_limit", 0)
	v.SetDefault("join_interval", "1s")
}

func (c *Config) Validate() error {
	switch {
	case c.MaxPayload == 0:
		return fmt.Errorf("%w: max_payload must be positive", ErrInvalid)
	case c.SendQueue < 1:
		return fmt.Errorf("%w: send_queue must be at least 1", ErrInvalid)
	case c.ReadBuffer < 1:
		return fmt.Errorf("%w: read_buffer must be at least 1", ErrInvalid)
	case c.JoinLimit < 0:
		return fmt.Errorf("%w: join_limit must not be negative", ErrInvalid)
	case c.Backpressure != "kick" && c.Backpressure != "drop":
		return fmt.Errorf("%w: unknown backpressure policy %q", ErrInvalid, c.Backpressure)
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: log_level: %w", ErrInvalid, err)
	}
	return nil
}

// Level is the zerolog level named by log_level.
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}
