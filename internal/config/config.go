// Package config loads the unit's YAML configuration with environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"

	"github.com/ryandielhenn/izzy/pkg/heartbeat"
	"github.com/ryandielhenn/izzy/pkg/status"
)

// Config is the root application configuration.
type Config struct {
	Unit      UnitConfig      `mapstructure:"unit"`
	Protocol  ProtocolConfig  `mapstructure:"protocol"`
	Net       NetConfig       `mapstructure:"net"`
	Session   SessionConfig   `mapstructure:"session"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Log       LogConfig       `mapstructure:"log"`
	Motion    MotionConfig    `mapstructure:"motion"`
	Discovery DiscoveryConfig `mapstructure:"discovery"`
}

type UnitConfig struct {
	// Name is the first field of every status payload.
	Name string `mapstructure:"name"`
	// ID is this unit's UUID. Empty generates one per run.
	ID string `mapstructure:"id"`
	// InitialStatus is the status reported before any collaborator sets one.
	InitialStatus string `mapstructure:"initial_status"`
}

type ProtocolConfig struct {
	// Tag is the 11-byte protocol magic, as ASCII or 22 hex digits.
	Tag string `mapstructure:"tag"`
}

type NetConfig struct {
	Listen string `mapstructure:"listen"`
	// ReplyBind is the well-known local address replies leave from. Empty
	// picks an ephemeral port.
	ReplyBind string `mapstructure:"reply_bind"`
	// ReplyPort overrides the destination port of replies; 0 answers the
	// source port of the Hello.
	ReplyPort     int `mapstructure:"reply_port"`
	SendTimeoutMS int `mapstructure:"send_timeout_ms"`
}

type SessionConfig struct {
	PeerTimeoutMS int `mapstructure:"peer_timeout_ms"`
}

type HTTPConfig struct {
	// Listen for /healthz, /info, /session and /metrics. Empty disables.
	Listen string `mapstructure:"listen"`
}

// LogConfig defines logger settings.
type LogConfig struct {
	// Level: debug, info, warn, error
	Level string `mapstructure:"level"`
	// Format: console or json
	Format string `mapstructure:"format"`
	// Outputs: stdout, stderr, or file paths
	Outputs     []string       `mapstructure:"outputs"`
	Rotation    RotationConfig `mapstructure:"rotation"`
	Development bool           `mapstructure:"development"`
}

// RotationConfig controls log file rotation for file outputs.
type RotationConfig struct {
	Enable     bool `mapstructure:"enable"`
	MaxSizeMB  int  `mapstructure:"max_size_mb"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAgeDays int  `mapstructure:"max_age_days"`
	Compress   bool `mapstructure:"compress"`
}

// MotionConfig describes the Kangaroo controller and drive geometry.
type MotionConfig struct {
	// Port is the serial device; empty runs without a motion controller.
	Port              string  `mapstructure:"port"`
	Baud              int     `mapstructure:"baud"`
	WheelRadiusMM     float64 `mapstructure:"wheel_radius_mm"`
	SystemRadiusMM    float64 `mapstructure:"system_radius_mm"`
	EncoderResolution int     `mapstructure:"encoder_resolution"`
	MotorRatio        int     `mapstructure:"motor_ratio"`
}

type DiscoveryConfig struct {
	EtcdEndpoints []string `mapstructure:"etcd_endpoints"`
	LeaseTTL      int64    `mapstructure:"lease_ttl"`
}

// Default returns a Config populated with the values the unit ships with.
func Default() *Config {
	return &Config{
		Unit:     UnitConfig{Name: "izzy", InitialStatus: status.Available.String()},
		Protocol: ProtocolConfig{Tag: heartbeat.DefaultTag.String()},
		Net: NetConfig{
			Listen:        ":9001",
			ReplyBind:     ":9000",
			SendTimeoutMS: 500,
		},
		Session: SessionConfig{PeerTimeoutMS: 10000},
		HTTP:    HTTPConfig{Listen: ":8080"},
		Log: LogConfig{
			Level:   "info",
			Format:  "console",
			Outputs: []string{"stdout"},
			Rotation: RotationConfig{
				MaxSizeMB:  10,
				MaxBackups: 3,
				MaxAgeDays: 7,
			},
		},
		Motion: MotionConfig{
			Baud:              9600,
			WheelRadiusMM:     67.3 / 2,
			SystemRadiusMM:    124.5,
			EncoderResolution: 20,
			MotorRatio:        100,
		},
		Discovery: DiscoveryConfig{LeaseTTL: 10},
	}
}

// Load reads configuration from path (if non-empty), otherwise searches the
// usual locations. Environment variables use the prefix IZZY with `.`
// replaced by `_`, e.g. IZZY_NET_LISTEN=:9101.
func Load(path string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("IZZY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// seed defaults so env-only configs work
	v.SetDefault("unit.name", cfg.Unit.Name)
	v.SetDefault("unit.id", cfg.Unit.ID)
	v.SetDefault("unit.initial_status", cfg.Unit.InitialStatus)
	v.SetDefault("protocol.tag", cfg.Protocol.Tag)
	v.SetDefault("net.listen", cfg.Net.Listen)
	v.SetDefault("net.reply_bind", cfg.Net.ReplyBind)
	v.SetDefault("net.reply_port", cfg.Net.ReplyPort)
	v.SetDefault("net.send_timeout_ms", cfg.Net.SendTimeoutMS)
	v.SetDefault("session.peer_timeout_ms", cfg.Session.PeerTimeoutMS)
	v.SetDefault("http.listen", cfg.HTTP.Listen)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("log.outputs", cfg.Log.Outputs)
	v.SetDefault("log.development", cfg.Log.Development)
	v.SetDefault("log.rotation.enable", cfg.Log.Rotation.Enable)
	v.SetDefault("log.rotation.max_size_mb", cfg.Log.Rotation.MaxSizeMB)
	v.SetDefault("log.rotation.max_backups", cfg.Log.Rotation.MaxBackups)
	v.SetDefault("log.rotation.max_age_days", cfg.Log.Rotation.MaxAgeDays)
	v.SetDefault("log.rotation.compress", cfg.Log.Rotation.Compress)
	v.SetDefault("motion.port", cfg.Motion.Port)
	v.SetDefault("motion.baud", cfg.Motion.Baud)
	v.SetDefault("motion.wheel_radius_mm", cfg.Motion.WheelRadiusMM)
	v.SetDefault("motion.system_radius_mm", cfg.Motion.SystemRadiusMM)
	v.SetDefault("motion.encoder_resolution", cfg.Motion.EncoderResolution)
	v.SetDefault("motion.motor_ratio", cfg.Motion.MotorRatio)
	v.SetDefault("discovery.etcd_endpoints", cfg.Discovery.EtcdEndpoints)
	v.SetDefault("discovery.lease_ttl", cfg.Discovery.LeaseTTL)

	if path == "" {
		path = os.Getenv("IZZY_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("izzy")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".izzy"))
		}
	}

	// missing file is fine; defaults and env still apply
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Log.Level)) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log.level: %q", c.Log.Level)
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if len(c.Log.Outputs) == 0 {
		c.Log.Outputs = []string{"stdout"}
	}

	if strings.TrimSpace(c.Unit.Name) == "" {
		return errors.New("unit.name must not be empty")
	}
	// name + status + five 2-byte fields with delimiters must fit a frame
	if limit := heartbeat.MaxPayload - 17; len(c.Unit.Name) > limit {
		return fmt.Errorf("unit.name is %d bytes, max %d", len(c.Unit.Name), limit)
	}
	if c.Unit.ID != "" {
		if _, err := uuid.Parse(c.Unit.ID); err != nil {
			return fmt.Errorf("invalid unit.id: %w", err)
		}
	}
	if _, ok := status.ParseStatus(c.Unit.InitialStatus); !ok {
		return fmt.Errorf("invalid unit.initial_status: %q", c.Unit.InitialStatus)
	}
	if _, err := heartbeat.ParseTag(c.Protocol.Tag); err != nil {
		return err
	}
	if c.Net.ReplyPort < 0 || c.Net.ReplyPort > 65535 {
		return fmt.Errorf("invalid net.reply_port: %d", c.Net.ReplyPort)
	}
	return nil
}

// UnitID returns the configured id or a fresh random one.
func (c *Config) UnitID() uuid.UUID {
	if id, err := uuid.Parse(c.Unit.ID); err == nil {
		return id
	}
	return uuid.New()
}

// Tag returns the parsed protocol tag. Load has already validated it.
func (c *Config) Tag() heartbeat.Tag {
	t, _ := heartbeat.ParseTag(c.Protocol.Tag)
	return t
}

func (c *Config) InitialStatus() status.UnitStatus {
	s, _ := status.ParseStatus(c.Unit.InitialStatus)
	return s
}

func (c *Config) SendTimeout() time.Duration {
	return time.Duration(c.Net.SendTimeoutMS) * time.Millisecond
}

func (c *Config) PeerTimeout() time.Duration {
	return time.Duration(c.Session.PeerTimeoutMS) * time.Millisecond
}
