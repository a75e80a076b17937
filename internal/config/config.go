package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/oshokin/wake-alarm/internal/logger"
)

// Config holds the settings shared by alarmd and alarmctl.
type Config struct {
	// ListenAddress is the gRPC address the daemon serves and the CLI dials.
	ListenAddress string `mapstructure:"listen_address" yaml:"listen_address"`
	// HTTPAddress serves health, metrics and the session poll endpoint. Empty disables it.
	HTTPAddress string `mapstructure:"http_address" yaml:"http_address"`
	// Timeout is the duration for RPC calls made by the CLI.
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
	// LogLevel is reloaded while the daemon runs.
	LogLevel string `mapstructure:"log_level" yaml:"log_level"`
	// LogFormat is "console" or "json".
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`

	Host      HostConfig      `mapstructure:"host"      yaml:"host"`
	Storage   StorageConfig   `mapstructure:"storage"   yaml:"storage"`
	Scheduler SchedulerConfig `mapstructure:"scheduler" yaml:"scheduler"`
	Playback  PlaybackConfig  `mapstructure:"playback"  yaml:"playback"`
	Sessions  SessionsConfig  `mapstructure:"sessions"  yaml:"sessions"`
	Events    EventsConfig    `mapstructure:"events"    yaml:"events"`
}

// HostConfig selects the host collaborators.
type HostConfig struct {
	// Kind is "desktop" or "simulated".
	Kind string `mapstructure:"kind" yaml:"kind"`
}

// StorageConfig selects the durable alarm store.
type StorageConfig struct {
	// Type is one of file, bolt, redis, memory.
	Type string `mapstructure:"type" yaml:"type"`
	// Path is the file or bolt database location.
	Path  string      `mapstructure:"path"  yaml:"path"`
	Redis RedisConfig `mapstructure:"redis" yaml:"redis"`
}

// RedisConfig holds the redis backend connection.
type RedisConfig struct {
	Addr      string `mapstructure:"addr"      yaml:"addr"`
	Password  string `mapstructure:"password"  yaml:"password,omitempty"`
	DB        int    `mapstructure:"db"        yaml:"db"`
	Namespace string `mapstructure:"namespace" yaml:"namespace"`
}

// SchedulerConfig tunes wake registrations.
type SchedulerConfig struct {
	// Reliability is "precise" or "inexact".
	Reliability string `mapstructure:"reliability" yaml:"reliability"`
	// ArmTimeout bounds how long arming may wait for the host.
	ArmTimeout time.Duration `mapstructure:"arm_timeout" yaml:"arm_timeout"`
	// MaxCheckInterval bounds how long a precise registration trusts its timer.
	MaxCheckInterval time.Duration `mapstructure:"max_check_interval" yaml:"max_check_interval"`
}

// PlaybackConfig tunes the ringing pipeline.
type PlaybackConfig struct {
	BackupDelay           time.Duration       `mapstructure:"backup_delay"            yaml:"backup_delay"`
	FallbackDelay         time.Duration       `mapstructure:"fallback_delay"          yaml:"fallback_delay"`
	FiringTimeout         time.Duration       `mapstructure:"firing_timeout"          yaml:"firing_timeout"`
	HoldCeiling           time.Duration       `mapstructure:"hold_ceiling"            yaml:"hold_ceiling"`
	DegradedRetryInterval time.Duration       `mapstructure:"degraded_retry_interval" yaml:"degraded_retry_interval"`
	VibrationPattern      []time.Duration     `mapstructure:"vibration_pattern"       yaml:"vibration_pattern"`
	SoundCommands         map[string][]string `mapstructure:"sound_commands"          yaml:"sound_commands"`
	SystemToneCommand     []string            `mapstructure:"system_tone_command"     yaml:"system_tone_command"`
	OverrideVolume        bool                `mapstructure:"override_volume"         yaml:"override_volume"`
	VolumePercent         int                 `mapstructure:"volume_percent"          yaml:"volume_percent"`
}

// SessionsConfig holds the ringing concurrency policy.
type SessionsConfig struct {
	// ConcurrencyPolicy is "queue" or "preempt".
	ConcurrencyPolicy string `mapstructure:"concurrency_policy" yaml:"concurrency_policy"`
	// HistorySize bounds the finished-session history.
	HistorySize int `mapstructure:"history_size" yaml:"history_size"`
}

// EventsConfig enables the AMQP lifecycle event publisher.
type EventsConfig struct {
	// AMQPURL is the broker address. Empty disables publishing.
	AMQPURL  string `mapstructure:"amqp_url" yaml:"amqp_url,omitempty"`
	Exchange string `mapstructure:"exchange" yaml:"exchange"`
	Source   string `mapstructure:"source"   yaml:"source"`
}

const (
	// DefaultConfigFilename is the default filename for settings.
	DefaultConfigFilename = "wake-alarm-settings.yaml"

	// DefaultStateFilename is the default filename of the file store.
	DefaultStateFilename = "wake-alarm-state.json"

	// DefaultListenAddress is where the daemon listens by default.
	DefaultListenAddress = "127.0.0.1:50051"

	// DefaultHTTPAddress serves health and metrics by default.
	DefaultHTTPAddress = "127.0.0.1:9464"

	// DefaultTimeout is the default duration for RPC calls.
	DefaultTimeout = 5 * time.Second

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600

	// DefaultLogLevel is used when log_level is unset.
	DefaultLogLevel = "info"

	// DefaultHistorySize bounds the finished-session history.
	DefaultHistorySize = 64

	// EnvPrefix prefixes environment overrides, e.g. WAKEALARM_STORAGE_TYPE.
	EnvPrefix = "WAKEALARM"
)

// Accepted enumerations.
const (
	HostDesktop   = "desktop"
	HostSimulated = "simulated"

	StorageFile   = "file"
	StorageBolt   = "bolt"
	StorageRedis  = "redis"
	StorageMemory = "memory"
)

// defaultSoundCommands play freedesktop theme sounds through PulseAudio or PipeWire.
//
//nolint:gochecknoglobals // Read-only defaults.
var defaultSoundCommands = map[string][]string{
	"default": {"paplay", "/usr/share/sounds/freedesktop/stereo/alarm-clock-elapsed.oga"},
	"alert":   {"paplay", "/usr/share/sounds/freedesktop/stereo/bell.oga"},
}

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errListenAddressRequired is returned when the gRPC address is missing.
	errListenAddressRequired = errors.New("listen address must be provided")
)

// Source reads a settings file with environment overrides and watches it for changes.
type Source struct {
	path string

	mu sync.Mutex
	v  *viper.Viper
}

// NewSource prepares a source for path, DefaultConfigFilename when empty.
func NewSource(path string) *Source {
	if path == "" {
		path = DefaultConfigFilename
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(filepath.Clean(path))
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &Source{path: path, v: v}
}

// Load reads the file, applies environment overrides and validates the result.
// A missing file yields the defaults.
func (s *Source) Load() (*Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.v.ReadInConfig(); err != nil && !isNotExist(err) {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	return s.decode()
}

// Watch calls onChange with the re-read configuration every time the file is
// written. Invalid edits are logged and skipped.
func (s *Source) Watch(ctx context.Context, onChange func(*Config)) {
	ctx = logger.WithKV(logger.WithName(ctx, "config"), "path", s.path)

	s.v.OnConfigChange(func(event fsnotify.Event) {
		if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
			return
		}

		s.mu.Lock()
		cfg, err := s.decode()
		s.mu.Unlock()

		if err != nil {
			logger.WarnKV(ctx, "Ignoring invalid settings change", "error", err)

			return
		}

		logger.InfoKV(ctx, "Settings changed", "op", event.Op.String())
		onChange(cfg)
	})

	s.v.WatchConfig()
}

func (s *Source) decode() (*Config, error) {
	var cfg Config
	if err := s.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Load reads configuration from the provided path and validates it.
func Load(path string) (*Config, error) {
	return NewSource(path).Load()
}

// Save writes the configuration to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate fills defaults and rejects values the daemon cannot run with.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	fillDefaults(cfg)

	if cfg.ListenAddress == "" {
		return errListenAddressRequired
	}

	if _, err := net.ResolveTCPAddr("tcp", cfg.ListenAddress); err != nil {
		return fmt.Errorf("invalid listen address: %w", err)
	}

	if cfg.HTTPAddress != "" {
		if _, err := net.ResolveTCPAddr("tcp", cfg.HTTPAddress); err != nil {
			return fmt.Errorf("invalid http address: %w", err)
		}
	}

	if _, ok := logger.ParseLogLevel(cfg.LogLevel); !ok {
		return fmt.Errorf("unknown log level %q", cfg.LogLevel)
	}

	if _, err := logger.ParseFormat(cfg.LogFormat); err != nil {
		return err
	}

	if err := oneOf("host.kind", cfg.Host.Kind, HostDesktop, HostSimulated); err != nil {
		return err
	}

	if err := oneOf("storage.type", cfg.Storage.Type, StorageFile, StorageBolt, StorageRedis, StorageMemory); err != nil {
		return err
	}

	if cfg.Storage.Type == StorageRedis && cfg.Storage.Redis.Addr == "" {
		return errors.New("storage.redis.addr is required for the redis store")
	}

	if err := oneOf("scheduler.reliability", cfg.Scheduler.Reliability, "precise", "inexact"); err != nil {
		return err
	}

	if err := oneOf("sessions.concurrency_policy", cfg.Sessions.ConcurrencyPolicy, "queue", "preempt"); err != nil {
		return err
	}

	if cfg.Playback.VolumePercent < 0 || cfg.Playback.VolumePercent > 100 {
		return fmt.Errorf("playback.volume_percent must be within 0..100, got %d", cfg.Playback.VolumePercent)
	}

	for i, segment := range cfg.Playback.VibrationPattern {
		if segment <= 0 {
			return fmt.Errorf("playback.vibration_pattern[%d] must be positive, got %s", i, segment)
		}
	}

	return nil
}

func oneOf(key, value string, allowed ...string) error {
	for _, candidate := range allowed {
		if value == candidate {
			return nil
		}
	}

	return fmt.Errorf("%s must be one of %s, got %q", key, strings.Join(allowed, ", "), value)
}

func isNotExist(err error) bool {
	var notFound viper.ConfigFileNotFoundError

	return errors.Is(err, fs.ErrNotExist) || errors.As(err, &notFound)
}

// setDefaults registers every key so environment overrides apply to all of them.
func setDefaults(v *viper.Viper) {
	v.SetDefault("listen_address", DefaultListenAddress)
	v.SetDefault("http_address", DefaultHTTPAddress)
	v.SetDefault("timeout", DefaultTimeout)
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("log_format", string(logger.FormatConsole))

	v.SetDefault("host.kind", HostDesktop)

	v.SetDefault("storage.type", StorageFile)
	v.SetDefault("storage.path", DefaultStateFilename)
	v.SetDefault("storage.redis.addr", "")
	v.SetDefault("storage.redis.password", "")
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.namespace", "wake-alarm")

	v.SetDefault("scheduler.reliability", "precise")
	v.SetDefault("scheduler.arm_timeout", "2s")
	v.SetDefault("scheduler.max_check_interval", "30s")

	v.SetDefault("playback.backup_delay", "750ms")
	v.SetDefault("playback.fallback_delay", "1500ms")
	v.SetDefault("playback.firing_timeout", "2s")
	v.SetDefault("playback.hold_ceiling", "10m")
	v.SetDefault("playback.degraded_retry_interval", "5s")
	v.SetDefault("playback.vibration_pattern", []string{"800ms", "400ms"})
	v.SetDefault("playback.sound_commands", defaultSoundCommands)
	v.SetDefault("playback.system_tone_command", []string{})
	v.SetDefault("playback.override_volume", true)
	v.SetDefault("playback.volume_percent", 100)

	v.SetDefault("sessions.concurrency_policy", "queue")
	v.SetDefault("sessions.history_size", DefaultHistorySize)

	v.SetDefault("events.amqp_url", "")
	v.SetDefault("events.exchange", "wake-alarm.events")
	v.SetDefault("events.source", "/wake-alarm")
}

// fillDefaults sets required fields left zero by callers that bypass viper.
// Durations stay zero and fall back to the consumers' own defaults.
func fillDefaults(cfg *Config) {
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = DefaultListenAddress
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}

	if cfg.LogFormat == "" {
		cfg.LogFormat = string(logger.FormatConsole)
	}

	if cfg.Host.Kind == "" {
		cfg.Host.Kind = HostDesktop
	}

	if cfg.Storage.Type == "" {
		cfg.Storage.Type = StorageFile
	}

	if cfg.Storage.Path == "" {
		cfg.Storage.Path = DefaultStateFilename
	}

	if cfg.Storage.Redis.Namespace == "" {
		cfg.Storage.Redis.Namespace = "wake-alarm"
	}

	if cfg.Scheduler.Reliability == "" {
		cfg.Scheduler.Reliability = "precise"
	}

	if cfg.Sessions.ConcurrencyPolicy == "" {
		cfg.Sessions.ConcurrencyPolicy = "queue"
	}

	if cfg.Sessions.HistorySize <= 0 {
		cfg.Sessions.HistorySize = DefaultHistorySize
	}

	if cfg.Events.Exchange == "" {
		cfg.Events.Exchange = "wake-alarm.events"
	}

	if cfg.Events.Source == "" {
		cfg.Events.Source = "/wake-alarm"
	}
}
