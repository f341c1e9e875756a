package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	envPrefix = "TANDEM"

	keyResolverURL    = "resolver.url"
	keyMpvBinary      = "mpv.binary"
	keyRuntimeDir     = "runtime.dir"
	keyOutputDir      = "output.dir"
	keyDriftThreshold = "drift.threshold"
	keyTickInterval   = "tick.interval"
	keyBusName        = "bus.name"
	keyAudioOnly      = "audio.only"

	defaultResolverURL    = "http://localhost:3001"
	defaultMpvBinary      = "mpv"
	defaultOutputDir      = "/tmp/tandem"
	defaultDriftThreshold = 0.3
	defaultTickInterval   = 250 * time.Millisecond
	defaultBusName        = "tandem"
)

// envKeyReplacer maps config keys to environment names: resolver.url -> TANDEM_RESOLVER_URL
var envKeyReplacer = strings.NewReplacer(".", "_")

// AppConfig holds application configuration
type AppConfig struct {
	logger         *zap.Logger
	resolverURL    string
	mpvBinary      string
	runtimeDir     string
	outputDir      string
	driftThreshold float64
	tickInterval   time.Duration
	busName        string
	audioOnly      bool
}

// NewAppConfig loads configuration from TANDEM_* environment variables and an
// optional tandem.toml in the user config directory, falling back to defaults
func NewAppConfig(logger *zap.Logger) *AppConfig {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(envKeyReplacer)
	v.AutomaticEnv()

	v.SetDefault(keyResolverURL, defaultResolverURL)
	v.SetDefault(keyMpvBinary, defaultMpvBinary)
	v.SetDefault(keyRuntimeDir, defaultRuntimeDir())
	v.SetDefault(keyOutputDir, defaultOutputDir)
	v.SetDefault(keyDriftThreshold, defaultDriftThreshold)
	v.SetDefault(keyTickInterval, defaultTickInterval)
	v.SetDefault(keyBusName, defaultBusName)
	v.SetDefault(keyAudioOnly, false)

	v.SetConfigName("tandem")
	v.SetConfigType("toml")
	if dir, err := os.UserConfigDir(); err == nil {
		v.AddConfigPath(filepath.Join(dir, "tandem"))
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			logger.Warn("Ignoring unreadable config file", zap.Error(err))
		}
	} else {
		logger.Debug("Config file loaded", zap.String("path", v.ConfigFileUsed()))
	}

	cfg := &AppConfig{
		logger:         logger,
		resolverURL:    strings.TrimSpace(v.GetString(keyResolverURL)),
		mpvBinary:      expandPath(v.GetString(keyMpvBinary)),
		runtimeDir:     expandPath(v.GetString(keyRuntimeDir)),
		outputDir:      expandPath(v.GetString(keyOutputDir)),
		driftThreshold: v.GetFloat64(keyDriftThreshold),
		tickInterval:   v.GetDuration(keyTickInterval),
		busName:        v.GetString(keyBusName),
		audioOnly:      v.GetBool(keyAudioOnly),
	}

	if cfg.driftThreshold <= 0 {
		logger.Warn("Invalid drift threshold, using default",
			zap.Float64("value", cfg.driftThreshold),
			zap.Float64("default", defaultDriftThreshold))
		cfg.driftThreshold = defaultDriftThreshold
	}
	if cfg.tickInterval <= 0 {
		logger.Warn("Invalid tick interval, using default",
			zap.Duration("value", cfg.tickInterval),
			zap.Duration("default", defaultTickInterval))
		cfg.tickInterval = defaultTickInterval
	}
	if cfg.busName == "" {
		cfg.busName = defaultBusName
	}

	logger.Info("Configuration loaded",
		zap.String("resolverURL", cfg.resolverURL),
		zap.String("mpvBinary", cfg.mpvBinary),
		zap.String("runtimeDir", cfg.runtimeDir),
		zap.String("outputDir", cfg.outputDir),
		zap.Float64("driftThreshold", cfg.driftThreshold),
		zap.Duration("tickInterval", cfg.tickInterval),
		zap.String("busName", cfg.busName),
		zap.Bool("audioOnly", cfg.audioOnly))

	return cfg
}

func defaultRuntimeDir() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "tandem")
	}
	return "/tmp/tandem"
}

// expandPath expands environment variables and a leading ~
func expandPath(path string) string {
	path = os.ExpandEnv(path)
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[1:])
		}
	}
	return path
}

// GetResolverURL returns the base URL of the resolution service
func (c *AppConfig) GetResolverURL() string {
	return c.resolverURL
}

// GetMpvBinary returns the mpv executable
func (c *AppConfig) GetMpvBinary() string {
	return c.mpvBinary
}

// GetRuntimeDir returns the directory for IPC sockets
func (c *AppConfig) GetRuntimeDir() string {
	return c.runtimeDir
}

// GetOutputDir returns the directory for generated cover art
func (c *AppConfig) GetOutputDir() string {
	return c.outputDir
}

// GetDriftThreshold returns the tolerated follower drift in seconds
func (c *AppConfig) GetDriftThreshold() float64 {
	return c.driftThreshold
}

// GetTickInterval returns the minimum spacing of position ticks
func (c *AppConfig) GetTickInterval() time.Duration {
	return c.tickInterval
}

// GetBusName returns the MPRIS name suffix
func (c *AppConfig) GetBusName() string {
	return c.busName
}

// GetAudioOnly reports whether audio-only mode is the default
func (c *AppConfig) GetAudioOnly() bool {
	return c.audioOnly
}
