// Package config provides YAML-based configuration loading for Drivelog.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the top-level Drivelog configuration, loaded from drivelog.yaml.
type Config struct {
	Storage    StorageConfig    `yaml:"storage"`
	Database   DatabaseConfig   `yaml:"database"`
	Capture    CaptureConfig    `yaml:"capture"`
	Export     ExportConfig     `yaml:"export"`
	Transcribe TranscribeConfig `yaml:"transcribe"`
	Notify     NotifyConfig     `yaml:"notify"`
	Janitor    JanitorConfig    `yaml:"janitor"`
	Dashboard  DashboardConfig  `yaml:"dashboard"`
}

// StorageConfig locates the application-owned media tree.
type StorageConfig struct {
	Root string `yaml:"root"`
}

// DatabaseConfig selects the session history backend. The sqlite driver is
// the default for a single-device recorder; mysql supports a shared store.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // "sqlite" or "mysql"
	Path   string `yaml:"path"`   // sqlite file path
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	Name   string `yaml:"name"`
	User   string `yaml:"user"`
}

// CaptureConfig tunes the producer-side sample throttling and stop detection.
type CaptureConfig struct {
	MinSampleDistanceMeters float64 `yaml:"min_sample_distance_meters"`
	MinSampleIntervalSecs   float64 `yaml:"min_sample_interval_secs"`
	StopRadiusMeters        float64 `yaml:"stop_radius_meters"`
	StopMinDurationSecs     float64 `yaml:"stop_min_duration_secs"`
}

// ExportConfig holds the video export canvas and encoder settings.
type ExportConfig struct {
	Width        int    `yaml:"width"`
	Height       int    `yaml:"height"`
	FPS          int    `yaml:"fps"`
	FFmpegBinary string `yaml:"ffmpeg_binary"`
}

// TranscribeConfig configures the speech recognizer.
type TranscribeConfig struct {
	Language  string `yaml:"language"`
	APIKeyEnv string `yaml:"api_key_env"`
}

// NotifyConfig configures outbound chat notifications. Tokens are read from
// the environment, not from the YAML file.
type NotifyConfig struct {
	SlackTokenEnv    string `yaml:"slack_token_env"`
	SlackChannel     string `yaml:"slack_channel"`
	DiscordTokenEnv  string `yaml:"discord_token_env"`
	DiscordChannelID string `yaml:"discord_channel_id"`
}

// JanitorConfig schedules the stale temp-file sweep.
type JanitorConfig struct {
	Schedule     string `yaml:"schedule"` // 5-field cron expression
	MaxTempAgeHr int    `yaml:"max_temp_age_hours"`
}

// DashboardConfig configures the local HTTP dashboard.
type DashboardConfig struct {
	Port int `yaml:"port"`
}

// Load reads a YAML config file from path and returns a validated Config.
// A .env file in the working directory, if present, is loaded into the
// process environment first so token env vars resolve.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Storage.Root == "" {
		c.Storage.Root = "PracticeMedia"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Path == "" {
		c.Database.Path = "drivelog.db"
	}
	if c.Database.Host == "" {
		c.Database.Host = "127.0.0.1"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 3306
	}
	if c.Database.Name == "" {
		c.Database.Name = "drivelog"
	}
	if c.Database.User == "" {
		c.Database.User = "root"
	}
	if c.Capture.MinSampleDistanceMeters == 0 {
		c.Capture.MinSampleDistanceMeters = 8
	}
	if c.Capture.MinSampleIntervalSecs == 0 {
		c.Capture.MinSampleIntervalSecs = 5
	}
	if c.Capture.StopRadiusMeters == 0 {
		c.Capture.StopRadiusMeters = 25
	}
	if c.Capture.StopMinDurationSecs == 0 {
		c.Capture.StopMinDurationSecs = 120
	}
	if c.Export.Width == 0 {
		c.Export.Width = 1080
	}
	if c.Export.Height == 0 {
		c.Export.Height = 1920
	}
	if c.Export.FPS == 0 {
		c.Export.FPS = 30
	}
	if c.Export.FFmpegBinary == "" {
		c.Export.FFmpegBinary = "ffmpeg"
	}
	if c.Transcribe.Language == "" {
		c.Transcribe.Language = "de"
	}
	if c.Transcribe.APIKeyEnv == "" {
		c.Transcribe.APIKeyEnv = "OPENAI_API_KEY"
	}
	if c.Notify.SlackTokenEnv == "" {
		c.Notify.SlackTokenEnv = "SLACK_BOT_TOKEN"
	}
	if c.Notify.DiscordTokenEnv == "" {
		c.Notify.DiscordTokenEnv = "DISCORD_BOT_TOKEN"
	}
	if c.Janitor.Schedule == "" {
		c.Janitor.Schedule = "0 3 * * *"
	}
	if c.Janitor.MaxTempAgeHr == 0 {
		c.Janitor.MaxTempAgeHr = 24
	}
	if c.Dashboard.Port == 0 {
		c.Dashboard.Port = 8080
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.Database.Driver {
	case "sqlite", "mysql":
	default:
		errs = append(errs, fmt.Sprintf("database.driver must be sqlite or mysql, got %q", c.Database.Driver))
	}
	if c.Export.Width < 16 || c.Export.Height < 16 {
		errs = append(errs, "export.width and export.height must be at least 16")
	}
	if c.Export.FPS < 1 {
		errs = append(errs, "export.fps must be positive")
	}
	if c.Capture.MinSampleDistanceMeters < 0 || c.Capture.MinSampleIntervalSecs < 0 {
		errs = append(errs, "capture thresholds must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
