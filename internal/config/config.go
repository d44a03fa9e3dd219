package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/google/renameio/v2"
	"gopkg.in/yaml.v3"

	"github.com/kikiluvv/shortreel/internal/category"
	"github.com/kikiluvv/shortreel/internal/clips"
	"github.com/kikiluvv/shortreel/internal/ffmpeg"
	"github.com/kikiluvv/shortreel/internal/predicate"
	"github.com/kikiluvv/shortreel/internal/video"
)

type contextKey string

const configKey contextKey = "config"

// EnvPrefix is prepended to every environment override, e.g.
// SHORTREEL_FFMPEG_THREADS or SHORTREEL_FILTER_NOISE_ENABLED.
const EnvPrefix = "SHORTREEL_"

// Config holds all application configuration
type Config struct {
	WorkDir string `yaml:"work_dir" env:"WORK_DIR"`

	FFmpeg   FFmpegConfig   `yaml:"ffmpeg" envPrefix:"FFMPEG_"`
	Filter   FilterConfig   `yaml:"filter" envPrefix:"FILTER_"`
	Clips    ClipsConfig    `yaml:"clips" envPrefix:"CLIPS_"`
	Category CategoryConfig `yaml:"category" envPrefix:"CATEGORY_"`
	Store    StoreConfig    `yaml:"store" envPrefix:"STORE_"`
	Metrics  MetricsConfig  `yaml:"metrics" envPrefix:"METRICS_"`

	// Path is the file the configuration was read from, if any.
	Path string `yaml:"-"`
}

type FFmpegConfig struct {
	BinaryPath  string `yaml:"binary_path" env:"BINARY_PATH"`
	ProbePath   string `yaml:"ffprobe_path" env:"FFPROBE_PATH"`
	Threads     int    `yaml:"threads" env:"THREADS"`
	VideoCodec  string `yaml:"video_codec" env:"VIDEO_CODEC"`
	Quality     int    `yaml:"quality" env:"QUALITY"`
	CountFrames bool   `yaml:"count_frames" env:"COUNT_FRAMES"`
}

type GateConfig struct {
	Enabled   bool    `yaml:"enabled" env:"ENABLED"`
	Threshold float64 `yaml:"threshold" env:"THRESHOLD"`
}

type FlowConfig struct {
	Alpha      float64 `yaml:"alpha" env:"ALPHA"`
	Iterations int     `yaml:"iterations" env:"ITERATIONS"`
	MaxWidth   int     `yaml:"max_width" env:"MAX_WIDTH"`
}

type FilterConfig struct {
	Quality    GateConfig `yaml:"quality" envPrefix:"QUALITY_"`
	Brightness GateConfig `yaml:"brightness" envPrefix:"BRIGHTNESS_"`
	Motion     GateConfig `yaml:"motion" envPrefix:"MOTION_"`
	Noise      GateConfig `yaml:"noise" envPrefix:"NOISE_"`
	LogKept    bool       `yaml:"log_kept" env:"LOG_KEPT"`
	Flow       FlowConfig `yaml:"flow" envPrefix:"FLOW_"`
}

type ClipsConfig struct {
	Extension    string `yaml:"extension" env:"EXTENSION"`
	StrictRanges bool   `yaml:"strict_ranges" env:"STRICT_RANGES"`
}

type CategoryConfig struct {
	Enabled     bool   `yaml:"enabled" env:"ENABLED"`
	ModelPath   string `yaml:"model_path" env:"MODEL_PATH"`
	LabelsPath  string `yaml:"labels_path" env:"LABELS_PATH"`
	RuntimePath string `yaml:"runtime_path" env:"RUNTIME_PATH"`
	Samples     int    `yaml:"samples" env:"SAMPLES"`
	Seed        int64  `yaml:"seed" env:"SEED"`
}

type StoreConfig struct {
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// Path defaults to shortreel.db inside WorkDir.
	Path string `yaml:"path" env:"PATH"`
}

type MetricsConfig struct {
	// Addr enables the /metrics endpoint when set, e.g. ":9090".
	Addr string `yaml:"addr" env:"ADDR"`
}

// Load reads configuration from path, or from the first discovered config
// file when path is empty, applies environment overrides and validates the
// result. With no file at all the defaults are used.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path == "" {
		path = findConfigFile()
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
		cfg.Path = path
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes configuration to file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return renameio.WriteFile(path, data, 0o644)
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.WorkDir == "" {
		errs = append(errs, errors.New("work_dir is empty"))
	}
	if c.FFmpeg.Threads < 0 {
		errs = append(errs, fmt.Errorf("ffmpeg.threads %d is negative", c.FFmpeg.Threads))
	}
	if c.FFmpeg.Quality < 1 || c.FFmpeg.Quality > 31 {
		errs = append(errs, fmt.Errorf("ffmpeg.quality %d outside 1..31", c.FFmpeg.Quality))
	}
	if err := c.Predicates().Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Clips.Extension == "" {
		errs = append(errs, errors.New("clips.extension is empty"))
	}
	if c.Category.Enabled {
		if c.Category.ModelPath == "" {
			errs = append(errs, errors.New("category.model_path is required when category is enabled"))
		}
		if c.Category.LabelsPath == "" {
			errs = append(errs, errors.New("category.labels_path is required when category is enabled"))
		}
	}
	if c.Category.Samples <= 0 {
		errs = append(errs, fmt.Errorf("category.samples %d must be positive", c.Category.Samples))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", video.ErrInvalidOptions, errors.Join(errs...))
}

// Predicates converts the filter section.
func (c *Config) Predicates() predicate.Options {
	gate := func(g GateConfig) predicate.Gate {
		return predicate.Gate{Enabled: g.Enabled, Threshold: g.Threshold}
	}
	return predicate.Options{
		Quality:    gate(c.Filter.Quality),
		Brightness: gate(c.Filter.Brightness),
		Motion:     gate(c.Filter.Motion),
		Noise:      gate(c.Filter.Noise),
		Flow: predicate.FlowOptions{
			Alpha:      c.Filter.Flow.Alpha,
			Iterations: c.Filter.Flow.Iterations,
			MaxWidth:   c.Filter.Flow.MaxWidth,
		},
	}
}

func (c *Config) FFmpegOptions() ffmpeg.Options {
	return ffmpeg.Options{
		BinaryPath:  c.FFmpeg.BinaryPath,
		ProbePath:   c.FFmpeg.ProbePath,
		Threads:     c.FFmpeg.Threads,
		VideoCodec:  c.FFmpeg.VideoCodec,
		Quality:     c.FFmpeg.Quality,
		CountFrames: c.FFmpeg.CountFrames,
	}
}

func (c *Config) ONNXOptions() category.ONNXOptions {
	return category.ONNXOptions{
		ModelPath:   c.Category.ModelPath,
		LabelsPath:  c.Category.LabelsPath,
		RuntimePath: c.Category.RuntimePath,
	}
}

// StorePath resolves the run catalog location.
func (c *Config) StorePath() string {
	if c.Store.Path != "" {
		return c.Store.Path
	}
	return filepath.Join(c.WorkDir, "shortreel.db")
}

func defaultConfig() *Config {
	preds := predicate.DefaultOptions()
	gate := func(g predicate.Gate) GateConfig {
		return GateConfig{Enabled: g.Enabled, Threshold: g.Threshold}
	}
	return &Config{
		WorkDir: "./work",
		FFmpeg: FFmpegConfig{
			BinaryPath: "ffmpeg",
			ProbePath:  "ffprobe",
			VideoCodec: ffmpeg.DefaultVideoCodec,
			Quality:    ffmpeg.DefaultQuality,
		},
		Filter: FilterConfig{
			Quality:    gate(preds.Quality),
			Brightness: gate(preds.Brightness),
			Motion:     gate(preds.Motion),
			Noise:      gate(preds.Noise),
			Flow: FlowConfig{
				Alpha:      preds.Flow.Alpha,
				Iterations: preds.Flow.Iterations,
				MaxWidth:   preds.Flow.MaxWidth,
			},
		},
		Clips: ClipsConfig{
			Extension: clips.DefaultExtension,
		},
		Category: CategoryConfig{
			ModelPath:  "./models/inception_v3.onnx",
			LabelsPath: "./models/synsets.txt",
			Samples:    category.DefaultSamples,
		},
		Store: StoreConfig{
			Enabled: true,
		},
	}
}

// Default returns the built-in configuration.
func Default() *Config {
	return defaultConfig()
}

func findConfigFile() string {
	candidates := []string{
		"./shortreel.yaml",
		"./shortreel.yml",
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".shortreel", "config.yaml"))
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// WithConfig stores config in context
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey, cfg)
}

// FromContext retrieves config from context
func FromContext(ctx context.Context) *Config {
	if cfg, ok := ctx.Value(configKey).(*Config); ok {
		return cfg
	}
	return defaultConfig()
}
