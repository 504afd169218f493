// Package config loads the tracker's run configuration from defaults, an optional config
// file and TRACKER_* environment variables.
package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/viam-modules/vehicle-tracking/detector"
	"github.com/viam-modules/vehicle-tracking/tracker"
)

// EnvPrefix prefixes every environment variable, e.g. TRACKER_VIDEO_SOURCE.
const EnvPrefix = "TRACKER"

// Config contains everything needed to build and run one pipeline.
type Config struct {
	VideoSource     string             `mapstructure:"video_source"`
	OutputDir       string             `mapstructure:"output_dir"`
	OutputFile      string             `mapstructure:"output_file"`
	OutputFPS       float64            `mapstructure:"output_fps"`
	Display         bool               `mapstructure:"display"`
	SaveFrames      bool               `mapstructure:"save_frames"`
	DetectorURL     string             `mapstructure:"detector_url"`
	DetectorTimeout time.Duration      `mapstructure:"detector_timeout"`
	FrameSize       int                `mapstructure:"frame_size"`
	MaxFrequency    float64            `mapstructure:"max_frequency_hz"`
	MinHits         int                `mapstructure:"min_hits"`
	MaxAge          int                `mapstructure:"max_age"`
	IoUThreshold    float64            `mapstructure:"iou_threshold"`
	MinConfidence   float64            `mapstructure:"min_confidence"`
	ChosenLabels    map[string]float64 `mapstructure:"chosen_labels"`
	StatusAddr      string             `mapstructure:"status_addr"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("video_source", "/app/test-images/vehicle-bridge.mp4")
	v.SetDefault("output_dir", "/app/output")
	v.SetDefault("output_file", "vehicle-bridge-annotate.mp4")
	v.SetDefault("output_fps", 30.0)
	v.SetDefault("display", false)
	v.SetDefault("save_frames", false)
	v.SetDefault("detector_url", detector.DefaultEndpoint)
	v.SetDefault("detector_timeout", detector.DefaultTimeout)
	v.SetDefault("frame_size", 320)
	v.SetDefault("max_frequency_hz", 0.0)
	v.SetDefault("min_hits", tracker.DefaultMinHits)
	v.SetDefault("max_age", tracker.DefaultMaxAge)
	v.SetDefault("iou_threshold", tracker.DefaultIoUThreshold)
	v.SetDefault("min_confidence", 0.0)
	v.SetDefault("chosen_labels", map[string]float64{})
	v.SetDefault("status_addr", "")
}

// Load reads the configuration. path may be empty, in which case only defaults and the
// environment are used.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "could not read config file %s", path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "could not decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for values the pipeline cannot run with.
func (cfg *Config) Validate() error {
	if cfg.VideoSource == "" {
		return errors.New(`expected "video_source" attribute`)
	}
	if cfg.OutputDir == "" && (cfg.OutputFile != "" || cfg.SaveFrames) {
		return errors.New(`expected "output_dir" attribute when writing output`)
	}
	if cfg.DetectorURL == "" {
		return errors.New(`expected "detector_url" attribute`)
	}
	if cfg.DetectorTimeout <= 0 {
		return errors.New("detector_timeout must be a positive duration")
	}
	if cfg.FrameSize <= 0 {
		return errors.New("frame_size must be a positive number of pixels")
	}
	if cfg.OutputFPS < 0 {
		return errors.New("output_fps cannot be negative")
	}
	if cfg.MaxFrequency < 0 {
		return errors.New("frequency(Hz) must be a positive number")
	}
	tc := cfg.Tracker()
	return tc.Validate()
}

// Tracker returns the tracker section of the configuration.
func (cfg *Config) Tracker() tracker.Config {
	return tracker.Config{
		MinHits:       cfg.MinHits,
		MaxAge:        cfg.MaxAge,
		IoUThreshold:  cfg.IoUThreshold,
		MinConfidence: cfg.MinConfidence,
		ChosenLabels:  cfg.ChosenLabels,
	}
}

// OutputPath is the annotated video path, or "" when no video output is configured.
func (cfg *Config) OutputPath() string {
	if cfg.OutputFile == "" {
		return ""
	}
	if filepath.IsAbs(cfg.OutputFile) {
		return cfg.OutputFile
	}
	return filepath.Join(cfg.OutputDir, cfg.OutputFile)
}
