package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.viam.com/test"

	"github.com/viam-modules/vehicle-tracking/detector"
	"github.com/viam-modules/vehicle-tracking/tracker"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.FrameSize, test.ShouldEqual, 320)
	test.That(t, cfg.DetectorURL, test.ShouldEqual, detector.DefaultEndpoint)
	test.That(t, cfg.DetectorTimeout, test.ShouldEqual, detector.DefaultTimeout)
	test.That(t, cfg.OutputPath(), test.ShouldEqual, "/app/output/vehicle-bridge-annotate.mp4")
	test.That(t, cfg.Display, test.ShouldBeFalse)

	tc := cfg.Tracker()
	test.That(t, tc.MinHits, test.ShouldEqual, tracker.DefaultMinHits)
	test.That(t, tc.MaxAge, test.ShouldEqual, tracker.DefaultMaxAge)
	test.That(t, tc.IoUThreshold, test.ShouldEqual, tracker.DefaultIoUThreshold)
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("TRACKER_VIDEO_SOURCE", "0")
	t.Setenv("TRACKER_DISPLAY", "true")
	t.Setenv("TRACKER_MAX_AGE", "7")
	t.Setenv("TRACKER_DETECTOR_TIMEOUT", "2s")

	cfg, err := Load("")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.VideoSource, test.ShouldEqual, "0")
	test.That(t, cfg.Display, test.ShouldBeTrue)
	test.That(t, cfg.MaxAge, test.ShouldEqual, 7)
	test.That(t, cfg.DetectorTimeout, test.ShouldEqual, 2*time.Second)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracker.yaml")
	data := []byte(`
video_source: /videos/bridge.mp4
output_dir: /tmp/out
output_file: annotated.mp4
min_hits: 2
iou_threshold: 0.5
chosen_labels:
  car: 0.4
`)
	test.That(t, os.WriteFile(path, data, 0o600), test.ShouldBeNil)

	cfg, err := Load(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.VideoSource, test.ShouldEqual, "/videos/bridge.mp4")
	test.That(t, cfg.OutputPath(), test.ShouldEqual, "/tmp/out/annotated.mp4")
	test.That(t, cfg.MinHits, test.ShouldEqual, 2)
	test.That(t, cfg.IoUThreshold, test.ShouldEqual, 0.5)
	test.That(t, cfg.ChosenLabels["car"], test.ShouldEqual, 0.4)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			VideoSource:     "video.mp4",
			OutputDir:       "/tmp",
			OutputFile:      "out.mp4",
			DetectorURL:     "http://localhost:1337/api/image",
			DetectorTimeout: time.Second,
			FrameSize:       320,
		}
	}
	cfg := valid()
	test.That(t, cfg.Validate(), test.ShouldBeNil)

	for _, mutate := range []func(*Config){
		func(c *Config) { c.VideoSource = "" },
		func(c *Config) { c.OutputDir = "" },
		func(c *Config) { c.DetectorURL = "" },
		func(c *Config) { c.DetectorTimeout = 0 },
		func(c *Config) { c.FrameSize = -1 },
		func(c *Config) { c.MaxFrequency = -1 },
		func(c *Config) { c.IoUThreshold = 2 },
		func(c *Config) { c.MinHits = -3 },
	} {
		c := valid()
		mutate(&c)
		test.That(t, c.Validate(), test.ShouldNotBeNil)
	}
}

func TestOutputPathAbsolute(t *testing.T) {
	cfg := Config{OutputDir: "/tmp", OutputFile: "/var/video/out.mp4"}
	test.That(t, cfg.OutputPath(), test.ShouldEqual, "/var/video/out.mp4")
	cfg.OutputFile = ""
	test.That(t, cfg.OutputPath(), test.ShouldEqual, "")
}

func TestLoadRejectsTrackerSettings(t *testing.T) {
	t.Setenv("TRACKER_IOU_THRESHOLD", "1.5")
	_, err := Load("")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "iou_threshold")
}
