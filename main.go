// Package main runs the vehicle tracker over one video stream and writes an annotated copy.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"

	"github.com/viam-modules/vehicle-tracking/annotate"
	"github.com/viam-modules/vehicle-tracking/config"
	"github.com/viam-modules/vehicle-tracking/detector"
	"github.com/viam-modules/vehicle-tracking/identity"
	"github.com/viam-modules/vehicle-tracking/pipeline"
	"github.com/viam-modules/vehicle-tracking/status"
	"github.com/viam-modules/vehicle-tracking/tracker"
	"github.com/viam-modules/vehicle-tracking/video"
)

// ConfigEnv names an optional config file.
const ConfigEnv = "TRACKER_CONFIG"

func main() {
	logger := logging.NewLogger("vehicle-tracker")
	if err := run(logger); err != nil {
		logger.Error(err)
		os.Exit(1)
	}
}

func run(logger logging.Logger) error {
	cfg, err := config.Load(os.Getenv(ConfigEnv))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	src, err := video.OpenSource(cfg.VideoSource)
	if err != nil {
		return errors.Wrapf(err, "could not open video source %q", cfg.VideoSource)
	}
	defer src.Close()
	width, height := src.Size()
	logger.Infof("opened %s (%dx%d at %.1f fps)", cfg.VideoSource, width, height, src.FPS())

	if cfg.OutputDir != "" {
		if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
			return errors.Wrapf(err, "could not create output directory %s", cfg.OutputDir)
		}
	}

	ctrl, err := newController(cfg, src, src.FPS(), logger)
	if err != nil {
		return err
	}

	if cfg.StatusAddr != "" {
		srv := status.Start(cfg.StatusAddr, ctrl, logger.Sublogger("status"))
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Close(closeCtx); err != nil {
				logger.Warnf("status endpoint did not shut down cleanly: %v", err)
			}
		}()
	}

	runErr := ctrl.Run(ctx)
	for _, o := range ctrl.Objects() {
		logger.Info(o.String())
	}
	logger.Infof("Total number of unique vehicles detected: %d", ctrl.SeenCount())
	return runErr
}

// newController wires one pipeline run. Each component logs under its own sublogger.
func newController(cfg *config.Config, src pipeline.FrameSource, srcFPS float64,
	logger logging.Logger,
) (*pipeline.Controller, error) {
	tr, err := tracker.New(cfg.Tracker(), logger.Sublogger("tracker"))
	if err != nil {
		return nil, err
	}
	deps := pipeline.Deps{
		Source:     src,
		Detector:   detector.NewClient(cfg.DetectorURL, cfg.DetectorTimeout, logger.Sublogger("detector")),
		Tracker:    tr,
		Stabilizer: identity.NewStabilizer(logger.Sublogger("identity")),
		Annotator:  annotate.New(annotate.DefaultThickness, true),
	}
	if path := cfg.OutputPath(); path != "" {
		fps := cfg.OutputFPS
		if fps <= 0 {
			fps = srcFPS
		}
		sinkLogger := logger.Sublogger("output")
		deps.OpenSink = func(w, h int) (pipeline.Sink, error) {
			vw, err := video.OpenWriter(path, fps, w, h)
			if err != nil {
				return nil, err
			}
			sinkLogger.Infof("writing annotated video to %s", vw.Path())
			return vw, nil
		}
	}
	if cfg.Display {
		deps.Display = video.NewDisplay("vehicle tracking")
	}

	pcfg := pipeline.Config{
		FrameSize:     cfg.FrameSize,
		DetectTimeout: cfg.DetectorTimeout,
		MaxFrequency:  cfg.MaxFrequency,
	}
	if cfg.SaveFrames {
		pcfg.FramesDir = cfg.OutputDir
	}
	return pipeline.New(pcfg, deps, logger.Sublogger("pipeline"))
}
