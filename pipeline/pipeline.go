// Package pipeline drives the per-frame loop: read a frame, detect, track, remap to display
// IDs, annotate and write. One Controller owns one stream and all of its tracking state.
package pipeline

import (
	"context"
	"fmt"
	"image"
	"io"
	"path/filepath"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
	objdet "go.viam.com/rdk/vision/objectdetection"
	viamutils "go.viam.com/utils"

	"github.com/viam-modules/vehicle-tracking/annotate"
	"github.com/viam-modules/vehicle-tracking/identity"
	"github.com/viam-modules/vehicle-tracking/tracker"
)

var (
	// DefaultFrameSize is the side of the square working resolution.
	DefaultFrameSize = 320
	// DefaultDetectTimeout bounds each detector call.
	DefaultDetectTimeout = 10 * time.Second
	// DefaultMaxConsecutiveReadErrors ends the run when the source keeps failing.
	DefaultMaxConsecutiveReadErrors = 30
)

// FrameSource yields frames in display order and io.EOF at the end of the stream.
type FrameSource interface {
	Next(ctx context.Context) (image.Image, error)
}

// Detector returns the objects found in one frame.
type Detector interface {
	Detections(ctx context.Context, img image.Image) ([]objdet.Detection, error)
}

// Sink receives annotated frames.
type Sink interface {
	Write(img image.Image) error
	Close() error
}

// SinkOpener opens the sink once the output frame size is known.
type SinkOpener func(width, height int) (Sink, error)

// Display mirrors annotated frames to a screen.
type Display interface {
	Show(img image.Image) error
	Close() error
}

// Config holds the loop settings. Zero values select the defaults.
type Config struct {
	FrameSize                int
	DetectTimeout            time.Duration
	MaxFrequency             float64
	FramesDir                string
	MaxConsecutiveReadErrors int
}

// Deps are the collaborators of a Controller. Source, Detector, Tracker, Stabilizer and
// Annotator are required; OpenSink and Display may be nil.
type Deps struct {
	Source     FrameSource
	Detector   Detector
	Tracker    *tracker.Tracker
	Stabilizer *identity.Stabilizer
	Annotator  *annotate.Annotator
	OpenSink   SinkOpener
	Display    Display
}

// Controller runs the frame loop for one stream.
type Controller struct {
	logger logging.Logger
	cfg    Config
	deps   Deps
	runID  uuid.UUID

	shutdownOnce sync.Once
	sinkMu       sync.Mutex
	sink         Sink
	sinkFailed   bool

	statsMu   sync.RWMutex
	stats     Stats
	timeStats []time.Duration
}

// New returns a controller. It does not touch any of its dependencies until Run.
func New(cfg Config, deps Deps, logger logging.Logger) (*Controller, error) {
	if deps.Source == nil || deps.Detector == nil || deps.Tracker == nil ||
		deps.Stabilizer == nil || deps.Annotator == nil {
		return nil, errors.New("pipeline requires a source, detector, tracker, stabilizer and annotator")
	}
	if cfg.FrameSize <= 0 {
		cfg.FrameSize = DefaultFrameSize
	}
	if cfg.DetectTimeout <= 0 {
		cfg.DetectTimeout = DefaultDetectTimeout
	}
	if cfg.MaxConsecutiveReadErrors <= 0 {
		cfg.MaxConsecutiveReadErrors = DefaultMaxConsecutiveReadErrors
	}
	if cfg.MaxFrequency < 0 {
		return nil, errors.New("frequency(Hz) must be a positive number")
	}
	runID := uuid.New()
	return &Controller{
		logger: logger,
		cfg:    cfg,
		deps:   deps,
		runID:  runID,
		stats:  Stats{RunID: runID.String()},
	}, nil
}

// Run processes frames until the source is exhausted, ctx is cancelled, or the source keeps
// failing. The output is released on every exit path. End of stream and cancellation
// return nil.
func (c *Controller) Run(ctx context.Context) error {
	defer c.shutdown()
	c.logger.Infow("processing video", "run_id", c.runID.String())

	readErrors := 0
	for frameNum := 1; ; frameNum++ {
		select {
		case <-ctx.Done():
			c.logger.Info("shutdown requested, ensuring video is saved")
			return nil
		default:
		}

		start := time.Now()
		img, err := c.deps.Source.Next(ctx)
		switch {
		case errors.Is(err, io.EOF):
			c.logger.Info("end of video")
			return nil
		case err != nil && ctx.Err() != nil:
			c.logger.Info("shutdown requested, ensuring video is saved")
			return nil
		case err != nil:
			readErrors++
			c.countSkipped()
			c.logger.Errorf("frame %d: can't read frame: %v", frameNum, err)
			if readErrors >= c.cfg.MaxConsecutiveReadErrors {
				return errors.Wrapf(err, "%d consecutive frame read failures", readErrors)
			}
			continue
		case img == nil:
			c.countSkipped()
			c.logger.Errorf("frame %d: got nil image", frameNum)
			continue
		}
		readErrors = 0
		c.countRead()

		c.processFrame(ctx, frameNum, img)

		took := time.Since(start)
		c.recordTiming(took)
		c.throttle(ctx, took)
	}
}

// processFrame runs one frame through detection, tracking and output. A detector failure
// skips the frame entirely so that an outage does not age the tracks.
func (c *Controller) processFrame(ctx context.Context, frameNum int, img image.Image) {
	frame := imaging.Resize(img, c.cfg.FrameSize, c.cfg.FrameSize, imaging.Lanczos)

	detectCtx, cancel := context.WithTimeout(ctx, c.cfg.DetectTimeout)
	start := time.Now()
	dets, err := c.deps.Detector.Detections(detectCtx, frame)
	cancel()
	c.logger.Debugf("frame %d: detector took %s", frameNum, time.Since(start))
	if err != nil {
		c.countSkipped()
		c.logger.Errorf("frame %d: skipping frame, can't get detections: %v", frameNum, err)
		return
	}

	tracks := c.deps.Tracker.Update(dets)
	labeled := c.deps.Stabilizer.Remap(tracks)
	seen := c.deps.Stabilizer.SeenCount()
	annotated := c.deps.Annotator.Annotate(frame, labeled, seen)

	written := c.write(annotated)
	if c.deps.Display != nil {
		if err := c.deps.Display.Show(annotated); err != nil {
			c.logger.Warnf("frame %d: can't show frame: %v", frameNum, err)
		}
	}
	if c.cfg.FramesDir != "" {
		path := filepath.Join(c.cfg.FramesDir, fmt.Sprintf("frame_%04d.jpg", frameNum))
		if err := imaging.Save(annotated, path); err != nil {
			c.logger.Warnf("frame %d: can't save frame: %v", frameNum, err)
		}
	}

	c.statsMu.Lock()
	c.stats.FramesProcessed++
	if written {
		c.stats.FramesWritten++
	}
	c.statsMu.Unlock()
	c.logger.Debugw("frame processed",
		"frame", frameNum, "detections", len(dets), "tracks", len(tracks), "seen", seen)
}

// write forwards a frame to the sink, opening it with the first frame's size.
func (c *Controller) write(img image.Image) bool {
	c.sinkMu.Lock()
	defer c.sinkMu.Unlock()
	if c.deps.OpenSink == nil || c.sinkFailed {
		return false
	}
	if c.sink == nil {
		b := img.Bounds()
		sink, err := c.deps.OpenSink(b.Dx(), b.Dy())
		if err != nil {
			c.sinkFailed = true
			c.logger.Errorf("can't open video output, continuing without it: %v", err)
			return false
		}
		c.logger.Infof("initialized video output for %dx%d frames", b.Dx(), b.Dy())
		c.sink = sink
	}
	if err := c.sink.Write(img); err != nil {
		c.logger.Errorf("can't write frame: %v", err)
		return false
	}
	return true
}

func (c *Controller) throttle(ctx context.Context, took time.Duration) {
	if c.cfg.MaxFrequency <= 0 {
		return
	}
	waitFor := time.Duration((1/c.cfg.MaxFrequency)*float64(time.Second)) - took
	if waitFor > time.Microsecond {
		viamutils.SelectContextOrWait(ctx, waitFor)
	}
}

// shutdown releases the sink and display exactly once and reports the final count.
func (c *Controller) shutdown() error {
	var err error
	c.shutdownOnce.Do(func() {
		c.sinkMu.Lock()
		if c.sink != nil {
			if err = c.sink.Close(); err != nil {
				c.logger.Errorf("failed to release video output: %v", err)
			} else {
				c.logger.Info("video output saved")
			}
		}
		c.sinkMu.Unlock()
		if c.deps.Display != nil {
			if derr := c.deps.Display.Close(); derr != nil {
				c.logger.Warnf("can't close display: %v", derr)
			}
		}
		stats := c.Stats()
		c.logger.Infow("finished processing video",
			"run_id", stats.RunID,
			"frames_read", stats.FramesRead,
			"frames_processed", stats.FramesProcessed,
			"frames_skipped", stats.FramesSkipped,
			"unique_vehicles", stats.SeenCount)
	})
	return err
}

// Close releases the output if Run has not already done so. It is safe to call more than once.
func (c *Controller) Close() error {
	return c.shutdown()
}

// SeenCount is the number of distinct vehicles observed so far.
func (c *Controller) SeenCount() int {
	return c.deps.Stabilizer.SeenCount()
}

// Objects returns the first-sighting record of every distinct vehicle.
func (c *Controller) Objects() []identity.Object {
	return c.deps.Stabilizer.Objects()
}
