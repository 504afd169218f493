// Package tracker implements an online multi-object tracker. Each frame the tracks are
// advanced with a constant velocity Kalman model, matched to the frame's detections by
// solving a 1-IoU cost matrix with the Hungarian method, and moved through a
// tentative -> confirmed -> deleted lifecycle.
package tracker

import (
	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
	objdet "go.viam.com/rdk/vision/objectdetection"
)

var (
	// DefaultMinHits is the consecutive-hit streak a track needs to be confirmed.
	DefaultMinHits = 3
	// DefaultMaxAge is the number of unmatched frames a track survives.
	DefaultMaxAge = 3
	// DefaultIoUThreshold is the minimum overlap for a detection to be assigned to a track.
	DefaultIoUThreshold = 0.3
)

// Config holds the tracker thresholds. Zero values are replaced by the defaults.
type Config struct {
	MinHits       int                `json:"min_hits"`
	MaxAge        int                `json:"max_age"`
	IoUThreshold  float64            `json:"iou_threshold"`
	MinConfidence float64            `json:"min_confidence"`
	ChosenLabels  map[string]float64 `json:"chosen_labels"`
}

// Validate checks the thresholds are in range.
func (cfg *Config) Validate() error {
	if cfg.MinHits < 0 {
		return errors.New("attribute min_hits cannot be less than 0")
	}
	if cfg.MaxAge < 0 {
		return errors.New("attribute max_age cannot be less than 0")
	}
	if cfg.IoUThreshold < 0 || cfg.IoUThreshold > 1 {
		return errors.New("iou_threshold must be between 0.0 and 1.0")
	}
	if cfg.MinConfidence < 0 || cfg.MinConfidence > 1 {
		return errors.New("minimum thresholding confidence must be between 0.0 and 1.0")
	}
	for label, conf := range cfg.ChosenLabels {
		if conf < 0 || conf > 1 {
			return errors.Errorf("confidence for label %q must be between 0.0 and 1.0", label)
		}
	}
	return nil
}

func (cfg Config) withDefaults() Config {
	if cfg.MinHits == 0 {
		cfg.MinHits = DefaultMinHits
	}
	if cfg.MaxAge == 0 {
		cfg.MaxAge = DefaultMaxAge
	}
	if cfg.IoUThreshold == 0 {
		cfg.IoUThreshold = DefaultIoUThreshold
	}
	return cfg
}

// Tracker maintains the live set of tracks for one stream. It is not safe for concurrent
// use: Update must be called once per frame, in frame order, from a single goroutine.
type Tracker struct {
	logger logging.Logger
	cfg    Config
	tracks []*track
	nextID int
}

// New returns a tracker with no tracks. Track IDs start at 1.
func New(cfg Config, logger logging.Logger) (*Tracker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Tracker{
		logger: logger,
		cfg:    cfg.withDefaults(),
		nextID: 1,
	}, nil
}

// Update consumes one frame's detections and returns the confirmed tracks in creation order.
func (t *Tracker) Update(detections []objdet.Detection) []Track {
	dets := FilterDetections(t.cfg.ChosenLabels, detections, t.cfg.MinConfidence)
	if dropped := len(detections) - len(dets); dropped > 0 {
		t.logger.Debugf("filtered %d of %d detections", dropped, len(detections))
	}

	predicted := make([]box, 0, len(t.tracks))
	live := make([]*track, 0, len(t.tracks))
	for _, tr := range t.tracks {
		pred := tr.predict()
		if !pred.finite() {
			tr.state = Deleted
			t.logger.Warnf("dropping track %d with non-finite state", tr.id)
			continue
		}
		live = append(live, tr)
		predicted = append(predicted, pred)
	}
	t.tracks = live

	matches, unmatchedTracks, unmatchedDets, err := associate(predicted, dets, t.cfg.IoUThreshold)
	if err != nil {
		// Without an assignment every track misses and every detection spawns.
		t.logger.Errorf("association failed: %v", err)
		matches = nil
		unmatchedTracks, unmatchedDets = unmatchedTracks[:0], unmatchedDets[:0]
		for i := range t.tracks {
			unmatchedTracks = append(unmatchedTracks, i)
		}
		for j := range dets {
			unmatchedDets = append(unmatchedDets, j)
		}
	}

	for _, m := range matches {
		tr := t.tracks[m.track]
		if err := tr.update(dets[m.det]); err != nil {
			// The pair is dissolved: the track coasts and the detection starts its own track.
			t.logger.Warnf("track %d: %v", tr.id, err)
			tr.markMissed()
			unmatchedDets = append(unmatchedDets, m.det)
		}
	}
	for _, idx := range unmatchedTracks {
		t.tracks[idx].markMissed()
	}
	for _, idx := range unmatchedDets {
		t.spawn(dets[idx])
	}

	kept := t.tracks[:0]
	for _, tr := range t.tracks {
		if tr.timeSinceUpdate > t.cfg.MaxAge {
			tr.state = Deleted
			t.logger.Debugf("track %d deleted after %d missed frames", tr.id, tr.timeSinceUpdate)
			continue
		}
		kept = append(kept, tr)
	}
	t.tracks = kept

	out := make([]Track, 0, len(t.tracks))
	for _, tr := range t.tracks {
		if tr.isConfirmed() {
			out = append(out, tr.snapshot())
		}
	}
	return out
}

func (t *Tracker) spawn(det objdet.Detection) {
	tr := newTrack(t.nextID, det, t.cfg.MinHits)
	t.nextID++
	t.tracks = append(t.tracks, tr)
}

// Tracks returns every live track, tentative ones included, in creation order.
func (t *Tracker) Tracks() []Track {
	out := make([]Track, 0, len(t.tracks))
	for _, tr := range t.tracks {
		out = append(out, tr.snapshot())
	}
	return out
}

// Counts returns the number of live tentative and confirmed tracks.
func (t *Tracker) Counts() (tentative, confirmed int) {
	for _, tr := range t.tracks {
		if tr.isConfirmed() {
			confirmed++
		} else {
			tentative++
		}
	}
	return tentative, confirmed
}

// NextID returns the ID the next spawned track will receive.
func (t *Tracker) NextID() int {
	return t.nextID
}
