// Package identity maps the tracker's internal track IDs to display IDs that are handed
// out in order, starting at 1, and are never reused or reassigned.
package identity

import (
	"image"
	"sync"
	"time"

	"go.viam.com/rdk/logging"

	"github.com/viam-modules/vehicle-tracking/tracker"
)

// Labeled is a confirmed track annotated with its display ID.
type Labeled struct {
	DisplayID int
	BBox      image.Rectangle
	Track     tracker.Track
}

// Object records the first sighting of a distinct object.
type Object struct {
	DisplayID int       `json:"display_id"`
	TrackID   int       `json:"track_id"`
	Label     string    `json:"label"`
	FirstSeen time.Time `json:"first_seen"`
}

// Stabilizer owns the internal-to-display ID mapping for one pipeline run.
// Remap is called from the frame loop; the read accessors may be called concurrently.
type Stabilizer struct {
	logger logging.Logger
	now    func() time.Time

	mu      sync.RWMutex
	ids     map[int]int
	objects []Object
}

// NewStabilizer returns an empty mapping.
func NewStabilizer(logger logging.Logger) *Stabilizer {
	return &Stabilizer{
		logger: logger,
		now:    time.Now,
		ids:    make(map[int]int),
	}
}

// Remap assigns display IDs to tracks, preserving input order. An internal ID seen for the
// first time gets SeenCount()+1.
func (s *Stabilizer) Remap(tracks []tracker.Track) []Labeled {
	out := make([]Labeled, 0, len(tracks))
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tr := range tracks {
		displayID, ok := s.ids[tr.ID]
		if !ok {
			displayID = len(s.ids) + 1
			s.ids[tr.ID] = displayID
			s.objects = append(s.objects, Object{
				DisplayID: displayID,
				TrackID:   tr.ID,
				Label:     tr.Label,
				FirstSeen: s.now(),
			})
			s.logger.Infow("new vehicle detected",
				"track_id", tr.ID, "display_id", displayID, "seen", len(s.ids))
		}
		out = append(out, Labeled{DisplayID: displayID, BBox: tr.BBox, Track: tr})
	}
	return out
}

// SeenCount is the number of distinct objects observed so far.
func (s *Stabilizer) SeenCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ids)
}

// DisplayID looks up the display ID of an internal track ID.
func (s *Stabilizer) DisplayID(trackID int) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.ids[trackID]
	return id, ok
}

// Objects returns a copy of the first-sighting records in display ID order.
func (s *Stabilizer) Objects() []Object {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Object, len(s.objects))
	copy(out, s.objects)
	return out
}
