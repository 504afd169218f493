package tracker

import (
	"image"

	objdet "go.viam.com/rdk/vision/objectdetection"
)

// TrackState is the lifecycle state of a track.
type TrackState int

const (
	// Tentative tracks have not yet been matched in enough consecutive frames to be reported.
	Tentative TrackState = iota
	// Confirmed tracks are reported downstream until they are deleted.
	Confirmed
	// Deleted tracks have gone unmatched for too long and are never reported again.
	Deleted
)

func (s TrackState) String() string {
	switch s {
	case Tentative:
		return "tentative"
	case Confirmed:
		return "confirmed"
	case Deleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Track is a point-in-time view of a tracked object.
type Track struct {
	ID              int
	BBox            image.Rectangle
	Label           string
	Score           float64
	Hits            int
	HitStreak       int
	Age             int
	TimeSinceUpdate int
	State           TrackState
}

// Detection returns the track as a detection carrying its estimated box.
func (t Track) Detection() objdet.Detection {
	return objdet.NewDetection(t.BBox, t.Score, t.Label)
}

type track struct {
	id              int
	kf              *kalmanBox
	last            objdet.Detection
	minHits         int
	hits            int
	hitStreak       int
	age             int
	timeSinceUpdate int
	state           TrackState
}

func newTrack(id int, det objdet.Detection, minHits int) *track {
	tr := &track{
		id:        id,
		kf:        newKalmanBox(boxFromRect(*det.BoundingBox())),
		last:      det,
		minHits:   minHits,
		hits:      1,
		hitStreak: 1,
		state:     Tentative,
	}
	tr.promote()
	return tr
}

func (tr *track) isConfirmed() bool {
	return tr.state == Confirmed
}

// promote confirms a tentative track once its hit streak is long enough.
func (tr *track) promote() {
	if tr.state != Tentative {
		return
	}
	if tr.hitStreak >= tr.minHits {
		tr.state = Confirmed
	}
}

func (tr *track) predict() box {
	tr.age++
	return tr.kf.predict()
}

func (tr *track) update(det objdet.Detection) error {
	if err := tr.kf.update(boxFromRect(*det.BoundingBox())); err != nil {
		return err
	}
	tr.last = det
	tr.timeSinceUpdate = 0
	tr.hits++
	tr.hitStreak++
	tr.promote()
	return nil
}

func (tr *track) markMissed() {
	tr.timeSinceUpdate++
	tr.hitStreak = 0
}

func (tr *track) snapshot() Track {
	return Track{
		ID:              tr.id,
		BBox:            tr.kf.box().rect(),
		Label:           tr.last.Label(),
		Score:           tr.last.Score(),
		Hits:            tr.hits,
		HitStreak:       tr.hitStreak,
		Age:             tr.age,
		TimeSinceUpdate: tr.timeSinceUpdate,
		State:           tr.state,
	}
}
