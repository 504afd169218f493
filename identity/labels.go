// Package identity maps tracker IDs to display IDs.
// This file contains methods that handle the label (or name) drawn next to an object.
package identity

import (
	"fmt"
	"time"
)

// LabelPrefix is drawn before the display ID.
const LabelPrefix = "Vehicle"

// Label renders the display label of an object, e.g. "Vehicle: 3".
func Label(displayID int) string {
	return fmt.Sprintf("%s: %d", LabelPrefix, displayID)
}

// GetTimestamp will retrieve and format a timestamp to be YYYYMMDD_HHMMSS
func GetTimestamp(t time.Time) string {
	return t.Format("20060102_150405")
}

// String formats the record the way it is reported at the end of a run.
func (o Object) String() string {
	return fmt.Sprintf("%s (track %d, %s, first seen %s)",
		Label(o.DisplayID), o.TrackID, o.Label, GetTimestamp(o.FirstSeen))
}
