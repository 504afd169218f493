// Package tracker implements a multi-object tracker.
// This file contains methods that are useful for filtering out detections
// before they reach association.
package tracker

import (
	"strings"

	objdet "go.viam.com/rdk/vision/objectdetection"
)

// NewAdvancedFilter keeps a detection when its lowercased label is a key of chosenLabels
// and its score is at least the mapped value. An empty map keeps everything.
func NewAdvancedFilter(chosenLabels map[string]float64) objdet.Postprocessor {
	return func(detections []objdet.Detection) []objdet.Detection {
		if len(chosenLabels) < 1 {
			return detections
		}
		out := make([]objdet.Detection, 0, len(detections))
		for _, d := range detections {
			minConf, ok := chosenLabels[strings.ToLower(d.Label())]
			if ok && d.Score() >= minConf {
				out = append(out, d)
			}
		}
		return out
	}
}

// NewSizeFilter drops detections without a bounding box or with zero width or height.
func NewSizeFilter() objdet.Postprocessor {
	return func(detections []objdet.Detection) []objdet.Detection {
		out := make([]objdet.Detection, 0, len(detections))
		for _, d := range detections {
			bb := d.BoundingBox()
			if bb == nil || bb.Dx() <= 0 || bb.Dy() <= 0 {
				continue
			}
			out = append(out, d)
		}
		return out
	}
}

// FilterDetections applies the size, label and score filters in that order.
func FilterDetections(chosenLabels map[string]float64, dets []objdet.Detection, conf float64) []objdet.Detection {
	sized := NewSizeFilter()(dets)
	labelled := NewAdvancedFilter(chosenLabels)(sized)
	return objdet.NewScoreFilter(conf)(labelled)
}
