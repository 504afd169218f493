package tracker

import (
	"image"
	"math"

	hg "github.com/charles-haynes/munkres"
	"github.com/pkg/errors"
	objdet "go.viam.com/rdk/vision/objectdetection"
)

// IOU returns the intersection over union of 2 rectangles.
func IOU(r1, r2 *image.Rectangle) float64 {
	return iou(boxFromRect(*r1), boxFromRect(*r2))
}

func iou(b1, b2 box) float64 {
	ix := math.Min(b1[2], b2[2]) - math.Max(b1[0], b2[0])
	iy := math.Min(b1[3], b2[3]) - math.Max(b1[1], b2[1])
	if ix <= 0 || iy <= 0 {
		return 0
	}
	inter := ix * iy
	area1 := (b1[2] - b1[0]) * (b1[3] - b1[1])
	area2 := (b2[2] - b2[0]) * (b2[3] - b2[1])
	union := area1 + area2 - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// BuildMatchingMatrix sets up a cost matrix for the Hungarian algorithm.
// Rows are predicted track boxes, columns are detections, and each cost is 1-IoU.
func BuildMatchingMatrix(predicted []box, detections []objdet.Detection) [][]float64 {
	matchMtx := make([][]float64, len(predicted))
	for i, pred := range predicted {
		row := make([]float64, len(detections))
		for j, det := range detections {
			row[j] = 1 - iou(pred, boxFromRect(*det.BoundingBox()))
		}
		matchMtx[i] = row
	}
	return matchMtx
}

type match struct {
	track, det int
}

// associate solves the minimum cost assignment between predictions and detections.
// Pairs overlapping less than minIoU are split back into unmatched tracks and detections.
func associate(predicted []box, detections []objdet.Detection, minIoU float64) ([]match, []int, []int, error) {
	var (
		matches         []match
		unmatchedTracks []int
		unmatchedDets   []int
	)
	if len(predicted) == 0 || len(detections) == 0 {
		for i := range predicted {
			unmatchedTracks = append(unmatchedTracks, i)
		}
		for j := range detections {
			unmatchedDets = append(unmatchedDets, j)
		}
		return nil, unmatchedTracks, unmatchedDets, nil
	}

	matchMtx := BuildMatchingMatrix(predicted, detections)
	HA, err := hg.NewHungarianAlgorithm(matchMtx)
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "cannot solve assignment")
	}
	assignment := HA.Execute()

	used := make([]bool, len(detections))
	for trackIdx, detIdx := range assignment {
		if detIdx < 0 || detIdx >= len(detections) || 1-matchMtx[trackIdx][detIdx] < minIoU {
			unmatchedTracks = append(unmatchedTracks, trackIdx)
			continue
		}
		matches = append(matches, match{track: trackIdx, det: detIdx})
		used[detIdx] = true
	}
	for j, ok := range used {
		if !ok {
			unmatchedDets = append(unmatchedDets, j)
		}
	}
	return matches, unmatchedTracks, unmatchedDets, nil
}
