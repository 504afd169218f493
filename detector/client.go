// Package detector is a client for a remote object detection service that accepts one
// image per request and answers with a list of bounding boxes.
package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
	objdet "go.viam.com/rdk/vision/objectdetection"
)

const (
	// DefaultEndpoint is where the inference container listens.
	DefaultEndpoint = "http://inference:1337/api/image"
	// DefaultTimeout bounds a single detection request.
	DefaultTimeout = 10 * time.Second
	// DefaultLabel is used for boxes the service returns without a label.
	DefaultLabel = "vehicle"
)

// ErrMalformedResponse is returned when the service answers 200 with a body that does not
// have the expected shape.
var ErrMalformedResponse = errors.New("malformed detector response")

// Client posts frames to the detection service.
type Client struct {
	endpoint string
	client   *http.Client
	logger   logging.Logger
}

// NewClient returns a client for endpoint. A zero timeout selects DefaultTimeout.
func NewClient(endpoint string, timeout time.Duration, logger logging.Logger) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

// Detections sends img to the service and returns the boxes it found. An error means no
// information is available for this frame; it never means zero objects.
func (c *Client) Detections(ctx context.Context, img image.Image) ([]objdet.Detection, error) {
	var b bytes.Buffer
	w := multipart.NewWriter(&b)
	fw, err := w.CreateFormFile("file", "frame.png")
	if err != nil {
		return nil, errors.Wrap(err, "cannot create form file")
	}
	if err := imaging.Encode(fw, img, imaging.PNG); err != nil {
		return nil, errors.Wrap(err, "cannot encode frame")
	}
	if err := w.Close(); err != nil {
		return nil, errors.Wrap(err, "cannot finish multipart body")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, &b)
	if err != nil {
		return nil, errors.Wrap(err, "cannot build detection request")
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "detection request failed")
	}
	defer resp.Body.Close()
	c.logger.Debugf("detector answered %d in %s", resp.StatusCode, time.Since(start))

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, errors.Errorf("detector returned status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	return Decode(resp.Body)
}

type boundingBox struct {
	Label  string   `json:"label"`
	Value  *float64 `json:"value"`
	X      *float64 `json:"x"`
	Y      *float64 `json:"y"`
	Width  *float64 `json:"width"`
	Height *float64 `json:"height"`
}

type response struct {
	Result *struct {
		BoundingBoxes *[]boundingBox `json:"bounding_boxes"`
	} `json:"result"`
}

// Decode parses a detector response body. Boxes with a non-positive width or height are
// dropped; a box missing any coordinate makes the whole response malformed. Confidence
// defaults to 1.0 when the service does not supply one.
func Decode(r io.Reader) ([]objdet.Detection, error) {
	var resp response
	if err := json.NewDecoder(r).Decode(&resp); err != nil {
		return nil, errors.Wrap(ErrMalformedResponse, err.Error())
	}
	if resp.Result == nil || resp.Result.BoundingBoxes == nil {
		return nil, errors.Wrap(ErrMalformedResponse, "missing result.bounding_boxes")
	}

	boxes := *resp.Result.BoundingBoxes
	dets := make([]objdet.Detection, 0, len(boxes))
	for i, bb := range boxes {
		if bb.X == nil || bb.Y == nil || bb.Width == nil || bb.Height == nil {
			return nil, errors.Wrapf(ErrMalformedResponse, "bounding box %d is missing a coordinate", i)
		}
		if !finite(*bb.X, *bb.Y, *bb.Width, *bb.Height) {
			return nil, errors.Wrapf(ErrMalformedResponse, "bounding box %d has a non-finite coordinate", i)
		}
		if *bb.Width <= 0 || *bb.Height <= 0 {
			continue
		}
		score := 1.0
		if bb.Value != nil {
			score = math.Max(0, math.Min(1, *bb.Value))
		}
		label := bb.Label
		if label == "" {
			label = DefaultLabel
		}
		x1, y1 := math.Round(*bb.X), math.Round(*bb.Y)
		x2, y2 := math.Round(*bb.X+*bb.Width), math.Round(*bb.Y+*bb.Height)
		rect := image.Rect(int(x1), int(y1), int(x2), int(y2))
		if rect.Empty() {
			continue
		}
		dets = append(dets, objdet.NewDetection(rect, score, label))
	}
	return dets, nil
}

func finite(vals ...float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
