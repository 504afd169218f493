package main

import (
	"context"
	"image"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.viam.com/rdk/logging"
	"go.viam.com/test"

	"github.com/viam-modules/vehicle-tracking/config"
)

type fakeSource struct {
	frames int
	it     int
}

func (fs *fakeSource) Next(ctx context.Context) (image.Image, error) {
	fs.it++
	if fs.it > fs.frames {
		return nil, io.EOF
	}
	return image.NewRGBA(image.Rect(0, 0, 64, 64)), nil
}

func TestComponentLoggers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"result":{"bounding_boxes":[`+
			`{"label":"vehicle","value":0.9,"x":10,"y":10,"width":20,"height":20},`+
			`{"label":"vehicle","value":0.1,"x":40,"y":40,"width":10,"height":10}]}}`)
	}))
	defer srv.Close()

	cfg := &config.Config{
		VideoSource:     "fake",
		DetectorURL:     srv.URL,
		DetectorTimeout: time.Second,
		FrameSize:       64,
		MinHits:         1,
		MinConfidence:   0.5,
	}
	logger, logs := logging.NewObservedTestLogger(t)
	ctrl, err := newController(cfg, &fakeSource{frames: 2}, 0, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ctrl.Run(context.Background()), test.ShouldBeNil)
	test.That(t, ctrl.SeenCount(), test.ShouldEqual, 1)

	names := map[string]bool{}
	for _, entry := range logs.All() {
		names[entry.LoggerName] = true
	}
	for _, sub := range []string{"tracker", "detector", "identity", "pipeline"} {
		test.That(t, names[t.Name()+"."+sub], test.ShouldBeTrue)
	}
	for name := range names {
		test.That(t, strings.HasPrefix(name, t.Name()+"."), test.ShouldBeTrue)
	}
}

func TestNewControllerRejectsTrackerConfig(t *testing.T) {
	cfg := &config.Config{
		VideoSource:     "fake",
		DetectorURL:     "http://localhost:1/api/image",
		DetectorTimeout: time.Second,
		FrameSize:       64,
		IoUThreshold:    2,
	}
	_, err := newController(cfg, &fakeSource{}, 0, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
}
