// Package video wraps OpenCV capture, writing and display for the frame pipeline.
package video

import (
	"context"
	"image"
	"io"
	"strconv"
	"sync"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Source reads frames from a video file or a capture device.
type Source struct {
	mu    sync.Mutex
	cap   *gocv.VideoCapture
	frame gocv.Mat
	done  bool
}

// OpenSource opens src, which is either a path/URL or a numeric device index.
func OpenSource(src string) (*Source, error) {
	var (
		cap *gocv.VideoCapture
		err error
	)
	if idx, convErr := strconv.Atoi(src); convErr == nil {
		cap, err = gocv.OpenVideoCapture(idx)
	} else {
		cap, err = gocv.VideoCaptureFile(src)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open video source %q", src)
	}
	if !cap.IsOpened() {
		cap.Close()
		return nil, errors.Errorf("unable to open video source %q", src)
	}
	return &Source{cap: cap, frame: gocv.NewMat()}, nil
}

// Next returns the next frame, or io.EOF once the stream is exhausted.
func (s *Source) Next(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return nil, io.EOF
	}
	if ok := s.cap.Read(&s.frame); !ok || s.frame.Empty() {
		return nil, io.EOF
	}
	img, err := s.frame.ToImage()
	if err != nil {
		return nil, errors.Wrap(err, "cannot convert frame")
	}
	return img, nil
}

// FPS reports the frame rate advertised by the source, or 0 when unknown.
func (s *Source) FPS() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return 0
	}
	return s.cap.Get(gocv.VideoCaptureFPS)
}

// Size reports the acquisition resolution.
func (s *Source) Size() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return 0, 0
	}
	return int(s.cap.Get(gocv.VideoCaptureFrameWidth)), int(s.cap.Get(gocv.VideoCaptureFrameHeight))
}

// Close releases the capture. It is safe to call more than once.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return nil
	}
	s.done = true
	err := s.frame.Close()
	if cerr := s.cap.Close(); cerr != nil {
		err = cerr
	}
	return err
}
