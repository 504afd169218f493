package video

import (
	"image"
	"sync"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

const (
	// DefaultCodec is the FourCC used for the annotated output.
	DefaultCodec = "mp4v"
	// DefaultFPS is used when neither the config nor the source gives a frame rate.
	DefaultFPS = 30.0
)

// Writer appends fixed-size frames to a video file.
type Writer struct {
	mu     sync.Mutex
	path   string
	width  int
	height int
	vw     *gocv.VideoWriter
	closed bool
}

// OpenWriter creates the video file at path for frames of width x height.
func OpenWriter(path string, fps float64, width, height int) (*Writer, error) {
	if fps <= 0 {
		fps = DefaultFPS
	}
	vw, err := gocv.VideoWriterFile(path, DefaultCodec, fps, width, height, true)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open video writer at %s", path)
	}
	if !vw.IsOpened() {
		vw.Close()
		return nil, errors.Errorf("unable to open video writer at %s", path)
	}
	return &Writer{path: path, width: width, height: height, vw: vw}, nil
}

// Path is the file being written.
func (w *Writer) Path() string {
	return w.path
}

// Write appends img. Frames of the wrong size are rejected. After Close, Write is a no-op.
func (w *Writer) Write(img image.Image) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	if b := img.Bounds(); b.Dx() != w.width || b.Dy() != w.height {
		return errors.Errorf("frame is %dx%d, writer expects %dx%d", b.Dx(), b.Dy(), w.width, w.height)
	}
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return errors.Wrap(err, "cannot convert frame")
	}
	defer mat.Close()
	return w.vw.Write(mat)
}

// Close finalises the file. It is safe to call more than once.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	return w.vw.Close()
}
