package video

import (
	"image"
	"sync"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Display mirrors frames to a desktop window.
type Display struct {
	mu     sync.Mutex
	window *gocv.Window
}

// NewDisplay opens a window titled name.
func NewDisplay(name string) *Display {
	return &Display{window: gocv.NewWindow(name)}
}

// Show draws img and pumps the window's event loop.
func (d *Display) Show(img image.Image) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.window == nil {
		return nil
	}
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return errors.Wrap(err, "cannot convert frame")
	}
	defer mat.Close()
	d.window.IMShow(mat)
	d.window.WaitKey(1)
	return nil
}

// Close destroys the window. It is safe to call more than once.
func (d *Display) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.window == nil {
		return nil
	}
	err := d.window.Close()
	d.window = nil
	return err
}
