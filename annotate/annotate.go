// Package annotate draws tracked objects and their display labels onto frames.
package annotate

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	colorful "github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/viam-modules/vehicle-tracking/identity"
)

const (
	// DefaultThickness is the box line width in pixels.
	DefaultThickness = 2
	// goldenAngle spreads consecutive display IDs around the hue circle.
	goldenAngle = 137.508
)

var (
	labelBackground = color.RGBA{0, 0, 0, 180}
	countColor      = color.RGBA{255, 255, 255, 255}
)

// Annotator draws boxes and labels. The zero value is not usable; use New.
type Annotator struct {
	thickness int
	face      font.Face
	showCount bool
}

// New returns an annotator that draws boxes with the given line thickness and, if
// showCount is set, the running distinct-object count in the top left corner.
func New(thickness int, showCount bool) *Annotator {
	if thickness < 1 {
		thickness = 1
	}
	return &Annotator{thickness: thickness, face: basicfont.Face7x13, showCount: showCount}
}

// Color returns the colour used for a display ID.
func Color(displayID int) color.RGBA {
	hue := math.Mod(float64(displayID)*goldenAngle, 360)
	r, g, b := colorful.Hsv(hue, 0.85, 0.95).RGB255()
	return color.RGBA{r, g, b, 255}
}

// Annotate returns a copy of img with every object outlined and labelled. img is not modified.
func (a *Annotator) Annotate(img image.Image, objects []identity.Labeled, seen int) *image.RGBA {
	bounds := img.Bounds()
	rgba := image.NewRGBA(bounds)
	draw.Draw(rgba, bounds, img, bounds.Min, draw.Src)

	for _, obj := range objects {
		c := Color(obj.DisplayID)
		a.drawBox(rgba, obj.BBox, c)
		a.drawLabel(rgba, obj.BBox.Min.X, obj.BBox.Min.Y-14, identity.Label(obj.DisplayID), c)
	}
	if a.showCount {
		a.drawLabel(rgba, bounds.Min.X+2, bounds.Min.Y+2, fmt.Sprintf("Seen: %d", seen), countColor)
	}
	return rgba
}

// drawBox outlines r, clipped to the image.
func (a *Annotator) drawBox(img *image.RGBA, r image.Rectangle, c color.RGBA) {
	u := image.NewUniform(c)
	t := a.thickness
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+t),
		image.Rect(r.Min.X, r.Max.Y-t, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+t, r.Max.Y),
		image.Rect(r.Max.X-t, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		e = e.Intersect(img.Bounds())
		if e.Empty() {
			continue
		}
		draw.Draw(img, e, u, image.Point{}, draw.Src)
	}
}

// drawLabel draws text on a dark background with its top left corner at (x, y).
func (a *Annotator) drawLabel(img *image.RGBA, x, y int, label string, c color.RGBA) {
	bounds := img.Bounds()
	if y < bounds.Min.Y {
		y = bounds.Min.Y
	}
	if x < bounds.Min.X {
		x = bounds.Min.X
	}

	width := font.MeasureString(a.face, label).Ceil()
	bg := image.Rect(x, y, x+width+4, y+14).Intersect(bounds)
	draw.Draw(img, bg, image.NewUniform(labelBackground), image.Point{}, draw.Over)

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: a.face,
		Dot:  fixed.Point26_6{X: fixed.I(x + 2), Y: fixed.I(y + 11)},
	}
	d.DrawString(label)
}
