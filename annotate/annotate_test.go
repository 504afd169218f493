package annotate

import (
	"image"
	"image/color"
	"testing"

	"go.viam.com/test"

	"github.com/viam-modules/vehicle-tracking/identity"
)

func TestAnnotateDrawsBox(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 100, 100))
	a := New(2, false)
	obj := identity.Labeled{DisplayID: 1, BBox: image.Rect(20, 30, 60, 70)}

	out := a.Annotate(src, []identity.Labeled{obj}, 1)
	test.That(t, out.Bounds(), test.ShouldResemble, src.Bounds())

	c := Color(1)
	test.That(t, out.RGBAAt(20, 50), test.ShouldResemble, c)
	test.That(t, out.RGBAAt(59, 50), test.ShouldResemble, c)
	test.That(t, out.RGBAAt(40, 69), test.ShouldResemble, c)
	// Inside the box is untouched.
	test.That(t, out.RGBAAt(40, 50), test.ShouldResemble, color.RGBA{})
	// The source frame is not modified.
	test.That(t, src.RGBAAt(20, 50), test.ShouldResemble, color.RGBA{})
}

func TestAnnotateClipsToFrame(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 50, 50))
	a := New(3, true)
	objs := []identity.Labeled{
		{DisplayID: 2, BBox: image.Rect(-10, -10, 20, 20)},
		{DisplayID: 3, BBox: image.Rect(40, 40, 80, 80)},
	}
	out := a.Annotate(src, objs, 3)
	test.That(t, out.Bounds(), test.ShouldResemble, src.Bounds())
	test.That(t, out.RGBAAt(19, 45), test.ShouldResemble, color.RGBA{})
	test.That(t, out.RGBAAt(40, 45), test.ShouldResemble, Color(3))
}

func TestColorsDiffer(t *testing.T) {
	seen := map[color.RGBA]bool{}
	for id := 1; id <= 10; id++ {
		c := Color(id)
		test.That(t, c.A, test.ShouldEqual, uint8(255))
		test.That(t, seen[c], test.ShouldBeFalse)
		seen[c] = true
	}
	test.That(t, Color(4), test.ShouldResemble, Color(4))
}
