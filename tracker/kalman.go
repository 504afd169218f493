package tracker

import (
	"image"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

const (
	stateDim = 7
	measDim  = 4
)

// box is an axis aligned box in float pixel coordinates: x1, y1, x2, y2.
type box [4]float64

func boxFromRect(r image.Rectangle) box {
	return box{float64(r.Min.X), float64(r.Min.Y), float64(r.Max.X), float64(r.Max.Y)}
}

func (b box) rect() image.Rectangle {
	return image.Rect(
		int(math.Round(b[0])), int(math.Round(b[1])),
		int(math.Round(b[2])), int(math.Round(b[3])),
	)
}

func (b box) finite() bool {
	for _, v := range b {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// measurement converts a box to [cx, cy, s, r] where s is the area and r the aspect ratio w/h.
func (b box) measurement() *mat.VecDense {
	w, h := b[2]-b[0], b[3]-b[1]
	return mat.NewVecDense(measDim, []float64{b[0] + w/2, b[1] + h/2, w * h, w / h})
}

func boxFromState(x *mat.VecDense) box {
	cx, cy, s, r := x.AtVec(0), x.AtVec(1), x.AtVec(2), x.AtVec(3)
	w := math.Sqrt(s * r)
	h := s / w
	return box{cx - w/2, cy - h/2, cx + w/2, cy + h/2}
}

var (
	// transition advances the centre and area by their velocities; aspect ratio is constant.
	transition = func() *mat.Dense {
		f := eye(stateDim)
		f.Set(0, 4, 1)
		f.Set(1, 5, 1)
		f.Set(2, 6, 1)
		return f
	}()

	observation = func() *mat.Dense {
		h := mat.NewDense(measDim, stateDim, nil)
		for i := 0; i < measDim; i++ {
			h.Set(i, i, 1)
		}
		return h
	}()

	processNoise = func() *mat.Dense {
		q := eye(stateDim)
		q.Set(4, 4, 0.01)
		q.Set(5, 5, 0.01)
		q.Set(6, 6, 0.0001)
		return q
	}()

	measurementNoise = func() *mat.Dense {
		r := eye(measDim)
		r.Set(2, 2, 10)
		r.Set(3, 3, 10)
		return r
	}()

	identity7 = eye(stateDim)
)

func eye(n int) *mat.Dense {
	d := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		d.Set(i, i, 1)
	}
	return d
}

// kalmanBox is a constant velocity Kalman filter over the state
// [cx, cy, s, r, vcx, vcy, vs].
type kalmanBox struct {
	x *mat.VecDense
	p *mat.Dense
}

func newKalmanBox(b box) *kalmanBox {
	z := b.measurement()
	x := mat.NewVecDense(stateDim, nil)
	for i := 0; i < measDim; i++ {
		x.SetVec(i, z.AtVec(i))
	}
	// Velocities are unobserved at spawn, so they start very uncertain.
	p := eye(stateDim)
	for i := measDim; i < stateDim; i++ {
		p.Set(i, i, 1000)
	}
	p.Scale(10, p)
	return &kalmanBox{x: x, p: p}
}

// predict advances the state one frame and returns the predicted box.
func (k *kalmanBox) predict() box {
	// An area shrinking through zero would make the box undefined.
	if k.x.AtVec(2)+k.x.AtVec(6) <= 0 {
		k.x.SetVec(6, 0)
	}
	var x mat.VecDense
	x.MulVec(transition, k.x)

	var fp, p mat.Dense
	fp.Mul(transition, k.p)
	p.Mul(&fp, transition.T())
	p.Add(&p, processNoise)

	k.x, k.p = &x, &p
	return k.box()
}

// update corrects the state toward the observed box.
func (k *kalmanBox) update(b box) error {
	var hx, y mat.VecDense
	hx.MulVec(observation, k.x)
	y.SubVec(b.measurement(), &hx)

	var hp, s, sInv mat.Dense
	hp.Mul(observation, k.p)
	s.Mul(&hp, observation.T())
	s.Add(&s, measurementNoise)
	if err := sInv.Inverse(&s); err != nil {
		return errors.Wrap(err, "innovation covariance is not invertible")
	}

	var pht, gain mat.Dense
	pht.Mul(k.p, observation.T())
	gain.Mul(&pht, &sInv)

	var dx, x mat.VecDense
	dx.MulVec(&gain, &y)
	x.AddVec(k.x, &dx)

	var kh, ikh, p mat.Dense
	kh.Mul(&gain, observation)
	ikh.Sub(identity7, &kh)
	p.Mul(&ikh, k.p)

	k.x, k.p = &x, &p
	return nil
}

func (k *kalmanBox) box() box {
	return boxFromState(k.x)
}
