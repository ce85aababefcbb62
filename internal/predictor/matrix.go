package predictor

import (
	"fmt"
	"math"
	"math/rand"
)

// matrix is a dense row-major parameter block with its gradient and Adam moments
type matrix struct {
	Rows int       `json:"rows"`
	Cols int       `json:"cols"`
	Data []float64 `json:"data"`

	grad []float64
	m    []float64
	v    []float64
}

func newMatrix(rows, cols int) *matrix {
	return &matrix{Rows: rows, Cols: cols, Data: make([]float64, rows*cols)}
}

// glorotMatrix draws from U(-l, l) with l = sqrt(6 / (fan_in + fan_out))
func glorotMatrix(rows, cols int, rng *rand.Rand) *matrix {
	mt := newMatrix(rows, cols)
	limit := math.Sqrt(6 / float64(rows+cols))
	for i := range mt.Data {
		mt.Data[i] = (rng.Float64()*2 - 1) * limit
	}
	return mt
}

func (mt *matrix) clone() *matrix {
	c := newMatrix(mt.Rows, mt.Cols)
	copy(c.Data, mt.Data)
	return c
}

func (mt *matrix) ensureGrad() {
	if mt.grad == nil {
		mt.grad = make([]float64, len(mt.Data))
	}
}

// mulVecAdd does out += W·x
func (mt *matrix) mulVecAdd(x, out []float64) {
	for i := 0; i < mt.Rows; i++ {
		row := mt.Data[i*mt.Cols : (i+1)*mt.Cols]
		sum := 0.0
		for j, w := range row {
			sum += w * x[j]
		}
		out[i] += sum
	}
}

// mulTVecAdd does out += Wᵀ·a
func (mt *matrix) mulTVecAdd(a, out []float64) {
	for i := 0; i < mt.Rows; i++ {
		row := mt.Data[i*mt.Cols : (i+1)*mt.Cols]
		for j, w := range row {
			out[j] += w * a[i]
		}
	}
}

// addOuter accumulates a ⊗ x into the gradient
func (mt *matrix) addOuter(a, x []float64) {
	mt.ensureGrad()
	for i := 0; i < mt.Rows; i++ {
		if a[i] == 0 {
			continue
		}
		g := mt.grad[i*mt.Cols : (i+1)*mt.Cols]
		for j := range g {
			g[j] += a[i] * x[j]
		}
	}
}

// addVec accumulates a into the gradient of a column vector
func (mt *matrix) addVec(a []float64) {
	mt.ensureGrad()
	for i := range a {
		mt.grad[i] += a[i]
	}
}

func (mt *matrix) validate(rows, cols int) error {
	if mt == nil {
		return fmt.Errorf("missing %dx%d parameter block", rows, cols)
	}
	if mt.Rows != rows || mt.Cols != cols || len(mt.Data) != rows*cols {
		return fmt.Errorf("parameter block is %dx%d with %d values, want %dx%d",
			mt.Rows, mt.Cols, len(mt.Data), rows, cols)
	}
	for _, v := range mt.Data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("parameter block holds non-finite values")
		}
	}
	return nil
}

// adam implements the Adam optimizer
type adam struct {
	lr    float64
	beta1 float64
	beta2 float64
	eps   float64
	t     int
}

func newAdam(lr float64) *adam {
	return &adam{lr: lr, beta1: 0.9, beta2: 0.999, eps: 1e-7}
}

// step applies and then clears the accumulated gradients
func (a *adam) step(params []*matrix) {
	a.t++
	c1 := 1 - math.Pow(a.beta1, float64(a.t))
	c2 := 1 - math.Pow(a.beta2, float64(a.t))
	for _, p := range params {
		if p.grad == nil {
			continue
		}
		if p.m == nil {
			p.m = make([]float64, len(p.Data))
			p.v = make([]float64, len(p.Data))
		}
		for i, g := range p.grad {
			p.m[i] = a.beta1*p.m[i] + (1-a.beta1)*g
			p.v[i] = a.beta2*p.v[i] + (1-a.beta2)*g*g
			mHat := p.m[i] / c1
			vHat := p.v[i] / c2
			p.Data[i] -= a.lr * mHat / (math.Sqrt(vHat) + a.eps)
			p.grad[i] = 0
		}
	}
}
