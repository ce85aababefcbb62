package predictor

import (
	"fmt"
	"math"
	"math/rand"
)

// gruLayer is a gated recurrent unit layer:
//
//	z  = σ(Wz·x + Uz·h + bz)
//	r  = σ(Wr·x + Ur·h + br)
//	h~ = tanh(Wh·x + Uh·(r⊙h) + bh)
//	h' = (1-z)⊙h + z⊙h~
type gruLayer struct {
	InputSize int     `json:"input_size"`
	Units     int     `json:"units"`
	Wz        *matrix `json:"w_z"`
	Wr        *matrix `json:"w_r"`
	Wh        *matrix `json:"w_h"`
	Uz        *matrix `json:"u_z"`
	Ur        *matrix `json:"u_r"`
	Uh        *matrix `json:"u_h"`
	Bz        *matrix `json:"b_z"`
	Br        *matrix `json:"b_r"`
	Bh        *matrix `json:"b_h"`
}

// gruStep caches one timestep of the forward pass for backpropagation
type gruStep struct {
	x     []float64 // input after dropout
	hPrev []float64
	hm    []float64 // hPrev after recurrent dropout
	z     []float64
	r     []float64
	hc    []float64
	h     []float64
}

func newGRULayer(inputSize, units int, rng *rand.Rand) *gruLayer {
	return &gruLayer{
		InputSize: inputSize,
		Units:     units,
		Wz:        glorotMatrix(units, inputSize, rng),
		Wr:        glorotMatrix(units, inputSize, rng),
		Wh:        glorotMatrix(units, inputSize, rng),
		Uz:        glorotMatrix(units, units, rng),
		Ur:        glorotMatrix(units, units, rng),
		Uh:        glorotMatrix(units, units, rng),
		Bz:        newMatrix(units, 1),
		Br:        newMatrix(units, 1),
		Bh:        newMatrix(units, 1),
	}
}

func (l *gruLayer) params() []*matrix {
	return []*matrix{l.Wz, l.Wr, l.Wh, l.Uz, l.Ur, l.Uh, l.Bz, l.Br, l.Bh}
}

func (l *gruLayer) clone() *gruLayer {
	return &gruLayer{
		InputSize: l.InputSize,
		Units:     l.Units,
		Wz:        l.Wz.clone(),
		Wr:        l.Wr.clone(),
		Wh:        l.Wh.clone(),
		Uz:        l.Uz.clone(),
		Ur:        l.Ur.clone(),
		Uh:        l.Uh.clone(),
		Bz:        l.Bz.clone(),
		Br:        l.Br.clone(),
		Bh:        l.Bh.clone(),
	}
}

func (l *gruLayer) validate() error {
	if l == nil || l.InputSize < 1 || l.Units < 1 {
		return fmt.Errorf("invalid GRU layer shape")
	}
	for _, p := range []*matrix{l.Wz, l.Wr, l.Wh} {
		if err := p.validate(l.Units, l.InputSize); err != nil {
			return err
		}
	}
	for _, p := range []*matrix{l.Uz, l.Ur, l.Uh} {
		if err := p.validate(l.Units, l.Units); err != nil {
			return err
		}
	}
	for _, p := range []*matrix{l.Bz, l.Br, l.Bh} {
		if err := p.validate(l.Units, 1); err != nil {
			return err
		}
	}
	return nil
}

// forward runs the layer over a sequence starting from a zero state.
// Nil masks mean no dropout.
func (l *gruLayer) forward(xs [][]float64, inMask, recMask []float64) []gruStep {
	units := l.Units
	h := make([]float64, units)
	steps := make([]gruStep, len(xs))

	for t, xRaw := range xs {
		x := applyMask(xRaw, inMask)
		hm := applyMask(h, recMask)

		z := make([]float64, units)
		r := make([]float64, units)
		hc := make([]float64, units)
		copy(z, l.Bz.Data)
		copy(r, l.Br.Data)
		copy(hc, l.Bh.Data)

		l.Wz.mulVecAdd(x, z)
		l.Uz.mulVecAdd(hm, z)
		l.Wr.mulVecAdd(x, r)
		l.Ur.mulVecAdd(hm, r)
		for i := range z {
			z[i] = sigmoid(z[i])
			r[i] = sigmoid(r[i])
		}

		rh := make([]float64, units)
		for i := range rh {
			rh[i] = r[i] * hm[i]
		}
		l.Wh.mulVecAdd(x, hc)
		l.Uh.mulVecAdd(rh, hc)

		hNew := make([]float64, units)
		for i := range hc {
			hc[i] = math.Tanh(hc[i])
			hNew[i] = (1-z[i])*h[i] + z[i]*hc[i]
		}

		steps[t] = gruStep{x: x, hPrev: h, hm: hm, z: z, r: r, hc: hc, h: hNew}
		h = hNew
	}
	return steps
}

// backward accumulates parameter gradients given dL/dh_t for every step
// (nil entries mean zero) and returns dL/dx_t for the unmasked inputs
func (l *gruLayer) backward(steps []gruStep, dhOut [][]float64, inMask, recMask []float64) [][]float64 {
	units := l.Units
	dhNext := make([]float64, units)
	dxs := make([][]float64, len(steps))

	for t := len(steps) - 1; t >= 0; t-- {
		s := steps[t]

		dh := make([]float64, units)
		copy(dh, dhNext)
		if dhOut[t] != nil {
			for i := range dh {
				dh[i] += dhOut[t][i]
			}
		}

		az := make([]float64, units)
		ahc := make([]float64, units)
		dhPrev := make([]float64, units)
		for i := 0; i < units; i++ {
			dhc := dh[i] * s.z[i]
			dz := dh[i] * (s.hc[i] - s.hPrev[i])
			dhPrev[i] = dh[i] * (1 - s.z[i])
			ahc[i] = dhc * (1 - s.hc[i]*s.hc[i])
			az[i] = dz * s.z[i] * (1 - s.z[i])
		}

		rh := make([]float64, units)
		for i := range rh {
			rh[i] = s.r[i] * s.hm[i]
		}
		l.Wh.addOuter(ahc, s.x)
		l.Uh.addOuter(ahc, rh)
		l.Bh.addVec(ahc)

		drh := make([]float64, units)
		l.Uh.mulTVecAdd(ahc, drh)

		ar := make([]float64, units)
		dhm := make([]float64, units)
		for i := 0; i < units; i++ {
			ar[i] = drh[i] * s.hm[i] * s.r[i] * (1 - s.r[i])
			dhm[i] = drh[i] * s.r[i]
		}

		l.Wz.addOuter(az, s.x)
		l.Uz.addOuter(az, s.hm)
		l.Bz.addVec(az)
		l.Wr.addOuter(ar, s.x)
		l.Ur.addOuter(ar, s.hm)
		l.Br.addVec(ar)

		l.Uz.mulTVecAdd(az, dhm)
		l.Ur.mulTVecAdd(ar, dhm)
		dhm = applyMask(dhm, recMask)
		for i := range dhPrev {
			dhPrev[i] += dhm[i]
		}

		dx := make([]float64, l.InputSize)
		l.Wz.mulTVecAdd(az, dx)
		l.Wr.mulTVecAdd(ar, dx)
		l.Wh.mulTVecAdd(ahc, dx)
		dxs[t] = applyMask(dx, inMask)

		dhNext = dhPrev
	}
	return dxs
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// applyMask returns v⊙mask, or v itself when mask is nil
func applyMask(v, mask []float64) []float64 {
	if mask == nil {
		return v
	}
	out := make([]float64, len(v))
	for i := range v {
		out[i] = v[i] * mask[i]
	}
	return out
}

// dropoutMask builds an inverted dropout mask, nil when rate is zero
func dropoutMask(size int, rate float64, rng *rand.Rand) []float64 {
	if rate <= 0 {
		return nil
	}
	keep := 1 - rate
	mask := make([]float64, size)
	for i := range mask {
		if rng.Float64() < keep {
			mask[i] = 1 / keep
		}
	}
	return mask
}
