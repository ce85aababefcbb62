package predictor

import (
	"context"
	"fmt"
	"math"
	"math/rand"
)

// network stacks two GRU layers (the second half as wide as the first) and a
// single linear output unit reading the last hidden state
type network struct {
	Layers    []*gruLayer `json:"layers"`
	Dense     *matrix     `json:"dense"`
	DenseBias *matrix     `json:"dense_bias"`
}

type sample struct {
	input []float64
	label float64
}

type masks struct {
	in  [][]float64
	rec [][]float64
}

type forwardCache struct {
	steps [][]gruStep
	masks masks
}

// history mirrors a per-epoch training log
type history struct {
	Loss           []float64
	ValidationLoss []float64
}

func newNetwork(cfg Config, rng *rand.Rand) *network {
	second := cfg.Units / 2
	return &network{
		Layers: []*gruLayer{
			newGRULayer(1, cfg.Units, rng),
			newGRULayer(cfg.Units, second, rng),
		},
		Dense:     glorotMatrix(1, second, rng),
		DenseBias: newMatrix(1, 1),
	}
}

func (n *network) params() []*matrix {
	var ps []*matrix
	for _, l := range n.Layers {
		ps = append(ps, l.params()...)
	}
	return append(ps, n.Dense, n.DenseBias)
}

func (n *network) clone() *network {
	c := &network{Dense: n.Dense.clone(), DenseBias: n.DenseBias.clone()}
	for _, l := range n.Layers {
		c.Layers = append(c.Layers, l.clone())
	}
	return c
}

func (n *network) validate() error {
	if len(n.Layers) != 2 {
		return fmt.Errorf("network has %d recurrent layers, want 2", len(n.Layers))
	}
	for i, l := range n.Layers {
		if err := l.validate(); err != nil {
			return fmt.Errorf("layer %d: %w", i, err)
		}
	}
	if n.Layers[0].InputSize != 1 {
		return fmt.Errorf("first layer takes %d features, want 1", n.Layers[0].InputSize)
	}
	if n.Layers[1].InputSize != n.Layers[0].Units {
		return fmt.Errorf("layer widths do not chain: %d -> %d", n.Layers[0].Units, n.Layers[1].InputSize)
	}
	if err := n.Dense.validate(1, n.Layers[1].Units); err != nil {
		return fmt.Errorf("dense: %w", err)
	}
	if err := n.DenseBias.validate(1, 1); err != nil {
		return fmt.Errorf("dense bias: %w", err)
	}
	return nil
}

func (n *network) forward(window []float64, m masks) (float64, forwardCache) {
	xs := make([][]float64, len(window))
	for i, v := range window {
		xs[i] = []float64{v}
	}

	cache := forwardCache{masks: m, steps: make([][]gruStep, len(n.Layers))}
	for li, l := range n.Layers {
		steps := l.forward(xs, maskAt(m.in, li), maskAt(m.rec, li))
		cache.steps[li] = steps
		xs = make([][]float64, len(steps))
		for t, s := range steps {
			xs[t] = s.h
		}
	}

	last := xs[len(xs)-1]
	y := n.DenseBias.Data[0]
	for i, w := range n.Dense.Data {
		y += w * last[i]
	}
	return y, cache
}

func (n *network) backward(cache forwardCache, dy float64) {
	top := cache.steps[len(cache.steps)-1]
	last := top[len(top)-1].h

	n.Dense.addOuter([]float64{dy}, last)
	n.DenseBias.addVec([]float64{dy})

	dh := make([][]float64, len(top))
	dh[len(top)-1] = make([]float64, len(last))
	for i, w := range n.Dense.Data {
		dh[len(top)-1][i] = dy * w
	}

	for li := len(n.Layers) - 1; li >= 0; li-- {
		dh = n.Layers[li].backward(cache.steps[li], dh, maskAt(cache.masks.in, li), maskAt(cache.masks.rec, li))
	}
}

func (n *network) predict(window []float64) float64 {
	y, _ := n.forward(window, masks{})
	return y
}

func (n *network) sampleMasks(cfg Config, rng *rand.Rand) masks {
	if cfg.Dropout <= 0 && cfg.RecurrentDropout <= 0 {
		return masks{}
	}
	var m masks
	for _, l := range n.Layers {
		m.in = append(m.in, dropoutMask(l.InputSize, cfg.Dropout, rng))
		m.rec = append(m.rec, dropoutMask(l.Units, cfg.RecurrentDropout, rng))
	}
	return m
}

// evaluate returns the MSE over samples without dropout
func (n *network) evaluate(samples []sample) float64 {
	sum := 0.0
	for _, s := range samples {
		d := n.predict(s.input) - s.label
		sum += d * d
	}
	return sum / float64(len(samples))
}

// validationCount is how many trailing samples are held out: everything past
// int(n*(1-split)). Nothing is held out when that would leave no training sample.
func validationCount(n int, split float64) int {
	if split <= 0 {
		return 0
	}
	nVal := n - int(float64(n)*(1-split))
	if nVal >= n {
		return 0
	}
	return nVal
}

// fit trains with MSE loss and Adam. The trailing ValidationSplit fraction of
// samples is held out; the rest is shuffled every epoch.
func (n *network) fit(ctx context.Context, samples []sample, cfg Config, rng *rand.Rand, progress ProgressFunc) (history, error) {
	var hist history

	nVal := validationCount(len(samples), cfg.ValidationSplit)
	train := samples[:len(samples)-nVal]
	val := samples[len(samples)-nVal:]

	opt := newAdam(cfg.LearningRate)
	params := n.params()
	order := make([]int, len(train))
	for i := range order {
		order[i] = i
	}

	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return hist, err
		}
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

		epochLoss := 0.0
		for start := 0; start < len(order); start += cfg.BatchSize {
			end := start + cfg.BatchSize
			if end > len(order) {
				end = len(order)
			}
			batch := order[start:end]
			for _, idx := range batch {
				s := train[idx]
				y, cache := n.forward(s.input, n.sampleMasks(cfg, rng))
				diff := y - s.label
				epochLoss += diff * diff
				n.backward(cache, 2*diff/float64(len(batch)))
			}
			opt.step(params)
		}
		epochLoss /= float64(len(train))
		if math.IsNaN(epochLoss) || math.IsInf(epochLoss, 0) {
			return hist, fmt.Errorf("training diverged at epoch %d", epoch+1)
		}
		hist.Loss = append(hist.Loss, epochLoss)

		stats := EpochStats{Epoch: epoch + 1, Epochs: cfg.Epochs, Loss: epochLoss}
		if len(val) > 0 {
			vl := n.evaluate(val)
			hist.ValidationLoss = append(hist.ValidationLoss, vl)
			stats.ValidationLoss = &vl
		}
		if progress != nil {
			progress(stats)
		}
	}
	return hist, nil
}

func maskAt(ms [][]float64, i int) []float64 {
	if i < len(ms) {
		return ms[i]
	}
	return nil
}
