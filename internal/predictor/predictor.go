package predictor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"math/rand"
	"sync"
	"time"
)

var (
	ErrModelNotTrained  = errors.New("model not trained")
	ErrInsufficientData = errors.New("insufficient data")
	ErrPersistence      = errors.New("model persistence failure")
)

// DefaultTemperature is returned when there is no usable temperature at all
const DefaultTemperature = 25.0

// missingValue is the upstream missing-data sentinel
const missingValue = -999.0

type State int

const (
	StateUntrained State = iota
	StateTrainedFromDisk
	StateTrainedFresh
)

func (s State) String() string {
	switch s {
	case StateTrainedFromDisk:
		return "trained_from_disk"
	case StateTrainedFresh:
		return "trained_fresh"
	default:
		return "untrained"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s State) Trained() bool {
	return s != StateUntrained
}

// TrainingSummary describes a Train or Retrain call. Skipped is set when Train
// found an already trained model and did nothing.
type TrainingSummary struct {
	FinalLoss      float64       `json:"final_loss"`
	ValidationLoss *float64      `json:"validation_loss,omitempty"`
	Epochs         int           `json:"epochs"`
	Windows        int           `json:"windows"`
	Skipped        bool          `json:"skipped"`
	Persisted      bool          `json:"persisted"`
	State          State         `json:"state"`
	Duration       time.Duration `json:"-"`
}

type EpochStats struct {
	Epoch          int
	Epochs         int
	Loss           float64
	ValidationLoss *float64
}

// ProgressFunc is called after every training epoch
type ProgressFunc func(EpochStats)

type RetrainOptions struct {
	// RefitScaler refits the min-max scaler and starts from fresh weights,
	// since persisted weights are only meaningful relative to their scaler
	RefitScaler bool
}

type Source string

const (
	SourceModel   Source = "model"
	SourceMean    Source = "mean"
	SourceDefault Source = "default"
)

// Prediction is the always-available next-day forecast. Err records why the
// model was not used when Source is not SourceModel.
type Prediction struct {
	Temperature float64 `json:"predicted_temperature"`
	Source      Source  `json:"source"`
	Err         error   `json:"-"`
	Error       string  `json:"error,omitempty"`
}

// Predictor owns the recurrent model and its scaler. All methods are safe for
// concurrent use; artifacts on disk are not protected across processes.
type Predictor struct {
	mu       sync.Mutex
	cfg      Config
	dir      string
	state    State
	net      *network
	scaler   *MinMaxScaler
	progress ProgressFunc
}

// New returns an untrained predictor. When dir is non-empty, successful
// training saves the artifacts there.
func New(cfg Config, dir string) *Predictor {
	return &Predictor{cfg: cfg.WithDefaults(), dir: dir}
}

func (p *Predictor) OnProgress(fn ProgressFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.progress = fn
}

func (p *Predictor) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Predictor) Config() Config {
	return p.cfg
}

// Dir is where training saves artifacts; empty means training is not persisted
func (p *Predictor) Dir() string {
	return p.dir
}

// Train fits the model on temperatures if it is untrained. A trained predictor
// (fresh or loaded from disk) is left alone and a zero-loss Skipped summary is returned.
func (p *Predictor) Train(ctx context.Context, temperatures []float64) (TrainingSummary, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state.Trained() {
		return TrainingSummary{Skipped: true, State: p.state}, nil
	}
	return p.fitLocked(ctx, temperatures, true)
}

// Retrain always trains. The scaler is kept unless opts.RefitScaler is set or
// none has been fitted yet; with a kept scaler training continues from the current weights.
func (p *Predictor) Retrain(ctx context.Context, temperatures []float64, opts RetrainOptions) (TrainingSummary, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	refit := opts.RefitScaler || p.scaler == nil || p.net == nil
	return p.fitLocked(ctx, temperatures, refit)
}

// Reset forgets the model and removes its artifacts
func (p *Predictor) Reset() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.state = StateUntrained
	p.net = nil
	p.scaler = nil
	if p.dir == "" {
		return nil
	}
	return removeArtifacts(p.dir)
}

func (p *Predictor) fitLocked(ctx context.Context, temperatures []float64, refit bool) (TrainingSummary, error) {
	start := time.Now()
	values := cleanTemperatures(temperatures)
	seq := p.cfg.SequenceLength
	if len(values) < seq+1 {
		return TrainingSummary{State: p.state}, fmt.Errorf("%w: need at least %d valid temperatures, got %d",
			ErrInsufficientData, seq+1, len(values))
	}

	scaler := p.scaler
	if refit {
		fitted, err := FitMinMax(values)
		if err != nil {
			return TrainingSummary{State: p.state}, err
		}
		scaler = fitted
	}

	inputs, labels := Windows(scaler.TransformAll(values), seq)
	samples := make([]sample, len(inputs))
	for i := range inputs {
		samples[i] = sample{input: inputs[i], label: labels[i]}
	}

	rng := rand.New(rand.NewSource(p.cfg.Seed))
	var net *network
	if refit {
		net = newNetwork(p.cfg, rng)
	} else {
		net = p.net.clone()
	}

	hist, err := net.fit(ctx, samples, p.cfg, rng, p.progress)
	if err != nil {
		return TrainingSummary{State: p.state}, fmt.Errorf("training failed: %w", err)
	}

	p.net = net
	p.scaler = scaler
	p.state = StateTrainedFresh

	summary := TrainingSummary{
		FinalLoss: hist.Loss[len(hist.Loss)-1],
		Epochs:    len(hist.Loss),
		Windows:   len(samples),
		State:     p.state,
		Duration:  time.Since(start),
	}
	if n := len(hist.ValidationLoss); n > 0 {
		vl := hist.ValidationLoss[n-1]
		summary.ValidationLoss = &vl
	}

	if p.dir != "" {
		if err := p.saveLocked(p.dir); err != nil {
			log.Printf("Warning: trained model could not be saved to %s: %v", p.dir, err)
		} else {
			summary.Persisted = true
		}
	}

	return summary, nil
}

// Forecast predicts the value following the last SequenceLength valid temperatures.
// It fails with ErrModelNotTrained or ErrInsufficientData.
func (p *Predictor) Forecast(temperatures []float64) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.state.Trained() {
		return 0, ErrModelNotTrained
	}

	values := cleanTemperatures(temperatures)
	seq := p.cfg.SequenceLength
	if len(values) < seq {
		return 0, fmt.Errorf("%w: need at least %d valid temperatures, got %d", ErrInsufficientData, seq, len(values))
	}

	window := p.scaler.TransformAll(values[len(values)-seq:])
	out := p.scaler.InverseTransform(p.net.predict(window))
	if math.IsNaN(out) || math.IsInf(out, 0) {
		return 0, fmt.Errorf("model produced a non-finite forecast")
	}
	return out, nil
}

// PredictNextDay never fails. When Forecast errors it falls back to the mean of
// the valid temperatures, or DefaultTemperature when there are none.
func (p *Predictor) PredictNextDay(temperatures []float64) Prediction {
	v, err := p.Forecast(temperatures)
	if err == nil {
		return Prediction{Temperature: v, Source: SourceModel}
	}
	return Fallback(temperatures, err)
}

// Fallback builds the mean/default prediction used when the model cannot answer
func Fallback(temperatures []float64, cause error) Prediction {
	pred := Prediction{Err: cause}
	if cause != nil {
		pred.Error = cause.Error()
	}

	values := cleanTemperatures(temperatures)
	if len(values) == 0 {
		log.Printf("Warning: no valid temperatures for prediction (%v), using default %.1f°C", cause, DefaultTemperature)
		pred.Temperature = DefaultTemperature
		pred.Source = SourceDefault
		return pred
	}

	sum := 0.0
	for _, v := range values {
		sum += v
	}
	pred.Temperature = sum / float64(len(values))
	pred.Source = SourceMean
	log.Printf("Warning: model prediction unavailable (%v), using mean temperature %.2f°C", cause, pred.Temperature)
	return pred
}

func cleanTemperatures(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) || v == missingValue {
			continue
		}
		out = append(out, v)
	}
	return out
}
