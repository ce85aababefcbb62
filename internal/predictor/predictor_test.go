package predictor

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
)

func smallConfig() Config {
	cfg := DefaultConfig()
	cfg.Units = 8
	cfg.Epochs = 5
	return cfg
}

func TestFitMinMax(t *testing.T) {
	s, err := FitMinMax([]float64{20, 25, 22})
	if err != nil {
		t.Fatalf("FitMinMax() error = %v", err)
	}

	tests := []struct {
		in   float64
		want float64
	}{
		{20, 0},
		{25, 1},
		{22.5, 0.5},
		{30, 2},
	}
	for _, tt := range tests {
		if got := s.Transform(tt.in); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("Transform(%v) = %v, want %v", tt.in, got, tt.want)
		}
		if got := s.InverseTransform(tt.want); math.Abs(got-tt.in) > 1e-12 {
			t.Errorf("InverseTransform(%v) = %v, want %v", tt.want, got, tt.in)
		}
	}
}

func TestFitMinMax_Constant(t *testing.T) {
	s, err := FitMinMax([]float64{21, 21, 21})
	if err != nil {
		t.Fatalf("FitMinMax() error = %v", err)
	}
	if s.Scale[0] != 1 {
		t.Errorf("FitMinMax() scale = %v, want 1 for a constant series", s.Scale[0])
	}
	if got := s.InverseTransform(s.Transform(21)); got != 21 {
		t.Errorf("round trip = %v, want 21", got)
	}
}

func TestFitMinMax_Empty(t *testing.T) {
	if _, err := FitMinMax(nil); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("FitMinMax(nil) error = %v, want ErrInsufficientData", err)
	}
}

func TestWindows(t *testing.T) {
	inputs, labels := Windows([]float64{1, 2, 3, 4, 5, 6, 7}, 5)
	if len(inputs) != 2 || len(labels) != 2 {
		t.Fatalf("Windows() = %d windows, want 2", len(inputs))
	}
	if inputs[1][0] != 2 || inputs[1][4] != 6 || labels[1] != 7 {
		t.Errorf("Windows()[1] = %v -> %v, want [2..6] -> 7", inputs[1], labels[1])
	}

	if inputs, _ := Windows([]float64{1, 2, 3, 4, 5}, 5); inputs != nil {
		t.Errorf("Windows() with n == seqLen = %v, want nil", inputs)
	}
}

func TestNetworkGradients(t *testing.T) {
	cfg := smallConfig()
	cfg.Units = 4
	rng := rand.New(rand.NewSource(7))
	net := newNetwork(cfg, rng)
	window := []float64{0.1, 0.4, 0.3, 0.8, 0.6}
	label := 0.7

	loss := func() float64 {
		d := net.predict(window) - label
		return d * d
	}

	y, cache := net.forward(window, masks{})
	net.backward(cache, 2*(y-label))

	const eps = 1e-6
	for pi, p := range net.params() {
		for _, i := range []int{0, len(p.Data) / 2, len(p.Data) - 1} {
			orig := p.Data[i]
			p.Data[i] = orig + eps
			plus := loss()
			p.Data[i] = orig - eps
			minus := loss()
			p.Data[i] = orig

			numeric := (plus - minus) / (2 * eps)
			analytic := p.grad[i]
			if math.Abs(numeric-analytic) > 1e-6+1e-4*math.Abs(numeric) {
				t.Errorf("param %d[%d]: analytic gradient %v, numeric %v", pi, i, analytic, numeric)
			}
		}
	}
}

func TestTrainAndPredict_EndToEnd(t *testing.T) {
	p := New(DefaultConfig(), "")
	temps := []float64{20, 21, 22, 23, 24, 25}

	summary, err := p.Train(context.Background(), temps)
	if err != nil {
		t.Fatalf("Train() error = %v", err)
	}
	if summary.Windows != 1 {
		t.Errorf("Train() windows = %d, want 1", summary.Windows)
	}
	if summary.Epochs != 50 {
		t.Errorf("Train() epochs = %d, want 50", summary.Epochs)
	}
	if summary.Skipped || summary.State != StateTrainedFresh {
		t.Errorf("Train() = %+v, want a fresh training run", summary)
	}

	got, err := p.Forecast(temps[1:])
	if err != nil {
		t.Fatalf("Forecast() error = %v", err)
	}
	if math.IsNaN(got) || math.IsInf(got, 0) || got < 10 || got > 35 {
		t.Errorf("Forecast() = %v, want a finite value near the input range", got)
	}

	pred := p.PredictNextDay(temps[1:])
	if pred.Source != SourceModel || pred.Temperature != got {
		t.Errorf("PredictNextDay() = %+v, want model prediction %v", pred, got)
	}
}

func TestTrain_Deterministic(t *testing.T) {
	temps := []float64{18, 19.5, 21, 20, 22, 23.5, 22, 24}
	a := New(smallConfig(), "")
	b := New(smallConfig(), "")

	if _, err := a.Train(context.Background(), temps); err != nil {
		t.Fatalf("Train() error = %v", err)
	}
	if _, err := b.Train(context.Background(), temps); err != nil {
		t.Fatalf("Train() error = %v", err)
	}

	fa, _ := a.Forecast(temps)
	fb, _ := b.Forecast(temps)
	if fa != fb {
		t.Errorf("same seed gave different forecasts: %v vs %v", fa, fb)
	}
}

func TestTrain_InsufficientData(t *testing.T) {
	p := New(smallConfig(), "")

	_, err := p.Train(context.Background(), []float64{20, 21, math.NaN(), 22, -999, 23, 24})
	if !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("Train() error = %v, want ErrInsufficientData", err)
	}
	if p.State() != StateUntrained {
		t.Errorf("State() = %v, want untrained after failed training", p.State())
	}
}

func TestTrain_SkipsWhenTrained(t *testing.T) {
	p := New(smallConfig(), "")
	temps := []float64{20, 21, 22, 23, 24, 25, 26}

	if _, err := p.Train(context.Background(), temps); err != nil {
		t.Fatalf("Train() error = %v", err)
	}

	summary, err := p.Train(context.Background(), temps)
	if err != nil {
		t.Fatalf("second Train() error = %v", err)
	}
	if !summary.Skipped || summary.FinalLoss != 0 || summary.Epochs != 0 {
		t.Errorf("second Train() = %+v, want zero-loss skipped summary", summary)
	}
	if summary.State != StateTrainedFresh {
		t.Errorf("second Train() state = %v, want trained_fresh", summary.State)
	}
}

func TestTrain_Cancelled(t *testing.T) {
	p := New(smallConfig(), "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := p.Train(ctx, []float64{20, 21, 22, 23, 24, 25}); !errors.Is(err, context.Canceled) {
		t.Errorf("Train() error = %v, want context.Canceled", err)
	}
	if p.State() != StateUntrained {
		t.Errorf("State() = %v, want untrained", p.State())
	}
}

func TestTrain_Progress(t *testing.T) {
	p := New(smallConfig(), "")
	var epochs []int
	p.OnProgress(func(s EpochStats) { epochs = append(epochs, s.Epoch) })

	if _, err := p.Train(context.Background(), []float64{20, 21, 22, 23, 24, 25, 26, 27, 28, 29}); err != nil {
		t.Fatalf("Train() error = %v", err)
	}
	if len(epochs) != 5 || epochs[4] != 5 {
		t.Errorf("progress epochs = %v, want [1 2 3 4 5]", epochs)
	}
}

func TestRetrain_ScalerHandling(t *testing.T) {
	p := New(smallConfig(), "")
	if _, err := p.Train(context.Background(), []float64{20, 21, 22, 23, 24, 25}); err != nil {
		t.Fatalf("Train() error = %v", err)
	}

	if _, err := p.Retrain(context.Background(), []float64{30, 31, 32, 33, 34, 35}, RetrainOptions{}); err != nil {
		t.Fatalf("Retrain() error = %v", err)
	}
	if p.scaler.DataMin[0] != 20 {
		t.Errorf("Retrain() without refit changed scaler data_min to %v, want 20", p.scaler.DataMin[0])
	}

	if _, err := p.Retrain(context.Background(), []float64{30, 31, 32, 33, 34, 35}, RetrainOptions{RefitScaler: true}); err != nil {
		t.Fatalf("Retrain() error = %v", err)
	}
	if p.scaler.DataMin[0] != 30 {
		t.Errorf("Retrain() with refit data_min = %v, want 30", p.scaler.DataMin[0])
	}
}

func TestPredictNextDay_Fallback(t *testing.T) {
	tests := []struct {
		name       string
		trained    bool
		input      []float64
		want       float64
		wantSource Source
		wantErr    error
	}{
		{"untrained uses mean", false, []float64{20, 22, 24}, 22, SourceMean, ErrModelNotTrained},
		{"untrained ignores invalid values", false, []float64{20, math.NaN(), -999, 24}, 22, SourceMean, ErrModelNotTrained},
		{"untrained and empty uses default", false, nil, 25, SourceDefault, ErrModelNotTrained},
		{"trained but too short uses mean", true, []float64{18, 20}, 19, SourceMean, ErrInsufficientData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(smallConfig(), "")
			if tt.trained {
				if _, err := p.Train(context.Background(), []float64{20, 21, 22, 23, 24, 25}); err != nil {
					t.Fatalf("Train() error = %v", err)
				}
			}

			got := p.PredictNextDay(tt.input)
			if got.Temperature != tt.want {
				t.Errorf("PredictNextDay() = %v, want %v", got.Temperature, tt.want)
			}
			if got.Source != tt.wantSource {
				t.Errorf("PredictNextDay().Source = %v, want %v", got.Source, tt.wantSource)
			}
			if !errors.Is(got.Err, tt.wantErr) {
				t.Errorf("PredictNextDay().Err = %v, want %v", got.Err, tt.wantErr)
			}
		})
	}
}

func TestForecast_Untrained(t *testing.T) {
	p := New(smallConfig(), "")
	if _, err := p.Forecast([]float64{20, 21, 22, 23, 24}); !errors.Is(err, ErrModelNotTrained) {
		t.Errorf("Forecast() error = %v, want ErrModelNotTrained", err)
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	temps := []float64{19, 20, 22, 21, 23, 24, 23, 25}

	trained := New(smallConfig(), dir)
	summary, err := trained.Train(context.Background(), temps)
	if err != nil {
		t.Fatalf("Train() error = %v", err)
	}
	if !summary.Persisted {
		t.Fatal("Train() did not persist the model")
	}
	if !HasArtifacts(dir) {
		t.Fatal("HasArtifacts() = false after training")
	}

	loaded := New(smallConfig(), dir)
	if err := loaded.Load(dir); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.State() != StateTrainedFromDisk {
		t.Errorf("State() = %v, want trained_from_disk", loaded.State())
	}

	want, _ := trained.Forecast(temps)
	got, err := loaded.Forecast(temps)
	if err != nil {
		t.Fatalf("Forecast() error = %v", err)
	}
	if got != want {
		t.Errorf("Forecast() after load = %v, want %v", got, want)
	}

	summary, err = loaded.Train(context.Background(), temps)
	if err != nil || !summary.Skipped {
		t.Errorf("Train() on loaded model = %+v, %v, want skipped", summary, err)
	}
}

func TestLoad_RequiresBothArtifacts(t *testing.T) {
	dir := t.TempDir()
	p := New(smallConfig(), dir)
	if _, err := p.Train(context.Background(), []float64{20, 21, 22, 23, 24, 25}); err != nil {
		t.Fatalf("Train() error = %v", err)
	}
	if err := os.Remove(filepath.Join(dir, ScalerFile)); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}

	fresh := New(smallConfig(), dir)
	if err := fresh.Load(dir); !errors.Is(err, ErrPersistence) {
		t.Errorf("Load() error = %v, want ErrPersistence", err)
	}
	if fresh.State() != StateUntrained {
		t.Errorf("State() = %v, want untrained", fresh.State())
	}
}

func TestLoad_RejectsMismatchedPair(t *testing.T) {
	dirA, dirB := t.TempDir(), t.TempDir()
	a := New(smallConfig(), dirA)
	if _, err := a.Train(context.Background(), []float64{20, 21, 22, 23, 24, 25}); err != nil {
		t.Fatalf("Train() error = %v", err)
	}
	b := New(smallConfig(), dirB)
	if _, err := b.Train(context.Background(), []float64{10, 11, 12, 13, 14, 15}); err != nil {
		t.Fatalf("Train() error = %v", err)
	}

	scaler, err := os.ReadFile(filepath.Join(dirB, ScalerFile))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if err := os.WriteFile(filepath.Join(dirA, ScalerFile), scaler, 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	fresh := New(smallConfig(), "")
	if err := fresh.Load(dirA); !errors.Is(err, ErrPersistence) {
		t.Errorf("Load() error = %v, want ErrPersistence for mismatched artifacts", err)
	}
}

func TestLoad_Corrupt(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, ModelFile), []byte("{not json"), 0o644)
	os.WriteFile(filepath.Join(dir, ScalerFile), []byte("{}"), 0o644)

	p := New(smallConfig(), "")
	if err := p.Load(dir); !errors.Is(err, ErrPersistence) {
		t.Errorf("Load() error = %v, want ErrPersistence", err)
	}
}

func TestReset(t *testing.T) {
	dir := t.TempDir()
	p := New(smallConfig(), dir)
	if _, err := p.Train(context.Background(), []float64{20, 21, 22, 23, 24, 25}); err != nil {
		t.Fatalf("Train() error = %v", err)
	}

	if err := p.Reset(); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if p.State() != StateUntrained {
		t.Errorf("State() = %v, want untrained", p.State())
	}
	if HasArtifacts(dir) {
		t.Error("Reset() left artifacts on disk")
	}
	if err := p.Save(dir); !errors.Is(err, ErrModelNotTrained) {
		t.Errorf("Save() after reset error = %v, want ErrModelNotTrained", err)
	}
}

func TestValidationCount(t *testing.T) {
	tests := []struct {
		n     int
		split float64
		want  int
	}{
		{1, 0.2, 0},
		{2, 0.2, 1},
		{4, 0.2, 1},
		{5, 0.2, 1},
		{6, 0.2, 2},
		{10, 0.2, 2},
		{11, 0.2, 3},
		{10, 0, 0},
	}

	for _, tt := range tests {
		if got := validationCount(tt.n, tt.split); got != tt.want {
			t.Errorf("validationCount(%d, %v) = %v, want %v", tt.n, tt.split, got, tt.want)
		}
	}
}
