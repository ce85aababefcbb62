package predictor

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"greenhouse/internal/fileutil"
)

const (
	ModelFile  = "model.json"
	ScalerFile = "scaler.json"

	artifactVersion = 1
)

type modelArtifact struct {
	Version   int       `json:"version"`
	TrainedAt time.Time `json:"trained_at"`
	Config    Config    `json:"config"`
	Network   *network  `json:"network"`
}

// scalerArtifact carries the model's TrainedAt so a mismatched pair is rejected
type scalerArtifact struct {
	TrainedAt time.Time `json:"trained_at"`
	MinMaxScaler
}

// Save writes model.json and scaler.json into dir
func (p *Predictor) Save(dir string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.state.Trained() {
		return ErrModelNotTrained
	}
	return p.saveLocked(dir)
}

func (p *Predictor) saveLocked(dir string) error {
	trainedAt := time.Now().UTC()

	scalerData, err := json.MarshalIndent(scalerArtifact{TrainedAt: trainedAt, MinMaxScaler: *p.scaler}, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode scaler: %v", ErrPersistence, err)
	}
	modelData, err := json.Marshal(modelArtifact{
		Version:   artifactVersion,
		TrainedAt: trainedAt,
		Config:    p.cfg,
		Network:   p.net,
	})
	if err != nil {
		return fmt.Errorf("%w: encode model: %v", ErrPersistence, err)
	}

	if err := fileutil.WriteAtomic(filepath.Join(dir, ScalerFile), scalerData, 0o644); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if err := fileutil.WriteAtomic(filepath.Join(dir, ModelFile), modelData, 0o644); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}

// Load restores both artifacts from dir. If either is missing, unreadable or
// they do not belong together, the predictor is left as it was.
func (p *Predictor) Load(dir string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var model modelArtifact
	if err := readJSON(filepath.Join(dir, ModelFile), &model); err != nil {
		return err
	}
	var scaler scalerArtifact
	if err := readJSON(filepath.Join(dir, ScalerFile), &scaler); err != nil {
		return err
	}

	if model.Version != artifactVersion {
		return fmt.Errorf("%w: unsupported model version %d", ErrPersistence, model.Version)
	}
	if !model.TrainedAt.Equal(scaler.TrainedAt) {
		return fmt.Errorf("%w: model (%s) and scaler (%s) come from different training runs",
			ErrPersistence, model.TrainedAt, scaler.TrainedAt)
	}
	if model.Config.SequenceLength != p.cfg.SequenceLength {
		return fmt.Errorf("%w: model was trained with sequence length %d, configured %d",
			ErrPersistence, model.Config.SequenceLength, p.cfg.SequenceLength)
	}
	if model.Network == nil {
		return fmt.Errorf("%w: model artifact has no network", ErrPersistence)
	}
	if err := model.Network.validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if err := scaler.validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	s := scaler.MinMaxScaler
	p.net = model.Network
	p.scaler = &s
	p.state = StateTrainedFromDisk
	return nil
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrPersistence, path, err)
	}
	return nil
}

func removeArtifacts(dir string) error {
	for _, name := range []string{ModelFile, ScalerFile} {
		if err := os.Remove(filepath.Join(dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %v", ErrPersistence, err)
		}
	}
	return nil
}

// HasArtifacts reports whether dir holds both model artifacts
func HasArtifacts(dir string) bool {
	for _, name := range []string{ModelFile, ScalerFile} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			return false
		}
	}
	return true
}
