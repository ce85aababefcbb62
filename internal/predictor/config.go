package predictor

import "fmt"

// Config holds the recurrent model hyperparameters
type Config struct {
	SequenceLength   int     `yaml:"sequence_length" json:"sequence_length"`
	Units            int     `yaml:"units" json:"units"`
	Dropout          float64 `yaml:"dropout" json:"dropout"`
	RecurrentDropout float64 `yaml:"recurrent_dropout" json:"recurrent_dropout"`
	Epochs           int     `yaml:"epochs" json:"epochs"`
	BatchSize        int     `yaml:"batch_size" json:"batch_size"`
	ValidationSplit  float64 `yaml:"validation_split" json:"validation_split"`
	LearningRate     float64 `yaml:"learning_rate" json:"learning_rate"`
	Seed             int64   `yaml:"seed" json:"seed"`
}

// DefaultConfig returns the stock two-layer GRU settings
func DefaultConfig() Config {
	return Config{
		SequenceLength:   5,
		Units:            64,
		Dropout:          0.2,
		RecurrentDropout: 0.2,
		Epochs:           50,
		BatchSize:        32,
		ValidationSplit:  0.2,
		LearningRate:     0.001,
		Seed:             42,
	}
}

// WithDefaults fills zero-valued fields from DefaultConfig
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.SequenceLength == 0 {
		c.SequenceLength = d.SequenceLength
	}
	if c.Units == 0 {
		c.Units = d.Units
	}
	if c.Epochs == 0 {
		c.Epochs = d.Epochs
	}
	if c.BatchSize == 0 {
		c.BatchSize = d.BatchSize
	}
	if c.LearningRate == 0 {
		c.LearningRate = d.LearningRate
	}
	if c.Seed == 0 {
		c.Seed = d.Seed
	}
	return c
}

func (c Config) Validate() error {
	if c.SequenceLength < 1 {
		return fmt.Errorf("model.sequence_length must be positive, got %d", c.SequenceLength)
	}
	if c.Units < 2 {
		return fmt.Errorf("model.units must be at least 2, got %d", c.Units)
	}
	if c.Dropout < 0 || c.Dropout >= 1 {
		return fmt.Errorf("model.dropout must be in [0, 1), got %v", c.Dropout)
	}
	if c.RecurrentDropout < 0 || c.RecurrentDropout >= 1 {
		return fmt.Errorf("model.recurrent_dropout must be in [0, 1), got %v", c.RecurrentDropout)
	}
	if c.Epochs < 1 {
		return fmt.Errorf("model.epochs must be positive, got %d", c.Epochs)
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("model.batch_size must be positive, got %d", c.BatchSize)
	}
	if c.ValidationSplit < 0 || c.ValidationSplit >= 1 {
		return fmt.Errorf("model.validation_split must be in [0, 1), got %v", c.ValidationSplit)
	}
	return nil
}
