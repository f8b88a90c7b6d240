package pkg

import (
	"errors"
	"fmt"

	"sentidan/pkg/io"
	"sentidan/pkg/model"
)

const (
	AdaDelta = "adadelta"
	Adam     = "adam"
)

const (
	StoreFormat = "store"
	GobFormat   = "gob"
)

// Config captures every knob of a training run. It is passed by value and never mutated
// by the trainer.
type Config struct {
	MaxEpochs          int
	BatchSize          int
	HiddenDim          int
	VocabSize          int
	PretrainedModel    model.PretrainedModel
	RndSeed            uint64
	DropoutProbability float64
	Optimizer          string
	LearningRate       float64
	GradientClip       float64
	ReportInterval     int

	DataDir            string
	EmbeddingsDir      string
	EmbeddingFormat    string
	SaveEmbeddingsPath string

	EvaluateValidation bool
	Shuffle            bool
}

func DefaultConfig() Config {
	return Config{
		MaxEpochs:          20,
		BatchSize:          32,
		HiddenDim:          32,
		VocabSize:          4748,
		PretrainedModel:    model.NoPretrainedModel,
		RndSeed:            42,
		DropoutProbability: 0.5,
		Optimizer:          AdaDelta,
		LearningRate:       0.001,
		ReportInterval:     100,
		DataDir:            "processed",
		EmbeddingsDir:      ".",
		EmbeddingFormat:    StoreFormat,
	}
}

// Validate verifies the config is runnable.
func (c Config) Validate() error {
	if c.MaxEpochs <= 0 {
		return fmt.Errorf("max epochs must be > 0 (got %d)", c.MaxEpochs)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be > 0 (got %d)", c.BatchSize)
	}
	if c.HiddenDim <= 0 {
		return fmt.Errorf("hidden dimension must be > 0 (got %d)", c.HiddenDim)
	}
	if c.VocabSize <= 0 {
		return fmt.Errorf("vocabulary size must be > 0 (got %d)", c.VocabSize)
	}
	if err := c.PretrainedModel.Validate(); err != nil {
		return err
	}
	if c.DropoutProbability < 0 || c.DropoutProbability >= 1 {
		return fmt.Errorf("dropout probability must be in [0, 1) (got %g)", c.DropoutProbability)
	}
	switch c.Optimizer {
	case AdaDelta:
	case Adam:
		if c.LearningRate <= 0 {
			return fmt.Errorf("learning rate must be > 0 (got %g)", c.LearningRate)
		}
	default:
		return fmt.Errorf("unknown optimizer %q", c.Optimizer)
	}
	if c.GradientClip < 0 {
		return fmt.Errorf("gradient clip must be >= 0 (got %g)", c.GradientClip)
	}
	if c.ReportInterval <= 0 {
		return fmt.Errorf("report interval must be > 0 (got %d)", c.ReportInterval)
	}
	if c.DataDir == "" {
		return errors.New("data directory must be set")
	}
	switch c.EmbeddingFormat {
	case StoreFormat, GobFormat:
	default:
		return fmt.Errorf("unknown embedding format %q", c.EmbeddingFormat)
	}
	return nil
}

// EmbeddingSource returns the source of pretrained embeddings described by the config.
func (c Config) EmbeddingSource() io.EmbeddingSource {
	if c.EmbeddingFormat == GobFormat {
		return io.FileSource{Dir: c.EmbeddingsDir}
	}
	return io.StoreSource{Dir: c.EmbeddingsDir}
}
