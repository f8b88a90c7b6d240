package pkg

import (
	"fmt"
	gio "io"
	"time"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/stat"
)

// EpochStats summarizes one training epoch.
type EpochStats struct {
	Epoch            int
	Elapsed          time.Duration
	TrainLoss        float64 // per example
	TestAccuracy     float64
	ValidAccuracy    float64
	HasValidAccuracy bool
}

type Report struct {
	Epochs      []EpochStats
	TestMetrics *ClassificationMetrics
}

// Print writes the console line of the epoch.
func (s EpochStats) Print(out gio.Writer) {
	fmt.Fprintf(out, "Epoch %3d took %3.1fs. Train loss: %8.5f ", s.Epoch, s.Elapsed.Seconds(), s.TrainLoss)
	if s.HasValidAccuracy {
		fmt.Fprintf(out, "Valid accuracy: %8.2f ", s.ValidAccuracy*100)
	}
	fmt.Fprintf(out, "Test accuracy: %8.2f\n", s.TestAccuracy*100)
}

func (s EpochStats) Log() {
	event := log.Info().Int("epoch", s.Epoch).
		Float64("elapsed", s.Elapsed.Seconds()).
		Float64("loss", s.TrainLoss).
		Float64("testAccuracy", s.TestAccuracy*100)
	if s.HasValidAccuracy {
		event = event.Float64("validAccuracy", s.ValidAccuracy*100)
	}
	event.Msg("Epoch complete")
}

func logBatchLosses(epoch int, losses []float64) {
	if len(losses) == 0 {
		return
	}
	mean, std := stat.Mean(losses, nil), 0.0
	if len(losses) > 1 {
		std = stat.StdDev(losses, nil)
	}
	log.Debug().Int("epoch", epoch).Int("batches", len(losses)).
		Float64("mean", mean).Float64("std", std).Msg("Batch losses")
}
