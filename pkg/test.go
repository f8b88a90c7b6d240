package pkg

import (
	"sort"

	"github.com/nlpodyssey/spago/pkg/ml/ag"
	"github.com/nlpodyssey/spago/pkg/ml/nn"
	"github.com/nlpodyssey/spago/pkg/ml/stats"
	"github.com/rs/zerolog/log"

	"sentidan/pkg/io"
	"sentidan/pkg/model"
)

// numCorrect counts the correct predictions over batches, one graph per batch.
func numCorrect(m *model.DAN, batches []io.Batch) int {
	correct := 0
	for _, batch := range batches {
		g := ag.NewGraph()
		proc := m.NewProc(nn.Context{Graph: g, Mode: nn.Inference}, nil)
		correct += proc.NumCorrect(batch)
		g.Clear()
	}
	return correct
}

func accuracy(correct, size int) float64 {
	if size == 0 {
		return 0
	}
	return float64(correct) / float64(size)
}

// ClassificationMetrics holds per class counts of a sentiment evaluation.
type ClassificationMetrics struct {
	Classes map[string]*stats.ClassMetrics
}

func evaluate(m *model.DAN, batches []io.Batch) *ClassificationMetrics {
	result := &ClassificationMetrics{Classes: map[string]*stats.ClassMetrics{}}
	for _, batch := range batches {
		g := ag.NewGraph()
		proc := m.NewProc(nn.Context{Graph: g, Mode: nn.Inference}, nil)
		probas := proc.Predict(batch)
		for i, example := range batch {
			result.add(model.ClassOf(example.Label), model.ClassOf(model.Positive(probas[i].ScalarValue())))
		}
		g.Clear()
	}
	return result
}

func (c *ClassificationMetrics) metricsFor(class string) *stats.ClassMetrics {
	metrics, ok := c.Classes[class]
	if !ok {
		metrics = stats.NewMetricCounter()
		c.Classes[class] = metrics
	}
	return metrics
}

func (c *ClassificationMetrics) add(label, predictedClass string) {
	labelClassMetrics := c.metricsFor(label)
	predictedClassMetrics := c.metricsFor(predictedClass)
	if label == predictedClass {
		labelClassMetrics.IncTruePos()
	} else {
		labelClassMetrics.IncFalseNeg()
		predictedClassMetrics.IncFalsePos()
	}
}

func (c *ClassificationMetrics) Log() {
	// Sort class names for deterministic output
	for _, class := range c.sortedClasses() {
		result := c.Classes[class]
		log.Info().Str("Class", class).
			Int("TP", result.TruePos).
			Int("FP", result.FalsePos).
			Int("FN", result.FalseNeg).
			Float64("Precision", float64(result.Precision())).
			Float64("Recall", float64(result.Recall())).
			Float64("F1", float64(result.F1Score())).
			Msg("")
	}
	macroF1, microF1 := c.OverallF1()
	log.Info().Float64("MacroF1", macroF1).Float64("MicroF1", microF1).Msg("")
}

// OverallF1 returns the macro and micro averaged F1 scores.
func (c *ClassificationMetrics) OverallF1() (float64, float64) {
	if len(c.Classes) == 0 {
		return 0, 0
	}
	macroF1 := 0.0
	for _, metric := range c.Classes {
		macroF1 += float64(metric.F1Score())
	}
	macroF1 /= float64(len(c.Classes))

	micro := stats.NewMetricCounter()
	for _, result := range c.Classes {
		micro.TruePos += result.TruePos
		micro.FalsePos += result.FalsePos
		micro.FalseNeg += result.FalseNeg
		micro.TrueNeg += result.TrueNeg
	}
	return macroF1, float64(micro.F1Score())
}

func (c *ClassificationMetrics) sortedClasses() []string {
	result := make([]string, 0, len(c.Classes))
	for class := range c.Classes {
		result = append(result, class)
	}
	sort.Strings(result)
	return result
}
