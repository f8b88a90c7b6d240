package model

import (
	mat "github.com/nlpodyssey/spago/pkg/mat32"
	"github.com/nlpodyssey/spago/pkg/ml/ag"
)

// RandomSource yields uniform values in [0, 1).
type RandomSource interface {
	Float() mat.Float
}

// EmbeddingDropout zeroes each embedding component with probability Probability and
// scales the survivors by 1/(1-Probability).
type EmbeddingDropout struct {
	Probability mat.Float
	Rand        RandomSource

	// CurrentMasks holds the masks applied by the last call to process.
	CurrentMasks []mat.Matrix
}

func NewEmbeddingDropout(probability float64, rnd RandomSource) *EmbeddingDropout {
	if probability < 0 || probability >= 1 {
		panic("model: dropout probability must be in [0, 1)")
	}
	return &EmbeddingDropout{Probability: mat.Float(probability), Rand: rnd}
}

func (d *EmbeddingDropout) process(g *ag.Graph, xs []ag.Node) []ag.Node {
	d.CurrentMasks = make([]mat.Matrix, len(xs))
	if d.Probability == 0 {
		return xs
	}
	scale := 1.0 / (1.0 - d.Probability)
	out := make([]ag.Node, len(xs))
	for i, x := range xs {
		size := x.Value().Size()
		mask := make([]mat.Float, size)
		for j := range mask {
			if d.Rand.Float() >= d.Probability {
				mask[j] = scale
			}
		}
		d.CurrentMasks[i] = mat.NewVecDense(mask)
		out[i] = g.Prod(x, g.NewVariable(d.CurrentMasks[i], false))
	}
	return out
}
