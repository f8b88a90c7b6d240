package model

import (
	mat "github.com/nlpodyssey/spago/pkg/mat32"
	"github.com/nlpodyssey/spago/pkg/ml/ag"
)

// Epsilon keeps the logarithms finite when a probability saturates.
const Epsilon mat.Float = 1e-7

// BinaryLogLoss returns -sum(y*log(p) + (1-y)*log(1-p)) over the entries of p and y.
func BinaryLogLoss(g *ag.Graph, p, y ag.Node) ag.Node {
	one := g.Constant(1.0)
	eps := g.Constant(Epsilon)
	logP := g.Log(g.AddScalar(p, eps))
	logNotP := g.Log(g.AddScalar(g.Neg(g.SubScalar(p, one)), eps))
	notY := g.Neg(g.SubScalar(y, one))
	return g.Neg(g.ReduceSum(g.Add(g.Prod(y, logP), g.Prod(notY, logNotP))))
}
