// Package adadelta implements the AdaDelta gradient descent method:
// "ADADELTA: An Adaptive Learning Rate Method" - https://arxiv.org/abs/1212.5701
package adadelta

import (
	mat "github.com/nlpodyssey/spago/pkg/mat32"
	"github.com/nlpodyssey/spago/pkg/ml/nn"
	"github.com/nlpodyssey/spago/pkg/ml/optimizers/gd"
)

var _ gd.Method = &AdaDelta{}

// Label identifies AdaDelta payloads. It follows the labels of the methods built into gd.
const Label = gd.RMSProp + 1

type Config struct {
	Rho     mat.Float
	Epsilon mat.Float
}

func NewConfig(rho, epsilon mat.Float) Config {
	return Config{
		Rho:     rho,
		Epsilon: epsilon,
	}
}

func NewDefaultConfig() Config {
	return Config{
		Rho:     0.95,
		Epsilon: 1.0e-6,
	}
}

type AdaDelta struct {
	Config
}

func New(c Config) *AdaDelta {
	return &AdaDelta{Config: c}
}

func (o *AdaDelta) Label() int {
	return Label
}

const (
	g2 int = 0 // running average of the squared gradients
	d2 int = 1 // running average of the squared updates
)

func (o *AdaDelta) NewSupport(r, c int) *nn.Payload {
	supp := make([]mat.Matrix, 2)
	supp[g2] = mat.NewEmptyDense(r, c)
	supp[d2] = mat.NewEmptyDense(r, c)
	return &nn.Payload{
		Label: o.Label(),
		Data:  supp,
	}
}

// Delta returns the update to subtract from the param.
func (o *AdaDelta) Delta(param nn.Param) mat.Matrix {
	return o.calcDelta(param.Grad(), gd.GetOrSetPayload(param, o).Data)
}

func (o *AdaDelta) calcDelta(grads mat.Matrix, supp []mat.Matrix) mat.Matrix {
	buf := grads.Prod(grads)
	buf.ProdScalarInPlace(1.0 - o.Rho)
	supp[g2].ProdScalarInPlace(o.Rho)
	supp[g2].AddInPlace(buf)

	rmsDelta := supp[d2].Clone()
	rmsDelta.AddScalarInPlace(o.Epsilon)
	rmsGrad := supp[g2].Clone()
	rmsGrad.AddScalarInPlace(o.Epsilon)
	delta := grads.Prod(rmsDelta.Sqrt()).Div(rmsGrad.Sqrt())

	buf2 := delta.Prod(delta)
	buf2.ProdScalarInPlace(1.0 - o.Rho)
	supp[d2].ProdScalarInPlace(o.Rho)
	supp[d2].AddInPlace(buf2)
	return delta
}
