package model

import (
	"fmt"

	mat "github.com/nlpodyssey/spago/pkg/mat32"
	"github.com/nlpodyssey/spago/pkg/mat32/rand"
	"github.com/nlpodyssey/spago/pkg/ml/ag"
	"github.com/nlpodyssey/spago/pkg/ml/initializers"
	"github.com/nlpodyssey/spago/pkg/ml/nn"

	"sentidan/pkg/io"
)

var (
	_ nn.Model = &DAN{}
)

// DAN is a deep averaging network: the average of the token embeddings of a sentence
// goes through a tanh hidden layer and a single logistic output unit.
type DAN struct {
	nn.BaseModel
	DANConfig
	Embeddings nn.Param `spago:"type:weights"`
	HiddenW    nn.Param `spago:"type:weights"`
	HiddenB    nn.Param `spago:"type:biases"`
	OutputW    nn.Param `spago:"type:weights"`
	OutputB    nn.Param `spago:"type:biases"`
}

type DANConfig struct {
	VocabSize int
	HiddenDim int
}

func NewDAN(config DANConfig) *DAN {
	if config.VocabSize <= 0 || config.HiddenDim <= 0 {
		panic("model: vocabulary size and hidden dimension must be positive")
	}
	return &DAN{
		DANConfig:  config,
		Embeddings: nn.NewParam(mat.NewEmptyDense(config.VocabSize, config.HiddenDim)),
		HiddenW:    nn.NewParam(mat.NewEmptyDense(config.HiddenDim, config.HiddenDim)),
		HiddenB:    nn.NewParam(mat.NewEmptyVecDense(config.HiddenDim)),
		OutputW:    nn.NewParam(mat.NewEmptyDense(1, config.HiddenDim)),
		OutputB:    nn.NewParam(mat.NewEmptyVecDense(1)),
	}
}

// Init draws the weights from a Xavier uniform distribution. Biases start at zero.
func (m *DAN) Init(generator *rand.LockedRand) {
	initializers.XavierUniform(m.Embeddings.Value(), initializers.Gain(ag.OpIdentity), generator)
	initializers.XavierUniform(m.HiddenW.Value(), initializers.Gain(ag.OpTanh), generator)
	initializers.XavierUniform(m.OutputW.Value(), initializers.Gain(ag.OpSigmoid), generator)
	m.HiddenB.Value().Zeros()
	m.OutputB.Value().Zeros()
}

// LoadEmbeddings overwrites the embedding table in place.
func (m *DAN) LoadEmbeddings(table *io.EmbeddingTable) error {
	if err := table.CheckShape(m.VocabSize, m.HiddenDim); err != nil {
		return fmt.Errorf("error loading pretrained embeddings: %w", err)
	}
	embeddings := m.Embeddings.Value()
	for i := 0; i < table.Rows; i++ {
		for j, v := range table.Row(i) {
			embeddings.Set(i, j, v)
		}
	}
	return nil
}

// EmbeddingTable returns a copy of the current embedding table.
func (m *DAN) EmbeddingTable() *io.EmbeddingTable {
	table := io.NewEmbeddingTable(m.VocabSize, m.HiddenDim)
	embeddings := m.Embeddings.Value()
	for i := 0; i < table.Rows; i++ {
		row := table.Row(i)
		for j := range row {
			row[j] = embeddings.At(i, j)
		}
	}
	return table
}

// Processor runs the network on a single graph. A new processor is created for every batch
// so that no intermediate node outlives its batch.
type Processor struct {
	Graph   *ag.Graph
	Mode    nn.ProcessingMode
	Dropout *EmbeddingDropout // applied in training mode only; nil disables it

	model      *DAN
	embeddings ag.Node
	hiddenW    ag.Node
	hiddenB    ag.Node
	outputW    ag.Node
	outputB    ag.Node
}

func (m *DAN) NewProc(ctx nn.Context, dropout *EmbeddingDropout) *Processor {
	g := ctx.Graph
	return &Processor{
		Graph:      g,
		Mode:       ctx.Mode,
		Dropout:    dropout,
		model:      m,
		embeddings: g.NewWrap(m.Embeddings),
		hiddenW:    g.NewWrap(m.HiddenW),
		hiddenB:    g.NewWrap(m.HiddenB),
		outputW:    g.NewWrap(m.OutputW),
		outputB:    g.NewWrap(m.OutputB),
	}
}

// Predict returns the probability of positive sentiment of every example, in batch order.
func (p *Processor) Predict(batch io.Batch) []ag.Node {
	return p.predict(batch, p.Mode == nn.Training)
}

func (p *Processor) predict(batch io.Batch, train bool) []ag.Node {
	g := p.Graph
	probas := make([]ag.Node, len(batch))
	for i, example := range batch {
		embeds := p.lookup(example.Tokens)
		if train && p.Dropout != nil {
			embeds = p.Dropout.process(g, embeds)
		}
		sentEmbed := average(g, embeds)
		hid := g.Tanh(g.Add(p.hiddenB, g.Mul(p.hiddenW, sentEmbed)))
		score := g.Add(p.outputB, g.Mul(p.outputW, hid))
		probas[i] = g.Sigmoid(score)
	}
	return probas
}

func (p *Processor) lookup(tokens []int) []ag.Node {
	if len(tokens) == 0 {
		panic("model: cannot embed an empty sentence")
	}
	g := p.Graph
	out := make([]ag.Node, len(tokens))
	for i, token := range tokens {
		if token < 0 || token >= p.model.VocabSize {
			panic(fmt.Sprintf("model: token %d outside vocabulary of size %d", token, p.model.VocabSize))
		}
		out[i] = g.T(g.View(p.embeddings, token, 0, 1, p.model.HiddenDim))
	}
	return out
}

func average(g *ag.Graph, xs []ag.Node) ag.Node {
	var sum ag.Node
	for _, x := range xs {
		sum = g.Add(sum, x)
	}
	return g.DivScalar(sum, g.Constant(mat.Float(len(xs))))
}

// BatchLoss returns the binary log loss summed over the batch.
func (p *Processor) BatchLoss(batch io.Batch) ag.Node {
	probas := p.Predict(batch)
	targets := batch.Targets()
	if len(probas) != len(targets) {
		panic("model: one probability per label is required")
	}
	g := p.Graph
	yTrue := g.NewVariable(mat.NewVecDense(targets), false)
	return BinaryLogLoss(g, g.Concat(probas...), yTrue)
}

// NumCorrect counts the examples whose predicted class matches the label. Dropout is never
// applied. A probability of exactly 0.5 predicts the negative class.
func (p *Processor) NumCorrect(batch io.Batch) int {
	probas := p.predict(batch, false)
	correct := 0
	for i, example := range batch {
		if Positive(probas[i].ScalarValue()) == example.Label {
			correct++
		}
	}
	return correct
}

// Positive applies the decision threshold.
func Positive(proba mat.Float) bool {
	return proba > 0.5
}
