package model

import (
	"math"
	"testing"

	mat "github.com/nlpodyssey/spago/pkg/mat32"
	"github.com/nlpodyssey/spago/pkg/mat32/rand"
	"github.com/nlpodyssey/spago/pkg/ml/ag"
	"github.com/nlpodyssey/spago/pkg/ml/nn"
	"github.com/nlpodyssey/spago/pkg/ml/optimizers/gd"
	"github.com/nlpodyssey/spago/pkg/ml/optimizers/gd/adam"
	"github.com/stretchr/testify/require"

	"sentidan/pkg/io"
)

const (
	testVocabSize = 10
	testHiddenDim = 4
)

func newTestModel() *DAN {
	m := NewDAN(DANConfig{VocabSize: testVocabSize, HiddenDim: testHiddenDim})
	m.Init(rand.NewLockedRand(42))
	return m
}

func testBatch() io.Batch {
	return io.Batch{
		{Label: true, Tokens: []int{1, 2, 3}},
		{Label: false, Tokens: []int{4}},
		{Label: true, Tokens: []int{9, 9, 0, 5}},
	}
}

func probabilities(nodes []ag.Node) []mat.Float {
	result := make([]mat.Float, len(nodes))
	for i, n := range nodes {
		result[i] = n.ScalarValue()
	}
	return result
}

func predictWith(m *DAN, mode nn.ProcessingMode, dropout *EmbeddingDropout, batch io.Batch) []mat.Float {
	g := ag.NewGraph(ag.Rand(rand.NewLockedRand(42)))
	defer g.Clear()
	proc := m.NewProc(nn.Context{Graph: g, Mode: mode}, dropout)
	return probabilities(proc.Predict(batch))
}

func TestDAN_Predict_ZeroWeights(t *testing.T) {
	m := NewDAN(DANConfig{VocabSize: testVocabSize, HiddenDim: testHiddenDim})
	for i := 0; i < testHiddenDim; i++ {
		m.Embeddings.Value().Set(3, i, 0.7)
	}
	batch := io.Batch{{Label: true, Tokens: []int{3}}}

	g := ag.NewGraph()
	defer g.Clear()
	proc := m.NewProc(nn.Context{Graph: g, Mode: nn.Inference}, nil)
	probas := proc.Predict(batch)
	require.Equal(t, 1, len(probas))
	require.Equal(t, mat.Float(0.5), probas[0].ScalarValue())

	loss := proc.BatchLoss(batch)
	require.InDelta(t, math.Log(2), float64(loss.ScalarValue()), 1e-4)
	require.Equal(t, 0, proc.NumCorrect(batch))
	require.Equal(t, 1, proc.NumCorrect(io.Batch{{Label: false, Tokens: []int{3}}}))
}

func TestDAN_Predict_Shape(t *testing.T) {
	m := newTestModel()
	probas := predictWith(m, nn.Training, NewEmbeddingDropout(0.5, rand.NewLockedRand(1)), testBatch())
	require.Equal(t, 3, len(probas))
	for _, p := range probas {
		require.True(t, p > 0 && p < 1)
	}
}

func TestDAN_Predict_InferenceIsDeterministic(t *testing.T) {
	m := newTestModel()
	dropout := NewEmbeddingDropout(0.5, rand.NewLockedRand(7))
	first := predictWith(m, nn.Inference, dropout, testBatch())
	second := predictWith(m, nn.Inference, dropout, testBatch())
	require.Equal(t, first, second)
}

func TestDAN_Predict_NoDropoutMatchesInference(t *testing.T) {
	m := newTestModel()
	training := predictWith(m, nn.Training, NewEmbeddingDropout(0, rand.NewLockedRand(7)), testBatch())
	inference := predictWith(m, nn.Inference, nil, testBatch())
	require.Equal(t, inference, training)

	withoutDropout := predictWith(m, nn.Training, nil, testBatch())
	require.Equal(t, inference, withoutDropout)
}

func TestDAN_Predict_Preconditions(t *testing.T) {
	m := newTestModel()
	require.Panics(t, func() {
		predictWith(m, nn.Inference, nil, io.Batch{{Label: true, Tokens: []int{testVocabSize}}})
	})
	require.Panics(t, func() {
		predictWith(m, nn.Inference, nil, io.Batch{{Label: true, Tokens: nil}})
	})
}

func TestDAN_NumCorrect_Range(t *testing.T) {
	m := newTestModel()
	g := ag.NewGraph()
	defer g.Clear()
	proc := m.NewProc(nn.Context{Graph: g, Mode: nn.Training}, NewEmbeddingDropout(0.5, rand.NewLockedRand(3)))
	correct := proc.NumCorrect(testBatch())
	require.True(t, correct >= 0 && correct <= len(testBatch()))
}

func TestDAN_BatchLoss_DecreasesOnSeparableData(t *testing.T) {
	m := newTestModel()
	var examples []*io.Example
	for i := 0; i < 16; i++ {
		examples = append(examples,
			&io.Example{Label: true, Tokens: []int{0, 1, 2}},
			&io.Example{Label: false, Tokens: []int{5, 6}},
		)
	}
	batches := io.MakeBatches(examples, 8)

	config := adam.NewDefaultConfig()
	config.StepSize = 0.01
	optimizer := gd.NewOptimizer(adam.New(config), nn.NewDefaultParamsIterator(m))
	dropout := NewEmbeddingDropout(0.5, rand.NewLockedRand(11))

	epochLoss := func() float64 {
		total := 0.0
		for _, batch := range batches {
			g := ag.NewGraph()
			proc := m.NewProc(nn.Context{Graph: g, Mode: nn.Training}, dropout)
			loss := proc.BatchLoss(batch)
			require.True(t, loss.ScalarValue() >= 0)
			g.Backward(loss)
			optimizer.Optimize()
			total += float64(loss.ScalarValue())
			g.Clear()
		}
		return total / float64(len(examples))
	}

	first := epochLoss()
	var last float64
	for epoch := 0; epoch < 60; epoch++ {
		optimizer.IncEpoch()
		last = epochLoss()
	}
	require.Less(t, last, first)

	g := ag.NewGraph()
	defer g.Clear()
	proc := m.NewProc(nn.Context{Graph: g, Mode: nn.Inference}, nil)
	correct := 0
	for _, batch := range batches {
		correct += proc.NumCorrect(batch)
	}
	require.Equal(t, len(examples), correct)
}

func TestDAN_LoadEmbeddings(t *testing.T) {
	m := newTestModel()
	table := io.NewEmbeddingTable(testVocabSize, testHiddenDim)
	for i := range table.Data {
		table.Data[i] = float32(i)
	}
	require.NoError(t, m.LoadEmbeddings(table))
	require.Equal(t, mat.Float(6), m.Embeddings.Value().At(1, 2))
	require.Equal(t, table, m.EmbeddingTable())

	require.Error(t, m.LoadEmbeddings(io.NewEmbeddingTable(testVocabSize+1, testHiddenDim)))
}

type testRand struct {
	values []mat.Float
	index  int
}

func (t *testRand) Float() mat.Float {
	v := t.values[t.index]
	t.index = (t.index + 1) % len(t.values)
	return v
}

func TestEmbeddingDropout(t *testing.T) {
	g := ag.NewGraph()
	defer g.Clear()
	tr := testRand{
		values: []mat.Float{0.0, 0.49, 0.5, 0.99, 0.7, 0.1},
	}
	dropout := NewEmbeddingDropout(0.5, &tr)
	data := make([]ag.Node, 3)
	for i := range data {
		data[i] = g.NewVariable(mat.NewInitVecDense(4, 3.0), false)
	}
	output := dropout.process(g, data)
	require.Equal(t, len(data), len(output))
	require.Equal(t, len(data), len(dropout.CurrentMasks))

	// the random source wraps every six draws
	expected := [][]mat.Float{
		{0, 0, 2, 2},
		{2, 0, 0, 0},
		{2, 2, 2, 0},
	}
	for i := range output {
		require.Equal(t, expected[i], dropout.CurrentMasks[i].Data())
		want := make([]mat.Float, 4)
		for j, v := range expected[i] {
			want[j] = 3.0 * v
		}
		require.Equal(t, want, output[i].Value().Data())
	}
}

func TestEmbeddingDropoutRejectsInvalidProbability(t *testing.T) {
	require.Panics(t, func() { NewEmbeddingDropout(1.0, rand.NewLockedRand(1)) })
	require.Panics(t, func() { NewEmbeddingDropout(-0.1, rand.NewLockedRand(1)) })
}

func TestPretrainedModel(t *testing.T) {
	for _, p := range []PretrainedModel{NoPretrainedModel, BigramModel, TrigramModel, FourgramModel} {
		require.NoError(t, p.Validate())
	}
	require.Error(t, PretrainedModel(1).Validate())
	require.Error(t, PretrainedModel(5).Validate())

	name, err := TrigramModel.StoreName()
	require.NoError(t, err)
	require.Equal(t, "embeds_baseline_lm_3gram_unlabeled", name)
	_, err = NoPretrainedModel.StoreName()
	require.Error(t, err)
}
