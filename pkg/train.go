package pkg

import (
	"fmt"
	gio "io"
	mrand "math/rand"
	"time"

	mat "github.com/nlpodyssey/spago/pkg/mat32"
	"github.com/nlpodyssey/spago/pkg/mat32/rand"
	"github.com/nlpodyssey/spago/pkg/ml/ag"
	"github.com/nlpodyssey/spago/pkg/ml/nn"
	"github.com/nlpodyssey/spago/pkg/ml/optimizers/gd"
	"github.com/nlpodyssey/spago/pkg/ml/optimizers/gd/adam"
	"github.com/rs/zerolog/log"

	"sentidan/pkg/adadelta"
	"sentidan/pkg/io"
	"sentidan/pkg/model"
)

type State int

const (
	DatasetLoaded State = iota
	ParametersInitialized
	EpochRunning
	EpochComplete
	TrainingComplete
)

func (s State) String() string {
	switch s {
	case DatasetLoaded:
		return "dataset-loaded"
	case ParametersInitialized:
		return "parameters-initialized"
	case EpochRunning:
		return "epoch-running"
	case EpochComplete:
		return "epoch-complete"
	case TrainingComplete:
		return "training-complete"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

type Trainer struct {
	config    Config
	splits    *io.Splits
	model     *model.DAN
	optimizer *gd.GradientDescent
	dropout   *model.EmbeddingDropout
	rndGen    *rand.LockedRand
	state     State
}

// Train loads the datasets from config.DataDir, trains a new classifier and writes one line
// per epoch to out.
func Train(config Config, source io.EmbeddingSource, out gio.Writer) (*Report, error) {
	splits, err := io.LoadSplits(config.DataDir)
	if err != nil {
		return nil, fmt.Errorf("error reading data: %w", err)
	}
	t, err := NewTrainer(config, splits, source)
	if err != nil {
		return nil, err
	}
	return t.Run(out)
}

// NewTrainer checks the datasets, builds and initializes the model and its optimizer and, when
// a pretrained model is selected, overwrites the embeddings with the table read from source.
func NewTrainer(config Config, splits *io.Splits, source io.EmbeddingSource) (*Trainer, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if len(splits.Train) == 0 {
		return nil, fmt.Errorf("no data to train")
	}
	if len(splits.Test) == 0 {
		return nil, fmt.Errorf("no data to test")
	}
	for name, examples := range map[string][]*io.Example{
		io.TrainSplit: splits.Train,
		io.ValidSplit: splits.Valid,
		io.TestSplit:  splits.Test,
	} {
		if err := io.CheckVocabulary(examples, config.VocabSize); err != nil {
			return nil, fmt.Errorf("invalid %s data: %w", name, err)
		}
	}

	t := &Trainer{
		config: config,
		splits: splits,
		rndGen: rand.NewLockedRand(config.RndSeed),
		state:  DatasetLoaded,
	}
	log.Info().Int("train", len(splits.Train)).Int("valid", len(splits.Valid)).Int("test", len(splits.Test)).
		Msg("Loaded datasets")

	t.model = model.NewDAN(model.DANConfig{VocabSize: config.VocabSize, HiddenDim: config.HiddenDim})
	t.model.Init(t.rndGen)
	t.dropout = model.NewEmbeddingDropout(config.DropoutProbability, t.rndGen)
	t.optimizer = newOptimizer(config, t.model)

	if config.PretrainedModel != model.NoPretrainedModel {
		if err := t.loadPretrained(source); err != nil {
			return nil, err
		}
	}
	t.setState(ParametersInitialized)
	return t, nil
}

func newOptimizer(config Config, m *model.DAN) *gd.GradientDescent {
	var method gd.Method
	switch config.Optimizer {
	case Adam:
		updaterConfig := adam.NewDefaultConfig()
		updaterConfig.StepSize = mat.Float(config.LearningRate)
		method = adam.New(updaterConfig)
	default:
		method = adadelta.New(adadelta.NewDefaultConfig())
	}
	log.Info().Str("optimizer", config.Optimizer).Msg("Created optimizer")

	if config.GradientClip > 0 {
		return gd.NewOptimizer(method, nn.NewDefaultParamsIterator(m),
			gd.ClipGradByValue(mat.Float(config.GradientClip)))
	}
	return gd.NewOptimizer(method, nn.NewDefaultParamsIterator(m))
}

func (t *Trainer) loadPretrained(source io.EmbeddingSource) error {
	name, err := t.config.PretrainedModel.StoreName()
	if err != nil {
		return err
	}
	table, err := source.Load(name)
	if err != nil {
		return fmt.Errorf("error reading pretrained embeddings %s: %w", name, err)
	}
	if err := t.model.LoadEmbeddings(table); err != nil {
		return err
	}
	log.Info().Int("pretrainedModel", int(t.config.PretrainedModel)).Str("store", name).
		Msg("Loaded pretrained embeddings")
	return nil
}

func (t *Trainer) State() State {
	return t.state
}

func (t *Trainer) Model() *model.DAN {
	return t.model
}

func (t *Trainer) setState(state State) {
	log.Debug().Str("from", t.state.String()).Str("to", state.String()).Msg("Trainer state")
	t.state = state
}

// Run trains for the configured number of epochs. Every epoch processes all training batches
// before evaluating the test batches.
func (t *Trainer) Run(out gio.Writer) (*Report, error) {
	if t.state != ParametersInitialized {
		return nil, fmt.Errorf("trainer cannot run in state %s", t.state)
	}
	fmt.Fprintf(out, "Pretrained model index: %d\n", int(t.config.PretrainedModel))

	train := io.NewDataSet(t.splits.Train, t.config.BatchSize, mrand.New(mrand.NewSource(int64(t.config.RndSeed))))
	validBatches := io.MakeBatches(t.splits.Valid, t.config.BatchSize)
	testBatches := io.MakeBatches(t.splits.Test, t.config.BatchSize)

	report := &Report{}
	for epoch := 0; epoch < t.config.MaxEpochs; epoch++ {
		t.setState(EpochRunning)
		tic := time.Now()
		t.optimizer.IncEpoch()

		if t.config.Shuffle {
			train.ResetOrder(io.RandomOrder)
		} else {
			train.ResetOrder(io.OriginalOrder)
		}
		batchLosses := make([]float64, 0, train.Size()/t.config.BatchSize+1)
		totalLoss := 0.0
		for batch, i := train.Next(), 0; len(batch) > 0; batch, i = train.Next(), i+1 {
			loss := t.trainBatch(batch)
			batchLosses = append(batchLosses, loss)
			totalLoss += loss
			if i%t.config.ReportInterval == 0 {
				log.Debug().Int("epoch", epoch).Int("batch", i).Float64("loss", loss).Msg("")
			}
		}

		stats := EpochStats{
			Epoch:        epoch,
			TrainLoss:    totalLoss / float64(train.Size()),
			TestAccuracy: accuracy(numCorrect(t.model, testBatches), len(t.splits.Test)),
		}
		if t.config.EvaluateValidation && len(t.splits.Valid) > 0 {
			stats.ValidAccuracy = accuracy(numCorrect(t.model, validBatches), len(t.splits.Valid))
			stats.HasValidAccuracy = true
		}
		stats.Elapsed = time.Since(tic)

		logBatchLosses(epoch, batchLosses)
		stats.Log()
		stats.Print(out)
		report.Epochs = append(report.Epochs, stats)
		t.setState(EpochComplete)
	}
	t.setState(TrainingComplete)

	report.TestMetrics = evaluate(t.model, testBatches)
	report.TestMetrics.Log()

	if t.config.SaveEmbeddingsPath != "" {
		if err := io.SaveEmbeddingStore(t.config.SaveEmbeddingsPath, t.model.EmbeddingTable()); err != nil {
			return report, err
		}
		log.Info().Str("path", t.config.SaveEmbeddingsPath).Msg("Saved embeddings")
	}
	return report, nil
}

func (t *Trainer) trainBatch(batch io.Batch) float64 {
	t.optimizer.IncBatch()

	g := ag.NewGraph(ag.Rand(t.rndGen))
	defer g.Clear()
	proc := t.model.NewProc(nn.Context{Graph: g, Mode: nn.Training}, t.dropout)
	loss := proc.BatchLoss(batch)
	g.Backward(loss)
	t.optimizer.Optimize()
	return float64(loss.ScalarValue())
}
