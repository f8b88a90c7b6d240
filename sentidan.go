package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"sentidan/pkg"
	"sentidan/pkg/model"
)

func TrainCommand() *cobra.Command {

	config := pkg.DefaultConfig()
	var pretrainedModel int

	var cmd = &cobra.Command{
		Use:   "train [-d dataDir] [-p pretrainedModel]",
		Short: "Trains a deep averaging network sentiment classifier on preprocessed data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			config.PretrainedModel = model.PretrainedModel(pretrainedModel)
			_, err := pkg.Train(config, config.EmbeddingSource(), cmd.OutOrStdout())
			return err
		},
	}

	cmd.Flags().StringVarP(&config.DataDir, "data-dir", "d", config.DataDir, "directory holding train_ix, valid_ix and test_ix (.pkl or .gob)")
	cmd.Flags().IntVarP(&config.MaxEpochs, "num-epochs", "n", config.MaxEpochs, "number of epochs to train")
	cmd.Flags().IntVarP(&config.BatchSize, "batch-size", "b", config.BatchSize, "batch size")
	cmd.Flags().IntVarP(&config.HiddenDim, "hidden-dim", "", config.HiddenDim, "embedding and hidden layer dimension")
	cmd.Flags().IntVarP(&config.VocabSize, "vocab-size", "v", config.VocabSize, "vocabulary size")
	cmd.Flags().IntVarP(&pretrainedModel, "pretrained-model", "p", int(config.PretrainedModel), "pretrained language model: 0 none, 2 bigram, 3 3-gram, 4 4-gram")
	cmd.Flags().StringVarP(&config.EmbeddingsDir, "embeddings-dir", "e", config.EmbeddingsDir, "directory holding the pretrained embedding stores")
	cmd.Flags().StringVarP(&config.EmbeddingFormat, "embeddings-format", "", config.EmbeddingFormat, "pretrained embedding format: store or gob")
	cmd.Flags().StringVarP(&config.SaveEmbeddingsPath, "save-embeddings", "", "", "store the trained embeddings at this path (optional)")
	cmd.Flags().Uint64VarP(&config.RndSeed, "random-seed", "x", config.RndSeed, "random seed")
	cmd.Flags().Float64VarP(&config.DropoutProbability, "dropout", "", config.DropoutProbability, "embedding dropout probability")
	cmd.Flags().StringVarP(&config.Optimizer, "optimizer", "", config.Optimizer, "optimizer: adadelta or adam")
	cmd.Flags().Float64VarP(&config.LearningRate, "learning-rate", "l", config.LearningRate, "learning rate (adam only)")
	cmd.Flags().Float64VarP(&config.GradientClip, "gradient-clip", "", config.GradientClip, "clip gradients by value (0 disables)")
	cmd.Flags().IntVarP(&config.ReportInterval, "report-interval", "r", config.ReportInterval, "batch loss report interval")
	cmd.Flags().BoolVarP(&config.EvaluateValidation, "eval-valid", "", config.EvaluateValidation, "evaluate the validation split every epoch")
	cmd.Flags().BoolVarP(&config.Shuffle, "shuffle", "", config.Shuffle, "shuffle the training batches every epoch")

	return cmd
}

var logLevel string
var logFormat string

func main() {

	Main := &cobra.Command{Use: "sentidan", PersistentPreRun: setupLogging}

	Main.PersistentFlags().StringVarP(&logLevel, "log-level", "", "info", "Logging level: info error or debug")
	Main.PersistentFlags().StringVarP(&logFormat, "log-format", "", "pretty", "Logging format: pretty or json")

	Main.AddCommand(TrainCommand())

	if err := Main.Execute(); err != nil {
		panic(err)
	}
}

func setupLogging(cmd *cobra.Command, args []string) {

	switch logLevel {
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	default:
		panic("Invalid logging level specified")
	}

	switch logFormat {
	case "pretty":
		setupPrettyLogging()
	case "json":
	default:
		panic("Invalid log format specified")

	}

}

func setupPrettyLogging() {
	writer := zerolog.ConsoleWriter{Out: os.Stderr}
	writer.FormatFieldValue = func(i interface{}) string {
		switch v := i.(type) {
		case json.Number:
			val, _ := v.Float64()
			return fmt.Sprintf("%.3f", val)
		default:
			return fmt.Sprintf("%s", i)
		}

	}
	log.Logger = log.Output(writer)

}
