package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tcassar-diss/scwin/classifier"
	"github.com/tcassar-diss/scwin/config"
	"github.com/tcassar-diss/scwin/dataset"
	"github.com/tcassar-diss/scwin/encode"
	"github.com/tcassar-diss/scwin/label"
	"github.com/tcassar-diss/scwin/pipeline"
	"github.com/tcassar-diss/scwin/trace"
)

func main() {
	prodLogger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to get logger: %v", err)
	}

	logger := prodLogger.Sugar()

	root := &cobra.Command{
		Use:           "scwin",
		Short:         "build syscall-window datasets from FaaS trace captures",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	var cfgPath string

	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "pipeline config file")

	root.AddCommand(buildCmd(logger, &cfgPath))
	root.AddCommand(encodeCmd(logger, &cfgPath))
	root.AddCommand(evalCmd(logger))

	if err := root.Execute(); err != nil {
		logger.Fatalw("command failed", "err", err)
	}
}

func buildCmd(logger *zap.SugaredLogger, cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "build",
		Short: "ingest traces and emit train/test datasets plus a frozen vocabulary",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}

			table, err := label.LoadTable(cfg.LabelTable)
			if err != nil {
				return err
			}

			ds, vocab, diags, err := pipeline.New(logger, &cfg, table).Run(cmd.Context())
			if err != nil {
				return err
			}

			return writeOutputs(logger, &cfg, ds, vocab, diags)
		},
	}
}

func writeOutputs(
	logger *zap.SugaredLogger,
	cfg *config.Config,
	ds *dataset.Dataset,
	vocab *encode.Vocabulary,
	diags *trace.Diagnostics,
) error {
	runID := uuid.NewString()

	if err := os.MkdirAll(cfg.OutDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if cfg.Format == config.FormatCSV || cfg.Format == config.FormatBoth {
		if err := ds.WriteCSV(cfg.OutDir); err != nil {
			return err
		}
	}

	if cfg.Format == config.FormatSQLite || cfg.Format == config.FormatBoth {
		store, err := dataset.NewStore(filepath.Join(cfg.OutDir, "dataset.db"))
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.SaveDataset(runID, ds); err != nil {
			return err
		}
	}

	if err := vocab.Save(filepath.Join(cfg.OutDir, "vocab.json")); err != nil {
		return err
	}

	manifest := &dataset.Manifest{
		RunID:         runID,
		CreatedAt:     time.Now().UTC(),
		Config:        cfg.Echo(),
		Ingest:        *diags,
		VocabSize:     vocab.Size(),
		TrainExamples: len(ds.Train),
		TestExamples:  len(ds.Test),
	}

	if err := dataset.WriteManifest(filepath.Join(cfg.OutDir, "manifest.json"), manifest); err != nil {
		return err
	}

	logger.Infow("dataset built",
		"run_id", runID,
		"out_dir", cfg.OutDir,
		"train_examples", len(ds.Train),
		"test_examples", len(ds.Test),
		"vocab_size", vocab.Size(),
	)

	return nil
}

func encodeCmd(logger *zap.SugaredLogger, cfgPath *string) *cobra.Command {
	var vocabPath, outPath string

	cmd := &cobra.Command{
		Use:   "encode",
		Short: "encode fresh traces against a previously frozen vocabulary",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}

			table, err := label.LoadTable(cfg.LabelTable)
			if err != nil {
				return err
			}

			vocab, err := encode.LoadVocabulary(vocabPath)
			if err != nil {
				return err
			}

			examples, dim, _, err := pipeline.New(logger, &cfg, table).Encode(cmd.Context(), vocab)
			if err != nil {
				return err
			}

			if err := dataset.WriteExamplesCSV(outPath, examples, dim); err != nil {
				return err
			}

			logger.Infow("encoded traces", "examples", len(examples), "out", outPath)

			return nil
		},
	}

	cmd.Flags().StringVar(&vocabPath, "vocab", "out/vocab.json", "frozen vocabulary to encode against")
	cmd.Flags().StringVar(&outPath, "out", "encoded.csv", "output csv path")

	return cmd
}

func evalCmd(logger *zap.SugaredLogger) *cobra.Command {
	var dataDir string

	cmd := &cobra.Command{
		Use:   "eval",
		Short: "run the nearest-centroid baseline over a built dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			train, trainDim, err := dataset.ReadCSV(filepath.Join(dataDir, dataset.TrainFile))
			if err != nil {
				return err
			}

			test, testDim, err := dataset.ReadCSV(filepath.Join(dataDir, dataset.TestFile))
			if err != nil {
				return err
			}

			if trainDim != testDim {
				return fmt.Errorf("train dim %d != test dim %d", trainDim, testDim)
			}

			ds := &dataset.Dataset{Dim: trainDim, Train: train, Test: test}

			if err := ds.Validate(); err != nil {
				return err
			}

			model := classifier.NewNearestCentroid()

			if err := model.Fit(ds); err != nil {
				return err
			}

			report, err := classifier.Evaluate(model, ds.Test)
			if err != nil {
				return err
			}

			logger.Infow("baseline evaluation",
				"examples", report.N,
				"accuracy", report.Accuracy,
				"confusion", report.Confusion,
			)

			return nil
		},
	}

	cmd.Flags().StringVar(&dataDir, "data", "out", "directory containing train.csv and test.csv")

	return cmd
}
