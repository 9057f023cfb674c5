package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/reid-eval/internal/config"
	"github.com/kozaktomas/reid-eval/internal/database"
	"github.com/kozaktomas/reid-eval/internal/database/postgres"
	"github.com/kozaktomas/reid-eval/internal/dataset"
	"github.com/kozaktomas/reid-eval/internal/evaluate"
	"github.com/kozaktomas/reid-eval/internal/metrics"
	"github.com/kozaktomas/reid-eval/internal/model"
	"github.com/kozaktomas/reid-eval/internal/sampler"
)

const (
	sourceDataset = "dataset"
	sourceDB      = "db"
)

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Evaluate a model combination on one P x K batch",
	Long: `Sample one identity-balanced batch of P identities with K images each,
embed it through the inference server and compute ranking and verification metrics.

With --source db the batch is drawn from embeddings stored by "reid-eval embed"
instead of the dataset directory.

Examples:
  reid-eval eval --dataset-dir ./Market-1501/query --backbone-type resnet --ae-type vae --all-dir ./runs/best
  reid-eval eval --source db --backbone-type swin --ae-type ae --all-dir ./runs/swin --seed 7 --json report.json`,
	RunE: runEval,
}

func init() {
	rootCmd.AddCommand(evalCmd)

	addModelFlags(evalCmd)
	evalCmd.Flags().String("dataset-dir", "", "Directory of Market-1501 images")
	evalCmd.Flags().String("source", sourceDataset, "Where the batch comes from: dataset or db")
	evalCmd.Flags().Int("p", 0, "Identities per batch (default from config)")
	evalCmd.Flags().Int("k", 0, "Images per identity (default from config)")
	evalCmd.Flags().Int("top-k", 0, "Cutoff for mAP@k (default from config)")
	evalCmd.Flags().Float64("threshold", 0, "Decision threshold on classifier probabilities (default from config)")
	evalCmd.Flags().Uint64("seed", 0, "Sampler seed; 0 draws a fresh one")
	evalCmd.Flags().String("metrics-file", "", "Where to write the text report (default from config)")
	evalCmd.Flags().String("json", "", "Also write the full report as JSON to this file")
	evalCmd.Flags().Bool("no-save", false, "Do not store the report in PostgreSQL")
}

// applyEvalFlags copies the evaluation flags the user set over cfg.
func applyEvalFlags(cmd *cobra.Command, cfg *config.Config) {
	applyModelFlags(cmd, cfg)
	if cmd.Flags().Changed("dataset-dir") {
		cfg.Dataset.Dir = mustGetString(cmd, "dataset-dir")
	}
	if cmd.Flags().Changed("p") {
		cfg.Evaluation.P = mustGetInt(cmd, "p")
	}
	if cmd.Flags().Changed("k") {
		cfg.Evaluation.K = mustGetInt(cmd, "k")
	}
	if cmd.Flags().Changed("top-k") {
		cfg.Evaluation.TopK = mustGetInt(cmd, "top-k")
	}
	if cmd.Flags().Changed("threshold") {
		cfg.Evaluation.Threshold = mustGetFloat64(cmd, "threshold")
	}
	if cmd.Flags().Changed("seed") {
		cfg.Evaluation.Seed = mustGetUint64(cmd, "seed")
	}
	if cmd.Flags().Changed("metrics-file") {
		cfg.Evaluation.MetricsFile = mustGetString(cmd, "metrics-file")
	}
}

func evalOptions(cfg *config.Config) evaluate.Options {
	return evaluate.Options{
		P:         cfg.Evaluation.P,
		K:         cfg.Evaluation.K,
		TopK:      cfg.Evaluation.TopK,
		Threshold: cfg.Evaluation.Threshold,
	}
}

// newRand returns the sampler source and the seed it was built from.
func newRand(seed uint64) (*rand.Rand, uint64) {
	if seed == 0 {
		seed = rand.Uint64()
	}
	return rand.New(rand.NewPCG(seed, seed)), seed
}

// loadModels resolves the model combination and loads its weights on the inference server.
func loadModels(ctx context.Context, cfg *config.Config) (*model.Client, error) {
	spec, err := cfg.ModelSpec()
	if err != nil {
		return nil, err
	}
	client := model.NewClient(cfg.Inference.URL, spec, cfg.Inference.Timeout())

	fmt.Printf("Loading %s models on %s...\n", spec, cfg.Inference.URL)
	if err := client.Load(ctx, cfg.ModelPaths()); err != nil {
		return nil, fmt.Errorf("loading models: %w", err)
	}
	return client, nil
}

func runEval(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyEvalFlags(cmd, cfg)

	source := mustGetString(cmd, "source")
	switch source {
	case sourceDataset:
		err = cfg.ValidateForEval()
	case sourceDB:
		err = cfg.ValidateModels()
	default:
		return fmt.Errorf("unknown source %q (want %s or %s)", source, sourceDataset, sourceDB)
	}
	if err != nil {
		return err
	}

	if source == sourceDB || (cfg.Database.URL != "" && !mustGetBool(cmd, "no-save")) {
		pool, err := initDatabase(cfg)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	client, err := loadModels(ctx, cfg)
	if err != nil {
		return err
	}

	rng, seed := newRand(cfg.Evaluation.Seed)
	fmt.Printf("Sampling seed: %d\n", seed)

	evaluator := &evaluate.Evaluator{
		Classifier: client,
		Options:    evalOptions(cfg),
		Model:      client.Spec().String(),
	}

	var report *metrics.Report
	if source == sourceDB {
		report, err = evalStored(ctx, evaluator, rng)
	} else {
		report, err = evalDataset(ctx, cfg, client, evaluator, rng)
	}
	if err != nil {
		return err
	}

	return writeReport(ctx, cmd, cfg, report)
}

func evalDataset(
	ctx context.Context, cfg *config.Config, client *model.Client, evaluator *evaluate.Evaluator, rng *rand.Rand,
) (*metrics.Report, error) {
	ds, err := dataset.Open(cfg.Dataset.Dir)
	if err != nil {
		return nil, err
	}
	fmt.Printf("Dataset: %d images, %d identities\n", ds.Len(), len(ds.Identities()))

	pipeline := &evaluate.Pipeline{
		Source:    ds,
		Embedder:  client,
		Spec:      client.Spec(),
		Evaluator: evaluator,
		Rand:      rng,
	}
	report, batch, err := pipeline.RunBatch(ctx)
	if err != nil {
		return nil, fmt.Errorf("evaluating batch: %w", err)
	}
	fmt.Printf("Evaluated batch of %d images\n", len(batch.Indices))
	return report, nil
}

// evalStored evaluates one batch of embeddings previously stored for the model.
func evalStored(ctx context.Context, evaluator *evaluate.Evaluator, rng *rand.Rand) (*metrics.Report, error) {
	reader, err := database.GetSampleReader(ctx)
	if err != nil {
		return nil, err
	}
	samples, err := reader.ListSamples(ctx, evaluator.Model)
	if err != nil {
		return nil, fmt.Errorf("listing stored samples: %w", err)
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("no stored embeddings for %s, run \"reid-eval embed\" first", evaluator.Model)
	}
	fmt.Printf("Stored samples: %d\n", len(samples))

	opts := evaluator.Options
	bs, err := sampler.NewBatchSampler(database.Identities(samples), opts.P, opts.K, rng)
	if err != nil {
		return nil, fmt.Errorf("creating batch sampler: %w", err)
	}
	var indices []int
	for b := range bs.Batches() {
		indices = b
		break
	}
	if indices == nil {
		return nil, errors.New("stored samples have fewer identities than one batch needs")
	}

	embeddings := make([][]float32, len(indices))
	labels := make([]int, len(indices))
	for i, idx := range indices {
		embeddings[i] = samples[idx].Embedding
		labels[i] = samples[idx].Identity
	}
	return evaluator.Evaluate(ctx, embeddings, labels)
}

// writeReport prints the report, writes the metrics file and optional JSON, and
// stores the report when a database is configured.
func writeReport(ctx context.Context, cmd *cobra.Command, cfg *config.Config, report *metrics.Report) error {
	fmt.Println()
	if err := report.WriteText(os.Stdout); err != nil {
		return err
	}

	if path := cfg.Evaluation.MetricsFile; path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("creating metrics file: %w", err)
		}
		if err := report.WriteText(f); err != nil {
			f.Close()
			return fmt.Errorf("writing metrics file: %w", err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("writing metrics file: %w", err)
		}
		fmt.Printf("\nMetrics written to %s\n", path)
	}

	if path := mustGetString(cmd, "json"); path != "" {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding report: %w", err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("writing report: %w", err)
		}
		fmt.Printf("Report written to %s\n", path)
	}

	if !database.IsInitialized() || mustGetBool(cmd, "no-save") {
		return nil
	}
	writer, err := database.GetReportWriter(ctx)
	if err != nil {
		return err
	}
	if err := writer.SaveReport(ctx, report); err != nil {
		return fmt.Errorf("saving report: %w", err)
	}
	fmt.Printf("Report saved as %s\n", report.ID)
	return nil
}

// initDatabase connects to PostgreSQL and registers the repositories.
func initDatabase(cfg *config.Config) (*postgres.Pool, error) {
	if cfg.Database.URL == "" {
		return nil, errors.New("DATABASE_URL environment variable is required")
	}
	fmt.Printf("Connecting to PostgreSQL database...\n")
	pool, err := postgres.Initialize(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	return pool, nil
}
