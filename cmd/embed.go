package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/reid-eval/internal/database"
	"github.com/kozaktomas/reid-eval/internal/dataset"
	"github.com/kozaktomas/reid-eval/internal/model"
)

var embedCmd = &cobra.Command{
	Use:   "embed",
	Short: "Embed the whole dataset and store the embeddings in PostgreSQL",
	Long: `Compute embeddings for every image of the dataset with the selected model
combination and store them in PostgreSQL. Stored embeddings feed "eval --source db",
"search" and the gallery search API.

Examples:
  reid-eval embed --dataset-dir ./Market-1501/bounding_box_test --backbone-type resnet --ae-type vae --all-dir ./runs/best
  reid-eval embed --dataset-dir ./Market-1501/query --batch-size 32 --replace`,
	RunE: runEmbed,
}

func init() {
	rootCmd.AddCommand(embedCmd)

	addModelFlags(embedCmd)
	embedCmd.Flags().String("dataset-dir", "", "Directory of Market-1501 images")
	embedCmd.Flags().Int("batch-size", 64, "Images sent to the inference server per request")
	embedCmd.Flags().Int("concurrency", 4, "Parallel image preprocessing workers")
	embedCmd.Flags().Bool("replace", false, "Delete previously stored embeddings of this model first")
}

func runEmbed(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyModelFlags(cmd, cfg)
	if cmd.Flags().Changed("dataset-dir") {
		cfg.Dataset.Dir = mustGetString(cmd, "dataset-dir")
	}
	if err := cfg.ValidateForEval(); err != nil {
		return err
	}
	batchSize := mustGetInt(cmd, "batch-size")
	concurrency := mustGetInt(cmd, "concurrency")
	if batchSize <= 0 || concurrency <= 0 {
		return fmt.Errorf("batch size and concurrency must be positive")
	}

	pool, err := initDatabase(cfg)
	if err != nil {
		return err
	}
	defer pool.Close()
	writer, err := database.GetSampleWriter(ctx)
	if err != nil {
		return err
	}

	ds, err := dataset.Open(cfg.Dataset.Dir)
	if err != nil {
		return err
	}
	client, err := loadModels(ctx, cfg)
	if err != nil {
		return err
	}
	spec := client.Spec()

	if mustGetBool(cmd, "replace") {
		deleted, err := writer.DeleteModel(ctx, spec.String())
		if err != nil {
			return fmt.Errorf("deleting stored embeddings: %w", err)
		}
		fmt.Printf("Deleted %d stored embeddings of %s\n", deleted, spec)
		if err := database.RemoveGallery(cfg.Database.GalleryIndexPath); err != nil {
			return err
		}
	}

	fmt.Printf("Dataset: %d images, %d identities\n\n", ds.Len(), len(ds.Identities()))

	bar := progressbar.NewOptions(ds.Len(),
		progressbar.OptionSetDescription("Embedding images"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("images"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	stored := 0
	for start := 0; start < ds.Len(); start += batchSize {
		end := min(start+batchSize, ds.Len())

		images, err := loadChunk(ds, start, end, spec, concurrency)
		if err != nil {
			return err
		}
		embeddings, err := client.Embed(ctx, images)
		if err != nil {
			return fmt.Errorf("embedding images %d-%d: %w", start, end-1, err)
		}

		samples := make([]database.StoredSample, len(embeddings))
		for i, emb := range embeddings {
			s := ds.Samples[start+i]
			samples[i] = database.StoredSample{
				Path:      filepath.Base(s.Path),
				Identity:  s.Identity,
				Camera:    s.Camera,
				Model:     spec.String(),
				Embedding: emb,
				Dim:       len(emb),
			}
		}
		if err := writer.SaveSamples(ctx, samples); err != nil {
			return fmt.Errorf("saving embeddings: %w", err)
		}
		if err := database.RemoveGallery(cfg.Database.GalleryIndexPath); err != nil {
			return err
		}
		stored += len(samples)
		_ = bar.Add(len(samples))
	}

	fmt.Printf("\n\nStored %d embeddings for %s\n", stored, spec)
	return nil
}

// loadChunk preprocesses images [start, end) of the dataset in parallel, keeping order.
func loadChunk(ds *dataset.Dataset, start, end int, spec model.Spec, concurrency int) ([][]byte, error) {
	images := make([][]byte, end-start)
	errs := make([]error, end-start)

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	for i := start; i < end; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			images[i-start], errs[i-start] = ds.Load(i, spec)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return images, nil
}
