package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/reid-eval/internal/database"
)

var searchCmd = &cobra.Command{
	Use:   "search <image-file-or-sample-id>",
	Short: "Find the gallery samples closest to a stored sample",
	Long: `Look up a stored sample by image file name or numeric ID and list its nearest
gallery samples by exact Euclidean distance. The query sample itself is skipped.

Examples:
  reid-eval search 0002_c1s1_000451_03.jpg --backbone-type resnet --ae-type vae
  reid-eval search 1234 --limit 20`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().String("backbone-type", "", "Backbone architecture: resnet, vgg, dense or swin")
	searchCmd.Flags().String("ae-type", "", "Autoencoder type: ae or vae")
	searchCmd.Flags().Int("limit", 10, "Number of results")
	searchCmd.Flags().String("index", "", "Path to persist the gallery index (default from config)")
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("backbone-type") {
		cfg.Models.BackboneType = mustGetString(cmd, "backbone-type")
	}
	if cmd.Flags().Changed("ae-type") {
		cfg.Models.AEType = mustGetString(cmd, "ae-type")
	}
	if cmd.Flags().Changed("index") {
		cfg.Database.GalleryIndexPath = mustGetString(cmd, "index")
	}
	limit := mustGetInt(cmd, "limit")
	if limit <= 0 || limit > database.MaxSearchResults {
		return fmt.Errorf("limit must be between 1 and %d", database.MaxSearchResults)
	}

	spec, err := cfg.ModelSpec()
	if err != nil {
		return err
	}
	pool, err := initDatabase(cfg)
	if err != nil {
		return err
	}
	defer pool.Close()
	reader, err := database.GetSampleReader(ctx)
	if err != nil {
		return err
	}

	query, err := findSample(ctx, reader, spec.String(), args[0])
	if err != nil {
		return err
	}

	gallery, err := database.BuildGallery(ctx, reader, spec.String(), cfg.Database.GalleryIndexPath)
	if err != nil {
		return fmt.Errorf("building gallery index: %w", err)
	}

	// One extra result since the query is part of the gallery.
	matches, err := gallery.Search(query.Embedding, limit+1)
	if err != nil {
		return err
	}

	fmt.Printf("Query: %s (identity %d, camera %d)\n\n", query.Path, query.Identity, query.Camera)
	fmt.Printf("%-5s %-28s %-9s %-7s %s\n", "RANK", "IMAGE", "IDENTITY", "CAMERA", "DISTANCE")
	rank := 0
	for _, m := range matches {
		if m.Sample.ID == query.ID || rank == limit {
			continue
		}
		rank++
		marker := ""
		if m.Sample.Identity == query.Identity {
			marker = "  *"
		}
		fmt.Printf("%-5d %-28s %-9d %-7d %.4f%s\n",
			rank, m.Sample.Path, m.Sample.Identity, m.Sample.Camera, m.Distance, marker)
	}
	return nil
}

// findSample resolves a sample ID or image file name of the given model.
func findSample(ctx context.Context, reader database.SampleReader, model, ref string) (*database.StoredSample, error) {
	var (
		sample *database.StoredSample
		err    error
	)
	if id, convErr := strconv.ParseInt(ref, 10, 64); convErr == nil {
		sample, err = reader.GetSample(ctx, id)
	} else {
		sample, err = reader.GetSampleByPath(ctx, model, ref)
	}
	if err != nil {
		return nil, fmt.Errorf("looking up sample: %w", err)
	}
	if sample == nil || sample.Model != model {
		return nil, fmt.Errorf("no stored sample %q for %s", ref, model)
	}
	return sample, nil
}
