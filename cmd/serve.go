package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/reid-eval/internal/config"
	"github.com/kozaktomas/reid-eval/internal/database"
	"github.com/kozaktomas/reid-eval/internal/database/postgres"
	"github.com/kozaktomas/reid-eval/internal/web"
	"github.com/kozaktomas/reid-eval/internal/web/handlers"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the reid-eval HTTP API.
The API evaluates posted embeddings, lists stored reports and searches the gallery
of stored embeddings. PostgreSQL (DATABASE_URL) enables report storage and gallery
search; the inference server enables pair classification when model weights are set.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	addModelFlags(serveCmd)
	serveCmd.Flags().Int("port", 8080, "Port to listen on (overrides WEB_PORT)")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to (overrides WEB_HOST)")
	serveCmd.Flags().Bool("no-classifier", false, "Serve ranking-only reports unless probabilities are posted")
}

// applyServeFlags lets explicit --host and --port flags override the web config.
func applyServeFlags(cmd *cobra.Command, cfg *config.Config) {
	applyModelFlags(cmd, cfg)
	if cmd.Flags().Changed("port") {
		cfg.Web.Port = mustGetInt(cmd, "port")
	}
	if cmd.Flags().Changed("host") {
		cfg.Web.Host = mustGetString(cmd, "host")
	}
}

// initServeStorage registers PostgreSQL and builds the gallery of the configured model.
// The returned pool is nil when no database is configured.
func initServeStorage(ctx context.Context, cfg *config.Config, deps *handlers.Dependencies) (*postgres.Pool, error) {
	if cfg.Database.URL == "" {
		fmt.Printf("DATABASE_URL not set: reports are not stored and gallery search is disabled\n")
		return nil, nil
	}
	pool, err := initDatabase(cfg)
	if err != nil {
		return nil, err
	}
	fmt.Printf("Using PostgreSQL backend\n")

	reports, err := database.GetReportWriter(ctx)
	if err != nil {
		return pool, err
	}
	deps.Reports = reports

	spec, err := cfg.ModelSpec()
	if err != nil {
		return pool, err
	}
	samples, err := database.GetSampleReader(ctx)
	if err != nil {
		return pool, err
	}
	gallery, err := database.BuildGallery(ctx, samples, spec.String(), cfg.Database.GalleryIndexPath)
	if err != nil {
		fmt.Printf("Warning: Failed to build gallery index: %v\n", err)
		fmt.Printf("Gallery search is disabled\n")
		return pool, nil
	}
	fmt.Printf("Gallery index ready with %d %s samples\n", gallery.Count(), spec)
	deps.Gallery = gallery
	return pool, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyServeFlags(cmd, cfg)
	noClassifier := mustGetBool(cmd, "no-classifier")
	if noClassifier {
		_, err = cfg.ModelSpec()
	} else {
		err = cfg.ValidateModels()
	}
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var deps handlers.Dependencies
	pool, err := initServeStorage(ctx, cfg, &deps)
	defer pool.Close()
	if err != nil {
		return err
	}
	if !noClassifier {
		client, err := loadModels(ctx, cfg)
		if err != nil {
			return err
		}
		deps.Classifier = client
	}

	server := web.NewServer(cfg, deps)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting reid-eval API on http://%s\n", server.Addr())
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
