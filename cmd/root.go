package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/reid-eval/internal/config"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "reid-eval",
	Short: "Evaluate person re-identification models on Market-1501",
	Long: `reid-eval samples identity-balanced batches from a Market-1501 style dataset,
embeds them through an inference server and reports ranking (Rank@1, mAP@k, CMC)
and verification (accuracy, precision, recall, F1/F2, PR/ROC AUC) metrics.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "YAML file overriding the built-in evaluation defaults")
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}
