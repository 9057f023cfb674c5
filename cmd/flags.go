package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/reid-eval/internal/config"
)

// mustGetBool gets a bool flag value or panics if the flag doesn't exist.
// This is appropriate for flags defined in init() - errors indicate programming bugs.
func mustGetBool(cmd *cobra.Command, name string) bool {
	val, err := cmd.Flags().GetBool(name)
	if err != nil {
		panic(fmt.Sprintf("flag error for --%s: %v", name, err))
	}
	return val
}

// mustGetInt gets an int flag value or panics if the flag doesn't exist.
func mustGetInt(cmd *cobra.Command, name string) int {
	val, err := cmd.Flags().GetInt(name)
	if err != nil {
		panic(fmt.Sprintf("flag error for --%s: %v", name, err))
	}
	return val
}

// mustGetString gets a string flag value or panics if the flag doesn't exist.
func mustGetString(cmd *cobra.Command, name string) string {
	val, err := cmd.Flags().GetString(name)
	if err != nil {
		panic(fmt.Sprintf("flag error for --%s: %v", name, err))
	}
	return val
}

// mustGetFloat64 gets a float64 flag value or panics if the flag doesn't exist.
func mustGetFloat64(cmd *cobra.Command, name string) float64 {
	val, err := cmd.Flags().GetFloat64(name)
	if err != nil {
		panic(fmt.Sprintf("flag error for --%s: %v", name, err))
	}
	return val
}

// mustGetUint64 gets a uint64 flag value or panics if the flag doesn't exist.
func mustGetUint64(cmd *cobra.Command, name string) uint64 {
	val, err := cmd.Flags().GetUint64(name)
	if err != nil {
		panic(fmt.Sprintf("flag error for --%s: %v", name, err))
	}
	return val
}

// addModelFlags registers the flags selecting a model combination.
func addModelFlags(cmd *cobra.Command) {
	cmd.Flags().String("backbone-type", "", "Backbone architecture: resnet, vgg, dense or swin")
	cmd.Flags().String("backbone-path", "", "Path to the backbone weights")
	cmd.Flags().String("ae-type", "", "Autoencoder type: ae or vae (sae and dae are aliases of ae)")
	cmd.Flags().String("ae-path", "", "Path to the autoencoder weights")
	cmd.Flags().String("classifier-path", "", "Path to the pair classifier weights")
	cmd.Flags().String("all-dir", "", "Directory holding best_backbone.pkl, best_ae.pkl and best_classifier.pkl")
	cmd.Flags().String("inference-url", "", "Base URL of the inference server")
}

// applyModelFlags copies the model flags the user set over cfg.
func applyModelFlags(cmd *cobra.Command, cfg *config.Config) {
	overrides := []struct {
		flag   string
		target *string
	}{
		{"backbone-type", &cfg.Models.BackboneType},
		{"backbone-path", &cfg.Models.BackbonePath},
		{"ae-type", &cfg.Models.AEType},
		{"ae-path", &cfg.Models.AEPath},
		{"classifier-path", &cfg.Models.ClassifierPath},
		{"all-dir", &cfg.Models.AllDir},
		{"inference-url", &cfg.Inference.URL},
	}
	for _, o := range overrides {
		if cmd.Flags().Changed(o.flag) {
			*o.target = mustGetString(cmd, o.flag)
		}
	}
}
