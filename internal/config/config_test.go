package config

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/kozaktomas/reid-eval/internal/model"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	e := cfg.Evaluation
	if e.P != 18 || e.K != 5 || e.TopK != 5 || e.Threshold != 0.5 {
		t.Errorf("evaluation defaults = %+v, want P=18 K=5 TopK=5 Threshold=0.5", e)
	}
	if e.MetricsFile != "metrics.txt" {
		t.Errorf("MetricsFile = %q, want metrics.txt", e.MetricsFile)
	}
	if cfg.Database.MaxOpenConns != 25 || cfg.Database.MaxIdleConns != 5 {
		t.Errorf("database pool = %d/%d, want 25/5", cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns)
	}
	if cfg.Inference.Timeout().Seconds() != 120 {
		t.Errorf("Timeout() = %v, want 2m", cfg.Inference.Timeout())
	}
	if cfg.Web.Addr() != "0.0.0.0:8080" || cfg.Web.RequestTimeout().Minutes() != 5 {
		t.Errorf("web defaults = %s / %v, want 0.0.0.0:8080 / 5m", cfg.Web.Addr(), cfg.Web.RequestTimeout())
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eval.yaml")
	content := "evaluation:\n  p: 8\n  k: 4\n  threshold: 0.7\ndataset:\n  dir: /data/market\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("EVAL_K", "6")
	t.Setenv("EVAL_THRESHOLD", "not-a-number")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Evaluation.P != 8 {
		t.Errorf("P = %d, want 8 from file", cfg.Evaluation.P)
	}
	if cfg.Evaluation.K != 6 {
		t.Errorf("K = %d, want 6 from env", cfg.Evaluation.K)
	}
	if cfg.Evaluation.Threshold != 0.7 {
		t.Errorf("Threshold = %v, want 0.7 (invalid env ignored)", cfg.Evaluation.Threshold)
	}
	if cfg.Evaluation.TopK != 5 {
		t.Errorf("TopK = %d, want default 5", cfg.Evaluation.TopK)
	}
	if cfg.Dataset.Dir != "/data/market" {
		t.Errorf("Dataset.Dir = %q", cfg.Dataset.Dir)
	}
}

func TestLoad_BadFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("evaluation: [1, 2"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for malformed yaml")
	}
}

func TestEnvInt(t *testing.T) {
	tests := []struct {
		value string
		want  int
	}{
		{"", 7},
		{"12", 12},
		{"0", 7},
		{"-3", 7},
		{"abc", 7},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("TEST_ENV_INT", tt.value)
			if got := envInt("TEST_ENV_INT", 7); got != tt.want {
				t.Errorf("envInt() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestModelPaths(t *testing.T) {
	cfg := &Config{Models: ModelsConfig{
		BackbonePath:   "b.pkl",
		AEPath:         "a.pkl",
		ClassifierPath: "c.pkl",
	}}
	if got := cfg.ModelPaths(); got != (model.Paths{Backbone: "b.pkl", Autoencoder: "a.pkl", Classifier: "c.pkl"}) {
		t.Errorf("ModelPaths() = %+v", got)
	}

	cfg.Models.AllDir = "/runs/42"
	want := model.Paths{
		Backbone:    "/runs/42/best_backbone.pkl",
		Autoencoder: "/runs/42/best_ae.pkl",
		Classifier:  "/runs/42/best_classifier.pkl",
	}
	if got := cfg.ModelPaths(); got != want {
		t.Errorf("ModelPaths() with all dir = %+v, want %+v", got, want)
	}
}

func TestValidateForEval(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Models: ModelsConfig{
				BackboneType:   "resnet",
				BackbonePath:   "b.pkl",
				AEType:         "vae",
				AEPath:         "a.pkl",
				ClassifierPath: "c.pkl",
			},
			Dataset:    DatasetConfig{Dir: "/data"},
			Evaluation: EvaluationConfig{P: 18, K: 5, TopK: 5, Threshold: 0.5},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"no dataset", func(c *Config) { c.Dataset.Dir = "" }, "dataset directory"},
		{"no autoencoder", func(c *Config) { c.Models.AEPath = "" }, "autoencoder"},
		{"no classifier", func(c *Config) { c.Models.ClassifierPath = "" }, "classifier"},
		{"no backbone", func(c *Config) { c.Models.BackbonePath = "" }, "backbone"},
		{"all dir replaces paths", func(c *Config) {
			c.Models = ModelsConfig{BackboneType: "swin", AEType: "ae", AllDir: "/runs/1"}
		}, ""},
		{"bad threshold", func(c *Config) { c.Evaluation.Threshold = 1.5 }, "threshold"},
		{"bad shape", func(c *Config) { c.Evaluation.K = 0 }, "shape"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.ValidateForEval()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("ValidateForEval() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("ValidateForEval() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateForEval_UnknownBackbone(t *testing.T) {
	cfg := &Config{
		Models:     ModelsConfig{BackboneType: "alexnet", AEType: "vae", AllDir: "/runs"},
		Dataset:    DatasetConfig{Dir: "/data"},
		Evaluation: EvaluationConfig{P: 1, K: 1, TopK: 1},
	}
	if err := cfg.ValidateForEval(); !errors.Is(err, model.ErrInvalidConfiguration) {
		t.Errorf("ValidateForEval() error = %v, want ErrInvalidConfiguration", err)
	}
}

func TestValidateModels_NoDataset(t *testing.T) {
	cfg := &Config{
		Models:     ModelsConfig{BackboneType: "dense", AEType: "dae", AllDir: "/runs/7"},
		Evaluation: EvaluationConfig{P: 18, K: 5, TopK: 5, Threshold: 0.5},
	}
	if err := cfg.ValidateModels(); err != nil {
		t.Errorf("ValidateModels() error = %v", err)
	}
	if err := cfg.ValidateForEval(); err == nil {
		t.Error("ValidateForEval() should require a dataset directory")
	}
}

func TestEnvList(t *testing.T) {
	tests := []struct {
		name string
		env  string
		want []string
	}{
		{"unset keeps default", "", []string{"https://a.example.com"}},
		{"splits and trims", " https://b.example.com , ,https://c.example.com", []string{"https://b.example.com", "https://c.example.com"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_ENV_LIST", tt.env)
			got := envList("TEST_ENV_LIST", []string{"https://a.example.com"})
			if !slices.Equal(got, tt.want) {
				t.Errorf("envList() = %v, want %v", got, tt.want)
			}
		})
	}
}
