package config

import (
	_ "embed"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kozaktomas/reid-eval/internal/model"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Weight file names inside a training output directory.
const (
	BackboneFile   = "best_backbone.pkl"
	AEFile         = "best_ae.pkl"
	ClassifierFile = "best_classifier.pkl"
)

type Config struct {
	Inference  InferenceConfig  `yaml:"inference"`
	Models     ModelsConfig     `yaml:"models"`
	Dataset    DatasetConfig    `yaml:"dataset"`
	Evaluation EvaluationConfig `yaml:"evaluation"`
	Database   DatabaseConfig   `yaml:"database"`
	Web        WebConfig        `yaml:"web"`
}

type InferenceConfig struct {
	URL            string `yaml:"url"`             // defaults to http://localhost:8000
	TimeoutSeconds int    `yaml:"timeout_seconds"` // per request
}

// Timeout returns the per-request timeout of the inference client.
func (c InferenceConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

type ModelsConfig struct {
	BackboneType   string `yaml:"backbone_type"` // resnet, vgg, dense or swin
	BackbonePath   string `yaml:"backbone_path"`
	AEType         string `yaml:"ae_type"` // ae or vae
	AEPath         string `yaml:"ae_path"`
	ClassifierPath string `yaml:"classifier_path"`
	AllDir         string `yaml:"all_dir"` // directory holding all three best_*.pkl files
}

type DatasetConfig struct {
	Dir string `yaml:"dir"`
}

type EvaluationConfig struct {
	P           int     `yaml:"p"`
	K           int     `yaml:"k"`
	TopK        int     `yaml:"top_k"`
	Threshold   float64 `yaml:"threshold"`
	Seed        uint64  `yaml:"seed"`
	MetricsFile string  `yaml:"metrics_file"`
}

type DatabaseConfig struct {
	URL              string `yaml:"url"`                // PostgreSQL connection URL
	MaxOpenConns     int    `yaml:"max_open_conns"`     // Maximum open connections (default 25)
	MaxIdleConns     int    `yaml:"max_idle_conns"`     // Maximum idle connections (default 5)
	GalleryIndexPath string `yaml:"gallery_index_path"` // Path to persist the gallery HNSW index (optional, rebuilt on startup if empty)
}

type WebConfig struct {
	Host                  string   `yaml:"host"`
	Port                  int      `yaml:"port"`
	AllowedOrigins        []string `yaml:"allowed_origins"`         // CORS whitelist; localhost is always allowed
	RequestTimeoutSeconds int      `yaml:"request_timeout_seconds"` // evaluations wait on the inference server
}

// Addr returns the listen address.
func (c WebConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// RequestTimeout bounds one API request.
func (c WebConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a float.
// Returns the default value if the env var is unset, empty, or invalid.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return defaultVal
}

// envList reads a comma-separated environment variable.
func envList(key string, defaultVal []string) []string {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	var out []string
	for item := range strings.SplitSeq(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// Load builds the configuration from the embedded defaults, the optional YAML file
// at path and the environment, in that order of precedence.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.Inference.URL = envString("INFERENCE_URL", cfg.Inference.URL)
	cfg.Inference.TimeoutSeconds = envInt("INFERENCE_TIMEOUT", cfg.Inference.TimeoutSeconds)

	cfg.Models.BackboneType = envString("BACKBONE_TYPE", cfg.Models.BackboneType)
	cfg.Models.BackbonePath = envString("BACKBONE_PATH", cfg.Models.BackbonePath)
	cfg.Models.AEType = envString("AE_TYPE", cfg.Models.AEType)
	cfg.Models.AEPath = envString("AE_PATH", cfg.Models.AEPath)
	cfg.Models.ClassifierPath = envString("CLASSIFIER_PATH", cfg.Models.ClassifierPath)
	cfg.Models.AllDir = envString("MODELS_DIR", cfg.Models.AllDir)

	cfg.Dataset.Dir = envString("DATASET_DIR", cfg.Dataset.Dir)

	cfg.Evaluation.P = envInt("EVAL_P", cfg.Evaluation.P)
	cfg.Evaluation.K = envInt("EVAL_K", cfg.Evaluation.K)
	cfg.Evaluation.TopK = envInt("EVAL_TOP_K", cfg.Evaluation.TopK)
	cfg.Evaluation.Threshold = envFloat("EVAL_THRESHOLD", cfg.Evaluation.Threshold)
	cfg.Evaluation.Seed = uint64(envInt("EVAL_SEED", int(cfg.Evaluation.Seed)))
	cfg.Evaluation.MetricsFile = envString("EVAL_METRICS_FILE", cfg.Evaluation.MetricsFile)

	cfg.Database.URL = envString("DATABASE_URL", cfg.Database.URL)
	cfg.Database.MaxOpenConns = envInt("DATABASE_MAX_OPEN_CONNS", cfg.Database.MaxOpenConns)
	cfg.Database.MaxIdleConns = envInt("DATABASE_MAX_IDLE_CONNS", cfg.Database.MaxIdleConns)
	cfg.Database.GalleryIndexPath = envString("GALLERY_INDEX_PATH", cfg.Database.GalleryIndexPath)

	cfg.Web.Host = envString("WEB_HOST", cfg.Web.Host)
	cfg.Web.Port = envInt("WEB_PORT", cfg.Web.Port)
	cfg.Web.AllowedOrigins = envList("WEB_ALLOWED_ORIGINS", cfg.Web.AllowedOrigins)
	cfg.Web.RequestTimeoutSeconds = envInt("WEB_REQUEST_TIMEOUT", cfg.Web.RequestTimeoutSeconds)

	return cfg, nil
}

// ModelSpec resolves the configured backbone and autoencoder types.
func (c *Config) ModelSpec() (model.Spec, error) {
	return model.Resolve(c.Models.BackboneType, c.Models.AEType)
}

// ModelPaths returns the weight files to load. A models directory takes precedence
// over individual paths.
func (c *Config) ModelPaths() model.Paths {
	if c.Models.AllDir != "" {
		return model.Paths{
			Backbone:    filepath.Join(c.Models.AllDir, BackboneFile),
			Autoencoder: filepath.Join(c.Models.AllDir, AEFile),
			Classifier:  filepath.Join(c.Models.AllDir, ClassifierFile),
		}
	}
	return model.Paths{
		Backbone:    c.Models.BackbonePath,
		Autoencoder: c.Models.AEPath,
		Classifier:  c.Models.ClassifierPath,
	}
}

// ValidateForEval reports the first missing input an evaluation run needs.
func (c *Config) ValidateForEval() error {
	if c.Dataset.Dir == "" {
		return errors.New("please provide a dataset directory")
	}
	return c.ValidateModels()
}

// ValidateModels checks the model combination and evaluation options without
// requiring a dataset, for runs over stored embeddings.
func (c *Config) ValidateModels() error {
	if c.Models.AllDir == "" {
		if c.Models.AEPath == "" || c.Models.AEType == "" {
			return errors.New("please provide an autoencoder for evaluation")
		}
		if c.Models.ClassifierPath == "" {
			return errors.New("please provide a classifier for evaluation")
		}
		if c.Models.BackbonePath == "" || c.Models.BackboneType == "" {
			return errors.New("please provide a backbone for evaluation")
		}
	}
	if _, err := c.ModelSpec(); err != nil {
		return err
	}

	e := c.Evaluation
	if e.P <= 0 || e.K <= 0 || e.TopK <= 0 {
		return fmt.Errorf("invalid evaluation shape: P=%d K=%d top-k=%d", e.P, e.K, e.TopK)
	}
	if e.Threshold < 0 || e.Threshold > 1 {
		return fmt.Errorf("threshold %v outside [0, 1]", e.Threshold)
	}
	return nil
}
