package model

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/kozaktomas/reid-eval/internal/sampler"
)

const defaultInferenceURL = "http://localhost:8000"

// Paths points the inference server at trained weights.
type Paths struct {
	Backbone    string
	Autoencoder string
	Classifier  string
}

// Client calls the inference server hosting the backbone, autoencoder and classifier.
type Client struct {
	baseURL string
	spec    Spec
	client  *http.Client
}

// NewClient creates a client for one resolved model combination.
func NewClient(baseURL string, spec Spec, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = defaultInferenceURL
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		spec:    spec,
		client:  &http.Client{Timeout: timeout},
	}
}

// Spec returns the model combination the client was created for.
func (c *Client) Spec() Spec {
	return c.spec
}

type loadRequest struct {
	Backbone        Backbone    `json:"backbone"`
	BackbonePath    string      `json:"backbone_path"`
	Autoencoder     Autoencoder `json:"autoencoder"`
	AutoencoderPath string      `json:"autoencoder_path"`
	ClassifierPath  string      `json:"classifier_path"`
}

// Load asks the server to load the weights for the client's spec. It is called once
// before any embedding or classification request.
func (c *Client) Load(ctx context.Context, paths Paths) error {
	body, err := json.Marshal(loadRequest{
		Backbone:        c.spec.Backbone,
		BackbonePath:    paths.Backbone,
		Autoencoder:     c.spec.Autoencoder,
		AutoencoderPath: paths.Autoencoder,
		ClassifierPath:  paths.Classifier,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	if _, err := c.postJSON(ctx, "/models/load", body); err != nil {
		return fmt.Errorf("loading models: %w", err)
	}
	return nil
}

type embedResponse struct {
	Dim        int         `json:"dim"`
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed runs backbone and autoencoder over a batch of preprocessed images and returns
// one embedding per image. Auxiliary outputs such as reconstructions are not returned.
func (c *Client) Embed(ctx context.Context, images [][]byte) ([][]float32, error) {
	if len(images) == 0 {
		return nil, errors.New("no images to embed")
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if err := writer.WriteField("backbone", string(c.spec.Backbone)); err != nil {
		return nil, fmt.Errorf("failed to write form field: %w", err)
	}
	if err := writer.WriteField("autoencoder", string(c.spec.Autoencoder)); err != nil {
		return nil, fmt.Errorf("failed to write form field: %w", err)
	}
	for i, img := range images {
		part, err := writer.CreateFormFile("files", fmt.Sprintf("image_%d.jpg", i))
		if err != nil {
			return nil, fmt.Errorf("failed to create form file: %w", err)
		}
		if _, err := part.Write(img); err != nil {
			return nil, fmt.Errorf("failed to write image data: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embed/batch", &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var resp embedResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(resp.Embeddings) != len(images) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(images), len(resp.Embeddings))
	}
	for i, e := range resp.Embeddings {
		if len(e) == 0 || (resp.Dim > 0 && len(e) != resp.Dim) || len(e) != len(resp.Embeddings[0]) {
			return nil, fmt.Errorf("embedding %d has dimension %d, want %d", i, len(e), resp.Dim)
		}
	}
	return resp.Embeddings, nil
}

type classifyPair struct {
	A []float32 `json:"a"`
	B []float32 `json:"b"`
}

type classifyRequest struct {
	Pairs []classifyPair `json:"pairs"`
}

type classifyResponse struct {
	Probabilities []float64 `json:"probabilities"`
}

// Classify returns the probability that each pair shows the same person.
func (c *Client) Classify(ctx context.Context, pairs []sampler.Pair) ([]float64, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	reqBody := classifyRequest{Pairs: make([]classifyPair, len(pairs))}
	for i, p := range pairs {
		reqBody.Pairs[i] = classifyPair{A: p.A, B: p.B}
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	respBody, err := c.postJSON(ctx, "/classify", body)
	if err != nil {
		return nil, err
	}

	var resp classifyResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(resp.Probabilities) != len(pairs) {
		return nil, fmt.Errorf("expected %d probabilities, got %d", len(pairs), len(resp.Probabilities))
	}
	for i, p := range resp.Probabilities {
		if p < 0 || p > 1 {
			return nil, fmt.Errorf("probability %d out of range: %v", i, p)
		}
	}
	return resp.Probabilities, nil
}

func (c *Client) postJSON(ctx context.Context, endpoint string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}
	return body, nil
}
