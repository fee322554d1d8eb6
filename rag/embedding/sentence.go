package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// SentenceConfig configures the pretrained sentence-embedding provider,
// served by an Ollama-compatible local inference server.
type SentenceConfig struct {
	// BaseURL of the inference server, e.g. "http://localhost:11434".
	BaseURL string `json:"base_url" yaml:"base_url"`
	// Model is the embedding model name, e.g. "nomic-embed-text".
	Model string `json:"model" yaml:"model"`
	// Timeout bounds a single embedding call.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// DefaultSentenceConfig returns defaults for a local Ollama instance.
func DefaultSentenceConfig() SentenceConfig {
	return SentenceConfig{
		BaseURL: "http://localhost:11434",
		Model:   "nomic-embed-text",
		Timeout: 30 * time.Second,
	}
}

// SentenceProvider produces fixed-length dense vectors from a pretrained
// sentence model. It is an optional capability: when the server cannot be
// reached at construction time the engine runs lexical-only.
type SentenceProvider struct {
	config    SentenceConfig
	client    *http.Client
	dimension int
	logger    *zap.Logger
}

type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResponse struct {
	Embedding []float64 `json:"embedding"`
}

// NewSentenceProvider probes the inference server with a short embed call to
// verify availability and learn the vector dimension. Returns
// [ErrUnavailable] (wrapped) when the server or model cannot serve.
func NewSentenceProvider(ctx context.Context, config SentenceConfig, logger *zap.Logger) (*SentenceProvider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434"
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	p := &SentenceProvider{
		config: config,
		client: &http.Client{},
		logger: logger.With(zap.String("component", "sentence_embedding")),
	}

	probe, err := p.embed(ctx, "tenaga")
	if err != nil {
		return nil, fmt.Errorf("%w: probing %s: %v", ErrUnavailable, config.BaseURL, err)
	}
	p.dimension = len(probe)

	p.logger.Info("sentence embedding model available",
		zap.String("model", config.Model),
		zap.Int("dimension", p.dimension))
	return p, nil
}

// Name identifies the provider.
func (p *SentenceProvider) Name() string { return "sentence:" + p.config.Model }

// Dimension returns the fixed vector length learned at probe time.
func (p *SentenceProvider) Dimension() int { return p.dimension }

// EmbedQuery embeds a single text. Deadline overruns surface as [ErrTimeout].
func (p *SentenceProvider) EmbedQuery(ctx context.Context, text string) ([]float64, error) {
	vec, err := p.embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(vec) != p.dimension {
		return nil, fmt.Errorf("embedding dimension changed: got %d, want %d", len(vec), p.dimension)
	}
	return vec, nil
}

// EmbedCorpus embeds each text in order. The model is fixed and pretrained,
// so no corpus-wide fitting is involved.
func (p *SentenceProvider) EmbedCorpus(ctx context.Context, texts []string) ([][]float64, error) {
	rows := make([][]float64, len(texts))
	for i, text := range texts {
		vec, err := p.EmbedQuery(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embedding text %d/%d: %w", i+1, len(texts), err)
		}
		rows[i] = vec
	}
	return rows, nil
}

func (p *SentenceProvider) embed(ctx context.Context, text string) ([]float64, error) {
	body, err := json.Marshal(embedRequest{Model: p.config.Model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("marshal embedding request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.config.BaseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: after %s", ErrTimeout, p.config.Timeout)
		}
		return nil, fmt.Errorf("embedding request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("embedding request: %s: %s", resp.Status, strings.TrimSpace(string(raw)))
	}

	var parsed embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("parse embedding response: %w", err)
	}
	if len(parsed.Embedding) == 0 {
		return nil, fmt.Errorf("embedding response returned empty vector")
	}
	return parsed.Embedding, nil
}
