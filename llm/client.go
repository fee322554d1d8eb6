package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ujana-my/tenaga/internal/metrics"
)

// ErrUnavailable LLM 服务不可达。
var ErrUnavailable = errors.New("llm: service unavailable")

// Config LLM 客户端配置
type Config struct {
	BaseURL     string        `yaml:"base_url" json:"base_url"`
	Model       string        `yaml:"model" json:"model"`
	Timeout     time.Duration `yaml:"timeout" json:"timeout"`
	Temperature float64       `yaml:"temperature" json:"temperature"`
	TopP        float64       `yaml:"top_p" json:"top_p"`
	TopK        int           `yaml:"top_k" json:"top_k"`
	NumPredict  int           `yaml:"num_predict" json:"num_predict"`
}

// DefaultConfig 默认配置：本地 Ollama，低温度偏事实性输出。
func DefaultConfig() Config {
	return Config{
		BaseURL:     "http://localhost:11434",
		Model:       "llama3.1",
		Timeout:     120 * time.Second,
		Temperature: 0.1,
		TopP:        0.9,
		TopK:        40,
		NumPredict:  2048,
	}
}

// Client Ollama 生成客户端
type Client struct {
	config    Config
	http      *http.Client
	collector *metrics.Collector
	logger    *zap.Logger
}

// ClientOption 客户端可选配置。
type ClientOption func(*Client)

// WithMetrics 启用 LLM 请求指标。
func WithMetrics(collector *metrics.Collector) ClientOption {
	return func(c *Client) { c.collector = collector }
}

// WithHTTPClient 替换底层 HTTP 客户端（测试使用）。
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// NewClient 创建 LLM 客户端。
func NewClient(config Config, logger *zap.Logger, opts ...ClientOption) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultConfig().BaseURL
	}
	if config.Model == "" {
		config.Model = DefaultConfig().Model
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultConfig().Timeout
	}

	c := &Client{
		config: config,
		http:   &http.Client{Timeout: config.Timeout},
		logger: logger.With(zap.String("component", "llm_client")),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type generateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

func (c *Client) options() map[string]any {
	return map[string]any{
		"temperature": c.config.Temperature,
		"top_p":       c.config.TopP,
		"top_k":       c.config.TopK,
		"num_predict": c.config.NumPredict,
	}
}

// Generate 同步生成：返回完整回答文本。
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	body, err := json.Marshal(generateRequest{
		Model:   c.config.Model,
		Prompt:  prompt,
		Stream:  false,
		Options: c.options(),
	})
	if err != nil {
		return "", fmt.Errorf("llm: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.config.BaseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("llm: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.observe("error", start)
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.observe("error", start)
		return "", fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		c.observe("error", start)
		return "", fmt.Errorf("llm: decode response: %w", err)
	}

	c.observe("ok", start)
	return out.Response, nil
}

// GenerateStream 流式生成：每个增量片段回调一次 fn，
// 收到 done 标记或上下文取消时结束。
func (c *Client) GenerateStream(ctx context.Context, prompt string, fn func(chunk string) error) error {
	start := time.Now()
	body, err := json.Marshal(generateRequest{
		Model:   c.config.Model,
		Prompt:  prompt,
		Stream:  true,
		Options: c.options(),
	})
	if err != nil {
		return fmt.Errorf("llm: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.config.BaseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("llm: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.observe("error", start)
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.observe("error", start)
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var chunk generateResponse
		if err := json.Unmarshal(line, &chunk); err != nil {
			// 跳过无法解析的行，流式协议容忍部分噪声。
			continue
		}
		if chunk.Response != "" {
			if err := fn(chunk.Response); err != nil {
				c.observe("aborted", start)
				return err
			}
		}
		if chunk.Done {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		c.observe("error", start)
		return fmt.Errorf("llm: read stream: %w", err)
	}

	c.observe("ok", start)
	return nil
}

// Available 探测服务可用性。
func (c *Client) Available(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// ModelInfo 服务端已安装的模型信息。
type ModelInfo struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modified_at"`
}

type tagsResponse struct {
	Models []ModelInfo `json:"models"`
}

// ModelInfo 返回配置模型的信息，服务端未安装时返回 ErrUnavailable。
func (c *Client) ModelInfo(ctx context.Context) (ModelInfo, error) {
	models, err := c.Models(ctx)
	if err != nil {
		return ModelInfo{}, err
	}
	for _, m := range models {
		if m.Name == c.config.Model || strings.TrimSuffix(m.Name, ":latest") == c.config.Model {
			return m, nil
		}
	}
	return ModelInfo{}, fmt.Errorf("%w: model %q not installed", ErrUnavailable, c.config.Model)
}

// Models 列出服务端全部已安装模型。
func (c *Client) Models(ctx context.Context) ([]ModelInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("llm: build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var out tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("llm: decode tags response: %w", err)
	}
	return out.Models, nil
}

func (c *Client) observe(status string, start time.Time) {
	if c.collector != nil {
		c.collector.LLMObserved(c.config.Model, status, time.Since(start))
	}
}
