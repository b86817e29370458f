package embedder

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// Provider configuration
const (
	ProviderJina   = "jina"
	ProviderOpenAI = "openai"
	ProviderLocal  = "local"

	// Default models
	DefaultJinaModel   = "jina-clip-v2"
	DefaultOpenAIModel = "text-embedding-3-small"
	DefaultLocalModel  = "local-hashed-tokens"

	// Dimensions
	JinaDimension   = 1024
	OpenAIDimension = 1536
	LocalDimension  = 384

	// API endpoints
	JinaEndpoint   = "https://api.jina.ai/v1/embeddings"
	OpenAIEndpoint = "https://api.openai.com/v1/embeddings"

	// Environment variables holding API keys
	EnvJinaAPIKey   = "JINA_API_KEY"
	EnvOpenAIAPIKey = "OPENAI_API_KEY"

	// Retry configuration
	MaxRetries        = 3
	InitialBackoffMs  = 100
	MaxBackoffMs      = 5000
	BackoffMultiplier = 2.0
)

// ProviderOption customizes an HTTP provider
type ProviderOption func(*httpProvider)

// WithModel overrides the provider's default model
func WithModel(model string) ProviderOption {
	return func(p *httpProvider) {
		if model != "" {
			p.model = model
		}
	}
}

// WithEndpoint points the provider at a different API URL
func WithEndpoint(url string) ProviderOption {
	return func(p *httpProvider) {
		p.endpoint = url
	}
}

// WithDimension overrides the expected embedding dimension
func WithDimension(dim int) ProviderOption {
	return func(p *httpProvider) {
		if dim > 0 {
			p.dimension = dim
		}
	}
}

// WithRetryConfig overrides the default backoff policy
func WithRetryConfig(cfg RetryConfig) ProviderOption {
	return func(p *httpProvider) {
		p.retry = cfg
	}
}

// httpProvider holds the parts shared by the OpenAI-compatible embedding APIs
type httpProvider struct {
	name       string
	apiKey     string
	model      string
	endpoint   string
	dimension  int
	retry      RetryConfig
	httpClient *http.Client
	// extra request fields, e.g. Jina's "normalized"
	extra map[string]interface{}
}

func newHTTPProvider(name, apiKey, model, endpoint string, dim int, opts []ProviderOption) *httpProvider {
	p := &httpProvider{
		name:      name,
		apiKey:    apiKey,
		model:     model,
		endpoint:  endpoint,
		dimension: dim,
		retry:     DefaultRetryConfig(),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *httpProvider) generate(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	model := req.Model
	if model == "" {
		model = p.model
	}

	// Use retry logic with exponential backoff
	emb, err := retryWithBackoff(ctx, p.retry, func() (*Embedding, error) {
		return p.callAPI(ctx, req.Text, model)
	})
	if err != nil {
		return nil, fmt.Errorf("%w after %d retries: %v", ErrProviderFailed, p.retry.MaxRetries, err)
	}
	return emb, nil
}

func (p *httpProvider) callAPI(ctx context.Context, text, model string) (*Embedding, error) {
	reqBody := map[string]interface{}{
		"input": []string{text},
		"model": model,
	}
	for k, v := range p.extra {
		reqBody[k] = v
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("api error %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var apiResp struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
		Model string `json:"model"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if len(apiResp.Data) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}

	vector := apiResp.Data[0].Embedding
	if len(vector) != p.dimension {
		return nil, fmt.Errorf("expected %d dimensions, got %d", p.dimension, len(vector))
	}

	respModel := apiResp.Model
	if respModel == "" {
		respModel = model
	}

	return &Embedding{
		Vector:    vector,
		Dimension: len(vector),
		Provider:  p.name,
		Model:     respModel,
	}, nil
}

// JinaProvider implements Embedder using Jina AI API
type JinaProvider struct {
	*httpProvider
}

// NewJinaProvider creates a new Jina AI embedder. An empty apiKey falls back to JINA_API_KEY.
func NewJinaProvider(apiKey string, opts ...ProviderOption) (*JinaProvider, error) {
	if apiKey == "" {
		apiKey = os.Getenv(EnvJinaAPIKey)
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: %s not set", ErrNoProviderEnabled, EnvJinaAPIKey)
	}

	p := newHTTPProvider(ProviderJina, apiKey, DefaultJinaModel, JinaEndpoint, JinaDimension, opts)
	p.extra = map[string]interface{}{"normalized": true}
	return &JinaProvider{httpProvider: p}, nil
}

func (j *JinaProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	return j.generate(ctx, req)
}

func (j *JinaProvider) Dimension() int {
	return j.dimension
}

func (j *JinaProvider) Provider() string {
	return ProviderJina
}

func (j *JinaProvider) Model() string {
	return j.model
}

func (j *JinaProvider) Close() error {
	j.httpClient.CloseIdleConnections()
	return nil
}

// OpenAIProvider implements Embedder using OpenAI API
type OpenAIProvider struct {
	*httpProvider
}

// NewOpenAIProvider creates a new OpenAI embedder. An empty apiKey falls back to OPENAI_API_KEY.
func NewOpenAIProvider(apiKey string, opts ...ProviderOption) (*OpenAIProvider, error) {
	if apiKey == "" {
		apiKey = os.Getenv(EnvOpenAIAPIKey)
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: %s not set", ErrNoProviderEnabled, EnvOpenAIAPIKey)
	}

	p := newHTTPProvider(ProviderOpenAI, apiKey, DefaultOpenAIModel, OpenAIEndpoint, OpenAIDimension, opts)
	return &OpenAIProvider{httpProvider: p}, nil
}

func (o *OpenAIProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	return o.generate(ctx, req)
}

func (o *OpenAIProvider) Dimension() int {
	return o.dimension
}

func (o *OpenAIProvider) Provider() string {
	return ProviderOpenAI
}

func (o *OpenAIProvider) Model() string {
	return o.model
}

func (o *OpenAIProvider) Close() error {
	o.httpClient.CloseIdleConnections()
	return nil
}

// LocalProvider produces deterministic embeddings without a model by hashing
// each whitespace-separated token into a bucket. Texts sharing tokens get
// similar vectors, which is enough for development and tests.
type LocalProvider struct {
	model     string
	dimension int
}

// NewLocalProvider creates a local embedder; dim <= 0 uses LocalDimension
func NewLocalProvider(dim int) (*LocalProvider, error) {
	if dim <= 0 {
		dim = LocalDimension
	}
	return &LocalProvider{
		model:     DefaultLocalModel,
		dimension: dim,
	}, nil
}

func (l *LocalProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vector := make([]float32, l.dimension)
	for _, token := range strings.Fields(strings.ToLower(req.Text)) {
		h := sha256.Sum256([]byte(token))
		bucket := binary.LittleEndian.Uint32(h[:4]) % uint32(l.dimension)
		sign := float32(1)
		if h[4]&1 == 1 {
			sign = -1
		}
		vector[bucket] += sign
	}

	return &Embedding{
		Vector:    NormalizeVector(vector),
		Dimension: l.dimension,
		Provider:  ProviderLocal,
		Model:     l.model,
	}, nil
}

func (l *LocalProvider) Dimension() int {
	return l.dimension
}

func (l *LocalProvider) Provider() string {
	return ProviderLocal
}

func (l *LocalProvider) Model() string {
	return l.model
}

func (l *LocalProvider) Close() error {
	return nil
}
