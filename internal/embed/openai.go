package embed

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sashabaranov/go-openai"
)

// AuthMode selects how the API key is attached to outbound requests.
type AuthMode string

const (
	// AuthModeAuto picks bearer auth, or api-key auth when AzureDeployment is set.
	AuthModeAuto AuthMode = "auto"
	// AuthModeBearer sends "Authorization: Bearer <key>".
	AuthModeBearer AuthMode = "bearer"
	// AuthModeAPIKey sends "api-key: <key>" instead of an Authorization header.
	AuthModeAPIKey AuthMode = "api-key"
)

// OpenAIConfig configures the OpenAI-compatible embedder.
type OpenAIConfig struct {
	// BaseURL overrides the API host; empty uses the public OpenAI endpoint.
	// For Azure OpenAI, this is the resource endpoint
	// (https://<resource>.openai.azure.com).
	BaseURL string

	// APIKey authenticates requests.
	APIKey string

	// Model is the embedding model or, for Azure, the deployment name used
	// in the request body.
	Model string

	// AzureDeployment switches the client into Azure OpenAI mode, using the
	// deployment name for URL construction instead of the model field.
	AzureDeployment string

	// AzureAPIVersion is the Azure REST api-version query parameter.
	AzureAPIVersion string

	// AuthMode selects the auth header strategy (default: auto).
	AuthMode AuthMode

	// Dimensions overrides auto-detection (0 = auto-detect from first call).
	Dimensions int

	// BatchSize for batch embedding requests.
	BatchSize int

	// Timeout for API requests.
	Timeout time.Duration

	// MaxRetries for transient failures.
	MaxRetries int
}

// DefaultOpenAIConfig returns sensible defaults.
func DefaultOpenAIConfig() OpenAIConfig {
	return OpenAIConfig{
		Model:      "text-embedding-3-small",
		AuthMode:   AuthModeAuto,
		BatchSize:  DefaultBatchSize,
		Timeout:    DefaultTimeout,
		MaxRetries: DefaultMaxRetries,
	}
}

// OpenAIEmbedder generates embeddings via an OpenAI-compatible HTTP API,
// including Azure OpenAI deployments.
type OpenAIEmbedder struct {
	client *openai.Client
	config OpenAIConfig

	mu     sync.RWMutex
	dims   int
	closed bool
}

var _ Embedder = (*OpenAIEmbedder)(nil)

// apiKeyHeaderTransport rewrites bearer auth into an "api-key" header, which
// is what non-Azure gateways speaking the OpenAI wire format sometimes
// expect (authMode=api-key).
type apiKeyHeaderTransport struct {
	apiKey string
	base   http.RoundTripper
}

func (t *apiKeyHeaderTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Del("Authorization")
	req.Header.Set("api-key", t.apiKey)
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req)
}

// NewOpenAIEmbedder creates a new OpenAI-compatible embedder.
func NewOpenAIEmbedder(ctx context.Context, cfg OpenAIConfig) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.AuthMode == "" {
		cfg.AuthMode = AuthModeAuto
	}

	httpClient := &http.Client{Timeout: cfg.Timeout}

	var clientConfig openai.ClientConfig
	if cfg.AzureDeployment != "" {
		clientConfig = openai.DefaultAzureConfig(cfg.APIKey, cfg.BaseURL)
		clientConfig.APIVersion = cfg.AzureAPIVersion
		if clientConfig.APIVersion == "" {
			clientConfig.APIVersion = "2024-02-01"
		}
		clientConfig.AzureModelMapperFunc = func(string) string {
			return cfg.AzureDeployment
		}
	} else {
		clientConfig = openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			clientConfig.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
		}
		if cfg.AuthMode == AuthModeAPIKey {
			httpClient.Transport = &apiKeyHeaderTransport{apiKey: cfg.APIKey}
		}
	}
	clientConfig.HTTPClient = httpClient

	e := &OpenAIEmbedder{
		client: openai.NewClientWithConfig(clientConfig),
		config: cfg,
		dims:   cfg.Dimensions,
	}

	if e.dims == 0 {
		dims, err := e.detectDimensions(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to detect embedding dimensions: %w", err)
		}
		e.dims = dims
	}

	return e, nil
}

func (e *OpenAIEmbedder) detectDimensions(ctx context.Context) (int, error) {
	checkCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	embeddings, err := e.doEmbed(checkCtx, []string{"dimension detection"})
	if err != nil {
		return 0, err
	}
	if len(embeddings) == 0 || len(embeddings[0]) == 0 {
		return 0, fmt.Errorf("empty embedding returned")
	}
	return len(embeddings[0]), nil
}

// Embed generates an embedding for a single text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, fmt.Errorf("embedder is closed")
	}

	if strings.TrimSpace(text) == "" {
		return make([]float32, e.dims), nil
	}

	embeddings, err := e.doEmbedWithRetry(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}
	return embeddings[0], nil
}

// EmbedBatch generates embeddings for multiple texts.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, fmt.Errorf("embedder is closed")
	}

	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	type indexedText struct {
		idx  int
		text string
	}
	var nonEmpty []indexedText
	results := make([][]float32, len(texts))

	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			results[i] = make([]float32, e.dims)
		} else {
			nonEmpty = append(nonEmpty, indexedText{i, text})
		}
	}
	if len(nonEmpty) == 0 {
		return results, nil
	}

	for start := 0; start < len(nonEmpty); start += e.config.BatchSize {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		end := start + e.config.BatchSize
		if end > len(nonEmpty) {
			end = len(nonEmpty)
		}
		batch := nonEmpty[start:end]
		batchTexts := make([]string, len(batch))
		for i, it := range batch {
			batchTexts[i] = it.text
		}

		embeddings, err := e.doEmbedWithRetry(ctx, batchTexts)
		if err != nil {
			return nil, fmt.Errorf("failed to embed batch: %w", err)
		}
		for i, emb := range embeddings {
			results[batch[i].idx] = emb
		}
	}

	return results, nil
}

func (e *OpenAIEmbedder) doEmbedWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error
	for attempt := 0; attempt < e.config.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		if attempt > 0 {
			backoff := time.Duration(100<<attempt) * time.Millisecond
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		embeddings, err := e.doEmbed(ctx, texts)
		if err == nil {
			return embeddings, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("failed after %d attempts: %w", e.config.MaxRetries, lastErr)
}

func (e *OpenAIEmbedder) doEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	model := e.config.Model
	if e.config.AzureDeployment != "" {
		model = e.config.AzureDeployment
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(model),
	})
	if err != nil {
		return nil, err
	}

	embeddings := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		embeddings[i] = normalizeVector(d.Embedding)
	}
	return embeddings, nil
}

// Dimensions returns the embedding dimension.
func (e *OpenAIEmbedder) Dimensions() int { return e.dims }

// ModelName returns the model identifier.
func (e *OpenAIEmbedder) ModelName() string {
	if e.config.AzureDeployment != "" {
		return e.config.AzureDeployment
	}
	return e.config.Model
}

// Available checks whether the endpoint accepts a trivial embedding call.
func (e *OpenAIEmbedder) Available(ctx context.Context) bool {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return false
	}
	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := e.doEmbed(checkCtx, []string{"ping"})
	return err == nil
}

// Close releases resources. The OpenAI client has no persistent connections
// to tear down beyond what the HTTP client's idle pool already manages.
func (e *OpenAIEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

// SetBatchIndex is a no-op; OpenAI-compatible endpoints are not subject to
// the thermal throttling the Ollama adapter compensates for.
func (e *OpenAIEmbedder) SetBatchIndex(idx int) {}

// SetFinalBatch is a no-op; see SetBatchIndex.
func (e *OpenAIEmbedder) SetFinalBatch(isFinal bool) {}
