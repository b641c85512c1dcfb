package ai

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

	"golang.org/x/time/rate"

	"github.com/Allerac/allerac-one-sub001/internal/core/domain"
	"github.com/Allerac/allerac-one-sub001/internal/core/ports/driven"
)

// Ensure OpenAIEmbedding implements EmbeddingService
var _ driven.EmbeddingService = (*OpenAIEmbedding)(nil)

const providerOpenAI = "openai"

// OpenAIEmbedding implements EmbeddingService against the OpenAI-compatible
// /embeddings endpoint. It never retries; callers decide using ProviderError.
type OpenAIEmbedding struct {
	apiKey     string
	model      string
	baseURL    string
	dimensions int
	// sendDimensions asks the API to shorten vectors (text-embedding-3 models only)
	sendDimensions bool
	limiter        *rate.Limiter
	client         *http.Client
}

// Model dimensions for OpenAI embedding models
var openAIModelDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// DefaultEmbeddingDimensions is used for models missing from the table
const DefaultEmbeddingDimensions = 1536

// EmbeddingOption customises an OpenAIEmbedding
type EmbeddingOption func(*OpenAIEmbedding)

// WithDimensions fixes the vector length. For text-embedding-3 models the API is
// asked to return vectors of this length.
func WithDimensions(n int) EmbeddingOption {
	return func(e *OpenAIEmbedding) {
		if n > 0 {
			e.dimensions = n
		}
	}
}

// WithRateLimit caps outgoing requests per second. Zero or less disables the limit.
func WithRateLimit(requestsPerSecond float64) EmbeddingOption {
	return func(e *OpenAIEmbedding) {
		if requestsPerSecond > 0 {
			burst := int(requestsPerSecond)
			if burst < 1 {
				burst = 1
			}
			e.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
		}
	}
}

// WithHTTPClient replaces the default client (60s timeout)
func WithHTTPClient(c *http.Client) EmbeddingOption {
	return func(e *OpenAIEmbedding) {
		if c != nil {
			e.client = c
		}
	}
}

// ModelDimensions returns the native dimensionality of a known model
func ModelDimensions(model string) (int, bool) {
	d, ok := openAIModelDimensions[model]
	return d, ok
}

// NewOpenAIEmbedding creates a new OpenAI embedding service
func NewOpenAIEmbedding(apiKey, model, baseURL string, opts ...EmbeddingOption) (*OpenAIEmbedding, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: OpenAI API key is required", domain.ErrInvalidInput)
	}

	if model == "" {
		model = "text-embedding-3-small"
	}

	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}

	native, known := openAIModelDimensions[model]
	if !known {
		native = DefaultEmbeddingDimensions
	}

	e := &OpenAIEmbedding{
		apiKey:     apiKey,
		model:      model,
		baseURL:    strings.TrimRight(baseURL, "/"),
		dimensions: native,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.dimensions != native && known {
		if !strings.HasPrefix(model, "text-embedding-3") {
			return nil, fmt.Errorf("%w: model %s produces %d dimensions, configured %d",
				domain.ErrDimensionMismatch, model, native, e.dimensions)
		}
		if e.dimensions > native {
			return nil, fmt.Errorf("%w: model %s supports at most %d dimensions, configured %d",
				domain.ErrDimensionMismatch, model, native, e.dimensions)
		}
		e.sendDimensions = true
	}

	return e, nil
}

// embeddingRequest is the request body for OpenAI embedding API
type embeddingRequest struct {
	Input          []string `json:"input"`
	Model          string   `json:"model"`
	EncodingFormat string   `json:"encoding_format,omitempty"`
	Dimensions     int      `json:"dimensions,omitempty"`
}

type embeddingData struct {
	Object    string    `json:"object"`
	Index     int       `json:"index"`
	Embedding []float32 `json:"embedding"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    any    `json:"code"`
}

// embeddingResponse is the response from OpenAI embedding API
type embeddingResponse struct {
	Object string          `json:"object"`
	Data   []embeddingData `json:"data"`
	Model  string          `json:"model"`
	Usage  struct {
		PromptTokens int `json:"prompt_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
	Error *apiError `json:"error,omitempty"`
}

// Embed generates the embedding for a single text
func (e *OpenAIEmbedding) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: cannot embed empty text", domain.ErrInvalidInput)
	}
	embeddings, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// EmbedBatch generates embeddings for multiple texts in one request.
// The response is reordered by index so output i belongs to input i.
func (e *OpenAIEmbedding) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	reqBody := embeddingRequest{
		Input:          texts,
		Model:          e.model,
		EncodingFormat: "float",
	}
	if e.sendDimensions {
		reqBody.Dimensions = e.dimensions
	}

	resp, err := e.doRequest(ctx, reqBody)
	if err != nil {
		return nil, err
	}

	embeddings := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(embeddings) {
			return nil, e.fail(http.StatusOK, fmt.Errorf("response index %d out of range for %d inputs", d.Index, len(texts)))
		}
		if len(d.Embedding) != e.dimensions {
			return nil, e.fail(http.StatusOK, fmt.Errorf("%w: got %d, expected %d",
				domain.ErrDimensionMismatch, len(d.Embedding), e.dimensions))
		}
		embeddings[d.Index] = d.Embedding
	}
	for i, emb := range embeddings {
		if emb == nil {
			return nil, e.fail(http.StatusOK, fmt.Errorf("no embedding returned for input %d", i))
		}
	}

	return embeddings, nil
}

// Dimensions returns the embedding dimension size
func (e *OpenAIEmbedding) Dimensions() int {
	return e.dimensions
}

// Model returns the model name being used
func (e *OpenAIEmbedding) Model() string {
	return e.model
}

// HealthCheck verifies the embedding service is available
func (e *OpenAIEmbedding) HealthCheck(ctx context.Context) error {
	_, err := e.Embed(ctx, "health check")
	return err
}

// Close releases resources held by the embedding service
func (e *OpenAIEmbedding) Close() error {
	e.client.CloseIdleConnections()
	return nil
}

func (e *OpenAIEmbedding) fail(status int, err error) *domain.ProviderError {
	return domain.NewProviderError(providerOpenAI, "embeddings", status, err)
}

// doRequest makes a request to the OpenAI embedding API
func (e *OpenAIEmbedding) doRequest(ctx context.Context, reqBody embeddingRequest) (*embeddingResponse, error) {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("embedding rate limiter: %w", err)
		}
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, e.fail(0, fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, e.fail(resp.StatusCode, fmt.Errorf("failed to read response: %w", err))
	}

	var embResp embeddingResponse
	parseErr := json.Unmarshal(respBody, &embResp)

	if resp.StatusCode != http.StatusOK {
		if parseErr == nil && embResp.Error != nil {
			return nil, e.fail(resp.StatusCode, fmt.Errorf("%s (type: %s)", embResp.Error.Message, embResp.Error.Type))
		}
		return nil, e.fail(resp.StatusCode, fmt.Errorf("unexpected status %s", resp.Status))
	}

	if parseErr != nil {
		return nil, e.fail(resp.StatusCode, fmt.Errorf("failed to parse response: %w", parseErr))
	}
	if embResp.Error != nil {
		return nil, e.fail(resp.StatusCode, fmt.Errorf("%s (type: %s)", embResp.Error.Message, embResp.Error.Type))
	}

	return &embResp, nil
}
