package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/Allerac/allerac-one-sub001/internal/core/domain"
)

func vec(dim int, v float32) []float32 {
	out := make([]float32, dim)
	for i := range out {
		out[i] = v
	}
	return out
}

// embeddingServer answers each request with one vector per input, optionally
// in reverse index order.
func embeddingServer(t *testing.T, dim int, reverse bool) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/embeddings" {
			t.Errorf("expected /embeddings, got %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Error("expected Authorization header")
		}

		var req embeddingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}

		resp := embeddingResponse{Object: "list", Model: req.Model}
		for i := range req.Input {
			resp.Data = append(resp.Data, embeddingData{Object: "embedding", Index: i, Embedding: vec(dim, float32(i+1))})
		}
		if reverse {
			for i, j := 0, len(resp.Data)-1; i < j; i, j = i+1, j-1 {
				resp.Data[i], resp.Data[j] = resp.Data[j], resp.Data[i]
			}
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	return server, &calls
}

func TestNewOpenAIEmbedding_RequiresAPIKey(t *testing.T) {
	_, err := NewOpenAIEmbedding("", "text-embedding-3-small", "")
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestNewOpenAIEmbedding_Defaults(t *testing.T) {
	emb, err := NewOpenAIEmbedding("sk-test", "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if emb.Model() != "text-embedding-3-small" {
		t.Errorf("expected default model, got %s", emb.Model())
	}
	if emb.baseURL != "https://api.openai.com/v1" {
		t.Errorf("expected default base URL, got %s", emb.baseURL)
	}
	if emb.limiter != nil {
		t.Error("expected no rate limiter by default")
	}
}

func TestOpenAIEmbedding_Dimensions(t *testing.T) {
	testCases := []struct {
		model      string
		dimensions int
	}{
		{"text-embedding-3-small", 1536},
		{"text-embedding-3-large", 3072},
		{"text-embedding-ada-002", 1536},
		{"unknown-model", 1536},
	}

	for _, tc := range testCases {
		t.Run(tc.model, func(t *testing.T) {
			svc, err := NewOpenAIEmbedding("sk-test", tc.model, "")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if svc.Dimensions() != tc.dimensions {
				t.Errorf("expected dimensions %d, got %d", tc.dimensions, svc.Dimensions())
			}
		})
	}
}

func TestNewOpenAIEmbedding_DimensionOverride(t *testing.T) {
	emb, err := NewOpenAIEmbedding("sk-test", "text-embedding-3-large", "", WithDimensions(1536))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !emb.sendDimensions || emb.Dimensions() != 1536 {
		t.Errorf("expected shortened 1536-d vectors, got %d (send=%v)", emb.Dimensions(), emb.sendDimensions)
	}

	_, err = NewOpenAIEmbedding("sk-test", "text-embedding-ada-002", "", WithDimensions(768))
	if !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch for ada-002, got %v", err)
	}

	_, err = NewOpenAIEmbedding("sk-test", "text-embedding-3-small", "", WithDimensions(3072))
	if !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch when exceeding native size, got %v", err)
	}
}

func TestOpenAIEmbedding_EmbedBatch_PreservesOrder(t *testing.T) {
	server, _ := embeddingServer(t, 1536, true)
	defer server.Close()

	svc, err := NewOpenAIEmbedding("sk-test", "text-embedding-3-small", server.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := svc.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result) != 3 {
		t.Fatalf("expected 3 embeddings, got %d", len(result))
	}
	for i, emb := range result {
		if emb[0] != float32(i+1) {
			t.Errorf("embedding %d out of order: got first value %v", i, emb[0])
		}
	}
}

func TestOpenAIEmbedding_EmbedBatch_EmptyInput(t *testing.T) {
	svc, _ := NewOpenAIEmbedding("sk-test", "text-embedding-3-small", "")

	result, err := svc.EmbedBatch(context.Background(), nil)
	if err != nil || result != nil {
		t.Errorf("expected nil, nil for empty input, got %v, %v", result, err)
	}
}

func TestOpenAIEmbedding_Embed(t *testing.T) {
	server, _ := embeddingServer(t, 1536, false)
	defer server.Close()

	svc, _ := NewOpenAIEmbedding("sk-test", "text-embedding-3-small", server.URL)

	result, err := svc.Embed(context.Background(), "test query")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result) != 1536 {
		t.Errorf("expected 1536 dimensions, got %d", len(result))
	}

	if _, err := svc.Embed(context.Background(), "   "); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for blank text, got %v", err)
	}
}

func TestOpenAIEmbedding_SendsDimensionsForShortenedModels(t *testing.T) {
	var got int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embeddingRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		got = req.Dimensions
		_ = json.NewEncoder(w).Encode(embeddingResponse{Data: []embeddingData{{Index: 0, Embedding: vec(256, 1)}}})
	}))
	defer server.Close()

	svc, err := NewOpenAIEmbedding("sk-test", "text-embedding-3-small", server.URL, WithDimensions(256))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Embed(context.Background(), "x"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 256 {
		t.Errorf("expected dimensions=256 in request, got %d", got)
	}
}

func TestOpenAIEmbedding_Errors(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		body         string
		wantStatus   int
		rateLimited  bool
		unauthorized bool
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":{"message":"Invalid API key","type":"invalid_request_error","code":"invalid_api_key"}}`, 401, false, true},
		{"rate limited", http.StatusTooManyRequests, `{"error":{"message":"slow down","type":"requests"}}`, 429, true, false},
		{"server error", http.StatusInternalServerError, `oops`, 500, false, false},
		{"invalid json", http.StatusOK, `invalid json`, 200, false, false},
		{"missing items", http.StatusOK, `{"data":[]}`, 200, false, false},
		{"wrong length", http.StatusOK, `{"data":[{"index":0,"embedding":[0.1,0.2]}]}`, 200, false, false},
		{"index out of range", http.StatusOK, `{"data":[{"index":5,"embedding":[0.1]}]}`, 200, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			svc, _ := NewOpenAIEmbedding("sk-test", "text-embedding-3-small", server.URL)

			_, err := svc.EmbedBatch(context.Background(), []string{"test"})
			if !errors.Is(err, domain.ErrProvider) {
				t.Fatalf("expected ErrProvider, got %v", err)
			}
			var pe *domain.ProviderError
			if !errors.As(err, &pe) {
				t.Fatalf("expected *ProviderError, got %T", err)
			}
			if pe.StatusCode != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, pe.StatusCode)
			}
			if pe.RateLimited() != tt.rateLimited {
				t.Errorf("RateLimited() = %v", pe.RateLimited())
			}
			if pe.Unauthorized() != tt.unauthorized {
				t.Errorf("Unauthorized() = %v", pe.Unauthorized())
			}
		})
	}
}

func TestOpenAIEmbedding_WrongLengthIsDimensionMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"index":0,"embedding":[0.1,0.2]}]}`))
	}))
	defer server.Close()

	svc, _ := NewOpenAIEmbedding("sk-test", "text-embedding-3-small", server.URL)

	_, err := svc.Embed(context.Background(), "x")
	if !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch in chain, got %v", err)
	}
}

func TestOpenAIEmbedding_NetworkError(t *testing.T) {
	svc, _ := NewOpenAIEmbedding("sk-test", "text-embedding-3-small", "http://127.0.0.1:1")

	_, err := svc.Embed(context.Background(), "test")
	var pe *domain.ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ProviderError, got %v", err)
	}
	if pe.StatusCode != 0 {
		t.Errorf("expected status 0 for transport errors, got %d", pe.StatusCode)
	}
}

func TestOpenAIEmbedding_RateLimiterHonoursContext(t *testing.T) {
	server, calls := embeddingServer(t, 1536, false)
	defer server.Close()

	svc, _ := NewOpenAIEmbedding("sk-test", "text-embedding-3-small", server.URL, WithRateLimit(0.001))

	if _, err := svc.Embed(context.Background(), "first"); err != nil {
		t.Fatalf("first call should use the burst token: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := svc.Embed(ctx, "second"); err == nil {
		t.Error("expected error when waiting on the limiter with a cancelled context")
	}
	if atomic.LoadInt32(calls) != 1 {
		t.Errorf("expected 1 request to reach the server, got %d", atomic.LoadInt32(calls))
	}
}

func TestOpenAIEmbedding_HealthCheck(t *testing.T) {
	server, _ := embeddingServer(t, 1536, false)
	defer server.Close()

	svc, _ := NewOpenAIEmbedding("sk-test", "text-embedding-3-small", server.URL)

	if err := svc.HealthCheck(context.Background()); err != nil {
		t.Errorf("expected no error from health check, got %v", err)
	}
	if err := svc.Close(); err != nil {
		t.Errorf("expected no error from Close, got %v", err)
	}
}
