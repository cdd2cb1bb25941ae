package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"ideasystemx-go/pkg/errs"
	"ideasystemx-go/pkg/vectordb"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingClient struct {
	calls atomic.Int32
	err   error
}

func (c *countingClient) Model() string { return "stub-model" }

func (c *countingClient) CreateEmbedding(_ context.Context, text string) ([]float32, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return []float32{float32(len(text)), 1}, nil
}

func TestNewClient_UnknownProvider(t *testing.T) {
	_, err := NewClient(Config{Provider: "nope"})
	require.ErrorIs(t, err, errs.ErrProviderUnavailable)
	assert.False(t, Supports("anthropic"))
}

func TestProviders_Registered(t *testing.T) {
	assert.Equal(t, []string{"azure", "compatible", "gemini", "ollama", "openai"}, Providers())
}

func TestAzureRequiresEndpoint(t *testing.T) {
	_, err := NewClient(Config{Provider: "azure", APIKey: "k", Model: "m"})
	require.ErrorIs(t, err, errs.ErrValidation)
}

func TestLocalClient(t *testing.T) {
	c := NewLocalClient(1536)
	ctx := context.Background()

	a, err := c.CreateEmbedding(ctx, "grocery list: milk, eggs, bread")
	require.NoError(t, err)
	require.Len(t, a, 1536)
	assert.InDelta(t, 1.0, vectordb.CosineSimilarity(a, a), 1e-6)

	again, err := c.CreateEmbedding(ctx, "grocery list: milk, eggs, bread")
	require.NoError(t, err)
	assert.Equal(t, a, again, "deterministic")

	near, err := c.CreateEmbedding(ctx, "buy milk and eggs")
	require.NoError(t, err)
	far, err := c.CreateEmbedding(ctx, "refactor kubernetes operator")
	require.NoError(t, err)
	assert.Greater(t, vectordb.CosineSimilarity(a, near), vectordb.CosineSimilarity(a, far))

	empty, err := c.CreateEmbedding(ctx, "")
	require.NoError(t, err)
	assert.Len(t, empty, 1536)
	assert.Equal(t, LocalModel, c.Model())
}

func TestCachedClient(t *testing.T) {
	stub := &countingClient{}
	c, err := NewCachedClient(stub, "stub", 16)
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	v1, err := c.CreateEmbedding(ctx, "hello")
	require.NoError(t, err)
	v2, err := c.CreateEmbedding(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, v1, v2)
	assert.Equal(t, int32(1), stub.calls.Load())

	// 返回值被修改不影响缓存
	v2[0] = 99
	v3, err := c.CreateEmbedding(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, float32(5), v3[0])

	_, err = c.CreateEmbedding(ctx, "world")
	require.NoError(t, err)
	assert.Equal(t, int32(2), stub.calls.Load())

	// 两条都已缓存
	_, err = c.CreateEmbedding(ctx, "world")
	require.NoError(t, err)
	_, err = c.CreateEmbedding(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, int32(2), stub.calls.Load())
}

func TestCachedClient_ErrorsAreNotCached(t *testing.T) {
	stub := &countingClient{err: errors.New("boom")}
	c, err := NewCachedClient(stub, "stub", 16)
	require.NoError(t, err)
	defer c.Close()

	for i := 0; i < 2; i++ {
		_, err = c.CreateEmbedding(context.Background(), "hello")
		require.Error(t, err)
	}
	assert.Equal(t, int32(2), stub.calls.Load())
}

func TestCompatibleClient(t *testing.T) {
	var got embeddingRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"data":[{"embedding":[0.5,0.25,0.125]}]}`))
	}))
	defer srv.Close()

	c, err := NewClient(Config{Provider: "compatible", APIKey: "secret", Model: "embed-v1", Endpoint: srv.URL + "/v1/", Dimensions: 3})
	require.NoError(t, err)

	vec, err := c.CreateEmbedding(context.Background(), "note")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.25, 0.125}, vec)
	assert.Equal(t, "embed-v1", got.Model)
	assert.Equal(t, []string{"note"}, got.Input)
	assert.Equal(t, 3, got.Dimensions)
}

func TestCompatibleClient_Non200IsProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c, err := NewClient(Config{Provider: "compatible", Model: "m", Endpoint: srv.URL})
	require.NoError(t, err)
	_, err = c.CreateEmbedding(context.Background(), "note")
	require.ErrorIs(t, err, errs.ErrProvider)
}
