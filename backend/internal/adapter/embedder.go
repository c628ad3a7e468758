package adapter

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	apperrors "notegraph/backend/pkg/errors"
	"notegraph/backend/pkg/logger"
)

// Embedder generates vector embeddings for text
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
	Dimensions() int
}

// OpenAIEmbedder calls an OpenAI-compatible embeddings endpoint through the
// same LiteLLM gateway the chat models use.
type OpenAIEmbedder struct {
	client *openai.Client
	model  string
	dims   int
	logger *zap.Logger
}

// NewOpenAIEmbedder creates a new embedder
func NewOpenAIEmbedder(baseURL, apiKey, model string, dims int) *OpenAIEmbedder {
	if apiKey == "" {
		apiKey = "dummy-key"
	}

	config := openai.DefaultConfig(apiKey)
	config.BaseURL = baseURL + "/v1"

	return &OpenAIEmbedder{
		client: openai.NewClientWithConfig(config),
		model:  model,
		dims:   dims,
		logger: logger.Named("embedder"),
	}
}

func (o *OpenAIEmbedder) Model() string   { return o.model }
func (o *OpenAIEmbedder) Dimensions() int { return o.dims }

// Embed returns the embedding vector for a single text
func (o *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := o.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds several texts in one request, preserving input order
func (o *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      texts,
		Model:      openai.EmbeddingModel(o.model),
		Dimensions: o.dims,
	})
	if err != nil {
		o.logger.Error("Embedding request failed",
			zap.Error(err),
			zap.String("model", o.model),
			zap.Int("texts", len(texts)),
		)
		return nil, apperrors.NewUpstreamFailed("embeddings", 1, err)
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	vecs := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(vecs) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		vecs[d.Index] = d.Embedding
	}

	return vecs, nil
}

// CosineSimilarity computes the cosine of the angle between two vectors.
// Mismatched or empty vectors score zero.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}
	return dot / denom
}

// DocVector pairs a document's embedding with the text shown when it matches
type DocVector struct {
	Vector  []float32
	Content string
}

// VectorCache holds per-user document embeddings in memory. The embedding
// sync job fills it and note writes invalidate the owning user's slot, so a
// vector search never embeds the whole corpus on the request path.
type VectorCache struct {
	mu      sync.RWMutex
	vectors map[string]map[string]DocVector
}

// NewVectorCache creates an empty cache
func NewVectorCache() *VectorCache {
	return &VectorCache{
		vectors: make(map[string]map[string]DocVector),
	}
}

// Get returns a copy of the user's document vectors and whether the user has
// a cached slot at all.
func (c *VectorCache) Get(userID string) (map[string]DocVector, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	docs, ok := c.vectors[userID]
	if !ok {
		return nil, false
	}

	out := make(map[string]DocVector, len(docs))
	for id, doc := range docs {
		out[id] = doc
	}
	return out, true
}

// Put replaces the user's cached document vectors
func (c *VectorCache) Put(userID string, docs map[string]DocVector) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vectors[userID] = docs
}

// Invalidate drops the user's slot so the next search or sync rebuilds it
func (c *VectorCache) Invalidate(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.vectors, userID)
}

// Size reports the number of cached users
func (c *VectorCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.vectors)
}
