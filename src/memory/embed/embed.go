package embed

import (
	"context"
	"errors"
	"log"
	"os"
	"strings"
)

// Embedder is a pluggable text-embedding provider.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ErrNotSupported is returned by providers that do not offer embeddings.
var ErrNotSupported = errors.New("embeddings not supported by this provider")

// ---------- Dummy (fallback) ----------

// DummyEmbedder produces deterministic vectors from raw bytes. It exists so
// the engine keeps working without any provider configured; relevance then
// rests on the keyword and recency signals.
type DummyEmbedder struct{}

func (DummyEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	return DummyEmbedding(text), nil
}

// DummyEmbedding is kept exported for tests.
func DummyEmbedding(text string) []float32 {
	vec := make([]float32, 768)
	for i, ch := range []byte(text) {
		vec[i%768] += float32(ch) / 255.0
	}
	return vec
}

// AutoEmbedder chooses a provider from env:
// RECALL_EMBED_PROVIDER=openai|gemini|ollama|voyage
// RECALL_EMBED_MODEL=<model string>
// Unset or unusable providers fall back to DummyEmbedder.
func AutoEmbedder() Embedder {
	provider := strings.ToLower(strings.TrimSpace(os.Getenv("RECALL_EMBED_PROVIDER")))
	model := strings.TrimSpace(os.Getenv("RECALL_EMBED_MODEL"))

	switch provider {
	case "openai":
		if e, err := NewOpenAIEmbedder(model); err == nil {
			return e
		}
	case "gemini", "google", "vertex":
		if e, err := NewGeminiEmbedder(model); err == nil {
			return e
		}
	case "ollama":
		if e, err := NewOllamaEmbedder(model); err == nil {
			return e
		}
	case "voyage", "anthropic", "claude":
		if e, err := NewVoyageEmbedder(model); err == nil {
			return e
		}
	}

	log.Printf("AutoEmbedder: falling back to DummyEmbedder")
	return DummyEmbedder{}
}

// SafeEmbed never fails; it falls back to the deterministic dummy vector.
func SafeEmbed(ctx context.Context, e Embedder, text string) []float32 {
	if e == nil {
		return DummyEmbedding(text)
	}
	v, err := e.Embed(ctx, text)
	if err != nil || len(v) == 0 {
		return DummyEmbedding(text)
	}
	return v
}
