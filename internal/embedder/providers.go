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
	"time"
)

// Provider names and model defaults.
const (
	ProviderOpenAI = "openai"
	ProviderJina   = "jina"
	ProviderLocal  = "local"

	DefaultOpenAIModel = "text-embedding-3-small"
	DefaultJinaModel   = "jina-embeddings-v3"
	DefaultLocalModel  = "local-hash"

	OpenAIDimension = 1536
	JinaDimension   = 1024

	openAIEndpoint = "https://api.openai.com/v1/embeddings"
	jinaEndpoint   = "https://api.jina.ai/v1/embeddings"

	// MaxBatchSize bounds one backend request.
	MaxBatchSize = 100

	requestTimeout = 30 * time.Second
)

// httpProvider implements Embedder against an OpenAI-compatible
// embeddings endpoint. Both hosted backends speak the same wire shape.
type httpProvider struct {
	name      string
	endpoint  string
	apiKey    string
	model     string
	dimension int
	client    *http.Client
}

// NewOpenAIProvider creates an embedder for the OpenAI embeddings API.
func NewOpenAIProvider(apiKey string) (Embedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: OPENAI_API_KEY not set", ErrNoProviderEnabled)
	}
	return &httpProvider{
		name:      ProviderOpenAI,
		endpoint:  openAIEndpoint,
		apiKey:    apiKey,
		model:     DefaultOpenAIModel,
		dimension: OpenAIDimension,
		client:    &http.Client{Timeout: requestTimeout},
	}, nil
}

// NewJinaProvider creates an embedder for the Jina embeddings API.
func NewJinaProvider(apiKey string) (Embedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: JINA_API_KEY not set", ErrNoProviderEnabled)
	}
	return &httpProvider{
		name:      ProviderJina,
		endpoint:  jinaEndpoint,
		apiKey:    apiKey,
		model:     DefaultJinaModel,
		dimension: JinaDimension,
		client:    &http.Client{Timeout: requestTimeout},
	}, nil
}

func (p *httpProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}
	vecs, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (p *httpProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := validateBatch(texts); err != nil {
		return nil, err
	}
	if len(texts) > MaxBatchSize {
		return nil, fmt.Errorf("%w: max %d texts allowed", ErrBatchTooLarge, MaxBatchSize)
	}

	config := DefaultRetryConfig()
	vecs, err := retryWithBackoff(ctx, config, func() ([][]float32, error) {
		return p.callAPI(ctx, texts)
	})
	if err != nil {
		return nil, fmt.Errorf("%w after %d attempts: %v", ErrProviderFailed, config.MaxRetries, err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d texts", ErrProviderFailed, len(vecs), len(texts))
	}
	return vecs, nil
}

func (p *httpProvider) callAPI(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(map[string]any{
		"input": texts,
		"model": p.model,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("api error %d: %s", resp.StatusCode, string(respBody))
	}

	var apiResp struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	vecs := make([][]float32, len(apiResp.Data))
	for _, data := range apiResp.Data {
		if data.Index < 0 || data.Index >= len(vecs) {
			return nil, fmt.Errorf("embedding index %d out of range", data.Index)
		}
		vecs[data.Index] = data.Embedding
	}
	return vecs, nil
}

func (p *httpProvider) Dimension() int { return p.dimension }
func (p *httpProvider) Provider() string {
	return p.name
}
func (p *httpProvider) Model() string { return p.model }

func (p *httpProvider) Close() error {
	p.client.CloseIdleConnections()
	return nil
}

// LocalProvider produces deterministic embeddings without network
// access by expanding the SHA-256 digest of the text into a vector of
// the configured dimension. Quality is far below a real model but the
// vectors are stable, which is what tests and offline indexing need.
type LocalProvider struct {
	dimension int
}

// NewLocalProvider creates a local embedder with the given dimension.
func NewLocalProvider(dimension int) (*LocalProvider, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("%w: dimension must be positive, got %d", ErrInvalidInput, dimension)
	}
	return &LocalProvider{dimension: dimension}, nil
}

func (l *LocalProvider) Embed(_ context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	vec := make([]float32, l.dimension)
	digest := sha256.Sum256([]byte(text))
	for i := range vec {
		// Re-hash with a counter to extend the digest stream past 32
		// bytes for larger dimensions.
		if i%len(digest) == 0 && i > 0 {
			var counter [8]byte
			binary.LittleEndian.PutUint64(counter[:], uint64(i))
			digest = sha256.Sum256(append(digest[:], counter[:]...))
		}
		vec[i] = float32(digest[i%len(digest)])/127.5 - 1.0
	}
	return vec, nil
}

func (l *LocalProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := validateBatch(texts); err != nil {
		return nil, err
	}
	vecs := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := l.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embedding text %d: %w", i, err)
		}
		vecs[i] = vec
	}
	return vecs, nil
}

func (l *LocalProvider) Dimension() int   { return l.dimension }
func (l *LocalProvider) Provider() string { return ProviderLocal }
func (l *LocalProvider) Model() string    { return DefaultLocalModel }
func (l *LocalProvider) Close() error     { return nil }
