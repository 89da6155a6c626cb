package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// modelDimensions holds the known embedding sizes for OpenAI's models;
// unrecognized models fall back to the dimensions configured by the
// caller.
var modelDimensions = map[string]int{
	"text-embedding-ada-002": 1536,
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
}

// OpenAIProvider calls OpenAI's /embeddings endpoint directly,
// honoring EMBEDDING_API_KEY / EMBEDDING_MODEL via the caller-supplied
// config.
type OpenAIProvider struct {
	apiKey     string
	baseURL    string
	model      string
	dimensions int
	httpClient *http.Client
}

// NewOpenAIProvider builds a provider against baseURL (defaulting to
// OpenAI's public API) using apiKey and model.
func NewOpenAIProvider(apiKey, baseURL, model string, dimensions int, timeout time.Duration) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("embeddings: OpenAI API key is required")
	}
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	if dims, known := modelDimensions[model]; known {
		dimensions = dims
	}
	return &OpenAIProvider{
		apiKey:     apiKey,
		baseURL:    baseURL,
		model:      model,
		dimensions: dimensions,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

func (p *OpenAIProvider) Dimensions() int   { return p.dimensions }
func (p *OpenAIProvider) ModelName() string { return p.model }

func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float64, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("embeddings: text cannot be empty")
	}
	vectors, err := p.call(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (p *OpenAIProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return [][]float64{}, nil
	}
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			return nil, fmt.Errorf("embeddings: text at index %d cannot be empty", i)
		}
	}
	return p.call(ctx, texts)
}

func (p *OpenAIProvider) call(ctx context.Context, texts []string) ([][]float64, error) {
	body, err := json.Marshal(map[string]interface{}{
		"input": texts,
		"model": p.model,
	})
	if err != nil {
		return nil, fmt.Errorf("embeddings: failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("embeddings: failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embeddings: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("embeddings: failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embeddings: OpenAI API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var parsed openAIResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("embeddings: failed to parse response: %w", err)
	}

	vectors := make([][]float64, len(parsed.Data))
	for _, item := range parsed.Data {
		vectors[item.Index] = item.Embedding
	}
	return vectors, nil
}

type openAIResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
	Model string `json:"model"`
}
