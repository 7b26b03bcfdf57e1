package embedding

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"sync/atomic"
	"time"
)

// OpenAIClient embeds text through an OpenAI-compatible embeddings endpoint
// (OpenAI, Ollama, LM Studio). It is stateless: Prepare is a no-op and the
// vector dimension is learned from the first response.
type OpenAIClient struct {
	baseURL    string
	apiKey     string
	model      string
	client     *http.Client
	maxRetries int

	// written lazily on the first successful Embed; Embed runs concurrently
	// once an index serves searches, so access stays atomic
	dimension atomic.Int64
}

// OpenAIConfig configures the embeddings client. APIKeyEnv names the
// environment variable holding the key.
type OpenAIConfig struct {
	BaseURL   string
	APIKeyEnv string
	Model     string
	Timeout   time.Duration
}

// NewOpenAIClient creates an embeddings client from the configuration.
func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &OpenAIClient{
		baseURL:    cfg.BaseURL,
		apiKey:     key,
		model:      cfg.Model,
		client:     &http.Client{Timeout: timeout},
		maxRetries: 5,
	}, nil
}

// Name identifies the remote model so an index built with one model is
// never searched with another.
func (c *OpenAIClient) Name() string { return "openai:" + c.model }

// Prepare is not required for remote embedding.
func (c *OpenAIClient) Prepare(corpus []string) error { return nil }

// Dimension returns the vector dimensionality, zero before the first Embed.
func (c *OpenAIClient) Dimension() int { return int(c.dimension.Load()) }

// Embed returns an embedding vector for the given text, retrying transient
// failures with exponential backoff and honoring Retry-After.
func (c *OpenAIClient) Embed(text string) ([]float64, error) {
	type request struct {
		Input string `json:"input"`
		Model string `json:"model"`
	}
	url := c.baseURL + "/embeddings"
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		data, _ := json.Marshal(request{Input: text, Model: c.model})
		req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.client.Do(req)
		if err != nil {
			if attempt < c.maxRetries {
				time.Sleep(retryDelay(attempt))
				continue
			}
			return nil, err
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			delay := retryDelay(attempt)
			if ra := resp.Header.Get("Retry-After"); ra != "" {
				if secs, err := strconv.Atoi(ra); err == nil {
					delay = time.Duration(secs) * time.Second
				}
			}
			_ = resp.Body.Close()
			if attempt < c.maxRetries {
				time.Sleep(delay)
				continue
			}
			return nil, fmt.Errorf("embeddings request failed: %s", resp.Status)
		}

		if resp.StatusCode >= 300 {
			_ = resp.Body.Close()
			return nil, fmt.Errorf("embeddings request failed: %s", resp.Status)
		}

		payload, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			if attempt < c.maxRetries {
				time.Sleep(retryDelay(attempt))
				continue
			}
			return nil, err
		}

		if vec, ok := decodeEmbedding(payload); ok {
			c.dimension.CompareAndSwap(0, int64(len(vec)))
			return vec, nil
		}
		if attempt < c.maxRetries {
			time.Sleep(retryDelay(attempt))
			continue
		}
	}
	return nil, errors.New("no embedding returned")
}

// decodeEmbedding accepts both the OpenAI response shape and the
// Ollama-native one.
func decodeEmbedding(payload []byte) ([]float64, bool) {
	var openaiOut struct {
		Data []struct {
			Embedding []float64 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &openaiOut); err == nil {
		if len(openaiOut.Data) > 0 && len(openaiOut.Data[0].Embedding) > 0 {
			return openaiOut.Data[0].Embedding, true
		}
	}
	var ollamaOut struct {
		Embedding []float64 `json:"embedding"`
	}
	if err := json.Unmarshal(payload, &ollamaOut); err == nil && len(ollamaOut.Embedding) > 0 {
		return ollamaOut.Embedding, true
	}
	return nil, false
}

func retryDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := 200 * time.Millisecond << attempt
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}
