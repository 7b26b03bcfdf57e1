package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"courtpack/internal/domain"
)

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type   string                `yaml:"type"`
	OpenAI *OpenAIEmbedderConfig `yaml:"openai,omitempty"`
}

// ChunkerConfig configures how claim-pack pages are split into chunks.
type ChunkerConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

// CorpusConfig locates the claim packs on disk.
type CorpusConfig struct {
	Dir string `yaml:"dir"`
}

// IndexConfig locates the persisted vector index.
type IndexConfig struct {
	Dir string `yaml:"dir"`
}

// RetrievalConfig fixes the search k-parameters.
type RetrievalConfig struct {
	TopK   int `yaml:"top_k"`
	FetchK int `yaml:"fetch_k"`
}

// EvalConfig locates the ground-truth manifest and the report output.
type EvalConfig struct {
	GroundTruth string `yaml:"ground_truth"`
	Output      string `yaml:"output"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Corpus    CorpusConfig    `yaml:"corpus"`
	Chunker   ChunkerConfig   `yaml:"chunker"`
	Embedder  EmbedderConfig  `yaml:"embedder"`
	Index     IndexConfig     `yaml:"index"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Eval      EvalConfig      `yaml:"eval"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultConfig(), nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyConfigDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/courtpack/config.yaml.
// If neither exists, it writes defaults to ~/.config/courtpack/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate reports the first configuration mistake it finds. Invalid values
// are never silently corrected; fixing them is the operator's call.
func (cfg *AppConfig) Validate() error {
	if cfg.Chunker.Size < 1 {
		return fmt.Errorf("%w: chunker.size must be at least 1, got %d", domain.ErrInvalidConfig, cfg.Chunker.Size)
	}
	if cfg.Chunker.Overlap < 0 || cfg.Chunker.Overlap >= cfg.Chunker.Size {
		return fmt.Errorf("%w: chunker.overlap must be in [0, size), got %d with size %d",
			domain.ErrInvalidConfig, cfg.Chunker.Overlap, cfg.Chunker.Size)
	}
	if cfg.Retrieval.TopK < 1 {
		return fmt.Errorf("%w: retrieval.top_k must be at least 1, got %d", domain.ErrInvalidConfig, cfg.Retrieval.TopK)
	}
	if cfg.Retrieval.FetchK < cfg.Retrieval.TopK {
		return fmt.Errorf("%w: retrieval.fetch_k %d must not be smaller than top_k %d",
			domain.ErrInvalidConfig, cfg.Retrieval.FetchK, cfg.Retrieval.TopK)
	}
	switch cfg.Embedder.Type {
	case "tfidf":
	case "openai":
		if cfg.Embedder.OpenAI == nil {
			return fmt.Errorf("%w: embedder.openai section required for type openai", domain.ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown embedder type %q", domain.ErrInvalidConfig, cfg.Embedder.Type)
	}
	return nil
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "courtpack", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	return &AppConfig{
		Corpus:    CorpusConfig{Dir: "corpus"},
		Chunker:   ChunkerConfig{Size: 1000, Overlap: 150},
		Embedder:  EmbedderConfig{Type: "tfidf"},
		Index:     IndexConfig{Dir: "index"},
		Retrieval: RetrievalConfig{TopK: 5, FetchK: 50},
		Eval:      EvalConfig{GroundTruth: "ground_truth.json", Output: "eval_report.json"},
	}
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Corpus.Dir == "" {
		cfg.Corpus.Dir = "corpus"
	}
	if cfg.Index.Dir == "" {
		cfg.Index.Dir = "index"
	}
	if cfg.Chunker.Size == 0 {
		cfg.Chunker.Size = 1000
		if cfg.Chunker.Overlap == 0 {
			cfg.Chunker.Overlap = 150
		}
	}
	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = "tfidf"
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 5
	}
	if cfg.Retrieval.FetchK == 0 {
		cfg.Retrieval.FetchK = 50
	}
	if cfg.Eval.GroundTruth == "" {
		cfg.Eval.GroundTruth = "ground_truth.json"
	}
	if cfg.Eval.Output == "" {
		cfg.Eval.Output = "eval_report.json"
	}
	if cfg.Embedder.Type == "openai" && cfg.Embedder.OpenAI != nil {
		if cfg.Embedder.OpenAI.BaseURL == "" {
			cfg.Embedder.OpenAI.BaseURL = "https://api.openai.com/v1"
		}
		if cfg.Embedder.OpenAI.APIKeyEnv == "" {
			cfg.Embedder.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
		}
		if cfg.Embedder.OpenAI.Model == "" {
			cfg.Embedder.OpenAI.Model = "text-embedding-3-small"
		}
		if cfg.Embedder.OpenAI.TimeoutSecs == 0 {
			cfg.Embedder.OpenAI.TimeoutSecs = 30
		}
	}
}
