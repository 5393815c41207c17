package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	EmbedLLM LLMConfig      `yaml:"embed_llm"`
	ChatLLM  LLMConfig      `yaml:"chat_llm"`
	Local    LocalConfig    `yaml:"local"`
	Ingest   IngestConfig   `yaml:"ingest"`
	Server   ServerConfig   `yaml:"server"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	Debug    bool   `yaml:"debug"`
}

type LLMConfig struct {
	BaseURL string `yaml:"base_url"`
	Key     string `yaml:"key"`
	Model   string `yaml:"model"`
}

// LocalConfig configures the embedded chromem vector store used when no
// SQL database is available.
type LocalConfig struct {
	Path       string `yaml:"path"`
	Collection string `yaml:"collection"`
	InMemory   bool   `yaml:"in_memory"`
}

type IngestConfig struct {
	ChunkTokens   int      `yaml:"chunk_tokens"`
	OverlapTokens int      `yaml:"overlap_tokens"`
	Extensions    []string `yaml:"extensions"`
}

type ServerConfig struct {
	Address string `yaml:"address"`
}

const (
	DefaultChunkTokens   = 400
	DefaultOverlapTokens = 50
)

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if cfg.Ingest.ChunkTokens <= 0 {
		cfg.Ingest.ChunkTokens = DefaultChunkTokens
	}
	if cfg.Ingest.OverlapTokens <= 0 {
		cfg.Ingest.OverlapTokens = DefaultOverlapTokens
	}
	if len(cfg.Ingest.Extensions) == 0 {
		cfg.Ingest.Extensions = []string{"txt", "md", "pdf", "docx", "pptx", "xlsx", "ods"}
	}
	return &cfg, nil
}
