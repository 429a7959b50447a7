package embedding

import (
	"testing"

	"github.com/ideonautics/ideabank/internal/config"
)

func TestNewGeneratorOllama(t *testing.T) {
	gen, err := NewGenerator(config.EmbeddingConfig{Provider: "ollama", OllamaModel: "nomic-embed-text"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := gen.(*OllamaClient); !ok {
		t.Errorf("expected *OllamaClient, got %T", gen)
	}
}

func TestNewGeneratorDefaultsToOllama(t *testing.T) {
	gen, err := NewGenerator(config.EmbeddingConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := gen.(*OllamaClient); !ok {
		t.Errorf("expected *OllamaClient for empty provider, got %T", gen)
	}
}

func TestNewGeneratorOpenAI(t *testing.T) {
	gen, err := NewGenerator(config.EmbeddingConfig{Provider: "openai", OpenAIAPIKey: "sk-test"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := gen.(*OpenAIClient); !ok {
		t.Errorf("expected *OpenAIClient, got %T", gen)
	}
}

func TestNewGeneratorUnsupported(t *testing.T) {
	if _, err := NewGenerator(config.EmbeddingConfig{Provider: "carrier-pigeon"}); err == nil {
		t.Error("expected error for unsupported provider")
	}
}
