package service

import (
	"context"
	"errors"

	"yobot/internal/model"
)

// ErrProviderDisabled is returned when an AI provider has no credentials
var ErrProviderDisabled = errors.New("AI provider is not enabled (missing API key)")

// Embedder turns texts into vectors, one per input and in input order
type Embedder interface {
	CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// ChatModel generates an assistant reply from a system prompt and prior turns.
// The last turn in history is the user message being answered.
type ChatModel interface {
	Generate(ctx context.Context, systemPrompt string, history []model.ChatTurn) (string, error)
}

// AIClient is the interface for AI service providers
type AIClient interface {
	Embedder
	ChatModel

	// IsEnabled returns whether the AI client is configured and ready
	IsEnabled() bool
}

// Ensure OpenAIClient implements AIClient
var _ AIClient = (*OpenAIClient)(nil)
