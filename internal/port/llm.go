package port

import (
	"context"

	"finbot/internal/domain"
)

// ChatModel is a chat-completion language model with function calling.
type ChatModel interface {
	// Complete sends the conversation and the tools the model may call.
	// A nil or empty tools slice means the model must answer in text.
	Complete(ctx context.Context, messages []domain.Message, tools []domain.ToolSpec) (domain.Completion, error)

	// ModelName returns the name of the model.
	ModelName() string
}
