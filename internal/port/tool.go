package port

import (
	"context"
	"encoding/json"

	"finbot/internal/domain"
)

// Tool is a named capability the routing agent may invoke.
type Tool interface {
	Spec() domain.ToolSpec

	// Invoke runs the tool with the raw JSON arguments chosen by the model.
	Invoke(ctx context.Context, args json.RawMessage) (string, error)
}
