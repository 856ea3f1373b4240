package usecase

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"finbot/internal/domain"
)

var ErrEmptyQuestion = errors.New("question is empty")

// Response is the answer to one question.
type Response struct {
	Output     string            `json:"output"`
	Steps      []domain.ToolStep `json:"steps,omitempty"`
	Iterations int               `json:"iterations"`
}

// Assistant binds the routing agent to conversation sessions.
type Assistant struct {
	agent         *Agent
	historyWindow int
	logger        *zap.Logger
}

// NewAssistant creates an assistant that replays at most historyWindow turns to the
// model (0 = the whole transcript).
func NewAssistant(agent *Agent, historyWindow int, logger *zap.Logger) *Assistant {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Assistant{
		agent:         agent,
		historyWindow: historyWindow,
		logger:        logger,
	}
}

// Invoke answers question in the context of session. The question and the answer are
// appended to the session only when the turn succeeds, so a failed turn can be retried.
// Calls on the same session run one at a time.
func (a *Assistant) Invoke(ctx context.Context, session *Session, question string) (*Response, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	session.turn.Lock()
	defer session.turn.Unlock()

	history := session.Window(a.historyWindow)

	result, err := a.agent.Run(ctx, history, question)
	if err != nil {
		a.logger.Error("turn failed", zap.String("session", session.ID), zap.Error(err))
		return nil, err
	}

	session.commit(question, result.Output)

	tools := make([]string, len(result.Steps))
	for i, s := range result.Steps {
		tools[i] = s.Tool
	}
	a.logger.Info("turn answered",
		zap.String("session", session.ID),
		zap.Int("iterations", result.Iterations),
		zap.Strings("tools", tools),
		zap.Bool("truncated", result.Truncated))

	return &Response{
		Output:     result.Output,
		Steps:      result.Steps,
		Iterations: result.Iterations,
	}, nil
}
