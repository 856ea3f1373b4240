package llm

import (
	"context"
	"errors"
	"sync"

	"finbot/internal/domain"
)

// ErrScriptExhausted is returned when a ScriptedModel is called more times than scripted.
var ErrScriptExhausted = errors.New("scripted model has no more responses")

// Reply is one canned response of a ScriptedModel.
type Reply struct {
	Completion domain.Completion
	Err        error
}

// Request is a call recorded by ScriptedModel.
type Request struct {
	Messages []domain.Message
	Tools    []domain.ToolSpec
}

// ScriptedModel replays canned replies in order and records every request. Used in tests
// and offline demos in place of a real model.
type ScriptedModel struct {
	mu       sync.Mutex
	replies  []Reply
	requests []Request
}

func NewScriptedModel(replies ...Reply) *ScriptedModel {
	return &ScriptedModel{replies: replies}
}

// Text is a reply with a final answer.
func Text(content string) Reply {
	return Reply{Completion: domain.Completion{Content: content}}
}

// Calls is a reply asking for the given tool calls.
func Calls(calls ...domain.ToolCall) Reply {
	return Reply{Completion: domain.Completion{ToolCalls: calls}}
}

// Fail is a reply that fails the model call.
func Fail(err error) Reply {
	return Reply{Err: err}
}

func (m *ScriptedModel) Complete(_ context.Context, messages []domain.Message, tools []domain.ToolSpec) (domain.Completion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, Request{
		Messages: append([]domain.Message(nil), messages...),
		Tools:    append([]domain.ToolSpec(nil), tools...),
	})

	if len(m.replies) == 0 {
		return domain.Completion{}, ErrScriptExhausted
	}
	r := m.replies[0]
	m.replies = m.replies[1:]
	return r.Completion, r.Err
}

func (m *ScriptedModel) ModelName() string {
	return "scripted"
}

// Requests returns the calls received so far.
func (m *ScriptedModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.requests...)
}

// FuncModel adapts a function to port.ChatModel.
type FuncModel func(ctx context.Context, messages []domain.Message, tools []domain.ToolSpec) (domain.Completion, error)

func (f FuncModel) Complete(ctx context.Context, messages []domain.Message, tools []domain.ToolSpec) (domain.Completion, error) {
	return f(ctx, messages, tools)
}

func (f FuncModel) ModelName() string {
	return "func"
}
