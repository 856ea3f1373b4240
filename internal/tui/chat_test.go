package tui

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finbot/internal/domain"
	"finbot/internal/usecase"
)

type stubAssistant struct {
	questions []string
	resp      *usecase.Response
	err       error
}

func (s *stubAssistant) Invoke(_ context.Context, session *usecase.Session, question string) (*usecase.Response, error) {
	s.questions = append(s.questions, question)
	if s.err != nil {
		return nil, s.err
	}
	session.Append(domain.RoleUser, question)
	session.Append(domain.RoleAssistant, s.resp.Output)
	return s.resp, nil
}

// runBatch executes the commands of a tea.Batch and returns their messages.
func runBatch(t *testing.T, cmd tea.Cmd) []tea.Msg {
	t.Helper()
	require.NotNil(t, cmd)
	msg := cmd()
	batch, ok := msg.(tea.BatchMsg)
	if !ok {
		return []tea.Msg{msg}
	}
	var out []tea.Msg
	for _, c := range batch {
		if c == nil {
			continue
		}
		out = append(out, c())
	}
	return out
}

func findMsg[T any](msgs []tea.Msg) (T, bool) {
	for _, m := range msgs {
		if v, ok := m.(T); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

func TestModel_AskAndAnswer(t *testing.T) {
	stub := &stubAssistant{resp: &usecase.Response{
		Output: "An index fund tracks a market index.",
		Steps:  []domain.ToolStep{{Tool: "financial_kb"}},
	}}
	session := usecase.NewSession()
	m := New(context.Background(), stub, session)
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})

	m.input.SetValue("What is an index fund?")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.True(t, m.pending)
	assert.Empty(t, m.input.Value())
	assert.Contains(t, m.View(), "Thinking...")

	answer, ok := findMsg[answerMsg](runBatch(t, cmd))
	require.True(t, ok)
	m.Update(answer)

	assert.False(t, m.pending)
	assert.Equal(t, []string{"What is an index fund?"}, stub.questions)
	assert.Equal(t, 2, session.Len())

	view := m.renderTranscript()
	assert.Contains(t, view, "What is an index fund?")
	assert.Contains(t, view, "An index fund tracks a market index.")
	assert.Contains(t, view, "tools: financial_kb")
}

func TestModel_ErrorIsShown(t *testing.T) {
	stub := &stubAssistant{err: errors.New("language model call failed: status 401")}
	session := usecase.NewSession()
	m := New(context.Background(), stub, session)

	m.input.SetValue("hello")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	failed, ok := findMsg[errMsg](runBatch(t, cmd))
	require.True(t, ok)
	m.Update(failed)

	assert.False(t, m.pending)
	assert.Contains(t, m.renderTranscript(), "error: language model call failed: status 401")
	assert.Zero(t, session.Len())
}

func TestModel_ShowsSampleQuestionsUntilFirstAsk(t *testing.T) {
	stub := &stubAssistant{resp: &usecase.Response{Output: "ok"}}
	m := New(context.Background(), stub, usecase.NewSession())

	hints := m.renderTranscript()
	for _, want := range []string{"Financial Knowledge", "Market News", "Financial Data", "What is an index fund?", "What's the P/E ratio of Microsoft?"} {
		assert.Contains(t, hints, want)
	}
	assert.Contains(t, m.View(), "Try asking:")

	m.input.SetValue("What is an index fund?")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)

	view := m.renderTranscript()
	assert.NotContains(t, view, "Try asking:")
	assert.Contains(t, view, "What is an index fund?")
}

func TestModel_IgnoresEmptyAndPendingInput(t *testing.T) {
	stub := &stubAssistant{resp: &usecase.Response{Output: "ok"}}
	m := New(context.Background(), stub, usecase.NewSession())

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)

	m.input.SetValue("first")
	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)

	m.input.SetValue("second")
	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd, "a new question waits for the pending answer")
	assert.Len(t, m.entries, 1)
}

func TestModel_Quit(t *testing.T) {
	m := New(context.Background(), &stubAssistant{}, usecase.NewSession())

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}
