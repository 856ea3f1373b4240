// Package tui provides the interactive chat interface.
package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"finbot/internal/usecase"
)

// Answerer answers one question within a session.
type Answerer interface {
	Invoke(ctx context.Context, session *usecase.Session, question string) (*usecase.Response, error)
}

type answerMsg struct {
	resp *usecase.Response
}

type errMsg struct {
	err error
}

type entryKind int

const (
	entryUser entryKind = iota
	entryAssistant
	entryError
)

type entry struct {
	kind  entryKind
	text  string
	tools []string
}

// chrome is the number of lines used by the title, status and input rows.
const chrome = 5

// Model is the bubbletea model of the chat view. The transcript it shows includes
// failed turns; the session itself only holds successful ones.
type Model struct {
	ctx       context.Context
	assistant Answerer
	session   *usecase.Session
	styles    *Styles

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model

	entries []entry
	pending bool
	width   int
	height  int
}

func New(ctx context.Context, assistant Answerer, session *usecase.Session) *Model {
	ti := textinput.New()
	ti.Placeholder = "Ask me anything about finance..."
	ti.Focus()
	ti.CharLimit = 1000
	ti.Width = 76

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := &Model{
		ctx:       ctx,
		assistant: assistant,
		session:   session,
		styles:    DefaultStyles(),
		input:     ti,
		viewport:  viewport.New(80, 24-chrome),
		spinner:   sp,
		width:     80,
		height:    24,
	}
	m.refresh()
	return m
}

func (m *Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-chrome, 1)
		m.input.Width = max(msg.Width-4, 10)
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case answerMsg:
		m.pending = false
		e := entry{kind: entryAssistant, text: msg.resp.Output}
		for _, s := range msg.resp.Steps {
			e.tools = append(e.tools, s.Tool)
		}
		m.entries = append(m.entries, e)
		m.refresh()
		return m, nil

	case errMsg:
		m.pending = false
		m.entries = append(m.entries, entry{kind: entryError, text: msg.err.Error()})
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if !m.pending {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	//nolint:exhaustive // handling only relevant key types
	switch msg.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		return m, tea.Quit

	case tea.KeyEnter:
		question := strings.TrimSpace(m.input.Value())
		if question == "" || m.pending {
			return m, nil
		}
		m.input.Reset()
		m.pending = true
		m.entries = append(m.entries, entry{kind: entryUser, text: question})
		m.refresh()
		return m, tea.Batch(m.spinner.Tick, m.ask(question))

	case tea.KeyPgUp, tea.KeyPgDown, tea.KeyUp, tea.KeyDown:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) ask(question string) tea.Cmd {
	return func() tea.Msg {
		resp, err := m.assistant.Invoke(m.ctx, m.session, question)
		if err != nil {
			return errMsg{err: err}
		}
		return answerMsg{resp: resp}
	}
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

func (m *Model) renderTranscript() string {
	if len(m.entries) == 0 {
		return m.renderHints()
	}
	body := m.styles.Body.Width(max(m.width-2, 10))

	var blocks []string
	for _, e := range m.entries {
		switch e.kind {
		case entryUser:
			blocks = append(blocks, m.styles.User.Render("You")+"\n"+body.Render(e.text))
		case entryAssistant:
			block := m.styles.Assistant.Render("finbot") + "\n" + body.Render(e.text)
			if len(e.tools) > 0 {
				block += "\n" + m.styles.Tools.Render("tools: "+strings.Join(e.tools, ", "))
			}
			blocks = append(blocks, block)
		case entryError:
			blocks = append(blocks, m.styles.Error.Render("error: "+e.text))
		}
	}
	return strings.Join(blocks, "\n\n")
}

func (m *Model) View() string {
	status := m.styles.Help.Render("enter: send • pgup/pgdown: scroll • esc: quit")
	if m.pending {
		status = m.spinner.View() + " Thinking..."
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.styles.Title.Render("Agentic Financial Advisor"),
		m.viewport.View(),
		"",
		status,
		m.input.View(),
	)
}

// Run starts the chat program on the terminal and blocks until the user quits.
func Run(ctx context.Context, assistant Answerer, session *usecase.Session) error {
	p := tea.NewProgram(New(ctx, assistant, session), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
