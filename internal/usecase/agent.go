package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"finbot/internal/domain"
	"finbot/internal/port"
)

// ErrModel wraps every failure of the language model call. It fails the turn.
var ErrModel = errors.New("language model call failed")

const DefaultSystemPrompt = `You are a helpful financial assistant that can answer questions about finance, trading, and investment.
You have access to three main sources of information:
1. A knowledge base containing information from Zerodha's educational content (financial_kb)
2. Real-time financial news from Yahoo Finance (yahoo_finance_news)
3. Detailed financial data from Financial Modeling Prep (fmp_data)

Use the financial_kb tool when questions are about:
- General financial concepts
- Trading terminology
- Zerodha-specific information
- Investment basics

Use the yahoo_finance_news tool when questions are about:
- Current market news
- Recent company developments
- Market trends
- Latest financial events

Use the fmp_data tool when questions require:
- Stock price information
- Company financial ratios and metrics
- Financial statements
- Company comparisons
- Market performance data

Always provide accurate, helpful responses and cite your sources when possible.
If you don't know something, say so clearly.`

const finalAnswerPrompt = `You have reached the limit of tool calls for this question. Do not request more tools. Answer the user now using only the information gathered so far, and say what you could not find.`

const fallbackAnswer = "I could not finish researching this question within the tool-call limit. Please try rephrasing it."

// ToolSet is the set of tools offered to the model.
type ToolSet interface {
	Specs() []domain.ToolSpec
	Lookup(name string) (port.Tool, bool)
}

type AgentOptions struct {
	SystemPrompt       string
	MaxIterations      int // planning rounds before a forced final answer
	MaxToolOutputChars int // 0 = no limit
	Parallel           bool
	Logger             *zap.Logger
}

// Agent routes a question to tools chosen by the model and returns the model's answer.
// Each Run is Planning -> Tool Execution -> ... -> Synthesis; the agent itself holds no
// conversation state.
type Agent struct {
	model        port.ChatModel
	tools        ToolSet
	systemPrompt string
	maxIter      int
	maxToolChars int
	parallel     bool
	logger       *zap.Logger
}

// AgentResult is the outcome of one Run.
type AgentResult struct {
	Output     string
	Steps      []domain.ToolStep
	Iterations int
	// Truncated is set when the iteration bound forced the final answer.
	Truncated bool
}

func NewAgent(model port.ChatModel, tools ToolSet, opts AgentOptions) *Agent {
	if opts.SystemPrompt == "" {
		opts.SystemPrompt = DefaultSystemPrompt
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = 5
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Agent{
		model:        model,
		tools:        tools,
		systemPrompt: opts.SystemPrompt,
		maxIter:      opts.MaxIterations,
		maxToolChars: opts.MaxToolOutputChars,
		parallel:     opts.Parallel,
		logger:       logger,
	}
}

// Run answers question given the prior turns. Tool failures are reported back to the
// model; only a model failure returns an error, wrapped in ErrModel.
func (a *Agent) Run(ctx context.Context, history []domain.Turn, question string) (*AgentResult, error) {
	messages := make([]domain.Message, 0, len(history)+2)
	messages = append(messages, domain.Message{Role: domain.RoleSystem, Content: a.systemPrompt})
	for _, t := range history {
		messages = append(messages, domain.Message{Role: t.Role, Content: t.Content})
	}
	messages = append(messages, domain.Message{Role: domain.RoleUser, Content: question})

	specs := a.tools.Specs()
	result := &AgentResult{}

	for iter := 1; iter <= a.maxIter; iter++ {
		result.Iterations = iter

		completion, err := a.model.Complete(ctx, messages, specs)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrModel, err)
		}

		if len(completion.ToolCalls) == 0 {
			result.Output = completion.Content
			return result, nil
		}

		calls := normalizeCalls(iter, completion.ToolCalls)
		messages = append(messages, domain.Message{
			Role:      domain.RoleAssistant,
			Content:   completion.Content,
			ToolCalls: calls,
		})

		steps := a.execute(ctx, iter, calls)
		for i, step := range steps {
			content := step.Output
			if step.Error != "" {
				content = "error: " + step.Error
			}
			messages = append(messages, domain.Message{
				Role:       domain.RoleTool,
				Name:       calls[i].Name,
				ToolCallID: calls[i].ID,
				Content:    content,
			})
		}
		result.Steps = append(result.Steps, steps...)
	}

	a.logger.Warn("tool-call limit reached, forcing final answer",
		zap.Int("max_iterations", a.maxIter),
		zap.Int("steps", len(result.Steps)))

	messages = append(messages, domain.Message{Role: domain.RoleSystem, Content: finalAnswerPrompt})
	completion, err := a.model.Complete(ctx, messages, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModel, err)
	}

	result.Truncated = true
	result.Output = completion.Content
	if strings.TrimSpace(result.Output) == "" {
		result.Output = fallbackAnswer
	}
	return result, nil
}

// execute runs one planning decision's tool calls. Results come back in call order
// whether or not the calls ran concurrently.
func (a *Agent) execute(ctx context.Context, iter int, calls []domain.ToolCall) []domain.ToolStep {
	steps := make([]domain.ToolStep, len(calls))

	if !a.parallel || len(calls) == 1 {
		for i, call := range calls {
			steps[i] = a.invoke(ctx, iter, call)
		}
		return steps
	}

	var g errgroup.Group
	for i, call := range calls {
		g.Go(func() error {
			steps[i] = a.invoke(ctx, iter, call)
			return nil
		})
	}
	_ = g.Wait()
	return steps
}

func (a *Agent) invoke(ctx context.Context, iter int, call domain.ToolCall) (step domain.ToolStep) {
	step = domain.ToolStep{Iteration: iter, Tool: call.Name, Arguments: call.Arguments}

	// A panicking tool fails its call, not the turn or the process.
	defer func() {
		if r := recover(); r != nil {
			step.Output = ""
			step.Error = fmt.Sprintf("tool %s panicked: %v", call.Name, r)
			a.logger.Error("tool panicked",
				zap.String("tool", call.Name),
				zap.Any("panic", r),
				zap.Stack("stack"))
		}
	}()

	tool, ok := a.tools.Lookup(call.Name)
	if !ok {
		step.Error = fmt.Sprintf("unknown tool %q", call.Name)
		a.logger.Warn("model requested unknown tool", zap.String("tool", call.Name))
		return step
	}

	args := json.RawMessage(call.Arguments)
	if strings.TrimSpace(call.Arguments) == "" {
		args = json.RawMessage("{}")
	}

	output, err := tool.Invoke(ctx, args)
	if err != nil {
		step.Error = err.Error()
		a.logger.Warn("tool failed",
			zap.String("tool", call.Name),
			zap.String("arguments", call.Arguments),
			zap.Error(err))
		return step
	}

	step.Output = truncateRunes(output, a.maxToolChars)
	a.logger.Debug("tool called",
		zap.Int("iteration", iter),
		zap.String("tool", call.Name),
		zap.String("arguments", call.Arguments),
		zap.Int("output_len", len(output)))
	return step
}

// normalizeCalls gives every call an ID, since tool messages are matched by it.
func normalizeCalls(iter int, calls []domain.ToolCall) []domain.ToolCall {
	out := make([]domain.ToolCall, len(calls))
	for i, c := range calls {
		if c.ID == "" {
			c.ID = fmt.Sprintf("call_%d_%d", iter, i)
		}
		out[i] = c
	}
	return out
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "\n[truncated]"
}
