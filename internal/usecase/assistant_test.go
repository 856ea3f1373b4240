package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finbot/internal/adapter/chunker"
	"finbot/internal/adapter/embedding"
	"finbot/internal/adapter/fmp"
	"finbot/internal/adapter/llm"
	"finbot/internal/adapter/news"
	"finbot/internal/adapter/retriever"
	"finbot/internal/adapter/tools"
	"finbot/internal/domain"
	"finbot/internal/port"
)

// keywordPolicy stands in for the model's routing decision: it picks one tool from the
// question and then answers by quoting what the tool returned.
func keywordPolicy() llm.FuncModel {
	return func(_ context.Context, msgs []domain.Message, specs []domain.ToolSpec) (domain.Completion, error) {
		last := msgs[len(msgs)-1]
		if last.Role == domain.RoleTool {
			return domain.Completion{Content: "According to " + last.Name + ": " + last.Content}, nil
		}

		q := strings.ToLower(last.Content)
		var c domain.ToolCall
		switch {
		case strings.Contains(q, "price"):
			c = domain.ToolCall{ID: "1", Name: tools.FinancialDataName, Arguments: `{"endpoint":"quote","symbol":"AAPL"}`}
		case strings.Contains(q, "today"):
			c = domain.ToolCall{ID: "1", Name: tools.NewsName, Arguments: `{"query":"TSLA"}`}
		default:
			c = domain.ToolCall{ID: "1", Name: tools.KnowledgeBaseName, Arguments: fmt.Sprintf(`{"query":%q}`, last.Content)}
		}
		return domain.Completion{ToolCalls: []domain.ToolCall{c}}, nil
	}
}

type harness struct {
	assistant *Assistant
	newsHits  atomic.Int32
	fmpHits   atomic.Int32
	newsFail  atomic.Bool
}

func newHarness(t *testing.T, model port.ChatModel) *harness {
	t.Helper()
	h := &harness{}

	newsSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.newsHits.Add(1)
		if h.newsFail.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"news":[{"title":"Tesla shares jump after record deliveries","publisher":"Reuters"}]}`))
	}))
	t.Cleanup(newsSrv.Close)

	fmpSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.fmpHits.Add(1)
		_, _ = w.Write([]byte(`[{"symbol":"AAPL","price":189.84}]`))
	}))
	t.Cleanup(fmpSrv.Close)

	chk, err := chunker.NewCharChunker(200, 50)
	require.NoError(t, err)
	emb := embedding.NewMockEmbedder(32)

	kb, err := NewIndexUseCase(nil, chk, emb, nil).BuildFromDocuments(context.Background(), []domain.Document{
		{ID: "d1", URL: "https://zerodha.com/varsity/chapter/index-funds/", Text: "An index fund is a mutual fund that tracks a market index such as the Nifty 50."},
		{ID: "d2", URL: "https://zerodha.com/varsity/chapter/options/", Text: "An option gives the buyer the right but not the obligation to buy or sell."},
	})
	require.NoError(t, err)

	fmpClient, err := fmp.New(fmp.Options{BaseURL: fmpSrv.URL, APIKey: "k"})
	require.NoError(t, err)

	reg, err := tools.NewRegistry(
		tools.NewKnowledgeBase(retriever.NewSemanticRetriever(kb.Index, emb), 4),
		tools.NewNews(news.New(news.Options{BaseURL: newsSrv.URL})),
		tools.NewFinancialData(fmpClient),
	)
	require.NoError(t, err)

	agent := NewAgent(model, reg, AgentOptions{MaxIterations: 5})
	h.assistant = NewAssistant(agent, 20, nil)
	return h
}

func TestScenario_IndexFundUsesKnowledgeBase(t *testing.T) {
	h := newHarness(t, keywordPolicy())
	s := NewSession()

	resp, err := h.assistant.Invoke(context.Background(), s, "What is an index fund?")
	require.NoError(t, err)

	require.Len(t, resp.Steps, 1)
	assert.Equal(t, tools.KnowledgeBaseName, resp.Steps[0].Tool)
	assert.Contains(t, resp.Output, "tracks a market index")
	assert.Contains(t, resp.Output, "zerodha.com/varsity")
	assert.Zero(t, h.newsHits.Load())
	assert.Zero(t, h.fmpHits.Load())
}

func TestScenario_StockPriceUsesFinancialData(t *testing.T) {
	h := newHarness(t, keywordPolicy())

	resp, err := h.assistant.Invoke(context.Background(), NewSession(), "What's Apple's current stock price?")
	require.NoError(t, err)

	require.Len(t, resp.Steps, 1)
	assert.Equal(t, tools.FinancialDataName, resp.Steps[0].Tool)
	assert.Regexp(t, regexp.MustCompile(`\d+\.\d+`), resp.Output)
	assert.Contains(t, resp.Output, "189.84")
	assert.EqualValues(t, 1, h.fmpHits.Load())
	assert.Zero(t, h.newsHits.Load())
}

func TestScenario_TeslaTodayUsesNews(t *testing.T) {
	h := newHarness(t, keywordPolicy())

	resp, err := h.assistant.Invoke(context.Background(), NewSession(), "What happened with Tesla today?")
	require.NoError(t, err)

	require.Len(t, resp.Steps, 1)
	assert.Equal(t, tools.NewsName, resp.Steps[0].Tool)
	assert.Contains(t, resp.Output, "Tesla shares jump after record deliveries")
	assert.NotContains(t, resp.Output, "varsity")
	assert.Zero(t, h.fmpHits.Load())
}

func TestAssistant_ToolFailureStillAnswers(t *testing.T) {
	h := newHarness(t, keywordPolicy())
	h.newsFail.Store(true)

	resp, err := h.assistant.Invoke(context.Background(), NewSession(), "What happened with Tesla today?")
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Output)
	assert.Contains(t, resp.Output, "error: news provider returned status 503")
	assert.Contains(t, resp.Steps[0].Error, "503")
}

func TestAssistant_SessionGrowsInOrder(t *testing.T) {
	h := newHarness(t, keywordPolicy())
	s := NewSession()

	questions := []string{
		"What is an index fund?",
		"What's Apple's current stock price?",
		"What happened with Tesla today?",
	}
	for _, q := range questions {
		_, err := h.assistant.Invoke(context.Background(), s, q)
		require.NoError(t, err)
	}

	turns := s.Turns()
	require.Len(t, turns, 2*len(questions))
	for i, q := range questions {
		assert.Equal(t, domain.RoleUser, turns[2*i].Role)
		assert.Equal(t, q, turns[2*i].Content)
		assert.Equal(t, domain.RoleAssistant, turns[2*i+1].Role)
	}
}

func TestAssistant_ModelFailureKeepsHistory(t *testing.T) {
	boom := errors.New("insufficient_quota")
	model := llm.NewScriptedModel(llm.Text("first answer"), llm.Fail(boom), llm.Text("retried answer"))
	h := newHarness(t, model)
	s := NewSession()

	_, err := h.assistant.Invoke(context.Background(), s, "hello")
	require.NoError(t, err)
	require.Equal(t, 2, s.Len())

	_, err = h.assistant.Invoke(context.Background(), s, "second")
	assert.ErrorIs(t, err, ErrModel)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, s.Len())

	resp, err := h.assistant.Invoke(context.Background(), s, "second")
	require.NoError(t, err)
	assert.Equal(t, "retried answer", resp.Output)
	assert.Equal(t, 4, s.Len())

	// the retry sees the first exchange but not the failed attempt
	last := model.Requests()[2].Messages
	require.Len(t, last, 4)
	assert.Equal(t, "hello", last[1].Content)
	assert.Equal(t, "first answer", last[2].Content)
	assert.Equal(t, "second", last[3].Content)
}

func TestAssistant_EmptyQuestion(t *testing.T) {
	h := newHarness(t, llm.NewScriptedModel())
	_, err := h.assistant.Invoke(context.Background(), NewSession(), "   ")
	assert.ErrorIs(t, err, ErrEmptyQuestion)
}

func TestAssistant_SerialisesTurnsPerSession(t *testing.T) {
	echo := llm.FuncModel(func(_ context.Context, msgs []domain.Message, _ []domain.ToolSpec) (domain.Completion, error) {
		return domain.Completion{Content: "re: " + msgs[len(msgs)-1].Content}, nil
	})
	h := newHarness(t, echo)
	s := NewSession()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.assistant.Invoke(context.Background(), s, fmt.Sprintf("q%d", i))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	turns := s.Turns()
	require.Len(t, turns, 16)
	for i := 0; i < len(turns); i += 2 {
		assert.Equal(t, domain.RoleUser, turns[i].Role)
		assert.Equal(t, "re: "+turns[i].Content, turns[i+1].Content)
	}
}
