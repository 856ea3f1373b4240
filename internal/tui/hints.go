package tui

import "strings"

type questionGroup struct {
	title     string
	questions []string
}

// sampleQuestions cover each of the three sources the assistant routes to.
var sampleQuestions = []questionGroup{
	{
		title: "Financial Knowledge",
		questions: []string{
			"What is an index fund?",
			"How does dollar-cost averaging work?",
			"What is the difference between equity and debt?",
		},
	},
	{
		title: "Market News",
		questions: []string{
			"What happened with Microsoft stock today?",
			"What are the latest developments in Tesla?",
		},
	},
	{
		title: "Financial Data",
		questions: []string{
			"What's Apple's current stock price?",
			"What's the P/E ratio of Microsoft?",
			"Compare Tesla and Ford's profit margins",
		},
	},
}

func (m *Model) renderHints() string {
	var b strings.Builder
	b.WriteString(m.styles.Help.Render("Try asking:"))
	for _, g := range sampleQuestions {
		b.WriteString("\n\n")
		b.WriteString(m.styles.User.Render(g.title))
		for _, q := range g.questions {
			b.WriteString("\n")
			b.WriteString(m.styles.Help.Render("  - " + q))
		}
	}
	return b.String()
}
