package domain

import (
	"encoding/json"
	"time"
)

// Document is a crawled page reduced to plain text.
type Document struct {
	ID    string
	URL   string
	Title string
	Text  string
}

// Chunk is a contiguous window of a document's text.
// Start and End are rune offsets into Document.Text, End exclusive.
type Chunk struct {
	ID    string
	DocID string
	URL   string
	Index int
	Start int
	End   int
	Text  string
}

type ScoredChunk struct {
	Chunk    Chunk
	Distance float64 // squared euclidean distance, lower is closer
}

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Turn is one entry of a conversation transcript.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Message is the model-facing representation of a conversation entry.
type Message struct {
	Role       Role
	Content    string
	Name       string
	ToolCallID string
	ToolCalls  []ToolCall
}

// ToolSpec describes a tool to the language model.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  json.RawMessage // JSON schema of the arguments object
}

type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// Completion is the model output for a single request: either final text or tool calls.
type Completion struct {
	Content   string
	ToolCalls []ToolCall
}

// ToolStep records one tool invocation made while answering a turn.
type ToolStep struct {
	Iteration int    `json:"iteration"`
	Tool      string `json:"tool"`
	Arguments string `json:"arguments,omitempty"`
	Output    string `json:"output,omitempty"`
	Error     string `json:"error,omitempty"`
}

type Stats struct {
	Pages        int
	FailedPages  int
	Documents    int
	Chunks       int
	Dimension    int
	AvgChunkLen  float64
	BuildSeconds float64
}
