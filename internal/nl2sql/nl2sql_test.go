package nl2sql

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sqlchat/sqlchat/internal/llm"
)

type stubModel struct {
	replies  []string
	err      error
	requests []llm.Request
}

func (m *stubModel) Complete(_ context.Context, req llm.Request) (string, error) {
	m.requests = append(m.requests, req)
	if m.err != nil {
		return "", m.err
	}
	reply := m.replies[0]
	m.replies = m.replies[1:]
	return reply, nil
}

func TestQueryPromptContract(t *testing.T) {
	system, user := QueryPrompt(QueryRequest{
		Question:  "How many students were placed in 2023?",
		Dialect:   "postgresql",
		TopK:      10,
		TableInfo: "CREATE TABLE placements (\n\tyear integer\n)",
	})

	for _, want := range []string{
		"create a syntactically correct postgresql query",
		"always limit your query to at most 10 results",
		"Never query for all the columns from a specific table",
		"Only use the following tables:\nCREATE TABLE placements (\n\tyear integer\n)",
		`exactly one key, "query"`,
	} {
		if !strings.Contains(system, want) {
			t.Fatalf("system prompt missing %q:\n%s", want, system)
		}
	}
	if user != "Question: How many students were placed in 2023?" {
		t.Fatalf("user prompt = %q", user)
	}
}

func TestQuerySynthesizerUsesStructuredMode(t *testing.T) {
	model := &stubModel{replies: []string{`{"query": "SELECT COUNT(*) FROM placements WHERE year = 2023 LIMIT 10;"}`}}
	got, err := NewQuerySynthesizer(model).Synthesize(context.Background(), QueryRequest{
		Question: "How many students were placed in 2023?", Dialect: "postgresql", TopK: 10,
	})
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if got != "SELECT COUNT(*) FROM placements WHERE year = 2023 LIMIT 10;" {
		t.Fatalf("Synthesize() = %q", got)
	}
	if len(model.requests) != 1 || !model.requests[0].JSONMode {
		t.Fatalf("requests = %+v", model.requests)
	}
	if roles := []string{model.requests[0].Messages[0].Role, model.requests[0].Messages[1].Role}; roles[0] != llm.RoleSystem || roles[1] != llm.RoleUser {
		t.Fatalf("roles = %v", roles)
	}
}

func TestParseQueryOutput(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "plain object", raw: `{"query":"SELECT name FROM students LIMIT 10"}`, want: "SELECT name FROM students LIMIT 10"},
		{name: "json fence", raw: "```json\n{\"query\": \"SELECT 1\"}\n```", want: "SELECT 1"},
		{name: "bare fence", raw: "```\n{\"query\": \"SELECT 1\"}\n```", want: "SELECT 1"},
		{name: "sql fence inside value", raw: `{"query": "` + "```sql\\nSELECT 2;\\n```" + `"}`, want: "SELECT 2;"},
		{name: "surrounding whitespace", raw: "\n  {\"query\": \"SELECT 3\"}  \n", want: "SELECT 3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := ParseQueryOutput(tt.raw)
			if err != nil {
				t.Fatalf("ParseQueryOutput() error = %v", err)
			}
			if out.Query != tt.want {
				t.Fatalf("ParseQueryOutput() = %q, want %q", out.Query, tt.want)
			}
		})
	}
}

func TestParseQueryOutputRejectsMalformed(t *testing.T) {
	for name, raw := range map[string]string{
		"empty":         "  ",
		"prose":         "Here is your query: SELECT 1",
		"missing field": `{"sql": "SELECT 1"}`,
		"extra field":   `{"query": "SELECT 1", "explanation": "x"}`,
		"empty query":   `{"query": ""}`,
		"wrong type":    `{"query": 42}`,
		"two objects":   `{"query": "SELECT 1"} {"query": "SELECT 2"}`,
	} {
		if _, err := ParseQueryOutput(raw); !errors.Is(err, ErrMalformedOutput) {
			t.Fatalf("%s: ParseQueryOutput() error = %v, want ErrMalformedOutput", name, err)
		}
	}
}

func TestQuerySynthesizerWrapsFailures(t *testing.T) {
	model := &stubModel{replies: []string{"not json"}}
	_, err := NewQuerySynthesizer(model).Synthesize(context.Background(), QueryRequest{Question: "q", TopK: 10})
	var synthErr *SynthesisError
	if !errors.As(err, &synthErr) || synthErr.Stage != StageWriteQuery {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if !errors.Is(err, ErrMalformedOutput) {
		t.Fatalf("Synthesize() error = %v, want ErrMalformedOutput", err)
	}

	transport := errors.New("connection refused")
	_, err = NewQuerySynthesizer(&stubModel{err: transport}).Synthesize(context.Background(), QueryRequest{Question: "q"})
	if !errors.Is(err, transport) {
		t.Fatalf("Synthesize() error = %v", err)
	}
}

func TestAnswerSynthesizerEmbedsValuesVerbatim(t *testing.T) {
	model := &stubModel{replies: []string{"\n  42 students were placed in 2023.\n"}}
	result := "[(42,)]"
	got, err := NewAnswerSynthesizer(model).Synthesize(context.Background(),
		"How many students were placed in 2023?",
		"SELECT COUNT(*) FROM placements WHERE year = 2023 LIMIT 10;",
		result,
	)
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if got != "42 students were placed in 2023." {
		t.Fatalf("Synthesize() = %q", got)
	}

	req := model.requests[0]
	if req.JSONMode || len(req.Messages) != 1 {
		t.Fatalf("request = %+v", req)
	}
	prompt := req.Messages[0].Content
	for _, want := range []string{
		"answer the user question clearly",
		"Question: How many students were placed in 2023?\n",
		"SQL Query: SELECT COUNT(*) FROM placements WHERE year = 2023 LIMIT 10;\n",
		"SQL Result: [(42,)]\n",
	} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("answer prompt missing %q:\n%s", want, prompt)
		}
	}
	if !strings.HasSuffix(prompt, "Answer:") {
		t.Fatalf("answer prompt should end with Answer:, got %q", prompt)
	}
}

func TestAnswerPromptKeepsPlaceholdersInValues(t *testing.T) {
	prompt := AnswerPrompt("what is {query}?", "SELECT '{result}'", "Error: relation \"x\" does not exist")
	if !strings.Contains(prompt, "Question: what is {query}?") || !strings.Contains(prompt, "SQL Query: SELECT '{result}'") {
		t.Fatalf("prompt = %q", prompt)
	}
	if !strings.Contains(prompt, `SQL Result: Error: relation "x" does not exist`) {
		t.Fatalf("prompt = %q", prompt)
	}
}

func TestAnswerSynthesizerWrapsFailures(t *testing.T) {
	_, err := NewAnswerSynthesizer(&stubModel{err: errors.New("timeout")}).Synthesize(context.Background(), "q", "s", "r")
	var synthErr *SynthesisError
	if !errors.As(err, &synthErr) || synthErr.Stage != StageGenerateAnswer {
		t.Fatalf("Synthesize() error = %v", err)
	}
}
