package nl2sql

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sqlchat/sqlchat/internal/llm"
)

type QueryRequest struct {
	Question  string
	Dialect   string
	TopK      int
	TableInfo string
}

// QueryOutput is the only shape accepted from the query-writing call.
type QueryOutput struct {
	Query string `json:"query"`
}

type QuerySynthesizer struct {
	model llm.Model
}

func NewQuerySynthesizer(model llm.Model) *QuerySynthesizer {
	return &QuerySynthesizer{model: model}
}

// Synthesize asks the model for a single SQL query answering req.Question. The
// query is returned as produced; it is not validated against the database.
func (s *QuerySynthesizer) Synthesize(ctx context.Context, req QueryRequest) (string, error) {
	system, user := QueryPrompt(req)
	raw, err := s.model.Complete(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: system},
			{Role: llm.RoleUser, Content: user},
		},
		JSONMode: true,
	})
	if err != nil {
		return "", synthesisError(StageWriteQuery, err)
	}
	out, err := ParseQueryOutput(raw)
	if err != nil {
		return "", synthesisError(StageWriteQuery, err)
	}
	return out.Query, nil
}

// ParseQueryOutput validates raw model text against QueryOutput.
func ParseQueryOutput(raw string) (QueryOutput, error) {
	body := stripMarkdownFence(raw)
	if body == "" {
		return QueryOutput{}, fmt.Errorf("%w: empty response", ErrMalformedOutput)
	}

	decoder := json.NewDecoder(bytes.NewReader([]byte(body)))
	decoder.DisallowUnknownFields()
	var out QueryOutput
	if err := decoder.Decode(&out); err != nil {
		return QueryOutput{}, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	if decoder.More() {
		return QueryOutput{}, fmt.Errorf("%w: trailing data after object", ErrMalformedOutput)
	}

	out.Query = stripMarkdownFence(out.Query)
	if out.Query == "" {
		return QueryOutput{}, fmt.Errorf("%w: query is empty", ErrMalformedOutput)
	}
	return out, nil
}

func stripMarkdownFence(value string) string {
	trimmed := strings.TrimSpace(value)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if newline := strings.IndexByte(trimmed, '\n'); newline >= 0 && !strings.ContainsAny(trimmed[:newline], " {") {
		// drop the info string, e.g. ```json or ```sql
		trimmed = trimmed[newline+1:]
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
