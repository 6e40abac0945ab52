package nl2sql

import (
	"context"
	"strings"

	"github.com/sqlchat/sqlchat/internal/llm"
)

type AnswerSynthesizer struct {
	model llm.Model
}

func NewAnswerSynthesizer(model llm.Model) *AnswerSynthesizer {
	return &AnswerSynthesizer{model: model}
}

// Synthesize phrases a natural-language answer. result may be an execution
// error text; the model is expected to explain it.
func (s *AnswerSynthesizer) Synthesize(ctx context.Context, question, query, result string) (string, error) {
	raw, err := s.model.Complete(ctx, llm.Request{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: AnswerPrompt(question, query, result)}},
	})
	if err != nil {
		return "", synthesisError(StageGenerateAnswer, err)
	}
	return strings.TrimSpace(raw), nil
}
