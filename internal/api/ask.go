package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sqlchat/sqlchat/internal/llm"
	"github.com/sqlchat/sqlchat/internal/nl2sql"
	"github.com/sqlchat/sqlchat/internal/observability"
	"github.com/sqlchat/sqlchat/internal/pipeline"
	"github.com/sqlchat/sqlchat/internal/transcript"
)

const maxAskBodyBytes = 64 << 10

type askRequest struct {
	Question string `json:"question"`
}

type streamError struct {
	Error map[string]any `json:"error"`
}

// handleAsk runs the pipeline and streams one NDJSON line per transcript
// entry as soon as the producing stage finishes.
func handleAsk(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Pipeline == nil || deps.Transcripts == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "PIPELINE_NOT_CONFIGURED", "question answering is not configured", false, nil)
		return
	}

	var req askRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAskBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid ask request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "QUESTION_REQUIRED", pipeline.ErrEmptyQuestion.Error(), false, nil)
		return
	}

	session, _ := sessionID(w, r, true)
	// A started run always finishes and is recorded, even if the client goes away.
	ctx := observability.ContextWithSessionID(context.WithoutCancel(r.Context()), session)

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set(sessionHeader, session)
	w.WriteHeader(http.StatusOK)

	controller := http.NewResponseController(w)
	encoder := json.NewEncoder(w)
	writeLine := func(payload any) {
		if err := encoder.Encode(payload); err != nil {
			deps.Logger.WarnContext(ctx, "write ask stream", append(observability.RequestAttrs(ctx), slog.String("error", err.Error()))...)
			return
		}
		_ = controller.Flush()
	}

	_, err := deps.Pipeline.Run(ctx, req.Question, func(step pipeline.Step) {
		entry := transcript.Entry{Label: step.Label, Content: step.Content}
		if err := deps.Transcripts.Append(ctx, session, entry); err != nil {
			deps.Logger.ErrorContext(ctx, "append transcript entry",
				append(observability.RequestAttrs(ctx),
					slog.String("label", entry.Label),
					slog.String("error", err.Error()),
				)...,
			)
		}
		writeLine(entry)
	})
	if err != nil {
		code, retryable, extra := classifyPipelineError(err)
		writeLine(streamError{Error: errorBody(ctx, code, err.Error(), retryable, extra)})
	}
}

func classifyPipelineError(err error) (string, bool, map[string]any) {
	var synthErr *nl2sql.SynthesisError
	if !errors.As(err, &synthErr) {
		return "PIPELINE_FAILED", true, nil
	}
	extra := map[string]any{"stage": synthErr.Stage}
	if errors.Is(err, nl2sql.ErrMalformedOutput) {
		return "MALFORMED_MODEL_OUTPUT", true, extra
	}
	var statusErr *llm.StatusError
	if errors.As(err, &statusErr) {
		extra["provider_status"] = statusErr.StatusCode
		return "MODEL_REQUEST_FAILED", statusErr.Retryable(), extra
	}
	retryable := errors.Is(err, context.DeadlineExceeded)
	return "SYNTHESIS_FAILED", retryable, extra
}
