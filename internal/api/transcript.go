package api

import (
	"log/slog"
	"net/http"

	"github.com/sqlchat/sqlchat/internal/observability"
	"github.com/sqlchat/sqlchat/internal/transcript"
)

func handleGetTranscript(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Transcripts == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "TRANSCRIPT_NOT_CONFIGURED", "transcript store is not configured", false, nil)
		return
	}
	session, ok := sessionID(w, r, false)
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"session_id": "", "entries": []transcript.Entry{}})
		return
	}
	entries, err := deps.Transcripts.List(r.Context(), session)
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "TRANSCRIPT_READ_FAILED", "failed to read transcript", true, map[string]any{"details": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session_id": session, "entries": entries})
}

// handleDeleteTranscript ends the session: the transcript is archived when
// an archiver is configured, then cleared. A failed upload keeps the
// transcript so the caller can retry.
func handleDeleteTranscript(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Transcripts == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "TRANSCRIPT_NOT_CONFIGURED", "transcript store is not configured", false, nil)
		return
	}
	session, ok := sessionID(w, r, false)
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"session_id": "", "cleared": false})
		return
	}
	ctx := observability.ContextWithSessionID(r.Context(), session)

	response := map[string]any{"session_id": session, "cleared": true}
	if deps.Archiver != nil {
		entries, err := deps.Transcripts.List(ctx, session)
		if err != nil {
			writeError(ctx, w, http.StatusInternalServerError, "TRANSCRIPT_READ_FAILED", "failed to read transcript", true, map[string]any{"details": err.Error()})
			return
		}
		info, err := deps.Archiver.Archive(ctx, session, entries)
		if err != nil {
			observability.ObserveTranscriptArchive(observability.OutcomeFailure)
			deps.Logger.ErrorContext(ctx, "archive transcript", append(observability.RequestAttrs(ctx), slog.String("error", err.Error()))...)
			writeError(ctx, w, http.StatusBadGateway, "ARCHIVE_FAILED", "failed to archive transcript", true, map[string]any{"details": err.Error()})
			return
		}
		if info.Key != "" {
			observability.ObserveTranscriptArchive(observability.OutcomeSuccess)
			response["archive_key"] = info.Key
		}
	}

	if err := deps.Transcripts.Clear(ctx, session); err != nil {
		writeError(ctx, w, http.StatusInternalServerError, "TRANSCRIPT_CLEAR_FAILED", "failed to clear transcript", true, map[string]any{"details": err.Error()})
		return
	}
	expireSession(w)
	writeJSON(w, http.StatusOK, response)
}
