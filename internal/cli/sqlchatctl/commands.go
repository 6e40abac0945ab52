package sqlchatctl

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

func newAskCommand(s *settings) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question and stream the generated query, result and answer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.TrimSpace(strings.Join(args, " "))
			if question == "" {
				return usageError{fmt.Errorf("question is required")}
			}
			req, err := s.newRequest(cmd.Context(), http.MethodPost, "/v1/ask", map[string]string{"question": question})
			if err != nil {
				return err
			}
			req.Header.Set("Accept", "application/x-ndjson")
			resp, err := s.client.Do(req)
			if err != nil {
				return fmt.Errorf("request failed: %w", err)
			}
			defer func() { _ = resp.Body.Close() }()

			if resp.StatusCode >= 400 {
				raw, _ := io.ReadAll(resp.Body)
				return decodeAPIError(resp.StatusCode, raw)
			}

			scanner := bufio.NewScanner(resp.Body)
			scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
			for scanner.Scan() {
				line := strings.TrimSpace(scanner.Text())
				if line == "" {
					continue
				}
				var msg struct {
					entry
					Error *apiError `json:"error"`
				}
				if err := json.Unmarshal([]byte(line), &msg); err != nil {
					return fmt.Errorf("decode stream line: %w", err)
				}
				if msg.Error != nil {
					return *msg.Error
				}
				renderEntry(s, msg.entry)
			}
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("read stream: %w", err)
			}

			if session := resp.Header.Get(sessionHeader); session != "" && session != s.sessionID {
				_, _ = fmt.Fprintln(s.stderr, pterm.FgGray.Sprintf("session %s (pass --session to continue it)", session))
			}
			return nil
		},
	}
}

func newTranscriptCommand(s *settings) *cobra.Command {
	return &cobra.Command{
		Use:   "transcript",
		Short: "Show the transcript of the current session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var body struct {
				SessionID string  `json:"session_id"`
				Entries   []entry `json:"entries"`
			}
			if err := s.doJSON(cmd.Context(), http.MethodGet, "/v1/transcript", nil, &body); err != nil {
				return err
			}
			if len(body.Entries) == 0 {
				_, _ = fmt.Fprintln(s.stdout, "transcript is empty")
				return nil
			}
			for _, e := range body.Entries {
				renderEntry(s, e)
			}
			return nil
		},
	}
}

func newSchemaCommand(s *settings) *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Show the table descriptions given to the model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var body struct {
				Dialect   string `json:"dialect"`
				TableInfo string `json:"table_info"`
			}
			if err := s.doJSON(cmd.Context(), http.MethodGet, "/v1/schema", nil, &body); err != nil {
				return err
			}
			title := pterm.NewStyle(pterm.FgCyan, pterm.Bold).Sprint("Schema (" + body.Dialect + ")")
			_, _ = fmt.Fprintln(s.stdout, pterm.DefaultBox.WithTitle(title).WithPadding(1).Sprint(body.TableInfo))
			return nil
		},
	}
}

func newHealthCommand(s *settings) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check liveness and readiness of the API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, path := range []string{"/v1/health", "/v1/ready"} {
				var body map[string]any
				if err := s.doJSON(cmd.Context(), http.MethodGet, path, nil, &body); err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				formatted, err := json.MarshalIndent(body, "", "  ")
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(s.stdout, "%s %s\n", pterm.FgGreen.Sprint("ok"), path)
				_, _ = fmt.Fprintln(s.stdout, string(formatted))
			}
			return nil
		},
	}
}

func newResetCommand(s *settings) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "End the session: archive (when enabled) and clear its transcript",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(s.sessionID) == "" {
				return usageError{fmt.Errorf("--session is required for reset")}
			}
			var body struct {
				Cleared    bool   `json:"cleared"`
				ArchiveKey string `json:"archive_key"`
			}
			if err := s.doJSON(cmd.Context(), http.MethodDelete, "/v1/transcript", nil, &body); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(s.stdout, "session cleared")
			if body.ArchiveKey != "" {
				_, _ = fmt.Fprintf(s.stdout, "archived to %s\n", body.ArchiveKey)
			}
			return nil
		},
	}
}

func renderEntry(s *settings, e entry) {
	style := pterm.NewStyle(pterm.FgLightCyan, pterm.Bold)
	if e.Label == "Answer" {
		style = pterm.NewStyle(pterm.FgGreen, pterm.Bold)
	}
	content := e.Content
	if content == "" {
		content = pterm.FgGray.Sprint("(empty)")
	}
	_, _ = fmt.Fprintln(s.stdout, pterm.DefaultBox.WithTitle(style.Sprint(e.Label)).WithPadding(1).Sprint(content))
}
