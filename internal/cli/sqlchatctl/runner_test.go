package sqlchatctl

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const testSession = "0b9f1c56-61a4-4ab6-9d1e-6f4b8f0b2a11"

func TestRunAskStreamsEntries(t *testing.T) {
	var gotMethod, gotPath, gotQuestion string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		var body struct {
			Question string `json:"question"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotQuestion = body.Question

		w.Header().Set("Content-Type", "application/x-ndjson")
		w.Header().Set(sessionHeader, testSession)
		_, _ = io.WriteString(w, `{"label":"Generated Query","content":"SELECT COUNT(*) FROM placements WHERE year = 2023 LIMIT 10;"}`+"\n")
		_, _ = io.WriteString(w, `{"label":"SQL Result","content":"[(5,)]"}`+"\n")
		_, _ = io.WriteString(w, `{"label":"Answer","content":"Five students were placed in 2023."}`+"\n")
	}))
	defer srv.Close()

	var stdout, stderr bytes.Buffer
	code := Run(context.Background(), []string{
		"--base-url", srv.URL,
		"--no-color",
		"ask", "How", "many", "students", "were", "placed", "in", "2023?",
	}, Options{Stdout: &stdout, Stderr: &stderr, Timeout: 2 * time.Second})
	if code != 0 {
		t.Fatalf("exit code = %d, stderr=%s", code, stderr.String())
	}
	if gotMethod != http.MethodPost || gotPath != "/v1/ask" {
		t.Fatalf("request = %s %s", gotMethod, gotPath)
	}
	if gotQuestion != "How many students were placed in 2023?" {
		t.Fatalf("question = %q", gotQuestion)
	}
	out := stdout.String()
	for _, want := range []string{"Generated Query", "SQL Result", "[(5,)]", "Five students were placed in 2023."} {
		if !strings.Contains(out, want) {
			t.Fatalf("stdout missing %q:\n%s", want, out)
		}
	}
	if !strings.Contains(stderr.String(), testSession) {
		t.Fatalf("stderr should print the new session id, got %q", stderr.String())
	}
}

func TestRunAskSendsSessionAndReportsStreamError(t *testing.T) {
	var gotSession string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSession = r.Header.Get(sessionHeader)
		_, _ = io.WriteString(w, `{"error":{"error_code":"MALFORMED_MODEL_OUTPUT","message":"model output is not valid","retryable":false}}`+"\n")
	}))
	defer srv.Close()

	var stderr bytes.Buffer
	code := Run(context.Background(), []string{
		"--base-url", srv.URL, "--session", testSession, "--no-color", "ask", "anything",
	}, Options{Stderr: &stderr})
	if code != 1 {
		t.Fatalf("exit code = %d, stderr=%s", code, stderr.String())
	}
	if gotSession != testSession {
		t.Fatalf("session header = %q", gotSession)
	}
	if !strings.Contains(stderr.String(), "MALFORMED_MODEL_OUTPUT") {
		t.Fatalf("stderr = %q", stderr.String())
	}
}

func TestRunAskHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error_code":"QUESTION_REQUIRED","message":"question is required"}`)
	}))
	defer srv.Close()

	var stderr bytes.Buffer
	code := Run(context.Background(), []string{"--base-url", srv.URL, "ask", " "}, Options{Stderr: &stderr})
	if code == 0 {
		t.Fatal("expected failure")
	}
}

func TestRunTranscriptCommand(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = io.WriteString(w, `{"session_id":"s","entries":[{"label":"Answer","content":"42"}]}`)
	}))
	defer srv.Close()

	var stdout bytes.Buffer
	code := Run(context.Background(), []string{"--base-url", srv.URL, "--no-color", "transcript"}, Options{Stdout: &stdout})
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if gotPath != "/v1/transcript" {
		t.Fatalf("path = %q", gotPath)
	}
	if !strings.Contains(stdout.String(), "42") {
		t.Fatalf("stdout = %q", stdout.String())
	}
}

func TestRunSchemaCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/schema" {
			http.NotFound(w, r)
			return
		}
		_, _ = io.WriteString(w, `{"dialect":"postgresql","table_info":"CREATE TABLE students (\n\tid integer NOT NULL\n)"}`)
	}))
	defer srv.Close()

	var stdout bytes.Buffer
	code := Run(context.Background(), []string{"--base-url", srv.URL, "--no-color", "schema"}, Options{Stdout: &stdout})
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.Contains(stdout.String(), "CREATE TABLE students") {
		t.Fatalf("stdout = %q", stdout.String())
	}
}

func TestRunHealthCommandChecksBothProbes(t *testing.T) {
	paths := make([]string, 0, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		_, _ = io.WriteString(w, `{"status":"ok"}`)
	}))
	defer srv.Close()

	code := Run(context.Background(), []string{"--base-url", srv.URL, "--no-color", "health"}, Options{})
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if strings.Join(paths, ",") != "/v1/health,/v1/ready" {
		t.Fatalf("paths = %v", paths)
	}
}

func TestRunResetCommand(t *testing.T) {
	var gotMethod, gotSession string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotSession = r.Header.Get(sessionHeader)
		_, _ = io.WriteString(w, `{"session_id":"s","cleared":true,"archive_key":"transcripts/2026-10-16/s.parquet"}`)
	}))
	defer srv.Close()

	var stdout bytes.Buffer
	code := Run(context.Background(), []string{"--base-url", srv.URL, "--session", testSession, "reset"}, Options{Stdout: &stdout})
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if gotMethod != http.MethodDelete || gotSession != testSession {
		t.Fatalf("request method=%s session=%q", gotMethod, gotSession)
	}
	if !strings.Contains(stdout.String(), "transcripts/2026-10-16/s.parquet") {
		t.Fatalf("stdout = %q", stdout.String())
	}
}

func TestRunResetRequiresSession(t *testing.T) {
	code := Run(context.Background(), []string{"--base-url", "http://127.0.0.1:1", "reset"}, Options{})
	if code != 2 {
		t.Fatalf("exit code = %d, want 2", code)
	}
}

func TestRunUnknownFlag(t *testing.T) {
	code := Run(context.Background(), []string{"--bogus"}, Options{})
	if code != 2 {
		t.Fatalf("exit code = %d, want 2", code)
	}
}
