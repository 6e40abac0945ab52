package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestCompleteSendsChatPayload(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer key-1" {
			t.Errorf("Authorization = %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode body: %v", err)
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{\"query\":\"SELECT 1\"}"}}]}`))
	}))
	defer server.Close()

	client, err := NewClient(Config{BaseURL: server.URL + "/", APIKey: " key-1 ", Model: "test-model"})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	got, err := client.Complete(context.Background(), Request{
		Messages: []Message{{Role: RoleSystem, Content: "sys"}, {Role: RoleUser, Content: "Question: hi"}},
		JSONMode: true,
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if got != `{"query":"SELECT 1"}` {
		t.Fatalf("Complete() = %q", got)
	}
	if captured["model"] != "test-model" {
		t.Fatalf("model = %v", captured["model"])
	}
	format, ok := captured["response_format"].(map[string]any)
	if !ok || format["type"] != "json_object" {
		t.Fatalf("response_format = %v", captured["response_format"])
	}
	messages, ok := captured["messages"].([]any)
	if !ok || len(messages) != 2 {
		t.Fatalf("messages = %v", captured["messages"])
	}
}

func TestCompleteFreeFormOmitsResponseFormat(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&captured)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"  There are 42.  "}}]}`))
	}))
	defer server.Close()

	client, err := NewClient(Config{BaseURL: server.URL, APIKey: "k"})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	got, err := client.Complete(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "q"}}})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if got != "  There are 42.  " {
		t.Fatalf("Complete() = %q", got)
	}
	if _, ok := captured["response_format"]; ok {
		t.Fatalf("unexpected response_format in %v", captured)
	}
	if client.ModelName() != "llama3-70b-8192" {
		t.Fatalf("ModelName() = %q", client.ModelName())
	}
}

func TestCompleteReportsProviderFailures(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		retryable bool
	}{
		{name: "rate limited", status: http.StatusTooManyRequests, body: `{"error":"slow down"}`, retryable: true},
		{name: "bad request", status: http.StatusBadRequest, body: `{"error":"bad"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client, _ := NewClient(Config{BaseURL: server.URL, APIKey: "k"})
			_, err := client.Complete(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "q"}}})
			var statusErr *StatusError
			if !errors.As(err, &statusErr) {
				t.Fatalf("Complete() error = %v, want *StatusError", err)
			}
			if statusErr.StatusCode != tt.status || statusErr.Retryable() != tt.retryable {
				t.Fatalf("status error = %+v", statusErr)
			}
		})
	}
}

func TestCompleteRejectsEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	client, _ := NewClient(Config{BaseURL: server.URL, APIKey: "k"})
	if _, err := client.Complete(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "q"}}}); err == nil {
		t.Fatal("expected error for empty choices")
	}
}

func TestNewClientValidatesConfig(t *testing.T) {
	if _, err := NewClient(Config{APIKey: "k"}); err == nil {
		t.Fatal("expected base URL error")
	}
	if _, err := NewClient(Config{BaseURL: "http://x"}); err == nil {
		t.Fatal("expected api key error")
	}
}

func TestNewClientImposesNoDefaultTimeout(t *testing.T) {
	c, err := NewClient(Config{BaseURL: "http://x", APIKey: "k"})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	if c.client.Timeout != 0 {
		t.Fatalf("timeout = %s, want none", c.client.Timeout)
	}
	if c.ModelName() != "llama3-70b-8192" {
		t.Fatalf("ModelName() = %q", c.ModelName())
	}

	c, err = NewClient(Config{BaseURL: "http://x", APIKey: "k", Timeout: 90 * time.Second})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	if c.client.Timeout != 90*time.Second {
		t.Fatalf("timeout = %s", c.client.Timeout)
	}
}
