package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/kbukum/pipeflow/errors"
	"github.com/kbukum/pipeflow/llm"
)

func newClient(t *testing.T, h http.HandlerFunc) *llm.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := llm.New(llm.Config{Dialect: DialectName, BaseURL: srv.URL, Model: "gpt-4o-mini", APIKey: "sk-test"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestClient_Execute(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var req chatRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Model != "gpt-4o-mini" || len(req.Messages) != 1 {
			t.Errorf("unexpected request %+v", req)
		}
		w.Write([]byte(`{"model":"gpt-4o-mini","choices":[{"message":{"role":"assistant","content":"hi"},"finish_reason":"stop"}],"usage":{"prompt_tokens":3,"completion_tokens":1,"total_tokens":4}}`))
	})

	resp, err := c.Execute(context.Background(), llm.UserPrompt("", "hello"))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if resp.Content != "hi" || resp.Usage.TotalTokens != 4 {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestClient_Execute_ContentPolicy(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"rejected prompt", http.StatusBadRequest, `{"error":{"message":"flagged","type":"invalid_request_error","code":"content_policy_violation"}}`},
		{"filtered completion", http.StatusOK, `{"model":"m","choices":[{"message":{"role":"assistant","content":""},"finish_reason":"content_filter"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})
			_, err := c.Execute(context.Background(), llm.UserPrompt("", "x"))
			if errors.CodeOf(err) != errors.ErrCodeContentPolicy {
				t.Fatalf("expected CONTENT_POLICY, got %v", err)
			}
			if errors.KindOf(err) != errors.KindFatal {
				t.Errorf("kind = %s, want fatal", errors.KindOf(err))
			}
		})
	}
}

func TestClient_Execute_TransientThenSuccess(t *testing.T) {
	var calls int32
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"model":"m","choices":[{"message":{"content":"ok"},"finish_reason":"stop"}]}`))
	})

	_, err := c.Execute(context.Background(), llm.UserPrompt("", "x"))
	if !errors.IsRetryable(err) {
		t.Fatalf("502 should be retryable, got %v", err)
	}
	resp, err := c.Execute(context.Background(), llm.UserPrompt("", "x"))
	if err != nil || resp.Content != "ok" {
		t.Fatalf("second attempt: %+v %v", resp, err)
	}
}

func TestDialect_ParseResponse_NoChoices(t *testing.T) {
	if _, err := (&Dialect{}).ParseResponse([]byte(`{"choices":[]}`)); err == nil {
		t.Fatal("expected error for empty choices")
	}
}
