package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap/zaptest"
)

func TestGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/generate" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Prompt != "summarize quantum computing" {
			t.Errorf("prompt = %q", req.Prompt)
		}
		if req.Temperature != 0.3 || req.MaxTokens != 256 {
			t.Errorf("params = %.2f/%d", req.Temperature, req.MaxTokens)
		}
		json.NewEncoder(w).Encode(generateResponse{Text: "a synthesis"})
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL}, zaptest.NewLogger(t))
	got, err := c.Generate(context.Background(), "summarize quantum computing", 0.3, 256)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "a synthesis" {
		t.Errorf("Generate = %q", got)
	}
}

func TestGenerateDefaults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Temperature != 0.7 || req.MaxTokens != 512 {
			t.Errorf("expected configured defaults, got %.2f/%d", req.Temperature, req.MaxTokens)
		}
		json.NewEncoder(w).Encode(generateResponse{Text: "ok"})
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, Temperature: 0.7, MaxTokens: 512}, zaptest.NewLogger(t))
	if _, err := c.Generate(context.Background(), "p", 0, 0); err != nil {
		t.Fatalf("Generate: %v", err)
	}
}

func TestGenerateErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(generateResponse{Error: "model overloaded"})
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL}, zaptest.NewLogger(t))
	if _, err := c.Generate(context.Background(), "p", 0, 0); err == nil {
		t.Fatal("expected error from error payload")
	}

	srv500 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv500.Close()

	c500 := NewClient(Config{BaseURL: srv500.URL}, zaptest.NewLogger(t))
	if _, err := c500.Generate(context.Background(), "p", 0, 0); err == nil {
		t.Fatal("expected error on 500 response")
	}
}
