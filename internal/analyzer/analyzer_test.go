package analyzer_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kendricksin/feed-scanner/internal/analyzer"
)

func TestSummarize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer k" {
			t.Errorf("authorization = %q", got)
		}
		var payload struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatal(err)
		}
		if payload.Model != "m" || len(payload.Messages) != 2 {
			t.Errorf("payload = %+v", payload)
		}
		w.Write([]byte(`{"choices":[{"message":{"content":" a short summary "}}]}`))
	}))
	defer srv.Close()

	c := analyzer.NewClient(analyzer.Config{Endpoint: srv.URL, Model: "m", APIKey: "k"})
	got, err := c.Summarize(context.Background(), "document text")
	if err != nil {
		t.Fatal(err)
	}
	if got != "a short summary" {
		t.Errorf("summary = %q", got)
	}
}

func TestSummarizeAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"overloaded"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := analyzer.NewClient(analyzer.Config{Endpoint: srv.URL, Model: "m", APIKey: "k"})
	if _, err := c.Summarize(context.Background(), "text"); err == nil {
		t.Fatal("expected error for 429")
	}
}

func TestSummarizeMisconfigured(t *testing.T) {
	c := analyzer.NewClient(analyzer.Config{})
	if _, err := c.Summarize(context.Background(), "text"); err == nil {
		t.Fatal("expected error for missing configuration")
	}
}

func TestConfigEnabled(t *testing.T) {
	if (analyzer.Config{}).Enabled() {
		t.Error("empty config must not be enabled")
	}
	if !(analyzer.Config{Endpoint: "e", Model: "m", APIKey: "k"}).Enabled() {
		t.Error("complete config must be enabled")
	}
}
