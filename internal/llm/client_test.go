package llm

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testClient(baseURL string) *Client {
	return NewClient(Options{
		APIKey:        "test-key",
		BaseURL:       baseURL,
		PrimaryModel:  "primary-model",
		FallbackModel: "fallback-model",
		MaxTokens:     512,
		Temperature:   0.1,
	}, discardLogger())
}

func TestComplete_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if req["model"] != "primary-model" {
			t.Errorf("expected model primary-model, got %v", req["model"])
		}
		if rf, ok := req["response_format"].(map[string]any); !ok || rf["type"] != "json_object" {
			t.Errorf("expected json_object response format, got %v", req["response_format"])
		}
		if temp, ok := req["temperature"].(float64); !ok || temp > 0.2 {
			t.Errorf("expected low temperature, got %v", req["temperature"])
		}

		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": `{"ok":true}`}},
			},
		})
	}))
	defer server.Close()

	c := testClient(server.URL + "/v1")
	out, err := c.Complete(context.Background(), "primary-model", "you are a test", "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != `{"ok":true}` {
		t.Errorf("unexpected response: %q", out)
	}
}

func TestComplete_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "overloaded", "type": "server_error"},
		})
	}))
	defer server.Close()

	c := testClient(server.URL + "/v1")
	if _, err := c.Complete(context.Background(), "primary-model", "", "hi"); err == nil {
		t.Fatal("expected error for API failure")
	}
}

func TestModels_Order(t *testing.T) {
	c := testClient("http://unused")
	models := c.Models()
	if len(models) != 2 || models[0] != "primary-model" || models[1] != "fallback-model" {
		t.Errorf("unexpected model order: %v", models)
	}

	c = NewClient(Options{PrimaryModel: "only-model"}, discardLogger())
	models = c.Models()
	if len(models) != 1 || models[0] != "only-model" {
		t.Errorf("expected single model, got %v", models)
	}
}
