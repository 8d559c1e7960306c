package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"

	"github.com/siddham-jain/msme-mitr-sub000/internal/llm"
	"github.com/siddham-jain/msme-mitr-sub000/internal/schemes"
	"github.com/siddham-jain/msme-mitr-sub000/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testLLM(baseURL string) *llm.Client {
	return llm.NewClient(llm.Options{
		APIKey:        "test-key",
		BaseURL:       baseURL,
		PrimaryModel:  "primary-model",
		FallbackModel: "fallback-model",
		MaxTokens:     512,
		Temperature:   0.1,
	}, discardLogger())
}

func chatResponse(t *testing.T, w http.ResponseWriter, content string) {
	t.Helper()
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"role": "assistant", "content": content}},
		},
	})
}

func seededStore(t *testing.T) (*store.Memory, uuid.UUID, uuid.UUID, uuid.UUID) {
	t.Helper()
	mem := store.NewMemory()
	convID, userID := uuid.New(), uuid.New()
	mem.SeedConversation(convID, userID, []store.Message{
		{Role: "user", Content: "mera garment business Surat में है"},
		{Role: "assistant", Content: "PMEGP might suit you."},
		{Role: "user", Content: "pmegp ke liye documents kya chahiye? turnover 5 lakh hai"},
	})
	schemeID := uuid.New()
	mem.SeedSchemes([]store.Scheme{
		{ID: schemeID, Name: "PMEGP (Prime Minister's Employment Generation Programme)"},
		{ID: uuid.New(), Name: "Mudra Loan"},
	})
	return mem, convID, userID, schemeID
}

func TestExtract_Success(t *testing.T) {
	payload := `{
		"location": "surat",
		"industry": "garment manufacturing",
		"business_size": "",
		"annual_turnover": "5 lakh",
		"employee_count": 4,
		"scheme_interests": [{"name": "pmegp", "interest_level": "detailed"}],
		"confidence": 0.85,
		"notes": "asked about PMEGP documents",
		"detected_languages": ["hi-en"]
	}`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		chatResponse(t, w, payload)
	}))
	defer server.Close()

	mem, convID, userID, schemeID := seededStore(t)
	ext := New(testLLM(server.URL+"/v1"), mem, mem, schemes.NewSubstringMatcher(), 0.4, discardLogger())

	result, err := ext.Extract(context.Background(), convID, userID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Method != MethodAI {
		t.Errorf("expected method ai, got %q", result.Method)
	}
	if result.Location != "Surat" {
		t.Errorf("expected normalized location Surat, got %q", result.Location)
	}
	if result.Original["location"] != "surat" {
		t.Errorf("expected raw location preserved, got %q", result.Original["location"])
	}
	if result.Industry != "Textiles" {
		t.Errorf("expected industry Textiles, got %q", result.Industry)
	}
	if result.AnnualTurnover != 500000 {
		t.Errorf("expected turnover 500000, got %d", result.AnnualTurnover)
	}
	if result.Original["annual_turnover"] != "5 lakh" {
		t.Errorf("expected raw turnover preserved, got %q", result.Original["annual_turnover"])
	}
	if result.BusinessSize != store.SizeMicro {
		t.Errorf("expected Micro from 4 employees, got %q", result.BusinessSize)
	}
	if len(result.SchemeInterests) != 1 {
		t.Fatalf("expected 1 matched scheme, got %d", len(result.SchemeInterests))
	}
	if result.SchemeInterests[0].SchemeID != schemeID {
		t.Errorf("scheme matched to wrong catalog entry")
	}
	if result.SchemeInterests[0].Level != store.LevelDetailed {
		t.Errorf("expected detailed level, got %s", result.SchemeInterests[0].Level)
	}
	// Script detection sees Latin + Devanagari; the model's hi-en tag merges in.
	want := map[string]bool{"en": true, "hi": true, "hi-en": true}
	for _, tag := range result.DetectedLanguages {
		delete(want, tag)
	}
	if len(want) != 0 {
		t.Errorf("missing language tags %v in %v", want, result.DetectedLanguages)
	}
}

func TestExtract_FallbackModelAfterPrimaryFailure(t *testing.T) {
	payload := `{"location": "pune", "industry": "retail", "confidence": 0.7, "scheme_interests": []}`
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		calls.Add(1)
		if req["model"] == "primary-model" {
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": "overloaded"}})
			return
		}
		chatResponse(t, w, payload)
	}))
	defer server.Close()

	mem, convID, userID, _ := seededStore(t)
	ext := New(testLLM(server.URL+"/v1"), mem, mem, schemes.NewSubstringMatcher(), 0.4, discardLogger())

	result, err := ext.Extract(context.Background(), convID, userID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Method != MethodAI {
		t.Errorf("fallback model success should still be method ai, got %q", result.Method)
	}
	if result.Location != "Pune" {
		t.Errorf("expected Pune, got %q", result.Location)
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 endpoint calls, got %d", calls.Load())
	}
}

func TestExtract_RuleBasedWhenEndpointDown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	mem, convID, userID, schemeID := seededStore(t)
	ext := New(testLLM(server.URL+"/v1"), mem, mem, schemes.NewSubstringMatcher(), 0.4, discardLogger())

	result, err := ext.Extract(context.Background(), convID, userID)
	if err != nil {
		t.Fatalf("degraded endpoint must not fail extraction: %v", err)
	}
	if result.Method != MethodFallback {
		t.Errorf("expected method fallback, got %q", result.Method)
	}
	if result.Confidence != 0.4 {
		t.Errorf("expected fixed fallback confidence 0.4, got %f", result.Confidence)
	}
	if result.Industry != "Textiles" {
		t.Errorf("expected keyword hit on garment, got %q", result.Industry)
	}
	if len(result.SchemeInterests) != 1 || result.SchemeInterests[0].SchemeID != schemeID {
		t.Errorf("expected pmegp keyword matched to catalog, got %+v", result.SchemeInterests)
	}
	if result.SchemeInterests[0].Level != store.LevelMentioned {
		t.Errorf("fallback candidates are level mentioned, got %s", result.SchemeInterests[0].Level)
	}
}

func TestExtract_UnparsableThenRuleBased(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		chatResponse(t, w, "sorry, I cannot produce JSON today")
	}))
	defer server.Close()

	mem, convID, userID, _ := seededStore(t)
	ext := New(testLLM(server.URL+"/v1"), mem, mem, schemes.NewSubstringMatcher(), 0.4, discardLogger())

	result, err := ext.Extract(context.Background(), convID, userID)
	if err != nil {
		t.Fatalf("parse failure must degrade, not fail: %v", err)
	}
	if result.Method != MethodFallback {
		t.Errorf("expected fallback after unparsable responses, got %q", result.Method)
	}
}

func TestExtract_NoMessages(t *testing.T) {
	mem := store.NewMemory()
	convID, userID := uuid.New(), uuid.New()
	mem.SeedConversation(convID, userID, nil)

	ext := New(testLLM("http://unused"), mem, mem, schemes.NewSubstringMatcher(), 0.4, discardLogger())
	if _, err := ext.Extract(context.Background(), convID, userID); !errors.Is(err, ErrNoMessages) {
		t.Fatalf("expected ErrNoMessages, got %v", err)
	}
}

func TestExtract_UnmatchedSchemesDropped(t *testing.T) {
	payload := `{
		"location": "jaipur", "industry": "handicraft", "confidence": 0.9,
		"scheme_interests": [
			{"name": "mudra", "interest_level": "inquired"},
			{"name": "some imaginary scheme", "interest_level": "detailed"}
		]
	}`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		chatResponse(t, w, payload)
	}))
	defer server.Close()

	mem, convID, userID, _ := seededStore(t)
	ext := New(testLLM(server.URL+"/v1"), mem, mem, schemes.NewSubstringMatcher(), 0.4, discardLogger())

	result, err := ext.Extract(context.Background(), convID, userID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.SchemeInterests) != 1 {
		t.Fatalf("expected unmatched candidate dropped, got %d", len(result.SchemeInterests))
	}
	if result.SchemeInterests[0].SchemeName != "Mudra Loan" {
		t.Errorf("expected Mudra Loan, got %q", result.SchemeInterests[0].SchemeName)
	}
	if result.SchemeInterests[0].Level != store.LevelInquired {
		t.Errorf("expected inquired, got %s", result.SchemeInterests[0].Level)
	}
}
