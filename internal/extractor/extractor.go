package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/siddham-jain/msme-mitr-sub000/internal/llm"
	"github.com/siddham-jain/msme-mitr-sub000/internal/normalize"
	"github.com/siddham-jain/msme-mitr-sub000/internal/schemes"
	"github.com/siddham-jain/msme-mitr-sub000/internal/store"
)

// ErrNoMessages marks an empty conversation: fatal, never retried.
var ErrNoMessages = errors.New("conversation has no messages")

type Extractor struct {
	llm                *llm.Client
	conversations      store.ConversationReader
	schemes            store.SchemeReader
	matcher            schemes.Matcher
	fallbackConfidence float64
	logger             *slog.Logger
}

func New(client *llm.Client, conversations store.ConversationReader, schemeReader store.SchemeReader, matcher schemes.Matcher, fallbackConfidence float64, logger *slog.Logger) *Extractor {
	return &Extractor{
		llm:                client,
		conversations:      conversations,
		schemes:            schemeReader,
		matcher:            matcher,
		fallbackConfidence: fallbackConfidence,
		logger:             logger,
	}
}

// Extract runs the pipeline for one conversation: load history, detect
// languages, call the generation endpoint (primary then fallback model),
// degrade to the rule-based extractor when both fail, then normalize and
// match schemes. A degraded endpoint never fails the extraction; only an
// empty conversation or a catalog read failure does.
func (e *Extractor) Extract(ctx context.Context, conversationID, userID uuid.UUID) (*ExtractionResult, error) {
	msgs, err := e.conversations.Messages(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	if len(msgs) == 0 {
		return nil, ErrNoMessages
	}

	transcript, allText := formatHistory(msgs)
	languages := normalize.DetectLanguages(allText)

	resp, method := e.callEndpoint(ctx, conversationID, transcript)
	if resp == nil {
		resp = keywordExtract(strings.ToLower(allText), e.fallbackConfidence)
		method = MethodFallback
	}

	catalog, err := e.schemes.ActiveSchemes(ctx)
	if err != nil {
		return nil, fmt.Errorf("load scheme catalog: %w", err)
	}

	result := e.finalize(resp, method, languages, catalog)
	result.ConversationID = conversationID
	result.UserID = userID

	e.logger.Info("extraction complete",
		"conversation_id", conversationID,
		"method", method,
		"confidence", result.Confidence,
		"schemes", len(result.SchemeInterests),
		"languages", result.DetectedLanguages,
	)
	return result, nil
}

// callEndpoint tries each configured model once and returns the first
// parseable response, or nil when the endpoint is degraded.
func (e *Extractor) callEndpoint(ctx context.Context, conversationID uuid.UUID, transcript string) (*llmResponse, string) {
	prompt := fmt.Sprintf(extractionUserPrompt, transcript)
	for _, model := range e.llm.Models() {
		raw, err := e.llm.Complete(ctx, model, systemPrompt, prompt)
		if err != nil {
			e.logger.Warn("generation endpoint failed",
				"conversation_id", conversationID, "model", model, "error", err)
			continue
		}
		var resp llmResponse
		if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &resp); err != nil {
			e.logger.Warn("failed to parse extraction response",
				"conversation_id", conversationID, "model", model, "error", err)
			continue
		}
		return &resp, MethodAI
	}
	return nil, ""
}

// finalize normalizes the raw response and matches scheme candidates against
// the catalog. Raw values that differ from their canonical form are kept in
// Original for audit.
func (e *Extractor) finalize(resp *llmResponse, method string, languages []string, catalog []store.Scheme) *ExtractionResult {
	result := &ExtractionResult{
		Confidence: resp.Confidence,
		Notes:      resp.Notes,
		Method:     method,
		Original:   make(map[string]string),
	}

	result.Location = normalize.Location(resp.Location)
	if raw := strings.TrimSpace(resp.Location); raw != "" && raw != result.Location {
		result.Original["location"] = raw
	}

	result.Industry = normalize.Industry(resp.Industry)
	if raw := strings.TrimSpace(resp.Industry); raw != "" && raw != result.Industry {
		result.Original["industry"] = raw
	}

	rawTurnover := strings.TrimSpace(string(resp.AnnualTurnover))
	if amount, ok := normalize.INRAmount(rawTurnover); ok {
		result.AnnualTurnover = amount
		if rawTurnover != strconv.FormatInt(amount, 10) {
			result.Original["annual_turnover"] = rawTurnover
		}
	}

	result.EmployeeCount = resp.EmployeeCount
	size := normalize.BusinessSize(resp.EmployeeCount, result.AnnualTurnover, resp.BusinessSize)
	result.BusinessSize = store.BusinessSize(size)
	if raw := strings.TrimSpace(resp.BusinessSize); raw != "" && raw != size {
		result.Original["business_size"] = raw
	}

	result.DetectedLanguages = unionTags(languages, resp.DetectedLanguages)

	// Unmatched candidates are dropped silently.
	for _, mention := range resp.SchemeInterests {
		scheme, ok := e.matcher.Match(mention.Name, catalog)
		if !ok {
			continue
		}
		result.SchemeInterests = append(result.SchemeInterests, SchemeCandidate{
			SchemeID:   scheme.ID,
			SchemeName: scheme.Name,
			Level:      parseLevel(mention.InterestLevel),
		})
	}
	return result
}

// formatHistory renders the role-tagged transcript for the prompt and the
// concatenated text for language detection and keyword scans.
func formatHistory(msgs []store.Message) (transcript, allText string) {
	var tb, cb strings.Builder
	for _, m := range msgs {
		tb.WriteString(m.Role)
		tb.WriteString(": ")
		tb.WriteString(m.Content)
		tb.WriteString("\n")
		cb.WriteString(m.Content)
		cb.WriteString("\n")
	}
	return tb.String(), cb.String()
}

func unionTags(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, tag := range append(append([]string(nil), a...), b...) {
		tag = strings.TrimSpace(tag)
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}
