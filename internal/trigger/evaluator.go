// Package trigger decides whether a conversation warrants a new extraction
// job. The evaluator is purely advisory: it never mutates anything, and any
// uncertainty resolves to "do not trigger".
package trigger

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/siddham-jain/msme-mitr-sub000/internal/store"
)

// recentMessageLimit caps how many user messages since the last snapshot are
// scanned for keywords.
const recentMessageLimit = 5

// Keyword sets are multilingual and matched case-insensitively as substrings.
var schemeKeywords = []string{
	"scheme", "yojana", "pmegp", "mudra", "udyam", "subsidy", "loan",
	"credit", "registration", "cgtmse", "vishwakarma",
	"योजना", "लोन", "सब्सिडी", "मुद्रा", "उद्यम", "पंजीकरण",
}

var businessKeywords = []string{
	"business", "turnover", "employees", "factory", "shop", "enterprise",
	"manufacturing", "export", "gst",
	"व्यापार", "कारोबार", "दुकान", "कारखाना", "कर्मचारी", "टर्नओवर",
}

// Decision is the evaluator's verdict, including the priority the enqueue
// path should use.
type Decision struct {
	Trigger  bool
	Reason   string
	Priority store.JobPriority
}

type Evaluator struct {
	conversations    store.ConversationReader
	jobs             store.JobStore
	messageThreshold int
	logger           *slog.Logger
}

func New(conversations store.ConversationReader, jobs store.JobStore, messageThreshold int, logger *slog.Logger) *Evaluator {
	return &Evaluator{
		conversations:    conversations,
		jobs:             jobs,
		messageThreshold: messageThreshold,
		logger:           logger,
	}
}

// ShouldTrigger applies the decision policy, first match wins:
//  1. messages since the last snapshot reached the threshold
//  2. a recent user message mentions a scheme or business keyword
//
// Read failures against the conversation store fail closed: never trigger on
// uncertain state.
func (e *Evaluator) ShouldTrigger(ctx context.Context, conversationID uuid.UUID) Decision {
	_, messageCount, err := e.conversations.Conversation(ctx, conversationID)
	if err != nil {
		e.logger.Error("trigger evaluation failed reading conversation",
			"conversation_id", conversationID, "error", err)
		return Decision{}
	}

	lastSnapshot, err := e.jobs.LastSnapshot(ctx, conversationID)
	if err != nil {
		e.logger.Error("trigger evaluation failed reading last snapshot",
			"conversation_id", conversationID, "error", err)
		return Decision{}
	}

	if messageCount-lastSnapshot >= e.messageThreshold {
		return Decision{Trigger: true, Reason: "message threshold reached", Priority: store.PriorityNormal}
	}

	recent, err := e.conversations.UserMessagesSince(ctx, conversationID, lastSnapshot, recentMessageLimit)
	if err != nil {
		e.logger.Error("trigger evaluation failed reading recent messages",
			"conversation_id", conversationID, "error", err)
		return Decision{}
	}
	text := strings.ToLower(strings.Join(recent, "\n"))
	if containsAny(text, schemeKeywords) {
		return Decision{Trigger: true, Reason: "scheme keyword", Priority: store.PriorityHigh}
	}
	if containsAny(text, businessKeywords) {
		return Decision{Trigger: true, Reason: "business keyword", Priority: store.PriorityHigh}
	}
	return Decision{}
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
