package trigger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"

	"github.com/siddham-jain/msme-mitr-sub000/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func userMsg(content string) store.Message {
	return store.Message{Role: "user", Content: content}
}

func TestShouldTrigger_BelowThresholdNoKeywords(t *testing.T) {
	mem := store.NewMemory()
	convID := uuid.New()
	mem.SeedConversation(convID, uuid.New(), []store.Message{
		userMsg("hello"),
		{Role: "assistant", Content: "hi, how can I help?"},
	})

	e := New(mem, mem, 3, discardLogger())
	if d := e.ShouldTrigger(context.Background(), convID); d.Trigger {
		t.Errorf("expected no trigger, got %+v", d)
	}
}

func TestShouldTrigger_ThresholdReachedRegardlessOfContent(t *testing.T) {
	mem := store.NewMemory()
	convID := uuid.New()
	mem.SeedConversation(convID, uuid.New(), []store.Message{
		userMsg("one"), userMsg("two"), userMsg("three"), userMsg("four"),
	})

	e := New(mem, mem, 3, discardLogger())
	d := e.ShouldTrigger(context.Background(), convID)
	if !d.Trigger {
		t.Fatal("expected trigger at threshold")
	}
	if d.Priority != store.PriorityNormal {
		t.Errorf("threshold trigger should be normal priority, got %d", d.Priority)
	}
}

func TestShouldTrigger_CountsSinceLastSnapshot(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()
	convID := uuid.New()
	mem.SeedConversation(convID, uuid.New(), []store.Message{
		userMsg("one"), userMsg("two"), userMsg("three"), userMsg("four"),
	})
	// A prior job already covered all four messages.
	_ = mem.EnqueueJob(ctx, &store.ExtractionJob{
		ConversationID: convID, Priority: store.PriorityNormal, MessageCountAtExtraction: 4,
	})

	e := New(mem, mem, 3, discardLogger())
	if d := e.ShouldTrigger(ctx, convID); d.Trigger {
		t.Errorf("no new messages since snapshot, expected no trigger, got %+v", d)
	}
}

func TestShouldTrigger_KeywordBelowThreshold(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"english scheme keyword", "can I get a mudra loan?"},
		{"hindi scheme keyword", "मुझे योजना के बारे में बताइए"},
		{"business keyword", "my turnover doubled this year"},
		{"hindi business keyword", "मेरी दुकान जयपुर में है"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := store.NewMemory()
			convID := uuid.New()
			mem.SeedConversation(convID, uuid.New(), []store.Message{
				userMsg(tt.content),
				{Role: "assistant", Content: "sure"},
			})

			e := New(mem, mem, 3, discardLogger())
			d := e.ShouldTrigger(context.Background(), convID)
			if !d.Trigger {
				t.Fatalf("expected keyword trigger for %q", tt.content)
			}
			if d.Priority != store.PriorityHigh {
				t.Errorf("keyword trigger should be high priority, got %d", d.Priority)
			}
		})
	}
}

func TestShouldTrigger_KeywordOnlyScansMessagesAfterSnapshot(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()
	convID := uuid.New()
	mem.SeedConversation(convID, uuid.New(), []store.Message{
		userMsg("tell me about mudra loan"), // covered by the prior snapshot
		userMsg("thanks"),
	})
	_ = mem.EnqueueJob(ctx, &store.ExtractionJob{
		ConversationID: convID, Priority: store.PriorityNormal, MessageCountAtExtraction: 1,
	})

	e := New(mem, mem, 3, discardLogger())
	if d := e.ShouldTrigger(ctx, convID); d.Trigger {
		t.Errorf("keyword before snapshot must not trigger, got %+v", d)
	}
}

func TestShouldTrigger_FailsClosedOnReadError(t *testing.T) {
	mem := store.NewMemory()
	convID := uuid.New()
	mem.SeedConversation(convID, uuid.New(), []store.Message{
		userMsg("one"), userMsg("two"), userMsg("three"), userMsg("four"),
	})
	mem.ConvErr = errors.New("connection refused")

	e := New(mem, mem, 3, discardLogger())
	if d := e.ShouldTrigger(context.Background(), convID); d.Trigger {
		t.Errorf("read failure must fail closed, got %+v", d)
	}
}
