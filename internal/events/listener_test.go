package events

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"

	"github.com/siddham-jain/msme-mitr-sub000/internal/store"
	"github.com/siddham-jain/msme-mitr-sub000/internal/trigger"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func eventPayload(t *testing.T, convID, userID uuid.UUID, count int) []byte {
	t.Helper()
	data, err := json.Marshal(MessageStored{
		ConversationID: convID, UserID: userID, MessageCount: count,
	})
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func seedConversation(mem *store.Memory, n int) (uuid.UUID, uuid.UUID) {
	convID, userID := uuid.New(), uuid.New()
	msgs := make([]store.Message, n)
	for i := range msgs {
		msgs[i] = store.Message{Role: "user", Content: "business plan please"}
	}
	mem.SeedConversation(convID, userID, msgs)
	return convID, userID
}

func TestHandleMessageStored_EnqueuesOnTrigger(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()
	convID, userID := seedConversation(mem, 4)

	l := NewListener(trigger.New(mem, mem, 3, discardLogger()), mem, discardLogger())
	l.HandleMessageStored(ctx, eventPayload(t, convID, userID, 4))

	stats, _ := mem.QueueStats(ctx)
	if stats.Pending != 1 {
		t.Fatalf("expected 1 pending job, got %+v", stats)
	}
}

func TestHandleMessageStored_DuplicateEventSingleJob(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()
	convID, userID := seedConversation(mem, 4)

	l := NewListener(trigger.New(mem, mem, 3, discardLogger()), mem, discardLogger())
	payload := eventPayload(t, convID, userID, 4)
	l.HandleMessageStored(ctx, payload)
	l.HandleMessageStored(ctx, payload)

	stats, _ := mem.QueueStats(ctx)
	if stats.Pending != 1 {
		t.Fatalf("redelivered event must not duplicate the job, got %+v", stats)
	}
}

func TestHandleMessageStored_NoTriggerNoJob(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()
	convID, userID := uuid.New(), uuid.New()
	mem.SeedConversation(convID, userID, []store.Message{
		{Role: "user", Content: "hello"},
	})

	l := NewListener(trigger.New(mem, mem, 3, discardLogger()), mem, discardLogger())
	l.HandleMessageStored(ctx, eventPayload(t, convID, userID, 1))

	stats, _ := mem.QueueStats(ctx)
	if stats.Pending != 0 {
		t.Fatalf("below threshold must not enqueue, got %+v", stats)
	}
}

func TestHandleMessageStored_MalformedDropped(t *testing.T) {
	mem := store.NewMemory()
	l := NewListener(trigger.New(mem, mem, 3, discardLogger()), mem, discardLogger())

	l.HandleMessageStored(context.Background(), []byte("{not json"))
	l.HandleMessageStored(context.Background(), []byte(`{"message_count": 5}`))

	stats, _ := mem.QueueStats(context.Background())
	if stats.Pending != 0 {
		t.Fatalf("malformed events must be dropped, got %+v", stats)
	}
}
