package events

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/siddham-jain/msme-mitr-sub000/internal/store"
	"github.com/siddham-jain/msme-mitr-sub000/internal/trigger"
)

// MessageStored is the payload of SubjectMessageStored.
type MessageStored struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	UserID         uuid.UUID `json:"user_id"`
	MessageCount   int       `json:"message_count"`
}

// Subscriber is the event-source contract the listener needs; *Client
// satisfies it.
type Subscriber interface {
	Subscribe(subject string, handler func(subject string, data []byte)) error
}

// Listener turns stored-message events into extraction jobs via the trigger
// evaluator. Event handling never returns errors upstream: a bad event is
// logged and dropped, the stream keeps flowing.
type Listener struct {
	evaluator *trigger.Evaluator
	jobs      store.JobStore
	logger    *slog.Logger
}

func NewListener(evaluator *trigger.Evaluator, jobs store.JobStore, logger *slog.Logger) *Listener {
	return &Listener{evaluator: evaluator, jobs: jobs, logger: logger}
}

// Start subscribes the listener to the stored-message subject.
func (l *Listener) Start(ctx context.Context, sub Subscriber) error {
	return sub.Subscribe(SubjectMessageStored, func(_ string, data []byte) {
		l.HandleMessageStored(ctx, data)
	})
}

// HandleMessageStored evaluates one stored-message event and enqueues an
// extraction job when the trigger fires.
func (l *Listener) HandleMessageStored(ctx context.Context, data []byte) {
	var event MessageStored
	if err := json.Unmarshal(data, &event); err != nil {
		l.logger.Warn("dropping malformed message event", "error", err)
		return
	}
	if event.ConversationID == uuid.Nil {
		l.logger.Warn("dropping message event without conversation id")
		return
	}

	decision := l.evaluator.ShouldTrigger(ctx, event.ConversationID)
	if !decision.Trigger {
		return
	}

	job := &store.ExtractionJob{
		ConversationID:           event.ConversationID,
		UserID:                   event.UserID,
		Priority:                 decision.Priority,
		MessageCountAtExtraction: event.MessageCount,
	}
	err := l.jobs.EnqueueJob(ctx, job)
	switch {
	case errors.Is(err, store.ErrDuplicateJob):
		// Another event already queued this snapshot.
		l.logger.Debug("duplicate extraction job skipped",
			"conversation_id", event.ConversationID,
			"message_count", event.MessageCount,
		)
	case err != nil:
		l.logger.Error("failed to enqueue extraction job",
			"conversation_id", event.ConversationID, "error", err)
	default:
		l.logger.Info("extraction job enqueued",
			"job_id", job.ID,
			"conversation_id", event.ConversationID,
			"reason", decision.Reason,
			"priority", decision.Priority,
		)
	}
}
