package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrDuplicateJob is returned when a non-terminal job already exists for the
// same (conversation, messageCountAtExtraction) snapshot.
var ErrDuplicateJob = errors.New("duplicate extraction job for snapshot")

// JobStore owns the extraction job lifecycle.
type JobStore interface {
	// EnqueueJob inserts a pending job. Returns ErrDuplicateJob when a
	// pending or processing job already exists for the same snapshot.
	EnqueueJob(ctx context.Context, job *ExtractionJob) error
	// ClaimJobs atomically moves up to limit eligible pending jobs to
	// processing and returns them, ordered by priority then age. Jobs whose
	// next attempt time is after now are not eligible.
	ClaimJobs(ctx context.Context, limit int, now time.Time) ([]ExtractionJob, error)
	CompleteJob(ctx context.Context, id uuid.UUID, note string) error
	// ScheduleRetry resets a job to pending with the error recorded and the
	// retry count incremented; the job stays invisible to ClaimJobs until
	// nextAttempt.
	ScheduleRetry(ctx context.Context, id uuid.UUID, errMsg string, nextAttempt time.Time) error
	FailJob(ctx context.Context, id uuid.UUID, errMsg string) error
	// LastSnapshot returns the message count recorded by the most recent job
	// for the conversation, or 0 when the conversation has never been queued.
	LastSnapshot(ctx context.Context, conversationID uuid.UUID) (int, error)
	QueueStats(ctx context.Context) (QueueStats, error)
	RetryFailedJobs(ctx context.Context) (int, error)
	PurgeCompletedJobs(ctx context.Context, olderThan time.Time) (int, error)
}

// AttributeStore persists extraction outcomes.
type AttributeStore interface {
	// UpsertAttribute writes the attribute keyed by (user, conversation).
	// An existing row is only replaced when the new confidence is strictly
	// greater; returns false when the write was skipped for that reason.
	UpsertAttribute(ctx context.Context, attr *UserAttribute) (bool, error)
	ListAttributes(ctx context.Context, f Filter, p Page) ([]UserAttribute, int, error)
	// AttributesInRange returns the full filtered row set for in-memory
	// aggregation.
	AttributesInRange(ctx context.Context, f Filter) ([]UserAttribute, error)
}

// InterestStore persists scheme-interest signals.
type InterestStore interface {
	// UpsertInterest writes the interest keyed by (user, scheme). On
	// conflict the level is overwritten with the latest value, the mention
	// count incremented and the language set unioned.
	UpsertInterest(ctx context.Context, in *SchemeInterest) error
	ListInterests(ctx context.Context, p Page) ([]SchemeInterest, int, error)
	InterestsByUsers(ctx context.Context, userIDs []uuid.UUID) ([]SchemeInterest, error)
}

// ConversationReader reads the external conversation store. This subsystem
// never writes through it.
type ConversationReader interface {
	// Conversation returns the owning user and current message count.
	Conversation(ctx context.Context, id uuid.UUID) (userID uuid.UUID, messageCount int, err error)
	// Messages returns the full ordered history for a conversation.
	Messages(ctx context.Context, conversationID uuid.UUID) ([]Message, error)
	// UserMessagesSince returns up to limit user-authored message bodies
	// after the given message index, oldest first.
	UserMessagesSince(ctx context.Context, conversationID uuid.UUID, afterIndex, limit int) ([]string, error)
}

// SchemeReader reads the external scheme catalog.
type SchemeReader interface {
	ActiveSchemes(ctx context.Context) ([]Scheme, error)
}
