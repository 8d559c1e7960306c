package store

import (
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// JobPriority orders claiming: lower value claims first.
type JobPriority int

const (
	PriorityHigh   JobPriority = 1
	PriorityNormal JobPriority = 2
	PriorityLow    JobPriority = 3
)

// ExtractionJob is a unit of deferred work: analyze one conversation snapshot.
type ExtractionJob struct {
	ID                       uuid.UUID   `json:"id"`
	ConversationID           uuid.UUID   `json:"conversation_id"`
	UserID                   uuid.UUID   `json:"user_id"`
	Status                   JobStatus   `json:"status"`
	Priority                 JobPriority `json:"priority"`
	MessageCountAtExtraction int         `json:"message_count_at_extraction"`
	RetryCount               int         `json:"retry_count"`
	ErrorMessage             string      `json:"error_message,omitempty"`
	CompletionNote           string      `json:"completion_note,omitempty"`
	NextAttemptAt            time.Time   `json:"next_attempt_at"`
	CreatedAt                time.Time   `json:"created_at"`
	StartedAt                *time.Time  `json:"started_at,omitempty"`
	CompletedAt              *time.Time  `json:"completed_at,omitempty"`
}

type BusinessSize string

const (
	SizeMicro  BusinessSize = "Micro"
	SizeSmall  BusinessSize = "Small"
	SizeMedium BusinessSize = "Medium"
)

// UserAttribute is one extraction outcome per (user, conversation) pair.
// OriginalLanguageData keeps the pre-normalization values for audit.
type UserAttribute struct {
	ID                   uuid.UUID         `json:"id"`
	UserID               uuid.UUID         `json:"user_id"`
	ConversationID       uuid.UUID         `json:"conversation_id"`
	Location             string            `json:"location,omitempty"`
	Industry             string            `json:"industry,omitempty"`
	BusinessSize         BusinessSize      `json:"business_size,omitempty"`
	AnnualTurnover       int64             `json:"annual_turnover,omitempty"` // INR, 0 = unknown
	EmployeeCount        int               `json:"employee_count,omitempty"`  // 0 = unknown
	DetectedLanguages    []string          `json:"detected_languages,omitempty"`
	OriginalLanguageData map[string]string `json:"original_language_data,omitempty"`
	ExtractionConfidence float64           `json:"extraction_confidence"`
	ExtractionMethod     string            `json:"extraction_method"` // ai | manual | inferred | fallback
	Anonymized           bool              `json:"anonymized,omitempty"`
	AnonymizedAt         *time.Time        `json:"anonymized_at,omitempty"`
	CreatedAt            time.Time         `json:"created_at"`
	UpdatedAt            time.Time         `json:"updated_at"`
}

// InterestLevel is an ordered scale: mentioned < inquired < detailed.
type InterestLevel string

const (
	LevelMentioned InterestLevel = "mentioned"
	LevelInquired  InterestLevel = "inquired"
	LevelDetailed  InterestLevel = "detailed"
)

// SchemeInterest is one row per (user, scheme). Repeated extractions
// overwrite InterestLevel with the latest detected value — a later
// "mentioned" can replace an earlier "detailed".
type SchemeInterest struct {
	ID                   uuid.UUID     `json:"id"`
	UserID               uuid.UUID     `json:"user_id"`
	SchemeID             uuid.UUID     `json:"scheme_id"`
	SchemeName           string        `json:"scheme_name"`
	InterestLevel        InterestLevel `json:"interest_level"`
	MentionCount         int           `json:"mention_count"`
	MentionedInLanguages []string      `json:"mentioned_in_languages,omitempty"`
	FirstMentionedAt     time.Time     `json:"first_mentioned_at"`
	LastMentionedAt      time.Time     `json:"last_mentioned_at"`
}

// Message is a read-only row from the external conversation store.
type Message struct {
	Role      string
	Content   string
	CreatedAt time.Time
}

// Scheme is a read-only row from the external scheme catalog.
type Scheme struct {
	ID   uuid.UUID
	Name string
}

type QueueStats struct {
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}

// Filter narrows analytics queries. Zero values mean "no constraint".
type Filter struct {
	From         time.Time
	To           time.Time
	Location     string
	Industry     string
	BusinessSize BusinessSize
	Languages    []string
}

// Page carries pagination and sort for raw listings.
type Page struct {
	Number   int
	Size     int
	SortBy   string
	SortDesc bool
}

func (p Page) Offset() int {
	if p.Number < 1 {
		return 0
	}
	return (p.Number - 1) * p.Size
}
