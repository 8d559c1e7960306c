package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is an in-process implementation of every store interface. It backs
// unit tests and local development without Postgres; it is not crash-tolerant.
type Memory struct {
	mu         sync.Mutex
	jobs       map[uuid.UUID]*ExtractionJob
	attributes map[uuid.UUID]*UserAttribute // keyed by row id
	interests  map[uuid.UUID]*SchemeInterest
	convs      map[uuid.UUID]*memConversation
	schemes    []Scheme

	// ConvErr, when set, is returned by every conversation read. Tests use
	// it to exercise fail-closed behavior.
	ConvErr error
}

type memConversation struct {
	userID   uuid.UUID
	messages []Message
}

func NewMemory() *Memory {
	return &Memory{
		jobs:       make(map[uuid.UUID]*ExtractionJob),
		attributes: make(map[uuid.UUID]*UserAttribute),
		interests:  make(map[uuid.UUID]*SchemeInterest),
		convs:      make(map[uuid.UUID]*memConversation),
	}
}

// SeedConversation registers an external conversation with its messages.
func (m *Memory) SeedConversation(id, userID uuid.UUID, msgs []Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.convs[id] = &memConversation{userID: userID, messages: msgs}
}

// SeedSchemes registers the active scheme catalog.
func (m *Memory) SeedSchemes(schemes []Scheme) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schemes = schemes
}

func (m *Memory) EnqueueJob(_ context.Context, job *ExtractionJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, j := range m.jobs {
		if j.ConversationID == job.ConversationID &&
			j.MessageCountAtExtraction == job.MessageCountAtExtraction &&
			(j.Status == JobPending || j.Status == JobProcessing) {
			return ErrDuplicateJob
		}
	}
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	cp := *job
	cp.Status = JobPending
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	if cp.NextAttemptAt.IsZero() {
		cp.NextAttemptAt = cp.CreatedAt
	}
	m.jobs[cp.ID] = &cp
	return nil
}

func (m *Memory) ClaimJobs(_ context.Context, limit int, now time.Time) ([]ExtractionJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var eligible []*ExtractionJob
	for _, j := range m.jobs {
		if j.Status == JobPending && !j.NextAttemptAt.After(now) {
			eligible = append(eligible, j)
		}
	}
	sort.Slice(eligible, func(i, k int) bool {
		if eligible[i].Priority != eligible[k].Priority {
			return eligible[i].Priority < eligible[k].Priority
		}
		return eligible[i].CreatedAt.Before(eligible[k].CreatedAt)
	})
	if len(eligible) > limit {
		eligible = eligible[:limit]
	}

	claimed := make([]ExtractionJob, 0, len(eligible))
	for _, j := range eligible {
		j.Status = JobProcessing
		started := now
		j.StartedAt = &started
		claimed = append(claimed, *j)
	}
	return claimed, nil
}

func (m *Memory) CompleteJob(_ context.Context, id uuid.UUID, note string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.jobs[id]; ok {
		j.Status = JobCompleted
		j.CompletionNote = note
		done := time.Now()
		j.CompletedAt = &done
	}
	return nil
}

func (m *Memory) ScheduleRetry(_ context.Context, id uuid.UUID, errMsg string, nextAttempt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.jobs[id]; ok {
		j.Status = JobPending
		j.RetryCount++
		j.ErrorMessage = errMsg
		j.NextAttemptAt = nextAttempt
		j.StartedAt = nil
	}
	return nil
}

func (m *Memory) FailJob(_ context.Context, id uuid.UUID, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.jobs[id]; ok {
		j.Status = JobFailed
		j.ErrorMessage = errMsg
		done := time.Now()
		j.CompletedAt = &done
	}
	return nil
}

func (m *Memory) LastSnapshot(_ context.Context, conversationID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *ExtractionJob
	for _, j := range m.jobs {
		if j.ConversationID != conversationID {
			continue
		}
		if latest == nil || j.CreatedAt.After(latest.CreatedAt) {
			latest = j
		}
	}
	if latest == nil {
		return 0, nil
	}
	return latest.MessageCountAtExtraction, nil
}

func (m *Memory) QueueStats(_ context.Context) (QueueStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var stats QueueStats
	for _, j := range m.jobs {
		switch j.Status {
		case JobPending:
			stats.Pending++
		case JobProcessing:
			stats.Processing++
		case JobCompleted:
			stats.Completed++
		case JobFailed:
			stats.Failed++
		}
	}
	return stats, nil
}

func (m *Memory) RetryFailedJobs(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, j := range m.jobs {
		if j.Status == JobFailed {
			j.Status = JobPending
			j.RetryCount = 0
			j.ErrorMessage = ""
			j.NextAttemptAt = time.Now()
			j.StartedAt = nil
			j.CompletedAt = nil
			n++
		}
	}
	return n, nil
}

func (m *Memory) PurgeCompletedJobs(_ context.Context, olderThan time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, j := range m.jobs {
		if j.Status == JobCompleted && j.CompletedAt != nil && j.CompletedAt.Before(olderThan) {
			delete(m.jobs, id)
			n++
		}
	}
	return n, nil
}

// Job returns a copy of the stored job, for test assertions.
func (m *Memory) Job(id uuid.UUID) (ExtractionJob, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return ExtractionJob{}, false
	}
	return *j, true
}

func (m *Memory) UpsertAttribute(_ context.Context, attr *UserAttribute) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.attributes {
		if existing.UserID == attr.UserID && existing.ConversationID == attr.ConversationID {
			if attr.ExtractionConfidence <= existing.ExtractionConfidence {
				return false, nil
			}
			id, created := existing.ID, existing.CreatedAt
			cp := *attr
			cp.ID = id
			cp.CreatedAt = created
			cp.UpdatedAt = time.Now()
			m.attributes[id] = &cp
			return true, nil
		}
	}
	cp := *attr
	if cp.ID == uuid.Nil {
		cp.ID = uuid.New()
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	cp.UpdatedAt = cp.CreatedAt
	m.attributes[cp.ID] = &cp
	attr.ID = cp.ID
	return true, nil
}

// Attribute returns the stored row for a (user, conversation) pair.
func (m *Memory) Attribute(userID, conversationID uuid.UUID) (UserAttribute, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.attributes {
		if a.UserID == userID && a.ConversationID == conversationID {
			return *a, true
		}
	}
	return UserAttribute{}, false
}

func (m *Memory) ListAttributes(ctx context.Context, f Filter, p Page) ([]UserAttribute, int, error) {
	all, err := m.AttributesInRange(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	total := len(all)
	start := p.Offset()
	if start > total {
		start = total
	}
	end := start + p.Size
	if p.Size <= 0 || end > total {
		end = total
	}
	return all[start:end], total, nil
}

func (m *Memory) AttributesInRange(_ context.Context, f Filter) ([]UserAttribute, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []UserAttribute
	for _, a := range m.attributes {
		if matchesFilter(a, f) {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.Before(out[k].CreatedAt) })
	return out, nil
}

func matchesFilter(a *UserAttribute, f Filter) bool {
	if !f.From.IsZero() && a.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && a.CreatedAt.After(f.To) {
		return false
	}
	if f.Location != "" && a.Location != f.Location {
		return false
	}
	if f.Industry != "" && a.Industry != f.Industry {
		return false
	}
	if f.BusinessSize != "" && a.BusinessSize != f.BusinessSize {
		return false
	}
	if len(f.Languages) > 0 {
		overlap := false
		for _, want := range f.Languages {
			for _, have := range a.DetectedLanguages {
				if want == have {
					overlap = true
				}
			}
		}
		if !overlap {
			return false
		}
	}
	return true
}

func (m *Memory) UpsertInterest(_ context.Context, in *SchemeInterest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	for _, existing := range m.interests {
		if existing.UserID == in.UserID && existing.SchemeID == in.SchemeID {
			existing.InterestLevel = in.InterestLevel
			existing.MentionCount++
			existing.MentionedInLanguages = unionStrings(existing.MentionedInLanguages, in.MentionedInLanguages)
			existing.LastMentionedAt = now
			return nil
		}
	}
	cp := *in
	if cp.ID == uuid.Nil {
		cp.ID = uuid.New()
	}
	cp.MentionCount = 1
	cp.FirstMentionedAt = now
	cp.LastMentionedAt = now
	m.interests[cp.ID] = &cp
	return nil
}

// Interest returns the stored row for a (user, scheme) pair.
func (m *Memory) Interest(userID, schemeID uuid.UUID) (SchemeInterest, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, in := range m.interests {
		if in.UserID == userID && in.SchemeID == schemeID {
			return *in, true
		}
	}
	return SchemeInterest{}, false
}

func (m *Memory) ListInterests(_ context.Context, p Page) ([]SchemeInterest, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SchemeInterest, 0, len(m.interests))
	for _, in := range m.interests {
		out = append(out, *in)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].LastMentionedAt.After(out[k].LastMentionedAt) })
	total := len(out)
	start := p.Offset()
	if start > total {
		start = total
	}
	end := start + p.Size
	if p.Size <= 0 || end > total {
		end = total
	}
	return out[start:end], total, nil
}

func (m *Memory) InterestsByUsers(_ context.Context, userIDs []uuid.UUID) ([]SchemeInterest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := make(map[uuid.UUID]bool, len(userIDs))
	for _, id := range userIDs {
		want[id] = true
	}
	var out []SchemeInterest
	for _, in := range m.interests {
		if want[in.UserID] {
			out = append(out, *in)
		}
	}
	return out, nil
}

func (m *Memory) Conversation(_ context.Context, id uuid.UUID) (uuid.UUID, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ConvErr != nil {
		return uuid.Nil, 0, m.ConvErr
	}
	c, ok := m.convs[id]
	if !ok {
		return uuid.Nil, 0, fmt.Errorf("conversation %s not found", id)
	}
	return c.userID, len(c.messages), nil
}

func (m *Memory) Messages(_ context.Context, conversationID uuid.UUID) ([]Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ConvErr != nil {
		return nil, m.ConvErr
	}
	c, ok := m.convs[conversationID]
	if !ok {
		return nil, fmt.Errorf("conversation %s not found", conversationID)
	}
	return append([]Message(nil), c.messages...), nil
}

func (m *Memory) UserMessagesSince(_ context.Context, conversationID uuid.UUID, afterIndex, limit int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ConvErr != nil {
		return nil, m.ConvErr
	}
	c, ok := m.convs[conversationID]
	if !ok {
		return nil, fmt.Errorf("conversation %s not found", conversationID)
	}
	var contents []string
	for i, msg := range c.messages {
		if i < afterIndex || !strings.EqualFold(msg.Role, "user") {
			continue
		}
		contents = append(contents, msg.Content)
	}
	if len(contents) > limit {
		contents = contents[len(contents)-limit:]
	}
	return contents, nil
}

func (m *Memory) ActiveSchemes(_ context.Context) ([]Scheme, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Scheme(nil), m.schemes...), nil
}

func unionStrings(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, s := range append(append([]string(nil), a...), b...) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
