package queue

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/siddham-jain/msme-mitr-sub000/internal/extractor"
	"github.com/siddham-jain/msme-mitr-sub000/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubExtractor struct {
	result *extractor.ExtractionResult
	err    error
	calls  atomic.Int32
	block  chan struct{} // when set, Extract waits until closed
	enter  chan struct{} // when set, closed on first Extract entry
}

func (s *stubExtractor) Extract(_ context.Context, _, _ uuid.UUID) (*extractor.ExtractionResult, error) {
	if s.enter != nil {
		close(s.enter)
		s.enter = nil
	}
	if s.block != nil {
		<-s.block
	}
	s.calls.Add(1)
	return s.result, s.err
}

type spyCache struct {
	prefixes []string
}

func (c *spyCache) InvalidatePrefix(prefix string) {
	c.prefixes = append(c.prefixes, prefix)
}

type spyPublisher struct {
	subjects []string
}

func (p *spyPublisher) Publish(subject string, _ any) error {
	p.subjects = append(p.subjects, subject)
	return nil
}

func testConfig() Config {
	return Config{
		BatchSize:           10,
		PollInterval:        time.Second,
		MaxRetries:          3,
		BaseDelay:           time.Second,
		BackoffMultiplier:   2,
		ConfidenceThreshold: 0.5,
		RetentionPeriod:     30 * 24 * time.Hour,
	}
}

func enqueue(t *testing.T, mem *store.Memory, job *store.ExtractionJob) uuid.UUID {
	t.Helper()
	if job.Priority == 0 {
		job.Priority = store.PriorityNormal
	}
	if err := mem.EnqueueJob(context.Background(), job); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	return job.ID
}

func TestProcessBatch_SuccessStoresAndInvalidates(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()
	userID, convID, schemeID := uuid.New(), uuid.New(), uuid.New()
	jobID := enqueue(t, mem, &store.ExtractionJob{ConversationID: convID, UserID: userID, MessageCountAtExtraction: 3})

	ext := &stubExtractor{result: &extractor.ExtractionResult{
		ConversationID:    convID,
		UserID:            userID,
		Location:          "Surat",
		Industry:          "Textiles",
		BusinessSize:      store.SizeMicro,
		AnnualTurnover:    500000,
		DetectedLanguages: []string{"hi-en"},
		Confidence:        0.85,
		Method:            extractor.MethodAI,
		SchemeInterests: []extractor.SchemeCandidate{
			{SchemeID: schemeID, SchemeName: "PMEGP", Level: store.LevelDetailed},
		},
	}}
	cache := &spyCache{}
	pub := &spyPublisher{}
	p := New(mem, mem, mem, ext, cache, pub, testConfig(), discardLogger())

	if err := p.ProcessBatch(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	job, _ := mem.Job(jobID)
	if job.Status != store.JobCompleted {
		t.Errorf("expected completed, got %s", job.Status)
	}
	attr, ok := mem.Attribute(userID, convID)
	if !ok {
		t.Fatal("attribute not stored")
	}
	if attr.Location != "Surat" || attr.ExtractionConfidence != 0.85 {
		t.Errorf("attribute mismatch: %+v", attr)
	}
	interest, ok := mem.Interest(userID, schemeID)
	if !ok {
		t.Fatal("interest not stored")
	}
	if interest.InterestLevel != store.LevelDetailed || interest.MentionCount != 1 {
		t.Errorf("interest mismatch: %+v", interest)
	}
	if len(cache.prefixes) != 1 || cache.prefixes[0] != "analytics:" {
		t.Errorf("expected one analytics invalidation, got %v", cache.prefixes)
	}
	if len(pub.subjects) != 1 || pub.subjects[0] != SubjectCompleted {
		t.Errorf("expected completed event, got %v", pub.subjects)
	}
}

func TestProcessBatch_LowConfidenceCompletesWithoutStorage(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()
	userID, convID := uuid.New(), uuid.New()
	jobID := enqueue(t, mem, &store.ExtractionJob{ConversationID: convID, UserID: userID, MessageCountAtExtraction: 4})

	// A prior higher-confidence record must survive untouched.
	prior := &store.UserAttribute{
		UserID: userID, ConversationID: convID,
		Location: "Pune", ExtractionConfidence: 0.9, ExtractionMethod: extractor.MethodAI,
	}
	if _, err := mem.UpsertAttribute(ctx, prior); err != nil {
		t.Fatalf("seed attribute: %v", err)
	}

	ext := &stubExtractor{result: &extractor.ExtractionResult{
		ConversationID: convID, UserID: userID,
		Location: "Delhi", Confidence: 0.4, Method: extractor.MethodFallback,
	}}
	cache := &spyCache{}
	p := New(mem, mem, mem, ext, cache, nil, testConfig(), discardLogger())

	if err := p.ProcessBatch(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	job, _ := mem.Job(jobID)
	if job.Status != store.JobCompleted {
		t.Fatalf("expected completed, got %s", job.Status)
	}
	if !strings.Contains(job.CompletionNote, "not stored") {
		t.Errorf("expected skip note, got %q", job.CompletionNote)
	}
	attr, _ := mem.Attribute(userID, convID)
	if attr.Location != "Pune" || attr.ExtractionConfidence != 0.9 {
		t.Errorf("prior attribute must be untouched, got %+v", attr)
	}
	if len(cache.prefixes) != 0 {
		t.Errorf("cache must not be invalidated when nothing stored, got %v", cache.prefixes)
	}
}

func TestProcessBatch_RetryScheduledNotSlept(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()
	jobID := enqueue(t, mem, &store.ExtractionJob{ConversationID: uuid.New(), UserID: uuid.New(), MessageCountAtExtraction: 3})

	ext := &stubExtractor{err: errors.New("endpoint timeout")}
	p := New(mem, mem, mem, ext, nil, nil, testConfig(), discardLogger())
	base := time.Now()
	p.now = func() time.Time { return base }

	start := time.Now()
	if err := p.ProcessBatch(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("batch must not sleep through backoff, took %s", elapsed)
	}

	job, _ := mem.Job(jobID)
	if job.Status != store.JobPending {
		t.Fatalf("expected pending after retry scheduling, got %s", job.Status)
	}
	if job.RetryCount != 1 {
		t.Errorf("expected retry count 1, got %d", job.RetryCount)
	}
	if !job.NextAttemptAt.Equal(base.Add(time.Second)) {
		t.Errorf("expected next attempt at +1s, got %s", job.NextAttemptAt.Sub(base))
	}

	// Not eligible before its scheduled time.
	if err := p.ProcessBatch(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ext.calls.Load() != 1 {
		t.Fatalf("future-scheduled job must not be claimed, calls=%d", ext.calls.Load())
	}

	// Second failure backs off exponentially: 1s * 2^1.
	p.now = func() time.Time { return base.Add(2 * time.Second) }
	if err := p.ProcessBatch(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	job, _ = mem.Job(jobID)
	if job.RetryCount != 2 {
		t.Errorf("expected retry count 2, got %d", job.RetryCount)
	}
	if want := base.Add(2*time.Second + 2*time.Second); !job.NextAttemptAt.Equal(want) {
		t.Errorf("expected next attempt at +2s backoff, got %s", job.NextAttemptAt.Sub(base))
	}
}

func TestProcessBatch_ExhaustedRetriesFail(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()
	jobID := enqueue(t, mem, &store.ExtractionJob{
		ConversationID: uuid.New(), UserID: uuid.New(),
		MessageCountAtExtraction: 3, RetryCount: 3,
	})

	ext := &stubExtractor{err: errors.New("still broken")}
	pub := &spyPublisher{}
	p := New(mem, mem, mem, ext, nil, pub, testConfig(), discardLogger())

	if err := p.ProcessBatch(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	job, _ := mem.Job(jobID)
	if job.Status != store.JobFailed {
		t.Fatalf("expected failed after exhausted retries, got %s", job.Status)
	}
	if job.ErrorMessage != "still broken" {
		t.Errorf("expected last error recorded, got %q", job.ErrorMessage)
	}
	if len(pub.subjects) != 1 || pub.subjects[0] != SubjectFailed {
		t.Errorf("expected failed event, got %v", pub.subjects)
	}
}

func TestProcessBatch_EmptyConversationFailsWithoutRetry(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()
	jobID := enqueue(t, mem, &store.ExtractionJob{ConversationID: uuid.New(), UserID: uuid.New(), MessageCountAtExtraction: 1})

	ext := &stubExtractor{err: extractor.ErrNoMessages}
	p := New(mem, mem, mem, ext, nil, nil, testConfig(), discardLogger())

	if err := p.ProcessBatch(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	job, _ := mem.Job(jobID)
	if job.Status != store.JobFailed {
		t.Fatalf("empty conversation must fail immediately, got %s", job.Status)
	}
	if job.RetryCount != 0 {
		t.Errorf("no retries expected, got %d", job.RetryCount)
	}
}

type failingAttributes struct {
	store.AttributeStore
}

func (failingAttributes) UpsertAttribute(context.Context, *store.UserAttribute) (bool, error) {
	return false, errors.New("connection reset")
}

func TestProcessBatch_StorageErrorSchedulesRetry(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()
	jobID := enqueue(t, mem, &store.ExtractionJob{ConversationID: uuid.New(), UserID: uuid.New(), MessageCountAtExtraction: 3})

	ext := &stubExtractor{result: &extractor.ExtractionResult{
		Confidence: 0.9, Method: extractor.MethodAI, Location: "Jaipur",
	}}
	p := New(mem, failingAttributes{mem}, mem, ext, nil, nil, testConfig(), discardLogger())

	if err := p.ProcessBatch(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	job, _ := mem.Job(jobID)
	if job.Status != store.JobPending {
		t.Fatalf("storage error must go through retry machinery, got %s", job.Status)
	}
	if !strings.Contains(job.ErrorMessage, "connection reset") {
		t.Errorf("expected storage error recorded, got %q", job.ErrorMessage)
	}
}

func TestProcessBatch_OverlappingRunsSkipped(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()
	enqueue(t, mem, &store.ExtractionJob{ConversationID: uuid.New(), UserID: uuid.New(), MessageCountAtExtraction: 3})

	block := make(chan struct{})
	enter := make(chan struct{})
	ext := &stubExtractor{
		result: &extractor.ExtractionResult{Confidence: 0.9, Method: extractor.MethodAI},
		block:  block,
		enter:  enter,
	}
	p := New(mem, mem, mem, ext, nil, nil, testConfig(), discardLogger())

	done := make(chan error, 1)
	go func() { done <- p.ProcessBatch(ctx) }()
	<-enter

	// The concurrent call must return immediately without claiming.
	if err := p.ProcessBatch(ctx); err != nil {
		t.Fatalf("overlapping batch must be a no-op, got %v", err)
	}
	close(block)
	if err := <-done; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ext.calls.Load() != 1 {
		t.Errorf("expected exactly one extraction, got %d", ext.calls.Load())
	}
}

func TestRetryFailedThenReprocess(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()
	jobID := enqueue(t, mem, &store.ExtractionJob{
		ConversationID: uuid.New(), UserID: uuid.New(),
		MessageCountAtExtraction: 3, RetryCount: 3,
	})

	ext := &stubExtractor{err: errors.New("boom")}
	p := New(mem, mem, mem, ext, nil, nil, testConfig(), discardLogger())
	if err := p.ProcessBatch(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job, _ := mem.Job(jobID); job.Status != store.JobFailed {
		t.Fatalf("expected failed, got %s", job.Status)
	}

	n, err := p.RetryFailed(ctx)
	if err != nil || n != 1 {
		t.Fatalf("expected 1 reset, got %d (%v)", n, err)
	}

	ext.err = nil
	ext.result = &extractor.ExtractionResult{Confidence: 0.8, Method: extractor.MethodAI}
	if err := p.ProcessBatch(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job, _ := mem.Job(jobID); job.Status != store.JobCompleted {
		t.Errorf("expected completed after manual retry, got %s", job.Status)
	}
}

func TestPurgeCompleted(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()
	jobID := enqueue(t, mem, &store.ExtractionJob{ConversationID: uuid.New(), UserID: uuid.New(), MessageCountAtExtraction: 3})

	ext := &stubExtractor{result: &extractor.ExtractionResult{Confidence: 0.8, Method: extractor.MethodAI}}
	cfg := testConfig()
	cfg.RetentionPeriod = 0 // everything completed is immediately eligible
	p := New(mem, mem, mem, ext, nil, nil, cfg, discardLogger())

	if err := p.ProcessBatch(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p.now = func() time.Time { return time.Now().Add(time.Minute) }
	n, err := p.PurgeCompleted(ctx)
	if err != nil || n != 1 {
		t.Fatalf("expected 1 purged, got %d (%v)", n, err)
	}
	if _, ok := mem.Job(jobID); ok {
		t.Error("purged job still present")
	}
}
