// Package queue runs the extraction job lifecycle: claim pending jobs, run
// the extraction pipeline, merge results into storage under the confidence
// policy, and handle retry scheduling and permanent failure.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/siddham-jain/msme-mitr-sub000/internal/extractor"
	"github.com/siddham-jain/msme-mitr-sub000/internal/store"
)

// Extractor is the pipeline contract the processor drives.
type Extractor interface {
	Extract(ctx context.Context, conversationID, userID uuid.UUID) (*extractor.ExtractionResult, error)
}

// Invalidator flushes analytics cache entries after a successful store.
type Invalidator interface {
	InvalidatePrefix(prefix string)
}

// Publisher emits job lifecycle events. Optional; the processor works
// without one.
type Publisher interface {
	Publish(subject string, data any) error
}

// NATS subjects for terminal job transitions.
const (
	SubjectCompleted = "mitr.extraction.completed"
	SubjectFailed    = "mitr.extraction.failed"
)

type Config struct {
	BatchSize           int
	PollInterval        time.Duration
	MaxRetries          int
	BaseDelay           time.Duration
	BackoffMultiplier   float64
	ConfidenceThreshold float64
	RetentionPeriod     time.Duration
}

// Processor is a polling loop, not an event-driven worker pool. Claiming is
// atomic in the store, jobs within a batch run sequentially, and a
// per-instance guard keeps batch runs from overlapping.
type Processor struct {
	jobs       store.JobStore
	attributes store.AttributeStore
	interests  store.InterestStore
	extractor  Extractor
	cache      Invalidator
	publisher  Publisher
	cfg        Config
	logger     *slog.Logger

	running atomic.Bool
	now     func() time.Time
}

func New(jobs store.JobStore, attributes store.AttributeStore, interests store.InterestStore, ext Extractor, cache Invalidator, publisher Publisher, cfg Config, logger *slog.Logger) *Processor {
	return &Processor{
		jobs:       jobs,
		attributes: attributes,
		interests:  interests,
		extractor:  ext,
		cache:      cache,
		publisher:  publisher,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
	}
}

// Run polls until the context is cancelled.
func (p *Processor) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	p.logger.Info("queue processor started",
		"batch_size", p.cfg.BatchSize,
		"poll_interval", p.cfg.PollInterval,
	)
	for {
		if err := p.ProcessBatch(ctx); err != nil {
			p.logger.Error("batch processing failed", "error", err)
		}
		select {
		case <-ctx.Done():
			p.logger.Info("queue processor stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// ProcessBatch claims and processes one batch. A no-op when a batch is
// already in flight on this instance.
func (p *Processor) ProcessBatch(ctx context.Context) error {
	if !p.running.CompareAndSwap(false, true) {
		return nil
	}
	defer p.running.Store(false)

	jobs, err := p.jobs.ClaimJobs(ctx, p.cfg.BatchSize, p.now())
	if err != nil {
		return fmt.Errorf("claim batch: %w", err)
	}
	for _, job := range jobs {
		p.process(ctx, job)
	}
	return nil
}

func (p *Processor) process(ctx context.Context, job store.ExtractionJob) {
	p.logger.Info("processing job",
		"job_id", job.ID,
		"conversation_id", job.ConversationID,
		"retry_count", job.RetryCount,
	)

	result, err := p.extractor.Extract(ctx, job.ConversationID, job.UserID)
	if err != nil {
		if errors.Is(err, extractor.ErrNoMessages) {
			// Empty conversation is fatal: retrying cannot help.
			p.fail(ctx, job, err)
			return
		}
		p.handleFailure(ctx, job, err)
		return
	}

	if err := p.persist(ctx, job, result); err != nil {
		p.handleFailure(ctx, job, err)
	}
}

// persist applies the result-merge contract: below the confidence threshold
// the job completes with a note and nothing is stored; otherwise attributes
// and interests are upserted and the analytics cache flushed.
func (p *Processor) persist(ctx context.Context, job store.ExtractionJob, result *extractor.ExtractionResult) error {
	if result.Confidence < p.cfg.ConfidenceThreshold {
		note := fmt.Sprintf("confidence %.2f below threshold %.2f; result not stored",
			result.Confidence, p.cfg.ConfidenceThreshold)
		if err := p.jobs.CompleteJob(ctx, job.ID, note); err != nil {
			return fmt.Errorf("complete job: %w", err)
		}
		p.logger.Info("job completed without storage", "job_id", job.ID, "note", note)
		p.publish(SubjectCompleted, job, result.Confidence, false)
		return nil
	}

	attr := &store.UserAttribute{
		UserID:               job.UserID,
		ConversationID:       job.ConversationID,
		Location:             result.Location,
		Industry:             result.Industry,
		BusinessSize:         result.BusinessSize,
		AnnualTurnover:       result.AnnualTurnover,
		EmployeeCount:        result.EmployeeCount,
		DetectedLanguages:    result.DetectedLanguages,
		OriginalLanguageData: result.Original,
		ExtractionConfidence: result.Confidence,
		ExtractionMethod:     result.Method,
	}
	written, err := p.attributes.UpsertAttribute(ctx, attr)
	if err != nil {
		return fmt.Errorf("store attribute: %w", err)
	}
	if !written {
		p.logger.Info("attribute kept at higher stored confidence",
			"job_id", job.ID, "confidence", result.Confidence)
	}

	for _, cand := range result.SchemeInterests {
		interest := &store.SchemeInterest{
			UserID:               job.UserID,
			SchemeID:             cand.SchemeID,
			SchemeName:           cand.SchemeName,
			InterestLevel:        cand.Level,
			MentionedInLanguages: result.DetectedLanguages,
		}
		if err := p.interests.UpsertInterest(ctx, interest); err != nil {
			return fmt.Errorf("store interest: %w", err)
		}
	}

	if p.cache != nil {
		p.cache.InvalidatePrefix("analytics:")
	}
	if err := p.jobs.CompleteJob(ctx, job.ID, ""); err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	p.logger.Info("job completed",
		"job_id", job.ID,
		"confidence", result.Confidence,
		"schemes", len(result.SchemeInterests),
	)
	p.publish(SubjectCompleted, job, result.Confidence, true)
	return nil
}

// handleFailure schedules a retry with exponential backoff, or fails the job
// permanently once retries are exhausted. Retries are scheduled as a future
// eligibility time the claim query respects; the loop never sleeps.
func (p *Processor) handleFailure(ctx context.Context, job store.ExtractionJob, cause error) {
	if job.RetryCount < p.cfg.MaxRetries {
		delay := p.backoff(job.RetryCount)
		nextAttempt := p.now().Add(delay)
		if err := p.jobs.ScheduleRetry(ctx, job.ID, cause.Error(), nextAttempt); err != nil {
			p.logger.Error("failed to schedule retry", "job_id", job.ID, "error", err)
			return
		}
		p.logger.Warn("job scheduled for retry",
			"job_id", job.ID,
			"retry_count", job.RetryCount+1,
			"delay", delay,
			"error", cause,
		)
		return
	}
	p.fail(ctx, job, cause)
}

func (p *Processor) fail(ctx context.Context, job store.ExtractionJob, cause error) {
	if err := p.jobs.FailJob(ctx, job.ID, cause.Error()); err != nil {
		p.logger.Error("failed to mark job failed", "job_id", job.ID, "error", err)
		return
	}
	p.logger.Error("job failed permanently",
		"job_id", job.ID,
		"retry_count", job.RetryCount,
		"error", cause,
	)
	p.publish(SubjectFailed, job, 0, false)
}

func (p *Processor) backoff(retryCount int) time.Duration {
	mult := math.Pow(p.cfg.BackoffMultiplier, float64(retryCount))
	return time.Duration(float64(p.cfg.BaseDelay) * mult)
}

func (p *Processor) publish(subject string, job store.ExtractionJob, confidence float64, stored bool) {
	if p.publisher == nil {
		return
	}
	err := p.publisher.Publish(subject, map[string]any{
		"job_id":          job.ID.String(),
		"conversation_id": job.ConversationID.String(),
		"user_id":         job.UserID.String(),
		"confidence":      confidence,
		"stored":          stored,
	})
	if err != nil {
		p.logger.Warn("failed to publish job event", "subject", subject, "error", err)
	}
}

// Stats reports per-status job counts for the operator surface.
func (p *Processor) Stats(ctx context.Context) (store.QueueStats, error) {
	return p.jobs.QueueStats(ctx)
}

// RetryFailed resets every permanently failed job to pending.
func (p *Processor) RetryFailed(ctx context.Context) (int, error) {
	n, err := p.jobs.RetryFailedJobs(ctx)
	if err != nil {
		return 0, err
	}
	p.logger.Info("failed jobs reset to pending", "count", n)
	return n, nil
}

// PurgeCompleted deletes completed jobs older than the retention window.
func (p *Processor) PurgeCompleted(ctx context.Context) (int, error) {
	cutoff := p.now().Add(-p.cfg.RetentionPeriod)
	n, err := p.jobs.PurgeCompletedJobs(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	p.logger.Info("completed jobs purged", "count", n, "cutoff", cutoff)
	return n, nil
}
