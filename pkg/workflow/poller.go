package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/crewdesk/automation/pkg/eventbus"
	"github.com/crewdesk/automation/pkg/events"
	"github.com/crewdesk/automation/pkg/lock"
	"github.com/crewdesk/automation/pkg/models"
	"github.com/crewdesk/automation/pkg/otelhelper"
	"github.com/crewdesk/automation/pkg/persistence"
	"github.com/crewdesk/automation/pkg/template"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const recentFailuresWindow = time.Hour

// ExpiredMessage is the error message stored on logs expired after the given pending window.
func ExpiredMessage(expiry time.Duration) string {
	return "Automation expired after being pending for over " + humanDuration(expiry)
}

func humanDuration(d time.Duration) string {
	unit, n := "", int64(0)

	switch {
	case d >= time.Hour && d%time.Hour == 0:
		unit, n = "hour", int64(d/time.Hour)
	case d >= time.Minute && d%time.Minute == 0:
		unit, n = "minute", int64(d/time.Minute)
	default:
		return d.String()
	}

	if n != 1 {
		unit += "s"
	}

	return fmt.Sprintf("%d %s", n, unit)
}

type Options struct {
	WorkerID      string
	PollInterval  time.Duration
	BatchSize     int
	MaxRetries    int
	PendingExpiry time.Duration
	LockTTL       time.Duration
}

func DefaultOptions() Options {
	return Options{
		WorkerID:      "automation-worker",
		PollInterval:  30 * time.Second,
		BatchSize:     10,
		MaxRetries:    3,
		PendingExpiry: time.Hour,
		LockTTL:       5 * time.Minute,
	}
}

// Dependencies are the collaborators of a Poller. Locker, Publisher and Tracer are optional.
type Dependencies struct {
	Logs        persistence.ExecutionLogRepository
	Validator   *Validator
	Resolver    *template.Resolver
	Interpreter *Interpreter
	Metrics     *MetricsUpdater
	Locker      lock.Locker
	Publisher   eventbus.EventPublisher
	Tracer      trace.Tracer
}

type HealthStatus struct {
	IsRunning              bool  `json:"is_running"`
	IsProcessing           bool  `json:"is_processing"`
	PendingCount           int64 `json:"pending_count"`
	RecentFailures         int64 `json:"recent_failures"`
	CacheSize              int   `json:"cache_size"`
	ProcessedInSessionSize int   `json:"processed_in_session_size"`
}

// PassResult counts what one pass did with its batch.
type PassResult struct {
	Busy      bool `json:"busy"`
	Fetched   int  `json:"fetched"`
	Completed int  `json:"completed"`
	Failed    int  `json:"failed"`
	Retrying  int  `json:"retrying"`
	Waiting   int  `json:"waiting"`
	Skipped   int  `json:"skipped"`
	Deferred  int  `json:"deferred"`
}

type disposition int

const (
	deferred disposition = iota
	completed
	failed
	retrying
	waiting
)

// Poller drives pending execution logs through validation, step execution and
// retry classification, one log at a time.
type Poller struct {
	logs        persistence.ExecutionLogRepository
	validator   *Validator
	resolver    *template.Resolver
	interpreter *Interpreter
	metrics     *MetricsUpdater
	locker      lock.Locker
	publisher   eventbus.EventPublisher
	tracer      trace.Tracer
	logger      *slog.Logger
	options     Options
	now         func() time.Time

	processing atomic.Bool
	running    atomic.Bool

	loopMu sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	processedMu sync.Mutex
	processed   map[string]struct{}
}

func NewPoller(logger *slog.Logger, deps Dependencies, options Options) *Poller {
	defaults := DefaultOptions()

	if options.PollInterval <= 0 {
		options.PollInterval = defaults.PollInterval
	}

	if options.BatchSize <= 0 {
		options.BatchSize = defaults.BatchSize
	}

	if options.MaxRetries < 0 {
		options.MaxRetries = defaults.MaxRetries
	}

	if options.PendingExpiry <= 0 {
		options.PendingExpiry = defaults.PendingExpiry
	}

	if options.LockTTL <= 0 {
		options.LockTTL = defaults.LockTTL
	}

	if options.WorkerID == "" {
		options.WorkerID = defaults.WorkerID
	}

	locker := deps.Locker
	if locker == nil {
		locker = lock.NewLocalLocker()
	}

	tracer := deps.Tracer
	if tracer == nil {
		tracer = otelhelper.NewNoopTracer("automation-worker")
	}

	return &Poller{
		logs:        deps.Logs,
		validator:   deps.Validator,
		resolver:    deps.Resolver,
		interpreter: deps.Interpreter,
		metrics:     deps.Metrics,
		locker:      locker,
		publisher:   deps.Publisher,
		tracer:      tracer,
		logger:      logger.With("module", "automation_poller", "worker_id", options.WorkerID),
		options:     options,
		now:         time.Now,
		processed:   make(map[string]struct{}),
	}
}

// Start runs a pass immediately and then one per poll interval. Calling it twice is a no-op.
func (p *Poller) Start(ctx context.Context) {
	p.loopMu.Lock()
	defer p.loopMu.Unlock()

	if p.cancel != nil {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running.Store(true)

	p.logger.InfoContext(ctx, "starting automation poller", "interval", p.options.PollInterval, "batch_size", p.options.BatchSize)

	go p.loop(loopCtx, p.done)
}

func (p *Poller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.options.PollInterval)
	defer ticker.Stop()

	p.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *Poller) tick(ctx context.Context) {
	_, err := p.ProcessNow(ctx)
	if err != nil {
		p.logger.ErrorContext(ctx, "automation pass failed", "error", err)
	}
}

// Stop disarms the ticker and waits for an in-flight pass to finish its current log.
func (p *Poller) Stop(ctx context.Context) error {
	p.loopMu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.running.Store(false)
	p.loopMu.Unlock()

	if cancel == nil {
		return nil
	}

	cancel()

	select {
	case <-done:
		p.logger.InfoContext(ctx, "automation poller stopped")

		return nil
	case <-ctx.Done():
		return fmt.Errorf("timed out waiting for poller to stop: %w", ctx.Err())
	}
}

// ProcessNow runs one pass unless another is in flight, in which case it returns with Busy set.
// Once started, a log is processed to the end even if ctx is cancelled; remaining logs of the
// batch are left for the next pass.
func (p *Poller) ProcessNow(ctx context.Context) (PassResult, error) {
	var result PassResult

	if !p.processing.CompareAndSwap(false, true) {
		result.Busy = true

		return result, nil
	}
	defer p.processing.Store(false)

	workCtx := context.WithoutCancel(ctx)

	batch, err := p.logs.RunnableBatch(workCtx, p.now().UTC(), p.options.BatchSize)
	if err != nil {
		return result, fmt.Errorf("failed to fetch runnable execution logs: %w", err)
	}

	if len(batch) == 0 {
		return result, nil
	}

	result.Fetched = len(batch)

	survivors, duplicates := Deduplicate(batch)

	for _, duplicate := range duplicates {
		if p.skipDuplicate(workCtx, duplicate) {
			result.Skipped++
		}
	}

	for _, log := range survivors {
		if ctx.Err() != nil {
			result.Deferred++

			continue
		}

		switch p.process(workCtx, log) {
		case completed:
			result.Completed++
		case failed:
			result.Failed++
		case retrying:
			result.Retrying++
		case waiting:
			result.Waiting++
		case deferred:
			result.Deferred++
		}
	}

	p.logger.InfoContext(ctx, "automation pass finished",
		"fetched", result.Fetched,
		"completed", result.Completed,
		"failed", result.Failed,
		"retrying", result.Retrying,
		"waiting", result.Waiting,
		"skipped", result.Skipped,
	)

	return result, nil
}

func (p *Poller) skipDuplicate(ctx context.Context, duplicate Duplicate) bool {
	log := duplicate.Log

	err := log.Transition(models.ExecutionStatusSkipped)
	if err != nil {
		p.logger.ErrorContext(ctx, "cannot skip duplicate", "execution_log_id", log.ID, "error", err)

		return false
	}

	now := p.now().UTC()
	log.ErrorMessage = DuplicateMessage
	log.CompletedAt = &now

	if !p.save(ctx, log) {
		return false
	}

	p.logger.InfoContext(ctx, "duplicate automation skipped",
		"execution_log_id", log.ID,
		"kept_execution_log_id", duplicate.Kept.ID,
		"dedup_key", log.DedupKey(),
	)

	p.publish(ctx, log.ID, events.ExecutionSkipped{
		BaseEvent:          p.baseEvent(events.ExecutionSkippedEvent, log.WorkflowID),
		ExecutionLogID:     log.ID,
		KeptExecutionLogID: duplicate.Kept.ID,
		Reason:             DuplicateMessage,
	})

	return true
}

func (p *Poller) process(ctx context.Context, log *models.ExecutionLog) disposition {
	if !p.markProcessed(log.ID) {
		return deferred
	}

	logger := p.logger.With("execution_log_id", log.ID, "workflow_id", log.WorkflowID)

	lockKey := "execution:" + log.DedupKey()
	owner := p.options.WorkerID + ":" + log.ID

	acquired, err := p.locker.TryLock(ctx, lockKey, owner, p.options.LockTTL)
	if err != nil || !acquired {
		p.forget(log.ID)

		if err != nil {
			logger.ErrorContext(ctx, "failed to acquire execution lock", "error", err)
		} else {
			logger.InfoContext(ctx, "execution lock held elsewhere, skipping")
		}

		return deferred
	}

	defer func() {
		unlockErr := p.locker.Unlock(ctx, lockKey, owner)
		if unlockErr != nil && !errors.Is(unlockErr, lock.ErrLockDoesNotExist) {
			logger.ErrorContext(ctx, "failed to release execution lock", "error", unlockErr)
		}
	}()

	ctx, span := otelhelper.StartSpan(ctx, p.tracer, "workflow.execution",
		attribute.String(otelhelper.ExecutionLogIDKey, log.ID),
		attribute.String(otelhelper.WorkflowIDKey, log.WorkflowID),
		attribute.String(otelhelper.TriggerTypeKey, log.TriggerType),
		attribute.String(otelhelper.EntityTypeKey, log.TriggerData.EntityType()),
		attribute.String(otelhelper.EntityIDKey, log.TriggerData.EntityID()),
		attribute.Int(otelhelper.RetryCountKey, log.Details.RetryCount),
	)
	defer span.End()

	validation, err := p.validator.Validate(ctx, log.WorkflowID)
	if err != nil {
		p.forget(log.ID)
		otelhelper.SetError(span, err)
		logger.ErrorContext(ctx, "failed to validate workflow", "error", err)

		return deferred
	}

	if !validation.IsValid {
		otelhelper.SetError(span, validation.Error)

		return p.failValidation(ctx, log, validation.Error)
	}

	resumed := log.Status == models.ExecutionStatusWaiting
	startedAt := p.now().UTC()

	claimed, err := p.logs.Claim(ctx, log.ID, log.Status, startedAt)
	if err != nil || !claimed {
		p.forget(log.ID)

		if err != nil {
			logger.ErrorContext(ctx, "failed to claim execution log", "error", err)
		} else {
			logger.InfoContext(ctx, "execution log claimed by another worker")
		}

		return deferred
	}

	err = log.Transition(models.ExecutionStatusRunning)
	if err != nil {
		logger.ErrorContext(ctx, "unexpected status after claim", "error", err)

		return deferred
	}

	if log.StartedAt == nil {
		log.StartedAt = &startedAt
	}

	logger.InfoContext(ctx, "executing automation", "steps", len(validation.Steps), "resumed", resumed)

	vars, err := p.resolver.Build(ctx, log, validation.Workflow)
	if err != nil {
		err = fmt.Errorf("failed to build variable context: %w", err)
		otelhelper.SetError(span, err)

		return p.fail(ctx, log, err)
	}

	outcome, err := p.interpreter.Run(ctx, &Execution{
		Log:       log,
		Workflow:  validation.Workflow,
		Steps:     validation.Steps,
		Variables: vars,
		Resumed:   resumed,
	})
	if err != nil {
		otelhelper.SetError(span, err)

		return p.fail(ctx, log, err)
	}

	if outcome.Suspended {
		return p.suspend(ctx, log, outcome)
	}

	return p.complete(ctx, log, outcome)
}

func (p *Poller) failValidation(ctx context.Context, log *models.ExecutionLog, validationErr *ValidationError) disposition {
	err := log.Transition(models.ExecutionStatusFailed)
	if err != nil {
		p.logger.ErrorContext(ctx, "cannot fail execution log", "execution_log_id", log.ID, "error", err)

		return deferred
	}

	now := p.now().UTC()
	retries := log.Details.RetryCount

	log.ErrorMessage = validationErr.Error()
	log.CompletedAt = &now
	log.Details.LastError = validationErr.Error()
	log.Details.FinalRetryCount = &retries

	if !p.save(ctx, log) {
		return deferred
	}

	p.logger.WarnContext(ctx, "workflow failed validation",
		"execution_log_id", log.ID,
		"workflow_id", log.WorkflowID,
		"error", validationErr.Error(),
	)

	p.publish(ctx, log.ID, events.ExecutionFailed{
		BaseEvent:      p.baseEvent(events.ExecutionFailedEvent, log.WorkflowID),
		ExecutionLogID: log.ID,
		Error:          validationErr.Error(),
		RetryCount:     retries,
		Validation:     true,
	})

	return failed
}

// fail requeues a transient failure while the retry budget lasts and otherwise fails the log for good.
func (p *Poller) fail(ctx context.Context, log *models.ExecutionLog, runErr error) disposition {
	message := runErr.Error()
	classification := Classify(runErr)

	if classification == Transient && log.Details.RetryCount < p.options.MaxRetries {
		err := log.Transition(models.ExecutionStatusPending)
		if err != nil {
			p.logger.ErrorContext(ctx, "cannot requeue execution log", "execution_log_id", log.ID, "error", err)

			return deferred
		}

		log.Details.RetryCount++
		log.Details.LastError = message
		log.ErrorMessage = fmt.Sprintf("%s (Retry %d/%d)", message, log.Details.RetryCount, p.options.MaxRetries)

		if !p.save(ctx, log) {
			return deferred
		}

		p.forget(log.ID)

		p.logger.WarnContext(ctx, "automation failed, will retry",
			"execution_log_id", log.ID,
			"retry_count", log.Details.RetryCount,
			"error", message,
		)

		p.publish(ctx, log.ID, events.ExecutionRetrying{
			BaseEvent:      p.baseEvent(events.ExecutionRetryingEvent, log.WorkflowID),
			ExecutionLogID: log.ID,
			Error:          message,
			RetryCount:     log.Details.RetryCount,
			MaxRetries:     p.options.MaxRetries,
		})

		return retrying
	}

	err := log.Transition(models.ExecutionStatusFailed)
	if err != nil {
		p.logger.ErrorContext(ctx, "cannot fail execution log", "execution_log_id", log.ID, "error", err)

		return deferred
	}

	now := p.now().UTC()
	retries := log.Details.RetryCount

	log.ErrorMessage = message
	log.CompletedAt = &now
	log.Details.LastError = message
	log.Details.FinalRetryCount = &retries
	log.Details.ExecutionTimeMs = p.elapsed(log, now)

	if !p.save(ctx, log) {
		return deferred
	}

	p.logger.ErrorContext(ctx, "automation failed",
		"execution_log_id", log.ID,
		"classification", classification.String(),
		"retry_count", retries,
		"error", message,
	)

	_ = p.metrics.Record(ctx, log.WorkflowID, false, now)

	p.publish(ctx, log.ID, events.ExecutionFailed{
		BaseEvent:      p.baseEvent(events.ExecutionFailedEvent, log.WorkflowID),
		ExecutionLogID: log.ID,
		Error:          message,
		RetryCount:     retries,
	})

	return failed
}

func (p *Poller) suspend(ctx context.Context, log *models.ExecutionLog, outcome Outcome) disposition {
	err := log.Transition(models.ExecutionStatusWaiting)
	if err != nil {
		p.logger.ErrorContext(ctx, "cannot suspend execution log", "execution_log_id", log.ID, "error", err)

		return deferred
	}

	log.ErrorMessage = ""

	if !p.save(ctx, log) {
		return deferred
	}

	p.forget(log.ID)

	p.logger.InfoContext(ctx, "automation waiting on delay",
		"execution_log_id", log.ID,
		"resume_at", outcome.ResumeAt,
		"resume_step", outcome.ResumeStep,
	)

	p.publish(ctx, log.ID, events.ExecutionWaiting{
		BaseEvent:      p.baseEvent(events.ExecutionWaitingEvent, log.WorkflowID),
		ExecutionLogID: log.ID,
		ResumeAt:       outcome.ResumeAt,
		ResumeStep:     outcome.ResumeStep,
	})

	return waiting
}

func (p *Poller) complete(ctx context.Context, log *models.ExecutionLog, outcome Outcome) disposition {
	err := log.Transition(models.ExecutionStatusCompleted)
	if err != nil {
		p.logger.ErrorContext(ctx, "cannot complete execution log", "execution_log_id", log.ID, "error", err)

		return deferred
	}

	now := p.now().UTC()

	log.ErrorMessage = ""
	log.CompletedAt = &now
	log.Details.ExecutionTimeMs = p.elapsed(log, now)

	if !p.save(ctx, log) {
		return deferred
	}

	p.logger.InfoContext(ctx, "automation completed",
		"execution_log_id", log.ID,
		"steps_executed", outcome.StepsExecuted,
		"execution_time_ms", log.Details.ExecutionTimeMs,
	)

	_ = p.metrics.Record(ctx, log.WorkflowID, true, now)

	p.publish(ctx, log.ID, events.ExecutionCompleted{
		BaseEvent:      p.baseEvent(events.ExecutionCompletedEvent, log.WorkflowID),
		ExecutionLogID: log.ID,
		DurationMs:     log.Details.ExecutionTimeMs,
		StepsExecuted:  outcome.StepsExecuted,
		RetryCount:     log.Details.RetryCount,
	})

	return completed
}

func (p *Poller) elapsed(log *models.ExecutionLog, now time.Time) int64 {
	if log.StartedAt == nil {
		return 0
	}

	return now.Sub(*log.StartedAt).Milliseconds()
}

func (p *Poller) save(ctx context.Context, log *models.ExecutionLog) bool {
	err := p.logs.Update(ctx, log)
	if err == nil {
		return true
	}

	if persistence.IsExecutionLogTerminal(err) {
		p.logger.WarnContext(ctx, "execution log already finalized elsewhere", "execution_log_id", log.ID)
	} else {
		p.logger.ErrorContext(ctx, "failed to update execution log", "execution_log_id", log.ID, "status", log.Status, "error", err)
	}

	return false
}

func (p *Poller) baseEvent(eventType events.EventType, workflowID string) events.BaseEvent {
	base := events.NewBaseEvent(eventType, workflowID)
	base.WorkerID = p.options.WorkerID

	return base
}

func (p *Poller) publish(ctx context.Context, key string, event eventbus.Event) {
	if p.publisher == nil {
		return
	}

	err := p.publisher.Publish(ctx, key, event)
	if err != nil {
		p.logger.ErrorContext(ctx, "failed to publish event", "event_type", event.GetType(), "error", err)
	}
}

// markProcessed adds id to the in-session set and reports false if it was already there.
func (p *Poller) markProcessed(id string) bool {
	p.processedMu.Lock()
	defer p.processedMu.Unlock()

	if _, ok := p.processed[id]; ok {
		return false
	}

	p.processed[id] = struct{}{}

	return true
}

func (p *Poller) forget(id string) {
	p.processedMu.Lock()
	defer p.processedMu.Unlock()

	delete(p.processed, id)
}

// ClearOldPendingLogs expires every never-started pending log older than the pending expiry and
// returns how many changed. Logs requeued by a retry are left to the retry budget.
func (p *Poller) ClearOldPendingLogs(ctx context.Context) (int64, error) {
	now := p.now().UTC()
	olderThan := now.Add(-p.options.PendingExpiry)

	count, err := p.logs.ExpirePending(ctx, olderThan, ExpiredMessage(p.options.PendingExpiry), now)
	if err != nil {
		return 0, fmt.Errorf("failed to expire pending execution logs: %w", err)
	}

	if count > 0 {
		p.logger.InfoContext(ctx, "expired stale pending automations", "count", count, "older_than", olderThan)

		p.publish(ctx, "", events.ExecutionsExpired{
			BaseEvent: p.baseEvent(events.ExecutionsExpiredEvent, ""),
			Count:     count,
			OlderThan: olderThan,
		})
	}

	return count, nil
}

func (p *Poller) HealthStatus(ctx context.Context) (HealthStatus, error) {
	p.processedMu.Lock()
	processed := len(p.processed)
	p.processedMu.Unlock()

	status := HealthStatus{
		IsRunning:              p.running.Load(),
		IsProcessing:           p.processing.Load(),
		CacheSize:              p.validator.cache.Size(),
		ProcessedInSessionSize: processed,
	}

	pending, err := p.logs.CountByStatus(ctx, models.ExecutionStatusPending)
	if err != nil {
		return status, fmt.Errorf("failed to count pending execution logs: %w", err)
	}

	status.PendingCount = pending

	failures, err := p.logs.CountFailedSince(ctx, p.now().UTC().Add(-recentFailuresWindow))
	if err != nil {
		return status, fmt.Errorf("failed to count recent failures: %w", err)
	}

	status.RecentFailures = failures

	return status, nil
}
