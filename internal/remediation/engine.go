package remediation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"reflect"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/truthsource/syncwatch/internal/metrics"
	"github.com/truthsource/syncwatch/internal/models"
	"github.com/truthsource/syncwatch/internal/source"
	"github.com/truthsource/syncwatch/internal/storage"
)

// verifyEpsilon is the numeric tolerance when re-reading a written value.
const verifyEpsilon = 0.01

// Options configures the remediation engine.
type Options struct {
	// Throttle is the minimum delay between remediation attempts.
	Throttle time.Duration

	// SyncPollTimeout bounds how long a sync_retry waits for its job.
	SyncPollTimeout time.Duration

	// SyncPollInterval is the job status polling cadence.
	SyncPollInterval time.Duration

	// MaxChangesPerRun caps discrepancies processed per batch call.
	MaxChangesPerRun int

	// QueueSize is the buffer of the asynchronous work queue.
	QueueSize int
}

// DefaultOptions returns default engine options.
func DefaultOptions() *Options {
	return &Options{
		Throttle:         100 * time.Millisecond,
		SyncPollTimeout:  30 * time.Second,
		SyncPollInterval: time.Second,
		MaxChangesPerRun: 100,
		QueueSize:        64,
	}
}

// Result is the outcome of one remediation attempt.
type Result struct {
	Success bool
	Action  ActionType
	Result  map[string]any
	Error   string
}

// BatchResult tallies a batch invocation. Individual failures never abort
// the batch.
type BatchResult struct {
	Total     int
	Succeeded int
	Failed    int
	Skipped   int
}

// Engine executes remediation actions.
type Engine struct {
	store   storage.Store
	trigger source.SyncTrigger
	fields  source.FieldStore
	clock   source.Clock
	limiter *rate.Limiter
	opts    *Options

	queue chan []string
}

// NewEngine creates a remediation engine.
func NewEngine(store storage.Store, trigger source.SyncTrigger, fields source.FieldStore, clock source.Clock, opts *Options) *Engine {
	if opts == nil {
		opts = DefaultOptions()
	}
	if clock == nil {
		clock = source.SystemClock{}
	}
	return &Engine{
		store:   store,
		trigger: trigger,
		fields:  fields,
		clock:   clock,
		limiter: rate.NewLimiter(rate.Every(opts.Throttle), 1),
		opts:    opts,
		queue:   make(chan []string, opts.QueueSize),
	}
}

// Enqueue hands discrepancy ids to the engine for asynchronous pickup.
// Returns an error when the queue is full rather than blocking alert
// evaluation.
func (e *Engine) Enqueue(ctx context.Context, discrepancyIDs []string) error {
	if len(discrepancyIDs) == 0 {
		return nil
	}
	select {
	case e.queue <- discrepancyIDs:
		metrics.RemediationQueueDepth.Set(float64(len(e.queue)))
		return nil
	default:
		return fmt.Errorf("remediation queue full, dropping %d discrepancies", len(discrepancyIDs))
	}
}

// Run drains the work queue until the context is canceled.
func (e *Engine) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ids := <-e.queue:
			metrics.RemediationQueueDepth.Set(float64(len(e.queue)))
			result := e.BatchRemediate(ctx, ids)
			log.Printf("remediation: batch done: %d total, %d fixed, %d failed, %d skipped",
				result.Total, result.Succeeded, result.Failed, result.Skipped)
		}
	}
}

// BatchRemediate processes up to MaxChangesPerRun of the given
// discrepancies, pacing attempts with the engine throttle.
func (e *Engine) BatchRemediate(ctx context.Context, discrepancyIDs []string) BatchResult {
	ids := discrepancyIDs
	if len(ids) > e.opts.MaxChangesPerRun {
		ids = ids[:e.opts.MaxChangesPerRun]
	}

	result := BatchResult{}
	for _, id := range ids {
		if err := e.limiter.Wait(ctx); err != nil {
			return result
		}

		d, err := e.store.Discrepancies().GetByID(ctx, id)
		if err != nil {
			log.Printf("remediation: load discrepancy %s: %v", id, err)
			result.Skipped++
			result.Total++
			continue
		}
		if d.Status != models.DiscrepancyOpen {
			result.Skipped++
			result.Total++
			continue
		}

		r := e.Attempt(ctx, d)
		result.Total++
		switch {
		case r.Action == ActionNone:
			result.Skipped++
			metrics.RemediationsTotal.WithLabelValues(string(ActionNone), "skipped").Inc()
		case r.Success:
			result.Succeeded++
			metrics.RemediationsTotal.WithLabelValues(string(r.Action), "success").Inc()
		default:
			result.Failed++
			metrics.RemediationsTotal.WithLabelValues(string(r.Action), "failure").Inc()
		}
	}
	return result
}

// Attempt runs the mapped action for one discrepancy. Unmapped
// combinations return success=false with ActionNone and no audit entry;
// everything else records a RemediationLog from running to
// completed/failed, and a verified success resolves the discrepancy.
func (e *Engine) Attempt(ctx context.Context, d *models.Discrepancy) Result {
	action := SelectAction(d)
	if action.Type == ActionNone {
		return Result{Success: false, Action: ActionNone}
	}

	entry := &models.RemediationLog{
		ID:             uuid.New().String(),
		DiscrepancyID:  d.ID,
		OrganizationID: d.OrganizationID,
		ActionType:     string(action.Type),
		ActionConfig:   action.config(),
		Status:         models.RemediationRunning,
		StartedAt:      e.clock.Now().UTC(),
	}
	if err := e.store.Remediations().Create(ctx, entry); err != nil {
		return Result{Success: false, Action: action.Type, Error: fmt.Sprintf("record attempt: %v", err)}
	}

	details, execErr := e.execute(ctx, d, action)
	completedAt := e.clock.Now().UTC()

	if execErr != nil {
		if err := e.store.Remediations().Finish(ctx, entry.ID, models.RemediationFailed, false, details, execErr.Error(), completedAt); err != nil {
			log.Printf("remediation: finish log %s: %v", entry.ID, err)
		}
		return Result{Success: false, Action: action.Type, Result: details, Error: execErr.Error()}
	}

	if err := e.store.Remediations().Finish(ctx, entry.ID, models.RemediationCompleted, true, details, "", completedAt); err != nil {
		log.Printf("remediation: finish log %s: %v", entry.ID, err)
	}
	if err := e.store.Discrepancies().UpdateStatus(ctx, d.ID, models.DiscrepancyResolved, models.ResolutionAutoFixed); err != nil {
		log.Printf("remediation: resolve discrepancy %s: %v", d.ID, err)
	}
	return Result{Success: true, Action: action.Type, Result: details}
}

func (e *Engine) execute(ctx context.Context, d *models.Discrepancy, action Action) (map[string]any, error) {
	switch action.Type {
	case ActionSyncRetry:
		return e.executeSyncRetry(ctx, d, action)
	case ActionValueUpdate:
		return e.executeValueUpdate(ctx, d, action)
	case ActionCacheClear, ActionForceRefresh:
		return e.executeCacheClear(ctx, d, action)
	default:
		return nil, fmt.Errorf("unknown action %q", action.Type)
	}
}

// executeSyncRetry requests a sync job and polls its status until it
// finishes or the polling window closes. Remediation never retries past
// that window.
func (e *Engine) executeSyncRetry(ctx context.Context, d *models.Discrepancy, action Action) (map[string]any, error) {
	jobID, err := e.trigger.RequestSync(ctx, d.IntegrationID, d.EntityType, d.EntityID, action.ForceRefresh)
	if err != nil {
		return nil, fmt.Errorf("request sync: %w", err)
	}
	details := map[string]any{"job_id": jobID}

	deadline := time.NewTimer(e.opts.SyncPollTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(e.opts.SyncPollInterval)
	defer ticker.Stop()

	for {
		status, err := e.trigger.SyncJobStatus(ctx, jobID)
		if err != nil {
			return details, fmt.Errorf("poll sync job %s: %w", jobID, err)
		}
		details["job_status"] = string(status)
		switch status {
		case source.SyncJobCompleted:
			return details, nil
		case source.SyncJobFailed:
			return details, fmt.Errorf("sync job %s failed", jobID)
		}

		select {
		case <-ctx.Done():
			return details, ctx.Err()
		case <-deadline.C:
			return details, fmt.Errorf("sync job %s still pending after %s", jobID, e.opts.SyncPollTimeout)
		case <-ticker.C:
		}
	}
}

// executeValueUpdate validates, captures the pre-image, writes, then
// re-reads to verify the write landed. A verification miss is a failure
// even though the write may have partially occurred.
func (e *Engine) executeValueUpdate(ctx context.Context, d *models.Discrepancy, action Action) (map[string]any, error) {
	if action.Field == "" {
		return nil, errors.New("value_update without a field")
	}
	if err := validateValue(d.EntityType, action.Field, action.Value); err != nil {
		return nil, fmt.Errorf("safety predicate: %w", err)
	}

	before, err := e.fields.ReadField(ctx, d.IntegrationID, d.EntityType, d.EntityID, action.Field)
	if err != nil {
		return nil, fmt.Errorf("read pre-image: %w", err)
	}
	details := map[string]any{"before_state": before, "proposed": action.Value}

	if err := e.fields.WriteField(ctx, d.IntegrationID, d.EntityType, d.EntityID, action.Field, action.Value); err != nil {
		return details, fmt.Errorf("write field: %w", err)
	}

	after, err := e.fields.ReadField(ctx, d.IntegrationID, d.EntityType, d.EntityID, action.Field)
	if err != nil {
		return details, fmt.Errorf("verify read: %w", err)
	}
	details["after_state"] = after

	if !valuesMatch(action.Value, after) {
		return details, fmt.Errorf("verification failed: wrote %v, read back %v", action.Value, after)
	}
	return details, nil
}

func (e *Engine) executeCacheClear(ctx context.Context, d *models.Discrepancy, action Action) (map[string]any, error) {
	if err := e.fields.ClearCache(ctx, d.IntegrationID, d.EntityType, d.EntityID); err != nil {
		return nil, fmt.Errorf("clear cache: %w", err)
	}
	details := map[string]any{"cache_cleared": true}

	if action.ChainSync {
		chained, err := e.executeSyncRetry(ctx, d, Action{Type: ActionSyncRetry, ForceRefresh: action.Type == ActionForceRefresh})
		for k, v := range chained {
			details[k] = v
		}
		if err != nil {
			return details, err
		}
	}
	return details, nil
}

func valuesMatch(want, got any) bool {
	wn, wok := toFloat(want)
	gn, gok := toFloat(got)
	if wok && gok {
		return math.Abs(wn-gn) <= verifyEpsilon
	}
	return reflect.DeepEqual(want, got)
}
