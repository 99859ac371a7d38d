// Package checker runs accuracy checks: bounded scans that diff
// source-of-truth records against their last-known synced values across
// active integrations, producing discrepancies, a score, and one metric
// snapshot per scan.
package checker

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/truthsource/syncwatch/internal/metrics"
	"github.com/truthsource/syncwatch/internal/models"
	"github.com/truthsource/syncwatch/internal/scoring"
	"github.com/truthsource/syncwatch/internal/source"
	"github.com/truthsource/syncwatch/internal/storage"
)

// EventKind identifies a progress event.
type EventKind string

const (
	EventStarted   EventKind = "started"
	EventProgress  EventKind = "progress"
	EventCompleted EventKind = "completed"
	EventFailed    EventKind = "failed"
)

// Event is one progress notification from a running scan. The per-check
// event channel is closed after the terminal completed/failed event, so
// consumers detect scan completion without timeouts.
type Event struct {
	Kind          EventKind
	CheckID       string
	IntegrationID string

	// Progress is 0..100, set on progress events.
	Progress float64

	// Terminal fields, set on completed events.
	AccuracyScore      float64
	DiscrepanciesFound int
	RecordsChecked     int
	Duration           time.Duration

	// Error is set on failed events.
	Error string
}

// Options configures the checker.
type Options struct {
	// SampleSize caps records fetched per (integration, entity family).
	SampleSize int

	// Parallelism bounds concurrent per-integration scans.
	Parallelism int

	// EventBufferSize is the per-check event channel buffer.
	EventBufferSize int

	// TxnReconcileTolerance is the allowed residual (in units) after
	// subtracting recent transaction deltas from a raw quantity
	// difference before it counts as a mismatch.
	TxnReconcileTolerance float64
}

// DefaultOptions returns default checker options.
func DefaultOptions() *Options {
	return &Options{
		SampleSize:            1000,
		Parallelism:           4,
		EventBufferSize:       100,
		TxnReconcileTolerance: 1,
	}
}

// CheckConfig describes one requested accuracy check.
type CheckConfig struct {
	OrganizationID string
	Scope          models.CheckScope

	// IntegrationID restricts the scan to one integration when set.
	IntegrationID string

	// SampleSize overrides the checker default when positive.
	SampleSize int
}

// Validate rejects bad config before any work begins.
func (c *CheckConfig) Validate() error {
	if c.OrganizationID == "" {
		return fmt.Errorf("organization id is required")
	}
	if c.SampleSize < 0 {
		return fmt.Errorf("sample size must be non-negative")
	}
	return nil
}

// Checker runs accuracy check scans.
type Checker struct {
	store   storage.Store
	metrics storage.MetricRepository
	diff    source.DiffSource
	clock   source.Clock
	opts    *Options

	mu      sync.Mutex
	running map[string]context.CancelFunc
}

// New creates a checker.
func New(store storage.Store, metrics storage.MetricRepository, diff source.DiffSource, clock source.Clock, opts *Options) *Checker {
	if opts == nil {
		opts = DefaultOptions()
	}
	if clock == nil {
		clock = source.SystemClock{}
	}
	return &Checker{
		store:   store,
		metrics: metrics,
		diff:    diff,
		clock:   clock,
		opts:    opts,
		running: make(map[string]context.CancelFunc),
	}
}

// Run creates the check record synchronously and spawns the scan. The
// returned channel delivers progress events and is closed when the scan
// ends.
func (c *Checker) Run(ctx context.Context, cfg CheckConfig) (string, <-chan Event, error) {
	if err := cfg.Validate(); err != nil {
		return "", nil, err
	}

	check := &models.AccuracyCheck{
		ID:             uuid.New().String(),
		OrganizationID: cfg.OrganizationID,
		Scope:          cfg.Scope,
		IntegrationID:  cfg.IntegrationID,
		Status:         models.CheckRunning,
		StartedAt:      c.clock.Now().UTC(),
	}
	if err := c.store.Checks().Create(ctx, check); err != nil {
		return "", nil, fmt.Errorf("create check: %w", err)
	}

	// The scan outlives the request context; cancellation happens only
	// through Abort.
	scanCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.mu.Lock()
	c.running[check.ID] = cancel
	c.mu.Unlock()

	sink := newEventSink(c.opts.EventBufferSize)
	metrics.ChecksActive.Inc()
	go func() {
		defer sink.close()
		defer func() {
			metrics.ChecksActive.Dec()
			c.mu.Lock()
			delete(c.running, check.ID)
			c.mu.Unlock()
			cancel()
		}()
		c.scan(scanCtx, check, cfg, sink)
	}()

	return check.ID, sink.events(), nil
}

// Abort signals the in-flight scan to stop at the next safe checkpoint.
// Returns false when no scan with that id is running.
func (c *Checker) Abort(checkID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	cancel, ok := c.running[checkID]
	if ok {
		cancel()
	}
	return ok
}

type scanState struct {
	mu            sync.Mutex
	discrepancies []*models.Discrepancy
	recordsDone   int
	expectedTotal int
	intsDone      int
	intsTotal     int
}

func (s *scanState) add(discs []*models.Discrepancy, records int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.discrepancies = append(s.discrepancies, discs...)
	s.recordsDone += records
}

// progressPct prefers a record-based percentage and falls back to
// integration completion when no record estimate exists.
func (s *scanState) progressPct() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.expectedTotal > 0 {
		return math.Min(100, math.Round(float64(s.recordsDone)/float64(s.expectedTotal)*100))
	}
	if s.intsTotal == 0 {
		return 100
	}
	return float64(s.intsDone) / float64(s.intsTotal) * 100
}

func (c *Checker) scan(ctx context.Context, check *models.AccuracyCheck, cfg CheckConfig, sink *eventSink) {
	sink.send(Event{Kind: EventStarted, CheckID: check.ID})
	started := c.clock.Now()

	integrations, err := c.diff.ActiveIntegrations(ctx, cfg.OrganizationID)
	if err != nil {
		c.fail(check.ID, fmt.Sprintf("list integrations: %v", err), sink)
		return
	}
	if cfg.IntegrationID != "" {
		filtered := integrations[:0]
		for _, in := range integrations {
			if in.ID == cfg.IntegrationID {
				filtered = append(filtered, in)
			}
		}
		integrations = filtered
	}

	entityTypes := cfg.Scope.EntityTypes()
	sampleSize := cfg.SampleSize
	if sampleSize == 0 {
		sampleSize = c.opts.SampleSize
	}

	state := &scanState{intsTotal: len(integrations)}
	for _, in := range integrations {
		for _, et := range entityTypes {
			if n, err := c.diff.ExpectedRecords(ctx, in.ID, et); err == nil {
				state.expectedTotal += n
			}
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Parallelism)
	for _, in := range integrations {
		in := in
		g.Go(func() error {
			err := c.scanIntegration(gctx, check, in, entityTypes, sampleSize, state, sink)
			state.mu.Lock()
			state.intsDone++
			state.mu.Unlock()
			return err
		})
	}
	err = g.Wait()

	duration := c.clock.Now().Sub(started)
	switch {
	case ctx.Err() != nil:
		// Aborted: what was collected up to the checkpoint is kept.
		c.persistAborted(check, state, sink)
	case err != nil:
		// Data-access failure: the scan is all-or-nothing, collected
		// discrepancies are discarded.
		c.fail(check.ID, err.Error(), sink)
	default:
		c.complete(check, state, duration, sink)
	}
}

func (c *Checker) scanIntegration(ctx context.Context, check *models.AccuracyCheck, in source.Integration, entityTypes []models.EntityType, sampleSize int, state *scanState, sink *eventSink) error {
	cmp := &comparer{
		diff:          c.diff,
		clock:         c.clock,
		txnTolerance:  c.opts.TxnReconcileTolerance,
		integrationID: in.ID,
	}

	for _, et := range entityTypes {
		// Abort checkpoint: between entity-family batches, never
		// mid-record.
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		pairs, err := c.diff.Pairs(ctx, in.ID, et, sampleSize)
		if err != nil {
			return fmt.Errorf("fetch %s pairs for %s: %w", et, in.ID, err)
		}

		detectedAt := c.clock.Now().UTC()
		var discs []*models.Discrepancy
		for _, pair := range pairs {
			for _, f := range cmp.comparePair(ctx, pair) {
				discs = append(discs, f.toDiscrepancy(
					uuid.New().String(), check.ID, check.OrganizationID, in.ID, detectedAt))
			}
		}
		state.add(discs, len(pairs))

		// Bookkeeping only; a failed upsert never fails the scan.
		if err := c.store.SyncStates().Upsert(ctx, &models.SyncState{
			IntegrationID:    in.ID,
			EntityType:       et,
			LastCheckedAt:    detectedAt,
			RecordsChecked:   len(pairs),
			DiscrepancyCount: len(discs),
		}); err != nil {
			log.Printf("checker: record sync state for %s/%s: %v", in.ID, et, err)
		}

		sink.send(Event{
			Kind:          EventProgress,
			CheckID:       check.ID,
			IntegrationID: in.ID,
			Progress:      state.progressPct(),
		})
	}
	return nil
}

func (c *Checker) complete(check *models.AccuracyCheck, state *scanState, duration time.Duration, sink *eventSink) {
	ctx := context.Background()
	discs := state.discrepancies
	sortDiscrepancies(discs)

	if err := c.store.Discrepancies().InsertBatch(ctx, discs); err != nil {
		c.fail(check.ID, fmt.Sprintf("persist discrepancies: %v", err), sink)
		return
	}

	score := scoring.CalculateScore(state.recordsDone, discs)
	completedAt := c.clock.Now().UTC()
	if err := c.store.Checks().Complete(ctx, check.ID, score, len(discs), state.recordsDone, completedAt, duration.Milliseconds()); err != nil {
		log.Printf("checker: complete check %s: %v", check.ID, err)
		return
	}

	byType := make(map[string]int)
	for _, d := range discs {
		byType[string(d.Type)]++
	}
	metric := &models.AccuracyMetric{
		ID:               uuid.New().String(),
		OrganizationID:   check.OrganizationID,
		IntegrationID:    check.IntegrationID,
		AccuracyScore:    score,
		TotalRecords:     state.recordsDone,
		DiscrepancyCount: len(discs),
		MetricsByType:    byType,
		Timestamp:        completedAt,
		BucketDuration:   duration,
	}
	if err := c.metrics.Insert(ctx, metric); err != nil {
		log.Printf("checker: append metric for check %s: %v", check.ID, err)
	}

	metrics.ChecksTotal.WithLabelValues(string(models.CheckCompleted)).Inc()
	metrics.CheckDuration.Observe(duration.Seconds())
	metrics.CheckRecordsScanned.Add(float64(state.recordsDone))
	metrics.AccuracyScore.WithLabelValues(check.OrganizationID, check.IntegrationID).Set(score)
	for _, d := range discs {
		metrics.DiscrepanciesDetected.WithLabelValues(
			string(d.Type), string(d.Severity), string(d.EntityType)).Inc()
	}

	sink.send(Event{
		Kind:               EventCompleted,
		CheckID:            check.ID,
		AccuracyScore:      score,
		DiscrepanciesFound: len(discs),
		RecordsChecked:     state.recordsDone,
		Duration:           duration,
	})
}

func (c *Checker) persistAborted(check *models.AccuracyCheck, state *scanState, sink *eventSink) {
	ctx := context.Background()
	discs := state.discrepancies
	sortDiscrepancies(discs)
	if err := c.store.Discrepancies().InsertBatch(ctx, discs); err != nil {
		log.Printf("checker: persist discrepancies for aborted check %s: %v", check.ID, err)
	}
	c.fail(check.ID, "aborted by user", sink)
}

func (c *Checker) fail(checkID, message string, sink *eventSink) {
	if err := c.store.Checks().Fail(context.Background(), checkID, message, c.clock.Now().UTC()); err != nil {
		log.Printf("checker: mark check %s failed: %v", checkID, err)
	}
	metrics.ChecksTotal.WithLabelValues(string(models.CheckFailed)).Inc()
	sink.send(Event{Kind: EventFailed, CheckID: checkID, Error: message})
}

// sortDiscrepancies orders the batch deterministically regardless of
// integration scan interleaving.
func sortDiscrepancies(discs []*models.Discrepancy) {
	sort.Slice(discs, func(i, j int) bool {
		if discs[i].EntityID != discs[j].EntityID {
			return discs[i].EntityID < discs[j].EntityID
		}
		return discs[i].FieldName < discs[j].FieldName
	})
}

// eventSink wraps the per-check event channel with non-blocking sends.
type eventSink struct {
	ch      chan Event
	closed  atomic.Bool
	dropped atomic.Int64
}

func newEventSink(buffer int) *eventSink {
	if buffer <= 0 {
		buffer = 100
	}
	return &eventSink{ch: make(chan Event, buffer)}
}

func (s *eventSink) events() <-chan Event { return s.ch }

func (s *eventSink) send(ev Event) {
	if s.closed.Load() {
		return
	}
	select {
	case s.ch <- ev:
	default:
		dropped := s.dropped.Add(1)
		if dropped == 1 || dropped%100 == 0 {
			log.Printf("warning: check %s event channel full, dropped %d events total", ev.CheckID, dropped)
		}
	}
}

func (s *eventSink) close() {
	if s.closed.Swap(true) {
		return
	}
	close(s.ch)
}
