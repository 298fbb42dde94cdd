package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/nws-alert-ingest/internal/config"
	"github.com/couchcryptid/nws-alert-ingest/internal/domain"
	"github.com/couchcryptid/nws-alert-ingest/internal/ledger"
	"github.com/couchcryptid/nws-alert-ingest/internal/observability"
)

// MsgInProgress is the skip message for a poll rejected because another one
// holds the cycle lock.
const MsgInProgress = "poll already in progress"

// Shared cycle lock. The TTL bounds how long a crashed holder blocks polling.
const (
	CycleLockName = "poll_cycle"
	CycleLockTTL  = 15 * time.Minute
)

// AlertSource reads alerts from the upstream API.
type AlertSource interface {
	FetchActive(ctx context.Context) ([]domain.RawAlert, error)
	FetchByID(ctx context.Context, rawID string) (domain.RawAlert, error)
}

// RecordStore persists alert records. Lookups return nil with no error when
// nothing matches.
type RecordStore interface {
	FindByFullID(ctx context.Context, fullID string) (*domain.RecordRef, error)
	FindRootByIdentifier(ctx context.Context, identifier string) (*domain.RecordRef, error)
	Insert(ctx context.Context, rec domain.AlertRecord, parent *domain.RecordRef) (domain.RecordRef, error)
}

// StateStore holds the poll state that survives between cycles.
type StateStore interface {
	LastPoll(ctx context.Context) (time.Time, error)
	SetLastPoll(ctx context.Context, t time.Time) error
	Ledger(ctx context.Context) ([]string, error)
	SetLedger(ctx context.Context, ids []string) error
}

// Publisher receives the records stored by a cycle.
type Publisher interface {
	Publish(ctx context.Context, records []domain.AlertRecord) error
}

// CycleLock is a lease shared by every process polling the same store, so
// two processes never run a cycle at once.
type CycleLock interface {
	TryAcquire(ctx context.Context, name, owner string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, name, owner string) error
}

// recordCounter is implemented by stores that can report their size.
type recordCounter interface {
	Count(ctx context.Context) (int64, error)
}

// Pipeline runs poll cycles against the alert source.
type Pipeline struct {
	source    AlertSource
	records   RecordStore
	state     StateStore
	publisher Publisher
	lock      CycleLock
	owner     string
	settings  config.Settings
	clock     clockwork.Clock
	logger    *slog.Logger
	metrics   *observability.Metrics

	mu    sync.Mutex
	ready atomic.Bool
}

// New creates a Pipeline. publisher and lock may be nil; without a lock only
// polls within this process are serialized.
func New(
	source AlertSource,
	records RecordStore,
	state StateStore,
	publisher Publisher,
	lock CycleLock,
	settings config.Settings,
	clock clockwork.Clock,
	logger *slog.Logger,
	metrics *observability.Metrics,
) *Pipeline {
	return &Pipeline{
		source:    source,
		records:   records,
		state:     state,
		publisher: publisher,
		lock:      lock,
		owner:     uuid.NewString(),
		settings:  settings,
		clock:     clock,
		logger:    logger,
		metrics:   metrics,
	}
}

// CheckReadiness returns nil once a poll has succeeded or been skipped by the
// cadence gate.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no poll has completed yet")
	}
	return nil
}

// Run polls immediately and then on every tick until ctx is cancelled. The
// cadence gate inside Poll decides whether a tick does any work.
func (p *Pipeline) Run(ctx context.Context, tick time.Duration) error {
	p.logger.Info("scheduler started", "tick", tick, "poll_interval", p.settings.PollInterval)
	p.metrics.SchedulerRunning.Set(1)
	defer p.metrics.SchedulerRunning.Set(0)

	ticker := p.clock.NewTicker(tick)
	defer ticker.Stop()

	p.Poll(ctx)
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("scheduler stopping", "reason", ctx.Err())
			return nil
		case <-ticker.Chan():
			p.Poll(ctx)
		}
	}
}

// Poll runs one cycle: cadence gate, fetch, per-alert processing, ledger
// persist, and last-poll update. A call made while another cycle runs, in
// this process or any other holding the shared lock, is rejected with a
// skipped result. Per-alert failures are reported in the summary and never
// abort the cycle.
func (p *Pipeline) Poll(ctx context.Context) domain.PollResult {
	if !p.mu.TryLock() {
		p.logger.Info("poll rejected", "reason", MsgInProgress)
		return p.finish(domain.PollResult{Status: domain.PollSkipped, Message: MsgInProgress})
	}
	defer p.mu.Unlock()

	log := p.logger.With("run_id", uuid.NewString())

	if p.lock != nil {
		ok, err := p.lock.TryAcquire(ctx, CycleLockName, p.owner, CycleLockTTL)
		if err != nil {
			log.Error("acquire cycle lock failed", "error", err)
			return p.finish(errorResult(fmt.Errorf("acquire cycle lock: %w", err)))
		}
		if !ok {
			log.Info("poll rejected", "reason", MsgInProgress, "lock", CycleLockName)
			return p.finish(domain.PollResult{Status: domain.PollSkipped, Message: MsgInProgress})
		}
		defer func() {
			if err := p.lock.Release(context.WithoutCancel(ctx), CycleLockName, p.owner); err != nil {
				log.Warn("release cycle lock failed", "error", err)
			}
		}()
	}

	now := p.clock.Now()

	last, err := p.state.LastPoll(ctx)
	if err != nil {
		log.Error("read last poll time failed", "error", err)
		return p.finish(errorResult(fmt.Errorf("read last poll time: %w", err)))
	}
	if !last.IsZero() {
		if elapsed := now.Sub(last); elapsed < p.settings.PollInterval {
			next := last.Add(p.settings.PollInterval)
			log.Debug("poll skipped by cadence gate", "elapsed", elapsed, "next_poll", next)
			p.ready.Store(true)
			return p.finish(domain.PollResult{
				Status:  domain.PollSkipped,
				Message: fmt.Sprintf("poll interval not elapsed, next poll at %s", next.UTC().Format(time.RFC3339)),
			})
		}
	}

	log.Info("poll started", "last_poll", last)
	start := p.clock.Now()
	defer func() {
		p.metrics.PollDuration.Observe(p.clock.Since(start).Seconds())
	}()

	alerts, err := p.source.FetchActive(ctx)
	if err != nil {
		log.Error("fetch active alerts failed", "error", err)
		return p.finish(errorResult(err))
	}
	p.metrics.AlertsFetched.Add(float64(len(alerts)))
	log.Info("fetched active alerts", "count", len(alerts))

	ids, err := p.state.Ledger(ctx)
	if err != nil {
		log.Error("read ledger failed", "error", err)
		return p.finish(errorResult(fmt.Errorf("read ledger: %w", err)))
	}

	c := &cycle{
		ledger:  ledger.New(ids),
		summary: domain.PollSummary{Total: len(alerts), Errors: []string{}},
		log:     log,
	}
	for _, raw := range alerts {
		p.processAlert(ctx, c, raw)
	}

	entries := c.ledger.Entries()
	if err := p.state.SetLedger(ctx, entries); err != nil {
		log.Error("persist ledger failed", "error", err)
		c.summary.Errors = append(c.summary.Errors, fmt.Sprintf("ledger: %v", err))
	} else {
		p.metrics.LedgerSize.Set(float64(len(entries)))
		log.Debug("ledger persisted", "working", c.ledger.Len(), "persisted", len(entries))
	}

	if err := p.state.SetLastPoll(ctx, now); err != nil {
		log.Error("persist last poll time failed", "error", err)
		c.summary.Errors = append(c.summary.Errors, fmt.Sprintf("last poll time: %v", err))
	}
	p.metrics.LastPollTime.Set(float64(now.Unix()))

	p.publish(ctx, log, c.inserted)

	s := c.summary
	log.Info("poll complete",
		"total", s.Total,
		"uploaded", s.Uploaded,
		"skipped", s.Skipped,
		"dismissed", s.Dismissed,
		"errors", len(s.Errors),
	)

	p.ready.Store(true)
	polledAt := now
	return p.finish(domain.PollResult{
		Status:   domain.PollSuccess,
		PolledAt: &polledAt,
		Results:  &s,
	})
}

// cycle is the mutable state of one poll.
type cycle struct {
	ledger   *ledger.Ledger
	summary  domain.PollSummary
	inserted []domain.AlertRecord
	log      *slog.Logger
}

func (c *cycle) fail(fullID string, err error) {
	c.summary.Errors = append(c.summary.Errors, fmt.Sprintf("%s: %v", fullID, err))
}

func (p *Pipeline) processAlert(ctx context.Context, c *cycle, raw domain.RawAlert) {
	fullID := raw.FullID()
	log := c.log.With("alert_id", fullID)

	id, err := domain.ParseAlertID(fullID)
	if err != nil {
		log.Warn("unparseable alert identifier", "error", err)
		c.fail(fullID, err)
		p.metrics.AlertOutcomes.WithLabelValues("error").Inc()
		return
	}

	if c.ledger.Contains(fullID) {
		log.Debug("alert already in ledger")
		p.skip(c)
		return
	}

	existing, err := p.records.FindByFullID(ctx, fullID)
	if err != nil {
		log.Error("record lookup failed", "error", err)
		c.fail(fullID, err)
		p.metrics.AlertOutcomes.WithLabelValues("error").Inc()
		return
	}
	if existing != nil {
		log.Debug("alert already stored", "record_id", existing.ID)
		c.ledger.Add(fullID)
		p.skip(c)
		return
	}

	var parent *domain.RecordRef
	if !id.IsRoot() {
		parent, err = p.resolveParent(ctx, c, log, id)
		if errors.Is(err, domain.ErrParentUnresolvable) {
			log.Warn("alert dismissed", "error", err)
			c.summary.Dismissed++
			p.metrics.AlertOutcomes.WithLabelValues("dismissed").Inc()
			return
		}
		if err != nil {
			log.Error("parent lookup failed", "error", err)
			c.fail(fullID, err)
			p.metrics.AlertOutcomes.WithLabelValues("error").Inc()
			return
		}
	}

	rec := domain.BuildRecord(raw, id)
	ref, err := p.records.Insert(ctx, rec, parent)
	if err != nil {
		log.Error("insert alert failed", "error", err)
		c.fail(fullID, err)
		p.metrics.AlertOutcomes.WithLabelValues("error").Inc()
		return
	}

	rec.ID = ref.ID
	if parent != nil {
		parentID := parent.ID
		rec.ParentID = &parentID
		rec.ParentFullID = parent.FullID
	}
	c.inserted = append(c.inserted, rec)
	c.ledger.Add(fullID)
	c.summary.Uploaded++
	p.metrics.AlertOutcomes.WithLabelValues("uploaded").Inc()
	log.Info("alert stored", "record_id", ref.ID, "event", rec.Event, "root", parent == nil)
}

// resolveParent finds the root of a follow-up's series, fetching and storing
// it when it is missing. A root that cannot be fetched or stored yields
// domain.ErrParentUnresolvable.
func (p *Pipeline) resolveParent(ctx context.Context, c *cycle, log *slog.Logger, id domain.AlertID) (*domain.RecordRef, error) {
	root, err := p.records.FindRootByIdentifier(ctx, id.Identifier)
	if err != nil {
		return nil, fmt.Errorf("find root of %s: %w", id.Identifier, err)
	}
	if root != nil {
		return root, nil
	}

	rootRaw := domain.ExpectedRootID(id)
	log.Info("root alert missing, fetching", "root_id", rootRaw)

	fetched, err := p.source.FetchByID(ctx, rootRaw)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch %s: %v", domain.ErrParentUnresolvable, rootRaw, err)
	}
	rootID, err := domain.ParseAlertID(rootRaw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrParentUnresolvable, err)
	}

	rec := domain.BuildRecord(fetched, rootID)
	ref, err := p.records.Insert(ctx, rec, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: store %s: %v", domain.ErrParentUnresolvable, rootRaw, err)
	}

	rec.ID = ref.ID
	c.inserted = append(c.inserted, rec)
	c.ledger.Add(rootRaw)
	p.metrics.ParentsBackfill.Inc()
	log.Info("root alert backfilled", "root_id", rootRaw, "record_id", ref.ID)
	return &ref, nil
}

func (p *Pipeline) skip(c *cycle) {
	c.summary.Skipped++
	p.metrics.AlertOutcomes.WithLabelValues("skipped").Inc()
}

func (p *Pipeline) publish(ctx context.Context, log *slog.Logger, records []domain.AlertRecord) {
	if p.publisher == nil || len(records) == 0 {
		return
	}
	if err := p.publisher.Publish(ctx, records); err != nil {
		p.metrics.SinkPublishErrors.Inc()
		log.Error("publish stored alerts failed", "error", err, "count", len(records))
		return
	}
	p.metrics.SinkPublished.Add(float64(len(records)))
	log.Debug("published stored alerts", "count", len(records))
}

func (p *Pipeline) finish(res domain.PollResult) domain.PollResult {
	p.metrics.PollsTotal.WithLabelValues(string(res.Status)).Inc()
	return res
}

func errorResult(err error) domain.PollResult {
	return domain.PollResult{Status: domain.PollError, Message: err.Error()}
}

// Status describes the scheduler state for operators.
type Status struct {
	LastPoll     *time.Time `json:"lastPoll,omitempty"`
	NextPoll     time.Time  `json:"nextPoll"`
	PollInterval int        `json:"pollIntervalSeconds"`
	LedgerSize   int        `json:"ledgerSize"`
	Records      *int64     `json:"records,omitempty"`
}

// Status reads the persisted poll state. The record count is included when
// the record store can report it.
func (p *Pipeline) Status(ctx context.Context) (Status, error) {
	last, err := p.state.LastPoll(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("read last poll time: %w", err)
	}
	ids, err := p.state.Ledger(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("read ledger: %w", err)
	}

	st := Status{
		PollInterval: int(p.settings.PollInterval / time.Second),
		LedgerSize:   len(ids),
		NextPoll:     p.clock.Now(),
	}
	if !last.IsZero() {
		l := last
		st.LastPoll = &l
		st.NextPoll = last.Add(p.settings.PollInterval)
	}
	if rc, ok := p.records.(recordCounter); ok {
		n, err := rc.Count(ctx)
		if err != nil {
			return Status{}, fmt.Errorf("count records: %w", err)
		}
		st.Records = &n
	}
	return st, nil
}
