package crawler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/legislature-crawler/internal/archive"
	"github.com/JakeFAU/legislature-crawler/internal/clock/system"
	"github.com/JakeFAU/legislature-crawler/internal/lookup"
	"github.com/JakeFAU/legislature-crawler/internal/metrics"
)

// SessionState is a step of the per-session state machine.
type SessionState string

// Session states, in order.
const (
	StatePending           SessionState = "pending"
	StateMetadataFetched   SessionState = "metadata_fetched"
	StateSubListsFetched   SessionState = "sub_lists_fetched"
	StateChildrenProcessed SessionState = "children_processed"
	StatePersisted         SessionState = "persisted"
)

// Entity visit statuses.
const (
	statusFetched = "fetched"
	statusSkipped = "skipped"
	statusFailed  = "failed"
)

// OrchestratorConfig controls optional orchestrator behavior.
type OrchestratorConfig struct {
	// Topic receives an ArchivedEvent per write when a publisher is configured.
	Topic string
}

// Orchestrator drives one crawl pass: historical members, then every
// session with its legislators, bills and committees.
type Orchestrator struct {
	deps      Deps
	store     Archive
	tables    lookup.Tables
	publisher Publisher
	idGen     IDGenerator
	clock     Clock
	cfg       OrchestratorConfig
	logger    *zap.Logger
}

// NewOrchestrator constructs an Orchestrator. publisher, idGen and clock may be nil.
func NewOrchestrator(
	deps Deps,
	store Archive,
	tables lookup.Tables,
	publisher Publisher,
	idGen IDGenerator,
	clock Clock,
	cfg OrchestratorConfig,
	logger *zap.Logger,
) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = system.New()
	}
	if deps.Logger == nil {
		deps.Logger = logger
	}
	return &Orchestrator{
		deps:      deps,
		store:     store,
		tables:    tables,
		publisher: publisher,
		idGen:     idGen,
		clock:     clock,
		cfg:       cfg,
		logger:    logger,
	}
}

// run carries the state of one pass.
type run struct {
	id         string
	logger     *zap.Logger
	deps       Deps
	historical []HistoricalLegislator
	summary    Summary
}

// Run performs a full crawl pass. It returns ErrPartialCrawl when the pass
// completed but some entities were aborted, and a setup error when the
// session list itself could not be fetched.
func (o *Orchestrator) Run(ctx context.Context) (Summary, error) {
	r := &run{id: o.newRunID()}
	r.logger = o.logger.With(zap.String("run_id", r.id))
	r.deps = o.deps
	r.deps.Logger = o.deps.Logger.With(zap.String("run_id", r.id))
	r.summary = Summary{RunID: r.id, Unresolved: []UnresolvedIdentity{}}

	start := o.clock.Now()
	r.logger.Info("crawl started")

	if err := o.crawlHistorical(ctx, r); err != nil {
		return o.finish(r, start, err)
	}

	sessionIDs, err := ListSessions(ctx, r.deps)
	if err != nil {
		return o.finish(r, start, fmt.Errorf("list sessions: %w", err))
	}
	r.logger.Info("sessions listed", zap.Int("count", len(sessionIDs)))

	for _, id := range sessionIDs {
		if err := ctx.Err(); err != nil {
			return o.finish(r, start, fmt.Errorf("crawl canceled: %w", err))
		}
		if err := o.crawlSession(ctx, r, id); err != nil {
			return o.finish(r, start, err)
		}
	}

	if r.summary.Failures() > 0 {
		return o.finish(r, start, ErrPartialCrawl)
	}
	return o.finish(r, start, nil)
}

func (o *Orchestrator) finish(r *run, start time.Time, err error) (Summary, error) {
	fields := []zap.Field{
		zap.Duration("elapsed", o.clock.Now().Sub(start)),
		zap.Any("sessions", r.summary.Sessions),
		zap.Any("bills", r.summary.Bills),
		zap.Any("legislators", r.summary.Legislators),
		zap.Any("committees", r.summary.Committees),
		zap.Int("unresolved", len(r.summary.Unresolved)),
	}
	switch {
	case err == nil:
		metrics.ObserveRun("succeeded")
		r.logger.Info("crawl finished", fields...)
	case errors.Is(err, ErrPartialCrawl):
		metrics.ObserveRun("partial")
		r.logger.Warn("crawl finished with aborted entities", fields...)
	default:
		metrics.ObserveRun("failed")
		r.logger.Error("crawl failed", append(fields, zap.Error(err))...)
	}
	return r.summary, err
}

// crawlHistorical refreshes the bulk historical file. A failure leaves
// identity resolution without candidates but does not stop the pass.
func (o *Orchestrator) crawlHistorical(ctx context.Context, r *run) error {
	historical, err := CrawlHistorical(ctx, r.deps)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("crawl canceled: %w", ctx.Err())
		}
		r.summary.HistoricalFailed = true
		metrics.ObserveEntity(string(archive.KindHistorical), statusFailed)
		r.logger.Error("historical members unavailable", zap.Error(err))
		return nil
	}
	r.historical = historical
	r.summary.Historical = len(historical)

	key := archive.HistoricalKey()
	digest, err := o.store.Save(ctx, key, historical)
	if err != nil {
		r.summary.HistoricalFailed = true
		metrics.ObserveEntity(string(archive.KindHistorical), statusFailed)
		r.logger.Error("historical members not archived", zap.Error(err))
		return nil
	}
	metrics.ObserveEntity(string(archive.KindHistorical), statusFetched)
	r.logger.Info("historical members archived", zap.Int("count", len(historical)), zap.String("key", key.Path()))
	o.publish(ctx, r, archive.KindHistorical, 0, 0, key, digest)
	return nil
}

// crawlSession walks one session through its states. It only returns an
// error when the context is done.
func (o *Orchestrator) crawlSession(ctx context.Context, r *run, id int) error {
	logger := r.logger.With(zap.Int("session_id", id))
	state := func(s SessionState) {
		logger.Info("session state", zap.String("state", string(s)))
	}
	fail := func(step string, err error) error {
		if ctx.Err() != nil {
			return fmt.Errorf("crawl canceled: %w", ctx.Err())
		}
		r.summary.Sessions.Failed++
		metrics.ObserveEntity(string(archive.KindSession), statusFailed)
		logger.Error("session aborted", zap.String("step", step), zap.Error(err))
		return nil
	}

	state(StatePending)
	session, err := CrawlSessionMetadata(ctx, r.deps, id, o.tables.SessionDates)
	if err != nil {
		return fail("metadata", err)
	}
	state(StateMetadataFetched)
	logger = logger.With(zap.String("session_name", session.SessionName), zap.Bool("current", session.IsCurrentSession))

	session, err = CrawlSessionSubLists(ctx, r.deps, id, session)
	if err != nil {
		return fail("sub_lists", err)
	}
	state(StateSubListsFetched)

	current := session.IsCurrentSession
	if err := o.crawlLegislators(ctx, r, id, session.Legislators); err != nil {
		return err
	}
	if err := o.crawlBills(ctx, r, id, session.Bills, session.SessionLaws, current); err != nil {
		return err
	}
	if err := o.crawlCommittees(ctx, r, id, session.Committees, current); err != nil {
		return err
	}
	state(StateChildrenProcessed)

	key := archive.EntityKey(archive.KindSession, id)
	written, digest, err := o.persist(ctx, key, current, func(context.Context) (any, error) { return session, nil })
	if err != nil {
		return fail("persist", err)
	}
	if !written {
		r.summary.Sessions.Skipped++
		metrics.ObserveEntity(string(archive.KindSession), statusSkipped)
		logger.Info("session frozen, not rewritten", zap.String("key", key.Path()))
		return nil
	}
	r.summary.Sessions.Fetched++
	metrics.ObserveEntity(string(archive.KindSession), statusFetched)
	o.publish(ctx, r, archive.KindSession, id, id, key, digest)
	state(StatePersisted)
	return nil
}

func (o *Orchestrator) crawlLegislators(ctx context.Context, r *run, sessionID int, ids []int) error {
	for _, id := range ids {
		err := o.visit(ctx, r, archive.KindLegislator, sessionID, id, false, &r.summary.Legislators,
			func(ctx context.Context) (any, error) {
				profile, unresolved, err := CrawlLegislator(ctx, r.deps, sessionID, id, r.historical)
				if err != nil {
					return nil, err
				}
				if unresolved != nil {
					r.summary.Unresolved = append(r.summary.Unresolved, *unresolved)
					metrics.ObserveUnresolvedIdentity()
				}
				return profile, nil
			})
		if err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) crawlBills(
	ctx context.Context,
	r *run,
	sessionID int,
	ids []int,
	sessionLaws map[int]int,
	current bool,
) error {
	for _, id := range ids {
		err := o.visit(ctx, r, archive.KindBill, sessionID, id, current, &r.summary.Bills,
			func(ctx context.Context) (any, error) {
				return CrawlBill(ctx, r.deps, sessionID, id, sessionLaws)
			})
		if err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) crawlCommittees(ctx context.Context, r *run, sessionID int, ids []int, current bool) error {
	for _, id := range ids {
		err := o.visit(ctx, r, archive.KindCommittee, sessionID, id, current, &r.summary.Committees,
			func(ctx context.Context) (any, error) {
				return CrawlCommittee(ctx, r.deps, sessionID, id)
			})
		if err != nil {
			return err
		}
	}
	return nil
}

// visit applies the freshness gate to one child entity, crawls it when the
// gate is open and records the result. Only a done context is returned as
// an error; every other failure aborts just this entity.
func (o *Orchestrator) visit(
	ctx context.Context,
	r *run,
	kind archive.Kind,
	sessionID, id int,
	refetch bool,
	tally *Tally,
	build func(context.Context) (any, error),
) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("crawl canceled: %w", err)
	}
	key := archive.EntityKey(kind, id)
	logger := r.logger.With(
		zap.String("kind", string(kind)),
		zap.Int("session_id", sessionID),
		zap.Int("id", id),
	)

	written, digest, err := o.persist(ctx, key, refetch, build)
	switch {
	case err != nil && ctx.Err() != nil:
		return fmt.Errorf("crawl canceled: %w", ctx.Err())
	case err != nil:
		tally.Failed++
		metrics.ObserveEntity(string(kind), statusFailed)
		logger.Error("entity aborted", zap.Error(err))
	case written:
		tally.Fetched++
		metrics.ObserveEntity(string(kind), statusFetched)
		logger.Info("entity archived", zap.String("key", key.Path()))
		o.publish(ctx, r, kind, sessionID, id, key, digest)
	default:
		tally.Skipped++
		metrics.ObserveEntity(string(kind), statusSkipped)
		logger.Info("entity already archived", zap.String("key", key.Path()))
	}
	return nil
}

// persist writes the record built by build when the key is absent or
// refetch is set. It reports whether a write happened and the digest of
// the written blob.
func (o *Orchestrator) persist(
	ctx context.Context,
	key archive.Key,
	refetch bool,
	build func(context.Context) (any, error),
) (bool, string, error) {
	exists, err := o.store.Has(ctx, key)
	if err != nil {
		return false, "", err
	}
	if exists && !refetch {
		return false, "", nil
	}
	record, err := build(ctx)
	if err != nil {
		return false, "", err
	}
	digest, err := o.store.Save(ctx, key, record)
	if err != nil {
		return false, "", err
	}
	return true, digest, nil
}

func (o *Orchestrator) publish(
	ctx context.Context,
	r *run,
	kind archive.Kind,
	sessionID, id int,
	key archive.Key,
	digest string,
) {
	if o.publisher == nil {
		return
	}
	event := ArchivedEvent{
		RunID:     r.id,
		Kind:      string(kind),
		EntityID:  id,
		SessionID: sessionID,
		Key:       key.Path(),
		Digest:    digest,
		WrittenAt: o.clock.Now().UTC(),
	}
	if _, err := o.publisher.Publish(ctx, o.cfg.Topic, event); err != nil {
		r.logger.Warn("archived event not published", zap.String("key", key.Path()), zap.Error(err))
	}
}

func (o *Orchestrator) newRunID() string {
	if o.idGen == nil {
		return ""
	}
	id, err := o.idGen.NewID()
	if err != nil {
		o.logger.Warn("run id generation failed", zap.Error(err))
		return ""
	}
	return id
}
