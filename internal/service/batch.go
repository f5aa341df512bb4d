package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"studiograb/internal/core/domain"
	"studiograb/internal/core/ports"
)

// BatchScheduler drives N generation requests in three independently
// bounded phases: sequential triggering, a shared wait with bounded
// reload-recovery cycles, and positional downloads. The remote UI has no
// isolation between concurrent commands, so "concurrent" means rapid
// sequential triggers awaited collectively, never parallel dispatch.
type BatchScheduler struct {
	orch     *Orchestrator
	monitor  *Monitor
	pipeline *DownloadPipeline
	page     ports.Page
	store    ports.RunStore
	cfg      Config
	log      *zap.Logger
}

func NewBatchScheduler(orch *Orchestrator, monitor *Monitor, pipeline *DownloadPipeline, page ports.Page, store ports.RunStore, cfg Config, log *zap.Logger) *BatchScheduler {
	return &BatchScheduler{
		orch:     orch,
		monitor:  monitor,
		pipeline: pipeline,
		page:     page,
		store:    store,
		cfg:      cfg,
		log:      log.Named("batch"),
	}
}

// Run executes the batch. The returned result lists records in trigger
// order with failed positions omitted; callers correlate by filename,
// not positional count.
func (b *BatchScheduler) Run(ctx context.Context, requests []domain.GenerationRequest) (*domain.RunResult, error) {
	for _, req := range requests {
		if !req.Kind.Valid() {
			return nil, fmt.Errorf("unknown artifact kind %q in batch", req.Kind)
		}
	}
	run := domain.BatchRun{
		ID:        uuid.New().String(),
		Requests:  requests,
		StartedAt: time.Now().UTC(),
	}
	log := b.log.With(zap.String("run", run.ID))
	log.Info("starting batch run", zap.Int("requests", len(requests)))

	// Phase 1: trigger each request in order, recording which ones
	// actually reached submission. The expected total for the wait phase
	// comes only from successful triggers.
	baseline := map[domain.ArtifactKind]int{}
	for _, req := range requests {
		if _, seen := baseline[req.Kind]; seen {
			continue
		}
		n, err := b.monitor.Count(ctx, req.Kind)
		if err != nil {
			return nil, err
		}
		baseline[req.Kind] = n
		run.InitialCount += n
	}

	perKind := map[domain.ArtifactKind]int{}
	for i, req := range requests {
		ok, err := b.orch.Trigger(ctx, req)
		if err != nil {
			return nil, err
		}
		if !ok {
			log.Warn("request did not trigger", zap.Int("position", i), zap.String("kind", req.Kind.String()))
		} else {
			run.Triggered = append(run.Triggered, req)
			perKind[req.Kind]++
		}
		if i < len(requests)-1 {
			if err := sleepCtx(ctx, b.cfg.TriggerSettle); err != nil {
				return nil, err
			}
		}
	}
	run.ExpectedCount = run.InitialCount + len(run.Triggered)
	log.Info("trigger phase done",
		zap.Int("triggered", len(run.Triggered)),
		zap.Int("expected", run.ExpectedCount))
	b.saveManifest(ctx, run, log)

	// Phase 2: shared wait with bounded refresh recovery.
	if len(run.Triggered) > 0 {
		if err := b.awaitAll(ctx, baseline, perKind, log); err != nil {
			return nil, err
		}
	}

	// Phase 3: download positionally, pairing artifacts from the
	// pre-trigger count forward with the triggered requests in order.
	// A failed position is skipped, never fatal.
	records := make([]domain.DownloadRecord, 0, len(run.Triggered))
	next := map[domain.ArtifactKind]int{}
	for pos, req := range run.Triggered {
		index := baseline[req.Kind] + next[req.Kind]
		next[req.Kind]++
		prefix := fmt.Sprintf("%02d", pos+1)
		rec, err := b.pipeline.Download(ctx, req.Kind, index, prefix, req.SalientOption())
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Warn("download failed, skipping position",
				zap.Int("position", pos), zap.Error(err))
			continue
		}
		if rec == nil {
			log.Warn("no result for position", zap.Int("position", pos))
			continue
		}
		records = append(records, *rec)
	}

	result := &domain.RunResult{
		RunID:       run.ID,
		Records:     records,
		Requested:   len(requests),
		Triggered:   len(run.Triggered),
		CompletedAt: time.Now().UTC(),
	}
	b.saveRecords(ctx, result, log)
	log.Info("batch run complete",
		zap.Int("downloaded", len(records)),
		zap.Int("triggered", result.Triggered))
	return result, nil
}

// awaitAll waits for every triggered artifact to classify ready. One
// long initial window, then bounded reload-and-wait cycles (reloading
// recovers the known failure mode where the live page's artifact state
// goes stale), all under a hard ceiling enforced independently of how
// many cycles ran. Exhausting the budget is not an error: downloads
// proceed with whatever is ready.
func (b *BatchScheduler) awaitAll(ctx context.Context, baseline, expected map[domain.ArtifactKind]int, log *zap.Logger) error {
	var window, interval time.Duration
	for kind := range expected {
		budget := b.cfg.Budget(kind)
		if budget.ReadyTimeout > window {
			window = budget.ReadyTimeout
		}
		if budget.PollInterval > interval {
			interval = budget.PollInterval
		}
	}
	refreshWindow := window / 4
	hardDeadline := time.Now().Add(window + 2*refreshWindow)

	allReady := func(ctx context.Context) (bool, error) {
		for kind, want := range expected {
			st, err := b.monitor.Status(ctx, kind)
			if err != nil {
				if ctx.Err() != nil {
					return false, ctx.Err()
				}
				log.Debug("status poll failed, treating as negative", zap.Error(err))
				return false, nil
			}
			if st.Ready < baseline[kind]+want {
				return false, nil
			}
		}
		return true, nil
	}

	var lastLogged time.Duration
	progress := func(elapsed time.Duration) {
		if elapsed-lastLogged >= time.Minute {
			lastLogged = elapsed
			log.Info("waiting for batch", zap.Duration("elapsed", elapsed.Round(time.Second)))
		}
	}

	ready, err := pollUntil(ctx, interval, window, allReady, progress)
	if err != nil {
		return err
	}
	for cycle := 1; !ready && cycle <= b.cfg.RefreshCycles; cycle++ {
		remaining := time.Until(hardDeadline)
		if remaining <= 0 {
			break
		}
		log.Info("reloading page to refresh artifact state", zap.Int("cycle", cycle))
		if err := b.page.Reload(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn("reload failed", zap.Error(err))
		}
		if err := sleepCtx(ctx, b.cfg.SettleDelay); err != nil {
			return err
		}
		wait := refreshWindow
		if wait > remaining {
			wait = remaining
		}
		ready, err = pollUntil(ctx, interval, wait, allReady, progress)
		if err != nil {
			return err
		}
	}
	if !ready {
		log.Warn("wait budget exhausted, downloading whatever is ready")
	}
	return nil
}

func (b *BatchScheduler) saveManifest(ctx context.Context, run domain.BatchRun, log *zap.Logger) {
	if b.store == nil {
		return
	}
	if err := b.store.InitRun(ctx, run.ID); err != nil {
		log.Warn("init run storage failed", zap.Error(err))
		return
	}
	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		log.Warn("marshal manifest failed", zap.Error(err))
		return
	}
	if err := b.store.SaveManifest(ctx, run.ID, data); err != nil {
		log.Warn("save manifest failed", zap.Error(err))
	}
}

func (b *BatchScheduler) saveRecords(ctx context.Context, result *domain.RunResult, log *zap.Logger) {
	if b.store == nil {
		return
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		log.Warn("marshal records failed", zap.Error(err))
		return
	}
	if err := b.store.SaveRecords(ctx, result.RunID, data); err != nil {
		log.Warn("save records failed", zap.Error(err))
	}
}
