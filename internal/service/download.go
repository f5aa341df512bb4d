package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"studiograb/internal/core/domain"
	"studiograb/internal/core/ports"
)

// DownloadPipeline turns a completed remote artifact into a verified,
// deterministically named local file. Trigger-not-found and
// download-timeout both surface as "no result for this item" (nil, nil),
// never as a fatal abort; a batch keeps going past them.
type DownloadPipeline struct {
	page     ports.Page
	resolver *Resolver
	watcher  ports.DownloadWatcher
	cfg      Config
	log      *zap.Logger
}

func NewDownloadPipeline(page ports.Page, resolver *Resolver, watcher ports.DownloadWatcher, cfg Config, log *zap.Logger) *DownloadPipeline {
	return &DownloadPipeline{
		page:     page,
		resolver: resolver,
		watcher:  watcher,
		cfg:      cfg,
		log:      log.Named("download"),
	}
}

// Trigger opens the artifact's overflow menu and clicks its download
// action. Overflow controls are often only rendered on hover/focus; the
// resolver's hover-reveal strategy covers that. Returns false when either
// step could not be resolved.
func (p *DownloadPipeline) Trigger(ctx context.Context, kind domain.ArtifactKind, index int) (bool, error) {
	ks, ok := p.cfg.Selectors.Kind[kind]
	if !ok {
		return false, fmt.Errorf("no selectors configured for kind %q", kind)
	}
	log := p.log.With(zap.String("kind", kind.String()), zap.Int("index", index))

	menu := Target{
		Name:       fmt.Sprintf("%s[%d] overflow menu", kind, index),
		Scopes:     ks.Card,
		ScopeIndex: index,
		Selectors:  p.cfg.Selectors.Overflow,
		TextHints:  p.cfg.Selectors.OverflowText,
	}
	out, err := p.resolver.ResolveWithRetry(ctx, menu, p.cfg.ResolveInterval, p.cfg.ResolveBudget)
	if err != nil {
		return false, err
	}
	if out != OutcomeActed {
		log.Warn("overflow menu not resolved", zap.String("outcome", out.String()))
		return false, nil
	}
	if err := sleepCtx(ctx, p.cfg.SettleDelay); err != nil {
		return false, err
	}

	action := Target{
		Name:      fmt.Sprintf("%s[%d] download action", kind, index),
		Scopes:    p.cfg.Selectors.Menu,
		TextHints: p.cfg.Selectors.DownloadText,
	}
	out, err = p.resolver.ResolveWithRetry(ctx, action, p.cfg.ResolveInterval, p.cfg.ResolveBudget)
	if err != nil {
		return false, err
	}
	if out != OutcomeActed {
		log.Warn("download action not resolved", zap.String("outcome", out.String()))
		return false, nil
	}
	return true, nil
}

// Download runs the full sequence for one artifact: snapshot the
// directory, trigger, await a stable new file, finalize the name.
// index -1 targets the latest same-kind artifact.
func (p *DownloadPipeline) Download(ctx context.Context, kind domain.ArtifactKind, index int, prefix, label string) (*domain.DownloadRecord, error) {
	baseline, err := p.watcher.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshotting download directory: %w", err)
	}
	ok, err := p.Trigger(ctx, kind, index)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	file, err := p.watcher.AwaitNew(ctx, baseline, p.cfg.DownloadWait)
	if err != nil {
		return nil, err
	}
	if file == nil {
		p.log.Warn("download did not arrive within budget",
			zap.String("kind", kind.String()),
			zap.Int("index", index),
			zap.Duration("timeout", p.cfg.DownloadWait))
		return nil, nil
	}
	return p.Finalize(file, prefix, label, kind)
}

// Finalize renames the confirmed file to its deterministic name and
// returns the immutable record.
func (p *DownloadPipeline) Finalize(file *domain.DownloadedFile, prefix, label string, kind domain.ArtifactKind) (*domain.DownloadRecord, error) {
	final := FinalFileName(prefix, label, file.Name, kind)
	path := file.Path
	if final != file.Name {
		renamed, err := p.watcher.Rename(file.Name, final)
		if err != nil {
			return nil, fmt.Errorf("renaming %q to %q: %w", file.Name, final, err)
		}
		path = renamed
	}
	p.log.Info("download finalized",
		zap.String("kind", kind.String()),
		zap.String("suggested", file.Name),
		zap.String("final", final),
		zap.Int64("bytes", file.Size))
	return &domain.DownloadRecord{
		SuggestedName: file.Name,
		FinalName:     final,
		Path:          path,
		Kind:          kind,
	}, nil
}
