package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"studiograb/internal/core/domain"
)

// Orchestrator runs the per-kind generation workflow: snapshot the
// current count, open and verify the dialog, configure, submit, wait for
// the new artifact to come ready, download the latest item. Every
// expected failure (dialog never verified, generation never ready,
// download never landed) short-circuits to a nil record; only losing the
// ability to talk to the page is an error.
type Orchestrator struct {
	dialog   *DialogController
	monitor  *Monitor
	pipeline *DownloadPipeline
	cfg      Config
	log      *zap.Logger
}

func NewOrchestrator(dialog *DialogController, monitor *Monitor, pipeline *DownloadPipeline, cfg Config, log *zap.Logger) *Orchestrator {
	return &Orchestrator{
		dialog:   dialog,
		monitor:  monitor,
		pipeline: pipeline,
		cfg:      cfg,
		log:      log.Named("orchestrator"),
	}
}

// The four workflow variants share one shape and differ only in kind.

func (o *Orchestrator) GenerateDeck(ctx context.Context, req domain.GenerationRequest) (*domain.DownloadRecord, error) {
	req.Kind = domain.KindDeck
	return o.Generate(ctx, req)
}

func (o *Orchestrator) GenerateAudio(ctx context.Context, req domain.GenerationRequest) (*domain.DownloadRecord, error) {
	req.Kind = domain.KindAudio
	return o.Generate(ctx, req)
}

func (o *Orchestrator) GenerateVideo(ctx context.Context, req domain.GenerationRequest) (*domain.DownloadRecord, error) {
	req.Kind = domain.KindVideo
	return o.Generate(ctx, req)
}

func (o *Orchestrator) GenerateInfographic(ctx context.Context, req domain.GenerationRequest) (*domain.DownloadRecord, error) {
	req.Kind = domain.KindInfographic
	return o.Generate(ctx, req)
}

// Generate runs one full workflow invocation for req.
func (o *Orchestrator) Generate(ctx context.Context, req domain.GenerationRequest) (*domain.DownloadRecord, error) {
	if !req.Kind.Valid() {
		return nil, fmt.Errorf("unknown artifact kind %q", req.Kind)
	}
	log := o.log.With(zap.String("kind", req.Kind.String()))

	initial, err := o.monitor.Count(ctx, req.Kind)
	if err != nil {
		return nil, err
	}
	log.Info("starting generation", zap.Int("existing", initial))

	triggered, err := o.Trigger(ctx, req)
	if err != nil {
		return nil, err
	}
	if !triggered {
		return nil, nil
	}

	ready, err := o.monitor.WaitUntilNewArtifactReady(ctx, req.Kind, initial)
	if err != nil {
		return nil, err
	}
	if !ready {
		log.Warn("stage failed", zap.String("stage", "ready"))
		return nil, nil
	}

	rec, err := o.pipeline.Download(ctx, req.Kind, -1, "", req.SalientOption())
	if err != nil {
		return nil, err
	}
	if rec == nil {
		log.Warn("stage failed", zap.String("stage", "download"))
		return nil, nil
	}
	log.Info("generation complete", zap.String("file", rec.FinalName))
	return rec, nil
}

// Trigger runs the dialog sub-sequence (open, configure, submit)
// without waiting for readiness. Batched runs use it to fire requests
// back to back before a shared wait.
func (o *Orchestrator) Trigger(ctx context.Context, req domain.GenerationRequest) (bool, error) {
	log := o.log.With(zap.String("kind", req.Kind.String()))

	opened, err := o.dialog.Open(ctx, req.Kind)
	if err != nil {
		return false, err
	}
	if !opened {
		log.Warn("stage failed", zap.String("stage", "open"))
		return false, nil
	}
	applied, err := o.dialog.Configure(ctx, req.Options, req.Prompt)
	if err != nil {
		return false, err
	}
	log.Debug("dialog configured", zap.Int("fields", applied))

	submitted, err := o.dialog.Submit(ctx)
	if err != nil {
		return false, err
	}
	if !submitted {
		log.Warn("stage failed", zap.String("stage", "submit"))
		return false, nil
	}
	return true, nil
}
