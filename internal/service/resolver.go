package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"studiograb/internal/core/ports"
)

// Outcome is the tri-state result of resolving a logical UI target.
// Callers branch on it: inactive means wait and retry, not-found means
// fail once the retry budget is spent, never silently proceed.
type Outcome int

const (
	OutcomeNotFound Outcome = iota
	OutcomeInactive
	OutcomeActed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeActed:
		return "found-and-acted"
	case OutcomeInactive:
		return "found-but-inactive"
	}
	return "not-found"
}

// Target describes a logical UI control without committing to a single
// way of finding it.
type Target struct {
	Name string

	// Scopes restricts the search to a container; ScopeIndex picks one
	// container among same-selector matches, -1 meaning the last.
	Scopes     []string
	ScopeIndex int

	// Selectors feed the attribute strategy, TextHints the text strategy.
	Selectors []string
	TextHints []string

	// Excluded labels are never clicked, by any strategy.
	Excluded []string
}

// Strategy is one independently-sufficient way to resolve a target. No
// strategy may assume the others were tried.
type Strategy interface {
	TryResolve(ctx context.Context, t Target) (Outcome, error)
}

// Resolver tries an ordered list of strategies and returns the first
// conclusive outcome. The cheap direct probes run before anything that
// mutates page state (hover dispatch), keeping the common path cheap.
type Resolver struct {
	strategies []Strategy
	log        *zap.Logger
}

func NewResolver(page ports.Page, settle time.Duration, log *zap.Logger) *Resolver {
	return &Resolver{
		strategies: []Strategy{
			&selectorStrategy{page: page},
			&textStrategy{page: page},
			&nestedControlStrategy{page: page},
			&hoverRevealStrategy{page: page, settle: settle},
		},
		log: log.Named("resolver"),
	}
}

// Resolve runs the strategy list once.
func (r *Resolver) Resolve(ctx context.Context, t Target) (Outcome, error) {
	for _, s := range r.strategies {
		out, err := s.TryResolve(ctx, t)
		if err != nil {
			return OutcomeNotFound, err
		}
		if out != OutcomeNotFound {
			r.log.Debug("target resolved",
				zap.String("target", t.Name),
				zap.String("outcome", out.String()))
			return out, nil
		}
	}
	r.log.Debug("target not found by any strategy", zap.String("target", t.Name))
	return OutcomeNotFound, nil
}

// ResolveWithRetry re-polls until the target is acted on or the budget
// elapses. The final outcome tells the caller whether the target was
// missing outright or present but inactive the whole time.
func (r *Resolver) ResolveWithRetry(ctx context.Context, t Target, interval, budget time.Duration) (Outcome, error) {
	last := OutcomeNotFound
	acted, err := pollUntil(ctx, interval, budget, func(ctx context.Context) (bool, error) {
		out, err := r.Resolve(ctx, t)
		if err != nil {
			return false, err
		}
		last = out
		return out == OutcomeActed, nil
	}, nil)
	if err != nil {
		return OutcomeNotFound, err
	}
	if acted {
		return OutcomeActed, nil
	}
	return last, nil
}

func evalClick(ctx context.Context, page ports.Page, script string) (Outcome, error) {
	var res string
	if err := page.Evaluate(ctx, script, &res); err != nil {
		return OutcomeNotFound, err
	}
	switch res {
	case "clicked":
		return OutcomeActed, nil
	case "disabled":
		return OutcomeInactive, nil
	}
	return OutcomeNotFound, nil
}

// selectorStrategy: exact attribute selectors, the cheap common path.
type selectorStrategy struct {
	page ports.Page
}

func (s *selectorStrategy) TryResolve(ctx context.Context, t Target) (Outcome, error) {
	if len(t.Selectors) == 0 {
		return OutcomeNotFound, nil
	}
	return evalClick(ctx, s.page, clickBySelectorsScript(t.Scopes, t.ScopeIndex, t.Selectors, t.Excluded))
}

// textStrategy: visible-label substring match over clickable roles.
type textStrategy struct {
	page ports.Page
}

func (s *textStrategy) TryResolve(ctx context.Context, t Target) (Outcome, error) {
	if len(t.TextHints) == 0 {
		return OutcomeNotFound, nil
	}
	return evalClick(ctx, s.page, clickByTextScript(t.Scopes, t.ScopeIndex, t.TextHints, t.Excluded))
}

// nestedControlStrategy: structural fallback, container to nested button.
type nestedControlStrategy struct {
	page ports.Page
}

func (s *nestedControlStrategy) TryResolve(ctx context.Context, t Target) (Outcome, error) {
	if len(t.Scopes) == 0 {
		return OutcomeNotFound, nil
	}
	return evalClick(ctx, s.page, nestedControlScript(t.Scopes, t.ScopeIndex, t.Excluded))
}

// hoverRevealStrategy: dispatch synthetic hover on the container, give
// the UI a moment to render lazily-mounted controls, then probe again.
type hoverRevealStrategy struct {
	page   ports.Page
	settle time.Duration
}

func (s *hoverRevealStrategy) TryResolve(ctx context.Context, t Target) (Outcome, error) {
	if len(t.Scopes) == 0 {
		return OutcomeNotFound, nil
	}
	var hovered bool
	if err := s.page.Evaluate(ctx, hoverRevealScript(t.Scopes, t.ScopeIndex), &hovered); err != nil {
		return OutcomeNotFound, err
	}
	if !hovered {
		return OutcomeNotFound, nil
	}
	if err := sleepCtx(ctx, s.settle); err != nil {
		return OutcomeNotFound, err
	}
	if len(t.Selectors) > 0 {
		out, err := evalClick(ctx, s.page, clickBySelectorsScript(t.Scopes, t.ScopeIndex, t.Selectors, t.Excluded))
		if err != nil || out != OutcomeNotFound {
			return out, err
		}
	}
	if len(t.TextHints) > 0 {
		return evalClick(ctx, s.page, clickByTextScript(t.Scopes, t.ScopeIndex, t.TextHints, t.Excluded))
	}
	return OutcomeNotFound, nil
}
