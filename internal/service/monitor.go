package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"studiograb/internal/core/domain"
	"studiograb/internal/core/ports"
)

// Monitor observes artifacts of a given kind on the page. Completion is
// never inferred from a single signal: every classification takes the
// disjunction of four independent loading indicators, because each one
// alone has observed false negatives (shimmer class removed before the
// title updates, and so on).
type Monitor struct {
	page ports.Page
	cfg  Config
	log  *zap.Logger
}

func NewMonitor(page ports.Page, cfg Config, log *zap.Logger) *Monitor {
	return &Monitor{page: page, cfg: cfg, log: log.Named("monitor")}
}

// Count returns the number of kind artifacts currently rendered.
func (m *Monitor) Count(ctx context.Context, kind domain.ArtifactKind) (int, error) {
	ks, ok := m.cfg.Selectors.Kind[kind]
	if !ok {
		return 0, fmt.Errorf("no selectors configured for kind %q", kind)
	}
	var n int
	if err := m.page.Evaluate(ctx, artifactCountScript(ks.Card), &n); err != nil {
		return 0, fmt.Errorf("counting %s artifacts: %w", kind, err)
	}
	return n, nil
}

type statusResult struct {
	Total int                 `json:"total"`
	Items []statusObservation `json:"items"`
}

// statusObservation carries one artifact's raw loading signals as read
// from the page in a single pass.
type statusObservation struct {
	Title      string `json:"title"`
	Shimmer    bool   `json:"shimmer"`
	Blocked    bool   `json:"blocked"`
	Generating bool   `json:"generating"`
	Spinner    bool   `json:"spinner"`
}

// loading is the disjunction of the four signals. Any one present means
// the artifact is still generating; all four must be absent for ready.
func (o statusObservation) loading() bool {
	return o.Shimmer || o.Blocked || o.Generating || o.Spinner
}

func (m *Monitor) observe(ctx context.Context, kind domain.ArtifactKind) (statusResult, error) {
	ks, ok := m.cfg.Selectors.Kind[kind]
	if !ok {
		return statusResult{}, fmt.Errorf("no selectors configured for kind %q", kind)
	}
	sel := m.cfg.Selectors
	script := artifactStatusScript(ks.Card, sel.Shimmer, sel.BlockedControl, sel.Spinner, sel.Title, lowerAll(sel.GeneratingMarkers))
	var res statusResult
	if err := m.page.Evaluate(ctx, script, &res); err != nil {
		return statusResult{}, fmt.Errorf("observing %s artifacts: %w", kind, err)
	}
	return res, nil
}

// Artifacts projects the page's current same-kind artifacts, positional
// identity and all.
func (m *Monitor) Artifacts(ctx context.Context, kind domain.ArtifactKind) ([]domain.Artifact, error) {
	res, err := m.observe(ctx, kind)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Artifact, 0, len(res.Items))
	for i, item := range res.Items {
		state := domain.StateReady
		if item.loading() {
			state = domain.StateLoading
		}
		out = append(out, domain.Artifact{Kind: kind, Index: i, Title: item.Title, State: state})
	}
	return out, nil
}

// IsLoading classifies the artifact at index. Out-of-range indexes are an
// error: positional identity only ever grows during a run, so a vanished
// index means the caller's view of the page is wrong.
func (m *Monitor) IsLoading(ctx context.Context, kind domain.ArtifactKind, index int) (bool, error) {
	res, err := m.observe(ctx, kind)
	if err != nil {
		return false, err
	}
	if index < 0 || index >= len(res.Items) {
		return false, fmt.Errorf("%s artifact index %d out of range (have %d)", kind, index, len(res.Items))
	}
	return res.Items[index].loading(), nil
}

// Status aggregates total/loading/ready from one page observation so the
// counts cannot drift against each other.
func (m *Monitor) Status(ctx context.Context, kind domain.ArtifactKind) (domain.ArtifactStatus, error) {
	res, err := m.observe(ctx, kind)
	if err != nil {
		return domain.ArtifactStatus{}, err
	}
	st := domain.ArtifactStatus{Total: res.Total}
	for _, item := range res.Items {
		if item.loading() {
			st.Loading++
		} else {
			st.Ready++
		}
	}
	return st, nil
}

// WaitUntilNewArtifactReady polls at the kind's interval until both a new
// artifact has appeared (count above initialCount) and the latest item
// classifies as not loading. Returns false on timeout even if the count
// rose; whatever partial state exists stays on the page for the caller to
// inspect. Transient evaluation errors are negative polls; only context
// cancellation aborts the wait.
func (m *Monitor) WaitUntilNewArtifactReady(ctx context.Context, kind domain.ArtifactKind, initialCount int) (bool, error) {
	budget := m.cfg.Budget(kind)
	log := m.log.With(zap.String("kind", kind.String()), zap.Int("initial", initialCount))
	log.Info("waiting for new artifact",
		zap.Duration("timeout", budget.ReadyTimeout),
		zap.Duration("interval", budget.PollInterval))

	var lastLogged time.Duration
	ready, err := pollUntil(ctx, budget.PollInterval, budget.ReadyTimeout, func(ctx context.Context) (bool, error) {
		res, err := m.observe(ctx, kind)
		if err != nil {
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			log.Debug("observation failed, treating as negative poll", zap.Error(err))
			return false, nil
		}
		if res.Total <= initialCount {
			return false, nil
		}
		return !res.Items[len(res.Items)-1].loading(), nil
	}, func(elapsed time.Duration) {
		if elapsed-lastLogged >= time.Minute {
			lastLogged = elapsed
			log.Info("still waiting", zap.Duration("elapsed", elapsed.Round(time.Second)))
		}
	})
	if err != nil {
		return false, err
	}
	if !ready {
		log.Warn("artifact not ready within budget", zap.Duration("timeout", budget.ReadyTimeout))
	}
	return ready, nil
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}
