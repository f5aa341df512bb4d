package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"studiograb/internal/core/domain"
)

func newTestMonitor(page *stubPage) *Monitor {
	return NewMonitor(page, testConfig(), zap.NewNop())
}

func TestMonitorCount(t *testing.T) {
	page := newStubPage()
	page.respond("artifact-count", 5)
	m := newTestMonitor(page)

	n, err := m.Count(context.Background(), domain.KindDeck)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestMonitorCountUnknownKind(t *testing.T) {
	page := newStubPage()
	cfg := testConfig()
	cfg.Selectors.Kind = map[domain.ArtifactKind]KindSelectors{}
	m := NewMonitor(page, cfg, zap.NewNop())

	_, err := m.Count(context.Background(), domain.KindDeck)
	assert.Error(t, err)
	assert.Equal(t, 0, page.count("artifact-count"))
}

func TestLoadingVerdictIsDisjunctionOfSignals(t *testing.T) {
	cases := []struct {
		name string
		item statusItem
		want bool
	}{
		{"shimmer alone", statusItem{Title: "A", Shimmer: true}, true},
		{"blocked control alone", statusItem{Title: "A", Blocked: true}, true},
		{"generating title alone", statusItem{Title: "Generating...", Generating: true}, true},
		{"spinner alone", statusItem{Title: "A", Spinner: true}, true},
		{"no signal", statusItem{Title: "A"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			page := newStubPage()
			page.respond("artifact-status", statusOf(tc.item))
			m := newTestMonitor(page)

			loading, err := m.IsLoading(context.Background(), domain.KindDeck, 0)
			require.NoError(t, err)
			assert.Equal(t, tc.want, loading)
		})
	}
}

func TestMonitorStatusAggregatesOneObservation(t *testing.T) {
	page := newStubPage()
	page.respond("artifact-status", statusOf(
		readyItem("Deep Dive"),
		loadingItem("Generating Audio Overview..."),
		readyItem("Brief"),
	))
	m := newTestMonitor(page)

	st, err := m.Status(context.Background(), domain.KindAudio)
	require.NoError(t, err)
	assert.Equal(t, domain.ArtifactStatus{Total: 3, Loading: 1, Ready: 2}, st)
	assert.Equal(t, 1, page.count("artifact-status"))
}

func TestMonitorArtifactsKeepPositionalIdentity(t *testing.T) {
	page := newStubPage()
	page.respond("artifact-status", statusOf(
		readyItem("First"),
		loadingItem("Second"),
	))
	m := newTestMonitor(page)

	arts, err := m.Artifacts(context.Background(), domain.KindDeck)
	require.NoError(t, err)
	require.Len(t, arts, 2)
	assert.Equal(t, 0, arts[0].Index)
	assert.Equal(t, domain.StateReady, arts[0].State)
	assert.Equal(t, 1, arts[1].Index)
	assert.Equal(t, domain.StateLoading, arts[1].State)
}

func TestMonitorIsLoadingOutOfRange(t *testing.T) {
	page := newStubPage()
	page.respond("artifact-status", statusOf(readyItem("Only")))
	m := newTestMonitor(page)

	_, err := m.IsLoading(context.Background(), domain.KindDeck, 3)
	assert.Error(t, err)
}

func TestWaitUntilNewArtifactReady(t *testing.T) {
	page := newStubPage()
	// The new card appears on the third poll and stays loading for two
	// more before classifying ready.
	page.on("artifact-status", func(call int, _ string) (any, error) {
		switch {
		case call < 2:
			return statusOf(readyItem("Old"), readyItem("Old 2")), nil
		case call < 4:
			return statusOf(
				readyItem("Old"),
				readyItem("Old 2"),
				loadingItem("Generating..."),
			), nil
		default:
			return statusOf(
				readyItem("Old"),
				readyItem("Old 2"),
				readyItem("Fresh"),
			), nil
		}
	})
	m := newTestMonitor(page)

	ready, err := m.WaitUntilNewArtifactReady(context.Background(), domain.KindDeck, 2)
	require.NoError(t, err)
	assert.True(t, ready)
	assert.GreaterOrEqual(t, page.count("artifact-status"), 5)
}

func TestWaitUntilNewArtifactReadyTimeoutDespiteNewCard(t *testing.T) {
	page := newStubPage()
	page.respond("artifact-status", statusOf(
		readyItem("Old"),
		loadingItem("Generating..."),
	))
	m := newTestMonitor(page)

	// The count rose past initial but the item never finished loading.
	ready, err := m.WaitUntilNewArtifactReady(context.Background(), domain.KindDeck, 1)
	require.NoError(t, err)
	assert.False(t, ready)
}

func TestWaitUntilNewArtifactReadySurvivesTransientErrors(t *testing.T) {
	page := newStubPage()
	page.on("artifact-status", func(call int, _ string) (any, error) {
		if call < 2 {
			return nil, errors.New("execution context destroyed")
		}
		return statusOf(readyItem("Fresh")), nil
	})
	m := newTestMonitor(page)

	ready, err := m.WaitUntilNewArtifactReady(context.Background(), domain.KindDeck, 0)
	require.NoError(t, err)
	assert.True(t, ready)
}

func TestWaitUntilNewArtifactReadyAbortsOnCancellation(t *testing.T) {
	page := newStubPage()
	ctx, cancel := context.WithCancel(context.Background())
	page.on("artifact-status", func(call int, _ string) (any, error) {
		cancel()
		return statusOf(), nil
	})
	m := newTestMonitor(page)

	_, err := m.WaitUntilNewArtifactReady(ctx, domain.KindDeck, 0)
	assert.ErrorIs(t, err, context.Canceled)
}
