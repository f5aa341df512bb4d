package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"studiograb/internal/core/domain"
)

func newTestOrchestrator(page *stubPage, watcher *stubWatcher) *Orchestrator {
	cfg := testConfig()
	log := zap.NewNop()
	resolver := NewResolver(page, 0, log)
	return NewOrchestrator(
		NewDialogController(page, resolver, cfg, log),
		NewMonitor(page, cfg, log),
		NewDownloadPipeline(page, resolver, watcher, cfg, log),
		cfg, log)
}

func TestGenerateDeckEndToEnd(t *testing.T) {
	page := newStubPage()
	page.respond("artifact-count", 2)
	page.respond("click-by-selector", "clicked")
	page.respond("click-by-text", "clicked")
	page.respond("dialog-state", openDialog("Customize your Slide Deck"))
	// Two polls of spinner, then the third deck classifies ready.
	page.on("artifact-status", func(call int, _ string) (any, error) {
		loading := call < 2
		return statusOf(
			readyItem("Old A"),
			readyItem("Old B"),
			statusItem{Title: "Q4 Review", Spinner: loading},
		), nil
	})
	watcher := &stubWatcher{
		dir:   t.TempDir(),
		files: []*domain.DownloadedFile{{Name: "artifact", Path: "/dl/artifact", Size: 99}},
	}
	o := newTestOrchestrator(page, watcher)

	rec, err := o.GenerateDeck(context.Background(), domain.GenerationRequest{
		Options: []domain.FormOption{{Control: domain.ControlRadio, Field: "Style", Choice: "Detailed"}},
	})
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, domain.KindDeck, rec.Kind)
	assert.Equal(t, "Detailed.pdf", rec.FinalName, "salient option names the file, kind supplies the extension")
	assert.GreaterOrEqual(t, page.count("artifact-status"), 3)
}

func TestGenerateRejectsUnknownKind(t *testing.T) {
	o := newTestOrchestrator(newStubPage(), &stubWatcher{})
	_, err := o.Generate(context.Background(), domain.GenerationRequest{Kind: "banner"})
	assert.Error(t, err)
}

func TestGenerateNilWhenDialogNeverOpens(t *testing.T) {
	page := newStubPage()
	page.respond("artifact-count", 0)
	o := newTestOrchestrator(page, &stubWatcher{})

	rec, err := o.Generate(context.Background(), domain.GenerationRequest{Kind: domain.KindAudio})
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.Equal(t, 0, page.count("artifact-status"), "no readiness wait after a failed trigger")
}

func TestGenerateNilWhenNeverReady(t *testing.T) {
	page := newStubPage()
	page.respond("artifact-count", 0)
	page.respond("click-by-selector", "clicked")
	page.respond("click-by-text", "clicked")
	page.respond("dialog-state", openDialog("Customize your Infographic"))
	page.respond("artifact-status", statusOf(loadingItem("Generating...")))
	watcher := &stubWatcher{dir: t.TempDir()}
	o := newTestOrchestrator(page, watcher)

	rec, err := o.GenerateInfographic(context.Background(), domain.GenerationRequest{})
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.Equal(t, 0, watcher.awaits, "no download attempt for an unfinished artifact")
}

func TestTriggerDoesNotWaitForReadiness(t *testing.T) {
	page := newStubPage()
	page.respond("click-by-selector", "clicked")
	page.respond("click-by-text", "clicked")
	page.respond("dialog-state", openDialog("Customize your Video Overview"))
	o := newTestOrchestrator(page, &stubWatcher{})

	ok, err := o.Trigger(context.Background(), domain.GenerationRequest{Kind: domain.KindVideo})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0, page.count("artifact-status"))
}
