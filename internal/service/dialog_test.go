package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"studiograb/internal/core/domain"
)

func newTestDialog(page *stubPage) *DialogController {
	cfg := testConfig()
	return NewDialogController(page, NewResolver(page, 0, zap.NewNop()), cfg, zap.NewNop())
}

// openVerified drives the controller to the open-verified phase.
func openVerified(t *testing.T, page *stubPage, d *DialogController) {
	t.Helper()
	page.respond("click-by-selector", "clicked")
	page.respond("dialog-state", openDialog("Customize Audio Overview"))
	ok, err := d.Open(context.Background(), domain.KindAudio)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, DialogOpenVerified, d.Phase())
}

func TestDialogOpenWaitsPastWrongModal(t *testing.T) {
	page := newStubPage()
	page.respond("click-by-selector", "clicked")
	// An unrelated modal is on screen first; the customization dialog
	// replaces it two polls later.
	page.on("dialog-state", func(call int, _ string) (any, error) {
		if call < 2 {
			return openDialog("Upload sources"), nil
		}
		return openDialog("Customize your Slide Deck"), nil
	})
	d := newTestDialog(page)

	ok, err := d.Open(context.Background(), domain.KindDeck)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, DialogOpenVerified, d.Phase())
	assert.GreaterOrEqual(t, page.count("dialog-state"), 3)
}

func TestDialogOpenNeverVerifiedTimesOut(t *testing.T) {
	page := newStubPage()
	page.respond("click-by-selector", "clicked")
	page.respond("dialog-state", openDialog("Upload sources"))
	d := newTestDialog(page)

	ok, err := d.Open(context.Background(), domain.KindVideo)
	require.NoError(t, err)
	assert.False(t, ok, "a wrong modal must never pass verification")
	assert.Equal(t, DialogClosed, d.Phase())
}

func TestDialogOpenCustomizeActionMissing(t *testing.T) {
	page := newStubPage()
	d := newTestDialog(page)

	ok, err := d.Open(context.Background(), domain.KindDeck)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, page.count("dialog-state"), "no dialog wait without a resolved action")
}

func TestDialogConfigureRequiresVerifiedDialog(t *testing.T) {
	page := newStubPage()
	d := newTestDialog(page)

	_, err := d.Configure(context.Background(), []domain.FormOption{{Control: domain.ControlRadio, Choice: "Long"}}, "")
	assert.Error(t, err)
}

func TestDialogConfigureSkipsUnsettableFields(t *testing.T) {
	page := newStubPage()
	d := newTestDialog(page)
	openVerified(t, page, d)

	// First option lands on the radio query; the second misses both
	// control families and falls back to the dialog default.
	page.on("set-choice", func(call int, _ string) (any, error) {
		if call == 0 {
			return "clicked", nil
		}
		return "missing", nil
	})
	page.respond("fill-text", "clicked")

	applied, err := d.Configure(context.Background(), []domain.FormOption{
		{Control: domain.ControlRadio, Field: "Length", Choice: "Longer"},
		{Control: domain.ControlToggle, Field: "Format", Choice: "Detailed"},
	}, "Focus on the third chapter")
	require.NoError(t, err)
	assert.Equal(t, 2, applied, "one option plus the prompt")
	assert.Equal(t, 3, page.count("set-choice"), "the missed option tried both control families")
	assert.Equal(t, 1, page.count("fill-text"))
}

func TestDialogConfigureDropdownFallsBackToNativeSelect(t *testing.T) {
	page := newStubPage()
	d := newTestDialog(page)
	openVerified(t, page, d)

	page.respond("set-choice", "missing")
	page.respond("native-select", "clicked")

	applied, err := d.Configure(context.Background(), []domain.FormOption{
		{Control: domain.ControlDropdown, Field: "Language", Choice: "English"},
	}, "")
	require.NoError(t, err)
	assert.Equal(t, 1, applied)
	assert.Equal(t, 1, page.count("native-select"))
}

func TestDialogSubmitFirstTierWins(t *testing.T) {
	page := newStubPage()
	d := newTestDialog(page)
	openVerified(t, page, d)

	page.respond("click-by-text", "clicked")

	ok, err := d.Submit(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, DialogClosed, d.Phase())
	assert.Equal(t, 0, page.count("primary-submit"), "later tiers never ran")
}

func TestDialogSubmitPrimaryTierRequiresVerifiedDialog(t *testing.T) {
	page := newStubPage()
	d := newTestDialog(page)
	openVerified(t, page, d)

	// Text and aria tiers miss. The dialog on screen is no longer the
	// customization dialog, so the primary-styled tier must not fire.
	page.respond("click-by-selector", "missing")
	page.respond("click-by-text", "missing")
	page.respond("dialog-state", openDialog("Share this notebook"))
	page.respond("primary-submit", "clicked")

	ok, err := d.Submit(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, page.count("primary-submit"))
	assert.Equal(t, DialogOpenVerified, d.Phase(), "caller may retry or abandon")
}

func TestDialogSubmitPrimaryTierFires(t *testing.T) {
	page := newStubPage()
	d := newTestDialog(page)
	openVerified(t, page, d)

	page.respond("click-by-selector", "missing")
	page.respond("click-by-text", "missing")
	page.respond("primary-submit", "clicked")

	ok, err := d.Submit(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, page.count("primary-submit"))
}

func TestDialogSubmitScriptsCarryExcludedLabels(t *testing.T) {
	page := newStubPage()
	d := newTestDialog(page)
	openVerified(t, page, d)

	page.respond("click-by-selector", "missing")
	page.respond("click-by-text", "missing")
	page.respond("primary-submit", "clicked")

	_, err := d.Submit(context.Background())
	require.NoError(t, err)

	for _, marker := range []string{"click-by-text", "click-by-selector", "primary-submit"} {
		script := page.lastScript(marker)
		require.NotEmpty(t, script, marker)
		for _, label := range []string{"cancel", "close", "insert"} {
			assert.Contains(t, script, `"`+label+`"`, "%s must refuse %q", marker, label)
		}
	}
}

func TestDialogSubmitRetriesWhileDisabled(t *testing.T) {
	page := newStubPage()
	d := newTestDialog(page)
	openVerified(t, page, d)

	// The generate button exists but stays disabled for two rounds while
	// the form settles.
	page.respond("click-by-selector", "missing")
	page.on("click-by-text", func(call int, _ string) (any, error) {
		if call < 2 {
			return "disabled", nil
		}
		return "clicked", nil
	})

	ok, err := d.Submit(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.GreaterOrEqual(t, page.count("click-by-text"), 3)
}

func TestDialogPhaseString(t *testing.T) {
	assert.Equal(t, "closed", DialogClosed.String())
	assert.Equal(t, "open-unverified", DialogOpenUnverified.String())
	assert.True(t, strings.HasPrefix(DialogSubmitting.String(), "submit"))
}
