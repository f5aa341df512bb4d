package service

import (
	"time"

	"studiograb/internal/core/domain"
)

// KindSelectors anchors one artifact kind's logical targets to the page.
type KindSelectors struct {
	// Card matches one rendered artifact of this kind. Alternatives are
	// tried in order; the first selector with any match wins.
	Card []string
	// Customize matches the edit/customize entry action for this kind.
	Customize []string
	// CustomizeText is the visible-text fallback for the entry action.
	CustomizeText []string
}

// Selectors is the full selector table. The remote UI's attribute-level
// selectors are not guaranteed stable across versions, so everything here
// is configuration rather than code.
type Selectors struct {
	Kind map[domain.ArtifactKind]KindSelectors

	// Dialog surfaces and the keyword that proves the open surface is a
	// customization dialog rather than some unrelated modal.
	Dialog        []string
	DialogKeyword string

	// Loading signals. Each is independently unreliable; classification
	// takes the disjunction of all four.
	Shimmer           []string
	BlockedControl    []string
	Spinner           []string
	GeneratingMarkers []string

	// Title locates the visible artifact title within a card.
	Title []string

	// Overflow/menu/download target the per-artifact actions menu.
	Overflow     []string
	OverflowText []string
	Menu         []string
	DownloadText []string

	// Submit resolution tiers plus the labels that must never be clicked
	// by any fallback tier.
	GenerateText       []string
	PrimarySubmit      []string
	ExcludedActionText []string
}

// DefaultSelectors returns a workable table for the studio UI as last
// observed. Callers override entries when the UI shifts under them.
func DefaultSelectors() Selectors {
	return Selectors{
		Kind: map[domain.ArtifactKind]KindSelectors{
			domain.KindDeck: {
				Card: []string{
					`[data-artifact-type="slide-deck"]`,
					`.artifact-card--deck`,
					`[aria-label*="slide deck" i]`,
				},
				Customize: []string{
					`[data-test-id="customize-slide-deck"]`,
					`button[aria-label*="customize slide deck" i]`,
				},
				CustomizeText: []string{"slide deck"},
			},
			domain.KindAudio: {
				Card: []string{
					`[data-artifact-type="audio-overview"]`,
					`.artifact-card--audio`,
					`[aria-label*="audio overview" i]`,
				},
				Customize: []string{
					`[data-test-id="customize-audio-overview"]`,
					`button[aria-label*="customize audio" i]`,
				},
				CustomizeText: []string{"audio overview"},
			},
			domain.KindVideo: {
				Card: []string{
					`[data-artifact-type="video-overview"]`,
					`.artifact-card--video`,
					`[aria-label*="video overview" i]`,
				},
				Customize: []string{
					`[data-test-id="customize-video-overview"]`,
					`button[aria-label*="customize video" i]`,
				},
				CustomizeText: []string{"video overview"},
			},
			domain.KindInfographic: {
				Card: []string{
					`[data-artifact-type="infographic"]`,
					`.artifact-card--infographic`,
					`[aria-label*="infographic" i]`,
				},
				Customize: []string{
					`[data-test-id="customize-infographic"]`,
					`button[aria-label*="customize infographic" i]`,
				},
				CustomizeText: []string{"infographic"},
			},
		},
		Dialog:        []string{`[role="dialog"]`, `dialog[open]`, `.modal[aria-modal="true"]`},
		DialogKeyword: "customize",
		Shimmer: []string{
			`[class*="shimmer"]`,
			`[class*="skeleton"]`,
			`[class*="pulse"]`,
		},
		BlockedControl: []string{
			`button[disabled]`,
			`[aria-disabled="true"]`,
		},
		Spinner: []string{
			`[class*="spinner"]`,
			`[class*="rotating"]`,
			`[aria-busy="true"]`,
			`progress`,
		},
		GeneratingMarkers: []string{"generating", "creating", "loading"},
		Title: []string{
			`[data-test-id="artifact-title"]`,
			`.artifact-title`,
			`h3`,
		},
		Overflow: []string{
			`button[aria-label*="more" i]`,
			`button[aria-label*="options" i]`,
			`[data-test-id="artifact-menu"]`,
		},
		OverflowText: []string{"more"},
		Menu:         []string{`[role="menu"]`, `.menu-surface`},
		DownloadText: []string{"download"},
		GenerateText: []string{"generate"},
		PrimarySubmit: []string{
			`button[class*="primary"]`,
			`button[class*="filled"]`,
			`button[type="submit"]`,
		},
		ExcludedActionText: []string{"cancel", "close", "insert", "submit", "save", "back"},
	}
}

// Budget is the per-kind wait configuration for generation polling.
type Budget struct {
	PollInterval time.Duration
	ReadyTimeout time.Duration
}

// Config carries every tunable the workflow engine uses. Nothing in the
// wait loops is hardcoded per call site.
type Config struct {
	Selectors Selectors

	// Budgets overrides the per-kind defaults where set.
	Budgets map[domain.ArtifactKind]Budget

	// SettleDelay follows every mutating evaluation before the next read.
	SettleDelay time.Duration

	// ResolveInterval/ResolveBudget bound element-resolution retries.
	ResolveInterval time.Duration
	ResolveBudget   time.Duration

	// DialogWait bounds the open-and-verify phase.
	DialogWait time.Duration

	// DownloadWait bounds one file's arrival on disk.
	DownloadWait time.Duration

	// TriggerSettle separates consecutive batch triggers.
	TriggerSettle time.Duration

	// RefreshCycles bounds reload-and-wait recovery cycles in a batch.
	RefreshCycles int
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Selectors:       DefaultSelectors(),
		Budgets:         map[domain.ArtifactKind]Budget{},
		SettleDelay:     500 * time.Millisecond,
		ResolveInterval: time.Second,
		ResolveBudget:   15 * time.Second,
		DialogWait:      20 * time.Second,
		DownloadWait:    2 * time.Minute,
		TriggerSettle:   2 * time.Second,
		RefreshCycles:   3,
	}
}

// Budget resolves the wait configuration for a kind, falling back to the
// kind's built-in defaults.
func (c Config) Budget(kind domain.ArtifactKind) Budget {
	if b, ok := c.Budgets[kind]; ok {
		if b.PollInterval <= 0 {
			b.PollInterval = kind.DefaultPollInterval()
		}
		if b.ReadyTimeout <= 0 {
			b.ReadyTimeout = kind.DefaultReadyTimeout()
		}
		return b
	}
	return Budget{
		PollInterval: kind.DefaultPollInterval(),
		ReadyTimeout: kind.DefaultReadyTimeout(),
	}
}
