package domain

import "time"

// ArtifactState classifies an observed artifact at poll time.
type ArtifactState int

const (
	StateLoading ArtifactState = iota
	StateReady
)

func (s ArtifactState) String() string {
	if s == StateLoading {
		return "loading"
	}
	return "ready"
}

// Artifact is a transient projection of one generated item as rendered on
// the page at observation time. Identity is positional: Index is the
// item's position among same-kind artifacts in the current DOM, and for
// the lifetime of a run that list only grows, never reorders.
type Artifact struct {
	Kind  ArtifactKind  `json:"kind"`
	Index int           `json:"index"`
	Title string        `json:"title"`
	State ArtifactState `json:"state"`
}

// ArtifactStatus is an aggregate view over all same-kind artifacts,
// computed from a single page observation so the counts cannot drift.
type ArtifactStatus struct {
	Total   int `json:"total"`
	Loading int `json:"loading"`
	Ready   int `json:"ready"`
}

// ControlKind names the form control families a customization dialog uses.
type ControlKind string

const (
	ControlRadio    ControlKind = "radio"
	ControlToggle   ControlKind = "toggle"
	ControlDropdown ControlKind = "dropdown"
	ControlText     ControlKind = "text"
)

// FormOption is one field assignment inside the customization dialog.
// Field and Choice are matched case-insensitively against visible label
// text, the most durable anchor the remote UI offers.
type FormOption struct {
	Control ControlKind `json:"control"`
	Field   string      `json:"field,omitempty"`
	Choice  string      `json:"choice"`
}

// GenerationRequest describes one artifact to generate. Immutable for the
// duration of a workflow invocation.
type GenerationRequest struct {
	Kind    ArtifactKind `json:"kind"`
	Options []FormOption `json:"options,omitempty"`
	Prompt  string       `json:"prompt,omitempty"`
}

// SalientOption returns the choice that best labels this request: the
// first non-empty option value, falling back to the kind name. Used for
// default download naming when no explicit prefix is given.
func (r GenerationRequest) SalientOption() string {
	for _, opt := range r.Options {
		if opt.Choice != "" {
			return opt.Choice
		}
	}
	return r.Kind.String()
}

// DownloadedFile is a file the watcher confirmed stable on disk, still
// carrying the name the browser saved it under.
type DownloadedFile struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Size int64  `json:"size"`
}

// DownloadRecord is the terminal result for one artifact download.
// Immutable after creation.
type DownloadRecord struct {
	SuggestedName string       `json:"suggested_name"`
	FinalName     string       `json:"final_name"`
	Path          string       `json:"path"`
	Kind          ArtifactKind `json:"kind"`
}

// BatchRun tracks one multi-request generation run. Only the scheduler
// mutates it, and only between phases.
type BatchRun struct {
	ID        string              `json:"run_id"`
	Requests  []GenerationRequest `json:"requests"`
	Triggered []GenerationRequest `json:"triggered"`
	// InitialCount is the number of artifacts (across the kinds in the
	// batch) present before any trigger fired.
	InitialCount int `json:"initial_count"`
	// ExpectedCount must equal InitialCount + len(Triggered) once the
	// trigger phase ends; requests that failed to trigger do not count.
	ExpectedCount int       `json:"expected_count"`
	StartedAt     time.Time `json:"started_at"`
}

// RunResult is what a run persists and what the CLI summarizes.
type RunResult struct {
	RunID       string           `json:"run_id"`
	Records     []DownloadRecord `json:"records"`
	Requested   int              `json:"requested"`
	Triggered   int              `json:"triggered"`
	CompletedAt time.Time        `json:"completed_at"`
}
