package service

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"studiograb/internal/core/domain"
)

// stubPage fakes the page channel. Scripts are dispatched on the marker
// comment each script builder emits, so tests program behavior per
// logical operation without parsing JavaScript.
type stubPage struct {
	mu       sync.Mutex
	handlers map[string]func(call int, script string) (any, error)
	calls    map[string]int
	scripts  map[string][]string
	reloads  int
}

func newStubPage() *stubPage {
	return &stubPage{
		handlers: map[string]func(int, string) (any, error){},
		calls:    map[string]int{},
		scripts:  map[string][]string{},
	}
}

// on programs the handler for one script marker.
func (p *stubPage) on(marker string, fn func(call int, script string) (any, error)) {
	p.handlers[marker] = fn
}

// respond programs a fixed response for one script marker.
func (p *stubPage) respond(marker string, v any) {
	p.on(marker, func(int, string) (any, error) { return v, nil })
}

func (p *stubPage) count(marker string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[marker]
}

func (p *stubPage) lastScript(marker string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s := p.scripts[marker]; len(s) > 0 {
		return s[len(s)-1]
	}
	return ""
}

func markerOf(script string) string {
	start := strings.Index(script, "/* ")
	end := strings.Index(script, " */")
	if start < 0 || end < 0 || end <= start {
		return ""
	}
	return script[start+3 : end]
}

// defaultResponses make an unprogrammed marker behave like an empty page.
var defaultResponses = map[string]any{
	"click-by-selector": "missing",
	"click-by-text":     "missing",
	"nested-control":    "missing",
	"set-choice":        "missing",
	"native-select":     "missing",
	"fill-text":         "missing",
	"primary-submit":    "missing",
	"hover-reveal":      false,
	"artifact-count":    0,
	"artifact-status":   map[string]any{"total": 0, "items": []any{}},
	"dialog-state":      map[string]any{"open": false, "text": ""},
}

func (p *stubPage) Evaluate(ctx context.Context, script string, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	marker := markerOf(script)

	p.mu.Lock()
	call := p.calls[marker]
	p.calls[marker]++
	p.scripts[marker] = append(p.scripts[marker], script)
	fn := p.handlers[marker]
	p.mu.Unlock()

	var res any
	if fn != nil {
		v, err := fn(call, script)
		if err != nil {
			return err
		}
		res = v
	} else {
		res = defaultResponses[marker]
	}
	if out == nil || res == nil {
		return nil
	}
	data, err := json.Marshal(res)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func (p *stubPage) Reload(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	p.reloads++
	p.mu.Unlock()
	return nil
}

// statusItem and statusOf build artifact-status responses in the shape
// the page script reports: one flag per loading signal.
type statusItem struct {
	Title      string `json:"title"`
	Shimmer    bool   `json:"shimmer"`
	Blocked    bool   `json:"blocked"`
	Generating bool   `json:"generating"`
	Spinner    bool   `json:"spinner"`
}

func readyItem(title string) statusItem { return statusItem{Title: title} }

func loadingItem(title string) statusItem { return statusItem{Title: title, Spinner: true} }

func statusOf(items ...statusItem) map[string]any {
	return map[string]any{"total": len(items), "items": items}
}

func openDialog(text string) map[string]any {
	return map[string]any{"open": true, "text": text}
}

// stubWatcher fakes the download directory.
type stubWatcher struct {
	dir      string
	snapshot map[string]int64
	files    []*domain.DownloadedFile
	renames  [][2]string
	awaits   int
}

func (w *stubWatcher) Snapshot(ctx context.Context) (map[string]int64, error) {
	if w.snapshot == nil {
		return map[string]int64{}, nil
	}
	return w.snapshot, nil
}

func (w *stubWatcher) AwaitNew(ctx context.Context, baseline map[string]int64, timeout time.Duration) (*domain.DownloadedFile, error) {
	w.awaits++
	if len(w.files) == 0 {
		return nil, nil
	}
	f := w.files[0]
	w.files = w.files[1:]
	return f, nil
}

func (w *stubWatcher) Rename(oldName, newName string) (string, error) {
	w.renames = append(w.renames, [2]string{oldName, newName})
	return filepath.Join(w.dir, newName), nil
}

func (w *stubWatcher) Dir() string { return w.dir }

// stubStore records run persistence calls.
type stubStore struct {
	inits     []string
	manifests map[string][]byte
	records   map[string][]byte
}

func newStubStore() *stubStore {
	return &stubStore{manifests: map[string][]byte{}, records: map[string][]byte{}}
}

func (s *stubStore) InitRun(ctx context.Context, runID string) error {
	s.inits = append(s.inits, runID)
	return nil
}

func (s *stubStore) SaveManifest(ctx context.Context, runID string, data []byte) error {
	s.manifests[runID] = data
	return nil
}

func (s *stubStore) SaveRecords(ctx context.Context, runID string, data []byte) error {
	s.records[runID] = data
	return nil
}

func (s *stubStore) RunPath(runID string) string { return filepath.Join("runs", runID) }

// testConfig shrinks every wait so polling loops finish in milliseconds.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.SettleDelay = 0
	cfg.ResolveInterval = time.Millisecond
	cfg.ResolveBudget = 25 * time.Millisecond
	cfg.DialogWait = 40 * time.Millisecond
	cfg.DownloadWait = 25 * time.Millisecond
	cfg.TriggerSettle = 0
	for _, kind := range domain.Kinds() {
		cfg.Budgets[kind] = Budget{PollInterval: time.Millisecond, ReadyTimeout: 60 * time.Millisecond}
	}
	return cfg
}
