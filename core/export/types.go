package export

import (
	"context"
	"sort"
	"sync"
	"time"

	"asset-exporter/core/classify"
)

// Lister yields every file of the source tree. Implementations stop early
// when fn returns an error and return that error.
type Lister interface {
	Walk(ctx context.Context, fn func(classify.SourceFile) error) error
}

// Failure records one asset that could not be exported.
type Failure struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// Report tracks the outcome of one run. It is safe for concurrent use.
type Report struct {
	mu sync.Mutex

	// Observed holds every logical path handed to the classifier.
	Observed map[string]struct{} `json:"-"`

	Listed          int       `json:"listed"`
	NeverExport     int       `json:"never_export"`
	Ineligible      int       `json:"ineligible"`
	Unchanged       int       `json:"unchanged"`
	Reevaluated     int       `json:"reevaluated"`
	Excluded        int       `json:"excluded"`
	Unsupported     int       `json:"unsupported"`
	SkippedExisting int       `json:"skipped_existing"`
	Exported        int       `json:"exported"`
	ExportedBytes   uint64    `json:"exported_bytes"`
	Failed          int       `json:"failed"`
	Failures        []Failure `json:"failures"`
	Cancelled       bool      `json:"cancelled"`
	Started         time.Time `json:"started"`
	Finished        time.Time `json:"finished"`
}

func newReport() *Report {
	return &Report{
		Observed: make(map[string]struct{}),
		Started:  time.Now(),
	}
}

func (r *Report) update(fn func(r *Report)) {
	r.mu.Lock()
	fn(r)
	r.mu.Unlock()
}

func (r *Report) fail(path string, err error) {
	r.update(func(r *Report) {
		r.Failed++
		r.Failures = append(r.Failures, Failure{Path: path, Error: err.Error()})
	})
}

func (r *Report) finish(cancelled bool) {
	r.update(func(r *Report) {
		r.Cancelled = cancelled
		r.Finished = time.Now()
		sort.Slice(r.Failures, func(i, j int) bool { return r.Failures[i].Path < r.Failures[j].Path })
	})
}

// Duration returns how long the run took.
func (r *Report) Duration() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Finished.IsZero() {
		return time.Since(r.Started)
	}
	return r.Finished.Sub(r.Started)
}

// FailedPaths returns the logical paths that failed, sorted.
func (r *Report) FailedPaths() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.Failures))
	for _, f := range r.Failures {
		out = append(out, f.Path)
	}
	sort.Strings(out)
	return out
}
