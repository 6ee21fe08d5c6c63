package runner

import (
	"sync"
	"time"

	"github.com/kaister3/silk/logging"
	"github.com/kaister3/silk/workflow"
)

// defaultMaxHistorySize bounds the in-memory run history.
const defaultMaxHistorySize = 100

// Record is the durable outcome of one completed workflow run.
type Record struct {
	// ID is the run's uuid.
	ID string `json:"id"`
	// Workflow is the registered workflow name.
	Workflow string `json:"workflow"`
	// StartedAt is when the run started.
	StartedAt time.Time `json:"started_at"`
	// EndedAt is when the run finished.
	EndedAt time.Time `json:"ended_at"`
	// Error is the run's failure message, empty on success.
	Error string `json:"error,omitempty"`
	// Report is the final aggregated execution report.
	Report workflow.WorkflowReport `json:"-"`
	// Logs are the records captured during the run.
	Logs []logging.Entry `json:"logs,omitempty"`
}

// Succeeded reports whether the run finished without error.
func (r Record) Succeeded() bool {
	return r.Error == ""
}

// Duration returns the run's wall-clock duration.
func (r Record) Duration() time.Duration {
	return r.EndedAt.Sub(r.StartedAt)
}

// Store persists completed run records.
type Store interface {
	// Save records a completed run.
	Save(record Record) error

	// Runs returns the saved runs, most recent first.
	Runs() []Record

	// Run returns the record with the given id.
	Run(id string) (Record, bool)
}

// MemoryStore is an in-memory Store bounded to a fixed number of runs. The
// oldest runs are discarded once the bound is reached.
type MemoryStore struct {
	mu      sync.RWMutex
	maxSize int
	runs    []Record
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a MemoryStore holding at most maxSize runs. A
// maxSize of zero or less selects the default bound.
func NewMemoryStore(maxSize int) *MemoryStore {
	if maxSize <= 0 {
		maxSize = defaultMaxHistorySize
	}
	return &MemoryStore{maxSize: maxSize}
}

// Save prepends the record so Runs stays ordered most recent first, then
// discards the oldest runs beyond the bound.
func (s *MemoryStore) Save(record Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs = append([]Record{record}, s.runs...)
	if len(s.runs) > s.maxSize {
		s.runs = s.runs[:s.maxSize]
	}
	return nil
}

// Runs returns a copy of the saved runs, most recent first.
func (s *MemoryStore) Runs() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Record, len(s.runs))
	copy(out, s.runs)
	return out
}

// Run returns the record with the given id.
func (s *MemoryStore) Run(id string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.runs {
		if r.ID == id {
			return r, true
		}
	}
	return Record{}, false
}
