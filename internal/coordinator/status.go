package coordinator

import (
	"sync"
	"time"

	"github.com/jittakal/sockeventwriter/pkg/encoder"
)

// TaskState is the lifecycle state of a writer task.
type TaskState string

const (
	StatePending   TaskState = "pending"
	StateWaiting   TaskState = "waiting"
	StateRunning   TaskState = "running"
	StateCompleted TaskState = "completed"
	StateFailed    TaskState = "failed"
)

// Terminal reports whether the state is final.
func (s TaskState) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// JobResult describes one encoding job on a connection.
type JobResult struct {
	Format   encoder.Format
	Stats    encoder.Stats
	Duration time.Duration
}

// TaskResult describes a finished writer task.
type TaskResult struct {
	Identity string
	State    TaskState
	Records  int64
	Flushes  int64
	Bytes    int64
	AvgRate  int64
	PeakRate int64
	Duration time.Duration
	Jobs     []JobResult
	Err      error
}

// TaskStatus is a live view of a task.
type TaskStatus struct {
	Identity string    `json:"identity"`
	State    TaskState `json:"state"`
	Records  int64     `json:"records"`
	Error    string    `json:"error,omitempty"`
}

type statusTable struct {
	mu    sync.RWMutex
	order []string
	tasks map[string]*TaskStatus
}

func newStatusTable() *statusTable {
	return &statusTable{tasks: make(map[string]*TaskStatus)}
}

func (t *statusTable) reset(identities []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.order = append(t.order[:0], identities...)
	t.tasks = make(map[string]*TaskStatus, len(identities))
	for _, id := range identities {
		t.tasks[id] = &TaskStatus{Identity: id, State: StatePending}
	}
}

func (t *statusTable) set(id string, state TaskState, records int64, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.tasks[id]
	if !ok {
		return
	}
	s.State = state
	s.Records = records
	if err != nil {
		s.Error = err.Error()
	}
}

func (t *statusTable) snapshot() []TaskStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]TaskStatus, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, *t.tasks[id])
	}
	return out
}
