// Package tasks runs imports and tabulations as cancellable background
// work that a polling caller can observe. Failure is a distinct terminal
// state so a poller never mistakes it for completion or progress.
package tasks

import (
	"context"
	"errors"
	"sync"
	"time"

	"raceadmin/internal/constants"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type State string

const (
	StatePending  State = "pending"
	StateRunning  State = "running"
	StateDone     State = "done"
	StateFailed   State = "failed"
	StateCanceled State = "canceled"
)

func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed || s == StateCanceled
}

// Progress is the incremental report a running task publishes: rows processed
// out of total, and the last finisher name handled.
type Progress struct {
	Processed int    `json:"processed"`
	Total     int    `json:"total"`
	LastName  string `json:"last_name,omitempty"`
}

// Snapshot is an immutable view of a task for polling callers. Result is the
// task's summary (row errors, counts) once it reaches StateDone.
type Snapshot struct {
	ID         string     `json:"id"`
	Kind       string     `json:"kind"`
	State      State      `json:"state"`
	Progress   Progress   `json:"progress"`
	Result     any        `json:"result,omitempty"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

type task struct {
	snap   Snapshot
	cancel context.CancelFunc
}

type Manager struct {
	mu     sync.Mutex
	tasks  map[string]*task
	order  []string
	logger zerolog.Logger
}

func NewManager(logger zerolog.Logger) *Manager {
	return &Manager{tasks: make(map[string]*task), logger: logger}
}

// Run is a task body. It must check ctx between rows (cooperative
// cancellation) and publish progress through report. The returned value
// becomes the snapshot's Result on success.
type Run func(ctx context.Context, report func(Progress)) (any, error)

// Start launches run in the background and returns the task ID immediately.
// The task's context is detached from the caller's request context; only
// Cancel (or process shutdown via the parent) stops it.
func (m *Manager) Start(parent context.Context, kind string, run Run) string {
	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	id := uuid.New().String()

	t := &task{
		snap: Snapshot{
			ID:        id,
			Kind:      kind,
			State:     StatePending,
			StartedAt: time.Now().UTC(),
		},
		cancel: cancel,
	}

	m.mu.Lock()
	m.tasks[id] = t
	m.order = append(m.order, id)
	m.prune()
	m.mu.Unlock()

	go func() {
		defer cancel()
		m.setState(id, StateRunning, "")
		m.logger.Info().Str("task_id", id).Str("kind", kind).Msg("task started")

		result, err := run(ctx, func(p Progress) {
			m.mu.Lock()
			if t, ok := m.tasks[id]; ok {
				t.snap.Progress = p
			}
			m.mu.Unlock()
		})

		switch {
		case err == nil:
			m.setResult(id, result)
			m.setState(id, StateDone, "")
			m.logger.Info().Str("task_id", id).Str("kind", kind).Msg("task finished")
		case errors.Is(err, context.Canceled):
			m.setState(id, StateCanceled, "")
			m.logger.Info().Str("task_id", id).Str("kind", kind).Msg("task canceled")
		default:
			m.setState(id, StateFailed, err.Error())
			m.logger.Error().Err(err).Str("task_id", id).Str("kind", kind).Msg("task failed")
		}
	}()

	return id
}

// Get returns a snapshot of the task, false when unknown (or pruned).
func (m *Manager) Get(id string) (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return Snapshot{}, false
	}
	return t.snap, true
}

// Cancel requests cooperative cancellation. Returns false for unknown or
// already-terminal tasks.
func (m *Manager) Cancel(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok || t.snap.State.Terminal() {
		return false
	}
	t.cancel()
	return true
}

func (m *Manager) setResult(id string, result any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tasks[id]; ok {
		t.snap.Result = result
	}
}

func (m *Manager) setState(id string, state State, errMsg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return
	}
	t.snap.State = state
	t.snap.Error = errMsg
	if state.Terminal() {
		now := time.Now().UTC()
		t.snap.FinishedAt = &now
	}
}

// prune drops the oldest terminal tasks beyond the retention limit.
// Caller holds m.mu.
func (m *Manager) prune() {
	for len(m.order) > constants.TaskRetention {
		oldest := m.order[0]
		if t, ok := m.tasks[oldest]; ok && !t.snap.State.Terminal() {
			return
		}
		delete(m.tasks, oldest)
		m.order = m.order[1:]
	}
}
