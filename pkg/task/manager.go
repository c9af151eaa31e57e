package task

import (
	"context"
	"fmt"
	"sync"

	"media-service/pkg/logger"
)

// BackgroundTask represents a long-running background process (encoder pool, consumer).
type BackgroundTask interface {
	Name() string
	Start(ctx context.Context) error
	Stop() error
}

// Manager starts tasks in registration order and stops them in reverse.
type Manager struct {
	mu      sync.Mutex
	tasks   []BackgroundTask
	started int
	cancel  context.CancelFunc
}

func NewManager() *Manager {
	return &Manager{}
}

// Register adds a background task; call before StartAll.
func (m *Manager) Register(task BackgroundTask) {
	if task == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks = append(m.tasks, task)
}

// StartAll starts all registered tasks once. If one fails, the ones already
// started are stopped again.
func (m *Manager) StartAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	for _, t := range m.tasks {
		if err := t.Start(runCtx); err != nil {
			m.stopLocked()
			return fmt.Errorf("start %s: %w", t.Name(), err)
		}
		m.started++
		logger.Infof("background task started name=%s", t.Name())
	}
	return nil
}

// StopAll stops started tasks in reverse order.
func (m *Manager) StopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked()
}

func (m *Manager) stopLocked() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	for i := m.started - 1; i >= 0; i-- {
		t := m.tasks[i]
		if err := t.Stop(); err != nil {
			logger.Warn("background task stop failed", map[string]interface{}{
				"name":  t.Name(),
				"error": err.Error(),
			})
		}
	}
	m.started = 0
	m.cancel = nil
}

var defaultManager = NewManager()

// Register adds a task to the process-wide manager.
func Register(task BackgroundTask) { defaultManager.Register(task) }

// StartAll starts the process-wide manager.
func StartAll(ctx context.Context) error { return defaultManager.StartAll(ctx) }

// StopAll stops the process-wide manager.
func StopAll() { defaultManager.StopAll() }
