// Hook manager: registration and bounded-concurrency dispatch.
package hooks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Manager manages hook registration and execution.
type Manager struct {
	hooks     map[EventType][]Hook
	stdioHook *StdioHook
	mu        sync.RWMutex
	pool      *executionPool
	logger    *slog.Logger
	config    Config
}

// NewManager creates a new hook manager.
func NewManager(config Config, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	if _, err := time.ParseDuration(config.Timeout); err != nil {
		logger.Warn("invalid hook timeout, using default", "timeout", config.Timeout, "error", err)
	}

	m := &Manager{
		hooks:  make(map[EventType][]Hook),
		logger: logger,
		config: config,
		pool:   newExecutionPool(config.Concurrency, logger),
	}

	if config.StdioFormat != "" {
		_ = m.EnableStdioOutput(config.StdioFormat)
	}

	return m
}

// RegisterHook registers a hook for the specified event type.
func (m *Manager) RegisterHook(eventType EventType, hook Hook) error {
	if hook == nil {
		return fmt.Errorf("cannot register nil hook")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks[eventType] = append(m.hooks[eventType], hook)
	m.logger.Info("hook registered", "event_type", eventType, "hook_type", hook.Type(), "hook_id", hook.ID())
	return nil
}

// TriggerEvent dispatches all registered hooks for the given event. The
// delivery engine that raised the event never blocks on hook execution.
func (m *Manager) TriggerEvent(ctx context.Context, event Event) {
	if m == nil {
		return
	}

	m.mu.RLock()
	registered := m.hooks[event.Type]
	matched := make([]Hook, len(registered))
	copy(matched, registered)
	stdio := m.stdioHook
	m.mu.RUnlock()

	if stdio != nil {
		matched = append(matched, stdio)
	}
	if len(matched) == 0 {
		return
	}

	m.logger.Debug("triggering event", "event_type", event.Type, "hook_count", len(matched), "event", event.String())
	for _, hook := range matched {
		m.pool.execute(ctx, hook, event)
	}
}

// EnableStdioOutput enables structured output to stderr.
func (m *Manager) EnableStdioOutput(format string) error {
	if format != "json" && format != "env" {
		return fmt.Errorf("unsupported stdio format: %s", format)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stdioHook = NewStdioHook("stdio", format)
	return nil
}

// Stats returns a snapshot of hook manager counters.
func (m *Manager) Stats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	total := 0
	byType := make(map[string]int)
	for eventType, hs := range m.hooks {
		byType[string(eventType)] = len(hs)
		total += len(hs)
	}
	return map[string]interface{}{
		"event_types":   len(m.hooks),
		"total_hooks":   total,
		"hooks_by_type": byType,
		"stdio_enabled": m.stdioHook != nil,
		"pool_size":     m.pool.size,
	}
}

// Close shuts down the hook manager and waits for pending executions.
func (m *Manager) Close() error {
	if m == nil || m.pool == nil {
		return nil
	}
	m.pool.close()
	return nil
}

// executionPool bounds concurrent hook execution with a buffered-channel semaphore.
type executionPool struct {
	workers chan struct{}
	size    int
	logger  *slog.Logger
}

func newExecutionPool(size int, logger *slog.Logger) *executionPool {
	if size <= 0 {
		size = 10
	}
	return &executionPool{workers: make(chan struct{}, size), size: size, logger: logger}
}

// execute runs a hook in a goroutine gated by the worker semaphore. There is
// no retry: a failed hook invocation is logged and dropped.
func (ep *executionPool) execute(ctx context.Context, hook Hook, event Event) {
	go func() {
		ep.workers <- struct{}{}
		defer func() { <-ep.workers }()

		start := time.Now()
		err := hook.Execute(ctx, event)
		elapsed := time.Since(start)

		if err != nil {
			ep.logger.Error("hook execution failed",
				"hook_type", hook.Type(), "hook_id", hook.ID(), "event_type", event.Type,
				"duration_ms", elapsed.Milliseconds(), "error", err)
			return
		}
		ep.logger.Debug("hook executed",
			"hook_type", hook.Type(), "hook_id", hook.ID(), "event_type", event.Type,
			"duration_ms", elapsed.Milliseconds())
	}()
}

// close drains the semaphore, blocking until every in-flight hook returns.
func (ep *executionPool) close() {
	for i := 0; i < cap(ep.workers); i++ {
		ep.workers <- struct{}{}
	}
}
