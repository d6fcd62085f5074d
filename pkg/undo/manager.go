package undo

import (
	"fmt"
	"sync"

	"github.com/cockroachdb/errors"

	errUtils "github.com/cloudposse/link-install/errors"
	log "github.com/cloudposse/link-install/pkg/logger"
)

type state int

const (
	stateOpen state = iota
	stateUndoing
	stateDone
	stateCommitted
)

// Journal persists serializable actions so a run killed before it could roll back can be recovered.
type Journal interface {
	Append(rec Record) (uint64, error)
	Retire(id uint64) error
}

type entry struct {
	action    Action
	journalID uint64
	journaled bool
}

// Manager is a rollback scope: an ordered log of actions and child scopes reversed in LIFO order.
//
// Mutations performed through Apply hold the scope's gate for reading, UndoAll takes it for
// writing. A rollback that starts while a mutation is in flight waits for it and then reverses it.
type Manager struct {
	name    string
	parent  *Manager
	journal Journal

	gate sync.RWMutex

	mu      sync.Mutex
	state   state
	entries []entry
	waiters []chan struct{}
}

// Option configures a Manager.
type Option func(*Manager)

// WithJournal persists every recordable action registered in the scope and its children.
func WithJournal(j Journal) Option {
	return func(m *Manager) {
		m.journal = j
	}
}

// NewManager creates a root scope.
func NewManager(name string, opts ...Option) *Manager {
	m := &Manager{name: name}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// NewScope creates a child scope registered in m. The child is reversed as a single step of m.
// A child of a scope that is already rolled back or committed is returned closed.
func (m *Manager) NewScope(name string) *Manager {
	child := &Manager{name: m.name + "/" + name, parent: m, journal: m.journal}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != stateOpen {
		child.state = stateDone
		return child
	}
	m.entries = append(m.entries, entry{action: child})
	return child
}

// Name returns the scope path, e.g. "run/react".
func (m *Manager) Name() string {
	return m.name
}

// Len returns the number of pending entries.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Closed reports whether rollback or commit has started on this scope or any enclosing scope.
func (m *Manager) Closed() bool {
	for s := m; s != nil; s = s.parent {
		s.mu.Lock()
		open := s.state == stateOpen
		s.mu.Unlock()
		if !open {
			return true
		}
	}
	return false
}

// Register appends an action to the scope. It never fails: an action registered after the
// scope was rolled back is reversed immediately.
func (m *Manager) Register(action Action) {
	if m.register(action) {
		return
	}

	log.Debug("Scope already closed, reversing late action", "scope", m.name, "action", action.String())
	if err := action.Undo(); err != nil {
		log.Warn("Failed to reverse late action", "scope", m.name, "action", action.String(), "error", err)
	}
}

// Apply registers action and then runs mutate while holding the scope's gate.
// Once rollback has started on the scope or an enclosing one, Apply returns ErrScopeClosed
// without running mutate.
func (m *Manager) Apply(action Action, mutate func() error) error {
	m.gate.RLock()
	defer m.gate.RUnlock()

	if m.parentClosed() || !m.register(action) {
		return errors.Wrapf(errUtils.ErrScopeClosed, "%s: %s", m.name, action.String())
	}
	return mutate()
}

// Do runs mutate while holding the scope's gate without registering anything. It is meant for
// mutations whose reversal is owned by an enclosing scope. Like Apply, it returns
// ErrScopeClosed without running mutate once the scope or an enclosing one is closed.
func (m *Manager) Do(name string, mutate func() error) error {
	m.gate.RLock()
	defer m.gate.RUnlock()

	if m.Closed() {
		return errors.Wrapf(errUtils.ErrScopeClosed, "%s: %s", m.name, name)
	}
	return mutate()
}

func (m *Manager) parentClosed() bool {
	return m.parent != nil && m.parent.Closed()
}

func (m *Manager) register(action Action) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != stateOpen {
		return false
	}

	e := entry{action: action}
	if m.journal != nil {
		if rec, ok := action.(Recordable); ok {
			id, err := m.journal.Append(rec.Record())
			if err != nil {
				log.Warn("Failed to journal action", "scope", m.name, "action", action.String(), "error", err)
			} else {
				e.journalID = id
				e.journaled = true
			}
		}
	}
	m.entries = append(m.entries, e)
	log.Trace("Registered undo action", "scope", m.name, "action", action.String())
	return true
}

// UndoAll reverses every entry, most recent first. Failures are logged and every remaining
// action still gets its attempt; the joined failures are returned for reporting only.
//
// Calling UndoAll on a scope that is already reversed or committed is a no-op. A caller that
// arrives while a reversal is in progress waits for that pass to finish.
func (m *Manager) UndoAll() error {
	m.mu.Lock()
	switch m.state {
	case stateDone, stateCommitted:
		m.mu.Unlock()
		return nil
	case stateUndoing:
		done := make(chan struct{})
		m.waiters = append(m.waiters, done)
		m.mu.Unlock()
		<-done
		return nil
	}
	m.state = stateUndoing
	m.mu.Unlock()

	// Wait for in-flight mutations.
	m.gate.Lock()

	m.mu.Lock()
	entries := m.entries
	m.entries = nil
	m.mu.Unlock()

	log.Debug("Rolling back", "scope", m.name, "actions", len(entries))

	var errs []error
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if err := e.action.Undo(); err != nil {
			log.Warn("Failed to undo action", "scope", m.name, "action", e.action.String(), "error", err)
			errs = append(errs, err)
			continue
		}
		m.retire(e)
	}

	m.gate.Unlock()

	m.mu.Lock()
	m.state = stateDone
	waiters := m.waiters
	m.waiters = nil
	m.mu.Unlock()

	for _, w := range waiters {
		close(w)
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", errUtils.ErrRollbackIncomplete, errors.Join(errs...))
	}
	return nil
}

// Undo reverses the scope as one step of its parent.
func (m *Manager) Undo() error {
	return m.UndoAll()
}

func (m *Manager) String() string {
	return "scope " + m.name
}

// Commit closes the scope without reversing it. Journal records of the scope and its children
// are retired. Committing a scope that is already closed is a no-op.
func (m *Manager) Commit() {
	m.gate.Lock()
	m.mu.Lock()
	if m.state != stateOpen {
		m.mu.Unlock()
		m.gate.Unlock()
		return
	}
	m.state = stateCommitted
	entries := m.entries
	m.entries = nil
	m.mu.Unlock()
	m.gate.Unlock()

	for _, e := range entries {
		if child, ok := e.action.(*Manager); ok {
			child.Commit()
			continue
		}
		m.retire(e)
	}
	log.Debug("Committed scope", "scope", m.name, "actions", len(entries))
}

func (m *Manager) retire(e entry) {
	if !e.journaled || m.journal == nil {
		return
	}
	if err := m.journal.Retire(e.journalID); err != nil {
		log.Warn("Failed to retire journal record", "scope", m.name, "id", e.journalID, "error", err)
	}
}
