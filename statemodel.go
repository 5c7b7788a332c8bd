package gohelix

import (
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

// TransitionHandler runs the user logic for one (fromState, toState) edge.
// It receives the full transition message so it can read any field the
// controller attached, not just the partition name.
type TransitionHandler func(message *Record) error

// Transition binds one (fromState, toState) edge to the handler that
// services it. Declared as a plain struct (rather than a method named by
// convention) so the from/to pair is a first-class, inspectable value
// instead of being encoded into a method name.
type Transition struct {
	FromState string
	ToState   string
	Handler   TransitionHandler
}

type transitionKey struct {
	from, to string
}

func normalizeState(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// StateModel resolves (fromState, toState) pairs to handlers via a static
// map built at construction time. This replaces the source's
// getattr(self, 'on_become_'+to+'_from_'+from) dynamic dispatch with an
// explicit, statically checkable table; the on-no-match fallback plays the
// role of the source's AttributeError path.
type StateModel struct {
	transitions map[transitionKey]TransitionHandler
	fallback    TransitionHandler

	mu            sync.RWMutex
	currentStates map[string]string // partition -> state
}

// DefaultInitialState is the state assumed for a partition before any
// transition message has been processed for it.
const DefaultInitialState = "OFFLINE"

// NewStateModel builds a StateModel from an ordered transition table. Later
// entries for the same (from, to) pair win, so callers can override
// individual edges while reusing a base table.
func NewStateModel(transitions []Transition) *StateModel {
	m := &StateModel{
		transitions:   make(map[transitionKey]TransitionHandler, len(transitions)),
		currentStates: make(map[string]string),
	}
	for _, t := range transitions {
		m.transitions[transitionKey{normalizeState(t.FromState), normalizeState(t.ToState)}] = t.Handler
	}
	return m
}

// WithFallback sets the handler invoked when no (from, to) entry matches.
// Returns m so it chains off NewStateModel.
func (m *StateModel) WithFallback(handler TransitionHandler) *StateModel {
	m.fallback = handler
	return m
}

// HandlerFor resolves the handler for a (fromState, toState) edge, falling
// back to the model's default handler if set.
func (m *StateModel) HandlerFor(fromState, toState string) (TransitionHandler, error) {
	key := transitionKey{normalizeState(fromState), normalizeState(toState)}
	if h, ok := m.transitions[key]; ok {
		return h, nil
	}
	if m.fallback != nil {
		return m.fallback, nil
	}
	return nil, fmt.Errorf("no transition handler registered for %s -> %s", fromState, toState)
}

// CurrentState returns the state last recorded for partition, or
// DefaultInitialState if none has been recorded yet.
func (m *StateModel) CurrentState(partition string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.currentStates[partition]; ok {
		return s
	}
	return DefaultInitialState
}

// SetCurrentState records the in-memory state for partition after a
// transition has been applied.
func (m *StateModel) SetCurrentState(partition, state string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currentStates[partition] = state
}

// DropPartition forgets a partition's in-memory state, called after a
// DROPPED transition removes it from the coordination service entirely.
func (m *StateModel) DropPartition(partition string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.currentStates, partition)
}

// StateModelFactory builds a fresh StateModel for a given resource name. A
// Participant registers one factory per state model definition name, and
// the executor lazily creates one StateModel per (resource, partition) the
// first time a message arrives for it.
type StateModelFactory func(resourceName string) *StateModel

// stateModelRegistry lazily creates and caches one StateModel per key,
// deduplicating concurrent creation requests for the same key with
// singleflight so two messages racing in for the same new partition don't
// construct two StateModels and silently lose one's state.
type stateModelRegistry struct {
	factory StateModelFactory

	mu     sync.RWMutex
	models map[string]*StateModel

	group singleflight.Group
}

func newStateModelRegistry(factory StateModelFactory) *stateModelRegistry {
	return &stateModelRegistry{
		factory: factory,
		models:  make(map[string]*StateModel),
	}
}

func (r *stateModelRegistry) getOrCreate(resourceName, partitionName string) *StateModel {
	key := resourceName + "|" + partitionName

	r.mu.RLock()
	if m, ok := r.models[key]; ok {
		r.mu.RUnlock()
		return m
	}
	r.mu.RUnlock()

	v, _, _ := r.group.Do(key, func() (interface{}, error) {
		r.mu.RLock()
		if m, ok := r.models[key]; ok {
			r.mu.RUnlock()
			return m, nil
		}
		r.mu.RUnlock()

		m := r.factory(resourceName)

		r.mu.Lock()
		r.models[key] = m
		r.mu.Unlock()

		return m, nil
	})

	return v.(*StateModel)
}
