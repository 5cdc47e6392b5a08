package service

import (
	"sync"

	"yobot/internal/model"
)

// StateTracker holds the per-sender handoff state for the process lifetime.
// Lock serializes whole turns for one sender while other senders proceed.
type StateTracker struct {
	mu     sync.RWMutex
	states map[string]model.ConversationState
	locks  *keyedMutex
}

// NewStateTracker creates an empty tracker; unknown senders are in NONE
func NewStateTracker() *StateTracker {
	return &StateTracker{
		states: make(map[string]model.ConversationState),
		locks:  newKeyedMutex(),
	}
}

// Lock acquires the sender's turn lock and returns its release function
func (t *StateTracker) Lock(sender string) (unlock func()) {
	return t.locks.lock(sender)
}

// Get returns the sender's state
func (t *StateTracker) Get(sender string) model.ConversationState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if s, ok := t.states[sender]; ok {
		return s
	}
	return model.StateNone
}

// Set stores the sender's state; NONE removes the entry
func (t *StateTracker) Set(sender string, state model.ConversationState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if state == model.StateNone {
		delete(t.states, sender)
		return
	}
	t.states[sender] = state
}

// Pending returns how many senders are waiting to give a property id
func (t *StateTracker) Pending() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.states)
}

// keyedMutex hands out one mutex per key and frees it when nobody holds or waits on it
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refMutex)}
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.Unlock()
			k.mu.Lock()
			m.refs--
			if m.refs == 0 {
				delete(k.locks, key)
			}
			k.mu.Unlock()
		})
	}
}

func (k *keyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
