package state

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
)

// MemoryStore is a process-local Store used when no Redis backend is
// configured. States are deep-copied through JSON so callers never share
// slices or maps with the store.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (m *MemoryStore) Load(_ context.Context, sessionID string) (*ConversationState, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrInvalidSession
	}

	m.mu.RLock()
	raw, ok := m.data[sessionID]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrStateNotFound
	}

	var conv ConversationState
	if err := json.Unmarshal(raw, &conv); err != nil {
		return nil, err
	}
	conv.EnsureSlots()
	return &conv, nil
}

func (m *MemoryStore) Save(_ context.Context, conv *ConversationState) error {
	if conv == nil {
		return ErrNilState
	}
	if strings.TrimSpace(conv.SessionID) == "" {
		return ErrInvalidSession
	}

	raw, err := json.Marshal(conv)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.data[conv.SessionID] = raw
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, sessionID string) (bool, error) {
	if strings.TrimSpace(sessionID) == "" {
		return false, ErrInvalidSession
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, existed := m.data[sessionID]
	delete(m.data, sessionID)
	return existed, nil
}

func (m *MemoryStore) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data), nil
}
