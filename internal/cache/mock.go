package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

type entry struct {
	data    []byte
	expires time.Time
}

// MockClient is an in-process Cache used when Redis is not available
type MockClient struct {
	mu   sync.Mutex
	data map[string]entry
}

func NewMockClient() *MockClient {
	return &MockClient{data: make(map[string]entry)}
}

func (m *MockClient) GetJSON(ctx context.Context, key string, dst any) (bool, error) {
	m.mu.Lock()
	e, ok := m.data[key]
	if ok && !e.expires.IsZero() && time.Now().After(e.expires) {
		delete(m.data, key)
		ok = false
	}
	m.mu.Unlock()

	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(e.data, dst)
}

func (m *MockClient) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	e := entry{data: data}
	if ttl > 0 {
		e.expires = time.Now().Add(ttl)
	}

	m.mu.Lock()
	m.data[key] = e
	m.mu.Unlock()
	return nil
}
