package redis

import (
	"context"
	"sync"
	"time"

	termcore "github.com/clinterm/termcore"
)

type mockRedis struct {
	mu        sync.Mutex
	marshaler termcore.Marshaler
	lookup    map[string][]byte
}

// NewMockClient returns an in-process Cache, used in standalone deployments
// and tests.
func NewMockClient() termcore.Cache {
	return &mockRedis{
		marshaler: termcore.NewMarshaler(),
		lookup:    make(map[string][]byte),
	}
}

func (m *mockRedis) Ping(ctx context.Context) error {
	return nil
}

func (m *mockRedis) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookup = make(map[string][]byte)
	return nil
}

func (m *mockRedis) SetStruct(ctx context.Context, key string, value any, expiration time.Duration) error {
	if expiration < 0 {
		return nil
	}
	ba, err := m.marshaler.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookup[key] = ba
	return nil
}

func (m *mockRedis) GetStruct(ctx context.Context, key string, target any) (bool, error) {
	m.mu.Lock()
	ba, ok := m.lookup[key]
	m.mu.Unlock()
	if !ok {
		return false, nil
	}
	if err := m.marshaler.Unmarshal(ba, target); err != nil {
		return false, err
	}
	return true, nil
}

func (m *mockRedis) Delete(ctx context.Context, keys ...string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := true
	for _, k := range keys {
		if _, ok := m.lookup[k]; !ok {
			all = false
			continue
		}
		delete(m.lookup, k)
	}
	return all, nil
}
