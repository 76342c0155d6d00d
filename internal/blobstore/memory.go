package blobstore

import (
	"context"
	"sync"

	"autoguard/internal/errdefs"
)

// Memory keeps blobs in process. Values are copied on the way in and out.
type Memory struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{blobs: map[string][]byte{}}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.blobs[key]
	if !ok {
		return nil, errdefs.ErrBlobNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[key] = append([]byte(nil), value...)
	return nil
}

func (m *Memory) Ping(context.Context) error {
	return nil
}

func (m *Memory) Close() error {
	return nil
}
