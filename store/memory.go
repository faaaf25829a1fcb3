package store

import (
	"context"
	"sync"
)

// MemoryStore 进程内存储(测试和单机演示用)
type MemoryStore struct {
	mu     sync.RWMutex
	nextID int64
	users  map[string]*User
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[string]*User)}
}

func (m *MemoryStore) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[username]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *MemoryStore) CreateUser(ctx context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.Username]; ok {
		return ErrExists
	}
	m.nextID++
	u.ID = m.nextID
	cp := *u
	m.users[u.Username] = &cp
	return nil
}

func (m *MemoryStore) Close() error { return nil }
