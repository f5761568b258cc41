package repository

import (
	"context"
	"sync"
)

// MemoryStore keeps every collection in memory. Each collection has its own
// lock so id assignment in one never waits on the other.
type MemoryStore struct {
	locks  map[Collection]*sync.RWMutex
	tables map[Collection]table
}

func NewMemoryStore() *MemoryStore {
	m := &MemoryStore{
		locks:  make(map[Collection]*sync.RWMutex, len(Collections)),
		tables: make(map[Collection]table, len(Collections)),
	}
	for _, c := range Collections {
		m.locks[c] = &sync.RWMutex{}
		m.tables[c] = table{}
	}
	return m
}

func (m *MemoryStore) Get(_ context.Context, c Collection, id int, out any) error {
	if err := checkCollection(c); err != nil {
		return err
	}
	m.locks[c].RLock()
	defer m.locks[c].RUnlock()
	return m.tables[c].get(c, id, out)
}

func (m *MemoryStore) Insert(_ context.Context, c Collection, rec any) (int, error) {
	if err := checkCollection(c); err != nil {
		return 0, err
	}
	m.locks[c].Lock()
	defer m.locks[c].Unlock()
	return m.tables[c].insert(rec)
}

func (m *MemoryStore) Update(_ context.Context, c Collection, id int, fields Fields) error {
	if err := checkCollection(c); err != nil {
		return err
	}
	m.locks[c].Lock()
	defer m.locks[c].Unlock()
	return m.tables[c].update(c, id, fields)
}

func (m *MemoryStore) List(_ context.Context, c Collection, out any) error {
	if err := checkCollection(c); err != nil {
		return err
	}
	m.locks[c].RLock()
	defer m.locks[c].RUnlock()
	return m.tables[c].list(out)
}

func (m *MemoryStore) Ping(context.Context) error  { return nil }
func (m *MemoryStore) Close(context.Context) error { return nil }
