package registry

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-memory Store used in tests and single-process setups.
type MemoryStore struct {
	mu    sync.RWMutex
	bills map[string]*BillRecord
}

// NewMemoryStore creates an empty in-memory registry.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{bills: make(map[string]*BillRecord)}
}

// Put implements Store.
func (s *MemoryStore) Put(_ context.Context, record *BillRecord) error {
	record.ApplyDefaults()

	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *record
	s.bills[record.BillSerial] = &clone
	return nil
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, serial string) (*BillRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.bills[serial]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *record
	return &clone, nil
}

// GetByOwner implements Store.
func (s *MemoryStore) GetByOwner(_ context.Context, address string) ([]*BillRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var records []*BillRecord
	for _, record := range s.bills {
		if record.UserAddress == address {
			clone := *record
			records = append(records, &clone)
		}
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Timestamp > records[j].Timestamp
	})
	return records, nil
}
