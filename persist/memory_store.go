package persist

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps records in process memory, partitioned by tenant and
// namespace. Intended for tests and embedded single-process use; contents
// are lost when the process exits.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]map[string][]byte // tenant/namespace -> id -> record
}

// NewMemoryStore initializes an empty in-memory backend.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]map[string][]byte),
	}
}

func (m *MemoryStore) partition(tenantID, namespace string) string {
	return tenantID + "/" + namespace
}

func (m *MemoryStore) load(_ context.Context, tenantID, namespace, id string) ([]byte, error) {
	if err := validateTenantID(tenantID); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	records, ok := m.data[m.partition(tenantID, namespace)]
	if !ok {
		return nil, ErrRecordNotFound
	}
	data, ok := records[id]
	if !ok {
		return nil, ErrRecordNotFound
	}

	// Copy out so callers cannot mutate stored bytes
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (m *MemoryStore) save(_ context.Context, tenantID, namespace, id string, data []byte) error {
	if err := validateTenantID(tenantID); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	part := m.partition(tenantID, namespace)
	if m.data[part] == nil {
		m.data[part] = make(map[string][]byte)
	}
	stored := make([]byte, len(data))
	copy(stored, data)
	m.data[part][id] = stored
	return nil
}

func (m *MemoryStore) delete(_ context.Context, tenantID, namespace, id string) error {
	if err := validateTenantID(tenantID); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	records, ok := m.data[m.partition(tenantID, namespace)]
	if !ok {
		return ErrRecordNotFound
	}
	if _, ok = records[id]; !ok {
		return ErrRecordNotFound
	}
	delete(records, id)
	return nil
}

func (m *MemoryStore) list(_ context.Context, tenantID, namespace string) ([]string, error) {
	if err := validateTenantID(tenantID); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	records := m.data[m.partition(tenantID, namespace)]
	ids := make([]string, 0, len(records))
	for id := range records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *MemoryStore) ping(_ context.Context) error { return nil }

func (m *MemoryStore) close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = make(map[string]map[string][]byte)
	return nil
}

func (m *MemoryStore) storeType() string { return string(StoreTypeMemory) }
