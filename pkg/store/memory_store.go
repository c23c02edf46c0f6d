package store

import (
	"context"
	"sort"
	"sync"

	"ayursutra/pkg/domain"
)

// MemoryStore keeps records in-process. It is used when no database URL is
// configured and as the store behind app and server tests.
type MemoryStore struct {
	mu       sync.RWMutex
	patients map[string]domain.Patient
	orders   []string // patient IDs in insertion order
	chats    []domain.ChatMessage
	down     error
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		patients: make(map[string]domain.Patient),
	}
}

// SetUnavailable makes every subsequent call fail with ErrUnavailable wrapping
// cause; nil restores normal operation.
func (m *MemoryStore) SetUnavailable(cause error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.down = cause
}

func (m *MemoryStore) check(op string) error {
	if m.down != nil {
		return unavailable(op, m.down)
	}
	return nil
}

// InsertPatient stores a new patient, assigning an id when none is set.
func (m *MemoryStore) InsertPatient(_ context.Context, p domain.Patient) (domain.Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("insert patient"); err != nil {
		return domain.Patient{}, err
	}
	if p.ID == "" {
		p.ID = NewID()
	}
	p.Date = p.Date.UTC()
	p.CreatedAt = p.CreatedAt.UTC()
	if _, exists := m.patients[p.ID]; !exists {
		m.orders = append(m.orders, p.ID)
	}
	m.patients[p.ID] = p
	return p, nil
}

// GetPatient retrieves a patient by ID.
func (m *MemoryStore) GetPatient(_ context.Context, id string) (domain.Patient, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check("get patient"); err != nil {
		return domain.Patient{}, false, err
	}
	p, ok := m.patients[id]
	return p, ok, nil
}

// ListPatients returns matching patients sorted by CreatedAt. Equal timestamps
// keep insertion order (reversed for descending sorts).
func (m *MemoryStore) ListPatients(_ context.Context, q PatientQuery) ([]domain.Patient, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check("list patients"); err != nil {
		return nil, err
	}
	res := make([]domain.Patient, 0, len(m.orders))
	for _, id := range m.orders {
		if p, ok := m.patients[id]; ok && q.Filter.matches(p) {
			res = append(res, p)
		}
	}
	if q.Sort == CreatedDesc {
		for i, j := 0, len(res)-1; i < j; i, j = i+1, j-1 {
			res[i], res[j] = res[j], res[i]
		}
		sort.SliceStable(res, func(i, j int) bool {
			return res[i].CreatedAt.After(res[j].CreatedAt)
		})
		return res, nil
	}
	sort.SliceStable(res, func(i, j int) bool {
		return res[i].CreatedAt.Before(res[j].CreatedAt)
	})
	return res, nil
}

// UpdatePatient rewrites the mutable fields of a patient.
func (m *MemoryStore) UpdatePatient(_ context.Context, id string, changes domain.PatientChanges) (domain.Patient, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("update patient"); err != nil {
		return domain.Patient{}, false, err
	}
	p, ok := m.patients[id]
	if !ok {
		return domain.Patient{}, false, nil
	}
	p.Name = changes.Name
	p.Age = changes.Age
	p.Treatment = changes.Treatment
	p.Status = changes.Status
	m.patients[id] = p
	return p, true, nil
}

// DeletePatient removes a patient and reports whether it existed.
func (m *MemoryStore) DeletePatient(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("delete patient"); err != nil {
		return false, err
	}
	if _, ok := m.patients[id]; !ok {
		return false, nil
	}
	delete(m.patients, id)
	filtered := m.orders[:0]
	for _, item := range m.orders {
		if item != id {
			filtered = append(filtered, item)
		}
	}
	m.orders = filtered
	return true, nil
}

// CountPatients returns the number of patients matching f.
func (m *MemoryStore) CountPatients(_ context.Context, f PatientFilter) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check("count patients"); err != nil {
		return 0, err
	}
	n := 0
	for _, p := range m.patients {
		if f.matches(p) {
			n++
		}
	}
	return n, nil
}

// AppendChatMessage records a chat message.
func (m *MemoryStore) AppendChatMessage(_ context.Context, msg domain.ChatMessage) (domain.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("append chat message"); err != nil {
		return domain.ChatMessage{}, err
	}
	if msg.ID == "" {
		msg.ID = NewID()
	}
	msg.Timestamp = msg.Timestamp.UTC()
	m.chats = append(m.chats, msg)
	return msg, nil
}

// ListChatMessages returns the chat log oldest first; ties keep append order.
func (m *MemoryStore) ListChatMessages(_ context.Context) ([]domain.ChatMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check("list chat messages"); err != nil {
		return nil, err
	}
	res := make([]domain.ChatMessage, len(m.chats))
	copy(res, m.chats)
	sort.SliceStable(res, func(i, j int) bool {
		return res[i].Timestamp.Before(res[j].Timestamp)
	})
	return res, nil
}

func (m *MemoryStore) Ping(context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.check("ping")
}

func (m *MemoryStore) Close() error { return nil }
