package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"ayursutra/pkg/domain"
)

// ErrUnavailable wraps every failure of the backing database.
var ErrUnavailable = errors.New("storage unavailable")

// SortOrder controls the createdAt ordering of patient listings.
type SortOrder int

const (
	CreatedDesc SortOrder = iota
	CreatedAsc
)

// PatientFilter narrows patient queries. Zero values mean "no constraint";
// time thresholds are inclusive.
type PatientFilter struct {
	DateFrom    time.Time
	Status      string
	CreatedFrom time.Time
}

// PatientQuery combines a filter with a sort order.
type PatientQuery struct {
	Filter PatientFilter
	Sort   SortOrder
}

// Store defines persistence operations for patients and chat messages.
type Store interface {
	// patients
	InsertPatient(ctx context.Context, p domain.Patient) (domain.Patient, error)
	GetPatient(ctx context.Context, id string) (domain.Patient, bool, error)
	ListPatients(ctx context.Context, q PatientQuery) ([]domain.Patient, error)
	UpdatePatient(ctx context.Context, id string, changes domain.PatientChanges) (domain.Patient, bool, error)
	DeletePatient(ctx context.Context, id string) (bool, error)
	CountPatients(ctx context.Context, f PatientFilter) (int, error)

	// chat log
	AppendChatMessage(ctx context.Context, msg domain.ChatMessage) (domain.ChatMessage, error)
	ListChatMessages(ctx context.Context) ([]domain.ChatMessage, error)

	Ping(ctx context.Context) error
	Close() error
}

func (f PatientFilter) matches(p domain.Patient) bool {
	if !f.DateFrom.IsZero() && p.Date.Before(f.DateFrom) {
		return false
	}
	if f.Status != "" && p.Status != f.Status {
		return false
	}
	if !f.CreatedFrom.IsZero() && p.CreatedAt.Before(f.CreatedFrom) {
		return false
	}
	return true
}

var (
	_ Store = (*GormStore)(nil)
	_ Store = (*MemoryStore)(nil)
)

// Open returns a database-backed store for dsn, or an in-memory store when
// dsn is empty.
func Open(dsn string) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return NewMemoryStore(), nil
	}
	return NewGormStore(dsn)
}
