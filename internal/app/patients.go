package app

import (
	"context"
	"strings"
	"time"

	"ayursutra/pkg/domain"
	"ayursutra/pkg/store"
)

// CreatePatientInput carries a new appointment. Nil Date and empty Status get
// defaults; a nil Age is a validation error.
type CreatePatientInput struct {
	Name      string
	Age       *int
	Date      *time.Time
	Treatment string
	Status    string
}

// UpdatePatientInput carries the four editable fields; all are required.
type UpdatePatientInput struct {
	Name      string
	Age       *int
	Treatment string
	Status    string
}

// CreatePatient validates input, applies defaults and stores the record.
func (a *App) CreatePatient(ctx context.Context, in CreatePatientInput) (domain.Patient, error) {
	name := strings.TrimSpace(in.Name)
	treatment := strings.TrimSpace(in.Treatment)
	if err := validatePatientFields(name, in.Age, treatment); err != nil {
		return domain.Patient{}, err
	}
	now := a.now().UTC()
	date := now
	if in.Date != nil && !in.Date.IsZero() {
		date = in.Date.UTC()
	}
	status := strings.TrimSpace(in.Status)
	if status == "" {
		status = domain.DefaultPatientStatus
	}
	return a.store.InsertPatient(ctx, domain.Patient{
		Name:      name,
		Age:       *in.Age,
		Date:      date,
		Treatment: treatment,
		Status:    status,
		CreatedAt: now,
	})
}

// GetPatient returns one patient or ErrPatientNotFound.
func (a *App) GetPatient(ctx context.Context, id string) (domain.Patient, error) {
	p, ok, err := a.store.GetPatient(ctx, id)
	if err != nil {
		return domain.Patient{}, err
	}
	if !ok {
		return domain.Patient{}, ErrPatientNotFound
	}
	return p, nil
}

// ListPatients returns every patient, newest createdAt first.
func (a *App) ListPatients(ctx context.Context) ([]domain.Patient, error) {
	return a.store.ListPatients(ctx, store.PatientQuery{Sort: store.CreatedDesc})
}

// UpdatePatient replaces name, age, treatment and status. id, date and
// createdAt are never touched.
func (a *App) UpdatePatient(ctx context.Context, id string, in UpdatePatientInput) (domain.Patient, error) {
	name := strings.TrimSpace(in.Name)
	treatment := strings.TrimSpace(in.Treatment)
	if err := validatePatientFields(name, in.Age, treatment); err != nil {
		return domain.Patient{}, err
	}
	status := strings.TrimSpace(in.Status)
	if status == "" {
		return domain.Patient{}, invalid("status", "is required")
	}
	p, ok, err := a.store.UpdatePatient(ctx, id, domain.PatientChanges{
		Name:      name,
		Age:       *in.Age,
		Treatment: treatment,
		Status:    status,
	})
	if err != nil {
		return domain.Patient{}, err
	}
	if !ok {
		return domain.Patient{}, ErrPatientNotFound
	}
	return p, nil
}

// DeletePatient removes a patient or returns ErrPatientNotFound.
func (a *App) DeletePatient(ctx context.Context, id string) error {
	deleted, err := a.store.DeletePatient(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrPatientNotFound
	}
	return nil
}

func validatePatientFields(name string, age *int, treatment string) error {
	if name == "" {
		return invalid("name", "is required")
	}
	if age == nil {
		return invalid("age", "is required")
	}
	if *age < 0 {
		return invalid("age", "must be a non-negative integer")
	}
	if treatment == "" {
		return invalid("treatment", "is required")
	}
	return nil
}
