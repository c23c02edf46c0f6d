package domain

import "time"

// DefaultPatientStatus is applied when a patient is created without a status.
const DefaultPatientStatus = "Scheduled"

// Conventional chat senders. Any non-empty sender is accepted.
const (
	SenderUser = "user"
	SenderBot  = "bot"
)

// Patient is a clinic appointment/treatment record.
type Patient struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Age       int       `json:"age"`
	Date      time.Time `json:"date"`
	Treatment string    `json:"treatment"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// PatientChanges holds the mutable fields of a patient.
type PatientChanges struct {
	Name      string
	Age       int
	Treatment string
	Status    string
}

type ChatMessage struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Sender    string    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
}

// DashboardStats are the counters shown on the dashboard cards.
type DashboardStats struct {
	TodayAppointments int `json:"todayAppointments"`
	PendingReports    int `json:"pendingReports"`
	NewPatients       int `json:"newPatients"`
}
