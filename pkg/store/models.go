package store

import "time"

// GORM models used for persistence.
type PatientModel struct {
	ID        string    `gorm:"primaryKey"`
	Name      string    `gorm:"not null"`
	Age       int       `gorm:"not null"`
	Date      time.Time `gorm:"not null;index"`
	Treatment string    `gorm:"not null"`
	Status    string    `gorm:"not null;index"`
	CreatedAt time.Time `gorm:"not null;index;autoCreateTime:false"`
}

type ChatMessageModel struct {
	ID        string    `gorm:"primaryKey"`
	Message   string    `gorm:"type:text;not null"`
	Sender    string    `gorm:"not null"`
	Timestamp time.Time `gorm:"not null;index"`
}
