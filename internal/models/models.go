package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Роли пользователей системы.
const (
	RoleAdmin        = "admin"
	RoleDoctor       = "doctor"
	RolePharmacist   = "pharmacist"
	RoleReceptionist = "receptionist"
	RolePatient      = "patient"
)

type User struct {
	gorm.Model
	Name         string `gorm:"not null"`
	Surname      string `gorm:"not null"`
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	Role         string `gorm:"not null;default:patient"` // admin, doctor, pharmacist, receptionist, patient
}

type Patient struct {
	ID        string `gorm:"type:uuid;primaryKey"`
	UserID    uint   `gorm:"index"`
	FirstName string `gorm:"not null"`
	LastName  string `gorm:"not null"`
	Phone     string `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (p *Patient) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

type Doctor struct {
	ID              string    `gorm:"type:uuid;primaryKey"`
	UserID          uint      `gorm:"index"`
	Name            string    `gorm:"not null"`
	Specialty       string    `gorm:"not null"`
	RoomNumber      string    // Номер кабинета
	Status          string    `gorm:"not null;default:available"` // available, with_patient, break, lunch, meeting, leave
	StatusUpdatedAt time.Time // Время последней смены статуса
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (d *Doctor) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	return nil
}

// Appointment — приём пациента у врача (заранее записанный или walk-in).
type Appointment struct {
	ID            string    `gorm:"type:uuid;primaryKey"`
	PatientID     string    `gorm:"type:uuid;index;not null"`
	Patient       Patient   `gorm:"foreignKey:PatientID"`
	DoctorID      string    `gorm:"type:uuid;index;not null"`
	Doctor        Doctor    `gorm:"foreignKey:DoctorID"`
	ScheduledTime time.Time `gorm:"index;not null"`                // Для walk-in — время прихода
	Status        string    `gorm:"index;not null;default:booked"` // booked, confirmed, checked_in, in_progress, completed, cancelled
	// Триаж: 1 — самый срочный, 5 — наименее срочный. NULL — триаж ещё не проводился.
	TriageSeverity       *int `gorm:"check:triage_severity BETWEEN 1 AND 5"`
	IsWalkIn             bool `gorm:"not null;default:false"`
	QueuePosition        int  // Производное поле, пересчитывается ядром очереди
	EstimatedWaitMinutes int  // Производное поле, пересчитывается ядром очереди
	PrimarySymptom       string
	Reason               string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

func (a *Appointment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

type Notification struct {
	ID        string `gorm:"type:uuid;primaryKey"`
	UserID    uint   `gorm:"index;not null"`
	Title     string `gorm:"not null"`
	Message   string `gorm:"not null"`
	Link      string
	IsRead    bool `gorm:"not null;default:false"`
	CreatedAt time.Time
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	return nil
}
