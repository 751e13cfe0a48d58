package ws

import (
	"strconv"
	"time"
)

// Канонические топики рассылки.
const (
	TopicPatients  = "patients"
	TopicDoctors   = "doctors"
	TopicAdmin     = "admin"
	TopicPharmacy  = "pharmacy"
	TopicReception = "reception"
)

// UserTopic — персональный топик пользователя для точечных уведомлений.
func UserTopic(userID uint) string {
	return "user:" + strconv.FormatUint(uint64(userID), 10)
}

// Event — одно координационное событие. Набор событий закрыт: каждое знает
// свой тип и топики назначения, произвольных строковых событий нет.
type Event interface {
	EventType() string
	Topics() []string
}

// QueuePosition — элемент полезной нагрузки QUEUE_UPDATED.
type QueuePosition struct {
	EncounterID          string `json:"encounter_id"`
	Position             int    `json:"position"`
	EstimatedWaitMinutes int    `json:"estimated_wait_minutes"`
}

type DoctorStatusChanged struct {
	DoctorID  string    `json:"doctor_id"`
	NewStatus string    `json:"new_status"`
	ChangedAt time.Time `json:"changed_at"`
}

func (DoctorStatusChanged) EventType() string { return "DOCTOR_STATUS_CHANGED" }
func (DoctorStatusChanged) Topics() []string {
	return []string{TopicPatients, TopicAdmin, TopicPharmacy, TopicReception}
}

type QueueUpdated struct {
	DoctorID string          `json:"doctor_id"`
	Entries  []QueuePosition `json:"entries"`
}

func (QueueUpdated) EventType() string { return "QUEUE_UPDATED" }
func (QueueUpdated) Topics() []string {
	return []string{TopicAdmin, TopicPatients, TopicDoctors, TopicReception}
}

type PatientCheckedIn struct {
	EncounterID string `json:"encounter_id"`
	DoctorID    string `json:"doctor_id"`
}

func (PatientCheckedIn) EventType() string { return "PATIENT_CHECKED_IN" }
func (PatientCheckedIn) Topics() []string  { return []string{TopicDoctors, TopicAdmin} }

type PatientReady struct {
	EncounterID string `json:"encounter_id"`
	DoctorID    string `json:"doctor_id"`
}

func (PatientReady) EventType() string { return "PATIENT_READY" }
func (PatientReady) Topics() []string  { return []string{TopicDoctors, TopicAdmin} }

type CallNextPatient struct {
	DoctorID    string `json:"doctor_id"`
	EncounterID string `json:"encounter_id"`
}

func (CallNextPatient) EventType() string { return "CALL_NEXT_PATIENT" }
func (CallNextPatient) Topics() []string  { return []string{TopicReception, TopicAdmin} }

type ConsultationComplete struct {
	EncounterID string `json:"encounter_id"`
	DoctorID    string `json:"doctor_id"`
}

func (ConsultationComplete) EventType() string { return "CONSULTATION_COMPLETE" }
func (ConsultationComplete) Topics() []string {
	return []string{TopicReception, TopicAdmin, TopicPatients}
}

type Notification struct {
	UserID  uint   `json:"-"`
	Title   string `json:"title"`
	Message string `json:"message"`
	Link    string `json:"link,omitempty"`
}

func (Notification) EventType() string  { return "NOTIFICATION" }
func (n Notification) Topics() []string { return []string{UserTopic(n.UserID)} }
