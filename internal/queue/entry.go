package queue

import "time"

// Статусы приёма.
const (
	StatusBooked     = "booked"
	StatusConfirmed  = "confirmed"
	StatusCheckedIn  = "checked_in"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

// Entry — один ожидающий приём в живой очереди врача.
type Entry struct {
	ID        string
	PatientID string
	DoctorID  string
	// Severity — триаж 1..5 (1 — самый срочный). nil — триаж не проводился,
	// такая запись в живую очередь не попадает до регистрации прихода.
	Severity *int
	// ScheduledAt — назначенное время приёма; для walk-in — время прихода.
	// Используется как tie-break при равном severity и как база оценки ожидания.
	ScheduledAt time.Time
	IsWalkIn    bool
	Status      string
	// Position и EstimatedWaitMinutes — производные поля, пересчитываются
	// менеджером при каждой мутации очереди.
	Position             int
	EstimatedWaitMinutes int
	// StartedAt — момент перехода в in_progress, нужен для скользящего
	// среднего длительности приёма.
	StartedAt *time.Time
}

func (e *Entry) clone() *Entry {
	c := *e
	if e.Severity != nil {
		s := *e.Severity
		c.Severity = &s
	}
	if e.StartedAt != nil {
		t := *e.StartedAt
		c.StartedAt = &t
	}
	return &c
}

// isLive сообщает, занимает ли запись позицию в живой очереди.
func isLive(status string) bool {
	switch status {
	case StatusBooked, StatusConfirmed, StatusCheckedIn:
		return true
	}
	return false
}

func validSeverity(s *int) bool {
	return s != nil && *s >= 1 && *s <= 5
}
