package queue

import (
	"fmt"
	"time"
)

// Статусы врача.
const (
	DoctorAvailable   = "available"
	DoctorWithPatient = "with_patient"
	DoctorBreak       = "break"
	DoctorLunch       = "lunch"
	DoctorMeeting     = "meeting"
	DoctorLeave       = "leave"
)

// operatorStatuses — статусы, которые оператор может выставить явно.
// with_patient сюда не входит: в него переводит только менеджер очереди
// при старте приёма, и выходит из него тоже только менеджер.
var operatorStatuses = map[string]bool{
	DoctorAvailable: true,
	DoctorBreak:     true,
	DoctorLunch:     true,
	DoctorMeeting:   true,
	DoctorLeave:     true,
}

// DoctorState — текущее рабочее состояние одного врача.
// Экземпляр принадлежит менеджеру очереди врача и меняется только под его
// блокировкой.
type DoctorState struct {
	Status    string
	ChangedAt time.Time
}

// NewDoctorState создаёт состояние врача. Пустой статус означает available.
func NewDoctorState(status string, changedAt time.Time) *DoctorState {
	if status == "" {
		status = DoctorAvailable
	}
	return &DoctorState{Status: status, ChangedAt: changedAt}
}

// Transition — явный операторский перевод статуса. Неизвестный статус и
// with_patient отклоняются как валидационная ошибка, уход в leave во время
// активного приёма — как конфликт. Недопустимый переход никогда молча не
// подменяет состояние.
func (s *DoctorState) Transition(to string, now time.Time) error {
	if !operatorStatuses[to] {
		return fmt.Errorf("%w: недопустимый статус врача %q", ErrValidation, to)
	}
	if to == DoctorLeave && s.Status == DoctorWithPatient {
		return fmt.Errorf("%w: нельзя уйти в leave во время приёма", ErrConflict)
	}
	s.set(to, now)
	return nil
}

// set — внутренний переход без проверок, единственная точка записи статуса.
func (s *DoctorState) set(to string, now time.Time) {
	s.Status = to
	s.ChangedAt = now
}
