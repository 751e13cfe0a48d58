package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewDoctorStateDefaultsToAvailable(t *testing.T) {
	now := time.Now()
	st := NewDoctorState("", now)
	assert.Equal(t, DoctorAvailable, st.Status)
	assert.Equal(t, now, st.ChangedAt)
}

func TestTransitionOperatorStatuses(t *testing.T) {
	now := time.Now()
	st := NewDoctorState(DoctorAvailable, now)

	for _, to := range []string{DoctorBreak, DoctorLunch, DoctorMeeting, DoctorLeave, DoctorAvailable} {
		later := now.Add(time.Minute)
		assert.NoError(t, st.Transition(to, later))
		assert.Equal(t, to, st.Status)
		assert.Equal(t, later, st.ChangedAt)
	}
}

func TestTransitionRejectsWithPatient(t *testing.T) {
	st := NewDoctorState(DoctorAvailable, time.Now())

	// with_patient выставляет только менеджер очереди при старте приёма.
	err := st.Transition(DoctorWithPatient, time.Now())
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, DoctorAvailable, st.Status)
}

func TestTransitionRejectsUnknownStatus(t *testing.T) {
	st := NewDoctorState(DoctorAvailable, time.Now())

	err := st.Transition("vacation", time.Now())
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, DoctorAvailable, st.Status)
}

func TestTransitionLeaveDuringConsultationRejected(t *testing.T) {
	changed := time.Now()
	st := NewDoctorState(DoctorWithPatient, changed)

	err := st.Transition(DoctorLeave, time.Now())
	assert.ErrorIs(t, err, ErrConflict)
	// Недопустимый переход не подменяет состояние молча.
	assert.Equal(t, DoctorWithPatient, st.Status)
	assert.Equal(t, changed, st.ChangedAt)

	// Break во время приёма допустим (пауза, приём продолжится).
	assert.NoError(t, st.Transition(DoctorBreak, time.Now()))
	assert.Equal(t, DoctorBreak, st.Status)
}
