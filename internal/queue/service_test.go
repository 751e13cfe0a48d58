package queue

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"medqueue/internal/ws"
)

// busRecorder собирает опубликованные события вместо реальной шины.
type busRecorder struct {
	mu     sync.Mutex
	events []ws.Event
	j      *journal
}

func (b *busRecorder) PublishEvent(e ws.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
	if b.j != nil {
		b.j.add("bus:" + e.EventType())
	}
}

func (b *busRecorder) types() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.events))
	for _, e := range b.events {
		out = append(out, e.EventType())
	}
	return out
}

func (b *busRecorder) count(eventType string) int {
	n := 0
	for _, et := range b.types() {
		if et == eventType {
			n++
		}
	}
	return n
}

func newTestService() (*Service, *memStore, *busRecorder, *journal) {
	j := &journal{}
	store := newMemStore()
	store.j = j
	bus := &busRecorder{j: j}
	return NewService(store, bus), store, bus, j
}

func TestServicePublishesAfterPersist(t *testing.T) {
	svc, _, _, j := newTestService()

	_, err := svc.Book(BookRequest{
		PatientID:     "p-1",
		DoctorID:      "doc-1",
		ScheduledTime: time.Now().Add(time.Hour),
		Severity:      sev(2),
	})
	assert.NoError(t, err)

	// Сначала запись в хранилище, затем публикация — никогда наоборот.
	assert.Equal(t, []string{"store:save", "bus:QUEUE_UPDATED"}, j.list())
}

func TestServiceBookWithTriageEntersQueue(t *testing.T) {
	svc, _, bus, _ := newTestService()

	entry, err := svc.Book(BookRequest{
		PatientID:     "p-1",
		DoctorID:      "doc-1",
		ScheduledTime: time.Now().Add(time.Hour),
		Severity:      sev(2),
	})
	assert.NoError(t, err)
	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, StatusBooked, entry.Status)

	snap, err := svc.QueueSnapshot("doc-1")
	assert.NoError(t, err)
	assert.Len(t, snap.Entries, 1)
	assert.Equal(t, entry.ID, snap.Entries[0].EncounterID)
	assert.Equal(t, 1, snap.Entries[0].Position)
	assert.Equal(t, 1, bus.count("QUEUE_UPDATED"))
}

func TestServiceBookWithoutTriageStaysOutOfQueue(t *testing.T) {
	svc, store, bus, _ := newTestService()

	entry, err := svc.Book(BookRequest{
		PatientID:     "p-1",
		DoctorID:      "doc-1",
		ScheduledTime: time.Now().Add(time.Hour),
	})
	assert.NoError(t, err)

	// Бронь сохранена, но позицию не занимает и событий не порождает.
	saved, err := store.Entry(entry.ID)
	assert.NoError(t, err)
	assert.Equal(t, StatusBooked, saved.Status)
	assert.Nil(t, saved.Severity)

	snap, err := svc.QueueSnapshot("doc-1")
	assert.NoError(t, err)
	assert.Empty(t, snap.Entries)
	assert.Empty(t, bus.types())
}

func TestServiceBookValidation(t *testing.T) {
	svc, _, _, _ := newTestService()

	_, err := svc.Book(BookRequest{DoctorID: "doc-1", ScheduledTime: time.Now()})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.Book(BookRequest{PatientID: "p-1", DoctorID: "doc-1"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.Book(BookRequest{PatientID: "p-1", DoctorID: "doc-1", ScheduledTime: time.Now(), Severity: sev(0)})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.Book(BookRequest{PatientID: "p-1", DoctorID: "unknown", ScheduledTime: time.Now(), Severity: sev(2)})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestServiceCheckInAssignsTriageOnce(t *testing.T) {
	svc, _, bus, _ := newTestService()
	now := time.Now()

	entry, err := svc.Book(BookRequest{
		PatientID:     "p-1",
		DoctorID:      "doc-1",
		ScheduledTime: now.Add(-time.Minute),
	})
	assert.NoError(t, err)

	// Без триажа регистрация прихода невозможна.
	_, err = svc.CheckIn(entry.ID, nil, now)
	assert.ErrorIs(t, err, ErrValidation)

	checked, err := svc.CheckIn(entry.ID, sev(2), now)
	assert.NoError(t, err)
	assert.Equal(t, StatusCheckedIn, checked.Status)
	assert.Equal(t, 2, *checked.Severity)

	snap, err := svc.QueueSnapshot("doc-1")
	assert.NoError(t, err)
	assert.Len(t, snap.Entries, 1)
	assert.Equal(t, 1, bus.count("PATIENT_CHECKED_IN"))
	assert.Equal(t, 1, bus.count("QUEUE_UPDATED"))

	// Повторная регистрация — конфликт, событий больше не становится.
	_, err = svc.CheckIn(entry.ID, sev(4), now)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, 1, bus.count("PATIENT_CHECKED_IN"))
}

func TestServiceCheckInBeforeScheduledTime(t *testing.T) {
	svc, _, _, _ := newTestService()
	now := time.Now()

	entry, err := svc.Book(BookRequest{
		PatientID:     "p-1",
		DoctorID:      "doc-1",
		ScheduledTime: now.Add(2 * time.Hour),
	})
	assert.NoError(t, err)

	_, err = svc.CheckIn(entry.ID, sev(3), now)
	assert.ErrorIs(t, err, ErrNotYetDue)
}

func TestServiceWalkInRequiresTriage(t *testing.T) {
	svc, _, bus, _ := newTestService()
	now := time.Now()

	_, err := svc.WalkIn("p-1", "doc-1", nil, now)
	assert.ErrorIs(t, err, ErrValidation)

	entry, err := svc.WalkIn("p-1", "doc-1", sev(1), now)
	assert.NoError(t, err)
	assert.True(t, entry.IsWalkIn)
	assert.Equal(t, StatusCheckedIn, entry.Status)
	assert.Equal(t, 1, bus.count("PATIENT_CHECKED_IN"))
	assert.Equal(t, 1, bus.count("QUEUE_UPDATED"))
}

func TestServiceConsultationLifecycle(t *testing.T) {
	svc, store, bus, j := newTestService()
	now := time.Now()

	first, err := svc.WalkIn("p-1", "doc-1", sev(1), now)
	assert.NoError(t, err)
	_, err = svc.WalkIn("p-2", "doc-1", sev(2), now.Add(time.Minute))
	assert.NoError(t, err)

	started, err := svc.StartConsultation(first.ID, now.Add(5*time.Minute))
	assert.NoError(t, err)
	assert.Equal(t, StatusInProgress, started.Status)
	assert.Equal(t, 1, bus.count("DOCTOR_STATUS_CHANGED"))
	assert.Equal(t, 0, bus.count("CONSULTATION_COMPLETE"))

	snap, err := svc.QueueSnapshot("doc-1")
	assert.NoError(t, err)
	assert.Equal(t, DoctorWithPatient, snap.DoctorStatus)
	assert.Len(t, snap.Entries, 1)

	j.mu.Lock()
	j.ops = nil
	j.mu.Unlock()

	done, err := svc.CompleteConsultation(first.ID, now.Add(25*time.Minute))
	assert.NoError(t, err)
	assert.Equal(t, StatusCompleted, done.Status)

	// Запись в хранилище строго раньше всех публикаций завершения.
	assert.Equal(t, []string{
		"store:save",
		"bus:CONSULTATION_COMPLETE",
		"bus:DOCTOR_STATUS_CHANGED",
		"bus:QUEUE_UPDATED",
	}, j.list())
	assert.Equal(t, 1, bus.count("CONSULTATION_COMPLETE"))

	saved, err := store.Entry(first.ID)
	assert.NoError(t, err)
	assert.Equal(t, StatusCompleted, saved.Status)

	snap, err = svc.QueueSnapshot("doc-1")
	assert.NoError(t, err)
	assert.Equal(t, DoctorAvailable, snap.DoctorStatus)
}

func TestServiceStartWhileWithPatientConflicts(t *testing.T) {
	svc, _, _, _ := newTestService()
	now := time.Now()

	first, err := svc.WalkIn("p-1", "doc-1", sev(2), now)
	assert.NoError(t, err)
	second, err := svc.WalkIn("p-2", "doc-1", sev(2), now.Add(time.Minute))
	assert.NoError(t, err)

	_, err = svc.StartConsultation(first.ID, now)
	assert.NoError(t, err)

	_, err = svc.StartConsultation(second.ID, now)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestServiceCancelInProgressFreesDoctor(t *testing.T) {
	svc, _, bus, _ := newTestService()
	now := time.Now()

	entry, err := svc.WalkIn("p-1", "doc-1", sev(2), now)
	assert.NoError(t, err)
	_, err = svc.StartConsultation(entry.ID, now)
	assert.NoError(t, err)

	cancelled, err := svc.Cancel(entry.ID, now.Add(10*time.Minute))
	assert.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)
	// Старт и отмена: две смены статуса врача.
	assert.Equal(t, 2, bus.count("DOCTOR_STATUS_CHANGED"))

	snap, err := svc.QueueSnapshot("doc-1")
	assert.NoError(t, err)
	assert.Equal(t, DoctorAvailable, snap.DoctorStatus)
}

func TestServiceCancelUntriagedBooking(t *testing.T) {
	svc, store, bus, _ := newTestService()

	entry, err := svc.Book(BookRequest{
		PatientID:     "p-1",
		DoctorID:      "doc-1",
		ScheduledTime: time.Now().Add(time.Hour),
	})
	assert.NoError(t, err)

	cancelled, err := svc.Cancel(entry.ID, time.Now())
	assert.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)
	assert.Empty(t, bus.types())

	saved, err := store.Entry(entry.ID)
	assert.NoError(t, err)
	assert.Equal(t, StatusCancelled, saved.Status)

	// Повторная отмена идемпотентна.
	_, err = svc.Cancel(entry.ID, time.Now())
	assert.NoError(t, err)
}

func TestServiceSetDoctorStatus(t *testing.T) {
	svc, _, bus, _ := newTestService()
	now := time.Now()

	snap, err := svc.SetDoctorStatus("doc-1", DoctorLunch, now)
	assert.NoError(t, err)
	assert.Equal(t, DoctorLunch, snap.DoctorStatus)
	assert.Equal(t, 1, bus.count("DOCTOR_STATUS_CHANGED"))

	_, err = svc.SetDoctorStatus("doc-1", "vacation", now)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = svc.SetDoctorStatus("doc-1", DoctorWithPatient, now)
	assert.ErrorIs(t, err, ErrValidation)
	// Отклонённые переходы событий не порождают.
	assert.Equal(t, 1, bus.count("DOCTOR_STATUS_CHANGED"))
}

func TestServiceCallNextDoesNotMutateQueue(t *testing.T) {
	svc, _, bus, _ := newTestService()
	now := time.Now()

	_, err := svc.CallNext("doc-1")
	assert.ErrorIs(t, err, ErrNotFound)

	first, err := svc.WalkIn("p-1", "doc-1", sev(1), now)
	assert.NoError(t, err)
	_, err = svc.WalkIn("p-2", "doc-1", sev(2), now.Add(time.Minute))
	assert.NoError(t, err)

	head, err := svc.CallNext("doc-1")
	assert.NoError(t, err)
	assert.Equal(t, first.ID, head.ID)
	assert.Equal(t, 1, bus.count("CALL_NEXT_PATIENT"))

	// Вызов не мутирует очередь: позиция уходит только при старте приёма.
	snap, err := svc.QueueSnapshot("doc-1")
	assert.NoError(t, err)
	assert.Len(t, snap.Entries, 2)
	assert.Equal(t, first.ID, snap.Entries[0].EncounterID)
}

func TestServiceMarkReady(t *testing.T) {
	svc, _, bus, _ := newTestService()
	now := time.Now()

	booked, err := svc.Book(BookRequest{
		PatientID:     "p-1",
		DoctorID:      "doc-1",
		ScheduledTime: now.Add(-time.Minute),
		Severity:      sev(3),
	})
	assert.NoError(t, err)

	// Пациент ещё не пришёл.
	_, err = svc.MarkReady(booked.ID)
	assert.ErrorIs(t, err, ErrConflict)

	_, err = svc.CheckIn(booked.ID, nil, now)
	assert.NoError(t, err)
	ready, err := svc.MarkReady(booked.ID)
	assert.NoError(t, err)
	assert.Equal(t, booked.ID, ready.ID)
	assert.Equal(t, 1, bus.count("PATIENT_READY"))
}

func TestServiceRestoreRebuildsOrdering(t *testing.T) {
	j := &journal{}
	store := newMemStore()
	store.j = j
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	// Сохранённое состояние с устаревшими позициями, как после падения процесса.
	store.entries["a"] = &Entry{ID: "a", PatientID: "p-a", DoctorID: "doc-1", Severity: sev(3), ScheduledAt: base, Status: StatusCheckedIn, Position: 1}
	store.entries["b"] = &Entry{ID: "b", PatientID: "p-b", DoctorID: "doc-1", Severity: sev(1), ScheduledAt: base.Add(time.Hour), Status: StatusConfirmed, Position: 2}
	store.entries["done"] = &Entry{ID: "done", PatientID: "p-d", DoctorID: "doc-1", Severity: sev(1), ScheduledAt: base, Status: StatusCompleted}

	bus := &busRecorder{j: j}
	svc := NewService(store, bus)
	assert.NoError(t, svc.Restore())

	snap, err := svc.QueueSnapshot("doc-1")
	assert.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, positions(snap))
	assert.Equal(t, 1, snap.Entries[0].Position)
	assert.Equal(t, 2, snap.Entries[1].Position)

	// Восстановление — не мутация: событий при старте не публикуется.
	assert.Empty(t, bus.types())
}

func TestServiceRestoreRecoversActiveConsultation(t *testing.T) {
	store := newMemStore()
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	started := base.Add(10 * time.Minute)

	// Процесс упал посреди приёма: врач сохранён как with_patient,
	// запись — как in_progress.
	store.states["doc-1"] = DoctorState{Status: DoctorWithPatient, ChangedAt: started}
	store.entries["busy"] = &Entry{ID: "busy", PatientID: "p-busy", DoctorID: "doc-1", Severity: sev(2), ScheduledAt: base, Status: StatusInProgress, StartedAt: &started}
	store.entries["next"] = &Entry{ID: "next", PatientID: "p-next", DoctorID: "doc-1", Severity: sev(3), ScheduledAt: base, Status: StatusCheckedIn}

	bus := &busRecorder{}
	svc := NewService(store, bus)
	assert.NoError(t, svc.Restore())

	snap, err := svc.QueueSnapshot("doc-1")
	assert.NoError(t, err)
	assert.Equal(t, DoctorWithPatient, snap.DoctorStatus)
	assert.Equal(t, []string{"next"}, positions(snap))

	// Пока приём идёт, второй не начать.
	_, err = svc.StartConsultation("next", started.Add(5*time.Minute))
	assert.ErrorIs(t, err, ErrConflict)

	// Восстановленный приём завершается штатно, врач освобождается.
	done, err := svc.CompleteConsultation("busy", started.Add(20*time.Minute))
	assert.NoError(t, err)
	assert.Equal(t, StatusCompleted, done.Status)
	assert.Equal(t, 1, bus.count("CONSULTATION_COMPLETE"))

	snap, err = svc.QueueSnapshot("doc-1")
	assert.NoError(t, err)
	assert.Equal(t, DoctorAvailable, snap.DoctorStatus)
}

func TestServiceNotifyTargetsUserTopic(t *testing.T) {
	svc, _, bus, _ := newTestService()

	svc.Notify(7, "Очередь", "Вы следующий", "/queue")

	assert.Len(t, bus.events, 1)
	n, ok := bus.events[0].(ws.Notification)
	assert.True(t, ok)
	assert.Equal(t, []string{ws.UserTopic(7)}, n.Topics())
}
