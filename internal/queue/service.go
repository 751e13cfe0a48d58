package queue

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"medqueue/internal/ws"
)

// Bus — шина координационных событий. Публикация best-effort: ошибки доставки
// до вызывающего не доходят, мутация к этому моменту уже сохранена.
type Bus interface {
	PublishEvent(e ws.Event)
}

// Service — оркестратор очередей. Держит реестр менеджеров по врачам,
// выполняет мутацию, дожидается записи в хранилище и только затем публикует
// событие на шину. Живые очереди — проекция долговечного состояния: при
// старте процесса они восстанавливаются из сохранённых записей.
type Service struct {
	store Store
	bus   Bus

	mu       sync.Mutex
	managers map[string]*Manager
}

func NewService(store Store, bus Bus) *Service {
	return &Service{
		store:    store,
		bus:      bus,
		managers: make(map[string]*Manager),
	}
}

// Restore восстанавливает живые очереди всех врачей из сохранённых записей
// booked/confirmed/checked_in, а идущие приёмы — как активные, чтобы их можно
// было завершить после перезапуска. Вызывается при старте, до приёма мутаций.
func (s *Service) Restore() error {
	ids, err := s.store.DoctorIDs()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	for _, doctorID := range ids {
		mgr, err := s.manager(doctorID)
		if err != nil {
			return err
		}
		entries, err := s.store.LiveEntries(doctorID)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrPersistence, err)
		}
		if err := mgr.Restore(entries); err != nil {
			return err
		}
	}
	log.Printf("Очереди восстановлены для %d врачей", len(ids))
	return nil
}

// BookRequest — заявка на запись к врачу.
type BookRequest struct {
	PatientID     string
	DoctorID      string
	ScheduledTime time.Time
	// Severity — триаж, если уже проводился. Без триажа бронь сохраняется,
	// но в живую очередь попадает только при регистрации прихода.
	Severity       *int
	PrimarySymptom string
	Reason         string
}

// Book создаёт запись на приём. Бронь с триажом сразу занимает позицию
// в очереди; без триажа — только сохраняется.
func (s *Service) Book(req BookRequest) (*Entry, error) {
	if req.PatientID == "" || req.DoctorID == "" {
		return nil, fmt.Errorf("%w: требуются пациент и врач", ErrValidation)
	}
	if req.ScheduledTime.IsZero() {
		return nil, fmt.Errorf("%w: требуется время приёма", ErrValidation)
	}
	if req.Severity != nil && !validSeverity(req.Severity) {
		return nil, fmt.Errorf("%w: severity должен быть от 1 до 5", ErrValidation)
	}

	entry := &Entry{
		ID:          uuid.NewString(),
		PatientID:   req.PatientID,
		DoctorID:    req.DoctorID,
		Severity:    req.Severity,
		ScheduledAt: req.ScheduledTime,
		Status:      StatusBooked,
	}

	mgr, err := s.manager(req.DoctorID)
	if err != nil {
		return nil, err
	}

	if req.Severity == nil {
		// Триажа ещё нет — запись не участвует в порядке очереди.
		if err := s.store.SaveEntry(entry); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
		}
		return entry, nil
	}

	snap, inserted, err := mgr.Enqueue(entry)
	if err != nil {
		return nil, err
	}
	if inserted {
		s.publishQueue(snap)
	}
	return entry, nil
}

// WalkIn регистрирует пациента без записи: триаж обязателен, запись сразу
// checked_in, базовое время — момент прихода.
func (s *Service) WalkIn(patientID, doctorID string, severity *int, now time.Time) (*Entry, error) {
	if patientID == "" || doctorID == "" {
		return nil, fmt.Errorf("%w: требуются пациент и врач", ErrValidation)
	}
	if !validSeverity(severity) {
		return nil, fmt.Errorf("%w: walk-in требует триаж от 1 до 5", ErrValidation)
	}

	entry := &Entry{
		ID:          uuid.NewString(),
		PatientID:   patientID,
		DoctorID:    doctorID,
		Severity:    severity,
		ScheduledAt: now,
		IsWalkIn:    true,
		Status:      StatusCheckedIn,
	}

	mgr, err := s.manager(doctorID)
	if err != nil {
		return nil, err
	}
	snap, inserted, err := mgr.Enqueue(entry)
	if err != nil {
		return nil, err
	}
	if inserted {
		s.bus.PublishEvent(ws.PatientCheckedIn{EncounterID: entry.ID, DoctorID: doctorID})
		s.publishQueue(snap)
	}
	return entry, nil
}

// CheckIn регистрирует приход по записи. Бронь без триажа получает severity
// здесь и только здесь попадает в живую очередь; назначенный ранее триаж
// неизменяем, переданное значение в этом случае игнорируется.
func (s *Service) CheckIn(encounterID string, severity *int, now time.Time) (*Entry, error) {
	stored, err := s.store.Entry(encounterID)
	if err != nil {
		return nil, fmt.Errorf("%w: приём %s", ErrNotFound, encounterID)
	}
	mgr, err := s.manager(stored.DoctorID)
	if err != nil {
		return nil, err
	}

	snap, entry, err := mgr.CheckIn(encounterID, now)
	if err == nil {
		s.bus.PublishEvent(ws.PatientCheckedIn{EncounterID: entry.ID, DoctorID: entry.DoctorID})
		s.publishQueue(snap)
		return entry, nil
	}
	if !isNotFound(err) {
		return nil, err
	}

	// Запись вне живой очереди: бронь без триажа.
	if stored.Status != StatusBooked && stored.Status != StatusConfirmed {
		return nil, fmt.Errorf("%w: статус %s не допускает регистрацию прихода", ErrConflict, stored.Status)
	}
	if !stored.IsWalkIn && now.Before(stored.ScheduledAt) {
		return nil, ErrNotYetDue
	}
	if stored.Severity == nil {
		if !validSeverity(severity) {
			return nil, fmt.Errorf("%w: для регистрации требуется триаж от 1 до 5", ErrValidation)
		}
		stored.Severity = severity
	}
	stored.Status = StatusCheckedIn

	snap, inserted, err := mgr.Enqueue(stored)
	if err != nil {
		return nil, err
	}
	if inserted {
		s.bus.PublishEvent(ws.PatientCheckedIn{EncounterID: stored.ID, DoctorID: stored.DoctorID})
		s.publishQueue(snap)
	}
	return stored, nil
}

// Confirm подтверждает бронь (booked -> confirmed).
func (s *Service) Confirm(encounterID string) (*Entry, error) {
	mgr, stored, err := s.resolve(encounterID)
	if err != nil {
		return nil, err
	}
	snap, entry, err := mgr.Confirm(encounterID)
	if err != nil {
		if isNotFound(err) && stored.Severity == nil && stored.Status == StatusBooked {
			// Бронь без триажа подтверждается прямо в хранилище.
			stored.Status = StatusConfirmed
			if err := s.store.SaveEntry(stored); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
			}
			return stored, nil
		}
		return nil, err
	}
	s.publishQueue(snap)
	return entry, nil
}

// StartConsultation начинает приём и переводит врача в with_patient.
func (s *Service) StartConsultation(encounterID string, now time.Time) (*Entry, error) {
	mgr, _, err := s.resolve(encounterID)
	if err != nil {
		return nil, err
	}
	snap, entry, err := mgr.StartConsultation(encounterID, now)
	if err != nil {
		return nil, err
	}
	s.bus.PublishEvent(ws.DoctorStatusChanged{
		DoctorID:  entry.DoctorID,
		NewStatus: snap.DoctorStatus,
		ChangedAt: snap.StatusChangedAt,
	})
	s.publishQueue(snap)
	return entry, nil
}

// CompleteConsultation завершает приём, врач возвращается в available.
func (s *Service) CompleteConsultation(encounterID string, now time.Time) (*Entry, error) {
	mgr, _, err := s.resolve(encounterID)
	if err != nil {
		return nil, err
	}
	snap, entry, err := mgr.CompleteConsultation(encounterID, now)
	if err != nil {
		return nil, err
	}
	s.bus.PublishEvent(ws.ConsultationComplete{EncounterID: entry.ID, DoctorID: entry.DoctorID})
	s.bus.PublishEvent(ws.DoctorStatusChanged{
		DoctorID:  entry.DoctorID,
		NewStatus: snap.DoctorStatus,
		ChangedAt: snap.StatusChangedAt,
	})
	s.publishQueue(snap)
	return entry, nil
}

// Cancel отменяет приём в любом статусе, кроме completed.
func (s *Service) Cancel(encounterID string, now time.Time) (*Entry, error) {
	mgr, stored, err := s.resolve(encounterID)
	if err != nil {
		return nil, err
	}
	snap, entry, err := mgr.Cancel(encounterID, now)
	if err != nil {
		if isNotFound(err) {
			// Запись вне живой очереди (бронь без триажа).
			switch stored.Status {
			case StatusCompleted:
				return nil, fmt.Errorf("%w: завершённый приём нельзя отменить", ErrConflict)
			case StatusCancelled:
				return stored, nil
			}
			stored.Status = StatusCancelled
			if err := s.store.SaveEntry(stored); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
			}
			return stored, nil
		}
		return nil, err
	}
	wasInProgress := entry.StartedAt != nil
	if wasInProgress {
		s.bus.PublishEvent(ws.DoctorStatusChanged{
			DoctorID:  entry.DoctorID,
			NewStatus: snap.DoctorStatus,
			ChangedAt: snap.StatusChangedAt,
		})
	}
	s.publishQueue(snap)
	return entry, nil
}

// SetDoctorStatus — операторская смена статуса врача.
func (s *Service) SetDoctorStatus(doctorID, status string, now time.Time) (Snapshot, error) {
	mgr, err := s.manager(doctorID)
	if err != nil {
		return Snapshot{}, err
	}
	snap, err := mgr.SetStatus(status, now)
	if err != nil {
		return Snapshot{}, err
	}
	s.bus.PublishEvent(ws.DoctorStatusChanged{
		DoctorID:  doctorID,
		NewStatus: snap.DoctorStatus,
		ChangedAt: snap.StatusChangedAt,
	})
	return snap, nil
}

// CallNext сообщает регистратуре, кого врач зовёт следующим. Очередь не
// мутируется: позиция уходит только при старте приёма.
func (s *Service) CallNext(doctorID string) (*Entry, error) {
	mgr, err := s.manager(doctorID)
	if err != nil {
		return nil, err
	}
	entry, err := mgr.Head()
	if err != nil {
		return nil, err
	}
	s.bus.PublishEvent(ws.CallNextPatient{DoctorID: doctorID, EncounterID: entry.ID})
	return entry, nil
}

// MarkReady сигнализирует врачу, что пациент готов к приёму.
func (s *Service) MarkReady(encounterID string) (*Entry, error) {
	mgr, _, err := s.resolve(encounterID)
	if err != nil {
		return nil, err
	}
	entry, err := mgr.Get(encounterID)
	if err != nil {
		return nil, err
	}
	if entry.Status != StatusCheckedIn {
		return nil, fmt.Errorf("%w: пациент ещё не зарегистрирован", ErrConflict)
	}
	s.bus.PublishEvent(ws.PatientReady{EncounterID: entry.ID, DoctorID: entry.DoctorID})
	return entry, nil
}

// Notify отправляет точечное уведомление в персональный топик пользователя.
func (s *Service) Notify(userID uint, title, message, link string) {
	s.bus.PublishEvent(ws.Notification{UserID: userID, Title: title, Message: message, Link: link})
}

// QueueSnapshot — авторитетный снимок очереди врача (путь повторной выборки
// после реконнекта).
func (s *Service) QueueSnapshot(doctorID string) (Snapshot, error) {
	mgr, err := s.manager(doctorID)
	if err != nil {
		return Snapshot{}, err
	}
	return mgr.Snapshot(), nil
}

// --- внутреннее ---

// manager возвращает менеджера врача, поднимая его из хранилища при первом
// обращении.
func (s *Service) manager(doctorID string) (*Manager, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if mgr, ok := s.managers[doctorID]; ok {
		return mgr, nil
	}
	state, err := s.store.DoctorState(doctorID)
	if err != nil {
		return nil, fmt.Errorf("%w: врач %s", ErrNotFound, doctorID)
	}
	mgr := NewManager(doctorID, s.store, NewDoctorState(state.Status, state.ChangedAt))
	s.managers[doctorID] = mgr
	return mgr, nil
}

func (s *Service) resolve(encounterID string) (*Manager, *Entry, error) {
	stored, err := s.store.Entry(encounterID)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: приём %s", ErrNotFound, encounterID)
	}
	mgr, err := s.manager(stored.DoctorID)
	if err != nil {
		return nil, nil, err
	}
	return mgr, stored, nil
}

func (s *Service) publishQueue(snap Snapshot) {
	positions := make([]ws.QueuePosition, 0, len(snap.Entries))
	for _, e := range snap.Entries {
		positions = append(positions, ws.QueuePosition{
			EncounterID:          e.EncounterID,
			Position:             e.Position,
			EstimatedWaitMinutes: e.EstimatedWaitMinutes,
		})
	}
	s.bus.PublishEvent(ws.QueueUpdated{DoctorID: snap.DoctorID, Entries: positions})
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
