package queue

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Store — внешнее хранилище, в которое менеджер сохраняет авторитетное
// состояние. Запись обязана завершиться до того, как изменение станет
// видимым (и до рассылки события); ошибка записи откатывает мутацию.
type Store interface {
	// SaveSnapshot атомарно сохраняет статус врача, позиции живой очереди
	// и записи, покинувшие живую очередь в этой мутации.
	SaveSnapshot(doctorID string, state DoctorState, live []*Entry, changed []*Entry) error
	// SaveEntry сохраняет запись вне живой очереди (бронь без триажа).
	SaveEntry(e *Entry) error
	// Entry возвращает сохранённую запись по идентификатору приёма.
	Entry(id string) (*Entry, error)
	// DoctorState возвращает сохранённое состояние врача.
	DoctorState(doctorID string) (DoctorState, error)
	// LiveEntries возвращает незавершённые записи врача: booked, confirmed,
	// checked_in и идущий приём in_progress (для восстановления после старта).
	LiveEntries(doctorID string) ([]*Entry, error)
	// DoctorIDs возвращает идентификаторы всех врачей (для восстановления).
	DoctorIDs() ([]string, error)
}

// EntryView — запись очереди в снимке, отдаваемом наружу.
type EntryView struct {
	EncounterID          string    `json:"encounter_id"`
	PatientID            string    `json:"patient_id"`
	Position             int       `json:"position"`
	EstimatedWaitMinutes int       `json:"estimated_wait_minutes"`
	Status               string    `json:"status"`
	Severity             *int      `json:"severity,omitempty"`
	IsWalkIn             bool      `json:"is_walk_in"`
	ScheduledAt          time.Time `json:"scheduled_at"`
}

// Snapshot — авторитетный снимок очереди одного врача после мутации.
type Snapshot struct {
	DoctorID        string      `json:"doctor_id"`
	DoctorStatus    string      `json:"doctor_status"`
	StatusChangedAt time.Time   `json:"status_changed_at"`
	Entries         []EntryView `json:"entries"`
}

// Manager владеет живой очередью одного врача. Все мутирующие операции
// сериализуются мьютексом менеджера, поэтому очереди разных врачей меняются
// полностью независимо. Мутация выполняется на копии: сначала копия
// досчитывается до инварианта (позиции 1..N, оценки ожидания), затем
// сохраняется в Store, и только после успешной записи подменяет текущее
// состояние. Ошибка записи оставляет очередь ровно такой, какой она была.
type Manager struct {
	doctorID string
	store    Store

	mu         sync.Mutex
	entries    []*Entry // живая очередь, отсортирована, позиции 1..N
	inProgress *Entry   // текущий приём (не более одного)
	state      *DoctorState
	avgMinutes float64 // скользящее среднее длительности приёма
}

func NewManager(doctorID string, store Store, state *DoctorState) *Manager {
	return &Manager{
		doctorID:   doctorID,
		store:      store,
		state:      state,
		avgMinutes: DefaultConsultMinutes,
	}
}

// Restore загружает живую очередь из сохранённых записей и восстанавливает
// инвариант позиций/оценок, сохраняя пересчитанные значения. Приём, шедший
// в момент падения процесса, поднимается как активный, чтобы его можно было
// завершить или отменить. Вызывается один раз при старте процесса, до приёма
// внешних мутаций.
func (m *Manager) Restore(entries []*Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	live := make([]*Entry, 0, len(entries))
	for _, e := range entries {
		if e.Status == StatusInProgress {
			if m.inProgress == nil {
				m.inProgress = e.clone()
			}
			continue
		}
		if isLive(e.Status) && validSeverity(e.Severity) {
			live = append(live, e.clone())
		}
	}
	m.resort(live)
	if err := m.store.SaveSnapshot(m.doctorID, *m.state, live, nil); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	m.entries = live
	return nil
}

// Enqueue вставляет запись согласно порядку триажа. Повторная вставка того же
// приёма — идемпотентный no-op (inserted=false). Walk-in при враче в leave
// отклоняется; заранее записанные приёмы принимаются и в leave.
func (m *Manager) Enqueue(e *Entry) (Snapshot, bool, error) {
	if e.ID == "" || e.PatientID == "" {
		return Snapshot{}, false, fmt.Errorf("%w: пустой идентификатор", ErrValidation)
	}
	if !validSeverity(e.Severity) {
		return Snapshot{}, false, fmt.Errorf("%w: severity должен быть от 1 до 5", ErrValidation)
	}
	if !isLive(e.Status) {
		return Snapshot{}, false, fmt.Errorf("%w: статус %q не занимает позицию в очереди", ErrValidation, e.Status)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.find(e.ID) != nil || (m.inProgress != nil && m.inProgress.ID == e.ID) {
		return m.snapshot(), false, nil
	}
	if e.IsWalkIn && m.state.Status == DoctorLeave {
		return Snapshot{}, false, fmt.Errorf("%w: врач в отпуске, walk-in не принимается", ErrDoctorUnavailable)
	}

	next := append(m.cloneEntries(), e.clone())
	m.resort(next)
	if err := m.persist(*m.state, next, next); err != nil {
		return Snapshot{}, false, err
	}
	m.entries = next
	return m.snapshot(), true, nil
}

// CheckIn переводит booked/confirmed в checked_in. Для заранее записанного
// приёма до назначенного времени — отказ ErrNotYetDue.
func (m *Manager) CheckIn(encounterID string, now time.Time) (Snapshot, *Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur := m.find(encounterID)
	if cur == nil {
		return Snapshot{}, nil, fmt.Errorf("%w: приём %s не в живой очереди", ErrNotFound, encounterID)
	}
	if cur.Status == StatusCheckedIn {
		return Snapshot{}, nil, fmt.Errorf("%w: приход уже зарегистрирован", ErrConflict)
	}
	if !cur.IsWalkIn && now.Before(cur.ScheduledAt) {
		return Snapshot{}, nil, ErrNotYetDue
	}

	next := m.cloneEntries()
	target := findIn(next, encounterID)
	target.Status = StatusCheckedIn
	m.resort(next)
	if err := m.persist(*m.state, next, next); err != nil {
		return Snapshot{}, nil, err
	}
	m.entries = next
	return m.snapshot(), target.clone(), nil
}

// Confirm переводит booked в confirmed, позиция не меняется.
func (m *Manager) Confirm(encounterID string) (Snapshot, *Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur := m.find(encounterID)
	if cur == nil {
		return Snapshot{}, nil, fmt.Errorf("%w: приём %s не в живой очереди", ErrNotFound, encounterID)
	}
	if cur.Status != StatusBooked {
		return Snapshot{}, nil, fmt.Errorf("%w: подтвердить можно только booked, сейчас %s", ErrConflict, cur.Status)
	}

	next := m.cloneEntries()
	target := findIn(next, encounterID)
	target.Status = StatusConfirmed
	if err := m.persist(*m.state, next, []*Entry{target}); err != nil {
		return Snapshot{}, nil, err
	}
	m.entries = next
	return m.snapshot(), target.clone(), nil
}

// StartConsultation начинает приём: запись уходит из позиционного учёта,
// врач переводится в with_patient. Требует врача в available, запись в
// checked_in и отсутствие активного приёма: у врача не более одного
// in_progress одновременно, даже если статус успели сменить вручную.
func (m *Manager) StartConsultation(encounterID string, now time.Time) (Snapshot, *Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur := m.find(encounterID)
	if cur == nil || cur.Status != StatusCheckedIn {
		return Snapshot{}, nil, fmt.Errorf("%w: нет зарегистрированного приёма %s", ErrNotFound, encounterID)
	}
	if m.inProgress != nil {
		return Snapshot{}, nil, fmt.Errorf("%w: приём %s ещё не завершён", ErrConflict, m.inProgress.ID)
	}
	if m.state.Status != DoctorAvailable {
		return Snapshot{}, nil, fmt.Errorf("%w: статус врача %s", ErrDoctorUnavailable, m.state.Status)
	}

	next := m.cloneEntries()
	target := removeFrom(&next, encounterID)
	target.Status = StatusInProgress
	target.Position = 0
	target.EstimatedWaitMinutes = 0
	started := now
	target.StartedAt = &started
	m.resort(next)

	newState := *m.state
	newState.set(DoctorWithPatient, now)
	if err := m.persist(newState, next, append(append([]*Entry{}, next...), target)); err != nil {
		return Snapshot{}, nil, err
	}
	m.entries = next
	m.inProgress = target
	*m.state = newState
	return m.snapshot(), target.clone(), nil
}

// CompleteConsultation завершает текущий приём, возвращает врача в available
// и обновляет скользящее среднее длительности приёма.
func (m *Manager) CompleteConsultation(encounterID string, now time.Time) (Snapshot, *Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.inProgress == nil || m.inProgress.ID != encounterID {
		return Snapshot{}, nil, fmt.Errorf("%w: приём %s не идёт", ErrNotFound, encounterID)
	}

	target := m.inProgress.clone()
	target.Status = StatusCompleted

	newState := *m.state
	newState.set(DoctorAvailable, now)

	newAvg := m.avgMinutes
	if target.StartedAt != nil {
		newAvg = nextAverage(m.avgMinutes, now.Sub(*target.StartedAt).Minutes())
	}

	next := m.cloneEntries()
	estimateWaits(next, newAvg)
	if err := m.persist(newState, next, append(append([]*Entry{}, next...), target)); err != nil {
		return Snapshot{}, nil, err
	}
	m.entries = next
	m.inProgress = nil
	*m.state = newState
	m.avgMinutes = newAvg
	return m.snapshot(), target, nil
}

// Cancel убирает запись из живой очереди в любом статусе, кроме completed.
// Отмена идущего приёма возвращает врача в available.
func (m *Manager) Cancel(encounterID string, now time.Time) (Snapshot, *Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cur := m.find(encounterID); cur != nil {
		next := m.cloneEntries()
		target := removeFrom(&next, encounterID)
		target.Status = StatusCancelled
		target.Position = 0
		target.EstimatedWaitMinutes = 0
		m.resort(next)
		if err := m.persist(*m.state, next, append(append([]*Entry{}, next...), target)); err != nil {
			return Snapshot{}, nil, err
		}
		m.entries = next
		return m.snapshot(), target.clone(), nil
	}

	if m.inProgress != nil && m.inProgress.ID == encounterID {
		target := m.inProgress.clone()
		target.Status = StatusCancelled
		newState := *m.state
		newState.set(DoctorAvailable, now)
		next := m.cloneEntries()
		if err := m.persist(newState, next, []*Entry{target}); err != nil {
			return Snapshot{}, nil, err
		}
		m.entries = next
		m.inProgress = nil
		*m.state = newState
		return m.snapshot(), target, nil
	}

	return Snapshot{}, nil, fmt.Errorf("%w: приём %s не найден в очереди", ErrNotFound, encounterID)
}

// SetStatus — операторская смена статуса врача.
func (m *Manager) SetStatus(to string, now time.Time) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	newState := *m.state
	if err := newState.Transition(to, now); err != nil {
		return Snapshot{}, err
	}
	if err := m.persist(newState, m.entries, nil); err != nil {
		return Snapshot{}, err
	}
	*m.state = newState
	return m.snapshot(), nil
}

// Head возвращает первого зарегистрированного пациента очереди (кого звать
// следующим). Очередь не мутируется.
func (m *Manager) Head() (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.Status == StatusCheckedIn {
			return e.clone(), nil
		}
	}
	return nil, fmt.Errorf("%w: в очереди нет зарегистрированных пациентов", ErrNotFound)
}

// Get возвращает копию записи живой очереди.
func (m *Manager) Get(encounterID string) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e := m.find(encounterID); e != nil {
		return e.clone(), nil
	}
	if m.inProgress != nil && m.inProgress.ID == encounterID {
		return m.inProgress.clone(), nil
	}
	return nil, fmt.Errorf("%w: приём %s не в живой очереди", ErrNotFound, encounterID)
}

// Snapshot отдаёт текущий авторитетный снимок очереди.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot()
}

// --- внутреннее, только под m.mu ---

func (m *Manager) find(id string) *Entry {
	return findIn(m.entries, id)
}

func findIn(list []*Entry, id string) *Entry {
	for _, e := range list {
		if e.ID == id {
			return e
		}
	}
	return nil
}

func removeFrom(list *[]*Entry, id string) *Entry {
	for i, e := range *list {
		if e.ID == id {
			*list = append((*list)[:i], (*list)[i+1:]...)
			return e
		}
	}
	return nil
}

func (m *Manager) cloneEntries() []*Entry {
	out := make([]*Entry, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e.clone())
	}
	return out
}

// resort восстанавливает инвариант: порядок по политике триажа,
// позиции — перестановка 1..N без дыр, оценки ожидания пересчитаны.
func (m *Manager) resort(list []*Entry) {
	sort.Slice(list, func(i, j int) bool { return Less(list[i], list[j]) })
	for i, e := range list {
		e.Position = i + 1
	}
	estimateWaits(list, m.avgMinutes)
}

func (m *Manager) persist(state DoctorState, live []*Entry, changed []*Entry) error {
	if err := m.store.SaveSnapshot(m.doctorID, state, live, changed); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}

func (m *Manager) snapshot() Snapshot {
	views := make([]EntryView, 0, len(m.entries))
	for _, e := range m.entries {
		views = append(views, EntryView{
			EncounterID:          e.ID,
			PatientID:            e.PatientID,
			Position:             e.Position,
			EstimatedWaitMinutes: e.EstimatedWaitMinutes,
			Status:               e.Status,
			Severity:             e.Severity,
			IsWalkIn:             e.IsWalkIn,
			ScheduledAt:          e.ScheduledAt,
		})
	}
	return Snapshot{
		DoctorID:        m.doctorID,
		DoctorStatus:    m.state.Status,
		StatusChangedAt: m.state.ChangedAt,
		Entries:         views,
	}
}
