package storage

import (
	"time"

	"gorm.io/gorm"

	"medqueue/internal/models"
	"medqueue/internal/queue"
)

// QueueStore — адаптер хранилища для ядра очереди поверх gorm.
// Снимок мутации пишется одной транзакцией: статус врача, позиции живой
// очереди и записи, покинувшие очередь, становятся долговечными до того,
// как событие уйдёт на шину.
type QueueStore struct {
	db *gorm.DB
}

func NewQueueStore(db *gorm.DB) *QueueStore {
	return &QueueStore{db: db}
}

func (s *QueueStore) SaveSnapshot(doctorID string, state queue.DoctorState, live []*queue.Entry, changed []*queue.Entry) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Doctor{}).Where("id = ?", doctorID).Updates(map[string]interface{}{
			"status":            state.Status,
			"status_updated_at": state.ChangedAt,
		}).Error; err != nil {
			return err
		}
		// Позиции пересчитаны для всей очереди — пишем каждую живую запись.
		seen := make(map[string]bool, len(live)+len(changed))
		for _, e := range live {
			if err := saveEntryTx(tx, e); err != nil {
				return err
			}
			seen[e.ID] = true
		}
		for _, e := range changed {
			if seen[e.ID] {
				continue
			}
			if err := saveEntryTx(tx, e); err != nil {
				return err
			}
			seen[e.ID] = true
		}
		return nil
	})
}

func (s *QueueStore) SaveEntry(e *queue.Entry) error {
	return saveEntryTx(s.db, e)
}

func (s *QueueStore) Entry(id string) (*queue.Entry, error) {
	var a models.Appointment
	if err := s.db.First(&a, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return toEntry(&a), nil
}

func (s *QueueStore) DoctorState(doctorID string) (queue.DoctorState, error) {
	var d models.Doctor
	if err := s.db.First(&d, "id = ?", doctorID).Error; err != nil {
		return queue.DoctorState{}, err
	}
	return queue.DoctorState{Status: d.Status, ChangedAt: d.StatusUpdatedAt}, nil
}

func (s *QueueStore) LiveEntries(doctorID string) ([]*queue.Entry, error) {
	var rows []models.Appointment
	if err := s.db.
		Where("doctor_id = ? AND status IN ?", doctorID,
			[]string{queue.StatusBooked, queue.StatusConfirmed, queue.StatusCheckedIn, queue.StatusInProgress}).
		Order("queue_position ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	entries := make([]*queue.Entry, 0, len(rows))
	for i := range rows {
		entries = append(entries, toEntry(&rows[i]))
	}
	return entries, nil
}

func (s *QueueStore) DoctorIDs() ([]string, error) {
	var ids []string
	if err := s.db.Model(&models.Doctor{}).Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// saveEntryTx пишет запись приёма целиком (last-write-wins по записи).
func saveEntryTx(tx *gorm.DB, e *queue.Entry) error {
	res := tx.Model(&models.Appointment{}).Where("id = ?", e.ID).Updates(map[string]interface{}{
		"status":                 e.Status,
		"triage_severity":        e.Severity,
		"queue_position":         e.Position,
		"estimated_wait_minutes": e.EstimatedWaitMinutes,
		"scheduled_time":         e.ScheduledAt,
		"is_walk_in":             e.IsWalkIn,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		a := models.Appointment{
			ID:                   e.ID,
			PatientID:            e.PatientID,
			DoctorID:             e.DoctorID,
			ScheduledTime:        e.ScheduledAt,
			Status:               e.Status,
			TriageSeverity:       e.Severity,
			IsWalkIn:             e.IsWalkIn,
			QueuePosition:        e.Position,
			EstimatedWaitMinutes: e.EstimatedWaitMinutes,
		}
		return tx.Create(&a).Error
	}
	return nil
}

func toEntry(a *models.Appointment) *queue.Entry {
	var started *time.Time
	if a.Status == queue.StatusInProgress {
		t := a.UpdatedAt
		started = &t
	}
	return &queue.Entry{
		ID:                   a.ID,
		PatientID:            a.PatientID,
		DoctorID:             a.DoctorID,
		Severity:             a.TriageSeverity,
		ScheduledAt:          a.ScheduledTime,
		IsWalkIn:             a.IsWalkIn,
		Status:               a.Status,
		Position:             a.QueuePosition,
		EstimatedWaitMinutes: a.EstimatedWaitMinutes,
		StartedAt:            started,
	}
}
