package tasks

import (
	"errors"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"medqueue/internal/models"
	"medqueue/internal/queue"
	"medqueue/internal/storage"
)

// noShowGrace — сколько ждём пациента после назначенного времени, прежде чем
// снять бронь с очереди.
const noShowGrace = 2 * time.Hour

// CancelNoShows снимает с очередей брони, по которым пациент так и не пришёл.
// Отмена идёт через оркестратор, чтобы позиции пересчитались и подписчики
// получили событие.
func CancelNoShows(svc *queue.Service) {
	threshold := time.Now().Add(-noShowGrace)

	var stale []models.Appointment
	if err := storage.DB.
		Where("status IN ? AND scheduled_time < ? AND is_walk_in = false",
			[]string{queue.StatusBooked, queue.StatusConfirmed}, threshold).
		Find(&stale).Error; err != nil {
		log.Println("Ошибка поиска неявившихся пациентов:", err)
		return
	}

	if len(stale) == 0 {
		return
	}

	for _, a := range stale {
		if _, err := svc.Cancel(a.ID, time.Now()); err != nil {
			// Гонка с параллельной мутацией не страшна: приём уже ушёл из брони.
			if errors.Is(err, queue.ErrNotFound) || errors.Is(err, queue.ErrConflict) {
				continue
			}
			log.Println("Ошибка отмены неявки", a.ID, ":", err)
			continue
		}
		log.Printf("Бронь %s снята с очереди: пациент не пришёл", a.ID)
	}
}

// CleanOldNotifications удаляет прочитанные уведомления старше месяца.
func CleanOldNotifications() {
	threshold := time.Now().AddDate(0, -1, 0)
	if err := storage.DB.
		Where("is_read = true AND created_at < ?", threshold).
		Delete(&models.Notification{}).Error; err != nil {
		log.Println("Ошибка при удалении старых уведомлений:", err)
	} else {
		log.Println("Старые уведомления успешно удалены.")
	}
}

// InitScheduler инициализирует планировщик cron-задач.
func InitScheduler(svc *queue.Service) *cron.Cron {
	c := cron.New(cron.WithSeconds())

	// Проверка неявок каждые 5 минут.
	_, err := c.AddFunc("0 */5 * * * *", func() { CancelNoShows(svc) })
	if err != nil {
		log.Println("Ошибка запуска cron-задачи CancelNoShows:", err)
	}

	// Очистка старых уведомлений каждый день в 03:00.
	_, err = c.AddFunc("0 0 3 * * *", CleanOldNotifications)
	if err != nil {
		log.Println("Ошибка запуска cron-задачи CleanOldNotifications:", err)
	}

	c.Start()
	log.Println("Cron-планировщик запущен.")
	return c
}
