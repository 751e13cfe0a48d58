package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"medqueue/internal/models"
	"medqueue/internal/queue"
	"medqueue/internal/response"
	"medqueue/internal/storage"
)

type BookAppointmentRequest struct {
	PatientID     string    `json:"patient_id" binding:"required"`
	DoctorID      string    `json:"doctor_id" binding:"required"`
	ScheduledTime time.Time `json:"scheduled_time" binding:"required"`
	// Триаж 1..5, если уже проводился. Без триажа бронь не занимает позицию.
	Severity       *int   `json:"severity"`
	PrimarySymptom string `json:"primary_symptom"`
	Reason         string `json:"reason"`
}

type WalkInRequest struct {
	PatientID string `json:"patient_id" binding:"required"`
	DoctorID  string `json:"doctor_id" binding:"required"`
	Severity  *int   `json:"severity" binding:"required"`
}

type CheckInRequest struct {
	// Триаж 1..5 для брони, у которой его ещё нет. Назначенный ранее триаж
	// неизменяем.
	Severity *int `json:"severity"`
}

// BookAppointmentHandler обрабатывает запрос на запись к врачу
// @Summary		Запись на приём
// @Description	Создаёт запись к врачу; с триажом запись сразу занимает позицию в очереди
// @Tags			appointments
// @Accept			json
// @Produce		json
// @Param			appointment	body		BookAppointmentRequest	true	"Данные записи"
// @Security		BearerAuth
// @Success		201	{object}	queue.Entry	"Созданная запись"
// @Failure		400	{object}	response.ErrorResponse	"Ошибка валидации (VALIDATION_ERROR)"
// @Failure		404	{object}	response.ErrorResponse	"Врач не найден (NOT_FOUND)"
// @Failure		409	{object}	response.ErrorResponse	"Врач недоступен (DOCTOR_UNAVAILABLE)"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/api/appointments [post]
func BookAppointmentHandler(c *gin.Context) {
	var req BookAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Ошибка валидации данных",
			Details: err.Error(),
		})
		return
	}

	entry, err := Service.Book(queue.BookRequest{
		PatientID:      req.PatientID,
		DoctorID:       req.DoctorID,
		ScheduledTime:  req.ScheduledTime,
		Severity:       req.Severity,
		PrimarySymptom: req.PrimarySymptom,
		Reason:         req.Reason,
	})
	if err != nil {
		queueError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

// WalkInHandler обрабатывает приход пациента без записи
// @Summary		Walk-in регистрация
// @Description	Ставит пациента без записи в очередь врача по триажу
// @Tags			appointments
// @Accept			json
// @Produce		json
// @Param			walkin	body		WalkInRequest	true	"Данные walk-in"
// @Security		BearerAuth
// @Success		201	{object}	queue.Entry	"Созданная запись"
// @Failure		400	{object}	response.ErrorResponse	"Ошибка валидации (VALIDATION_ERROR)"
// @Failure		409	{object}	response.ErrorResponse	"Врач в отпуске (DOCTOR_UNAVAILABLE)"
// @Router			/api/appointments/walkin [post]
func WalkInHandler(c *gin.Context) {
	var req WalkInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Ошибка валидации данных",
			Details: err.Error(),
		})
		return
	}

	entry, err := Service.WalkIn(req.PatientID, req.DoctorID, req.Severity, time.Now())
	if err != nil {
		queueError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

// ConfirmAppointmentHandler подтверждает бронь
// @Summary		Подтверждение записи
// @Description	Переводит запись booked в confirmed
// @Tags			appointments
// @Produce		json
// @Param			id	path		string	true	"ID приёма"
// @Security		BearerAuth
// @Success		200	{object}	queue.Entry
// @Failure		404	{object}	response.ErrorResponse	"Приём не найден (NOT_FOUND)"
// @Failure		409	{object}	response.ErrorResponse	"Недопустимый переход (CONFLICT)"
// @Router			/api/appointments/{id}/confirm [post]
func ConfirmAppointmentHandler(c *gin.Context) {
	entry, err := Service.Confirm(c.Param("id"))
	if err != nil {
		queueError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// CheckInHandler регистрирует приход пациента по записи
// @Summary		Регистрация прихода
// @Description	Переводит запись в checked_in; бронь без триажа получает severity и занимает позицию
// @Tags			appointments
// @Accept			json
// @Produce		json
// @Param			id	path		string	true	"ID приёма"
// @Param			checkin	body	CheckInRequest	false	"Триаж для брони без него"
// @Security		BearerAuth
// @Success		200	{object}	queue.Entry
// @Failure		400	{object}	response.ErrorResponse	"Рано (NOT_YET_DUE) или нет триажа (VALIDATION_ERROR)"
// @Failure		404	{object}	response.ErrorResponse	"Приём не найден (NOT_FOUND)"
// @Failure		409	{object}	response.ErrorResponse	"Приход уже зарегистрирован (CONFLICT)"
// @Router			/api/appointments/{id}/checkin [post]
func CheckInHandler(c *gin.Context) {
	var req CheckInRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, response.ErrorResponse{
				Code:    "VALIDATION_ERROR",
				Message: "Ошибка валидации данных",
				Details: err.Error(),
			})
			return
		}
	}

	entry, err := Service.CheckIn(c.Param("id"), req.Severity, time.Now())
	if err != nil {
		queueError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// StartConsultationHandler начинает приём
// @Summary		Начало приёма
// @Description	Переводит запись в in_progress, врача — в with_patient
// @Tags			appointments
// @Produce		json
// @Param			id	path		string	true	"ID приёма"
// @Security		BearerAuth
// @Success		200	{object}	queue.Entry
// @Failure		404	{object}	response.ErrorResponse	"Нет зарегистрированного приёма (NOT_FOUND)"
// @Failure		409	{object}	response.ErrorResponse	"Врач недоступен (DOCTOR_UNAVAILABLE)"
// @Router			/api/appointments/{id}/start [post]
func StartConsultationHandler(c *gin.Context) {
	entry, err := Service.StartConsultation(c.Param("id"), time.Now())
	if err != nil {
		queueError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// CompleteConsultationHandler завершает приём
// @Summary		Завершение приёма
// @Description	Переводит запись в completed, врача — в available
// @Tags			appointments
// @Produce		json
// @Param			id	path		string	true	"ID приёма"
// @Security		BearerAuth
// @Success		200	{object}	queue.Entry
// @Failure		404	{object}	response.ErrorResponse	"Приём не идёт (NOT_FOUND)"
// @Router			/api/appointments/{id}/complete [post]
func CompleteConsultationHandler(c *gin.Context) {
	entry, err := Service.CompleteConsultation(c.Param("id"), time.Now())
	if err != nil {
		queueError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// CancelAppointmentHandler отменяет приём
// @Summary		Отмена приёма
// @Description	Убирает запись из живой очереди; завершённый приём отменить нельзя
// @Tags			appointments
// @Produce		json
// @Param			id	path		string	true	"ID приёма"
// @Security		BearerAuth
// @Success		200	{object}	queue.Entry
// @Failure		404	{object}	response.ErrorResponse	"Приём не найден (NOT_FOUND)"
// @Failure		409	{object}	response.ErrorResponse	"Приём завершён (CONFLICT)"
// @Router			/api/appointments/{id}/cancel [post]
func CancelAppointmentHandler(c *gin.Context) {
	entry, err := Service.Cancel(c.Param("id"), time.Now())
	if err != nil {
		queueError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// MarkReadyHandler отмечает пациента готовым к приёму
// @Summary		Пациент готов
// @Description	Регистратура сообщает врачу о готовности пациента; очередь не меняется
// @Tags			appointments
// @Produce		json
// @Param			id	path		string	true	"ID приёма"
// @Security		BearerAuth
// @Success		200	{object}	queue.Entry
// @Failure		404	{object}	response.ErrorResponse	"Приём не найден (NOT_FOUND)"
// @Failure		409	{object}	response.ErrorResponse	"Пациент не зарегистрирован (CONFLICT)"
// @Router			/api/appointments/{id}/ready [post]
func MarkReadyHandler(c *gin.Context) {
	entry, err := Service.MarkReady(c.Param("id"))
	if err != nil {
		queueError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// GetMyAppointmentsHandler возвращает приёмы пациентов текущего пользователя
// @Summary		Мои приёмы
// @Description	Список приёмов пациентов, привязанных к текущему пользователю
// @Tags			profile
// @Produce		json
// @Security		BearerAuth
// @Success		200	{array}		models.Appointment
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/api/appointments/my [get]
func GetMyAppointmentsHandler(c *gin.Context) {
	userID := c.GetUint("userID")

	var patientIDs []string
	if err := storage.DB.Model(&models.Patient{}).
		Where("user_id = ?", userID).
		Pluck("id", &patientIDs).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка загрузки пациентов пользователя",
			Details: err.Error(),
		})
		return
	}
	if len(patientIDs) == 0 {
		c.JSON(http.StatusOK, []models.Appointment{})
		return
	}

	var appointments []models.Appointment
	if err := storage.DB.
		Where("patient_id IN ?", patientIDs).
		Order("scheduled_time ASC").
		Find(&appointments).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка загрузки приёмов",
			Details: err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, appointments)
}
