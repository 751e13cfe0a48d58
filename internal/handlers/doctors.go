package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"medqueue/internal/models"
	"medqueue/internal/response"
	"medqueue/internal/storage"
)

var ctx = context.Background()

type DoctorStatusRequest struct {
	Status string `json:"status" binding:"required"` // available, break, lunch, meeting, leave
}

// GetDoctorsHandler возвращает справочник врачей
// @Summary		Список врачей
// @Description	Возвращает справочник врачей, кэширует результат в Redis
// @Tags			doctors
// @Produce		json
// @Success		200	{array}		models.Doctor	"Успешный ответ со списком врачей"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/api/doctors [get]
func GetDoctorsHandler(c *gin.Context) {
	cacheKey := "doctors_all"
	redisClient := storage.RedisClient

	// Проверка кэша
	if redisClient != nil {
		cached, err := redisClient.Get(ctx, cacheKey).Result()
		if err == nil && cached != "" {
			var doctors []models.Doctor
			if err := json.Unmarshal([]byte(cached), &doctors); err == nil {
				c.JSON(http.StatusOK, doctors)
				return
			}
		}
	}

	var doctors []models.Doctor
	if err := storage.DB.Order("name ASC").Find(&doctors).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка загрузки списка врачей",
			Details: err.Error(),
		})
		return
	}

	// Кэширование справочника на минуту: статус врача живёт в событиях и
	// снимке очереди, справочник меняется редко.
	if redisClient != nil {
		if payload, err := json.Marshal(doctors); err == nil {
			redisClient.Set(ctx, cacheKey, string(payload), time.Minute)
		}
	}

	c.JSON(http.StatusOK, doctors)
}

// SetDoctorStatusHandler меняет рабочий статус врача
// @Summary		Смена статуса врача
// @Description	Операторский перевод статуса; with_patient выставляется только ядром очереди
// @Tags			doctors
// @Accept			json
// @Produce		json
// @Param			id		path		string				true	"ID врача"
// @Param			status	body		DoctorStatusRequest	true	"Новый статус"
// @Security		BearerAuth
// @Success		200	{object}	queue.Snapshot	"Снимок очереди врача"
// @Failure		400	{object}	response.ErrorResponse	"Недопустимый статус (VALIDATION_ERROR)"
// @Failure		404	{object}	response.ErrorResponse	"Врач не найден (NOT_FOUND)"
// @Failure		409	{object}	response.ErrorResponse	"Уход в leave во время приёма (CONFLICT)"
// @Router			/api/doctors/{id}/status [put]
func SetDoctorStatusHandler(c *gin.Context) {
	var req DoctorStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Ошибка валидации данных",
			Details: err.Error(),
		})
		return
	}

	snap, err := Service.SetDoctorStatus(c.Param("id"), req.Status, time.Now())
	if err != nil {
		queueError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// GetDoctorQueueHandler возвращает авторитетный снимок очереди врача
// @Summary		Очередь врача
// @Description	Снимок живой очереди: позиции и оценки ожидания. Путь повторной выборки после реконнекта
// @Tags			doctors
// @Produce		json
// @Param			id	path		string	true	"ID врача"
// @Security		BearerAuth
// @Success		200	{object}	queue.Snapshot
// @Failure		404	{object}	response.ErrorResponse	"Врач не найден (NOT_FOUND)"
// @Router			/api/doctors/{id}/queue [get]
func GetDoctorQueueHandler(c *gin.Context) {
	snap, err := Service.QueueSnapshot(c.Param("id"))
	if err != nil {
		queueError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// CallNextPatientHandler зовёт следующего пациента
// @Summary		Вызов следующего пациента
// @Description	Сообщает регистратуре, кого врач зовёт следующим; очередь не мутируется
// @Tags			doctors
// @Produce		json
// @Param			id	path		string	true	"ID врача"
// @Security		BearerAuth
// @Success		200	{object}	queue.Entry
// @Failure		404	{object}	response.ErrorResponse	"Очередь пуста (NOT_FOUND)"
// @Router			/api/doctors/{id}/call-next [post]
func CallNextPatientHandler(c *gin.Context) {
	entry, err := Service.CallNext(c.Param("id"))
	if err != nil {
		queueError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}
