package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"medqueue/internal/queue"
	"medqueue/internal/response"
)

// Service — оркестратор очередей, задаётся в main при старте процесса.
var Service *queue.Service

// queueError переводит ошибку ядра очереди в HTTP-ответ с кодом.
func queueError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, queue.ErrValidation):
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Ошибка валидации данных",
			Details: err.Error(),
		})
	case errors.Is(err, queue.ErrNotYetDue):
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "NOT_YET_DUE",
			Message: "Время приёма ещё не наступило",
		})
	case errors.Is(err, queue.ErrDoctorUnavailable):
		c.JSON(http.StatusConflict, response.ErrorResponse{
			Code:    "DOCTOR_UNAVAILABLE",
			Message: "Врач недоступен",
			Details: err.Error(),
		})
	case errors.Is(err, queue.ErrConflict):
		c.JSON(http.StatusConflict, response.ErrorResponse{
			Code:    "CONFLICT",
			Message: "Конфликт состояния",
			Details: err.Error(),
		})
	case errors.Is(err, queue.ErrNotFound):
		c.JSON(http.StatusNotFound, response.ErrorResponse{
			Code:    "NOT_FOUND",
			Message: "Запись не найдена",
			Details: err.Error(),
		})
	case errors.Is(err, queue.ErrPersistence):
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка сохранения состояния",
			Details: err.Error(),
		})
	default:
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "INTERNAL_ERROR",
			Message: "Внутренняя ошибка сервера",
			Details: err.Error(),
		})
	}
}
