package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"medqueue/internal/models"
	"medqueue/internal/response"
	"medqueue/internal/storage"
)

type SendNotificationRequest struct {
	UserID  uint   `json:"user_id" binding:"required"`
	Title   string `json:"title" binding:"required"`
	Message string `json:"message" binding:"required"`
	Link    string `json:"link"`
}

// SendNotificationHandler отправляет точечное уведомление пользователю
// @Summary		Отправка уведомления
// @Description	Сохраняет уведомление и рассылает его в персональный топик пользователя
// @Tags			notifications
// @Accept			json
// @Produce		json
// @Param			notification	body		SendNotificationRequest	true	"Уведомление"
// @Security		BearerAuth
// @Success		201	{object}	models.Notification
// @Failure		400	{object}	response.ErrorResponse	"Ошибка валидации (VALIDATION_ERROR)"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/api/notifications [post]
func SendNotificationHandler(c *gin.Context) {
	var req SendNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Ошибка валидации данных",
			Details: err.Error(),
		})
		return
	}

	notification := models.Notification{
		UserID:  req.UserID,
		Title:   req.Title,
		Message: req.Message,
		Link:    req.Link,
	}
	if err := storage.DB.Create(&notification).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка сохранения уведомления",
			Details: err.Error(),
		})
		return
	}

	// Доставка best-effort: запись уже долговечна, пропущенное событие
	// клиент увидит в списке уведомлений.
	Service.Notify(req.UserID, req.Title, req.Message, req.Link)

	c.JSON(http.StatusCreated, notification)
}

// GetMyNotificationsHandler возвращает уведомления текущего пользователя
// @Summary		Мои уведомления
// @Description	Список уведомлений пользователя, новые первыми
// @Tags			notifications
// @Produce		json
// @Security		BearerAuth
// @Success		200	{array}		models.Notification
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/api/notifications [get]
func GetMyNotificationsHandler(c *gin.Context) {
	userID := c.GetUint("userID")

	var notifications []models.Notification
	if err := storage.DB.
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(100).
		Find(&notifications).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка загрузки уведомлений",
			Details: err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, notifications)
}

// MarkNotificationReadHandler отмечает уведомление прочитанным
// @Summary		Уведомление прочитано
// @Tags			notifications
// @Produce		json
// @Param			id	path		string	true	"ID уведомления"
// @Security		BearerAuth
// @Success		200	{object}	response.SuccessResponse
// @Failure		404	{object}	response.ErrorResponse	"Уведомление не найдено (NOT_FOUND)"
// @Router			/api/notifications/{id}/read [post]
func MarkNotificationReadHandler(c *gin.Context) {
	userID := c.GetUint("userID")

	res := storage.DB.Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", c.Param("id"), userID).
		Update("is_read", true)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка обновления уведомления",
			Details: res.Error.Error(),
		})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, response.ErrorResponse{
			Code:    "NOT_FOUND",
			Message: "Уведомление не найдено",
		})
		return
	}
	c.JSON(http.StatusOK, response.SuccessResponse{Message: "Уведомление отмечено прочитанным"})
}
