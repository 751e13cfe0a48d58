package main

import (
	"fmt"
	"log"
	"os"

	_ "medqueue/docs"
	"medqueue/internal/auth"
	"medqueue/internal/handlers"
	"medqueue/internal/models"
	"medqueue/internal/queue"
	"medqueue/internal/storage"
	"medqueue/internal/tasks"
	"medqueue/internal/ws"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @Title						Бэкенд клиники: очередь пациентов и координация
// @securityDefinitions.apikey	BearerAuth
// @in							header
// @name						Authorization
func main() {
	key := os.Getenv("ENV_CHEK")
	if key == "" {
		fmt.Println("Подключение к .env")
		err := godotenv.Load()
		if err != nil {
			log.Fatal("Ошибка получения .env")
		}
	}

	storage.ConnectDatabase()

	if err := storage.DB.AutoMigrate(
		&models.User{}, &models.Patient{}, &models.Doctor{},
		&models.Appointment{}, &models.Notification{},
	); err != nil {
		log.Fatal("Ошибка при миграции... ", err.Error())
	}

	storage.InitRedis()

	hub := ws.NewHub()
	go hub.Run()

	handlers.Service = queue.NewService(storage.NewQueueStore(storage.DB), hub)
	// Живые очереди — проекция базы: восстанавливаем их до приёма запросов.
	if err := handlers.Service.Restore(); err != nil {
		log.Fatal("Ошибка восстановления очередей... ", err.Error())
	}

	tasks.InitScheduler(handlers.Service)

	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	authGroup := r.Group("/auth")
	{
		authGroup.POST("/login", handlers.Login)
		authGroup.POST("/register", handlers.Register)
		authGroup.POST("/refresh", handlers.RefreshToken)
	}

	api := r.Group("/api", auth.AuthMiddleware())
	{
		api.GET("/ws", ws.ServeWS(hub))

		doctors := api.Group("/doctors")
		{
			doctors.GET("", handlers.GetDoctorsHandler)
			doctors.GET("/:id/queue", handlers.GetDoctorQueueHandler)
			doctors.PUT("/:id/status",
				auth.RequireRoles(models.RoleDoctor, models.RoleAdmin),
				handlers.SetDoctorStatusHandler)
			doctors.POST("/:id/call-next",
				auth.RequireRoles(models.RoleDoctor, models.RoleAdmin),
				handlers.CallNextPatientHandler)
		}

		appointments := api.Group("/appointments")
		{
			appointments.POST("", handlers.BookAppointmentHandler)
			appointments.GET("/my", handlers.GetMyAppointmentsHandler)
			appointments.POST("/walkin",
				auth.RequireRoles(models.RoleReceptionist, models.RoleAdmin),
				handlers.WalkInHandler)
			appointments.POST("/:id/confirm",
				auth.RequireRoles(models.RoleReceptionist, models.RoleAdmin),
				handlers.ConfirmAppointmentHandler)
			appointments.POST("/:id/checkin",
				auth.RequireRoles(models.RoleReceptionist, models.RoleAdmin),
				handlers.CheckInHandler)
			appointments.POST("/:id/ready",
				auth.RequireRoles(models.RoleReceptionist, models.RoleAdmin),
				handlers.MarkReadyHandler)
			appointments.POST("/:id/start",
				auth.RequireRoles(models.RoleDoctor, models.RoleAdmin),
				handlers.StartConsultationHandler)
			appointments.POST("/:id/complete",
				auth.RequireRoles(models.RoleDoctor, models.RoleAdmin),
				handlers.CompleteConsultationHandler)
			appointments.POST("/:id/cancel", handlers.CancelAppointmentHandler)
		}

		notifications := api.Group("/notifications")
		{
			notifications.POST("",
				auth.RequireRoles(models.RoleAdmin, models.RoleDoctor, models.RoleReceptionist, models.RolePharmacist),
				handlers.SendNotificationHandler)
			notifications.GET("", handlers.GetMyNotificationsHandler)
			notifications.POST("/:id/read", handlers.MarkNotificationReadHandler)
		}
	}

	if err := r.Run(":8080"); err != nil {
		log.Fatal("Ошибка запуска сервера...", err.Error())
	}
}
