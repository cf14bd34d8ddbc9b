package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"healthplus-server/internal/clinic"
	"healthplus-server/internal/config"
	"healthplus-server/internal/handlers"
	"healthplus-server/internal/middleware"
	"healthplus-server/internal/models"
	"healthplus-server/internal/queue"
)

// Services are the domain services the HTTP layer exposes.
type Services struct {
	Clinic *clinic.Service
	Queue  *queue.Service
}

// SetupRoutes configures the application routes.
func SetupRoutes(router *gin.Engine, svc Services, cfg *config.Config) {
	authHandler := handlers.NewAuthHandler(svc.Clinic, cfg)
	userHandler := handlers.NewUserHandler(svc.Clinic)
	visitHandler := handlers.NewVisitHandler(svc.Clinic)
	queueHandler := handlers.NewQueueHandler(svc.Queue)

	// Public routes (no authentication required)
	public := router.Group("/api")
	{
		authRoutes := public.Group("/auth")
		{
			authRoutes.POST("/register", authHandler.Register)
			authRoutes.POST("/patient-login", authHandler.PatientLogin)
			authRoutes.POST("/doctor-login", authHandler.DoctorLogin)
		}
	}

	// Authenticated routes
	private := router.Group("/api")
	private.Use(middleware.AuthMiddleware(cfg.JWTSecret))
	{
		private.GET("/auth/me", authHandler.GetProfile)
		private.GET("/doctors", userHandler.GetDoctors)

		patientRoutes := private.Group("/patients")
		{
			patientRoutes.GET("/search", middleware.RoleAuthMiddleware(models.RoleDoctor), userHandler.SearchPatients)
			patientRoutes.PATCH("/:id", middleware.RoleAuthMiddleware(models.RolePatient), userHandler.UpdatePatient) // Self only, checked in service
		}

		visitRoutes := private.Group("/visits")
		{
			visitRoutes.GET("/patient/:patientId", visitHandler.GetVisitsForPatient)
			visitRoutes.POST("", middleware.RoleAuthMiddleware(models.RoleDoctor), visitHandler.CreateVisit)

			visitRoutes.GET("/:visitId/prescriptions", visitHandler.GetPrescriptions)
			visitRoutes.POST("/:visitId/prescriptions", middleware.RoleAuthMiddleware(models.RoleDoctor), visitHandler.AddPrescription)
			visitRoutes.PATCH("/prescriptions/:id", middleware.RoleAuthMiddleware(models.RoleDoctor), visitHandler.UpdatePrescription)
			visitRoutes.POST("/prescriptions/:id/doses", visitHandler.ToggleDose)
		}

		queueRoutes := private.Group("/queue")
		{
			queueRoutes.POST("/join", middleware.RoleAuthMiddleware(models.RolePatient), queueHandler.JoinQueue)

			queueRoutes.PATCH("/entries/:id/triage", middleware.RoleAuthMiddleware(models.RolePatient), queueHandler.SubmitTriage)
			queueRoutes.GET("/entries/:id/status", queueHandler.GetStatus)

			queueRoutes.GET("/:doctorId", queueHandler.GetQueue)
			queueRoutes.GET("/:doctorId/events", queueHandler.StreamEvents)
			queueRoutes.POST("/:doctorId/next", middleware.RoleAuthMiddleware(models.RoleDoctor), queueHandler.CallNext)
			queueRoutes.POST("/:doctorId/end", middleware.RoleAuthMiddleware(models.RoleDoctor), queueHandler.EndSession)
		}
	}

	// Simple health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "UP"})
	})
}
