package api

import (
	"alcyxob/health-protocols/internal/domain"
	"alcyxob/health-protocols/internal/service"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Services groups the service layer consumed by the HTTP handlers.
type Services struct {
	Auth     service.AuthService
	Trainer  service.TrainerService
	Template service.TemplateService
	Protocol service.ProtocolService
}

func SetupRoutes(router *gin.Engine, jwtSecret string, maxProtocolBodyBytes int64, services Services) {
	authHandler := NewAuthHandler(services.Auth)
	trainerHandler := NewTrainerHandler(services.Trainer)
	templateHandler := NewTemplateHandler(services.Template)
	protocolHandler := NewProtocolHandler(services.Protocol, maxProtocolBodyBytes)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	apiGroup := router.Group("/api")
	{
		authGroup := apiGroup.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
		}
	}

	protected := apiGroup.Group("")
	protected.Use(AuthMiddleware(jwtSecret))
	{
		protected.GET("/me", func(c *gin.Context) {
			userIDStr, err := getUserIDFromContext(c)
			if err != nil {
				abortWithError(c, http.StatusInternalServerError, "Failed to get user ID from token")
				return
			}
			role, _ := getUserRoleFromContext(c)
			c.JSON(http.StatusOK, gin.H{"userId": userIDStr, "role": role})
		})

		// Templates are readable by every authenticated user.
		protected.GET("/protocol-templates", templateHandler.ListTemplates)
		protected.GET("/protocol-templates/:id", templateHandler.GetTemplate)

		trainerGroup := protected.Group("/trainer")
		trainerGroup.Use(RoleMiddleware(domain.RoleTrainer))
		{
			trainerGroup.GET("/customers", trainerHandler.GetManagedCustomers)
			trainerGroup.POST("/customers", trainerHandler.AddCustomerByEmail)

			trainerGroup.POST("/health-protocols", BodyLimitMiddleware(maxProtocolBodyBytes), protocolHandler.CreateProtocol)
			trainerGroup.GET("/health-protocols", protocolHandler.ListProtocols)
			trainerGroup.GET("/health-protocols/:protocolId", protocolHandler.GetProtocol)
			trainerGroup.POST("/health-protocols/:protocolId/assignments", protocolHandler.AssignProtocol)
			trainerGroup.GET("/health-protocols/:protocolId/export", protocolHandler.ExportProtocol)

			trainerGroup.GET("/assignments", protocolHandler.ListAssignments)
			trainerGroup.PATCH("/assignments/:assignmentId", protocolHandler.UpdateAssignmentStatus)
		}

		customerGroup := protected.Group("/customer")
		customerGroup.Use(RoleMiddleware(domain.RoleCustomer))
		{
			customerGroup.GET("/assignments", protocolHandler.GetMyAssignments)
		}
	}
}
