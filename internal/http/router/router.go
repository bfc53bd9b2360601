package router

import (
	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/translation-kpi/internal/config"
	"github.com/ignatzorin/translation-kpi/internal/http/handlers"
	"github.com/ignatzorin/translation-kpi/internal/http/middleware"
	"github.com/ignatzorin/translation-kpi/internal/interface/http/handler"
	"github.com/ignatzorin/translation-kpi/internal/service"
)

// Handlers все обработчики, которые подключает роутер.
type Handlers struct {
	Health       *handlers.HealthHandler
	WS           *handlers.WSHandler
	Notification *handlers.NotificationHandler
	Project      *handler.ProjectHandler
	KPI          *handler.KPIHandler
	Coefficient  *handler.CoefficientHandler
}

func SetupRouter(cfg *config.Config, tokenManager *service.TokenManager, h Handlers) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", h.Health.Health)

	api := r.Group("/api")
	api.GET("/ws", h.WS.Handle)

	// Расчёты и генерация тяжелее обычных запросов
	heavy := middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod)

	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(tokenManager))
	{
		protected.GET("/notifications", h.Notification.ListNotifications)
		protected.GET("/notifications/unread/count", h.Notification.CountUnread)
		protected.PUT("/notifications/:id/read", middleware.UUIDValidator("id"), h.Notification.MarkAsRead)

		// Проекты
		protected.POST("/projects", h.Project.CreateProject)
		protected.GET("/projects", h.Project.ListProjects)
		protected.GET("/projects/:id", middleware.UUIDValidator("id"), h.Project.GetProject)
		protected.PUT("/projects/:id", middleware.UUIDValidator("id"), h.Project.UpdateProject)
		protected.GET("/projects/:id/history", middleware.UUIDValidator("id"), h.Project.GetHistory)
		protected.POST("/projects/:id/members", middleware.UUIDValidator("id"), h.Project.AddMember)
		protected.DELETE("/projects/:id/members/:memberId", middleware.UUIDValidator("id"), middleware.UUIDValidator("memberId"), h.Project.RemoveMember)
		protected.POST("/projects/:id/start", middleware.UUIDValidator("id"), h.Project.StartProject)
		protected.POST("/projects/:id/status", middleware.UUIDValidator("id"), h.Project.AdvanceStatus)
		protected.POST("/projects/:id/complete", middleware.UUIDValidator("id"), h.Project.CompleteProject)
		protected.POST("/projects/:id/cancel", middleware.UUIDValidator("id"), h.Project.CancelProject)
		protected.GET("/projects/:id/kpi-preview", middleware.UUIDValidator("id"), heavy, h.KPI.PreviewProject)

		// Назначения
		protected.POST("/assignments/:memberId/accept", middleware.UUIDValidator("memberId"), h.Project.AcceptAssignment)
		protected.POST("/assignments/:memberId/reject", middleware.UUIDValidator("memberId"), h.Project.RejectAssignment)

		// KPI
		protected.POST("/kpi/calculate", heavy, h.KPI.Calculate)
		protected.POST("/kpi/generate", heavy, h.KPI.GenerateMonth)
		protected.POST("/kpi/preview", heavy, h.KPI.PreviewBatch)
		protected.GET("/kpi/dashboard", heavy, h.KPI.Dashboard)
		protected.GET("/kpi/records", h.KPI.ListRecords)
		protected.POST("/kpi/records/:id/approve", middleware.UUIDValidator("id"), h.KPI.ApproveRecord)
		protected.POST("/kpi/records/:id/reject", middleware.UUIDValidator("id"), h.KPI.RejectRecord)
		protected.GET("/kpi/monthly", h.KPI.ListMonthly)
		protected.POST("/kpi/monthly/:id/evaluate", middleware.UUIDValidator("id"), h.KPI.EvaluateMonthly)
		protected.POST("/kpi/monthly/:id/approve", middleware.UUIDValidator("id"), h.KPI.ApproveMonthly)
		protected.POST("/kpi/monthly/:id/reject", middleware.UUIDValidator("id"), h.KPI.RejectMonthly)

		// Коэффициенты
		protected.GET("/coefficients", h.Coefficient.GetActive)
		protected.PUT("/coefficients", h.Coefficient.Update)
		protected.GET("/coefficients/history", h.Coefficient.ListHistory)
	}

	return r
}
