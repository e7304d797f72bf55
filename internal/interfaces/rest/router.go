package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tfxTanoli/nextperience-crm-sub001/internal/application/services"
	"github.com/tfxTanoli/nextperience-crm-sub001/internal/config"
	"github.com/tfxTanoli/nextperience-crm-sub001/internal/interfaces/middleware"
	"github.com/tfxTanoli/nextperience-crm-sub001/internal/metrics"
)

// NewRouter wires every HTTP route onto a gin engine.
func NewRouter(cfg *config.Config, svcMgr *services.ServiceManager, limiter *middleware.RateLimiter, logger *zap.Logger) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID(logger))
	router.Use(middleware.AccessLog(logger))
	router.Use(middleware.Metrics())
	router.Use(middleware.Cors(cfg.AllowedOrigins()))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	authHandler := NewAuthHandler(svcMgr)
	companyHandler := NewCompanyHandler(svcMgr)
	userHandler := NewUserHandler(svcMgr)
	roleHandler := NewRoleHandler(svcMgr)
	leadHandler := NewLeadHandler(svcMgr)
	customerHandler := NewCustomerHandler(svcMgr)
	templateHandler := NewTemplateHandler(svcMgr)
	quotationHandler := NewQuotationHandler(svcMgr)
	eventOrderHandler := NewEventOrderHandler(svcMgr)
	paymentHandler := NewPaymentHandler(svcMgr)
	integrationHandler := NewIntegrationHandler(svcMgr, cfg.Server.FrontendURL)
	reportHandler := NewReportHandler(svcMgr)

	// Unauthenticated callbacks from external systems
	router.POST("/webhooks/xendit/invoice", paymentHandler.XenditWebhook)
	router.GET("/oauth/google/callback", integrationHandler.GoogleCallback)

	api := router.Group("/api")
	api.POST("/auth/login", limiter.Handler(), authHandler.Login)

	requireAuth := middleware.RequireAuth(svcMgr.Auth, svcMgr.Companies)
	secured := api.Group("", requireAuth, limiter.Handler())

	authGroup := secured.Group("/auth")
	{
		authGroup.POST("/logout", authHandler.Logout)
		authGroup.GET("/me", authHandler.Me)
		authGroup.GET("/permissions", roleHandler.MyPermissions)
		authGroup.POST("/change-password", authHandler.ChangePassword)
	}

	requireAdmin := middleware.RequirePlatformAdmin()
	companyGroup := secured.Group("/companies")
	{
		companyGroup.GET("/current", companyHandler.GetCompany)
		companyGroup.PATCH("/current", companyHandler.UpdateCompany)
		companyGroup.GET("/units", companyHandler.ListBusinessUnits)
		companyGroup.POST("/units", companyHandler.CreateBusinessUnit)

		companyGroup.GET("", requireAdmin, companyHandler.ListCompanies)
		companyGroup.POST("", requireAdmin, companyHandler.CreateCompany)
		companyGroup.POST("/:id/activate", requireAdmin, companyHandler.ActivateCompany)
		companyGroup.POST("/:id/deactivate", requireAdmin, companyHandler.DeactivateCompany)
	}

	userGroup := secured.Group("/users")
	{
		userGroup.GET("", userHandler.ListUsers)
		userGroup.POST("", userHandler.InviteUser)
		userGroup.GET("/:id", userHandler.GetUser)
		userGroup.PATCH("/:id", userHandler.UpdateUser)
		userGroup.DELETE("/:id", userHandler.DeleteUser)
		userGroup.POST("/:id/reset-password", userHandler.ResetPassword)
	}

	roleGroup := secured.Group("/roles")
	{
		roleGroup.GET("", roleHandler.ListRoles)
		roleGroup.POST("", roleHandler.CreateRole)
		roleGroup.GET("/:id", roleHandler.GetRole)
		roleGroup.PUT("/:id", roleHandler.UpdateRole)
		roleGroup.DELETE("/:id", roleHandler.DeleteRole)
	}

	leadGroup := secured.Group("/leads")
	{
		leadGroup.GET("", leadHandler.ListLeads)
		leadGroup.POST("", leadHandler.CreateLead)
		leadGroup.GET("/:id", leadHandler.GetLead)
		leadGroup.PATCH("/:id", leadHandler.UpdateLead)
		leadGroup.DELETE("/:id", leadHandler.DeleteLead)
		leadGroup.POST("/:id/assign", leadHandler.AssignLead)
		leadGroup.POST("/:id/status", leadHandler.ChangeStatus)
		leadGroup.POST("/:id/convert", leadHandler.ConvertLead)
		leadGroup.GET("/:id/activities", leadHandler.ListActivities)
		leadGroup.POST("/:id/activities", leadHandler.AddActivity)
	}

	scoringGroup := secured.Group("/lead-scoring-rules")
	{
		scoringGroup.GET("", leadHandler.ListScoringRules)
		scoringGroup.POST("", leadHandler.CreateScoringRule)
		scoringGroup.PUT("/:id", leadHandler.UpdateScoringRule)
		scoringGroup.DELETE("/:id", leadHandler.DeleteScoringRule)
	}

	customerGroup := secured.Group("/customers")
	{
		customerGroup.GET("", customerHandler.ListCustomers)
		customerGroup.POST("", customerHandler.CreateCustomer)
		customerGroup.GET("/:id", customerHandler.GetCustomer)
		customerGroup.GET("/:id/summary", customerHandler.GetSummary)
		customerGroup.PATCH("/:id", customerHandler.UpdateCustomer)
		customerGroup.DELETE("/:id", customerHandler.DeleteCustomer)
	}

	templateGroup := secured.Group("/templates")
	{
		templateGroup.GET("", templateHandler.ListTemplates)
		templateGroup.POST("", templateHandler.CreateTemplate)
		templateGroup.GET("/:id", templateHandler.GetTemplate)
		templateGroup.PUT("/:id", templateHandler.UpdateTemplate)
		templateGroup.DELETE("/:id", templateHandler.DeleteTemplate)
		templateGroup.POST("/:id/render", templateHandler.RenderTemplate)
	}

	quotationGroup := secured.Group("/quotations")
	{
		quotationGroup.GET("", quotationHandler.ListQuotations)
		quotationGroup.POST("", quotationHandler.CreateQuotation)
		quotationGroup.GET("/:id", quotationHandler.GetQuotation)
		quotationGroup.PUT("/:id", quotationHandler.UpdateQuotation)
		quotationGroup.DELETE("/:id", quotationHandler.DeleteQuotation)
		quotationGroup.POST("/:id/send", quotationHandler.Send)
		quotationGroup.POST("/:id/accept", quotationHandler.Accept)
		quotationGroup.POST("/:id/reject", quotationHandler.Reject)
		quotationGroup.POST("/:id/revise", quotationHandler.Revise)
		quotationGroup.POST("/:id/duplicate", quotationHandler.Duplicate)
		quotationGroup.POST("/:id/convert", quotationHandler.ConvertToEventOrder)
	}

	eventOrderGroup := secured.Group("/event-orders")
	{
		eventOrderGroup.GET("", eventOrderHandler.ListEventOrders)
		eventOrderGroup.POST("", eventOrderHandler.CreateEventOrder)
		eventOrderGroup.GET("/:id", eventOrderHandler.GetEventOrder)
		eventOrderGroup.GET("/:id/balance", eventOrderHandler.GetBalance)
		eventOrderGroup.PATCH("/:id", eventOrderHandler.UpdateEventOrder)
		eventOrderGroup.POST("/:id/start", eventOrderHandler.Start)
		eventOrderGroup.POST("/:id/complete", eventOrderHandler.Complete)
		eventOrderGroup.POST("/:id/cancel", eventOrderHandler.Cancel)
	}

	paymentGroup := secured.Group("/payments")
	{
		paymentGroup.GET("", paymentHandler.ListPayments)
		paymentGroup.POST("", paymentHandler.RecordManualPayment)
		paymentGroup.POST("/invoices", paymentHandler.CreateInvoice)
		paymentGroup.GET("/:id", paymentHandler.GetPayment)
		paymentGroup.POST("/:id/void", paymentHandler.VoidPayment)
		paymentGroup.POST("/:id/sync", paymentHandler.SyncInvoice)
	}

	integrationGroup := secured.Group("/integrations/google")
	{
		integrationGroup.GET("", integrationHandler.GoogleStatus)
		integrationGroup.GET("/connect", integrationHandler.GoogleConnect)
		integrationGroup.DELETE("", integrationHandler.GoogleDisconnect)
	}

	reportGroup := secured.Group("/reports")
	{
		reportGroup.GET("/dashboard", reportHandler.Dashboard)
		reportGroup.POST("/query", reportHandler.RunQuery)
		reportGroup.GET("/export/:kind", reportHandler.Export)
	}

	return router
}
