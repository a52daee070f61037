package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/coursebuilder/backend/internal/handlers"
	"github.com/coursebuilder/backend/internal/middleware"
)

const serviceName = "coursebuilder"

type RouterConfig struct {
	AuthHandler     *handlers.AuthHandler
	AuthMiddleware  *middleware.AuthMiddleware
	ContentHandler  *handlers.ContentHandler
	AbilityHandler  *handlers.AbilityHandler
	ProgressHandler *handlers.ProgressHandler
	SearchHandler   *handlers.SearchHandler
	JobsHandler     *handlers.JobsHandler
	WebhookHandler  *handlers.WebhookHandler
	AllowOrigins    []string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()
	router.Use(otelgin.Middleware(serviceName))
	router.Use(middleware.AttachTraceContext())

	origins := cfg.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With", "X-Webhook-Secret"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", handlers.HealthCheck)

	// Webhooks carry their own verification.
	webhooks := router.Group("/webhooks")
	{
		webhooks.POST("/stripe", cfg.WebhookHandler.HandleStripe)
		webhooks.POST("/:provider", cfg.WebhookHandler.HandleProvider)
	}

	api := router.Group("/api")

	// Auth
	api.POST("/auth/register", cfg.AuthHandler.Register)
	api.POST("/auth/login", cfg.AuthHandler.Login)
	api.POST("/auth/refresh", cfg.AuthHandler.Refresh)
	api.POST("/auth/logout", cfg.AuthHandler.Logout)

	// Public reads: anonymous gets the public rule set, a valid token
	// upgrades it.
	public := api.Group("/")
	public.Use(cfg.AuthMiddleware.OptionalAuth())
	{
		public.GET("/resources/:id", cfg.ContentHandler.Get)
		public.GET("/resources/:id/tree", cfg.ContentHandler.GetTree)
		public.GET("/search", cfg.SearchHandler.Search)
		public.GET("/ability", cfg.AbilityHandler.GetRules)
	}

	// Writes require a signed-in caller; per-row permission checks run
	// in the handlers.
	protected := api.Group("/")
	protected.Use(cfg.AuthMiddleware.RequireAuth())
	{
		protected.POST("/resources", cfg.ContentHandler.Create)
		protected.PUT("/resources/:id", cfg.ContentHandler.Update)
		protected.DELETE("/resources/:id", cfg.ContentHandler.Delete)
		protected.POST("/resources/:id/state", cfg.ContentHandler.SetState)
		protected.POST("/resources/:id/children", cfg.ContentHandler.Attach)
		protected.DELETE("/resources/:id/children/:childID", cfg.ContentHandler.Detach)
		protected.POST("/resources/:id/reorder", cfg.ContentHandler.Reorder)
		protected.POST("/resources/:id/video", cfg.ContentHandler.AttachVideo)

		protected.POST("/resources/:id/progress", cfg.ProgressHandler.Set)
		protected.GET("/progress", cfg.ProgressHandler.List)

		protected.GET("/jobs/:id", cfg.JobsHandler.GetByID)
		protected.POST("/jobs/:id/cancel", cfg.JobsHandler.Cancel)
	}

	return router
}
