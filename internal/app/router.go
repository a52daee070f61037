package app

import (
	"github.com/gin-gonic/gin"

	"github.com/coursebuilder/backend/internal/server"
)

func wireRouter(cfg Config, h Handlers, m Middleware) *gin.Engine {
	return server.NewRouter(server.RouterConfig{
		AuthHandler:     h.Auth,
		AuthMiddleware:  m.Auth,
		ContentHandler:  h.Content,
		AbilityHandler:  h.Ability,
		ProgressHandler: h.Progress,
		SearchHandler:   h.Search,
		JobsHandler:     h.Jobs,
		WebhookHandler:  h.Webhook,
		AllowOrigins:    cfg.AllowOrigins,
	})
}
