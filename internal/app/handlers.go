package app

import (
	"github.com/coursebuilder/backend/internal/handlers"
	"github.com/coursebuilder/backend/internal/logger"
)

type Handlers struct {
	Auth     *handlers.AuthHandler
	Content  *handlers.ContentHandler
	Ability  *handlers.AbilityHandler
	Progress *handlers.ProgressHandler
	Search   *handlers.SearchHandler
	Jobs     *handlers.JobsHandler
	Webhook  *handlers.WebhookHandler
}

func wireHandlers(log *logger.Logger, cfg Config, s Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Auth:     handlers.NewAuthHandler(s.Auth),
		Content:  handlers.NewContentHandler(s.Content, s.Tree, s.Video, s.Ability),
		Ability:  handlers.NewAbilityHandler(s.Ability),
		Progress: handlers.NewProgressHandler(s.Progress),
		Search:   handlers.NewSearchHandler(s.Search),
		Jobs:     handlers.NewJobsHandler(s.Jobs),
		Webhook:  handlers.NewWebhookHandler(log, s.Jobs, s.Commerce, cfg.WebhookSharedSecret, cfg.StripeWebhookSecret),
	}
}
