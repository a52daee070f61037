package app

import (
	"github.com/coursebuilder/backend/internal/logger"
	"github.com/coursebuilder/backend/internal/middleware"
)

type Middleware struct {
	Auth *middleware.AuthMiddleware
}

func wireMiddleware(log *logger.Logger, s Services) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{
		Auth: middleware.NewAuthMiddleware(log, s.Auth),
	}
}
