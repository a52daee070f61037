package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/coursebuilder/backend/internal/logger"
	"github.com/coursebuilder/backend/internal/requestdata"
	"github.com/coursebuilder/backend/internal/services"
)

type AuthMiddleware struct {
	log  *logger.Logger
	auth services.AuthService
}

func NewAuthMiddleware(baseLog *logger.Logger, auth services.AuthService) *AuthMiddleware {
	return &AuthMiddleware{
		log:  baseLog.With("middleware", "AuthMiddleware"),
		auth: auth,
	}
}

// RequireAuth rejects requests without a valid access token and stores
// the resolved identity on the request context.
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractToken(c)
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid token"})
			return
		}
		rd, err := am.resolve(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Request = c.Request.WithContext(requestdata.WithRequestData(c.Request.Context(), rd))
		c.Next()
	}
}

// OptionalAuth resolves identity when a token is present but lets
// anonymous requests through. Read endpoints use this so public content
// stays public.
func (am *AuthMiddleware) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokenString := extractToken(c); tokenString != "" {
			if rd, err := am.resolve(tokenString); err == nil {
				c.Request = c.Request.WithContext(requestdata.WithRequestData(c.Request.Context(), rd))
			}
		}
		c.Next()
	}
}

func (am *AuthMiddleware) resolve(tokenString string) (*requestdata.RequestData, error) {
	claims, err := am.auth.ParseAccessToken(tokenString)
	if err != nil {
		return nil, err
	}
	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, err
	}
	return &requestdata.RequestData{
		TokenString: tokenString,
		UserID:      userID,
		Role:        claims.Role,
		Roles:       claims.Roles,
	}, nil
}

func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return authHeader[7:]
	}
	return c.Query("token")
}
