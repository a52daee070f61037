package app

import (
	"strings"

	"github.com/coursebuilder/backend/internal/logger"
	"github.com/coursebuilder/backend/internal/utils"
)

type Config struct {
	JWTSecretKey        string
	WebhookSharedSecret string
	StripeWebhookSecret string
	RedisAddr           string
	MeiliHost           string
	MeiliAPIKey         string
	VideoProviderURL    string
	VideoProviderToken  string
	AllowOrigins        []string
	Port                string
}

func LoadConfig(log *logger.Logger) Config {
	jwtSecretKey := utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log)
	webhookSharedSecret := utils.GetEnv("WEBHOOK_SHARED_SECRET", "", log)
	stripeWebhookSecret := utils.GetEnv("STRIPE_WEBHOOK_SECRET", "", log)
	redisAddr := utils.GetEnv("REDIS_ADDR", "", log)
	meiliHost := utils.GetEnv("MEILI_HOST", "", log)
	meiliAPIKey := utils.GetEnv("MEILI_API_KEY", "", log)
	videoProviderURL := utils.GetEnv("VIDEO_PROVIDER_URL", "", log)
	videoProviderToken := utils.GetEnv("VIDEO_PROVIDER_TOKEN", "", log)
	allowOrigins := utils.GetEnv("ALLOW_ORIGINS", "http://localhost:3000", log)
	port := utils.GetEnv("PORT", "8080", log)

	var origins []string
	for _, o := range strings.Split(allowOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}

	return Config{
		JWTSecretKey:        jwtSecretKey,
		WebhookSharedSecret: webhookSharedSecret,
		StripeWebhookSecret: stripeWebhookSecret,
		RedisAddr:           redisAddr,
		MeiliHost:           meiliHost,
		MeiliAPIKey:         meiliAPIKey,
		VideoProviderURL:    videoProviderURL,
		VideoProviderToken:  videoProviderToken,
		AllowOrigins:        origins,
		Port:                port,
	}
}
