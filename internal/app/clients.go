package app

import (
	"context"
	"fmt"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
	goredis "github.com/redis/go-redis/v9"
	temporalsdkclient "go.temporal.io/sdk/client"

	"github.com/coursebuilder/backend/internal/clients/video"
	"github.com/coursebuilder/backend/internal/logger"
	"github.com/coursebuilder/backend/internal/temporalx"
)

type Clients struct {
	Redis    *goredis.Client
	Meili    meili.ServiceManager
	Video    *video.Client
	Temporal temporalsdkclient.Client
}

func wireClients(log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")

	var rdb *goredis.Client
	if cfg.RedisAddr != "" {
		rdb = goredis.NewClient(&goredis.Options{
			Addr:        cfg.RedisAddr,
			DialTimeout: 5 * time.Second,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := rdb.Ping(ctx).Err()
		cancel()
		if err != nil {
			_ = rdb.Close()
			return Clients{}, fmt.Errorf("redis ping: %w", err)
		}
	}

	var search meili.ServiceManager
	if cfg.MeiliHost != "" {
		search = meili.New(cfg.MeiliHost, meili.WithAPIKey(cfg.MeiliAPIKey))
	}

	videoClient := video.NewClient(cfg.VideoProviderURL, cfg.VideoProviderToken, log)

	tc, err := temporalx.NewClient(log)
	if err != nil {
		if rdb != nil {
			_ = rdb.Close()
		}
		return Clients{}, fmt.Errorf("init temporal client: %w", err)
	}

	return Clients{
		Redis:    rdb,
		Meili:    search,
		Video:    videoClient,
		Temporal: tc,
	}, nil
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
	if c.Temporal != nil {
		c.Temporal.Close()
	}
}
