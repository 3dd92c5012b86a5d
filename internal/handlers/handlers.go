// Package handlers exposes the bridge's admin API: health, runtime flags and
// direct avatar inspection.
package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/mightymop/avatarbridge/internal/config"
	"github.com/mightymop/avatarbridge/internal/engine"
	"github.com/mightymop/avatarbridge/internal/middleware"
)

type HandlerSet struct {
	log    zerolog.Logger
	cfg    *config.AppConfig
	bridge *engine.Engine
	flags  *engine.Flags
	db     *pgxpool.Pool
	cache  *redis.Client
}

func NewHandlerSet(log zerolog.Logger, cfg *config.AppConfig, bridge *engine.Engine, flags *engine.Flags, db *pgxpool.Pool, cache *redis.Client) HandlerSet {
	return HandlerSet{
		log:    log,
		cfg:    cfg,
		bridge: bridge,
		flags:  flags,
		db:     db,
		cache:  cache,
	}
}

func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	v1 := router.Group("/v1")
	v1.Use(middleware.Auth(h.cfg.Admin.Token))

	v1.GET("/flags", h.GetFlags)
	v1.PUT("/flags", h.PutFlags)

	v1.GET("/avatars/:jid", h.GetAvatar)
	v1.DELETE("/avatars/:jid", h.DeleteAvatar)
}
