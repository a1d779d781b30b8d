package di

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"user-records-service/cmd/api/infrastructure"
	"user-records-service/internal/adapter/cache"
	"user-records-service/internal/adapter/db/sqlstore"
	ginhandler "user-records-service/internal/adapter/gin/handler"
	"user-records-service/internal/adapter/gin/middleware"
	ginrouter "user-records-service/internal/adapter/gin/router"
	"user-records-service/internal/adapter/repository/cached"
	"user-records-service/internal/config"
	"user-records-service/internal/usecase/user"
	redisclient "user-records-service/pkg/redis"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Container holds all application dependencies
type Container struct {
	Config      *config.Config
	Logger      *zap.Logger
	DB          *gorm.DB
	Store       *sqlstore.Store
	Sessions    user.SessionFactory
	RedisClient *redisclient.Client // nil when Redis is disabled
	UserUC      user.Usecase
	RateLimiter *middleware.RateLimiter // nil when rate limiting is disabled
	GinHandler  *ginhandler.UserHandler
	Router      http.Handler
}

// NewContainer creates and initializes all application dependencies
func NewContainer(ctx context.Context, cfg *config.Config, l *zap.Logger) (*Container, error) {
	// Validate configuration before initializing any dependencies
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	c := &Container{Config: cfg, Logger: l}

	// Initialize database
	db, err := infrastructure.NewDatabase(cfg, l)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	c.DB = db
	c.Store = sqlstore.NewStore(db, l)

	if err := c.Store.Ping(ctx); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	// Initialize Redis client
	rdb, err := infrastructure.NewRedisClient(ctx, cfg, l)
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to initialize Redis: %w", err)
	}
	c.RedisClient = rdb

	// Sessions, optionally behind the cache layer
	c.Sessions = c.Store
	if rdb != nil {
		userCache := cache.NewRedisUserCache(rdb.Client, time.Duration(cfg.Redis.CacheTTL)*time.Second, l)
		c.Sessions = cached.NewSessionFactory(c.Store, userCache, l)
	}

	// Initialize use case
	c.UserUC = user.New(c.Sessions, l)

	// Initialize rate limiter
	if cfg.RateLimit.Enabled && rdb != nil {
		c.RateLimiter = middleware.NewRateLimiter(
			rdb.Client,
			middleware.RateLimiterConfig{
				RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
				BurstCapacity:     cfg.RateLimit.BurstCapacity,
			},
			l,
		)
	}

	// Initialize Gin handler and router
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	c.GinHandler = ginhandler.NewUserHandler(c.UserUC, l)
	c.Router = ginrouter.SetupRouter(c.GinHandler, l, ginrouter.Options{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		RateLimiter:    c.RateLimiter,
		Health:         c.Store,
		ServiceName:    cfg.Logger.ServiceName,
	})

	return c, nil
}

// Close closes all resources held by the container
func (c *Container) Close() error {
	var errs []error

	// Close Redis connection
	if c.RedisClient != nil {
		if err := c.RedisClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close Redis: %w", err))
		}
	}

	// Close database connection
	if c.DB != nil {
		if err := infrastructure.CloseDatabase(c.DB); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
	}

	return errors.Join(errs...)
}
