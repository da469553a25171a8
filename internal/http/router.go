package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/dkuznetsov/authsvc/internal/auth"
	"github.com/dkuznetsov/authsvc/internal/config"
	"github.com/dkuznetsov/authsvc/internal/http/handlers"
	"github.com/dkuznetsov/authsvc/internal/http/middlewares"
	"github.com/dkuznetsov/authsvc/internal/observability"
	"github.com/dkuznetsov/authsvc/internal/redisclient"
	"github.com/dkuznetsov/authsvc/internal/repo/postgres"
	"github.com/dkuznetsov/authsvc/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const roleCacheTTL = 30 * time.Second

func NewRouter(log *slog.Logger, pool *pgxpool.Pool, rdb *redisclient.Client, prom *observability.Prom, cfg config.Config) *gin.Engine {
	if cfg.Env != "dev" && cfg.Env != "test" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	// middleware

	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger(log))
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(cfg.CORSOrigins))
	r.Use(middlewares.RequireJSON())
	r.Use(middlewares.MaxBodyBytes(1 << 20))
	r.Use(otelgin.Middleware("authsvc"))

	if prom != nil {
		r.Use(prom.GinHandleMiddleware())
	}

	// health probes
	pingDB := func() error {
		if pool == nil {
			return nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()

		return pool.Ping(ctx)
	}

	var pingRedis func() error

	if rdb != nil {
		pingRedis = func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
			defer cancel()

			return rdb.Ping(ctx)
		}
	}

	h := handlers.NewHealthHandler(pingDB, pingRedis)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// wire up the auth stack
	accountsRepo := postgres.NewAccountsRepo(pool, prom)
	tokens := auth.NewManager(cfg.JWTSecret, cfg.RefreshJWTSecret, cfg.Host, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	svc := service.NewAuthService(accountsRepo, tokens, log, prom)

	authHandler := handlers.NewAuthHandler(svc)
	userAuth := middlewares.NewAuthMiddleware(tokens)
	adminAuth := middlewares.NewAdminMiddleware(svc, roleCacheTTL)
	limiter := middlewares.NewRateLimiter(rdb, cfg.LoginRateLimit, cfg.LoginRateWindow, log)

	api := r.Group("/api")
	api.GET("/", func(ctx *gin.Context) {
		ctx.String(http.StatusOK, "REST Server AUTH")
	})

	a := api.Group("/auth")
	a.PUT("/create", limiter.Limit(), authHandler.Create)
	a.POST("/login", limiter.Limit(), authHandler.Login)
	a.POST("/refresh", authHandler.Refresh)
	a.GET("/account", userAuth.RequireUser(), authHandler.Account)
	a.DELETE("/account", userAuth.RequireUser(), adminAuth.RequireAdmin(), authHandler.Delete)
	a.POST("/set-admin", userAuth.RequireUser(), adminAuth.RequireAdmin(), authHandler.SetAdmin)
	a.POST("/set-user", userAuth.RequireUser(), adminAuth.RequireAdmin(), authHandler.SetUser)
	a.GET("/several/:skip/:take", userAuth.RequireUser(), authHandler.Several)

	r.NoRoute(func(ctx *gin.Context) {
		ctx.JSON(http.StatusNotFound, gin.H{"message": "Not Found"})
	})

	return r
}
