package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/marutilaminates/laminates_backend/config"
	"github.com/marutilaminates/laminates_backend/images"
	"github.com/marutilaminates/laminates_backend/middlewares"
	"github.com/marutilaminates/laminates_backend/models"
	"github.com/marutilaminates/laminates_backend/pdf"
	"github.com/marutilaminates/laminates_backend/storage"
	"github.com/marutilaminates/laminates_backend/utils"
	"github.com/marutilaminates/laminates_backend/workflow"
)

const defaultPort = "8080"

var startedAt = time.Now()

type routerDeps struct {
	workflow  *workflow.QuotationWorkflow
	logger    *logrus.Logger
	now       func() time.Time
	rateLimit config.RateLimitConfig
}

func newRouter(deps routerDeps) *gin.Engine {
	r := gin.New()
	// Correlation IDs: generate once per request and attach to context.
	r.Use(func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Header("x-correlation-id", cid)
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Next()
	})
	r.Use(func(c *gin.Context) {
		// Always allow the startup probe.
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		if c.Request.URL.Path != "/health/detailed" && config.GetDB() == nil {
			utils.RespondCode(c, http.StatusServiceUnavailable, "NOT_READY", "service is starting", nil)
			return
		}
		c.Next()
	})
	r.Use(cors.New(corsConfig()))
	if deps.rateLimit.Enabled {
		r.Use(middlewares.RateLimit(deps.rateLimit, deps.logger))
	}
	r.Use(customErrorLogger(deps.logger))
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/health/detailed", detailedHealthHandler)

	api := r.Group("/api")
	api.POST("/auth/login", loginHandler)

	quotes := newQuotationHandlers(deps.workflow, deps.now)
	api.GET("/quotations/public/:id", quotes.public)

	authed := api.Group("", middlewares.AuthMiddleware())
	admin := middlewares.RequireAdmin()
	authed.GET("/auth/me", meHandler)

	users := authed.Group("/users", admin)
	users.GET("", listUsersHandler)
	users.POST("", createUserHandler)
	users.GET("/:id", getUserHandler)
	users.PUT("/:id", updateUserHandler)
	users.DELETE("/:id", deleteUserHandler)

	authed.GET("/references/categories", referenceCategoriesHandler)
	referenceRoutes().register(authed.Group("/references"), admin)
	customerRoutes().register(authed.Group("/customers"), admin)
	authed.GET("/products/units", unitsHandler)
	productRoutes().register(authed.Group("/products"), admin)
	locationRoutes().register(authed.Group("/locations"), admin)

	quotes.register(authed.Group("/quotations"), admin, middlewares.EditWindow(deps.now))

	r.NoRoute(customNotFoundHandler)
	return r
}

func corsConfig() cors.Config {
	cfg := cors.DefaultConfig()
	// In production, require an explicit allowlist via CORS_ALLOWED_ORIGINS (comma-separated).
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if config.IsProduction() {
		cfg.AllowOrigins = splitAndTrim(allowedOrigins)
		if len(cfg.AllowOrigins) == 0 {
			// Deny all if not configured in production.
			cfg.AllowOriginFunc = func(string) bool { return false }
		}
	} else {
		cfg.AllowAllOrigins = true
	}
	cfg.AddAllowMethods("GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS")
	cfg.AddAllowHeaders("Origin", "Content-Type", "Authorization", "x-correlation-id")
	cfg.AddExposeHeaders("Content-Length", "Content-Disposition", "x-correlation-id")
	cfg.AllowCredentials = !cfg.AllowAllOrigins
	return cfg
}

type dependencyStatus struct {
	Status    string  `json:"status"`
	LatencyMs float64 `json:"latency_ms,omitempty"`
	Error     string  `json:"error,omitempty"`
}

func ping(ctx context.Context, fn func(context.Context) error) dependencyStatus {
	start := time.Now()
	if err := fn(ctx); err != nil {
		return dependencyStatus{Status: "unhealthy", Error: err.Error()}
	}
	return dependencyStatus{Status: "healthy", LatencyMs: float64(time.Since(start).Microseconds()) / 1000}
}

func detailedHealthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	database := dependencyStatus{Status: "not_connected"}
	if db := config.GetDB(); db != nil {
		database = ping(ctx, func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		})
	}
	cache := dependencyStatus{Status: "not_configured"}
	if config.RedisConfigured() {
		cache.Status = "not_connected"
		if rdb := config.GetRedisDB(); rdb != nil {
			cache = ping(ctx, func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
		}
	}

	status := http.StatusOK
	if database.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, utils.Envelope{
		Success: status == http.StatusOK,
		Message: "Detailed server health information",
		Data: gin.H{
			"server": gin.H{
				"status":      "healthy",
				"timestamp":   time.Now().UTC().Format(time.RFC3339),
				"uptime":      time.Since(startedAt).Seconds(),
				"environment": os.Getenv("GO_ENV"),
			},
			"database": database,
			"redis":    cache,
		},
	})
}

func customNotFoundHandler(c *gin.Context) {
	utils.RespondCode(c, http.StatusNotFound, "ROUTE_NOT_FOUND", "route not found", nil)
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()
	if config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	if err := registerValidators(); err != nil {
		logger.WithFields(logrus.Fields{"field": "validators"}).Fatal(err.Error())
	}

	// SIGTERM on shutdown; handle it for graceful drain.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	store, err := storage.New(sigCtx)
	if err != nil {
		logger.WithFields(logrus.Fields{"field": "storage"}).Fatal(err.Error())
	}
	pipeline := images.NewPipeline(store, config.GetImageConfig(), logger)
	renderer := pdf.NewRenderer(pipeline, pdf.OptionsFromConfig(), logger)
	wf := workflow.NewQuotationWorkflow(store, pipeline, renderer, workflow.NewLocker(logger), logger)

	// Start the HTTP server first; until the DB is ready, app endpoints return 503.
	r := newRouter(routerDeps{
		workflow:  wf,
		logger:    logger,
		now:       time.Now,
		rateLimit: config.GetRateLimitConfig(),
	})
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		// ListenAndServe returns http.ErrServerClosed on graceful shutdown.
		serverErrCh <- srv.ListenAndServe()
	}()

	// Connect dependencies after the port is open.
	config.ConnectRedisWithRetry(sigCtx)
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	// AutoMigrate can run blocking DDL; SKIP_MIGRATIONS=true leaves it to the seed job.
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		if err := models.MigrateTable(); err != nil {
			logger.WithFields(logrus.Fields{"field": "migrations"}).Fatal(err.Error())
		}
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	logger.WithFields(logrus.Fields{
		"info": "Connection Established",
	}).Info("listening on :", port)

	// Block until shutdown or server error.
	select {
	case <-sigCtx.Done():
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	// Drain HTTP requests.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}
	if closer, ok := store.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
	config.CloseRedis()
}

// customErrorLogger is a custom Gin middleware that logs only errors
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Only log when there are errors
		if len(c.Errors) > 0 {
			cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
			logger.WithFields(logrus.Fields{
				"path":           c.FullPath(),
				"method":         c.Request.Method,
				"status":         c.Writer.Status(),
				"correlation_id": cid,
			}).Error(c.Errors.String())
		}
	}
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
