package router

import (
	"context"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/stemsi/jlpt-proctor/internal/config"
	"github.com/stemsi/jlpt-proctor/internal/handler"
	"github.com/stemsi/jlpt-proctor/internal/logger"
	"github.com/stemsi/jlpt-proctor/internal/middleware"
	"github.com/stemsi/jlpt-proctor/internal/response"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Exam    *handler.ExamHandler
	WS      *handler.WSHandler
	Monitor *handler.MonitorHandler
	System  *handler.SystemHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
// ctx bounds background helpers such as the rate limiter sweeper.
func SetupRouter(
	ctx context.Context,
	auth middleware.TokenValidator,
	handlers *Handlers,
	cfg *config.Config,
	log zerolog.Logger,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	router.Use(response.RequestIDMiddleware())
	router.Use(logger.RequestLogger(log))

	router.GET("/health", handlers.System.Health)

	// Starting an attempt loads a question set; keep it cheap to abuse.
	startLimiter := middleware.NewRateLimiter(ctx, 10, time.Minute)

	// ─── 1. Exam attempts (JWT) ────────────────────────────────────────
	api := router.Group("/api/v1")
	api.Use(middleware.RequireJWT(auth))
	{
		sessions := api.Group("/exams/sessions")
		sessions.Use(middleware.NoStore())
		{
			sessions.POST("", startLimiter.Middleware(), handlers.Exam.StartSession)
			sessions.GET("/:id", handlers.Exam.GetSession)
			sessions.POST("/:id/pause", handlers.Exam.PauseSession)
			sessions.POST("/:id/resume", handlers.Exam.ResumeSession)
			sessions.POST("/:id/answers", handlers.Exam.SelectAnswer)
			sessions.POST("/:id/submit", handlers.Exam.SubmitSession)
			sessions.POST("/:id/violations/reset", handlers.Exam.ResetViolations)
			sessions.DELETE("/:id", handlers.Exam.AbandonSession)
		}

		api.GET("/history", middleware.CacheControl(30), middleware.Brotli(), handlers.Exam.ListHistory)

		// ─── 2. Proctor dashboard (JWT + role) ─────────────────────────
		monitor := api.Group("/monitor")
		monitor.Use(middleware.RequireProctor())
		{
			monitor.GET("/violations", middleware.NoStore(), middleware.Brotli(), handlers.Monitor.RecentViolations)
			monitor.GET("/stream", handlers.Monitor.StreamViolations)
			monitor.GET("/system", handlers.System.SystemMetricsSSE)
		}
	}

	// ─── 3. WebSocket (token in query) ─────────────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireJWT(auth))
	{
		ws.GET("/exams/sessions/:id/stream", handlers.WS.ExamStream)
	}

	return router
}
