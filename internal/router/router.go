package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stemsi/classqa/internal/config"
	"github.com/stemsi/classqa/internal/handler"
	"github.com/stemsi/classqa/internal/middleware"
	"github.com/stemsi/classqa/internal/response"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Health      *handler.HealthHandler
	Participant *handler.ParticipantHandler
	Class       *handler.ClassHandler
	Session     *handler.SessionHandler
	Setting     *handler.SettingHandler
	WS          *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	tickets middleware.TicketValidator,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID", "Retry-After"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	router.Use(middleware.BrotliWithConfig(middleware.BrotliConfig{
		Quality:      middleware.DefaultBrotliConfig.Quality,
		MinLength:    middleware.DefaultBrotliConfig.MinLength,
		SkipPrefixes: []string{"/ws/"},
	}))

	router.GET("/health", handlers.Health.Health)

	// Join attempts are public, so both entry points share one limiter.
	joinLimiter := middleware.NewRateLimiter(cfg.JoinRateLimit, time.Minute)

	// ─── 1. Public Group (Rate Limited) ────────────────────────────────
	public := router.Group("/api/v1")
	public.Use(joinLimiter.Middleware(), middleware.NoStore())
	{
		public.POST("/participants", handlers.Participant.Create)
		public.GET("/classes/:code/validate", handlers.Class.Validate)
	}

	// ─── 2. Participant Group (Ticket) ─────────────────────────────────
	participant := router.Group("/api/v1")
	participant.Use(middleware.RequireTicket(tickets), middleware.NoStore())
	{
		participant.GET("/sessions/:id", handlers.Session.Get)
		participant.GET("/sessions/:id/questions", handlers.Session.Questions)
		participant.GET("/sessions/:id/answers", handlers.Session.Answers)
	}

	// ─── 3. Professor Group (Ticket + Role) ────────────────────────────
	professor := router.Group("/api/v1")
	professor.Use(middleware.RequireTicket(tickets), middleware.RequireProfessor(), middleware.NoStore())
	{
		professor.GET("/professors/me/sessions", handlers.Session.ListMine)
		professor.POST("/sessions/:id/close", handlers.Session.Close)
		professor.POST("/sessions/:id/archive", handlers.Session.Archive)
		professor.GET("/settings/archive", handlers.Setting.GetArchive)
		professor.PUT("/settings/archive", handlers.Setting.UpdateArchive)
	}

	// ─── 4. WebSocket Group (Ticket in query) ──────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireTicket(tickets))
	{
		ws.GET("/classroom", handlers.WS.Classroom)
	}

	return router
}
