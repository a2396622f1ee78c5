package server

import (
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/culturequiz/backend/internal/http/handlers"
	"github.com/culturequiz/backend/internal/http/middleware"
	"github.com/culturequiz/backend/internal/observability"
	"github.com/culturequiz/backend/internal/platform/logger"
)

type RouterConfig struct {
	Log             *logger.Logger
	Metrics         *observability.Metrics
	Registry        *prometheus.Registry
	AllowedOrigins  string
	AuthMiddleware  *middleware.AuthMiddleware
	HealthHandler   *handlers.HealthHandler
	AuthHandler     *handlers.AuthHandler
	QuestionHandler *handlers.QuestionHandler
	AnswerHandler   *handlers.AnswerHandler
	UserHandler     *handlers.UserHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLog(cfg.Log))
	router.Use(middleware.Metrics(cfg.Metrics))

	origins := strings.Split(cfg.AllowedOrigins, ",")
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	// Public
	router.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{})))

	api := router.Group("/api")
	api.POST("/register", cfg.AuthHandler.Register)
	api.POST("/login", cfg.AuthHandler.Login)
	api.GET("/leaderboard", cfg.UserHandler.Leaderboard)

	// Protected
	protected := api.Group("/")
	protected.Use(cfg.AuthMiddleware.RequireAuth())
	protected.POST("/logout", cfg.AuthHandler.Logout)
	protected.POST("/questions", cfg.QuestionHandler.Ask)
	protected.GET("/questions/updates", cfg.QuestionHandler.Updates)
	protected.GET("/questions/:id/generation", cfg.QuestionHandler.GenerationStatus)
	protected.POST("/questions/:id/validation", cfg.AnswerHandler.Validation)
	protected.POST("/questions/:id/best", cfg.AnswerHandler.ChooseBest)
	protected.POST("/answers", cfg.AnswerHandler.Submit)
	protected.POST("/votes/human", cfg.AnswerHandler.HumanVote)
	protected.GET("/profile", cfg.UserHandler.Profile)
	protected.POST("/password", cfg.UserHandler.ResetPassword)

	return router
}
