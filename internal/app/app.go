package app

import (
	"context"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/culturequiz/backend/internal/db"
	"github.com/culturequiz/backend/internal/http/handlers"
	"github.com/culturequiz/backend/internal/http/middleware"
	"github.com/culturequiz/backend/internal/jobs/generation"
	"github.com/culturequiz/backend/internal/observability"
	"github.com/culturequiz/backend/internal/platform/aiproxy"
	"github.com/culturequiz/backend/internal/platform/logger"
	"github.com/culturequiz/backend/internal/realtime/bus"
	"github.com/culturequiz/backend/internal/repos"
	"github.com/culturequiz/backend/internal/server"
	"github.com/culturequiz/backend/internal/services"
)

type App struct {
	Log        *logger.Logger
	DB         *gorm.DB
	Router     *gin.Engine
	Cfg        Config
	Dispatcher *generation.Dispatcher
	events     bus.Bus
	cancel     context.CancelFunc
}

func New() (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	cfg := LoadConfig(log)

	var gdb *gorm.DB
	if cfg.SQLitePath != "" {
		gdb, err = db.NewSQLite(cfg.SQLitePath, log)
		if err != nil {
			log.Sync()
			return nil, fmt.Errorf("init sqlite: %w", err)
		}
	} else {
		pg, pgErr := db.NewPostgresService(log)
		if pgErr != nil {
			log.Sync()
			return nil, fmt.Errorf("init postgres: %w", pgErr)
		}
		if err := pg.Migrate(); err != nil {
			log.Sync()
			return nil, fmt.Errorf("postgres migrate: %w", err)
		}
		gdb = pg.DB()
	}

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	events, err := bus.NewRedisBus(log)
	if err != nil {
		log.Warn("Realtime bus disabled", "error", err)
		events = bus.Nop{}
	}

	aiClient := aiproxy.New(log)

	userRepo := repos.NewUserRepo(gdb, log)
	themeRepo := repos.NewThemeRepo(gdb, log)
	questionRepo := repos.NewQuestionRepo(gdb, log)
	answerRepo := repos.NewAnswerRepo(gdb, log)
	achievementRepo := repos.NewAchievementRepo(gdb, log)

	ledger := services.NewLedgerService(log, userRepo, achievementRepo, metrics)
	claims := services.NewClaimService(gdb, log, questionRepo, metrics)
	dispatcher := generation.NewDispatcher(gdb, log, aiClient, questionRepo, answerRepo, metrics, events)
	questionService := services.NewQuestionService(gdb, log, aiClient, dispatcher, questionRepo, answerRepo, themeRepo, userRepo, ledger, metrics)
	answerService := services.NewAnswerService(gdb, log, questionRepo, answerRepo, userRepo, ledger, claims, metrics)
	authService := services.NewAuthService(gdb, log, services.AuthConfig{
		JWTSecret:      cfg.JWTSecretKey,
		AccessTokenTTL: cfg.AccessTokenTTL,
	}, userRepo, claims, ledger)
	userService := services.NewUserService(gdb, log, userRepo, questionRepo, answerRepo, achievementRepo)

	router := server.NewRouter(server.RouterConfig{
		Log:             log,
		Metrics:         metrics,
		Registry:        registry,
		AllowedOrigins:  cfg.AllowedOrigins,
		AuthMiddleware:  middleware.NewAuthMiddleware(log, authService),
		HealthHandler:   handlers.NewHealthHandler(),
		AuthHandler:     handlers.NewAuthHandler(authService, int(cfg.AccessTokenTTL.Seconds()), cfg.CookieSecure),
		QuestionHandler: handlers.NewQuestionHandler(questionService),
		AnswerHandler:   handlers.NewAnswerHandler(answerService),
		UserHandler:     handlers.NewUserHandler(userService),
	})

	return &App{
		Log:        log,
		DB:         gdb,
		Router:     router,
		Cfg:        cfg,
		Dispatcher: dispatcher,
		events:     events,
	}, nil
}

func (a *App) Start() {
	if a == nil || a.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.Dispatcher.Start(ctx)
}

func (a *App) Run() error {
	if a == nil || a.Router == nil {
		return fmt.Errorf("app not initialized")
	}
	return a.Router.Run(a.Cfg.ListenAddr)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.events != nil {
		_ = a.events.Close()
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
