package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"adaptive_quiz/internal/config"
	"adaptive_quiz/internal/controller"
	"adaptive_quiz/internal/quiz"
	"adaptive_quiz/internal/repository"
	"adaptive_quiz/internal/service"
	"adaptive_quiz/internal/sessionstore"
	"adaptive_quiz/pkg/configwatcher"
	"adaptive_quiz/pkg/database"
	"adaptive_quiz/pkg/logger"
	"adaptive_quiz/pkg/monitoring"
	"adaptive_quiz/pkg/security"
	"adaptive_quiz/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config          *config.Config
	Router          *gin.Engine
	DB              *gorm.DB
	Redis           *redis.Client
	Levels          *quiz.Levels
	services        *services
	tracer          *sdktrace.TracerProvider
	configCallbacks []func(*config.Config)

	// background lives until Close and bounds helper goroutines
	background context.Context
	stop       context.CancelFunc
}

type repositories struct {
	user     *repository.UserRepository
	question *repository.QuestionRepository
	attempt  *repository.AttemptRepository
}

type services struct {
	auth     *service.AuthService
	storage  *service.StorageService
	question *service.QuestionService
	quiz     *service.QuizService
}

type controllers struct {
	auth     *controller.AuthController
	question *controller.QuestionController
	quiz     *controller.QuizController
	health   *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

// schemes merges the configured band schemes over the built-in ones.
func schemes(cfg *config.Config) map[string][]quiz.Band {
	all := quiz.BuiltinSchemes()
	for name, bands := range cfg.Quiz.Schemes {
		all[name] = bands
	}
	return all
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		user:     repository.NewUserRepository(db),
		question: repository.NewQuestionRepository(db),
		attempt:  repository.NewAttemptRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, sessions sessionstore.Store) *services {
	s := &services{}

	s.storage = service.NewStorageService(cfg)
	s.auth = service.NewAuthService(repos.user, cfg)
	s.question = service.NewQuestionService(repos.question, s.storage)

	engine := quiz.NewEngine(nil, a.Levels)
	s.quiz = service.NewQuizService(engine, s.question, repos.attempt, sessions, monitoring.QuizRecorder{})

	return s
}

func (a *App) initControllers(s *services) *controllers {
	return &controllers{
		auth:     controller.NewAuthController(s.auth),
		question: controller.NewQuestionController(s.question, a.Levels),
		quiz:     controller.NewQuizController(s.quiz),
		health:   controller.NewHealthController(a.DB, a.Redis),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())

	if cfg.RateLimit.MaxRequests > 0 {
		window := time.Duration(cfg.RateLimit.WindowMinutes) * time.Minute
		if window <= 0 {
			window = time.Minute
		}
		router.Use(security.RateLimiter(a.background, cfg.RateLimit.MaxRequests, window))
	}

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

// Build wires an App over already opened connections. rdb may be nil.
func Build(cfg *config.Config, db *gorm.DB, rdb *redis.Client) (*App, error) {
	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
		Levels: quiz.NewLevels(schemes(cfg), cfg.Quiz.DefaultScheme),
	}
	app.background, app.stop = context.WithCancel(context.Background())

	sessions, err := sessionstore.New(cfg.Session.Store, rdb, cfg.Session.TTL)
	if err != nil {
		app.stop()
		return nil, err
	}
	if rs, ok := sessions.(*sessionstore.RedisStore); ok && cfg.Session.LockWait > 0 {
		rs.LockWait = cfg.Session.LockWait
	}

	repos := app.initRepositories(db)
	app.services = app.initServices(repos, cfg, sessions)
	controllers := app.initControllers(app.services)

	// 监控初始化
	monitoring.Init()

	if cfg.Server.Mode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), accessLog())
	app.Router = router

	app.setupMiddlewares(router, cfg)
	app.registerRoutes(router, controllers, cfg)

	app.RegisterConfigCallback(func(newCfg *config.Config) {
		app.Levels.Replace(schemes(newCfg), newCfg.Quiz.DefaultScheme)
		logger.Log.Info("Level schemes reloaded", zap.Strings("schemes", app.Levels.Names()))
	})

	return app, nil
}

// NewApp opens the database and Redis named by cfg and wires the App.
func NewApp(cfg *config.Config) (*App, error) {
	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("initialize database: %w", err)
	}

	var rdb *redis.Client
	if cfg.Redis.Enabled || cfg.Session.Store == sessionstore.TypeRedis {
		rdb, err = database.InitRedis(&cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("initialize redis: %w", err)
		}
	}

	app, err := Build(cfg, db, rdb)
	if err != nil {
		return nil, err
	}

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer(tracing.ServiceName, cfg.Tracing.CollectorEndpoint)
		if err != nil {
			return nil, fmt.Errorf("initialize tracing: %w", err)
		}
		app.tracer = tp
	}

	return app, nil
}

// Bootstrap creates the admin account and seeds an empty question bank.
func (a *App) Bootstrap(ctx context.Context) error {
	if err := a.services.auth.EnsureAdmin(ctx); err != nil {
		return fmt.Errorf("ensure admin: %w", err)
	}
	n, err := a.services.question.SeedIfEmpty(ctx, a.Config.Quiz.SeedFile)
	if err != nil {
		return fmt.Errorf("seed questions: %w", err)
	}
	if n > 0 {
		logger.Log.Info("Question bank seeded", zap.Int("count", n), zap.String("file", a.Config.Quiz.SeedFile))
	}
	return nil
}

// Seed imports the seed file regardless of the bank's contents.
func (a *App) Seed(ctx context.Context, path string) (int, error) {
	return a.services.question.Seed(ctx, path)
}

func accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		)
	}
}

func (a *App) Close() {
	if a.stop != nil {
		a.stop()
	}
	if a.tracer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.tracer.Shutdown(ctx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	if a.Redis != nil {
		a.Redis.Close()
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		sqlDB.Close()
	}
}

func (a *App) Run() error {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if a.Config.ConfigFile != "" {
		go configwatcher.WatchConfig(ctx, a.Config.ConfigFile, func(newCfg *config.Config) {
			for _, cb := range a.configCallbacks {
				cb(newCfg)
			}
		})
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Log.Info("Server running", zap.String("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}
	logger.Log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Log.Info("Server exiting")
	return nil
}
