package bootstrap

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	appControllers "github.com/academia/gradebot/internal/app/controllers"
	"github.com/academia/gradebot/internal/app/grading"
	appMigrations "github.com/academia/gradebot/internal/app/migrations"
	appRepos "github.com/academia/gradebot/internal/app/repositories"
	"github.com/academia/gradebot/internal/app/repositories/memory"
	appRoutes "github.com/academia/gradebot/internal/app/routes"
	appServices "github.com/academia/gradebot/internal/app/services"
	"github.com/academia/gradebot/internal/config"
	"github.com/academia/gradebot/internal/db"
	appMiddleware "github.com/academia/gradebot/internal/middleware"
	pkgAuth "github.com/academia/gradebot/internal/pkg/auth"
	"github.com/academia/gradebot/internal/pkg/helpers"
	"github.com/academia/gradebot/internal/pkg/llm"
	"github.com/academia/gradebot/internal/pkg/logger"
	"github.com/academia/gradebot/internal/pkg/validation"
	"github.com/academia/gradebot/internal/pkg/websocket"
	"github.com/academia/gradebot/internal/seed"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Dependencies holds all the application dependencies
type Dependencies struct {
	Repos  *appRepos.Repositories
	Policy grading.Policy

	JWTService           *pkgAuth.JWTService
	AuthService          appServices.AuthService
	RecalculationService appServices.RecalculationService
	GradeService         appServices.GradeService
	HistoryService       appServices.HistoryService
	AssistantService     appServices.AssistantService // nil when the assistant is disabled

	AuthController      *appControllers.AuthController
	GradeController     *appControllers.GradeController
	HistoryController   *appControllers.HistoryController
	AssistantController *appControllers.AssistantController
	AuthMiddleware      *appMiddleware.AuthMiddleware

	Hub       *websocket.Hub
	WSHandler *websocket.Handler

	Logger zerolog.Logger

	model   llm.LanguageModel
	closers []func()
}

// Close releases the model client and the storage in reverse order of
// acquisition.
func (d *Dependencies) Close() {
	if d.model != nil {
		if err := d.model.Close(); err != nil {
			d.Logger.Warn().Err(err).Msg("Closing language model client failed")
		}
	}
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

// LoadConfigAndSetupLogger loads configuration and initializes the logger.
func LoadConfigAndSetupLogger() (*config.Config, zerolog.Logger, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = filepath.Join("configs", "config.yaml")
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Error().Err(err).Str("path", configPath).Msg("Failed to load configuration")
		return nil, zerolog.Logger{}, err
	}

	lgr := logger.Configure(logger.Config{
		Level:  cfg.Logging.Level,
		Format: logger.Format(cfg.Logging.Format),
	})
	lgr.Info().
		Str("logLevel", cfg.Logging.Level).
		Str("logFormat", cfg.Logging.Format).
		Str("storage", cfg.Storage.Driver).
		Msg("Logger configured")
	return cfg, lgr, nil
}

// SetupStorage opens the configured grade store. For postgres it connects,
// applies the migrations and returns a close func for the pool.
func SetupStorage(ctx context.Context, cfg *config.Config, lgr zerolog.Logger) (*appRepos.Repositories, func(), error) {
	switch cfg.Storage.Driver {
	case "memory":
		lgr.Warn().Msg("Using in-memory storage, grades are lost on restart")
		store := memory.NewStore()
		return &appRepos.Repositories{Grades: store, Provisioner: store}, func() {}, nil

	case "postgres":
		lgr.Info().Msg("Establishing database connection...")
		database, err := db.NewPostgresDB(cfg)
		if err != nil {
			lgr.Error().Err(err).Msg("Failed to connect to database")
			return nil, nil, err
		}

		lgr.Info().Msg("Running database migrations...")
		migrator := appMigrations.NewMigrator(database.Pool, lgr)
		if err := migrator.Migrate(ctx, migrationSource(cfg.Database.MigrationsDir, lgr)); err != nil {
			database.Close()
			lgr.Error().Err(err).Msg("Database migration error")
			return nil, nil, fmt.Errorf("database migrations failed: %w", err)
		}
		lgr.Info().Msg("Database migrations successfully applied.")

		return appRepos.NewRepositories(database.Pool), database.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
}

// migrationSource prefers an on-disk migrations directory so schema changes
// can ship without a rebuild, and falls back to the embedded files.
func migrationSource(dir string, lgr zerolog.Logger) fs.FS {
	if dir != "" {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			lgr.Info().Str("path", dir).Msg("Using migrations directory")
			return os.DirFS(dir)
		}
	}
	return appMigrations.Embedded()
}

// PolicyFromConfig builds and validates the grading policy.
func PolicyFromConfig(cfg *config.Config) (grading.Policy, error) {
	policy := grading.Policy{
		Weights: grading.Weights{
			Partial1: cfg.Grading.Partial1Weight,
			Partial2: cfg.Grading.Partial2Weight,
			Project:  cfg.Grading.ProjectWeight,
		},
		Cutoff: cfg.Grading.ApprovalCutoff,
	}
	if err := policy.Validate(); err != nil {
		return grading.Policy{}, fmt.Errorf("invalid grading policy: %w", err)
	}
	return policy, nil
}

// BuildDependencies initializes storage, services, controllers and the
// websocket hub. ctx bounds the lifetime of websocket connections.
func BuildDependencies(ctx context.Context, cfg *config.Config, lgr zerolog.Logger) (*Dependencies, error) {
	deps := &Dependencies{Logger: lgr}

	policy, err := PolicyFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	deps.Policy = policy

	repos, closeStore, err := SetupStorage(ctx, cfg, lgr)
	if err != nil {
		return nil, err
	}
	deps.Repos = repos
	deps.closers = append(deps.closers, closeStore)

	if cfg.Storage.Seed {
		if err := seed.CreateDefaultData(ctx, repos.Provisioner, lgr.With().Str("component", "seed").Logger()); err != nil {
			// The service can still run against whatever data exists
			lgr.Error().Err(err).Msg("Failed to create default data, proceeding anyway...")
		}
	}

	deps.JWTService = pkgAuth.NewJWTService(pkgAuth.JWTConfig{
		SecretKey:      cfg.JWT.Secret,
		AccessTokenExp: helpers.ParseDuration(cfg.JWT.AccessTokenExpiration, 12*time.Hour, lgr),
		TokenIssuer:    cfg.JWT.Issuer,
	})

	deps.Hub = websocket.NewHub(logger.Component("hub"))

	deps.AuthService = appServices.NewAuthService(repos.Grades, deps.JWTService, logger.Component("auth"))
	deps.RecalculationService = appServices.NewRecalculationService(repos.Grades, policy, logger.Component("recalculation"))
	deps.GradeService = appServices.NewGradeService(repos.Grades, deps.RecalculationService, policy, deps.Hub, logger.Component("grades"))
	deps.HistoryService = appServices.NewHistoryService(repos.Grades, policy, logger.Component("history"))

	deps.AuthMiddleware = appMiddleware.NewAuthMiddleware(deps.JWTService, lgr)
	deps.AuthController = appControllers.NewAuthController(deps.AuthService, lgr)
	deps.GradeController = appControllers.NewGradeController(deps.GradeService, deps.RecalculationService, lgr)
	deps.HistoryController = appControllers.NewHistoryController(deps.HistoryService)

	if cfg.Assistant.Enabled {
		model, err := llm.NewGemini(ctx, cfg.Assistant.APIKey, cfg.Assistant.Model)
		if err != nil {
			deps.Close()
			return nil, fmt.Errorf("failed to create language model client: %w", err)
		}
		deps.model = model

		assistantLog := logger.Component("assistant")
		deps.AssistantService = appServices.NewAssistantService(
			model,
			deps.GradeService,
			deps.HistoryService,
			policy.Cutoff,
			helpers.ParseDuration(cfg.Assistant.Timeout, 30*time.Second, lgr),
			assistantLog,
		)
		deps.AssistantController = appControllers.NewAssistantController(deps.AssistantService, assistantLog)
		deps.WSHandler = websocket.NewHandler(
			ctx,
			deps.Hub,
			websocket.NewMessageHandler(deps.AssistantService, assistantLog),
			cfg.Server.AllowedOrigins,
			logger.Component("websocket"),
		)
	} else {
		lgr.Info().Msg("Assistant disabled, only the REST grade API is served")
	}

	return deps, nil
}

// SetupRouter configures the Gin engine with middleware and routes.
func SetupRouter(cfg *config.Config, deps *Dependencies, lgr zerolog.Logger) (*gin.Engine, error) {
	if strings.ToLower(cfg.Server.Mode) == "production" {
		gin.SetMode(gin.ReleaseMode)
		lgr.Info().Msg("Setting Gin mode to release")
	} else {
		gin.SetMode(gin.DebugMode)
		lgr.Info().Msg("Setting Gin mode to debug")
	}

	if err := validation.RegisterWithGin(); err != nil {
		return nil, fmt.Errorf("failed to register validators: %w", err)
	}

	router := gin.New()
	router.Use(appMiddleware.RequestLogger(logger.Component("http")), gin.Recovery())

	var wsHandler gin.HandlerFunc
	if deps.WSHandler != nil {
		wsHandler = deps.WSHandler.HandleConnection
	}

	appRoutes.SetupRouter(router,
		deps.AuthController,
		deps.GradeController,
		deps.HistoryController,
		deps.AssistantController,
		wsHandler,
		deps.AuthMiddleware,
	)
	return router, nil
}
