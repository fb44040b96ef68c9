package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver for migrations
	"go.uber.org/zap"

	"github.com/appforge-inc/forge-engine/migrations"
	"github.com/appforge-inc/forge-engine/pkg/apperrors"
	"github.com/appforge-inc/forge-engine/pkg/config"
	"github.com/appforge-inc/forge-engine/pkg/crypto"
	"github.com/appforge-inc/forge-engine/pkg/database"
	"github.com/appforge-inc/forge-engine/pkg/handlers"
	"github.com/appforge-inc/forge-engine/pkg/llm"
	"github.com/appforge-inc/forge-engine/pkg/logging"
	"github.com/appforge-inc/forge-engine/pkg/models"
	"github.com/appforge-inc/forge-engine/pkg/repositories"
	"github.com/appforge-inc/forge-engine/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		// Fall back to env-only config when no config.yaml is present.
		cfg, err = config.LoadFromEnv(Version)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}

	logger, err := newLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("version", cfg.Version),
		zap.String("database", logging.SanitizeConnectionString(cfg.Database.URL())),
		zap.String("generation_provider", cfg.Generation.Provider),
		zap.String("generation_model", cfg.Generation.Model))

	ctx := context.Background()

	// Migrations run over database/sql; the engine itself uses pgx pools.
	migrationDB, err := sql.Open("pgx", cfg.Database.URL())
	if err != nil {
		logger.Fatal("Failed to open migration connection", zap.Error(err))
	}
	if err := database.RunMigrations(migrationDB, migrations.FS, logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}
	_ = migrationDB.Close()

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Database.URL(),
		MaxConnections: cfg.Database.MaxConnections,
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := database.NewRedisClient(&cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	if redisClient == nil {
		logger.Info("Redis not configured, using in-process generation cache")
	}

	projectRepo := repositories.NewProjectRepository(db)
	versionRepo := repositories.NewVersionRepository(db)
	settingsRepo := repositories.NewSettingsRepository(db)

	// An operator-stored credential in the settings table backs up the env
	// var; it is kept encrypted at rest.
	var encryptor *crypto.CredentialEncryptor
	if cfg.CredentialsKey != "" {
		encryptor, err = crypto.NewCredentialEncryptor(cfg.CredentialsKey)
		if err != nil {
			logger.Fatal("Invalid credentials key", zap.Error(err))
		}
	}
	if cfg.Generation.APIKey == "" && encryptor != nil {
		if key, ok := loadStoredCredential(ctx, settingsRepo, encryptor, logger); ok {
			cfg.Generation.APIKey = key
		}
	}

	factory := llm.NewClientFactory(llm.FactoryConfig{
		Provider: cfg.Generation.Provider,
		APIKey:   cfg.Generation.APIKey,
		BaseURL:  cfg.Generation.OpenAIBaseURL,
	}, logger)

	cache := services.NewGenerationCache(redisClient, cfg.Generation.CacheTTL(), logger)
	lock := services.NewGenerationLock(cfg.Generation.LockTimeout(), logger)
	generationSvc := services.NewGenerationService(factory, cache, settingsRepo, &cfg.Generation, logger)
	versioningSvc := services.NewVersioningService(projectRepo, versionRepo, logger)

	mux := http.NewServeMux()

	healthHandler := handlers.NewHealthHandler(cfg, logger)
	healthHandler.RegisterRoutes(mux)

	generationHandler := handlers.NewGenerationHandler(generationSvc, versioningSvc, lock, logger)
	generationHandler.RegisterRoutes(mux)

	if encryptor != nil {
		settingsHandler := handlers.NewSettingsHandler(settingsRepo, encryptor, logger)
		settingsHandler.RegisterRoutes(mux)
	}

	addr := cfg.BindAddr + ":" + cfg.Port
	logger.Info("Starting forge-engine", zap.String("addr", addr), zap.String("version", cfg.Version))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}

// loadStoredCredential reads the encrypted generation API key from the
// settings table. Absence is normal; decryption failure means the key was
// rotated without re-encrypting the stored value.
func loadStoredCredential(ctx context.Context, settings repositories.SettingsRepository, enc *crypto.CredentialEncryptor, logger *zap.Logger) (string, bool) {
	stored, err := settings.Get(ctx, models.SettingAPIKey)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			logger.Warn("Failed to read stored generation credential", zap.Error(err))
		}
		return "", false
	}

	key, err := enc.Decrypt(stored)
	if err != nil {
		logger.Warn("Stored generation credential could not be decrypted", zap.Error(err))
		return "", false
	}

	logger.Info("Generation credential loaded from settings")
	return key, true
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "local" || os.Getenv("FORGE_DEV_LOGGING") != "" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
