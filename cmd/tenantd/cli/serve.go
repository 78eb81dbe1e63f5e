package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/openlearn/tenantd/internal/cache"
	"github.com/openlearn/tenantd/internal/config"
	"github.com/openlearn/tenantd/internal/db"
	"github.com/openlearn/tenantd/internal/server/auth"
	"github.com/openlearn/tenantd/internal/server/web/api"
	"github.com/openlearn/tenantd/internal/server/web/middleware"
	"github.com/openlearn/tenantd/internal/tasks"
	"github.com/openlearn/tenantd/internal/tenancy"
	"github.com/openlearn/tenantd/pkg/logger"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the tenant configuration server",
	Long:  `Start the tenant resolution service with its management API.`,
	RunE: func(_ *cobra.Command, _ []string) error {
		return runServer()
	},
}

// loadEnvironment loads configuration, sets up logging and opens the
// database. Shared by the serve, sync-orgs and tenants commands.
func loadEnvironment() (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Setup(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
		File:   cfg.Logging.File,
	}); err != nil {
		return nil, nil, fmt.Errorf("failed to setup logger: %w", err)
	}

	database, err := db.Connect(db.Config{
		Driver:   cfg.Database.Driver,
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		Database: cfg.Database.Database,
		Username: cfg.Database.Username,
		Password: cfg.Database.Password,
		SSLMode:  cfg.Database.SSLMode,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return cfg, database, nil
}

// buildCache selects the cache backend from configuration.
func buildCache(ctx context.Context, cfg *config.Config) (cache.Cache, error) {
	if cfg.Cache.Backend == "redis" {
		return cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
	}
	return cache.NewMemoryCache(), nil
}

func tenancyDefaults(cfg *config.Config) tenancy.Defaults {
	d := cfg.Tenancy.Defaults
	return tenancy.Defaults{
		PlatformName:        d.PlatformName,
		SiteName:            d.SiteName,
		LMSRootURL:          d.LMSRootURL,
		SessionCookieDomain: d.SessionCookieDomain,
		ContactEmail:        d.ContactEmail,
		Language:            d.Language,
	}
}

func runServer() error {
	cfg, database, err := loadEnvironment()
	if err != nil {
		return err
	}

	logger.InfoEvent().
		Str("version", version).
		Str("build_time", buildTime).
		Str("git_commit", gitCommit).
		Msg("Starting tenantd")

	if err := db.AutoMigrate(database); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	logger.InfoEvent().Msg("Database migrations completed")

	users := auth.NewUserService(database, auth.NewTOTPService())
	if err := users.EnsureAdmin(context.Background(), cfg.Auth.AdminEmail, cfg.Auth.AdminPassword); err != nil {
		return fmt.Errorf("failed to initialize admin user: %w", err)
	}

	cacheBackend, err := buildCache(context.Background(), cfg)
	if err != nil {
		return fmt.Errorf("failed to setup cache: %w", err)
	}
	logger.InfoEvent().Str("backend", cfg.Cache.Backend).Msg("Cache ready")

	store := tenancy.NewStore(database)
	resolver := tenancy.NewResolver(store, cfg.Tenancy.ConfigBucket)
	manager := tenancy.NewManager(resolver, tenancyDefaults(cfg), cfg.Tenancy.MaxOverride())
	orgValues := tenancy.NewOrgValues(database, cacheBackend, cfg.Cache.TTL())

	taskHandler := tasks.NewHandler(manager, database, cfg.Tenancy.TaskStrategies, cfg.Tenancy.FallbackDomain)

	mux := http.NewServeMux()
	apiHandler := api.NewHandler(database, cfg, resolver, orgValues)
	apiHandler.RegisterRoutes(mux)
	apiHandler.RegisterTaskRoutes(mux, taskHandler)
	mux.Handle("GET /metrics", promhttp.Handler())

	var handler http.Handler = mux
	if cfg.Tenancy.Enabled {
		handler = middleware.Tenant(manager)(handler)
	}
	handler = middleware.HTTPLoggerWithLevel(handler, cfg.Logging.Level)
	handler = middleware.Metrics(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.APIPort),
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh

		logger.InfoEvent().Msg("Shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.ErrorEvent().Err(err).Msg("Server shutdown error")
		}

		if closer, ok := cacheBackend.(interface{ Close() error }); ok {
			if err := closer.Close(); err != nil {
				logger.ErrorEvent().Err(err).Msg("Cache shutdown error")
			}
		}
	}()

	logger.InfoEvent().
		Str("addr", server.Addr).
		Msg("API server listening")

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}
