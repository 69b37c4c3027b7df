package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/carehub/carehub/internal/config"
	"github.com/carehub/carehub/internal/domain/activity"
	"github.com/carehub/carehub/internal/domain/assessment"
	"github.com/carehub/carehub/internal/domain/records"
	"github.com/carehub/carehub/internal/platform/db"
	"github.com/carehub/carehub/internal/platform/docstore"
	"github.com/carehub/carehub/internal/platform/middleware"
	"github.com/carehub/carehub/internal/registry"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "carehub-server",
		Short: "Care coordination API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(indexCmd())
	rootCmd.AddCommand(patientCmd())
	rootCmd.AddCommand(providerCmd())
	rootCmd.AddCommand(schedulesCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func indexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Manage collection indexes",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "ensure",
		Short: "Converge the index of every collection",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, reg, pool, err := openRegistry()
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := reg.EnsureIndexes(context.Background()); err != nil {
				return fmt.Errorf("ensure indexes: %w", err)
			}
			logger.Info().Msg("indexes ensured")
			return nil
		},
	})
	return cmd
}

func patientCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "patient",
		Short: "Manage patients",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a patient with a fresh collection",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			mrn, _ := cmd.Flags().GetString("mrn")
			if name == "" || mrn == "" {
				return fmt.Errorf("--name and --mrn are required")
			}

			_, reg, pool, err := openRegistry()
			if err != nil {
				return err
			}
			defer pool.Close()

			identity, err := reg.CreatePatient(context.Background(), name, mrn)
			if err != nil {
				return err
			}
			fmt.Println(identityLine(identity, registry.PatientID))
			return nil
		},
	}
	createCmd.Flags().String("name", "", "Patient name")
	createCmd.Flags().String("mrn", "", "Medical record number")
	cmd.AddCommand(createCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List patient identities",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, reg, pool, err := openRegistry()
			if err != nil {
				return err
			}
			defer pool.Close()

			identities, err := reg.PatientIdentities(context.Background())
			if err != nil {
				return err
			}
			for _, identity := range identities {
				fmt.Println(identityLine(identity, registry.PatientID))
			}
			return nil
		},
	})

	deleteCmd := &cobra.Command{
		Use:   "delete",
		Short: "Destroy a patient's identity and collection",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, _ := cmd.Flags().GetString("id")
			if id == "" {
				return fmt.Errorf("--id is required")
			}

			logger, reg, pool, err := openRegistry()
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := reg.DeletePatient(context.Background(), id); err != nil {
				return err
			}
			logger.Info().Str("patient_id", id).Msg("patient deleted")
			return nil
		},
	}
	deleteCmd.Flags().String("id", "", "Patient id")
	cmd.AddCommand(deleteCmd)

	return cmd
}

func providerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "provider",
		Short: "Manage providers",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Register a provider identity",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			role, _ := cmd.Flags().GetString("role")
			if name == "" {
				return fmt.Errorf("--name is required")
			}

			_, reg, pool, err := openRegistry()
			if err != nil {
				return err
			}
			defer pool.Close()

			identity, err := reg.CreateProvider(context.Background(), name, role)
			if err != nil {
				return err
			}
			fmt.Println(identityLine(identity, registry.ProviderID))
			return nil
		},
	}
	createCmd.Flags().String("name", "", "Provider name")
	createCmd.Flags().String("role", "", "Provider role")
	cmd.AddCommand(createCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List provider identities",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, reg, pool, err := openRegistry()
			if err != nil {
				return err
			}
			defer pool.Close()

			identities, err := reg.ProviderIdentities(context.Background())
			if err != nil {
				return err
			}
			for _, identity := range identities {
				fmt.Println(identityLine(identity, registry.ProviderID))
			}
			return nil
		},
	})

	return cmd
}

func schedulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedules",
		Short: "Maintain scheduled occurrences",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "extend",
		Short: "Re-expand pending occurrences for every patient",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			logger := newLogger(cfg)
			loc, err := cfg.ScheduleLocation()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			reg := registry.New(docstore.NewPGDatabase(pool), logger)
			actSvc := activity.NewService(loc, cfg.ScheduleHorizonMonths, logger)
			asmtSvc := assessment.NewService(loc, cfg.ScheduleHorizonMonths, logger)

			if err := reg.ExtendSchedules(ctx, actSvc, asmtSvc); err != nil {
				return fmt.Errorf("extend schedules: %w", err)
			}
			logger.Info().Msg("schedules extended")
			return nil
		},
	})
	return cmd
}

// openRegistry loads config and connects the registry for one-shot commands.
func openRegistry() (zerolog.Logger, *registry.Registry, *pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return zerolog.Logger{}, nil, nil, err
	}
	logger := newLogger(cfg)

	pool, err := db.NewPool(context.Background(), cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return zerolog.Logger{}, nil, nil, err
	}

	return logger, registry.New(docstore.NewPGDatabase(pool), logger), pool, nil
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).Level(level).With().Timestamp().Logger()
	}
	return logger
}

// identityLine formats one identity document for CLI output.
func identityLine(identity docstore.Document, idField string) string {
	id, _ := identity[idField].(string)
	name, _ := identity["name"].(string)
	return fmt.Sprintf("%s\t%s", id, name)
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	logger := newLogger(cfg)

	loc, err := cfg.ScheduleLocation()
	if err != nil {
		return err
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Metrics
	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector())
	promReg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	storeMetrics := docstore.NewMetrics(promReg)

	// Registry and services
	reg := registry.New(docstore.NewPGDatabase(pool), logger, docstore.WithMetrics(storeMetrics))
	if err := reg.Init(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize identity collections")
	}
	actSvc := activity.NewService(loc, cfg.ScheduleHorizonMonths, logger)
	asmtSvc := assessment.NewService(loc, cfg.ScheduleHorizonMonths, logger)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.RequestTimeout(time.Duration(cfg.RequestTimeoutSecs) * time.Second))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	// Identity routes
	regHandler := registry.NewHandler(reg)
	apiV1 := e.Group("/api/v1")
	regHandler.RegisterRoutes(apiV1)

	// Patient-scoped routes
	resolve := regHandler.ResolveStore()
	patientGroup := apiV1.Group("/patient/:patientID")
	records.NewHandler(resolve).RegisterRoutes(patientGroup)
	activity.NewHandler(actSvc, resolve).RegisterRoutes(patientGroup)
	assessment.NewHandler(asmtSvc, resolve).RegisterRoutes(patientGroup)

	// Health and metrics
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(promReg, promhttp.HandlerOpts{})))

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
