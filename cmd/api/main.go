package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/httplog/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cmlabs-hris/absence-dashboard-go/internal/config"
	"github.com/cmlabs-hris/absence-dashboard-go/internal/domain/absence"
	appHTTP "github.com/cmlabs-hris/absence-dashboard-go/internal/handler/http"
	"github.com/cmlabs-hris/absence-dashboard-go/internal/pkg/cron"
	"github.com/cmlabs-hris/absence-dashboard-go/internal/pkg/database"
	"github.com/cmlabs-hris/absence-dashboard-go/internal/pkg/metrics"
	"github.com/cmlabs-hris/absence-dashboard-go/internal/pkg/schoolapi"
	"github.com/cmlabs-hris/absence-dashboard-go/internal/pkg/storage"
	"github.com/cmlabs-hris/absence-dashboard-go/internal/repository/memory"
	"github.com/cmlabs-hris/absence-dashboard-go/internal/repository/postgresql"
	absenceService "github.com/cmlabs-hris/absence-dashboard-go/internal/service/absence"
	"github.com/cmlabs-hris/absence-dashboard-go/internal/service/file"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error loading config:", err)
		os.Exit(1)
	}

	logFormat := httplog.SchemaECS.Concise(false)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:       cfg.SlogLevel(),
		ReplaceAttr: logFormat.ReplaceAttr,
	})).With(
		slog.String("app", "absence-dashboard"),
		slog.String("version", "v1.0.0"),
		slog.String("env", cfg.App.Env),
	)
	slog.SetDefault(logger)

	loc, err := cfg.Location()
	if err != nil {
		slog.Error("Invalid time zone", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var importRepo absence.ImportRepository
	switch cfg.Import.Store {
	case config.StorePostgres:
		db, err := database.NewPostgreSQLDB(ctx, cfg.DatabaseURL(), database.PoolOptions{
			MaxConns:        cfg.Database.MaxConns,
			MinConns:        cfg.Database.MinConns,
			MaxConnLifetime: cfg.Database.MaxConnLifetime,
		})
		if err != nil {
			slog.Error("Error connecting to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		if err := postgresql.EnsureSchema(ctx, db); err != nil {
			slog.Error("Error preparing database schema", "error", err)
			os.Exit(1)
		}
		importRepo = postgresql.NewImportRepository(db, loc)
	default:
		importRepo = memory.NewImportRepository()
	}

	fileStorage, err := storage.NewLocalStorage(cfg.Storage.BasePath)
	if err != nil {
		slog.Error("Failed to initialize local storage", "error", err)
		os.Exit(1)
	}
	fileService := file.NewFileService(fileStorage)

	var remote absence.RemoteSource
	if cfg.SchoolAPI.BaseURL != "" {
		remote = schoolapi.NewClient(schoolapi.Config{
			BaseURL:      cfg.SchoolAPI.BaseURL,
			TokenURL:     cfg.SchoolAPI.TokenURL,
			ClientID:     cfg.SchoolAPI.ClientID,
			ClientSecret: cfg.SchoolAPI.ClientSecret,
			Scopes:       cfg.SchoolAPI.Scopes,
			Timeout:      cfg.SchoolAPI.Timeout,
		})
	} else {
		slog.Info("School API not configured, remote imports disabled")
	}

	collector := metrics.NewCollector("absence_dashboard", prometheus.DefaultRegisterer)

	normalizer := absenceService.NewNormalizer(cfg.Absence.ErroneousEntryMarker, cfg.Absence.TardinessLabel, loc)
	engine := absenceService.NewEngine(absenceService.NewClassifier(cfg.Absence.ExcuseDeadlineDays))
	absenceSvc := absenceService.NewAbsenceService(
		importRepo,
		remote,
		fileService,
		normalizer,
		engine,
		collector,
		absenceService.Options{
			ImportTTL:           cfg.Import.TTL,
			DefaultRollingWeeks: cfg.Absence.DefaultRollingWeeks,
			Location:            loc,
		},
	)

	absenceHandler := appHTTP.NewAbsenceHandler(absenceSvc, cfg.Import.MaxUploadBytes)

	router := appHTTP.NewRouter(appHTTP.RouterConfig{
		Logger:         logger,
		LogLevel:       cfg.SlogLevel(),
		AllowedOrigins: []string{cfg.App.FrontendURL},
		Metrics:        promhttp.Handler(),
	}, absenceHandler)

	scheduler := cron.NewScheduler(ctx, cron.SchedulerOptions{
		JobTimeout: time.Minute,
		Observer: func(r cron.JobResult) {
			collector.RecordJobRun(r.Name, r.Err)
		},
	})
	cron.NewImportJobs(absenceSvc, cfg.Import.PurgeInterval).RegisterJobs(scheduler)
	scheduler.Start()
	defer scheduler.Stop()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("Server running", "address", server.Addr, "import_store", cfg.Import.Store)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}
	slog.Info("Server stopped")
}
