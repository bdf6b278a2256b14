package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/stevi10623-crypto/deductly-intake/internal/config"
	"github.com/stevi10623-crypto/deductly-intake/internal/db"
	"github.com/stevi10623-crypto/deductly-intake/internal/gelf"
	"github.com/stevi10623-crypto/deductly-intake/internal/handler"
	"github.com/stevi10623-crypto/deductly-intake/internal/intake"
	"github.com/stevi10623-crypto/deductly-intake/internal/repository"
	"github.com/stevi10623-crypto/deductly-intake/internal/router"
	"github.com/stevi10623-crypto/deductly-intake/internal/service"
	"github.com/stevi10623-crypto/deductly-intake/internal/storage"
	"github.com/stevi10623-crypto/deductly-intake/internal/wizard"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := initLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	schema := intake.DefaultSchema()
	if err := intake.Validate(schema); err != nil {
		logger.Warn("section catalog has problems", zap.Error(err))
	}

	// OxiDB pool, shared by the oxidb store and bucket
	var pool *db.Pool
	if cfg.UsesOxiDB() {
		pool, err = db.NewPool(ctx, db.TCPDialer(cfg.OxiDB.Host, cfg.OxiDB.Port), cfg.OxiDB.PoolSize, logger)
		if err != nil {
			logger.Fatal("Failed to connect to OxiDB", zap.Error(err))
		}
		defer pool.Close()
		logger.Info("Connected to OxiDB",
			zap.String("host", cfg.OxiDB.Host),
			zap.Int("port", cfg.OxiDB.Port),
			zap.Int("pool_size", cfg.OxiDB.PoolSize),
		)
	}

	store, closeStore, err := openStore(ctx, cfg, pool)
	if err != nil {
		logger.Fatal("Failed to open store", zap.String("driver", cfg.Store.Driver), zap.Error(err))
	}
	defer closeStore()

	files, err := openFiles(cfg, pool)
	if err != nil {
		logger.Fatal("Failed to open file store", zap.String("driver", cfg.Files.Driver), zap.Error(err))
	}

	// Services
	authSvc := service.NewAuthService(store.Users, cfg.JWT.Secret, cfg.JWT.TTL)
	intakeSvc := service.NewIntakeService(schema, store.Intakes, files, cfg.Upload.MaxBytes, logger)
	sessions, err := wizard.NewManager(schema, intakeSvc, cfg.Wizard.SessionCache, logger,
		wizard.WithPersistTimeout(cfg.Wizard.PersistTimeout))
	if err != nil {
		logger.Fatal("Failed to create session manager", zap.Error(err))
	}
	clientSvc := service.NewClientService(store, files, sessions, logger)
	exportSvc := service.NewExportService(schema, clientSvc)
	dashSvc := service.NewDashboardService(clientSvc)

	if err := authSvc.SeedAdmin(ctx, cfg.Admin.Email, cfg.Admin.Password); err != nil {
		logger.Warn("Failed to seed admin", zap.Error(err))
	}

	// Router
	r := router.New(cfg.JWT.Secret, cfg.Server.CORSOrigin, logger, router.Handlers{
		Auth:      handler.NewAuthHandler(authSvc),
		Intake:    handler.NewIntakeHandler(schema, sessions, intakeSvc, cfg.Upload.MaxBytes),
		Clients:   handler.NewClientHandler(clientSvc, exportSvc),
		Dashboard: handler.NewDashboardHandler(dashSvc),
	})

	srv := &http.Server{Addr: cfg.Server.Addr, Handler: r}
	go func() {
		logger.Info("Intake server starting",
			zap.String("addr", cfg.Server.Addr),
			zap.String("store", cfg.Store.Driver),
			zap.String("files", cfg.Files.Driver),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", zap.Error(err))
	}
	sessions.Close()
}

func openStore(ctx context.Context, cfg *config.Config, pool *db.Pool) (*repository.Store, func(), error) {
	switch cfg.Store.Driver {
	case config.StoreOxiDB:
		s, err := repository.NewOxiStore(ctx, pool)
		return s, func() {}, err
	case config.StoreSQLite:
		sqldb, err := repository.OpenSQL(ctx, repository.DriverSQLite, cfg.SQLiteDSN())
		if err != nil {
			return nil, nil, err
		}
		return sqldb.Store(), func() { sqldb.Close() }, nil
	default:
		sqldb, err := repository.OpenSQL(ctx, repository.DriverPostgres, cfg.Store.DSN)
		if err != nil {
			return nil, nil, err
		}
		return sqldb.Store(), func() { sqldb.Close() }, nil
	}
}

func openFiles(cfg *config.Config, pool *db.Pool) (storage.FileStore, error) {
	if cfg.Files.Driver == config.FilesS3 {
		return storage.NewS3Store(storage.S3Config{
			Endpoint:  cfg.S3.Endpoint,
			Region:    cfg.S3.Region,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Bucket:    cfg.Files.Bucket,
			UseSSL:    cfg.S3.UseSSL,
		})
	}
	return storage.NewOxiBucket(pool, cfg.Files.Bucket), nil
}

// initLogger builds the process logger and tees it to Graylog when a GELF
// address is configured.
func initLogger(cfg config.LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	switch cfg.Level {
	case "debug":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "warn":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		zapCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, err
	}
	if cfg.GelfAddr == "" {
		return logger, nil
	}

	w, err := gelf.New(cfg.GelfAddr)
	if err != nil {
		logger.Warn("GELF init failed", zap.String("addr", cfg.GelfAddr), zap.Error(err))
		return logger, nil
	}
	logger = logger.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return zapcore.NewTee(c, gelf.NewCoreFor(w, zapCfg.Level))
	}))
	logger.Info("GELF logging enabled", zap.String("addr", cfg.GelfAddr))
	return logger, nil
}
