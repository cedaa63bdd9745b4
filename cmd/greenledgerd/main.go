package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/GreenLoopLabs/greenledger/internal/config"
	"github.com/GreenLoopLabs/greenledger/internal/httpserver"
	"github.com/GreenLoopLabs/greenledger/internal/oplog"
	"github.com/GreenLoopLabs/greenledger/internal/store/gormstore"
	"github.com/GreenLoopLabs/greenledger/internal/sweep"
	"github.com/GreenLoopLabs/greenledger/pkg/capacity"
	"github.com/GreenLoopLabs/greenledger/pkg/inventory"
	"github.com/GreenLoopLabs/greenledger/pkg/ledger"
	"github.com/GreenLoopLabs/greenledger/pkg/redemption"
	"github.com/GreenLoopLabs/greenledger/pkg/submission"
)

const (
	flagConfig       = "config"
	shutdownDeadline = 10 * time.Second
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "greenledgerd: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:           "greenledgerd",
		Short:         "Green-credit rewards core server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return runServer(ctx, cfg)
		},
	}
	cmd.Flags().StringVar(&configPath, flagConfig, "", "path to the configuration file")
	return cmd
}

func runServer(ctx context.Context, cfg config.Config) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	gormDB, cleanup, err := openDatabase(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database open: %w", err)
	}
	defer func() { _ = cleanup() }()

	if err := gormstore.Migrate(gormDB); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	clock := func() int64 { return time.Now().UTC().Unix() }

	rankTable, err := cfg.RankTable()
	if err != nil {
		return fmt.Errorf("rank table: %w", err)
	}
	boothRegistry, err := cfg.BoothRegistry()
	if err != nil {
		return fmt.Errorf("booth registry: %w", err)
	}
	catalog, err := cfg.Catalog()
	if err != nil {
		return fmt.Errorf("reward catalog: %w", err)
	}
	directory, err := cfg.AccessDirectory()
	if err != nil {
		return fmt.Errorf("access directory: %w", err)
	}
	pointsPolicy, err := cfg.PointsPolicy()
	if err != nil {
		return fmt.Errorf("points policy: %w", err)
	}

	ledgerService, err := ledger.NewService(
		gormstore.NewLedgerStore(gormDB),
		clock,
		ledger.WithRankTable(rankTable),
		ledger.WithOperationLogger(oplog.NewLedgerLogger(logger)),
	)
	if err != nil {
		return fmt.Errorf("ledger service init: %w", err)
	}

	capacityService, err := capacity.NewService(
		gormstore.NewCapacityStore(gormDB),
		boothRegistry,
		clock,
		capacity.WithOperationLogger(oplog.NewCapacityLogger(logger)),
	)
	if err != nil {
		return fmt.Errorf("capacity service init: %w", err)
	}

	inventoryService, err := inventory.NewService(
		gormstore.NewInventoryStore(gormDB),
		clock,
		inventory.WithReservationTTL(time.Duration(cfg.ReservationTTLMinutes)*time.Minute),
		inventory.WithOperationLogger(oplog.NewInventoryLogger(logger)),
	)
	if err != nil {
		return fmt.Errorf("inventory service init: %w", err)
	}

	submissionService, err := submission.NewService(
		gormstore.NewSubmissionStore(gormDB),
		capacityService,
		ledgerService,
		boothRegistry,
		clock,
		submission.WithPointsPolicy(pointsPolicy),
		submission.WithOperationLogger(oplog.NewSubmissionLogger(logger)),
	)
	if err != nil {
		return fmt.Errorf("submission service init: %w", err)
	}

	redemptionService, err := redemption.NewService(
		catalog,
		inventoryService,
		ledgerService,
		ledgerService,
		submissionService,
		clock,
		redemption.WithOperationLogger(oplog.NewRedemptionLogger(logger)),
	)
	if err != nil {
		return fmt.Errorf("redemption service init: %w", err)
	}

	if err := seedPools(ctx, inventoryService, cfg, logger); err != nil {
		return err
	}

	scheduler, err := sweep.NewScheduler(inventoryService, cfg.SweepSchedule, logger)
	if err != nil {
		return fmt.Errorf("sweep scheduler init: %w", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	server := httpserver.NewServer(
		submissionService,
		redemptionService,
		ledgerService,
		inventoryService,
		capacityService,
		directory,
		logger,
	)
	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("listen_addr", cfg.ListenAddr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownDeadline)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if serveErr := <-errCh; serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			return serveErr
		}
		return nil
	case serveErr := <-errCh:
		if errors.Is(serveErr, http.ErrServerClosed) {
			return nil
		}
		return serveErr
	}
}

// seedPools creates a stock pool per configured reward; pools that already
// exist keep their counters.
func seedPools(ctx context.Context, service *inventory.Service, cfg config.Config, logger *zap.Logger) error {
	for _, reward := range cfg.Rewards {
		rewardID, err := inventory.NewRewardID(reward.ID)
		if err != nil {
			return fmt.Errorf("reward %q: %w", reward.ID, err)
		}
		err = service.CreatePool(ctx, rewardID, reward.Stock)
		if errors.Is(err, inventory.ErrPoolExists) {
			continue
		}
		if err != nil {
			return fmt.Errorf("seed pool %q: %w", reward.ID, err)
		}
		logger.Info("reward pool created", zap.String("reward_id", reward.ID), zap.Int64("stock", reward.Stock))
	}
	return nil
}

func openDatabase(ctx context.Context, dsn string) (*gorm.DB, func() error, error) {
	driver, sqlitePath, err := resolveDriver(dsn)
	if err != nil {
		return nil, nil, err
	}

	var db *gorm.DB
	switch driver {
	case "postgres":
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	case "sqlite":
		db, err = gorm.Open(sqlite.Open(sqlitePath), &gorm.Config{})
	default:
		return nil, nil, fmt.Errorf("unsupported database scheme %q", driver)
	}
	if err != nil {
		return nil, nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() error { return sqlDB.Close() }
	return db.WithContext(ctx), cleanup, nil
}

func resolveDriver(dsn string) (string, string, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "postgres", "", nil
	}
	if strings.HasPrefix(dsn, "sqlite://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "", "", fmt.Errorf("parse sqlite url: %w", err)
		}
		path := u.Path
		if path == "" {
			path = u.Host
		}
		if path == "" || path == "/" {
			path = "greenledger.db"
		}
		sqlitePath, err := normalizeSQLitePath(path)
		return "sqlite", sqlitePath, err
	}
	// Treat everything else as a direct sqlite path.
	sqlitePath, err := normalizeSQLitePath(dsn)
	return "sqlite", sqlitePath, err
}

func normalizeSQLitePath(path string) (string, error) {
	if path == ":memory:" {
		return path, nil
	}
	if strings.HasPrefix(path, "/") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return "", err
		}
		return path, nil
	}
	abs := filepath.Join(".", path)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", err
	}
	return abs, nil
}
