package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	httpClient "github.com/iudanet/agromarket/internal/client/api"
	"github.com/iudanet/agromarket/internal/client/auth"
	"github.com/iudanet/agromarket/internal/client/oplog"
	"github.com/iudanet/agromarket/internal/client/resolver"
	"github.com/iudanet/agromarket/internal/client/storage"
	"github.com/iudanet/agromarket/internal/client/storage/boltdb"
	"github.com/iudanet/agromarket/internal/client/storage/sqlite"
	clientsync "github.com/iudanet/agromarket/internal/client/sync"
	"github.com/iudanet/agromarket/internal/config"
)

// App holds the opened store and the services built on top of it
type App struct {
	Store     storage.Store
	API       *httpClient.Client
	Sync      clientsync.Service
	Conflicts *resolver.Resolver
}

// Open opens the configured store and initializes the sync service
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	store, err := OpenStore(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}

	apiClient := httpClient.NewClient(cfg.ServerURL,
		httpClient.WithTokenSource(auth.NewStaticToken(cfg.Token)),
		httpClient.WithTimeout(cfg.RequestTimeout),
	)

	syncService := clientsync.NewService(apiClient, store, oplog.NewFactory("", nil), clientsync.Config{
		ClientVersion: cfg.ClientVersion,
		PullLimit:     cfg.PullLimit,
	}, logger)

	if err := syncService.Init(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize sync service: %w", err)
	}

	return &App{
		Store:     store,
		API:       apiClient,
		Sync:      syncService,
		Conflicts: resolver.New(store, syncService, logger),
	}, nil
}

// Close disposes the sync service before closing the store
func (a *App) Close() error {
	return errors.Join(a.Sync.Dispose(), a.Store.Close())
}

// OpenStore opens the durable store selected by the driver
func OpenStore(ctx context.Context, cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Driver {
	case config.DriverBolt:
		store, err := boltdb.New(ctx, cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		return store, nil
	case config.DriverSQLite:
		store, err := sqlite.New(ctx, cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", cfg.Driver)
	}
}
