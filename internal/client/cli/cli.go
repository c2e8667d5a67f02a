// Package cli implements the agromarket client commands.
package cli

import (
	"log/slog"

	"github.com/iudanet/agromarket/internal/client/connectivity"
	"github.com/iudanet/agromarket/internal/client/iocli"
	"github.com/iudanet/agromarket/internal/client/market"
	"github.com/iudanet/agromarket/internal/client/resolver"
	clientsync "github.com/iudanet/agromarket/internal/client/sync"
	"github.com/iudanet/agromarket/internal/config"
)

// BuildInfo содержит данные сборки, задаваемые через ldflags
type BuildInfo struct {
	Version   string
	BuildDate string
	GitCommit string
}

type Cli struct {
	io            iocli.IO
	syncService   clientsync.Service
	marketService market.Service
	conflicts     *resolver.Resolver
	checker       connectivity.HealthChecker
	cfg           *config.Config
	logger        *slog.Logger
}

func New(
	io iocli.IO,
	syncService clientsync.Service,
	conflicts *resolver.Resolver,
	checker connectivity.HealthChecker,
	cfg *config.Config,
	logger *slog.Logger,
) *Cli {
	return &Cli{
		io:            io,
		syncService:   syncService,
		marketService: market.NewService(syncService),
		conflicts:     conflicts,
		checker:       checker,
		cfg:           cfg,
		logger:        logger,
	}
}
