package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mezonai/starledger/api"
	"github.com/mezonai/starledger/chain"
	"github.com/mezonai/starledger/config"
	"github.com/mezonai/starledger/events"
	"github.com/mezonai/starledger/exception"
	"github.com/mezonai/starledger/jsonrpc"
	"github.com/mezonai/starledger/logx"
	"github.com/mezonai/starledger/mempool"
	"github.com/mezonai/starledger/monitoring"
	"github.com/mezonai/starledger/ratelimit"
	"github.com/mezonai/starledger/service"
	"github.com/mezonai/starledger/store"
)

const shutdownTimeout = 10 * time.Second

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the ledger node",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfiguration()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runNode(ctx, cfg)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

// openChain creates the configured store and initializes the chain on it.
// The returned close func releases the store.
func openChain(ctx context.Context, cfg *config.LedgerConfig, opts ...chain.Option) (*chain.Blockchain, func(), error) {
	storeCfg := cfg.StoreConfig()
	bs, err := store.CreateStore(storeCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create block store: %w", err)
	}
	bc, err := chain.NewBlockchain(bs, opts...)
	if err != nil {
		bs.MustClose()
		return nil, nil, err
	}
	if err := bc.Initialize(ctx); err != nil {
		bs.MustClose()
		return nil, nil, fmt.Errorf("failed to initialize chain: %w", err)
	}
	return bc, bs.MustClose, nil
}

func runNode(ctx context.Context, cfg *config.LedgerConfig) error {
	monitoring.InitMetrics()

	bus := events.NewEventBus()
	bc, closeStore, err := openChain(ctx, cfg, chain.WithEventBus(bus))
	if err != nil {
		return err
	}
	defer closeStore()

	registry := mempool.NewMempool(
		mempool.WithWindow(cfg.ValidationWindow()),
		mempool.WithEventBus(bus),
	)
	defer registry.Close()

	limiter := ratelimit.NewValidationLimiter(cfg.RateLimiterConfigs())
	defer limiter.Stop()

	starSvc := service.NewStarService(bc, registry)
	healthSvc := service.NewHealthService(bc, registry, cfg.Node.Version)

	apiServer := api.NewAPIServer(starSvc, healthSvc, limiter, cfg.Node.ListenAddr)
	apiServer.MetricsEnabled = cfg.Node.MetricsEnabled

	rpcServer := jsonrpc.NewServer(cfg.Node.RPCAddr, starSvc, healthSvc, limiter)
	if cors, ok := jsonrpc.CORSFromEnv(); ok {
		rpcServer.SetCORSConfig(cors)
	}

	subID, eventsCh := bus.Subscribe()
	exception.SafeGo("EventLogger", func() {
		for ev := range eventsCh {
			logx.Debug("EVENT", ev.Type(), " ", ev.Subject())
		}
	})

	serveErr := make(chan error, 2)
	exception.SafeGoWithPanic("APIServer", func() {
		serveErr <- apiServer.Start()
	})
	exception.SafeGoWithPanic("JSONRPCServer", func() {
		serveErr <- rpcServer.Start()
	})

	height, _ := bc.Height()
	logx.Info("NODE", fmt.Sprintf("Node started | height=%d | window=%s | store=%s", height, cfg.ValidationWindow(), cfg.Store.Type))

	var runErr error
	select {
	case <-ctx.Done():
		logx.Info("NODE", "Shutdown signal received")
	case runErr = <-serveErr:
		if runErr != nil {
			logx.Error("NODE", "Server stopped: ", runErr)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logx.Warn("NODE", "API shutdown: ", err)
	}
	if err := rpcServer.Shutdown(shutdownCtx); err != nil {
		logx.Warn("NODE", "JSON-RPC shutdown: ", err)
	}
	bus.Unsubscribe(subID)
	logx.Info("NODE", "Node stopped")
	return runErr
}
