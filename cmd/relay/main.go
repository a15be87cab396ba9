// Command relay runs the gateway process: it loads a Config Snapshot,
// constructs every collaborator singleton spec §9 names, builds the
// method Table, and starts the HTTP/WebSocket/metrics servers until
// interrupted.
//
// main's shape — a thin entry point delegating to a spf13/cobra root
// command — follows the teacher's cmd/evmd/main.go, minus the
// cosmos-sdk server framework this gateway has no use for.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"cosmossdk.io/log"

	"github.com/hashlink-network/eth-rpc-relay/accountlock"
	"github.com/hashlink-network/eth-rpc-relay/cache"
	"github.com/hashlink-network/eth-rpc-relay/config"
	"github.com/hashlink-network/eth-rpc-relay/consensus"
	"github.com/hashlink-network/eth-rpc-relay/metrics"
	"github.com/hashlink-network/eth-rpc-relay/mirror"
	"github.com/hashlink-network/eth-rpc-relay/paymaster"
	"github.com/hashlink-network/eth-rpc-relay/rpc/dispatcher"
	"github.com/hashlink-network/eth-rpc-relay/rpc/registry"
	"github.com/hashlink-network/eth-rpc-relay/rpc/subscription"
	"github.com/hashlink-network/eth-rpc-relay/rpc/websockets"
	"github.com/hashlink-network/eth-rpc-relay/server"
	"github.com/hashlink-network/eth-rpc-relay/submission"
	"github.com/hashlink-network/eth-rpc-relay/tracer"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Stateless Ethereum JSON-RPC/WebSocket gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context())
		},
	}
	return cmd
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := log.NewLogger(os.Stdout)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := metrics.New()

	cacheSvc, err := buildCacheService(cfg, logger, reg)
	if err != nil {
		return fmt.Errorf("building cache service: %w", err)
	}

	mirrorCli := mirror.NewFake()
	consensusCli := consensus.NewFake()

	locks := accountlock.NewService(logger)
	pm := paymaster.NewState(cfg)
	pipeline := submission.NewPipeline(cfg, locks, pm, consensusCli, mirrorCli, logger, reg)

	table := registry.BuildTable(registry.Deps{
		Cfg:      cfg,
		Mirror:   mirrorCli,
		Cache:    cacheSvc,
		Pipeline: pipeline,
		Tracer:   tracer.Disabled{},
	})

	d := dispatcher.New(cfg, table, logger, reg)

	var subs *subscription.Engine
	if cfg.SubscriptionsEnabled {
		subs = subscription.New(cfg, mirrorCli, logger, 2*time.Second, reg)
		go subs.Start(ctx)
		defer subs.Stop()
	} else {
		subs = subscription.New(cfg, mirrorCli, logger, time.Hour, reg)
	}

	wsSrv := websockets.New(cfg, d, subs, reg, logger, cfg.WSMaxConnsPerIP)

	deps := server.Deps{
		Cfg:        cfg,
		Dispatcher: d,
		WS:         wsSrv,
		Metrics:    reg,
		Logger:     logger,
		Ready: func() bool {
			_, err := mirrorCli.LatestBlockNumber(context.Background())
			return err == nil
		},
	}

	return server.Start(ctx, deps)
}

func buildCacheService(cfg config.Snapshot, logger log.Logger, reg *metrics.Registry) (*cache.Service, error) {
	local, err := cache.NewLocal(4096)
	if err != nil {
		return nil, err
	}

	var shared *cache.Shared
	if cfg.RedisEnabled {
		shared, err = cache.NewShared(cfg.RedisURL)
		if err != nil {
			logger.Error("failed to connect to shared cache, continuing with local only", "err", err)
			shared = nil
		}
	}

	return cache.NewService(local, shared, logger, reg, cfg.RedisReconnectDelayMs), nil
}
