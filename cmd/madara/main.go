// Package main runs the state sync node: feeder gateway + settlement watcher
// feeding the commitment engine, with an HTTP control surface.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/jessevdk/go-flags"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/microbecode/madara/internal/metrics"
	syncservice "github.com/microbecode/madara/internal/service/sync"
	"github.com/microbecode/madara/internal/source/gateway"
	"github.com/microbecode/madara/internal/source/settlement"
	"github.com/microbecode/madara/internal/state"
	"github.com/microbecode/madara/internal/storage/leveldb"
	"github.com/microbecode/madara/internal/transport"
	"github.com/microbecode/madara/pkg/safe"
)

var config struct {
	Network string `long:"network" env:"MADARA_NETWORK" description:"network name" default:"mainnet"`
	DataDir string `long:"data-dir" env:"MADARA_DATA_DIR" description:"state database directory" default:"./data"`

	GatewayURL string `long:"gateway-url" env:"MADARA_GATEWAY_URL" description:"feeder gateway base url" default:"https://alpha-mainnet.starknet.io/feeder_gateway"`
	GatewayRPS int    `long:"gateway-rps" env:"MADARA_GATEWAY_RPS" description:"gateway requests per second" default:"5"`

	SettlementRPCURL string `long:"settlement-rpc-url" env:"MADARA_SETTLEMENT_RPC_URL" description:"settlement layer json-rpc url"`
	CoreContract     string `long:"core-contract" env:"MADARA_CORE_CONTRACT" description:"rollup core contract address" default:"0xc662c410C0ECf747543f5bA90660f6ABeBD9C8c4"`
	Confirmations    int64  `long:"confirmations" env:"MADARA_CONFIRMATIONS" description:"settlement confirmations instead of the finalized tag" default:"0"`

	UnifiedForkHeight int64 `long:"unified-fork-height" env:"MADARA_UNIFIED_FORK_HEIGHT" description:"first height committed under the unified scheme" default:"0"`

	PollInterval            time.Duration `long:"poll-interval" env:"MADARA_POLL_INTERVAL" description:"idle poll interval" default:"2s"`
	StallTimeout            time.Duration `long:"stall-timeout" env:"MADARA_STALL_TIMEOUT" description:"gateway stall timeout before trying the settlement provider" default:"30s"`
	RetryBudget             int           `long:"retry-budget" env:"MADARA_RETRY_BUDGET" description:"reconciliation attempts per contested height" default:"3"`
	DisableRootVerification bool          `long:"disable-root-verification" env:"MADARA_DISABLE_ROOT_VERIFICATION" description:"skip commitment-vs-header verification (testing only)"`

	HTTPAddr string `long:"http-addr" env:"MADARA_HTTP_ADDR" description:"metrics and admin http addr" default:":8080"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic("can't initialize zap logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync()
	}()
	if _, err := flags.ParseArgs(&config, os.Args); err != nil {
		logger.Fatal("Failed to parse arguments", zap.Error(err))
	}

	if err := run(ctx, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("Node stopped", zap.Error(err))
	}
	logger.Info("Shut down cleanly")
}

func run(ctx context.Context, logger *zap.Logger) error {
	confirmations, err := safe.Uint64(config.Confirmations)
	if err != nil {
		return err
	}
	forkHeight, err := safe.Uint64(config.UnifiedForkHeight)
	if err != nil {
		return err
	}
	if !common.IsHexAddress(config.CoreContract) {
		return errors.New("invalid core contract address: " + config.CoreContract)
	}

	store, err := leveldb.Open(config.DataDir, metrics.NewStore(config.Network), logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			logger.Error("Failed to close state database", zap.Error(closeErr))
		}
	}()

	stateEngine, err := state.New(store, logger, state.Config{UnifiedForkHeight: forkHeight})
	if err != nil {
		return err
	}

	gatewayClient, err := gateway.NewClient(gateway.Config{
		BaseURL:           config.GatewayURL,
		RequestsPerSecond: config.GatewayRPS,
	}, metrics.NewGateway(config.Network), logger)
	if err != nil {
		return err
	}
	gatewaySource := gateway.NewSource(gatewayClient, logger)

	ethClient, err := ethclient.DialContext(ctx, config.SettlementRPCURL)
	if err != nil {
		return err
	}
	defer ethClient.Close()

	settlementSource, err := settlement.New(ethClient, settlement.Config{
		CoreContract:  common.HexToAddress(config.CoreContract),
		Confirmations: confirmations,
	}, metrics.NewSettlement(config.Network), logger)
	if err != nil {
		return err
	}
	settledBlocks, err := settlement.NewBlockProvider(settlementSource, gatewaySource, logger)
	if err != nil {
		return err
	}

	service, err := syncservice.New(
		gatewaySource,
		settledBlocks,
		settlementSource,
		stateEngine,
		metrics.NewSync(config.Network),
		nil,
		logger,
		syncservice.Config{
			PollInterval:            config.PollInterval,
			StallTimeout:            config.StallTimeout,
			RetryBudget:             config.RetryBudget,
			DisableRootVerification: config.DisableRootVerification,
		},
	)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	transport.NewAdminHandler(service, logger).Register(mux)

	server := &http.Server{
		Addr:              config.HTTPAddr,
		Handler:           mux,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", config.HTTPAddr))
		if serveErr := server.ListenAndServe(); !errors.Is(serveErr, http.ErrServerClosed) {
			logger.Error("Failed to listen and serve", zap.Error(serveErr))
		}
	}()
	go func() {
		<-ctx.Done()
		logger.Info("Shutting down the http server")
		if err := server.Shutdown(context.Background()); err != nil {
			logger.Error("Failed to shutdown http server", zap.Error(err))
		}
	}()

	return service.Run(ctx)
}
