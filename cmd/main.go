package main

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arbcore/detector/internal/abtest"
	"github.com/arbcore/detector/internal/config"
	"github.com/arbcore/detector/internal/decode"
	"github.com/arbcore/detector/internal/domain"
	"github.com/arbcore/detector/internal/feed"
	"github.com/arbcore/detector/internal/logging"
	"github.com/arbcore/detector/internal/metrics"
	"github.com/arbcore/detector/internal/simprovider"
	"github.com/arbcore/detector/internal/simservice"
	"github.com/arbcore/detector/internal/store"
	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load() // best-effort; absent in most deployments

	log := logging.NewStd(os.Getenv("DEBUG") == "1")

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yml"
	}
	conf, err := config.LoadConfig(configPath)
	if err != nil {
		panic(err)
	}

	providers := buildProviders(conf)
	simSvc := simservice.NewService(providers, conf.ToSimulationConfig(), log)

	registry := buildRegistry(conf, log)

	kv, err := buildStore(conf)
	if err != nil {
		panic(err)
	}
	defer kv.Close()

	framework := abtest.NewFramework(conf.ToExperimentConfig(), kv, log)
	framework.Start()
	defer framework.Stop()

	collector := metrics.NewCollector(simSvc, 15*time.Second, log)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	go collector.Run(ctx)

	feedClient := feed.NewClient(conf.ToFeedConfig(), feed.WithLogger(log))

	reportChan := make(chan string)
	unsubscribe := feedClient.Subscribe(&feed.Handlers{
		OnConnected:    func() { reportChan <- "feed: connected" },
		OnDisconnected: func(reason string) { reportChan <- fmt.Sprintf("feed: disconnected: %s", reason) },
		OnError:        func(err error) { reportChan <- fmt.Sprintf("feed: error: %v", err) },
		OnPendingTx: func(tx *domain.RawPendingTransaction) {
			handlePendingTx(ctx, tx, registry, simSvc, framework, log, reportChan)
		},
	})
	defer unsubscribe()

	if err := feedClient.Connect(ctx); err != nil {
		panic(err)
	}
	if err := feedClient.SubscribePendingTxs(); err != nil {
		panic(err)
	}

	go func() {
		<-ctx.Done()
		feedClient.Disconnect()
		close(reportChan)
	}()

	for update := range reportChan {
		log.Infof("%s", update)
	}
}

// handlePendingTx runs one pending transaction through decode, tiered
// simulation, and experiment assignment, reporting the outcome over
// reportChan rather than returning it synchronously.
func handlePendingTx(
	ctx context.Context,
	tx *domain.RawPendingTransaction,
	registry *decode.Registry,
	simSvc *simservice.Service,
	framework *abtest.Framework,
	log logging.Logger,
	reportChan chan<- string,
) {
	receivedAt := time.Now()

	intent, err := registry.Decode(tx, tx.ChainID, receivedAt)
	if err != nil {
		log.Debugf("decode: %v", err)
		return
	}
	if intent == nil {
		return
	}

	fingerprint := fmt.Sprintf("%s:%d", intent.Router.Hex(), intent.Nonce)
	dex := string(intent.Protocol)
	variants := framework.AssignAllVariants(fingerprint, &intent.ChainID, &dex)

	expectedProfit := estimateExpectedProfit(intent)
	ageMs := time.Since(receivedAt).Milliseconds()
	tier := simSvc.GetSimulationTier(expectedProfit, ageMs)
	if tier == simservice.TierNone {
		return
	}

	req := buildSimulationRequest(tx, intent)
	result, err := simSvc.Simulate(ctx, req, tier)
	if err != nil {
		reportChan <- fmt.Sprintf("simulate %s: %v", intent.SourceTxHash.Hex(), err)
		return
	}
	if result == nil {
		return
	}

	reportChan <- fmt.Sprintf(
		"opportunity %s protocol=%s tier=%s success=%v wouldRevert=%v variants=%v",
		intent.SourceTxHash.Hex(), intent.Protocol, tier, result.Success, result.WouldRevert, variants,
	)
}

// estimateExpectedProfit is a placeholder trade-size signal standing in for
// full profit estimation (spread discovery across pools, gas-adjusted net
// value), which belongs to the execution strategy this module only
// supplies signals for.
func estimateExpectedProfit(intent *domain.SwapIntent) float64 {
	if intent.AmountIn == nil {
		return 0
	}
	f := new(big.Float).SetInt(intent.AmountIn)
	scaled := new(big.Float).Quo(f, big.NewFloat(1e18))
	out, _ := scaled.Float64()
	return out
}

func buildSimulationRequest(tx *domain.RawPendingTransaction, intent *domain.SwapIntent) *domain.SimulationRequest {
	value := "0"
	if tx.Value != nil {
		value = tx.Value.String()
	}
	return &domain.SimulationRequest{
		Chain: intent.ChainID,
		From:  intent.Sender,
		To:    intent.Router,
		Data:  tx.Data,
		Value: value,
	}
}

func buildProviders(conf *config.Config) []simprovider.Provider {
	providers := make([]simprovider.Provider, 0, len(conf.Providers))
	for _, p := range conf.Providers {
		timeout := time.Duration(p.TimeoutMs) * time.Millisecond
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		switch p.Kind {
		case "remote-rich":
			providers = append(providers, simprovider.NewRemoteRichProvider(p.Name, p.Endpoint, timeout, p.Priority, p.Enabled))
		case "remote-rpc":
			providers = append(providers, simprovider.NewRemoteRPCProvider(p.Name, p.Endpoint, timeout, p.Priority, p.Enabled))
		case "local-rpc":
			providers = append(providers, simprovider.NewLocalRPCProvider(p.Name, p.Endpoint, nil, timeout, p.Priority, p.Enabled))
		case "solana":
			providers = append(providers, simprovider.NewSolanaProvider(p.Name, p.Endpoint, p.FallbackURL, timeout, p.Priority, p.Enabled))
		}
	}
	return providers
}

type curvePoolKey struct {
	chain uint64
	pool  string
	index int64
}

func buildRegistry(conf *config.Config, log logging.Logger) *decode.Registry {
	pools := make(map[curvePoolKey]common.Address, len(conf.CurvePools))
	for _, cp := range conf.CurvePools {
		pools[curvePoolKey{chain: cp.Chain, pool: common.HexToAddress(cp.Pool).Hex(), index: cp.Index}] = common.HexToAddress(cp.Token)
	}
	lookup := func(chain uint64, pool common.Address, index int64) (common.Address, bool) {
		addr, ok := pools[curvePoolKey{chain: chain, pool: pool.Hex(), index: index}]
		return addr, ok
	}

	registry := decode.NewRegistry(lookup, decode.NewOneInchDecoder(log))
	for _, r := range conf.Routers {
		registry.AddRouter(r.Chain, common.HexToAddress(r.Address), domain.Protocol(r.Protocol))
	}
	return registry
}

func buildStore(conf *config.Config) (store.KV, error) {
	if conf.Experiment.StoreDSN == "" {
		return store.NewMemoryStore(), nil
	}
	return store.NewMySQLStore(conf.Experiment.StoreDSN)
}
