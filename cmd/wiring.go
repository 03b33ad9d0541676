package cmd

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"cosmossdk.io/log"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/skalenetwork/ima-agent/batchformer"
	"github.com/skalenetwork/ima-agent/callpipeline"
	"github.com/skalenetwork/ima-agent/config"
	"github.com/skalenetwork/ima-agent/contracts"
	"github.com/skalenetwork/ima-agent/coordinator"
	"github.com/skalenetwork/ima-agent/fanout"
	"github.com/skalenetwork/ima-agent/gaspolicy"
	"github.com/skalenetwork/ima-agent/observer"
	"github.com/skalenetwork/ima-agent/relayer"
	"github.com/skalenetwork/ima-agent/rpcclient"
	"github.com/skalenetwork/ima-agent/s2sverifier"
	"github.com/skalenetwork/ima-agent/scanner"
	"github.com/skalenetwork/ima-agent/sigcollector"
	"github.com/skalenetwork/ima-agent/signer"
	"github.com/skalenetwork/ima-agent/transferloop"
	ima "github.com/skalenetwork/ima-agent/types"
)

// metricsRefreshInterval drives the wallet-balance/latest-block
// gauges, distinct from the per-direction pass cadence.
const metricsRefreshInterval = 30 * time.Second

// chainEndpoint adapts a config.ChainConfig into the shape rpcclient
// and observer expect.
func chainEndpoint(c config.ChainConfig) ima.ChainEndpoint {
	roster := make([]ima.Node, 0, len(c.NodeRoster))
	for _, n := range c.NodeRoster {
		roster = append(roster, ima.Node{Name: n.Name, URL: n.URL})
	}
	return ima.ChainEndpoint{
		Name:       c.Name,
		ChainID:    c.ChainID,
		RPCURL:     c.RPC,
		WSURL:      c.WS,
		IsMainnet:  c.IsMainnet,
		NodeRoster: roster,
	}
}

// gasPolicyFor picks mainnet or S-chain defaults and layers the
// configured price multiplier/ceiling on top (spec.md §4.3).
func gasPolicyFor(chain config.ChainConfig, opts config.ProcessOptions) gaspolicy.Policy {
	var policy gaspolicy.Policy
	if chain.IsMainnet {
		policy = gaspolicy.DefaultMainnet()
	} else {
		policy = gaspolicy.DefaultSChain()
	}
	if opts.PriceMultiplier != 0 {
		policy.PriceMultiplier = opts.PriceMultiplier
	}
	if opts.MaxGasPrice != "" {
		if ceiling, ok := new(big.Int).SetString(opts.MaxGasPrice, 10); ok {
			policy.MaxGasPrice = ceiling
		}
	}
	return policy
}

// dial opens a persistent ethclient.Client used only to back
// bind.BoundContract read calls; transaction submission goes through
// rpcclient.Client instead (spec.md §4.1's single resilient path).
func dial(rpcURL string) (*contracts.BackendWrapper, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", rpcURL, err)
	}
	return contracts.NewBackendWrapper(client), nil
}

// buildCollector returns an HTTPCollector when the source chain names
// a quorum service, else the all-zero test stub (spec.md §4.6).
func buildCollector(chain config.ChainConfig, logger log.Logger) sigcollector.Collector {
	if chain.SignatureCollectorURL == "" {
		return sigcollector.Stub{Logger: logger}
	}
	return sigcollector.NewHTTPCollector(chain.SignatureCollectorURL, logger)
}

// buildPoWHelper wires the free-gas PoW sidecar for an S-chain
// destination when one is configured; nil disables the fallback
// (spec.md §4.4 step 4).
func buildPoWHelper(chain config.ChainConfig) callpipeline.PoWHelper {
	if chain.PowSidecarPath == "" {
		return nil
	}
	return gaspolicy.NewPoWSidecar(chain.PowSidecarPath)
}

// transactOptsFor builds the closure fanout.Direction needs. None of
// the three Signer backends currently read fields off the opts beyond
// Context/From, so a fresh struct per pass is enough (spec.md §4.5).
func transactOptsFor(s signer.Signer) func(ctx context.Context) (*bind.TransactOpts, error) {
	return func(ctx context.Context) (*bind.TransactOpts, error) {
		return &bind.TransactOpts{Context: ctx, From: common.Address(s.Address())}, nil
	}
}

// buildLoop wires one (source,destination) direction end to end,
// grounded on cmd/process.go's per-route construction. srcNodeURL, when
// non-empty, overrides the source chain's configured RPC endpoint with
// a specific roster node — the fresh, pseudo-randomly-picked source
// endpoint spec.md §4.10 requires for S->S passes.
func buildLoop(cfg *config.Config, direction config.DirectionConfig, srcNodeURL string, shared *coordinator.InProcess, errs *ima.ErrorRegistry, metrics *relayer.PromMetrics, logger log.Logger) (fanout.Direction, error) {
	src, ok := cfg.Chains[direction.Source]
	if !ok {
		return fanout.Direction{}, fmt.Errorf("unknown source chain %s", direction.Source)
	}
	dst, ok := cfg.Chains[direction.Destination]
	if !ok {
		return fanout.Direction{}, fmt.Errorf("unknown destination chain %s", direction.Destination)
	}
	opts := cfg.Options.Merge(direction.Options)

	srcEndpoint := chainEndpoint(src)
	if srcNodeURL != "" {
		srcEndpoint.RPCURL = srcNodeURL
	}
	srcClient := rpcclient.New(srcEndpoint, logger)
	srcBackend, err := dial(srcEndpoint.RPCURL)
	if err != nil {
		return fanout.Direction{}, err
	}
	srcProxy, err := contracts.New(common.HexToAddress(src.MessageProxy), srcBackend)
	if err != nil {
		return fanout.Direction{}, fmt.Errorf("bind source proxy (%s): %w", src.Name, err)
	}
	decoder := contracts.NewDecoder(srcProxy)
	dstChainHash := crypto.Keccak256Hash([]byte(dst.Name))
	scan := scanner.New(srcClient, common.HexToAddress(src.MessageProxy), dstChainHash, decoder)
	if opts.CountOfBlocksInIterativeStep != 0 {
		scan.Window = opts.CountOfBlocksInIterativeStep
	}
	if opts.MaxIterationsInAllRange != 0 {
		scan.MaxWindows = opts.MaxIterationsInAllRange
	}
	checks := batchformer.SecurityChecks{BlockAwaitDepth: opts.BlockAwaitDepth, BlockAge: opts.BlockAge}
	former := batchformer.New(srcClient, scan, contracts.NewProxyCounters(srcProxy), checks, logger)
	if opts.TransactionsPerBlock > 0 {
		former.BatchSize = opts.TransactionsPerBlock
	}
	if src.WS != "" {
		follower := scanner.NewLiveFollower()
		former.LiveFollower = follower
		go startLiveFollower(srcClient, scan, src, follower, logger)
	}

	dstClient := rpcclient.New(chainEndpoint(dst), logger)
	dstBackend, err := dial(dst.RPC)
	if err != nil {
		return fanout.Direction{}, err
	}
	dstProxy, err := contracts.New(common.HexToAddress(dst.MessageProxy), dstBackend)
	if err != nil {
		return fanout.Direction{}, fmt.Errorf("bind destination proxy (%s): %w", dst.Name, err)
	}

	dstSigner, err := buildSigner(dst, dstClient)
	if err != nil {
		return fanout.Direction{}, fmt.Errorf("direction %s->%s: %w", src.Name, dst.Name, err)
	}
	directionKey := fmt.Sprintf("%s->%s", src.Name, dst.Name)

	pipeline := callpipeline.New(dstClient, dstSigner, gasPolicyFor(dst, opts), buildPoWHelper(dst), logger)
	pipeline.Metrics = metrics
	pipeline.Chain = dst.Name
	pipeline.Direction = directionKey

	isSChainToS := !src.IsMainnet && !dst.IsMainnet
	var verifier *s2sverifier.Verifier
	var roster []ima.Node
	if isSChainToS {
		verifier = s2sverifier.New(common.HexToAddress(src.MessageProxy), dstChainHash, decoder, logger)
		roster = chainEndpoint(src).NodeRoster
	}

	loopOpts := transferloop.DefaultOptions()
	loopOpts.TransactionsPerBlock = opts.TransactionsPerBlock
	loopOpts.TransferSteps = opts.TransferSteps
	loopOpts.MaxTransactionsCount = opts.MaxTransactionsCount
	loopOpts.WaitForNextBlockOnSChain = opts.WaitForNextBlockOnSChain
	loopOpts.SleepBetweenTxOnSChain = time.Duration(opts.SleepBetweenTxOnSChainMs) * time.Millisecond

	loop := &transferloop.Loop{
		DirectionKey: directionKey,
		SourceChain:  src.Name,
		DestChain:    dst.Name,
		IsSChainToS:  isSChainToS,
		DestIsMain:   dst.IsMainnet,
		Roster:       roster,

		Former:      former,
		Verifier:    verifier,
		SigCollect:  buildCollector(src, logger),
		Pipeline:    pipeline,
		DestProxy:   dstProxy,
		Coordinator: shared,

		State:   &ima.TransferLoopState{},
		Errors:  errs,
		Options: loopOpts,
		Logger:  logger.With("direction", directionKey),
		Metrics: metrics,
	}

	return fanout.Direction{Loop: loop, TransactOpts: transactOptsFor(dstSigner)}, nil
}

// buildFanout assembles the configured mainnet<->S-chain directions
// plus one S->S direction per sibling chain the Observer reports
// (spec.md §4.10). M->S and S->M come straight from cfg.Directions;
// S->S directions are instead rebuilt from the Observer's snapshot so
// each sibling's source endpoint is a fresh, pseudo-randomly-picked
// roster node rather than the chain's single configured RPC URL. The
// returned loops slice is every constructed direction, keyed for the
// api package's read-only snapshots.
func buildFanout(cfg *config.Config, metrics *relayer.PromMetrics, logger log.Logger) (*fanout.Fanout, []*transferloop.Loop, error) {
	shared := coordinator.New()
	errs := ima.NewErrorRegistry()
	obs := observer.FromConfig(*cfg)
	f := &fanout.Fanout{Logger: logger, Observer: obs}
	var loops []*transferloop.Loop

	var homeSChain string
	siblingOpts := make(map[string]*config.ProcessOptions)
	for _, direction := range cfg.Directions {
		if !direction.Enabled {
			continue
		}
		src := cfg.Chains[direction.Source]
		dst := cfg.Chains[direction.Destination]

		if !src.IsMainnet && !dst.IsMainnet {
			homeSChain = direction.Destination
			siblingOpts[direction.Source] = direction.Options
			continue
		}

		built, err := buildLoop(cfg, direction, "", shared, errs, metrics, logger)
		if err != nil {
			return nil, nil, err
		}
		loops = append(loops, built.Loop)

		switch {
		case src.IsMainnet && !dst.IsMainnet:
			f.MainnetToSChain = built
		case !src.IsMainnet && dst.IsMainnet:
			f.SChainToMainnet = built
		}
	}

	if homeSChain != "" {
		var buildErr error
		siblings := fanout.BuildSiblingLoops(obs, func(srcNodeURL string, sibling observer.SiblingChain) fanout.Direction {
			if sibling.Endpoint.Name == homeSChain || buildErr != nil {
				return fanout.Direction{}
			}
			direction := config.DirectionConfig{
				Source:      sibling.Endpoint.Name,
				Destination: homeSChain,
				Enabled:     true,
				Options:     siblingOpts[sibling.Endpoint.Name],
			}
			built, err := buildLoop(cfg, direction, srcNodeURL, shared, errs, metrics, logger)
			if err != nil {
				buildErr = fmt.Errorf("sibling direction %s->%s: %w", direction.Source, direction.Destination, err)
				return fanout.Direction{}
			}
			loops = append(loops, built.Loop)
			return built
		})
		if buildErr != nil {
			return nil, nil, buildErr
		}
		for _, s := range siblings {
			if s.Loop != nil {
				f.SiblingLoops = append(f.SiblingLoops, s)
			}
		}
	}

	return f, loops, nil
}

// startLiveFollower dials chain's websocket endpoint and runs the
// scanner's etherstream-backed subscription until it drops or the
// process exits; a dial or subscribe failure just leaves follower
// empty and Former falls back to polling (spec.md §4.2). This is
// independent of waitForNextBlockOnSChain, which paces submissions.
func startLiveFollower(client *rpcclient.Client, scan *scanner.Scanner, chain config.ChainConfig, follower *scanner.LiveFollower, logger log.Logger) {
	ctx := context.Background()
	latest, err := client.GetBlockNumber(ctx, rpcclient.DefaultOptions(3))
	if err != nil {
		logger.Error("live follower: latest block unavailable", "chain", chain.Name, "error", err)
		return
	}
	backend, err := ethclient.DialContext(ctx, chain.WS)
	if err != nil {
		logger.Error("live follower: dial ws failed", "chain", chain.Name, "error", err)
		return
	}
	defer backend.Close()
	if err := scan.Run(ctx, backend, latest, follower); err != nil {
		logger.Error("live follower stopped", "chain", chain.Name, "error", err)
	}
}

// startMetricsRefresh launches one timer-driven goroutine per
// configured chain that refreshes the signer's wallet balance and the
// chain's latest observed block height, grounded on noble/listener.go's
// flushMechanism timer loop and the teacher's WalletBalanceMetric/
// TrackLatestBlockHeight helpers.
func startMetricsRefresh(ctx context.Context, cfg *config.Config, metrics *relayer.PromMetrics, logger log.Logger) {
	if metrics == nil {
		return
	}
	for name, chain := range cfg.Chains {
		go refreshChainMetrics(ctx, name, chain, metrics, logger)
	}
}

func refreshChainMetrics(ctx context.Context, name string, chain config.ChainConfig, metrics *relayer.PromMetrics, logger log.Logger) {
	client := rpcclient.New(chainEndpoint(chain), logger)

	s, err := buildSigner(chain, client)
	if err != nil {
		logger.Error("metrics refresh: signer unavailable", "chain", name, "error", err)
		return
	}
	address := common.Address(s.Address())

	ticker := time.NewTicker(metricsRefreshInterval)
	defer ticker.Stop()

	for {
		if block, err := client.GetBlockNumber(ctx, rpcclient.DefaultOptions(3)); err == nil {
			metrics.SetLatestBlock(name, float64(block))
		}
		if balance, err := client.GetBalance(ctx, address, rpcclient.DefaultOptions(3)); err == nil {
			balanceEth, _ := new(big.Float).SetInt(balance).Float64()
			metrics.SetWalletBalance(name, address.Hex(), balanceEth)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
