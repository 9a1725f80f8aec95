package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/etherlabsio/healthcheck/v2"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/filecoin-project/go-jsonrpc"
	"github.com/gorilla/mux"
	"github.com/ipfs-force-community/metrics"
	logging "github.com/ipfs/go-log/v2"
	multiaddr "github.com/multiformats/go-multiaddr"
	manet "github.com/multiformats/go-multiaddr/net"
	"github.com/urfave/cli/v2"
	"go.opencensus.io/plugin/ochttp"

	"github.com/keepkey-community/wallet-gateway/api"
	"github.com/keepkey-community/wallet-gateway/approvals"
	"github.com/keepkey-community/wallet-gateway/chains"
	"github.com/keepkey-community/wallet-gateway/chains/bitcoin"
	"github.com/keepkey-community/wallet-gateway/chains/cosmos"
	"github.com/keepkey-community/wallet-gateway/chains/ethereum"
	"github.com/keepkey-community/wallet-gateway/chains/ripple"
	"github.com/keepkey-community/wallet-gateway/cmds"
	"github.com/keepkey-community/wallet-gateway/config"
	"github.com/keepkey-community/wallet-gateway/gateway"
	gwmetrics "github.com/keepkey-community/wallet-gateway/metrics"
	"github.com/keepkey-community/wallet-gateway/sdk"
	"github.com/keepkey-community/wallet-gateway/store"
	"github.com/keepkey-community/wallet-gateway/version"
	"github.com/keepkey-community/wallet-gateway/walletstate"
)

var log = logging.Logger("main")

func main() {
	_ = logging.SetLogLevel("*", "INFO")

	app := &cli.App{
		Name:  "wallet-gateway",
		Usage: "dispatch service routing page wallet requests to chain handlers",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "path to the gateway config file",
				Value: config.ConfigFile,
			},
		},
		Commands: []*cli.Command{
			runCmd, cmds.RequestCmds, cmds.ApprovalCmds,
		},
	}
	app.Version = version.UserVersion
	if err := app.Run(os.Args); err != nil {
		log.Warn(err)
		os.Exit(1)
	}
}

var runCmd = &cli.Command{
	Name:  "run",
	Usage: "start wallet-gateway daemon",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "listen", Usage: "host address and port the gateway api will listen on"},
		&cli.StringFlag{Name: "store-dsn", Usage: "postgres connection string for the record store"},
		&cli.StringFlag{Name: "signer-url", Usage: "device daemon rpc endpoint"},
		&cli.StringFlag{Name: "signer-token", EnvVars: []string{"WALLET_GATEWAY_SIGNER_TOKEN"}},
		&cli.StringFlag{Name: "eth-rpc", Usage: "ethereum execution-layer rpc endpoint"},
		&cli.StringFlag{Name: "jaeger-proxy", EnvVars: []string{"WALLET_GATEWAY_JAEGER_PROXY"}},
		&cli.Float64Flag{Name: "trace-sampler", EnvVars: []string{"WALLET_GATEWAY_TRACE_SAMPLER"}, Value: 1.0},
		&cli.StringFlag{Name: "trace-node-name", Value: "wallet-gateway"},
	},
	Action: func(cctx *cli.Context) error {
		cfg := config.DefaultConfig()
		if fileCfg, err := config.ReadConfig(cctx.String("config")); err == nil {
			cfg = fileCfg
		} else if !os.IsNotExist(err) {
			return err
		}
		if cctx.IsSet("listen") {
			cfg.API.ListenAddress = cctx.String("listen")
		}
		if cctx.IsSet("store-dsn") {
			cfg.Store.DSN = cctx.String("store-dsn")
		}
		if cctx.IsSet("signer-url") {
			cfg.Signer.URL = cctx.String("signer-url")
		}
		if cctx.IsSet("signer-token") {
			cfg.Signer.Token = cctx.String("signer-token")
		}
		if cctx.IsSet("eth-rpc") {
			cfg.Ethereum.RPCURL = cctx.String("eth-rpc")
		}
		if proxy := strings.TrimSpace(cctx.String("jaeger-proxy")); len(proxy) != 0 {
			cfg.Trace.JaegerTracingEnabled = true
			cfg.Trace.JaegerEndpoint = proxy
			cfg.Trace.ProbabilitySampler = cctx.Float64("trace-sampler")
			cfg.Trace.ServerName = cctx.String("trace-node-name")
		}
		return RunMain(cctx.Context, cfg)
	},
}

func RunMain(ctx context.Context, cfg *config.Config) error {
	requestCfg := cfg.RequestConfig()

	log.Infof("wallet-gateway current version %s, listen %s", version.UserVersion, cfg.API.ListenAddress)

	st, err := store.NewSQLStore(cfg.Store.DSN)
	if err != nil {
		return err
	}

	state := walletstate.New(nil, nil)

	signerClient, signerCloser, err := sdk.NewSignerClient(ctx, cfg.Signer.URL, cfg.Signer.Token)
	if err != nil {
		return err
	}
	defer signerCloser()

	sdkLog := logging.Logger("sdk")
	loader := sdk.NewLoader(signerClient, state, &sdkLog.SugaredLogger)
	syncInterval := cfg.Signer.SyncInterval
	if syncInterval <= 0 {
		syncInterval = time.Minute
	}
	go loader.Run(ctx, syncInterval)

	gate := approvals.NewGate(ctx, st, approvals.LogNotifier, requestCfg)

	deps := &chains.Deps{
		Store:       st,
		Gate:        gate,
		Wallet:      state,
		Signer:      signerClient,
		Broadcaster: signerClient,
	}

	router := gateway.NewRouter()
	if len(cfg.Ethereum.RPCURL) != 0 {
		ethBackend, err := ethclient.Dial(cfg.Ethereum.RPCURL)
		if err != nil {
			return err
		}
		ethHandler, err := ethereum.New(deps, ethBackend, ethereum.NetworkID(cfg.Ethereum.ChainID))
		if err != nil {
			return err
		}
		router.Register("ethereum", ethHandler)
	}
	for _, net := range []bitcoin.Network{bitcoin.Mainnet, bitcoin.Litecoin, bitcoin.Dogecoin, bitcoin.BitcoinCash} {
		router.Register(net.Tag, bitcoin.New(deps, signerClient, net))
	}
	for _, net := range []cosmos.Network{cosmos.CosmosHub, cosmos.Osmosis, cosmos.Thorchain} {
		router.Register(net.Tag, cosmos.New(deps, net))
	}
	router.Register("ripple", ripple.New(deps))

	gatewayAPI := api.NewGatewayAPI(router, gate, st, requestCfg)

	if cfg.Metrics != nil && cfg.Metrics.Enabled {
		if err := gwmetrics.SetupMetrics(ctx, cfg.Metrics); err != nil {
			return err
		}
	}
	go gwmetrics.RecordQueueDepthLoop(ctx, st)

	log.Info("Setting up control endpoint at " + cfg.API.ListenAddress)

	muxRouter := mux.NewRouter()
	rpcServer := jsonrpc.NewServer()
	rpcServer.Register("Gateway", gatewayAPI)
	muxRouter.Handle("/rpc/v1", rpcServer)
	muxRouter.Handle("/healthcheck", healthcheck.Handler(
		healthcheck.WithTimeout(time.Second*5),
		healthcheck.WithChecker("store", healthcheck.CheckerFunc(st.Ping)),
	))
	muxRouter.PathPrefix("/").Handler(http.DefaultServeMux)

	handler := (http.Handler)(muxRouter)
	if tp, err := metrics.SetupJaegerTracing(cfg.Trace.ServerName, cfg.Trace); err != nil {
		log.Fatalf("setup jaeger-tracing exporter to %s failed:%s", cfg.Trace.JaegerEndpoint, err)
	} else if tp != nil {
		log.Infof("setup jaeger-tracing exporter to %s, with node-name:%s", cfg.Trace.JaegerEndpoint, cfg.Trace.ServerName)
		defer func() {
			if err := metrics.ShutdownJaeger(context.TODO(), tp); err != nil {
				log.Errorf("shutdown jaeger: %s", err)
			}
		}()
		handler = &ochttp.Handler{Handler: handler}
	}
	srv := &http.Server{Handler: handler}

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			log.Warnw("received shutdown", "signal", sig)
		case <-ctx.Done():
			log.Warn("received shutdown")
		}

		log.Info("Shutting down...")
		if err := srv.Shutdown(context.TODO()); err != nil {
			log.Errorf("shutting down RPC server failed: %s", err)
		}
	}()
	addr, err := multiaddr.NewMultiaddr(cfg.API.ListenAddress)
	if err != nil {
		return err
	}

	nl, err := manet.Listen(addr)
	if err != nil {
		return err
	}

	log.Infof("start to rpc listen %s", nl.Addr())
	if err = srv.Serve(manet.NetListener(nl)); err != nil && err != http.ErrServerClosed {
		return err
	}

	log.Info("Graceful shutdown successful")
	return nil
}
