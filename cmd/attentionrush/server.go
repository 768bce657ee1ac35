package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	tips "github.com/attentionrush/tips"
	feedhttp "github.com/attentionrush/tips/http"
	"github.com/attentionrush/tips/pkg/config"
	ginapi "github.com/attentionrush/tips/pkg/gin"
	"github.com/attentionrush/tips/pkg/logging"
	"github.com/attentionrush/tips/pkg/metrics"
	signersevm "github.com/attentionrush/tips/signers/evm"
)

const shutdownTimeout = 10 * time.Second

func runServer(cfg config.Config) error {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := logging.Setup("attentionrush", cfg.Environment, cfg.LogFile, level)

	// submissions run on their own context so shutdown drains them instead of
	// cancelling transfers already handed to the wallet
	submitCtx, cancelSubmissions := context.WithCancel(context.Background())
	defer cancelSubmissions()

	submitter, wallet, closeSubmitter, err := buildSubmitter(submitCtx, cfg)
	if err != nil {
		return err
	}
	defer closeSubmitter()

	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	m, err := metrics.New(reg)
	if err != nil {
		return fmt.Errorf("registering metrics: %w", err)
	}

	deps := ginapi.Deps{
		Ctx:           submitCtx,
		Registry:      tips.NewRegistry(),
		SessionConfig: cfg.Session(),
		Metrics:       m,
		Gatherer:      reg,
		RateLimiter:   ginapi.NewRateLimiter(cfg.RateLimit, cfg.RateBurst),
		WalletDomain:  cfg.WalletDomain,
		Logger:        logger,
	}
	m.InstrumentRegistry(deps.Registry)

	if submitter != nil {
		executor, err := tips.NewTransferExecutor(submitter, cfg.Transfer(),
			tips.WithRetryPolicy(cfg.MaxRetries, cfg.RetryDelay),
			tips.WithExecutorLogger(logger))
		if err != nil {
			return fmt.Errorf("creating transfer executor: %w", err)
		}
		m.InstrumentExecutor(executor)
		deps.Transferrer = executor
	} else {
		logger.Warn("no wallet configured; sessions cannot be started")
	}
	if wallet != nil {
		deps.Wallet = wallet
	}

	if cfg.NeynarAPIKey != "" {
		deps.Feed = feedhttp.NewFeedClient(&feedhttp.FeedConfig{
			BaseURL: cfg.NeynarURL,
			APIKey:  cfg.NeynarAPIKey,
			FID:     cfg.FeedFID,
			Limit:   cfg.FeedLimit,
		})
	} else {
		logger.Warn("no Neynar API key; feed disabled")
	}

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           ginapi.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("listening", "addr", cfg.Listen, "network", cfg.Network, "token", cfg.Token)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)

		drained := make(chan struct{})
		go func() {
			deps.Registry.CloseAll()
			close(drained)
		}()
		select {
		case <-drained:
		case <-shutdownCtx.Done():
			logger.Warn("in-flight payments did not finish before shutdown")
			cancelSubmissions()
		}
		return err
	})

	if err := g.Wait(); err != nil {
		return err
	}
	return nil
}

// checkToken warns when the configured decimals disagree with the chain
func checkToken(ctx context.Context, client *ethclient.Client, cfg config.Config) {
	lookupCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	info, err := signersevm.ReadTokenInfo(lookupCtx, client, cfg.Token)
	if err != nil {
		slog.Warn("could not read token metadata", "token", cfg.Token, "error", err)
		return
	}
	if info.Decimals != cfg.Decimals {
		slog.Warn("token decimals differ from config", "token", info.Address, "symbol", info.Symbol,
			"chain", info.Decimals, "config", cfg.Decimals)
		return
	}
	slog.Info("tipping token", "token", info.Address, "symbol", info.Symbol, "decimals", info.Decimals)
}

// buildSubmitter picks the submission backend from the config: a wallet
// JSON-RPC endpoint, a local key against a node, or neither
func buildSubmitter(ctx context.Context, cfg config.Config) (tips.CallSubmitter, ginapi.WalletConnector, func(), error) {
	switch {
	case cfg.WalletRPCURL != "":
		wallet, err := signersevm.DialWallet(ctx, cfg.WalletRPCURL)
		if err != nil {
			return nil, nil, nil, err
		}
		return wallet, wallet, wallet.Close, nil

	case cfg.PrivateKey != "":
		client, err := ethclient.DialContext(ctx, cfg.RPCURL)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to dial node: %w", err)
		}
		signer, err := signersevm.NewKeySignerFromPrivateKey(cfg.PrivateKey, client)
		if err != nil {
			client.Close()
			return nil, nil, nil, err
		}
		slog.Info("signing tips locally", "from", signer.Address())
		checkToken(ctx, client, cfg)
		return signer, nil, client.Close, nil

	default:
		return nil, nil, func() {}, nil
	}
}
