package main

import (
	"context"
	"flag"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/TerexitariusStomp/HummdingerAI/internal/agent"
	"github.com/TerexitariusStomp/HummdingerAI/internal/config"
	"github.com/TerexitariusStomp/HummdingerAI/internal/dex/evm"
	"github.com/TerexitariusStomp/HummdingerAI/internal/exchange"
	"github.com/TerexitariusStomp/HummdingerAI/internal/execution"
	"github.com/TerexitariusStomp/HummdingerAI/internal/journal"
	"github.com/TerexitariusStomp/HummdingerAI/internal/metrics"
	"github.com/TerexitariusStomp/HummdingerAI/internal/pipeline"
	"github.com/TerexitariusStomp/HummdingerAI/internal/risk"
	"github.com/TerexitariusStomp/HummdingerAI/internal/strategy"
	"github.com/TerexitariusStomp/HummdingerAI/internal/util"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config (environment only when empty)")
	interval := flag.Duration("interval", 0, "run a cycle every interval until interrupted; 0 runs once")
	writeConfig := flag.String("write-config", "", "write the effective config as YAML to this path and exit")
	flag.Parse()

	boot := util.NewLogger("info")
	cfg, err := config.Load(*configPath)
	if err != nil {
		boot.Fatal().Err(err).Msg("load config")
	}
	if *writeConfig != "" {
		if err := config.Save(*writeConfig, cfg); err != nil {
			boot.Fatal().Err(err).Msg("write config")
		}
		boot.Info().Str("path", *writeConfig).Msg("config written")
		return
	}
	log := util.NewLoggerTo(os.Stdout, cfg.App.LogLevel, cfg.App.LogFormat).With().
		Str("app", cfg.App.Title).
		Str("network", cfg.App.Network).
		Logger()

	if cfg.App.MetricsAddr != "" {
		_ = metrics.Serve(cfg.App.MetricsAddr)
		log.Info().Str("addr", cfg.App.MetricsAddr).Msg("metrics up")
	}

	ctx, cancel := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	p, cleanup, err := wire(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("wire pipeline")
	}
	defer cleanup()

	if *interval <= 0 {
		if _, err := p.RunOnce(ctx); err != nil {
			log.Error().Err(err).Msg("cycle failed")
			cleanup()
			os.Exit(1)
		}
		return
	}

	log.Info().Dur("interval", *interval).Str("symbol", cfg.Market.Symbol).Msg("trader started")
	_ = p.Run(ctx, *interval)
	log.Info().Msg("shutting down")
}

func wire(ctx context.Context, cfg config.Config, log zerolog.Logger) (*pipeline.Pipeline, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
		closers = nil
	}

	conn, err := exchange.NewConnector(exchange.ConnectorConfig{
		Provider:  cfg.Exchange.ID,
		APIKey:    cfg.Exchange.APIKey,
		APISecret: cfg.Exchange.Secret,
		BaseURL:   cfg.Exchange.BaseURL,
	})
	if err != nil {
		return nil, cleanup, err
	}
	fetcher := exchange.NewFetcher(conn, log)

	engine := agent.New(cfg.Agent.Transport, cfg.Agent.URL, time.Duration(cfg.Agent.TimeoutSecs)*time.Second)
	if ws, ok := engine.(*agent.WebSocketEngine); ok {
		closers = append(closers, func() { _ = ws.Close() })
	}
	gen := strategy.Build(engine, strategy.Params{
		Prompt:  cfg.Agent.Prompt,
		Timeout: time.Duration(cfg.Agent.TimeoutSecs) * time.Second,
	}, log)

	builder := evm.NewBuilder(cfg.Chain.RPCURL, log, evm.WithSender(common.HexToAddress(cfg.Chain.PublicAddress)))
	if err := builder.Connect(ctx); err != nil {
		log.Warn().Err(err).Msg("rpc unavailable, bundle staging runs without chain data")
	} else {
		closers = append(closers, builder.Close)
	}
	stager := evm.NewBundleStager(builder, cfg.Relay.PriorityGwei, log)

	channel := execution.NewChannel(cfg.Bot.GatewayURL, cfg.Bot.Path, cfg.Bot.Strategy, log)
	router := execution.NewRouter(channel, stager, risk.Limits{MinStageConfidence: cfg.Routing.MinStageConfidence}, log)

	opts := []pipeline.Option{}
	if cfg.App.JournalPath != "" {
		rec, err := journal.NewJSONLRecorder(cfg.App.JournalPath)
		if err != nil {
			return nil, cleanup, err
		}
		closers = append(closers, func() { _ = rec.Close() })
		opts = append(opts, pipeline.WithJournal(rec))
	}

	p := pipeline.New(fetcher, gen, router, pipeline.Market{
		Symbol:      cfg.Market.Symbol,
		Timeframe:   cfg.Market.Timeframe,
		CandleLimit: cfg.Market.CandleLimit,
		BookDepth:   cfg.Market.BookDepth,
	}, execution.Policy{
		ForwardToBot: cfg.Routing.ForwardToBot,
		StageBundles: cfg.Routing.StageBundles,
	}, log, opts...)
	return p, cleanup, nil
}
