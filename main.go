package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"tradecore/internal/api"
	"tradecore/internal/asset"
	"tradecore/internal/auditlog"
	"tradecore/internal/auditws"
	"tradecore/internal/balance"
	"tradecore/internal/engine"
	"tradecore/internal/events"
	"tradecore/internal/instrument"
	"tradecore/internal/market"
	"tradecore/internal/monitor"
	"tradecore/internal/order"
	"tradecore/internal/position"
	"tradecore/internal/strategy"
	"tradecore/pkg/config"
	"tradecore/pkg/logx"
)

func main() {
	var (
		configPath = flag.String("config", "config.yaml", "path to the YAML config file")
		issueToken = flag.String("issue-token", "", "print an operator token for the given id and exit")
		mockFeed   = flag.Bool("mock-feed", false, "drive the engine with a synthetic market feed")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	if *issueToken != "" {
		token, err := api.IssueToken(*issueToken, cfg.Server.JWTSecret, 72*time.Hour)
		if err != nil {
			fmt.Fprintf(os.Stderr, "issue token: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(token)
		return
	}

	log, err := buildLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("starting trading core",
		zap.String("config", *configPath),
		zap.String("portfolio", cfg.Engine.Portfolio),
		zap.Int("instruments", len(cfg.Instruments)),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	universe := buildUniverse(cfg)
	seeds := buildSeeds(cfg)

	registry := prometheus.NewRegistry()
	metrics := monitor.New(registry)

	// Engine plumbing. The command channel is one feed source; market and
	// account connectors are further sources merged into the same feed.
	commands := make(chan events.Event, 16)
	sources := []<-chan events.Event{commands}

	if *mockFeed {
		feed := market.MockFeed{Instruments: universe}
		marketEvents := make(chan events.Event, 64)
		go func() {
			defer close(marketEvents)
			for ev := range feed.Run(ctx) {
				marketEvents <- events.FromMarket(ev)
			}
		}()
		sources = append(sources, marketEvents)
		log.Info("mock market feed enabled")
	}

	feed := events.Merge(ctx, cfg.Engine.FeedBuffer, sources...)

	executionTx := engine.NewTx[order.ExecutionRequest](cfg.Engine.ExecutionBuffer)
	auditTx := engine.NewTx[engine.AuditEvent](cfg.Audit.Buffer)
	auditor := engine.NewAuditor(log.Named("audit"), auditTx, metrics)

	state := engine.NewState(engine.StateConfig{
		Log:       log.Named("state"),
		Universe:  universe,
		Portfolio: position.PortfolioID(cfg.Engine.Portfolio),
		Balances:  seeds,
	})

	eng := engine.New(engine.Config{
		Log:       log.Named("engine"),
		Feed:      feed,
		Execution: executionTx,
		Auditor:   auditor,
		State:     state,
		Strategy:  buildStrategy(cfg, universe),
		Metrics:   metrics,
	})

	// Execution sink. Real execution links attach here; without one the
	// requests are logged and acknowledged nowhere, which suits dry runs.
	go func() {
		for req := range executionTx.Receiver() {
			log.Info("execution request",
				zap.Int("cancels", len(req.Cancels)),
				zap.Int("opens", len(req.Opens)),
			)
		}
	}()

	// Audit fan-out: persist every event and broadcast it live.
	journal, err := auditlog.Open(
		log.Named("journal"),
		cfg.Audit.JournalPath,
		cfg.Audit.BatchSize,
		time.Duration(cfg.Audit.FlushInterval)*time.Millisecond,
	)
	if err != nil {
		log.Fatal("open audit journal", zap.Error(err))
	}
	hub := auditws.NewHub(log.Named("hub"))
	auditDone := make(chan struct{})
	go func() {
		defer close(auditDone)
		for ev := range auditTx.Receiver() {
			record, err := auditlog.Encode(ev)
			if err != nil {
				log.Error("encode audit event", zap.Uint64("id", ev.ID), zap.Error(err))
				continue
			}
			journal.AppendRecord(record)
			hub.Broadcast(record)
		}
	}()

	server := api.NewServer(api.Config{
		Log:       log.Named("api"),
		Journal:   journal,
		Hub:       hub,
		Commands:  commands,
		Registry:  registry,
		JWTSecret: cfg.Server.JWTSecret,
		RateLimit: cfg.Server.RateLimit,
		RateBurst: cfg.Server.RateBurst,
	})
	go func() {
		log.Info("api listening", zap.String("addr", cfg.Server.Addr))
		if err := server.Start(cfg.Server.Addr); err != nil {
			log.Error("api server stopped", zap.Error(err))
		}
	}()

	engineDone := make(chan struct{})
	go func() {
		defer close(engineDone)
		eng.Run()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		log.Info("shutdown signal received, terminating engine")
		select {
		case commands <- events.FromCommand(events.CommandTerminate):
		case <-time.After(5 * time.Second):
			log.Warn("engine feed saturated during shutdown")
		}
		select {
		case <-engineDone:
		case <-time.After(10 * time.Second):
			log.Fatal("engine did not terminate in time")
		}
	case <-engineDone:
		log.Info("engine terminated")
	}

	// Drain and close the outer surfaces in dependency order.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("api shutdown", zap.Error(err))
	}

	cancel()
	auditTx.Close()
	<-auditDone
	hub.Close()
	if err := journal.Close(); err != nil {
		log.Warn("close audit journal", zap.Error(err))
	}
	executionTx.Close()

	log.Info("shutdown complete")
}

func buildLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.Log.File != "" {
		return logx.NewWithFile(cfg.Log.Level, cfg.Log.File)
	}
	return logx.New(cfg.Log.Level)
}

// buildUniverse converts configured instruments into the engine's universe.
func buildUniverse(cfg *config.Config) []instrument.Instrument {
	universe := make([]instrument.Instrument, 0, len(cfg.Instruments))
	for _, in := range cfg.Instruments {
		universe = append(universe, instrument.Instrument{
			ID:           instrument.ID(in.ID),
			Exchange:     instrument.Exchange(in.Exchange),
			NameExchange: in.NameExchange,
			Kind:         instrument.Kind(in.Kind),
			Spec: instrument.Spec{
				Price: instrument.SpecPrice{
					Min:      in.PriceMin,
					TickSize: in.TickSize,
				},
				Quantity: instrument.SpecQuantity{
					Unit:      instrument.QuantityUnit(in.QuantityUnit),
					AssetID:   asset.ID(in.QuantityAsset),
					Min:       in.QuantityMin,
					Increment: in.QuantityInc,
				},
				Notional: instrument.SpecNotional{
					Min: in.NotionalMin,
				},
			},
		})
	}
	return universe
}

// buildSeeds converts configured exchange assets into starting balances.
func buildSeeds(cfg *config.Config) []balance.Seed {
	var seeds []balance.Seed
	for _, ex := range cfg.Exchanges {
		for _, a := range ex.Assets {
			seeds = append(seeds, balance.Seed{
				Exchange: instrument.Exchange(ex.Name),
				Asset:    asset.ID(a.ID),
				Balance: asset.Balance{
					Total: a.Total,
					Free:  a.Free,
				},
			})
		}
	}
	return seeds
}

func buildStrategy(cfg *config.Config, universe []instrument.Instrument) strategy.Strategy {
	switch cfg.Strategy.Kind {
	case "cross":
		ids := make([]instrument.ID, 0, len(universe))
		for _, in := range universe {
			ids = append(ids, in.ID)
		}
		return strategy.NewCross(ids, cfg.Strategy.Short, cfg.Strategy.Long, cfg.Strategy.Quantity)
	default:
		return strategy.Noop{}
	}
}
