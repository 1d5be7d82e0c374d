package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"herd/internal/config"
	"herd/internal/engine"
	"herd/internal/exchange"
	"herd/internal/hub"
	"herd/internal/notify"
	"herd/internal/sim"
	"herd/internal/store"
	"herd/internal/trader"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration")
	sweepPath := flag.String("series", "", "run a series sweep from this YAML file and exit")
	ticksPath := flag.String("ticks", "", "historical ticker CSV for the series sweep")
	paperBTC := flag.Float64("paper-btc", 0, "starting base balance for the paper exchange")
	paperCurrency := flag.Float64("paper-currency", 1000, "starting quote balance for the paper exchange")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("configuration unusable", "error", err)
		os.Exit(1)
	}

	if *sweepPath != "" {
		if err := runSweep(cfg, *sweepPath, *ticksPath, *paperBTC, *paperCurrency, logger); err != nil {
			logger.Error("series sweep failed", "error", err)
			os.Exit(1)
		}
		return
	}

	if err := run(cfg, *paperBTC, *paperCurrency, logger); err != nil {
		logger.Error("bot stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("bot shutdown complete")
}

func run(cfg config.Config, paperBTC, paperCurrency float64, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signalChan
		logger.Info("shutdown signal received")
		cancel()
	}()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	ex, err := openExchange(cfg, paperBTC, paperCurrency)
	if err != nil {
		return err
	}

	notifier := openNotifier(cfg, logger)

	var decisions *engine.DecisionLogger
	if cfg.Logging.Decisions {
		path := cfg.Logging.DecisionsPath
		if path == "" {
			path = "decisions.ndjson"
		}
		decisions, err = engine.NewDecisionLogger(path, uuid.NewString())
		if err != nil {
			return fmt.Errorf("decision logger: %w", err)
		}
		defer func() {
			if err := decisions.Close(); err != nil {
				logger.Warn("decision logger close failed", "error", err)
			}
		}()
	}

	h := hub.New(logger)
	go h.Run(ctx)

	manager := config.NewManager(cfg)
	desk := trader.NewDesk(st, ex, notifier, logger, cfg.Simulation)
	eng := engine.New(cfg, manager, desk, ex, st, h, decisions, logger)

	if !cfg.Simulation {
		go eng.ReconcileLoop(ctx, 5*time.Minute)
	}

	server := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: newMux(eng, manager, h),
	}
	go func() {
		logger.Info("http surface up", "addr", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server stopped", "error", err)
			cancel()
		}
	}()
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown failed", "error", err)
		}
	}()

	logger.Info("starting bot",
		"backend", cfg.Exchange.Backend,
		"symbol", cfg.Exchange.Symbol,
		"simulation", cfg.Simulation)
	return eng.Run(ctx)
}

func runSweep(cfg config.Config, sweepPath, ticksPath string, paperBTC, paperCurrency float64, logger *slog.Logger) error {
	if ticksPath == "" {
		return fmt.Errorf("a series sweep needs -ticks")
	}
	sweep, err := sim.LoadSweep(sweepPath)
	if err != nil {
		return err
	}
	ticks, err := sim.LoadTicks(ticksPath)
	if err != nil {
		return err
	}

	runner := &sim.Runner{
		Base:     cfg,
		Ticks:    ticks,
		Traders:  3,
		BTC:      paperBTC,
		Currency: paperCurrency,
		Log:      logger,
	}
	results, err := runner.Run(context.Background(), sweep)
	if err != nil {
		return err
	}
	path, err := sim.WriteResults(cfg.DataSetDir, results)
	if err != nil {
		return err
	}
	logger.Info("series sweep complete", "points", len(results), "results", path)
	return nil
}

func openStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	if cfg.Simulation {
		return store.NewMemory(), nil
	}
	st, err := store.NewRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, fmt.Errorf("redis store: %w", err)
	}
	return st, nil
}

func openExchange(cfg config.Config, paperBTC, paperCurrency float64) (exchange.Client, error) {
	if cfg.Simulation {
		return exchange.NewPaper(paperBTC, paperCurrency, cfg.Exchange.Fee), nil
	}
	switch cfg.Exchange.Backend {
	case "binance":
		return exchange.NewBinance(cfg.Exchange)
	case "alpaca":
		return exchange.NewAlpaca(cfg.Exchange), nil
	case "paper":
		return exchange.NewPaper(paperBTC, paperCurrency, cfg.Exchange.Fee), nil
	default:
		return nil, fmt.Errorf("unknown exchange backend %q", cfg.Exchange.Backend)
	}
}

func openNotifier(cfg config.Config, logger *slog.Logger) notify.Notifier {
	if cfg.Simulation || cfg.Email.Host == "" {
		return notify.Nop{}
	}
	mailer, err := notify.NewMailer(cfg.Email, cfg.Owner)
	if err != nil {
		logger.Warn("mail notifications disabled", "error", err)
		return notify.Nop{}
	}
	return mailer
}
