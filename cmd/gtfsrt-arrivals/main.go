package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"slices"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	lib "github.com/theoremus-urban-solutions/gtfsrt-arrivals"
	"github.com/theoremus-urban-solutions/gtfsrt-arrivals/config"
	"github.com/theoremus-urban-solutions/gtfsrt-arrivals/gtfsrt"
	"github.com/theoremus-urban-solutions/gtfsrt-arrivals/metrics"
	"github.com/theoremus-urban-solutions/gtfsrt-arrivals/sink"
)

func main() {
	configPath := flag.String("config", "", "path to config.yml (default: ./config.yml or ./config/config.yml)")
	once := flag.Bool("once", false, "run a single cycle and exit")
	file := flag.String("file", "", "decode a captured feed file instead of fetching (implies -once)")
	verify := flag.Bool("verify", false, "with -file: cross-check the streaming decoder against a full unmarshal")
	logLevel := flag.String("log-level", "", "override logLevel from the config (debug|info|warn|error)")
	flag.Parse()

	cfg, err := config.LoadAppConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	logger, err := lib.InitLogging(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer func() { _ = logger.Sync() }()

	if *verify {
		if *file == "" {
			logger.Fatal("-verify needs -file")
		}
		if err := verifyFile(cfg, *file, logger); err != nil {
			logger.Fatal("verify failed", zap.Error(err))
		}
		return
	}

	if err := run(cfg, *file, *once || *file != "", logger); err != nil {
		logger.Error("exiting", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.AppConfig, file string, once bool, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sinks := sink.Multi{sink.NewConsole(os.Stdout, cfg.Display.Title)}
	if cfg.NATS.URL != "" {
		ns, err := sink.DialNATS(cfg.NATS.URL, cfg.NATS.Subject, logger,
			sink.WithFormat(cfg.NATS.Format, cfg.NATS.Codespace))
		if err != nil {
			return err
		}
		defer func() { _ = ns.Close() }()
		sinks = append(sinks, ns)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	health := lib.NewHealth()

	opts := []lib.Option{
		lib.WithLogger(logger),
		lib.WithMetrics(metrics.New(reg)),
		lib.WithHealth(health),
		lib.WithYield(runtime.Gosched),
	}
	if file != "" {
		opts = append(opts, lib.WithFetcher(newFileFetcher(file, cfg.Limits.PayloadCapBytes)))
	}
	p, err := lib.NewPipeline(cfg, sinks, opts...)
	if err != nil {
		return err
	}

	if once {
		return p.RunOnce(ctx)
	}

	if cfg.Server.Port > 0 {
		srv := lib.NewServer(cfg.Server.Port, health, reg)
		go func() {
			if err := lib.Serve(ctx, srv, logger); err != nil {
				logger.Error("server error", zap.Error(err))
			}
		}()
	}
	logger.Info("polling feed",
		zap.String("route", cfg.Filter.Route),
		zap.String("stop", cfg.Filter.Stop),
		zap.Duration("interval", cfg.PollInterval()))
	if err := p.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("shutdown signal received")
	return nil
}

func verifyFile(cfg *config.AppConfig, path string, logger *zap.Logger) error {
	raw, err := newFileFetcher(path, cfg.Limits.PayloadCapBytes).Fetch(context.Background())
	if err != nil {
		return err
	}
	defer raw.Release()

	f := gtfsrt.Filter{RouteID: cfg.Filter.Route, StopID: cfg.Filter.Stop}
	acc := gtfsrt.NewAccumulator(cfg.Limits.MaxArrivals)
	info, err := gtfsrt.DecodeFeed(raw.Body, f, acc)
	if err != nil {
		return err
	}
	want, err := gtfsrt.ReferenceDecode(raw.Body, f, cfg.Limits.MaxArrivals)
	if err != nil {
		return err
	}
	got := acc.Items()
	if !slices.Equal(got, want) {
		return fmt.Errorf("streaming decoder found %d arrivals, full unmarshal found %d: %v != %v", len(got), len(want), got, want)
	}
	logger.Info("decoders agree",
		zap.Int("bytes", raw.Len()),
		zap.Int("entities", info.Entities),
		zap.Int("matches", len(got)))
	return nil
}
