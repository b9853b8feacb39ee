package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/lattice-trading/hft-gateway/internal/dispatch"
	"github.com/lattice-trading/hft-gateway/internal/gateway"
	"github.com/lattice-trading/hft-gateway/internal/interceptor"
	"github.com/lattice-trading/hft-gateway/internal/observability/log"
	"github.com/lattice-trading/hft-gateway/internal/perf"
	"github.com/lattice-trading/hft-gateway/internal/services"
	"gopkg.in/yaml.v3"
)

// defaultMaxPerSecond is the throttler's default per-window ceiling,
// matching the gateway's own config-file key and default.
const defaultMaxPerSecond = 10000

// fileConfig mirrors the subset of gateway.Config that can be set from a
// YAML config file. Pointer fields distinguish "not present in the file"
// from the YAML zero value, so loadConfig can tell a file-supplied 0
// apart from an absent key.
type fileConfig struct {
	Port            *int  `yaml:"port"`
	MaxConnections  *int  `yaml:"max_connections"`
	BufferSize      *int  `yaml:"buffer_size"`
	ThreadCount     *int  `yaml:"thread_count"`
	AffinityEnabled *bool `yaml:"affinity_enabled"`
	MaxPerSecond    *int  `yaml:"max_per_second"`
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("gatewayd", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "gatewayd: low-latency TCP front end for the trading gateway message plane")
		fs.PrintDefaults()
	}

	port := fs.Int("p", 0, "listen port (default 8080)")
	threads := fs.Int("t", 0, "worker pool size (default 4)")
	bufSize := fs.Int("b", 0, "per-connection socket buffer size in bytes (default 8192)")
	affinity := fs.Bool("a", true, "pin workers to CPU cores")
	throttle := fs.Int("r", 0, "max accepted messages per second, per throttler window (default 10000)")
	configPath := fs.String("c", "", "optional YAML config file; explicit flags still override it")

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 1
	}

	logger := log.New(log.LevelInfo)
	defer func() { _ = logger.Sync() }()

	cfg := gateway.DefaultConfig()
	throttleMax := defaultMaxPerSecond

	if *configPath != "" {
		fc, err := loadFileConfig(*configPath)
		if err != nil {
			logger.Error("failed to load config file", log.String("path", *configPath), log.Error(err))
			return 1
		}
		applyFileConfig(&cfg, &throttleMax, fc)
	}

	applyFlags(fs, &cfg, &throttleMax, *port, *threads, *bufSize, *affinity, *throttle)

	if err := gatewayMain(logger, cfg, throttleMax); err != nil {
		logger.Error("gatewayd exited with error", log.Error(err))
		return 1
	}
	return 0
}

func loadFileConfig(path string) (*fileConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &fc, nil
}

func applyFileConfig(cfg *gateway.Config, throttleMax *int, fc *fileConfig) {
	if fc.Port != nil {
		cfg.Port = *fc.Port
	}
	if fc.MaxConnections != nil {
		cfg.MaxConnections = *fc.MaxConnections
	}
	if fc.BufferSize != nil {
		cfg.BufferSize = *fc.BufferSize
	}
	if fc.ThreadCount != nil {
		cfg.ThreadCount = *fc.ThreadCount
	}
	if fc.AffinityEnabled != nil {
		cfg.AffinityEnabled = *fc.AffinityEnabled
	}
	if fc.MaxPerSecond != nil {
		*throttleMax = *fc.MaxPerSecond
	}
}

// applyFlags overrides cfg with any flag the caller actually set on the
// command line, so those take precedence over both the defaults and the
// config file. fs.Visit only calls back for flags that were set, so an
// omitted -a doesn't stomp a file-supplied affinity_enabled: false.
func applyFlags(fs *flag.FlagSet, cfg *gateway.Config, throttleMax *int, port, threads, bufSize int, affinity bool, throttle int) {
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "p":
			cfg.Port = port
		case "t":
			cfg.ThreadCount = threads
		case "b":
			cfg.BufferSize = bufSize
		case "a":
			cfg.AffinityEnabled = affinity
		case "r":
			*throttleMax = throttle
		}
	})
}

// gatewayMain wires together the wire codec, interceptor chain,
// performance monitor, service registry, and socket server, then blocks
// until a termination signal arrives.
func gatewayMain(logger *log.Logger, cfg gateway.Config, throttleMax int) error {
	monitor := perf.NewMonitor()

	chain := interceptor.NewChain(
		interceptor.NewValidator(),
		interceptor.NewThrottler(throttleMax),
		interceptor.NewLogger(logger),
		interceptor.NewPerformance(monitor),
	)

	registry := dispatch.NewRegistry(dispatch.DefaultOptions(), logger)
	registry.Register(services.NewOrderMatching(logger))
	registry.Register(services.NewMarketData(logger))
	registry.Register(services.NewRisk(logger))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := registry.StartAll(ctx); err != nil {
		return fmt.Errorf("starting services: %w", err)
	}
	defer registry.StopAll()

	srv := gateway.NewServer(cfg, chain, monitor, registry, logger)
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	logger.Info("gatewayd ready",
		log.Int("port", cfg.Port),
		log.Int("thread_count", cfg.ThreadCount),
		log.Bool("affinity_enabled", cfg.AffinityEnabled),
	)

	<-stopCh
	cancel()
	srv.Stop()
	logger.Info("gatewayd stopped")
	return nil
}
