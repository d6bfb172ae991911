package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mqtt-zenoh-bridge/config"
	"mqtt-zenoh-bridge/internal/bridge"
	"mqtt-zenoh-bridge/internal/logger"
	"mqtt-zenoh-bridge/internal/mapping"
	"mqtt-zenoh-bridge/internal/metrics"
	"mqtt-zenoh-bridge/internal/stats"
	mqtttransport "mqtt-zenoh-bridge/internal/transport/mqtt"
	zenohtransport "mqtt-zenoh-bridge/internal/transport/zenoh"
)

func main() {
	// Command line flags for config and mapping rules
	configPath := flag.String("config", "config/config.json", "path to config file")
	rulesPath := flag.String("rules", "rules", "path to mapping rules file or directory")

	// Optional override flags
	queueSizeOverride := flag.Int("queue-size", 0, "override pipeline queue size (0 = use config)")
	metricsAddrOverride := flag.String("metrics-addr", "", "override metrics server address (empty = use config)")
	metricsPathOverride := flag.String("metrics-path", "", "override metrics endpoint path (empty = use config)")
	metricsIntervalOverride := flag.Duration("metrics-interval", 0, "override metrics collection interval (0 = use config)")

	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Apply any command line overrides
	cfg.ApplyOverrides(
		*queueSizeOverride,
		*metricsAddrOverride,
		*metricsPathOverride,
		*metricsIntervalOverride,
	)

	// Initialize logger
	logger, err := logger.NewLogger(&cfg.Logging)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	statsCollector := stats.NewCollector()

	// Setup metrics if enabled
	var metricsService *metrics.Metrics
	var metricsCollector *metrics.MetricsCollector
	var metricsServer *http.Server

	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		metricsService, err = metrics.NewMetrics(reg)
		if err != nil {
			logger.Fatal("failed to create metrics service", "error", err)
		}

		updateInterval, err := time.ParseDuration(cfg.Metrics.UpdateInterval)
		if err != nil {
			logger.Fatal("invalid metrics update interval", "error", err)
		}

		metricsCollector = metrics.NewMetricsCollector(metricsService, statsCollector, updateInterval)
		metricsCollector.Start()
		defer metricsCollector.Stop()

		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{
			Registry:          reg,
			EnableOpenMetrics: true,
		}))

		metricsServer = &http.Server{
			Addr:    cfg.Metrics.Address,
			Handler: mux,
		}

		go func() {
			logger.Info("starting metrics server",
				"address", cfg.Metrics.Address,
				"path", cfg.Metrics.Path)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server error", "error", err)
			}
		}()
	} else {
		// unregistered collectors keep the call sites uniform
		metricsService, err = metrics.NewMetrics(nil)
		if err != nil {
			logger.Fatal("failed to create metrics service", "error", err)
		}
	}

	// Setup signal handlers
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	// Load mapping rules; validation failures are fatal before any
	// connection is attempted
	rulesLoader := mapping.NewRulesLoader(logger)
	rules, err := rulesLoader.Load(*rulesPath)
	if err != nil {
		logger.Fatal("failed to load mapping rules", "error", err)
	}
	mapper, err := mapping.NewMapper(rules)
	if err != nil {
		logger.Fatal("invalid mapping rules", "error", err)
	}

	// Create the transport adapters
	mqttAdapter, err := mqtttransport.NewAdapter(cfg.MQTT, logger)
	if err != nil {
		logger.Fatal("failed to create mqtt adapter", "error", err)
	}
	zenohAdapter, err := zenohtransport.NewAdapter(cfg.Zenoh, logger)
	if err != nil {
		logger.Fatal("failed to create zenoh adapter", "error", err)
	}

	relay, err := bridge.NewBridge(cfg, mapper, mqttAdapter, zenohAdapter,
		logger, metricsService, statsCollector)
	if err != nil {
		logger.Fatal("failed to create bridge", "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bridgeDone := make(chan struct{})
	go func() {
		defer close(bridgeDone)
		relay.Run(ctx)
	}()

	logger.Info("mqtt-zenoh-bridge started",
		"broker", cfg.MQTT.Broker,
		"router", cfg.Zenoh.RouterURL,
		"queueSize", cfg.Bridge.QueueSize,
		"rulesCount", len(rules),
		"metricsEnabled", cfg.Metrics.Enabled)

	// Handle signals
	for {
		sig := <-sigChan
		switch sig {
		case syscall.SIGHUP:
			logger.Info("received SIGHUP, reopening logs")
			logger.Sync()
		case syscall.SIGINT, syscall.SIGTERM:
			logger.Info("shutting down...")

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()

			if cfg.Metrics.Enabled && metricsServer != nil {
				if err := metricsServer.Shutdown(shutdownCtx); err != nil {
					logger.Error("failed to shutdown metrics server", "error", err)
				}
			}

			cancel()
			select {
			case <-bridgeDone:
			case <-shutdownCtx.Done():
				logger.Error("bridge did not drain before the shutdown deadline")
			}

			if statsJSON, err := statsCollector.GetStatsJSON(); err == nil {
				logger.Info("final relay statistics", "stats", string(statsJSON))
			}
			return
		}
	}
}
