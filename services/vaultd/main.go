package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/common"

	nodeconfig "riftvault/config"
	"riftvault/core"
	"riftvault/observability/logging"
	telemetry "riftvault/observability/otel"
	"riftvault/services/vaultd/adapters"
	"riftvault/services/vaultd/config"
	"riftvault/services/vaultd/oracle"
	"riftvault/services/vaultd/server"
	"riftvault/services/vaultd/storage"
	kv "riftvault/storage"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "services/vaultd/config.yaml", "path to vaultd configuration file")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("vaultd: load config: %v", err)
	}

	env := strings.TrimSpace(os.Getenv("RIFT_ENV"))
	level := slog.LevelInfo
	if cfg.Log.Debug {
		level = slog.LevelDebug
	}
	logger := logging.SetupWithOptions("vaultd", env, logging.Options{
		Level:      level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})

	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.ConfigFromEnv("vaultd", env))
	if err != nil {
		log.Fatalf("vaultd: init telemetry: %v", err)
	}
	defer func() {
		if shutdownTelemetry != nil {
			_ = shutdownTelemetry(context.Background())
		}
	}()

	node, err := nodeconfig.Load(cfg.NodeConfig)
	if err != nil {
		log.Fatalf("vaultd: load node config: %v", err)
	}
	buybackCfg, err := node.BuybackConfig()
	if err != nil {
		log.Fatalf("vaultd: buyback config: %v", err)
	}

	db, err := kv.NewLevelDB(cfg.StateDir)
	if err != nil {
		log.Fatalf("vaultd: open state: %v", err)
	}
	defer db.Close()

	exec := core.NewExecutor(db, buybackCfg)
	exec.SetLogger(logger)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if len(node.Authorities) > 0 {
		genesis, err := node.Genesis()
		if err != nil {
			log.Fatalf("vaultd: build genesis: %v", err)
		}
		if err := exec.ApplyGenesis(rootCtx, genesis); err != nil {
			if !errors.Is(err, core.ErrGenesisApplied) {
				log.Fatalf("vaultd: apply genesis: %v", err)
			}
			logger.Info("genesis already applied")
		}
	}

	dsn, err := storage.FileDSN(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("vaultd: resolve storage DSN: %v", err)
	}
	journal, err := storage.Open(dsn)
	if err != nil {
		log.Fatalf("vaultd: open journal: %v", err)
	}
	defer journal.Close()

	registry := adapters.NewRegistry()
	registry.HTTPClient = &http.Client{Timeout: cfg.Oracle.Timeout.Duration}
	sources := make([]oracle.Source, 0, len(cfg.Feeds))
	for _, feed := range cfg.Feeds {
		built, err := registry.Build(feed.Name, feed.Vendor, feed.Endpoint, feed.APIKey, feed.Vault)
		if err != nil {
			log.Fatalf("vaultd: build feed %s: %v", feed.Name, err)
		}
		sources = append(sources, built)
		logger.Info("feed configured",
			"source", feed.Name,
			"vendor", feed.Vendor,
			"vault", feed.Vault,
			logging.MaskField("api_key", feed.APIKey))
	}

	if len(sources) > 0 {
		identity := common.HexToAddress(strings.TrimSpace(cfg.Oracle.Identity))
		mgr, err := oracle.New(exec, identity, sources, cfg.Oracle.Interval.Duration,
			oracle.WithLogger(logger),
			oracle.WithJournal(journal),
			oracle.WithRegistry(registry.Parsers),
		)
		if err != nil {
			log.Fatalf("vaultd: oracle manager: %v", err)
		}
		go func() {
			if err := mgr.Run(rootCtx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("oracle manager exited", "error", err)
				stop()
			}
		}()
	}

	authenticator, err := server.NewAuthenticator(server.AuthConfig{
		Enabled:    !cfg.Auth.Disabled,
		HMACSecret: cfg.Auth.HMACSecret,
		Issuer:     cfg.Auth.Issuer,
		Audience:   cfg.Auth.Audience,
		ClockSkew:  cfg.Auth.ClockSkew.Duration,
	}, logger)
	if err != nil {
		log.Fatalf("vaultd: configure auth: %v", err)
	}

	srv, err := server.New(server.Config{
		ListenAddress: cfg.ListenAddress,
		ShutdownGrace: cfg.ShutdownGrace.Duration,
		RateLimit: server.RateLimit{
			RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
			Burst:             cfg.RateLimit.Burst,
		},
	}, exec, journal, authenticator, logger)
	if err != nil {
		log.Fatalf("vaultd: server: %v", err)
	}

	if err := srv.Run(rootCtx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("http server error", "error", err)
		os.Exit(1)
	}
}
