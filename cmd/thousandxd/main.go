package main

import (
	"flag"
	"log/slog"
	"os"
	"strings"

	"thousandx/config"
	"thousandx/core/events"
	"thousandx/native/market"
	"thousandx/observability/logging"
	"thousandx/observability/metrics"
	"thousandx/rpc"
	"thousandx/state"
	"thousandx/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	listenFlag := flag.String("listen", "", "Listen address (overrides config ListenAddress)")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("THOUSANDX_ENV"))
	logger := logging.Setup("thousandxd", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Error("Failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	if env != "" {
		cfg.Env = env
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		logger.Error("Failed to open database", slog.Any("error", err), slog.String("dataDir", cfg.DataDir))
		os.Exit(1)
	}
	defer db.Close()

	owner, err := cfg.OwnerAddress()
	if err != nil {
		logger.Error("Invalid owner address", slog.Any("error", err))
		os.Exit(1)
	}
	vault, err := cfg.VaultAddress()
	if err != nil {
		logger.Error("Invalid vault address", slog.Any("error", err))
		os.Exit(1)
	}
	schedule, err := cfg.FeeSchedule()
	if err != nil {
		logger.Error("Invalid fee schedule", slog.Any("error", err))
		os.Exit(1)
	}

	engine := market.NewEngine()
	engine.SetState(state.NewManager(db))
	engine.SetOwner(owner)
	engine.SetVault(vault)
	engine.SetEmitter(events.Multi(events.NewRecorder(), metrics.NewMarketEmitter()))
	if err := engine.EnsureSchedule(schedule); err != nil {
		logger.Error("Failed to bootstrap fee schedule", slog.Any("error", err))
		os.Exit(1)
	}

	listen := cfg.ListenAddress
	if strings.TrimSpace(*listenFlag) != "" {
		listen = strings.TrimSpace(*listenFlag)
	}

	server := rpc.NewServer(engine, logger, cfg.RPCToken)
	logger.Info("market daemon ready",
		slog.String("listen", listen),
		slog.String("dataDir", cfg.DataDir),
		slog.String("owner", market.FormatAddress(owner)),
	)
	if err := server.Start(listen); err != nil {
		logger.Error("RPC server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
