package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"crosslend/audit"
	"crosslend/bridge"
	"crosslend/config"
	"crosslend/crypto"
	"crosslend/native/custody"
	"crosslend/native/lending"
	"crosslend/native/oracle"
	"crosslend/observability/logging"
	"crosslend/observability/metrics"
	"crosslend/rpc"
	"crosslend/state"
	"crosslend/storage"
)

func main() {
	var cfgPath string
	var memDB bool
	flag.StringVar(&cfgPath, "config", "./config.toml", "path to ledger configuration")
	flag.BoolVar(&memDB, "mem", false, "DEV ONLY: run against an in-memory database")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("CROSSLEND_ENV"))

	cfg, err := config.Load(cfgPath)
	if err != nil {
		logging.Setup("crosslendd", env).Error("failed to load configuration", "path", cfgPath, "error", err)
		os.Exit(1)
	}
	logger := logging.SetupWithOptions("crosslendd", env, logging.Options{
		FilePath:   cfg.Log.FilePath,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})

	var db storage.Database
	if memDB {
		db = storage.NewMemDB()
		logger.Warn("running with in-memory storage; state will not survive restarts")
	} else {
		ldb, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "ledger"))
		if err != nil {
			logger.Error("failed to open database", "dir", cfg.DataDir, "error", err)
			os.Exit(1)
		}
		db = ldb
	}
	defer db.Close()

	manager := state.NewManager(db)
	prices := oracle.NewManualOracle(cfg.Oracle.MaxQuoteAgeMillis)
	messenger := bridge.NewMemoryMessenger()

	admin, err := resolveAdmin(cfg.Pool.Admin)
	if err != nil {
		logger.Error("failed to resolve admin address", "error", err)
		os.Exit(1)
	}
	logger.Info("ledger admin resolved", "address", admin.String())

	custodyEngine := custody.NewEngine(manager, admin, prices, messenger)
	lendingEngine := lending.NewEngine(manager, custodyEngine)

	recorder := audit.NewRecorder(audit.NewMemoryBlobStore(), nil)
	custodyEngine.SetEmitter(recorder)
	lendingEngine.SetEmitter(recorder)

	if err := seedRegistry(cfg, manager, custodyEngine, admin); err != nil {
		logger.Error("failed to seed custody registry", "error", err)
		os.Exit(1)
	}
	if err := initPool(cfg, lendingEngine, admin); err != nil {
		logger.Error("failed to initialise pool", "error", err)
		os.Exit(1)
	}

	server := rpc.NewServer(rpc.Config{
		Lending:  lendingEngine,
		Custody:  custodyEngine,
		Limit:    rpc.RateLimit{RequestsPerMinute: cfg.RateLimitPerMinute, Burst: cfg.RateLimitBurst},
		Registry: metrics.Ledger(),
	})

	httpServer := &http.Server{
		Addr:              cfg.RPCAddress,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("rpc server listening", "address", cfg.RPCAddress)
		errCh <- httpServer.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("rpc server failed", "error", err)
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}

// resolveAdmin decodes the configured admin address, generating a throwaway
// key when none is configured so local development still boots.
func resolveAdmin(configured string) (crypto.Address, error) {
	if trimmed := strings.TrimSpace(configured); trimmed != "" {
		return crypto.DecodeAddress(trimmed)
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return crypto.Address{}, err
	}
	return key.PubKey().Address(), nil
}

// seedRegistry registers configured chains and assets, skipping entries that
// already exist so restarts never reset live totals.
func seedRegistry(cfg *config.Config, manager *state.Manager, engine *custody.Engine, admin crypto.Address) error {
	for _, chainID := range cfg.SupportedChains {
		existing, err := manager.GetChain(chainID)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		if err := engine.AddChain(admin, chainID); err != nil {
			return err
		}
	}
	for _, asset := range cfg.Assets {
		existing, err := manager.GetAsset(asset.ChainID, asset.Name)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		if err := engine.AddAsset(admin, asset.ChainID, asset.Name, asset.Decimals, asset.CollateralizationFactorBps); err != nil {
			return err
		}
	}
	return nil
}

func initPool(cfg *config.Config, engine *lending.Engine, admin crypto.Address) error {
	params := lending.RateParams{
		BaseBps:               cfg.Pool.BaseBps,
		OptimalUtilizationBps: cfg.Pool.OptimalUtilizationBps,
		Slope1Bps:             cfg.Pool.Slope1Bps,
		Slope2Bps:             cfg.Pool.Slope2Bps,
	}
	err := engine.InitPool(admin, params, uint64(time.Now().Unix()))
	if errors.Is(err, lending.ErrPoolExists) {
		return nil
	}
	return err
}
