package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/splitstack/tally/internal/auth"
	"github.com/splitstack/tally/internal/config"
	"github.com/splitstack/tally/internal/httpapi"
	"github.com/splitstack/tally/internal/ledger"
	"github.com/splitstack/tally/internal/service"
	"github.com/splitstack/tally/internal/settlement"
	"github.com/splitstack/tally/internal/storage"
	"github.com/splitstack/tally/internal/storage/sqlite"
	"github.com/splitstack/tally/internal/transfer"
	"github.com/splitstack/tally/pkg/logging"
)

func main() {
	logging.Setup()
	logger := slog.Default()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		logger.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	logger.Info("Storage initialized", "database", cfg.DBPath)

	// Warm the in-memory balance book from the persisted slots.
	book := ledger.NewBook()
	slots, err := store.LoadBalances(context.Background())
	if err != nil {
		logger.Error("Failed to load balances", "error", err)
		os.Exit(1)
	}
	for groupID, balances := range slots {
		if err := book.Load(groupID, balances); err != nil {
			logger.Error("Failed to seed balance book", "group_id", groupID, "error", err)
			os.Exit(1)
		}
	}
	logger.Info("Balance book seeded", "groups", len(slots))

	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.TokenTTL)
	authenticator := auth.NewPasswordAuthenticator(store)

	bank := transfer.NewBank()
	machine := settlement.NewMachine(storage.SettlementStore{Store: store}, bank)

	groupService := service.NewGroupService(store, logger)
	ledgerService := service.NewLedgerService(store, book, groupService, logger)
	settlementService := service.NewSettlementService(machine, store, groupService, logger)
	authService := service.NewAuthService(authenticator, jwtManager, logger)

	// Periodically reclaim expired pending settlements.
	go func() {
		ticker := time.NewTicker(cfg.ReclaimInterval)
		defer ticker.Stop()
		for range ticker.C {
			if _, err := settlementService.ReclaimExpired(context.Background()); err != nil {
				logger.Error("Reclaim sweep failed", "error", err)
			}
		}
	}()

	handler := httpapi.NewHandler(authService, groupService, ledgerService, settlementService, bank)
	router := httpapi.NewRouter(handler, jwtManager)

	// Wrap with h2c so HTTP/2 works without TLS behind a terminating proxy.
	h2cHandler := h2c.NewHandler(router, &http2.Server{})

	logger.Info("Server starting", "address", cfg.Addr)
	if err := http.ListenAndServe(cfg.Addr, h2cHandler); err != nil {
		logger.Error("Server failed", "error", err)
		os.Exit(1)
	}
}
