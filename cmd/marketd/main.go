package main

import (
	"flag"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"marketd/config"
	"marketd/core/events"
	"marketd/core/types"
	"marketd/crypto"
	"marketd/native/market"
	"marketd/native/token"
	"marketd/observability/logging"
	"marketd/rpc"
	"marketd/storage"
)

const envEnv = "MARKET_ENV"

// journalEmitter persists every ledger event and mirrors it to the log so
// operators can follow market activity without an indexer.
type journalEmitter struct {
	store  *market.Store
	logger *slog.Logger
}

func (e journalEmitter) Emit(evt events.Event) {
	e.store.Emit(evt)
	if carrier, ok := evt.(interface{ Event() *types.Event }); ok {
		if payload := carrier.Event(); payload != nil {
			attrs := make([]any, 0, len(payload.Attributes)*2)
			for k, v := range payload.Attributes {
				attrs = append(attrs, slog.String(k, v))
			}
			e.logger.Info(payload.Type, attrs...)
			return
		}
	}
	e.logger.Info(evt.EventType())
}

// logTreasury hands withdrawal instructions to the external payment rail.
// The daemon itself holds no funds; it records the payout direction and the
// rail settles it out of band.
type logTreasury struct {
	logger *slog.Logger
}

func (t logTreasury) Payout(to [20]byte, amount *big.Int) error {
	t.logger.Info("treasury payout",
		slog.String("to", crypto.NewAddress(crypto.MarketPrefix, to[:]).String()),
		slog.String("amount", amount.String()),
	)
	return nil
}

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv(envEnv))
	logger := logging.Setup("marketd", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	operator, err := crypto.DecodeAddress(cfg.OperatorAddress)
	if err != nil {
		panic(fmt.Sprintf("Invalid OperatorAddress: %v", err))
	}
	var operatorBytes [20]byte
	copy(operatorBytes[:], operator.Bytes())

	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "ledger"))
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()

	store := market.NewStore(db)
	registry := token.NewRegistry(db)
	registry.SetOperator(operatorBytes)

	engine := market.NewEngine()
	engine.SetState(store)
	engine.SetRegistry(registry)
	engine.SetOperator(operatorBytes)
	engine.SetTreasury(logTreasury{logger: logger})
	engine.SetEmitter(journalEmitter{store: store, logger: logger})

	authToken := strings.TrimSpace(os.Getenv(cfg.RPCTokenEnv))
	if authToken == "" {
		logger.Warn("RPC write authentication disabled", slog.String("env", cfg.RPCTokenEnv))
	} else {
		logger.Info("RPC write authentication enabled", logging.MaskField("token", authToken))
	}
	server := rpc.NewServer(engine, store, registry, authToken)

	logger.Info("marketplace ledger listening",
		slog.String("address", cfg.RPCAddress),
		slog.String("network", cfg.NetworkName),
	)
	if err := http.ListenAndServe(cfg.RPCAddress, server.Router()); err != nil {
		logger.Error("RPC server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
