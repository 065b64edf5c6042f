package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apperrors "github.com/tradepoint/deposit-gateway/pkg/app/errors"
	"github.com/tradepoint/deposit-gateway/pkg/auth"
	"github.com/tradepoint/deposit-gateway/pkg/chain"
	"github.com/tradepoint/deposit-gateway/pkg/config"
	"github.com/tradepoint/deposit-gateway/pkg/consumer"
	"github.com/tradepoint/deposit-gateway/pkg/currency"
	"github.com/tradepoint/deposit-gateway/pkg/deposit"
	"github.com/tradepoint/deposit-gateway/pkg/depositstore"
	"github.com/tradepoint/deposit-gateway/pkg/gas"
	"github.com/tradepoint/deposit-gateway/pkg/ledger"
	"github.com/tradepoint/deposit-gateway/pkg/pgutil"
)

var (
	configPath = flag.String("config", "config.yaml", "Path to configuration file")
)

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting Deposit Gateway")

	// Initialize database
	db, err := pgutil.ConnectDB(&cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Build the chain registry from configuration
	chains, err := chain.NewRegistry(cfg.Chains)
	if err != nil {
		logger.Fatal("Failed to build chain registry", zap.Error(err))
	}

	// Payload verification for incoming notifications
	verifier, err := auth.NewPayloadVerifier(&cfg.Payload)
	if err != nil {
		logger.Fatal("Failed to initialize payload verifier", zap.Error(err))
	}

	deposits := depositstore.NewStore(db, cfg.Database.LockTimeout)
	currencies := currency.NewStore(db)
	ledgerClient := ledger.NewClient(&cfg.Ledger, logger)
	reporter := deposit.NewLogReporter(logger)

	processor := deposit.NewProcessor(verifier, chains, deposits, currencies, ledgerClient, reporter, logger)

	// Gas estimation is served only when an Ethereum node is configured
	var estimator *gas.Estimator
	if cfg.Ethereum.RPCURL != "" {
		ethClient, err := gas.NewEthereumClient(&cfg.Ethereum)
		if err != nil {
			logger.Fatal("Failed to connect to Ethereum node", zap.Error(err))
		}
		defer ethClient.Close()
		estimator = gas.NewEstimator(ethClient, ethClient, logger)
		logger.Info("Gas estimation enabled", zap.String("rpc_url", cfg.Ethereum.RPCURL))
	}

	// Connect to the broker and start the worker pool
	nc, err := consumer.Connect(&cfg.NATS, logger)
	if err != nil {
		logger.Fatal("Failed to connect to NATS", zap.Error(err))
	}
	defer nc.Close()

	ctx := context.Background()
	cons, err := consumer.New(nc, &cfg.NATS, processor, logger)
	if err != nil {
		logger.Fatal("Failed to create consumer", zap.Error(err))
	}
	if err := cons.Start(ctx); err != nil {
		logger.Fatal("Failed to start consumer", zap.Error(err))
	}

	// Setup HTTP server for API and metrics
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check endpoint (liveness)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Readiness endpoint - the gateway is ready once both the database and
	// the broker connection are up
	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil || !nc.IsConnected() {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("NOT_READY"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("READY"))
	})

	// Metrics endpoint
	if cfg.Monitoring.Enabled {
		r.Handle("/metrics", promhttp.Handler())
		logger.Info("Metrics enabled")
	}

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/deposits", handleListDeposits(deposits, logger))
		r.Get("/deposits/{chain}/{currency}/{txid}/{txout}", handleGetDeposit(deposits, logger))
		if estimator != nil {
			r.Post("/gas/estimate", gas.EstimateHandler(estimator, &cfg.Ethereum, logger))
		}
	})

	// Start HTTP server
	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("address", serverAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutdown signal received, gracefully shutting down...")

	// Stop the consumer first so in-flight notifications finish before the
	// database connection goes away
	cons.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown.Timeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", zap.Error(err))
	}

	logger.Info("Deposit Gateway stopped")
}

func handleListDeposits(store *depositstore.Store, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 100
		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed <= 0 || parsed > 1000 {
				apperrors.HTTPError(w, apperrors.BadDataError(err, "invalid limit"))
				return
			}
			limit = parsed
		}

		deposits, err := store.List(r.Context(), limit)
		if err != nil {
			logger.Error("Failed to list deposits", zap.Error(err))
			apperrors.HTTPError(w, apperrors.GeneralError(err))
			return
		}

		writeJSON(w, deposits)
	}
}

func handleGetDeposit(store *depositstore.Store, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		txout, err := strconv.Atoi(chi.URLParam(r, "txout"))
		if err != nil || txout < 0 {
			apperrors.HTTPError(w, apperrors.BadDataError(err, "invalid txout"))
			return
		}

		key := deposit.Key{
			BlockchainKey: chi.URLParam(r, "chain"),
			CurrencyID:    chi.URLParam(r, "currency"),
			TxID:          chi.URLParam(r, "txid"),
			TxOut:         txout,
		}

		d, err := store.Get(r.Context(), key)
		if err != nil {
			if errors.Is(err, depositstore.ErrDepositNotFound) {
				apperrors.HTTPError(w, apperrors.ResourceNotFoundError(err, "deposit not found"))
				return
			}
			logger.Error("Failed to get deposit", zap.Error(err))
			apperrors.HTTPError(w, apperrors.GeneralError(err))
			return
		}

		writeJSON(w, d)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}
