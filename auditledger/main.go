package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/civium-labs/civium-go/internal/auditexport"
	"github.com/civium-labs/civium-go/internal/platform/auth"
	"github.com/civium-labs/civium-go/internal/platform/env"
	"github.com/civium-labs/civium-go/internal/platform/httpserver"
	"github.com/civium-labs/civium-go/internal/platform/objectstore"
	"github.com/civium-labs/civium-go/internal/platform/postgres"
	repopg "github.com/civium-labs/civium-go/internal/repo/postgres"
	"github.com/civium-labs/civium-go/internal/service/ledger"
	"github.com/civium-labs/civium-go/internal/signer"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	ctx := context.Background()
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := env.String("AUDIT_HTTP_ADDR", ":8086")
	shutdownTimeout, err := env.Duration("AUDIT_SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		logger.Error("invalid env", "error", err)
		os.Exit(2)
	}

	dbCfg, err := postgres.ConfigFromEnv()
	if err != nil {
		logger.Error("invalid database config", "error", err)
		os.Exit(2)
	}
	db, err := postgres.Open(ctx, dbCfg)
	if err != nil {
		logger.Error("database unavailable", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	keyring, err := signer.KeyringFromEnv()
	if err != nil {
		logger.Error("invalid signing keyring config", "error", err)
		os.Exit(2)
	}
	if keyring.Empty() {
		// The service still starts; verification answers "not configured"
		// until a keyring is provided.
		logger.Warn("no signing keys configured, verification will fail closed")
	}

	internalAuth := auth.NewInternalTokenAuthenticator(env.String("AUDIT_INTERNAL_TOKEN", ""))
	if !internalAuth.Configured() {
		logger.Warn("internal token not configured, ingestion will reject all requests")
	}

	readerCfg, err := auth.ConfigFromEnv()
	if err != nil {
		logger.Error("invalid auth config", "error", err)
		os.Exit(2)
	}
	readerAuth, err := auth.NewAuthenticator(ctx, readerCfg)
	if err != nil {
		logger.Error("auth provider unavailable", "error", err)
		os.Exit(1)
	}

	exportCfg, err := auditexport.ConfigFromEnv()
	if err != nil {
		logger.Error("invalid export config", "error", err)
		os.Exit(2)
	}
	var archiver *auditexport.ObjectArchiver
	if exportCfg.Validate() == nil && exportCfg.NormalizedDestination() == auditexport.DestinationObjectStore {
		storeCfg, err := objectstore.ConfigFromEnv()
		if err != nil {
			logger.Error("invalid object store config", "error", err)
			os.Exit(2)
		}
		client, err := objectstore.NewMinIOClient(storeCfg)
		if err != nil {
			logger.Error("object store unavailable", "error", err)
			os.Exit(1)
		}
		if err := objectstore.EnsureBucket(ctx, client, storeCfg); err != nil {
			logger.Error("object store bucket unavailable", "error", err)
			os.Exit(1)
		}
		archiver, err = auditexport.NewObjectArchiver(client, storeCfg.BucketExports)
		if err != nil {
			logger.Error("invalid export archiver config", "error", err)
			os.Exit(2)
		}
	}

	svc := ledger.New(repopg.NewEventStore(db), keyring)
	api := newAuditLedgerAPI(logger, svc, exportCfg, archiver)

	internalMux := http.NewServeMux()
	api.registerInternal(internalMux)

	readerMux := http.NewServeMux()
	api.registerReader(readerMux)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", httpserver.Healthz("auditledger"))
	mux.HandleFunc(
		"/readyz",
		httpserver.ReadyzWithChecks(
			"auditledger",
			httpserver.ReadinessCheck{
				Name: "postgres",
				Check: func(ctx context.Context) error {
					checkCtx, cancel := context.WithTimeout(ctx, 750*time.Millisecond)
					defer cancel()
					return db.PingContext(checkCtx)
				},
			},
		),
	)
	mux.Handle("/internal/", auth.Middleware{
		Logger:        logger,
		Authenticator: internalAuth,
	}.Wrap(internalMux))
	mux.Handle("/audit/", auth.Middleware{
		Logger:        logger,
		Authenticator: readerAuth,
	}.Wrap(readerMux))

	cfg := httpserver.Config{
		Service:         "auditledger",
		Addr:            addr,
		ShutdownTimeout: shutdownTimeout,
	}

	if err := httpserver.Run(ctx, logger, cfg, httpserver.Wrap(logger, "auditledger", mux)); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}
