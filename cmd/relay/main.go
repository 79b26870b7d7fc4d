package main

import (
	"chat-relay/auth"
	"chat-relay/contract"
	"chat-relay/gateway"
	"chat-relay/internal"
	"chat-relay/repositories"
	"chat-relay/runtime"
	"chat-relay/runtime/workers"
	"chat-relay/services"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"github.com/spf13/pflag"
)

// Exit codes reported to the service manager.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Relay terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run wires every component and blocks until a signal arrives.
// Deferred cleanups (stores, caches) run before the exit code is returned.
func run(args []string) (int, error) {
	// 1. Flags, configuration & logger
	flags := pflag.NewFlagSet("relay", pflag.ContinueOnError)
	envFile := flags.String("env-file", ".env", "dotenv file loaded before reading the environment")
	if err := flags.Parse(args); err != nil {
		return exitConfig, err
	}
	if err := godotenv.Load(*envFile); err != nil && flags.Changed("env-file") {
		return exitConfig, fmt.Errorf("loading %s: %w", *envFile, err)
	}

	config, err := internal.LoadConfig()
	if err != nil {
		return exitConfig, err
	}
	logger := logs.GetLoggerFromString(config.LogLevel)

	// 2. Context & signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Storage
	var badgerDB *badger.DB
	if config.StoreDriver == internal.StoreBadger || config.AuthProvider == internal.ProviderLocal {
		badgerDB, err = badger.Open(buildBadgerOpts(ctx, config, logger))
		if err != nil {
			return exitRuntime, fmt.Errorf("database opening failed: %w", err)
		}
		defer func() {
			logger.Info("Closing BadgerDB...")
			_ = badgerDB.Close()
		}()
	}

	messageRepository, closeStore, err := openMessageRepository(ctx, config, logger, badgerDB)
	if err != nil {
		return exitRuntime, err
	}
	defer closeStore()

	// 4. Credentials
	var localProvider *auth.LocalProvider
	var provider contract.AuthProvider
	switch config.AuthProvider {
	case internal.ProviderLocal:
		localProvider = auth.NewLocalProvider(auth.NewSigner(config.AuthTokenSecret, config.AuthTokenDuration))
		provider = localProvider
	case internal.ProviderRemote:
		provider = auth.NewRemoteProvider(config.AuthProviderURL, config.AuthProviderKey, config.AuthTimeout, config.CredentialCacheTTL)
	}

	credentialValidator, err := auth.NewCredentialValidator(logger, provider, config.CredentialCacheSize, config.CredentialCacheTTL)
	if err != nil {
		return exitRuntime, err
	}
	defer credentialValidator.Close()

	var authService services.IAuthService
	if localProvider != nil {
		authService = services.NewAuthService(logger, repositories.NewUserRepository(badgerDB), localProvider, credentialValidator)
	}

	// 5. Relay & gateway
	registry := runtime.NewRegistry(logger)
	relay := runtime.NewRelay(logger, credentialValidator, messageRepository, registry,
		config.ConnectionBufferSize, config.RevalidateInterval)

	handler := gateway.New(logger, gateway.Config{
		AllowedOrigins: config.Origins(),
		CookieSecure:   config.CookieSecure,
		MaxBodyBytes:   config.MaxBodyBytes,
		RetryAfter:     config.AuthRetryAfter,
		WriteTimeout:   config.WriteTimeout,
	}, relay, credentialValidator, authService)

	// 6. Supervised servers
	sup := workers.NewSupervisor(logger, config.RestartInterval)
	sup.Add(
		workers.NewHTTPServerWorker(logger, config.Address(config.Port), handler.HTTPHandler(), config.ShutdownTimeout),
		workers.NewHealthServerWorker(logger, config.Address(config.HealthPort), storeCheck(messageRepository), config.HealthCheckInterval),
		workers.NewHeartbeatWorker(logger, config.HeartbeatInterval, registry.Count),
	)

	if badgerDB != nil && logger.Enabled(ctx, slog.LevelDebug) {
		stats := func() map[string]any {
			out := map[string]any{"subscriptions": registry.Count(), "store": config.StoreDriver}
			if process, err := workers.SelfStats(); err == nil {
				out["process"] = process
			}
			return out
		}
		inspector := internal.InspectHandler(badgerDB, repositories.InspectMapper, stats, "msg:")
		logger.Info("Debug Badger inspector available", "address", config.Address(config.DebugPort))
		sup.Add(workers.NewHTTPServerWorker(logger, config.Address(config.DebugPort), inspector, config.ShutdownTimeout))
	}

	logger.Info("Relay starting",
		"store", config.StoreDriver, "auth_provider", config.AuthProvider, "port", config.Port)

	// 7. Block until a signal cancels the context and every worker has returned
	sup.Run(ctx)

	logger.Info("Program stopped cleanly")
	return exitOK, nil
}

// storeCheck fails while the message store cannot answer a count.
func storeCheck(repository contract.IMessageRepository) workers.ReadinessCheck {
	return func(ctx context.Context) error {
		_, err := repository.Count(ctx)
		return err
	}
}

func buildBadgerOpts(ctx context.Context, config internal.Config, logger *slog.Logger) badger.Options {
	options := badger.DefaultOptions(config.BadgerFilepath)
	if logger.Enabled(ctx, slog.LevelDebug) {
		return options.WithLoggingLevel(badger.DEBUG)
	}
	return options.WithLoggingLevel(badger.WARNING)
}

func openMessageRepository(ctx context.Context, config internal.Config, logger *slog.Logger,
	db *badger.DB) (contract.IMessageRepository, func(), error) {
	switch config.StoreDriver {
	case internal.StoreSQLite, internal.StoreMySQL:
		dsn := config.MySQLDSN
		dialect := repositories.MySQL
		if config.StoreDriver == internal.StoreSQLite {
			dsn, dialect = config.SQLiteFilepath, repositories.SQLite
		}
		store, err := repositories.OpenSQLMessageRepository(ctx, dialect, dsn, logger, config.LimitMessages, config.MaxTextLength)
		if err != nil {
			return nil, nil, fmt.Errorf("message store: %w", err)
		}
		return store, func() {
			logger.Info("Closing message store...")
			_ = store.Close()
		}, nil
	default:
		store, err := repositories.NewMessageRepository(db, logger, config.LimitMessages, config.MaxTextLength)
		if err != nil {
			return nil, nil, fmt.Errorf("message store: %w", err)
		}
		return store, func() {}, nil
	}
}
