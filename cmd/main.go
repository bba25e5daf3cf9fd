package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"talk-lab/api"
	"talk-lab/api/handlers"
	"talk-lab/internal"
	"talk-lab/locale"
	"talk-lab/moderation"
	"talk-lab/notify"
	"talk-lab/observability"
	"talk-lab/repositories"
	"talk-lab/search"
	"talk-lab/services"
	"talk-lab/workers"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and centralizes error reporting.
// This pattern is preferred over calling os.Exit or panic directly because:
// 1. It ensures all 'defer' statements (like database cleanup) are executed before the program exits.
// 2. It improves testability by decoupling the initialization logic from the main entry point.
// 3. It provides a structured way to handle graceful shutdowns for HTTP and background workers.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.INFO))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Public room directory (Bluge)
	writer, err := bluge.OpenWriter(bluge.DefaultConfig(config.BlugeFilepath))
	if err != nil {
		return fmt.Errorf("directory index opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing directory index...")
		_ = writer.Close()
	}()

	// 4. Repositories & collaborators
	roomRepository := repositories.NewRoomRepository(db, log)
	accountRepository := repositories.NewAccountRepository(db)
	activityRepository := repositories.NewActivityRepository(db, log)
	directory := search.NewDirectory(writer, log)
	notifier := notify.NewActivityNotifier(activityRepository)

	replacement, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return err
	}
	censor, err := moderation.NewCensor(internal.WordList(config.CensoredWords), replacement)
	if err != nil {
		return fmt.Errorf("censor setup failed: %w", err)
	}

	// 5. Services
	roomService := services.NewRoomService(
		log, roomRepository, accountRepository, notifier,
		directory, censor, locale.NewEnglish(),
	)
	authService := services.NewAuthService(accountRepository, config.AuthTokenDuration)

	// 6. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 7. Background workers
	monitoring := observability.NewMonitoringManager(log)
	sup := workers.NewSupervisor(log)
	sup.Add(
		workers.NewBadgerGCWorker(log, db, config.GCInterval),
		workers.NewRoomStatsWorker(log, roomRepository, monitoring, config.MetricInterval),
	)
	supDone := make(chan struct{})
	go func() {
		sup.Run(ctx)
		close(supDone)
	}()

	// 8. Debug endpoint
	internal.StartDebugServer(db, config.DebugPort, "/inspect", nil, func() map[string]any {
		stats := monitoring.GetLatest()
		return map[string]any{
			"Rooms":      stats.Rooms,
			"Requests":   stats.RequestsServed,
			"Heartbeats": stats.HeartbeatsReceived,
			"MemMb":      stats.AllocMemMb,
		}
	})

	// 9. HTTP server
	var origins []string
	if config.AllowedOrigins != nil {
		origins = internal.WordList(*config.AllowedOrigins)
	}
	handler := handlers.NewHandler(log, roomService, authService, activityRepository, monitoring)
	router := api.NewRouter(log, handler, monitoring, origins)

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	server := &http.Server{
		Addr:              address,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "address", address, "at", time.Now().UTC())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// 10. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 11. Final Cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
	sup.Stop()
	<-supDone
	log.Info("Program stopped cleanly")

	return nil
}
