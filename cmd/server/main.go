package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/yourusername/qpaper-go/api"
	"github.com/yourusername/qpaper-go/api/handlers"
	"github.com/yourusername/qpaper-go/internal/app"
	"github.com/yourusername/qpaper-go/internal/domain"
	"github.com/yourusername/qpaper-go/internal/infrastructure"
	"github.com/yourusername/qpaper-go/pkg/logger"
)

var (
	serverMode = flag.Bool("server-mode", false, "Internal flag: run in server mode (called by daemon)")
	foreground = flag.Bool("foreground", false, "Run in the foreground instead of detaching")
	configPath = flag.String("config", "", "Path to config file")
)

func main() {
	flag.Parse()

	if !*serverMode && !*foreground {
		startAsDaemon()
		return
	}

	runServer()
}

// startAsDaemon re-executes the binary detached from the terminal
func startAsDaemon() {
	execPath, err := os.Executable()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to get executable path: %v\n", err)
		os.Exit(1)
	}

	cwd, err := os.Getwd()
	if err != nil {
		cwd = "/"
	}

	args := []string{"-server-mode"}
	if *configPath != "" {
		args = append(args, "-config", *configPath)
	}

	cmd := exec.Command(execPath, args...)
	cmd.Dir = cwd
	cmd.Env = os.Environ()
	detach(cmd)

	devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open %s: %v\n", os.DevNull, err)
		os.Exit(1)
	}
	cmd.Stdin = devNull
	cmd.Stdout = devNull
	cmd.Stderr = devNull

	if err := cmd.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start daemon: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Server started as daemon (PID: %d)\n", cmd.Process.Pid)
	os.Exit(0)
}

func runServer() {
	config, err := app.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	console, err := logger.New(logger.Config{
		Level:      config.Logging.Level,
		Format:     config.Logging.Format,
		OutputPath: config.Logging.OutputPath,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize console logger: %v\n", err)
		os.Exit(1)
	}
	defer console.Sync()

	logsDir := config.Fetch.LogsDir()
	multiLog, err := logger.NewMultiLogger(logger.MultiLoggerConfig{
		Level:   config.Logging.Level,
		LogsDir: logsDir,
	})
	if err != nil {
		console.Fatal("Failed to initialize logger", zap.Error(err))
	}
	defer multiLog.Close()

	logAdapter := logger.NewLoggerAdapter(multiLog)
	// lifecycle messages go to the console and the queue log
	log := zap.New(zapcore.NewTee(console.Core(), logAdapter.Queue().Core()))

	log.Info("Starting question paper server",
		zap.String("version", handlers.Version),
		zap.String("host", config.Server.Host),
		zap.Int("port", config.Server.Port),
		zap.String("papers_dir", config.Fetch.PapersDir()),
		zap.Int("max_attempts", config.Fetch.MaxAttempts),
		zap.Int("concurrent_limit", config.Queue.ConcurrentLimit))

	if err := createDirectories(config); err != nil {
		logAdapter.LogAppError("Failed to create directories", zap.Error(err))
		os.Exit(1)
	}

	repo, err := infrastructure.NewSQLitePaperRepository(config.Queue.DatabasePath)
	if err != nil {
		logAdapter.LogAppError("Failed to initialize repository", zap.Error(err))
		os.Exit(1)
	}
	defer repo.Close()

	notifier := infrastructure.NewNotificationService(&config.Notification, log)
	fetcher := infrastructure.NewHTTPFetcher(config.Fetch.Backoff, logAdapter.Fetch(),
		infrastructure.WithLockDir(config.Fetch.LockDir()))

	fetchMgr := app.NewFetchManager(repo, fetcher, notifier, &config.Fetch, config.Queue.ConcurrentLimit, logAdapter)
	queueMgr := app.NewQueueManager(repo, fetchMgr, &config.Queue, logAdapter)
	syncer := app.NewSyncer(fetcher, queueMgr, notifier, &config.Fetch, config.Catalog.PoliteDelay, logAdapter)

	loadCatalog := func() (*domain.Catalog, error) {
		return infrastructure.LoadCatalog(config.Catalog.Path)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if config.Queue.AutoStartWorkers {
		if err := queueMgr.Start(ctx); err != nil {
			logAdapter.LogAppError("Failed to start queue manager", zap.Error(err))
			os.Exit(1)
		}
	}

	var scheduler *app.Scheduler
	if config.Catalog.Schedule != "" {
		scheduler, err = app.NewScheduler(config.Catalog.Schedule, syncer, loadCatalog, logAdapter)
		if err != nil {
			logAdapter.LogAppError("Failed to create scheduler", zap.Error(err))
			os.Exit(1)
		}
		scheduler.Start(ctx)
		log.Info("Catalog sync scheduled",
			zap.String("schedule", config.Catalog.Schedule),
			zap.Time("next_run", scheduler.Next()))
	}

	router := api.SetupRouter(api.RouterDeps{
		QueueMgr:      queueMgr,
		FetchMgr:      fetchMgr,
		Syncer:        syncer,
		CatalogLoader: loadCatalog,
		FetchConfig:   &config.Fetch,
		LogAdapter:    logAdapter,
		LogsDir:       logsDir,

		AllowedOrigins: config.Server.AllowedOrigins,
	})

	addr := fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info("Received shutdown signal")
	case <-queueMgr.WaitForExit():
		log.Info("Queue manager triggered auto-exit (all papers processed)")
	case err := <-serverErr:
		logAdapter.LogAppError("HTTP server failed", zap.Error(err))
	}

	log.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if scheduler != nil {
		scheduler.Stop()
	}

	if queueMgr.IsRunning() {
		if err := queueMgr.Stop(); err != nil {
			logAdapter.LogAppError("Error stopping queue manager", zap.Error(err))
		}
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		logAdapter.LogAppError("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited")
}

func createDirectories(config *domain.Config) error {
	dirs := []string{
		config.Fetch.BaseDir,
		config.Fetch.PapersDir(),
		config.Fetch.LockDir(),
		config.Fetch.LogsDir(),
		filepath.Dir(config.Queue.DatabasePath),
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
