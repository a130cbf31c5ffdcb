package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/danielhkuo/hack-o-matic/cliparse"
	"github.com/danielhkuo/hack-o-matic/db"
	"github.com/danielhkuo/hack-o-matic/router"
)

func main() {
	var err error

	// Load .env before reading the environment
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to load .env file", "error", err)
	}

	// Parse configuration
	cfg, err := cliparse.ParseFlags(os.Args[1:])
	if err != nil {
		slog.Error("Error parsing flags", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(newLogger(cfg))

	// Open the database
	store, err := db.Open(cfg.DatabaseType, cfg.DatabaseURL, cfg.Workers)
	if err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	err = store.Ping(ctx)
	cancel()
	if err != nil {
		slog.Error("database ping failed", "error", err)
		os.Exit(1)
	}

	// Sessions open lazily and create the schema on first use
	pool := db.NewSessionPool(store, cfg.Workers)
	defer pool.Close()

	// Create router
	mux := router.NewRouter(pool, cfg)

	// Create server
	server := http.Server{
		Handler:           mux,
		Addr:              cfg.Listen,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// signal.Notify requires the channel to be buffered
	ctrlc := make(chan os.Signal, 1)
	signal.Notify(ctrlc, os.Interrupt, syscall.SIGTERM)
	go func() {
		// Wait for Ctrl-C signal
		<-ctrlc
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	// Start server
	slog.Info("Listening",
		"url", "http://"+cfg.Listen+cfg.Prefix+"/",
		"database", cfg.DatabaseType.String(),
		"workers", cfg.Workers,
	)
	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		slog.Error("Server closed", "error", err)
	} else {
		slog.Info("Server closed", "error", err)
	}
}

// newLogger writes text to a terminal and JSON otherwise. With a log file
// set, output goes to that file and is rotated.
func newLogger(cfg cliparse.Config) *slog.Logger {
	var out io.Writer = os.Stdout
	text := isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())

	if cfg.LogFile != "" {
		out = &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    100, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		}
		text = false
	}

	if text {
		return slog.New(slog.NewTextHandler(out, nil))
	}
	return slog.New(slog.NewJSONHandler(out, nil))
}
