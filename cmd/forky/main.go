package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"forky/internal/config"
	"forky/internal/emt"
	"forky/internal/reader"
	"forky/internal/server"
	"forky/internal/storage"
	"forky/internal/syncer"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	// CLI flags
	configPath := flag.String("config", "", "Path to YAML config file")
	loginOnly := flag.Bool("login", false, "Prompt for EMT credentials, store a token, then exit")
	syncOnly := flag.Bool("sync", false, "Run one sync cycle, then exit")
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Port = *port
	}

	// Context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := storage.Open(cfg.DBPath, logger)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	client := emt.NewClient(cfg.EMTBaseURL, time.Duration(cfg.HTTPTimeoutSec)*time.Second, logger)
	engine := syncer.New(db, db, client, logger)
	if cfg.Email != "" {
		engine.SetCredentials(cfg.Email, cfg.Password)
	}

	if *loginOnly {
		email, password, err := promptCredentials()
		if err != nil {
			logger.Error("failed to read credentials", "error", err)
			os.Exit(1)
		}
		if err := engine.Login(ctx, email, password); err != nil {
			logger.Error("login failed", "error", err)
			os.Exit(1)
		}
		logger.Info("login succeeded, token stored")
		return
	}

	if *syncOnly {
		if err := engine.Sync(ctx); err != nil {
			logger.Error("sync failed", "error", err)
			os.Exit(1)
		}
		st := engine.Status()
		logger.Info("sync complete", "stops", st.StopCount)
		return
	}

	rd := reader.New(db, cfg.PageSize)
	engine.OnSyncComplete(rd.Reset)

	if !db.HasStops(ctx) {
		logger.Info("stop cache is empty; trigger a sync via POST /api/sync")
	}

	srv := server.New(ctx, cfg, db, client, engine, rd, logger)

	// Graceful shutdown on SIGINT/SIGTERM
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logger.Info("shutting down")
		cancel()
		os.Exit(0)
	}()

	if err := srv.ListenAndServe(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// promptCredentials reads the email from stdin and the password without
// echo.
func promptCredentials() (email, password string, err error) {
	fmt.Fprint(os.Stderr, "EMT email: ")
	in := bufio.NewReader(os.Stdin)
	email, err = in.ReadString('\n')
	if err != nil {
		return "", "", err
	}
	email = strings.TrimSpace(email)

	fmt.Fprint(os.Stderr, "EMT password: ")
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", "", err
	}
	return email, strings.TrimSpace(string(raw)), nil
}
