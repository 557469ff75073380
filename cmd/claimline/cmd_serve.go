package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/claimline/internal/conversation"
	"github.com/user/claimline/internal/delivery"
	"github.com/user/claimline/internal/gateway"
	"github.com/user/claimline/internal/line"
	"github.com/user/claimline/internal/scheduler"
	"github.com/user/claimline/internal/state"
	"github.com/user/claimline/internal/telegram"
	"github.com/user/claimline/internal/types"
	"github.com/user/claimline/internal/webhook"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the claim intake daemon",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

const pidFile = "claimline.pid"

func writePIDFile(dataDir string) (string, error) {
	pidPath := filepath.Join(dataDir, pidFile)
	pid := os.Getpid()
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(pid)+"\n"), 0644); err != nil {
		return "", fmt.Errorf("write PID file: %w", err)
	}
	return pidPath, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	idleAfter, _ := cfg.IdleAfter()

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	// Write PID file
	pidPath, err := writePIDFile(cfg.DataDir)
	if err != nil {
		return err
	}
	defer os.Remove(pidPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var cl closer
	defer cl.run()

	// Stores
	sessions, err := openSessions(ctx, cfg, &cl)
	if err != nil {
		return err
	}
	policies, err := openPolicies(ctx, cfg, &cl)
	if err != nil {
		return err
	}
	docs, err := openDocuments(cfg)
	if err != nil {
		return err
	}
	claims := state.NewClaimStore(cfg.DataDir)

	ai, err := newDocumentAI(ctx, cfg)
	if err != nil {
		return err
	}

	engine := conversation.New(conversation.Deps{
		Sessions:  sessions,
		Claims:    claims,
		Documents: docs,
		IDs:       state.NewSequence(cfg.DataDir),
		Policies:  policies,
		AI:        ai,
	})

	// Gateway
	gw := gateway.New(engine, int64(cfg.MaxConcurrent), gateway.WithTurnTimeout(cfg.TurnTimeout()))
	gw.Start(ctx)
	defer gw.Stop()

	// Delivery registry
	deliveryReg := delivery.NewRegistry()

	// LINE
	var lineHandler http.Handler
	if cfg.LINEConfigured() {
		client := line.NewClient(line.Config{
			ChannelSecret: cfg.LINE.ChannelSecret,
			AccessToken:   cfg.LINE.AccessToken,
			APIHost:       cfg.LINE.APIHost,
			DataAPIHost:   cfg.LINE.DataAPIHost,
		}, gateway.DefaultRetryPolicy())
		lineHandler = line.NewHandler(cfg.LINE.ChannelSecret, client, gw)
		deliveryReg.Register("line:", func(ctx context.Context, user types.UserKey, msgs ...types.OutboundMessage) error {
			return client.Push(ctx, user.NativeID(), msgs...)
		})
	} else {
		slog.Warn("line transport disabled (no channel credentials)")
	}

	// Telegram adapter
	if cfg.Telegram.Token != "" {
		adapter, err := telegram.New(cfg.Telegram.Token, gw)
		if err != nil {
			return fmt.Errorf("create telegram adapter: %w", err)
		}
		go adapter.Start(ctx)
		deliveryReg.Register("telegram:", adapter.Push)
		slog.Info("telegram adapter started")
	} else {
		slog.Warn("telegram adapter disabled (no token)")
	}

	// Reminders
	reminders := scheduler.New(sessions, gw, deliveryReg, scheduler.Options{
		Schedule:  cfg.Reminders.Schedule,
		IdleAfter: idleAfter,
	})
	if err := reminders.Start(ctx); err != nil {
		return err
	}
	defer reminders.Stop()

	// HTTP server
	srv := webhook.NewServer(webhook.Options{
		LINE:   lineHandler,
		Claims: claims,
		Health: webhook.Health{
			LINEConfigured: cfg.LINEConfigured(),
			AIConfigured:   cfg.LLM.APIKey != "",
			DataDir:        cfg.DataDir,
		},
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
	})
	httpServer := &http.Server{
		Addr:              cfg.HTTP.Listen,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("http server started", "listen", cfg.HTTP.Listen)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
			cancel()
		}
	}()
	defer func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
		defer done()
		httpServer.Shutdown(shutdownCtx)
	}()

	slog.Info("claimline started",
		"data_dir", cfg.DataDir,
		"log_level", cfg.LogLevel,
		"max_concurrent", cfg.MaxConcurrent,
		"llm_provider", cfg.LLM.Provider,
		"llm_model", cfg.LLM.Model,
		"sessions", cfg.Sessions.Backend,
		"documents", cfg.Documents.Backend,
		"transports", deliveryReg.Prefixes(),
		"pid_file", pidPath,
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("http server stopped")
		case sig := <-sigChan:
			if sig == syscall.SIGHUP {
				slog.Info("received SIGHUP, restarting")
				execPath, err := os.Executable()
				if err != nil {
					slog.Error("failed to get executable path", "error", err)
					continue
				}
				// Clean up PID file before re-exec
				os.Remove(pidPath)
				if err := syscall.Exec(execPath, os.Args, os.Environ()); err != nil {
					slog.Error("failed to re-exec", "error", err)
					// Re-write PID file since we failed to re-exec
					if _, writeErr := writePIDFile(cfg.DataDir); writeErr != nil {
						slog.Error("failed to re-write PID file", "error", writeErr)
					}
					continue
				}
			}
			// SIGINT or SIGTERM
			slog.Info("shutting down", "signal", sig)
			return nil
		}
	}
}
