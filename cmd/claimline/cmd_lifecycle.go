package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/claimline/internal/config"
)

func init() {
	rootCmd.AddCommand(stopCmd, restartCmd, statusCmd)
}

var errNotRunning = errors.New("claimline is not running")

// runningPID returns the PID recorded by serve, if that process is alive.
func runningPID(dataDir string) (int, error) {
	data, err := os.ReadFile(filepath.Join(dataDir, pidFile))
	if os.IsNotExist(err) {
		return 0, errNotRunning
	}
	if err != nil {
		return 0, fmt.Errorf("read PID file: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("parse PID file: %w", err)
	}
	// signal 0 probes for existence
	if err := syscall.Kill(pid, 0); err != nil {
		return 0, fmt.Errorf("%w (stale PID %d)", errNotRunning, pid)
	}
	return pid, nil
}

func signalServer(sig syscall.Signal, done string) error {
	pid, err := runningPID(loadConfig().DataDir)
	if err != nil {
		return err
	}
	if err := syscall.Kill(pid, sig); err != nil {
		return fmt.Errorf("signal %d: %w", pid, err)
	}
	fmt.Fprintf(os.Stdout, "%s (PID %d).\n", done, pid)
	return nil
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return signalServer(syscall.SIGTERM, "Stopping claimline")
	},
}

var restartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Re-exec the running server with fresh config",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return signalServer(syscall.SIGHUP, "Restarting claimline")
	},
}

// healthURL turns a listen address such as ":8000" into a loopback URL.
func healthURL(cfg *config.Config) string {
	host, port, err := net.SplitHostPort(cfg.HTTP.Listen)
	if err != nil {
		return "http://" + cfg.HTTP.Listen + "/health"
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port) + "/health"
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the server is running and healthy",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		pid, err := runningPID(cfg.DataDir)
		if err != nil {
			return err
		}
		fmt.Printf("PID:     %d\n", pid)

		client := &http.Client{Timeout: 3 * time.Second}
		resp, err := client.Get(healthURL(cfg))
		if err != nil {
			fmt.Printf("Health:  unreachable (%v)\n", err)
			return nil
		}
		defer resp.Body.Close()

		var h map[string]any
		if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
			return fmt.Errorf("decode health: %w", err)
		}
		fmt.Printf("Health:  %v\n", h["status"])
		for _, k := range []string{"line_configured", "ai_configured", "data_dir_writable"} {
			fmt.Printf("  %-18s %v\n", k, h[k])
		}
		return nil
	},
}
