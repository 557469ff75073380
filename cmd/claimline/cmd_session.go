package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/user/claimline/internal/config"
	"github.com/user/claimline/internal/session"
	"github.com/user/claimline/internal/types"
)

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionListCmd, sessionResetCmd)
}

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspect and reset conversation sessions",
	Long:  "Inspect and reset conversation sessions. Only the redis backend is shared with a running server.",
}

var errMemorySessions = errors.New("sessions live in the server's memory; set sessions.backend to redis to manage them")

// sharedSessions opens the session store a running server also uses.
func sharedSessions(ctx context.Context) (*session.RedisStore, error) {
	cfg := loadConfig()
	if cfg.Sessions.Backend != "redis" {
		return nil, errMemorySessions
	}
	return openRedis(ctx, cfg)
}

func openRedis(ctx context.Context, cfg *config.Config) (*session.RedisStore, error) {
	return session.NewRedisStore(ctx, session.RedisOptions{
		Addr:     cfg.Sessions.RedisAddr,
		Password: cfg.Sessions.RedisPassword,
		DB:       cfg.Sessions.RedisDB,
		Prefix:   cfg.Sessions.RedisPrefix,
	})
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active sessions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := sharedSessions(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		entries, err := store.List(cmd.Context())
		if err != nil {
			return fmt.Errorf("list sessions: %w", err)
		}
		if len(entries) == 0 {
			fmt.Println("No sessions.")
			return nil
		}
		sort.Slice(entries, func(i, j int) bool {
			return entries[i].Session.UpdatedAt.After(entries[j].Session.UpdatedAt)
		})

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "USER\tSTATE\tCLAIM\tMISSING\tUPDATED")
		for _, e := range entries {
			s := e.Session
			claimID := s.ClaimID
			if claimID == "" {
				claimID = "-"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
				e.UserKey, s.State, claimID, len(s.MissingDocs()), s.UpdatedAt.Local().Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

var sessionResetCmd = &cobra.Command{
	Use:   "reset <user-key>",
	Short: "Reset a user's session to idle (e.g. line:U1234)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := sharedSessions(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		if _, err := store.Reset(cmd.Context(), types.UserKey(args[0]), session.StateIdle); err != nil {
			return fmt.Errorf("reset session: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Session %s reset.\n", args[0])
		return nil
	},
}
