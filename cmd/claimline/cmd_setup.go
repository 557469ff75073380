package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/claimline/internal/config"
	"github.com/user/claimline/internal/scheduler"
)

func init() {
	rootCmd.AddCommand(setupCmd)
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactive setup wizard",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		scanner := bufio.NewScanner(os.Stdin)

		fmt.Println("Claimline Setup Wizard")
		fmt.Println("Press Enter to accept the default value shown in brackets.")
		fmt.Println()

		cfg.DataDir = prompt(scanner, "Data directory", cfg.DataDir)
		cfg.LINE.ChannelSecret = prompt(scanner, "LINE channel secret", cfg.LINE.ChannelSecret)
		cfg.LINE.AccessToken = prompt(scanner, "LINE channel access token", cfg.LINE.AccessToken)

		for {
			cfg.LLM.Provider = prompt(scanner, "LLM provider (gemini/openai)", cfg.LLM.Provider)
			if cfg.LLM.Provider == "gemini" || cfg.LLM.Provider == "openai" {
				break
			}
			fmt.Println("Please enter gemini or openai.")
		}
		cfg.LLM.APIKey = prompt(scanner, "LLM API key", cfg.LLM.APIKey)
		cfg.LLM.Model = prompt(scanner, "LLM model name", cfg.LLM.Model)

		cfg.Telegram.Token = prompt(scanner, "Telegram bot token (optional)", cfg.Telegram.Token)
		cfg.Policies.DSN = prompt(scanner, "Policy database DSN (optional, blank uses policies.yaml)", cfg.Policies.DSN)

		for {
			cfg.Reminders.Schedule = prompt(scanner, "Reminder cron schedule (optional)", cfg.Reminders.Schedule)
			if cfg.Reminders.Schedule == "" {
				break
			}
			if err := scheduler.ValidateSchedule(cfg.Reminders.Schedule); err != nil {
				fmt.Println(err)
				cfg.Reminders.Schedule = ""
				continue
			}
			break
		}

		if err := config.Save(cfgPath, cfg); err != nil {
			return fmt.Errorf("save config: %w", err)
		}

		fmt.Println()
		fmt.Println("Configuration saved to", cfgPath)
		return nil
	},
}

// prompt displays a labeled prompt with a default value and reads user input.
// If the user enters nothing, the default is returned.
func prompt(scanner *bufio.Scanner, label, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", label, defaultVal)
	} else {
		fmt.Printf("%s: ", label)
	}
	if scanner.Scan() {
		input := strings.TrimSpace(scanner.Text())
		if input != "" {
			return input
		}
	}
	return defaultVal
}
