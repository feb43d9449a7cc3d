// Command dashctl is the operator CLI of the Rio Butcher dashboard backend.
// It works directly on the dashboard database and the automation webhooks.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"
	"github.com/jmau0/riobutcher/internal/config"
	"github.com/jmau0/riobutcher/internal/store"
	"github.com/spf13/cobra"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62"))

	urgentStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)
)

// app holds what every subcommand shares once flags are parsed.
type app struct {
	dbPath  string
	verbose bool
	cfg     config.Config
	logger  *slog.Logger
}

func (a *app) openStore() (*store.SQLiteStore, error) {
	st, err := store.NewSQLiteStore(a.dbPath, store.NewChangeFeed(a.logger))
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", a.dbPath, err)
	}
	return st, nil
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "dashctl",
		Short: "Operate the Rio Butcher WhatsApp dashboard from the terminal",
		Long: `dashctl reads the dashboard database and talks to the automation
webhooks using the same settings as the server (.env and environment).

Examples:
  dashctl leads --urgent
  dashctl transcript 5521999991234 --format md
  dashctl qr rio-butcher-main --out qr.png`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()
			a.cfg = config.FromEnv()
			if a.dbPath == "" {
				a.dbPath = a.cfg.DatabaseURL
			}
			level := slog.LevelWarn
			if a.verbose {
				level = slog.LevelDebug
			}
			a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.dbPath, "db", "", "Path to the dashboard database (default: DATABASE_URL)")
	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable verbose logging")

	rootCmd.AddCommand(
		newTranscriptCmd(a),
		newLeadsCmd(a),
		newAttendanceCmd(a),
		newMetricsCmd(a),
		newQRCmd(a),
		newHashPasswordCmd(),
	)
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
