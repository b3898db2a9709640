package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	serverURL  string
	userID     string
	queuePath  string
	verbose    bool

	cfg    *trackerConfig
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "tracker",
	Short: "Time Architect activity tracker",
	Long: `tracker - clock in, watch for inactivity and keep your hours honest

Runs the activity state machine against input read from stdin, reports
activity to the Time Architect server and queues everything locally while
the server cannot be reached.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

		loaded, err := loadConfig(configPath)
		if err != nil {
			return err
		}
		flags := cmd.Flags()
		if flags.Changed("server") {
			loaded.ServerURL = serverURL
		}
		if flags.Changed("user") {
			loaded.UserID = userID
		}
		if flags.Changed("queue") {
			loaded.QueuePath = queuePath
		}
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath(), "Config file path")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "Server base URL")
	rootCmd.PersistentFlags().StringVar(&userID, "user", "", "User ID to track")
	rootCmd.PersistentFlags().StringVar(&queuePath, "queue", "", "Offline queue database path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")
}
