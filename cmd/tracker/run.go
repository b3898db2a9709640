package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"timearchitect/client"
	"timearchitect/offline"
	"timearchitect/tracker"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Clock in and track activity from stdin",
	Long: `Clock in and track activity until stdin sends "stop", the session is
auto clocked out, or the process is interrupted.

Input lines:
  key [count]            keyboard activity
  mouse [count]          mouse activity
  focus <app> [| title]  window focus change
  resume | break         answer the inactivity prompt
  break-start | break-end
  online | offline       force connectivity
  stop                   clock out`,
	RunE: runTracker,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runTracker(cmd *cobra.Command, args []string) error {
	if cfg.UserID == "" {
		return errors.New("no user configured; pass --user or set user_id in the config file")
	}

	db, err := offline.Open(cfg.QueuePath)
	if err != nil {
		return err
	}
	defer func() {
		_ = offline.Close(db)
	}()

	transport := client.NewHTTPTransport(cfg.ServerURL, cfg.RequestTimeout)
	queue := offline.NewQueue(db, logger.With("component", "queue"))
	reconciler := offline.NewReconciler(db, transport, logger.With("component", "reconciler"))
	agent := client.NewAgent(client.AgentConfig{
		UserID:        cfg.UserID,
		BreakDuration: cfg.BreakDuration,
	}, transport, queue, reconciler, logger.With("component", "agent"))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := agent.Start(ctx); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Tracking session %s\n", agent.SessionID())

	events := make(chan tracker.Event, 64)
	controls := make(chan client.Control, 8)
	source := client.NewLineSource(cmd.InOrStdin(), nil)
	go func() {
		err := source.Run(ctx, events, controls, func(err error) {
			logger.Warn("ignoring input", "error", err)
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("input stream failed", "error", err)
		}
	}()

	done := make(chan struct{})
	go printPrompts(cmd.OutOrStdout(), agent.Prompts(), done)

	err = agent.Run(ctx, events, controls)
	close(done)
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Clocked out (%s)\n", agent.Phase())
	return err
}

// printPrompts shows agent prompts until done is closed.
func printPrompts(w io.Writer, prompts <-chan tracker.Prompt, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case prompt := <-prompts:
			if prompt == tracker.PromptInactive {
				fmt.Fprintln(w, `You seem to be away. Type "resume" to continue or "break" to count the idle time as a break.`)
			}
		}
	}
}
