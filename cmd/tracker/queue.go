package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"timearchitect/client"
	"timearchitect/dto"
	"timearchitect/offline"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Show messages waiting to be sent",
	RunE:  runQueueList,
}

var queueFlushCmd = &cobra.Command{
	Use:   "flush",
	Short: "Send queued messages now",
	Long: `Replay queued messages in the order they were recorded. Replay stops at
the first message the server cannot take; it and everything after it stay
queued for the next attempt.`,
	RunE: runQueueFlush,
}

func init() {
	queueCmd.AddCommand(queueFlushCmd)
	rootCmd.AddCommand(queueCmd)
}

func runQueueList(cmd *cobra.Command, args []string) error {
	db, err := offline.Open(cfg.QueuePath)
	if err != nil {
		return err
	}
	defer func() {
		_ = offline.Close(db)
	}()

	entries, err := offline.NewQueue(db, logger).Pending(cmd.Context())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintln(out, "Queue is empty")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tKIND\tWHAT\tQUEUED\tATTEMPTS")
	for _, entry := range entries {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\n",
			entry.ID, entry.Kind, describeEntry(entry), humanize.Time(entry.EnqueuedAt), entry.Attempts)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "\n%s queued, %s payload\n",
		humanize.Comma(int64(len(entries))), humanize.Bytes(payloadBytes(entries)))
	return nil
}

func describeEntry(entry offline.Entry) string {
	switch entry.Kind {
	case offline.KindActivity:
		var req dto.ActivityRequest
		if err := entry.Decode(&req); err == nil {
			return string(req.Type)
		}
	case offline.KindCommand:
		var command client.Command
		if err := entry.Decode(&command); err == nil {
			return string(command.Type)
		}
	}
	return "?"
}

func payloadBytes(entries []offline.Entry) uint64 {
	var total uint64
	for _, entry := range entries {
		total += uint64(len(entry.Payload))
	}
	return total
}

func runQueueFlush(cmd *cobra.Command, args []string) error {
	db, err := offline.Open(cfg.QueuePath)
	if err != nil {
		return err
	}
	defer func() {
		_ = offline.Close(db)
	}()

	transport := client.NewHTTPTransport(cfg.ServerURL, cfg.RequestTimeout)
	if err := transport.Ping(cmd.Context()); err != nil {
		return fmt.Errorf("server not reachable: %w", err)
	}

	queue := offline.NewQueue(db, logger)
	report, err := queue.Drain(cmd.Context(), nil, func(ctx context.Context, entry offline.Entry) error {
		return client.Replay(ctx, transport, entry)
	})
	fmt.Fprintf(cmd.OutOrStdout(), "Sent %d, rejected %d, remaining %d\n", report.Sent, report.Rejected, report.Remaining)
	return err
}
