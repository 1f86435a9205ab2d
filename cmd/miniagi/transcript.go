package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/szaher/miniagi/internal/journal"
)

func newTranscriptCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "transcript [session-id]",
		Short: "List journaled sessions or print one transcript",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := journal.Open(path)
			if err != nil {
				return err
			}
			defer func() { _ = j.Close() }()

			out := cmd.OutOrStdout()
			if len(args) == 0 {
				sessions, err := j.ListSessions(cmd.Context())
				if err != nil {
					return err
				}
				return printSessions(out, sessions)
			}

			t, err := j.Transcript(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printTranscript(out, t)
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "journal", "", "SQLite journal file")
	_ = cmd.MarkFlagRequired("journal")

	return cmd
}

func printSessions(w io.Writer, sessions []journal.SessionInfo) error {
	if len(sessions) == 0 {
		fmt.Fprintln(w, "No sessions recorded.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tRECORDS\tEND\tOBJECTIVE")
	for _, s := range sessions {
		end := s.EndReason
		if end == "" {
			end = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
			s.ID, s.StartedAt.Format(time.DateTime), s.Records, end, s.Objective)
	}
	return tw.Flush()
}

func printTranscript(w io.Writer, t *journal.Transcript) {
	fmt.Fprintf(w, "Session %s\nObjective: %s\nModel: %s\nStarted: %s\n",
		t.Session.ID, t.Session.Objective, t.Session.Model, t.Session.StartedAt.Format(time.RFC3339))
	if !t.Session.EndedAt.IsZero() {
		fmt.Fprintf(w, "Ended: %s (%s)\n", t.Session.EndedAt.Format(time.RFC3339), t.Session.EndReason)
	}
	for _, rec := range t.Records {
		note := ""
		if rec.Summarized {
			note = " (summarized)"
		}
		fmt.Fprintf(w, "\n#%d %s%s\n%s", rec.Seq, rec.CreatedAt.Format(time.TimeOnly), note, rec.Render())
	}
	if t.Summary != "" {
		fmt.Fprintf(w, "\nSUMMARY\n%s\n", t.Summary)
	}
}
