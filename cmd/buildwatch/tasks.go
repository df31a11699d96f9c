package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"buildwatch/internal/adapter/history"
	"buildwatch/internal/domain"
)

func newTasksCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tasks PROJECT_ID",
		Short: "List a project's task history on the server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(cmd.Context(), false); err != nil {
				return err
			}
			defer a.close()

			records, err := a.client().History(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printTaskRecords(a.out, records)
			return nil
		},
	}
}

func printTaskRecords(w io.Writer, records []domain.TaskRecord) {
	if len(records) == 0 {
		fmt.Fprintln(w, "no tasks")
		return
	}
	fmt.Fprintf(w, "%-36s  %-12s  %-10s  %s\n", "TASK", "TAG", "STATUS", "CREATED")
	for _, r := range records {
		fmt.Fprintf(w, "%-36s  %-12s  %-10s  %s\n", r.ID, r.Tag, r.Status, formatTime(r.CreatedAt.Time))
	}
}

func newLogsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs TASK_ID",
		Short: "Print the archived log of a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(cmd.Context(), false); err != nil {
				return err
			}
			defer a.close()

			content, err := a.client().LogContent(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprint(a.out, content)
			if content != "" && !strings.HasSuffix(content, "\n") {
				fmt.Fprintln(a.out)
			}
			return nil
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every archived task log on the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.setup(cmd.Context(), false); err != nil {
				return err
			}
			defer a.close()

			if err := a.client().ClearLogs(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "all task logs deleted")
			return nil
		},
	}

	rmCmd := &cobra.Command{
		Use:   "rm TASK_ID",
		Short: "Delete the archived log of a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(cmd.Context(), false); err != nil {
				return err
			}
			defer a.close()

			if err := a.client().DeleteLog(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "log of task %s deleted\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(clearCmd, rmCmd)
	return cmd
}

func newHistoryCommand(a *app) *cobra.Command {
	var filter domain.RunFilter
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List locally watched runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.setup(cmd.Context(), false); err != nil {
				return err
			}
			defer a.close()

			store, err := a.openHistory()
			if err != nil {
				return err
			}
			runs, err := store.List(cmd.Context(), filter)
			if err != nil {
				return err
			}
			printRuns(a.out, runs)
			return nil
		},
	}
	cmd.Flags().StringVarP(&filter.ProjectID, "project", "p", "", "Only runs of this project")
	cmd.Flags().IntVarP(&filter.Limit, "limit", "n", history.DefaultListLimit, "Maximum number of runs")
	return cmd
}

func printRuns(w io.Writer, runs []domain.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "no runs recorded")
		return
	}
	fmt.Fprintf(w, "%-36s  %-20s  %-13s  %6s  %-19s  %s\n", "TASK", "PROJECT:TAG", "OUTCOME", "LINES", "STARTED", "DURATION")
	for _, r := range runs {
		target := "-"
		if r.ProjectID != "" {
			target = r.ProjectID + ":" + r.Tag
		}
		task := r.TaskID
		if task == "" {
			task = "-"
		}
		duration := "-"
		if r.FinishedAt != nil {
			duration = r.FinishedAt.Sub(r.StartedAt).Round(100 * time.Millisecond).String()
		}
		fmt.Fprintf(w, "%-36s  %-20s  %-13s  %6d  %-19s  %s\n", task, target, r.Outcome, r.Lines, formatTime(r.StartedAt), duration)
		if r.Error != "" {
			fmt.Fprintf(w, "    %s\n", r.Error)
		}
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(time.DateTime)
}
