package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"buildwatch/internal/adapter/tui/uxerror"
)

// Version is the application version (set via ldflags).
var Version = "dev"

func main() {
	os.Exit(execute(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// execute runs the CLI and returns the process exit code.
func execute(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a := &app{in: stdin, out: stdout, errOut: stderr}
	root := newRootCommand(a)
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(stderr, uxerror.Humanize(err).Render())
		return 1
	}
	return 0
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "buildwatch",
		Short: "Launch build tasks and follow their logs live",
		Long: "buildwatch talks to a build/push server: it manages projects, credentials, proxies and registries,\n" +
			"launches build tasks, and follows a task's log stream with a simulated progress indicator.",
		Version:           Version,
		SilenceErrors:     true,
		SilenceUsage:      true,
		CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
	}

	root.PersistentFlags().StringVarP(&a.opts.ConfigPath, "config", "c", os.Getenv("BUILDWATCH_CONFIG"), "Path to config file")
	root.PersistentFlags().BoolVar(&a.opts.Plain, "plain", false, "Print log lines instead of the full-screen view")

	root.AddCommand(newRunCommand(a))
	root.AddCommand(newAttachCommand(a))
	for _, c := range newResourceCommands(a) {
		root.AddCommand(c)
	}
	root.AddCommand(newTasksCommand(a))
	root.AddCommand(newLogsCommand(a))
	root.AddCommand(newHistoryCommand(a))
	root.AddCommand(newServeLogsCommand(a))
	root.AddCommand(newDoctorCommand(a))

	return root
}
