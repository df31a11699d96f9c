package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"buildwatch/internal/adapter/plain"
	"buildwatch/internal/adapter/tui/watch"
	"buildwatch/internal/domain"
)

func newRunCommand(a *app) *cobra.Command {
	var tag string
	cmd := &cobra.Command{
		Use:   "run PROJECT_ID",
		Short: "Launch a build of a project and follow its log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID := args[0]
			if tag == "" {
				tag = domain.DefaultTag
			}
			title := fmt.Sprintf("buildwatch %s:%s", projectID, tag)
			return a.watch(cmd.Context(), title, func(ctx context.Context, w *watcher) error {
				_, err := w.monitor.Launch(ctx, projectID, tag)
				return err
			})
		},
	}
	cmd.Flags().StringVarP(&tag, "tag", "t", domain.DefaultTag, "Image version tag")
	return cmd
}

func newAttachCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "attach TASK_ID",
		Short: "Follow the log of a running task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			taskID := args[0]
			return a.watch(cmd.Context(), "buildwatch task "+taskID, func(ctx context.Context, w *watcher) error {
				return w.monitor.Attach(ctx, taskID)
			})
		},
	}
}

// watch wires a monitor and hands it to the selected renderer. start runs
// once the renderer is subscribed.
func (a *app) watch(ctx context.Context, title string, start func(context.Context, *watcher) error) error {
	if err := a.setup(ctx, !a.opts.Plain); err != nil {
		return err
	}
	defer a.close()

	w, err := a.newWatcher()
	if err != nil {
		return err
	}
	if a.opts.Plain {
		return a.watchPlain(ctx, w, start)
	}
	return a.watchTUI(ctx, w, title, start)
}

func (a *app) watchPlain(ctx context.Context, w *watcher, start func(context.Context, *watcher) error) error {
	r := plain.New(a.out, a.errOut)
	unsubscribe := r.Subscribe(w.bus)
	defer unsubscribe()

	if err := start(ctx, w); err != nil {
		return err
	}
	res, err := r.Wait(ctx)
	if err != nil {
		return err
	}
	if !res.Success() {
		return fmt.Errorf("task %s: %w", res.TaskID, domain.ErrConnection)
	}
	a.log.Info("task finished", "task_id", res.TaskID, "lines", res.Lines)
	return nil
}

func (a *app) watchTUI(ctx context.Context, w *watcher, title string, start func(context.Context, *watcher) error) error {
	model := watch.New(watch.Deps{
		Ctx:        ctx,
		Bus:        w.bus,
		Controller: w.monitor,
		Title:      title,
		Start: func(ctx context.Context) error {
			return start(ctx, w)
		},
	})
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	model.SetProgramSender(func(msg tea.Msg) { p.Send(msg) })

	_, err := p.Run()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}
