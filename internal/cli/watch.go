package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rtdb-bridge/internal/rtdb/domain/model"

	"github.com/spf13/cobra"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	Query QueryOptions
	Event string
	Count int
	For   time.Duration
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch <path>",
		Short: "Print changes at a path until interrupted",
		Long: `Subscribe to a path and print every delivery. value events print the
whole snapshot; child events print the affected child.

Example:
  rtdbctl watch users --event child_added --notifier websocket`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, opts, args[0])
		},
	}
	opts.Query.bind(cmd)
	cmd.Flags().StringVar(&opts.Event, "event", string(model.EventValue), "value|child_added|child_changed|child_removed")
	cmd.Flags().IntVar(&opts.Count, "count", 0, "exit after n deliveries (0 = unlimited)")
	cmd.Flags().DurationVar(&opts.For, "for", 0, "exit after this long (0 = until interrupted)")

	return cmd
}

func runWatch(cmd *cobra.Command, opts *WatchOptions, path string) error {
	eventType, err := model.ParseEventType(opts.Event)
	if err != nil {
		return err
	}

	client, err := opts.client(cmd, true)
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, stop := signal.NotifyContext(invocationContext(cmd.Context()), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if opts.For > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.For)
		defer cancel()
	}

	deliveries := make(chan *model.DataSnapshot, 16)
	failures := make(chan error, 1)
	sub, err := opts.Query.apply(cmd, client, path).On(ctx, eventType,
		func(snap *model.DataSnapshot) {
			select {
			case deliveries <- snap:
			case <-ctx.Done():
			}
		},
		func(err error) {
			select {
			case failures <- err:
			default:
			}
		})
	if err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}
	defer sub.Unsubscribe()

	out := cmd.OutOrStdout()
	seen := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-failures:
			fmt.Fprintf(cmd.ErrOrStderr(), "read failed: %v\n", err)
		case snap := <-deliveries:
			if eventType != model.EventValue && opts.Format == "text" {
				fmt.Fprintf(out, "%s %s\n", eventType, snap.Key())
			}
			if err := printSnapshot(out, opts.Format, snap); err != nil {
				return err
			}
			seen++
			if opts.Count > 0 && seen >= opts.Count {
				return nil
			}
		}
	}
}
