package cli

import (
	"context"
	"fmt"

	"rtdb-bridge/internal/rtdb"

	"github.com/spf13/cobra"
)

// NewSetCommand creates the set command.
func NewSetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set <path> <json>",
		Short: "Replace the value at a path",
		Long: `Replace the value at a path. null removes it.

Example:
  rtdbctl set users/42 '{"name":"Ann","age":30}'
  rtdbctl set users/42/name Annie`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := parseValue(args[1])
			if err != nil {
				return err
			}
			return rootOpts.oneShot(cmd, func(ctx context.Context, client *rtdb.Client) error {
				return client.Ref(args[0]).Set(ctx, value)
			})
		},
	}
}

// NewUpdateCommand creates the update command.
func NewUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "update <path> <json-object>",
		Short: "Write several children at once",
		Long: `Write several children of a path. Keys may contain '/' to reach
deeper descendants; null deletes.

Example:
  rtdbctl update users/42 '{"name":"Ann","profile/city":"Oslo","nickname":null}'`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := parseValue(args[1])
			if err != nil {
				return err
			}
			fields := value.Map()
			if fields == nil {
				return fmt.Errorf("update expects a JSON object, got %s", args[1])
			}
			values := make(map[string]interface{}, fields.Len())
			for _, k := range fields.Keys() {
				v, _ := fields.Get(k)
				values[k] = v
			}
			return rootOpts.oneShot(cmd, func(ctx context.Context, client *rtdb.Client) error {
				return client.Ref(args[0]).Update(ctx, values)
			})
		},
	}
}

// NewRemoveCommand creates the remove command.
func NewRemoveCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <path>",
		Aliases: []string{"rm"},
		Short:   "Delete the value at a path",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.oneShot(cmd, func(ctx context.Context, client *rtdb.Client) error {
				return client.Ref(args[0]).Remove(ctx)
			})
		},
	}
}

// NewPushCommand creates the push command.
func NewPushCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "push <path> [json]",
		Short: "Create a child with a generated key",
		Long: `Create a child under path with a time-ordered generated key and print
its path. With a value, the child is written too.

Example:
  rtdbctl push messages '{"text":"hello"}'`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var values []interface{}
			if len(args) == 2 {
				value, err := parseValue(args[1])
				if err != nil {
					return err
				}
				values = append(values, value)
			}
			return rootOpts.oneShot(cmd, func(ctx context.Context, client *rtdb.Client) error {
				child, err := client.Ref(args[0]).Push(ctx, values...)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), child.String())
				return nil
			})
		},
	}
}
