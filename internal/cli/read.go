package cli

import (
	"context"
	"fmt"

	"rtdb-bridge/internal/rtdb"
	"rtdb-bridge/internal/rtdb/usecase"

	"github.com/spf13/cobra"
)

// QueryOptions holds the query modifier flags shared by get and watch.
type QueryOptions struct {
	OrderByChild string
	OrderByKey   bool
	OrderByValue bool
	LimitFirst   int
	LimitLast    int
	StartAt      string
	EndAt        string
	EqualTo      string
}

func (q *QueryOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&q.OrderByChild, "order-by-child", "", "order children by this field")
	cmd.Flags().BoolVar(&q.OrderByKey, "order-by-key", false, "order children by key")
	cmd.Flags().BoolVar(&q.OrderByValue, "order-by-value", false, "order children by value")
	cmd.Flags().IntVar(&q.LimitFirst, "limit-first", 0, "keep the first n children")
	cmd.Flags().IntVar(&q.LimitLast, "limit-last", 0, "keep the last n children")
	cmd.Flags().StringVar(&q.StartAt, "start-at", "", "lower bound (JSON scalar or text)")
	cmd.Flags().StringVar(&q.EndAt, "end-at", "", "upper bound (JSON scalar or text)")
	cmd.Flags().StringVar(&q.EqualTo, "equal-to", "", "exact match (JSON scalar or text)")
}

// apply builds the query for path. Misuse surfaces when the query runs.
func (q *QueryOptions) apply(cmd *cobra.Command, client *rtdb.Client, path string) usecase.Query {
	query := client.Ref(path).Query()
	switch {
	case q.OrderByChild != "":
		query = query.OrderByChild(q.OrderByChild)
	case q.OrderByKey:
		query = query.OrderByKey()
	case q.OrderByValue:
		query = query.OrderByValue()
	}
	if q.LimitFirst > 0 {
		query = query.LimitToFirst(q.LimitFirst)
	}
	if q.LimitLast > 0 {
		query = query.LimitToLast(q.LimitLast)
	}
	if cmd.Flags().Changed("start-at") {
		query = query.StartAt(parseBound(q.StartAt))
	}
	if cmd.Flags().Changed("end-at") {
		query = query.EndAt(parseBound(q.EndAt))
	}
	if cmd.Flags().Changed("equal-to") {
		query = query.EqualTo(parseBound(q.EqualTo))
	}
	return query
}

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	q := &QueryOptions{}

	cmd := &cobra.Command{
		Use:   "get <path>",
		Short: "Read the value at a path",
		Long: `Read the value at a path and print it as JSON.

Example:
  rtdbctl get users --order-by-child age --start-at 18 --limit-first 10`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.oneShot(cmd, func(ctx context.Context, client *rtdb.Client) error {
				snap, err := q.apply(cmd, client, args[0]).Get(ctx)
				if err != nil {
					return fmt.Errorf("get %s: %w", args[0], err)
				}
				return printSnapshot(cmd.OutOrStdout(), rootOpts.Format, snap)
			})
		},
	}
	q.bind(cmd)

	return cmd
}
