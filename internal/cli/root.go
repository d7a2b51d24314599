package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"rtdb-bridge/internal/rtdb"
	"rtdb-bridge/internal/rtdb/config"
	"rtdb-bridge/internal/shared/contextkeys"
	"rtdb-bridge/internal/shared/logger"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	BaseURL  string
	IDField  string
	Notifier string
	Poll     time.Duration
	Timeout  time.Duration
	Verbose  bool
	Format   string // "json" | "text"

	// Open builds the client; tests replace it.
	Open func(ctx context.Context, cfg *config.AdapterConfig, log logger.Logger) (*rtdb.Client, error)
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for rtdbctl.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{
		Open: func(ctx context.Context, cfg *config.AdapterConfig, log logger.Logger) (*rtdb.Client, error) {
			return rtdb.Open(ctx, cfg, log, nil)
		},
	}

	cmd := &cobra.Command{
		Use:   "rtdbctl",
		Short: "Read, write and watch a path-addressed document store",
		Long: `rtdbctl addresses a REST document store as one JSON tree.

Paths have the form collection/document/field/... and values are JSON.
Settings come from RTDB_* environment variables; flags override them.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.BaseURL, "base-url", "", "document store base URL (overrides RTDB_BASE_URL)")
	cmd.PersistentFlags().StringVar(&opts.IDField, "id-field", "", "document identifier field (overrides RTDB_ID_FIELD)")
	cmd.PersistentFlags().StringVar(&opts.Notifier, "notifier", "", "change notifier for watch: polling|redis|websocket")
	cmd.PersistentFlags().DurationVar(&opts.Poll, "poll-interval", 0, "polling interval for watch")
	cmd.PersistentFlags().DurationVar(&opts.Timeout, "timeout", 30*time.Second, "timeout for one-shot commands")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log to stderr")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "json", "output format (json|text)")

	cmd.AddCommand(NewGetCommand(opts))
	cmd.AddCommand(NewSetCommand(opts))
	cmd.AddCommand(NewUpdateCommand(opts))
	cmd.AddCommand(NewRemoveCommand(opts))
	cmd.AddCommand(NewPushCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))

	return cmd
}

// config loads RTDB_* settings and applies flag overrides.
func (o *RootOptions) config() (*config.AdapterConfig, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	if o.BaseURL != "" {
		cfg.BaseURL = o.BaseURL
	}
	if o.IDField != "" {
		cfg.IDField = o.IDField
	}
	if o.Notifier != "" {
		cfg.Notifier = o.Notifier
	}
	if o.Poll > 0 {
		cfg.PollInterval = o.Poll
	}
	return cfg, cfg.Validate()
}

func (o *RootOptions) logger(stderr io.Writer) logger.Logger {
	if !o.Verbose {
		return logger.NewNopLogger()
	}
	return logger.NewLoggerWithWriter("debug", "text", stderr)
}

// client opens an adapter for one command. One-shot commands never watch, so
// they always use the polling notifier and skip dialing a change feed.
func (o *RootOptions) client(cmd *cobra.Command, watching bool) (*rtdb.Client, error) {
	cfg, err := o.config()
	if err != nil {
		return nil, err
	}
	if !watching {
		cfg.Notifier = config.NotifierPolling
	}
	return o.Open(cmd.Context(), cfg, o.logger(cmd.ErrOrStderr()))
}

// oneShot runs fn with a client and the --timeout deadline.
func (o *RootOptions) oneShot(cmd *cobra.Command, fn func(ctx context.Context, client *rtdb.Client) error) error {
	client, err := o.client(cmd, false)
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(invocationContext(cmd.Context()), o.Timeout)
	defer cancel()
	return fn(ctx, client)
}

// invocationContext assigns one request id to a CLI invocation. The HTTP
// gateway forwards it as X-Request-ID.
func invocationContext(parent context.Context) context.Context {
	return context.WithValue(parent, contextkeys.RequestIDKey, uuid.NewString())
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
