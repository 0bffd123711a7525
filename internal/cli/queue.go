package cli

import (
	"context"
	"errors"
	"time"

	"rewardjar-service/internal/domain/wallet"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewQueueCommand groups the queue subcommands.
func NewQueueCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Process or inspect the pass update queue",
	}
	cmd.AddCommand(NewQueueProcessCommand(rootOpts))
	cmd.AddCommand(NewQueueListCommand(rootOpts))
	return cmd
}

// QueueProcessOptions holds flags for queue process.
type QueueProcessOptions struct {
	*RootOptions
	Interval time.Duration
}

func NewQueueProcessCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueueProcessOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "process",
		Short: "Deliver one batch of due pass updates",
		Long: `Claim one batch of due queue items and deliver them.

With --interval the command keeps processing a batch per tick until it is
interrupted.

Example:
  walletctl queue process
  walletctl queue process --interval 30s --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQueueProcess(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().DurationVar(&opts.Interval, "interval", 0, "process a batch every interval until interrupted (0 runs once)")

	return cmd
}

func runQueueProcess(ctx context.Context, opts *QueueProcessOptions, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Interval < 0 {
		return NewExitError(ExitCommandError, "interval must not be negative")
	}

	logger := opts.logger()
	defer logger.Sync()

	backend, release, err := opts.connect(ctx, logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open wallet services", err)
	}
	defer release()

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}

	if opts.Interval == 0 {
		return processOnce(ctx, backend, out)
	}

	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()
	for ctx.Err() == nil {
		if err := processOnce(ctx, backend, out); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			// keep ticking; the next batch may succeed
			logger.Error("queue batch failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
	return nil
}

func processOnce(ctx context.Context, backend Backend, out *OutputFormatter) error {
	result, err := backend.ProcessBatch(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "queue batch failed", err)
	}
	return out.BatchResult(result)
}

// QueueListOptions holds flags for queue list.
type QueueListOptions struct {
	*RootOptions
	Status   string
	Platform string
	PassID   string
	Page     int
	PageSize int
}

func NewQueueListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueueListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queue items, newest first",
		Example: `  walletctl queue list --status dead
  walletctl queue list --platform apple --page 2`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQueueList(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Status, "status", "", "filter by status (pending|processing|success|failed|dead)")
	cmd.Flags().StringVar(&opts.Platform, "platform", "", "filter by platform (apple|google|pwa)")
	cmd.Flags().StringVar(&opts.PassID, "pass-id", "", "filter by pass id")
	cmd.Flags().IntVar(&opts.Page, "page", 1, "page number")
	cmd.Flags().IntVar(&opts.PageSize, "page-size", 20, "items per page (max 100)")

	return cmd
}

func (o *QueueListOptions) filters() (*wallet.QueueListFilters, error) {
	f := &wallet.QueueListFilters{PassID: o.PassID, Page: o.Page, PageSize: o.PageSize}
	if o.Status != "" {
		s := wallet.QueueStatus(o.Status)
		if !s.Valid() {
			return nil, errors.New("invalid status " + o.Status)
		}
		f.Status = &s
	}
	if o.Platform != "" {
		p := wallet.Platform(o.Platform)
		if !p.Valid() {
			return nil, errors.New("invalid platform " + o.Platform)
		}
		f.Platform = &p
	}
	return f, nil
}

func runQueueList(ctx context.Context, opts *QueueListOptions, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	filters, err := opts.filters()
	if err != nil {
		return WrapExitError(ExitCommandError, "bad filter", err)
	}

	logger := opts.logger()
	defer logger.Sync()

	backend, release, err := opts.connect(ctx, logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open wallet services", err)
	}
	defer release()

	result, err := backend.ListQueue(ctx, filters)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to list queue", err)
	}
	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	return out.QueueList(result)
}
