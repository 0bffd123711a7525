package cli

import (
	"context"
	"fmt"

	"rewardjar-service/internal/app"
	"rewardjar-service/internal/config"
	"rewardjar-service/internal/domain/wallet"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	// Connect opens the queue backend. Tests replace it; nil means the
	// PostgreSQL backed services from the environment.
	Connect Connector
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// Backend is what the queue commands need from the wallet services.
type Backend interface {
	ProcessBatch(ctx context.Context) (*wallet.BatchResult, error)
	ListQueue(ctx context.Context, filters *wallet.QueueListFilters) (*wallet.QueueListResponse, error)
}

// Connector opens a Backend and returns a func releasing it.
type Connector func(ctx context.Context, logger *zap.Logger) (Backend, func(), error)

// NewRootCommand creates the root command for walletctl.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "walletctl",
		Short: "Operate the wallet pass update queue",
		Long: `walletctl runs and inspects the wallet pass update queue.

It is meant for cron jobs and other external schedulers: each "queue process"
call claims one bounded batch, so any number of invocations may overlap.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewQueueCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

func (o *RootOptions) logger() *zap.Logger {
	cfg := zap.NewProductionConfig()
	if o.Verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func (o *RootOptions) connect(ctx context.Context, logger *zap.Logger) (Backend, func(), error) {
	if o.Connect != nil {
		return o.Connect(ctx, logger)
	}
	return connectServices(ctx, logger)
}

type serviceBackend struct {
	comp *app.Components
}

func (b serviceBackend) ProcessBatch(ctx context.Context) (*wallet.BatchResult, error) {
	return b.comp.Processor.ProcessBatch(ctx)
}

func (b serviceBackend) ListQueue(ctx context.Context, filters *wallet.QueueListFilters) (*wallet.QueueListResponse, error) {
	return b.comp.Wallet.ListQueue(ctx, filters)
}

// connectServices builds the services for a process without PWA
// connections. PWA items go out through the Redis relay, or stay queued for
// the API server when Redis is down.
func connectServices(ctx context.Context, logger *zap.Logger) (Backend, func(), error) {
	comp, err := app.BuildComponents(ctx, config.Load(), false, logger)
	if err != nil {
		return nil, nil, err
	}
	return serviceBackend{comp: comp}, comp.Close, nil
}
