package cli

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/classprep/internal/config"
	"github.com/roach88/classprep/internal/engine"
	"github.com/roach88/classprep/internal/store"
)

// RootOptions holds the command's flag and its collaborators.
type RootOptions struct {
	Courses bool

	// ConfigPath overrides config.ResolvePath (for testing).
	ConfigPath string
	// Connect overrides ConnectGoogle (for testing).
	Connect Connector
	// RunIDs overrides the UUIDv7 run id generator (for testing).
	RunIDs engine.RunIDGenerator
	// Now overrides the wall clock (for testing).
	Now func() time.Time
}

// NewRootCommand creates the classprep command.
func NewRootCommand() *cobra.Command {
	return NewRootCommandWithOptions(&RootOptions{})
}

// NewRootCommandWithOptions creates the classprep command around opts.
func NewRootCommandWithOptions(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classprep",
		Short: "Prepare tomorrow's classroom assignments",
		Long: `Copy each template document, create a scheduled draft assignment for
it, and remove the copies and assignments made by the previous run.

Assignments are released at the configured time on the next school day.
Configuration is read from $CLASSPREP_CONFIG (default ./classprep.cue).

Example:
  classprep
  classprep --courses`,
		Args: func(cmd *cobra.Command, args []string) error {
			if err := cobra.NoArgs(cmd, args); err != nil {
				return WrapExitError(ExitCommandError, "invalid arguments", err)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoot(cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Courses, "courses", false, "list your courses and their ids, then exit")
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return WrapExitError(ExitCommandError, "invalid arguments", err)
	})

	return cmd
}

func runRoot(cmd *cobra.Command, opts *RootOptions) error {
	logger, err := newLogger(cmd.ErrOrStderr(), os.Getenv(EnvLogLevel))
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid environment", err)
	}
	slog.SetDefault(logger)

	path := opts.ConfigPath
	if path == "" {
		path = config.ResolvePath()
	}
	logger.Debug("loading config", "path", path)
	cfg, err := config.Load(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if !opts.Courses {
		if err := cfg.RequireProvisioning(); err != nil {
			return WrapExitError(ExitCommandError, "invalid config", err)
		}
	}
	if err := cfg.EnsureDataDir(); err != nil {
		return WrapExitError(ExitCommandError, "invalid config", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	st := openHistory(cfg.HistoryPath(), logger)
	if st != nil {
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Warn("error closing history ledger", "error", closeErr)
			}
		}()
	}

	if opts.Courses {
		return runCourses(ctx, cmd, opts, cfg, st, logger)
	}
	return runProvision(ctx, cmd, opts, cfg, st, logger)
}

// openHistory opens the run history ledger. The ledger is diagnostic, so a
// failure is logged and the run continues without it.
func openHistory(path string, logger *slog.Logger) *store.Store {
	st, err := store.Open(path)
	if err != nil {
		logger.Warn("history ledger unavailable", "path", path, "error", err)
		return nil
	}
	return st
}

func (o *RootOptions) connect() Connector {
	if o.Connect != nil {
		return o.Connect
	}
	return ConnectGoogle
}

func (o *RootOptions) runIDs() engine.RunIDGenerator {
	if o.RunIDs != nil {
		return o.RunIDs
	}
	return engine.UUIDv7Generator{}
}

func (o *RootOptions) now() func() time.Time {
	if o.Now != nil {
		return o.Now
	}
	return time.Now
}
