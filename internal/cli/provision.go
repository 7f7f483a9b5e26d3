package cli

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/classprep/internal/config"
	"github.com/roach88/classprep/internal/engine"
	"github.com/roach88/classprep/internal/record"
	"github.com/roach88/classprep/internal/report"
	"github.com/roach88/classprep/internal/store"
)

// runProvision cleans up the previous run and provisions the next day.
func runProvision(ctx context.Context, cmd *cobra.Command, opts *RootOptions, cfg *config.Config, st *store.Store, logger *slog.Logger) error {
	say := narrator{w: cmd.OutOrStdout()}

	services, err := opts.connect()(ctx, cfg, true, cmd.OutOrStdout())
	if err != nil {
		return connectFailed(say, cfg, err)
	}

	sink := report.NewFileSink(cfg.ErrorFile)
	records := record.NewFileStore(cfg.RecordPath())

	engOpts := []engine.Option{
		engine.WithObserver(say.observe),
		engine.WithLogger(logger),
		engine.WithRunIDGenerator(opts.runIDs()),
		engine.WithNow(opts.now()),
	}
	if st != nil {
		engOpts = append(engOpts, engine.WithJournal(st))
	}

	eng := engine.New(engine.Config{
		CourseID:  cfg.CourseID,
		Templates: cfg.Templates,
		Release:   cfg.Release(),
		Location:  cfg.Location(),
	}, services.Files, services.Coursework, records, sink, engOpts...)

	res, err := eng.Run(ctx)
	if err != nil {
		switch {
		case engine.IsRecordCorruption(err):
			say.corrupt(records.Path())
		case sink.Count() > 0:
			say.failed(sink.Path())
		default:
			say.problem(err)
		}
		return WrapExitError(ExitFailure, "run failed", err)
	}

	say.provisioned(res, sink.Path())
	return nil
}

// connectFailed narrates a failed authorization and maps it to an exit code.
func connectFailed(say narrator, cfg *config.Config, err error) error {
	if engine.IsAuthFailure(err) {
		say.noCredentials(cfg.DataDir)
		return WrapExitError(ExitFailure, "authorization failed", err)
	}
	say.problem(err)
	return WrapExitError(ExitFailure, "failed to connect to google", err)
}
