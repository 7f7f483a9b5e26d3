package cli

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/classprep/internal/config"
	"github.com/roach88/classprep/internal/engine"
	"github.com/roach88/classprep/internal/model"
	"github.com/roach88/classprep/internal/report"
	"github.com/roach88/classprep/internal/store"
)

// runCourses prints the operator's course ids so one can be configured.
// It needs Classroom access only.
func runCourses(ctx context.Context, cmd *cobra.Command, opts *RootOptions, cfg *config.Config, st *store.Store, logger *slog.Logger) error {
	say := narrator{w: cmd.OutOrStdout()}

	services, err := opts.connect()(ctx, cfg, false, cmd.OutOrStdout())
	if err != nil {
		return connectFailed(say, cfg, err)
	}

	now := opts.now()
	entry := model.RunEntry{
		ID:        opts.runIDs().Generate(),
		Mode:      model.ModeCourses,
		StartedAt: now().UTC(),
		Outcome:   model.OutcomeRunning,
	}
	if st != nil {
		if err := st.StartRun(ctx, entry); err != nil {
			logger.Warn("history ledger unavailable", "error", err)
		}
	}

	sink := report.NewFileSink(cfg.ErrorFile)
	courses, err := engine.ListCourses(ctx, services.Courses, sink, entry.ID, logger)

	entry.FinishedAt = now().UTC()
	entry.Outcome = model.OutcomeSucceeded
	if err != nil {
		entry.Outcome = model.OutcomeFailed
		entry.Error = err.Error()
	}
	if st != nil {
		if jerr := st.FinishRun(ctx, entry); jerr != nil {
			logger.Warn("history ledger unavailable", "error", jerr)
		}
	}

	if err != nil {
		say.failed(sink.Path())
		return WrapExitError(ExitFailure, "failed to list courses", err)
	}
	say.courses(courses)
	return nil
}
