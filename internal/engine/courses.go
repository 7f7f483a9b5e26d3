package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/roach88/classprep/internal/model"
)

// ListCourses fetches the operator's courses. A failure is reported to sink
// (when non-nil) the same way a provisioning failure is.
func ListCourses(ctx context.Context, lister CourseLister, sink ErrorSink, runID string, logger *slog.Logger) ([]model.Course, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("run_id", runID)

	if sink != nil {
		if serr := sink.Reset(); serr != nil {
			logger.Warn("could not reset error-detail file", "error", serr)
		}
	}

	courses, err := lister.ListCourses(ctx)
	if err == nil {
		logger.Info("courses listed", "count", len(courses))
		return courses, nil
	}

	rerr := newRemoteError(ErrCodeRemoteCall, OpListCourses, "", err)
	logger.Error("remote call failed", "op", OpListCourses, "error", err)
	if sink != nil {
		if serr := sink.Report(failureFor(runID, rerr, time.Now())); serr != nil {
			logger.Warn("could not write error-detail file", "error", serr)
		}
	}
	return nil, rerr
}
