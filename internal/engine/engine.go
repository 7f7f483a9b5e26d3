package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/classprep/internal/model"
	"github.com/roach88/classprep/internal/record"
	"github.com/roach88/classprep/internal/schedule"
)

// Remote operation names, used in logs, the ledger and the error-detail file.
const (
	OpCopyFile         = "copy_file"
	OpDeleteFile       = "delete_file"
	OpCreateAssignment = "create_assignment"
	OpDeleteAssignment = "delete_assignment"
	OpListCourses      = "list_courses"
)

// FileService is the cloud drive collaborator.
type FileService interface {
	CopyFile(ctx context.Context, sourceFileID, name string) (string, error)
	DeleteFile(ctx context.Context, fileID string) error
}

// CourseworkService is the classroom collaborator.
type CourseworkService interface {
	CreateAssignment(ctx context.Context, courseID string, draft model.AssignmentDraft) (string, error)
	DeleteAssignment(ctx context.Context, courseID, assignmentID string) error
}

// CourseLister lists the operator's courses.
type CourseLister interface {
	ListCourses(ctx context.Context) ([]model.Course, error)
}

// RecordStore persists the RunRecord between invocations.
// Load must return record.ErrNotFound when there is no record and an error
// wrapping record.ErrCorrupt when the record cannot be trusted.
type RecordStore interface {
	Exists() bool
	Load() (*model.RunRecord, error)
	Save(rec *model.RunRecord) error
}

// ErrorSink receives the structured payload of every remote failure.
type ErrorSink interface {
	Reset() error
	Report(f model.Failure) error
}

// Journal is the optional run history ledger. Journal errors are logged and
// never change a run's outcome.
type Journal interface {
	StartRun(ctx context.Context, run model.RunEntry) error
	RecordAction(ctx context.Context, action model.ActionEntry) error
	FinishRun(ctx context.Context, run model.RunEntry) error
}

// Config is the engine's explicit configuration, built once at startup.
type Config struct {
	CourseID  string
	Templates []model.AssignmentTemplate
	Release   schedule.Clock
	Location  *time.Location
}

// Result summarizes what a run did. It is populated as far as the run got,
// even when Run returns an error.
type Result struct {
	RunID        string
	ScheduledFor time.Time

	// HadRecord is true when a previous run's record was found.
	HadRecord bool

	// Cleaned are the previous run's pairs that were fully deleted.
	Cleaned []model.ResourcePair

	// CarriedForward are pairs (or lone files) that could not be deleted and
	// stay in the record for the next run.
	CarriedForward []model.ResourcePair

	// Created are the pairs provisioned by this run. Empty after a rollback.
	Created []model.ResourcePair

	// RolledBack are the pairs (or lone files) deleted by a rollback.
	RolledBack []model.ResourcePair

	// Failures counts every failure reported to the error sink.
	Failures int
}

// Engine runs the two-phase cleanup and provisioning protocol.
type Engine struct {
	cfg        Config
	files      FileService
	coursework CourseworkService
	records    RecordStore
	sink       ErrorSink
	journal    Journal
	observer   Observer
	ids        RunIDGenerator
	now        func() time.Time
	logger     *slog.Logger
}

// Option allows configuration of optional engine collaborators.
type Option func(*Engine)

// WithJournal records every run and remote call in a history ledger.
func WithJournal(j Journal) Option {
	return func(e *Engine) {
		e.journal = j
	}
}

// WithObserver receives progress events as the run advances.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		e.observer = o
	}
}

// WithRunIDGenerator overrides the UUIDv7 run id generator (for testing).
func WithRunIDGenerator(g RunIDGenerator) Option {
	return func(e *Engine) {
		e.ids = g
	}
}

// WithNow overrides the wall clock (for testing).
func WithNow(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// New creates an Engine.
//
// The templates slice is copied so later mutation by the caller cannot
// change the provisioning order.
func New(
	cfg Config,
	files FileService,
	coursework CourseworkService,
	records RecordStore,
	sink ErrorSink,
	opts ...Option,
) *Engine {
	templates := make([]model.AssignmentTemplate, len(cfg.Templates))
	copy(templates, cfg.Templates)
	cfg.Templates = templates
	if cfg.Location == nil {
		cfg.Location = time.Local
	}

	e := &Engine{
		cfg:        cfg,
		files:      files,
		coursework: coursework,
		records:    records,
		sink:       sink,
		ids:        UUIDv7Generator{},
		now:        time.Now,
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// DailyName is the title shared by a day's copied file and its assignment.
// The template name is NFC-normalized so titles compare equal in the
// classroom UI regardless of how the name was typed.
func DailyName(templateName string, scheduled time.Time) string {
	return norm.NFC.String(templateName) + " - " + schedule.WeekdayName(scheduled)
}

// run is the state of a single invocation.
type run struct {
	id     string
	clock  *Clock
	logger *slog.Logger
	result *Result
}

// Run executes Phase A (cleanup of the previous record) followed by Phase B
// (provisioning of the next day's pairs).
//
// A nil error means every template was provisioned and the record now names
// the new pairs. A non-nil error wraps a *RunError.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	startedAt := e.now()
	scheduled := schedule.NextRelease(startedAt.In(e.cfg.Location), e.cfg.Release)

	r := &run{
		id:    e.ids.Generate(),
		clock: NewClock(),
		result: &Result{
			ScheduledFor: scheduled,
		},
	}
	r.result.RunID = r.id
	r.logger = e.logger.With("run_id", r.id)

	entry := model.RunEntry{
		ID:           r.id,
		Mode:         model.ModeProvision,
		StartedAt:    startedAt.UTC(),
		ScheduledFor: scheduled,
		Outcome:      model.OutcomeRunning,
	}
	if e.journal != nil {
		if err := e.journal.StartRun(ctx, entry); err != nil {
			r.logger.Warn("history ledger unavailable", "error", err)
		}
	}

	r.logger.Info("run starting", "scheduled_for", scheduled.Format(time.RFC3339), "templates", len(e.cfg.Templates))
	err := e.execute(ctx, r)

	entry.FinishedAt = e.now().UTC()
	entry.Outcome = model.OutcomeSucceeded
	if err != nil {
		entry.Outcome = model.OutcomeFailed
		entry.Error = err.Error()
		r.logger.Error("run failed", "error", err, "failures", r.result.Failures)
	} else {
		r.logger.Info("run finished", "created", len(r.result.Created), "carried_forward", len(r.result.CarriedForward))
	}
	if e.journal != nil {
		if jerr := e.journal.FinishRun(ctx, entry); jerr != nil {
			r.logger.Warn("history ledger unavailable", "error", jerr)
		}
	}

	return r.result, err
}

func (e *Engine) execute(ctx context.Context, r *run) error {
	prev, err := e.loadRecord()
	if err != nil {
		return err
	}

	if e.sink != nil {
		if err := e.sink.Reset(); err != nil {
			r.logger.Warn("could not reset error-detail file", "error", err)
		}
	}

	// Phase A
	if prev != nil {
		r.result.HadRecord = true
		e.notify(Event{Kind: EventCleanupStarted, Count: prev.Len()})

		cleaned, survivors := e.cleanup(ctx, r, prev.Pairs)
		r.result.Cleaned = cleaned
		r.result.CarriedForward = survivors

		// Checkpoint so the store never names resources Phase A deleted.
		if err := e.saveRecord(r, survivors); err != nil {
			return err
		}
		e.notify(Event{Kind: EventCleanupFinished, Count: len(cleaned)})
	}

	// Phase B
	return e.provision(ctx, r)
}

// loadRecord returns the previous record, or nil if there is none.
func (e *Engine) loadRecord() (*model.RunRecord, error) {
	if !e.records.Exists() {
		return nil, nil
	}
	prev, err := e.records.Load()
	switch {
	case errors.Is(err, record.ErrNotFound):
		return nil, nil
	case err != nil:
		return nil, newRecordError(ErrCodeRecordCorruption, "load", err)
	}
	return prev, nil
}

func (e *Engine) saveRecord(r *run, pairs []model.ResourcePair) error {
	rec := &model.RunRecord{
		RunID:        r.id,
		ScheduledFor: r.result.ScheduledFor,
		Pairs:        append([]model.ResourcePair{}, pairs...),
	}
	if err := e.records.Save(rec); err != nil {
		return newRecordError(ErrCodeRecordWrite, "save", err)
	}
	r.logger.Debug("run record saved", "pairs", len(pairs))
	return nil
}

// cleanup deletes each pair's assignment and then its file, continuing past
// failures. It returns the fully deleted pairs and the survivors to carry
// forward. A failed assignment deletion keeps the whole pair, since the
// assignment still references the file.
func (e *Engine) cleanup(ctx context.Context, r *run, pairs []model.ResourcePair) (cleaned, survivors []model.ResourcePair) {
	for _, p := range pairs {
		if p.AssignmentID != "" {
			err := alreadyGone(r, OpDeleteAssignment, p.AssignmentID,
				e.coursework.DeleteAssignment(ctx, e.cfg.CourseID, p.AssignmentID))
			e.journalAction(ctx, r, OpDeleteAssignment, p.AssignmentID, "", err)
			if err != nil {
				e.report(r, ErrCodeCleanup, OpDeleteAssignment, p.AssignmentID, err)
				survivors = append(survivors, p)
				continue
			}
		}

		err := alreadyGone(r, OpDeleteFile, p.FileID, e.files.DeleteFile(ctx, p.FileID))
		e.journalAction(ctx, r, OpDeleteFile, p.FileID, "", err)
		if err != nil {
			e.report(r, ErrCodeCleanup, OpDeleteFile, p.FileID, err)
			survivors = append(survivors, model.ResourcePair{FileID: p.FileID})
			continue
		}

		r.logger.Debug("pair deleted", "file_id", p.FileID, "assignment_id", p.AssignmentID)
		cleaned = append(cleaned, p)
	}
	return cleaned, survivors
}

// alreadyGone treats a delete of a resource that no longer exists as done,
// so a record naming deleted resources is cleared instead of carried forward.
func alreadyGone(r *run, op, resourceID string, err error) error {
	if err != nil && model.IsNotFound(err) {
		r.logger.Info("resource already deleted", "op", op, "resource_id", resourceID)
		return nil
	}
	return err
}

// provision creates one pair per template. The first failure rolls back
// everything created so far and aborts.
func (e *Engine) provision(ctx context.Context, r *run) error {
	scheduled := r.result.ScheduledFor
	var created []model.ResourcePair

	for _, tmpl := range e.cfg.Templates {
		name := DailyName(tmpl.Name, scheduled)
		log := r.logger.With("template", tmpl.Name)

		fileID, err := e.files.CopyFile(ctx, tmpl.SourceFileID, name)
		e.journalAction(ctx, r, OpCopyFile, tmpl.SourceFileID, name, err)
		if err != nil {
			cause := e.report(r, ErrCodeRemoteCall, OpCopyFile, tmpl.SourceFileID, err)
			return e.abort(ctx, r, created, cause)
		}
		log.Debug("file copied", "file_id", fileID, "name", name)
		e.notify(Event{Kind: EventFileCopied, Template: tmpl.Name, Name: name, FileID: fileID})

		assignmentID, err := e.coursework.CreateAssignment(ctx, e.cfg.CourseID, model.AssignmentDraft{
			Title:         name,
			FileID:        fileID,
			ScheduledTime: scheduled,
		})
		e.journalAction(ctx, r, OpCreateAssignment, fileID, name, err)
		if err != nil {
			cause := e.report(r, ErrCodeRemoteCall, OpCreateAssignment, fileID, err)
			// The file has no assignment yet; roll it back with the rest.
			return e.abort(ctx, r, append(created, model.ResourcePair{FileID: fileID}), cause)
		}
		log.Debug("assignment created", "assignment_id", assignmentID, "file_id", fileID)
		e.notify(Event{Kind: EventAssignmentCreated, Template: tmpl.Name, Name: name, FileID: fileID, AssignmentID: assignmentID})

		created = append(created, model.ResourcePair{FileID: fileID, AssignmentID: assignmentID})
	}

	pairs := append(append([]model.ResourcePair{}, r.result.CarriedForward...), created...)
	if err := e.saveRecord(r, pairs); err != nil {
		// Unrecorded resources would be orphaned; remove them instead.
		return e.abort(ctx, r, created, err)
	}
	r.result.Created = created
	e.notify(Event{Kind: EventRecordSaved, Count: len(pairs)})
	return nil
}

// abort rolls back the resources created by this Phase B and leaves the
// record naming exactly what still exists. It returns cause.
func (e *Engine) abort(ctx context.Context, r *run, created []model.ResourcePair, cause error) error {
	if len(created) > 0 {
		r.logger.Warn("rolling back provisioned resources", "count", len(created))
	}
	rolledBack, survivors := e.cleanup(ctx, r, created)
	r.result.RolledBack = rolledBack
	e.notify(Event{Kind: EventRolledBack, Count: len(rolledBack)})

	if len(survivors) == 0 && !r.result.HadRecord {
		// Nothing to remember and nothing was recorded before: leave the
		// store untouched.
		return cause
	}

	r.result.CarriedForward = append(r.result.CarriedForward, survivors...)
	if err := e.saveRecord(r, r.result.CarriedForward); err != nil {
		r.logger.Error("resources left without a record",
			"pairs", fmt.Sprint(r.result.CarriedForward), "error", err)
		return errors.Join(cause, err)
	}
	return cause
}

// report records a failure with the error sink and returns it as a RunError.
func (e *Engine) report(r *run, code ErrorCode, op, resourceID string, err error) *RunError {
	rerr := newRemoteError(code, op, resourceID, err)
	r.result.Failures++

	level := slog.LevelError
	if code == ErrCodeCleanup {
		level = slog.LevelWarn
	}
	r.logger.Log(context.Background(), level, "remote call failed", "op", op, "resource_id", resourceID, "error", err)

	if e.sink == nil {
		return rerr
	}
	if serr := e.sink.Report(failureFor(r.id, rerr, e.now())); serr != nil {
		r.logger.Warn("could not write error-detail file", "error", serr)
	}
	return rerr
}

func (e *Engine) journalAction(ctx context.Context, r *run, kind, resourceID, name string, err error) {
	if e.journal == nil {
		return
	}
	action := model.ActionEntry{
		RunID:      r.id,
		Seq:        r.clock.Next(),
		Kind:       kind,
		ResourceID: resourceID,
		Name:       name,
		Outcome:    model.OutcomeSucceeded,
	}
	if err != nil {
		action.Outcome = model.OutcomeFailed
		action.Error = err.Error()
	}
	if jerr := e.journal.RecordAction(ctx, action); jerr != nil {
		r.logger.Warn("history ledger unavailable", "error", jerr)
	}
}

func (e *Engine) notify(ev Event) {
	if e.observer != nil {
		e.observer(ev)
	}
}
