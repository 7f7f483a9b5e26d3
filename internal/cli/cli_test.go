package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/classprep/internal/config"
	"github.com/roach88/classprep/internal/engine"
	"github.com/roach88/classprep/internal/model"
	"github.com/roach88/classprep/internal/record"
	"github.com/roach88/classprep/internal/report"
	"github.com/roach88/classprep/internal/store"
	"github.com/roach88/classprep/internal/testutil"
)

// Monday 2026-10-19, before the 08:00 release.
var mondayMorning = time.Date(2026, 10, 19, 7, 0, 0, 0, time.UTC)

type testEnv struct {
	dir       string
	cfgPath   string
	dataDir   string
	errorFile string
	remote    *testutil.Remote
	clock     *testutil.FixedClock
	ids       *testutil.SeqIDGenerator
	connects  int
	connect   Connector
}

func newTestEnv(t *testing.T, body string) *testEnv {
	t.Helper()
	dir := t.TempDir()
	env := &testEnv{
		dir:       dir,
		cfgPath:   filepath.Join(dir, "classprep.cue"),
		dataDir:   filepath.Join(dir, "data"),
		errorFile: filepath.Join(dir, "classprep-error.json"),
		remote:    testutil.NewRemote(),
		clock:     testutil.NewFixedClock(mondayMorning),
		ids:       testutil.NewSeqIDGenerator("run"),
	}
	src := fmt.Sprintf("data_dir: %q\nerror_file: %q\ntimezone: \"UTC\"\n%s\n", env.dataDir, env.errorFile, body)
	require.NoError(t, os.WriteFile(env.cfgPath, []byte(src), 0o644))

	env.connect = func(_ context.Context, _ *config.Config, needDrive bool, _ io.Writer) (*Services, error) {
		env.connects++
		s := &Services{Coursework: env.remote.Classroom, Courses: env.remote.Classroom}
		if needDrive {
			s.Files = env.remote.Drive
		}
		return s, nil
	}
	return env
}

const provisionConfig = `course_id: "course-1"
templates: [
	{name: "Warm-up", source_file_id: "tmpl-warmup"},
	{name: "Exit Ticket", source_file_id: "tmpl-exit"},
]`

func (env *testEnv) execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd := NewRootCommandWithOptions(&RootOptions{
		ConfigPath: env.cfgPath,
		Connect:    env.connect,
		RunIDs:     env.ids,
		Now:        env.clock.Now,
	})
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func (env *testEnv) loadRecord(t *testing.T) *model.RunRecord {
	t.Helper()
	rec, err := record.NewFileStore(filepath.Join(env.dataDir, config.RecordFile)).Load()
	require.NoError(t, err)
	return rec
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "classprep", cmd.Use)
	assert.Empty(t, cmd.Commands(), "classprep has no subcommands")

	courses := cmd.Flags().Lookup("courses")
	require.NotNil(t, courses)
	assert.Equal(t, "false", courses.DefValue)
}

func TestProvision_FirstRun(t *testing.T) {
	env := newTestEnv(t, provisionConfig)
	env.remote.AddFile("tmpl-warmup", "Warm-up")
	env.remote.AddFile("tmpl-exit", "Exit Ticket")

	out, err := env.execute(t)
	require.NoError(t, err)
	assert.Equal(t, ExitSuccess, GetExitCode(err))

	assert.Contains(t, out, `I copied Warm-up to "Warm-up - Monday".`)
	assert.Contains(t, out, `I created the assignment "Exit Ticket - Monday".`)
	assert.Contains(t, out, "All set! 2 assignments are scheduled for Monday, October 19 at 8:00 AM.")
	assert.NotContains(t, out, "removing", "no record means no cleanup")

	rec := env.loadRecord(t)
	assert.Equal(t, []model.ResourcePair{
		{FileID: "f1", AssignmentID: "a1"},
		{FileID: "f2", AssignmentID: "a2"},
	}, rec.Pairs)
	assert.Equal(t, "run-1", rec.RunID)

	a, ok := env.remote.Assignment("a1")
	require.True(t, ok)
	assert.Equal(t, "course-1", a.CourseID)
	assert.True(t, a.Draft.ScheduledTime.Equal(time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)))

	_, statErr := os.Stat(env.errorFile)
	assert.True(t, os.IsNotExist(statErr), "no failures, no error-detail file")
}

func TestProvision_NextDayCleansUp(t *testing.T) {
	env := newTestEnv(t, provisionConfig)
	env.remote.AddFile("tmpl-warmup", "Warm-up")
	env.remote.AddFile("tmpl-exit", "Exit Ticket")

	_, err := env.execute(t)
	require.NoError(t, err)

	env.clock.Set(time.Date(2026, 10, 19, 15, 0, 0, 0, time.UTC))
	out, err := env.execute(t)
	require.NoError(t, err)

	assert.Contains(t, out, "First I'm removing the 2 old items from last time.")
	assert.Contains(t, out, "scheduled for Tuesday, October 20 at 8:00 AM.")
	assert.Equal(t, []string{"a3", "a4"}, env.remote.AssignmentIDs())
	assert.Equal(t, []string{"f3", "f4", "tmpl-exit", "tmpl-warmup"}, env.remote.FileIDs())

	rec := env.loadRecord(t)
	assert.Equal(t, []model.ResourcePair{
		{FileID: "f3", AssignmentID: "a3"},
		{FileID: "f4", AssignmentID: "a4"},
	}, rec.Pairs)
}

func TestProvision_CarriedForwardNamesErrorFile(t *testing.T) {
	env := newTestEnv(t, provisionConfig)
	env.remote.AddFile("tmpl-warmup", "Warm-up")
	env.remote.AddFile("tmpl-exit", "Exit Ticket")

	_, err := env.execute(t)
	require.NoError(t, err)

	env.remote.FailOn(testutil.OpDeleteFile, "f1")
	env.clock.Set(time.Date(2026, 10, 19, 15, 0, 0, 0, time.UTC))
	out, err := env.execute(t)
	require.NoError(t, err)

	assert.Contains(t, out, "I couldn't remove 1 item from last time; I'll try again tomorrow. The details are in "+env.errorFile+".")

	failures, rerr := report.Read(env.errorFile)
	require.NoError(t, rerr)
	require.Len(t, failures, 1)
	assert.Equal(t, "delete_file", failures[0].Op)
	assert.Equal(t, "f1", failures[0].ResourceID)
}

func TestProvision_HistoryLedger(t *testing.T) {
	env := newTestEnv(t, provisionConfig)
	env.remote.AddFile("tmpl-warmup", "Warm-up")
	env.remote.AddFile("tmpl-exit", "Exit Ticket")

	_, err := env.execute(t)
	require.NoError(t, err)

	st, err := store.Open(filepath.Join(env.dataDir, config.HistoryFile))
	require.NoError(t, err)
	defer st.Close()

	runs, err := st.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].ID)
	assert.Equal(t, model.ModeProvision, runs[0].Mode)
	assert.Equal(t, model.OutcomeSucceeded, runs[0].Outcome)

	actions, err := st.ActionsForRun(context.Background(), "run-1")
	require.NoError(t, err)
	kinds := make([]string, len(actions))
	for i, a := range actions {
		kinds[i] = a.Kind
	}
	assert.Equal(t, []string{"copy_file", "create_assignment", "copy_file", "create_assignment"}, kinds)
}

func TestProvision_RemoteFailure(t *testing.T) {
	env := newTestEnv(t, provisionConfig)
	env.remote.AddFile("tmpl-warmup", "Warm-up")
	env.remote.AddFile("tmpl-exit", "Exit Ticket")
	env.remote.FailOn(testutil.OpCopyFile, "tmpl-exit")

	out, err := env.execute(t)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.True(t, engine.IsRemoteFailure(err))

	assert.Contains(t, out, "I removed the 1 item I had just made.")
	assert.Contains(t, out, "I wrote the details to "+env.errorFile)

	failures, rerr := report.Read(env.errorFile)
	require.NoError(t, rerr)
	require.Len(t, failures, 1)
	assert.Equal(t, "copy_file", failures[0].Op)
	assert.Equal(t, 500, failures[0].StatusCode)

	assert.Empty(t, env.remote.AssignmentIDs())
	_, statErr := os.Stat(filepath.Join(env.dataDir, config.RecordFile))
	assert.True(t, os.IsNotExist(statErr), "record untouched when nothing was recorded before")
}

func TestProvision_AuthFailure(t *testing.T) {
	env := newTestEnv(t, provisionConfig)
	env.connect = func(context.Context, *config.Config, bool, io.Writer) (*Services, error) {
		return nil, engine.NewAuthError(model.ServiceClassroom, errors.New("no credentials: read client secret"))
	}

	out, err := env.execute(t)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.True(t, engine.IsAuthFailure(err))
	assert.Contains(t, out, "I can't find your Google credentials")
	assert.Contains(t, out, env.dataDir)

	_, statErr := os.Stat(env.errorFile)
	assert.True(t, os.IsNotExist(statErr), "auth failures never write the error-detail file")
}

func TestProvision_CorruptRecord(t *testing.T) {
	env := newTestEnv(t, provisionConfig)
	require.NoError(t, os.MkdirAll(env.dataDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(env.dataDir, config.RecordFile), []byte("{not json"), 0o644))

	out, err := env.execute(t)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.True(t, engine.IsRecordCorruption(err))
	assert.Contains(t, out, "I can't read my notes from last time")
	assert.Empty(t, env.remote.Calls())
}

func TestProvision_RequiresCourseAndTemplates(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing course", `templates: [{name: "A", source_file_id: "x"}]`},
		{"missing templates", `course_id: "course-1"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, tt.body)
			_, err := env.execute(t)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Zero(t, env.connects, "config errors stop before authorization")
		})
	}
}

func TestConfigErrors(t *testing.T) {
	env := newTestEnv(t, provisionConfig)
	require.NoError(t, os.WriteFile(env.cfgPath, []byte(`course_id: 12`), 0o644))

	_, err := env.execute(t)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	env.cfgPath = filepath.Join(env.dir, "missing.cue")
	_, err = env.execute(t)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestInvalidLogLevel(t *testing.T) {
	t.Setenv(EnvLogLevel, "loud")
	env := newTestEnv(t, provisionConfig)

	_, err := env.execute(t)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), EnvLogLevel)
}

func TestInvalidArguments(t *testing.T) {
	env := newTestEnv(t, provisionConfig)

	_, err := env.execute(t, "--verbose")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = env.execute(t, "extra")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestCourses(t *testing.T) {
	// Course listing works before a course is configured.
	env := newTestEnv(t, "")
	env.remote.AddCourse("111", "Algebra I")
	env.remote.AddCourse("222", "Geometry")

	out, err := env.execute(t, "--courses")
	require.NoError(t, err)
	assert.Equal(t, "Algebra I: 111\nGeometry: 222\n", out)
	assert.Equal(t, []testutil.Call{{Op: testutil.OpListCourses, Target: ""}}, env.remote.Calls())

	st, err := store.Open(filepath.Join(env.dataDir, config.HistoryFile))
	require.NoError(t, err)
	defer st.Close()
	runs, err := st.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.ModeCourses, runs[0].Mode)
	assert.Equal(t, model.OutcomeSucceeded, runs[0].Outcome)
}

func TestCourses_Empty(t *testing.T) {
	env := newTestEnv(t, "")

	out, err := env.execute(t, "--courses")
	require.NoError(t, err)
	assert.Equal(t, "No courses found.\n", out)
}

func TestCourses_Failure(t *testing.T) {
	env := newTestEnv(t, "")
	env.remote.FailOn(testutil.OpListCourses, "")

	out, err := env.execute(t, "--courses")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, env.errorFile)

	failures, rerr := report.Read(env.errorFile)
	require.NoError(t, rerr)
	require.Len(t, failures, 1)
	assert.Equal(t, "list_courses", failures[0].Op)
}
