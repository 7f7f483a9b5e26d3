package testutil

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/roach88/classprep/internal/model"
)

// Operation names recorded in the call log. They match the engine's op names.
const (
	OpCopyFile         = "copy_file"
	OpDeleteFile       = "delete_file"
	OpCreateAssignment = "create_assignment"
	OpDeleteAssignment = "delete_assignment"
	OpListCourses      = "list_courses"
)

// Call is one recorded remote call.
type Call struct {
	Op     string `json:"op" yaml:"op"`
	Target string `json:"target" yaml:"target"`
	Failed bool   `json:"failed,omitempty" yaml:"failed,omitempty"`
}

// Assignment is a coursework item held by FakeClassroom.
type Assignment struct {
	CourseID string
	Draft    model.AssignmentDraft
}

// Remote is an in-memory drive and classroom sharing one call log.
//
// Failures are injected per (op, target); target is the resource id, the
// source file id, or the title/name passed to the call. The classroom side
// refuses to attach a file the drive side does not hold, so tests observe
// the same dangling-reference errors the real services return.
type Remote struct {
	mu          sync.Mutex
	calls       []Call
	files       map[string]string
	assignments map[string]Assignment
	courses     []model.Course
	failures    map[string]error
	nextFile    int
	nextAssign  int

	Drive     *FakeDrive
	Classroom *FakeClassroom
}

// FakeDrive implements engine.FileService against a Remote.
type FakeDrive struct{ r *Remote }

// FakeClassroom implements engine.CourseworkService and engine.CourseLister.
type FakeClassroom struct{ r *Remote }

// NewRemote creates an empty fake. New file ids are "f1", "f2", ...; new
// assignment ids are "a1", "a2", ...
func NewRemote() *Remote {
	r := &Remote{
		files:       make(map[string]string),
		assignments: make(map[string]Assignment),
		failures:    make(map[string]error),
	}
	r.Drive = &FakeDrive{r: r}
	r.Classroom = &FakeClassroom{r: r}
	return r
}

// AddFile seeds a drive file (typically a template).
func (r *Remote) AddFile(id, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.files[id] = name
}

// AddAssignment seeds an assignment, e.g. one left by a previous run.
func (r *Remote) AddAssignment(id, courseID string, draft model.AssignmentDraft) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assignments[id] = Assignment{CourseID: courseID, Draft: draft}
}

// AddCourse seeds a course for ListCourses.
func (r *Remote) AddCourse(id, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.courses = append(r.courses, model.Course{ID: id, Name: name})
}

// FailOn makes every call of op on target fail with a 500 remote error.
func (r *Remote) FailOn(op, target string) {
	r.FailWith(op, target, RemoteFailure(serviceFor(op), op, target, 500, "backendError"))
}

// FailWith makes every call of op on target fail with err.
func (r *Remote) FailWith(op, target string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[op+"\x00"+target] = err
}

// ClearFailure removes an injected failure.
func (r *Remote) ClearFailure(op, target string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.failures, op+"\x00"+target)
}

// Calls returns a copy of the call log.
func (r *Remote) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// CallCount returns the number of recorded calls.
func (r *Remote) CallCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

// HasFile reports whether the drive holds id.
func (r *Remote) HasFile(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.files[id]
	return ok
}

// FileName returns the name of a drive file.
func (r *Remote) FileName(id string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.files[id]
}

// FileIDs returns all drive file ids, sorted.
func (r *Remote) FileIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return sortedKeys(r.files)
}

// Assignment returns an assignment by id.
func (r *Remote) Assignment(id string) (Assignment, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.assignments[id]
	return a, ok
}

// AssignmentIDs returns all assignment ids, sorted.
func (r *Remote) AssignmentIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return sortedKeys(r.assignments)
}

// call records a call and returns the injected failure for it, if any.
// Callers hold r.mu.
func (r *Remote) call(op string, targets ...string) error {
	for _, t := range targets {
		if err, ok := r.failures[op+"\x00"+t]; ok {
			r.calls = append(r.calls, Call{Op: op, Target: targets[0], Failed: true})
			return err
		}
	}
	r.calls = append(r.calls, Call{Op: op, Target: targets[0]})
	return nil
}

func (r *Remote) notFound(op, id string) error {
	n := len(r.calls)
	r.calls[n-1].Failed = true
	return RemoteFailure(serviceFor(op), op, id, 404, "notFound")
}

// CopyFile copies a drive file under a new name.
func (d *FakeDrive) CopyFile(_ context.Context, sourceFileID, name string) (string, error) {
	r := d.r
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.call(OpCopyFile, sourceFileID, name); err != nil {
		return "", err
	}
	if _, ok := r.files[sourceFileID]; !ok {
		return "", r.notFound(OpCopyFile, sourceFileID)
	}
	r.nextFile++
	id := fmt.Sprintf("f%d", r.nextFile)
	r.files[id] = name
	return id, nil
}

// DeleteFile deletes a drive file.
func (d *FakeDrive) DeleteFile(_ context.Context, fileID string) error {
	r := d.r
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.call(OpDeleteFile, fileID); err != nil {
		return err
	}
	if _, ok := r.files[fileID]; !ok {
		return r.notFound(OpDeleteFile, fileID)
	}
	delete(r.files, fileID)
	return nil
}

// CreateAssignment creates a coursework item attached to a drive file.
func (c *FakeClassroom) CreateAssignment(_ context.Context, courseID string, draft model.AssignmentDraft) (string, error) {
	r := c.r
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.call(OpCreateAssignment, draft.Title, draft.FileID); err != nil {
		return "", err
	}
	if _, ok := r.files[draft.FileID]; !ok {
		r.calls[len(r.calls)-1].Failed = true
		return "", RemoteFailure("classroom", OpCreateAssignment, draft.FileID, 400, "invalidArgument")
	}
	r.nextAssign++
	id := fmt.Sprintf("a%d", r.nextAssign)
	r.assignments[id] = Assignment{CourseID: courseID, Draft: draft}
	return id, nil
}

// DeleteAssignment deletes a coursework item.
func (c *FakeClassroom) DeleteAssignment(_ context.Context, courseID, assignmentID string) error {
	r := c.r
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.call(OpDeleteAssignment, assignmentID); err != nil {
		return err
	}
	a, ok := r.assignments[assignmentID]
	if !ok || a.CourseID != courseID {
		return r.notFound(OpDeleteAssignment, assignmentID)
	}
	delete(r.assignments, assignmentID)
	return nil
}

// ListCourses returns the seeded courses.
func (c *FakeClassroom) ListCourses(_ context.Context) ([]model.Course, error) {
	r := c.r
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.call(OpListCourses, ""); err != nil {
		return nil, err
	}
	return append([]model.Course(nil), r.courses...), nil
}

// RemoteFailure builds a RemoteError shaped like a Google API error body.
func RemoteFailure(service, op, resourceID string, status int, reason string) error {
	body := map[string]any{
		"error": map[string]any{
			"code":    status,
			"message": reason,
			"errors":  []map[string]string{{"reason": reason}},
		},
	}
	payload, _ := json.Marshal(body)
	return &model.RemoteError{
		Service:    service,
		Op:         op,
		ResourceID: resourceID,
		StatusCode: status,
		Payload:    payload,
		Err:        errors.New(reason),
	}
}

func serviceFor(op string) string {
	switch op {
	case OpCopyFile, OpDeleteFile:
		return model.ServiceDrive
	default:
		return model.ServiceClassroom
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
