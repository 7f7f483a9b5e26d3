package google

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/api/classroom/v1"
	"google.golang.org/api/option"

	"github.com/roach88/classprep/internal/model"
)

// ClassroomScopes allow managing student coursework and reading courses.
var ClassroomScopes = []string{
	classroom.ClassroomCourseworkStudentsScope,
	classroom.ClassroomCoursesReadonlyScope,
}

// Coursework field values used for every created assignment.
const (
	workTypeAssignment = "ASSIGNMENT"
	stateDraft         = "DRAFT"
	assigneeAll        = "ALL_STUDENTS"
)

const coursesPageSize = 100

// Classroom creates and deletes coursework and lists courses.
type Classroom struct {
	svc *classroom.Service
}

// NewClassroom creates a Classroom client.
func NewClassroom(ctx context.Context, opts ...option.ClientOption) (*Classroom, error) {
	svc, err := classroom.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create classroom service: %w", err)
	}
	return &Classroom{svc: svc}, nil
}

// NewCoursework builds the draft coursework published at draft.ScheduledTime
// with the copied file attached.
func NewCoursework(draft model.AssignmentDraft) *classroom.CourseWork {
	return &classroom.CourseWork{
		Title: draft.Title,
		Materials: []*classroom.Material{{
			DriveFile: &classroom.SharedDriveFile{
				DriveFile: &classroom.DriveFile{Id: draft.FileID, Title: draft.Title},
			},
		}},
		WorkType:                workTypeAssignment,
		State:                   stateDraft,
		AssigneeMode:            assigneeAll,
		ScheduledTime:           draft.ScheduledTime.Format(time.RFC3339),
		AssociatedWithDeveloper: true,
	}
}

// CreateAssignment creates draft coursework and returns its id.
func (c *Classroom) CreateAssignment(ctx context.Context, courseID string, draft model.AssignmentDraft) (string, error) {
	cw, err := c.svc.Courses.CourseWork.Create(courseID, NewCoursework(draft)).
		Context(ctx).
		Do()
	if err != nil {
		return "", remoteError(model.ServiceClassroom, "create_assignment", draft.FileID, err)
	}
	if cw.Id == "" {
		return "", remoteError(model.ServiceClassroom, "create_assignment", draft.FileID, fmt.Errorf("create returned no coursework id"))
	}
	return cw.Id, nil
}

// DeleteAssignment deletes coursework created by this application.
func (c *Classroom) DeleteAssignment(ctx context.Context, courseID, assignmentID string) error {
	_, err := c.svc.Courses.CourseWork.Delete(courseID, assignmentID).
		Context(ctx).
		Do()
	if err != nil {
		return remoteError(model.ServiceClassroom, "delete_assignment", assignmentID, err)
	}
	return nil
}

// ListCourses returns every course visible to the operator, following
// pagination.
func (c *Classroom) ListCourses(ctx context.Context) ([]model.Course, error) {
	courses := []model.Course{}
	err := c.svc.Courses.List().
		PageSize(coursesPageSize).
		Pages(ctx, func(resp *classroom.ListCoursesResponse) error {
			for _, course := range resp.Courses {
				courses = append(courses, model.Course{ID: course.Id, Name: course.Name})
			}
			return nil
		})
	if err != nil {
		return nil, remoteError(model.ServiceClassroom, "list_courses", "", err)
	}
	return courses, nil
}
