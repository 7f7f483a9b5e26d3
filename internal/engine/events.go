package engine

// EventKind identifies a progress event.
type EventKind string

const (
	EventCleanupStarted    EventKind = "cleanup_started"
	EventCleanupFinished   EventKind = "cleanup_finished"
	EventFileCopied        EventKind = "file_copied"
	EventAssignmentCreated EventKind = "assignment_created"
	EventRolledBack        EventKind = "rolled_back"
	EventRecordSaved       EventKind = "record_saved"
)

// Event reports run progress to an Observer. Fields not relevant to the
// kind are left empty.
type Event struct {
	Kind         EventKind
	Template     string
	Name         string
	FileID       string
	AssignmentID string
	Count        int
}

// Observer receives progress events synchronously, in order.
type Observer func(Event)
