package model

import "time"

// AssignmentTemplate is a source file copied fresh on every run.
type AssignmentTemplate struct {
	Name         string `json:"name" yaml:"name"`
	SourceFileID string `json:"source_file_id" yaml:"source_file_id"`
}

// ResourcePair links a copied file to the assignment that references it.
//
// AssignmentID is empty when the assignment was already deleted but the
// file survived a failed deletion; such pairs are carried forward so the
// next cleanup retries the file.
type ResourcePair struct {
	FileID       string `json:"file_id" yaml:"file_id"`
	AssignmentID string `json:"assignment_id,omitempty" yaml:"assignment_id,omitempty"`
}

// RunRecord is the persisted set of pairs a run left behind.
type RunRecord struct {
	Version      int            `json:"version"`
	RunID        string         `json:"run_id,omitempty"`
	ScheduledFor time.Time      `json:"scheduled_for,omitzero"`
	SavedAt      time.Time      `json:"saved_at,omitzero"`
	Pairs        []ResourcePair `json:"pairs"`
}

// Len returns the number of recorded pairs.
func (r *RunRecord) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Pairs)
}

// Course is a classroom course visible to the operator.
type Course struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// AssignmentDraft is everything needed to create one scheduled assignment.
// Assignments are always created as drafts visible to all students with the
// copied file as their only material.
type AssignmentDraft struct {
	Title         string    `json:"title"`
	FileID        string    `json:"file_id"`
	ScheduledTime time.Time `json:"scheduled_time"`
}
