package model

import (
	"fmt"
	"time"
)

// Event is the single record type of the calendar. It plays three roles,
// distinguished by its recurrence fields:
//
//   - a parent (IsRecurring=true) defines a virtual series via RecurrenceRule
//   - an exception (ParentID set, IsException=true) overrides one occurrence
//     of its parent, matched by start time
//   - a standalone event has neither IsRecurring nor ParentID
//
// A fourth shape, the generated instance (ParentID set, IsException=false),
// only exists in memory: it is synthesized during expansion and never
// persisted.
type Event struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	StartTime   time.Time  `json:"startTime"`
	EndTime     *time.Time `json:"endTime,omitempty"`
	Category    string     `json:"category"`
	Color       string     `json:"color"`
	IsCompleted bool       `json:"isCompleted,omitempty"`
	IsAllDay    bool       `json:"isAllDay,omitempty"`

	// Recurrence role fields.
	RecurrenceRule string     `json:"recurrenceRule,omitempty"`
	RecurrenceEnd  *time.Time `json:"recurrenceEnd,omitempty"`
	ParentID       string     `json:"parentId,omitempty"`
	IsRecurring    bool       `json:"isRecurring,omitempty"`
	IsException    bool       `json:"isException,omitempty"`
	IsSkipped      bool       `json:"isSkipped,omitempty"`

	// Project-management payload. Opaque to the expansion engine; carried
	// through instance synthesis unmodified.
	Priority       string       `json:"priority,omitempty"`
	Status         string       `json:"status,omitempty"`
	Assignee       string       `json:"assignee,omitempty"`
	Project        string       `json:"project,omitempty"`
	Tags           []string     `json:"tags,omitempty"`
	EstimatedHours *int         `json:"estimatedHours,omitempty"`
	ActualHours    *int         `json:"actualHours,omitempty"`
	Dependencies   []string     `json:"dependencies,omitempty"`
	Subtasks       []Subtask    `json:"subtasks,omitempty"`
	Attachments    []Attachment `json:"attachments,omitempty"`
	Comments       []Comment    `json:"comments,omitempty"`
}

// Subtask is one checklist entry of a task event.
type Subtask struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

// Attachment is a named link carried by an event.
type Attachment struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	Type string `json:"type,omitempty"`
}

// Comment is a single discussion entry on an event.
type Comment struct {
	ID        string `json:"id"`
	Author    string `json:"author"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// InstanceID builds the deterministic id of a generated instance. Collision
// free as long as a parent never has two occurrences in the same millisecond.
func InstanceID(parentID string, start time.Time) string {
	return fmt.Sprintf("%s-%d", parentID, start.UnixMilli())
}

// IsGeneratedInstance reports whether the record is an ephemeral expansion
// product rather than raw data. Such records must never reach storage.
func (e Event) IsGeneratedInstance() bool {
	return e.ParentID != "" && !e.IsException
}

// IsStandalone reports whether the record has no recurrence relationship.
func (e Event) IsStandalone() bool {
	return !e.IsRecurring && e.ParentID == ""
}

// Duration returns EndTime-StartTime, or zero if the event has no end.
func (e Event) Duration() time.Duration {
	if e.EndTime == nil {
		return 0
	}
	return e.EndTime.Sub(e.StartTime)
}

// Clone returns a deep copy of the event, including its slice-valued payload
// fields. Instance synthesis starts from a clone of the parent so mutating a
// materialized instance can never leak into raw data.
func (e Event) Clone() Event {
	out := e
	if e.EndTime != nil {
		t := *e.EndTime
		out.EndTime = &t
	}
	if e.RecurrenceEnd != nil {
		t := *e.RecurrenceEnd
		out.RecurrenceEnd = &t
	}
	if e.EstimatedHours != nil {
		n := *e.EstimatedHours
		out.EstimatedHours = &n
	}
	if e.ActualHours != nil {
		n := *e.ActualHours
		out.ActualHours = &n
	}
	out.Tags = append([]string(nil), e.Tags...)
	out.Dependencies = append([]string(nil), e.Dependencies...)
	out.Subtasks = append([]Subtask(nil), e.Subtasks...)
	out.Attachments = append([]Attachment(nil), e.Attachments...)
	out.Comments = append([]Comment(nil), e.Comments...)
	return out
}
