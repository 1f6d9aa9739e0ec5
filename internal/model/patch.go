package model

import "time"

// EventPatch is a partial update for an Event. Nil fields are left untouched,
// which also gives HTTP PUT handlers merge semantics for free: absent JSON
// keys decode to nil.
//
// Recurrence identity fields (ID, ParentID, IsRecurring, IsException) are
// deliberately not patchable; role changes go through the dedicated series
// operations instead.
type EventPatch struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	StartTime   *time.Time `json:"startTime,omitempty"`
	EndTime     *time.Time `json:"endTime,omitempty"`
	Category    *string    `json:"category,omitempty"`
	Color       *string    `json:"color,omitempty"`
	IsCompleted *bool      `json:"isCompleted,omitempty"`
	IsAllDay    *bool      `json:"isAllDay,omitempty"`
	IsSkipped   *bool      `json:"isSkipped,omitempty"`

	RecurrenceRule *string    `json:"recurrenceRule,omitempty"`
	RecurrenceEnd  *time.Time `json:"recurrenceEnd,omitempty"`

	Priority       *string       `json:"priority,omitempty"`
	Status         *string       `json:"status,omitempty"`
	Assignee       *string       `json:"assignee,omitempty"`
	Project        *string       `json:"project,omitempty"`
	Tags           *[]string     `json:"tags,omitempty"`
	EstimatedHours *int          `json:"estimatedHours,omitempty"`
	ActualHours    *int          `json:"actualHours,omitempty"`
	Dependencies   *[]string     `json:"dependencies,omitempty"`
	Subtasks       *[]Subtask    `json:"subtasks,omitempty"`
	Attachments    *[]Attachment `json:"attachments,omitempty"`
	Comments       *[]Comment    `json:"comments,omitempty"`
}

// Apply merges the patch into e.
func (p EventPatch) Apply(e *Event) {
	if p.Title != nil {
		e.Title = *p.Title
	}
	if p.Description != nil {
		e.Description = *p.Description
	}
	if p.StartTime != nil {
		e.StartTime = *p.StartTime
	}
	if p.EndTime != nil {
		t := *p.EndTime
		e.EndTime = &t
	}
	if p.Category != nil {
		e.Category = *p.Category
	}
	if p.Color != nil {
		e.Color = *p.Color
	}
	if p.IsCompleted != nil {
		e.IsCompleted = *p.IsCompleted
	}
	if p.IsAllDay != nil {
		e.IsAllDay = *p.IsAllDay
	}
	if p.IsSkipped != nil {
		e.IsSkipped = *p.IsSkipped
	}
	if p.RecurrenceRule != nil {
		e.RecurrenceRule = *p.RecurrenceRule
	}
	if p.RecurrenceEnd != nil {
		t := *p.RecurrenceEnd
		e.RecurrenceEnd = &t
	}
	if p.Priority != nil {
		e.Priority = *p.Priority
	}
	if p.Status != nil {
		e.Status = *p.Status
	}
	if p.Assignee != nil {
		e.Assignee = *p.Assignee
	}
	if p.Project != nil {
		e.Project = *p.Project
	}
	if p.Tags != nil {
		e.Tags = append([]string(nil), (*p.Tags)...)
	}
	if p.EstimatedHours != nil {
		n := *p.EstimatedHours
		e.EstimatedHours = &n
	}
	if p.ActualHours != nil {
		n := *p.ActualHours
		e.ActualHours = &n
	}
	if p.Dependencies != nil {
		e.Dependencies = append([]string(nil), (*p.Dependencies)...)
	}
	if p.Subtasks != nil {
		e.Subtasks = append([]Subtask(nil), (*p.Subtasks)...)
	}
	if p.Attachments != nil {
		e.Attachments = append([]Attachment(nil), (*p.Attachments)...)
	}
	if p.Comments != nil {
		e.Comments = append([]Comment(nil), (*p.Comments)...)
	}
}
