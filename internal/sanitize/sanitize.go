// Package sanitize normalizes and bounds untrusted event field values before
// persistence. Clean is pure and idempotent: Clean(Clean(e)) == Clean(e).
package sanitize

import (
	"strings"
	"unicode/utf8"

	"taskcal/internal/model"
	"taskcal/internal/recur"
)

// Field limits. Over-limit values are truncated, never rejected.
const (
	MaxTitle          = 200
	MaxDescription    = 2000
	MaxCategory       = 100
	MaxColor          = 50
	MaxAssignee       = 200
	MaxProject        = 200
	MaxTags           = 20
	MaxTagLength      = 50
	MaxDependencies   = 50
	MaxAttachments    = 10
	MaxSubtasks       = 50
	MaxSubtaskTitle   = 200
	MaxComments       = 200
	MaxCommentAuthor  = 200
	MaxCommentContent = 1000
	MaxAttachmentName = 200
	MaxAttachmentURL  = 2000
)

// Defaults substituted for blank required presentation fields.
const (
	DefaultTitle    = "Untitled"
	DefaultCategory = "Other"
	DefaultColor    = "#000000"
)

// Clean returns a safe-to-persist copy of e:
//
//   - strings trimmed; blank optional fields dropped; over-limit truncated
//   - blank title/category/color replaced with sentinels
//   - negative hour counts dropped, not coerced
//   - a recurrence rule that fails validation is dropped silently (the record
//     is kept, just without recurrence metadata)
//   - EndTime earlier than StartTime is clamped to StartTime
func Clean(e model.Event) model.Event {
	out := e.Clone()

	out.Title = defaulted(str(out.Title, MaxTitle), DefaultTitle)
	out.Description = str(out.Description, MaxDescription)
	out.Category = defaulted(str(out.Category, MaxCategory), DefaultCategory)
	out.Color = defaulted(str(out.Color, MaxColor), DefaultColor)
	out.Assignee = str(out.Assignee, MaxAssignee)
	out.Project = str(out.Project, MaxProject)
	out.Priority = str(out.Priority, MaxCategory)
	out.Status = str(out.Status, MaxCategory)

	if out.EndTime != nil && out.EndTime.Before(out.StartTime) {
		t := out.StartTime
		out.EndTime = &t
	}

	if out.RecurrenceRule != "" && recur.Validate(out.RecurrenceRule) != nil {
		out.RecurrenceRule = ""
	}

	if out.EstimatedHours != nil && *out.EstimatedHours < 0 {
		out.EstimatedHours = nil
	}
	if out.ActualHours != nil && *out.ActualHours < 0 {
		out.ActualHours = nil
	}

	out.Tags = strList(out.Tags, MaxTags, MaxTagLength)
	out.Dependencies = strList(out.Dependencies, MaxDependencies, MaxTitle)
	out.Subtasks = subtasks(out.Subtasks)
	out.Attachments = attachments(out.Attachments)
	out.Comments = comments(out.Comments)

	return out
}

// CleanAll applies Clean to every record.
func CleanAll(events []model.Event) []model.Event {
	out := make([]model.Event, len(events))
	for i, e := range events {
		out[i] = Clean(e)
	}
	return out
}

func str(v string, max int) string {
	v = strings.TrimSpace(v)
	if len(v) <= max {
		return v
	}
	// Never cut inside a multi-byte rune; back up to the nearest rune start.
	cut := max
	for cut > 0 && !utf8.RuneStart(v[cut]) {
		cut--
	}
	return v[:cut]
}

func defaulted(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func strList(in []string, maxItems, maxLen int) []string {
	if in == nil {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, s := range in {
		if len(out) >= maxItems {
			break
		}
		s = str(s, maxLen)
		if s == "" {
			continue
		}
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func subtasks(in []model.Subtask) []model.Subtask {
	if in == nil {
		return nil
	}
	out := make([]model.Subtask, 0, len(in))
	for _, st := range in {
		if len(out) >= MaxSubtasks {
			break
		}
		st.ID = strings.TrimSpace(st.ID)
		st.Title = str(st.Title, MaxSubtaskTitle)
		out = append(out, st)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func attachments(in []model.Attachment) []model.Attachment {
	if in == nil {
		return nil
	}
	out := make([]model.Attachment, 0, len(in))
	for _, a := range in {
		if len(out) >= MaxAttachments {
			break
		}
		a.Name = str(a.Name, MaxAttachmentName)
		a.URL = str(a.URL, MaxAttachmentURL)
		a.Type = str(a.Type, MaxAttachmentName)
		// Entries without both a name and a URL carry no information.
		if a.Name == "" || a.URL == "" {
			continue
		}
		out = append(out, a)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func comments(in []model.Comment) []model.Comment {
	if in == nil {
		return nil
	}
	out := make([]model.Comment, 0, len(in))
	for _, c := range in {
		if len(out) >= MaxComments {
			break
		}
		c.ID = strings.TrimSpace(c.ID)
		c.Author = str(c.Author, MaxCommentAuthor)
		c.Content = str(c.Content, MaxCommentContent)
		c.Timestamp = strings.TrimSpace(c.Timestamp)
		out = append(out, c)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
