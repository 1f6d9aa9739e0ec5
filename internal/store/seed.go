package store

import (
	"time"

	"taskcal/internal/model"
)

// DefaultEvents is the fixed seed set served when the backend is empty or
// unreadable, so a fresh install (or a corrupted store) still renders a
// populated calendar instead of failing.
func DefaultEvents() []model.Event {
	end := func(t time.Time) *time.Time { return &t }

	return []model.Event{
		{
			ID:          "1",
			Title:       "Team Standup",
			Description: "Daily sync with the team",
			StartTime:   time.Date(2024, time.November, 15, 9, 0, 0, 0, time.Local),
			EndTime:     end(time.Date(2024, time.November, 15, 9, 30, 0, 0, time.Local)),
			Category:    "Meeting",
			Color:       "#3b82f6",
		},
		{
			ID:          "2",
			Title:       "Client Presentation",
			Description: "Q4 results presentation",
			StartTime:   time.Date(2024, time.November, 15, 14, 0, 0, 0, time.Local),
			EndTime:     end(time.Date(2024, time.November, 15, 15, 30, 0, 0, time.Local)),
			Category:    "Booking",
			Color:       "#10b981",
		},
		{
			ID:          "3",
			Title:       "Project Deadline",
			Description: "Submit final deliverables",
			StartTime:   time.Date(2024, time.November, 18, 17, 0, 0, 0, time.Local),
			EndTime:     end(time.Date(2024, time.November, 18, 17, 0, 0, 0, time.Local)),
			Category:    "Deadline",
			Color:       "#ef4444",
		},
		{
			ID:          "4",
			Title:       "Deep Work",
			Description: "Focus time for development",
			StartTime:   time.Date(2024, time.November, 16, 10, 0, 0, 0, time.Local),
			EndTime:     end(time.Date(2024, time.November, 16, 12, 0, 0, 0, time.Local)),
			Category:    "Focus Time",
			Color:       "#8b5cf6",
		},
		{
			ID:        "5",
			Title:     "Code Review Session",
			StartTime: time.Date(2024, time.November, 19, 15, 0, 0, 0, time.Local),
			EndTime:   end(time.Date(2024, time.November, 19, 16, 0, 0, 0, time.Local)),
			Category:  "Meeting",
			Color:     "#3b82f6",
		},
	}
}
