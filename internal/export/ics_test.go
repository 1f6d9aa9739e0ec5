package export

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskcal/internal/model"
)

func TestFeed_EmitsVEventPerInstance(t *testing.T) {
	start := time.Date(2024, time.February, 5, 9, 0, 0, 0, time.UTC)
	end := start.Add(30 * time.Minute)
	events := []model.Event{
		{ID: "e1", Title: "Standup", StartTime: start, EndTime: &end, Category: "Meeting"},
		{ID: "p1-1707728400000", Title: "Weekly sync", StartTime: start.AddDate(0, 0, 7)},
	}

	out := string(Feed(events, "team"))

	assert.True(t, strings.HasPrefix(out, "BEGIN:VCALENDAR"))
	assert.Contains(t, out, "METHOD:PUBLISH")
	assert.Contains(t, out, "NAME:team")
	assert.Contains(t, out, "X-WR-CALNAME:team")
	assert.Equal(t, 2, strings.Count(out, "BEGIN:VEVENT"))
	assert.Contains(t, out, "UID:e1")
	assert.Contains(t, out, "SUMMARY:Standup")
	assert.Contains(t, out, "CATEGORIES:Meeting")
	assert.Contains(t, out, "DTSTART:20240205T090000Z")
	assert.Contains(t, out, "DTEND:20240205T093000Z")
}

func TestFeed_PointEventGetsZeroLength(t *testing.T) {
	start := time.Date(2024, time.March, 1, 18, 0, 0, 0, time.UTC)
	out := string(Feed([]model.Event{{ID: "e1", Title: "Reminder", StartTime: start}}, ""))

	assert.Contains(t, out, "DTSTART:20240301T180000Z")
	assert.Contains(t, out, "DTEND:20240301T180000Z")
	assert.NotContains(t, out, "X-WR-CALNAME")
}

func TestFeed_AllDay(t *testing.T) {
	start := time.Date(2024, time.April, 10, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 1)
	out := string(Feed([]model.Event{{ID: "e1", Title: "Offsite", StartTime: start, EndTime: &end, IsAllDay: true}}, ""))

	assert.Contains(t, out, "DTSTART;VALUE=DATE:20240410")
	assert.Contains(t, out, "DTEND;VALUE=DATE:20240411")
}

func TestFeed_Empty(t *testing.T) {
	out := string(Feed(nil, "empty"))
	require.Contains(t, out, "BEGIN:VCALENDAR")
	assert.NotContains(t, out, "BEGIN:VEVENT")
}
