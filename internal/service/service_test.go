package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskcal/internal/expand"
	"taskcal/internal/model"
	"taskcal/internal/recur"
	"taskcal/internal/store"
)

var testNow = time.Date(2024, time.February, 1, 12, 0, 0, 0, time.UTC)

// newTestService builds a service over an in-memory backend with synchronous
// writes, a pinned clock and sequential ids. The accessor is primed with the
// given seed so the default seed events never leak into assertions.
func newTestService(t *testing.T, seed ...model.Event) *Service {
	t.Helper()

	acc := store.NewAccessor(store.NewMemory(), 0)
	acc.WriteRaw(context.Background(), seed)
	gen := expand.NewGenerator(expand.Options{Now: func() time.Time { return testNow }})

	n := 0
	return New(acc, gen,
		WithClock(func() time.Time { return testNow }),
		WithIDSource(func() string {
			n++
			return fmt.Sprintf("id-%d", n)
		}),
	)
}

func ptr(t time.Time) *time.Time { return &t }

func weeklyParentSeed() model.Event {
	start := time.Date(2024, time.January, 1, 9, 0, 0, 0, time.UTC)
	return model.Event{
		ID:             "p1",
		Title:          "Weekly sync",
		StartTime:      start,
		EndTime:        ptr(start.Add(30 * time.Minute)),
		Category:       "Meeting",
		Color:          "#3b82f6",
		IsRecurring:    true,
		RecurrenceRule: "FREQ=WEEKLY",
	}
}

func TestCreateEvent_AssignsIDAndClampsEnd(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	start := time.Date(2024, 2, 5, 10, 0, 0, 0, time.UTC)
	end := start.Add(-time.Hour)
	created := svc.CreateEvent(ctx, model.Event{Title: "Backward", StartTime: start, EndTime: &end})

	assert.Equal(t, "id-1", created.ID)
	require.NotNil(t, created.EndTime)
	assert.True(t, created.EndTime.Equal(start), "end time clamped to start")

	stored, err := svc.GetEvent(ctx, "id-1")
	require.NoError(t, err)
	assert.Equal(t, "Backward", stored.Title)
}

func TestUpdateEvent_MergesPatch(t *testing.T) {
	svc := newTestService(t, model.Event{ID: "e1", Title: "Old", StartTime: testNow, Category: "Task", Color: "#fff"})
	ctx := context.Background()

	title := "New"
	updated, err := svc.UpdateEvent(ctx, "e1", model.EventPatch{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "New", updated.Title)
	assert.Equal(t, "Task", updated.Category, "unpatched fields survive")
}

func TestUpdateEvent_NotFound(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.UpdateEvent(context.Background(), "ghost", model.EventPatch{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteEvent_ReportsRemoval(t *testing.T) {
	svc := newTestService(t, model.Event{ID: "e1", Title: "X", StartTime: testNow})
	ctx := context.Background()

	assert.True(t, svc.DeleteEvent(ctx, "e1"))
	assert.False(t, svc.DeleteEvent(ctx, "e1"), "second delete finds nothing")
}

func TestCreateRecurringEvent_RejectsInvalidRule(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateRecurringEvent(ctx, model.Event{Title: "Bad", StartTime: testNow}, "FREQ=MAYBE", nil)
	require.Error(t, err)
	var perr *recur.ParseError
	assert.ErrorAs(t, err, &perr)

	// No partial write happened.
	assert.Empty(t, svc.RawEvents(ctx))
}

func TestCreateRecurringEvent_MaterializesInstances(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	start := time.Date(2024, time.January, 1, 9, 0, 0, 0, time.UTC)
	parent, err := svc.CreateRecurringEvent(ctx, model.Event{Title: "Sync", StartTime: start}, "FREQ=WEEKLY", nil)
	require.NoError(t, err)
	assert.True(t, parent.IsRecurring)

	events := svc.LoadEvents(ctx)
	require.NotEmpty(t, events)
	for _, e := range events {
		assert.Equal(t, parent.ID, e.ParentID)
		assert.Equal(t, model.InstanceID(parent.ID, e.StartTime), e.ID)
	}
}

func TestStopRecurringSeries_EndsGeneration(t *testing.T) {
	svc := newTestService(t, weeklyParentSeed())
	ctx := context.Background()

	require.True(t, svc.StopRecurringSeries(ctx, "p1"))

	for _, e := range svc.LoadEvents(ctx) {
		assert.True(t, e.StartTime.Before(testNow), "no occurrence at or after the stop time: %s", e.StartTime)
	}
}

func TestCreateException_Idempotent(t *testing.T) {
	svc := newTestService(t, weeklyParentSeed())
	ctx := context.Background()

	slot := time.Date(2024, time.January, 8, 9, 0, 0, 0, time.UTC)
	first := svc.CreateException(ctx, model.Event{Title: "Override", StartTime: slot, ParentID: "p1"})
	second := svc.CreateException(ctx, model.Event{Title: "Override again", StartTime: slot, ParentID: "p1"})

	assert.Equal(t, first.ID, second.ID, "same slot returns the existing exception")
	assert.Equal(t, "Override", second.Title)

	count := 0
	for _, e := range svc.RawEvents(ctx) {
		if e.IsException {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestCreateException_SkippedRemovesSlot(t *testing.T) {
	svc := newTestService(t, weeklyParentSeed())
	ctx := context.Background()

	slot := time.Date(2024, time.January, 8, 9, 0, 0, 0, time.UTC)
	svc.CreateException(ctx, model.Event{Title: "Weekly sync", StartTime: slot, ParentID: "p1", IsSkipped: true})

	for _, e := range svc.LoadEvents(ctx) {
		assert.False(t, e.StartTime.Equal(slot) && e.ParentID == "p1",
			"skipped occurrence should not materialize")
	}
}

func TestRescheduleOccurrence_DetachesInstance(t *testing.T) {
	svc := newTestService(t, weeklyParentSeed())
	ctx := context.Background()

	before := svc.LoadEvents(ctx)
	var instance model.Event
	found := false
	for _, e := range before {
		if e.ParentID == "p1" && e.StartTime.Equal(time.Date(2024, time.January, 8, 9, 0, 0, 0, time.UTC)) {
			instance = e
			found = true
			break
		}
	}
	require.True(t, found, "expected a generated instance at 2024-01-08")

	newStart := time.Date(2024, time.January, 9, 14, 0, 0, 0, time.UTC)
	newEnd := newStart.Add(30 * time.Minute)
	moved, err := svc.RescheduleOccurrence(ctx, instance, newStart, &newEnd)
	require.NoError(t, err)
	assert.True(t, moved.IsStandalone(), "moved event is detached from the series")

	after := svc.LoadEvents(ctx)
	var atOld, atNew int
	for _, e := range after {
		if e.StartTime.Equal(instance.StartTime) && e.ParentID == "p1" {
			atOld++
		}
		if e.StartTime.Equal(newStart) {
			atNew++
		}
	}
	assert.Zero(t, atOld, "old slot replaced by a skipped exception")
	assert.Equal(t, 1, atNew)

	// Sibling occurrences are unaffected.
	var siblings int
	for _, e := range after {
		if e.ParentID == "p1" {
			siblings++
		}
	}
	assert.Greater(t, siblings, 0)
}

func TestRescheduleOccurrence_StandaloneIsPlainUpdate(t *testing.T) {
	svc := newTestService(t, model.Event{ID: "e1", Title: "Solo", StartTime: testNow})
	ctx := context.Background()

	newStart := testNow.Add(24 * time.Hour)
	moved, err := svc.RescheduleOccurrence(ctx, model.Event{ID: "e1", StartTime: testNow}, newStart, nil)
	require.NoError(t, err)
	assert.Equal(t, "e1", moved.ID, "standalone keeps its identity")
	assert.True(t, moved.StartTime.Equal(newStart))

	raw := svc.RawEvents(ctx)
	require.Len(t, raw, 1)
}

func TestSplitSeriesAtOccurrence(t *testing.T) {
	svc := newTestService(t, weeklyParentSeed())
	ctx := context.Background()

	splitAt := time.Date(2024, time.February, 5, 9, 0, 0, 0, time.UTC)
	successor, err := svc.SplitSeriesAtOccurrence(ctx, "p1", splitAt, model.Event{Title: "Renamed sync"})
	require.NoError(t, err)
	assert.True(t, successor.IsRecurring)
	assert.True(t, successor.StartTime.Equal(splitAt), "successor begins exactly at the split occurrence")
	assert.Equal(t, "FREQ=WEEKLY", successor.RecurrenceRule)

	// Old parent is truncated to just before the split.
	oldParent, err := svc.GetEvent(ctx, "p1")
	require.NoError(t, err)
	require.NotNil(t, oldParent.RecurrenceEnd)
	assert.True(t, oldParent.RecurrenceEnd.Equal(splitAt.Add(-time.Millisecond)))

	events := svc.LoadEvents(ctx)
	var lastOld time.Time
	renamedAtSplit := false
	for _, e := range events {
		switch e.ParentID {
		case "p1":
			assert.Equal(t, "Weekly sync", e.Title, "occurrences before the split keep the old fields")
			if e.StartTime.After(lastOld) {
				lastOld = e.StartTime
			}
		case successor.ID:
			assert.Equal(t, "Renamed sync", e.Title)
			if e.StartTime.Equal(splitAt) {
				renamedAtSplit = true
			}
		}
	}
	assert.True(t, lastOld.Equal(splitAt.AddDate(0, 0, -7)),
		"old series ends with the occurrence immediately before the split")
	assert.True(t, renamedAtSplit, "new series materializes at the split occurrence")
}

func TestSplitSeries_UnknownParent(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.SplitSeriesAtOccurrence(context.Background(), "ghost", testNow, model.Event{Title: "x"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetRecurringParents(t *testing.T) {
	svc := newTestService(t,
		weeklyParentSeed(),
		model.Event{ID: "solo", Title: "Solo", StartTime: testNow},
	)

	parents := svc.GetRecurringParents(context.Background())
	require.Len(t, parents, 1)
	assert.Equal(t, "p1", parents[0].ID)
}

func TestGetUpcomingInstancesForParent(t *testing.T) {
	svc := newTestService(t, weeklyParentSeed())
	ctx := context.Background()

	upcoming := svc.GetUpcomingInstancesForParent(ctx, "p1", 3)
	require.Len(t, upcoming, 3)
	prev := testNow
	for _, e := range upcoming {
		assert.True(t, e.StartTime.After(prev) || e.StartTime.Equal(prev))
		assert.Equal(t, "p1", e.ParentID)
		prev = e.StartTime
	}
}

func TestGetUpcomingInstances_ExceptionSurfaces(t *testing.T) {
	svc := newTestService(t, weeklyParentSeed())
	ctx := context.Background()

	slot := time.Date(2024, time.February, 5, 9, 0, 0, 0, time.UTC)
	exc := svc.CreateException(ctx, model.Event{Title: "Special", StartTime: slot, ParentID: "p1"})

	upcoming := svc.GetUpcomingInstancesForParent(ctx, "p1", 2)
	require.NotEmpty(t, upcoming)
	assert.Equal(t, exc.ID, upcoming[0].ID, "the exception is the real item for its slot")
	assert.Equal(t, "Special", upcoming[0].Title)
}

func TestStopInstanceTemporarily(t *testing.T) {
	svc := newTestService(t, model.Event{ID: "e1", Title: "Task", StartTime: testNow})
	ctx := context.Background()

	require.True(t, svc.StopInstanceTemporarily(ctx, "e1"))
	stored, err := svc.GetEvent(ctx, "e1")
	require.NoError(t, err)
	assert.True(t, stored.IsCompleted)
	assert.Equal(t, "done", stored.Status)
}

func TestProjects_AggregatesTasksByProject(t *testing.T) {
	svc := newTestService(t,
		model.Event{ID: "t1", Title: "A", StartTime: testNow, Category: "Task", Project: "apollo"},
		model.Event{ID: "t2", Title: "B", StartTime: testNow, Category: "Task", Project: "apollo"},
		model.Event{ID: "t3", Title: "C", StartTime: testNow, Category: "Task", Project: "gemini"},
		model.Event{ID: "m1", Title: "Not a task", StartTime: testNow, Category: "Meeting", Project: "apollo"},
		model.Event{ID: "t4", Title: "No project", StartTime: testNow, Category: "Task"},
	)

	projects := svc.Projects(context.Background())
	require.Len(t, projects, 2)
	assert.Equal(t, "apollo", projects[0].Name)
	assert.Len(t, projects[0].Tasks, 2)
	assert.Equal(t, "gemini", projects[1].Name)
	assert.Len(t, projects[1].Tasks, 1)
}

func TestLoadEvents_NeverReturnsGeneratedToStorage(t *testing.T) {
	svc := newTestService(t, weeklyParentSeed())
	ctx := context.Background()

	// Materialize, then mutate something; the raw store must only ever hold
	// the parent.
	_ = svc.LoadEvents(ctx)
	svc.CreateEvent(ctx, model.Event{Title: "Extra", StartTime: testNow})

	for _, e := range svc.RawEvents(ctx) {
		assert.False(t, e.IsGeneratedInstance(), "generated instance leaked into raw storage: %s", e.ID)
	}
}
