// Package service implements the mutation operations and read surface of the
// calendar engine: create/update/delete of single events, recurring series
// management, exception handling and series splitting. All operations are
// raw-store read-modify-write sequences; the expansion cache is invalidated
// through the accessor's flush hook.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"taskcal/internal/expand"
	appLog "taskcal/internal/log"
	"taskcal/internal/model"
	"taskcal/internal/recur"
	"taskcal/internal/sanitize"
	"taskcal/internal/store"
)

// ErrNotFound reports that the target record of an update or delete does not
// exist. Callers decide the user-facing treatment; nothing else about the
// store changed.
var ErrNotFound = errors.New("service: event not found")

const defaultUpcomingCount = 5

// Service is the data-access layer consumers talk to. It owns the raw-store
// accessor and the instance generator; neither cache leaks to callers.
type Service struct {
	store *store.Accessor
	gen   *expand.Generator
	now   func() time.Time
	newID func() string
}

// Option configures a Service.
type Option func(*Service)

// WithClock injects the time source; tests pin it for deterministic windows.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDSource injects the raw-record id generator.
func WithIDSource(fn func() string) Option {
	return func(s *Service) { s.newID = fn }
}

func New(acc *store.Accessor, gen *expand.Generator, opts ...Option) *Service {
	s := &Service{
		store: acc,
		gen:   gen,
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	acc.OnFlush(gen.Invalidate)
	return s
}

// LoadEvents returns the materialized event list: standalone events, live
// exceptions and generated instances within the expansion window.
func (s *Service) LoadEvents(ctx context.Context) []model.Event {
	return s.gen.Generate(s.store.ReadRaw(ctx))
}

// CreateEvent appends a new standalone event. A missing title defaults and an
// end time earlier than the start is clamped rather than rejected.
func (s *Service) CreateEvent(ctx context.Context, data model.Event) model.Event {
	ev := sanitize.Clean(data)
	ev.ID = s.newID()

	raw := s.store.ReadRaw(ctx)
	raw = append(raw, ev)
	s.store.WriteRaw(ctx, raw)
	s.gen.InvalidateParent(ev.ID)
	return ev
}

// UpdateEvent merges patch into the record with the given id and re-validates
// title and time ordering. Returns ErrNotFound for an unknown id.
func (s *Service) UpdateEvent(ctx context.Context, id string, patch model.EventPatch) (model.Event, error) {
	raw := s.store.ReadRaw(ctx)
	idx := indexByID(raw, id)
	if idx < 0 {
		return model.Event{}, ErrNotFound
	}

	merged := raw[idx].Clone()
	patch.Apply(&merged)
	merged = sanitize.Clean(merged)
	merged.ID = id
	raw[idx] = merged

	s.store.WriteRaw(ctx, raw)
	if merged.IsRecurring {
		s.gen.InvalidateParent(id)
	}
	return merged, nil
}

// DeleteEvent removes the record with the given id and reports whether a
// record was actually removed.
func (s *Service) DeleteEvent(ctx context.Context, id string) bool {
	raw := s.store.ReadRaw(ctx)
	filtered := make([]model.Event, 0, len(raw))
	for _, e := range raw {
		if e.ID != id {
			filtered = append(filtered, e)
		}
	}
	if len(filtered) == len(raw) {
		return false
	}
	s.store.WriteRaw(ctx, filtered)
	s.gen.InvalidateParent(id)
	return true
}

// CreateRecurringEvent validates rule and appends a new parent record. An
// invalid rule aborts with *recur.ParseError and no partial write: this is a
// user-facing creation path, unlike the lenient raw-read path.
func (s *Service) CreateRecurringEvent(ctx context.Context, data model.Event, rule string, end *time.Time) (model.Event, error) {
	if err := recur.Validate(rule); err != nil {
		return model.Event{}, err
	}

	ev := data
	ev.RecurrenceRule = rule
	ev.RecurrenceEnd = end
	ev.IsRecurring = true
	ev = sanitize.Clean(ev)
	ev.ID = s.newID()

	raw := s.store.ReadRaw(ctx)
	raw = append(raw, ev)
	s.store.WriteRaw(ctx, raw)
	s.gen.InvalidateParent(ev.ID)
	return ev, nil
}

// UpdateRecurringSeries merges patch into the parent record (id must name a
// record with IsRecurring set). Used for "entire series" edits; per the
// series-edit policy only non-temporal fields should be propagated this way,
// which the callers enforce by what they put in the patch.
func (s *Service) UpdateRecurringSeries(ctx context.Context, parentID string, patch model.EventPatch) (model.Event, error) {
	raw := s.store.ReadRaw(ctx)
	idx := -1
	for i, e := range raw {
		if e.ID == parentID && e.IsRecurring {
			idx = i
			break
		}
	}
	if idx < 0 {
		return model.Event{}, ErrNotFound
	}

	merged := raw[idx].Clone()
	patch.Apply(&merged)
	merged = sanitize.Clean(merged)
	merged.ID = parentID
	merged.IsRecurring = true
	raw[idx] = merged

	s.store.WriteRaw(ctx, raw)
	s.gen.InvalidateParent(parentID)
	return merged, nil
}

// StopRecurringSeries ends a series now: occurrences strictly before the
// current time keep materializing, nothing after.
func (s *Service) StopRecurringSeries(ctx context.Context, parentID string) bool {
	end := s.now()
	_, err := s.UpdateRecurringSeries(ctx, parentID, model.EventPatch{RecurrenceEnd: &end})
	return err == nil
}

// CreateException persists an override for one occurrence of a series,
// identified by (parent id, start time). Idempotent: if an exception already
// exists for that slot the existing record is returned unchanged.
func (s *Service) CreateException(ctx context.Context, instance model.Event) model.Event {
	parentID := instance.ParentID
	if parentID == "" {
		parentID = instance.ID
	}

	raw := s.store.ReadRaw(ctx)
	startMillis := instance.StartTime.UnixMilli()
	for _, e := range raw {
		if e.IsException && e.ParentID == parentID && e.StartTime.UnixMilli() == startMillis {
			appLog.Debug("service: exception already exists for slot",
				"parent_id", parentID, "start", instance.StartTime.Format(time.RFC3339))
			return e
		}
	}

	exc := instance
	exc.ParentID = parentID
	exc.IsException = true
	exc.IsRecurring = false
	exc.RecurrenceRule = ""
	exc.RecurrenceEnd = nil
	exc = sanitize.Clean(exc)
	exc.ID = s.newID()

	raw = append(raw, exc)
	s.store.WriteRaw(ctx, raw)
	s.gen.InvalidateParent(parentID)

	appLog.Debug("service: created exception",
		"id", exc.ID, "parent_id", parentID, "start", exc.StartTime.Format(time.RFC3339), "skipped", exc.IsSkipped)
	return exc
}

// SplitSeriesAtOccurrence performs the "this and future" edit: the existing
// parent is truncated to end just before occurrenceStart, and a successor
// parent carrying newData starts exactly at occurrenceStart with the same
// rule. The two writes are not transactional; a failure in between leaves a
// truncated series without its successor, which a retry completes.
func (s *Service) SplitSeriesAtOccurrence(ctx context.Context, parentID string, occurrenceStart time.Time, newData model.Event) (model.Event, error) {
	raw := s.store.ReadRaw(ctx)
	var parent *model.Event
	for i := range raw {
		if raw[i].ID == parentID && raw[i].IsRecurring {
			parent = &raw[i]
			break
		}
	}
	if parent == nil || parent.RecurrenceRule == "" {
		return model.Event{}, ErrNotFound
	}
	rule := parent.RecurrenceRule
	oldEnd := parent.RecurrenceEnd

	truncated := occurrenceStart.Add(-time.Millisecond)
	if _, err := s.UpdateRecurringSeries(ctx, parentID, model.EventPatch{RecurrenceEnd: &truncated}); err != nil {
		return model.Event{}, err
	}

	successor := newData
	successor.StartTime = occurrenceStart
	if newData.EndTime == nil && parent.EndTime != nil {
		end := occurrenceStart.Add(parent.Duration())
		successor.EndTime = &end
	}
	return s.CreateRecurringEvent(ctx, successor, rule, oldEnd)
}

// RescheduleOccurrence moves one occurrence to a new time. For a generated
// instance this detaches it from the series: a skipped exception suppresses
// the original slot and a new standalone event carries the new time. For a
// standalone event it is a plain time update.
func (s *Service) RescheduleOccurrence(ctx context.Context, event model.Event, newStart time.Time, newEnd *time.Time) (model.Event, error) {
	if event.ParentID != "" && !event.IsException {
		skip := event.Clone()
		skip.IsSkipped = true
		s.CreateException(ctx, skip)

		moved := event.Clone()
		moved.StartTime = newStart
		moved.EndTime = newEnd
		moved.ParentID = ""
		moved.IsRecurring = false
		moved.IsException = false
		moved.RecurrenceRule = ""
		moved.RecurrenceEnd = nil
		return s.CreateEvent(ctx, moved), nil
	}

	return s.UpdateEvent(ctx, event.ID, model.EventPatch{StartTime: &newStart, EndTime: newEnd})
}

// StopInstanceTemporarily marks a raw record as completed without removing it.
func (s *Service) StopInstanceTemporarily(ctx context.Context, id string) bool {
	done := true
	status := "done"
	_, err := s.UpdateEvent(ctx, id, model.EventPatch{IsCompleted: &done, Status: &status})
	return err == nil
}

// RemoveInstance deletes a raw record, typically an exception, restoring the
// synthesized default for its slot.
func (s *Service) RemoveInstance(ctx context.Context, id string) bool {
	return s.DeleteEvent(ctx, id)
}

// GetRecurringParents returns all parent records.
func (s *Service) GetRecurringParents(ctx context.Context) []model.Event {
	raw := s.store.ReadRaw(ctx)
	out := make([]model.Event, 0)
	for _, e := range raw {
		if e.IsRecurring {
			out = append(out, e)
		}
	}
	return out
}

// GetUpcomingInstancesForParent returns the next count occurrences of a
// parent from now on. An occurrence covered by an exception surfaces as that
// exception record; other slots surface as synthesized instances.
func (s *Service) GetUpcomingInstancesForParent(ctx context.Context, parentID string, count int) []model.Event {
	if count <= 0 {
		count = defaultUpcomingCount
	}

	raw := s.store.ReadRaw(ctx)
	var parent *model.Event
	for i := range raw {
		if raw[i].ID == parentID && raw[i].IsRecurring {
			parent = &raw[i]
			break
		}
	}
	if parent == nil || parent.RecurrenceRule == "" {
		return nil
	}

	eval, err := recur.New(parent.RecurrenceRule, parent.StartTime)
	if err != nil {
		appLog.Error("service: cannot compute upcoming instances", err, "parent_id", parentID)
		return nil
	}

	now := s.now()
	until := now.AddDate(2, 0, 0)
	if parent.RecurrenceEnd != nil && parent.RecurrenceEnd.Before(until) {
		until = *parent.RecurrenceEnd
	}

	duration := parent.Duration()
	results := make([]model.Event, 0, count)
	for _, occ := range eval.Between(now, until) {
		if parent.RecurrenceEnd != nil && !occ.Before(*parent.RecurrenceEnd) {
			continue
		}

		var slot *model.Event
		occMillis := occ.UnixMilli()
		for i := range raw {
			if raw[i].IsException && raw[i].ParentID == parentID && raw[i].StartTime.UnixMilli() == occMillis {
				slot = &raw[i]
				break
			}
		}

		if slot != nil {
			results = append(results, *slot)
		} else {
			instance := parent.Clone()
			instance.ID = model.InstanceID(parentID, occ)
			instance.StartTime = occ
			if parent.EndTime != nil {
				end := occ.Add(duration)
				instance.EndTime = &end
			} else {
				instance.EndTime = nil
			}
			instance.ParentID = parentID
			instance.IsRecurring = false
			instance.IsException = false
			results = append(results, instance)
		}

		if len(results) >= count {
			break
		}
	}
	return results
}

// Flush forces any pending debounced write; main calls this on shutdown.
func (s *Service) Flush(ctx context.Context) {
	s.store.Flush(ctx)
}

// RefreshWindow drops the expansion result cache so the next read re-anchors
// the window at the current time. Driven by the cron schedule in cmd/taskcal.
func (s *Service) RefreshWindow() {
	s.gen.Invalidate()
}

func indexByID(events []model.Event, id string) int {
	for i, e := range events {
		if e.ID == id {
			return i
		}
	}
	return -1
}
