// Package expand materializes the raw record set (parents, standalone events,
// exceptions) into the concrete event list visible inside a bounded window
// around the present.
package expand

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"sync"
	"time"

	appLog "taskcal/internal/log"
	"taskcal/internal/model"
	"taskcal/internal/recur"
)

const (
	// DefaultHalfWindow bounds generation to roughly half a year on each
	// side of now. Unbounded series must not produce unbounded output.
	DefaultHalfWindow = 182 * 24 * time.Hour

	// DefaultMaxPerParent is the hard instance cap per parent, guarding
	// CPU and memory against pathological rules such as daily-forever.
	DefaultMaxPerParent = 500
)

// Options tune a Generator. The zero value selects all defaults.
type Options struct {
	// Now is the clock used to anchor the window; nil means time.Now.
	Now func() time.Time

	// HalfWindow is the distance from now to each window edge.
	HalfWindow time.Duration

	// MaxPerParent caps how many instances one parent may contribute.
	MaxPerParent int
}

// Generator expands raw records into materialized events. It owns two
// explicit caches: per-parent rule evaluators (reused across passes,
// rebuilt when a parent's rule or anchor changes) and a whole-result cache
// keyed by a content fingerprint of the raw input, so an unchanged store
// never pays for re-expansion. Construct one per service; there is no
// package-level state.
type Generator struct {
	now          func() time.Time
	halfWindow   time.Duration
	maxPerParent int

	rules *recur.Cache

	mu          sync.Mutex
	fingerprint string
	cached      []model.Event
}

func NewGenerator(opts Options) *Generator {
	g := &Generator{
		now:          opts.Now,
		halfWindow:   opts.HalfWindow,
		maxPerParent: opts.MaxPerParent,
		rules:        recur.NewCache(),
	}
	if g.now == nil {
		g.now = time.Now
	}
	if g.halfWindow <= 0 {
		g.halfWindow = DefaultHalfWindow
	}
	if g.maxPerParent <= 0 {
		g.maxPerParent = DefaultMaxPerParent
	}
	return g
}

// Generate produces the display event list for raw:
//
//  1. every raw record that is neither a parent nor skipped passes through
//     (standalone events and live exceptions)
//  2. each parent with a valid rule contributes synthesized instances for
//     its occurrences inside [now-half, now+half], except occurrences that
//     an exception already covers
//  3. the result is deduplicated by id
//
// The parent's own anchor start counts as a normal occurrence and is emitted
// as an instance like any other; parents themselves never appear in the
// output. A parent whose stored rule fails to parse is logged and omitted
// without affecting the rest of the result.
//
// For a fixed raw set and a fixed now the output id set is deterministic,
// and repeated calls are served from the result cache.
func (g *Generator) Generate(raw []model.Event) []model.Event {
	fp := fingerprintOf(raw)

	g.mu.Lock()
	if g.fingerprint == fp && g.cached != nil {
		out := cloneAll(g.cached)
		g.mu.Unlock()
		return out
	}
	g.mu.Unlock()

	result := g.generate(raw)

	g.mu.Lock()
	g.fingerprint = fp
	g.cached = cloneAll(result)
	g.mu.Unlock()

	return result
}

// cloneAll deep-copies events so cached entries and returned results never
// share slice-valued payload fields.
func cloneAll(events []model.Event) []model.Event {
	out := make([]model.Event, len(events))
	for i, e := range events {
		out[i] = e.Clone()
	}
	return out
}

func (g *Generator) generate(raw []model.Event) []model.Event {
	byID := make(map[string]model.Event)
	order := make([]string, 0, len(raw))

	for _, e := range raw {
		if e.IsRecurring || e.IsSkipped {
			continue
		}
		if _, ok := byID[e.ID]; !ok {
			order = append(order, e.ID)
		}
		// Clone so output events never alias the raw records' payload slices.
		byID[e.ID] = e.Clone()
	}

	// Exceptions indexed by (parent id, occurrence start millis). Skipped
	// exceptions are included: they still suppress synthesis for their slot.
	exceptions := make(map[string]map[int64]struct{})
	for _, e := range raw {
		if e.ParentID == "" || !e.IsException {
			continue
		}
		slots := exceptions[e.ParentID]
		if slots == nil {
			slots = make(map[int64]struct{})
			exceptions[e.ParentID] = slots
		}
		slots[e.StartTime.UnixMilli()] = struct{}{}
	}

	now := g.now()
	windowStart := now.Add(-g.halfWindow)
	windowEnd := now.Add(g.halfWindow)

	for _, parent := range raw {
		if !parent.IsRecurring || parent.RecurrenceRule == "" {
			continue
		}

		eval, err := g.rules.Get(parent.ID, parent.RecurrenceRule, parent.StartTime)
		if err != nil {
			appLog.Error("expand: skipping parent with unparsable rule", err,
				"parent_id", parent.ID, "rule", parent.RecurrenceRule)
			continue
		}

		// RecurrenceEnd is an exclusive upper bound; the window end caps
		// unbounded series.
		until := windowEnd
		if parent.RecurrenceEnd != nil && parent.RecurrenceEnd.Before(until) {
			until = *parent.RecurrenceEnd
		}

		duration := parent.Duration()
		emitted := 0

		for _, occ := range eval.Between(windowStart, until) {
			if parent.RecurrenceEnd != nil && !occ.Before(*parent.RecurrenceEnd) {
				continue
			}
			occMillis := occ.UnixMilli()
			if _, ok := exceptions[parent.ID][occMillis]; ok {
				continue
			}

			id := model.InstanceID(parent.ID, occ)
			if _, ok := byID[id]; ok {
				continue
			}

			instance := parent.Clone()
			instance.ID = id
			instance.StartTime = occ
			if parent.EndTime != nil {
				end := occ.Add(duration)
				instance.EndTime = &end
			} else {
				instance.EndTime = nil
			}
			instance.ParentID = parent.ID
			instance.IsRecurring = false
			instance.IsException = false

			byID[id] = instance
			order = append(order, id)

			emitted++
			if emitted >= g.maxPerParent {
				appLog.Warn("expand: instance cap reached for parent",
					"parent_id", parent.ID, "cap", g.maxPerParent)
				break
			}
		}
	}

	out := make([]model.Event, 0, len(byID))
	for _, id := range order {
		out = append(out, byID[id])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out
}

// InvalidateParent drops the cached evaluator and result for one parent.
// Called after a parent's rule, start or recurrence end was mutated.
func (g *Generator) InvalidateParent(parentID string) {
	g.rules.Invalidate(parentID)
	g.Invalidate()
}

// Invalidate drops the cached expansion result. The raw-store accessor calls
// this after every successful write.
func (g *Generator) Invalidate() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fingerprint = ""
	g.cached = nil
}

// fingerprintOf hashes the serialized raw set; any field change in any record
// changes the fingerprint.
func fingerprintOf(raw []model.Event) string {
	data, err := json.Marshal(raw)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
