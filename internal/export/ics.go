// Package export serializes materialized events into an iCalendar feed so
// external calendar clients can subscribe to the expanded view.
package export

import (
	ical "github.com/arran4/golang-ical"

	"taskcal/internal/model"
)

const prodID = "-//taskcal//calendar feed//EN"

// Feed renders events as a VCALENDAR document. Each materialized event maps
// to one VEVENT; recurrence is already expanded, so the feed carries concrete
// instances rather than RRULEs.
func Feed(events []model.Event, name string) []byte {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(prodID)
	if name != "" {
		cal.SetName(name)
		cal.SetXWRCalName(name)
	}

	for _, e := range events {
		ve := cal.AddEvent(e.ID)
		ve.SetDtStampTime(e.StartTime)
		ve.SetSummary(e.Title)
		if e.Description != "" {
			ve.SetDescription(e.Description)
		}
		if e.Category != "" {
			ve.SetProperty(ical.ComponentPropertyCategories, e.Category)
		}

		if e.IsAllDay {
			ve.SetAllDayStartAt(e.StartTime)
			if e.EndTime != nil {
				ve.SetAllDayEndAt(*e.EndTime)
			}
			continue
		}

		ve.SetStartAt(e.StartTime)
		if e.EndTime != nil {
			ve.SetEndAt(*e.EndTime)
		} else {
			// Point-in-time events serialize with DTEND == DTSTART.
			ve.SetEndAt(e.StartTime)
		}
	}

	return []byte(cal.Serialize())
}
