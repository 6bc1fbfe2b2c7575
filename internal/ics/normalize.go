package ics

import (
	"time"

	appLog "weekcal/internal/log"
	"weekcal/internal/model"
	"weekcal/internal/recur"
)

// Normalize parses an ICS payload and returns the events relevant to the week
// containing ref, sorted by start.
//
//   - Non-recurring events are kept when they start on or after Monday
//     00:00 UTC of that week.
//   - Recurring events are moved to their first occurrence strictly after
//     that Monday, keeping their original duration. Rules that have run out
//     drop the event.
//   - An event whose RRULE cannot be parsed keeps its original times and
//     carries a placeholder recurrence label.
//
// Only a document-level parse failure is returned as an error (*ParseError).
func Normalize(body []byte, ref time.Time) (model.EventList, error) {
	parsed, err := ParseICS(body)
	if err != nil {
		return nil, err
	}
	return NormalizeEvents(parsed, ref), nil
}

// NormalizeEvents is Normalize for events that were already parsed.
func NormalizeEvents(parsed []ParsedEvent, ref time.Time) model.EventList {
	weekStart := WeekStart(ref)
	events := make(model.EventList, 0, len(parsed))

	for _, pe := range parsed {
		ev, ok := resolveEvent(pe, weekStart)
		if !ok {
			continue
		}
		events = append(events, ev)
	}

	events.SortByStart()
	return events
}

// resolveEvent applies the week filter / recurrence shift to one event.
// ok is false when the event is not relevant for the week.
func resolveEvent(pe ParsedEvent, weekStart time.Time) (model.Event, bool) {
	in := model.EventInput{
		Title:       pe.Summary,
		Description: pe.Description,
		Start:       pe.Start,
		End:         pe.End,
	}

	if pe.RawRRule == "" {
		if pe.Start.Before(weekStart) {
			return model.Event{}, false
		}
		return model.NewEvent(in), true
	}

	rule := recur.Parse(pe.RawRRule, pe.Start, pe.ExDates...)
	in.Recurrence = model.NewRecurrence(rule)

	if err := rule.Err(); err != nil {
		appLog.Warn("rrule unparseable; keeping original times", "uid", pe.UID, "rrule", pe.RawRRule, "reason", err.Error())
		return model.NewEvent(in), true
	}

	next, ok := rule.Next(weekStart)
	if !ok {
		appLog.Debug("recurrence ended before week", "uid", pe.UID, "week_start", weekStart.Format(time.RFC3339))
		return model.Event{}, false
	}

	// Shift both ends by the same offset so the duration is preserved.
	shift := next.Sub(pe.Start)
	in.Start = pe.Start.Add(shift)
	in.End = pe.End.Add(shift)

	return model.NewEvent(in), true
}
