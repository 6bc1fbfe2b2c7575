package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "weekcal/internal/log"
)

// ParsedEvent is one VEVENT with its times already normalized to UTC.
// Normalize builds model.Event values from these.
type ParsedEvent struct {
	UID         string
	Summary     string
	Description string

	Start  time.Time
	End    time.Time
	AllDay bool

	RawRRule string
	ExDates  []time.Time
}

// ParseICS parses an iCalendar payload into its VEVENTs.
//
//   - An empty or malformed document is a *ParseError.
//   - A VEVENT with a missing or unreadable DTSTART/DTEND is logged and
//     skipped; the remaining events are still returned.
func ParseICS(body []byte) ([]ParsedEvent, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, &ParseError{Err: errors.New("empty ICS body")}
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, &ParseError{Err: err}
	}

	vevents := cal.Events()
	events := make([]ParsedEvent, 0, len(vevents))

	for _, comp := range vevents {
		ev, perr := parseVEvent(comp)
		if perr != nil {
			// Log and skip this event, but keep parsing others.
			appLog.Warn("ics vevent skipped", "uid", ev.UID, "reason", perr.Error())
			continue
		}
		events = append(events, ev)
	}

	appLog.Debug("ics parse completed", "vevents", len(vevents), "usable", len(events))
	return events, nil
}

func parseVEvent(ve *ical.VEvent) (ParsedEvent, error) {
	var out ParsedEvent

	out.UID = propertyValue(ve.GetProperty(ical.ComponentPropertyUniqueId))
	out.Summary = propertyValue(ve.GetProperty(ical.ComponentPropertySummary))
	out.Description = propertyValue(ve.GetProperty(ical.ComponentPropertyDescription))

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil {
		return out, errors.New("missing DTSTART")
	}
	start, err := parseICSTime(dtStart.Value, dtStart.ICalParameters)
	if err != nil {
		return out, fmt.Errorf("DTSTART: %w", err)
	}
	out.Start = start
	out.AllDay = isDateValue(dtStart)

	dtEnd := ve.GetProperty(ical.ComponentPropertyDtEnd)
	switch {
	case dtEnd != nil:
		end, err := parseICSTime(dtEnd.Value, dtEnd.ICalParameters)
		if err != nil {
			return out, fmt.Errorf("DTEND: %w", err)
		}
		out.End = end
	case out.AllDay:
		// A date-only DTSTART without DTEND lasts one day.
		out.End = start.AddDate(0, 0, 1)
	default:
		return out, errors.New("missing DTEND")
	}

	// RRULE is kept raw; the engine parses it against DTSTART.
	out.RawRRule = strings.TrimSpace(propertyValue(ve.GetProperty(ical.ComponentPropertyRrule)))

	// EXDATE can appear multiple times, each with a comma-separated list.
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if t, err := parseICSTime(part, p.ICalParameters); err == nil {
				out.ExDates = append(out.ExDates, t)
			}
		}
	}

	return out, nil
}

// parseICSTime parses a DATE or DATE-TIME value and returns it in UTC.
//
//   - 20240101T090000Z            -> UTC as written
//   - TZID=Area/City:20240101T090000 -> converted from that zone
//   - 20240101T090000 (floating)  -> read as UTC
//   - 20240101 (date)             -> midnight UTC
func parseICSTime(value string, params map[string][]string) (time.Time, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return time.Time{}, errors.New("empty time value")
	}

	if strings.HasSuffix(v, "Z") {
		for _, layout := range []string{"20060102T150405Z", "20060102T1504Z"} {
			if t, err := time.Parse(layout, v); err == nil {
				return t.UTC(), nil
			}
		}
		return time.Time{}, fmt.Errorf("unable to parse time value %q", v)
	}

	loc := time.UTC
	if tzid := firstParam(params, "TZID"); tzid != "" && strings.Contains(v, "T") {
		if l, err := time.LoadLocation(tzid); err == nil {
			loc = l
		} else {
			appLog.Warn("unknown TZID; treating time as UTC", "tzid", tzid)
		}
	}

	for _, layout := range []string{"20060102T150405", "20060102T1504", "20060102"} {
		if t, err := time.ParseInLocation(layout, v, loc); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse time value %q", v)
}

// isDateValue reports whether a DTSTART holds a DATE rather than a DATE-TIME.
func isDateValue(p *ical.IANAProperty) bool {
	if strings.EqualFold(firstParam(p.ICalParameters, "VALUE"), "DATE") {
		return true
	}
	return !strings.Contains(p.Value, "T")
}

func firstParam(params map[string][]string, name string) string {
	if vs, ok := params[name]; ok && len(vs) > 0 {
		return strings.TrimSpace(vs[0])
	}
	return ""
}

func propertyValue(p *ical.IANAProperty) string {
	if p == nil {
		return ""
	}
	return p.Value
}
