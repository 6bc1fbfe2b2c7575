package model

import (
	"slices"
	"strings"
	"time"

	"weekcal/internal/recur"
	"weekcal/internal/sanitize"
)

// titleTokens is how many words of the summary make it into Event.Title.
const titleTokens = 3

// EventRecurrence describes how an event repeats.
type EventRecurrence struct {
	// Text is derived from RRule when the value is built.
	Text string `json:"text"`
	// RRule is the raw rule, passed through untouched.
	RRule string `json:"rrule"`
}

// NewRecurrence builds an EventRecurrence whose Text matches the parsed rule.
func NewRecurrence(rule recur.Rule) *EventRecurrence {
	return &EventRecurrence{
		Text:  rule.Label(),
		RRule: rule.Raw,
	}
}

// Event is a single normalized calendar event, ready to be served as JSON.
// Values are built once by NewEvent and not modified afterwards.
type Event struct {
	Title       string           `json:"title"`
	TitleRaw    string           `json:"title_raw"`
	Description string           `json:"description"`
	Start       string           `json:"start"`
	End         string           `json:"end"`
	IsAllDay    bool             `json:"is_all_day"`
	Recurrence  *EventRecurrence `json:"recurrence"`

	startAt time.Time
	endAt   time.Time
}

// EventInput carries the raw values an Event is derived from.
type EventInput struct {
	Title       string
	Description string
	Start       time.Time
	End         time.Time
	Recurrence  *EventRecurrence
}

// NewEvent derives every Event field from in.
func NewEvent(in EventInput) Event {
	start := in.Start.UTC()
	end := in.End.UTC()
	titleRaw := strings.TrimSpace(in.Title)

	return Event{
		Title:       DisplayTitle(titleRaw),
		TitleRaw:    titleRaw,
		Description: sanitize.Clean(in.Description),
		Start:       FormatISO(start),
		End:         FormatISO(end),
		IsAllDay:    isMidnight(start) && isMidnight(end),
		Recurrence:  in.Recurrence,
		startAt:     start,
		endAt:       end,
	}
}

// StartTime is the UTC start instant behind Start.
func (e Event) StartTime() time.Time { return e.startAt }

// EndTime is the UTC end instant behind End.
func (e Event) EndTime() time.Time { return e.endAt }

// DisplayTitle keeps the first three words of s, upper-cased.
func DisplayTitle(s string) string {
	fields := strings.Fields(s)
	if len(fields) > titleTokens {
		fields = fields[:titleTokens]
	}
	return strings.ToUpper(strings.Join(fields, " "))
}

// FormatISO renders t in UTC as 2006-01-02T15:04:05+00:00, adding a
// microsecond fraction only when t has sub-second precision.
func FormatISO(t time.Time) string {
	t = t.UTC()
	if t.Nanosecond()/int(time.Microsecond) != 0 {
		return t.Format("2006-01-02T15:04:05.000000-07:00")
	}
	return t.Format("2006-01-02T15:04:05-07:00")
}

func isMidnight(t time.Time) bool {
	return t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0
}

// EventList is a list of events ordered by ascending start.
type EventList []Event

// SortByStart orders events chronologically; ties keep their input order.
func (l EventList) SortByStart() {
	slices.SortStableFunc(l, func(a, b Event) int {
		return a.startAt.Compare(b.startAt)
	})
}
