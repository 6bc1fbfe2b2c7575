package ics

import (
	"strings"
	"time"
	_ "time/tzdata"
)

// wednesday is the reference time most tests use; its week starts on
// Monday 2024-06-10.
var wednesday = time.Date(2024, 6, 12, 15, 0, 0, 0, time.UTC)

func calendarBody(events ...string) []byte {
	var b strings.Builder
	b.WriteString("BEGIN:VCALENDAR\nVERSION:2.0\nPRODID:-//weekcal//test//EN\n")
	for _, ev := range events {
		b.WriteString(ev)
	}
	b.WriteString("END:VCALENDAR\n")
	return []byte(b.String())
}

func vevent(lines ...string) string {
	return "BEGIN:VEVENT\n" + strings.Join(lines, "\n") + "\nEND:VEVENT\n"
}
