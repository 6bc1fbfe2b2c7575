// Package recur wraps RRULE parsing and turns rules into short labels such as
// "WEEKLY" or "EVERY 3 MONTHLY".
package recur

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samber/mo"
	"github.com/teambition/rrule-go"
)

// UnparseablePrefix starts the label of a rule that could not be parsed.
const UnparseablePrefix = "UNPARSEABLE RRULE: "

var frequencyNames = map[rrule.Frequency]string{
	rrule.DAILY:   "DAILY",
	rrule.WEEKLY:  "WEEKLY",
	rrule.MONTHLY: "MONTHLY",
	rrule.YEARLY:  "YEARLY",
}

// Describe returns a human-readable label for a parsed rule. It never fails.
func Describe(opt rrule.ROption) string {
	name, known := frequencyNames[opt.Freq]
	if !known {
		return "REPEATING"
	}

	interval := opt.Interval
	if interval <= 0 {
		interval = 1
	}

	switch {
	case interval == 1:
		return name
	case interval == 2 && opt.Freq == rrule.WEEKLY:
		return "BI-WEEKLY"
	case interval == 2 && opt.Freq == rrule.DAILY:
		return "BI-DAILY"
	default:
		return fmt.Sprintf("EVERY %d %s", interval, name)
	}
}

// Rule is a raw RRULE together with the outcome of parsing it against an
// anchor (the event's original DTSTART).
type Rule struct {
	Raw    string
	parsed mo.Result[*rrule.Set]
	opt    rrule.ROption
}

// Parse parses raw anchored at dtstart. Exclusion dates are removed from the
// occurrences. A parse failure is kept inside the Rule, not returned.
func Parse(raw string, dtstart time.Time, exdates ...time.Time) Rule {
	raw = strings.TrimSpace(raw)
	r := Rule{Raw: raw}

	if raw == "" {
		r.parsed = mo.Err[*rrule.Set](errors.New("empty rule"))
		return r
	}

	opt, err := rrule.StrToROption(strings.TrimPrefix(raw, "RRULE:"))
	if err != nil {
		r.parsed = mo.Err[*rrule.Set](err)
		return r
	}
	opt.Dtstart = dtstart

	rule, err := rrule.NewRRule(*opt)
	if err != nil {
		r.parsed = mo.Err[*rrule.Set](err)
		return r
	}

	set := &rrule.Set{}
	set.RRule(rule)
	for _, ex := range exdates {
		set.ExDate(ex)
	}

	r.opt = *opt
	r.parsed = mo.Ok(set)
	return r
}

// Err reports why the rule could not be parsed, or nil.
func (r Rule) Err() error {
	return r.parsed.Error()
}

// Label is Describe for a parsed rule, or a placeholder embedding Raw.
func (r Rule) Label() string {
	if r.parsed.IsError() {
		return UnparseablePrefix + r.Raw
	}
	return Describe(r.opt)
}

// Next returns the first occurrence strictly after t. ok is false when the
// rule is unparseable or has no occurrence left.
func (r Rule) Next(t time.Time) (next time.Time, ok bool) {
	set, err := r.parsed.Get()
	if err != nil {
		return time.Time{}, false
	}
	next = set.After(t, false)
	if next.IsZero() {
		return time.Time{}, false
	}
	return next, true
}
