package occurrence

import (
	"github.com/teambition/rrule-go"

	appLog "smartcal/internal/log"
	"smartcal/internal/model"
)

var weekdaysNoSaturday = []rrule.Weekday{rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SU}
var weekdaysNoSunday = []rrule.Weekday{rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA}
var weekdaysOnly = []rrule.Weekday{rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR}

// RecurrenceOption describes a ranged personal event as a daily rule that
// ends on the last day. Weekend exclusions become a BYDAY filter.
func RecurrenceOption(p model.Personal) rrule.ROption {
	opt := rrule.ROption{
		Freq:    rrule.DAILY,
		Dtstart: p.Start.Time,
		Until:   p.End.Time,
	}
	switch {
	case p.ExcludeSaturday && p.ExcludeSunday:
		opt.Byweekday = weekdaysOnly
	case p.ExcludeSaturday:
		opt.Byweekday = weekdaysNoSaturday
	case p.ExcludeSunday:
		opt.Byweekday = weekdaysNoSunday
	}
	return opt
}

// RRuleFor renders the rule of a ranged personal event as an RRULE value,
// e.g. "FREQ=DAILY;UNTIL=20260930T000000Z;BYDAY=MO,TU,WE,TH,FR".
func RRuleFor(p model.Personal) string {
	opt := RecurrenceOption(p)
	return opt.RRuleString()
}

// ExpandDates lists the days in [from, to] on which ev occurs, in order.
// Single-day events never need a rule.
func ExpandDates(ev model.Event, from, to model.Date) []model.Date {
	out := make([]model.Date, 0)
	if to.Before(from) {
		return out
	}

	p, ok := ev.(model.Personal)
	if !ok || !p.Ranged() {
		start, _ := ev.Span()
		if OccursOn(start, ev) && !start.Before(from) && !start.After(to) {
			out = append(out, start)
		}
		return out
	}

	r, err := rrule.NewRRule(RecurrenceOption(p))
	if err != nil {
		appLog.Error("expand: failed to build rule", err, "id", p.ID)
		return out
	}
	for _, t := range r.Between(from.Time, to.Time, true) {
		out = append(out, model.DateOf(t))
	}
	return out
}
