package ical

import (
	"time"

	"github.com/teambition/rrule-go"
)

// yearlyRule returns the yearly recurrence of a date. February 29 falls on
// the last day of February in common years.
func yearlyRule(date time.Time) (*rrule.RRule, error) {
	start := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	opt := rrule.ROption{Freq: rrule.YEARLY, Dtstart: start}
	if date.Month() == time.February && date.Day() == 29 {
		opt.Bymonth = []int{2}
		opt.Bymonthday = []int{-1}
	}
	return rrule.NewRRule(opt)
}

// RuleFor renders the RRULE value matching yearlyRule.
func RuleFor(date time.Time) string {
	if date.Month() == time.February && date.Day() == 29 {
		return "FREQ=YEARLY;BYMONTH=2;BYMONTHDAY=-1"
	}
	return "FREQ=YEARLY"
}

// Occurrences returns the anniversaries of date within [from, until).
func Occurrences(date, from, until time.Time) []time.Time {
	if !until.After(from) {
		return nil
	}
	r, err := yearlyRule(date)
	if err != nil {
		return nil
	}
	var out []time.Time
	for _, t := range r.Between(from.UTC(), until.UTC(), true) {
		if t.Before(until) {
			out = append(out, t)
		}
	}
	return out
}

// NextOccurrence returns the first anniversary of date on or after from.
func NextOccurrence(date, from time.Time) (time.Time, bool) {
	r, err := yearlyRule(date)
	if err != nil {
		return time.Time{}, false
	}
	t := r.After(from.UTC(), true)
	return t, !t.IsZero()
}

// Age returns the number of full years between date and occurrence.
func Age(date, occurrence time.Time) int {
	return occurrence.Year() - date.Year()
}
