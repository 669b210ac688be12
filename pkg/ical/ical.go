// Package ical renders contact birthdays and anniversaries as an iCalendar
// feed.
package ical

import (
	"bytes"
	"fmt"
	"time"

	"github.com/emersion/go-ical"
)

// Anniversary is one yearly all-day entry of the feed.
type Anniversary struct {
	UID     string
	Summary string
	Date    time.Time
}

// BuildCalendar returns a calendar holding one recurring all-day event per
// entry.
func BuildCalendar(prodID string, entries []Anniversary, stamp time.Time) *ical.Calendar {
	cal := &ical.Calendar{
		Component: &ical.Component{
			Name:  ical.CompCalendar,
			Props: ical.Props{},
		},
	}
	cal.Props.SetText(ical.PropProductID, prodID)
	cal.Props.SetText(ical.PropVersion, "2.0")

	for _, e := range entries {
		ev := &ical.Component{
			Name:  ical.CompEvent,
			Props: ical.Props{},
		}
		ev.Props.SetText(ical.PropUID, e.UID)
		ev.Props.SetDateTime(ical.PropDateTimeStamp, stamp.UTC())
		ev.Props.SetText(ical.PropSummary, e.Summary)
		ev.Props.Set(dateProp(ical.PropDateTimeStart, e.Date))
		ev.Props.Set(dateProp(ical.PropDateTimeEnd, e.Date.AddDate(0, 0, 1)))

		rule := ical.NewProp(ical.PropRecurrenceRule)
		rule.Value = RuleFor(e.Date)
		ev.Props.Set(rule)

		transp := ical.NewProp("TRANSP")
		transp.Value = "TRANSPARENT"
		ev.Props.Set(transp)

		cal.Children = append(cal.Children, ev)
	}
	return cal
}

func dateProp(name string, t time.Time) *ical.Prop {
	p := ical.NewProp(name)
	p.Params.Set("VALUE", "DATE")
	p.Value = t.UTC().Format("20060102")
	return p
}

// Encode serialises cal.
func Encode(cal *ical.Calendar) ([]byte, error) {
	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return nil, fmt.Errorf("encode calendar: %w", err)
	}
	return buf.Bytes(), nil
}
