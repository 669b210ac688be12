package ical

import (
	"strings"
	"testing"
	"time"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestOccurrences(t *testing.T) {
	tests := []struct {
		name        string
		date        time.Time
		from, until time.Time
		want        []time.Time
	}{
		{
			name:  "two years",
			date:  day(1990, time.March, 15),
			from:  day(2024, time.January, 1),
			until: day(2026, time.January, 1),
			want:  []time.Time{day(2024, time.March, 15), day(2025, time.March, 15)},
		},
		{
			name:  "until is exclusive",
			date:  day(1990, time.March, 15),
			from:  day(2024, time.January, 1),
			until: day(2024, time.March, 15),
			want:  nil,
		},
		{
			name:  "leap day",
			date:  day(1992, time.February, 29),
			from:  day(2023, time.January, 1),
			until: day(2025, time.January, 1),
			want:  []time.Time{day(2023, time.February, 28), day(2024, time.February, 29)},
		},
		{
			name:  "empty range",
			date:  day(1990, time.March, 15),
			from:  day(2024, time.May, 1),
			until: day(2024, time.May, 1),
			want:  nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Occurrences(tt.date, tt.from, tt.until)
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if !got[i].Equal(tt.want[i]) {
					t.Errorf("occurrence %d = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestNextOccurrence(t *testing.T) {
	got, ok := NextOccurrence(day(1990, time.March, 15), day(2024, time.March, 15))
	if !ok || !got.Equal(day(2024, time.March, 15)) {
		t.Errorf("same day: got %v %v", got, ok)
	}
	got, ok = NextOccurrence(day(1990, time.March, 15), day(2024, time.March, 16))
	if !ok || !got.Equal(day(2025, time.March, 15)) {
		t.Errorf("next year: got %v %v", got, ok)
	}
	if a := Age(day(1990, time.March, 15), got); a != 35 {
		t.Errorf("age = %d, want 35", a)
	}
}

func TestBuildCalendar(t *testing.T) {
	cal := BuildCalendar("-//Example//Birthdays//EN", []Anniversary{
		{UID: "bday-1", Summary: "Jane Doe", Date: day(1990, time.March, 15)},
		{UID: "bday-2", Summary: "Leap Person", Date: day(1992, time.February, 29)},
	}, time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))

	data, err := Encode(cal)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	out := string(data)
	for _, want := range []string{
		"PRODID:-//Example//Birthdays//EN",
		"UID:bday-1",
		"SUMMARY:Jane Doe",
		"DTSTART;VALUE=DATE:19900315",
		"DTEND;VALUE=DATE:19900316",
		"RRULE:FREQ=YEARLY\r\n",
		"RRULE:FREQ=YEARLY;BYMONTH=2;BYMONTHDAY=-1",
		"TRANSP:TRANSPARENT",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("calendar missing %q:\n%s", want, out)
		}
	}
	if n := strings.Count(out, "BEGIN:VEVENT"); n != 2 {
		t.Errorf("expected 2 events, got %d", n)
	}
}
