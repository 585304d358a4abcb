package calendar

import (
	"fmt"
	"time"
)

// SchoolYearStartMonth is the month a new school year begins in (on the 1st).
const SchoolYearStartMonth = time.September

// Week is one Monday to Friday span.
type Week struct {
	Number int       `json:"week_number"`
	Year   int       `json:"year"`
	Start  time.Time `json:"start_date"`
	End    time.Time `json:"end_date"`
}

// Contains reports whether t falls between Monday 00:00 and Friday 23:59:59.999 inclusive.
func (w Week) Contains(t time.Time) bool {
	if t.IsZero() {
		return false
	}
	return !t.Before(w.Start) && !t.After(w.End)
}

// Label renders the week the way the dashboard headers show it, e.g. "KW 37".
func (w Week) Label() string {
	return fmt.Sprintf("KW %d", w.Number)
}

// SchoolYear spans September 1 of StartYear through August 31 of EndYear.
type SchoolYear struct {
	StartYear int       `json:"start"`
	EndYear   int       `json:"end"`
	From      time.Time `json:"from"`
	To        time.Time `json:"to"`
}

// Contains reports whether t lies inside the school year span.
func (s SchoolYear) Contains(t time.Time) bool {
	if t.IsZero() {
		return false
	}
	return !t.Before(s.From) && !t.After(s.To)
}

// Label renders the school year as "2024/25".
func (s SchoolYear) Label() string {
	return fmt.Sprintf("%d/%02d", s.StartYear, s.EndYear%100)
}

// WeekNumber returns the ISO-8601 week number of date.
func WeekNumber(date time.Time) int {
	_, week := date.ISOWeek()
	return week
}

// StartOfDay truncates t to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// EndOfDay returns the last millisecond of t's calendar day.
func EndOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, int(999*time.Millisecond), t.Location())
}

// LastCompletedFriday returns the Friday of the most recently finished school week.
// On Saturday and Sunday that is the day before yesterday or yesterday; on Monday
// through Friday it is the previous week's Friday, so the running week never counts.
func LastCompletedFriday(now time.Time) time.Time {
	today := StartOfDay(now)

	var back int
	switch wd := today.Weekday(); wd {
	case time.Saturday:
		back = 1
	case time.Sunday:
		back = 2
	default:
		back = int(wd) + 2
	}

	return today.AddDate(0, 0, -back)
}

// LastNCompleteWeeks returns the n most recent complete Monday to Friday weeks
// relative to now, oldest first.
func LastNCompleteWeeks(n int, now time.Time) []Week {
	if n <= 0 {
		return nil
	}

	friday := LastCompletedFriday(now)
	weeks := make([]Week, n)
	for i := 0; i < n; i++ {
		fri := friday.AddDate(0, 0, -7*i)
		mon := fri.AddDate(0, 0, -4)
		year, number := mon.ISOWeek()
		weeks[n-1-i] = Week{
			Number: number,
			Year:   year,
			Start:  mon,
			End:    EndOfDay(fri),
		}
	}

	return weeks
}

// SchoolYearOf returns the school year t belongs to.
func SchoolYearOf(t time.Time) SchoolYear {
	start := t.Year()
	if t.Month() < SchoolYearStartMonth {
		start--
	}

	loc := t.Location()
	from := time.Date(start, SchoolYearStartMonth, 1, 0, 0, 0, 0, loc)
	to := EndOfDay(from.AddDate(1, 0, -1))

	return SchoolYear{
		StartYear: start,
		EndYear:   start + 1,
		From:      from,
		To:        to,
	}
}

// CurrentSchoolYear returns the school year that contains now.
func CurrentSchoolYear(now time.Time) SchoolYear {
	return SchoolYearOf(now)
}
