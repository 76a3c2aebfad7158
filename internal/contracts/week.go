package contracts

import (
	"fmt"
	"time"
)

// WeekKey identifies a trading week as ISO year-week, e.g. "2026-W42"
type WeekKey string

// WeekKeyFor returns the ISO week key containing t
func WeekKeyFor(t time.Time) WeekKey {
	year, week := t.ISOWeek()
	return WeekKey(fmt.Sprintf("%04d-W%02d", year, week))
}

// ParseWeekKey validates a week key string
func ParseWeekKey(s string) (WeekKey, error) {
	var year, week int
	if _, err := fmt.Sscanf(s, "%04d-W%02d", &year, &week); err != nil {
		return "", fmt.Errorf("invalid week key %q: %w", s, err)
	}
	if week < 1 || week > 53 {
		return "", fmt.Errorf("invalid week key %q: week out of range", s)
	}
	return WeekKey(fmt.Sprintf("%04d-W%02d", year, week)), nil
}

// NextTradingWeek returns the Monday..Friday range the weekend run prepares.
// On Saturday/Sunday this is the coming week; on a weekday it is the current week.
func NextTradingWeek(now time.Time) (WeekKey, time.Time, time.Time) {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	var monday time.Time
	switch day.Weekday() {
	case time.Saturday:
		monday = day.AddDate(0, 0, 2)
	case time.Sunday:
		monday = day.AddDate(0, 0, 1)
	default:
		monday = day.AddDate(0, 0, -int(day.Weekday()-time.Monday))
	}
	friday := monday.AddDate(0, 0, 4)
	return WeekKeyFor(monday), monday, friday
}

// String implements fmt.Stringer
func (k WeekKey) String() string {
	return string(k)
}

// Range returns the Monday and Friday of the ISO week in loc
func (k WeekKey) Range(loc *time.Location) (time.Time, time.Time, error) {
	var year, week int
	if _, err := fmt.Sscanf(string(k), "%04d-W%02d", &year, &week); err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid week key %q: %w", k, err)
	}
	if loc == nil {
		loc = time.UTC
	}
	// ISO week 1 contains January 4th
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, loc)
	offset := int(jan4.Weekday()+6) % 7
	monday := jan4.AddDate(0, 0, -offset+(week-1)*7)
	return monday, monday.AddDate(0, 0, 4), nil
}
