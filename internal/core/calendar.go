package core

import (
	"sort"
	"time"

	"github.com/valter-silva-au/jizoni-schedule/pkg/models"
)

// DateOf truncates t to its calendar day at midnight UTC. All schedule
// dates pass through here so that they compare with ==.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// dayNumber is the number of days since 1970-01-01 (a Thursday).
func dayNumber(t time.Time) int64 {
	return DateOf(t).Unix() / 86400
}

func fromDayNumber(n int64) time.Time {
	return time.Unix(n*86400, 0).UTC()
}

func weekdayOf(n int64) time.Weekday {
	return time.Weekday(((n+4)%7 + 7) % 7)
}

// WorkCalendar answers working-time questions for one calendar.
//
// Every date has a working-day index: the number of working days before
// it. A non-working date shares the index of the next working date, so a
// date falling on a weekend behaves like the start of the following
// working day.
type WorkCalendar struct {
	id         string
	name       string
	week       [7]bool
	perWeek    int
	exceptions map[int64]bool
	excDays    []int64
}

// NewWorkCalendar validates cal and builds its working-time index.
func NewWorkCalendar(cal models.Calendar) (*WorkCalendar, error) {
	c := &WorkCalendar{
		id:         cal.ID,
		name:       cal.Name,
		week:       cal.WorkWeek,
		exceptions: make(map[int64]bool, len(cal.Exceptions)),
	}
	for _, working := range cal.WorkWeek {
		if working {
			c.perWeek++
		}
	}
	if c.perWeek == 0 {
		return nil, newError(CodeInvalidCalendarConfig, "calendar %q has no working days in its weekly pattern", cal.ID)
	}
	for _, ex := range cal.Exceptions {
		n := dayNumber(ex.Date)
		if _, dup := c.exceptions[n]; dup {
			return nil, newError(CodeInvalidCalendarConfig, "calendar %q lists %s more than once",
				cal.ID, ex.Date.Format(time.DateOnly))
		}
		c.exceptions[n] = ex.Working
		c.excDays = append(c.excDays, n)
	}
	sort.Slice(c.excDays, func(i, j int) bool { return c.excDays[i] < c.excDays[j] })
	return c, nil
}

// ID returns the calendar identifier.
func (c *WorkCalendar) ID() string { return c.id }

// Name returns the calendar display name.
func (c *WorkCalendar) Name() string { return c.name }

func (c *WorkCalendar) workingDay(n int64) bool {
	if working, ok := c.exceptions[n]; ok {
		return working
	}
	return c.week[weekdayOf(n)]
}

// IsWorkingDay reports whether work happens on d. Exceptions override
// the weekly pattern.
func (c *WorkCalendar) IsWorkingDay(d time.Time) bool {
	return c.workingDay(dayNumber(d))
}

// NextWorkingDay returns d if it is a working day, otherwise the next
// working day after it.
func (c *WorkCalendar) NextWorkingDay(d time.Time) time.Time {
	return fromDayNumber(c.ceil(dayNumber(d)))
}

// PrevWorkingDay returns d if it is a working day, otherwise the last
// working day before it.
func (c *WorkCalendar) PrevWorkingDay(d time.Time) time.Time {
	return fromDayNumber(c.floor(dayNumber(d)))
}

func (c *WorkCalendar) ceil(n int64) int64 {
	for !c.workingDay(n) {
		n++
	}
	return n
}

func (c *WorkCalendar) floor(n int64) int64 {
	for !c.workingDay(n) {
		n--
	}
	return n
}

// AddWorkingDays returns the working day whose index is index(d)+n. With
// n == 0 this rolls d forward onto a working day; negative n moves back.
func (c *WorkCalendar) AddWorkingDays(d time.Time, n int) time.Time {
	cur := c.ceil(dayNumber(d))
	for ; n > 0; n-- {
		cur = c.ceil(cur + 1)
	}
	for ; n < 0; n++ {
		cur = c.floor(cur - 1)
	}
	return fromDayNumber(cur)
}

// WorkingDaysBetween returns index(b) - index(a): the number of working
// days in [a, b), negated when b is before a.
func (c *WorkCalendar) WorkingDaysBetween(a, b time.Time) int {
	na, nb := dayNumber(a), dayNumber(b)
	if na <= nb {
		return c.countRange(na, nb)
	}
	return -c.countRange(nb, na)
}

// countRange counts working days in [from, to) using whole weeks plus the
// exceptions that fall inside the range.
func (c *WorkCalendar) countRange(from, to int64) int {
	days := to - from
	full := days / 7
	count := int(full) * c.perWeek
	for i := from + full*7; i < to; i++ {
		if c.week[weekdayOf(i)] {
			count++
		}
	}

	lo := sort.Search(len(c.excDays), func(i int) bool { return c.excDays[i] >= from })
	for i := lo; i < len(c.excDays) && c.excDays[i] < to; i++ {
		n := c.excDays[i]
		weekly := c.week[weekdayOf(n)]
		switch working := c.exceptions[n]; {
		case working && !weekly:
			count++
		case !working && weekly:
			count--
		}
	}
	return count
}

// CalendarSet resolves calendars by ID with a project default.
type CalendarSet struct {
	defaultID string
	calendars map[string]*WorkCalendar
}

// NewCalendarSet builds a set from validated calendars. defaultID must be
// one of them.
func NewCalendarSet(defaultID string, cals ...*WorkCalendar) (*CalendarSet, error) {
	s := &CalendarSet{defaultID: defaultID, calendars: make(map[string]*WorkCalendar, len(cals))}
	for _, c := range cals {
		s.calendars[c.ID()] = c
	}
	if _, ok := s.calendars[defaultID]; !ok {
		return nil, newError(CodeInvalidCalendarConfig, "default calendar %q is not defined", defaultID)
	}
	return s, nil
}

// Default returns the project calendar.
func (s *CalendarSet) Default() *WorkCalendar { return s.calendars[s.defaultID] }

// For returns the calendar used by task t: its override when set and
// known, otherwise the project default.
func (s *CalendarSet) For(t *models.Task) *WorkCalendar {
	if t != nil && t.CalendarID != "" {
		if c, ok := s.calendars[t.CalendarID]; ok {
			return c
		}
	}
	return s.Default()
}

// Has reports whether id is a known calendar.
func (s *CalendarSet) Has(id string) bool {
	_, ok := s.calendars[id]
	return ok
}

// IDs returns the calendar IDs in sorted order.
func (s *CalendarSet) IDs() []string {
	ids := make([]string, 0, len(s.calendars))
	for id := range s.calendars {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
