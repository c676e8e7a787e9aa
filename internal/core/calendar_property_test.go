package core

import (
	"testing"

	"github.com/valter-silva-au/jizoni-schedule/pkg/models"
	"pgregory.net/rapid"
)

func calendarGenerator() *rapid.Generator[models.Calendar] {
	return rapid.Custom(func(t *rapid.T) models.Calendar {
		var week [7]bool
		week[rapid.IntRange(0, 6).Draw(t, "anchorWeekday")] = true
		for i := range week {
			if rapid.Bool().Draw(t, "weekday") {
				week[i] = true
			}
		}

		offsets := rapid.SliceOfNDistinct(rapid.IntRange(-60, 120), 0, 12, rapid.ID[int]).Draw(t, "exceptionOffsets")
		cal := models.Calendar{ID: "gen", WorkWeek: week}
		for _, off := range offsets {
			cal.Exceptions = append(cal.Exceptions, models.CalendarException{
				Date:    day(off),
				Working: rapid.Bool().Draw(t, "working"),
			})
		}
		return cal
	})
}

// Feature: jizoni-schedule, Property 1: Working-Day Arithmetic Agrees
// For any valid calendar, date and offset n, moving n working days and
// counting back SHALL give n, and the result SHALL be a working day.
func TestProperty_AddWorkingDaysInverse(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		c, err := NewWorkCalendar(calendarGenerator().Draw(rt, "calendar"))
		if err != nil {
			rt.Fatalf("NewWorkCalendar: %v", err)
		}
		start := day(rapid.IntRange(-30, 90).Draw(rt, "start"))
		n := rapid.IntRange(-40, 40).Draw(rt, "n")

		end := c.AddWorkingDays(start, n)
		if !c.IsWorkingDay(end) {
			rt.Fatalf("AddWorkingDays landed on non-working day %s", end)
		}
		if got := c.WorkingDaysBetween(start, end); got != n {
			rt.Fatalf("WorkingDaysBetween(start, AddWorkingDays(start, %d)) = %d", n, got)
		}
	})
}

// Feature: jizoni-schedule, Property 2: Working-Day Count Is Antisymmetric
// For any two dates a and b, counting from a to b SHALL be the negation of
// counting from b to a, and moving from a by that count SHALL reach the
// first working day on or after b.
func TestProperty_WorkingDaysBetweenAntisymmetric(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		c, err := NewWorkCalendar(calendarGenerator().Draw(rt, "calendar"))
		if err != nil {
			rt.Fatalf("NewWorkCalendar: %v", err)
		}
		a := day(rapid.IntRange(-30, 90).Draw(rt, "a"))
		b := day(rapid.IntRange(-30, 90).Draw(rt, "b"))

		ab := c.WorkingDaysBetween(a, b)
		if ba := c.WorkingDaysBetween(b, a); ab != -ba {
			rt.Fatalf("between(a,b)=%d but between(b,a)=%d", ab, ba)
		}
		if got, want := c.AddWorkingDays(a, ab), c.NextWorkingDay(b); !got.Equal(want) {
			rt.Fatalf("AddWorkingDays(a, %d) = %s, want %s", ab, got, want)
		}
	})
}
