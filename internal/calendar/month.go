package calendar

import (
	"time"

	"tutorcal/internal/model"
)

// Cell is one rendered day of the month grid.
type Cell struct {
	Date    time.Time
	InMonth bool
	IsToday bool
	Holiday string
	Events  []model.CalendarEvent
}

// ShowHoliday reports whether the holiday label should be drawn. Labels of
// adjacent-month days are resolved but not displayed.
func (c Cell) ShowHoliday() bool {
	return c.InMonth && c.Holiday != ""
}

// Month is the renderable view of one reference month.
type Month struct {
	Year  int
	Month time.Month
	Cells [GridCells]Cell
}

// Weeks splits the cells into 6 rows of 7.
func (m Month) Weeks() [][]Cell {
	weeks := make([][]Cell, 0, GridCells/7)
	for i := 0; i < GridCells; i += 7 {
		weeks = append(weeks, m.Cells[i:i+7])
	}
	return weeks
}

// InMonth reports whether t falls in ref's year and month.
func InMonth(t, ref time.Time) bool {
	return t.Year() == ref.Year() && t.Month() == ref.Month()
}

// FilterMonth keeps the events that start in ref's month, judged on the
// wall clock of ref's location. Adjacent-month cells of the grid therefore
// never show events.
func FilterMonth(events []model.CalendarEvent, ref time.Time) []model.CalendarEvent {
	out := make([]model.CalendarEvent, 0, len(events))
	for _, ev := range events {
		if InMonth(ev.Start.In(ref.Location()), ref) {
			out = append(out, ev)
		}
	}
	return out
}

// BindEvents places each event on the cell matching its start day. End and
// time of day are ignored, so an event crossing midnight stays on its start
// cell. Input order is preserved within a cell.
func BindEvents(grid [GridCells]time.Time, events []model.CalendarEvent) [GridCells][]model.CalendarEvent {
	var out [GridCells][]model.CalendarEvent

	index := make(map[string]int, GridCells)
	for i, d := range grid {
		index[DateKey(d)] = i
	}
	for _, ev := range events {
		// Compare in the grid's location so both sides use the same wall clock.
		start := ev.Start.In(grid[0].Location())
		if i, ok := index[DateKey(start)]; ok {
			out[i] = append(out[i], ev)
		}
	}
	return out
}

// BuildMonth assembles the month view for ref from the event cache and the
// holiday table. now decides which cell is today.
func BuildMonth(grid [GridCells]time.Time, ref, now time.Time, events []model.CalendarEvent, holidays HolidayTable) Month {
	m := Month{Year: ref.Year(), Month: ref.Month()}

	bound := BindEvents(grid, FilterMonth(events, ref))
	now = now.In(ref.Location())

	for i, d := range grid {
		label, _ := holidays.Lookup(d)
		m.Cells[i] = Cell{
			Date:    d,
			InMonth: InMonth(d, ref),
			IsToday: model.SameDay(d, now),
			Holiday: label,
			Events:  bound[i],
		}
	}
	return m
}
