package calendar

import (
	"sync"
	"time"
)

// GridCells is the fixed size of a month grid: 6 weeks of 7 days.
const GridCells = 42

// Weekdays are the Sunday-first column headers.
var Weekdays = [7]string{"日", "月", "火", "水", "木", "金", "土"}

// MonthStart returns midnight on the 1st of ref's month in ref's location.
func MonthStart(ref time.Time) time.Time {
	return time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, ref.Location())
}

// MonthGrid returns the 42 consecutive dates displayed for ref's month.
//
// The grid starts on the Sunday on or before the 1st, so the 1st lands at
// index weekday(1st). Leading cells hold the trailing days of the previous
// month, and cells after the month's last day are filled from the next month
// until 42 dates are produced, even when a 6th week is not needed.
func MonthGrid(ref time.Time) [GridCells]time.Time {
	var grid [GridCells]time.Time

	year, month, loc := ref.Year(), ref.Month(), ref.Location()
	first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	lead := int(first.Weekday())

	// Day 0 of this month is the last day of the previous one.
	prevLast := time.Date(year, month, 0, 0, 0, 0, 0, loc).Day()
	numDays := time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()

	i := 0
	for d := prevLast - lead + 1; d <= prevLast; d++ {
		grid[i] = time.Date(year, month-1, d, 0, 0, 0, 0, loc)
		i++
	}
	for d := 1; d <= numDays; d++ {
		grid[i] = time.Date(year, month, d, 0, 0, 0, 0, loc)
		i++
	}
	for d := 1; i < GridCells; d++ {
		grid[i] = time.Date(year, month+1, d, 0, 0, 0, 0, loc)
		i++
	}
	return grid
}

type gridKey struct {
	year  int
	month time.Month
	loc   *time.Location
}

// GridCache memoizes MonthGrid on (year, month, location).
type GridCache struct {
	mu    sync.Mutex
	grids map[gridKey][GridCells]time.Time
}

func (c *GridCache) Get(ref time.Time) [GridCells]time.Time {
	key := gridKey{ref.Year(), ref.Month(), ref.Location()}

	c.mu.Lock()
	defer c.mu.Unlock()
	if g, ok := c.grids[key]; ok {
		return g
	}
	if c.grids == nil {
		c.grids = make(map[gridKey][GridCells]time.Time)
	}
	g := MonthGrid(ref)
	c.grids[key] = g
	return g
}
