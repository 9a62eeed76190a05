package ics

import (
	"errors"
	"io"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"tutorcal/internal/calendar"
	appLog "tutorcal/internal/log"
)

// maxHolidaySpan caps how many days a single all-day VEVENT may cover.
const maxHolidaySpan = 31

// ParseHolidays reads an iCalendar payload and returns its all-day events as
// a holiday table keyed by local date. Timed events are ignored. A multi-day
// all-day event labels every day up to its exclusive DTEND. When two events
// share a day the first one wins.
func ParseHolidays(r io.Reader, loc *time.Location) (calendar.HolidayTable, error) {
	if loc == nil {
		loc = time.Local
	}
	cal, err := ical.ParseCalendar(r)
	if err != nil {
		appLog.Error("holiday ics parse failed", err)
		return calendar.HolidayTable{}, err
	}

	labels := make(map[string]string)
	skipped := 0
	for _, ve := range cal.Events() {
		start, days, summary, perr := allDayEvent(ve, loc)
		if perr != nil {
			skipped++
			appLog.Debug("holiday ics: skipping vevent", "reason", perr.Error())
			continue
		}
		for i := 0; i < days; i++ {
			key := calendar.DateKey(start.AddDate(0, 0, i))
			if _, dup := labels[key]; !dup {
				labels[key] = summary
			}
		}
	}

	appLog.Info("holiday ics parsed", "days", len(labels), "skipped", skipped)
	return calendar.NewHolidayTable(labels), nil
}

func allDayEvent(ve *ical.VEvent, loc *time.Location) (time.Time, int, string, error) {
	p := ve.GetProperty(ical.ComponentPropertyDtStart)
	if p == nil {
		return time.Time{}, 0, "", errors.New("missing DTSTART")
	}
	if !isDateValue(p) {
		return time.Time{}, 0, "", errors.New("not an all-day event")
	}
	start, err := parseDate(p.Value, loc)
	if err != nil {
		return time.Time{}, 0, "", err
	}

	summary := ""
	if s := ve.GetProperty(ical.ComponentPropertySummary); s != nil {
		summary = strings.TrimSpace(s.Value)
	}
	if summary == "" {
		return time.Time{}, 0, "", errors.New("missing SUMMARY")
	}

	days := 1
	if e := ve.GetProperty(ical.ComponentPropertyDtEnd); e != nil && isDateValue(e) {
		if end, err := parseDate(e.Value, loc); err == nil {
			// DTEND is exclusive for all-day events.
			n := int(end.Sub(start).Hours()+12) / 24
			if n > 1 {
				days = min(n, maxHolidaySpan)
			}
		}
	}
	return start, days, summary, nil
}

// isDateValue reports whether the property carries VALUE=DATE or a bare
// YYYYMMDD value.
func isDateValue(p *ical.IANAProperty) bool {
	if vs, ok := p.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(p.Value, "T")
}

func parseDate(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	if len(v) < 8 {
		return time.Time{}, errors.New("malformed date " + v)
	}
	return time.ParseInLocation("20060102", v[:8], loc)
}
