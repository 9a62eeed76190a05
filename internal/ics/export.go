package ics

import (
	"fmt"
	"io"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"tutorcal/internal/model"
)

// DefaultProdID identifies exported calendars.
const DefaultProdID = "-//tutorcal//lesson schedule//JA"

// colorProperty carries the chip color, which has no standard iCalendar slot.
const colorProperty ical.ComponentProperty = "X-TUTORCAL-COLOR"

// EventUID returns the stable iCalendar UID for a saved lesson.
func EventUID(id int64) string {
	return fmt.Sprintf("lesson-%d@tutorcal", id)
}

// Export renders events as a VCALENDAR. Unsaved events (ID 0) are skipped.
// Times are written in UTC.
func Export(events []model.CalendarEvent, prodID string) string {
	if prodID == "" {
		prodID = DefaultProdID
	}
	cal := ical.NewCalendar()
	cal.SetProductId(prodID)
	cal.SetMethod(ical.MethodPublish)

	stamp := time.Now().UTC()
	for _, ev := range events {
		if ev.ID == 0 {
			continue
		}
		ve := cal.AddEvent(EventUID(ev.ID))
		ve.SetDtStampTime(stamp)
		ve.SetStartAt(ev.Start)
		ve.SetEndAt(ev.End)
		ve.SetSummary(ev.Title)
		if d := strings.TrimSpace(ev.Description); d != "" {
			ve.SetDescription(d)
		}
		ve.SetProperty(colorProperty, ev.DisplayColor())
	}
	return cal.Serialize()
}

// WriteTo writes the exported calendar to w.
func WriteTo(w io.Writer, events []model.CalendarEvent, prodID string) error {
	_, err := io.WriteString(w, Export(events, prodID))
	return err
}
