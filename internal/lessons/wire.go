package lessons

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"tutorcal/internal/model"
)

var validate = validator.New()

// record is the JSON shape of a lesson schedule as served by the backend.
// Pointers distinguish a missing field from a zero value.
type record struct {
	ID          *int64  `json:"id" validate:"required,gt=0"`
	Title       string  `json:"title" validate:"required"`
	StartTime   string  `json:"start_time" validate:"required"`
	EndTime     string  `json:"end_time" validate:"required"`
	Description *string `json:"description"`
	Color       *string `json:"color"`
}

// body is the write payload for POST and PUT.
type body struct {
	Title       string `json:"title"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	Description string `json:"description"`
	Color       string `json:"color"`
}

// DecodeError reports a malformed record returned by the backend.
type DecodeError struct {
	Index int // position in a list response, -1 for single records
	Field string
	Err   error
}

func (e *DecodeError) Error() string {
	where := "record"
	if e.Index >= 0 {
		where = fmt.Sprintf("record %d", e.Index)
	}
	if e.Field != "" {
		return fmt.Sprintf("lessons: decode %s: field %s: %v", where, e.Field, e.Err)
	}
	return fmt.Sprintf("lessons: decode %s: %v", where, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// timeLayouts are tried in order; zone-less forms are read in the client's
// location.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
}

func parseTimestamp(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.In(loc), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid ISO 8601 timestamp %q", s)
}

func formatTimestamp(t time.Time) string {
	return t.Format(time.RFC3339)
}

// decodeRecord validates r and converts it to the internal event type.
func decodeRecord(r record, index int, loc *time.Location) (model.CalendarEvent, error) {
	if err := validate.Struct(r); err != nil {
		var verrs validator.ValidationErrors
		field := ""
		if errors.As(err, &verrs) && len(verrs) > 0 {
			field = jsonName(verrs[0].Field())
			err = fmt.Errorf("failed %q constraint", verrs[0].Tag())
		}
		return model.CalendarEvent{}, &DecodeError{Index: index, Field: field, Err: err}
	}

	start, err := parseTimestamp(r.StartTime, loc)
	if err != nil {
		return model.CalendarEvent{}, &DecodeError{Index: index, Field: "start_time", Err: err}
	}
	end, err := parseTimestamp(r.EndTime, loc)
	if err != nil {
		return model.CalendarEvent{}, &DecodeError{Index: index, Field: "end_time", Err: err}
	}
	if end.Before(start) {
		return model.CalendarEvent{}, &DecodeError{Index: index, Field: "end_time", Err: fmt.Errorf("end %s before start %s", r.EndTime, r.StartTime)}
	}

	ev := model.CalendarEvent{
		ID:    *r.ID,
		Title: r.Title,
		Start: start,
		End:   end,
		Color: model.DefaultColor,
	}
	if r.Description != nil {
		ev.Description = *r.Description
	}
	if r.Color != nil && *r.Color != "" {
		ev.Color = *r.Color
	}
	return ev, nil
}

func decodeList(data []byte, loc *time.Location) ([]model.CalendarEvent, error) {
	var recs []record
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, &DecodeError{Index: -1, Err: err}
	}
	events := make([]model.CalendarEvent, 0, len(recs))
	for i, r := range recs {
		ev, err := decodeRecord(r, i, loc)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, nil
}

func decodeOne(data []byte, loc *time.Location) (model.CalendarEvent, error) {
	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return model.CalendarEvent{}, &DecodeError{Index: -1, Err: err}
	}
	return decodeRecord(r, -1, loc)
}

func encodeInput(in model.EventInput) body {
	color := in.Color
	if color == "" {
		color = model.DefaultColor
	}
	return body{
		Title:       in.Title,
		StartTime:   formatTimestamp(in.Start),
		EndTime:     formatTimestamp(in.End),
		Description: in.Description,
		Color:       color,
	}
}

func jsonName(goField string) string {
	switch goField {
	case "ID":
		return "id"
	case "StartTime":
		return "start_time"
	case "EndTime":
		return "end_time"
	default:
		return strings.ToLower(goField)
	}
}
