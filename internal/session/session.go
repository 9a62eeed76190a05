package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"tutorcal/internal/model"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

var (
	ErrRequiredFields  = errors.New("title, start date and start time are required")
	ErrEndBeforeStart  = errors.New("end must not be before start")
	ErrInvalidDateTime = errors.New("invalid date or time")
	ErrUnknownField    = errors.New("unknown field")
)

// Mode is the state of the edit modal.
type Mode int

const (
	Closed Mode = iota
	CreateDraft
	EditDraft
)

func (m Mode) String() string {
	switch m {
	case CreateDraft:
		return "create"
	case EditDraft:
		return "edit"
	default:
		return "closed"
	}
}

// Field names a draft input.
type Field string

const (
	FieldTitle       Field = "title"
	FieldStartDate   Field = "start_date"
	FieldStartTime   Field = "start_time"
	FieldEndDate     Field = "end_date"
	FieldEndTime     Field = "end_time"
	FieldDescription Field = "description"
	FieldColor       Field = "color"
)

// Fields lists the draft inputs in form order.
var Fields = []Field{FieldTitle, FieldStartDate, FieldStartTime, FieldEndDate, FieldEndTime, FieldDescription, FieldColor}

// Draft holds the unsaved form values.
type Draft struct {
	Title       string
	StartDate   string
	StartTime   string
	EndDate     string
	EndTime     string
	Description string
	Color       string
}

// BlankDraft is the form shown by the add action.
func BlankDraft() Draft {
	return Draft{Color: model.DefaultColor}
}

// DraftFrom splits ev's timestamps into local date and time fields.
func DraftFrom(ev model.CalendarEvent, loc *time.Location) Draft {
	d := Draft{
		Title:       ev.Title,
		Description: ev.Description,
		Color:       ev.Color,
	}
	if d.Color == "" {
		d.Color = model.DefaultColor
	}
	if !ev.Start.IsZero() {
		start := ev.Start.In(loc)
		d.StartDate, d.StartTime = start.Format(DateLayout), start.Format(TimeLayout)
	}
	if !ev.End.IsZero() {
		end := ev.End.In(loc)
		d.EndDate, d.EndTime = end.Format(DateLayout), end.Format(TimeLayout)
	}
	return d
}

func (d Draft) Get(f Field) string {
	switch f {
	case FieldTitle:
		return d.Title
	case FieldStartDate:
		return d.StartDate
	case FieldStartTime:
		return d.StartTime
	case FieldEndDate:
		return d.EndDate
	case FieldEndTime:
		return d.EndTime
	case FieldDescription:
		return d.Description
	case FieldColor:
		return d.Color
	}
	return ""
}

// With returns a copy of d with field f set to v.
func (d Draft) With(f Field, v string) (Draft, error) {
	switch f {
	case FieldTitle:
		d.Title = v
	case FieldStartDate:
		d.StartDate = v
	case FieldStartTime:
		d.StartTime = v
	case FieldEndDate:
		d.EndDate = v
	case FieldEndTime:
		d.EndTime = v
	case FieldDescription:
		d.Description = v
	case FieldColor:
		d.Color = v
	default:
		return d, fmt.Errorf("%w %q", ErrUnknownField, f)
	}
	return d, nil
}

// Validate checks the draft and builds the write payload. Rules apply in
// order and the first failure wins: required fields, then end >= start when
// both end fields are set. A partial or missing end becomes start + 1h.
func (d Draft) Validate(loc *time.Location) (model.EventInput, error) {
	title := strings.TrimSpace(d.Title)
	if title == "" || strings.TrimSpace(d.StartDate) == "" || strings.TrimSpace(d.StartTime) == "" {
		return model.EventInput{}, ErrRequiredFields
	}

	start, err := parseLocal(d.StartDate, d.StartTime, loc)
	if err != nil {
		return model.EventInput{}, err
	}

	var end time.Time
	if strings.TrimSpace(d.EndDate) != "" && strings.TrimSpace(d.EndTime) != "" {
		end, err = parseLocal(d.EndDate, d.EndTime, loc)
		if err != nil {
			return model.EventInput{}, err
		}
		if end.Before(start) {
			return model.EventInput{}, ErrEndBeforeStart
		}
	} else {
		end = start.Add(model.DefaultDuration)
	}

	color := d.Color
	if color == "" {
		color = model.DefaultColor
	}
	return model.EventInput{
		Title:       title,
		Start:       start,
		End:         end,
		Description: d.Description,
		Color:       color,
	}, nil
}

func parseLocal(date, clock string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout+" "+TimeLayout, strings.TrimSpace(date)+" "+strings.TrimSpace(clock), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s %s", ErrInvalidDateTime, date, clock)
	}
	return t, nil
}
