package web

import (
	"time"

	"tutorcal/internal/calendar"
	"tutorcal/internal/controller"
	"tutorcal/internal/model"
	"tutorcal/internal/session"
)

type eventDTO struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Description string    `json:"description"`
	Color       string    `json:"color"`
}

type eventsResponse struct {
	Events  []eventDTO `json:"events"`
	Version uint64     `json:"version"`
}

type cellDTO struct {
	Date    string     `json:"date"`
	Day     int        `json:"day"`
	Weekday int        `json:"weekday"`
	InMonth bool       `json:"in_month"`
	IsToday bool       `json:"is_today"`
	Holiday string     `json:"holiday,omitempty"`
	Events  []eventDTO `json:"events"`
}

type draftDTO struct {
	Title       string `json:"title"`
	StartDate   string `json:"start_date"`
	StartTime   string `json:"start_time"`
	EndDate     string `json:"end_date"`
	EndTime     string `json:"end_time"`
	Description string `json:"description"`
	Color       string `json:"color"`
}

type sessionDTO struct {
	Mode             string   `json:"mode"`
	TargetID         int64    `json:"target_id,omitempty"`
	Draft            draftDTO `json:"draft"`
	ConfirmingDelete bool     `json:"confirming_delete"`
	Pending          bool     `json:"pending"`
	Error            string   `json:"error,omitempty"`
}

type noticeDTO struct {
	Message      string    `json:"message"`
	AuthRequired bool      `json:"auth_required"`
	At           time.Time `json:"at"`
}

type monthDTO struct {
	Year     int         `json:"year"`
	Month    int         `json:"month"`
	Weekdays []string    `json:"weekdays"`
	Weeks    [][]cellDTO `json:"weeks"`
	Session  sessionDTO  `json:"session"`
	Notice   *noticeDTO  `json:"notice,omitempty"`
	Version  uint64      `json:"version"`
}

type sessionResponse struct {
	Session sessionDTO `json:"session"`
	Notice  *noticeDTO `json:"notice,omitempty"`
	Version uint64     `json:"version"`
	Error   string     `json:"error,omitempty"`
}

type unauthorizedResponse struct {
	Error    string `json:"error"`
	LoginURL string `json:"login_url"`
}

func newEventDTO(ev model.CalendarEvent) eventDTO {
	return eventDTO{
		ID:          ev.ID,
		Title:       ev.Title,
		Start:       ev.Start,
		End:         ev.End,
		Description: ev.Description,
		Color:       ev.DisplayColor(),
	}
}

func newEventDTOs(events []model.CalendarEvent) []eventDTO {
	out := make([]eventDTO, 0, len(events))
	for _, ev := range events {
		out = append(out, newEventDTO(ev))
	}
	return out
}

func newCellDTO(c calendar.Cell) cellDTO {
	out := cellDTO{
		Date:    calendar.DateKey(c.Date),
		Day:     c.Date.Day(),
		Weekday: int(c.Date.Weekday()),
		InMonth: c.InMonth,
		IsToday: c.IsToday,
		Events:  newEventDTOs(c.Events),
	}
	if c.ShowHoliday() {
		out.Holiday = c.Holiday
	}
	return out
}

func newSessionDTO(s session.State) sessionDTO {
	out := sessionDTO{
		Mode:             s.Mode.String(),
		TargetID:         s.TargetID,
		ConfirmingDelete: s.ConfirmingDelete,
		Pending:          s.Pending,
		Draft: draftDTO{
			Title:       s.Draft.Title,
			StartDate:   s.Draft.StartDate,
			StartTime:   s.Draft.StartTime,
			EndDate:     s.Draft.EndDate,
			EndTime:     s.Draft.EndTime,
			Description: s.Draft.Description,
			Color:       s.Draft.Color,
		},
	}
	if s.Err != nil {
		out.Error = s.Err.Error()
	}
	return out
}

func newNoticeDTO(n *controller.Notice) *noticeDTO {
	if n == nil {
		return nil
	}
	return &noticeDTO{Message: n.Message, AuthRequired: n.AuthRequired, At: n.At}
}

func newMonthDTO(v controller.MonthView) monthDTO {
	out := monthDTO{
		Year:     v.Month.Year,
		Month:    int(v.Month.Month),
		Weekdays: v.Weekdays[:],
		Session:  newSessionDTO(v.Session),
		Notice:   newNoticeDTO(v.Notice),
		Version:  v.Version,
	}
	for _, week := range v.Month.Weeks() {
		row := make([]cellDTO, 0, len(week))
		for _, c := range week {
			row = append(row, newCellDTO(c))
		}
		out.Weeks = append(out.Weeks, row)
	}
	return out
}
