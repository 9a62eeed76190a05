package web

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"

	appLog "tutorcal/internal/log"
)

var templateFuncs = template.FuncMap{
	"monthQuery": func(year, month int) string {
		return fmt.Sprintf("?year=%d&month=%d", year, month)
	},
}

type pageData struct {
	monthDTO
	PrevYear, PrevMonth int
	NextYear, NextMonth int
	LoginURL            string
}

// handleCalendarPage renders the month grid as static HTML. The root element
// carries data-ready="true" so headless capture knows when to shoot.
//
// GET /calendar?year=2025&month=5
func (s *Server) handleCalendarPage(w http.ResponseWriter, r *http.Request) {
	year, month, ok, err := parseYearMonth(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	if ok {
		s.ctrl.SetMonth(year, month)
	}
	view := s.ctrl.View()
	ref := s.ctrl.Reference()
	s.mu.Unlock()

	prev, next := ref.AddDate(0, -1, 0), ref.AddDate(0, 1, 0)
	data := pageData{
		monthDTO:  newMonthDTO(view),
		PrevYear:  prev.Year(),
		PrevMonth: int(prev.Month()),
		NextYear:  next.Year(),
		NextMonth: int(next.Month()),
		LoginURL:  s.cfg.API.LoginURL,
	}

	var buf bytes.Buffer
	if err := s.page.Execute(&buf, data); err != nil {
		appLog.Error("calendar template failed", err)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}
