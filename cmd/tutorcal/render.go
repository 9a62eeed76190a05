package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"tutorcal/internal/controller"
)

// printMonth writes a plain-text month grid followed by the month's holidays
// and lessons. Days outside the month are parenthesized; '>' marks today,
// '*' a holiday and a trailing '+' a day with lessons.
func printMonth(w io.Writer, v controller.MonthView) {
	fmt.Fprintf(w, "%d年%d月\n", v.Month.Year, int(v.Month.Month))
	for _, d := range v.Weekdays {
		fmt.Fprintf(w, " %s  ", d)
	}
	fmt.Fprintln(w)

	for _, week := range v.Month.Weeks() {
		var b strings.Builder
		for _, c := range week {
			mark := " "
			switch {
			case c.IsToday:
				mark = ">"
			case c.ShowHoliday():
				mark = "*"
			}
			if c.InMonth {
				fmt.Fprintf(&b, "%s%2d%s ", mark, c.Date.Day(), eventMark(len(c.Events)))
			} else {
				fmt.Fprintf(&b, "(%2d) ", c.Date.Day())
			}
		}
		fmt.Fprintln(w, strings.TrimRight(b.String(), " "))
	}

	fmt.Fprintln(w)
	for _, c := range v.Month.Cells {
		if c.ShowHoliday() {
			fmt.Fprintf(w, "%s  %s\n", c.Date.Format("01/02"), c.Holiday)
		}
		for _, ev := range c.Events {
			fmt.Fprintf(w, "%s  %s-%s  %s\n", c.Date.Format("01/02"), ev.Start.Format("15:04"), ev.End.Format("15:04"), ev.Title)
		}
	}
	if v.Notice != nil {
		fmt.Fprintf(w, "\n! %s\n", v.Notice.Message)
	}
}

func eventMark(n int) string {
	if n == 0 {
		return " "
	}
	return "+"
}

// waitHealthy polls /health until the server answers or ctx ends.
func waitHealthy(ctx context.Context, base string) error {
	client := &http.Client{Timeout: time.Second}
	deadline := time.Now().Add(10 * time.Second)
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/health", nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("server at %s did not become healthy", base)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
}
