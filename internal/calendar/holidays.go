package calendar

import (
	"fmt"
	"time"
)

// HolidayTable maps "YYYY-MM-DD" keys to holiday labels. It is read-only
// once constructed.
type HolidayTable struct {
	labels map[string]string
}

// NewHolidayTable copies labels into a new table.
func NewHolidayTable(labels map[string]string) HolidayTable {
	cp := make(map[string]string, len(labels))
	for k, v := range labels {
		cp[k] = v
	}
	return HolidayTable{labels: cp}
}

// DateKey formats t's local calendar fields as YYYY-MM-DD.
func DateKey(t time.Time) string {
	return fmt.Sprintf("%04d-%02d-%02d", t.Year(), int(t.Month()), t.Day())
}

// Lookup returns the holiday label for t's local date, if any.
func (h HolidayTable) Lookup(t time.Time) (string, bool) {
	return h.LookupKey(DateKey(t))
}

func (h HolidayTable) LookupKey(key string) (string, bool) {
	label, ok := h.labels[key]
	return label, ok
}

func (h HolidayTable) Len() int {
	return len(h.labels)
}

// Merge returns a new table with the entries of others layered over h.
func (h HolidayTable) Merge(others ...HolidayTable) HolidayTable {
	out := NewHolidayTable(h.labels)
	for _, o := range others {
		for k, v := range o.labels {
			out.labels[k] = v
		}
	}
	return out
}

// JapanHolidays2025 returns the Japanese public holidays for 2025.
func JapanHolidays2025() HolidayTable {
	return NewHolidayTable(map[string]string{
		"2025-01-01": "元日",
		"2025-01-13": "成人の日",
		"2025-02-11": "建国記念の日",
		"2025-02-23": "天皇誕生日",
		"2025-03-20": "春分の日",
		"2025-04-29": "昭和の日",
		"2025-05-03": "憲法記念日",
		"2025-05-04": "みどりの日",
		"2025-05-05": "こどもの日",
		"2025-07-21": "海の日",
		"2025-08-11": "山の日",
		"2025-09-15": "敬老の日",
		"2025-09-23": "秋分の日",
		"2025-10-13": "スポーツの日",
		"2025-11-03": "文化の日",
		"2025-11-23": "勤労感謝の日",
	})
}
