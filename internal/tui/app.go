package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"tutorcal/internal/calendar"
	"tutorcal/internal/controller"
	"tutorcal/internal/model"
	"tutorcal/internal/session"
)

// Styles
var (
	appStyle = lipgloss.NewStyle().Padding(1, 2)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1)

	weekdayStyle  = lipgloss.NewStyle().Bold(true).Align(lipgloss.Center)
	sundayColor   = lipgloss.Color("#D9534F")
	saturdayColor = lipgloss.Color("#337AB7")

	cellStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, true, true, false).
			BorderForeground(lipgloss.Color("240"))

	outOfMonthStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))

	todayStyle = lipgloss.NewStyle().Bold(true).Underline(true)

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("229")).
			Background(lipgloss.Color("57"))

	holidayStyle = lipgloss.NewStyle().Foreground(sundayColor)

	noticeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#C0392B")).
			Padding(0, 1)

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#25A065")).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().Width(12).Foreground(lipgloss.Color("241"))
	errorStyle = lipgloss.NewStyle().Foreground(sundayColor)
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	chipTextFg = lipgloss.Color("#222222")
)

const (
	cellWidth  = 12
	cellHeight = 4
	opTimeout  = 15 * time.Second
)

var fieldLabels = map[session.Field]string{
	session.FieldTitle:       "タイトル",
	session.FieldStartDate:   "開始日",
	session.FieldStartTime:   "開始時刻",
	session.FieldEndDate:     "終了日",
	session.FieldEndTime:     "終了時刻",
	session.FieldDescription: "説明",
	session.FieldColor:       "色",
}

// msg types
type outcomeMsg controller.Outcome

type refreshedMsg struct {
	events []model.CalendarEvent
	err    error
}

// Model is the bubbletea model for the calendar screen. It owns the
// controller while the program runs; network work happens in tea.Cmds that
// only read from it.
type Model struct {
	ctrl *controller.Controller

	cursor   time.Time // selected day, midnight local
	eventIdx int       // selected event within the cursor's day

	input    textinput.Model
	fieldIdx int

	busy   bool
	width  int
	height int
}

func NewModel(ctrl *controller.Controller) Model {
	ti := textinput.New()
	ti.CharLimit = 200
	ti.Width = 40

	m := Model{ctrl: ctrl, input: ti}
	m.cursor = today(ctrl)
	if !calendar.InMonth(m.cursor, ctrl.Reference()) {
		m.cursor = ctrl.Reference()
	}
	return m
}

func today(ctrl *controller.Controller) time.Time {
	t := ctrl.Now()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, ctrl.Location())
}

func (m Model) Init() tea.Cmd {
	return refreshCmd(m.ctrl)
}

// Cursor returns the selected day.
func (m Model) Cursor() time.Time { return m.cursor }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case refreshedMsg:
		m.busy = false
		m.ctrl.ApplyRefresh(msg.events, msg.err)
		m.clampEvent()
		return m, nil

	case outcomeMsg:
		m.busy = false
		m.ctrl.Apply(controller.Outcome(msg))
		if m.ctrl.Session().Open() {
			m.loadField()
		} else {
			m.input.Blur()
		}
		m.clampEvent()
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.ctrl.Session().Open() {
			return m.updateModal(msg)
		}
		return m.updateCalendar(msg)
	}
	return m, nil
}

func (m Model) updateCalendar(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit

	case "h":
		m.ctrl.PrevMonth()
		m.cursor = m.ctrl.Reference()
		m.eventIdx = 0
	case "l":
		m.ctrl.NextMonth()
		m.cursor = m.ctrl.Reference()
		m.eventIdx = 0
	case "t":
		m.ctrl.Today()
		m.cursor = today(m.ctrl)
		m.eventIdx = 0

	case "left":
		m.moveCursor(-1)
	case "right":
		m.moveCursor(1)
	case "up":
		m.moveCursor(-7)
	case "down":
		m.moveCursor(7)

	case "n":
		if evs := m.dayEvents(); len(evs) > 0 {
			m.eventIdx = (m.eventIdx + 1) % len(evs)
		}

	case "a":
		m.ctrl.ClearNotice()
		m.ctrl.Begin(session.Add{})
		// Blank draft, then the cursor day as a start-date hint.
		m.ctrl.Begin(session.SetField{Field: session.FieldStartDate, Value: m.cursor.Format(session.DateLayout)})
		m.fieldIdx = 0
		m.loadField()
		return m, textinput.Blink

	case "enter":
		evs := m.dayEvents()
		if len(evs) == 0 {
			return m, nil
		}
		m.ctrl.ClearNotice()
		if err := m.ctrl.OpenEvent(evs[m.eventIdx].ID); err != nil {
			return m, nil
		}
		m.fieldIdx = 0
		m.loadField()
		return m, textinput.Blink

	case "r":
		if m.busy {
			return m, nil
		}
		m.busy = true
		return m, refreshCmd(m.ctrl)
	}
	return m, nil
}

func (m Model) updateModal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	st := m.ctrl.Session()
	if st.Pending {
		return m, nil
	}

	if st.ConfirmingDelete {
		switch msg.String() {
		case "y", "Y":
			return m.begin(session.ConfirmDelete{})
		case "n", "N", "esc":
			m.ctrl.Begin(session.DismissDelete{})
		}
		return m, nil
	}

	switch msg.String() {
	case "esc":
		m.ctrl.Begin(session.Cancel{})
		m.input.Blur()
		return m, nil
	case "tab", "down":
		m.commitField()
		m.fieldIdx = (m.fieldIdx + 1) % len(session.Fields)
		m.loadField()
		return m, nil
	case "shift+tab", "up":
		m.commitField()
		m.fieldIdx = (m.fieldIdx + len(session.Fields) - 1) % len(session.Fields)
		m.loadField()
		return m, nil
	case "ctrl+s":
		m.commitField()
		return m.begin(session.Submit{})
	case "ctrl+d":
		m.commitField()
		m.ctrl.Begin(session.RequestDelete{})
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// begin reduces a and, when it asks for a write, runs it as a command.
func (m Model) begin(a session.Action) (tea.Model, tea.Cmd) {
	eff := m.ctrl.Begin(a)
	if eff.None() {
		return m, nil
	}
	m.busy = true
	return m, executeCmd(m.ctrl, eff)
}

func (m *Model) commitField() {
	f := session.Fields[m.fieldIdx]
	if v := m.input.Value(); v != m.ctrl.Session().Draft.Get(f) {
		m.ctrl.Begin(session.SetField{Field: f, Value: v})
	}
}

func (m *Model) loadField() {
	f := session.Fields[m.fieldIdx]
	m.input.SetValue(m.ctrl.Session().Draft.Get(f))
	m.input.CursorEnd()
	m.input.Focus()
}

func (m *Model) moveCursor(days int) {
	m.cursor = m.cursor.AddDate(0, 0, days)
	m.eventIdx = 0
	if !calendar.InMonth(m.cursor, m.ctrl.Reference()) {
		m.ctrl.SetMonth(m.cursor.Year(), m.cursor.Month())
	}
}

func (m Model) dayEvents() []model.CalendarEvent {
	for _, c := range m.ctrl.View().Month.Cells {
		if model.SameDay(c.Date, m.cursor) {
			return c.Events
		}
	}
	return nil
}

func (m *Model) clampEvent() {
	if n := len(m.dayEvents()); m.eventIdx >= n {
		m.eventIdx = 0
	}
}

func refreshCmd(ctrl *controller.Controller) tea.Cmd {
	st := ctrl.Store()
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		events, err := st.Fetch(ctx)
		return refreshedMsg{events: events, err: err}
	}
}

func executeCmd(ctrl *controller.Controller, eff session.Effect) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		return outcomeMsg(ctrl.Execute(ctx, eff))
	}
}

func (m Model) View() string {
	v := m.ctrl.View()
	var b strings.Builder

	b.WriteString(titleStyle.Render(fmt.Sprintf("%d年%d月", v.Month.Year, int(v.Month.Month))))
	if m.busy {
		b.WriteString("  通信中…")
	}
	b.WriteString("\n\n")

	if v.Notice != nil {
		b.WriteString(noticeStyle.Render(v.Notice.Message))
		b.WriteString("\n\n")
	}

	b.WriteString(renderGrid(v, m.cursor))
	b.WriteString("\n")
	b.WriteString(m.renderDay(v))

	if v.Session.Open() {
		b.WriteString("\n")
		b.WriteString(m.renderModal(v.Session))
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render(m.help(v.Session)))
	return appStyle.Render(b.String())
}

func renderGrid(v controller.MonthView, cursor time.Time) string {
	header := make([]string, 0, 7)
	for i, w := range v.Weekdays {
		st := weekdayStyle.Width(cellWidth + 1)
		switch i {
		case 0:
			st = st.Foreground(sundayColor)
		case 6:
			st = st.Foreground(saturdayColor)
		}
		header = append(header, st.Render(w))
	}

	rows := []string{lipgloss.JoinHorizontal(lipgloss.Top, header...)}
	for _, week := range v.Month.Weeks() {
		cells := make([]string, 0, 7)
		for _, c := range week {
			cells = append(cells, renderCell(c, model.SameDay(c.Date, cursor)))
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func renderCell(c calendar.Cell, selected bool) string {
	day := fmt.Sprintf("%2d", c.Date.Day())
	switch {
	case selected:
		day = selectedStyle.Render(day)
	case c.IsToday:
		day = todayStyle.Render(day)
	}
	lines := []string{day}
	if c.ShowHoliday() {
		lines[0] += " " + holidayStyle.Render(c.Holiday)
	}
	for _, ev := range c.Events {
		chip := lipgloss.NewStyle().Background(lipgloss.Color(ev.DisplayColor())).Foreground(chipTextFg)
		lines = append(lines, chip.Render(ev.Title))
	}

	st := cellStyle.Width(cellWidth).MaxWidth(cellWidth + 1).Height(cellHeight).MaxHeight(cellHeight + 1)
	if !c.InMonth {
		st = st.Inherit(outOfMonthStyle)
	}
	return st.Render(strings.Join(lines, "\n"))
}

func (m Model) renderDay(v controller.MonthView) string {
	var b strings.Builder
	b.WriteString(m.cursor.Format("2006-01-02"))
	if label, ok := holidayFor(v, m.cursor); ok {
		b.WriteString(" " + holidayStyle.Render(label))
	}
	b.WriteString("\n")
	evs := m.dayEvents()
	if len(evs) == 0 {
		b.WriteString(helpStyle.Render("  予定はありません"))
		b.WriteString("\n")
	}
	for i, ev := range evs {
		line := fmt.Sprintf("%s-%s %s", ev.Start.In(m.ctrl.Location()).Format("15:04"), ev.End.In(m.ctrl.Location()).Format("15:04"), ev.Title)
		if i == m.eventIdx {
			line = selectedStyle.Render("> " + line)
		} else {
			line = "  " + line
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}

func holidayFor(v controller.MonthView, day time.Time) (string, bool) {
	for _, c := range v.Month.Cells {
		if model.SameDay(c.Date, day) && c.ShowHoliday() {
			return c.Holiday, true
		}
	}
	return "", false
}

func (m Model) renderModal(st session.State) string {
	var b strings.Builder
	if st.Mode == session.CreateDraft {
		b.WriteString(titleStyle.Render("予定を追加"))
	} else {
		b.WriteString(titleStyle.Render("予定を編集"))
	}
	b.WriteString("\n\n")

	for i, f := range session.Fields {
		b.WriteString(labelStyle.Render(fieldLabels[f]))
		if i == m.fieldIdx {
			b.WriteString(m.input.View())
		} else {
			b.WriteString(st.Draft.Get(f))
		}
		b.WriteString("\n")
	}

	if st.Err != nil {
		b.WriteString("\n" + errorStyle.Render(st.Err.Error()) + "\n")
	}
	if st.ConfirmingDelete {
		b.WriteString("\n" + errorStyle.Render("この予定を削除しますか？ (y/n)") + "\n")
	}
	if st.Pending {
		b.WriteString("\n保存中…\n")
	}
	return modalStyle.Render(b.String())
}

func (m Model) help(st session.State) string {
	if !st.Open() {
		return "h/l: 前月/次月  ←↑↓→: 日付  n: 次の予定  enter: 編集  a: 追加  t: 今日  r: 更新  q: 終了"
	}
	if st.Mode == session.EditDraft {
		return "tab: 次の項目  ctrl+s: 保存  ctrl+d: 削除  esc: 閉じる"
	}
	return "tab: 次の項目  ctrl+s: 保存  esc: 閉じる"
}
