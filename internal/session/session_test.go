package session

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tutorcal/internal/model"
)

var jst = time.FixedZone("JST", 9*60*60)

func run(t *testing.T, s State, actions ...Action) (State, Effect) {
	t.Helper()
	var eff Effect
	for _, a := range actions {
		s, eff = Reduce(s, a, jst)
	}
	return s, eff
}

func assertTime(t *testing.T, want, got time.Time) {
	t.Helper()
	assert.True(t, want.Equal(got), "want %s, got %s", want, got)
}

func fill(fields map[Field]string) []Action {
	out := make([]Action, 0, len(fields))
	for _, f := range Fields {
		if v, ok := fields[f]; ok {
			out = append(out, SetField{Field: f, Value: v})
		}
	}
	return out
}

func TestAddOpensBlankCreateDraft(t *testing.T) {
	s, eff := run(t, State{}, Add{})
	assert.Equal(t, CreateDraft, s.Mode)
	assert.Equal(t, BlankDraft(), s.Draft)
	assert.Equal(t, model.DefaultColor, s.Draft.Color)
	assert.True(t, eff.None())

	s, _ = run(t, State{}, Add{Color: "#C1E1FF"})
	assert.Equal(t, "#C1E1FF", s.Draft.Color)
	assert.Empty(t, s.Draft.Title)
}

func TestOpenSplitsLocalWallClock(t *testing.T) {
	ev := model.CalendarEvent{
		ID:    7,
		Title: "面談",
		// 16:30 UTC on the 24th is already the 25th in Tokyo.
		Start:       time.Date(2025, 5, 24, 16, 30, 0, 0, time.UTC),
		End:         time.Date(2025, 5, 24, 17, 45, 0, 0, time.UTC),
		Description: "memo",
	}
	s, _ := run(t, State{}, Open{Event: ev})

	assert.Equal(t, EditDraft, s.Mode)
	assert.Equal(t, int64(7), s.TargetID)
	assert.Equal(t, Draft{
		Title:       "面談",
		StartDate:   "2025-05-25",
		StartTime:   "01:30",
		EndDate:     "2025-05-25",
		EndTime:     "02:45",
		Description: "memo",
		Color:       model.DefaultColor,
	}, s.Draft)
}

func TestSubmitDefaultsEndToOneHour(t *testing.T) {
	for name, end := range map[string]map[Field]string{
		"omitted":       {},
		"only end date": {FieldEndDate: "2025-05-26"},
		"only end time": {FieldEndTime: "09:00"},
	} {
		t.Run(name, func(t *testing.T) {
			fields := map[Field]string{FieldTitle: "個別指導", FieldStartDate: "2025-05-25", FieldStartTime: "10:00"}
			for k, v := range end {
				fields[k] = v
			}
			s, eff := run(t, State{}, append([]Action{Add{}}, append(fill(fields), Submit{})...)...)

			require.Equal(t, EffectCreate, eff.Kind)
			assertTime(t, time.Date(2025, 5, 25, 10, 0, 0, 0, jst), eff.Input.Start)
			assertTime(t, time.Date(2025, 5, 25, 11, 0, 0, 0, jst), eff.Input.End)
			assert.True(t, s.Pending)
			assert.Equal(t, CreateDraft, s.Mode, "session stays open until the write settles")
		})
	}
}

func TestSubmitValidationOrder(t *testing.T) {
	cases := []struct {
		name   string
		fields map[Field]string
		want   error
	}{
		{"missing title", map[Field]string{FieldStartDate: "2025-05-25", FieldStartTime: "10:00"}, ErrRequiredFields},
		{"blank title", map[Field]string{FieldTitle: "  ", FieldStartDate: "2025-05-25", FieldStartTime: "10:00"}, ErrRequiredFields},
		{"missing start time", map[Field]string{FieldTitle: "x", FieldStartDate: "2025-05-25"}, ErrRequiredFields},
		{
			"required wins over end order",
			map[Field]string{FieldTitle: "x", FieldStartDate: "2025-05-25", FieldEndDate: "2025-05-24", FieldEndTime: "09:00"},
			ErrRequiredFields,
		},
		{
			"end before start",
			map[Field]string{FieldTitle: "x", FieldStartDate: "2025-05-25", FieldStartTime: "10:00", FieldEndDate: "2025-05-25", FieldEndTime: "09:59"},
			ErrEndBeforeStart,
		},
		{
			"bad start",
			map[Field]string{FieldTitle: "x", FieldStartDate: "25/05/2025", FieldStartTime: "10:00"},
			ErrInvalidDateTime,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, eff := run(t, State{}, append([]Action{Add{}}, append(fill(tc.fields), Submit{})...)...)
			assert.True(t, eff.None(), "no write on validation failure")
			assert.ErrorIs(t, s.Err, tc.want)
			assert.False(t, s.Pending)
			assert.Equal(t, CreateDraft, s.Mode)
		})
	}
}

func TestEditingAFieldClearsTheError(t *testing.T) {
	s, _ := run(t, State{}, Add{}, Submit{})
	require.ErrorIs(t, s.Err, ErrRequiredFields)

	s, _ = Reduce(s, SetField{Field: FieldTitle, Value: "x"}, jst)
	assert.NoError(t, s.Err)
}

func TestEndEqualToStartIsAccepted(t *testing.T) {
	fields := map[Field]string{FieldTitle: "x", FieldStartDate: "2025-05-25", FieldStartTime: "10:00", FieldEndDate: "2025-05-25", FieldEndTime: "10:00"}
	_, eff := run(t, State{}, append([]Action{Add{}}, append(fill(fields), Submit{})...)...)
	require.Equal(t, EffectCreate, eff.Kind)
	assertTime(t, eff.Input.Start, eff.Input.End)
}

func TestEditSubmitEmitsUpdate(t *testing.T) {
	ev := model.CalendarEvent{ID: 3, Title: "数学", Start: time.Date(2025, 5, 29, 16, 0, 0, 0, jst), End: time.Date(2025, 5, 29, 17, 0, 0, 0, jst), Color: "#D4FFC1"}
	s, eff := run(t, State{}, Open{Event: ev}, SetField{Field: FieldTitle, Value: "数学（延長）"}, SetField{Field: FieldEndTime, Value: "18:00"}, Submit{})

	require.Equal(t, EffectUpdate, eff.Kind)
	assert.Equal(t, int64(3), eff.ID)
	assert.Equal(t, "数学（延長）", eff.Input.Title)
	assertTime(t, time.Date(2025, 5, 29, 18, 0, 0, 0, jst), eff.Input.End)
	assert.Equal(t, "#D4FFC1", eff.Input.Color)

	// A second submit while the write is pending is ignored.
	s2, eff2 := Reduce(s, Submit{}, jst)
	assert.True(t, eff2.None())
	assert.Equal(t, s, s2)

	s, _ = Reduce(s, WriteDone{}, jst)
	assert.Equal(t, State{}, s)
}

func TestWriteFailureKeepsSessionOpen(t *testing.T) {
	fields := map[Field]string{FieldTitle: "x", FieldStartDate: "2025-05-25", FieldStartTime: "10:00"}
	s, _ := run(t, State{}, append([]Action{Add{}}, append(fill(fields), Submit{})...)...)

	boom := errors.New("timeout")
	s, _ = Reduce(s, WriteFailed{Err: boom}, jst)
	assert.Equal(t, CreateDraft, s.Mode)
	assert.False(t, s.Pending)
	assert.ErrorIs(t, s.Err, boom)
	assert.Equal(t, "x", s.Draft.Title)

	// Retry re-sends the same write.
	_, eff := Reduce(s, Submit{}, jst)
	assert.Equal(t, EffectCreate, eff.Kind)
}

func TestDeleteNeedsEditModeAndConfirmation(t *testing.T) {
	s, eff := run(t, State{}, Add{}, RequestDelete{}, ConfirmDelete{})
	assert.True(t, eff.None())
	assert.False(t, s.ConfirmingDelete)

	ev := model.CalendarEvent{ID: 2, Title: "会議", Start: time.Date(2025, 5, 28, 14, 0, 0, 0, jst), End: time.Date(2025, 5, 28, 15, 30, 0, 0, jst)}

	s, eff = run(t, State{}, Open{Event: ev}, ConfirmDelete{})
	assert.True(t, eff.None(), "confirm without request does nothing")

	s, eff = run(t, s, RequestDelete{}, DismissDelete{}, ConfirmDelete{})
	assert.True(t, eff.None())
	assert.Equal(t, EditDraft, s.Mode)

	s, eff = run(t, s, RequestDelete{}, ConfirmDelete{})
	assert.Equal(t, Effect{Kind: EffectDelete, ID: 2}, eff)
	assert.True(t, s.Pending)

	s, _ = Reduce(s, WriteDone{}, jst)
	assert.False(t, s.Open())
}

func TestCancelDiscardsDraft(t *testing.T) {
	s, eff := run(t, State{}, Add{}, SetField{Field: FieldTitle, Value: "draft"}, Cancel{})
	assert.Equal(t, State{}, s)
	assert.True(t, eff.None())

	// Late outcome of an abandoned write does not reopen anything.
	s, _ = Reduce(s, WriteFailed{Err: errors.New("late")}, jst)
	assert.Equal(t, State{}, s)
}

func TestLateWriteResultSkipsNewDraft(t *testing.T) {
	fields := map[Field]string{FieldTitle: "x", FieldStartDate: "2025-05-25", FieldStartTime: "10:00"}
	s, _ := run(t, State{}, append([]Action{Add{}}, append(fill(fields), Submit{})...)...)
	require.True(t, s.Pending)

	s, _ = run(t, s, Cancel{}, Add{}, SetField{Field: FieldTitle, Value: "next"})
	s, _ = Reduce(s, WriteDone{}, jst)
	assert.Equal(t, CreateDraft, s.Mode)
	assert.Equal(t, "next", s.Draft.Title)

	s, _ = Reduce(s, WriteFailed{Err: errors.New("late")}, jst)
	assert.NoError(t, s.Err)
}

func TestIgnoredTransitions(t *testing.T) {
	s, _ := run(t, State{}, SetField{Field: FieldTitle, Value: "x"}, Submit{})
	assert.Equal(t, State{}, s)

	s, _ = run(t, State{}, Add{}, SetField{Field: "nickname", Value: "x"})
	assert.Error(t, s.Err)

	open, _ := run(t, State{}, Add{}, SetField{Field: FieldTitle, Value: "keep"})
	again, _ := Reduce(open, Add{}, jst)
	assert.Equal(t, open, again)
}
