package controller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tutorcal/internal/calendar"
	"tutorcal/internal/lessons"
	appLog "tutorcal/internal/log"
	"tutorcal/internal/model"
	"tutorcal/internal/session"
	"tutorcal/internal/store"
)

// ErrEventNotFound is returned when opening an event that is not cached.
var ErrEventNotFound = errors.New("event not found")

// Notice is a user-visible, recoverable error.
type Notice struct {
	Message      string
	AuthRequired bool
	At           time.Time
}

// MonthView is everything needed to render the calendar page.
type MonthView struct {
	Month    calendar.Month
	Session  session.State
	Notice   *Notice
	Version  uint64
	Weekdays [7]string
}

// Outcome is the result of executing an Effect.
type Outcome struct {
	Effect session.Effect
	// Events is the refetched collection; nil when the refetch did not run
	// or failed.
	Events []model.CalendarEvent
	// WriteErr is set when the write itself failed.
	WriteErr error
	// RefreshErr is set when the write succeeded but the refetch failed.
	RefreshErr error
}

// Err is the error the user should see for the outcome, if any.
func (o Outcome) Err() error {
	if o.WriteErr != nil {
		return o.WriteErr
	}
	return o.RefreshErr
}

// Controller owns the event cache, the reference month, the holiday table
// and the edit session of one calendar page. It is not safe for concurrent
// use; callers serialize access.
type Controller struct {
	store    *store.Store
	holidays calendar.HolidayTable
	loc      *time.Location
	now      func() time.Time
	grids    calendar.GridCache

	defaultColor string

	ref     time.Time
	session session.State
	notice  *Notice
}

// Option customizes a Controller.
type Option func(*Controller)

// WithClock overrides time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithDefaultColor sets the chip color of drafts opened by Add.
func WithDefaultColor(color string) Option {
	return func(c *Controller) { c.defaultColor = color }
}

func New(st *store.Store, holidays calendar.HolidayTable, loc *time.Location, opts ...Option) *Controller {
	if loc == nil {
		loc = time.Local
	}
	c := &Controller{
		store:    st,
		holidays: holidays,
		loc:      loc,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.ref = calendar.MonthStart(c.now().In(loc))
	return c
}

func (c *Controller) Location() *time.Location { return c.loc }

// Now returns the controller's clock in its display location.
func (c *Controller) Now() time.Time { return c.now().In(c.loc) }

func (c *Controller) Reference() time.Time { return c.ref }

func (c *Controller) Session() session.State { return c.session }

func (c *Controller) Store() *store.Store { return c.store }

func (c *Controller) Notice() *Notice { return c.notice }

func (c *Controller) ClearNotice() { c.notice = nil }

// SetMonth moves the reference date to the 1st of year/month. Out of range
// months are normalized (month 13 is January of the next year).
func (c *Controller) SetMonth(year int, month time.Month) {
	c.ref = time.Date(year, month, 1, 0, 0, 0, 0, c.loc)
}

func (c *Controller) PrevMonth() {
	c.ref = c.ref.AddDate(0, -1, 0)
}

func (c *Controller) NextMonth() {
	c.ref = c.ref.AddDate(0, 1, 0)
}

func (c *Controller) Today() {
	c.ref = calendar.MonthStart(c.now().In(c.loc))
}

// View renders the current reference month from the cached events.
func (c *Controller) View() MonthView {
	grid := c.grids.Get(c.ref)
	return MonthView{
		Month:    calendar.BuildMonth(grid, c.ref, c.now(), c.store.Events(), c.holidays),
		Session:  c.session,
		Notice:   c.notice,
		Version:  c.store.Version(),
		Weekdays: calendar.Weekdays,
	}
}

// Refresh replaces the cached events with the remote list. A failure is
// surfaced as a notice and the last known events stay displayed.
func (c *Controller) Refresh(ctx context.Context) error {
	events, err := c.store.Fetch(ctx)
	c.ApplyRefresh(events, err)
	return err
}

// ApplyRefresh feeds the result of a Store.Fetch run elsewhere back into
// the cache.
func (c *Controller) ApplyRefresh(events []model.CalendarEvent, err error) {
	if err != nil {
		appLog.Error("refresh failed; keeping last known events", err, "cached", len(c.store.Events()))
		c.setNotice("予定を取得できませんでした", err)
		return
	}
	c.store.Replace(events)
	if !c.session.Open() {
		c.notice = nil
	}
}

// OpenEvent starts editing the cached event with the given id.
func (c *Controller) OpenEvent(id int64) error {
	ev, ok := c.store.Find(id)
	if !ok {
		return fmt.Errorf("%w: %d", ErrEventNotFound, id)
	}
	c.Begin(session.Open{Event: ev})
	return nil
}

// Begin applies a to the edit session and returns the write it asks for,
// if any. The write is not performed.
func (c *Controller) Begin(a session.Action) session.Effect {
	if add, ok := a.(session.Add); ok && add.Color == "" {
		add.Color = c.defaultColor
		a = add
	}
	next, eff := session.Reduce(c.session, a, c.loc)
	c.session = next
	if !eff.None() {
		appLog.Info("session write requested", "kind", eff.Kind.String(), "id", eff.ID)
	}
	return eff
}

// Execute performs eff through the store: the write, then a full refetch.
// It does not touch controller state or the cache, so front ends may run
// it without holding the page and hand the Outcome back to Apply.
func (c *Controller) Execute(ctx context.Context, eff session.Effect) Outcome {
	out := Outcome{Effect: eff}
	if eff.None() {
		return out
	}

	var (
		events []model.CalendarEvent
		err    error
	)
	switch eff.Kind {
	case session.EffectCreate:
		events, err = c.store.Create(ctx, eff.Input)
	case session.EffectUpdate:
		events, err = c.store.Update(ctx, eff.ID, eff.Input)
	case session.EffectDelete:
		events, err = c.store.Delete(ctx, eff.ID)
	}

	var rerr *store.RefreshError
	switch {
	case errors.As(err, &rerr):
		out.RefreshErr = rerr
	case err != nil:
		out.WriteErr = err
	default:
		out.Events = events
	}
	return out
}

// Apply feeds an Outcome back into the cache and the edit session.
func (c *Controller) Apply(out Outcome) {
	if out.Effect.None() {
		return
	}
	switch {
	case out.WriteErr != nil:
		appLog.Error("session write failed", out.WriteErr, "kind", out.Effect.Kind.String(), "id", out.Effect.ID)
		c.session, _ = session.Reduce(c.session, session.WriteFailed{Err: out.WriteErr}, c.loc)
		c.setNotice("保存できませんでした。もう一度お試しください", out.WriteErr)

	case out.RefreshErr != nil:
		// The write went through; keep showing the last list until the next
		// refresh succeeds rather than re-sending it.
		appLog.Error("refresh after write failed", out.RefreshErr, "kind", out.Effect.Kind.String())
		c.session, _ = session.Reduce(c.session, session.WriteDone{}, c.loc)
		c.setNotice("保存しましたが、最新の予定を取得できませんでした", out.RefreshErr)

	default:
		c.store.Replace(out.Events)
		c.session, _ = session.Reduce(c.session, session.WriteDone{}, c.loc)
		c.notice = nil
		appLog.Info("session write applied", "kind", out.Effect.Kind.String(), "events", len(out.Events))
	}
}

// Dispatch runs a synchronously: reduce, execute any write, apply the
// outcome. The returned error is the validation or remote error the user
// should see; the controller state already reflects it.
func (c *Controller) Dispatch(ctx context.Context, a session.Action) error {
	eff := c.Begin(a)
	if eff.None() {
		return c.ActionErr(a)
	}
	out := c.Execute(ctx, eff)
	c.Apply(out)
	return out.Err()
}

// ActionErr is the validation error left by a, when Begin produced no
// write.
func (c *Controller) ActionErr(a session.Action) error {
	switch a.(type) {
	case session.Submit, session.SetField:
		return c.session.Err
	}
	return nil
}

func (c *Controller) setNotice(msg string, err error) {
	n := &Notice{Message: msg, At: c.now()}
	if errors.Is(err, lessons.ErrUnauthorized) {
		n.Message = "ログインの有効期限が切れました。再度ログインしてください"
		n.AuthRequired = true
	}
	c.notice = n
}
