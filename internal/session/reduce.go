package session

import (
	"time"

	"tutorcal/internal/model"
)

// State is the whole edit-session state. The zero value is Closed.
type State struct {
	Mode     Mode
	TargetID int64 // only meaningful in EditDraft
	Draft    Draft

	// ConfirmingDelete is set while the delete confirmation is shown.
	ConfirmingDelete bool
	// Pending is set from the moment a write is emitted until its outcome
	// is fed back.
	Pending bool
	// Err is the last validation or write error shown in the modal.
	Err error
}

func (s State) Open() bool {
	return s.Mode != Closed
}

// Action is an input to Reduce.
type Action interface {
	action()
}

type (
	// Add opens a blank create form. Color, when set, replaces the default
	// chip color of the new draft.
	Add struct{ Color string }
	// Open starts editing an existing event.
	Open struct{ Event model.CalendarEvent }
	// SetField updates one draft input.
	SetField struct {
		Field Field
		Value string
	}
	Submit        struct{}
	RequestDelete struct{}
	ConfirmDelete struct{}
	DismissDelete struct{}
	Cancel        struct{}
	// WriteDone reports that the write and the follow-up refetch finished.
	WriteDone struct{}
	// WriteFailed reports that the write did not go through.
	WriteFailed struct{ Err error }
)

func (Add) action()           {}
func (Open) action()          {}
func (SetField) action()      {}
func (Submit) action()        {}
func (RequestDelete) action() {}
func (ConfirmDelete) action() {}
func (DismissDelete) action() {}
func (Cancel) action()        {}
func (WriteDone) action()     {}
func (WriteFailed) action()   {}

// EffectKind names the remote write an action asks for.
type EffectKind int

const (
	EffectNone EffectKind = iota
	EffectCreate
	EffectUpdate
	EffectDelete
)

func (k EffectKind) String() string {
	switch k {
	case EffectCreate:
		return "create"
	case EffectUpdate:
		return "update"
	case EffectDelete:
		return "delete"
	default:
		return "none"
	}
}

// Effect describes a write the caller must perform, followed by a full
// refetch, before feeding WriteDone or WriteFailed back.
type Effect struct {
	Kind  EffectKind
	ID    int64
	Input model.EventInput
}

func (e Effect) None() bool {
	return e.Kind == EffectNone
}

// Reduce is the single transition function of the edit session. Actions
// that make no sense in the current state leave it unchanged.
func Reduce(s State, a Action, loc *time.Location) (State, Effect) {
	if loc == nil {
		loc = time.Local
	}

	switch a := a.(type) {
	case Add:
		if s.Open() {
			return s, Effect{}
		}
		d := BlankDraft()
		if a.Color != "" {
			d.Color = a.Color
		}
		return State{Mode: CreateDraft, Draft: d}, Effect{}

	case Open:
		if s.Open() {
			return s, Effect{}
		}
		return State{Mode: EditDraft, TargetID: a.Event.ID, Draft: DraftFrom(a.Event, loc)}, Effect{}

	case SetField:
		if !s.Open() {
			return s, Effect{}
		}
		d, err := s.Draft.With(a.Field, a.Value)
		if err != nil {
			s.Err = err
			return s, Effect{}
		}
		s.Draft = d
		s.Err = nil
		return s, Effect{}

	case Submit:
		if !s.Open() || s.Pending {
			return s, Effect{}
		}
		in, err := s.Draft.Validate(loc)
		if err != nil {
			s.Err = err
			return s, Effect{}
		}
		s.Err = nil
		s.Pending = true
		s.ConfirmingDelete = false
		if s.Mode == EditDraft {
			return s, Effect{Kind: EffectUpdate, ID: s.TargetID, Input: in}
		}
		return s, Effect{Kind: EffectCreate, Input: in}

	case RequestDelete:
		if s.Mode != EditDraft || s.Pending {
			return s, Effect{}
		}
		s.ConfirmingDelete = true
		return s, Effect{}

	case DismissDelete:
		s.ConfirmingDelete = false
		return s, Effect{}

	case ConfirmDelete:
		if s.Mode != EditDraft || !s.ConfirmingDelete || s.Pending {
			return s, Effect{}
		}
		s.ConfirmingDelete = false
		s.Pending = true
		s.Err = nil
		return s, Effect{Kind: EffectDelete, ID: s.TargetID}

	case Cancel:
		return State{}, Effect{}

	// Write results only land on the session that is waiting for them.
	case WriteDone:
		if !s.Pending {
			return s, Effect{}
		}
		return State{}, Effect{}

	case WriteFailed:
		if !s.Pending {
			return s, Effect{}
		}
		s.Pending = false
		s.Err = a.Err
		return s, Effect{}
	}

	return s, Effect{}
}
