package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"tutorcal/internal/lessons"
	"tutorcal/internal/model"
)

var (
	_ Remote = (*Memory)(nil)
	_ Remote = (*lessons.Client)(nil)
)

// Memory is an in-process Remote. It assigns ids like the real backend and
// hands out copies, so callers cannot alias its state.
type Memory struct {
	mu     sync.Mutex
	events map[int64]model.CalendarEvent
	nextID int64

	// Fail, when set, is consulted before every operation; a non-nil
	// return aborts it. Used to simulate an unreachable backend.
	Fail func(op string) error
}

func NewMemory(seed ...model.CalendarEvent) *Memory {
	m := &Memory{events: make(map[int64]model.CalendarEvent), nextID: 1}
	for _, ev := range seed {
		if ev.ID == 0 {
			ev.ID = m.nextID
		}
		m.events[ev.ID] = ev
		if ev.ID >= m.nextID {
			m.nextID = ev.ID + 1
		}
	}
	return m
}

func (m *Memory) check(op string) error {
	if m.Fail == nil {
		return nil
	}
	return m.Fail(op)
}

func (m *Memory) List(ctx context.Context) ([]model.CalendarEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("list"); err != nil {
		return nil, err
	}
	out := make([]model.CalendarEvent, 0, len(m.events))
	for _, ev := range m.events {
		out = append(out, ev)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Memory) Get(ctx context.Context, id int64) (model.CalendarEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("get"); err != nil {
		return model.CalendarEvent{}, err
	}
	ev, ok := m.events[id]
	if !ok {
		return model.CalendarEvent{}, fmt.Errorf("%w: lesson %d", lessons.ErrNotFound, id)
	}
	return ev, nil
}

func (m *Memory) Create(ctx context.Context, in model.EventInput) (model.CalendarEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("create"); err != nil {
		return model.CalendarEvent{}, err
	}
	if err := validInput(in); err != nil {
		return model.CalendarEvent{}, err
	}
	ev := fromInput(m.nextID, in)
	m.events[ev.ID] = ev
	m.nextID++
	return ev, nil
}

func (m *Memory) Update(ctx context.Context, id int64, in model.EventInput) (model.CalendarEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("update"); err != nil {
		return model.CalendarEvent{}, err
	}
	if _, ok := m.events[id]; !ok {
		return model.CalendarEvent{}, fmt.Errorf("%w: lesson %d", lessons.ErrNotFound, id)
	}
	if err := validInput(in); err != nil {
		return model.CalendarEvent{}, err
	}
	ev := fromInput(id, in)
	m.events[id] = ev
	return ev, nil
}

func (m *Memory) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("delete"); err != nil {
		return err
	}
	if _, ok := m.events[id]; !ok {
		return fmt.Errorf("%w: lesson %d", lessons.ErrNotFound, id)
	}
	delete(m.events, id)
	return nil
}

func validInput(in model.EventInput) error {
	if in.Title == "" {
		return fmt.Errorf("memory: title is required")
	}
	if in.End.Before(in.Start) {
		return fmt.Errorf("memory: end before start")
	}
	return nil
}

func fromInput(id int64, in model.EventInput) model.CalendarEvent {
	color := in.Color
	if color == "" {
		color = model.DefaultColor
	}
	return model.CalendarEvent{
		ID:          id,
		Title:       in.Title,
		Start:       in.Start,
		End:         in.End,
		Description: in.Description,
		Color:       color,
	}
}

// SampleLessons returns the demo lessons for May/June 2025.
func SampleLessons(loc *time.Location) []model.CalendarEvent {
	at := func(m time.Month, d, hh, mm int) time.Time {
		return time.Date(2025, m, d, hh, mm, 0, 0, loc)
	}
	return []model.CalendarEvent{
		{ID: 1, Title: "生徒Aとの面談", Start: at(time.May, 25, 10, 0), End: at(time.May, 25, 11, 0), Description: "来学期の学習計画について", Color: "#FFDDC1"},
		{ID: 2, Title: "全体講師ミーティング", Start: at(time.May, 28, 14, 0), End: at(time.May, 28, 15, 30), Description: "新カリキュラムに関する情報共有", Color: "#C1E1FF"},
		{ID: 3, Title: "個別指導（生徒B）", Start: at(time.May, 29, 16, 0), End: at(time.May, 29, 17, 0), Description: "数学の二次関数", Color: "#D4FFC1"},
		{ID: 4, Title: "資料作成締め切り", Start: at(time.June, 1, 9, 0), End: at(time.June, 1, 17, 0), Description: "来月の教材準備", Color: "#FFC1C1"},
	}
}
