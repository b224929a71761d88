package slot

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
)

// -- Mock Repository --

type mockRepo struct {
	slots  map[uuid.UUID]*TimeSlot
	booked map[uuid.UUID]int
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		slots:  make(map[uuid.UUID]*TimeSlot),
		booked: make(map[uuid.UUID]int),
	}
}

func (m *mockRepo) Create(_ context.Context, s *TimeSlot) error {
	s.ID = uuid.New()
	s.CreatedAt = time.Now()
	s.UpdatedAt = s.CreatedAt
	cp := *s
	m.slots[s.ID] = &cp
	return nil
}

func (m *mockRepo) enrich(ts *TimeSlot) SlotWithAvailability {
	return SlotWithAvailability{
		TimeSlot:       *ts,
		DepartmentName: "Cardiology",
		BookedCount:    m.booked[ts.ID],
	}
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*SlotWithAvailability, error) {
	ts, ok := m.slots[id]
	if !ok {
		return nil, ErrSlotNotFound
	}
	s := m.enrich(ts)
	return &s, nil
}

func (m *mockRepo) Find(_ context.Context, q Query) ([]SlotWithAvailability, error) {
	var result []SlotWithAvailability
	for _, ts := range m.slots {
		if q.StartFrom != nil && ts.StartTime.Before(*q.StartFrom) {
			continue
		}
		if q.StartAfter != nil && !ts.StartTime.After(*q.StartAfter) {
			continue
		}
		if q.EndBy != nil && ts.EndTime.After(*q.EndBy) {
			continue
		}
		if q.DepartmentID != nil && ts.DepartmentID != *q.DepartmentID {
			continue
		}
		if q.ProviderID != nil && ts.ProviderID != *q.ProviderID {
			continue
		}
		if q.LocationID != nil && ts.LocationID != *q.LocationID {
			continue
		}
		if q.IsAvailable != nil && ts.IsAvailable != *q.IsAvailable {
			continue
		}
		result = append(result, m.enrich(ts))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].StartTime.Before(result[j].StartTime)
	})
	return result, nil
}

func (m *mockRepo) Update(_ context.Context, s *TimeSlot) error {
	if _, ok := m.slots[s.ID]; !ok {
		return ErrSlotNotFound
	}
	cp := *s
	m.slots[s.ID] = &cp
	return nil
}

func (m *mockRepo) SetAvailability(_ context.Context, id uuid.UUID, available bool) error {
	ts, ok := m.slots[id]
	if !ok {
		return ErrSlotNotFound
	}
	ts.IsAvailable = available
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.slots[id]; !ok {
		return ErrSlotNotFound
	}
	if m.booked[id] > 0 {
		return ErrSlotHasAppointments
	}
	delete(m.slots, id)
	return nil
}

func (m *mockRepo) CountActiveAppointments(_ context.Context, id uuid.UUID) (int, error) {
	return m.booked[id], nil
}
