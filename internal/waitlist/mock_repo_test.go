package waitlist

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-access-scheduling/internal/slot"
)

// -- Mock Repository --

type mockRepo struct {
	entries map[uuid.UUID]*Entry
	clock   func() time.Time
}

func newMockRepo(clock func() time.Time) *mockRepo {
	return &mockRepo{entries: make(map[uuid.UUID]*Entry), clock: clock}
}

func (m *mockRepo) Create(_ context.Context, e *Entry) error {
	e.CreatedAt = m.clock()
	e.UpdatedAt = e.CreatedAt
	cp := *e
	m.entries[e.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*EntryDetail, error) {
	e, ok := m.entries[id]
	if !ok {
		return nil, ErrEntryNotFound
	}
	return &EntryDetail{Entry: *e, DepartmentName: "Cardiology"}, nil
}

func (m *mockRepo) Update(_ context.Context, e *Entry) error {
	if _, ok := m.entries[e.ID]; !ok {
		return ErrEntryNotFound
	}
	e.UpdatedAt = m.clock()
	cp := *e
	m.entries[e.ID] = &cp
	return nil
}

func (m *mockRepo) List(_ context.Context, f ListFilter) ([]EntryDetail, error) {
	var out []EntryDetail
	for _, e := range m.entries {
		if f.DepartmentID != nil && e.DepartmentID != *f.DepartmentID {
			continue
		}
		if f.ProviderID != nil && (e.ProviderID == nil || *e.ProviderID != *f.ProviderID) {
			continue
		}
		if f.PatientID != nil && e.PatientID != *f.PatientID {
			continue
		}
		if f.Priority != nil && e.Priority != *f.Priority {
			continue
		}
		if len(f.Statuses) > 0 && !containsStatus(f.Statuses, e.Status) {
			continue
		}
		out = append(out, EntryDetail{Entry: *e})
	}
	sort.Slice(out, func(i, j int) bool {
		ri, rj := out[i].Priority.Rank(), out[j].Priority.Rank()
		if ri != rj {
			return ri < rj
		}
		return out[i].RequestedDate.Before(out[j].RequestedDate)
	})
	return out, nil
}

func containsStatus(list []Status, s Status) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (m *mockRepo) CountByStatusAndPriority(_ context.Context, departmentID *uuid.UUID) ([]GroupCount, error) {
	counts := make(map[[2]string]int)
	for _, e := range m.entries {
		if departmentID != nil && e.DepartmentID != *departmentID {
			continue
		}
		counts[[2]string{string(e.Status), string(e.Priority)}]++
	}
	var out []GroupCount
	for k, n := range counts {
		out = append(out, GroupCount{Status: Status(k[0]), Priority: Priority(k[1]), Count: n})
	}
	return out, nil
}

func (m *mockRepo) AverageConvertedWaitDays(_ context.Context, departmentID *uuid.UUID) (*float64, error) {
	var total float64
	n := 0
	for _, e := range m.entries {
		if departmentID != nil && e.DepartmentID != *departmentID {
			continue
		}
		if e.Status != StatusConverted {
			continue
		}
		total += e.UpdatedAt.Sub(e.CreatedAt).Hours() / 24
		n++
	}
	if n == 0 {
		return nil, nil
	}
	avg := total / float64(n)
	return &avg, nil
}

func (m *mockRepo) ExpireBefore(_ context.Context, now time.Time) (int, error) {
	n := 0
	for _, e := range m.entries {
		if e.Status.Eligible() && e.ExpiresAt.Before(now) {
			e.Status = StatusExpired
			n++
		}
	}
	return n, nil
}

// -- Fake slot searcher --

// fakeSlots applies the same rules as slot.Service.Upcoming over a fixed
// candidate list.
type fakeSlots struct {
	clock   func() time.Time
	slots   []slot.SlotWithAvailability
	lastReq *slot.UpcomingFilter
}

func (f *fakeSlots) Upcoming(_ context.Context, filter slot.UpcomingFilter, limit int) ([]slot.SlotWithAvailability, error) {
	f.lastReq = &filter
	now := f.clock()

	var out []slot.SlotWithAvailability
	for _, s := range f.slots {
		if !s.StartTime.After(now) || !s.IsAvailable || s.DepartmentID != filter.DepartmentID {
			continue
		}
		if filter.ProviderID != nil && s.ProviderID != *filter.ProviderID {
			continue
		}
		if s.Remaining() <= 0 {
			continue
		}
		s.AvailableCapacity = s.Remaining()
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
