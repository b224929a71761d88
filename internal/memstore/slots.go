package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-access-scheduling/internal/apperr"
	"github.com/hackgods/clinic-access-scheduling/internal/slot"
)

type SlotRepository struct {
	s *Store
}

var _ slot.Repository = (*SlotRepository)(nil)

func (r *SlotRepository) Create(_ context.Context, ts *slot.TimeSlot) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if !r.s.providerExists(ts.ProviderID) || !r.s.departmentExists(ts.DepartmentID) || !r.s.locationExists(ts.LocationID) {
		return apperr.New(apperr.ErrValidation, "provider, department or location does not exist")
	}
	if ts.ID == uuid.Nil {
		ts.ID = uuid.New()
	}
	ts.CreatedAt = time.Now()
	ts.UpdatedAt = ts.CreatedAt
	cp := *ts
	r.s.slots[ts.ID] = &cp
	return nil
}

// view must be called with mu held.
func (r *SlotRepository) view(ts *slot.TimeSlot) slot.SlotWithAvailability {
	out := slot.SlotWithAvailability{
		TimeSlot:    *ts,
		BookedCount: r.s.bookedCount(ts.ID),
	}
	if p, ok := r.s.providers[ts.ProviderID]; ok {
		out.ProviderFirstName, out.ProviderLastName, out.ProviderTitle = p.FirstName, p.LastName, p.Title
	}
	if d, ok := r.s.departments[ts.DepartmentID]; ok {
		out.DepartmentName, out.DepartmentCode = d.Name, d.Code
	}
	if l, ok := r.s.locations[ts.LocationID]; ok {
		out.LocationName, out.LocationBuilding, out.LocationFloor, out.LocationRoom = l.Name, l.Building, l.Floor, l.Room
	}
	return out
}

func (r *SlotRepository) GetByID(_ context.Context, id uuid.UUID) (*slot.SlotWithAvailability, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	ts, ok := r.s.slots[id]
	if !ok {
		return nil, slot.ErrSlotNotFound
	}
	v := r.view(ts)
	return &v, nil
}

func (r *SlotRepository) Find(_ context.Context, q slot.Query) ([]slot.SlotWithAvailability, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	result := make([]slot.SlotWithAvailability, 0)
	for _, ts := range r.s.slots {
		switch {
		case q.StartFrom != nil && ts.StartTime.Before(*q.StartFrom):
			continue
		case q.StartAfter != nil && !ts.StartTime.After(*q.StartAfter):
			continue
		case q.EndBy != nil && ts.EndTime.After(*q.EndBy):
			continue
		case q.DepartmentID != nil && ts.DepartmentID != *q.DepartmentID:
			continue
		case q.ProviderID != nil && ts.ProviderID != *q.ProviderID:
			continue
		case q.LocationID != nil && ts.LocationID != *q.LocationID:
			continue
		case q.IsAvailable != nil && ts.IsAvailable != *q.IsAvailable:
			continue
		}
		result = append(result, r.view(ts))
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].StartTime.Before(result[j].StartTime)
	})
	return result, nil
}

func (r *SlotRepository) Update(_ context.Context, ts *slot.TimeSlot) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	cur, ok := r.s.slots[ts.ID]
	if !ok {
		return slot.ErrSlotNotFound
	}
	cur.StartTime = ts.StartTime
	cur.EndTime = ts.EndTime
	cur.Duration = ts.Duration
	cur.Capacity = ts.Capacity
	cur.UpdatedAt = time.Now()
	return nil
}

func (r *SlotRepository) SetAvailability(_ context.Context, id uuid.UUID, available bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	cur, ok := r.s.slots[id]
	if !ok {
		return slot.ErrSlotNotFound
	}
	cur.IsAvailable = available
	cur.UpdatedAt = time.Now()
	return nil
}

// Delete refuses while a seat-holding appointment references the slot and
// otherwise detaches the remaining appointments, matching the ON DELETE SET
// NULL foreign key.
func (r *SlotRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.slots[id]; !ok {
		return slot.ErrSlotNotFound
	}
	if r.s.bookedCount(id) > 0 {
		return slot.ErrSlotHasAppointments
	}
	delete(r.s.slots, id)
	for _, a := range r.s.appointments {
		if a.TimeSlotID != nil && *a.TimeSlotID == id {
			a.TimeSlotID = nil
		}
	}
	return nil
}

func (r *SlotRepository) CountActiveAppointments(_ context.Context, id uuid.UUID) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.bookedCount(id), nil
}
