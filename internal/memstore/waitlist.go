package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-access-scheduling/internal/apperr"
	"github.com/hackgods/clinic-access-scheduling/internal/waitlist"
)

type WaitlistRepository struct {
	s *Store
}

var _ waitlist.Repository = (*WaitlistRepository)(nil)

func cloneEntry(e *waitlist.Entry) waitlist.Entry {
	cp := *e
	cp.PreferredDates = cloneStrings(e.PreferredDates)
	cp.PreferredTimeOfDay = cloneStrings(e.PreferredTimeOfDay)
	return cp
}

func (r *WaitlistRepository) Create(_ context.Context, e *waitlist.Entry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if !r.s.patientExists(e.PatientID) || !r.s.departmentExists(e.DepartmentID) ||
		(e.ProviderID != nil && !r.s.providerExists(*e.ProviderID)) {
		return apperr.New(apperr.ErrValidation, "patient, department or provider does not exist")
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	e.CreatedAt = time.Now()
	e.UpdatedAt = e.CreatedAt
	cp := cloneEntry(e)
	r.s.entries[e.ID] = &cp
	return nil
}

// detail must be called with mu held.
func (r *WaitlistRepository) detail(e *waitlist.Entry) waitlist.EntryDetail {
	out := waitlist.EntryDetail{Entry: cloneEntry(e)}
	if p, ok := r.s.patients[e.PatientID]; ok {
		out.PatientFirstName, out.PatientLastName = p.FirstName, p.LastName
		out.PatientPhone, out.PatientEmail = p.Phone, p.Email
	}
	if d, ok := r.s.departments[e.DepartmentID]; ok {
		out.DepartmentName, out.DepartmentCode = d.Name, d.Code
	}
	if e.ProviderID != nil {
		if p, ok := r.s.providers[*e.ProviderID]; ok {
			out.ProviderFirstName, out.ProviderLastName, out.ProviderTitle = p.FirstName, p.LastName, p.Title
		}
	}
	return out
}

func (r *WaitlistRepository) GetByID(_ context.Context, id uuid.UUID) (*waitlist.EntryDetail, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	e, ok := r.s.entries[id]
	if !ok {
		return nil, waitlist.ErrEntryNotFound
	}
	d := r.detail(e)
	return &d, nil
}

func (r *WaitlistRepository) Update(_ context.Context, e *waitlist.Entry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.entries[e.ID]; !ok {
		return waitlist.ErrEntryNotFound
	}
	if e.ConvertedToAppointmentID != nil {
		if _, ok := r.s.appointments[*e.ConvertedToAppointmentID]; !ok {
			return apperr.New(apperr.ErrValidation, "appointment does not exist")
		}
	}
	e.UpdatedAt = time.Now()
	cp := cloneEntry(e)
	r.s.entries[e.ID] = &cp
	return nil
}

func hasStatus(list []waitlist.Status, s waitlist.Status) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (r *WaitlistRepository) List(_ context.Context, f waitlist.ListFilter) ([]waitlist.EntryDetail, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]waitlist.EntryDetail, 0)
	for _, e := range r.s.entries {
		switch {
		case f.DepartmentID != nil && e.DepartmentID != *f.DepartmentID:
			continue
		case f.ProviderID != nil && (e.ProviderID == nil || *e.ProviderID != *f.ProviderID):
			continue
		case f.PatientID != nil && e.PatientID != *f.PatientID:
			continue
		case len(f.Statuses) > 0 && !hasStatus(f.Statuses, e.Status):
			continue
		case f.Priority != nil && e.Priority != *f.Priority:
			continue
		}
		out = append(out, r.detail(e))
	}

	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := out[i].Priority.Rank(), out[j].Priority.Rank()
		if ri != rj {
			return ri < rj
		}
		return out[i].RequestedDate.Before(out[j].RequestedDate)
	})
	return out, nil
}

func (r *WaitlistRepository) CountByStatusAndPriority(_ context.Context, departmentID *uuid.UUID) ([]waitlist.GroupCount, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	type key struct {
		status   waitlist.Status
		priority waitlist.Priority
	}
	counts := make(map[key]int)
	for _, e := range r.s.entries {
		if departmentID != nil && e.DepartmentID != *departmentID {
			continue
		}
		counts[key{e.Status, e.Priority}]++
	}

	out := make([]waitlist.GroupCount, 0, len(counts))
	for k, n := range counts {
		out = append(out, waitlist.GroupCount{Status: k.status, Priority: k.priority, Count: n})
	}
	return out, nil
}

func (r *WaitlistRepository) AverageConvertedWaitDays(_ context.Context, departmentID *uuid.UUID) (*float64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var sum float64
	n := 0
	for _, e := range r.s.entries {
		if e.Status != waitlist.StatusConverted {
			continue
		}
		if departmentID != nil && e.DepartmentID != *departmentID {
			continue
		}
		sum += e.UpdatedAt.Sub(e.CreatedAt).Hours() / 24
		n++
	}
	if n == 0 {
		return nil, nil
	}
	avg := sum / float64(n)
	return &avg, nil
}

func (r *WaitlistRepository) ExpireBefore(_ context.Context, now time.Time) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	n := 0
	for _, e := range r.s.entries {
		if e.Status.Eligible() && e.ExpiresAt.Before(now) {
			e.Status = waitlist.StatusExpired
			e.UpdatedAt = time.Now()
			n++
		}
	}
	return n, nil
}
