package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-access-scheduling/internal/apperr"
	"github.com/hackgods/clinic-access-scheduling/internal/appointment"
)

type AppointmentRepository struct {
	s *Store
}

var _ appointment.Repository = (*AppointmentRepository)(nil)

func (r *AppointmentRepository) Create(_ context.Context, a *appointment.Appointment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.appointments {
		if existing.ConfirmationCode == a.ConfirmationCode {
			return appointment.ErrDuplicateConfirmationCode
		}
	}
	if !r.s.patientExists(a.PatientID) || !r.s.providerExists(a.ProviderID) ||
		!r.s.departmentExists(a.DepartmentID) || !r.s.locationExists(a.LocationID) ||
		!r.s.slotExists(a.TimeSlotID) {
		return apperr.New(apperr.ErrValidation, "patient, provider, department, location or time slot does not exist")
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	cp := *a
	r.s.appointments[a.ID] = &cp
	return nil
}

// detail must be called with mu held.
func (r *AppointmentRepository) detail(a *appointment.Appointment) appointment.AppointmentDetail {
	out := appointment.AppointmentDetail{Appointment: *a}
	if p, ok := r.s.patients[a.PatientID]; ok {
		out.PatientFirstName, out.PatientLastName = p.FirstName, p.LastName
		out.PatientPhone, out.PatientEmail = p.Phone, p.Email
	}
	if p, ok := r.s.providers[a.ProviderID]; ok {
		out.ProviderFirstName, out.ProviderLastName, out.ProviderTitle = p.FirstName, p.LastName, p.Title
	}
	if d, ok := r.s.departments[a.DepartmentID]; ok {
		out.DepartmentName, out.DepartmentCode = d.Name, d.Code
	}
	if l, ok := r.s.locations[a.LocationID]; ok {
		out.LocationName, out.LocationBuilding, out.LocationFloor, out.LocationRoom = l.Name, l.Building, l.Floor, l.Room
	}
	return out
}

func (r *AppointmentRepository) GetByID(_ context.Context, id uuid.UUID) (*appointment.AppointmentDetail, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	a, ok := r.s.appointments[id]
	if !ok {
		return nil, appointment.ErrAppointmentNotFound
	}
	d := r.detail(a)
	return &d, nil
}

func (r *AppointmentRepository) GetByConfirmationCode(_ context.Context, code string) (*appointment.AppointmentDetail, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, a := range r.s.appointments {
		if a.ConfirmationCode == code {
			d := r.detail(a)
			return &d, nil
		}
	}
	return nil, appointment.ErrAppointmentNotFound
}

func (r *AppointmentRepository) Update(_ context.Context, a *appointment.Appointment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.appointments[a.ID]; !ok {
		return appointment.ErrAppointmentNotFound
	}
	if !r.s.slotExists(a.TimeSlotID) {
		return apperr.New(apperr.ErrValidation, "time slot does not exist")
	}
	a.UpdatedAt = time.Now()
	cp := *a
	r.s.appointments[a.ID] = &cp
	return nil
}

// filter must be called with mu held.
func (r *AppointmentRepository) filter(keep func(*appointment.Appointment) bool) []appointment.AppointmentDetail {
	out := make([]appointment.AppointmentDetail, 0)
	for _, a := range r.s.appointments {
		if keep(a) {
			out = append(out, r.detail(a))
		}
	}
	return out
}

func byStart(rows []appointment.AppointmentDetail, desc bool) {
	sort.SliceStable(rows, func(i, j int) bool {
		if desc {
			return rows[i].ScheduledStart.After(rows[j].ScheduledStart)
		}
		return rows[i].ScheduledStart.Before(rows[j].ScheduledStart)
	})
}

func (r *AppointmentRepository) List(_ context.Context, f appointment.ListFilter, limit, offset int) ([]appointment.AppointmentDetail, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	rows := r.filter(func(a *appointment.Appointment) bool {
		switch {
		case f.PatientID != nil && a.PatientID != *f.PatientID:
			return false
		case f.ProviderID != nil && a.ProviderID != *f.ProviderID:
			return false
		case f.DepartmentID != nil && a.DepartmentID != *f.DepartmentID:
			return false
		case f.Status != nil && a.Status != *f.Status:
			return false
		case f.StartDate != nil && a.ScheduledStart.Before(*f.StartDate):
			return false
		case f.EndDate != nil && a.ScheduledEnd.After(*f.EndDate):
			return false
		}
		return true
	})
	byStart(rows, true)

	total := len(rows)
	if offset >= total {
		return []appointment.AppointmentDetail{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return rows[offset:end], total, nil
}

func (r *AppointmentRepository) ListUpcoming(_ context.Context, patientID uuid.UUID, now time.Time, limit int) ([]appointment.AppointmentDetail, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	rows := r.filter(func(a *appointment.Appointment) bool {
		return a.PatientID == patientID && !a.ScheduledStart.Before(now) && !a.Status.Closed()
	})
	byStart(rows, false)
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (r *AppointmentRepository) ListHistory(_ context.Context, patientID uuid.UUID, limit int) ([]appointment.AppointmentDetail, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	rows := r.filter(func(a *appointment.Appointment) bool { return a.PatientID == patientID })
	byStart(rows, true)
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (r *AppointmentRepository) InsertEvent(_ context.Context, ev appointment.EventLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	ev.ID = int64(len(r.s.events) + 1)
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}
	r.s.events = append(r.s.events, ev)
	return nil
}
