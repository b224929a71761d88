package appointment

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	redisclient "github.com/hackgods/clinic-access-scheduling/internal/redis"
	"github.com/hackgods/clinic-access-scheduling/internal/slot"
)

// -- Mock Repository --

type mockRepo struct {
	appointments map[uuid.UUID]*Appointment
	events       []EventLog
	// codes handed to Create that should be rejected as duplicates
	takenCodes map[string]bool
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		appointments: make(map[uuid.UUID]*Appointment),
		takenCodes:   make(map[string]bool),
	}
}

func (m *mockRepo) Create(_ context.Context, a *Appointment) error {
	if m.takenCodes[a.ConfirmationCode] {
		return ErrDuplicateConfirmationCode
	}
	for _, existing := range m.appointments {
		if existing.ConfirmationCode == a.ConfirmationCode {
			return ErrDuplicateConfirmationCode
		}
	}
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	cp := *a
	m.appointments[a.ID] = &cp
	return nil
}

func (m *mockRepo) detail(a *Appointment) AppointmentDetail {
	return AppointmentDetail{
		Appointment:      *a,
		PatientFirstName: "Ada",
		PatientLastName:  "Lovelace",
		DepartmentName:   "Cardiology",
	}
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	a, ok := m.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	d := m.detail(a)
	return &d, nil
}

func (m *mockRepo) GetByConfirmationCode(_ context.Context, code string) (*AppointmentDetail, error) {
	for _, a := range m.appointments {
		if a.ConfirmationCode == code {
			d := m.detail(a)
			return &d, nil
		}
	}
	return nil, ErrAppointmentNotFound
}

func (m *mockRepo) Update(_ context.Context, a *Appointment) error {
	if _, ok := m.appointments[a.ID]; !ok {
		return ErrAppointmentNotFound
	}
	a.UpdatedAt = time.Now()
	cp := *a
	m.appointments[a.ID] = &cp
	return nil
}

func (m *mockRepo) matching(keep func(*Appointment) bool) []AppointmentDetail {
	var out []AppointmentDetail
	for _, a := range m.appointments {
		if keep(a) {
			out = append(out, m.detail(a))
		}
	}
	return out
}

func (m *mockRepo) List(_ context.Context, f ListFilter, limit, offset int) ([]AppointmentDetail, int, error) {
	rows := m.matching(func(a *Appointment) bool {
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
	sort.Slice(rows, func(i, j int) bool { return rows[i].ScheduledStart.After(rows[j].ScheduledStart) })

	total := len(rows)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return rows[offset:end], total, nil
}

func (m *mockRepo) ListUpcoming(_ context.Context, patientID uuid.UUID, now time.Time, limit int) ([]AppointmentDetail, error) {
	rows := m.matching(func(a *Appointment) bool {
		return a.PatientID == patientID && !a.ScheduledStart.Before(now) && !a.Status.Closed()
	})
	sort.Slice(rows, func(i, j int) bool { return rows[i].ScheduledStart.Before(rows[j].ScheduledStart) })
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (m *mockRepo) ListHistory(_ context.Context, patientID uuid.UUID, limit int) ([]AppointmentDetail, error) {
	rows := m.matching(func(a *Appointment) bool { return a.PatientID == patientID })
	sort.Slice(rows, func(i, j int) bool { return rows[i].ScheduledStart.After(rows[j].ScheduledStart) })
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (m *mockRepo) InsertEvent(_ context.Context, ev EventLog) error {
	m.events = append(m.events, ev)
	return nil
}

func (m *mockRepo) eventTypes() []string {
	out := make([]string, len(m.events))
	for i, ev := range m.events {
		out[i] = ev.EventType
	}
	return out
}

// bookedCount mirrors the capacity ledger over the mock's rows.
func (m *mockRepo) bookedCount(slotID uuid.UUID) int {
	n := 0
	for _, a := range m.appointments {
		if a.TimeSlotID != nil && *a.TimeSlotID == slotID && a.Status.ConsumesCapacity() {
			n++
		}
	}
	return n
}

// -- Mock slot reader --

type mockSlots struct {
	repo  *mockRepo
	slots map[uuid.UUID]slot.TimeSlot
}

func (m *mockSlots) GetSlot(_ context.Context, id uuid.UUID) (*slot.SlotWithAvailability, error) {
	ts, ok := m.slots[id]
	if !ok {
		return nil, slot.ErrSlotNotFound
	}
	s := slot.SlotWithAvailability{TimeSlot: ts, BookedCount: m.repo.bookedCount(id)}
	s.AvailableCapacity = s.Remaining()
	return &s, nil
}

// -- Mock locker --

type busyLocker struct{}

func (busyLocker) WithSlotLock(context.Context, uuid.UUID, func(context.Context) error) error {
	return redisclient.ErrLockNotAcquired
}
