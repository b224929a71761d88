// Package memstore keeps slots, appointments and waitlist entries in process
// memory behind the same repository interfaces the Postgres implementations
// satisfy. The slot view derives booked counts from the appointment rows it
// shares with the appointment view, so the capacity ledger behaves as it
// does against the database. It backs the package tests and the in-memory
// mode of cmd/simulate; the reference-id checks stand in for the foreign keys.
package memstore

import (
	"sync"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-access-scheduling/internal/appointment"
	"github.com/hackgods/clinic-access-scheduling/internal/slot"
	"github.com/hackgods/clinic-access-scheduling/internal/waitlist"
)

type Department struct {
	ID   uuid.UUID
	Name string
	Code string
}

type Provider struct {
	ID           uuid.UUID
	FirstName    string
	LastName     string
	Title        string
	DepartmentID uuid.UUID
}

type Location struct {
	ID       uuid.UUID
	Name     string
	Building string
	Floor    string
	Room     string
}

type Patient struct {
	ID        uuid.UUID
	FirstName string
	LastName  string
	Email     string
	Phone     string
}

type Store struct {
	mu sync.RWMutex

	departments map[uuid.UUID]Department
	providers   map[uuid.UUID]Provider
	locations   map[uuid.UUID]Location
	patients    map[uuid.UUID]Patient

	slots        map[uuid.UUID]*slot.TimeSlot
	appointments map[uuid.UUID]*appointment.Appointment
	entries      map[uuid.UUID]*waitlist.Entry
	events       []appointment.EventLog
}

func New() *Store {
	return &Store{
		departments:  make(map[uuid.UUID]Department),
		providers:    make(map[uuid.UUID]Provider),
		locations:    make(map[uuid.UUID]Location),
		patients:     make(map[uuid.UUID]Patient),
		slots:        make(map[uuid.UUID]*slot.TimeSlot),
		appointments: make(map[uuid.UUID]*appointment.Appointment),
		entries:      make(map[uuid.UUID]*waitlist.Entry),
	}
}

func (s *Store) AddDepartment(d Department) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.departments[d.ID] = d
}

func (s *Store) AddProvider(p Provider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.providers[p.ID] = p
}

func (s *Store) AddLocation(l Location) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locations[l.ID] = l
}

func (s *Store) AddPatient(p Patient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patients[p.ID] = p
}

// Events returns a copy of the appointment audit log.
func (s *Store) Events() []appointment.EventLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]appointment.EventLog, len(s.events))
	copy(out, s.events)
	return out
}

// Slots returns the slot.Repository view of the store.
func (s *Store) Slots() *SlotRepository { return &SlotRepository{s} }

// Appointments returns the appointment.Repository view of the store.
func (s *Store) Appointments() *AppointmentRepository { return &AppointmentRepository{s} }

// Waitlist returns the waitlist.Repository view of the store.
func (s *Store) Waitlist() *WaitlistRepository { return &WaitlistRepository{s} }

// The exists helpers stand in for the foreign keys. They must be called with
// mu held.

func (s *Store) departmentExists(id uuid.UUID) bool {
	_, ok := s.departments[id]
	return ok
}

func (s *Store) providerExists(id uuid.UUID) bool {
	_, ok := s.providers[id]
	return ok
}

func (s *Store) locationExists(id uuid.UUID) bool {
	_, ok := s.locations[id]
	return ok
}

func (s *Store) patientExists(id uuid.UUID) bool {
	_, ok := s.patients[id]
	return ok
}

func (s *Store) slotExists(id *uuid.UUID) bool {
	if id == nil {
		return true
	}
	_, ok := s.slots[*id]
	return ok
}

// bookedCount must be called with mu held.
func (s *Store) bookedCount(slotID uuid.UUID) int {
	n := 0
	for _, a := range s.appointments {
		if a.TimeSlotID != nil && *a.TimeSlotID == slotID && a.Status.ConsumesCapacity() {
			n++
		}
	}
	return n
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
