package slot

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Remaining is capacity minus the live booked count.
func (s *SlotWithAvailability) Remaining() int {
	return s.Capacity - s.BookedCount
}

// Offerable reports whether the slot may be offered to a patient: it is not
// blocked and at least one seat is free.
func (s *SlotWithAvailability) Offerable() bool {
	return s.IsAvailable && s.Remaining() > 0
}

// applyLedger fills AvailableCapacity from the booked count the store just
// computed. Every read path goes through here before results leave the
// package.
func applyLedger(slots []SlotWithAvailability) []SlotWithAvailability {
	if slots == nil {
		return []SlotWithAvailability{}
	}
	for i := range slots {
		slots[i].AvailableCapacity = slots[i].Remaining()
	}
	return slots
}

func onlyWithCapacity(slots []SlotWithAvailability) []SlotWithAvailability {
	out := make([]SlotWithAvailability, 0, len(slots))
	for _, s := range slots {
		if s.Remaining() > 0 {
			out = append(out, s)
		}
	}
	return out
}

// BookedCount returns the number of appointments currently holding a seat in
// the slot.
func (s *Service) BookedCount(ctx context.Context, id uuid.UUID) (int, error) {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return 0, fmt.Errorf("load slot: %w", err)
	}
	n, err := s.repo.CountActiveAppointments(ctx, id)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// AvailableCapacity returns capacity minus booked count for the slot.
func (s *Service) AvailableCapacity(ctx context.Context, id uuid.UUID) (int, error) {
	sl, err := s.GetSlot(ctx, id)
	if err != nil {
		return 0, err
	}
	return sl.AvailableCapacity, nil
}
