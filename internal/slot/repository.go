package slot

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-access-scheduling/internal/apperr"
)

var (
	ErrSlotNotFound        = apperr.New(apperr.ErrNotFound, "time slot not found")
	ErrSlotHasAppointments = apperr.New(apperr.ErrConflict, "cannot delete time slot with active appointments")
)

// Query is the structural filter a repository applies. Nil fields are not
// constrained. Results are always ordered by start time ascending and carry
// a freshly computed BookedCount.
type Query struct {
	StartFrom    *time.Time // start_time >= StartFrom
	StartAfter   *time.Time // start_time > StartAfter
	EndBy        *time.Time // end_time <= EndBy
	DepartmentID *uuid.UUID
	ProviderID   *uuid.UUID
	LocationID   *uuid.UUID
	IsAvailable  *bool
}

// Repository contains all store interactions needed by the slot service.
type Repository interface {
	Create(ctx context.Context, s *TimeSlot) error
	GetByID(ctx context.Context, id uuid.UUID) (*SlotWithAvailability, error)
	Find(ctx context.Context, q Query) ([]SlotWithAvailability, error)
	Update(ctx context.Context, s *TimeSlot) error
	SetAvailability(ctx context.Context, id uuid.UUID, available bool) error
	// Delete refuses with ErrSlotHasAppointments while a seat-holding
	// appointment references the slot. Check and delete are one atomic step.
	Delete(ctx context.Context, id uuid.UUID) error

	// Capacity ledger
	CountActiveAppointments(ctx context.Context, id uuid.UUID) (int, error)
}
