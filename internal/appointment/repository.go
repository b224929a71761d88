package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-access-scheduling/internal/apperr"
	"github.com/hackgods/clinic-access-scheduling/internal/slot"
)

var (
	ErrAppointmentNotFound = apperr.New(apperr.ErrNotFound, "appointment not found")

	// ErrDuplicateConfirmationCode is returned by Create when the generated
	// code collides with an existing one.
	ErrDuplicateConfirmationCode = errors.New("confirmation code already in use")
)

// Repository contains all DB interactions needed by the service.
type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error)
	GetByConfirmationCode(ctx context.Context, code string) (*AppointmentDetail, error)

	// Update writes every mutable column of a.
	Update(ctx context.Context, a *Appointment) error

	List(ctx context.Context, f ListFilter, limit, offset int) ([]AppointmentDetail, int, error)
	ListUpcoming(ctx context.Context, patientID uuid.UUID, now time.Time, limit int) ([]AppointmentDetail, error)
	ListHistory(ctx context.Context, patientID uuid.UUID, limit int) ([]AppointmentDetail, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}

// SlotReader is the view of the capacity ledger the booking path needs.
type SlotReader interface {
	GetSlot(ctx context.Context, id uuid.UUID) (*slot.SlotWithAvailability, error)
}
