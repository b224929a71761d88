package waitlist

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-access-scheduling/internal/apperr"
	"github.com/hackgods/clinic-access-scheduling/internal/slot"
)

var (
	ErrEntryNotFound = apperr.New(apperr.ErrNotFound, "waitlist entry not found")
)

type Repository interface {
	Create(ctx context.Context, e *Entry) error
	GetByID(ctx context.Context, id uuid.UUID) (*EntryDetail, error)

	// Update writes every mutable column of e.
	Update(ctx context.Context, e *Entry) error

	// List returns entries ordered by priority rank, then requested date.
	List(ctx context.Context, f ListFilter) ([]EntryDetail, error)

	CountByStatusAndPriority(ctx context.Context, departmentID *uuid.UUID) ([]GroupCount, error)
	// AverageConvertedWaitDays is nil when no entry has been converted.
	AverageConvertedWaitDays(ctx context.Context, departmentID *uuid.UUID) (*float64, error)

	// ExpireBefore flips every active or contacted entry with expires_at
	// before now to expired in one statement.
	ExpireBefore(ctx context.Context, now time.Time) (int, error)
}

// SlotSearcher is the slot query the matcher relies on.
type SlotSearcher interface {
	Upcoming(ctx context.Context, f slot.UpcomingFilter, limit int) ([]slot.SlotWithAvailability, error)
}
