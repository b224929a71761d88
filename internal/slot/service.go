package slot

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-access-scheduling/internal/apperr"
)

// DefaultRecurrenceInterval separates generated occurrences when the caller
// does not supply one.
const DefaultRecurrenceInterval = 7 * 24 * time.Hour

type Service struct {
	repo   Repository
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger.With().Str("component", "slot").Logger(),
		now:    time.Now,
	}
}

// Search returns slots in [StartDate, EndDate] matching the filter, with
// capacity derived from live appointments. In open mode fully booked slots
// are dropped.
func (s *Service) Search(ctx context.Context, f SearchFilter) ([]SlotWithAvailability, error) {
	if f.StartDate.IsZero() || f.EndDate.IsZero() {
		return nil, apperr.Validation("startDate and endDate are required")
	}
	if f.EndDate.Before(f.StartDate) {
		return nil, apperr.Validation("endDate must not be before startDate")
	}

	q := Query{
		StartFrom:    &f.StartDate,
		EndBy:        &f.EndDate,
		DepartmentID: f.DepartmentID,
		ProviderID:   f.ProviderID,
		LocationID:   f.LocationID,
	}
	switch f.Availability {
	case AvailabilityOpen:
		q.IsAvailable = boolPtr(true)
	case AvailabilityBlocked:
		q.IsAvailable = boolPtr(false)
	}

	slots, err := s.repo.Find(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("search slots: %w", err)
	}
	slots = applyLedger(slots)

	if f.Availability == AvailabilityOpen {
		slots = onlyWithCapacity(slots)
	}
	return slots, nil
}

// Upcoming returns offerable slots starting after now for a department and
// optional provider, earliest first. The capacity filter runs before limit
// is applied; limit <= 0 means no limit.
func (s *Service) Upcoming(ctx context.Context, f UpcomingFilter, limit int) ([]SlotWithAvailability, error) {
	now := s.now()
	deptID := f.DepartmentID
	slots, err := s.repo.Find(ctx, Query{
		StartAfter:   &now,
		DepartmentID: &deptID,
		ProviderID:   f.ProviderID,
		IsAvailable:  boolPtr(true),
	})
	if err != nil {
		return nil, fmt.Errorf("find upcoming slots: %w", err)
	}

	slots = onlyWithCapacity(applyLedger(slots))
	if limit > 0 && len(slots) > limit {
		slots = slots[:limit]
	}
	return slots, nil
}

// NextAvailable returns the earliest offerable slot, or nil when there is
// none.
func (s *Service) NextAvailable(ctx context.Context, departmentID uuid.UUID, providerID *uuid.UUID) (*SlotWithAvailability, error) {
	slots, err := s.Upcoming(ctx, UpcomingFilter{DepartmentID: departmentID, ProviderID: providerID}, 1)
	if err != nil {
		return nil, err
	}
	if len(slots) == 0 {
		return nil, nil
	}
	return &slots[0], nil
}

// ProviderSchedule lists every slot of a provider in range, booked or not.
func (s *Service) ProviderSchedule(ctx context.Context, providerID uuid.UUID, start, end time.Time) ([]SlotWithAvailability, error) {
	if start.IsZero() || end.IsZero() {
		return nil, apperr.Validation("startDate and endDate are required")
	}
	slots, err := s.repo.Find(ctx, Query{
		StartFrom:  &start,
		EndBy:      &end,
		ProviderID: &providerID,
	})
	if err != nil {
		return nil, fmt.Errorf("provider schedule: %w", err)
	}
	return applyLedger(slots), nil
}

func (s *Service) GetSlot(ctx context.Context, id uuid.UUID) (*SlotWithAvailability, error) {
	sl, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	sl.AvailableCapacity = sl.Remaining()
	return sl, nil
}

func (s *Service) CreateSlot(ctx context.Context, in CreateSlotInput) (*SlotWithAvailability, error) {
	ts, err := newTimeSlot(in)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, ts); err != nil {
		return nil, fmt.Errorf("create slot: %w", err)
	}

	s.logger.Info().
		Str("slot_id", ts.ID.String()).
		Str("provider_id", ts.ProviderID.String()).
		Time("start_time", ts.StartTime).
		Int("capacity", ts.Capacity).
		Msg("time slot created")

	return s.GetSlot(ctx, ts.ID)
}

// CreateRecurringSlots creates count independent slots from one template,
// occurrence i shifted by i*interval.
func (s *Service) CreateRecurringSlots(ctx context.Context, in CreateSlotInput, count int, interval time.Duration) ([]SlotWithAvailability, error) {
	if count < 1 {
		return nil, apperr.Validation("recurrence count must be at least 1")
	}
	if interval <= 0 {
		interval = DefaultRecurrenceInterval
	}

	in.IsRecurring = true
	created := make([]SlotWithAvailability, 0, count)
	for i := 0; i < count; i++ {
		occ := in
		shift := time.Duration(i) * interval
		occ.StartTime = in.StartTime.Add(shift)
		occ.EndTime = in.EndTime.Add(shift)

		sl, err := s.CreateSlot(ctx, occ)
		if err != nil {
			return created, fmt.Errorf("create occurrence %d: %w", i+1, err)
		}
		created = append(created, *sl)
	}
	return created, nil
}

func (s *Service) UpdateSlot(ctx context.Context, id uuid.UUID, in UpdateSlotInput) (*SlotWithAvailability, error) {
	current, err := s.GetSlot(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.empty() {
		return current, nil
	}

	ts := current.TimeSlot
	if in.StartTime != nil {
		ts.StartTime = *in.StartTime
	}
	if in.EndTime != nil {
		ts.EndTime = *in.EndTime
	}
	if in.Duration != nil {
		ts.Duration = *in.Duration
	}
	if in.Capacity != nil {
		ts.Capacity = *in.Capacity
	}
	if !ts.EndTime.After(ts.StartTime) {
		return nil, apperr.Validation("endTime must be after startTime")
	}
	if ts.Capacity < 1 {
		return nil, apperr.Validation("capacity must be at least 1")
	}

	if err := s.repo.Update(ctx, &ts); err != nil {
		return nil, fmt.Errorf("update slot: %w", err)
	}
	return s.GetSlot(ctx, id)
}

// BlockSlot toggles isAvailable. Capacity and bookings are untouched.
func (s *Service) BlockSlot(ctx context.Context, id uuid.UUID, blocked bool) (*SlotWithAvailability, error) {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	if err := s.repo.SetAvailability(ctx, id, !blocked); err != nil {
		return nil, fmt.Errorf("block slot: %w", err)
	}

	s.logger.Info().Str("slot_id", id.String()).Bool("blocked", blocked).Msg("time slot availability changed")

	return s.GetSlot(ctx, id)
}

// DeleteSlot removes a slot that no active appointment references. The
// repository checks and deletes atomically.
func (s *Service) DeleteSlot(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info().Str("slot_id", id.String()).Msg("time slot deleted")
	return nil
}

func newTimeSlot(in CreateSlotInput) (*TimeSlot, error) {
	switch {
	case in.ProviderID == uuid.Nil:
		return nil, apperr.Validation("providerId is required")
	case in.DepartmentID == uuid.Nil:
		return nil, apperr.Validation("departmentId is required")
	case in.LocationID == uuid.Nil:
		return nil, apperr.Validation("locationId is required")
	case in.StartTime.IsZero() || in.EndTime.IsZero():
		return nil, apperr.Validation("startTime and endTime are required")
	case !in.EndTime.After(in.StartTime):
		return nil, apperr.Validation("endTime must be after startTime")
	case in.Capacity < 0:
		return nil, apperr.Validation("capacity must be at least 1")
	}

	capacity := in.Capacity
	if capacity == 0 {
		capacity = 1
	}
	duration := in.Duration
	if duration <= 0 {
		duration = int(in.EndTime.Sub(in.StartTime) / time.Minute)
	}

	return &TimeSlot{
		ProviderID:       in.ProviderID,
		DepartmentID:     in.DepartmentID,
		LocationID:       in.LocationID,
		StartTime:        in.StartTime,
		EndTime:          in.EndTime,
		Duration:         duration,
		Capacity:         capacity,
		IsAvailable:      true,
		IsRecurring:      in.IsRecurring,
		RecurringPattern: in.RecurringPattern,
	}, nil
}

func boolPtr(b bool) *bool { return &b }
