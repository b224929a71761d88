package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-access-scheduling/internal/apperr"
	redisclient "github.com/hackgods/clinic-access-scheduling/internal/redis"
)

const (
	EventAppointmentCreated     = "APPOINTMENT_CREATED"
	EventAppointmentUpdated     = "APPOINTMENT_UPDATED"
	EventAppointmentCancelled   = "APPOINTMENT_CANCELLED"
	EventAppointmentRescheduled = "APPOINTMENT_RESCHEDULED"
	EventAppointmentCheckedIn   = "APPOINTMENT_CHECKED_IN"
	EventAppointmentStarted     = "APPOINTMENT_STARTED"
	EventAppointmentCompleted   = "APPOINTMENT_COMPLETED"
	EventAppointmentNoShow      = "APPOINTMENT_NO_SHOW"
	EventNoShowRiskUpdated      = "APPOINTMENT_NO_SHOW_RISK_UPDATED"
)

const (
	DefaultPageSize      = 50
	MaxPageSize          = 200
	DefaultUpcomingLimit = 10
	DefaultHistoryLimit  = 20
)

var (
	ErrInvalidStatusTransition = apperr.New(apperr.ErrConflict, "invalid status transition")
	ErrSlotUnavailable         = apperr.New(apperr.ErrConflict, "time slot is not available for booking")
	ErrSlotBeingBooked         = apperr.New(apperr.ErrConflict, "slot is currently being booked, please retry")
	ErrCapacityExceeded        = apperr.New(apperr.ErrCapacityExceeded, "time slot has no remaining capacity")
)

type Service struct {
	repo    Repository
	slots   SlotReader
	locker  redisclient.Locker
	logger  zerolog.Logger
	now     func() time.Time
	newCode func() (string, error)
}

func NewService(repo Repository, slots SlotReader, locker redisclient.Locker, logger zerolog.Logger) *Service {
	return &Service{
		repo:    repo,
		slots:   slots,
		locker:  locker,
		logger:  logger.With().Str("component", "appointment").Logger(),
		now:     time.Now,
		newCode: NewConfirmationCode,
	}
}

func (in CreateInput) validate() error {
	switch {
	case in.PatientID == uuid.Nil:
		return apperr.Validation("patientId is required")
	case in.ProviderID == uuid.Nil:
		return apperr.Validation("providerId is required")
	case in.DepartmentID == uuid.Nil:
		return apperr.Validation("departmentId is required")
	case in.TimeSlotID == uuid.Nil:
		return apperr.Validation("timeSlotId is required")
	case in.LocationID == uuid.Nil:
		return apperr.Validation("locationId is required")
	case in.ScheduledStart.IsZero():
		return apperr.Validation("scheduledStart is required")
	case in.ScheduledEnd.IsZero():
		return apperr.Validation("scheduledEnd is required")
	case in.AppointmentType == "":
		return apperr.Validation("appointmentType is required")
	}
	return nil
}

// Create records a scheduled appointment against a slot. It does not consult
// the slot's remaining capacity; two concurrent callers that both saw a free
// seat can overbook it. Use Book for a checked reservation.
func (s *Service) Create(ctx context.Context, in CreateInput) (*AppointmentDetail, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	slotID := in.TimeSlotID
	a := &Appointment{
		ID:              uuid.New(),
		PatientID:       in.PatientID,
		ProviderID:      in.ProviderID,
		DepartmentID:    in.DepartmentID,
		TimeSlotID:      &slotID,
		LocationID:      in.LocationID,
		ScheduledStart:  in.ScheduledStart,
		ScheduledEnd:    in.ScheduledEnd,
		Status:          StatusScheduled,
		AppointmentType: in.AppointmentType,
		Reason:          in.Reason,
		Notes:           in.Notes,
	}

	for attempt := 1; ; attempt++ {
		code, err := s.newCode()
		if err != nil {
			return nil, err
		}
		a.ConfirmationCode = code

		err = s.repo.Create(ctx, a)
		if err == nil {
			break
		}
		if errors.Is(err, ErrDuplicateConfirmationCode) && attempt < maxCodeAttempts {
			s.logger.Warn().Str("code", code).Int("attempt", attempt).Msg("confirmation code collision, regenerating")
			continue
		}
		return nil, fmt.Errorf("create appointment: %w", err)
	}

	s.logEvent(ctx, a.ID, EventAppointmentCreated, map[string]any{
		"time_slot_id": slotID.String(),
		"patient_id":   in.PatientID.String(),
	})

	return s.repo.GetByID(ctx, a.ID)
}

// Book is Create guarded by a per-slot lock: inside the critical section the
// slot is re-read through the capacity ledger and the booking is refused when
// the slot is blocked or full.
func (s *Service) Book(ctx context.Context, in CreateInput) (*AppointmentDetail, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	var created *AppointmentDetail

	err := s.locker.WithSlotLock(ctx, in.TimeSlotID, func(lockCtx context.Context) error {
		sl, err := s.slots.GetSlot(lockCtx, in.TimeSlotID)
		if err != nil {
			return err
		}
		if !sl.IsAvailable {
			return ErrSlotUnavailable
		}
		if sl.Remaining() <= 0 {
			return ErrCapacityExceeded
		}

		created, err = s.Create(lockCtx, in)
		return err
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBeingBooked
		}
		return nil, err
	}

	return created, nil
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetByConfirmationCode(ctx context.Context, code string) (*AppointmentDetail, error) {
	if len(code) != ConfirmationCodeLength {
		return nil, ErrAppointmentNotFound
	}
	return s.repo.GetByConfirmationCode(ctx, code)
}

// mutate loads the appointment, lets fn change it and writes it back. guard
// may reject the change based on the current status.
func (s *Service) mutate(
	ctx context.Context,
	id uuid.UUID,
	eventType string,
	guard func(AppointmentStatus) error,
	fn func(a *Appointment, now time.Time) map[string]any,
) (*AppointmentDetail, error) {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if guard != nil {
		if err := guard(current.Status); err != nil {
			return nil, err
		}
	}

	a := current.Appointment
	payload := fn(&a, s.now())

	if err := s.repo.Update(ctx, &a); err != nil {
		return nil, fmt.Errorf("update appointment: %w", err)
	}

	s.logEvent(ctx, a.ID, eventType, payload)

	return s.repo.GetByID(ctx, id)
}

func notClosed(status AppointmentStatus) error {
	if status.Closed() {
		return ErrInvalidStatusTransition
	}
	return nil
}

// Update applies the non-nil fields of in. An empty update returns the
// appointment unchanged.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in UpdateInput) (*AppointmentDetail, error) {
	if in.empty() {
		return s.repo.GetByID(ctx, id)
	}

	return s.mutate(ctx, id, EventAppointmentUpdated, notClosed, func(a *Appointment, _ time.Time) map[string]any {
		if in.ScheduledStart != nil {
			a.ScheduledStart = *in.ScheduledStart
		}
		if in.ScheduledEnd != nil {
			a.ScheduledEnd = *in.ScheduledEnd
		}
		if in.Reason != nil {
			a.Reason = in.Reason
		}
		if in.Notes != nil {
			a.Notes = in.Notes
		}
		if in.ProviderNotes != nil {
			a.ProviderNotes = in.ProviderNotes
		}
		return map[string]any{}
	})
}

// Cancel frees the appointment's seat. Cancelling twice overwrites the
// cancellation time and reason.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, reason *string) (*AppointmentDetail, error) {
	guard := func(status AppointmentStatus) error {
		if status == StatusCompleted || status == StatusNoShow {
			return ErrInvalidStatusTransition
		}
		return nil
	}

	return s.mutate(ctx, id, EventAppointmentCancelled, guard, func(a *Appointment, now time.Time) map[string]any {
		a.Status = StatusCancelled
		a.CancelledAt = &now
		a.CancellationReason = reason
		payload := map[string]any{}
		if reason != nil {
			payload["reason"] = *reason
		}
		return payload
	})
}

type RescheduleInput struct {
	ScheduledStart time.Time  `json:"scheduledStart"`
	ScheduledEnd   time.Time  `json:"scheduledEnd"`
	TimeSlotID     *uuid.UUID `json:"timeSlotId,omitempty"`
}

// Reschedule moves the appointment to new times and, when given, a new slot.
// The destination slot's capacity is not checked.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, in RescheduleInput) (*AppointmentDetail, error) {
	if in.ScheduledStart.IsZero() || in.ScheduledEnd.IsZero() {
		return nil, apperr.Validation("scheduledStart and scheduledEnd are required")
	}

	return s.mutate(ctx, id, EventAppointmentRescheduled, notClosed, func(a *Appointment, _ time.Time) map[string]any {
		payload := map[string]any{
			"from_start": a.ScheduledStart,
			"to_start":   in.ScheduledStart,
		}
		a.ScheduledStart = in.ScheduledStart
		a.ScheduledEnd = in.ScheduledEnd
		if in.TimeSlotID != nil {
			slotID := *in.TimeSlotID
			a.TimeSlotID = &slotID
			payload["time_slot_id"] = slotID.String()
		}
		a.Status = StatusRescheduled
		return payload
	})
}

func (s *Service) CheckIn(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	return s.mutate(ctx, id, EventAppointmentCheckedIn, notClosed, func(a *Appointment, now time.Time) map[string]any {
		a.Status = StatusCheckedIn
		a.ActualStart = &now
		return map[string]any{}
	})
}

// Start keeps an earlier check-in time as the actual start.
func (s *Service) Start(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	return s.mutate(ctx, id, EventAppointmentStarted, notClosed, func(a *Appointment, now time.Time) map[string]any {
		a.Status = StatusInProgress
		if a.ActualStart == nil {
			a.ActualStart = &now
		}
		return map[string]any{}
	})
}

func (s *Service) Complete(ctx context.Context, id uuid.UUID, providerNotes *string) (*AppointmentDetail, error) {
	return s.mutate(ctx, id, EventAppointmentCompleted, notClosed, func(a *Appointment, now time.Time) map[string]any {
		a.Status = StatusCompleted
		a.ActualEnd = &now
		if providerNotes != nil {
			a.ProviderNotes = providerNotes
		}
		return map[string]any{}
	})
}

func (s *Service) MarkNoShow(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	return s.mutate(ctx, id, EventAppointmentNoShow, notClosed, func(a *Appointment, _ time.Time) map[string]any {
		a.Status = StatusNoShow
		return map[string]any{}
	})
}

// SetNoShowRisk stores a risk level produced by an external predictor.
func (s *Service) SetNoShowRisk(ctx context.Context, id uuid.UUID, risk NoShowRisk) (*AppointmentDetail, error) {
	if !risk.Valid() {
		return nil, apperr.Validation("noShowRisk must be one of low, medium, high")
	}

	return s.mutate(ctx, id, EventNoShowRiskUpdated, nil, func(a *Appointment, _ time.Time) map[string]any {
		a.NoShowRisk = &risk
		return map[string]any{"risk": string(risk)}
	})
}

// List returns one page of appointments, most recent scheduled start first.
func (s *Service) List(ctx context.Context, f ListFilter, page, pageSize int) (*Page, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	if f.Status != nil && !f.Status.Valid() {
		return nil, apperr.Validation(fmt.Sprintf("unknown status %q", *f.Status))
	}

	rows, total, err := s.repo.List(ctx, f, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	if rows == nil {
		rows = []AppointmentDetail{}
	}

	return &Page{
		Data: rows,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: (total + pageSize - 1) / pageSize,
		},
	}, nil
}

// Upcoming returns the patient's open appointments from now on, soonest first.
func (s *Service) Upcoming(ctx context.Context, patientID uuid.UUID, limit int) ([]AppointmentDetail, error) {
	if limit <= 0 {
		limit = DefaultUpcomingLimit
	}
	rows, err := s.repo.ListUpcoming(ctx, patientID, s.now(), limit)
	if err != nil {
		return nil, fmt.Errorf("list upcoming appointments: %w", err)
	}
	if rows == nil {
		rows = []AppointmentDetail{}
	}
	return rows, nil
}

// History returns all of the patient's appointments, latest first.
func (s *Service) History(ctx context.Context, patientID uuid.UUID, limit int) ([]AppointmentDetail, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	rows, err := s.repo.ListHistory(ctx, patientID, limit)
	if err != nil {
		return nil, fmt.Errorf("list appointment history: %w", err)
	}
	if rows == nil {
		rows = []AppointmentDetail{}
	}
	return rows, nil
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error().Err(err).Str("event", eventType).Msg("failed to marshal event payload")
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     s.now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.logger.Error().Err(err).
			Str("event", eventType).
			Str("appointment_id", appointmentID.String()).
			Msg("failed to insert event log")
	}
}
