package waitlist

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-access-scheduling/internal/apperr"
	"github.com/hackgods/clinic-access-scheduling/internal/slot"
)

const DefaultMatchLimit = 10

type Service struct {
	repo   Repository
	slots  SlotSearcher
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(repo Repository, slots SlotSearcher, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		slots:  slots,
		logger: logger.With().Str("component", "waitlist").Logger(),
		now:    time.Now,
	}
}

func validatePreferences(dates, times []string) error {
	for _, d := range dates {
		if _, err := time.Parse(time.DateOnly, d); err != nil {
			return apperr.Validation(fmt.Sprintf("preferredDates entry %q is not YYYY-MM-DD", d))
		}
	}
	for _, t := range times {
		switch TimeOfDay(t) {
		case Morning, Afternoon, Evening:
		default:
			return apperr.Validation(fmt.Sprintf("preferredTimeOfDay entry %q must be morning, afternoon or evening", t))
		}
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*EntryDetail, error) {
	switch {
	case in.PatientID == uuid.Nil:
		return nil, apperr.Validation("patientId is required")
	case in.DepartmentID == uuid.Nil:
		return nil, apperr.Validation("departmentId is required")
	case in.Priority == "":
		return nil, apperr.Validation("priority is required")
	case !in.Priority.Valid():
		return nil, apperr.Validation(fmt.Sprintf("unknown priority %q", in.Priority))
	}
	if err := validatePreferences(in.PreferredDates, in.PreferredTimeOfDay); err != nil {
		return nil, err
	}

	now := s.now()
	e := &Entry{
		ID:                 uuid.New(),
		PatientID:          in.PatientID,
		DepartmentID:       in.DepartmentID,
		ProviderID:         in.ProviderID,
		PreferredDates:     nonNil(in.PreferredDates),
		PreferredTimeOfDay: nonNil(in.PreferredTimeOfDay),
		Priority:           in.Priority,
		MedicalUrgency:     in.MedicalUrgency,
		Status:             StatusActive,
		RequestedDate:      now,
		ExpiresAt:          now.Add(EntryLifetime),
		Notes:              in.Notes,
	}

	if err := s.repo.Create(ctx, e); err != nil {
		return nil, fmt.Errorf("create waitlist entry: %w", err)
	}

	s.logger.Info().
		Str("entry_id", e.ID.String()).
		Str("priority", string(e.Priority)).
		Msg("waitlist entry created")

	return s.repo.GetByID(ctx, e.ID)
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*EntryDetail, error) {
	return s.repo.GetByID(ctx, id)
}

// mutate loads the entry, applies fn and writes it back.
func (s *Service) mutate(ctx context.Context, id uuid.UUID, fn func(e *Entry, now time.Time)) (*EntryDetail, error) {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	e := current.Entry
	fn(&e, s.now())

	if err := s.repo.Update(ctx, &e); err != nil {
		return nil, fmt.Errorf("update waitlist entry: %w", err)
	}

	return s.repo.GetByID(ctx, id)
}

// Update changes preferences, priority, urgency and notes only.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in UpdateInput) (*EntryDetail, error) {
	if in.Priority != nil && !in.Priority.Valid() {
		return nil, apperr.Validation(fmt.Sprintf("unknown priority %q", *in.Priority))
	}
	var dates, times []string
	if in.PreferredDates != nil {
		dates = *in.PreferredDates
	}
	if in.PreferredTimeOfDay != nil {
		times = *in.PreferredTimeOfDay
	}
	if err := validatePreferences(dates, times); err != nil {
		return nil, err
	}
	if in.empty() {
		return s.repo.GetByID(ctx, id)
	}

	return s.mutate(ctx, id, func(e *Entry, _ time.Time) {
		if in.PreferredDates != nil {
			e.PreferredDates = nonNil(*in.PreferredDates)
		}
		if in.PreferredTimeOfDay != nil {
			e.PreferredTimeOfDay = nonNil(*in.PreferredTimeOfDay)
		}
		if in.Priority != nil {
			e.Priority = *in.Priority
		}
		if in.MedicalUrgency != nil {
			e.MedicalUrgency = in.MedicalUrgency
		}
		if in.Notes != nil {
			e.Notes = in.Notes
		}
	})
}

func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*EntryDetail, error) {
	return s.mutate(ctx, id, func(e *Entry, _ time.Time) {
		e.Status = StatusCancelled
	})
}

// MarkContacted records one more notification sent to the patient.
func (s *Service) MarkContacted(ctx context.Context, id uuid.UUID) (*EntryDetail, error) {
	return s.mutate(ctx, id, func(e *Entry, now time.Time) {
		e.Status = StatusContacted
		e.LastNotificationSent = &now
		e.NotificationsSent++
	})
}

// ConvertToAppointment links the entry to an appointment the caller has
// already created.
func (s *Service) ConvertToAppointment(ctx context.Context, id, appointmentID uuid.UUID) (*EntryDetail, error) {
	if appointmentID == uuid.Nil {
		return nil, apperr.Validation("appointmentId is required")
	}

	entry, err := s.mutate(ctx, id, func(e *Entry, _ time.Time) {
		e.Status = StatusConverted
		e.ConvertedToAppointmentID = &appointmentID
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("entry_id", id.String()).
		Str("appointment_id", appointmentID.String()).
		Msg("waitlist entry converted")

	return entry, nil
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]EntryDetail, error) {
	for _, st := range f.Statuses {
		if !st.Valid() {
			return nil, apperr.Validation(fmt.Sprintf("unknown status %q", st))
		}
	}
	if f.Priority != nil && !f.Priority.Valid() {
		return nil, apperr.Validation(fmt.Sprintf("unknown priority %q", *f.Priority))
	}

	entries, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list waitlist entries: %w", err)
	}
	if entries == nil {
		entries = []EntryDetail{}
	}
	return entries, nil
}

// PatientEntries returns the patient's entries that are still pending.
func (s *Service) PatientEntries(ctx context.Context, patientID uuid.UUID) ([]EntryDetail, error) {
	return s.List(ctx, ListFilter{
		PatientID: &patientID,
		Statuses:  []Status{StatusActive, StatusContacted},
	})
}

func (s *Service) matchFilter(ctx context.Context, entryID uuid.UUID) (*EntryDetail, slot.UpcomingFilter, error) {
	entry, err := s.repo.GetByID(ctx, entryID)
	if err != nil {
		return nil, slot.UpcomingFilter{}, err
	}
	return entry, slot.UpcomingFilter{DepartmentID: entry.DepartmentID, ProviderID: entry.ProviderID}, nil
}

// FindMatchingSlots offers the earliest future slots with a free seat in the
// entry's department, restricted to its provider when one is set. Stored
// date and time-of-day preferences are not consulted.
func (s *Service) FindMatchingSlots(ctx context.Context, entryID uuid.UUID, limit int) ([]slot.SlotWithAvailability, error) {
	if limit <= 0 {
		limit = DefaultMatchLimit
	}
	_, f, err := s.matchFilter(ctx, entryID)
	if err != nil {
		return nil, err
	}
	return s.slots.Upcoming(ctx, f, limit)
}

// FindMatchingSlotsWithPreferences is FindMatchingSlots further narrowed to
// the entry's preferred dates and times of day. An empty preference list
// does not narrow.
func (s *Service) FindMatchingSlotsWithPreferences(ctx context.Context, entryID uuid.UUID, limit int) ([]slot.SlotWithAvailability, error) {
	if limit <= 0 {
		limit = DefaultMatchLimit
	}
	entry, f, err := s.matchFilter(ctx, entryID)
	if err != nil {
		return nil, err
	}

	candidates, err := s.slots.Upcoming(ctx, f, 0)
	if err != nil {
		return nil, err
	}

	dates := toSet(entry.PreferredDates)
	times := toSet(entry.PreferredTimeOfDay)

	matched := make([]slot.SlotWithAvailability, 0, limit)
	for _, c := range candidates {
		if len(dates) > 0 && !dates[c.StartTime.UTC().Format(time.DateOnly)] {
			continue
		}
		if len(times) > 0 && !times[string(TimeOfDayAt(c.StartTime))] {
			continue
		}
		matched = append(matched, c)
		if len(matched) == limit {
			break
		}
	}
	return matched, nil
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}

// Stats summarises the waitlist, optionally for one department. Every known
// status and priority is present in the result, zero when unused.
func (s *Service) Stats(ctx context.Context, departmentID *uuid.UUID) (*Stats, error) {
	groups, err := s.repo.CountByStatusAndPriority(ctx, departmentID)
	if err != nil {
		return nil, fmt.Errorf("waitlist stats: %w", err)
	}
	avg, err := s.repo.AverageConvertedWaitDays(ctx, departmentID)
	if err != nil {
		return nil, fmt.Errorf("waitlist stats: %w", err)
	}

	stats := &Stats{
		ByStatus:        make(map[Status]int, len(Statuses)),
		ByPriority:      make(map[Priority]int, len(Priorities)),
		AverageWaitDays: avg,
	}
	for _, st := range Statuses {
		stats.ByStatus[st] = 0
	}
	for _, p := range Priorities {
		stats.ByPriority[p] = 0
	}
	for _, g := range groups {
		stats.Total += g.Count
		stats.ByStatus[g.Status] += g.Count
		stats.ByPriority[g.Priority] += g.Count
	}
	return stats, nil
}

// ExpireSweep retires every pending entry whose expiry has passed and
// returns how many were changed.
func (s *Service) ExpireSweep(ctx context.Context) (int, error) {
	n, err := s.repo.ExpireBefore(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info().Int("expired", n).Msg("waitlist entries expired")
	}
	return n, nil
}
