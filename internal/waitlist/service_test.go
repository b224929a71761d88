package waitlist

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-access-scheduling/internal/apperr"
	"github.com/hackgods/clinic-access-scheduling/internal/slot"
)

var (
	startTime   = time.Date(2026, 11, 2, 9, 0, 0, 0, time.UTC)
	testPatient = uuid.MustParse("bbbbbbbb-0000-0000-0000-000000000001")
	testDept    = uuid.MustParse("bbbbbbbb-0000-0000-0000-000000000002")
	otherDept   = uuid.MustParse("bbbbbbbb-0000-0000-0000-000000000003")
	testProv    = uuid.MustParse("bbbbbbbb-0000-0000-0000-000000000004")
	otherProv   = uuid.MustParse("bbbbbbbb-0000-0000-0000-000000000005")
)

type testEnv struct {
	svc   *Service
	repo  *mockRepo
	slots *fakeSlots
	now   time.Time
}

func (e *testEnv) clock() time.Time { return e.now }

func (e *testEnv) advance(d time.Duration) { e.now = e.now.Add(d) }

func newTestEnv() *testEnv {
	env := &testEnv{now: startTime}
	env.repo = newMockRepo(env.clock)
	env.slots = &fakeSlots{clock: env.clock}
	env.svc = NewService(env.repo, env.slots, zerolog.Nop())
	env.svc.now = env.clock
	return env
}

func (e *testEnv) mustCreate(t *testing.T, in CreateInput) *EntryDetail {
	t.Helper()
	entry, err := e.svc.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("create entry: %v", err)
	}
	return entry
}

func entryInput(p Priority) CreateInput {
	return CreateInput{PatientID: testPatient, DepartmentID: testDept, Priority: p}
}

func candidate(start time.Time, capacity, booked int) slot.SlotWithAvailability {
	return slot.SlotWithAvailability{
		TimeSlot: slot.TimeSlot{
			ID:           uuid.New(),
			ProviderID:   testProv,
			DepartmentID: testDept,
			StartTime:    start,
			EndTime:      start.Add(30 * time.Minute),
			Capacity:     capacity,
			IsAvailable:  true,
		},
		BookedCount: booked,
	}
}

func TestPriorityRank(t *testing.T) {
	want := map[Priority]int{PriorityUrgent: 1, PriorityHigh: 2, PriorityMedium: 3, PriorityLow: 4}
	for p, rank := range want {
		if got := p.Rank(); got != rank {
			t.Errorf("%s: expected rank %d, got %d", p, rank, got)
		}
	}
	if Priority("whenever").Valid() {
		t.Error("expected unknown priority to be invalid")
	}
}

func TestCreate_Defaults(t *testing.T) {
	env := newTestEnv()

	entry := env.mustCreate(t, entryInput(PriorityMedium))

	if entry.Status != StatusActive {
		t.Errorf("expected active, got %s", entry.Status)
	}
	if !entry.RequestedDate.Equal(startTime) {
		t.Errorf("expected requestedDate now, got %s", entry.RequestedDate)
	}
	if !entry.ExpiresAt.Equal(startTime.Add(30 * 24 * time.Hour)) {
		t.Errorf("expected expiry in 30 days, got %s", entry.ExpiresAt)
	}
	if entry.PreferredDates == nil || entry.PreferredTimeOfDay == nil {
		t.Error("expected empty, non-nil preference lists")
	}
	if entry.NotificationsSent != 0 {
		t.Errorf("expected no notifications, got %d", entry.NotificationsSent)
	}
}

func TestCreate_Validation(t *testing.T) {
	env := newTestEnv()

	tests := map[string]CreateInput{
		"missing patient":    {DepartmentID: testDept, Priority: PriorityLow},
		"missing department": {PatientID: testPatient, Priority: PriorityLow},
		"missing priority":   {PatientID: testPatient, DepartmentID: testDept},
		"unknown priority":   {PatientID: testPatient, DepartmentID: testDept, Priority: "asap"},
		"bad date":           {PatientID: testPatient, DepartmentID: testDept, Priority: PriorityLow, PreferredDates: []string{"11/03/2026"}},
		"bad time of day":    {PatientID: testPatient, DepartmentID: testDept, Priority: PriorityLow, PreferredTimeOfDay: []string{"night"}},
	}

	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := env.svc.Create(context.Background(), in); !errors.Is(err, apperr.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestUpdate_OnlyAllowedFields(t *testing.T) {
	env := newTestEnv()
	entry := env.mustCreate(t, entryInput(PriorityLow))

	urgent := PriorityUrgent
	dates := []string{"2026-11-05"}
	updated, err := env.svc.Update(context.Background(), entry.ID, UpdateInput{
		Priority:       &urgent,
		PreferredDates: &dates,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if updated.Priority != PriorityUrgent {
		t.Errorf("expected priority urgent, got %s", updated.Priority)
	}
	if len(updated.PreferredDates) != 1 || updated.PreferredDates[0] != "2026-11-05" {
		t.Errorf("expected preferred dates to change, got %v", updated.PreferredDates)
	}
	if updated.Status != StatusActive || updated.PatientID != testPatient {
		t.Error("expected status and patient untouched")
	}
}

func TestUpdate_Validation(t *testing.T) {
	env := newTestEnv()
	entry := env.mustCreate(t, entryInput(PriorityLow))

	bad := Priority("someday")
	if _, err := env.svc.Update(context.Background(), entry.ID, UpdateInput{Priority: &bad}); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestMarkContacted_CountsNotifications(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	entry := env.mustCreate(t, entryInput(PriorityHigh))

	if _, err := env.svc.MarkContacted(ctx, entry.ID); err != nil {
		t.Fatalf("first contact: %v", err)
	}
	env.advance(time.Hour)
	contacted, err := env.svc.MarkContacted(ctx, entry.ID)
	if err != nil {
		t.Fatalf("second contact: %v", err)
	}

	if contacted.Status != StatusContacted {
		t.Errorf("expected contacted, got %s", contacted.Status)
	}
	if contacted.NotificationsSent != 2 {
		t.Errorf("expected 2 notifications, got %d", contacted.NotificationsSent)
	}
	if contacted.LastNotificationSent == nil || !contacted.LastNotificationSent.Equal(env.now) {
		t.Error("expected lastNotificationSent to be the latest contact")
	}
}

func TestConvertToAppointment(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	entry := env.mustCreate(t, entryInput(PriorityHigh))

	if _, err := env.svc.ConvertToAppointment(ctx, entry.ID, uuid.Nil); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error for nil appointment, got %v", err)
	}

	apptID := uuid.New()
	converted, err := env.svc.ConvertToAppointment(ctx, entry.ID, apptID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if converted.Status != StatusConverted {
		t.Errorf("expected converted, got %s", converted.Status)
	}
	if converted.ConvertedToAppointmentID == nil || *converted.ConvertedToAppointmentID != apptID {
		t.Error("expected appointment id to be recorded")
	}
}

func TestCancel(t *testing.T) {
	env := newTestEnv()
	entry := env.mustCreate(t, entryInput(PriorityLow))

	cancelled, err := env.svc.Cancel(context.Background(), entry.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cancelled.Status != StatusCancelled {
		t.Errorf("expected cancelled, got %s", cancelled.Status)
	}
}

func TestWritesOnMissingEntry(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	id := uuid.New()
	notes := "x"

	ops := map[string]func() error{
		"update":    func() error { _, err := env.svc.Update(ctx, id, UpdateInput{Notes: &notes}); return err },
		"cancel":    func() error { _, err := env.svc.Cancel(ctx, id); return err },
		"contacted": func() error { _, err := env.svc.MarkContacted(ctx, id); return err },
		"convert":   func() error { _, err := env.svc.ConvertToAppointment(ctx, id, uuid.New()); return err },
		"match":     func() error { _, err := env.svc.FindMatchingSlots(ctx, id, 5); return err },
		"get":       func() error { _, err := env.svc.GetByID(ctx, id); return err },
	}

	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			if err := op(); !errors.Is(err, ErrEntryNotFound) {
				t.Fatalf("expected ErrEntryNotFound, got %v", err)
			}
		})
	}
}

func TestList_PriorityThenRequestedDate(t *testing.T) {
	env := newTestEnv()

	lowOld := env.mustCreate(t, entryInput(PriorityLow))
	env.advance(time.Minute)
	highOld := env.mustCreate(t, entryInput(PriorityHigh))
	env.advance(time.Minute)
	urgent := env.mustCreate(t, entryInput(PriorityUrgent))
	env.advance(time.Minute)
	highNew := env.mustCreate(t, entryInput(PriorityHigh))

	entries, err := env.svc.List(context.Background(), ListFilter{DepartmentID: &testDept})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []uuid.UUID{urgent.ID, highOld.ID, highNew.ID, lowOld.ID}
	if len(entries) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(entries))
	}
	for i, id := range want {
		if entries[i].ID != id {
			t.Errorf("position %d: expected %s, got %s (%s)", i, id, entries[i].ID, entries[i].Priority)
		}
	}
}

func TestList_RejectsUnknownFilters(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	if _, err := env.svc.List(ctx, ListFilter{Statuses: []Status{"pending"}}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error for status, got %v", err)
	}
	p := Priority("soon")
	if _, err := env.svc.List(ctx, ListFilter{Priority: &p}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error for priority, got %v", err)
	}
}

func TestPatientEntries_OnlyPending(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	active := env.mustCreate(t, entryInput(PriorityLow))
	contacted := env.mustCreate(t, entryInput(PriorityMedium))
	if _, err := env.svc.MarkContacted(ctx, contacted.ID); err != nil {
		t.Fatalf("contact: %v", err)
	}
	cancelled := env.mustCreate(t, entryInput(PriorityUrgent))
	if _, err := env.svc.Cancel(ctx, cancelled.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	other := entryInput(PriorityUrgent)
	other.PatientID = uuid.New()
	env.mustCreate(t, other)

	entries, err := env.svc.PatientEntries(ctx, testPatient)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 || entries[0].ID != contacted.ID || entries[1].ID != active.ID {
		t.Errorf("expected [contacted active] in priority order, got %d entries", len(entries))
	}
}

func TestFindMatchingSlots(t *testing.T) {
	env := newTestEnv()

	past := candidate(startTime.Add(-time.Hour), 1, 0)
	full := candidate(startTime.Add(time.Hour), 2, 2)
	first := candidate(startTime.Add(2*time.Hour), 2, 1)
	otherProvider := candidate(startTime.Add(3*time.Hour), 1, 0)
	otherProvider.ProviderID = otherProv
	blocked := candidate(startTime.Add(4*time.Hour), 1, 0)
	blocked.IsAvailable = false
	wrongDept := candidate(startTime.Add(5*time.Hour), 1, 0)
	wrongDept.DepartmentID = otherDept
	later := candidate(startTime.Add(6*time.Hour), 1, 0)
	env.slots.slots = []slot.SlotWithAvailability{later, wrongDept, blocked, otherProvider, first, full, past}

	entry := env.mustCreate(t, entryInput(PriorityHigh))

	got, err := env.svc.FindMatchingSlots(context.Background(), entry.ID, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 || got[0].ID != first.ID || got[1].ID != otherProvider.ID || got[2].ID != later.ID {
		t.Fatalf("expected [first otherProvider later], got %d slots", len(got))
	}
	for _, s := range got {
		if !s.StartTime.After(startTime) || s.AvailableCapacity <= 0 {
			t.Errorf("unexpected candidate %s", s.ID)
		}
	}
	if env.slots.lastReq.DepartmentID != testDept || env.slots.lastReq.ProviderID != nil {
		t.Error("expected department-only filter")
	}

	withProvider := entryInput(PriorityHigh)
	withProvider.ProviderID = &testProv
	pinned := env.mustCreate(t, withProvider)

	got, err = env.svc.FindMatchingSlots(context.Background(), pinned.ID, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].ID != first.ID {
		t.Fatalf("expected only the first slot of the preferred provider, got %d", len(got))
	}
	if *env.slots.lastReq.ProviderID != testProv {
		t.Error("expected provider constraint to be passed")
	}
}

func TestFindMatchingSlots_IgnoresPreferences(t *testing.T) {
	env := newTestEnv()
	evening := candidate(time.Date(2026, 11, 3, 18, 0, 0, 0, time.UTC), 1, 0)
	env.slots.slots = []slot.SlotWithAvailability{evening}

	in := entryInput(PriorityHigh)
	in.PreferredDates = []string{"2026-11-10"}
	in.PreferredTimeOfDay = []string{"morning"}
	entry := env.mustCreate(t, in)

	got, err := env.svc.FindMatchingSlots(context.Background(), entry.ID, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("expected preferences to be ignored, got %d slots", len(got))
	}
}

func TestFindMatchingSlotsWithPreferences(t *testing.T) {
	env := newTestEnv()

	day := func(d, h int) time.Time { return time.Date(2026, 11, d, h, 0, 0, 0, time.UTC) }
	morning3 := candidate(day(3, 9), 1, 0)
	afternoon3 := candidate(day(3, 13), 1, 0)
	evening3 := candidate(day(3, 17), 1, 0)
	morning4 := candidate(day(4, 11), 1, 0)
	morning5 := candidate(day(5, 8), 1, 0)
	fullMorning3 := candidate(day(3, 10), 1, 1)
	env.slots.slots = []slot.SlotWithAvailability{morning3, afternoon3, evening3, morning4, morning5, fullMorning3}

	tests := map[string]struct {
		dates []string
		times []string
		limit int
		want  []uuid.UUID
	}{
		"no preferences":      {nil, nil, 10, []uuid.UUID{morning3.ID, afternoon3.ID, evening3.ID, morning4.ID, morning5.ID}},
		"dates only":          {[]string{"2026-11-03", "2026-11-05"}, nil, 10, []uuid.UUID{morning3.ID, afternoon3.ID, evening3.ID, morning5.ID}},
		"time of day only":    {nil, []string{"morning"}, 10, []uuid.UUID{morning3.ID, morning4.ID, morning5.ID}},
		"both":                {[]string{"2026-11-03"}, []string{"afternoon", "evening"}, 10, []uuid.UUID{afternoon3.ID, evening3.ID}},
		"limit after filter":  {nil, []string{"morning"}, 2, []uuid.UUID{morning3.ID, morning4.ID}},
		"nothing matches day": {[]string{"2026-12-25"}, nil, 10, nil},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			in := entryInput(PriorityMedium)
			in.PreferredDates = tt.dates
			in.PreferredTimeOfDay = tt.times
			entry := env.mustCreate(t, in)

			got, err := env.svc.FindMatchingSlotsWithPreferences(context.Background(), entry.ID, tt.limit)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d slots, got %d", len(tt.want), len(got))
			}
			for i, id := range tt.want {
				if got[i].ID != id {
					t.Errorf("position %d: unexpected slot %s", i, got[i].StartTime)
				}
			}
		})
	}
}

func TestTimeOfDayAt(t *testing.T) {
	tests := map[int]TimeOfDay{0: Morning, 11: Morning, 12: Afternoon, 16: Afternoon, 17: Evening, 23: Evening}
	for hour, want := range tests {
		at := time.Date(2026, 11, 3, hour, 30, 0, 0, time.UTC)
		if got := TimeOfDayAt(at); got != want {
			t.Errorf("%02d:30: expected %s, got %s", hour, want, got)
		}
	}
}

func TestStats(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	empty, err := env.svc.Stats(ctx, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if empty.Total != 0 || empty.AverageWaitDays != nil {
		t.Errorf("expected zero stats with nil average, got %+v", empty)
	}
	if n, ok := empty.ByStatus[StatusExpired]; !ok || n != 0 {
		t.Error("expected every status key to be present")
	}

	a := env.mustCreate(t, entryInput(PriorityUrgent))
	b := env.mustCreate(t, entryInput(PriorityHigh))
	env.mustCreate(t, entryInput(PriorityHigh))
	elsewhere := entryInput(PriorityLow)
	elsewhere.DepartmentID = otherDept
	env.mustCreate(t, elsewhere)

	env.advance(2 * 24 * time.Hour)
	if _, err := env.svc.ConvertToAppointment(ctx, a.ID, uuid.New()); err != nil {
		t.Fatalf("convert: %v", err)
	}
	env.advance(2 * 24 * time.Hour)
	if _, err := env.svc.ConvertToAppointment(ctx, b.ID, uuid.New()); err != nil {
		t.Fatalf("convert: %v", err)
	}

	all, err := env.svc.Stats(ctx, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if all.Total != 4 || all.ByPriority[PriorityLow] != 1 {
		t.Errorf("expected 4 entries including one low, got %+v", all)
	}

	dept, err := env.svc.Stats(ctx, &testDept)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dept.Total != 3 {
		t.Errorf("expected 3 entries in department, got %d", dept.Total)
	}
	if dept.ByStatus[StatusConverted] != 2 || dept.ByStatus[StatusActive] != 1 {
		t.Errorf("unexpected status counts %v", dept.ByStatus)
	}
	if dept.ByPriority[PriorityHigh] != 2 || dept.ByPriority[PriorityUrgent] != 1 || dept.ByPriority[PriorityLow] != 0 {
		t.Errorf("unexpected priority counts %v", dept.ByPriority)
	}
	if dept.AverageWaitDays == nil || math.Abs(*dept.AverageWaitDays-3) > 1e-9 {
		t.Errorf("expected average wait of 3 days, got %v", dept.AverageWaitDays)
	}
}

func TestExpireSweep(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	oldActive := env.mustCreate(t, entryInput(PriorityLow))
	oldContacted := env.mustCreate(t, entryInput(PriorityLow))
	if _, err := env.svc.MarkContacted(ctx, oldContacted.ID); err != nil {
		t.Fatalf("contact: %v", err)
	}
	oldConverted := env.mustCreate(t, entryInput(PriorityLow))
	if _, err := env.svc.ConvertToAppointment(ctx, oldConverted.ID, uuid.New()); err != nil {
		t.Fatalf("convert: %v", err)
	}
	oldCancelled := env.mustCreate(t, entryInput(PriorityLow))
	if _, err := env.svc.Cancel(ctx, oldCancelled.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	env.advance(20 * 24 * time.Hour)
	fresh := env.mustCreate(t, entryInput(PriorityLow))

	env.advance(11 * 24 * time.Hour)
	n, err := env.svc.ExpireSweep(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 expired, got %d", n)
	}

	want := map[uuid.UUID]Status{
		oldActive.ID:    StatusExpired,
		oldContacted.ID: StatusExpired,
		oldConverted.ID: StatusConverted,
		oldCancelled.ID: StatusCancelled,
		fresh.ID:        StatusActive,
	}
	for id, status := range want {
		got, _ := env.svc.GetByID(ctx, id)
		if got.Status != status {
			t.Errorf("entry %s: expected %s, got %s", id, status, got.Status)
		}
	}

	if n, _ := env.svc.ExpireSweep(ctx); n != 0 {
		t.Errorf("expected second sweep to change nothing, got %d", n)
	}
}

func TestList_EmptyNotNil(t *testing.T) {
	env := newTestEnv()

	entries, err := env.svc.List(context.Background(), ListFilter{DepartmentID: &otherDept})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if entries == nil {
		t.Fatal("List returned nil with no matching entries")
	}
}
