package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hackgods/clinic-access-scheduling/internal/config"
	"github.com/hackgods/clinic-access-scheduling/internal/db"
	"github.com/hackgods/clinic-access-scheduling/internal/logger"
	"github.com/hackgods/clinic-access-scheduling/internal/slot"
	"github.com/hackgods/clinic-access-scheduling/internal/waitlist"
)

type seedOptions struct {
	patients         int
	providersPerDept int
	days             int
	slotsPerDay      int
	slotMinutes      int
	maxCapacity      int
	waitlistEntries  int
}

var departments = []struct{ name, code string }{
	{"Cardiology", "CARD"},
	{"Dermatology", "DERM"},
	{"General Practice", "GP"},
	{"Orthopedics", "ORTH"},
	{"Neurology", "NEUR"},
	{"Pediatrics", "PEDS"},
}

var titles = []string{"MD", "DO", "NP", "PA"}

type refData struct {
	departments []uuid.UUID
	providers   map[uuid.UUID][]uuid.UUID // department -> providers
	locations   []uuid.UUID
	patients    []uuid.UUID
}

func main() {
	var opts seedOptions

	cmd := &cobra.Command{
		Use:          "seed",
		Short:        "Fill the database with fake clinic data",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(opts)
		},
	}
	f := cmd.Flags()
	f.IntVar(&opts.patients, "patients", 500, "patients to create")
	f.IntVar(&opts.providersPerDept, "providers-per-dept", 3, "providers in each department")
	f.IntVar(&opts.days, "days", 14, "days of slots to generate, starting tomorrow")
	f.IntVar(&opts.slotsPerDay, "slots-per-day", 8, "slots per provider per day")
	f.IntVar(&opts.slotMinutes, "slot-minutes", 30, "slot length in minutes")
	f.IntVar(&opts.maxCapacity, "max-capacity", 2, "largest random slot capacity")
	f.IntVar(&opts.waitlistEntries, "waitlist", 50, "waitlist entries to create")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(opts seedOptions) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg.Env, cfg.LogLevel)
	log.Info().Msg("seed starting")

	ctx := context.Background()
	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	pool, err := db.ConnectPostgres(connCtx, cfg.PostgresDSN, db.PoolOptions{MaxConns: cfg.DBMaxConns, MinConns: cfg.DBMinConns})
	cancel()
	if err != nil {
		return err
	}
	defer pool.Close()

	_ = gofakeit.Seed(0)

	ref, err := seedReferenceData(ctx, pool, opts, log)
	if err != nil {
		return fmt.Errorf("seed reference data: %w", err)
	}

	slots := slot.NewService(slot.NewPgRepository(pool), zerolog.Nop())
	if err := seedSlots(ctx, slots, ref, opts, log); err != nil {
		return fmt.Errorf("seed slots: %w", err)
	}

	wl := waitlist.NewService(waitlist.NewPgRepository(pool), slots, zerolog.Nop())
	if err := seedWaitlist(ctx, wl, ref, opts, log); err != nil {
		return fmt.Errorf("seed waitlist: %w", err)
	}

	log.Info().Msg("seed complete")
	return nil
}

func seedReferenceData(ctx context.Context, pool *pgxpool.Pool, opts seedOptions, log zerolog.Logger) (*refData, error) {
	ref := &refData{providers: make(map[uuid.UUID][]uuid.UUID)}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	for _, d := range departments {
		var id uuid.UUID
		err := tx.QueryRow(ctx, `
			INSERT INTO departments (id, name, code)
			VALUES ($1, $2, $3)
			ON CONFLICT (code) DO UPDATE SET name = EXCLUDED.name
			RETURNING id
		`, uuid.New(), d.name, d.code).Scan(&id)
		if err != nil {
			return nil, fmt.Errorf("department %s: %w", d.code, err)
		}
		ref.departments = append(ref.departments, id)

		for i := 0; i < opts.providersPerDept; i++ {
			pid := uuid.New()
			_, err := tx.Exec(ctx, `
				INSERT INTO providers (id, first_name, last_name, title, department_id)
				VALUES ($1, $2, $3, $4, $5)
			`, pid, gofakeit.FirstName(), gofakeit.LastName(), gofakeit.RandomString(titles), id)
			if err != nil {
				return nil, fmt.Errorf("provider: %w", err)
			}
			ref.providers[id] = append(ref.providers[id], pid)
		}
	}

	for i := 0; i < 3; i++ {
		id := uuid.New()
		_, err := tx.Exec(ctx, `
			INSERT INTO locations (id, name, building, floor, room)
			VALUES ($1, $2, $3, $4, $5)
		`, id, gofakeit.Street()+" Clinic", fmt.Sprintf("Building %c", 'A'+i),
			fmt.Sprint(gofakeit.Number(1, 5)), fmt.Sprint(gofakeit.Number(100, 599)))
		if err != nil {
			return nil, fmt.Errorf("location: %w", err)
		}
		ref.locations = append(ref.locations, id)
	}

	const batchSize = 500
	for offset := 0; offset < opts.patients; offset += batchSize {
		end := min(offset+batchSize, opts.patients)
		for i := offset; i < end; i++ {
			id := uuid.New()
			dob := gofakeit.DateRange(time.Now().AddDate(-90, 0, 0), time.Now().AddDate(-1, 0, 0))
			_, err := tx.Exec(ctx, `
				INSERT INTO patients (id, first_name, last_name, email, phone, date_of_birth)
				VALUES ($1, $2, $3, $4, $5, $6)
			`, id, gofakeit.FirstName(), gofakeit.LastName(), gofakeit.Email(), gofakeit.Phone(), dob)
			if err != nil {
				return nil, fmt.Errorf("patient: %w", err)
			}
			ref.patients = append(ref.patients, id)
		}
		log.Info().Int("done", end).Int("total", opts.patients).Msg("patients seeded")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Info().
		Int("departments", len(ref.departments)).
		Int("locations", len(ref.locations)).
		Msg("reference data seeded")
	return ref, nil
}

// seedSlots lays out each provider's day from 09:00 UTC in back-to-back slots.
func seedSlots(ctx context.Context, svc *slot.Service, ref *refData, opts seedOptions, log zerolog.Logger) error {
	length := time.Duration(opts.slotMinutes) * time.Minute
	day0 := time.Now().UTC().Truncate(24 * time.Hour).Add(24 * time.Hour)

	created := 0
	for _, dept := range ref.departments {
		for _, provider := range ref.providers[dept] {
			location := ref.locations[gofakeit.Number(0, len(ref.locations)-1)]
			for d := 0; d < opts.days; d++ {
				open := day0.AddDate(0, 0, d).Add(9 * time.Hour)
				for i := 0; i < opts.slotsPerDay; i++ {
					start := open.Add(time.Duration(i) * length)
					_, err := svc.CreateSlot(ctx, slot.CreateSlotInput{
						ProviderID:   provider,
						DepartmentID: dept,
						LocationID:   location,
						StartTime:    start,
						EndTime:      start.Add(length),
						Capacity:     gofakeit.Number(1, max(opts.maxCapacity, 1)),
					})
					if err != nil {
						return err
					}
					created++
				}
			}
		}
	}

	log.Info().Int("slots", created).Msg("slots seeded")
	return nil
}

func seedWaitlist(ctx context.Context, svc *waitlist.Service, ref *refData, opts seedOptions, log zerolog.Logger) error {
	if len(ref.patients) == 0 {
		return nil
	}

	times := []string{string(waitlist.Morning), string(waitlist.Afternoon), string(waitlist.Evening)}
	for i := 0; i < opts.waitlistEntries; i++ {
		dept := ref.departments[gofakeit.Number(0, len(ref.departments)-1)]
		in := waitlist.CreateInput{
			PatientID:    ref.patients[gofakeit.Number(0, len(ref.patients)-1)],
			DepartmentID: dept,
			Priority:     waitlist.Priorities[gofakeit.Number(0, len(waitlist.Priorities)-1)],
		}
		if providers := ref.providers[dept]; len(providers) > 0 && gofakeit.Bool() {
			p := providers[gofakeit.Number(0, len(providers)-1)]
			in.ProviderID = &p
		}
		if gofakeit.Bool() {
			in.PreferredTimeOfDay = []string{gofakeit.RandomString(times)}
		}

		if _, err := svc.Create(ctx, in); err != nil {
			return err
		}
	}

	log.Info().Int("entries", opts.waitlistEntries).Msg("waitlist seeded")
	return nil
}
