package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-access-scheduling/internal/api"
	"github.com/hackgods/clinic-access-scheduling/internal/appointment"
	"github.com/hackgods/clinic-access-scheduling/internal/memstore"
	redisclient "github.com/hackgods/clinic-access-scheduling/internal/redis"
	"github.com/hackgods/clinic-access-scheduling/internal/slot"
	"github.com/hackgods/clinic-access-scheduling/internal/waitlist"
)

// inMemoryClinic is a throwaway API server backed by memstore, for running
// the race without Postgres or Redis.
type inMemoryClinic struct {
	baseURL  string
	patients []uuid.UUID
	slotID   uuid.UUID
	server   *http.Server
}

func startInMemory(ctx context.Context, cfg SimConfig, log zerolog.Logger) (*inMemoryClinic, error) {
	if cfg.Capacity < 1 {
		return nil, errors.New("--capacity must be at least 1")
	}

	store := memstore.New()
	dept, provider, location := uuid.New(), uuid.New(), uuid.New()
	store.AddDepartment(memstore.Department{ID: dept, Name: "Simulation", Code: "SIM"})
	store.AddProvider(memstore.Provider{
		ID: provider, FirstName: gofakeit.FirstName(), LastName: gofakeit.LastName(), Title: "MD", DepartmentID: dept,
	})
	store.AddLocation(memstore.Location{ID: location, Name: gofakeit.Street() + " Clinic"})

	clinic := &inMemoryClinic{}
	for i := 0; i < max(cfg.PatientLimit, 1); i++ {
		id := uuid.New()
		store.AddPatient(memstore.Patient{
			ID: id, FirstName: gofakeit.FirstName(), LastName: gofakeit.LastName(), Email: gofakeit.Email(),
		})
		clinic.patients = append(clinic.patients, id)
	}

	quiet := log.Level(zerolog.WarnLevel)
	slots := slot.NewService(store.Slots(), quiet)
	appts := appointment.NewService(store.Appointments(), slots, redisclient.NewLocalSlotLocker(), quiet)
	wl := waitlist.NewService(store.Waitlist(), slots, quiet)

	start := time.Now().UTC().Truncate(time.Hour).Add(24 * time.Hour)
	target, err := slots.CreateSlot(ctx, slot.CreateSlotInput{
		ProviderID:   provider,
		DepartmentID: dept,
		LocationID:   location,
		StartTime:    start,
		EndTime:      start.Add(30 * time.Minute),
		Capacity:     cfg.Capacity,
	})
	if err != nil {
		return nil, fmt.Errorf("create simulation slot: %w", err)
	}
	clinic.slotID = target.ID

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("listen: %w", err)
	}
	clinic.baseURL = "http://" + ln.Addr().String()
	clinic.server = &http.Server{
		Handler: api.NewRouter(api.RouterConfig{
			Slots:        slots,
			Appointments: appts,
			Waitlist:     wl,
			Logger:       quiet,
			Env:          "simulation",
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := clinic.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("in-memory server stopped")
		}
	}()

	log.Info().Str("url", clinic.baseURL).Msg("in-memory clinic listening")
	return clinic, nil
}

func (c *inMemoryClinic) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = c.server.Shutdown(ctx)
}
