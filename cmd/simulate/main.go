package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hackgods/clinic-access-scheduling/internal/appointment"
	"github.com/hackgods/clinic-access-scheduling/internal/config"
	"github.com/hackgods/clinic-access-scheduling/internal/db"
	"github.com/hackgods/clinic-access-scheduling/internal/logger"
	"github.com/hackgods/clinic-access-scheduling/internal/slot"
)

type SimConfig struct {
	APIBaseURL   string
	Requests     int
	Workers      int
	Unchecked    bool // POST /appointments instead of /appointments/book
	MaxRetries   int
	SlotID       uuid.UUID
	DepartmentID uuid.UUID
	PatientLimit int
	InMemory     bool // serve the API from memstore instead of hitting --api
	Capacity     int  // slot capacity in in-memory mode
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Rejected  int64 // capacity_exceeded or slot_unavailable
	Contended int64 // gave up after repeated slot_being_booked
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeRejected
	outcomeContended
	outcomeError
)

func (om *OperationMetrics) Record(latency time.Duration, o outcome) {
	atomic.AddInt64(&om.Total, 1)
	switch o {
	case outcomeSuccess:
		atomic.AddInt64(&om.Success, 1)
	case outcomeRejected:
		atomic.AddInt64(&om.Rejected, 1)
	case outcomeContended:
		atomic.AddInt64(&om.Contended, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, p50, p95, max time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	n := len(latencies)
	return sum / time.Duration(n), latencies[n*50/100], latencies[min(n*95/100, n-1)], latencies[n-1]
}

type Simulator struct {
	config   SimConfig
	client   *http.Client
	log      zerolog.Logger
	patients []uuid.UUID
	target   *slot.SlotWithAvailability
	metrics  OperationMetrics
}

func main() {
	var cfg SimConfig
	var slotID, deptID string

	cmd := &cobra.Command{
		Use:          "simulate",
		Short:        "Race concurrent bookings against one slot and report how capacity held",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if cfg.SlotID, err = optionalUUID(slotID); err != nil {
				return fmt.Errorf("--slot: %w", err)
			}
			if cfg.DepartmentID, err = optionalUUID(deptID); err != nil {
				return fmt.Errorf("--department: %w", err)
			}
			return run(cmd.Context(), cfg)
		},
	}
	f := cmd.Flags()
	f.StringVar(&cfg.APIBaseURL, "api", "http://localhost:8080", "API base URL")
	f.IntVar(&cfg.Requests, "requests", 50, "booking requests to fire")
	f.IntVar(&cfg.Workers, "workers", 20, "concurrent workers")
	f.BoolVar(&cfg.Unchecked, "unchecked", false, "use the unchecked create endpoint instead of book")
	f.IntVar(&cfg.MaxRetries, "retries", 20, "retries per request while the slot lock is held")
	f.StringVar(&slotID, "slot", "", "slot to target (default: next available in --department)")
	f.StringVar(&deptID, "department", "", "department used to pick a slot (default: first in the database)")
	f.IntVar(&cfg.PatientLimit, "patients", 200, "patients to draw bookings from")
	f.BoolVar(&cfg.InMemory, "in-memory", false, "run against an in-process API over an in-memory store")
	f.IntVar(&cfg.Capacity, "capacity", 3, "slot capacity in --in-memory mode")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func optionalUUID(raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, nil
	}
	return uuid.Parse(raw)
}

func run(ctx context.Context, cfg SimConfig) error {
	if cfg.Requests <= 0 || cfg.Workers <= 0 {
		return errors.New("--requests and --workers must be > 0")
	}

	sim := &Simulator{
		config: cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}

	loadCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if cfg.InMemory {
		sim.log = logger.New("dev", "info")
		clinic, err := startInMemory(loadCtx, cfg, sim.log)
		if err != nil {
			return err
		}
		defer clinic.Close()

		sim.config.APIBaseURL = clinic.baseURL
		sim.patients = clinic.patients
		if sim.target, err = sim.fetchSlot(loadCtx, "/slots/"+clinic.slotID.String()); err != nil {
			return err
		}
	} else {
		base, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		sim.log = logger.New(base.Env, base.LogLevel)

		pool, err := db.ConnectPostgres(loadCtx, base.PostgresDSN, db.PoolOptions{MaxConns: 2, MinConns: 1})
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := sim.loadData(loadCtx, pool); err != nil {
			return err
		}
	}
	sim.log.Info().
		Str("slot_id", sim.target.ID.String()).
		Int("capacity", sim.target.Capacity).
		Int("booked", sim.target.BookedCount).
		Int("requests", cfg.Requests).
		Int("workers", cfg.Workers).
		Bool("unchecked", cfg.Unchecked).
		Msg("simulation starting")

	sim.Run(ctx)
	return sim.PrintReport(ctx)
}

func (s *Simulator) loadData(ctx context.Context, pool *pgxpool.Pool) error {
	rows, err := pool.Query(ctx, `SELECT id FROM patients LIMIT $1`, s.config.PatientLimit)
	if err != nil {
		return fmt.Errorf("load patients: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return err
		}
		s.patients = append(s.patients, id)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if len(s.patients) == 0 {
		return errors.New("no patients loaded, run seed first")
	}

	if s.config.SlotID != uuid.Nil {
		s.target, err = s.fetchSlot(ctx, "/slots/"+s.config.SlotID.String())
		return err
	}

	dept := s.config.DepartmentID
	if dept == uuid.Nil {
		if err := pool.QueryRow(ctx, `SELECT id FROM departments ORDER BY code LIMIT 1`).Scan(&dept); err != nil {
			return fmt.Errorf("pick department: %w", err)
		}
	}
	s.target, err = s.fetchSlot(ctx, "/slots/next-available?departmentId="+url.QueryEscape(dept.String()))
	if err == nil && s.target == nil {
		err = fmt.Errorf("department %s has no available slot", dept)
	}
	return err
}

func (s *Simulator) fetchSlot(ctx context.Context, path string) (*slot.SlotWithAvailability, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.config.APIBaseURL+path, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("GET %s: %s: %s", path, resp.Status, strings.TrimSpace(string(body)))
	}
	var sl *slot.SlotWithAvailability
	if err := json.NewDecoder(resp.Body).Decode(&sl); err != nil {
		return nil, fmt.Errorf("decode slot: %w", err)
	}
	return sl, nil
}

func (s *Simulator) Run(ctx context.Context) {
	jobs := make(chan int)
	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := range jobs {
				s.doBooking(ctx, s.patients[n%len(s.patients)])
			}
		}()
	}

	for i := 0; i < s.config.Requests; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	s.log.Info().Msg("simulation complete")
}

func (s *Simulator) doBooking(ctx context.Context, patientID uuid.UUID) {
	path := "/appointments/book"
	if s.config.Unchecked {
		path = "/appointments"
	}

	body, _ := json.Marshal(appointment.CreateInput{
		PatientID:       patientID,
		ProviderID:      s.target.ProviderID,
		DepartmentID:    s.target.DepartmentID,
		TimeSlotID:      s.target.ID,
		LocationID:      s.target.LocationID,
		ScheduledStart:  s.target.StartTime,
		ScheduledEnd:    s.target.EndTime,
		AppointmentType: "simulation",
	})

	start := time.Now()
	for attempt := 0; ; attempt++ {
		status, code, err := s.post(ctx, path, body)
		switch {
		case err != nil:
			s.log.Debug().Err(err).Msg("booking request failed")
			s.metrics.Record(time.Since(start), outcomeError)
			return
		case status == http.StatusCreated:
			s.metrics.Record(time.Since(start), outcomeSuccess)
			return
		case code == "slot_being_booked" && attempt < s.config.MaxRetries:
			time.Sleep(time.Duration(5+attempt*5) * time.Millisecond)
			continue
		case code == "slot_being_booked":
			s.metrics.Record(time.Since(start), outcomeContended)
			return
		case code == "capacity_exceeded" || code == "slot_unavailable":
			s.metrics.Record(time.Since(start), outcomeRejected)
			return
		default:
			s.log.Debug().Int("status", status).Str("code", code).Msg("unexpected booking response")
			s.metrics.Record(time.Since(start), outcomeError)
			return
		}
	}
}

func (s *Simulator) post(ctx context.Context, path string, body []byte) (int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIBaseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	var e struct {
		Error string `json:"error"`
	}
	if resp.StatusCode >= 400 {
		_ = json.NewDecoder(resp.Body).Decode(&e)
	} else {
		_, _ = io.Copy(io.Discard, resp.Body)
	}
	return resp.StatusCode, e.Error, nil
}

func (s *Simulator) PrintReport(ctx context.Context) error {
	after, err := s.fetchSlot(ctx, "/slots/"+s.target.ID.String())
	if err != nil {
		return fmt.Errorf("reload slot: %w", err)
	}

	m := &s.metrics
	avg, p50, p95, max := m.Stats()
	endpoint := "book"
	if s.config.Unchecked {
		endpoint = "create (unchecked)"
	}

	fmt.Println("\n" + strings.Repeat("=", 60))
	fmt.Println("BOOKING RACE REPORT")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("Slot:       %s\n", s.target.ID)
	fmt.Printf("Endpoint:   %s\n", endpoint)
	fmt.Printf("Requests:   %d across %d workers\n", atomic.LoadInt64(&m.Total), s.config.Workers)
	fmt.Printf("Succeeded:  %d\n", atomic.LoadInt64(&m.Success))
	fmt.Printf("Rejected:   %d\n", atomic.LoadInt64(&m.Rejected))
	fmt.Printf("Contended:  %d\n", atomic.LoadInt64(&m.Contended))
	fmt.Printf("Errors:     %d\n", atomic.LoadInt64(&m.Error))
	fmt.Printf("Latency:    avg=%s p50=%s p95=%s max=%s\n",
		avg.Round(time.Millisecond), p50.Round(time.Millisecond),
		p95.Round(time.Millisecond), max.Round(time.Millisecond))
	fmt.Println()
	fmt.Printf("Capacity:   %d\n", after.Capacity)
	fmt.Printf("Booked:     %d (was %d)\n", after.BookedCount, s.target.BookedCount)

	if after.BookedCount > after.Capacity {
		fmt.Printf("Result:     OVERBOOKED by %d\n", after.BookedCount-after.Capacity)
	} else {
		fmt.Println("Result:     capacity held")
	}
	return nil
}
