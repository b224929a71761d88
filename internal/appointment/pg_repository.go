package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hackgods/clinic-access-scheduling/internal/apperr"
	"github.com/hackgods/clinic-access-scheduling/internal/db"
)

const confirmationCodeConstraint = "appointments_confirmation_code_key"

type PgRepository struct {
	db db.DBTX
}

func NewPgRepository(conn db.DBTX) *PgRepository {
	return &PgRepository{db: conn}
}

const detailSelect = `
	SELECT a.id, a.confirmation_code, a.patient_id, a.provider_id, a.department_id,
	       a.time_slot_id, a.location_id, a.scheduled_start, a.scheduled_end,
	       a.actual_start, a.actual_end, a.status, a.appointment_type,
	       a.reason, a.notes, a.provider_notes, a.no_show_risk,
	       a.cancelled_at, a.cancellation_reason, a.created_at, a.updated_at,
	       COALESCE(pt.first_name, ''), COALESCE(pt.last_name, ''),
	       COALESCE(pt.phone, ''), COALESCE(pt.email, ''),
	       COALESCE(pr.first_name, ''), COALESCE(pr.last_name, ''), COALESCE(pr.title, ''),
	       COALESCE(d.name, ''), COALESCE(d.code, ''),
	       COALESCE(l.name, ''), COALESCE(l.building, ''), COALESCE(l.floor, ''), COALESCE(l.room, '')
	FROM appointments a
	LEFT JOIN patients pt ON pt.id = a.patient_id
	LEFT JOIN providers pr ON pr.id = a.provider_id
	LEFT JOIN departments d ON d.id = a.department_id
	LEFT JOIN locations l ON l.id = a.location_id`

// Helpers

func scanDetail(row pgx.Row) (*AppointmentDetail, error) {
	var d AppointmentDetail

	err := row.Scan(
		&d.ID,
		&d.ConfirmationCode,
		&d.PatientID,
		&d.ProviderID,
		&d.DepartmentID,
		&d.TimeSlotID,
		&d.LocationID,
		&d.ScheduledStart,
		&d.ScheduledEnd,
		&d.ActualStart,
		&d.ActualEnd,
		&d.Status,
		&d.AppointmentType,
		&d.Reason,
		&d.Notes,
		&d.ProviderNotes,
		&d.NoShowRisk,
		&d.CancelledAt,
		&d.CancellationReason,
		&d.CreatedAt,
		&d.UpdatedAt,
		&d.PatientFirstName,
		&d.PatientLastName,
		&d.PatientPhone,
		&d.PatientEmail,
		&d.ProviderFirstName,
		&d.ProviderLastName,
		&d.ProviderTitle,
		&d.DepartmentName,
		&d.DepartmentCode,
		&d.LocationName,
		&d.LocationBuilding,
		&d.LocationFloor,
		&d.LocationRoom,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	return &d, nil
}

func collectDetails(rows pgx.Rows) ([]AppointmentDetail, error) {
	defer rows.Close()

	result := []AppointmentDetail{}
	for rows.Next() {
		d, err := scanDetail(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// Interface methods

func (r *PgRepository) Create(ctx context.Context, a *Appointment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}

	err := r.db.QueryRow(ctx, `
		INSERT INTO appointments (
			id, confirmation_code, patient_id, provider_id, department_id,
			time_slot_id, location_id, scheduled_start, scheduled_end,
			status, appointment_type, reason, notes,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, now(), now())
		RETURNING created_at, updated_at
	`,
		a.ID, a.ConfirmationCode, a.PatientID, a.ProviderID, a.DepartmentID,
		a.TimeSlotID, a.LocationID, a.ScheduledStart, a.ScheduledEnd,
		a.Status, a.AppointmentType, a.Reason, a.Notes,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err, confirmationCodeConstraint) {
			return ErrDuplicateConfirmationCode
		}
		if db.IsForeignKeyViolation(err) {
			return apperr.New(apperr.ErrValidation, "patient, provider, department, location or time slot does not exist")
		}
		return fmt.Errorf("insert appointment: %w", err)
	}

	return nil
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	return scanDetail(r.db.QueryRow(ctx, detailSelect+` WHERE a.id = $1`, id))
}

func (r *PgRepository) GetByConfirmationCode(ctx context.Context, code string) (*AppointmentDetail, error) {
	return scanDetail(r.db.QueryRow(ctx, detailSelect+` WHERE a.confirmation_code = $1`, code))
}

func (r *PgRepository) Update(ctx context.Context, a *Appointment) error {
	err := r.db.QueryRow(ctx, `
		UPDATE appointments
		SET time_slot_id = $2,
		    scheduled_start = $3,
		    scheduled_end = $4,
		    actual_start = $5,
		    actual_end = $6,
		    status = $7,
		    reason = $8,
		    notes = $9,
		    provider_notes = $10,
		    no_show_risk = $11,
		    cancelled_at = $12,
		    cancellation_reason = $13,
		    updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`,
		a.ID, a.TimeSlotID, a.ScheduledStart, a.ScheduledEnd,
		a.ActualStart, a.ActualEnd, a.Status,
		a.Reason, a.Notes, a.ProviderNotes, a.NoShowRisk,
		a.CancelledAt, a.CancellationReason,
	).Scan(&a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrAppointmentNotFound
		}
		if db.IsForeignKeyViolation(err) {
			return apperr.New(apperr.ErrValidation, "time slot does not exist")
		}
		return fmt.Errorf("update appointment: %w", err)
	}
	return nil
}

func (r *PgRepository) List(ctx context.Context, f ListFilter, limit, offset int) ([]AppointmentDetail, int, error) {
	var (
		conditions []string
		args       []any
	)
	add := func(clause string, v any) {
		args = append(args, v)
		conditions = append(conditions, fmt.Sprintf(clause, len(args)))
	}

	if f.PatientID != nil {
		add("a.patient_id = $%d", *f.PatientID)
	}
	if f.ProviderID != nil {
		add("a.provider_id = $%d", *f.ProviderID)
	}
	if f.DepartmentID != nil {
		add("a.department_id = $%d", *f.DepartmentID)
	}
	if f.Status != nil {
		add("a.status = $%d", *f.Status)
	}
	if f.StartDate != nil {
		add("a.scheduled_start >= $%d", *f.StartDate)
	}
	if f.EndDate != nil {
		add("a.scheduled_end <= $%d", *f.EndDate)
	}

	where := ""
	if len(conditions) > 0 {
		where = "\n\tWHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM appointments a`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count appointments: %w", err)
	}

	args = append(args, limit, offset)
	sql := detailSelect + where + fmt.Sprintf("\n\tORDER BY a.scheduled_start DESC\n\tLIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query appointments: %w", err)
	}

	result, err := collectDetails(rows)
	if err != nil {
		return nil, 0, err
	}
	return result, total, nil
}

func (r *PgRepository) ListUpcoming(ctx context.Context, patientID uuid.UUID, now time.Time, limit int) ([]AppointmentDetail, error) {
	rows, err := r.db.Query(ctx, detailSelect+`
	WHERE a.patient_id = $1
	  AND a.scheduled_start >= $2
	  AND a.status NOT IN ('cancelled', 'completed', 'no_show')
	ORDER BY a.scheduled_start ASC
	LIMIT $3`, patientID, now, limit)
	if err != nil {
		return nil, fmt.Errorf("query upcoming appointments: %w", err)
	}
	return collectDetails(rows)
}

func (r *PgRepository) ListHistory(ctx context.Context, patientID uuid.UUID, limit int) ([]AppointmentDetail, error) {
	rows, err := r.db.Query(ctx, detailSelect+`
	WHERE a.patient_id = $1
	ORDER BY a.scheduled_start DESC
	LIMIT $2`, patientID, limit)
	if err != nil {
		return nil, fmt.Errorf("query appointment history: %w", err)
	}
	return collectDetails(rows)
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
