package waitlist

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

type PgRepository struct {
	db db.DBTX
}

func NewPgRepository(conn db.DBTX) *PgRepository {
	return &PgRepository{db: conn}
}

const priorityRankExpr = `CASE w.priority
		WHEN 'urgent' THEN 1
		WHEN 'high' THEN 2
		WHEN 'medium' THEN 3
		WHEN 'low' THEN 4
	END`

const entrySelect = `
	SELECT w.id, w.patient_id, w.department_id, w.provider_id,
	       w.preferred_dates, w.preferred_time_of_day, w.priority,
	       w.medical_urgency, w.status, w.requested_date, w.expires_at,
	       w.notifications_sent, w.last_notification_sent,
	       w.converted_to_appointment_id, w.notes, w.created_at, w.updated_at,
	       COALESCE(pt.first_name, ''), COALESCE(pt.last_name, ''),
	       COALESCE(pt.phone, ''), COALESCE(pt.email, ''),
	       COALESCE(d.name, ''), COALESCE(d.code, ''),
	       COALESCE(pr.first_name, ''), COALESCE(pr.last_name, ''), COALESCE(pr.title, '')
	FROM waitlist_entries w
	LEFT JOIN patients pt ON pt.id = w.patient_id
	LEFT JOIN departments d ON d.id = w.department_id
	LEFT JOIN providers pr ON pr.id = w.provider_id`

func scanEntry(row pgx.Row) (*EntryDetail, error) {
	var e EntryDetail

	err := row.Scan(
		&e.ID,
		&e.PatientID,
		&e.DepartmentID,
		&e.ProviderID,
		&e.PreferredDates,
		&e.PreferredTimeOfDay,
		&e.Priority,
		&e.MedicalUrgency,
		&e.Status,
		&e.RequestedDate,
		&e.ExpiresAt,
		&e.NotificationsSent,
		&e.LastNotificationSent,
		&e.ConvertedToAppointmentID,
		&e.Notes,
		&e.CreatedAt,
		&e.UpdatedAt,
		&e.PatientFirstName,
		&e.PatientLastName,
		&e.PatientPhone,
		&e.PatientEmail,
		&e.DepartmentName,
		&e.DepartmentCode,
		&e.ProviderFirstName,
		&e.ProviderLastName,
		&e.ProviderTitle,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, err
	}

	return &e, nil
}

func (r *PgRepository) Create(ctx context.Context, e *Entry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}

	err := r.db.QueryRow(ctx, `
		INSERT INTO waitlist_entries (
			id, patient_id, department_id, provider_id,
			preferred_dates, preferred_time_of_day, priority,
			medical_urgency, status, requested_date, expires_at,
			notes, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now(), now())
		RETURNING created_at, updated_at
	`,
		e.ID, e.PatientID, e.DepartmentID, e.ProviderID,
		e.PreferredDates, e.PreferredTimeOfDay, e.Priority,
		e.MedicalUrgency, e.Status, e.RequestedDate, e.ExpiresAt,
		e.Notes,
	).Scan(&e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return apperr.New(apperr.ErrValidation, "patient, department or provider does not exist")
		}
		return fmt.Errorf("insert waitlist entry: %w", err)
	}

	return nil
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*EntryDetail, error) {
	return scanEntry(r.db.QueryRow(ctx, entrySelect+` WHERE w.id = $1`, id))
}

func (r *PgRepository) Update(ctx context.Context, e *Entry) error {
	err := r.db.QueryRow(ctx, `
		UPDATE waitlist_entries
		SET preferred_dates = $2,
		    preferred_time_of_day = $3,
		    priority = $4,
		    medical_urgency = $5,
		    status = $6,
		    notifications_sent = $7,
		    last_notification_sent = $8,
		    converted_to_appointment_id = $9,
		    notes = $10,
		    updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`,
		e.ID, e.PreferredDates, e.PreferredTimeOfDay, e.Priority,
		e.MedicalUrgency, e.Status, e.NotificationsSent, e.LastNotificationSent,
		e.ConvertedToAppointmentID, e.Notes,
	).Scan(&e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrEntryNotFound
		}
		if db.IsForeignKeyViolation(err) {
			return apperr.New(apperr.ErrValidation, "appointment does not exist")
		}
		return fmt.Errorf("update waitlist entry: %w", err)
	}
	return nil
}

func (r *PgRepository) List(ctx context.Context, f ListFilter) ([]EntryDetail, error) {
	var (
		conditions []string
		args       []any
	)
	add := func(clause string, v any) {
		args = append(args, v)
		conditions = append(conditions, fmt.Sprintf(clause, len(args)))
	}

	if f.DepartmentID != nil {
		add("w.department_id = $%d", *f.DepartmentID)
	}
	if f.ProviderID != nil {
		add("w.provider_id = $%d", *f.ProviderID)
	}
	if f.PatientID != nil {
		add("w.patient_id = $%d", *f.PatientID)
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		add("w.status = ANY($%d)", statuses)
	}
	if f.Priority != nil {
		add("w.priority = $%d", *f.Priority)
	}

	sql := entrySelect
	if len(conditions) > 0 {
		sql += "\n\tWHERE " + strings.Join(conditions, " AND ")
	}
	sql += "\n\tORDER BY " + priorityRankExpr + ", w.requested_date ASC"

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query waitlist entries: %w", err)
	}
	defer rows.Close()

	result := []EntryDetail{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) CountByStatusAndPriority(ctx context.Context, departmentID *uuid.UUID) ([]GroupCount, error) {
	rows, err := r.db.Query(ctx, `
		SELECT status, priority, COUNT(*)
		FROM waitlist_entries
		WHERE ($1::uuid IS NULL OR department_id = $1)
		GROUP BY status, priority
	`, departmentID)
	if err != nil {
		return nil, fmt.Errorf("count waitlist entries: %w", err)
	}
	defer rows.Close()

	result := []GroupCount{}
	for rows.Next() {
		var g GroupCount
		if err := rows.Scan(&g.Status, &g.Priority, &g.Count); err != nil {
			return nil, err
		}
		result = append(result, g)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) AverageConvertedWaitDays(ctx context.Context, departmentID *uuid.UUID) (*float64, error) {
	var avg *float64
	err := r.db.QueryRow(ctx, `
		SELECT AVG(EXTRACT(EPOCH FROM (updated_at - created_at)) / 86400.0)::float8
		FROM waitlist_entries
		WHERE status = 'converted'
		  AND ($1::uuid IS NULL OR department_id = $1)
	`, departmentID).Scan(&avg)
	if err != nil {
		return nil, fmt.Errorf("average waitlist wait: %w", err)
	}
	return avg, nil
}

func (r *PgRepository) ExpireBefore(ctx context.Context, now time.Time) (int, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE waitlist_entries
		SET status = 'expired',
		    updated_at = now()
		WHERE status IN ('active', 'contacted')
		  AND expires_at < $1
	`, now)
	if err != nil {
		return 0, fmt.Errorf("expire waitlist entries: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
