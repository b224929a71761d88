package slot

import (
	"context"
	"errors"
	"fmt"
	"strings"

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

// bookedCountExpr is the capacity ledger: appointments in any status other
// than cancelled or no_show hold a seat.
const bookedCountExpr = `(
	SELECT COUNT(*)
	FROM appointments a
	WHERE a.time_slot_id = ts.id
	  AND a.status NOT IN ('cancelled', 'no_show')
)`

const slotSelect = `
	SELECT ts.id, ts.provider_id, ts.department_id, ts.location_id,
	       ts.start_time, ts.end_time, ts.duration_minutes, ts.capacity,
	       ts.is_available, ts.is_recurring, ts.recurring_pattern,
	       ts.created_at, ts.updated_at,
	       COALESCE(p.first_name, ''), COALESCE(p.last_name, ''), COALESCE(p.title, ''),
	       COALESCE(d.name, ''), COALESCE(d.code, ''),
	       COALESCE(l.name, ''), COALESCE(l.building, ''), COALESCE(l.floor, ''), COALESCE(l.room, ''),
	       ` + bookedCountExpr + ` AS booked_count
	FROM time_slots ts
	LEFT JOIN providers p ON p.id = ts.provider_id
	LEFT JOIN departments d ON d.id = ts.department_id
	LEFT JOIN locations l ON l.id = ts.location_id`

func scanSlot(row pgx.Row) (*SlotWithAvailability, error) {
	var s SlotWithAvailability

	err := row.Scan(
		&s.ID,
		&s.ProviderID,
		&s.DepartmentID,
		&s.LocationID,
		&s.StartTime,
		&s.EndTime,
		&s.Duration,
		&s.Capacity,
		&s.IsAvailable,
		&s.IsRecurring,
		&s.RecurringPattern,
		&s.CreatedAt,
		&s.UpdatedAt,
		&s.ProviderFirstName,
		&s.ProviderLastName,
		&s.ProviderTitle,
		&s.DepartmentName,
		&s.DepartmentCode,
		&s.LocationName,
		&s.LocationBuilding,
		&s.LocationFloor,
		&s.LocationRoom,
		&s.BookedCount,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}

	return &s, nil
}

func (r *PgRepository) Create(ctx context.Context, s *TimeSlot) error {
	s.ID = uuid.New()

	err := r.db.QueryRow(ctx, `
		INSERT INTO time_slots (
			id, provider_id, department_id, location_id,
			start_time, end_time, duration_minutes, capacity,
			is_available, is_recurring, recurring_pattern,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now(), now())
		RETURNING created_at, updated_at
	`,
		s.ID, s.ProviderID, s.DepartmentID, s.LocationID,
		s.StartTime, s.EndTime, s.Duration, s.Capacity,
		s.IsAvailable, s.IsRecurring, s.RecurringPattern,
	).Scan(&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return apperr.New(apperr.ErrValidation, "provider, department or location does not exist")
		}
		return fmt.Errorf("insert time slot: %w", err)
	}

	return nil
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*SlotWithAvailability, error) {
	return scanSlot(r.db.QueryRow(ctx, slotSelect+` WHERE ts.id = $1`, id))
}

func (r *PgRepository) Find(ctx context.Context, q Query) ([]SlotWithAvailability, error) {
	var (
		conditions []string
		args       []any
	)
	add := func(clause string, v any) {
		args = append(args, v)
		conditions = append(conditions, fmt.Sprintf(clause, len(args)))
	}

	if q.StartFrom != nil {
		add("ts.start_time >= $%d", *q.StartFrom)
	}
	if q.StartAfter != nil {
		add("ts.start_time > $%d", *q.StartAfter)
	}
	if q.EndBy != nil {
		add("ts.end_time <= $%d", *q.EndBy)
	}
	if q.DepartmentID != nil {
		add("ts.department_id = $%d", *q.DepartmentID)
	}
	if q.ProviderID != nil {
		add("ts.provider_id = $%d", *q.ProviderID)
	}
	if q.LocationID != nil {
		add("ts.location_id = $%d", *q.LocationID)
	}
	if q.IsAvailable != nil {
		add("ts.is_available = $%d", *q.IsAvailable)
	}

	sql := slotSelect
	if len(conditions) > 0 {
		sql += "\n\tWHERE " + strings.Join(conditions, " AND ")
	}
	sql += "\n\tORDER BY ts.start_time ASC"

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query time slots: %w", err)
	}
	defer rows.Close()

	result := []SlotWithAvailability{}
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) Update(ctx context.Context, s *TimeSlot) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE time_slots
		SET start_time = $2,
		    end_time = $3,
		    duration_minutes = $4,
		    capacity = $5,
		    updated_at = now()
		WHERE id = $1
	`, s.ID, s.StartTime, s.EndTime, s.Duration, s.Capacity)
	if err != nil {
		return fmt.Errorf("update time slot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSlotNotFound
	}
	return nil
}

func (r *PgRepository) SetAvailability(ctx context.Context, id uuid.UUID, available bool) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE time_slots
		SET is_available = $2,
		    updated_at = now()
		WHERE id = $1
	`, id, available)
	if err != nil {
		return fmt.Errorf("set time slot availability: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSlotNotFound
	}
	return nil
}

// Delete removes the slot unless an appointment still holds a seat in it.
// The slot row is locked before counting: an appointment insert takes a key
// share lock on the slot through its foreign key, so a booking in flight is
// either committed and counted, or fails its foreign key after the delete.
func (r *PgRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		var one int
		err := tx.QueryRow(ctx, `SELECT 1 FROM time_slots WHERE id = $1 FOR UPDATE`, id).Scan(&one)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrSlotNotFound
		}
		if err != nil {
			return fmt.Errorf("lock time slot: %w", err)
		}

		count, err := countActiveAppointments(ctx, tx, id)
		if err != nil {
			return err
		}
		if count > 0 {
			return ErrSlotHasAppointments
		}

		if _, err := tx.Exec(ctx, `DELETE FROM time_slots WHERE id = $1`, id); err != nil {
			if db.IsForeignKeyViolation(err) {
				return ErrSlotHasAppointments
			}
			return fmt.Errorf("delete time slot: %w", err)
		}
		return nil
	})
}

func (r *PgRepository) CountActiveAppointments(ctx context.Context, id uuid.UUID) (int, error) {
	return countActiveAppointments(ctx, r.db, id)
}

func countActiveAppointments(ctx context.Context, conn db.DBTX, id uuid.UUID) (int, error) {
	var count int
	err := conn.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM appointments
		WHERE time_slot_id = $1
		  AND status NOT IN ('cancelled', 'no_show')
	`, id).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count slot appointments: %w", err)
	}
	return count, nil
}
