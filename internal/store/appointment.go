package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"sanjeevika-api/internal/model"
)

const appointmentCols = `id, provider_id, appt_date, appt_time, requester_email, requester_name,
	status, created_at, updated_at`

func scanAppointment(row pgx.Row) (*model.Appointment, error) {
	a := &model.Appointment{}
	err := row.Scan(&a.ID, &a.ProviderID, &a.Date, &a.Time,
		&a.Requester.Email, &a.Requester.Name, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// InsertAppointment relies on the appointments_active_slot partial unique
// index: a second active row for the same slot fails with ErrDuplicate, so the
// occupancy check and the insert are one statement.
func (s *Store) InsertAppointment(ctx context.Context, a *model.Appointment) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO appointments (id, provider_id, appt_date, appt_time, requester_email, requester_name, status)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)
		 RETURNING created_at, updated_at`,
		a.ID, a.ProviderID, a.Date, a.Time, a.Requester.Email, a.Requester.Name, a.Status,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (s *Store) GetAppointment(ctx context.Context, id string) (*model.Appointment, error) {
	a, err := scanAppointment(s.pool.QueryRow(ctx,
		`SELECT `+appointmentCols+` FROM appointments WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return a, nil
}

func (s *Store) ListAppointmentsByRequester(ctx context.Context, email string) ([]model.Appointment, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+appointmentCols+` FROM appointments
		 WHERE requester_email = $1
		 ORDER BY appt_date, appt_time`, email)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// RescheduleAppointment moves an active appointment to a new slot in one
// conditional UPDATE. The unique index rejects the move if another active
// appointment holds the slot.
func (s *Store) RescheduleAppointment(ctx context.Context, id, date, tm string) (*model.Appointment, error) {
	a, err := scanAppointment(s.pool.QueryRow(ctx,
		`UPDATE appointments
		 SET appt_date = $2, appt_time = $3, status = 'rescheduled', updated_at = now()
		 WHERE id = $1 AND status <> 'canceled'
		 RETURNING `+appointmentCols, id, date, tm))
	switch {
	case err == nil:
		return a, nil
	case isUniqueViolation(err):
		return nil, ErrDuplicate
	case !errors.Is(err, pgx.ErrNoRows):
		return nil, err
	}

	// nothing updated: missing or canceled
	var status string
	err = s.pool.QueryRow(ctx, `SELECT status FROM appointments WHERE id = $1`, id).Scan(&status)
	if err != nil {
		return nil, notFound(err)
	}
	return nil, ErrCanceled
}

// CancelAppointment is idempotent; a second cancel leaves updated_at alone.
// changed reports whether this call moved the appointment out of an active
// status. The row lock in prev serializes concurrent cancels, so only one of
// them sees the active status.
func (s *Store) CancelAppointment(ctx context.Context, id string) (a *model.Appointment, changed bool, err error) {
	a = &model.Appointment{}
	err = s.pool.QueryRow(ctx,
		`WITH prev AS (
		   SELECT id AS prev_id, status AS prev_status FROM appointments WHERE id = $1 FOR UPDATE
		 )
		 UPDATE appointments
		 SET updated_at = CASE WHEN status = 'canceled' THEN updated_at ELSE now() END,
		     status = 'canceled'
		 FROM prev
		 WHERE appointments.id = prev.prev_id
		 RETURNING `+appointmentCols+`, prev.prev_status <> 'canceled'`, id,
	).Scan(&a.ID, &a.ProviderID, &a.Date, &a.Time,
		&a.Requester.Email, &a.Requester.Name, &a.Status, &a.CreatedAt, &a.UpdatedAt, &changed)
	if err != nil {
		return nil, false, notFound(err)
	}
	return a, changed, nil
}
