// Package storage is the Postgres record store. Slot uniqueness is a partial
// unique index over active rows, so the conflict check and the insert are one
// atomic statement; a retried insert after a lost race is rejected by the
// same index rather than duplicated.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/clinislot/clinislot/libs/db"
	"github.com/clinislot/clinislot/services/booking-service/internal/ledger"
	"github.com/clinislot/clinislot/services/booking-service/internal/model"
	"github.com/clinislot/clinislot/services/booking-service/internal/outbox"
	"github.com/clinislot/clinislot/services/booking-service/internal/schedule"
)

const (
	slotConstraint  = "appointments_active_slot_idx"
	ownerConstraint = "appointments_active_owner_idx"
)

type AppointmentRepository struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewAppointmentRepository(pool *db.Pool, outboxRepo *outbox.Repository) *AppointmentRepository {
	return &AppointmentRepository{pool: pool, outbox: outboxRepo}
}

// Insert appends the record and its booked event in one transaction.
func (r *AppointmentRepository) Insert(ctx context.Context, appt model.Appointment) (model.Appointment, error) {
	clock, err := schedule.ClockLabel(appt.StartMinute)
	if err != nil {
		return model.Appointment{}, err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.Appointment{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `
		INSERT INTO appointments (subject_name, subject_age, appt_date, appt_time, owner_key)
		VALUES ($1, $2, $3::date, $4, $5)
		RETURNING id::text, created_at
	`, appt.SubjectName, appt.SubjectAge, appt.Date, clock, appt.OwnerKey).Scan(&appt.ID, &appt.CreatedAt)
	if err != nil {
		return model.Appointment{}, mapConflict(err)
	}

	payload, err := json.Marshal(map[string]any{
		"appointment_id": appt.ID,
		"subject_name":   appt.SubjectName,
		"date":           appt.Date,
		"time":           clock,
		"owner_key":      appt.OwnerKey,
		"booked_at":      appt.CreatedAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return model.Appointment{}, err
	}
	if err := r.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   appt.ID,
		EventType:     outbox.EventAppointmentBooked,
		Payload:       payload,
	}); err != nil {
		return model.Appointment{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Appointment{}, mapConflict(err)
	}
	return appt, nil
}

func (r *AppointmentRepository) ListByDate(ctx context.Context, date string) ([]model.Appointment, error) {
	return r.list(ctx, `
		SELECT id::text, subject_name, subject_age, to_char(appt_date, 'YYYY-MM-DD'), appt_time, owner_key, cancelled_at, created_at
		FROM appointments
		WHERE appt_date = $1::date AND cancelled_at IS NULL
		ORDER BY appt_time ASC
	`, date)
}

func (r *AppointmentRepository) ListActive(ctx context.Context) ([]model.Appointment, error) {
	return r.list(ctx, `
		SELECT id::text, subject_name, subject_age, to_char(appt_date, 'YYYY-MM-DD'), appt_time, owner_key, cancelled_at, created_at
		FROM appointments
		WHERE cancelled_at IS NULL
		ORDER BY appt_date ASC, appt_time ASC
	`)
}

func (r *AppointmentRepository) CountEarlier(ctx context.Context, date string, beforeMinute int) (int, error) {
	clock, err := schedule.ClockLabel(beforeMinute)
	if err != nil {
		return 0, err
	}
	var n int
	// appt_time is fixed-width HH:MM, so text comparison is time comparison.
	err = r.pool.QueryRow(ctx, `
		SELECT count(*)
		FROM appointments
		WHERE appt_date = $1::date AND cancelled_at IS NULL AND appt_time < $2
	`, date, clock).Scan(&n)
	return n, err
}

func (r *AppointmentRepository) CountActiveByOwner(ctx context.Context, ownerKey string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT count(*)
		FROM appointments
		WHERE owner_key = $1 AND cancelled_at IS NULL
	`, ownerKey).Scan(&n)
	return n, err
}

func (r *AppointmentRepository) Get(ctx context.Context, id string) (model.Appointment, error) {
	if _, err := uuid.Parse(id); err != nil {
		return model.Appointment{}, ledger.ErrNoRecord
	}
	row := r.pool.QueryRow(ctx, `
		SELECT id::text, subject_name, subject_age, to_char(appt_date, 'YYYY-MM-DD'), appt_time, owner_key, cancelled_at, created_at
		FROM appointments
		WHERE id = $1
	`, id)
	appt, err := scanAppointment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Appointment{}, ledger.ErrNoRecord
	}
	return appt, err
}

// Cancel tombstones the record and emits the cancelled event atomically.
// Cancelling a row that is already tombstoned is a no-op.
func (r *AppointmentRepository) Cancel(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ledger.ErrNoRecord
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var date, clock string
	var cancelledAt time.Time
	err = tx.QueryRow(ctx, `
		UPDATE appointments
		SET cancelled_at = now()
		WHERE id = $1 AND cancelled_at IS NULL
		RETURNING to_char(appt_date, 'YYYY-MM-DD'), appt_time, cancelled_at
	`, id).Scan(&date, &clock, &cancelledAt)
	if errors.Is(err, pgx.ErrNoRows) {
		// Either missing or already cancelled; only the former is an error.
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM appointments WHERE id = $1)`, id).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ledger.ErrNoRecord
		}
		return tx.Commit(ctx)
	}
	if err != nil {
		return err
	}

	payload, err := json.Marshal(map[string]any{
		"appointment_id": id,
		"date":           date,
		"time":           clock,
		"cancelled_at":   cancelledAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	if err := r.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   id,
		EventType:     outbox.EventAppointmentCancelled,
		Payload:       payload,
	}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *AppointmentRepository) list(ctx context.Context, query string, args ...any) ([]model.Appointment, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var appts []model.Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, appt)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return appts, nil
}

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var appt model.Appointment
	var clock string
	var cancelledAt *time.Time
	if err := row.Scan(&appt.ID, &appt.SubjectName, &appt.SubjectAge, &appt.Date, &clock, &appt.OwnerKey, &cancelledAt, &appt.CreatedAt); err != nil {
		return model.Appointment{}, err
	}
	minute, err := schedule.ParseClock(clock)
	if err != nil {
		return model.Appointment{}, err
	}
	appt.StartMinute = minute
	appt.CancelledAt = cancelledAt
	return appt, nil
}

// mapConflict translates the partial unique index violations into the store
// contract sentinels the ledger understands.
func mapConflict(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return err
	}
	switch pgErr.ConstraintName {
	case slotConstraint:
		return ledger.ErrSlotConflict
	case ownerConstraint:
		return ledger.ErrOwnerConflict
	}
	return err
}
