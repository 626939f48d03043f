package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/eventgrid/eventgrid/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RegistrationRepository handles persistence for registrations.
type RegistrationRepository struct {
	pool *pgxpool.Pool
}

// NewRegistrationRepository constructs a RegistrationRepository.
func NewRegistrationRepository(pool *pgxpool.Pool) *RegistrationRepository {
	return &RegistrationRepository{pool: pool}
}

const registrationColumns = `id, event_id, user_id, name, email, college, status,
	payment_status, team_id, transaction_ref, responses, registered_at`

func scanRegistration(row pgx.Row) (*model.Registration, error) {
	var reg model.Registration
	var teamID *string
	err := row.Scan(
		&reg.ID, &reg.EventID, &reg.UserID, &reg.Name, &reg.Email, &reg.College,
		&reg.Status, &reg.PaymentStatus, &teamID, &reg.TransactionRef,
		&reg.Responses, &reg.RegisteredAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("scan registration: %w", err)
	}
	if teamID != nil {
		reg.TeamID = *teamID
	}
	return &reg, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Create inserts a new registration. The partial unique index on
// (event_id, user_id) backstops the service-level duplicate check.
func (r *RegistrationRepository) Create(ctx context.Context, reg *model.Registration) error {
	_, err := db(ctx, r.pool).Exec(ctx,
		`INSERT INTO registrations (`+registrationColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		reg.ID, reg.EventID, reg.UserID, reg.Name, reg.Email, reg.College,
		reg.Status, reg.PaymentStatus, nullable(reg.TeamID), reg.TransactionRef,
		reg.Responses, reg.RegisteredAt,
	)
	if err != nil {
		if uniqueViolation(err, "registrations_event_user_active") {
			return model.ErrAlreadyRegistered
		}
		return fmt.Errorf("insert registration: %w", err)
	}
	return nil
}

// GetByID returns a single registration or model.ErrNotFound.
func (r *RegistrationRepository) GetByID(ctx context.Context, id string) (*model.Registration, error) {
	return scanRegistration(db(ctx, r.pool).QueryRow(ctx,
		`SELECT `+registrationColumns+` FROM registrations WHERE id = $1`, id,
	))
}

// FindActive returns the user's non-cancelled registration for the event,
// or nil when there is none.
func (r *RegistrationRepository) FindActive(ctx context.Context, eventID, userID string) (*model.Registration, error) {
	reg, err := scanRegistration(db(ctx, r.pool).QueryRow(ctx,
		`SELECT `+registrationColumns+`
		 FROM registrations
		 WHERE event_id = $1 AND user_id = $2 AND status <> 'cancelled'`,
		eventID, userID,
	))
	if errors.Is(err, model.ErrNotFound) {
		return nil, nil
	}
	return reg, err
}

// ListByEvent returns all registrations for an event in submission order.
func (r *RegistrationRepository) ListByEvent(ctx context.Context, eventID string) ([]model.Registration, error) {
	rows, err := db(ctx, r.pool).Query(ctx,
		`SELECT `+registrationColumns+`
		 FROM registrations
		 WHERE event_id = $1
		 ORDER BY registered_at ASC`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	defer rows.Close()

	var regs []model.Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		regs = append(regs, *reg)
	}
	return regs, rows.Err()
}

// MarkPaymentOutcome applies a payment gateway callback as a conditional
// update guarded on the registration still awaiting payment. Duplicate or
// late callbacks (including ones that lose to a janitor cancel) affect
// zero rows and surface model.ErrAlreadyResolved, never a second
// transition.
func (r *RegistrationRepository) MarkPaymentOutcome(ctx context.Context, id string, success bool, transactionRef string) error {
	status, paymentStatus := model.RegistrationConfirmed, model.PaymentCompleted
	if !success {
		status, paymentStatus = model.RegistrationCancelled, model.PaymentFailed
	}

	tag, err := db(ctx, r.pool).Exec(ctx,
		`UPDATE registrations
		 SET status = $2, payment_status = $3, transaction_ref = $4
		 WHERE id = $1 AND status = 'pending' AND payment_status = 'pending'`,
		id, status, paymentStatus, transactionRef,
	)
	if err != nil {
		if serializationFailure(err) {
			return model.ErrStorageConflict
		}
		return fmt.Errorf("mark payment outcome: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return model.ErrAlreadyResolved
}

// MarkCancelled moves a pending or confirmed registration to cancelled.
// The guard makes cancellation first-writer-wins, so the capacity slot is
// released exactly once.
func (r *RegistrationRepository) MarkCancelled(ctx context.Context, id string) error {
	tag, err := db(ctx, r.pool).Exec(ctx,
		`UPDATE registrations
		 SET status = 'cancelled'
		 WHERE id = $1 AND status IN ('pending', 'confirmed')`,
		id,
	)
	if err != nil {
		if serializationFailure(err) {
			return model.ErrStorageConflict
		}
		return fmt.Errorf("mark cancelled: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return model.ErrAlreadyResolved
}

// ListStalePending returns pending-payment registrations submitted before
// the cutoff. Used by the janitor sweep.
func (r *RegistrationRepository) ListStalePending(ctx context.Context, before time.Time) ([]model.Registration, error) {
	rows, err := db(ctx, r.pool).Query(ctx,
		`SELECT `+registrationColumns+`
		 FROM registrations
		 WHERE status = 'pending' AND payment_status = 'pending' AND registered_at < $1
		 ORDER BY registered_at ASC`,
		before,
	)
	if err != nil {
		return nil, fmt.Errorf("list stale pending: %w", err)
	}
	defer rows.Close()

	var regs []model.Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		regs = append(regs, *reg)
	}
	return regs, rows.Err()
}
