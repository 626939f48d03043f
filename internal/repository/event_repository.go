package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/eventgrid/eventgrid/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EventRepository handles persistence for events.
type EventRepository struct {
	pool *pgxpool.Pool
}

// NewEventRepository constructs an EventRepository.
func NewEventRepository(pool *pgxpool.Pool) *EventRepository {
	return &EventRepository{pool: pool}
}

const eventColumns = `id, name, description, capacity, registered_count, price, status,
	team_based, min_team_size, max_team_size, form_fields, created_at`

func scanEvent(row pgx.Row) (*model.Event, error) {
	var e model.Event
	err := row.Scan(
		&e.ID, &e.Name, &e.Description, &e.Capacity, &e.RegisteredCount, &e.Price, &e.Status,
		&e.TeamBased, &e.MinTeamSize, &e.MaxTeamSize, &e.FormFields, &e.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("scan event: %w", err)
	}
	return &e, nil
}

// Create inserts a new event and returns it with a generated UUID.
func (r *EventRepository) Create(ctx context.Context, req model.CreateEventRequest, now time.Time) (*model.Event, error) {
	event := &model.Event{
		ID:          uuid.New().String(),
		Name:        req.Name,
		Description: req.Description,
		Capacity:    req.Capacity,
		Price:       req.Price,
		Status:      model.EventDraft,
		TeamBased:   req.TeamBased,
		MinTeamSize: req.MinTeamSize,
		MaxTeamSize: req.MaxTeamSize,
		FormFields:  req.FormFields,
		CreatedAt:   now,
	}
	if event.FormFields == nil {
		event.FormFields = []model.FieldDescriptor{}
	}

	_, err := db(ctx, r.pool).Exec(ctx,
		`INSERT INTO events (`+eventColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		event.ID, event.Name, event.Description, event.Capacity, event.RegisteredCount,
		event.Price, event.Status, event.TeamBased, event.MinTeamSize, event.MaxTeamSize,
		event.FormFields, event.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}
	return event, nil
}

// List returns all events ordered by creation time descending.
func (r *EventRepository) List(ctx context.Context) ([]model.Event, error) {
	rows, err := db(ctx, r.pool).Query(ctx,
		`SELECT `+eventColumns+` FROM events ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

// GetByID returns a single event or model.ErrNotFound.
func (r *EventRepository) GetByID(ctx context.Context, id string) (*model.Event, error) {
	return scanEvent(db(ctx, r.pool).QueryRow(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1`, id,
	))
}

// UpdateStatus moves the event to the given status.
func (r *EventRepository) UpdateStatus(ctx context.Context, id string, status model.EventStatus) error {
	tag, err := db(ctx, r.pool).Exec(ctx,
		`UPDATE events SET status = $2 WHERE id = $1`, id, status,
	)
	if err != nil {
		return fmt.Errorf("update event status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

// ReserveSlot performs the capacity admission as a single conditional
// update: the increment only happens while the event is open and below
// capacity, so concurrent registrations can never oversell.
func (r *EventRepository) ReserveSlot(ctx context.Context, id string) error {
	tag, err := db(ctx, r.pool).Exec(ctx,
		`UPDATE events
		 SET registered_count = registered_count + 1
		 WHERE id = $1
		   AND status IN ('upcoming', 'live')
		   AND registered_count < capacity`,
		id,
	)
	if err != nil {
		if serializationFailure(err) {
			return model.ErrStorageConflict
		}
		return fmt.Errorf("reserve slot: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	// Zero rows: read the row back to report the precise reason.
	event, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !event.Status.Open() {
		return model.ErrEventNotOpen
	}
	return model.ErrCapacityExceeded
}

// ReleaseSlot returns a previously reserved slot. The guard floors the
// counter at zero so a stray double release can never go negative.
func (r *EventRepository) ReleaseSlot(ctx context.Context, id string) error {
	_, err := db(ctx, r.pool).Exec(ctx,
		`UPDATE events
		 SET registered_count = registered_count - 1
		 WHERE id = $1 AND registered_count > 0`,
		id,
	)
	if err != nil {
		if serializationFailure(err) {
			return model.ErrStorageConflict
		}
		return fmt.Errorf("release slot: %w", err)
	}
	return nil
}
