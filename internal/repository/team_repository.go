package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/eventgrid/eventgrid/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TeamRepository handles persistence for teams and their member lists.
type TeamRepository struct {
	pool *pgxpool.Pool
}

// NewTeamRepository constructs a TeamRepository.
func NewTeamRepository(pool *pgxpool.Pool) *TeamRepository {
	return &TeamRepository{pool: pool}
}

// WithTx runs fn inside a transaction carried on the context.
func (r *TeamRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	err := withTx(ctx, r.pool, fn)
	if err != nil && serializationFailure(err) {
		return model.ErrStorageConflict
	}
	return err
}

// Create inserts a team together with its leader as member 0.
func (r *TeamRepository) Create(ctx context.Context, team *model.Team) error {
	return r.WithTx(ctx, func(ctx context.Context) error {
		roster := team.Roster
		if roster == nil {
			roster = []model.TeamMemberInput{}
		}
		_, err := db(ctx, r.pool).Exec(ctx,
			`INSERT INTO teams (id, event_id, leader_user_id, code, roster, min_size, max_size, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			team.ID, team.EventID, team.LeaderUserID, team.Code, roster,
			team.MinSize, team.MaxSize, team.CreatedAt,
		)
		if err != nil {
			if uniqueViolation(err, "teams_code_unique") {
				return model.ErrCodeCollision
			}
			return fmt.Errorf("insert team: %w", err)
		}
		for i, m := range team.Members {
			if err := r.AddMember(ctx, team.ID, team.EventID, m, i); err != nil {
				return err
			}
		}
		return nil
	})
}

// Delete removes a team and its members. Used to roll back a create-team
// registration whose capacity reservation failed.
func (r *TeamRepository) Delete(ctx context.Context, teamID string) error {
	return r.WithTx(ctx, func(ctx context.Context) error {
		if _, err := db(ctx, r.pool).Exec(ctx,
			`DELETE FROM team_members WHERE team_id = $1`, teamID,
		); err != nil {
			return fmt.Errorf("delete team members: %w", err)
		}
		if _, err := db(ctx, r.pool).Exec(ctx,
			`DELETE FROM teams WHERE id = $1`, teamID,
		); err != nil {
			return fmt.Errorf("delete team: %w", err)
		}
		return nil
	})
}

// GetByCodeForUpdate locks the team row for the duration of the enclosing
// transaction and returns the team with its ordered member list. This is
// the pessimistic lock that serialises concurrent joins.
func (r *TeamRepository) GetByCodeForUpdate(ctx context.Context, code string) (*model.Team, error) {
	var t model.Team
	err := db(ctx, r.pool).QueryRow(ctx,
		`SELECT id, event_id, leader_user_id, code, roster, min_size, max_size, created_at
		 FROM teams
		 WHERE code = $1
		 FOR UPDATE`,
		code,
	).Scan(&t.ID, &t.EventID, &t.LeaderUserID, &t.Code, &t.Roster, &t.MinSize, &t.MaxSize, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrTeamCodeInvalid
		}
		return nil, fmt.Errorf("lock team row: %w", err)
	}
	if err := r.loadMembers(ctx, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// GetByID returns a team with members, or model.ErrNotFound.
func (r *TeamRepository) GetByID(ctx context.Context, id string) (*model.Team, error) {
	var t model.Team
	err := db(ctx, r.pool).QueryRow(ctx,
		`SELECT id, event_id, leader_user_id, code, roster, min_size, max_size, created_at
		 FROM teams WHERE id = $1`,
		id,
	).Scan(&t.ID, &t.EventID, &t.LeaderUserID, &t.Code, &t.Roster, &t.MinSize, &t.MaxSize, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("get team: %w", err)
	}
	if err := r.loadMembers(ctx, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TeamRepository) loadMembers(ctx context.Context, t *model.Team) error {
	rows, err := db(ctx, r.pool).Query(ctx,
		`SELECT user_id, name, email, role, joined_at
		 FROM team_members
		 WHERE team_id = $1
		 ORDER BY position ASC`,
		t.ID,
	)
	if err != nil {
		return fmt.Errorf("list team members: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m model.TeamMember
		if err := rows.Scan(&m.UserID, &m.Name, &m.Email, &m.Role, &m.JoinedAt); err != nil {
			return fmt.Errorf("scan team member: %w", err)
		}
		t.Members = append(t.Members, m)
	}
	return rows.Err()
}

// AddMember appends a member at the given position. The unique index on
// (event_id, user_id) rejects a user joining two teams for one event.
func (r *TeamRepository) AddMember(ctx context.Context, teamID, eventID string, m model.TeamMember, position int) error {
	_, err := db(ctx, r.pool).Exec(ctx,
		`INSERT INTO team_members (team_id, event_id, user_id, name, email, role, position, joined_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		teamID, eventID, m.UserID, m.Name, m.Email, m.Role, position, m.JoinedAt,
	)
	if err != nil {
		if uniqueViolation(err, "") {
			return model.ErrAlreadyOnTeam
		}
		return fmt.Errorf("insert team member: %w", err)
	}
	return nil
}

// RemoveMember drops a member from a team. The leader's slot (position 0)
// is preserved by the caller.
func (r *TeamRepository) RemoveMember(ctx context.Context, teamID, userID string) error {
	_, err := db(ctx, r.pool).Exec(ctx,
		`DELETE FROM team_members WHERE team_id = $1 AND user_id = $2`,
		teamID, userID,
	)
	if err != nil {
		return fmt.Errorf("remove team member: %w", err)
	}
	return nil
}

// HasMembership reports whether the user belongs to any team for the event.
func (r *TeamRepository) HasMembership(ctx context.Context, eventID, userID string) (bool, error) {
	var exists bool
	err := db(ctx, r.pool).QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM team_members WHERE event_id = $1 AND user_id = $2
		)`,
		eventID, userID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check team membership: %w", err)
	}
	return exists, nil
}

// MemberCounts returns the member count per team for an event.
func (r *TeamRepository) MemberCounts(ctx context.Context, eventID string) (map[string]int, error) {
	rows, err := db(ctx, r.pool).Query(ctx,
		`SELECT team_id, COUNT(*)
		 FROM team_members
		 WHERE event_id = $1
		 GROUP BY team_id`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("count team members: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var teamID string
		var n int
		if err := rows.Scan(&teamID, &n); err != nil {
			return nil, fmt.Errorf("scan member count: %w", err)
		}
		counts[teamID] = n
	}
	return counts, rows.Err()
}

// ListUnderfilled returns the event's teams still below their minimum size.
func (r *TeamRepository) ListUnderfilled(ctx context.Context, eventID string) ([]model.Team, error) {
	rows, err := db(ctx, r.pool).Query(ctx,
		`SELECT t.id
		 FROM teams t
		 LEFT JOIN team_members m ON m.team_id = t.id
		 WHERE t.event_id = $1
		 GROUP BY t.id, t.min_size
		 HAVING COUNT(m.user_id) < t.min_size`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("list underfilled teams: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan team id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	teams := make([]model.Team, 0, len(ids))
	for _, id := range ids {
		t, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		teams = append(teams, *t)
	}
	return teams, nil
}
