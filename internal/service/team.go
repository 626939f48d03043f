package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/eventgrid/eventgrid/internal/clock"
	"github.com/eventgrid/eventgrid/internal/model"
	"github.com/google/uuid"
)

// TeamManager creates and fills teams for team-based events.
type TeamManager struct {
	teams   TeamStore
	clock   clock.Clock
	newCode func() string
}

// TeamManagerOption customises a TeamManager.
type TeamManagerOption func(*TeamManager)

// WithTeamCodeSource overrides the join-code generator (useful for tests).
func WithTeamCodeSource(fn func() string) TeamManagerOption {
	return func(m *TeamManager) {
		m.newCode = fn
	}
}

// NewTeamManager constructs a TeamManager.
func NewTeamManager(teams TeamStore, clk clock.Clock, opts ...TeamManagerOption) *TeamManager {
	m := &TeamManager{
		teams:   teams,
		clock:   clk,
		newCode: newTeamCode,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CreateTeam starts a new team for the event with the leader as member 0.
// The roster, when given, is the leader's prospective member list: it is
// stored for the organizer but each listed person still joins with the
// code. A team may stay below its minimum size while registration is
// open; the minimum is enforced at event close, not here.
func (m *TeamManager) CreateTeam(ctx context.Context, event *model.Event, leader model.TeamMember, roster []model.TeamMemberInput) (*model.Team, error) {
	// Leader holds slot 0, so the roster can name at most MaxSize-1 others.
	if len(roster) > event.MaxTeamSize-1 {
		return nil, model.ErrTeamFull
	}
	for _, r := range roster {
		if strings.TrimSpace(r.Name) == "" {
			return nil, fmt.Errorf("team roster entries must be named")
		}
	}

	onTeam, err := m.teams.HasMembership(ctx, event.ID, leader.UserID)
	if err != nil {
		return nil, err
	}
	if onTeam {
		return nil, model.ErrAlreadyOnTeam
	}

	leader.Role = "leader"
	leader.JoinedAt = m.clock.Now()

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		team := &model.Team{
			ID:           uuid.New().String(),
			EventID:      event.ID,
			LeaderUserID: leader.UserID,
			Code:         m.newCode(),
			Members:      []model.TeamMember{leader},
			Roster:       roster,
			MinSize:      event.MinTeamSize,
			MaxSize:      event.MaxTeamSize,
			CreatedAt:    m.clock.Now(),
		}
		err := m.teams.Create(ctx, team)
		if errors.Is(err, model.ErrCodeCollision) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return team, nil
	}
	return nil, fmt.Errorf("create team: code generation kept colliding")
}

// JoinTeam appends the user to the team matching the join code. The team
// row is locked for the duration of the check-then-append, so concurrent
// joins can never push the member list past MaxSize.
func (m *TeamManager) JoinTeam(ctx context.Context, code string, member model.TeamMember) (*model.Team, error) {
	var joined *model.Team
	err := m.teams.WithTx(ctx, func(ctx context.Context) error {
		team, err := m.teams.GetByCodeForUpdate(ctx, code)
		if err != nil {
			return err
		}
		if len(team.Members) >= team.MaxSize {
			return model.ErrTeamFull
		}
		onTeam, err := m.teams.HasMembership(ctx, team.EventID, member.UserID)
		if err != nil {
			return err
		}
		if onTeam {
			return model.ErrAlreadyOnTeam
		}

		if member.Role == "" {
			member.Role = "member"
		}
		member.JoinedAt = m.clock.Now()
		if err := m.teams.AddMember(ctx, team.ID, team.EventID, member, len(team.Members)); err != nil {
			return err
		}
		team.Members = append(team.Members, member)
		joined = team
		return nil
	})
	if err != nil {
		return nil, err
	}
	return joined, nil
}

// Leave removes a member from a team. The leader (member 0) is never
// removed; disbanding the team is the only way a leader exits.
func (m *TeamManager) Leave(ctx context.Context, teamID, userID string) error {
	team, err := m.teams.GetByID(ctx, teamID)
	if err != nil {
		return err
	}
	if team.LeaderUserID == userID {
		return nil
	}
	return m.teams.RemoveMember(ctx, teamID, userID)
}

// Disband deletes the team and its memberships. Used to roll back a
// create-team registration whose capacity reservation failed.
func (m *TeamManager) Disband(ctx context.Context, teamID string) error {
	return m.teams.Delete(ctx, teamID)
}

// Team returns a team by id.
func (m *TeamManager) Team(ctx context.Context, id string) (*model.Team, error) {
	return m.teams.GetByID(ctx, id)
}

// Underfilled returns the event's teams still below their minimum size.
func (m *TeamManager) Underfilled(ctx context.Context, eventID string) ([]model.Team, error) {
	return m.teams.ListUnderfilled(ctx, eventID)
}

// MemberCounts returns member counts per team, for export projections.
func (m *TeamManager) MemberCounts(ctx context.Context, eventID string) (map[string]int, error) {
	return m.teams.MemberCounts(ctx, eventID)
}
