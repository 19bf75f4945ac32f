package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"studygroup-service/internal/models"
)

// GroupRepository abstracts group persistence.
type GroupRepository interface {
	CreateGroup(ctx context.Context, leaderID, name, description, imagePath string) (models.Group, error)
	ListGroups(ctx context.Context) ([]models.Group, error)
	ListGroupsForUser(ctx context.Context, userID string) ([]models.Group, error)
	GetGroup(ctx context.Context, groupID string) (models.Group, error)
	UpdateGroup(ctx context.Context, groupID, name, description string) (models.Group, error)
	AddMember(ctx context.Context, groupID, userID string) error
	RemoveAllMembers(ctx context.Context, groupID string) (int64, error)
	DeleteGroup(ctx context.Context, groupID string) error
}

// GroupRepo is a sqlx implementation of GroupRepository.
type GroupRepo struct {
	db *sqlx.DB
}

// NewGroupRepo constructs a GroupRepo.
func NewGroupRepo(db *sqlx.DB) *GroupRepo {
	return &GroupRepo{db: db}
}

const groupColumns = `id, name, description, image_path, leader_id, created_at, updated_at`

// CreateGroup creates a group led by leaderID, who is also its first member.
func (r *GroupRepo) CreateGroup(ctx context.Context, leaderID, name, description, imagePath string) (models.Group, error) {
	if imagePath == "" {
		imagePath = models.DefaultGroupImage
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Group{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var group models.Group
	err = tx.QueryRowxContext(ctx, `INSERT INTO groups (id, name, description, image_path, leader_id)
        VALUES ($1, $2, $3, $4, $5) RETURNING `+groupColumns,
		models.NewID(), name, description, imagePath, leaderID).StructScan(&group)
	if err != nil {
		if isUniqueViolation(err) {
			return models.Group{}, ErrGroupNameTaken
		}
		return models.Group{}, fmt.Errorf("insert group: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `INSERT INTO group_members (group_id, user_id) VALUES ($1, $2)`, group.ID, leaderID); err != nil {
		return models.Group{}, fmt.Errorf("insert leader membership: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return models.Group{}, err
	}
	group.MemberIDs = []string{leaderID}
	return group, nil
}

// ListGroups returns every group, newest first.
func (r *GroupRepo) ListGroups(ctx context.Context) ([]models.Group, error) {
	groups := []models.Group{}
	if err := r.db.SelectContext(ctx, &groups, `SELECT `+groupColumns+` FROM groups ORDER BY created_at DESC`); err != nil {
		return nil, err
	}
	return groups, r.attachMembers(ctx, groups)
}

// ListGroupsForUser returns groups the user leads or belongs to.
func (r *GroupRepo) ListGroupsForUser(ctx context.Context, userID string) ([]models.Group, error) {
	groups := []models.Group{}
	err := r.db.SelectContext(ctx, &groups, `SELECT `+groupColumns+` FROM groups g
        WHERE g.leader_id = $1 OR EXISTS (SELECT 1 FROM group_members gm WHERE gm.group_id = g.id AND gm.user_id = $1)
        ORDER BY g.created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	return groups, r.attachMembers(ctx, groups)
}

// GetGroup fetches a single group with its member ids.
func (r *GroupRepo) GetGroup(ctx context.Context, groupID string) (models.Group, error) {
	var group models.Group
	err := r.db.GetContext(ctx, &group, `SELECT `+groupColumns+` FROM groups WHERE id=$1`, groupID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Group{}, ErrGroupNotFound
	}
	if err != nil {
		return models.Group{}, err
	}
	groups := []models.Group{group}
	if err := r.attachMembers(ctx, groups); err != nil {
		return models.Group{}, err
	}
	return groups[0], nil
}

// UpdateGroup renames a group or changes its description.
func (r *GroupRepo) UpdateGroup(ctx context.Context, groupID, name, description string) (models.Group, error) {
	var group models.Group
	err := r.db.QueryRowxContext(ctx, `UPDATE groups SET name=$2, description=$3, updated_at=NOW()
        WHERE id=$1 RETURNING `+groupColumns, groupID, name, description).StructScan(&group)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Group{}, ErrGroupNotFound
	}
	if err != nil {
		if isUniqueViolation(err) {
			return models.Group{}, ErrGroupNameTaken
		}
		return models.Group{}, err
	}
	groups := []models.Group{group}
	if err := r.attachMembers(ctx, groups); err != nil {
		return models.Group{}, err
	}
	return groups[0], nil
}

// AddMember adds userID to the group. Adding an existing member is a no-op.
func (r *GroupRepo) AddMember(ctx context.Context, groupID, userID string) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO group_members (group_id, user_id) VALUES ($1, $2)
        ON CONFLICT (group_id, user_id) DO NOTHING`, groupID, userID)
	return err
}

// RemoveAllMembers drops every user reference to the group.
func (r *GroupRepo) RemoveAllMembers(ctx context.Context, groupID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM group_members WHERE group_id=$1`, groupID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteGroup removes the group row itself.
func (r *GroupRepo) DeleteGroup(ctx context.Context, groupID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM groups WHERE id=$1`, groupID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrGroupNotFound
	}
	return nil
}

func (r *GroupRepo) attachMembers(ctx context.Context, groups []models.Group) error {
	if len(groups) == 0 {
		return nil
	}
	ids := make([]string, 0, len(groups))
	index := make(map[string]int, len(groups))
	for i, g := range groups {
		ids = append(ids, g.ID)
		index[g.ID] = i
		groups[i].MemberIDs = []string{}
	}

	rows, err := r.db.QueryxContext(ctx, `SELECT group_id, user_id FROM group_members
        WHERE group_id = ANY($1::uuid[]) ORDER BY joined_at ASC`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("load members: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var groupID, userID string
		if err := rows.Scan(&groupID, &userID); err != nil {
			return err
		}
		if i, ok := index[groupID]; ok {
			groups[i].MemberIDs = append(groups[i].MemberIDs, userID)
		}
	}
	return rows.Err()
}
