package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"studygroup-service/internal/models"
)

// CommentRepository abstracts comment persistence.
type CommentRepository interface {
	CreateComment(ctx context.Context, groupID, commenterID, content string) (models.Comment, error)
	ListByGroup(ctx context.Context, groupID string) ([]models.CommentView, error)
	GetComment(ctx context.Context, commentID string) (models.Comment, error)
	UpdateContent(ctx context.Context, commentID, content string) (models.Comment, error)
	SoftDelete(ctx context.Context, commentID string) (models.Comment, error)
	DeleteByGroup(ctx context.Context, groupID string) (int64, error)
}

// CommentRepo is a sqlx implementation of CommentRepository.
type CommentRepo struct {
	db *sqlx.DB
}

// NewCommentRepo constructs a CommentRepo.
func NewCommentRepo(db *sqlx.DB) *CommentRepo {
	return &CommentRepo{db: db}
}

const commentColumns = `id, group_id, commenter_id, content, is_deleted, created_at, updated_at`

func (r *CommentRepo) CreateComment(ctx context.Context, groupID, commenterID, content string) (models.Comment, error) {
	var comment models.Comment
	err := r.db.QueryRowxContext(ctx, `INSERT INTO comments (id, group_id, commenter_id, content)
        VALUES ($1, $2, $3, $4) RETURNING `+commentColumns, models.NewID(), groupID, commenterID, content).StructScan(&comment)
	return comment, err
}

type commentViewRow struct {
	models.Comment
	CommenterName  sql.NullString `db:"commenter_name"`
	CommenterMajor sql.NullString `db:"commenter_major"`
	CommenterImage sql.NullString `db:"commenter_image"`
}

// ListByGroup returns the group's comments newest first, soft-deleted ones included.
func (r *CommentRepo) ListByGroup(ctx context.Context, groupID string) ([]models.CommentView, error) {
	rows := []commentViewRow{}
	err := r.db.SelectContext(ctx, &rows, `SELECT c.id, c.group_id, c.commenter_id, c.content, c.is_deleted, c.created_at, c.updated_at,
            u.name AS commenter_name, u.major AS commenter_major, u.profile_image AS commenter_image
        FROM comments c
        LEFT JOIN users u ON u.id = c.commenter_id
        WHERE c.group_id=$1
        ORDER BY c.created_at DESC`, groupID)
	if err != nil {
		return nil, err
	}
	views := make([]models.CommentView, 0, len(rows))
	for _, row := range rows {
		view := models.CommentView{Comment: row.Comment}
		if row.CommenterName.Valid {
			view.Commenter = &models.UserSummary{
				ID:           row.CommenterID,
				Name:         row.CommenterName.String,
				Major:        row.CommenterMajor.String,
				ProfileImage: row.CommenterImage.String,
			}
		}
		views = append(views, view)
	}
	return views, nil
}

func (r *CommentRepo) GetComment(ctx context.Context, commentID string) (models.Comment, error) {
	var comment models.Comment
	err := r.db.GetContext(ctx, &comment, `SELECT `+commentColumns+` FROM comments WHERE id=$1`, commentID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Comment{}, ErrCommentNotFound
	}
	return comment, err
}

func (r *CommentRepo) UpdateContent(ctx context.Context, commentID, content string) (models.Comment, error) {
	var comment models.Comment
	err := r.db.QueryRowxContext(ctx, `UPDATE comments SET content=$2, updated_at=NOW() WHERE id=$1 RETURNING `+commentColumns,
		commentID, content).StructScan(&comment)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Comment{}, ErrCommentNotFound
	}
	return comment, err
}

// SoftDelete flags the comment as deleted and keeps the row.
func (r *CommentRepo) SoftDelete(ctx context.Context, commentID string) (models.Comment, error) {
	var comment models.Comment
	err := r.db.QueryRowxContext(ctx, `UPDATE comments SET is_deleted=TRUE, updated_at=NOW() WHERE id=$1 RETURNING `+commentColumns,
		commentID).StructScan(&comment)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Comment{}, ErrCommentNotFound
	}
	return comment, err
}

// DeleteByGroup physically removes a deleted group's comments.
func (r *CommentRepo) DeleteByGroup(ctx context.Context, groupID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM comments WHERE group_id=$1`, groupID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
