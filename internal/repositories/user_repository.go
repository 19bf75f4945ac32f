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

// UserRepository abstracts user persistence.
type UserRepository interface {
	CreateUser(ctx context.Context, user models.User) (models.User, error)
	GetUser(ctx context.Context, userID string) (models.User, error)
	Exists(ctx context.Context, userID string) (bool, error)
	BulkUsers(ctx context.Context, ids []string) ([]models.UserSummary, error)
	UpdateProfile(ctx context.Context, userID, name, major, phoneNumber string) (models.User, error)
}

// UserRepo is a sqlx implementation of UserRepository.
type UserRepo struct {
	db *sqlx.DB
}

// NewUserRepo constructs a UserRepo.
func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

const userColumns = `id, name, major, phone_number, birthdate, email, student_id, password_hash, is_verified, profile_image, created_at, updated_at`

// CreateUser inserts a new account. Duplicate email, student id or phone maps to ErrUserExists.
func (r *UserRepo) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	if user.ID == "" {
		user.ID = models.NewID()
	}
	if user.ProfileImage == "" {
		user.ProfileImage = models.DefaultProfileImage
	}
	var created models.User
	err := r.db.QueryRowxContext(ctx, `INSERT INTO users
        (id, name, major, phone_number, birthdate, email, student_id, password_hash, is_verified, profile_image)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING `+userColumns,
		user.ID, user.Name, user.Major, user.PhoneNumber, user.Birthdate, user.Email, user.StudentID,
		user.PasswordHash, user.IsVerified, user.ProfileImage).StructScan(&created)
	if err != nil {
		if isUniqueViolation(err) {
			return models.User{}, ErrUserExists
		}
		return models.User{}, fmt.Errorf("insert user: %w", err)
	}
	return created, nil
}

// GetUser fetches a single user.
func (r *UserRepo) GetUser(ctx context.Context, userID string) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

// Exists reports whether a user with this id is registered.
func (r *UserRepo) Exists(ctx context.Context, userID string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM users WHERE id=$1)`, userID)
	return exists, err
}

// BulkUsers fetches public profiles for many users at once. Unknown ids are skipped.
func (r *UserRepo) BulkUsers(ctx context.Context, ids []string) ([]models.UserSummary, error) {
	if len(ids) == 0 {
		return []models.UserSummary{}, nil
	}
	var users []models.UserSummary
	err := r.db.SelectContext(ctx, &users, `SELECT id, name, major, profile_image FROM users WHERE id = ANY($1::uuid[])`, pq.Array(ids))
	return users, err
}

// UpdateProfile edits the mutable profile fields.
func (r *UserRepo) UpdateProfile(ctx context.Context, userID, name, major, phoneNumber string) (models.User, error) {
	var user models.User
	err := r.db.QueryRowxContext(ctx, `UPDATE users SET name=$2, major=$3, phone_number=$4, updated_at=NOW()
        WHERE id=$1 RETURNING `+userColumns, userID, name, major, phoneNumber).StructScan(&user)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	if err != nil {
		if isUniqueViolation(err) {
			return models.User{}, ErrUserExists
		}
		return models.User{}, err
	}
	return user, nil
}
