package repositories

import (
	"errors"

	"github.com/lib/pq"

	"studygroup-service/internal/apperrors"
)

var (
	ErrGroupNotFound   = apperrors.NotFound("group not found")
	ErrGroupNameTaken  = apperrors.Conflict("a study group with this name already exists")
	ErrUserNotFound    = apperrors.NotFound("user not found")
	ErrUserExists      = apperrors.Conflict("email, student id or phone number is already registered")
	ErrCommentNotFound = apperrors.NotFound("comment not found")
)

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
