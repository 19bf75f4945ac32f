package membership

import (
	"context"
	"errors"

	"studygroup-service/internal/apperrors"
	"studygroup-service/internal/models"
)

// GroupFinder loads a group with its member ids. It returns an error
// wrapping apperrors.ErrNotFound when the group does not exist.
type GroupFinder interface {
	GetGroup(ctx context.Context, groupID string) (models.Group, error)
}

// IsMember reports whether userID is the group's leader or one of its members.
// Ids are compared in normalized form.
func IsMember(group models.Group, userID string) bool {
	if models.SameID(group.LeaderID, userID) {
		return true
	}
	for _, memberID := range group.MemberIDs {
		if models.SameID(memberID, userID) {
			return true
		}
	}
	return false
}

// IsLeader reports whether userID leads the group.
func IsLeader(group models.Group, userID string) bool {
	return models.SameID(group.LeaderID, userID)
}

// Authorize loads the group and checks that userID belongs to it.
// A missing group is NotFound, a non-member is Forbidden.
func Authorize(ctx context.Context, finder GroupFinder, groupID, userID string) (models.Group, error) {
	group, err := finder.GetGroup(ctx, groupID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return models.Group{}, apperrors.NotFound("group not found")
		}
		return models.Group{}, err
	}
	if !IsMember(group, userID) {
		return models.Group{}, apperrors.Forbidden("you are not a member of this study group")
	}
	return group, nil
}
