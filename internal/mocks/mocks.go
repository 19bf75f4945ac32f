package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"studygroup-service/internal/models"
	"studygroup-service/internal/repositories"
)

type GroupRepositoryMock struct {
	mock.Mock
}

func (m *GroupRepositoryMock) CreateGroup(ctx context.Context, leaderID, name, description, imagePath string) (models.Group, error) {
	args := m.Called(ctx, leaderID, name, description, imagePath)
	var group models.Group
	if val := args.Get(0); val != nil {
		group = val.(models.Group)
	}
	return group, args.Error(1)
}

func (m *GroupRepositoryMock) ListGroups(ctx context.Context) ([]models.Group, error) {
	args := m.Called(ctx)
	var groups []models.Group
	if val := args.Get(0); val != nil {
		groups = val.([]models.Group)
	}
	return groups, args.Error(1)
}

func (m *GroupRepositoryMock) ListGroupsForUser(ctx context.Context, userID string) ([]models.Group, error) {
	args := m.Called(ctx, userID)
	var groups []models.Group
	if val := args.Get(0); val != nil {
		groups = val.([]models.Group)
	}
	return groups, args.Error(1)
}

func (m *GroupRepositoryMock) GetGroup(ctx context.Context, groupID string) (models.Group, error) {
	args := m.Called(ctx, groupID)
	var group models.Group
	if val := args.Get(0); val != nil {
		group = val.(models.Group)
	}
	return group, args.Error(1)
}

func (m *GroupRepositoryMock) UpdateGroup(ctx context.Context, groupID, name, description string) (models.Group, error) {
	args := m.Called(ctx, groupID, name, description)
	var group models.Group
	if val := args.Get(0); val != nil {
		group = val.(models.Group)
	}
	return group, args.Error(1)
}

func (m *GroupRepositoryMock) AddMember(ctx context.Context, groupID, userID string) error {
	args := m.Called(ctx, groupID, userID)
	return args.Error(0)
}

func (m *GroupRepositoryMock) RemoveAllMembers(ctx context.Context, groupID string) (int64, error) {
	args := m.Called(ctx, groupID)
	return int64(args.Int(0)), args.Error(1)
}

func (m *GroupRepositoryMock) DeleteGroup(ctx context.Context, groupID string) error {
	args := m.Called(ctx, groupID)
	return args.Error(0)
}

type UserRepositoryMock struct {
	mock.Mock
}

func (m *UserRepositoryMock) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	args := m.Called(ctx, user)
	var created models.User
	if val := args.Get(0); val != nil {
		created = val.(models.User)
	}
	return created, args.Error(1)
}

func (m *UserRepositoryMock) GetUser(ctx context.Context, userID string) (models.User, error) {
	args := m.Called(ctx, userID)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) Exists(ctx context.Context, userID string) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

func (m *UserRepositoryMock) BulkUsers(ctx context.Context, ids []string) ([]models.UserSummary, error) {
	args := m.Called(ctx, ids)
	var users []models.UserSummary
	if val := args.Get(0); val != nil {
		users = val.([]models.UserSummary)
	}
	return users, args.Error(1)
}

func (m *UserRepositoryMock) UpdateProfile(ctx context.Context, userID, name, major, phoneNumber string) (models.User, error) {
	args := m.Called(ctx, userID, name, major, phoneNumber)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

type CommentRepositoryMock struct {
	mock.Mock
}

func (m *CommentRepositoryMock) CreateComment(ctx context.Context, groupID, commenterID, content string) (models.Comment, error) {
	args := m.Called(ctx, groupID, commenterID, content)
	var comment models.Comment
	if val := args.Get(0); val != nil {
		comment = val.(models.Comment)
	}
	return comment, args.Error(1)
}

func (m *CommentRepositoryMock) ListByGroup(ctx context.Context, groupID string) ([]models.CommentView, error) {
	args := m.Called(ctx, groupID)
	var views []models.CommentView
	if val := args.Get(0); val != nil {
		views = val.([]models.CommentView)
	}
	return views, args.Error(1)
}

func (m *CommentRepositoryMock) GetComment(ctx context.Context, commentID string) (models.Comment, error) {
	args := m.Called(ctx, commentID)
	var comment models.Comment
	if val := args.Get(0); val != nil {
		comment = val.(models.Comment)
	}
	return comment, args.Error(1)
}

func (m *CommentRepositoryMock) UpdateContent(ctx context.Context, commentID, content string) (models.Comment, error) {
	args := m.Called(ctx, commentID, content)
	var comment models.Comment
	if val := args.Get(0); val != nil {
		comment = val.(models.Comment)
	}
	return comment, args.Error(1)
}

func (m *CommentRepositoryMock) SoftDelete(ctx context.Context, commentID string) (models.Comment, error) {
	args := m.Called(ctx, commentID)
	var comment models.Comment
	if val := args.Get(0); val != nil {
		comment = val.(models.Comment)
	}
	return comment, args.Error(1)
}

func (m *CommentRepositoryMock) DeleteByGroup(ctx context.Context, groupID string) (int64, error) {
	args := m.Called(ctx, groupID)
	return int64(args.Int(0)), args.Error(1)
}

type MessageStoreMock struct {
	mock.Mock
}

func (m *MessageStoreMock) Append(ctx context.Context, groupID, senderID, content string) (models.Message, error) {
	args := m.Called(ctx, groupID, senderID, content)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageStoreMock) MarkRead(ctx context.Context, groupID, userID string) error {
	args := m.Called(ctx, groupID, userID)
	return args.Error(0)
}

func (m *MessageStoreMock) ListByGroup(ctx context.Context, groupID string) ([]models.Message, error) {
	args := m.Called(ctx, groupID)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageStoreMock) UnreadCounts(ctx context.Context, userID string, groupIDs []string) (map[string]int, error) {
	args := m.Called(ctx, userID, groupIDs)
	var counts map[string]int
	if val := args.Get(0); val != nil {
		counts = val.(map[string]int)
	}
	return counts, args.Error(1)
}

func (m *MessageStoreMock) LastMessages(ctx context.Context, groupIDs []string) ([]models.GroupLastMessage, error) {
	args := m.Called(ctx, groupIDs)
	var rows []models.GroupLastMessage
	if val := args.Get(0); val != nil {
		rows = val.([]models.GroupLastMessage)
	}
	return rows, args.Error(1)
}

func (m *MessageStoreMock) DeleteByGroup(ctx context.Context, groupID string) (int64, error) {
	args := m.Called(ctx, groupID)
	return int64(args.Int(0)), args.Error(1)
}

var (
	_ repositories.GroupRepository   = (*GroupRepositoryMock)(nil)
	_ repositories.UserRepository    = (*UserRepositoryMock)(nil)
	_ repositories.CommentRepository = (*CommentRepositoryMock)(nil)
	_ repositories.MessageStore      = (*MessageStoreMock)(nil)
)
