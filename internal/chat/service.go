package chat

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"studygroup-service/internal/apperrors"
	"studygroup-service/internal/logger"
	"studygroup-service/internal/membership"
	"studygroup-service/internal/models"
	"studygroup-service/internal/observability"
	"studygroup-service/internal/repositories"
	"studygroup-service/internal/sanitize"
)

// GroupStore is the slice of group persistence the chat core reads.
type GroupStore interface {
	GetGroup(ctx context.Context, groupID string) (models.Group, error)
	ListGroups(ctx context.Context) ([]models.Group, error)
}

// UserLookup resolves user identities for read-state queries and display names.
type UserLookup interface {
	Exists(ctx context.Context, userID string) (bool, error)
	BulkUsers(ctx context.Context, ids []string) ([]models.UserSummary, error)
}

// Service implements group messaging: sending, history, read state and
// the unread and last-message aggregations.
type Service struct {
	store  repositories.MessageStore
	groups GroupStore
	users  UserLookup
	log    zerolog.Logger
}

// NewService constructs a Service.
func NewService(store repositories.MessageStore, groups GroupStore, users UserLookup) *Service {
	return &Service{store: store, groups: groups, users: users, log: logger.Component("chat")}
}

func normalize(raw, field string) (string, error) {
	id, err := models.NormalizeID(raw)
	if err != nil {
		return "", apperrors.Validation("invalid " + field)
	}
	return id, nil
}

// Authorize checks that userID may read and post in groupID.
func (s *Service) Authorize(ctx context.Context, groupID, userID string) (models.Group, error) {
	gid, err := normalize(groupID, "groupId")
	if err != nil {
		return models.Group{}, err
	}
	uid, err := normalize(userID, "userId")
	if err != nil {
		return models.Group{}, err
	}
	return membership.Authorize(ctx, s.groups, gid, uid)
}

// Groups lists every study group.
func (s *Service) Groups(ctx context.Context) ([]models.Group, error) {
	return s.groups.ListGroups(ctx)
}

// Send stores a message from a group member and returns it with the
// sender's display name. A failed name lookup is logged and the event is
// returned without a name.
func (s *Service) Send(ctx context.Context, groupID, senderID, content string) (models.MessageEvent, error) {
	group, err := s.Authorize(ctx, groupID, senderID)
	if err != nil {
		return models.MessageEvent{}, err
	}
	sender, _ := models.NormalizeID(senderID)

	content = sanitize.Text(content)
	if content == "" {
		return models.MessageEvent{}, apperrors.Validation("message content is required")
	}

	msg, err := s.store.Append(ctx, group.ID, sender, content)
	if err != nil {
		return models.MessageEvent{}, err
	}
	observability.IncMessagesSent()

	event := models.MessageEvent{Message: msg}
	users, err := s.users.BulkUsers(ctx, []string{sender})
	if err != nil {
		s.log.Warn().Err(err).Str("sender", sender).Msg("sender lookup failed")
	} else if len(users) > 0 {
		event.SenderName = users[0].Name
	}

	_ = observability.PublishEvent(ctx, "chat.message.sent", observability.EventEnvelope{
		EventType: "chat_events",
		EventName: "message.sent",
		Payload: map[string]interface{}{
			"message_id": msg.ID,
			"group_id":   msg.GroupID,
			"sender_id":  msg.SenderID,
		},
	}, observability.BuildHeaders(ctx, ""))

	return event, nil
}

// History returns the group's messages oldest first for a member.
func (s *Service) History(ctx context.Context, groupID, userID string) ([]models.MessageView, error) {
	group, err := s.Authorize(ctx, groupID, userID)
	if err != nil {
		return nil, err
	}

	msgs, err := s.store.ListByGroup(ctx, group.ID)
	if err != nil {
		return nil, err
	}

	senderIDs := make([]string, 0)
	seen := map[string]struct{}{}
	for _, m := range msgs {
		if m.SenderID == "" {
			continue
		}
		if _, ok := seen[m.SenderID]; ok {
			continue
		}
		seen[m.SenderID] = struct{}{}
		senderIDs = append(senderIDs, m.SenderID)
	}

	profiles := map[string]models.UserSummary{}
	if len(senderIDs) > 0 {
		users, err := s.users.BulkUsers(ctx, senderIDs)
		if err != nil {
			return nil, err
		}
		for _, u := range users {
			profiles[u.ID] = u
		}
	}

	views := make([]models.MessageView, 0, len(msgs))
	for _, m := range msgs {
		view := models.MessageView{Message: m}
		if p, ok := profiles[m.SenderID]; ok {
			profile := p
			view.Sender = &profile
		}
		views = append(views, view)
	}
	return views, nil
}

// MarkRead adds a member to the read-by set of every message currently in
// the group. Messages appended afterwards stay unread.
func (s *Service) MarkRead(ctx context.Context, groupID, userID string) error {
	group, err := s.Authorize(ctx, groupID, userID)
	if err != nil {
		return err
	}
	uid, _ := models.NormalizeID(userID)
	return s.store.MarkRead(ctx, group.ID, uid)
}

// UnreadCounts sums the user's unread messages over groupIDs. A blank user,
// an empty group list or an unregistered user yields the zero summary.
func (s *Service) UnreadCounts(ctx context.Context, userID string, groupIDs []string) (models.UnreadSummary, error) {
	summary := models.UnreadSummary{Total: 0, GroupCounts: map[string]int{}}
	if strings.TrimSpace(userID) == "" || len(groupIDs) == 0 {
		return summary, nil
	}
	uid, err := normalize(userID, "userId")
	if err != nil {
		return summary, err
	}

	exists, err := s.users.Exists(ctx, uid)
	if err != nil {
		return summary, err
	}
	if !exists {
		return summary, nil
	}

	counts, err := s.store.UnreadCounts(ctx, uid, groupIDs)
	if err != nil {
		return summary, err
	}
	for groupID, n := range counts {
		if n <= 0 {
			continue
		}
		summary.GroupCounts[groupID] = n
		summary.Total += n
	}
	return summary, nil
}

// LastMessages returns the newest message of each group that has any,
// keyed by group id. IsMine is false when the sender is missing.
func (s *Service) LastMessages(ctx context.Context, userID string, groupIDs []string) (map[string]models.LastMessage, error) {
	result := map[string]models.LastMessage{}
	if len(groupIDs) == 0 {
		return result, nil
	}

	rows, err := s.store.LastMessages(ctx, groupIDs)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		result[row.GroupID] = models.LastMessage{
			Content:  row.Content,
			Time:     row.CreatedAt,
			SenderID: row.SenderID,
			IsMine:   row.SenderID != nil && models.SameID(*row.SenderID, userID),
		}
	}
	return result, nil
}

