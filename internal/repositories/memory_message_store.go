package repositories

import (
	"context"
	"sort"
	"sync"
	"time"

	"studygroup-service/internal/models"
)

// MemoryMessageStore keeps the chat log in process memory. It backs
// single-instance development runs and tests.
type MemoryMessageStore struct {
	mu      sync.RWMutex
	seq     int64
	byGroup map[string][]*memoryMessage
	now     func() time.Time
}

type memoryMessage struct {
	msg    models.Message
	readBy map[string]struct{}
}

// NewMemoryMessageStore constructs an empty MemoryMessageStore.
func NewMemoryMessageStore() *MemoryMessageStore {
	return &MemoryMessageStore{byGroup: map[string][]*memoryMessage{}, now: time.Now}
}

func (s *MemoryMessageStore) Append(ctx context.Context, groupID, senderID, content string) (models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	entry := &memoryMessage{
		msg: models.Message{
			ID:        models.NewID(),
			GroupID:   groupID,
			SenderID:  senderID,
			Content:   content,
			Seq:       s.seq,
			CreatedAt: s.now().UTC(),
		},
		readBy: map[string]struct{}{senderID: {}},
	}
	s.byGroup[groupID] = append(s.byGroup[groupID], entry)
	return entry.snapshot(), nil
}

func (s *MemoryMessageStore) MarkRead(ctx context.Context, groupID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, entry := range s.byGroup[groupID] {
		entry.readBy[userID] = struct{}{}
	}
	return nil
}

func (s *MemoryMessageStore) ListByGroup(ctx context.Context, groupID string) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.byGroup[groupID]
	msgs := make([]models.Message, 0, len(entries))
	for _, entry := range entries {
		msgs = append(msgs, entry.snapshot())
	}
	sort.SliceStable(msgs, func(i, j int) bool {
		if !msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
		}
		return msgs[i].Seq < msgs[j].Seq
	})
	return msgs, nil
}

func (s *MemoryMessageStore) UnreadCounts(ctx context.Context, userID string, groupIDs []string) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := map[string]int{}
	for _, groupID := range groupIDs {
		n := 0
		for _, entry := range s.byGroup[groupID] {
			if _, ok := entry.readBy[userID]; !ok {
				n++
			}
		}
		if n > 0 {
			counts[groupID] = n
		}
	}
	return counts, nil
}

func (s *MemoryMessageStore) LastMessages(ctx context.Context, groupIDs []string) ([]models.GroupLastMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]models.GroupLastMessage, 0, len(groupIDs))
	for _, groupID := range groupIDs {
		var latest *memoryMessage
		for _, entry := range s.byGroup[groupID] {
			if latest == nil || newer(entry.msg, latest.msg) {
				latest = entry
			}
		}
		if latest == nil {
			continue
		}
		last := models.GroupLastMessage{GroupID: groupID, Content: latest.msg.Content, CreatedAt: latest.msg.CreatedAt}
		if latest.msg.SenderID != "" {
			sender := latest.msg.SenderID
			last.SenderID = &sender
		}
		result = append(result, last)
	}
	return result, nil
}

func (s *MemoryMessageStore) DeleteByGroup(ctx context.Context, groupID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := int64(len(s.byGroup[groupID]))
	delete(s.byGroup, groupID)
	return n, nil
}

func newer(a, b models.Message) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.Seq > b.Seq
}

func (m *memoryMessage) snapshot() models.Message {
	msg := m.msg
	msg.ReadBy = make([]string, 0, len(m.readBy))
	for id := range m.readBy {
		msg.ReadBy = append(msg.ReadBy, id)
	}
	sort.Strings(msg.ReadBy)
	return msg
}
