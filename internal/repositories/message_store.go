package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"studygroup-service/internal/models"
)

// MessageStore is the append-only group chat log with per-message read-by sets.
type MessageStore interface {
	// Append stores a message whose read-by set is exactly {senderID}.
	Append(ctx context.Context, groupID, senderID, content string) (models.Message, error)
	// MarkRead adds userID to the read-by set of every message currently in the group.
	MarkRead(ctx context.Context, groupID, userID string) error
	// ListByGroup returns the group's messages oldest first.
	ListByGroup(ctx context.Context, groupID string) ([]models.Message, error)
	// UnreadCounts counts, per group, messages whose read-by set lacks userID.
	// Groups without unread messages are absent from the result.
	UnreadCounts(ctx context.Context, userID string, groupIDs []string) (map[string]int, error)
	// LastMessages returns the newest message of each group that has one.
	LastMessages(ctx context.Context, groupIDs []string) ([]models.GroupLastMessage, error)
	// DeleteByGroup removes every message of the group.
	DeleteByGroup(ctx context.Context, groupID string) (int64, error)
}

// PostgresMessageStore keeps messages in group_messages and read markers in message_reads.
type PostgresMessageStore struct {
	db *sqlx.DB
}

// NewPostgresMessageStore constructs a PostgresMessageStore.
func NewPostgresMessageStore(db *sqlx.DB) *PostgresMessageStore {
	return &PostgresMessageStore{db: db}
}

type messageRow struct {
	ID        string         `db:"id"`
	Seq       int64          `db:"seq"`
	GroupID   string         `db:"group_id"`
	SenderID  sql.NullString `db:"sender_id"`
	Content   string         `db:"content"`
	CreatedAt time.Time      `db:"created_at"`
	ReadBy    pq.StringArray `db:"read_by"`
}

func (row messageRow) toModel() models.Message {
	readBy := []string(row.ReadBy)
	if readBy == nil {
		readBy = []string{}
	}
	return models.Message{
		ID:        row.ID,
		GroupID:   row.GroupID,
		SenderID:  row.SenderID.String,
		Content:   row.Content,
		ReadBy:    readBy,
		Seq:       row.Seq,
		CreatedAt: row.CreatedAt,
	}
}

// Append inserts the message and its sender's read marker in one transaction.
func (s *PostgresMessageStore) Append(ctx context.Context, groupID, senderID, content string) (models.Message, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Message{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var row messageRow
	err = tx.QueryRowxContext(ctx, `INSERT INTO group_messages (id, group_id, sender_id, content)
        VALUES ($1, $2, $3, $4) RETURNING id, seq, group_id, sender_id, content, created_at`,
		models.NewID(), groupID, senderID, content).
		Scan(&row.ID, &row.Seq, &row.GroupID, &row.SenderID, &row.Content, &row.CreatedAt)
	if err != nil {
		return models.Message{}, fmt.Errorf("insert message: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `INSERT INTO message_reads (message_id, user_id) VALUES ($1, $2)`, row.ID, senderID); err != nil {
		return models.Message{}, fmt.Errorf("insert sender read marker: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return models.Message{}, err
	}

	row.ReadBy = pq.StringArray{senderID}
	return row.toModel(), nil
}

// MarkRead inserts a read marker for every existing message of the group; existing markers are kept.
func (s *PostgresMessageStore) MarkRead(ctx context.Context, groupID, userID string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO message_reads (message_id, user_id)
        SELECT id, $2 FROM group_messages WHERE group_id=$1
        ON CONFLICT (message_id, user_id) DO NOTHING`, groupID, userID)
	return err
}

// ListByGroup returns messages by creation time, ties broken by arrival order.
func (s *PostgresMessageStore) ListByGroup(ctx context.Context, groupID string) ([]models.Message, error) {
	var rows []messageRow
	err := s.db.SelectContext(ctx, &rows, `SELECT m.id, m.seq, m.group_id, m.sender_id, m.content, m.created_at,
            COALESCE(array_agg(r.user_id::text) FILTER (WHERE r.user_id IS NOT NULL), '{}') AS read_by
        FROM group_messages m
        LEFT JOIN message_reads r ON r.message_id = m.id
        WHERE m.group_id=$1
        GROUP BY m.id
        ORDER BY m.created_at ASC, m.seq ASC`, groupID)
	if err != nil {
		return nil, err
	}
	msgs := make([]models.Message, 0, len(rows))
	for _, row := range rows {
		msgs = append(msgs, row.toModel())
	}
	return msgs, nil
}

// UnreadCounts groups the user's unread messages by group.
func (s *PostgresMessageStore) UnreadCounts(ctx context.Context, userID string, groupIDs []string) (map[string]int, error) {
	counts := map[string]int{}
	if len(groupIDs) == 0 {
		return counts, nil
	}
	rows, err := s.db.QueryxContext(ctx, `SELECT m.group_id, COUNT(*) FROM group_messages m
        WHERE m.group_id = ANY($1::uuid[])
        AND NOT EXISTS (SELECT 1 FROM message_reads r WHERE r.message_id = m.id AND r.user_id = $2)
        GROUP BY m.group_id`, pq.Array(groupIDs), userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var groupID string
		var count int
		if err := rows.Scan(&groupID, &count); err != nil {
			return nil, err
		}
		if count > 0 {
			counts[groupID] = count
		}
	}
	return counts, rows.Err()
}

// LastMessages picks the newest message per group.
func (s *PostgresMessageStore) LastMessages(ctx context.Context, groupIDs []string) ([]models.GroupLastMessage, error) {
	if len(groupIDs) == 0 {
		return []models.GroupLastMessage{}, nil
	}
	rows, err := s.db.QueryxContext(ctx, `SELECT DISTINCT ON (group_id) group_id, content, created_at, sender_id
        FROM group_messages
        WHERE group_id = ANY($1::uuid[])
        ORDER BY group_id, created_at DESC, seq DESC`, pq.Array(groupIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]models.GroupLastMessage, 0, len(groupIDs))
	for rows.Next() {
		var last models.GroupLastMessage
		var sender sql.NullString
		if err := rows.Scan(&last.GroupID, &last.Content, &last.CreatedAt, &sender); err != nil {
			return nil, err
		}
		if sender.Valid && sender.String != "" {
			id := sender.String
			last.SenderID = &id
		}
		result = append(result, last)
	}
	return result, rows.Err()
}

// DeleteByGroup removes the group's messages; their read markers cascade.
func (s *PostgresMessageStore) DeleteByGroup(ctx context.Context, groupID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM group_messages WHERE group_id=$1`, groupID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
