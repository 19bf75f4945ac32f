package repositories

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"studygroup-service/internal/models"
)

// MongoMessageStore keeps each message as a document carrying its readBy array.
// Arrival order comes from a per-group counter document.
type MongoMessageStore struct {
	messages *mongo.Collection
	counters *mongo.Collection
}

// NewMongoMessageStore constructs a MongoMessageStore on db.
func NewMongoMessageStore(db *mongo.Database) *MongoMessageStore {
	return &MongoMessageStore{
		messages: db.Collection("messages"),
		counters: db.Collection("message_counters"),
	}
}

type mongoMessage struct {
	ID        string    `bson:"_id"`
	GroupID   string    `bson:"group"`
	SenderID  string    `bson:"sender,omitempty"`
	Content   string    `bson:"message"`
	ReadBy    []string  `bson:"readBy"`
	Seq       int64     `bson:"seq"`
	CreatedAt time.Time `bson:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

func (d mongoMessage) toModel() models.Message {
	readBy := d.ReadBy
	if readBy == nil {
		readBy = []string{}
	}
	return models.Message{
		ID:        d.ID,
		GroupID:   d.GroupID,
		SenderID:  d.SenderID,
		Content:   d.Content,
		ReadBy:    readBy,
		Seq:       d.Seq,
		CreatedAt: d.CreatedAt,
	}
}

// EnsureIndexes creates the indexes the aggregations rely on.
func (s *MongoMessageStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.messages.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "group", Value: 1}, {Key: "createdAt", Value: -1}, {Key: "seq", Value: -1}}},
		{Keys: bson.D{{Key: "group", Value: 1}, {Key: "readBy", Value: 1}}},
	})
	return err
}

func (s *MongoMessageStore) nextSeq(ctx context.Context, groupID string) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	err := s.counters.FindOneAndUpdate(ctx, bson.M{"_id": groupID}, bson.M{"$inc": bson.M{"seq": 1}}, opts).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("next message seq: %w", err)
	}
	return counter.Seq, nil
}

func (s *MongoMessageStore) Append(ctx context.Context, groupID, senderID, content string) (models.Message, error) {
	seq, err := s.nextSeq(ctx, groupID)
	if err != nil {
		return models.Message{}, err
	}
	now := time.Now().UTC()
	doc := mongoMessage{
		ID:        models.NewID(),
		GroupID:   groupID,
		SenderID:  senderID,
		Content:   content,
		ReadBy:    []string{senderID},
		Seq:       seq,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := s.messages.InsertOne(ctx, doc); err != nil {
		return models.Message{}, fmt.Errorf("insert message: %w", err)
	}
	return doc.toModel(), nil
}

func (s *MongoMessageStore) MarkRead(ctx context.Context, groupID, userID string) error {
	_, err := s.messages.UpdateMany(ctx,
		bson.M{"group": groupID, "readBy": bson.M{"$ne": userID}},
		bson.M{"$addToSet": bson.M{"readBy": userID}, "$currentDate": bson.M{"updatedAt": true}},
	)
	return err
}

func (s *MongoMessageStore) ListByGroup(ctx context.Context, groupID string) ([]models.Message, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "seq", Value: 1}})
	cur, err := s.messages.Find(ctx, bson.M{"group": groupID}, opts)
	if err != nil {
		return nil, err
	}
	var docs []mongoMessage
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	msgs := make([]models.Message, 0, len(docs))
	for _, d := range docs {
		msgs = append(msgs, d.toModel())
	}
	return msgs, nil
}

func (s *MongoMessageStore) UnreadCounts(ctx context.Context, userID string, groupIDs []string) (map[string]int, error) {
	counts := map[string]int{}
	if len(groupIDs) == 0 {
		return counts, nil
	}
	cur, err := s.messages.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"group": bson.M{"$in": groupIDs}, "readBy": bson.M{"$ne": userID}}}},
		{{Key: "$group", Value: bson.M{"_id": "$group", "count": bson.M{"$sum": 1}}}},
	})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var row struct {
			GroupID string `bson:"_id"`
			Count   int    `bson:"count"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		if row.Count > 0 {
			counts[row.GroupID] = row.Count
		}
	}
	return counts, cur.Err()
}

func (s *MongoMessageStore) LastMessages(ctx context.Context, groupIDs []string) ([]models.GroupLastMessage, error) {
	if len(groupIDs) == 0 {
		return []models.GroupLastMessage{}, nil
	}
	cur, err := s.messages.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"group": bson.M{"$in": groupIDs}}}},
		{{Key: "$sort", Value: bson.D{{Key: "createdAt", Value: -1}, {Key: "seq", Value: -1}}}},
		{{Key: "$group", Value: bson.M{
			"_id":         "$group",
			"lastMessage": bson.M{"$first": "$message"},
			"lastAt":      bson.M{"$first": "$createdAt"},
			"lastSender":  bson.M{"$first": "$sender"},
		}}},
	})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	result := make([]models.GroupLastMessage, 0, len(groupIDs))
	for cur.Next(ctx) {
		var row struct {
			GroupID     string    `bson:"_id"`
			LastMessage string    `bson:"lastMessage"`
			LastAt      time.Time `bson:"lastAt"`
			LastSender  *string   `bson:"lastSender"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		last := models.GroupLastMessage{GroupID: row.GroupID, Content: row.LastMessage, CreatedAt: row.LastAt}
		if row.LastSender != nil && *row.LastSender != "" {
			last.SenderID = row.LastSender
		}
		result = append(result, last)
	}
	return result, cur.Err()
}

func (s *MongoMessageStore) DeleteByGroup(ctx context.Context, groupID string) (int64, error) {
	res, err := s.messages.DeleteMany(ctx, bson.M{"group": groupID})
	if err != nil {
		return 0, err
	}
	if _, err := s.counters.DeleteOne(ctx, bson.M{"_id": groupID}); err != nil {
		return res.DeletedCount, fmt.Errorf("delete message counter: %w", err)
	}
	return res.DeletedCount, nil
}

var (
	_ MessageStore = (*PostgresMessageStore)(nil)
	_ MessageStore = (*MongoMessageStore)(nil)
	_ MessageStore = (*MemoryMessageStore)(nil)
)
