package storage

import (
	"context"
	"time"

	"IMGateway/tools/ids"

	pkgerr "github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	collRooms         = "rooms"
	collRoomMembers   = "room_members"
	collFriends       = "friends"
	collBlocks        = "blocks"
	collMessages      = "messages"
	collReactions     = "reactions"
	collUsers         = "users"
	collNotifications = "notifications"
)

// Mongo implements Store on a mongo database.
type Mongo struct {
	db *mongo.Database
}

func NewMongo(ctx context.Context, uri, database string) (*Mongo, error) {
	cli, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, pkgerr.Wrap(err, "mongo connect")
	}
	if err := cli.Ping(ctx, nil); err != nil {
		return nil, pkgerr.Wrap(err, "mongo ping")
	}
	m := &Mongo{db: cli.Database(database)}
	if err := m.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *Mongo) ensureIndexes(ctx context.Context) error {
	unique := options.Index().SetUnique(true)
	_, err := s.db.Collection(collRoomMembers).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "room_id", Value: 1}, {Key: "user_id", Value: 1}},
		Options: unique,
	})
	if err != nil {
		return pkgerr.Wrap(err, "room_members index")
	}
	// Uniqueness here is what makes reaction add idempotent.
	_, err = s.db.Collection(collReactions).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "message_id", Value: 1}, {Key: "user_id", Value: 1}, {Key: "emoji", Value: 1}},
		Options: unique,
	})
	return pkgerr.Wrap(err, "reactions index")
}

func (s *Mongo) Room(ctx context.Context, roomID string) (*Room, error) {
	var r Room
	err := s.db.Collection(collRooms).FindOne(ctx, bson.M{"_id": roomID}).Decode(&r)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, pkgerr.Wrap(err, "find room")
	}
	return &r, nil
}

func (s *Mongo) Membership(ctx context.Context, roomID, userID string) (*Membership, error) {
	var m Membership
	err := s.db.Collection(collRoomMembers).
		FindOne(ctx, bson.M{"room_id": roomID, "user_id": userID}).Decode(&m)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, pkgerr.Wrap(err, "find membership")
	}
	return &m, nil
}

func (s *Mongo) RoomMemberIDs(ctx context.Context, roomID string) ([]string, error) {
	cur, err := s.db.Collection(collRoomMembers).Find(ctx, bson.M{"room_id": roomID})
	if err != nil {
		return nil, pkgerr.Wrap(err, "list members")
	}
	defer cur.Close(ctx)

	var out []string
	for cur.Next(ctx) {
		var m Membership
		if err := cur.Decode(&m); err != nil {
			return nil, pkgerr.Wrap(err, "decode membership")
		}
		out = append(out, m.UserID)
	}
	return out, cur.Err()
}

func (s *Mongo) Friends(ctx context.Context, userID string) ([]string, error) {
	cur, err := s.db.Collection(collFriends).
		Find(ctx, bson.M{"user_id": userID, "accepted": true})
	if err != nil {
		return nil, pkgerr.Wrap(err, "list friends")
	}
	defer cur.Close(ctx)

	var out []string
	for cur.Next(ctx) {
		var doc struct {
			FriendID string `bson:"friend_id"`
		}
		if err := cur.Decode(&doc); err != nil {
			return nil, pkgerr.Wrap(err, "decode friend")
		}
		out = append(out, doc.FriendID)
	}
	return out, cur.Err()
}

func (s *Mongo) IsBlocked(ctx context.Context, ownerID, otherID string) (bool, error) {
	err := s.db.Collection(collBlocks).
		FindOne(ctx, bson.M{"owner_id": ownerID, "blocked_id": otherID}).Err()
	if err == mongo.ErrNoDocuments {
		return false, nil
	}
	if err != nil {
		return false, pkgerr.Wrap(err, "find block")
	}
	return true, nil
}

func (s *Mongo) SaveMessage(ctx context.Context, msg *Message) error {
	if msg.ID == "" {
		msg.ID = ids.GenerateString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	_, err := s.db.Collection(collMessages).InsertOne(ctx, msg)
	return pkgerr.Wrap(err, "insert message")
}

func (s *Mongo) Message(ctx context.Context, id string) (*Message, error) {
	var m Message
	err := s.db.Collection(collMessages).FindOne(ctx, bson.M{"_id": id}).Decode(&m)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, pkgerr.Wrap(err, "find message")
	}
	return &m, nil
}

func (s *Mongo) UpdateMessageContent(ctx context.Context, id, content string, editedAt time.Time) error {
	res, err := s.db.Collection(collMessages).UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"content": content, "edited_at": editedAt}},
	)
	if err != nil {
		return pkgerr.Wrap(err, "update message")
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Mongo) SoftDeleteMessage(ctx context.Context, id string) error {
	res, err := s.db.Collection(collMessages).UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"deleted": true}},
	)
	if err != nil {
		return pkgerr.Wrap(err, "soft delete message")
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Mongo) AddReaction(ctx context.Context, messageID, userID, emoji string) error {
	filter := bson.M{"message_id": messageID, "user_id": userID, "emoji": emoji}
	_, err := s.db.Collection(collReactions).UpdateOne(ctx,
		filter,
		bson.M{"$setOnInsert": bson.M{
			"message_id": messageID,
			"user_id":    userID,
			"emoji":      emoji,
			"created_at": time.Now(),
		}},
		options.Update().SetUpsert(true),
	)
	return pkgerr.Wrap(err, "add reaction")
}

func (s *Mongo) RemoveReaction(ctx context.Context, messageID, userID, emoji string) error {
	_, err := s.db.Collection(collReactions).
		DeleteOne(ctx, bson.M{"message_id": messageID, "user_id": userID, "emoji": emoji})
	return pkgerr.Wrap(err, "remove reaction")
}

func (s *Mongo) ReactionCounts(ctx context.Context, messageID string) (map[string]int, error) {
	cur, err := s.db.Collection(collReactions).Find(ctx, bson.M{"message_id": messageID})
	if err != nil {
		return nil, pkgerr.Wrap(err, "list reactions")
	}
	defer cur.Close(ctx)

	out := make(map[string]int)
	for cur.Next(ctx) {
		var doc struct {
			Emoji string `bson:"emoji"`
		}
		if err := cur.Decode(&doc); err != nil {
			return nil, pkgerr.Wrap(err, "decode reaction")
		}
		out[doc.Emoji]++
	}
	return out, cur.Err()
}

func (s *Mongo) UpdateUserPresence(ctx context.Context, userID, status string, lastSeen time.Time) error {
	_, err := s.db.Collection(collUsers).UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$set": bson.M{"status": status, "last_seen": lastSeen}},
		options.Update().SetUpsert(true),
	)
	return pkgerr.Wrap(err, "update user presence")
}

func (s *Mongo) MarkNotificationsRead(ctx context.Context, userID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.db.Collection(collNotifications).UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": ids}, "user_id": userID},
		bson.M{"$set": bson.M{"read": true, "read_at": time.Now()}},
	)
	return pkgerr.Wrap(err, "mark notifications read")
}
