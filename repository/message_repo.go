package repository

import (
	"context"
	"log"
	"time"

	"github.com/neproger/docbot/database"
	"github.com/neproger/docbot/types"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type messageDoc struct {
	ChatID    string        `bson:"chat_id"`
	Seq       int64         `bson:"seq"`
	CreatedAt int64         `bson:"created_at"`
	Message   types.Message `bson:"message"`
}

type messageRepo struct {
	collection *mongo.Collection
}

func NewMessageRepo(db *mongo.Database) database.MessageStore {
	// check if collection does not exist, create one
	collectionNames, err := db.ListCollectionNames(context.Background(), bson.D{})
	if err != nil {
		panic(err)
	}
	collectionExists := false
	for _, name := range collectionNames {
		if name == "messages" {
			collectionExists = true
			break
		}
	}
	collection := db.Collection("messages")
	if !collectionExists {
		indexes := []mongo.IndexModel{
			{
				Keys: bson.D{
					{Key: "chat_id", Value: 1},
					{Key: "seq", Value: 1},
				},
			},
		}
		_, err = collection.Indexes().CreateMany(context.Background(), indexes)
		if err != nil {
			log.Printf("Error creating indexes: %v", err)
			return nil
		}
	}

	return &messageRepo{
		collection: collection,
	}
}

func (r *messageRepo) History(ctx context.Context, chatID string) ([]types.Message, error) {
	cursor, err := r.collection.Find(ctx,
		bson.D{{Key: "chat_id", Value: chatID}},
		options.Find().SetSort(bson.D{{Key: "seq", Value: 1}}),
	)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []messageDoc
	for cursor.Next(ctx) {
		var doc messageDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}

	messages := make([]types.Message, 0, len(docs))
	for _, doc := range docs {
		messages = append(messages, doc.Message)
	}
	return messages, nil
}

func (r *messageRepo) Append(ctx context.Context, chatID string, msgs []types.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	base, err := r.collection.CountDocuments(ctx, bson.D{{Key: "chat_id", Value: chatID}})
	if err != nil {
		return err
	}
	now := time.Now().Unix()
	docs := make([]interface{}, 0, len(msgs))
	for i, msg := range msgs {
		docs = append(docs, messageDoc{
			ChatID:    chatID,
			Seq:       base + int64(i),
			CreatedAt: now,
			Message:   msg,
		})
	}
	_, err = r.collection.InsertMany(ctx, docs)
	return err
}
