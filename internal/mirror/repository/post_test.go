package repository

import (
	"context"
	"strings"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"mirror_bot/internal/mirror/models"
)

func postNamespace(mt *mtest.T) string {
	return mt.DB.Name() + "." + mt.Coll.Name()
}

func postDoc(id, channelID primitive.ObjectID, msgID int64, historical bool, now time.Time) bson.D {
	return bson.D{
		{Key: "_id", Value: id},
		{Key: "channel_id", Value: channelID},
		{Key: "telegram_msg_id", Value: msgID},
		{Key: "original_text", Value: "hello"},
		{Key: "status", Value: models.StatusPending},
		{Key: "is_historical", Value: historical},
		{Key: "created_at", Value: now},
		{Key: "updated_at", Value: now},
	}
}

func TestMongoPostRepositoryUpsert(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("created", func(mt *mtest.T) {
		repo := &MongoPostRepository{collection: mt.Coll}
		channelID := primitive.NewObjectID()
		postID := primitive.NewObjectID()
		now := time.Now().UTC().Truncate(time.Second)

		mt.AddMockResponses(
			mtest.CreateSuccessResponse(
				bson.E{Key: "n", Value: 1},
				bson.E{Key: "nModified", Value: 0},
				bson.E{Key: "upserted", Value: bson.A{
					bson.D{{Key: "index", Value: 0}, {Key: "_id", Value: postID}},
				}},
			),
			mtest.CreateCursorResponse(0, postNamespace(mt), mtest.FirstBatch,
				postDoc(postID, channelID, 42, true, now)),
		)

		post, created, err := repo.Upsert(context.Background(), PostUpsert{
			ChannelID:     channelID,
			TelegramMsgID: 42,
			OriginalText:  "hello",
			CreatedAt:     now,
			IsHistorical:  true,
		})
		if err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
		if !created {
			t.Fatalf("expected created=true for a fresh upsert")
		}
		if post.TelegramMsgID != 42 || !post.IsHistorical {
			t.Fatalf("unexpected post: %+v", post)
		}
	})

	mt.Run("existing", func(mt *mtest.T) {
		repo := &MongoPostRepository{collection: mt.Coll}
		channelID := primitive.NewObjectID()
		postID := primitive.NewObjectID()
		now := time.Now().UTC().Truncate(time.Second)

		mt.AddMockResponses(
			mtest.CreateSuccessResponse(
				bson.E{Key: "n", Value: 1},
				bson.E{Key: "nModified", Value: 1},
			),
			mtest.CreateCursorResponse(0, postNamespace(mt), mtest.FirstBatch,
				postDoc(postID, channelID, 42, false, now)),
		)

		post, created, err := repo.Upsert(context.Background(), PostUpsert{
			ChannelID:     channelID,
			TelegramMsgID: 42,
			OriginalText:  "other text, ignored by the upsert",
			CreatedAt:     now,
			IsHistorical:  false,
		})
		if err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
		if created {
			t.Fatalf("expected created=false for an existing post")
		}
		if post.OriginalText != "hello" {
			t.Fatalf("existing content must not be overwritten, got %q", post.OriginalText)
		}
	})

	mt.Run("write error", func(mt *mtest.T) {
		repo := &MongoPostRepository{collection: mt.Coll}
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    11000,
			Name:    "DuplicateKey",
			Message: "mock duplicate",
		}))

		_, _, err := repo.Upsert(context.Background(), PostUpsert{
			ChannelID:     primitive.NewObjectID(),
			TelegramMsgID: 1,
			OriginalText:  "x",
		})
		if err == nil {
			t.Fatalf("expected error but got nil")
		}
		if !strings.Contains(err.Error(), "failed to upsert post") {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

func TestMongoPostRepositoryMaxTelegramMsgID(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("found", func(mt *mtest.T) {
		repo := &MongoPostRepository{collection: mt.Coll}
		channelID := primitive.NewObjectID()
		now := time.Now().UTC().Truncate(time.Second)

		mt.AddMockResponses(mtest.CreateCursorResponse(0, postNamespace(mt), mtest.FirstBatch,
			postDoc(primitive.NewObjectID(), channelID, 99, false, now)))

		max, ok, err := repo.MaxTelegramMsgID(context.Background(), channelID)
		if err != nil {
			t.Fatalf("MaxTelegramMsgID failed: %v", err)
		}
		if !ok || max != 99 {
			t.Fatalf("expected (99, true), got (%d, %v)", max, ok)
		}
	})

	mt.Run("empty channel", func(mt *mtest.T) {
		repo := &MongoPostRepository{collection: mt.Coll}
		mt.AddMockResponses(mtest.CreateCursorResponse(0, postNamespace(mt), mtest.FirstBatch))

		_, ok, err := repo.MaxTelegramMsgID(context.Background(), primitive.NewObjectID())
		if err != nil {
			t.Fatalf("MaxTelegramMsgID failed: %v", err)
		}
		if ok {
			t.Fatalf("expected ok=false for empty channel")
		}
	})
}

func TestMongoPostRepositoryUpdateStatus(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("success", func(mt *mtest.T) {
		repo := &MongoPostRepository{collection: mt.Coll}
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 1},
		))

		if err := repo.UpdateStatus(context.Background(), primitive.NewObjectID(), models.StatusPublished); err != nil {
			t.Fatalf("UpdateStatus failed: %v", err)
		}
	})

	mt.Run("not found", func(mt *mtest.T) {
		repo := &MongoPostRepository{collection: mt.Coll}
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 0},
			bson.E{Key: "nModified", Value: 0},
		))

		err := repo.UpdateStatus(context.Background(), primitive.NewObjectID(), models.StatusApproved)
		if err == nil {
			t.Fatalf("expected error but got nil")
		}
		if !strings.Contains(err.Error(), "not found") {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

func TestMongoPostRepositoryUpdateTranslation(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("success", func(mt *mtest.T) {
		repo := &MongoPostRepository{collection: mt.Coll}
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 1},
		))

		if err := repo.UpdateTranslation(context.Background(), primitive.NewObjectID(), "translated"); err != nil {
			t.Fatalf("UpdateTranslation failed: %v", err)
		}
	})

	mt.Run("update error", func(mt *mtest.T) {
		repo := &MongoPostRepository{collection: mt.Coll}
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    123,
			Name:    "WriteError",
			Message: "mock write failure",
		}))

		err := repo.UpdateTranslation(context.Background(), primitive.NewObjectID(), "translated")
		if err == nil {
			t.Fatalf("expected error but got nil")
		}
		if !strings.Contains(err.Error(), "failed to update translation") {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}
