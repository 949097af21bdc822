//go:build integration

package integration

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	mongodriver "go.mongodb.org/mongo-driver/mongo"

	"mirror_bot/internal/codec"
	"mirror_bot/internal/mirror/models"
	"mirror_bot/internal/mirror/repository"
	mongoclient "mirror_bot/internal/mongo"
)

func TestChannelRepositoryIntegrationFlow(t *testing.T) {
	t.Parallel()

	db := setupIntegrationDatabase(t)
	channelRepo := repository.NewMongoChannelRepository(db)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := channelRepo.EnsureIndexes(ctx); err != nil {
		t.Fatalf("failed to ensure indexes: %v", err)
	}

	channel, err := channelRepo.Upsert(ctx, "@TechNews", "Tech News", "")
	if err != nil {
		t.Fatalf("failed to upsert channel: %v", err)
	}
	if channel.Username != "technews" {
		t.Fatalf("expected normalized username, got %q", channel.Username)
	}
	if channel.Synced() {
		t.Fatalf("fresh channel must have no watermark")
	}

	// 同名二次 upsert 返回同一行
	again, err := channelRepo.Upsert(ctx, "technews", "", "")
	if err != nil {
		t.Fatalf("failed to re-upsert channel: %v", err)
	}
	if again.ID != channel.ID {
		t.Fatalf("expected same channel id, got %s and %s", channel.ID.Hex(), again.ID.Hex())
	}
	if again.Title != "Tech News" {
		t.Fatalf("re-upsert must keep the title, got %q", again.Title)
	}

	// 水位只增不减
	if err := channelRepo.SetWatermark(ctx, channel.ID, 100); err != nil {
		t.Fatalf("failed to set watermark: %v", err)
	}
	if err := channelRepo.SetWatermark(ctx, channel.ID, 50); err != nil {
		t.Fatalf("failed to set lower watermark: %v", err)
	}

	loaded, err := channelRepo.GetByID(ctx, channel.ID)
	if err != nil {
		t.Fatalf("failed to load channel: %v", err)
	}
	if loaded.LastCheckedMsgID == nil || *loaded.LastCheckedMsgID != 100 {
		t.Fatalf("watermark must stay at 100, got %v", loaded.LastCheckedMsgID)
	}

	if err := channelRepo.Deactivate(ctx, channel.ID); err != nil {
		t.Fatalf("failed to deactivate channel: %v", err)
	}
	active, err := channelRepo.ListActive(ctx)
	if err != nil {
		t.Fatalf("failed to list active channels: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("expected no active channels, got %d", len(active))
	}
}

func TestPostRepositoryIntegrationFlow(t *testing.T) {
	t.Parallel()

	db := setupIntegrationDatabase(t)
	postRepo := repository.NewMongoPostRepository(db)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := postRepo.EnsureIndexes(ctx); err != nil {
		t.Fatalf("failed to ensure indexes: %v", err)
	}

	channelID := primitive.NewObjectID()

	first, created, err := postRepo.Upsert(ctx, repository.PostUpsert{
		ChannelID:     channelID,
		TelegramMsgID: 500,
		OriginalText:  "original",
		Entities:      []codec.EntityRange{{Offset: 0, Length: 8, Type: codec.EntityBold}},
		CreatedAt:     time.Now().Add(-time.Hour).UTC(),
		IsHistorical:  true,
	})
	if err != nil {
		t.Fatalf("failed to upsert post: %v", err)
	}
	if !created {
		t.Fatalf("expected created=true for fresh post")
	}
	if first.Status != models.StatusPending || !first.IsHistorical {
		t.Fatalf("unexpected fresh post: %+v", first)
	}

	// 实时侧的二次写入：内容不变，historical 翻转
	second, created, err := postRepo.Upsert(ctx, repository.PostUpsert{
		ChannelID:     channelID,
		TelegramMsgID: 500,
		OriginalText:  "different text that must be ignored",
		CreatedAt:     time.Now().UTC(),
		IsHistorical:  false,
	})
	if err != nil {
		t.Fatalf("failed to re-upsert post: %v", err)
	}
	if created {
		t.Fatalf("expected created=false for existing post")
	}
	if second.ID != first.ID {
		t.Fatalf("expected same post id")
	}
	if second.OriginalText != "original" {
		t.Fatalf("content must not be overwritten, got %q", second.OriginalText)
	}
	if second.IsHistorical {
		t.Fatalf("live sighting must clear the historical flag")
	}

	// 回填侧再次写入不得把 historical 翻回去
	third, _, err := postRepo.Upsert(ctx, repository.PostUpsert{
		ChannelID:     channelID,
		TelegramMsgID: 500,
		OriginalText:  "original",
		CreatedAt:     time.Now().UTC(),
		IsHistorical:  true,
	})
	if err != nil {
		t.Fatalf("failed to backfill-upsert post: %v", err)
	}
	if third.IsHistorical {
		t.Fatalf("historical flag must never flip back to true")
	}

	if err := postRepo.UpdateTranslation(ctx, first.ID, "translated"); err != nil {
		t.Fatalf("failed to update translation: %v", err)
	}
	if err := postRepo.UpdateStatus(ctx, first.ID, models.StatusApproved); err != nil {
		t.Fatalf("failed to approve post: %v", err)
	}
	if err := postRepo.UpdateStatus(ctx, first.ID, models.StatusPublished); err != nil {
		t.Fatalf("failed to publish post: %v", err)
	}

	published, err := postRepo.GetByID(ctx, first.ID)
	if err != nil {
		t.Fatalf("failed to load post: %v", err)
	}
	if published.TranslatedText != "translated" {
		t.Fatalf("unexpected translation: %q", published.TranslatedText)
	}
	if published.PublishedAt == nil {
		t.Fatalf("publishing must stamp published_at")
	}

	maxID, ok, err := postRepo.MaxTelegramMsgID(ctx, channelID)
	if err != nil || !ok || maxID != 500 {
		t.Fatalf("unexpected max message id: %d ok=%v err=%v", maxID, ok, err)
	}

	if _, err := postRepo.GetByID(ctx, primitive.NewObjectID()); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMediaRepositoryIntegrationFlow(t *testing.T) {
	t.Parallel()

	db := setupIntegrationDatabase(t)
	mediaRepo := repository.NewMongoMediaRepository(db)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := mediaRepo.EnsureIndexes(ctx); err != nil {
		t.Fatalf("failed to ensure indexes: %v", err)
	}

	postID := primitive.NewObjectID()
	for i := 0; i < 3; i++ {
		row := &models.Media{
			PostID:   postID,
			Type:     models.MediaPhoto,
			FilePath: fmt.Sprintf("ch/post/photo_%d.jpg", i),
			FileName: fmt.Sprintf("photo_%d.jpg", i),
			MimeType: "image/jpeg",
		}
		if err := mediaRepo.Create(ctx, row); err != nil {
			t.Fatalf("failed to create media row: %v", err)
		}
		if row.ID.IsZero() {
			t.Fatalf("expected inserted id to be captured")
		}
	}

	rows, err := mediaRepo.ListByPost(ctx, postID)
	if err != nil {
		t.Fatalf("failed to list media: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 media rows, got %d", len(rows))
	}

	if err := mediaRepo.DeleteByPost(ctx, postID); err != nil {
		t.Fatalf("failed to delete media: %v", err)
	}
	rows, err = mediaRepo.ListByPost(ctx, postID)
	if err != nil {
		t.Fatalf("failed to re-list media: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected no media rows after delete, got %d", len(rows))
	}
}

func setupIntegrationDatabase(t *testing.T) *mongodriver.Database {
	t.Helper()

	uri := envOrDefault("MONGO_URI", "mongodb://localhost:27017")
	baseDatabase := envOrDefault("TEST_DATABASE", "test_mirror_bot")
	databaseName := fmt.Sprintf("%s_%d", baseDatabase, time.Now().UnixNano())

	client, err := mongoclient.NewClient(mongoclient.Config{
		URI:      uri,
		Database: databaseName,
		Timeout:  5 * time.Second,
	})
	if err != nil {
		if isCIEnvironment() {
			t.Fatalf("failed to connect MongoDB in CI: %v", err)
		}
		t.Skipf("MongoDB is not available locally, skip integration test: %v", err)
		return nil
	}

	db := client.Database()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := db.Drop(ctx); err != nil {
			t.Errorf("failed to drop integration database %s: %v", databaseName, err)
		}
		if err := client.Close(ctx); err != nil {
			t.Errorf("failed to close MongoDB connection: %v", err)
		}
	})

	return db
}

func envOrDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func isCIEnvironment() bool {
	return os.Getenv("CI") == "true" || os.Getenv("GITHUB_ACTIONS") == "true"
}
