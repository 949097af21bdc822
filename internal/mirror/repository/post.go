package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"mirror_bot/internal/mirror/models"
)

// MongoPostRepository 帖子数据访问层（MongoDB 实现）
type MongoPostRepository struct {
	collection *mongo.Collection
}

// NewMongoPostRepository 创建帖子 Repository
func NewMongoPostRepository(db *mongo.Database) PostRepository {
	return &MongoPostRepository{
		collection: db.Collection("posts"),
	}
}

// Upsert 按 (channel_id, telegram_msg_id) 幂等写入。
// 已存在时不覆盖任何内容字段——唯一的例外是 historical 标记：
// 实时/增量侧（IsHistorical=false）的写入会清除回填侧留下的
// is_historical，反向永不发生。
func (r *MongoPostRepository) Upsert(ctx context.Context, data PostUpsert) (*models.Post, bool, error) {
	now := time.Now()
	createdAt := data.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	filter := bson.M{
		"channel_id":      data.ChannelID,
		"telegram_msg_id": data.TelegramMsgID,
	}

	setFields := bson.M{"updated_at": now}
	setOnInsert := bson.M{
		"channel_id":      data.ChannelID,
		"telegram_msg_id": data.TelegramMsgID,
		"original_text":   data.OriginalText,
		"entities":        data.Entities,
		"status":          models.StatusPending,
		"created_at":      createdAt,
	}
	if data.IsHistorical {
		setOnInsert["is_historical"] = true
	} else {
		// historical → live 单向翻转
		setFields["is_historical"] = false
	}

	update := bson.M{
		"$set":         setFields,
		"$setOnInsert": setOnInsert,
	}

	opts := options.Update().SetUpsert(true)
	result, err := r.collection.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		return nil, false, fmt.Errorf("failed to upsert post: %w", err)
	}
	created := result.UpsertedCount > 0

	var post models.Post
	if err := r.collection.FindOne(ctx, filter).Decode(&post); err != nil {
		return nil, false, fmt.Errorf("failed to load upserted post: %w", err)
	}
	return &post, created, nil
}

// GetByID 按主键获取帖子
func (r *MongoPostRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Post, error) {
	var post models.Post
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&post)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("post %s: %w", id.Hex(), ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	return &post, nil
}

// MaxTelegramMsgID 频道下已存储的最大消息 ID
func (r *MongoPostRepository) MaxTelegramMsgID(ctx context.Context, channelID primitive.ObjectID) (int64, bool, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "telegram_msg_id", Value: -1}})

	var post models.Post
	err := r.collection.FindOne(ctx, bson.M{"channel_id": channelID}, opts).Decode(&post)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to query max message id: %w", err)
	}
	return post.TelegramMsgID, true, nil
}

// UpdateTranslation 写入译文
func (r *MongoPostRepository) UpdateTranslation(ctx context.Context, id primitive.ObjectID, translated string) error {
	update := bson.M{
		"$set": bson.M{"translated_text": translated, "updated_at": time.Now()},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to update translation: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("post %s: %w", id.Hex(), ErrNotFound)
	}
	return nil
}

// UpdateStatus 更新审核状态；置为 PUBLISHED 时写入 published_at
func (r *MongoPostRepository) UpdateStatus(ctx context.Context, id primitive.ObjectID, status string) error {
	setFields := bson.M{"status": status, "updated_at": time.Now()}
	if status == models.StatusPublished {
		setFields["published_at"] = time.Now()
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": setFields})
	if err != nil {
		return fmt.Errorf("failed to update post status: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("post %s: %w", id.Hex(), ErrNotFound)
	}
	return nil
}

// List 按条件分页列出帖子（新帖在前）
func (r *MongoPostRepository) List(ctx context.Context, filter PostFilter) ([]*models.Post, int64, error) {
	query := bson.M{}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if filter.ChannelID != nil {
		query["channel_id"] = *filter.ChannelID
	}
	if filter.IsHistorical != nil {
		query["is_historical"] = *filter.IsHistorical
	}
	if filter.Since != nil {
		query["created_at"] = bson.M{"$gte": *filter.Since}
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit < 1 {
		limit = 20
	}

	total, err := r.collection.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count posts: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip((page - 1) * limit).
		SetLimit(limit)

	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list posts: %w", err)
	}
	defer cursor.Close(ctx)

	var posts []*models.Post
	if err := cursor.All(ctx, &posts); err != nil {
		return nil, 0, fmt.Errorf("failed to decode posts: %w", err)
	}
	return posts, total, nil
}

// Delete 删除帖子
func (r *MongoPostRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("post %s: %w", id.Hex(), ErrNotFound)
	}
	return nil
}

// EnsureIndexes 确保索引存在
func (r *MongoPostRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "channel_id", Value: 1},
				{Key: "telegram_msg_id", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{
				{Key: "status", Value: 1},
				{Key: "created_at", Value: -1},
			},
		},
		{
			Keys: bson.D{{Key: "created_at", Value: -1}},
		},
	}

	if _, err := r.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create post indexes: %w", err)
	}
	return nil
}
