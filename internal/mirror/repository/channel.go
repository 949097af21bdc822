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

// ErrNotFound 查询目标不存在
var ErrNotFound = errors.New("not found")

// MongoChannelRepository 频道数据访问层（MongoDB 实现）
type MongoChannelRepository struct {
	collection *mongo.Collection
}

// NewMongoChannelRepository 创建频道 Repository
func NewMongoChannelRepository(db *mongo.Database) ChannelRepository {
	return &MongoChannelRepository{
		collection: db.Collection("channels"),
	}
}

// Upsert 按用户名创建或重新激活频道
func (r *MongoChannelRepository) Upsert(ctx context.Context, username, title, targetChannelID string) (*models.Channel, error) {
	clean := models.NormalizeUsername(username)
	if clean == "" {
		return nil, fmt.Errorf("channel username cannot be empty")
	}

	now := time.Now()
	filter := bson.M{"username": clean}

	setFields := bson.M{
		"active":     true,
		"updated_at": now,
	}
	if title != "" {
		setFields["title"] = title
	}
	if targetChannelID != "" {
		setFields["target_channel_id"] = targetChannelID
	}

	update := bson.M{
		"$set":         setFields,
		"$setOnInsert": bson.M{"username": clean, "created_at": now},
	}

	opts := options.Update().SetUpsert(true)
	if _, err := r.collection.UpdateOne(ctx, filter, update, opts); err != nil {
		return nil, fmt.Errorf("failed to upsert channel: %w", err)
	}

	return r.GetByUsername(ctx, clean)
}

// GetByID 按主键获取频道
func (r *MongoChannelRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Channel, error) {
	var channel models.Channel
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&channel)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("channel %s: %w", id.Hex(), ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get channel: %w", err)
	}
	return &channel, nil
}

// GetByUsername 按用户名获取频道
func (r *MongoChannelRepository) GetByUsername(ctx context.Context, username string) (*models.Channel, error) {
	clean := models.NormalizeUsername(username)

	var channel models.Channel
	err := r.collection.FindOne(ctx, bson.M{"username": clean}).Decode(&channel)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("channel @%s: %w", clean, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get channel: %w", err)
	}
	return &channel, nil
}

// ListAll 列出全部频道（新建在前）
func (r *MongoChannelRepository) ListAll(ctx context.Context) ([]*models.Channel, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	return r.list(ctx, bson.M{}, opts)
}

// ListActive 列出活跃频道
func (r *MongoChannelRepository) ListActive(ctx context.Context) ([]*models.Channel, error) {
	return r.list(ctx, bson.M{"active": true}, options.Find())
}

func (r *MongoChannelRepository) list(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*models.Channel, error) {
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list channels: %w", err)
	}
	defer cursor.Close(ctx)

	var channels []*models.Channel
	if err := cursor.All(ctx, &channels); err != nil {
		return nil, fmt.Errorf("failed to decode channels: %w", err)
	}
	return channels, nil
}

// SetWatermark 推进水位线。水位线只增不减，由调用方保证传入值
// 不小于当前值；这里额外用 $max 兜底，避免并发路径把它拉回去。
func (r *MongoChannelRepository) SetWatermark(ctx context.Context, id primitive.ObjectID, msgID int64) error {
	update := bson.M{
		"$max": bson.M{"last_checked_msg_id": msgID},
		"$set": bson.M{"updated_at": time.Now()},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to set watermark: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("channel %s: %w", id.Hex(), ErrNotFound)
	}
	return nil
}

// UpdateTarget 更新发布目标覆盖
func (r *MongoChannelRepository) UpdateTarget(ctx context.Context, id primitive.ObjectID, targetChannelID string) error {
	var update bson.M
	if targetChannelID == "" {
		update = bson.M{
			"$unset": bson.M{"target_channel_id": ""},
			"$set":   bson.M{"updated_at": time.Now()},
		}
	} else {
		update = bson.M{
			"$set": bson.M{"target_channel_id": targetChannelID, "updated_at": time.Now()},
		}
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to update channel target: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("channel %s: %w", id.Hex(), ErrNotFound)
	}
	return nil
}

// Deactivate 停用频道
func (r *MongoChannelRepository) Deactivate(ctx context.Context, id primitive.ObjectID) error {
	update := bson.M{"$set": bson.M{"active": false, "updated_at": time.Now()}}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to deactivate channel: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("channel %s: %w", id.Hex(), ErrNotFound)
	}
	return nil
}

// Delete 删除频道
func (r *MongoChannelRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete channel: %w", err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("channel %s: %w", id.Hex(), ErrNotFound)
	}
	return nil
}

// EnsureIndexes 确保索引存在
func (r *MongoChannelRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "active", Value: 1}},
		},
	}

	if _, err := r.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create channel indexes: %w", err)
	}
	return nil
}
