package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"mirror_bot/internal/mirror/models"
)

// MongoMediaRepository 媒体数据访问层（MongoDB 实现）
type MongoMediaRepository struct {
	collection *mongo.Collection
}

// NewMongoMediaRepository 创建媒体 Repository
func NewMongoMediaRepository(db *mongo.Database) MediaRepository {
	return &MongoMediaRepository{
		collection: db.Collection("media"),
	}
}

// Create 创建媒体记录
func (r *MongoMediaRepository) Create(ctx context.Context, media *models.Media) error {
	media.CreatedAt = time.Now()

	result, err := r.collection.InsertOne(ctx, media)
	if err != nil {
		return fmt.Errorf("failed to create media: %w", err)
	}
	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		media.ID = oid
	}
	return nil
}

// ListByPost 列出帖子关联的媒体（按创建顺序）
func (r *MongoMediaRepository) ListByPost(ctx context.Context, postID primitive.ObjectID) ([]*models.Media, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})

	cursor, err := r.collection.Find(ctx, bson.M{"post_id": postID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list media: %w", err)
	}
	defer cursor.Close(ctx)

	var media []*models.Media
	if err := cursor.All(ctx, &media); err != nil {
		return nil, fmt.Errorf("failed to decode media: %w", err)
	}
	return media, nil
}

// DeleteByPost 删除帖子关联的全部媒体记录
func (r *MongoMediaRepository) DeleteByPost(ctx context.Context, postID primitive.ObjectID) error {
	if _, err := r.collection.DeleteMany(ctx, bson.M{"post_id": postID}); err != nil {
		return fmt.Errorf("failed to delete media: %w", err)
	}
	return nil
}

// EnsureIndexes 确保索引存在
func (r *MongoMediaRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "post_id", Value: 1}},
		},
	}

	if _, err := r.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create media indexes: %w", err)
	}
	return nil
}
