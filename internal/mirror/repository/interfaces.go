package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"mirror_bot/internal/codec"
	"mirror_bot/internal/mirror/models"
)

// PostUpsert 幂等写入的入参：同键二次写入不覆盖既有内容，
// 仅当既有行为 historical 而本次不是时清除 historical 标记
type PostUpsert struct {
	ChannelID     primitive.ObjectID
	TelegramMsgID int64
	OriginalText  string
	Entities      []codec.EntityRange
	CreatedAt     time.Time
	IsHistorical  bool
}

// PostFilter 帖子列表过滤条件
type PostFilter struct {
	Status       string
	ChannelID    *primitive.ObjectID
	IsHistorical *bool
	Since        *time.Time
	Page         int64
	Limit        int64
}

// ChannelRepository 频道数据访问接口
type ChannelRepository interface {
	// Upsert 按用户名创建或重新激活频道（用户名保存为小写）
	Upsert(ctx context.Context, username, title, targetChannelID string) (*models.Channel, error)

	// GetByID 按主键获取频道
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Channel, error)

	// GetByUsername 按用户名获取频道
	GetByUsername(ctx context.Context, username string) (*models.Channel, error)

	// ListAll 列出全部频道
	ListAll(ctx context.Context) ([]*models.Channel, error)

	// ListActive 列出活跃频道（同步引擎的工作集）
	ListActive(ctx context.Context) ([]*models.Channel, error)

	// SetWatermark 推进水位线（last_checked_msg_id）
	SetWatermark(ctx context.Context, id primitive.ObjectID, msgID int64) error

	// UpdateTarget 更新发布目标覆盖（空串表示清除）
	UpdateTarget(ctx context.Context, id primitive.ObjectID, targetChannelID string) error

	// Deactivate 停用频道（保留数据）
	Deactivate(ctx context.Context, id primitive.ObjectID) error

	// Delete 删除频道
	Delete(ctx context.Context, id primitive.ObjectID) error

	// EnsureIndexes 确保索引存在
	EnsureIndexes(ctx context.Context) error
}

// PostRepository 帖子数据访问接口
type PostRepository interface {
	// Upsert 按 (channel_id, telegram_msg_id) 幂等写入，
	// 返回写入后的行和是否新建
	Upsert(ctx context.Context, data PostUpsert) (*models.Post, bool, error)

	// GetByID 按主键获取帖子
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Post, error)

	// MaxTelegramMsgID 频道下已存储的最大消息 ID，无记录时 ok=false
	MaxTelegramMsgID(ctx context.Context, channelID primitive.ObjectID) (int64, bool, error)

	// UpdateTranslation 写入译文（强制重译时覆盖）
	UpdateTranslation(ctx context.Context, id primitive.ObjectID, translated string) error

	// UpdateStatus 更新审核状态；置为 PUBLISHED 时附带写入 published_at
	UpdateStatus(ctx context.Context, id primitive.ObjectID, status string) error

	// List 按条件分页列出帖子
	List(ctx context.Context, filter PostFilter) ([]*models.Post, int64, error)

	// Delete 删除帖子
	Delete(ctx context.Context, id primitive.ObjectID) error

	// EnsureIndexes 确保索引存在
	EnsureIndexes(ctx context.Context) error
}

// MediaRepository 媒体数据访问接口
type MediaRepository interface {
	// Create 创建媒体记录
	Create(ctx context.Context, media *models.Media) error

	// ListByPost 列出帖子关联的媒体
	ListByPost(ctx context.Context, postID primitive.ObjectID) ([]*models.Media, error)

	// DeleteByPost 删除帖子关联的全部媒体记录
	DeleteByPost(ctx context.Context, postID primitive.ObjectID) error

	// EnsureIndexes 确保索引存在
	EnsureIndexes(ctx context.Context) error
}
