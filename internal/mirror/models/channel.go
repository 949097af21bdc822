package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Channel 被镜像的源频道。
// LastCheckedMsgID 是增量同步水位线：已完整处理过的最大平台
// 消息 ID，nil 表示从未同步过。一旦设置只允许单调不减。
type Channel struct {
	ID              primitive.ObjectID `bson:"_id,omitempty"`
	Username        string             `bson:"username"` // 唯一，保存为小写
	Title           string             `bson:"title,omitempty"`
	Active          bool               `bson:"active"`
	TargetChannelID string             `bson:"target_channel_id,omitempty"` // 覆盖全局发布目标，可空
	LastCheckedMsgID *int64            `bson:"last_checked_msg_id,omitempty"`

	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// Synced 水位线是否已建立
func (c *Channel) Synced() bool {
	return c.LastCheckedMsgID != nil
}

// NormalizeUsername 频道用户名规范化：去掉 @ 前缀并转小写
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(username), "@"))
}
