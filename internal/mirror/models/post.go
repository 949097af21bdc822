package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"mirror_bot/internal/codec"
)

// 帖子审核状态
const (
	StatusPending   = "PENDING"
	StatusApproved  = "APPROVED"
	StatusRejected  = "REJECTED"
	StatusPublished = "PUBLISHED"
)

// Post 源频道消息的本地镜像。
// (ChannelID, TelegramMsgID) 唯一，由 upsert 语义保证。
// OriginalText 必须是与 Entities 偏移对齐的干净文本，
// 绝不能保存带内联标记的渲染文本——否则偏移永久错位。
type Post struct {
	ID            primitive.ObjectID `bson:"_id,omitempty"`
	ChannelID     primitive.ObjectID `bson:"channel_id"`
	TelegramMsgID int64              `bson:"telegram_msg_id"`

	OriginalText   string              `bson:"original_text"`
	Entities       []codec.EntityRange `bson:"entities,omitempty"`
	TranslatedText string              `bson:"translated_text,omitempty"`

	Status       string `bson:"status"`
	IsHistorical bool   `bson:"is_historical"` // 批量回填产生；被实时/增量侧覆盖后永久清除

	CreatedAt   time.Time  `bson:"created_at"`
	UpdatedAt   time.Time  `bson:"updated_at"`
	PublishedAt *time.Time `bson:"published_at,omitempty"`
}

// Translated 是否已有译文
func (p *Post) Translated() bool {
	return p.TranslatedText != ""
}

// CanPublish 是否处于可发布状态
func (p *Post) CanPublish() bool {
	return p.Status == StatusApproved
}
