package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// 媒体类型常量
const (
	MediaPhoto     = "photo"
	MediaVideo     = "video"
	MediaAnimation = "animation"
	MediaDocument  = "document"
)

// Media 帖子关联的已下载媒体文件，FilePath 相对于媒体根目录
type Media struct {
	ID       primitive.ObjectID `bson:"_id,omitempty"`
	PostID   primitive.ObjectID `bson:"post_id"`
	Type     string             `bson:"type"`
	FilePath string             `bson:"file_path"`
	FileName string             `bson:"file_name,omitempty"`
	MimeType string             `bson:"mime_type,omitempty"`

	CreatedAt time.Time `bson:"created_at"`
}
