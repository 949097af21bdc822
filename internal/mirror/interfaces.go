// Package mirror 实现同步引擎：实时监听、增量轮询和按需回填
// 三条入库路径共享同一套幂等 upsert 语义。
package mirror

import (
	"context"

	"github.com/gotd/td/tg"

	"mirror_bot/internal/mirror/models"
	"mirror_bot/internal/telegram"
)

// Wire 引擎需要的平台读取能力
type Wire interface {
	ResolveChannel(ctx context.Context, username string) (*telegram.Peer, error)
	History(ctx context.Context, peer *telegram.Peer, opts telegram.HistoryOptions, fn func(msg telegram.Message) (bool, error)) error
	LatestMessageID(ctx context.Context, peer *telegram.Peer) (int64, error)
	OnChannelMessage(handler func(ctx context.Context, msg telegram.Message))
}

// Translator 翻译服务接口，输入输出都是 Telegram HTML
type Translator interface {
	Translate(ctx context.Context, htmlText string) (string, error)
}

// MediaSaver 媒体落盘接口
type MediaSaver interface {
	Save(ctx context.Context, post *models.Post, media tg.MessageMediaClass) (*models.Media, error)
	Remove(ctx context.Context, post *models.Post) error
}
