package mirror

import (
	"context"
	"fmt"
	"strings"

	"mirror_bot/internal/logger"
	"mirror_bot/internal/mirror/models"
	"mirror_bot/internal/mirror/repository"
	"mirror_bot/internal/telegram"
)

// Ingestor 三条入库路径（监听、轮询、回填）共用的保存逻辑。
// 以 (channel_id, telegram_msg_id) 为键幂等 upsert，
// 媒体下载失败只记日志，不回滚帖子。
type Ingestor struct {
	posts repository.PostRepository
	media MediaSaver
}

// NewIngestor 创建入库器
func NewIngestor(posts repository.PostRepository, media MediaSaver) *Ingestor {
	return &Ingestor{posts: posts, media: media}
}

// Ingest 保存一条频道消息。无文本的消息跳过（返回 nil 帖子），
// 但调用方仍应推进水位。返回帖子和是否新建。
func (g *Ingestor) Ingest(ctx context.Context, channel *models.Channel, msg telegram.Message, historical bool) (*models.Post, bool, error) {
	if strings.TrimSpace(msg.Text) == "" {
		return nil, false, nil
	}

	post, created, err := g.posts.Upsert(ctx, repository.PostUpsert{
		ChannelID:     channel.ID,
		TelegramMsgID: msg.ID,
		OriginalText:  msg.Text,
		Entities:      msg.Entities,
		CreatedAt:     msg.Date,
		IsHistorical:  historical,
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to save message %d from @%s: %w", msg.ID, channel.Username, err)
	}

	if msg.HasMedia() {
		if _, err := g.media.Save(ctx, post, msg.Media); err != nil {
			// 帖子允许没有媒体，下载失败不是入库失败
			logger.L().Errorf("Media download failed for post %s (msg %d, @%s): %v",
				post.ID.Hex(), msg.ID, channel.Username, err)
		}
	}

	return post, created, nil
}
