package mirror

import (
	"context"
	"errors"
	"strings"

	"mirror_bot/internal/logger"
	"mirror_bot/internal/mirror/repository"
	"mirror_bot/internal/telegram"
)

// Listener 订阅平台新消息流，只处理活跃频道的帖子。
// 与 Poller 并发运行且不加锁，同一条消息可能被两边各看一次，
// 正确性依赖入库 upsert 的幂等性和"无译文才翻译"的兜底。
type Listener struct {
	channels  repository.ChannelRepository
	ingestor  *Ingestor
	translate *TranslateService
}

// NewListener 创建监听器
func NewListener(channels repository.ChannelRepository, ingestor *Ingestor, translate *TranslateService) *Listener {
	return &Listener{channels: channels, ingestor: ingestor, translate: translate}
}

// Start 把监听器挂到平台消息流上
func (l *Listener) Start(wire Wire) {
	wire.OnChannelMessage(l.handle)
	logger.L().Info("Listener started, waiting for new channel posts")
}

func (l *Listener) handle(ctx context.Context, msg telegram.Message) {
	if msg.ChannelUsername == "" {
		return
	}

	channel, err := l.channels.GetByUsername(ctx, msg.ChannelUsername)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			logger.L().Errorf("Listener channel lookup failed for @%s: %v", msg.ChannelUsername, err)
		}
		return
	}
	if !channel.Active {
		return
	}

	if strings.TrimSpace(msg.Text) == "" {
		return
	}

	preview := []rune(msg.Text)
	if len(preview) > 80 {
		preview = preview[:80]
	}
	logger.L().Infof("New post from @%s: %s", channel.Username, string(preview))

	post, _, err := l.ingestor.Ingest(ctx, channel, msg, false)
	if err != nil {
		logger.L().Errorf("Listener ingest failed for @%s msg %d: %v", channel.Username, msg.ID, err)
		return
	}
	if post == nil {
		return
	}

	// 翻译失败不回滚，帖子以未翻译状态留在队列里
	if err := l.translate.TranslatePost(ctx, post, false); err != nil {
		logger.L().Errorf("Listener translation failed: %v", err)
	}
}
