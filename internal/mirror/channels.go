package mirror

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"mirror_bot/internal/logger"
	"mirror_bot/internal/mirror/models"
	"mirror_bot/internal/mirror/repository"
)

// ChannelService 频道管理：添加、配置目标、停用和删除
type ChannelService struct {
	wire     Wire
	channels repository.ChannelRepository
	posts    repository.PostRepository
	media    MediaSaver
	poller   *Poller
}

// NewChannelService 创建频道管理服务
func NewChannelService(wire Wire, channels repository.ChannelRepository, posts repository.PostRepository, media MediaSaver, poller *Poller) *ChannelService {
	return &ChannelService{wire: wire, channels: channels, posts: posts, media: media, poller: poller}
}

// Add 添加（或重新激活）一个源频道。先在平台上解析用户名
// 验证真实存在并拿到标题，再入库。新频道立即触发首次同步。
func (s *ChannelService) Add(ctx context.Context, username string) (*models.Channel, error) {
	username = models.NormalizeUsername(username)
	if username == "" {
		return nil, fmt.Errorf("channel username is required")
	}

	peer, err := s.wire.ResolveChannel(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to verify channel @%s: %w", username, err)
	}

	channel, err := s.channels.Upsert(ctx, username, peer.Title, "")
	if err != nil {
		return nil, err
	}

	if !channel.Synced() {
		s.poller.TriggerChannelSync(channel)
	}

	logger.L().Infof("Channel @%s added (title: %s)", username, peer.Title)
	return channel, nil
}

// List 列出全部频道
func (s *ChannelService) List(ctx context.Context) ([]*models.Channel, error) {
	return s.channels.ListAll(ctx)
}

// Get 按 ID 取频道
func (s *ChannelService) Get(ctx context.Context, id primitive.ObjectID) (*models.Channel, error) {
	return s.channels.GetByID(ctx, id)
}

// SetTarget 设置或清除该频道的发布目标（空字符串表示回退到全局默认）
func (s *ChannelService) SetTarget(ctx context.Context, id primitive.ObjectID, target string) (*models.Channel, error) {
	if err := s.channels.UpdateTarget(ctx, id, target); err != nil {
		return nil, err
	}
	return s.channels.GetByID(ctx, id)
}

// Deactivate 停用频道，帖子保留
func (s *ChannelService) Deactivate(ctx context.Context, id primitive.ObjectID) error {
	return s.channels.Deactivate(ctx, id)
}

// Remove 删除频道及其全部帖子和媒体
func (s *ChannelService) Remove(ctx context.Context, id primitive.ObjectID) error {
	channel, err := s.channels.GetByID(ctx, id)
	if err != nil {
		return err
	}

	// 分页清空帖子，每条连同媒体一起删
	for {
		posts, _, err := s.posts.List(ctx, repository.PostFilter{ChannelID: &id, Limit: 100})
		if err != nil {
			return fmt.Errorf("failed to list posts for cleanup: %w", err)
		}
		if len(posts) == 0 {
			break
		}
		for _, post := range posts {
			if err := s.media.Remove(ctx, post); err != nil {
				logger.L().Warnf("Failed to remove media for post %s: %v", post.ID.Hex(), err)
			}
			if err := s.posts.Delete(ctx, post.ID); err != nil {
				return fmt.Errorf("failed to delete post %s: %w", post.ID.Hex(), err)
			}
		}
	}

	if err := s.channels.Delete(ctx, id); err != nil {
		return err
	}

	logger.L().Infof("Channel @%s removed with all posts", channel.Username)
	return nil
}
