// Package publisher 把审核通过的帖子发布到目标频道。
// 出站文本的选择和超长说明文字的两步降级在 Dispatcher 里，
// 平台调用隔离在 Sender 后面。
package publisher

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"mirror_bot/internal/codec"
	"mirror_bot/internal/logger"
	"mirror_bot/internal/mirror/models"
	"mirror_bot/internal/mirror/repository"
)

// ErrCaptionTooLong 平台拒绝了过长的媒体说明文字
var ErrCaptionTooLong = errors.New("media caption too long")

// MediaFile 待发送的本地媒体文件
type MediaFile struct {
	Path string // 磁盘绝对路径
	Type string // models.Media* 类型
}

// Sender 出站发送能力。html 为 false 时按纯文本发送
type Sender interface {
	SendText(ctx context.Context, target, text string, html bool) error
	SendMedia(ctx context.Context, target string, files []MediaFile, caption string, html bool) error
}

// Config 发布配置
type Config struct {
	DefaultTarget string // 全局默认目标频道，可被每频道配置覆盖
	MediaRoot     string
}

// Dispatcher 发布调度器
type Dispatcher struct {
	cfg      Config
	posts    repository.PostRepository
	channels repository.ChannelRepository
	media    repository.MediaRepository
	sender   Sender
}

// NewDispatcher 创建发布调度器
func NewDispatcher(cfg Config, posts repository.PostRepository, channels repository.ChannelRepository, media repository.MediaRepository, sender Sender) *Dispatcher {
	return &Dispatcher{cfg: cfg, posts: posts, channels: channels, media: media, sender: sender}
}

// Publish 发布一条审核通过的帖子。
//
// 文本选择：有译文且未损坏则直接当 HTML 发；译文是旧损坏格式则
// 剥掉全部标记按纯文本发；无译文则由原文加实体现场合成 HTML。
// 带媒体时先尝试媒体加说明一次发出，说明超长再降级为
// 先发媒体后补一条文本，顺序固定。
// 只有发送确认成功后才落 PUBLISHED 状态。
func (d *Dispatcher) Publish(ctx context.Context, postID primitive.ObjectID) error {
	post, err := d.posts.GetByID(ctx, postID)
	if err != nil {
		return err
	}
	if !post.CanPublish() {
		return fmt.Errorf("post %s is not approved (status: %s)", postID.Hex(), post.Status)
	}

	channel, err := d.channels.GetByID(ctx, post.ChannelID)
	if err != nil {
		return err
	}

	target := channel.TargetChannelID
	if target == "" {
		target = d.cfg.DefaultTarget
	}
	if target == "" {
		return fmt.Errorf("no target channel configured for source @%s", channel.Username)
	}

	text, html := d.outboundText(post)

	rows, err := d.media.ListByPost(ctx, post.ID)
	if err != nil {
		return err
	}

	if len(rows) == 0 {
		if err := d.sender.SendText(ctx, target, text, html); err != nil {
			return fmt.Errorf("failed to send post %s: %w", postID.Hex(), err)
		}
	} else {
		files := make([]MediaFile, 0, len(rows))
		for _, m := range rows {
			files = append(files, MediaFile{
				Path: filepath.Join(d.cfg.MediaRoot, m.FilePath),
				Type: m.Type,
			})
		}

		err := d.sender.SendMedia(ctx, target, files, text, html)
		if errors.Is(err, ErrCaptionTooLong) {
			// 固定的两步降级：先发不带说明的媒体，紧跟一条单独文本
			logger.L().Warnf("Post %s: caption too long, sending media and text separately", postID.Hex())
			if err := d.sender.SendMedia(ctx, target, files, "", false); err != nil {
				return fmt.Errorf("failed to send media for post %s: %w", postID.Hex(), err)
			}
			if err := d.sender.SendText(ctx, target, text, html); err != nil {
				return fmt.Errorf("failed to send text for post %s: %w", postID.Hex(), err)
			}
		} else if err != nil {
			return fmt.Errorf("failed to send post %s: %w", postID.Hex(), err)
		}
	}

	if err := d.posts.UpdateStatus(ctx, post.ID, models.StatusPublished); err != nil {
		return fmt.Errorf("post %s sent but status update failed: %w", postID.Hex(), err)
	}

	logger.L().Infof("Post %s published to %s", postID.Hex(), target)
	return nil
}

// outboundText 选择出站文本，返回文本和是否按 HTML 解析
func (d *Dispatcher) outboundText(post *models.Post) (string, bool) {
	if post.Translated() {
		if codec.DetectLegacyBrokenHTML(post.TranslatedText) {
			// 旧数据的译文里标签和 markdown 标记混排，无法修复，
			// 剥干净按纯文本发
			logger.L().Warnf("Post %s: broken markup detected, sending as plain text", post.ID.Hex())
			return codec.StripHTMLTags(codec.StripMarkdownArtifacts(post.TranslatedText)), false
		}
		return post.TranslatedText, true
	}

	return codec.ToHTML(codec.StripMarkdownArtifacts(post.OriginalText), post.Entities), true
}
