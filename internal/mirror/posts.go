package mirror

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"mirror_bot/internal/mirror/models"
	"mirror_bot/internal/mirror/repository"
)

// PostService 审核队列操作：状态流转、删除和按需翻译
type PostService struct {
	posts     repository.PostRepository
	media     MediaSaver
	translate *TranslateService
}

// NewPostService 创建帖子管理服务
func NewPostService(posts repository.PostRepository, media MediaSaver, translate *TranslateService) *PostService {
	return &PostService{posts: posts, media: media, translate: translate}
}

// Get 按 ID 取帖子
func (s *PostService) Get(ctx context.Context, id primitive.ObjectID) (*models.Post, error) {
	return s.posts.GetByID(ctx, id)
}

// List 按条件分页列出帖子
func (s *PostService) List(ctx context.Context, filter repository.PostFilter) ([]*models.Post, int64, error) {
	return s.posts.List(ctx, filter)
}

// Approve 把帖子标记为待发布
func (s *PostService) Approve(ctx context.Context, id primitive.ObjectID) error {
	return s.setStatus(ctx, id, models.StatusApproved)
}

// Reject 把帖子标记为拒绝
func (s *PostService) Reject(ctx context.Context, id primitive.ObjectID) error {
	return s.setStatus(ctx, id, models.StatusRejected)
}

// Reset 把帖子重置回待审核
func (s *PostService) Reset(ctx context.Context, id primitive.ObjectID) error {
	return s.setStatus(ctx, id, models.StatusPending)
}

// setStatus 审核侧的状态流转。PUBLISHED 只能由发布器写入，
// 这里拒绝。
func (s *PostService) setStatus(ctx context.Context, id primitive.ObjectID, status string) error {
	if status == models.StatusPublished {
		return fmt.Errorf("published status is set by the publisher only")
	}
	return s.posts.UpdateStatus(ctx, id, status)
}

// Delete 删除帖子，媒体文件和记录一并清理
func (s *PostService) Delete(ctx context.Context, id primitive.ObjectID) error {
	post, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.media.Remove(ctx, post); err != nil {
		return err
	}
	return s.posts.Delete(ctx, id)
}

// Translate 按需翻译。已有译文时返回错误除非 force
func (s *PostService) Translate(ctx context.Context, id primitive.ObjectID, force bool) (*models.Post, error) {
	post, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if post.Translated() && !force {
		return nil, fmt.Errorf("post %s is already translated", id.Hex())
	}

	if err := s.translate.TranslatePost(ctx, post, force); err != nil {
		return nil, err
	}
	return post, nil
}
