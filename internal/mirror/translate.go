package mirror

import (
	"context"
	"fmt"

	"mirror_bot/internal/codec"
	"mirror_bot/internal/logger"
	"mirror_bot/internal/mirror/models"
	"mirror_bot/internal/mirror/repository"
)

// TranslateService 对帖子执行翻译并持久化结果
type TranslateService struct {
	posts      repository.PostRepository
	translator Translator
}

// NewTranslateService 创建翻译服务
func NewTranslateService(posts repository.PostRepository, translator Translator) *TranslateService {
	return &TranslateService{posts: posts, translator: translator}
}

// TranslatePost 翻译一条帖子。已有译文时跳过，force 可覆盖重译。
// 翻译走 HTML 管线：原文加实体渲染成 HTML 交给 LLM。
func (s *TranslateService) TranslatePost(ctx context.Context, post *models.Post, force bool) error {
	if post.Translated() && !force {
		return nil
	}

	text := post.OriginalText
	if force {
		// 旧数据的正文里可能混入 markdown 标记，重译前先清掉
		text = codec.StripMarkdownArtifacts(text)
	}
	html := codec.ToHTML(text, post.Entities)

	translated, err := s.translator.Translate(ctx, html)
	if err != nil {
		return fmt.Errorf("translation failed for post %s: %w", post.ID.Hex(), err)
	}

	if err := s.posts.UpdateTranslation(ctx, post.ID, translated); err != nil {
		return fmt.Errorf("failed to store translation for post %s: %w", post.ID.Hex(), err)
	}

	post.TranslatedText = translated
	logger.L().Infof("Translated post %s", post.ID.Hex())
	return nil
}
