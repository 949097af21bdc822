// Package media 负责把消息附带的媒体落盘并登记到存储层。
// 目录布局为 <root>/<channelID>/<postID>/<fileName>，
// 库中记录的路径相对于 root，方便整体迁移媒体目录。
package media

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gotd/td/tg"

	"mirror_bot/internal/logger"
	"mirror_bot/internal/mirror/models"
	"mirror_bot/internal/mirror/repository"
)

// Downloader 媒体字节流来源
type Downloader interface {
	DownloadMedia(ctx context.Context, media tg.MessageMediaClass, w io.Writer) error
}

// Saver 下载媒体并写入媒体目录
type Saver struct {
	dl      Downloader
	repo    repository.MediaRepository
	rootDir string
}

// NewSaver 创建媒体保存器
func NewSaver(dl Downloader, repo repository.MediaRepository, rootDir string) *Saver {
	return &Saver{dl: dl, repo: repo, rootDir: rootDir}
}

// Save 下载某条帖子的媒体并登记。同名文件已登记过则直接复用，
// 不重复下载。
func (s *Saver) Save(ctx context.Context, post *models.Post, media tg.MessageMediaClass) (*models.Media, error) {
	kind, fileName, mimeType, err := classify(media, post.TelegramMsgID)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.ListByPost(ctx, post.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list existing media: %w", err)
	}
	for _, m := range existing {
		if m.FileName == fileName {
			logger.L().Debugf("Media %s already saved for post %s, skipping download", fileName, post.ID.Hex())
			return m, nil
		}
	}

	relDir := filepath.Join(post.ChannelID.Hex(), post.ID.Hex())
	absDir := filepath.Join(s.rootDir, relDir)
	if err := os.MkdirAll(absDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create media dir: %w", err)
	}

	absPath := filepath.Join(absDir, fileName)
	f, err := os.Create(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create media file: %w", err)
	}

	if err := s.dl.DownloadMedia(ctx, media, f); err != nil {
		f.Close()
		os.Remove(absPath) // 不留半截文件
		return nil, fmt.Errorf("failed to download media: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize media file: %w", err)
	}

	row := &models.Media{
		PostID:   post.ID,
		Type:     kind,
		FilePath: filepath.Join(relDir, fileName),
		FileName: fileName,
		MimeType: mimeType,
	}
	if err := s.repo.Create(ctx, row); err != nil {
		return nil, fmt.Errorf("failed to record media: %w", err)
	}

	logger.L().Infof("Saved media %s (%s) for post %s", fileName, kind, post.ID.Hex())
	return row, nil
}

// AbsolutePath 把库中的相对路径还原为磁盘路径
func (s *Saver) AbsolutePath(m *models.Media) string {
	return filepath.Join(s.rootDir, m.FilePath)
}

// Remove 删除帖子的全部媒体文件和登记记录
func (s *Saver) Remove(ctx context.Context, post *models.Post) error {
	rows, err := s.repo.ListByPost(ctx, post.ID)
	if err != nil {
		return fmt.Errorf("failed to list media: %w", err)
	}

	for _, m := range rows {
		if err := os.Remove(s.AbsolutePath(m)); err != nil && !os.IsNotExist(err) {
			// 文件删不掉不阻塞记录清理，只告警
			logger.L().Warnf("Failed to remove media file %s: %v", m.FilePath, err)
		}
	}
	// 帖子目录为空时顺手清掉，失败无所谓
	os.Remove(filepath.Join(s.rootDir, post.ChannelID.Hex(), post.ID.Hex()))

	if err := s.repo.DeleteByPost(ctx, post.ID); err != nil {
		return fmt.Errorf("failed to delete media records: %w", err)
	}
	return nil
}

// classify 根据媒体载荷推断类型、文件名和 MIME
func classify(media tg.MessageMediaClass, msgID int64) (string, string, string, error) {
	switch m := media.(type) {
	case *tg.MessageMediaPhoto:
		return models.MediaPhoto, fmt.Sprintf("photo_%d.jpg", msgID), "image/jpeg", nil

	case *tg.MessageMediaDocument:
		doc, ok := m.Document.(*tg.Document)
		if !ok {
			return "", "", "", fmt.Errorf("document media without document payload")
		}

		kind := models.MediaDocument
		fileName := ""
		animated := false
		video := false

		for _, attr := range doc.Attributes {
			switch a := attr.(type) {
			case *tg.DocumentAttributeFilename:
				fileName = a.FileName
			case *tg.DocumentAttributeAnimated:
				animated = true
			case *tg.DocumentAttributeVideo:
				video = true
			}
		}

		switch {
		case animated || doc.MimeType == "image/gif":
			kind = models.MediaAnimation
		case video || strings.HasPrefix(doc.MimeType, "video/"):
			kind = models.MediaVideo
		}

		if fileName == "" {
			fileName = fmt.Sprintf("%s_%d%s", kind, msgID, extensionFor(doc.MimeType))
		}
		return kind, sanitizeFileName(fileName), doc.MimeType, nil

	default:
		return "", "", "", fmt.Errorf("unsupported media type: %T", media)
	}
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "video/mp4":
		return ".mp4"
	case "image/gif":
		return ".gif"
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	default:
		return ".bin"
	}
}

// sanitizeFileName 去掉路径分隔符，防止文件名逃出帖子目录
func sanitizeFileName(name string) string {
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "file.bin"
	}
	return name
}
