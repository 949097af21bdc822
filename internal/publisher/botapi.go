package publisher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"

	"mirror_bot/internal/mirror/models"
)

// BotAPISender 基于 Bot API 的出站发送实现，所有发送走统一的节奏控制
type BotAPISender struct {
	bot   *bot.Bot
	pacer *SendPacer
}

// NewBotAPISender 创建 Bot API 发送器
// sendsPerMinute 为 0 时使用默认节奏
func NewBotAPISender(b *bot.Bot, sendsPerMinute int) *BotAPISender {
	return &BotAPISender{
		bot:   b,
		pacer: NewSendPacer(sendsPerMinute),
	}
}

// Close 释放发送器持有的后台资源
func (s *BotAPISender) Close() {
	s.pacer.Close()
}

// SendText 发送一条文本消息
func (s *BotAPISender) SendText(ctx context.Context, target, text string, html bool) error {
	if err := s.pacer.Wait(ctx); err != nil {
		return err
	}

	params := &bot.SendMessageParams{
		ChatID: chatID(target),
		Text:   text,
	}
	if html {
		params.ParseMode = tgmodels.ParseModeHTML
	}

	if _, err := s.bot.SendMessage(ctx, params); err != nil {
		return mapSendError(err)
	}
	return nil
}

// SendMedia 发送媒体，caption 作为说明文字挂在第一个媒体上
func (s *BotAPISender) SendMedia(ctx context.Context, target string, files []MediaFile, caption string, html bool) error {
	if len(files) == 0 {
		return fmt.Errorf("no media files to send")
	}
	if err := s.pacer.Wait(ctx); err != nil {
		return err
	}

	if len(files) == 1 {
		return s.sendSingle(ctx, target, files[0], caption, html)
	}
	return s.sendGroup(ctx, target, files, caption, html)
}

func (s *BotAPISender) sendSingle(ctx context.Context, target string, file MediaFile, caption string, html bool) error {
	f, err := os.Open(file.Path)
	if err != nil {
		return fmt.Errorf("failed to open media file: %w", err)
	}
	defer f.Close()

	upload := &tgmodels.InputFileUpload{
		Filename: filepath.Base(file.Path),
		Data:     f,
	}
	parseMode := tgmodels.ParseMode("")
	if html && caption != "" {
		parseMode = tgmodels.ParseModeHTML
	}

	switch file.Type {
	case models.MediaPhoto:
		_, err = s.bot.SendPhoto(ctx, &bot.SendPhotoParams{
			ChatID: chatID(target), Photo: upload, Caption: caption, ParseMode: parseMode,
		})
	case models.MediaVideo:
		_, err = s.bot.SendVideo(ctx, &bot.SendVideoParams{
			ChatID: chatID(target), Video: upload, Caption: caption, ParseMode: parseMode,
		})
	case models.MediaAnimation:
		_, err = s.bot.SendAnimation(ctx, &bot.SendAnimationParams{
			ChatID: chatID(target), Animation: upload, Caption: caption, ParseMode: parseMode,
		})
	default:
		_, err = s.bot.SendDocument(ctx, &bot.SendDocumentParams{
			ChatID: chatID(target), Document: upload, Caption: caption, ParseMode: parseMode,
		})
	}

	if err != nil {
		return mapSendError(err)
	}
	return nil
}

func (s *BotAPISender) sendGroup(ctx context.Context, target string, files []MediaFile, caption string, html bool) error {
	media := make([]tgmodels.InputMedia, 0, len(files))
	opened := make([]*os.File, 0, len(files))
	defer func() {
		for _, f := range opened {
			f.Close()
		}
	}()

	for i, file := range files {
		f, err := os.Open(file.Path)
		if err != nil {
			return fmt.Errorf("failed to open media file: %w", err)
		}
		opened = append(opened, f)

		attach := fmt.Sprintf("attach://file%d", i)

		// 说明文字挂在第一个媒体上
		itemCaption := ""
		parseMode := tgmodels.ParseMode("")
		if i == 0 {
			itemCaption = caption
			if html && caption != "" {
				parseMode = tgmodels.ParseModeHTML
			}
		}

		switch file.Type {
		case models.MediaPhoto:
			media = append(media, &tgmodels.InputMediaPhoto{
				Media: attach, MediaAttachment: f, Caption: itemCaption, ParseMode: parseMode,
			})
		case models.MediaVideo, models.MediaAnimation:
			// 媒体组不支持动图，退化为视频发送
			media = append(media, &tgmodels.InputMediaVideo{
				Media: attach, MediaAttachment: f, Caption: itemCaption, ParseMode: parseMode,
			})
		default:
			media = append(media, &tgmodels.InputMediaDocument{
				Media: attach, MediaAttachment: f, Caption: itemCaption, ParseMode: parseMode,
			})
		}
	}

	if _, err := s.bot.SendMediaGroup(ctx, &bot.SendMediaGroupParams{
		ChatID: chatID(target),
		Media:  media,
	}); err != nil {
		return mapSendError(err)
	}
	return nil
}

// chatID 目标既可能是 @username 也可能是数字 ID 字符串，
// Bot API 两种都接受
func chatID(target string) any {
	return target
}

// mapSendError 识别平台的超长说明错误，映射为哨兵错误
func mapSendError(err error) error {
	msg := err.Error()
	if strings.Contains(msg, "MEDIA_CAPTION_TOO_LONG") || strings.Contains(strings.ToLower(msg), "caption is too long") {
		return fmt.Errorf("%w: %v", ErrCaptionTooLong, err)
	}
	return err
}
