package telegram

import (
	"time"

	"github.com/gotd/td/tg"

	"mirror_bot/internal/codec"
)

// Message 从平台更新或历史接口解析出的频道消息。
// Text 是干净正文，Entities 的 UTF-16 偏移以它为基准。
type Message struct {
	ID              int64
	ChannelID       int64
	ChannelUsername string
	Text            string
	Entities        []codec.EntityRange
	Date            time.Time
	Media           tg.MessageMediaClass // 无媒体时为 nil
}

// HasMedia 是否带有可下载媒体
func (m Message) HasMedia() bool {
	switch m.Media.(type) {
	case *tg.MessageMediaPhoto, *tg.MessageMediaDocument:
		return true
	default:
		return false
	}
}

// parseEntities 把平台实体转为内部表示，偏移和长度按 UTF-16 码元原样保留
func parseEntities(entities []tg.MessageEntityClass) []codec.EntityRange {
	if len(entities) == 0 {
		return nil
	}

	out := make([]codec.EntityRange, 0, len(entities))
	for _, raw := range entities {
		r := codec.EntityRange{
			Offset: raw.GetOffset(),
			Length: raw.GetLength(),
		}

		switch e := raw.(type) {
		case *tg.MessageEntityBold:
			r.Type = codec.EntityBold
		case *tg.MessageEntityItalic:
			r.Type = codec.EntityItalic
		case *tg.MessageEntityUnderline:
			r.Type = codec.EntityUnderline
		case *tg.MessageEntityStrike:
			r.Type = codec.EntityStrikethrough
		case *tg.MessageEntityCode:
			r.Type = codec.EntityCode
		case *tg.MessageEntityPre:
			r.Type = codec.EntityPre
			r.Language = e.Language
		case *tg.MessageEntityTextURL:
			r.Type = codec.EntityTextURL
			r.URL = e.URL
		case *tg.MessageEntityURL:
			r.Type = codec.EntityURL
		case *tg.MessageEntityMention:
			r.Type = codec.EntityMention
		case *tg.MessageEntityHashtag:
			r.Type = codec.EntityHashtag
		case *tg.MessageEntityBotCommand:
			r.Type = codec.EntityBotCommand
		case *tg.MessageEntityBlockquote:
			r.Type = codec.EntityBlockquote
		case *tg.MessageEntitySpoiler:
			r.Type = codec.EntitySpoiler
		default:
			// 未知实体保留区间，渲染时按原文透传
			r.Type = codec.EntityUnknown
		}

		out = append(out, r)
	}
	return out
}
