// Package codec 负责富文本三种表示之间的无损转换：
// 纯文本+实体区间（Telegram 原生）、Markdown、Telegram HTML。
// 所有函数均为纯函数，无 I/O、无内部状态。
package codec

// 实体类型常量（与 Telegram MessageEntity 对应）
const (
	EntityBold          = "bold"
	EntityItalic        = "italic"
	EntityCode          = "code"
	EntityPre           = "pre"
	EntityTextURL       = "textUrl"
	EntityURL           = "url"
	EntityStrikethrough = "strikethrough"
	EntityUnderline     = "underline"
	EntityBlockquote    = "blockquote"
	EntitySpoiler       = "spoiler"
	EntityMention       = "mention"
	EntityHashtag       = "hashtag"
	EntityBotCommand    = "botCommand"
	EntityUnknown       = "unknown"
)

// EntityRange 描述纯文本上的一个格式化区间。
// Offset/Length 以 UTF-16 码元计（Telegram 实体偏移约定），
// 区间边界不允许落在代理对内部。
type EntityRange struct {
	Offset   int    `bson:"offset" json:"offset"`
	Length   int    `bson:"length" json:"length"`
	Type     string `bson:"type" json:"type"`
	URL      string `bson:"url,omitempty" json:"url,omitempty"`
	Language string `bson:"language,omitempty" json:"language,omitempty"`
}

// entityTags 返回实体类型对应的 HTML 开/闭标签。
// 不产生标签的类型（url/mention/hashtag/botCommand/unknown）返回空串。
func entityTags(e EntityRange) (string, string) {
	switch e.Type {
	case EntityBold:
		return "<b>", "</b>"
	case EntityItalic:
		return "<i>", "</i>"
	case EntityCode:
		return "<code>", "</code>"
	case EntityPre:
		if e.Language != "" {
			return `<pre><code class="language-` + e.Language + `">`, "</code></pre>"
		}
		return "<pre>", "</pre>"
	case EntityTextURL:
		return `<a href="` + e.URL + `">`, "</a>"
	case EntityStrikethrough:
		return "<s>", "</s>"
	case EntityUnderline:
		return "<u>", "</u>"
	case EntityBlockquote:
		return "<blockquote>", "</blockquote>"
	case EntitySpoiler:
		return "<tg-spoiler>", "</tg-spoiler>"
	default:
		return "", ""
	}
}
