package codec

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf16"
)

type tagEvent struct {
	id     int // 实体序号，用于配对开/闭
	openTag  string
	closeTag string
	length int
}

// ToHTML 把纯文本+实体区间转换为 Telegram HTML。
//
// 按 UTF-16 偏移建立开/闭事件表：同一位置的开标签按长度降序
// （外层在前），闭标签按长度升序（内层在前）——这是嵌套正确性
// 的约定，对共享端点的任意嵌套区间都成立。部分交叠（非嵌套）
// 的区间通过标签栈修复：关闭时若目标不在栈顶，先关闭内层标签，
// 再重新打开，保证输出永远是良构嵌套。该修复不可逆回原偏移。
//
// 文本按码元逐个输出，高低代理对作为整体写出；落在代理对中间
// 的事件被顺延到代理对之后（容错渲染，不报错）。
func ToHTML(text string, entities []EntityRange) string {
	if len(entities) == 0 {
		return escapeHTML(text)
	}

	units := utf16.Encode([]rune(text))

	opens := make(map[int][]tagEvent)
	closes := make(map[int][]tagEvent)
	for i, e := range entities {
		openTag, closeTag := entityTags(e)
		if openTag == "" {
			continue
		}
		ev := tagEvent{id: i, openTag: openTag, closeTag: closeTag, length: e.Length}
		opens[e.Offset] = append(opens[e.Offset], ev)
		closes[e.Offset+e.Length] = append(closes[e.Offset+e.Length], ev)
	}

	for _, evs := range opens {
		sort.SliceStable(evs, func(a, b int) bool { return evs[a].length > evs[b].length })
	}
	for _, evs := range closes {
		sort.SliceStable(evs, func(a, b int) bool { return evs[a].length < evs[b].length })
	}

	var b strings.Builder
	var stack []tagEvent

	emitAt := func(pos int) {
		for _, ev := range closes[pos] {
			// 弹栈直到目标标签；被越过的内层标签先关后重开
			var reopen []tagEvent
			for len(stack) > 0 {
				top := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				if top.id == ev.id {
					for i := len(reopen) - 1; i >= 0; i-- {
						b.WriteString(reopen[i].closeTag)
					}
					b.WriteString(top.closeTag)
					for i := len(reopen) - 1; i >= 0; i-- {
						b.WriteString(reopen[i].openTag)
						stack = append(stack, reopen[i])
					}
					reopen = nil
					break
				}
				reopen = append(reopen, top)
			}
			// 目标不在栈中（重复关闭）：恢复弹出的标签
			for i := len(reopen) - 1; i >= 0; i-- {
				stack = append(stack, reopen[i])
			}
		}
		for _, ev := range opens[pos] {
			b.WriteString(ev.openTag)
			stack = append(stack, ev)
		}
	}

	for i := 0; i <= len(units); i++ {
		emitAt(i)

		if i >= len(units) {
			break
		}

		u := units[i]
		if isHighSurrogate(u) && i+1 < len(units) && isLowSurrogate(units[i+1]) {
			b.WriteString(string(utf16.Decode(units[i : i+2])))
			i++
			// 落在代理对中间的事件顺延到这里
			emitAt(i)
			continue
		}

		switch u {
		case '&':
			b.WriteString("&amp;")
		case '<':
			b.WriteString("&lt;")
		case '>':
			b.WriteString("&gt;")
		default:
			b.WriteString(string(utf16.Decode([]uint16{u})))
		}
	}

	return b.String()
}

func isHighSurrogate(u uint16) bool { return u >= 0xD800 && u <= 0xDBFF }
func isLowSurrogate(u uint16) bool  { return u >= 0xDC00 && u <= 0xDFFF }

func escapeHTML(text string) string {
	text = strings.ReplaceAll(text, "&", "&amp;")
	text = strings.ReplaceAll(text, "<", "&lt;")
	text = strings.ReplaceAll(text, ">", "&gt;")
	return text
}

var (
	htmlTagRe      = regexp.MustCompile(`<[^>]+>`)
	anyTagRe       = regexp.MustCompile(`(?i)<[a-z][^>]*>`)
	mdMarkerRe     = regexp.MustCompile(`\*\*|__|~~`)
	misalignedTags = regexp.MustCompile(`</[a-z]+>\S+<[a-z]`)
)

// StripHTMLTags 去掉所有标签，还原三个被转义的字符，返回纯文本。
// 用于遗留损坏内容的兜底降级。
func StripHTMLTags(html string) string {
	text := htmlTagRe.ReplaceAllString(html, "")
	text = strings.ReplaceAll(text, "&amp;", "&")
	text = strings.ReplaceAll(text, "&lt;", "<")
	text = strings.ReplaceAll(text, "&gt;", ">")
	return text
}

// DetectLegacyBrokenHTML 检测历史错位数据：文本中同时出现
// HTML 标签与 Markdown 标记（如 `<b>**text</b>**`），或闭标签
// 紧贴非空白字符后又出现开标签（标签切进单词内部）。
//
// 这是尽力而为的启发式判断，不是解析器；误判为正常的文本
// 会按原样发布，误判为损坏的文本会降级为纯文本。
func DetectLegacyBrokenHTML(text string) bool {
	if anyTagRe.MatchString(text) && mdMarkerRe.MatchString(text) {
		return true
	}
	return misalignedTags.MatchString(text)
}
