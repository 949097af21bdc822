package codec

import (
	"regexp"
	"strings"
)

// 转义字符占位符（Unicode 私有区），保护 \* \_ \~ \` \| 不被当作格式标记
var escapePlaceholders = []struct {
	escaped     string
	placeholder string
	literal     string
}{
	{`\*`, "\uE001", "*"},
	{`\_`, "\uE002", "_"},
	{`\~`, "\uE003", "~"},
	{"\\`", "\uE004", "`"},
	{`\|`, "\uE005", "|"},
}

var (
	fencedCodeRe = regexp.MustCompile("(?s)```(\\w*)\\n(.*?)```")
	inlineCodeRe = regexp.MustCompile("`([^`]+)`")
	boldRe       = regexp.MustCompile(`\*\*(.+?)\*\*`)
	strikeRe     = regexp.MustCompile(`~~(.+?)~~`)
	underlineRe  = regexp.MustCompile(`__(.+?)__`)
	linkRe       = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)
	blockquoteRe = regexp.MustCompile(`(?m)^> ?(.*)$`)
	spoilerRe    = regexp.MustCompile(`\|\|(.+?)\|\|`)
)

// MarkdownToHTML 把 Markdown 转换为 Telegram HTML。
//
// 固定顺序的逐步重写管线，顺序是约定的一部分：
// 斜体必须在粗体/删除线/下划线之后处理，否则含有字面 ** 的
// 歧义嵌套会被错误地部分匹配为斜体。
func MarkdownToHTML(md string) string {
	html := md

	// 1. 保护被转义的 Markdown 字符
	for _, p := range escapePlaceholders {
		html = strings.ReplaceAll(html, p.escaped, p.placeholder)
	}

	// 2. 代码块
	html = fencedCodeRe.ReplaceAllStringFunc(html, func(m string) string {
		sub := fencedCodeRe.FindStringSubmatch(m)
		lang, code := sub[1], strings.TrimRight(sub[2], " \t\n")
		if lang != "" {
			return `<pre><code class="language-` + lang + `">` + escapeHTML(code) + "</code></pre>"
		}
		return "<pre>" + escapeHTML(code) + "</pre>"
	})

	// 3. 行内代码
	html = inlineCodeRe.ReplaceAllStringFunc(html, func(m string) string {
		sub := inlineCodeRe.FindStringSubmatch(m)
		return "<code>" + escapeHTML(sub[1]) + "</code>"
	})

	// 4. 粗体
	html = boldRe.ReplaceAllString(html, "<b>$1</b>")

	// 5. 删除线
	html = strikeRe.ReplaceAllString(html, "<s>$1</s>")

	// 6. 下划线
	html = underlineRe.ReplaceAllString(html, "<u>$1</u>")

	// 7. 斜体（必须最后处理的强调标记）
	html = replaceItalic(html)

	// 8. 链接
	html = linkRe.ReplaceAllString(html, `<a href="$2">$1</a>`)

	// 9. 引用行前缀，连续引用行合并为一个块
	html = blockquoteRe.ReplaceAllString(html, "<blockquote>$1</blockquote>")
	html = strings.ReplaceAll(html, "</blockquote>\n<blockquote>", "\n")

	// 10. 剧透
	html = spoilerRe.ReplaceAllString(html, "<tg-spoiler>$1</tg-spoiler>")

	// 11. 还原转义字符为字面量
	for _, p := range escapePlaceholders {
		html = strings.ReplaceAll(html, p.placeholder, p.literal)
	}

	return html
}

// replaceItalic 匹配成对的孤立 *（前后都不是 *），等价于
// 带负向环视的 (?<!\*)\*(?!\*)(.+?)(?<!\*)\*(?!\*)；
// RE2 不支持环视，这里手工扫描。内容不跨行。
func replaceItalic(s string) string {
	var b strings.Builder
	i := 0
	for i < len(s) {
		if s[i] != '*' || !isolatedStar(s, i) {
			b.WriteByte(s[i])
			i++
			continue
		}

		// 寻找同一行内下一个孤立 *
		end := -1
		for j := i + 1; j < len(s) && s[j] != '\n'; j++ {
			if s[j] == '*' && isolatedStar(s, j) && j > i+1 {
				end = j
				break
			}
		}
		if end < 0 {
			b.WriteByte(s[i])
			i++
			continue
		}

		b.WriteString("<i>")
		b.WriteString(s[i+1 : end])
		b.WriteString("</i>")
		i = end + 1
	}
	return b.String()
}

func isolatedStar(s string, i int) bool {
	if i > 0 && s[i-1] == '*' {
		return false
	}
	if i+1 < len(s) && s[i+1] == '*' {
		return false
	}
	return true
}
