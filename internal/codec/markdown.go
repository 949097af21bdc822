package codec

import (
	"sort"
	"strings"
	"unicode/utf16"
)

// Markdown 语义字符，出现在实体覆盖范围之外时需要转义
const markdownChars = "*_~`|"

// StripMarkdownArtifacts 去除文本中游离的 **、__、~~ 标记。
// 历史数据中 originalText 曾从带内联标记的渲染文本保存，
// 而实体偏移始终对应干净文本；去掉标记可恢复两者对齐。
func StripMarkdownArtifacts(text string) string {
	text = strings.ReplaceAll(text, "**", "")
	text = strings.ReplaceAll(text, "__", "")
	text = strings.ReplaceAll(text, "~~", "")
	return text
}

// ToMarkdown 把纯文本+实体区间转换为 Markdown。
// 实体覆盖之外的 Markdown 语义字符会被反斜杠转义；
// 实体按偏移降序（同偏移按长度降序）处理，保证插入标记
// 不会影响尚未处理实体的偏移。
func ToMarkdown(text string, entities []EntityRange) string {
	units := utf16.Encode([]rune(text))

	if len(entities) == 0 {
		return escapeMarkdown(units)
	}

	covered := make([]bool, len(units))
	for _, e := range entities {
		for i := e.Offset; i < e.Offset+e.Length && i < len(units); i++ {
			if i >= 0 {
				covered[i] = true
			}
		}
	}

	// cells[i] 持有原第 i 个码元对应的输出序列；
	// 实体替换通过切片拼接完成，处理顺序保证偏移有效
	cells := make([][]uint16, len(units))
	for i, u := range units {
		if !covered[i] && isMarkdownChar(u) {
			cells[i] = []uint16{'\\', u}
		} else {
			cells[i] = []uint16{u}
		}
	}

	sorted := append([]EntityRange(nil), entities...)
	sort.SliceStable(sorted, func(a, b int) bool {
		if sorted[a].Offset != sorted[b].Offset {
			return sorted[a].Offset > sorted[b].Offset
		}
		return sorted[a].Length > sorted[b].Length
	})

	for _, e := range sorted {
		start, end := e.Offset, e.Offset+e.Length
		if start < 0 || start > len(cells) {
			continue
		}
		if end > len(cells) {
			end = len(cells)
		}

		var span []uint16
		for _, c := range cells[start:end] {
			span = append(span, c...)
		}
		content := string(utf16.Decode(span))
		replacement := markdownMarker(e, content)

		repl := unitCells(replacement)
		rest := cells[end:]
		cells = append(cells[:start:start], append(repl, rest...)...)
	}

	var out []uint16
	for _, c := range cells {
		out = append(out, c...)
	}
	return string(utf16.Decode(out))
}

// markdownMarker 按实体类型给内容加 Markdown 标记
func markdownMarker(e EntityRange, content string) string {
	switch e.Type {
	case EntityBold:
		return "**" + content + "**"
	case EntityItalic:
		return "*" + content + "*"
	case EntityCode:
		return "`" + content + "`"
	case EntityPre:
		if e.Language != "" {
			return "```" + e.Language + "\n" + content + "\n```"
		}
		return "```\n" + content + "\n```"
	case EntityTextURL:
		return "[" + content + "](" + e.URL + ")"
	case EntityStrikethrough:
		return "~~" + content + "~~"
	case EntityUnderline:
		return "__" + content + "__"
	case EntityBlockquote:
		lines := strings.Split(content, "\n")
		for i, line := range lines {
			lines[i] = "> " + line
		}
		return strings.Join(lines, "\n")
	case EntitySpoiler:
		return "||" + content + "||"
	default:
		// url/mention/hashtag/botCommand/unknown：内容原样保留
		return content
	}
}

func isMarkdownChar(u uint16) bool {
	return u < 0x80 && strings.ContainsRune(markdownChars, rune(u))
}

func escapeMarkdown(units []uint16) string {
	var out []uint16
	for _, u := range units {
		if isMarkdownChar(u) {
			out = append(out, '\\')
		}
		out = append(out, u)
	}
	return string(utf16.Decode(out))
}

// unitCells 把替换文本按码点切成 cell 序列（代理对保持在同一 cell 内）
func unitCells(s string) [][]uint16 {
	var cells [][]uint16
	for _, r := range s {
		cells = append(cells, utf16.Encode([]rune{r}))
	}
	return cells
}
