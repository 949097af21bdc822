package codec

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToHTMLBasic(t *testing.T) {
	html := ToHTML("Hello world", []EntityRange{{Offset: 0, Length: 5, Type: EntityBold}})
	assert.Equal(t, "<b>Hello</b> world", html)
}

func TestToMarkdownBasic(t *testing.T) {
	md := ToMarkdown("Hello world", []EntityRange{{Offset: 0, Length: 5, Type: EntityBold}})
	assert.Equal(t, "**Hello** world", md)
}

func TestToHTMLRoundTrip(t *testing.T) {
	// 非交叠实体集：去掉标签后必须还原原文
	cases := []struct {
		name     string
		text     string
		entities []EntityRange
	}{
		{"plain", "no formatting at all", nil},
		{"single bold", "Hello world", []EntityRange{{Offset: 0, Length: 5, Type: EntityBold}}},
		{"adjacent", "abcdef", []EntityRange{
			{Offset: 0, Length: 3, Type: EntityBold},
			{Offset: 3, Length: 3, Type: EntityItalic},
		}},
		{"nested shared start", "HelloWorld", []EntityRange{
			{Offset: 0, Length: 10, Type: EntityBold},
			{Offset: 0, Length: 5, Type: EntityItalic},
		}},
		{"escapable chars", "a < b & c > d", []EntityRange{{Offset: 2, Length: 1, Type: EntityCode}}},
		{"emoji", "\U0001F600 and \U0001F680 go", []EntityRange{{Offset: 0, Length: 2, Type: EntityBold}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			html := ToHTML(tc.text, tc.entities)
			assert.Equal(t, tc.text, StripHTMLTags(html))
		})
	}
}

func TestToHTMLNestedSharedEndpoints(t *testing.T) {
	// 共享起点：外层（更长）标签先开
	html := ToHTML("HelloWorld", []EntityRange{
		{Offset: 0, Length: 10, Type: EntityBold},
		{Offset: 0, Length: 5, Type: EntityItalic},
	})
	assert.Equal(t, "<b><i>Hello</i>World</b>", html)

	// 共享终点：内层（更短）标签先关
	html = ToHTML("HelloWorld", []EntityRange{
		{Offset: 0, Length: 10, Type: EntityBold},
		{Offset: 5, Length: 5, Type: EntityItalic},
	})
	assert.Equal(t, "<b>Hello<i>World</i></b>", html)
}

func TestToHTMLPartialOverlapWellFormed(t *testing.T) {
	// 部分交叠（非嵌套）：标签栈修复，禁止交错输出。
	// 该输出由实现选定并在此固定。
	html := ToHTML("HelloWorldAgain", []EntityRange{
		{Offset: 0, Length: 10, Type: EntityBold},
		{Offset: 5, Length: 10, Type: EntityItalic},
	})
	assert.Equal(t, "<b>Hello<i>World</i></b><i>Again</i>", html)
	assertWellFormed(t, html)
}

func TestToHTMLSurrogatePairNeverSplit(t *testing.T) {
	// 😀 占两个码元；实体边界落在代理对中间时顺延，不崩溃
	text := "\U0001F600hi"
	html := ToHTML(text, []EntityRange{{Offset: 0, Length: 2, Type: EntityBold}})
	assert.Equal(t, "<b>\U0001F600</b>hi", html)

	html = ToHTML(text, []EntityRange{{Offset: 0, Length: 1, Type: EntityBold}})
	assert.NotContains(t, html, string([]rune{0xFFFD}))
	assert.Contains(t, html, "\U0001F600")
	assertWellFormed(t, html)
}

func TestToHTMLEntityKinds(t *testing.T) {
	text := "see docs here"
	html := ToHTML(text, []EntityRange{{Offset: 4, Length: 4, Type: EntityTextURL, URL: "https://example.com"}})
	assert.Equal(t, `see <a href="https://example.com">docs</a> here`, html)

	html = ToHTML("x = 1", []EntityRange{{Offset: 0, Length: 5, Type: EntityPre, Language: "go"}})
	assert.Equal(t, `<pre><code class="language-go">x = 1</code></pre>`, html)

	// 不产生标签的类型原样输出
	html = ToHTML("@user #tag", []EntityRange{
		{Offset: 0, Length: 5, Type: EntityMention},
		{Offset: 6, Length: 4, Type: EntityHashtag},
	})
	assert.Equal(t, "@user #tag", html)
}

func TestToMarkdownEscaping(t *testing.T) {
	assert.Equal(t, `a \* b \_ c`, ToMarkdown("a * b _ c", nil))

	// 实体覆盖之内的语义字符不转义
	md := ToMarkdown("a * b", []EntityRange{{Offset: 0, Length: 5, Type: EntityCode}})
	assert.Equal(t, "`a * b`", md)
}

func TestToMarkdownBlockquote(t *testing.T) {
	md := ToMarkdown("line1\nline2", []EntityRange{{Offset: 0, Length: 11, Type: EntityBlockquote}})
	assert.Equal(t, "> line1\n> line2", md)
}

func TestToMarkdownDescendingOrderStable(t *testing.T) {
	// 两个实体：插入后偏移互不干扰
	md := ToMarkdown("Hello world", []EntityRange{
		{Offset: 0, Length: 5, Type: EntityBold},
		{Offset: 6, Length: 5, Type: EntityItalic},
	})
	assert.Equal(t, "**Hello** *world*", md)
}

func TestMarkdownToHTMLPipeline(t *testing.T) {
	cases := []struct {
		name string
		md   string
		want string
	}{
		{"bold", "**Hello** world", "<b>Hello</b> world"},
		{"italic", "*Hello* world", "<i>Hello</i> world"},
		{"bold not italic", "**bold** and *ital*", "<b>bold</b> and <i>ital</i>"},
		{"underline", "__under__", "<u>under</u>"},
		{"strike", "~~gone~~", "<s>gone</s>"},
		{"spoiler", "||secret||", "<tg-spoiler>secret</tg-spoiler>"},
		{"link", "[docs](https://example.com)", `<a href="https://example.com">docs</a>`},
		{"inline code", "run `go vet` now", "run <code>go vet</code> now"},
		{"code escapes html", "`a < b`", "<code>a &lt; b</code>"},
		{"fenced", "```go\nx := 1\n```", `<pre><code class="language-go">x := 1</code></pre>`},
		{"fenced no lang", "```\nraw\n```", "<pre>raw</pre>"},
		{"blockquote merge", "> a\n> b", "<blockquote>a\nb</blockquote>"},
		{"escaped star literal", `\*not italic\*`, "*not italic*"},
		{"escaped inside bold", `**a \* b**`, "<b>a * b</b>"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, MarkdownToHTML(tc.md))
		})
	}
}

func TestStripMarkdownArtifacts(t *testing.T) {
	assert.Equal(t, "bold and under", StripMarkdownArtifacts("**bold** and __under__"))
	assert.Equal(t, "clean", StripMarkdownArtifacts("clean"))
}

func TestDetectLegacyBrokenHTML(t *testing.T) {
	// 标签与 Markdown 标记共存 —— 历史错位数据
	assert.True(t, DetectLegacyBrokenHTML("<b>**text</b>**"))
	// 闭标签紧贴单词后又开标签 —— 标签切进单词内部
	assert.True(t, DetectLegacyBrokenHTML("wor</b>ld<b>again"))

	assert.False(t, DetectLegacyBrokenHTML("<b>fine</b> text"))
	assert.False(t, DetectLegacyBrokenHTML("plain **markdown** only"))
	assert.False(t, DetectLegacyBrokenHTML("no formatting"))
}

func TestStripHTMLTags(t *testing.T) {
	require.Equal(t, "a < b & c", StripHTMLTags("<b>a &lt; b</b> &amp; c"))
}

// assertWellFormed 校验每个打开的标签都以相反顺序关闭
func assertWellFormed(t *testing.T, html string) {
	t.Helper()
	var stack []string
	for i := 0; i < len(html); i++ {
		if html[i] != '<' {
			continue
		}
		end := strings.IndexByte(html[i:], '>')
		require.Greater(t, end, 0, "unterminated tag in %q", html)
		tag := html[i+1 : i+end]
		if strings.HasPrefix(tag, "/") {
			require.NotEmpty(t, stack, "close without open in %q", html)
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			require.Equal(t, top, tag[1:], "mismatched nesting in %q", html)
		} else {
			name := tag
			if sp := strings.IndexByte(name, ' '); sp > 0 {
				name = name[:sp]
			}
			stack = append(stack, name)
		}
		i += end
	}
	require.Empty(t, stack, "unclosed tags in %q", html)
}
