// Package translator 基于 OpenAI 兼容接口的两段式翻译：
// 先翻译，再由校对 agent 检查标签完整性和不可翻译内容。
package translator

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"mirror_bot/internal/logger"
)

// Config 翻译服务配置
type Config struct {
	APIKey          string
	BaseURL         string // 留空则使用官方端点
	FallbackBaseURL string // 主端点请求失败时重试的备用端点，可留空
	Model           string
	TargetLanguage  string
}

// Translator 调用 LLM 完成 HTML 文本翻译
type Translator struct {
	client   *openai.Client
	fallback *openai.Client
	model    string

	translatePrompt string
	verifyPrompt    string
}

const promptTagRules = `The text may contain Telegram HTML markup. The full whitelist of allowed tags:
<b> <strong> <i> <em> <u> <s> <del> <tg-spoiler> <code> <pre> <pre><code class="language-x"> <a href="url"> <blockquote>

CRITICAL markup rules:
- KEEP ALL HTML tags EXACTLY as they are. Do not remove, add, or alter attributes.
- Every opening tag MUST have a matching closing tag.
- Do NOT use tags that are absent from the original.
- Tags must wrap the same semantic fragments as in the original.
- If the original has NO HTML tags, do NOT add any to the translation.`

// New 创建翻译器
func New(cfg Config) (*Translator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm api key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("llm model is required")
	}
	if cfg.TargetLanguage == "" {
		cfg.TargetLanguage = "Ukrainian"
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	var fallback *openai.Client
	if cfg.FallbackBaseURL != "" && cfg.FallbackBaseURL != cfg.BaseURL {
		fallbackCfg := openai.DefaultConfig(cfg.APIKey)
		fallbackCfg.BaseURL = cfg.FallbackBaseURL
		fallback = openai.NewClientWithConfig(fallbackCfg)
	}

	translatePrompt := fmt.Sprintf(`You are a professional translator. Translate the text into literary %s.

%s

Translation rules:
- Do NOT translate the content of <code> and <pre>. It is program code.
- Do NOT translate prompts intended for AI/LLM systems. Keep them in the original language.
- Do NOT translate URLs, @usernames, #hashtags, or names of technologies, libraries, and functions.
- Use grammatically correct literary %s.
- Preserve the paragraph structure of the original.
- Return ONLY the translated text without explanations.`, cfg.TargetLanguage, promptTagRules, cfg.TargetLanguage)

	verifyPrompt := fmt.Sprintf(`You are an editor verifying a %s translation of a Telegram post.

%s

You are given the original and the translation. Check and fix:

1. HTML tags:
   - All tags from the original are PRESERVED, none removed and none added.
   - Every tag is properly CLOSED.
   - If the original had NO tags, the translation must have none either.

2. Untranslated content:
   - Code inside <code>/<pre> is unchanged.
   - URLs, @usernames, #hashtags are unchanged.
   - Technology names are unchanged.

3. Quality: the translation is accurate and literary, paragraph structure preserved.

Return ONLY the final translation text. No explanations, comments, or notes.`, cfg.TargetLanguage, promptTagRules)

	return &Translator{
		client:          openai.NewClientWithConfig(clientCfg),
		fallback:        fallback,
		model:           cfg.Model,
		translatePrompt: translatePrompt,
		verifyPrompt:    verifyPrompt,
	}, nil
}

func (t *Translator) call(ctx context.Context, system, user string, temperature float32) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       t.model,
		Temperature: temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	}

	resp, err := t.client.CreateChatCompletion(ctx, req)
	if err != nil && t.fallback != nil && ctx.Err() == nil {
		logger.L().Warnf("LLM primary endpoint failed, retrying on fallback: %v", err)
		resp, err = t.fallback.CreateChatCompletion(ctx, req)
	}
	if err != nil {
		return "", fmt.Errorf("llm request failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty llm response")
	}
	result := strings.TrimSpace(resp.Choices[0].Message.Content)
	if result == "" {
		return "", fmt.Errorf("empty llm response")
	}
	return result, nil
}

// Translate 翻译一段 Telegram HTML 文本：先翻译、后校对
func (t *Translator) Translate(ctx context.Context, htmlText string) (string, error) {
	translated, err := t.call(ctx, t.translatePrompt, htmlText, 0.3)
	if err != nil {
		return "", err
	}

	verified, err := t.Verify(ctx, htmlText, translated)
	if err != nil {
		// 校对失败时退回首轮译文，比整条失败好
		logger.L().Warnf("Translation verify pass failed, using raw translation: %v", err)
		return translated, nil
	}
	return verified, nil
}

// Verify 让校对 agent 检查并修正译文
func (t *Translator) Verify(ctx context.Context, original, translated string) (string, error) {
	user := fmt.Sprintf("ORIGINAL:\n%s\n\nTRANSLATION:\n%s", original, translated)
	return t.call(ctx, t.verifyPrompt, user, 0.1)
}
