package telegram

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	tgauth "github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"
)

// PromptKind 认证流程向外请求的输入类型
type PromptKind int

const (
	PromptPhone PromptKind = iota
	PromptCode
	PromptPassword
)

// Prompt 一次认证输入请求，回答写入 Reply
type Prompt struct {
	Kind  PromptKind
	Reply chan<- string
}

// ChanAuth 通过 channel 把认证输入请求交给外部（终端、测试桩等）。
// 首次登录才会走到这里，会话建立后由 session 文件复用。
type ChanAuth struct {
	prompts chan<- Prompt
}

// NewChanAuth 创建基于 channel 的认证器
func NewChanAuth(prompts chan<- Prompt) ChanAuth {
	return ChanAuth{prompts: prompts}
}

func (a ChanAuth) request(ctx context.Context, kind PromptKind) (string, error) {
	reply := make(chan string, 1)

	select {
	case a.prompts <- Prompt{Kind: kind, Reply: reply}:
	case <-ctx.Done():
		return "", ctx.Err()
	}

	select {
	case answer := <-reply:
		return strings.TrimSpace(answer), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (a ChanAuth) Phone(ctx context.Context) (string, error) {
	return a.request(ctx, PromptPhone)
}

func (a ChanAuth) Code(ctx context.Context, _ *tg.AuthSentCode) (string, error) {
	return a.request(ctx, PromptCode)
}

func (a ChanAuth) Password(ctx context.Context) (string, error) {
	return a.request(ctx, PromptPassword)
}

func (a ChanAuth) SignUp(ctx context.Context) (tgauth.UserInfo, error) {
	return tgauth.UserInfo{}, fmt.Errorf("sign up is not supported, use an existing account")
}

func (a ChanAuth) AcceptTermsOfService(ctx context.Context, tos tg.HelpTermsOfService) error {
	return nil
}

// ServeTerminalPrompts 在终端回答认证输入请求，直到 ctx 取消。
// 应在独立 goroutine 中运行。
func ServeTerminalPrompts(ctx context.Context, prompts <-chan Prompt) {
	reader := bufio.NewReader(os.Stdin)
	for {
		select {
		case <-ctx.Done():
			return
		case p := <-prompts:
			switch p.Kind {
			case PromptPhone:
				fmt.Print("Phone number: ")
			case PromptCode:
				fmt.Print("Login code: ")
			case PromptPassword:
				fmt.Print("2FA password: ")
			}
			line, err := reader.ReadString('\n')
			if err != nil && err != io.EOF {
				return
			}
			p.Reply <- strings.TrimSpace(line)
		}
	}
}
