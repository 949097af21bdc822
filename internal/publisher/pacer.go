package publisher

import (
	"context"
	"time"
)

// SendPacer 控制对目标频道的发布节奏，避免触发 Bot API 的限流。
// 采用令牌桶：桶容量即突发上限，令牌按固定间隔补充
type SendPacer struct {
	tokens   chan struct{}
	stopCh   chan struct{}
	interval time.Duration
}

// NewSendPacer 创建发布节奏控制器
// perMinute: 每分钟允许的发送次数（图文组和文本各算一次）
func NewSendPacer(perMinute int) *SendPacer {
	if perMinute <= 0 {
		perMinute = 20
	}

	pacer := &SendPacer{
		tokens:   make(chan struct{}, perMinute),
		stopCh:   make(chan struct{}),
		interval: time.Minute / time.Duration(perMinute),
	}

	// 启动时装满令牌桶，允许短时突发
	for i := 0; i < perMinute; i++ {
		pacer.tokens <- struct{}{}
	}

	go pacer.refill()

	return pacer
}

// Wait 阻塞直到拿到发送配额或上下文取消
func (p *SendPacer) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.tokens:
		return nil
	}
}

func (p *SendPacer) refill() {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			select {
			case p.tokens <- struct{}{}:
			default:
				// 桶已满
			}
		}
	}
}

// Close 停止令牌补充
func (p *SendPacer) Close() {
	close(p.stopCh)
}
