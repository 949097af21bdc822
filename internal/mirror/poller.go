package mirror

import (
	"context"
	"sync/atomic"
	"time"

	"mirror_bot/internal/logger"
	"mirror_bot/internal/mirror/models"
	"mirror_bot/internal/mirror/repository"
	"mirror_bot/internal/telegram"
)

// PollerConfig 轮询参数
type PollerConfig struct {
	Interval     time.Duration // 两次轮询的间隔
	LookbackDays int           // 首次同步回溯的天数
}

// Poller 定时轮询活跃频道。严格单飞：定时器触发时上一轮还没结束
// 就整轮丢弃，不排队。水位为空的频道走首次同步，否则走增量轮询。
type Poller struct {
	cfg       PollerConfig
	wire      Wire
	channels  repository.ChannelRepository
	posts     repository.PostRepository
	ingestor  *Ingestor
	translate *TranslateService

	polling atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewPoller 创建轮询器
func NewPoller(cfg PollerConfig, wire Wire, channels repository.ChannelRepository, posts repository.PostRepository, ingestor *Ingestor, translate *TranslateService) *Poller {
	return &Poller{
		cfg:       cfg,
		wire:      wire,
		channels:  channels,
		posts:     posts,
		ingestor:  ingestor,
		translate: translate,
	}
}

// Start 启动轮询循环
func (p *Poller) Start() {
	if p.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})

	go p.run(ctx)
	logger.L().Infof("Poller started (interval: %s, initial sync: %d days)", p.cfg.Interval, p.cfg.LookbackDays)
}

// Stop 停止轮询循环，等待当前一轮收尾
func (p *Poller) Stop() {
	if p.cancel == nil {
		return
	}

	p.cancel()
	<-p.done
	p.cancel = nil
	p.done = nil
	logger.L().Info("Poller stopped")
}

func (p *Poller) run(ctx context.Context) {
	defer close(p.done)

	// 启动即轮询一轮，补上停机期间漏掉的消息
	p.runPoll(ctx)

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.runPoll(ctx)
		}
	}
}

func (p *Poller) runPoll(ctx context.Context) {
	if !p.polling.CompareAndSwap(false, true) {
		logger.L().Warn("Poll skipped, previous poll still running")
		return
	}
	defer p.polling.Store(false)

	channels, err := p.channels.ListActive(ctx)
	if err != nil {
		logger.L().Errorf("Poll failed to list channels: %v", err)
		return
	}

	for _, channel := range channels {
		if ctx.Err() != nil {
			return
		}

		if !channel.Synced() {
			err = p.initialSync(ctx, channel)
		} else {
			err = p.incrementalPoll(ctx, channel)
		}
		// 单个频道出错不影响其余频道，下一轮自然重试
		if err != nil {
			logger.L().Errorf("Poll error for @%s: %v", channel.Username, err)
		}
	}
}

// TriggerChannelSync 对新加入的频道立刻后台执行首次同步，
// 不等下一个轮询周期。
func (p *Poller) TriggerChannelSync(channel *models.Channel) {
	logger.L().Infof("Triggering immediate sync for @%s", channel.Username)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()
		if err := p.initialSync(ctx, channel); err != nil {
			logger.L().Errorf("Immediate sync failed for @%s: %v", channel.Username, err)
		}
	}()
}

// initialSync 回溯窗口内的首次同步。窗口内没有任何消息时，
// 水位按优先级回退：库里已有的最大消息 ID，其次平台最新消息 ID，
// 避免下一轮增量从 0 开始拉全部历史。
func (p *Poller) initialSync(ctx context.Context, channel *models.Channel) error {
	logger.L().Infof("Initial sync for @%s...", channel.Username)

	peer, err := p.wire.ResolveChannel(ctx, channel.Username)
	if err != nil {
		return err
	}

	since := time.Now().AddDate(0, 0, -p.cfg.LookbackDays)

	var maxMsgID int64
	saved := 0

	err = p.wire.History(ctx, peer, telegram.HistoryOptions{}, func(msg telegram.Message) (bool, error) {
		if msg.Date.Before(since) {
			return false, nil
		}

		// 水位反映扫描进度，无文本的消息也计入
		if msg.ID > maxMsgID {
			maxMsgID = msg.ID
		}

		post, _, err := p.ingestor.Ingest(ctx, channel, msg, true)
		if err != nil {
			// 单条失败继续扫描
			logger.L().Errorf("Initial sync save failed for msg %d: %v", msg.ID, err)
			return true, nil
		}
		if post != nil {
			saved++
		}
		return true, nil
	})
	if err != nil {
		return err
	}

	if maxMsgID == 0 {
		dbMax, ok, err := p.posts.MaxTelegramMsgID(ctx, channel.ID)
		if err != nil {
			return err
		}
		if ok {
			maxMsgID = dbMax
		} else {
			latest, err := p.wire.LatestMessageID(ctx, peer)
			if err != nil {
				return err
			}
			maxMsgID = latest
		}
	}

	// 所有回退都落空（空频道）时水位保持未同步，下一轮重试
	if maxMsgID > 0 {
		if err := p.channels.SetWatermark(ctx, channel.ID, maxMsgID); err != nil {
			return err
		}
	}

	logger.L().Infof("Initial sync for @%s done: %d posts saved, watermark=%d", channel.Username, saved, maxMsgID)
	return nil
}

// incrementalPoll 拉取水位之后的新消息。先收集再按从旧到新处理，
// 处理中断时水位也只会单调前进。
func (p *Poller) incrementalPoll(ctx context.Context, channel *models.Channel) error {
	peer, err := p.wire.ResolveChannel(ctx, channel.Username)
	if err != nil {
		return err
	}

	watermark := *channel.LastCheckedMsgID

	var messages []telegram.Message
	err = p.wire.History(ctx, peer, telegram.HistoryOptions{MinID: watermark}, func(msg telegram.Message) (bool, error) {
		messages = append(messages, msg)
		return true, nil
	})
	if err != nil {
		return err
	}

	if len(messages) == 0 {
		return nil
	}

	// 历史接口从新到旧返回，倒序成从旧到新
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	newMax := watermark
	for _, msg := range messages {
		if msg.ID > newMax {
			newMax = msg.ID
		}

		post, _, err := p.ingestor.Ingest(ctx, channel, msg, false)
		if err != nil {
			logger.L().Errorf("Poll save failed for msg %d from @%s: %v", msg.ID, channel.Username, err)
			continue
		}
		if post == nil {
			continue
		}

		// 监听器可能已经翻译过同一条消息，这里只补缺
		if !post.Translated() {
			if err := p.translate.TranslatePost(ctx, post, false); err != nil {
				logger.L().Errorf("Poll translation failed: %v", err)
			}
		}
	}

	if newMax > watermark {
		if err := p.channels.SetWatermark(ctx, channel.ID, newMax); err != nil {
			return err
		}
	}

	logger.L().Infof("@%s: %d new message(s), watermark=%d", channel.Username, len(messages), newMax)
	return nil
}
