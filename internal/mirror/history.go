package mirror

import (
	"context"
	"time"

	"mirror_bot/internal/logger"
	"mirror_bot/internal/mirror/models"
	"mirror_bot/internal/telegram"
)

// FetchProgress 回填进度快照，计数在 done 之前单调不减
type FetchProgress struct {
	Fetched int    `json:"fetched"`
	Saved   int    `json:"saved"`
	Skipped int    `json:"skipped"`
	Done    bool   `json:"done"`
	Error   string `json:"error,omitempty"`
}

// progressEvery 每处理多少条消息上报一次进度
const progressEvery = 20

// HistoryFetcher 按需回填频道历史。取消是协作式的：在两条消息
// 之间检查 ctx，进行中的下载会先做完。从不自动翻译，回填内容的
// 翻译由调用方另行触发。同频道的并发互斥由调用方（FetchManager）负责。
type HistoryFetcher struct {
	wire     Wire
	ingestor *Ingestor
}

// NewHistoryFetcher 创建回填器
func NewHistoryFetcher(wire Wire, ingestor *Ingestor) *HistoryFetcher {
	return &HistoryFetcher{wire: wire, ingestor: ingestor}
}

// Fetch 回填频道历史，since 非空时只回填该时间之后的消息。
// onProgress 每 progressEvery 条消息调用一次，结束（含取消和出错）
// 时再调用一次终态。
func (f *HistoryFetcher) Fetch(ctx context.Context, channel *models.Channel, since *time.Time, onProgress func(FetchProgress)) (FetchProgress, error) {
	progress := FetchProgress{}
	report := func() {
		if onProgress != nil {
			onProgress(progress)
		}
	}

	finish := func(err error) (FetchProgress, error) {
		progress.Done = true
		if err != nil {
			progress.Error = err.Error()
		}
		report()
		return progress, err
	}

	peer, err := f.wire.ResolveChannel(ctx, channel.Username)
	if err != nil {
		return finish(err)
	}

	err = f.wire.History(ctx, peer, telegram.HistoryOptions{}, func(msg telegram.Message) (bool, error) {
		if ctx.Err() != nil {
			logger.L().Infof("History fetch canceled for @%s", channel.Username)
			return false, nil
		}

		progress.Fetched++

		// 历史从新到旧，越过时间下界即可停止
		if since != nil && msg.Date.Before(*since) {
			logger.L().Infof("Reached messages older than %s, stopping", since.Format(time.RFC3339))
			return false, nil
		}

		post, _, err := f.ingestor.Ingest(ctx, channel, msg, true)
		switch {
		case err != nil:
			logger.L().Errorf("History fetch save failed for msg %d: %v", msg.ID, err)
			progress.Skipped++
		case post == nil:
			progress.Skipped++
		default:
			// upsert 幂等，已存在的帖子同样计入 saved
			progress.Saved++
		}

		if progress.Fetched%progressEvery == 0 {
			report()
		}
		return true, nil
	})
	if err != nil {
		return finish(err)
	}

	logger.L().Infof("History fetch for @%s done: %d fetched, %d saved, %d skipped",
		channel.Username, progress.Fetched, progress.Saved, progress.Skipped)
	return finish(nil)
}
