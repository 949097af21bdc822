package mirror

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"mirror_bot/internal/logger"
	"mirror_bot/internal/mirror/models"
)

// ErrFetchRunning 同一频道已有回填任务在跑
var ErrFetchRunning = fmt.Errorf("a fetch is already running for this channel")

// fetchTask 一次进行中的回填
type fetchTask struct {
	id       string
	cancel   context.CancelFunc
	progress FetchProgress
}

// FetchManager 管理按频道互斥的回填任务：同一频道同时最多一个，
// 任务以 uuid 标识，可查询进度和取消。
type FetchManager struct {
	fetcher *HistoryFetcher

	mu    sync.Mutex
	tasks map[primitive.ObjectID]*fetchTask
}

// NewFetchManager 创建回填任务管理器
func NewFetchManager(fetcher *HistoryFetcher) *FetchManager {
	return &FetchManager{
		fetcher: fetcher,
		tasks:   make(map[primitive.ObjectID]*fetchTask),
	}
}

// Start 为频道启动后台回填，返回任务 ID。
// 该频道已有任务时返回 ErrFetchRunning。
func (m *FetchManager) Start(channel *models.Channel, since *time.Time) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// 终态任务只是为查询保留进度，不阻塞新任务
	if existing, ok := m.tasks[channel.ID]; ok && !existing.progress.Done {
		return "", ErrFetchRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	task := &fetchTask{id: uuid.NewString(), cancel: cancel}
	m.tasks[channel.ID] = task

	go func() {
		defer cancel()

		_, err := m.fetcher.Fetch(ctx, channel, since, func(p FetchProgress) {
			m.mu.Lock()
			task.progress = p
			m.mu.Unlock()
		})
		if err != nil {
			logger.L().Errorf("History fetch task %s failed: %v", task.id, err)
		}

		// 终态进度保留一段时间供查询，之后清理
		time.AfterFunc(10*time.Minute, func() {
			m.mu.Lock()
			if current, ok := m.tasks[channel.ID]; ok && current.id == task.id {
				delete(m.tasks, channel.ID)
			}
			m.mu.Unlock()
		})
	}()

	logger.L().Infof("History fetch task %s started for @%s", task.id, channel.Username)
	return task.id, nil
}

// Progress 查询频道当前（或刚结束的）回填进度
func (m *FetchManager) Progress(channelID primitive.ObjectID) (FetchProgress, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, ok := m.tasks[channelID]
	if !ok {
		return FetchProgress{}, false
	}
	return task.progress, true
}

// Cancel 协作式取消频道的回填任务，进行中的下载会先完成
func (m *FetchManager) Cancel(channelID primitive.ObjectID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, ok := m.tasks[channelID]
	if !ok {
		return false
	}
	task.cancel()
	return true
}
