package app

import (
	"context"
	"fmt"
	"time"

	botapi "github.com/go-telegram/bot"

	"mirror_bot/internal/config"
	"mirror_bot/internal/logger"
	"mirror_bot/internal/media"
	"mirror_bot/internal/mirror"
	"mirror_bot/internal/mirror/repository"
	"mirror_bot/internal/mongo"
	"mirror_bot/internal/publisher"
	"mirror_bot/internal/telegram"
	"mirror_bot/internal/translator"
)

// mongoIndexTimeout 启动时建索引的时限
const mongoIndexTimeout = 30 * time.Second

// App 应用服务容器
// 负责管理所有服务的生命周期（初始化、运行、关闭）
type App struct {
	MongoDB *mongo.Client
	Wire    *telegram.Client

	Channels repository.ChannelRepository
	Posts    repository.PostRepository
	MediaDB  repository.MediaRepository

	Listener     *mirror.Listener
	Poller       *mirror.Poller
	FetchManager *mirror.FetchManager

	ChannelService *mirror.ChannelService
	PostService    *mirror.PostService
	Dispatcher     *publisher.Dispatcher

	AuthPrompts chan telegram.Prompt

	sender *publisher.BotAPISender
}

// New 初始化应用及其所有服务
// 按顺序初始化各个服务，任何服务初始化失败都会返回错误
func New(cfg *config.Config) (*App, error) {
	app := &App{}

	mongoClient, err := mongo.NewClient(mongo.Config{
		URI:      cfg.Mongo.URI,
		Database: cfg.Mongo.Database,
	})
	if err != nil {
		return nil, fmt.Errorf("init MongoDB failed: %w", err)
	}
	app.MongoDB = mongoClient
	logger.L().Info("MongoDB initialized successfully")

	db := mongoClient.Database()
	app.Channels = repository.NewMongoChannelRepository(db)
	app.Posts = repository.NewMongoPostRepository(db)
	app.MediaDB = repository.NewMongoMediaRepository(db)

	ctx, cancel := context.WithTimeout(context.Background(), mongoIndexTimeout)
	defer cancel()
	for _, ensure := range []func(context.Context) error{
		app.Channels.EnsureIndexes,
		app.Posts.EnsureIndexes,
		app.MediaDB.EnsureIndexes,
	} {
		if err := ensure(ctx); err != nil {
			app.Close(context.Background())
			return nil, fmt.Errorf("ensure indexes failed: %w", err)
		}
	}

	app.AuthPrompts = make(chan telegram.Prompt)
	wire, err := telegram.NewClient(telegram.Config{
		APIID:       cfg.Telegram.APIID,
		APIHash:     cfg.Telegram.APIHash,
		SessionFile: cfg.Telegram.SessionFile,
	}, telegram.NewChanAuth(app.AuthPrompts))
	if err != nil {
		app.Close(context.Background())
		return nil, fmt.Errorf("init Telegram client failed: %w", err)
	}
	app.Wire = wire

	tr, err := translator.New(translator.Config{
		APIKey:          cfg.LLM.APIKey,
		BaseURL:         cfg.LLM.BaseURL,
		FallbackBaseURL: cfg.LLM.FallbackBaseURL,
		Model:           cfg.LLM.Model,
		TargetLanguage:  cfg.LLM.TargetLanguage,
	})
	if err != nil {
		app.Close(context.Background())
		return nil, fmt.Errorf("init translator failed: %w", err)
	}

	saver := media.NewSaver(wire, app.MediaDB, cfg.MediaDir)
	ingestor := mirror.NewIngestor(app.Posts, saver)
	translate := mirror.NewTranslateService(app.Posts, tr)

	app.Listener = mirror.NewListener(app.Channels, ingestor, translate)
	app.Poller = mirror.NewPoller(mirror.PollerConfig{
		Interval:     cfg.Poller.Interval,
		LookbackDays: cfg.Poller.InitialSyncDays,
	}, wire, app.Channels, app.Posts, ingestor, translate)
	app.FetchManager = mirror.NewFetchManager(mirror.NewHistoryFetcher(wire, ingestor))

	app.ChannelService = mirror.NewChannelService(wire, app.Channels, app.Posts, saver, app.Poller)
	app.PostService = mirror.NewPostService(app.Posts, saver, translate)

	bot, err := botapi.New(cfg.Telegram.BotToken)
	if err != nil {
		app.Close(context.Background())
		return nil, fmt.Errorf("init Bot API client failed: %w", err)
	}
	app.sender = publisher.NewBotAPISender(bot, cfg.Publisher.SendsPerMinute)
	app.Dispatcher = publisher.NewDispatcher(publisher.Config{
		DefaultTarget: cfg.Telegram.TargetChannelID,
		MediaRoot:     cfg.MediaDir,
	}, app.Posts, app.Channels, app.MediaDB, app.sender)

	return app, nil
}

// Start 启动后台组件：监听器挂上消息流，轮询器开始调度
func (a *App) Start() {
	a.Listener.Start(a.Wire)
	a.Poller.Start()
}

// Close 优雅关闭所有服务
// 应该在应用退出时调用，确保资源正确释放
func (a *App) Close(ctx context.Context) error {
	if a.Poller != nil {
		a.Poller.Stop()
	}
	if a.sender != nil {
		a.sender.Close()
	}
	if a.Wire != nil {
		if err := a.Wire.Close(); err != nil {
			logger.L().Warnf("Telegram client close failed: %v", err)
		}
	}
	if a.MongoDB != nil {
		if err := a.MongoDB.Close(ctx); err != nil {
			return fmt.Errorf("close MongoDB failed: %w", err)
		}
	}
	return nil
}
