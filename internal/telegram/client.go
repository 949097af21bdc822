package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	tgauth "github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/telegram/downloader"
	"github.com/gotd/td/tg"

	"mirror_bot/internal/logger"
)

// Peer 已解析的频道标识（含 access hash，后续请求需要）
type Peer struct {
	ID         int64
	AccessHash int64
	Username   string
	Title      string
}

// HistoryOptions 历史迭代的边界条件
type HistoryOptions struct {
	MinID int64 // 只返回 ID 严格大于 MinID 的消息（0 表示不限）
	Limit int   // 最多返回条数（0 表示不限）
}

// Config 客户端配置
type Config struct {
	APIID       int
	APIHash     string
	SessionFile string
}

// Client 封装 gotd MTProto 客户端：认证、频道解析、历史迭代、
// 新消息订阅和媒体下载。底层客户端不支持并发媒体下载，
// 所有下载调用经单一互斥锁序列化。
type Client struct {
	client *telegram.Client
	dl     *downloader.Downloader

	ready  chan struct{}
	cancel context.CancelFunc

	handler       func(ctx context.Context, msg Message)
	authenticator tgauth.UserAuthenticator

	mu         sync.RWMutex
	byUsername map[string]*Peer
	byID       map[int64]*Peer

	dlMu sync.Mutex // 序列化所有媒体下载
}

// NewClient 创建 MTProto 客户端
func NewClient(cfg Config, authenticator tgauth.UserAuthenticator) (*Client, error) {
	if cfg.APIID == 0 || cfg.APIHash == "" {
		return nil, fmt.Errorf("telegram api id and api hash are required")
	}

	c := &Client{
		dl:         downloader.NewDownloader(),
		ready:      make(chan struct{}),
		byUsername: make(map[string]*Peer),
		byID:       make(map[int64]*Peer),
	}
	c.authenticator = authenticator

	c.client = telegram.NewClient(cfg.APIID, cfg.APIHash, telegram.Options{
		SessionStorage: &session.FileStorage{Path: cfg.SessionFile},
		UpdateHandler:  telegram.UpdateHandlerFunc(c.handleUpdate),
	})

	return c, nil
}

// Run 连接并认证，然后阻塞直到 ctx 取消。应在独立 goroutine 中运行。
func (c *Client) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	err := c.client.Run(runCtx, func(ctx context.Context) error {
		flow := tgauth.NewFlow(c.authenticator, tgauth.SendCodeOptions{})
		if err := c.client.Auth().IfNecessary(ctx, flow); err != nil {
			return fmt.Errorf("auth flow failed: %w", err)
		}

		logger.L().Info("Telegram client authenticated")
		close(c.ready)
		<-ctx.Done()
		return nil
	})

	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("telegram client stopped: %w", err)
	}
	return nil
}

// WaitReady 等待客户端完成认证
func (c *Client) WaitReady(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.ready:
		return nil
	}
}

// Close 停止客户端
func (c *Client) Close() error {
	if c.cancel != nil {
		c.cancel()
	}
	return nil
}

// OnChannelMessage 注册频道新消息处理器（只允许一个）
func (c *Client) OnChannelMessage(handler func(ctx context.Context, msg Message)) {
	c.handler = handler
}

// ResolveChannel 按用户名解析频道，结果带 access hash 并缓存
func (c *Client) ResolveChannel(ctx context.Context, username string) (*Peer, error) {
	clean := strings.ToLower(strings.TrimPrefix(username, "@"))

	c.mu.RLock()
	cached, ok := c.byUsername[clean]
	c.mu.RUnlock()
	if ok {
		return cached, nil
	}

	if err := c.WaitReady(ctx); err != nil {
		return nil, err
	}

	resolved, err := c.client.API().ContactsResolveUsername(ctx, clean)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve @%s: %w", clean, err)
	}

	peerChannel, ok := resolved.Peer.(*tg.PeerChannel)
	if !ok {
		return nil, fmt.Errorf("@%s is not a channel", clean)
	}

	for _, chat := range resolved.Chats {
		channel, ok := chat.(*tg.Channel)
		if !ok || channel.ID != peerChannel.ChannelID {
			continue
		}
		peer := &Peer{
			ID:         channel.ID,
			AccessHash: channel.AccessHash,
			Username:   clean,
			Title:      channel.Title,
		}
		c.cachePeer(peer)
		return peer, nil
	}

	return nil, fmt.Errorf("@%s: channel entity missing in resolve response", clean)
}

func (c *Client) cachePeer(peer *Peer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if peer.Username != "" {
		c.byUsername[peer.Username] = peer
	}
	c.byID[peer.ID] = peer
}

func (c *Client) inputPeer(peer *Peer) tg.InputPeerClass {
	return &tg.InputPeerChannel{ChannelID: peer.ID, AccessHash: peer.AccessHash}
}

// History 从新到旧迭代频道历史。fn 返回 false 时停止迭代；
// opts.MinID 为排他下界，opts.Limit 为总条数上限。
func (c *Client) History(ctx context.Context, peer *Peer, opts HistoryOptions, fn func(msg Message) (bool, error)) error {
	if err := c.WaitReady(ctx); err != nil {
		return err
	}

	const batchSize = 100

	api := c.client.API()
	offsetID := 0
	total := 0

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		req := &tg.MessagesGetHistoryRequest{
			Peer:     c.inputPeer(peer),
			OffsetID: offsetID,
			Limit:    batchSize,
			MinID:    int(opts.MinID),
		}

		result, err := api.MessagesGetHistory(ctx, req)
		if err != nil {
			return fmt.Errorf("failed to get history for @%s: %w", peer.Username, err)
		}

		var batch []tg.MessageClass
		switch r := result.(type) {
		case *tg.MessagesMessages:
			batch = r.Messages
		case *tg.MessagesChannelMessages:
			batch = r.Messages
		case *tg.MessagesMessagesSlice:
			batch = r.Messages
		default:
			return fmt.Errorf("unexpected history result type: %T", result)
		}

		if len(batch) == 0 {
			return nil
		}

		for _, raw := range batch {
			msg, ok := c.parseMessage(raw, peer)
			if !ok {
				continue
			}
			// 服务端按 MinID 过滤；这里兜底一次
			if opts.MinID > 0 && msg.ID <= opts.MinID {
				return nil
			}

			cont, err := fn(msg)
			if err != nil {
				return err
			}
			if !cont {
				return nil
			}

			total++
			if opts.Limit > 0 && total >= opts.Limit {
				return nil
			}
		}

		last := batch[len(batch)-1]
		offsetID = last.GetID()

		if len(batch) < batchSize {
			return nil
		}
	}
}

// LatestMessageID 频道当前最新消息 ID；频道为空时返回 0
func (c *Client) LatestMessageID(ctx context.Context, peer *Peer) (int64, error) {
	var latest int64
	err := c.History(ctx, peer, HistoryOptions{Limit: 1}, func(msg Message) (bool, error) {
		latest = msg.ID
		return false, nil
	})
	if err != nil {
		return 0, err
	}
	return latest, nil
}

// handleUpdate 分发平台更新流中的频道新消息
func (c *Client) handleUpdate(ctx context.Context, updates tg.UpdatesClass) error {
	var (
		list  []tg.UpdateClass
		chats []tg.ChatClass
	)

	switch u := updates.(type) {
	case *tg.Updates:
		list, chats = u.Updates, u.Chats
	case *tg.UpdatesCombined:
		list, chats = u.Updates, u.Chats
	default:
		return nil
	}

	channels := make(map[int64]*tg.Channel)
	for _, chat := range chats {
		if ch, ok := chat.(*tg.Channel); ok {
			channels[ch.ID] = ch
		}
	}

	for _, update := range list {
		newMsg, ok := update.(*tg.UpdateNewChannelMessage)
		if !ok {
			continue
		}
		msg, ok := newMsg.Message.(*tg.Message)
		if !ok {
			continue
		}
		peerChannel, ok := msg.PeerID.(*tg.PeerChannel)
		if !ok {
			continue
		}

		peer := c.lookupPeer(peerChannel.ChannelID, channels)
		if peer == nil {
			logger.L().Debugf("Channel message from unknown channel %d, skipping", peerChannel.ChannelID)
			continue
		}

		parsed, ok := c.parseRawMessage(msg, peer)
		if !ok {
			continue
		}

		if c.handler != nil {
			// 处理流程含存储与翻译调用，不能阻塞更新循环
			go c.handler(ctx, parsed)
		}
	}
	return nil
}

// lookupPeer 优先用更新自带的频道实体，其次查缓存
func (c *Client) lookupPeer(channelID int64, fromUpdate map[int64]*tg.Channel) *Peer {
	if ch, ok := fromUpdate[channelID]; ok {
		peer := &Peer{
			ID:         ch.ID,
			AccessHash: ch.AccessHash,
			Username:   strings.ToLower(ch.Username),
			Title:      ch.Title,
		}
		c.cachePeer(peer)
		return peer
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.byID[channelID]
}

func (c *Client) parseMessage(raw tg.MessageClass, peer *Peer) (Message, bool) {
	msg, ok := raw.(*tg.Message)
	if !ok {
		// 服务消息等：跳过
		return Message{}, false
	}
	return c.parseRawMessage(msg, peer)
}

func (c *Client) parseRawMessage(msg *tg.Message, peer *Peer) (Message, bool) {
	media, _ := msg.GetMedia()
	return Message{
		ID:              int64(msg.ID),
		ChannelID:       peer.ID,
		ChannelUsername: peer.Username,
		// 关键：msg.Message 是与实体偏移对齐的干净文本
		Text:     msg.Message,
		Entities: parseEntities(msg.Entities),
		Date:     time.Unix(int64(msg.Date), 0),
		Media:    media,
	}, true
}

// DownloadMedia 把媒体内容写入 w。底层客户端不支持并发下载，
// 调用被互斥锁串行化；长下载无法中途打断。
func (c *Client) DownloadMedia(ctx context.Context, media tg.MessageMediaClass, w io.Writer) error {
	if err := c.WaitReady(ctx); err != nil {
		return err
	}

	loc, err := mediaLocation(media)
	if err != nil {
		return err
	}

	c.dlMu.Lock()
	defer c.dlMu.Unlock()

	if _, err := c.dl.Download(c.client.API(), loc).Stream(ctx, w); err != nil {
		return fmt.Errorf("media download failed: %w", err)
	}
	return nil
}

// mediaLocation 从消息媒体提取可下载的文件位置
func mediaLocation(media tg.MessageMediaClass) (tg.InputFileLocationClass, error) {
	switch m := media.(type) {
	case *tg.MessageMediaPhoto:
		photo, ok := m.Photo.(*tg.Photo)
		if !ok {
			return nil, fmt.Errorf("photo media without photo payload")
		}
		return &tg.InputPhotoFileLocation{
			ID:            photo.ID,
			AccessHash:    photo.AccessHash,
			FileReference: photo.FileReference,
			ThumbSize:     largestPhotoSize(photo.Sizes),
		}, nil
	case *tg.MessageMediaDocument:
		doc, ok := m.Document.(*tg.Document)
		if !ok {
			return nil, fmt.Errorf("document media without document payload")
		}
		return &tg.InputDocumentFileLocation{
			ID:            doc.ID,
			AccessHash:    doc.AccessHash,
			FileReference: doc.FileReference,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported media type: %T", media)
	}
}

func largestPhotoSize(sizes []tg.PhotoSizeClass) string {
	best := ""
	for _, s := range sizes {
		switch size := s.(type) {
		case *tg.PhotoSize:
			best = size.Type
		case *tg.PhotoSizeProgressive:
			best = size.Type
		}
	}
	return best
}
