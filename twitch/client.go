package twitch

import (
	"context"
	"strings"
	"sync"
	"time"

	twitchirc "github.com/gempir/go-twitch-irc/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"twitch-ws-irc/config"
	"twitch-ws-irc/irc"
	"twitch-ws-irc/model"
	"twitch-ws-irc/wsclient"
)

// Handler принимает Twitch-события, преобразованные в доменные модели.
type Handler interface {
	HandleChat(context.Context, model.ChatMessage)
	HandleNotice(context.Context, model.Notice)
	HandleRoomState(context.Context, model.RoomState)
}

// Client связывает WebSocket транспорт, протокольный клиент и Handler.
type Client struct {
	irc        *irc.Client
	dispatcher *irc.Dispatcher
	handler    Handler
	channels   []string
	logger     *zap.Logger

	ctxMu   sync.RWMutex
	baseCtx context.Context
}

// NewClient собирает клиент поверх wsclient и регистрирует колбэки.
func NewClient(cfg config.TwitchConfig, handler Handler, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	transport := wsclient.New(wsclient.Config{
		URL:         cfg.URL,
		SettleDelay: cfg.SettleDelay,
		Logger:      logger.Named("ws"),
	})
	return newClient(transport, cfg, handler, logger)
}

func newClient(t irc.Transport, cfg config.TwitchConfig, handler Handler, logger *zap.Logger) *Client {
	ic := irc.NewClient(t, irc.Options{
		Username:                 cfg.Username,
		Token:                    cfg.OAuthToken,
		Verified:                 cfg.Verified,
		PublicRoomstateQueueSize: 256,
		Logger:                   logger.Named("irc"),
	})

	c := &Client{
		irc:      ic,
		handler:  handler,
		channels: cfg.Channels,
		logger:   logger,
	}

	ic.OnConnected(func(*irc.Client) {
		c.logger.Info("twitch: подключено, вход в каналы", zap.Strings("channels", c.channels))
	})
	ic.OnDisconnected(func(*irc.Client) {
		c.logger.Info("twitch: отключено")
	})

	d := irc.NewDispatcher(ic)
	d.OnPrivateMessage = func(m twitchirc.PrivateMessage) {
		c.handler.HandleChat(c.context(), toChatMessage(m))
	}
	d.OnNotice = func(n irc.Notice) {
		c.handler.HandleNotice(c.context(), toNotice(n))
	}
	d.OnReconnect = func() {
		c.logger.Info("twitch: сервер запросил RECONNECT")
		// хук вызывается из цикла чтения, переподключаемся отдельно
		go func() {
			ctx := c.context()
			if err := c.irc.Reconnect(ctx); err != nil && ctx.Err() == nil {
				c.logger.Error("twitch: переподключение по RECONNECT", zap.Error(err))
			}
		}()
	}
	c.dispatcher = d

	return c
}

// IRC возвращает протокольный клиент, например для доступа к реестру каналов.
func (c *Client) IRC() *irc.Client { return c.irc }

// Run подключает клиента и блокируется до отмены контекста или ошибки.
func (c *Client) Run(ctx context.Context) error {
	c.setContext(ctx)

	if err := c.irc.Connect(ctx, c.channels...); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.irc.Run(gctx, c.dispatcher) })
	g.Go(func() error { return c.forwardRoomStates(gctx) })
	err := g.Wait()

	if derr := c.irc.Disconnect(); derr != nil {
		c.logger.Warn("twitch: ошибка при отключении", zap.Error(derr))
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// Say отправляет сообщение в канал.
func (c *Client) Say(ctx context.Context, channel, text string) error {
	return c.irc.SendMessage(ctx, channel, text)
}

// Join входит в канал и запоминает его для переподключений.
func (c *Client) Join(ctx context.Context, channel string) error {
	return c.irc.JoinChannel(ctx, channel)
}

// Part покидает канал.
func (c *Client) Part(ctx context.Context, channel string) error {
	return c.irc.LeaveChannel(ctx, channel)
}

// forwardRoomStates передаёт в Handler полный снимок канала после каждого ROOMSTATE.
func (c *Client) forwardRoomStates(ctx context.Context) error {
	updates := c.irc.Roomstates()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case rs := <-updates:
			ch, ok := c.irc.Channels().ChannelByName(rs.Channel)
			if !ok {
				continue
			}
			c.handler.HandleRoomState(ctx, toRoomState(ch.Snapshot()))
		}
	}
}

func toChatMessage(m twitchirc.PrivateMessage) model.ChatMessage {
	badges := make(map[string]int, len(m.User.Badges))
	for k, v := range m.User.Badges {
		badges[k] = v
	}

	sentAt := m.Time
	if sentAt.IsZero() {
		sentAt = time.Now().UTC()
	}

	return model.ChatMessage{
		ID:           m.ID,
		Channel:      normalizeChannel(m.Channel),
		UserID:       m.User.ID,
		Username:     m.User.Name,
		DisplayName:  m.User.DisplayName,
		Text:         m.Message,
		Badges:       badges,
		Color:        m.User.Color,
		IsMod:        m.User.Badges["moderator"] > 0 || m.User.Badges["broadcaster"] > 0,
		IsSubscriber: m.User.Badges["subscriber"] > 0,
		Bits:         m.Bits,
		SentAt:       sentAt,
	}
}

func toNotice(n irc.Notice) model.Notice {
	msgID := n.ID
	if msgID == "" {
		msgID = n.Type.String()
	}

	noticeAt := n.SentAt
	if noticeAt.IsZero() {
		noticeAt = time.Now().UTC()
	}

	return model.Notice{
		Channel:  normalizeChannel(n.Channel),
		MsgID:    msgID,
		Message:  n.Message,
		NoticeAt: noticeAt,
	}
}

func toRoomState(rs irc.Roomstate) model.RoomState {
	return model.RoomState{
		RoomID:        rs.ChannelID,
		Channel:       rs.Channel,
		EmoteOnly:     rs.EmoteOnly,
		FollowersOnly: rs.FollowersOnly,
		R9K:           rs.R9K,
		SlowMode:      rs.SlowMode,
		SubsOnly:      rs.SubsOnly,
		UpdatedAt:     time.Now().UTC(),
	}
}

func normalizeChannel(ch string) string {
	return strings.TrimPrefix(strings.TrimSpace(ch), "#")
}

func (c *Client) setContext(ctx context.Context) {
	c.ctxMu.Lock()
	defer c.ctxMu.Unlock()
	c.baseCtx = ctx
}

func (c *Client) context() context.Context {
	c.ctxMu.RLock()
	defer c.ctxMu.RUnlock()
	if c.baseCtx != nil {
		return c.baseCtx
	}
	return context.Background()
}
