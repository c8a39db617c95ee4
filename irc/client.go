package irc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"twitch-ws-irc/telemetry"
)

const (
	// JoinWindow задаёт окно, в котором Twitch ограничивает число JOIN.
	JoinWindow = 10 * time.Second
	// MaxJoinsPerWindow задаёт лимит JOIN за окно для обычной учётной записи.
	MaxJoinsPerWindow = 20
	// MaxJoinsPerWindowVerified задаёт лимит для верифицированного бота.
	MaxJoinsPerWindowVerified = 200

	capabilityRequest = "CAP REQ :twitch.tv/tags twitch.tv/commands twitch.tv/membership"

	// самая длинная исходящая строка: PRIVMSG #<25> :<500>
	maxLineLength = len("PRIVMSG #") + MaxChannelNameLength + len(" :") + MaxMessageLength
)

var ErrInvalidMessage = errors.New("irc: message contains line breaks")

// Options настраивает Client.
type Options struct {
	Username string
	// Token может быть EmptyOAuthToken, тогда PASS не отправляется.
	Token OAuthToken
	// Verified включает лимит JOIN верифицированного бота.
	Verified bool

	PingQueueSize      int
	RoomstateQueueSize int
	// PublicRoomstateQueueSize > 0 включает публичную очередь Roomstates().
	PublicRoomstateQueueSize int

	// Logger по умолчанию zap.NewNop().
	Logger *zap.Logger
}

// Client реализует протокольный клиент Twitch IRC поверх Transport: аутентификация,
// вход в каналы с учётом лимита, отправка строк и фоновые циклы (см. Run).
type Client struct {
	transport Transport
	username  string
	token     OAuthToken
	maxJoins  int
	window    time.Duration
	channels  *ChannelList
	logger    *zap.Logger
	clock     clock

	pings      chan *[]byte
	roomstates chan Roomstate
	public     chan Roomstate

	authenticated atomic.Bool

	ctxMu   sync.RWMutex
	baseCtx context.Context

	evMu           sync.RWMutex
	onConnected    []func(*Client)
	onDisconnected []func(*Client)
}

// NewClient создаёт клиент и подписывается на автоматические переподключения транспорта.
func NewClient(t Transport, opts Options) *Client {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.PingQueueSize <= 0 {
		opts.PingQueueSize = 16
	}
	if opts.RoomstateQueueSize <= 0 {
		opts.RoomstateQueueSize = 256
	}

	c := &Client{
		transport:  t,
		username:   opts.Username,
		token:      opts.Token,
		maxJoins:   MaxJoinsPerWindow,
		window:     JoinWindow,
		channels:   NewChannelList(),
		logger:     opts.Logger,
		clock:      realClock{},
		pings:      make(chan *[]byte, opts.PingQueueSize),
		roomstates: make(chan Roomstate, opts.RoomstateQueueSize),
	}
	if opts.Verified {
		c.maxJoins = MaxJoinsPerWindowVerified
	}
	if opts.PublicRoomstateQueueSize > 0 {
		c.public = make(chan Roomstate, opts.PublicRoomstateQueueSize)
	}

	t.OnReconnected(c.handleAutoReconnect)
	t.OnDisconnected(c.handleConnectionLost)
	return c
}

// Channels возвращает реестр каналов клиента.
func (c *Client) Channels() *ChannelList { return c.channels }

// Roomstates возвращает публичную очередь ROOMSTATE или nil, если она не включена.
func (c *Client) Roomstates() <-chan Roomstate { return c.public }

// State возвращает состояние транспорта.
func (c *Client) State() ConnectionState { return c.transport.State() }

// Authenticated сообщает, что после последнего (пере)подключения отправлены PASS/NICK/CAP.
func (c *Client) Authenticated() bool { return c.authenticated.Load() }

// Connect подключает транспорт, уведомляет подписчиков OnConnected и
// проходит аутентификацию с входом во все каналы реестра и channels.
func (c *Client) Connect(ctx context.Context, channels ...string) error {
	// реестр не меняется, если хоть одно имя неверно
	for _, ch := range channels {
		if !ValidChannelName(FormatChannelName(ch)) {
			return fmt.Errorf("%w: %q", ErrInvalidChannelName, ch)
		}
	}
	for _, ch := range channels {
		if _, err := c.channels.Add(ch); err != nil {
			return err
		}
	}

	if err := c.transport.Connect(ctx); err != nil {
		return fmt.Errorf("irc: connect: %w", err)
	}
	c.logger.Info("irc: транспорт подключён", zap.Int("channels", c.channels.Len()))
	c.raiseConnected()

	return c.AuthenticateAndJoin(ctx, c.channels.UTF8Names())
}

// AuthenticateAndJoin отправляет PASS (если задан токен), NICK, CAP REQ и
// входит в channels с учётом лимита. Все строки идут в обход окна обслуживания транспорта.
func (c *Client) AuthenticateAndJoin(ctx context.Context, channels [][]byte) error {
	c.authenticated.Store(false)

	if !c.token.IsEmpty() {
		if err := c.sendLine(ctx, true, "PASS ", []byte(c.token.Value()), "", nil); err != nil {
			return fmt.Errorf("irc: send PASS: %w", err)
		}
	}
	if err := c.sendLine(ctx, true, "NICK ", []byte(c.username), "", nil); err != nil {
		return fmt.Errorf("irc: send NICK: %w", err)
	}
	if err := c.transport.SendDuringMaintenance(ctx, []byte(capabilityRequest)); err != nil {
		return fmt.Errorf("irc: send CAP: %w", err)
	}
	c.authenticated.Store(true)
	c.logger.Debug("irc: аутентификация отправлена", zap.String("nick", c.username), zap.Stringer("token", c.token))

	telemetry.SetJoinedChannels(c.channels.Len())
	return c.JoinChannelsThrottled(ctx, channels)
}

// Disconnect отключает транспорт и уведомляет подписчиков OnDisconnected.
func (c *Client) Disconnect() error {
	c.authenticated.Store(false)
	err := c.transport.Disconnect()
	c.raiseDisconnected()
	if err != nil {
		return fmt.Errorf("irc: disconnect: %w", err)
	}
	return nil
}

// Reconnect переподключает транспорт и заново входит во все каналы реестра.
func (c *Client) Reconnect(ctx context.Context) error {
	c.authenticated.Store(false)
	if err := c.transport.Reconnect(ctx); err != nil {
		return fmt.Errorf("irc: reconnect: %w", err)
	}
	telemetry.Inc(telemetry.Reconnects)
	return c.AuthenticateAndJoin(ctx, c.channels.UTF8Names())
}

// handleConnectionLost вызывается транспортом при обрыве соединения.
// Подписчики OnDisconnected узнают о нём так же, как о Disconnect.
func (c *Client) handleConnectionLost() {
	c.authenticated.Store(false)
	c.logger.Warn("irc: соединение потеряно, транспорт переподключается")
	c.raiseDisconnected()
}

func (c *Client) handleAutoReconnect() {
	c.authenticated.Store(false)
	telemetry.Inc(telemetry.Reconnects)
	go func() {
		ctx := c.context()
		if err := c.AuthenticateAndJoin(ctx, c.channels.UTF8Names()); err != nil && ctx.Err() == nil {
			c.logger.Error("irc: повторная аутентификация после переподключения", zap.Error(err))
		}
	}()
}

// SendRaw отправляет готовую строку протокола без CRLF.
func (c *Client) SendRaw(ctx context.Context, line []byte) error {
	if bytes.ContainsAny(line, "\r\n") {
		return ErrInvalidMessage
	}
	return c.transport.Send(ctx, line)
}

// SendMessage отправляет PRIVMSG в канал.
func (c *Client) SendMessage(ctx context.Context, channel, text string) error {
	prefixed := FormatChannelName(channel)
	if !ValidChannelName(prefixed) {
		return fmt.Errorf("%w: %q", ErrInvalidChannelName, channel)
	}
	if len(text) > MaxMessageLength {
		return fmt.Errorf("%w: %d bytes", ErrMessageTooLong, len(text))
	}
	for i := 0; i < len(text); i++ {
		if text[i] == '\r' || text[i] == '\n' {
			return ErrInvalidMessage
		}
	}
	return c.sendLine(ctx, false, "PRIVMSG ", []byte(prefixed), " :", []byte(text))
}

// JoinChannel добавляет канал в реестр и отправляет JOIN.
func (c *Client) JoinChannel(ctx context.Context, channel string) error {
	rec, err := c.channels.Add(channel)
	if err != nil {
		return err
	}
	telemetry.SetJoinedChannels(c.channels.Len())
	return c.sendLine(ctx, false, "JOIN ", rec.Prefixed(), "", nil)
}

// LeaveChannel удаляет канал из реестра и отправляет PART.
func (c *Client) LeaveChannel(ctx context.Context, channel string) error {
	prefixed := FormatChannelName(channel)
	if !ValidChannelName(prefixed) {
		return fmt.Errorf("%w: %q", ErrInvalidChannelName, channel)
	}
	c.channels.Remove(prefixed)
	telemetry.SetJoinedChannels(c.channels.Len())
	return c.sendLine(ctx, false, "PART ", []byte(prefixed), "", nil)
}

// QueuePing ставит PONG в очередь ответа. payload копируется.
func (c *Client) QueuePing(ctx context.Context, payload []byte) error {
	buf := getLineBuffer()
	*buf = append((*buf)[:0], payload...)
	select {
	case c.pings <- buf:
		return nil
	case <-ctx.Done():
		putLineBuffer(buf)
		return ctx.Err()
	}
}

// QueueRoomstate ставит разобранный ROOMSTATE в очередь применения к реестру.
func (c *Client) QueueRoomstate(ctx context.Context, rs Roomstate) error {
	select {
	case c.roomstates <- rs:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// sendLine собирает prefix+arg+sep+tail в буфере из пула и отдаёт транспорту.
func (c *Client) sendLine(ctx context.Context, priority bool, prefix string, arg []byte, sep string, tail []byte) error {
	buf := getLineBuffer()
	defer putLineBuffer(buf)

	b := append((*buf)[:0], prefix...)
	b = append(b, arg...)
	b = append(b, sep...)
	b = append(b, tail...)
	*buf = b

	if priority {
		return c.transport.SendDuringMaintenance(ctx, b)
	}
	return c.transport.Send(ctx, b)
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

var linePool = sync.Pool{
	New: func() any {
		b := make([]byte, 0, maxLineLength)
		return &b
	},
}

func getLineBuffer() *[]byte { return linePool.Get().(*[]byte) }

func putLineBuffer(b *[]byte) {
	if cap(*b) > 4*maxLineLength {
		return
	}
	*b = (*b)[:0]
	linePool.Put(b)
}
