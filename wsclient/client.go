// Package wsclient реализует irc.Transport поверх WebSocket: очередь отправки
// с приоритетом и окном обслуживания после подключения, ограничение частоты
// обычных строк и автоматическое переподключение с экспоненциальной паузой.
package wsclient

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"twitch-ws-irc/irc"
)

// DefaultURL задаёт WebSocket-эндпоинт Twitch IRC.
const DefaultURL = "wss://irc-ws.chat.twitch.tv:443"

var (
	ErrClosed       = errors.New("wsclient: closed")
	ErrNotConnected = errors.New("wsclient: not connected")
)

// Config задаёт параметры клиента. Нулевые поля заменяются значениями по умолчанию.
type Config struct {
	URL string
	// SettleDelay задаёт окно обслуживания после (пере)подключения, в течение
	// которого уходят только строки SendDuringMaintenance.
	SettleDelay time.Duration
	// RateLimit и RateBurst ограничивают обычные отправки (Twitch: 20 строк за 30 секунд).
	RateLimit        rate.Limit
	RateBurst        int
	SendQueueSize    int
	ReceiveQueueSize int
	WriteTimeout     time.Duration
	ReconnectMin     time.Duration
	ReconnectMax     time.Duration
	Dialer           *websocket.Dialer
	Logger           *zap.Logger
}

func (cfg *Config) setDefaults() {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = 2 * time.Second
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = rate.Every(30 * time.Second / 20)
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 20
	}
	if cfg.SendQueueSize <= 0 {
		cfg.SendQueueSize = 256
	}
	if cfg.ReceiveQueueSize <= 0 {
		cfg.ReceiveQueueSize = 256
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.ReconnectMin <= 0 {
		cfg.ReconnectMin = time.Second
	}
	if cfg.ReconnectMax <= 0 {
		cfg.ReconnectMax = 2 * time.Minute
	}
	if cfg.Dialer == nil {
		cfg.Dialer = websocket.DefaultDialer
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
}

// phase описывает период между (пере)подключениями. settled закрывается по
// окончании окна обслуживания, next закрывается при смене периода.
type phase struct {
	settled chan struct{}
	next    chan struct{}
}

// Client реализует WebSocket-транспорт. Реализует irc.Transport.
type Client struct {
	cfg     Config
	logger  *zap.Logger
	limiter *rate.Limiter
	state   atomic.Int32

	mu         sync.Mutex
	conn       *websocket.Conn
	session    string
	life       context.Context
	cancel     context.CancelFunc
	writerDone chan struct{}
	hooks      []func()
	dropHooks  []func()

	phaseMu sync.Mutex
	phase   *phase

	pendingMu sync.Mutex
	pending   int
	drained   chan struct{}

	priority chan []byte
	normal   chan []byte
	incoming chan []byte
}

var _ irc.Transport = (*Client)(nil)

// New создаёт отключённый клиент.
func New(cfg Config) *Client {
	cfg.setDefaults()
	return &Client{
		cfg:      cfg,
		logger:   cfg.Logger,
		limiter:  rate.NewLimiter(cfg.RateLimit, cfg.RateBurst),
		phase:    &phase{settled: make(chan struct{}), next: make(chan struct{})},
		priority: make(chan []byte, cfg.SendQueueSize),
		normal:   make(chan []byte, cfg.SendQueueSize),
		incoming: make(chan []byte, cfg.ReceiveQueueSize),
	}
}

// State реализует irc.Transport.
func (c *Client) State() irc.ConnectionState {
	return irc.ConnectionState(c.state.Load())
}

// Session возвращает идентификатор текущего соединения.
func (c *Client) Session() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// OnReconnected реализует irc.Transport.
func (c *Client) OnReconnected(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hooks = append(c.hooks, fn)
}

// OnDisconnected реализует irc.Transport. Хуки вызываются синхронно при
// неожиданном обрыве, до начала переподключения; Disconnect и Reconnect их не вызывают.
func (c *Client) OnDisconnected(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dropHooks = append(c.dropHooks, fn)
}

// Connect устанавливает соединение и запускает фоновую запись.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		return nil
	}
	if c.life == nil || c.life.Err() != nil {
		c.life, c.cancel = context.WithCancel(context.Background())
		c.writerDone = make(chan struct{})
		go c.writeLoop(c.life, c.writerDone)
	}
	c.mu.Unlock()

	return c.dial(ctx)
}

// Reconnect закрывает текущее соединение и устанавливает новое.
// Хуки OnReconnected при этом не вызываются.
func (c *Client) Reconnect(ctx context.Context) error {
	c.mu.Lock()
	if c.life == nil || c.life.Err() != nil {
		c.mu.Unlock()
		return c.Connect(ctx)
	}
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	c.state.Store(int32(irc.StateDisconnected))
	c.beginPhase(false)
	return c.dial(ctx)
}

// Disconnect закрывает соединение, останавливает запись и автоматическое
// переподключение. Неотправленные строки отбрасываются.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	cancel := c.cancel
	c.cancel = nil
	done := c.writerDone
	c.writerDone = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	var err error
	if conn != nil {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		err = conn.Close()
	}
	if done != nil {
		<-done
	}

	c.discardQueued()
	c.state.Store(int32(irc.StateDisconnected))
	c.beginPhase(false)
	return err
}

// Send ставит строку в обычную очередь. b копируется.
func (c *Client) Send(ctx context.Context, b []byte) error {
	return c.enqueue(ctx, c.normal, b)
}

// SendDuringMaintenance ставит строку в приоритетную очередь, которая
// обслуживается и во время окна обслуживания. b копируется.
func (c *Client) SendDuringMaintenance(ctx context.Context, b []byte) error {
	return c.enqueue(ctx, c.priority, b)
}

func (c *Client) enqueue(ctx context.Context, queue chan []byte, b []byte) error {
	life := c.lifetime()
	if life == nil || life.Err() != nil {
		return ErrNotConnected
	}

	msg := append([]byte(nil), b...)
	c.addPending()
	select {
	case queue <- msg:
		return nil
	case <-ctx.Done():
		c.sendDone()
		return ctx.Err()
	case <-life.Done():
		c.sendDone()
		return ErrClosed
	}
}

// Receive возвращает следующее сообщение WebSocket. Сообщения всех
// соединений поступают в одну очередь.
func (c *Client) Receive(ctx context.Context) ([]byte, error) {
	life := c.lifetime()
	if life == nil {
		return nil, ErrNotConnected
	}
	select {
	case b := <-c.incoming:
		return b, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-life.Done():
		return nil, ErrClosed
	}
}

// WaitForPendingSends возвращается, когда все принятые строки записаны в соединение.
func (c *Client) WaitForPendingSends(ctx context.Context) error {
	c.pendingMu.Lock()
	if c.pending == 0 {
		c.pendingMu.Unlock()
		return nil
	}
	drained := c.drained
	c.pendingMu.Unlock()

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) lifetime() context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.life
}

func (c *Client) dial(ctx context.Context) error {
	c.state.Store(int32(irc.StateConnecting))

	conn, _, err := c.cfg.Dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		c.state.Store(int32(irc.StateDisconnected))
		return fmt.Errorf("wsclient: dial %s: %w", c.cfg.URL, err)
	}

	session := uuid.NewString()
	c.mu.Lock()
	life := c.life
	if life == nil || life.Err() != nil {
		c.mu.Unlock()
		_ = conn.Close()
		c.state.Store(int32(irc.StateDisconnected))
		return ErrClosed
	}
	old := c.conn
	c.conn = conn
	c.session = session
	c.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}

	c.state.Store(int32(irc.StateConnected))
	c.beginPhase(true)
	go c.readLoop(life, conn)

	c.logger.Info("wsclient: подключено", zap.String("url", c.cfg.URL), zap.String("session", session))
	return nil
}

// beginPhase начинает новый период; при settle окно обслуживания
// закроется через SettleDelay, иначе обычные строки ждут подключения.
func (c *Client) beginPhase(settle bool) {
	p := &phase{settled: make(chan struct{}), next: make(chan struct{})}

	c.phaseMu.Lock()
	old := c.phase
	c.phase = p
	c.phaseMu.Unlock()

	close(old.next)
	if settle {
		time.AfterFunc(c.cfg.SettleDelay, func() { close(p.settled) })
	}
}

func (c *Client) currentPhase() *phase {
	c.phaseMu.Lock()
	defer c.phaseMu.Unlock()
	return c.phase
}

func (c *Client) readLoop(life context.Context, conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.handleDrop(conn, err)
			return
		}
		select {
		case c.incoming <- data:
		case <-life.Done():
			return
		}
	}
}

func (c *Client) writeLoop(life context.Context, done chan struct{}) {
	defer close(done)

	for {
		select {
		case b := <-c.priority:
			c.write(b)
			continue
		default:
		}

		p := c.currentPhase()
		select {
		case <-life.Done():
			return
		case b := <-c.priority:
			c.write(b)
		case <-p.next:
		case <-p.settled:
			select {
			case <-life.Done():
				return
			case b := <-c.priority:
				c.write(b)
			case <-p.next:
			case b := <-c.normal:
				if err := c.limiter.Wait(life); err != nil {
					c.sendDone()
					return
				}
				c.write(b)
			}
		}
	}
}

func (c *Client) write(b []byte) {
	defer c.sendDone()

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		c.logger.Warn("wsclient: нет соединения, строка отброшена", zap.Int("bytes", len(b)))
		return
	}

	_ = conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		c.handleDrop(conn, err)
	}
}

// handleDrop обрабатывает обрыв соединения conn и запускает переподключение.
func (c *Client) handleDrop(conn *websocket.Conn, err error) {
	c.mu.Lock()
	if c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	life := c.life
	session := c.session
	dropHooks := append([]func(){}, c.dropHooks...)
	c.mu.Unlock()

	_ = conn.Close()
	if life == nil || life.Err() != nil {
		return
	}

	c.state.Store(int32(irc.StateDisconnected))
	c.beginPhase(false)
	c.logger.Warn("wsclient: соединение потеряно", zap.String("session", session), zap.Error(err))
	for _, fn := range dropHooks {
		fn()
	}
	go c.reconnectLoop(life)
}

func (c *Client) reconnectLoop(life context.Context) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.ReconnectMin
	b.MaxInterval = c.cfg.ReconnectMax
	b.Reset()

	for {
		timer := time.NewTimer(b.NextBackOff())
		select {
		case <-life.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		if c.State() == irc.StateConnected {
			return
		}
		if err := c.dial(life); err != nil {
			c.logger.Warn("wsclient: переподключение не удалось", zap.Error(err))
			continue
		}

		c.mu.Lock()
		hooks := append([]func(){}, c.hooks...)
		c.mu.Unlock()
		for _, fn := range hooks {
			fn()
		}
		return
	}
}

func (c *Client) addPending() {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	if c.pending == 0 {
		c.drained = make(chan struct{})
	}
	c.pending++
}

func (c *Client) sendDone() {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	if c.pending == 0 {
		return
	}
	c.pending--
	if c.pending == 0 {
		close(c.drained)
	}
}

func (c *Client) discardQueued() {
	for {
		select {
		case <-c.priority:
		case <-c.normal:
		default:
			c.pendingMu.Lock()
			if c.pending > 0 {
				c.pending = 0
				close(c.drained)
			}
			c.pendingMu.Unlock()
			return
		}
	}
}
