package irc

import (
	"slices"

	"go.uber.org/zap"
)

// OnConnected подписывает fn на успешное подключение транспорта.
// Подписчики вызываются асинхронно и не блокируют Connect.
func (c *Client) OnConnected(fn func(*Client)) {
	c.evMu.Lock()
	defer c.evMu.Unlock()
	c.onConnected = append(c.onConnected, fn)
}

// OnDisconnected подписывает fn на отключение клиента: вызов Disconnect или
// обрыв соединения, после которого транспорт переподключается сам.
func (c *Client) OnDisconnected(fn func(*Client)) {
	c.evMu.Lock()
	defer c.evMu.Unlock()
	c.onDisconnected = append(c.onDisconnected, fn)
}

func (c *Client) raiseConnected() {
	c.evMu.RLock()
	subs := slices.Clone(c.onConnected)
	c.evMu.RUnlock()
	c.raise("connected", subs)
}

func (c *Client) raiseDisconnected() {
	c.evMu.RLock()
	subs := slices.Clone(c.onDisconnected)
	c.evMu.RUnlock()
	c.raise("disconnected", subs)
}

func (c *Client) raise(event string, subs []func(*Client)) {
	for _, fn := range subs {
		go func(fn func(*Client)) {
			defer func() {
				if v := recover(); v != nil {
					c.logger.Error("irc: паника в подписчике события", zap.String("event", event), zap.Any("panic", v))
				}
			}()
			fn(c)
		}(fn)
	}
}
