package irc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"twitch-ws-irc/telemetry"
)

const receiveRetryDelay = time.Second

// Run запускает три фоновых цикла и блокируется до отмены ctx:
//   - чтение сообщений транспорта и передача строк в h;
//   - ответы PONG на поставленные в очередь PING;
//   - применение ROOMSTATE к реестру каналов и пересылка в Roomstates().
//
// Ошибка обработки одной строки или отправки одного PONG не останавливает цикл.
func (c *Client) Run(ctx context.Context, h LineHandler) error {
	c.setContext(ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.readLoop(gctx, h) })
	g.Go(func() error { return c.keepAliveLoop(gctx) })
	g.Go(func() error { return c.roomstateLoop(gctx) })
	return g.Wait()
}

func (c *Client) readLoop(ctx context.Context, h LineHandler) error {
	for {
		msg, err := c.transport.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Warn("irc: ошибка чтения из транспорта", zap.Error(err))
			if err := c.clock.Sleep(ctx, receiveRetryDelay); err != nil {
				return err
			}
			continue
		}

		// одно сообщение WebSocket может содержать несколько строк
		for len(msg) > 0 {
			var line []byte
			if i := bytes.IndexByte(msg, '\n'); i >= 0 {
				line, msg = msg[:i], msg[i+1:]
			} else {
				line, msg = msg, nil
			}
			line = trimCRLF(line)
			if len(line) == 0 {
				continue
			}
			telemetry.Inc(telemetry.LinesReceived)
			if err := c.handleLine(ctx, h, line); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				// нераспознанные ROOMSTATE и NOTICE уже учтены диспетчером
				if !errors.Is(err, ErrMalformedLine) {
					telemetry.IncLabel(telemetry.ParseErrors, "line")
				}
				c.logger.Warn("irc: строка отброшена", zap.Error(err), zap.ByteString("line", line))
			}
		}
	}
}

func (c *Client) handleLine(ctx context.Context, h LineHandler, line []byte) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("irc: panic in line handler: %v", v)
		}
	}()
	return h.HandleLine(ctx, line)
}

func (c *Client) keepAliveLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case buf := <-c.pings:
			err := c.sendLine(ctx, false, "PONG :", *buf, "", nil)
			putLineBuffer(buf)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				c.logger.Warn("irc: не удалось отправить PONG", zap.Error(err))
				continue
			}
			telemetry.Inc(telemetry.PongsSent)
		}
	}
}

func (c *Client) roomstateLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case rs := <-c.roomstates:
			ch, created, err := c.channels.Apply(rs)
			if errors.Is(err, ErrChannelNotJoined) {
				c.logger.Debug("irc: ROOMSTATE для канала вне реестра пропущен", zap.String("channel", rs.Channel))
				continue
			}
			if err != nil {
				c.logger.Error("irc: ROOMSTATE не применён", zap.Error(err), zap.String("channel", rs.Channel))
				continue
			}
			telemetry.Inc(telemetry.RoomstatesApplied)
			if created {
				c.logger.Debug("irc: новый канал", zap.String("channel", ch.Name()), zap.Int64("room_id", ch.ID()))
			}

			if c.public == nil {
				continue
			}
			select {
			case c.public <- rs:
			default:
				telemetry.Inc(telemetry.RoomstatesDropped)
				c.logger.Warn("irc: очередь ROOMSTATE подписчика заполнена, запись отброшена", zap.String("channel", rs.Channel))
			}
		}
	}
}
