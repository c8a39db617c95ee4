package irc

import (
	"bytes"
	"context"

	twitchirc "github.com/gempir/go-twitch-irc/v4"

	"twitch-ws-irc/telemetry"
)

// Dispatcher является LineHandler по умолчанию. PING, ROOMSTATE и NOTICE
// разбираются прямо по байтам и попадают в очереди Client или в OnNotice;
// прочие строки декодируются go-twitch-irc и передаются в хуки.
// Хуки вызываются синхронно из цикла чтения.
type Dispatcher struct {
	client *Client

	OnPrivateMessage func(twitchirc.PrivateMessage)
	OnNotice         func(Notice)
	// OnReconnect вызывается, когда сервер прислал RECONNECT и скоро закроет соединение.
	OnReconnect func()
	// OnMessage получает все остальные строки.
	OnMessage func(twitchirc.Message)
}

// NewDispatcher создаёт Dispatcher, работающий с очередями c.
func NewDispatcher(c *Client) *Dispatcher {
	return &Dispatcher{client: c}
}

// HandleLine реализует LineHandler.
func (d *Dispatcher) HandleLine(ctx context.Context, line []byte) error {
	cmd, params := splitCommand(line)

	switch string(cmd) {
	case "PING":
		if len(params) > 0 && params[0] == ':' {
			params = params[1:]
		}
		return d.client.QueuePing(ctx, params)
	case "ROOMSTATE":
		rs, err := ParseRoomstate(line)
		if err != nil {
			telemetry.IncLabel(telemetry.ParseErrors, "roomstate")
			return err
		}
		return d.client.QueueRoomstate(ctx, rs)
	case "NOTICE":
		n, err := ParseNotice(line)
		if err != nil {
			telemetry.IncLabel(telemetry.ParseErrors, "notice")
			return err
		}
		if d.OnNotice != nil {
			d.OnNotice(n)
		}
		return nil
	case "RECONNECT":
		if d.OnReconnect != nil {
			d.OnReconnect()
		}
		return nil
	}

	if d.OnPrivateMessage == nil && d.OnMessage == nil {
		return nil
	}

	msg := twitchirc.ParseMessage(string(line))
	if pm, ok := msg.(*twitchirc.PrivateMessage); ok && d.OnPrivateMessage != nil {
		d.OnPrivateMessage(*pm)
		return nil
	}
	if d.OnMessage != nil {
		d.OnMessage(msg)
	}
	return nil
}

// splitCommand пропускает теги и префикс и возвращает команду и параметры.
func splitCommand(line []byte) (cmd, params []byte) {
	rest := line
	if len(rest) > 0 && rest[0] == '@' {
		sp := bytes.IndexByte(rest, ' ')
		if sp < 0 {
			return nil, nil
		}
		rest = rest[sp+1:]
	}
	if len(rest) > 0 && rest[0] == ':' {
		sp := bytes.IndexByte(rest, ' ')
		if sp < 0 {
			return nil, nil
		}
		rest = rest[sp+1:]
	}
	if sp := bytes.IndexByte(rest, ' '); sp >= 0 {
		return rest[:sp], rest[sp+1:]
	}
	return rest, nil
}
