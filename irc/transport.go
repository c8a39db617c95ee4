package irc

import "context"

// ConnectionState описывает состояние транспорта.
type ConnectionState int32

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// Transport представляет двунаправленный канал сообщений (WebSocket), который сам
// восстанавливает соединение. Реализация: пакет wsclient.
//
// Send и SendDuringMaintenance копируют b; буфер можно переиспользовать сразу
// после возврата. Обычные отправки откладываются на время «обслуживания»
// после (пере)подключения, а SendDuringMaintenance нет.
type Transport interface {
	Connect(ctx context.Context) error
	Reconnect(ctx context.Context) error
	Disconnect() error
	Send(ctx context.Context, b []byte) error
	SendDuringMaintenance(ctx context.Context, b []byte) error
	Receive(ctx context.Context) ([]byte, error)
	// WaitForPendingSends возвращается, когда всё принятое к отправке записано в соединение.
	WaitForPendingSends(ctx context.Context) error
	State() ConnectionState
	// OnReconnected регистрирует fn, вызываемую после автоматического переподключения.
	OnReconnected(fn func())
	// OnDisconnected регистрирует fn, вызываемую при неожиданном обрыве соединения.
	OnDisconnected(fn func())
}

// LineHandler разбирает одну строку протокола без CRLF.
type LineHandler interface {
	HandleLine(ctx context.Context, line []byte) error
}

// LineHandlerFunc адаптирует функцию к LineHandler.
type LineHandlerFunc func(ctx context.Context, line []byte) error

func (f LineHandlerFunc) HandleLine(ctx context.Context, line []byte) error {
	return f(ctx, line)
}
