package irc

import (
	"errors"
	"strings"
)

const (
	// MaxChannelNameLength задаёт максимальную длину логина Twitch (имя канала без '#').
	MaxChannelNameLength = 25
	// MaxMessageLength задаёт лимит Twitch на длину текста PRIVMSG в байтах.
	MaxMessageLength = 500
)

var (
	ErrInvalidChannelName = errors.New("irc: invalid channel name")
	ErrMessageTooLong     = errors.New("irc: message too long")
)

// FormatChannelName приводит имя канала к каноническому виду "#lowercase".
func FormatChannelName(name string) string {
	name = strings.TrimPrefix(strings.TrimSpace(name), "#")
	return "#" + strings.ToLower(name)
}

// TrimChannelName возвращает имя канала в нижнем регистре без '#'.
func TrimChannelName(name string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), "#"))
}

// ValidChannelName проверяет уже отформатированное имя вида "#name".
func ValidChannelName(prefixed string) bool {
	if len(prefixed) < 2 || prefixed[0] != '#' || len(prefixed)-1 > MaxChannelNameLength {
		return false
	}
	for i := 1; i < len(prefixed); i++ {
		switch prefixed[i] {
		case ' ', '\r', '\n', ',', '\x00', '#':
			return false
		}
	}
	return true
}
