package irc

import (
	"bytes"
	"errors"
	"fmt"
	"math"
)

// ErrMalformedLine возвращается парсерами для строк, не соответствующих формату.
var ErrMalformedLine = errors.New("irc: malformed line")

// ChangedStates содержит набор полей, присутствовавших в конкретной строке ROOMSTATE.
// При входе в канал Twitch присылает все поля, далее только изменившиеся.
type ChangedStates uint8

const (
	ChangedEmoteOnly ChangedStates = 1 << iota
	ChangedFollowersOnly
	ChangedR9K
	ChangedSlowMode
	ChangedSubsOnly

	AllChangedStates = ChangedEmoteOnly | ChangedFollowersOnly | ChangedR9K | ChangedSlowMode | ChangedSubsOnly
)

// Has сообщает, что все биты f присутствуют в c.
func (c ChangedStates) Has(f ChangedStates) bool {
	return c&f == f
}

func (c ChangedStates) String() string {
	if c == 0 {
		return "none"
	}
	names := [...]string{"emote-only", "followers-only", "r9k", "slow", "subs-only"}
	var b []byte
	for i, name := range names {
		if c&(1<<i) == 0 {
			continue
		}
		if len(b) > 0 {
			b = append(b, '|')
		}
		b = append(b, name...)
	}
	if rest := c &^ AllChangedStates; rest != 0 {
		if len(b) > 0 {
			b = append(b, '|')
		}
		b = fmt.Appendf(b, "0x%02x", uint8(rest))
	}
	return string(b)
}

// Roomstate хранит разобранную строку ROOMSTATE.
type Roomstate struct {
	EmoteOnly bool
	// FollowersOnly равен -1, если режим выключен, иначе минимальный стаж фолловера в минутах.
	FollowersOnly int
	R9K           bool
	// ChannelID равен 0, если в строке нет тега room-id.
	ChannelID int64
	// Channel содержит имя канала без '#'.
	Channel string
	// SlowMode в секундах, 0 означает, что режим выключен.
	SlowMode int
	SubsOnly bool
	Changed  ChangedStates
}

// ParseRoomstate разбирает строку вида
//
//	@emote-only=0;followers-only=-1;r9k=0;room-id=123;slow=0;subs-only=0 :tmi.twitch.tv ROOMSTATE #channel
//
// Неизвестные теги пропускаются, room-id необязателен.
func ParseRoomstate(line []byte) (Roomstate, error) {
	line = trimCRLF(line)
	if len(line) == 0 || line[0] != '@' {
		return Roomstate{}, malformed("roomstate", "missing tag section")
	}

	firstSpace := bytes.IndexByte(line, ' ')
	lastSpace := bytes.LastIndexByte(line, ' ')
	if firstSpace < 0 || lastSpace == firstSpace {
		return Roomstate{}, malformed("roomstate", "truncated line")
	}

	rs := Roomstate{FollowersOnly: -1}

	tags := line[1:firstSpace]
	for len(tags) > 0 {
		eq := bytes.IndexByte(tags, '=')
		if eq < 0 {
			return Roomstate{}, malformed("roomstate", "tag without value")
		}
		key := tags[:eq]
		rest := tags[eq+1:]

		var value []byte
		if end := bytes.IndexByte(rest, ';'); end >= 0 {
			value, tags = rest[:end], rest[end+1:]
		} else {
			value, tags = rest, nil
		}

		switch string(key) {
		case "emote-only":
			rs.EmoteOnly = isOn(value)
			rs.Changed |= ChangedEmoteOnly
		case "followers-only":
			if len(value) > 0 && value[0] == '-' {
				rs.FollowersOnly = -1
			} else {
				n, ok := parseSmallInt(value)
				if !ok {
					return Roomstate{}, malformed("roomstate", "bad followers-only value")
				}
				rs.FollowersOnly = n
			}
			rs.Changed |= ChangedFollowersOnly
		case "r9k":
			rs.R9K = isOn(value)
			rs.Changed |= ChangedR9K
		case "room-id":
			n, ok := parseUint(value)
			if !ok {
				return Roomstate{}, malformed("roomstate", "bad room-id value")
			}
			rs.ChannelID = int64(n)
		case "slow":
			n, ok := parseSmallInt(value)
			if !ok {
				return Roomstate{}, malformed("roomstate", "bad slow value")
			}
			rs.SlowMode = n
			rs.Changed |= ChangedSlowMode
		case "subs-only":
			rs.SubsOnly = isOn(value)
			rs.Changed |= ChangedSubsOnly
		}
	}

	channel := line[lastSpace+1:]
	if len(channel) > 0 && channel[0] == ':' {
		channel = channel[1:]
	}
	if len(channel) < 2 || channel[0] != '#' {
		return Roomstate{}, malformed("roomstate", "missing channel")
	}
	rs.Channel = channelNames.intern(channel[1:])

	return rs, nil
}

func malformed(kind, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrMalformedLine, kind, reason)
}

func isOn(value []byte) bool {
	return len(value) > 0 && value[0] == '1'
}

func parseUint(b []byte) (uint64, bool) {
	if len(b) == 0 || len(b) > 19 {
		return 0, false
	}
	var n uint64
	for _, c := range b {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + uint64(c-'0')
	}
	if n > math.MaxInt64 {
		return 0, false
	}
	return n, true
}

func parseSmallInt(b []byte) (int, bool) {
	n, ok := parseUint(b)
	if !ok || n > math.MaxInt32 {
		return 0, false
	}
	return int(n), true
}

func trimCRLF(line []byte) []byte {
	for len(line) > 0 && (line[len(line)-1] == '\n' || line[len(line)-1] == '\r') {
		line = line[:len(line)-1]
	}
	return line
}
