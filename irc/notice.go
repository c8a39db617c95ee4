package irc

import (
	"bytes"
	"time"
)

// Notice хранит разобранную строку NOTICE.
type Notice struct {
	Type NoticeType
	// ID содержит msg-id как его прислал Twitch, в том числе нераспознанный.
	ID      string
	Message string
	// Channel без '#'. Для служебных NOTICE сервер присылает "*".
	Channel string
	// SentAt берётся из tmi-sent-ts; нулевое, если тега нет.
	SentAt time.Time
}

// ParseNotice разбирает строку вида
//
//	@msg-id=msg_banned :tmi.twitch.tv NOTICE #channel :You are banned from this channel.
//
// Секция тегов необязательна; без неё тип всегда NoticeUnknown.
func ParseNotice(line []byte) (Notice, error) {
	line = trimCRLF(line)

	n := Notice{Type: NoticeUnknown}
	rest := line

	if len(rest) > 0 && rest[0] == '@' {
		sp := bytes.IndexByte(rest, ' ')
		if sp < 0 {
			return Notice{}, malformed("notice", "truncated line")
		}
		tags := rest[1:sp]
		if id, ok := tagValue(tags, "msg-id"); ok && len(id) > 0 {
			n.Type = LookupNoticeType(id)
			n.ID = noticeIDs.intern(id)
		}
		if ts, ok := tagValue(tags, "tmi-sent-ts"); ok {
			if ms, ok := parseUint(ts); ok {
				n.SentAt = time.UnixMilli(int64(ms)).UTC()
			}
		}
		rest = rest[sp+1:]
	}

	// префикс ":tmi.twitch.tv"
	if len(rest) > 0 && rest[0] == ':' {
		sp := bytes.IndexByte(rest, ' ')
		if sp < 0 {
			return Notice{}, malformed("notice", "missing command")
		}
		rest = rest[sp+1:]
	}

	sp := bytes.IndexByte(rest, ' ')
	if sp < 0 {
		return Notice{}, malformed("notice", "missing channel")
	}
	rest = rest[sp+1:]

	sp = bytes.IndexByte(rest, ' ')
	if sp <= 0 {
		return Notice{}, malformed("notice", "missing message")
	}
	channel := rest[:sp]
	if channel[0] == '#' {
		channel = channel[1:]
	}
	if len(channel) == 0 {
		return Notice{}, malformed("notice", "empty channel")
	}
	n.Channel = channelNames.intern(channel)

	message := rest[sp+1:]
	if len(message) > 0 && message[0] == ':' {
		message = message[1:]
	}
	n.Message = noticeTexts.intern(message)

	return n, nil
}

// tagValue ищет значение тега key в секции тегов без ведущего '@'.
func tagValue(tags []byte, key string) ([]byte, bool) {
	for len(tags) > 0 {
		var tag []byte
		if end := bytes.IndexByte(tags, ';'); end >= 0 {
			tag, tags = tags[:end], tags[end+1:]
		} else {
			tag, tags = tags, nil
		}
		eq := bytes.IndexByte(tag, '=')
		if eq < 0 {
			if string(tag) == key {
				return nil, true
			}
			continue
		}
		if string(tag[:eq]) == key {
			return tag[eq+1:], true
		}
	}
	return nil, false
}
