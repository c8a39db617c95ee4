package irc

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

const (
	oauthPrefix     = "oauth:"
	oauthPayloadLen = 30
	oauthTokenLen   = len(oauthPrefix) + oauthPayloadLen
)

var ErrInvalidTokenFormat = errors.New("oauth token: invalid format")

var oauthPattern = regexp.MustCompile(`^(?i:oauth:)?[a-zA-Z0-9]{30}$`)

// OAuthToken хранит нормализованный токен вида "oauth:<30 символов [a-z0-9]>".
// Нулевое значение (EmptyOAuthToken) означает, что токен не задан.
type OAuthToken struct {
	value string
}

// EmptyOAuthToken означает анонимный вход.
var EmptyOAuthToken = OAuthToken{}

// NewOAuthToken валидирует строку и приводит её к каноническому виду.
func NewOAuthToken(s string) (OAuthToken, error) {
	if !oauthPattern.MatchString(s) {
		return EmptyOAuthToken, fmt.Errorf("%w: expected optional %q prefix and %d alphanumeric characters", ErrInvalidTokenFormat, oauthPrefix, oauthPayloadLen)
	}

	payload := s[len(s)-oauthPayloadLen:]
	if len(s) == oauthTokenLen && s[:len(oauthPrefix)] == oauthPrefix && isLowerASCII(payload) {
		return OAuthToken{value: s}, nil
	}

	var b strings.Builder
	b.Grow(oauthTokenLen)
	b.WriteString(oauthPrefix)
	b.WriteString(strings.ToLower(payload))
	return OAuthToken{value: b.String()}, nil
}

// NewOAuthTokenBytes работает как NewOAuthToken, но принимает срез байт.
func NewOAuthTokenBytes(b []byte) (OAuthToken, error) {
	return NewOAuthToken(string(b))
}

// IsEmpty сообщает, что токен не задан.
func (t OAuthToken) IsEmpty() bool {
	return t.value == ""
}

// Value возвращает токен целиком, для PASS.
func (t OAuthToken) Value() string {
	return t.value
}

// Equal сравнивает токены по нормализованному значению.
func (t OAuthToken) Equal(other OAuthToken) bool {
	return t.value == other.value
}

// String скрывает содержимое токена, чтобы он не попадал в логи.
func (t OAuthToken) String() string {
	if t.IsEmpty() {
		return "<empty>"
	}
	return oauthPrefix + "******"
}

func isLowerASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 'A' && s[i] <= 'Z' {
			return false
		}
	}
	return true
}
