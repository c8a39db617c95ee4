package tokens

import "time"

// Token описывает OAuth токен пользователя для входа в чат.
type Token struct {
	Access string
	// ExpiresAt нулевой, если срок действия неизвестен.
	ExpiresAt time.Time
}

// Expired сообщает, что срок действия токена известен и истёк к моменту now.
func (t Token) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && !t.ExpiresAt.After(now)
}

// TokenStore описывает хранилище токена чата.
type TokenStore interface {
	LoadChatToken() (*Token, error)
	SaveChatToken(Token) error
}
