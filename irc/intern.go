package irc

import "sync"

// internPool дедуплицирует строки, повторяющиеся от строки к строке
// (имена каналов, тексты NOTICE). Размер ограничен: при переполнении пул
// сбрасывается целиком.
type internPool struct {
	mu      sync.RWMutex
	strings map[string]string
	limit   int
}

func newInternPool(limit int) *internPool {
	return &internPool{strings: make(map[string]string), limit: limit}
}

func (p *internPool) intern(b []byte) string {
	p.mu.RLock()
	s, ok := p.strings[string(b)]
	p.mu.RUnlock()
	if ok {
		return s
	}

	s = string(b)
	p.mu.Lock()
	if len(p.strings) >= p.limit {
		p.strings = make(map[string]string)
	}
	p.strings[s] = s
	p.mu.Unlock()
	return s
}

var (
	channelNames = newInternPool(4096)
	noticeTexts  = newInternPool(1024)
	noticeIDs    = newInternPool(256)
)
