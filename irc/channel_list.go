package irc

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

var (
	// ErrChannelNotJoined означает ROOMSTATE для канала, которого нет в реестре,
	// например пришедший уже после PART.
	ErrChannelNotJoined = errors.New("irc: channel is not in registry")
	ErrMissingRoomID    = errors.New("irc: first roomstate has no room-id")
	ErrDuplicateRoomID  = errors.New("irc: room-id belongs to another channel")
)

// ChannelRecord описывает запись реестра о канале, в который клиент входит.
// Существует до прихода ROOMSTATE и нужна для JOIN/PART и переподключения.
type ChannelRecord struct {
	name     string
	prefixed []byte
	// state появляется с первым ROOMSTATE; защищено ChannelList.mu
	state *Channel
}

// Name возвращает имя канала без '#'.
func (r *ChannelRecord) Name() string { return r.name }

// Prefixed возвращает "#name" в UTF-8. Срез нельзя изменять.
func (r *ChannelRecord) Prefixed() []byte { return r.prefixed }

type nameCache struct {
	version uint64
	names   [][]byte
}

// ChannelList представляет потокобезопасный реестр каналов клиента.
//
// Состав реестра защищён mu. Кэш имён для массового JOIN после
// переподключения защищён отдельным cacheMu; порядок захвата всегда
// cacheMu → mu. Кэш помечен версией состава и не отдаётся, если состав
// изменился после его построения.
type ChannelList struct {
	mu      sync.Mutex
	records []*ChannelRecord
	byName  map[string]*ChannelRecord
	byID    map[int64]*Channel
	version atomic.Uint64

	cacheMu sync.Mutex
	cache   atomic.Pointer[nameCache]
}

// NewChannelList создаёт пустой реестр.
func NewChannelList() *ChannelList {
	return &ChannelList{
		byName: make(map[string]*ChannelRecord),
		byID:   make(map[int64]*Channel),
	}
}

// Add добавляет канал; повторный вызов с тем же именем (без учёта регистра
// и '#') возвращает существующую запись.
func (l *ChannelList) Add(name string) (*ChannelRecord, error) {
	prefixed := FormatChannelName(name)
	if !ValidChannelName(prefixed) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidChannelName, name)
	}
	key := prefixed[1:]

	l.mu.Lock()
	defer l.mu.Unlock()

	if r, ok := l.byName[key]; ok {
		return r, nil
	}
	r := &ChannelRecord{name: key, prefixed: []byte(prefixed)}
	l.records = append(l.records, r)
	l.byName[key] = r
	l.invalidateLocked()
	return r, nil
}

// Remove удаляет канал вместе с его состоянием ROOMSTATE.
func (l *ChannelList) Remove(name string) (*ChannelRecord, bool) {
	key := TrimChannelName(name)

	l.mu.Lock()
	defer l.mu.Unlock()

	r, ok := l.byName[key]
	if !ok {
		return nil, false
	}
	delete(l.byName, key)
	for i, rec := range l.records {
		if rec == r {
			l.records = append(l.records[:i], l.records[i+1:]...)
			break
		}
	}
	if r.state != nil {
		delete(l.byID, r.state.ID())
	}
	l.invalidateLocked()
	return r, true
}

// Clear очищает реестр.
func (l *ChannelList) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.records = nil
	l.byName = make(map[string]*ChannelRecord)
	l.byID = make(map[int64]*Channel)
	l.invalidateLocked()
}

func (l *ChannelList) invalidateLocked() {
	l.version.Add(1)
	l.cache.Store(nil)
}

// UTF8Names возвращает "#name" всех каналов реестра. Результат кэшируется
// до следующего изменения состава; срезы нельзя изменять.
func (l *ChannelList) UTF8Names() [][]byte {
	if c := l.cache.Load(); c != nil && c.version == l.version.Load() {
		return c.names
	}

	l.cacheMu.Lock()
	defer l.cacheMu.Unlock()

	if c := l.cache.Load(); c != nil && c.version == l.version.Load() {
		return c.names
	}

	l.mu.Lock()
	names := make([][]byte, len(l.records))
	for i, r := range l.records {
		names[i] = r.prefixed
	}
	version := l.version.Load()
	l.mu.Unlock()

	l.cache.Store(&nameCache{version: version, names: names})
	return names
}

// Names возвращает имена каналов без '#' в порядке добавления.
func (l *ChannelList) Names() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	names := make([]string, len(l.records))
	for i, r := range l.records {
		names[i] = r.name
	}
	return names
}

// Contains сообщает, есть ли канал в реестре.
func (l *ChannelList) Contains(name string) bool {
	key := TrimChannelName(name)
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.byName[key]
	return ok
}

func (l *ChannelList) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// Apply применяет ROOMSTATE к каналу реестра. Первый ROOMSTATE канала
// создаёт Channel и должен содержать room-id; последующие обновляют его и
// находятся по имени, так что room-id в них необязателен. На один room-id
// всегда приходится не больше одного Channel.
func (l *ChannelList) Apply(rs Roomstate) (ch *Channel, created bool, err error) {
	if unknown := rs.Changed &^ AllChangedStates; unknown != 0 {
		return nil, false, fmt.Errorf("%w: %s", ErrUnknownChangedState, unknown)
	}
	key := TrimChannelName(rs.Channel)

	l.mu.Lock()
	rec, ok := l.byName[key]
	if !ok {
		l.mu.Unlock()
		return nil, false, fmt.Errorf("%w: %q", ErrChannelNotJoined, rs.Channel)
	}
	if ch = rec.state; ch != nil {
		l.mu.Unlock()
		return ch, false, ch.Apply(rs)
	}

	if rs.ChannelID == 0 {
		l.mu.Unlock()
		return nil, false, fmt.Errorf("%w: %q", ErrMissingRoomID, rs.Channel)
	}
	if other, taken := l.byID[rs.ChannelID]; taken {
		l.mu.Unlock()
		return nil, false, fmt.Errorf("%w: %d (%s)", ErrDuplicateRoomID, rs.ChannelID, other.Name())
	}
	ch = NewChannel(rs)
	rec.state = ch
	l.byID[rs.ChannelID] = ch
	l.mu.Unlock()
	return ch, true, nil
}

// Channel возвращает состояние канала по room-id.
func (l *ChannelList) Channel(id int64) (*Channel, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.byID[id]
	return ch, ok
}

// ChannelByName возвращает состояние канала по имени.
func (l *ChannelList) ChannelByName(name string) (*Channel, bool) {
	key := TrimChannelName(name)

	l.mu.Lock()
	defer l.mu.Unlock()
	if rec, ok := l.byName[key]; ok && rec.state != nil {
		return rec.state, true
	}
	return nil, false
}

// Channels возвращает все каналы, для которых получен ROOMSTATE.
func (l *ChannelList) Channels() []*Channel {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]*Channel, 0, len(l.byID))
	for _, ch := range l.byID {
		out = append(out, ch)
	}
	return out
}
