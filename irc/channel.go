package irc

import (
	"errors"
	"fmt"
	"sync"
)

var ErrUnknownChangedState = errors.New("irc: unknown changed state")

// Channel хранит текущее состояние комнаты, собранное из строк ROOMSTATE.
// Создаётся по первому (полному) ROOMSTATE и далее обновляется на месте.
type Channel struct {
	id        int64
	name      string
	nameBytes []byte

	mu            sync.RWMutex
	emoteOnly     bool
	followersOnly int
	r9k           bool
	slowMode      int
	subsOnly      bool
}

// NewChannel создаёт канал из полного снимка ROOMSTATE.
func NewChannel(rs Roomstate) *Channel {
	return &Channel{
		id:            rs.ChannelID,
		name:          rs.Channel,
		nameBytes:     []byte("#" + rs.Channel),
		emoteOnly:     rs.EmoteOnly,
		followersOnly: rs.FollowersOnly,
		r9k:           rs.R9K,
		slowMode:      rs.SlowMode,
		subsOnly:      rs.SubsOnly,
	}
}

// Apply переносит в канал только поля, отмеченные в rs.Changed.
func (c *Channel) Apply(rs Roomstate) error {
	if unknown := rs.Changed &^ AllChangedStates; unknown != 0 {
		return fmt.Errorf("%w: %s", ErrUnknownChangedState, unknown)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if rs.Changed.Has(ChangedEmoteOnly) {
		c.emoteOnly = rs.EmoteOnly
	}
	if rs.Changed.Has(ChangedFollowersOnly) {
		c.followersOnly = rs.FollowersOnly
	}
	if rs.Changed.Has(ChangedR9K) {
		c.r9k = rs.R9K
	}
	if rs.Changed.Has(ChangedSlowMode) {
		c.slowMode = rs.SlowMode
	}
	if rs.Changed.Has(ChangedSubsOnly) {
		c.subsOnly = rs.SubsOnly
	}
	return nil
}

func (c *Channel) ID() int64 { return c.id }

// Name возвращает имя канала без '#'.
func (c *Channel) Name() string { return c.name }

// NameBytes возвращает "#name" для исходящих команд. Срез нельзя изменять.
func (c *Channel) NameBytes() []byte { return c.nameBytes }

func (c *Channel) EmoteOnly() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.emoteOnly
}

func (c *Channel) FollowersOnly() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.followersOnly
}

func (c *Channel) R9K() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.r9k
}

func (c *Channel) SlowMode() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.slowMode
}

func (c *Channel) SubsOnly() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.subsOnly
}

// Snapshot возвращает согласованную копию состояния со всеми битами Changed.
func (c *Channel) Snapshot() Roomstate {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Roomstate{
		EmoteOnly:     c.emoteOnly,
		FollowersOnly: c.followersOnly,
		R9K:           c.r9k,
		ChannelID:     c.id,
		Channel:       c.name,
		SlowMode:      c.slowMode,
		SubsOnly:      c.subsOnly,
		Changed:       AllChangedStates,
	}
}
