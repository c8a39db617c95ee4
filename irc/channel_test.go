package irc

import (
	"errors"
	"fmt"
	"sync"
	"testing"
)

func fullRoomstate(id int64, name string) Roomstate {
	return Roomstate{
		FollowersOnly: -1,
		ChannelID:     id,
		Channel:       name,
		Changed:       AllChangedStates,
	}
}

func TestChannelApplyOnlyChangedFields(t *testing.T) {
	rs := fullRoomstate(1, "chan")
	rs.SlowMode = 10
	rs.SubsOnly = true
	ch := NewChannel(rs)

	if err := ch.Apply(Roomstate{ChannelID: 1, EmoteOnly: true, SlowMode: 0, Changed: ChangedEmoteOnly}); err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}
	if !ch.EmoteOnly() {
		t.Fatalf("emote-only must be applied")
	}
	if ch.SlowMode() != 10 || !ch.SubsOnly() || ch.FollowersOnly() != -1 || ch.R9K() {
		t.Fatalf("unflagged fields must be kept: %+v", ch.Snapshot())
	}

	if err := ch.Apply(Roomstate{FollowersOnly: 30, R9K: true, Changed: ChangedFollowersOnly | ChangedR9K}); err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}
	snap := ch.Snapshot()
	if snap.FollowersOnly != 30 || !snap.R9K || snap.Changed != AllChangedStates {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if snap.ChannelID != 1 || snap.Channel != "chan" || string(ch.NameBytes()) != "#chan" {
		t.Fatalf("identity must not change: %+v", snap)
	}
}

func TestChannelApplyRejectsUnknownFlags(t *testing.T) {
	ch := NewChannel(fullRoomstate(1, "chan"))
	err := ch.Apply(Roomstate{SlowMode: 5, Changed: ChangedSlowMode | ChangedStates(1<<7)})
	if !errors.Is(err, ErrUnknownChangedState) {
		t.Fatalf("expected ErrUnknownChangedState, got %v", err)
	}
	if ch.SlowMode() != 0 {
		t.Fatalf("rejected update must not be applied")
	}
}

func TestChannelListAdd(t *testing.T) {
	l := NewChannelList()

	a, err := l.Add("Foo")
	if err != nil {
		t.Fatalf("Add returned error: %v", err)
	}
	b, err := l.Add("#foo")
	if err != nil {
		t.Fatalf("Add returned error: %v", err)
	}
	if a != b {
		t.Fatalf("Add must be idempotent")
	}
	if a.Name() != "foo" || string(a.Prefixed()) != "#foo" {
		t.Fatalf("unexpected record: %s %s", a.Name(), a.Prefixed())
	}
	if _, err := l.Add("bad name"); !errors.Is(err, ErrInvalidChannelName) {
		t.Fatalf("expected ErrInvalidChannelName, got %v", err)
	}
	if l.Len() != 1 || !l.Contains("FOO") {
		t.Fatalf("unexpected list state: %v", l.Names())
	}
}

func TestChannelListRemoveDropsState(t *testing.T) {
	l := NewChannelList()
	if _, err := l.Add("foo"); err != nil {
		t.Fatal(err)
	}
	if _, _, err := l.Apply(fullRoomstate(5, "foo")); err != nil {
		t.Fatal(err)
	}

	if _, ok := l.Remove("#FOO"); !ok {
		t.Fatalf("Remove must find the channel")
	}
	if _, ok := l.Remove("foo"); ok {
		t.Fatalf("second Remove must report missing channel")
	}
	if _, ok := l.Channel(5); ok {
		t.Fatalf("roomstate must be removed together with the channel")
	}
	if l.Len() != 0 {
		t.Fatalf("list must be empty")
	}
}

func TestChannelListUTF8NamesCache(t *testing.T) {
	l := NewChannelList()
	for _, name := range []string{"a", "b"} {
		if _, err := l.Add(name); err != nil {
			t.Fatal(err)
		}
	}

	first := l.UTF8Names()
	second := l.UTF8Names()
	if len(first) != 2 || &first[0] != &second[0] {
		t.Fatalf("expected cached names, got %q and %q", first, second)
	}

	if _, err := l.Add("c"); err != nil {
		t.Fatal(err)
	}
	third := l.UTF8Names()
	if len(third) != 3 || string(third[2]) != "#c" {
		t.Fatalf("cache must be rebuilt after Add: %q", third)
	}

	l.Clear()
	if names := l.UTF8Names(); len(names) != 0 {
		t.Fatalf("cache must be rebuilt after Clear: %q", names)
	}
}

func TestChannelListApply(t *testing.T) {
	l := NewChannelList()
	if _, err := l.Add("foo"); err != nil {
		t.Fatal(err)
	}

	ch, created, err := l.Apply(fullRoomstate(10, "foo"))
	if err != nil || !created {
		t.Fatalf("first Apply: created=%v err=%v", created, err)
	}
	again, created, err := l.Apply(Roomstate{ChannelID: 10, Channel: "foo", SlowMode: 3, Changed: ChangedSlowMode})
	if err != nil || created || again != ch {
		t.Fatalf("second Apply must update the same channel: created=%v err=%v", created, err)
	}
	if ch.SlowMode() != 3 {
		t.Fatalf("update not applied")
	}
	if byName, ok := l.ChannelByName("#Foo"); !ok || byName != ch {
		t.Fatalf("ChannelByName failed")
	}
	if len(l.Channels()) != 1 {
		t.Fatalf("expected one channel")
	}
	if _, _, err := l.Apply(Roomstate{ChannelID: 11, Channel: "foo", Changed: 0x80}); !errors.Is(err, ErrUnknownChangedState) {
		t.Fatalf("expected ErrUnknownChangedState, got %v", err)
	}
	if _, ok := l.Channel(11); ok {
		t.Fatalf("invalid roomstate must not create a channel")
	}
}

func TestChannelListApplyRequiresMembership(t *testing.T) {
	l := NewChannelList()
	if _, err := l.Add("foo"); err != nil {
		t.Fatal(err)
	}
	if _, _, err := l.Apply(fullRoomstate(5, "foo")); err != nil {
		t.Fatal(err)
	}
	l.Remove("foo")

	// ROOMSTATE, поставленный в очередь до PART, не должен вернуть канал
	if _, _, err := l.Apply(fullRoomstate(5, "foo")); !errors.Is(err, ErrChannelNotJoined) {
		t.Fatalf("expected ErrChannelNotJoined, got %v", err)
	}
	if _, ok := l.Channel(5); ok || len(l.Channels()) != 0 {
		t.Fatalf("removed channel must not get state back")
	}
}

func TestChannelListApplyKeepsRoomIDsUnique(t *testing.T) {
	l := NewChannelList()
	for _, name := range []string{"foo", "bar"} {
		if _, err := l.Add(name); err != nil {
			t.Fatal(err)
		}
	}

	if _, _, err := l.Apply(Roomstate{Channel: "foo", SlowMode: 1, Changed: ChangedSlowMode}); !errors.Is(err, ErrMissingRoomID) {
		t.Fatalf("expected ErrMissingRoomID, got %v", err)
	}
	if _, _, err := l.Apply(fullRoomstate(5, "foo")); err != nil {
		t.Fatal(err)
	}
	if _, _, err := l.Apply(fullRoomstate(5, "bar")); !errors.Is(err, ErrDuplicateRoomID) {
		t.Fatalf("expected ErrDuplicateRoomID, got %v", err)
	}
	if _, ok := l.ChannelByName("bar"); ok {
		t.Fatalf("second channel with the same room-id must not be created")
	}
}

func TestChannelListConcurrentAccess(t *testing.T) {
	l := NewChannelList()
	var wg sync.WaitGroup

	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				name := fmt.Sprintf("c%d_%d", w, i%20)
				if i%3 == 2 {
					l.Remove(name)
				} else if _, err := l.Add(name); err != nil {
					t.Errorf("Add(%q): %v", name, err)
					return
				}
			}
		}(w)
	}
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				for _, n := range l.UTF8Names() {
					if len(n) < 2 || n[0] != '#' {
						t.Errorf("broken name %q", n)
						return
					}
				}
			}
		}()
	}
	wg.Wait()

	names := l.Names()
	cached := l.UTF8Names()
	if len(names) != len(cached) {
		t.Fatalf("cache out of sync: %d names, %d cached", len(names), len(cached))
	}
	for i := range names {
		if "#"+names[i] != string(cached[i]) {
			t.Fatalf("cache out of sync at %d: %s vs %s", i, names[i], cached[i])
		}
	}
}
