package irc

import (
	"errors"
	"testing"
)

func TestParseRoomstateFull(t *testing.T) {
	line := []byte("@emote-only=1;followers-only=10;r9k=0;room-id=12345;slow=30;subs-only=1 :tmi.twitch.tv ROOMSTATE #somechannel\r\n")

	rs, err := ParseRoomstate(line)
	if err != nil {
		t.Fatalf("ParseRoomstate returned error: %v", err)
	}

	want := Roomstate{
		EmoteOnly:     true,
		FollowersOnly: 10,
		R9K:           false,
		ChannelID:     12345,
		Channel:       "somechannel",
		SlowMode:      30,
		SubsOnly:      true,
		Changed:       AllChangedStates,
	}
	if rs != want {
		t.Fatalf("unexpected roomstate:\n got %+v\nwant %+v", rs, want)
	}
}

func TestParseRoomstatePartial(t *testing.T) {
	rs, err := ParseRoomstate([]byte("@room-id=7;slow=5 :tmi.twitch.tv ROOMSTATE #chan"))
	if err != nil {
		t.Fatalf("ParseRoomstate returned error: %v", err)
	}
	if rs.Changed != ChangedSlowMode {
		t.Fatalf("expected only slow flag, got %s", rs.Changed)
	}
	if rs.SlowMode != 5 || rs.ChannelID != 7 || rs.Channel != "chan" {
		t.Fatalf("unexpected roomstate: %+v", rs)
	}
	if rs.FollowersOnly != -1 {
		t.Fatalf("followers-only must default to -1, got %d", rs.FollowersOnly)
	}
}

func TestParseRoomstateWithoutRoomID(t *testing.T) {
	rs, err := ParseRoomstate([]byte("@slow=0 :tmi.twitch.tv ROOMSTATE #somechannel"))
	if err != nil {
		t.Fatalf("ParseRoomstate returned error: %v", err)
	}
	if rs.Changed != ChangedSlowMode || rs.ChannelID != 0 || rs.Channel != "somechannel" {
		t.Fatalf("unexpected roomstate: %+v", rs)
	}

	l := NewChannelList()
	if _, err := l.Add("somechannel"); err != nil {
		t.Fatal(err)
	}
	full := fullRoomstate(123, "somechannel")
	full.EmoteOnly = true
	full.SlowMode = 30
	full.SubsOnly = true
	if _, _, err := l.Apply(full); err != nil {
		t.Fatal(err)
	}

	ch, created, err := l.Apply(rs)
	if err != nil || created {
		t.Fatalf("update must reach the existing channel: created=%v err=%v", created, err)
	}
	snap := ch.Snapshot()
	if snap.SlowMode != 0 {
		t.Fatalf("slow mode must be turned off, got %d", snap.SlowMode)
	}
	if !snap.EmoteOnly || !snap.SubsOnly || snap.FollowersOnly != -1 || snap.ChannelID != 123 {
		t.Fatalf("other fields must be kept: %+v", snap)
	}
}

func TestParseRoomstateFollowersOnly(t *testing.T) {
	cases := map[string]int{
		"-1": -1,
		"0":  0,
		"60": 60,
	}
	for value, want := range cases {
		rs, err := ParseRoomstate([]byte("@followers-only=" + value + ";room-id=1 :tmi.twitch.tv ROOMSTATE #c"))
		if err != nil {
			t.Fatalf("followers-only=%s: %v", value, err)
		}
		if rs.FollowersOnly != want || !rs.Changed.Has(ChangedFollowersOnly) {
			t.Fatalf("followers-only=%s: got %d (%s)", value, rs.FollowersOnly, rs.Changed)
		}
	}
}

func TestParseRoomstateIgnoresUnknownTags(t *testing.T) {
	rs, err := ParseRoomstate([]byte("@rituals=0;room-id=1;emote-only=0 :tmi.twitch.tv ROOMSTATE #c"))
	if err != nil {
		t.Fatalf("ParseRoomstate returned error: %v", err)
	}
	if rs.Changed != ChangedEmoteOnly {
		t.Fatalf("unexpected flags: %s", rs.Changed)
	}
}

func TestParseRoomstateMalformed(t *testing.T) {
	for _, line := range []string{
		"",
		":tmi.twitch.tv ROOMSTATE #c",
		"@room-id=1",
		"@room-id=1 ROOMSTATE",
		"@room-id=abc :tmi.twitch.tv ROOMSTATE #c",
		"@room-id=99999999999999999999 :tmi.twitch.tv ROOMSTATE #c",
		"@room-id=1;slow=x :tmi.twitch.tv ROOMSTATE #c",
		"@room-id=1;slow=99999999999 :tmi.twitch.tv ROOMSTATE #c",
		"@room-id=1;followers-only= :tmi.twitch.tv ROOMSTATE #c",
		"@room-id :tmi.twitch.tv ROOMSTATE #c",
		"@room-id=1 :tmi.twitch.tv ROOMSTATE c",
		"@room-id=1 :tmi.twitch.tv ROOMSTATE #",
	} {
		if _, err := ParseRoomstate([]byte(line)); !errors.Is(err, ErrMalformedLine) {
			t.Fatalf("ParseRoomstate(%q): expected ErrMalformedLine, got %v", line, err)
		}
	}
}

func TestChangedStatesString(t *testing.T) {
	cases := map[ChangedStates]string{
		0:                                     "none",
		ChangedEmoteOnly:                      "emote-only",
		ChangedR9K | ChangedSubsOnly:          "r9k|subs-only",
		ChangedSlowMode | ChangedStates(1<<6): "slow|0x40",
	}
	for in, want := range cases {
		if got := in.String(); got != want {
			t.Fatalf("ChangedStates(%d).String() = %q, want %q", in, got, want)
		}
	}
	if !AllChangedStates.Has(ChangedFollowersOnly | ChangedR9K) {
		t.Fatalf("AllChangedStates must contain every flag")
	}
}
