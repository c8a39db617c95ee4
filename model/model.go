package model

import "time"

// ChatMessage — нормализованная модель сообщения чата Twitch.
type ChatMessage struct {
	ID           string
	Channel      string
	UserID       string
	Username     string
	DisplayName  string
	Text         string
	Badges       map[string]int
	Color        string
	IsMod        bool
	IsSubscriber bool
	Bits         int
	SentAt       time.Time
}

// Notice описывает notice-событие, полученное от Twitch.
type Notice struct {
	Channel string
	// MsgID содержит msg-id как его прислал Twitch, "unknown" если тега нет.
	MsgID    string
	Message  string
	NoticeAt time.Time
}

// RoomState хранит текущий снимок режимов канала после применения ROOMSTATE.
type RoomState struct {
	RoomID        int64
	Channel       string
	EmoteOnly     bool
	FollowersOnly int
	R9K           bool
	SlowMode      int
	SubsOnly      bool
	UpdatedAt     time.Time
}
