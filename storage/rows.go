package storage

import (
	"encoding/json"

	"github.com/jackc/pgx/v5"

	"twitch-ws-irc/model"
)

const insertChatMessage = `
insert into chat_messages (
  message_id, channel, user_id, username, display_name, text, badges, color,
  is_mod, is_subscriber, bits, sent_at
) values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
on conflict (message_id) do nothing;`

const insertNotice = `
insert into channel_notices (
  channel, msg_id, message, notice_at
) values ($1, $2, $3, $4);`

const upsertRoomState = `
insert into channel_roomstates (
  room_id, channel, emote_only, followers_only, r9k, slow_mode, subs_only, updated_at
) values ($1,$2,$3,$4,$5,$6,$7,$8)
on conflict (room_id) do update set
  channel = excluded.channel,
  emote_only = excluded.emote_only,
  followers_only = excluded.followers_only,
  r9k = excluded.r9k,
  slow_mode = excluded.slow_mode,
  subs_only = excluded.subs_only,
  updated_at = excluded.updated_at;`

// ChatRow описывает сообщение чата для таблицы chat_messages.
type ChatRow model.ChatMessage

func (ChatRow) Table() string { return "chat_messages" }

func (r ChatRow) Queue(b *pgx.Batch) {
	badgesJSON, _ := json.Marshal(r.Badges)
	b.Queue(insertChatMessage,
		ptr(r.ID), ptr(r.Channel), ptr(r.UserID), ptr(r.Username), ptr(r.DisplayName), ptr(r.Text), badgesJSON, ptr(r.Color),
		ptr(r.IsMod), ptr(r.IsSubscriber), ptr(r.Bits), r.SentAt.UTC(),
	)
}

// NoticeRow описывает notice-событие для таблицы channel_notices.
type NoticeRow model.Notice

func (NoticeRow) Table() string { return "channel_notices" }

func (r NoticeRow) Queue(b *pgx.Batch) {
	b.Queue(insertNotice, r.Channel, r.MsgID, r.Message, r.NoticeAt.UTC())
}

// RoomStateRow обновляет последний известный снимок режимов канала.
type RoomStateRow model.RoomState

func (RoomStateRow) Table() string { return "channel_roomstates" }

func (r RoomStateRow) Queue(b *pgx.Batch) {
	b.Queue(upsertRoomState,
		r.RoomID, r.Channel, r.EmoteOnly, r.FollowersOnly, r.R9K, r.SlowMode, r.SubsOnly, r.UpdatedAt.UTC(),
	)
}

func ptr[T any](v T) *T { return &v }
