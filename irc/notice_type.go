package irc

// NoticeType задаёт вид NOTICE по тегу msg-id.
type NoticeType int

const (
	NoticeUnknown NoticeType = iota
	NoticeAlreadyBanned
	NoticeAlreadyEmoteOnlyOff
	NoticeAlreadyEmoteOnlyOn
	NoticeAlreadyFollowersOff
	NoticeAlreadyFollowersOn
	NoticeAlreadyR9KOff
	NoticeAlreadyR9KOn
	NoticeAlreadySlowOff
	NoticeAlreadySlowOn
	NoticeAlreadySubsOff
	NoticeAlreadySubsOn
	NoticeBadBanAdmin
	NoticeBadBanBroadcaster
	NoticeBadBanMod
	NoticeBadBanSelf
	NoticeBadCommercialError
	NoticeBadDeleteMessageBroadcaster
	NoticeBadDeleteMessageMod
	NoticeBadTimeoutMod
	NoticeBadTimeoutSelf
	NoticeBadUnbanNoBan
	NoticeBanSuccess
	NoticeCmdsAvailable
	NoticeColorChanged
	NoticeCommercialSuccess
	NoticeDeleteMessageSuccess
	NoticeEmoteOnlyOff
	NoticeEmoteOnlyOn
	NoticeFollowersOff
	NoticeFollowersOn
	NoticeFollowersOnZero
	NoticeHostOff
	NoticeHostOn
	NoticeInvalidUser
	NoticeMsgBanned
	NoticeMsgBadCharacters
	NoticeMsgChannelBlocked
	NoticeMsgChannelSuspended
	NoticeMsgDuplicate
	NoticeMsgEmoteOnly
	NoticeMsgFollowersOnly
	NoticeMsgFollowersOnlyFollowed
	NoticeMsgFollowersOnlyZero
	NoticeMsgR9K
	NoticeMsgRateLimit
	NoticeMsgRejected
	NoticeMsgRejectedMandatory
	NoticeMsgRequiresVerifiedPhoneNumber
	NoticeMsgSlowMode
	NoticeMsgSubsOnly
	NoticeMsgSuspended
	NoticeMsgTimedOut
	NoticeMsgVerifiedEmail
	NoticeNoHelp
	NoticeNoMods
	NoticeNoPermission
	NoticeNoVIPs
	NoticeR9KOff
	NoticeR9KOn
	NoticeRaidErrorSelf
	NoticeRaidNoticeMature
	NoticeRoomMods
	NoticeSlowOff
	NoticeSlowOn
	NoticeSubsOff
	NoticeSubsOn
	NoticeTimeoutNoTimeout
	NoticeTimeoutSuccess
	NoticeTOSBan
	NoticeTurboOnlyColor
	NoticeUnbanSuccess
	NoticeUnraidSuccess
	NoticeUnrecognizedCmd
	NoticeUntimeoutBanned
	NoticeUntimeoutSuccess
	NoticeUsageBan
	NoticeUsageTimeout
	NoticeVIPSuccess
	NoticeVIPs

	noticeTypeCount
)

// msg-id в написании Twitch, индексированные по NoticeType.
var noticeTypeNames = [noticeTypeCount]string{
	NoticeUnknown:                        "unknown",
	NoticeAlreadyBanned:                  "already_banned",
	NoticeAlreadyEmoteOnlyOff:            "already_emote_only_off",
	NoticeAlreadyEmoteOnlyOn:             "already_emote_only_on",
	NoticeAlreadyFollowersOff:            "already_followers_off",
	NoticeAlreadyFollowersOn:             "already_followers_on",
	NoticeAlreadyR9KOff:                  "already_r9k_off",
	NoticeAlreadyR9KOn:                   "already_r9k_on",
	NoticeAlreadySlowOff:                 "already_slow_off",
	NoticeAlreadySlowOn:                  "already_slow_on",
	NoticeAlreadySubsOff:                 "already_subs_off",
	NoticeAlreadySubsOn:                  "already_subs_on",
	NoticeBadBanAdmin:                    "bad_ban_admin",
	NoticeBadBanBroadcaster:              "bad_ban_broadcaster",
	NoticeBadBanMod:                      "bad_ban_mod",
	NoticeBadBanSelf:                     "bad_ban_self",
	NoticeBadCommercialError:             "bad_commercial_error",
	NoticeBadDeleteMessageBroadcaster:    "bad_delete_message_broadcaster",
	NoticeBadDeleteMessageMod:            "bad_delete_message_mod",
	NoticeBadTimeoutMod:                  "bad_timeout_mod",
	NoticeBadTimeoutSelf:                 "bad_timeout_self",
	NoticeBadUnbanNoBan:                  "bad_unban_no_ban",
	NoticeBanSuccess:                     "ban_success",
	NoticeCmdsAvailable:                  "cmds_available",
	NoticeColorChanged:                   "color_changed",
	NoticeCommercialSuccess:              "commercial_success",
	NoticeDeleteMessageSuccess:           "delete_message_success",
	NoticeEmoteOnlyOff:                   "emote_only_off",
	NoticeEmoteOnlyOn:                    "emote_only_on",
	NoticeFollowersOff:                   "followers_off",
	NoticeFollowersOn:                    "followers_on",
	NoticeFollowersOnZero:                "followers_on_zero",
	NoticeHostOff:                        "host_off",
	NoticeHostOn:                         "host_on",
	NoticeInvalidUser:                    "invalid_user",
	NoticeMsgBanned:                      "msg_banned",
	NoticeMsgBadCharacters:               "msg_bad_characters",
	NoticeMsgChannelBlocked:              "msg_channel_blocked",
	NoticeMsgChannelSuspended:            "msg_channel_suspended",
	NoticeMsgDuplicate:                   "msg_duplicate",
	NoticeMsgEmoteOnly:                   "msg_emoteonly",
	NoticeMsgFollowersOnly:               "msg_followersonly",
	NoticeMsgFollowersOnlyFollowed:       "msg_followersonly_followed",
	NoticeMsgFollowersOnlyZero:           "msg_followersonly_zero",
	NoticeMsgR9K:                         "msg_r9k",
	NoticeMsgRateLimit:                   "msg_ratelimit",
	NoticeMsgRejected:                    "msg_rejected",
	NoticeMsgRejectedMandatory:           "msg_rejected_mandatory",
	NoticeMsgRequiresVerifiedPhoneNumber: "msg_requires_verified_phone_number",
	NoticeMsgSlowMode:                    "msg_slowmode",
	NoticeMsgSubsOnly:                    "msg_subsonly",
	NoticeMsgSuspended:                   "msg_suspended",
	NoticeMsgTimedOut:                    "msg_timedout",
	NoticeMsgVerifiedEmail:               "msg_verified_email",
	NoticeNoHelp:                         "no_help",
	NoticeNoMods:                         "no_mods",
	NoticeNoPermission:                   "no_permission",
	NoticeNoVIPs:                         "no_vips",
	NoticeR9KOff:                         "r9k_off",
	NoticeR9KOn:                          "r9k_on",
	NoticeRaidErrorSelf:                  "raid_error_self",
	NoticeRaidNoticeMature:               "raid_notice_mature",
	NoticeRoomMods:                       "room_mods",
	NoticeSlowOff:                        "slow_off",
	NoticeSlowOn:                         "slow_on",
	NoticeSubsOff:                        "subs_off",
	NoticeSubsOn:                         "subs_on",
	NoticeTimeoutNoTimeout:               "timeout_no_timeout",
	NoticeTimeoutSuccess:                 "timeout_success",
	NoticeTOSBan:                         "tos_ban",
	NoticeTurboOnlyColor:                 "turbo_only_color",
	NoticeUnbanSuccess:                   "unban_success",
	NoticeUnraidSuccess:                  "unraid_success",
	NoticeUnrecognizedCmd:                "unrecognized_cmd",
	NoticeUntimeoutBanned:                "untimeout_banned",
	NoticeUntimeoutSuccess:               "untimeout_success",
	NoticeUsageBan:                       "usage_ban",
	NoticeUsageTimeout:                   "usage_timeout",
	NoticeVIPSuccess:                     "vip_success",
	NoticeVIPs:                           "vips_success",
}

// Ключом служит msg-id без '_' в нижнем регистре.
var noticeTypesByKey = func() map[string]NoticeType {
	m := make(map[string]NoticeType, noticeTypeCount)
	for t := NoticeType(1); t < noticeTypeCount; t++ {
		var buf [maxNoticeIDLength]byte
		m[string(foldNoticeID(buf[:0], []byte(noticeTypeNames[t])))] = t
	}
	return m
}()

const maxNoticeIDLength = 64

// String возвращает msg-id в написании Twitch.
func (t NoticeType) String() string {
	if t < 0 || t >= noticeTypeCount {
		return noticeTypeNames[NoticeUnknown]
	}
	return noticeTypeNames[t]
}

// LookupNoticeType находит вид NOTICE по msg-id без учёта регистра и '_'.
func LookupNoticeType(id []byte) NoticeType {
	if len(id) == 0 || len(id) > maxNoticeIDLength {
		return NoticeUnknown
	}
	var buf [maxNoticeIDLength]byte
	if t, ok := noticeTypesByKey[string(foldNoticeID(buf[:0], id))]; ok {
		return t
	}
	return NoticeUnknown
}

func foldNoticeID(dst, id []byte) []byte {
	for _, c := range id {
		switch {
		case c == '_':
			continue
		case c >= 'A' && c <= 'Z':
			c += 'a' - 'A'
		}
		dst = append(dst, c)
	}
	return dst
}
