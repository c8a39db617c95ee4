package main

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"twitch-ws-irc/irc"
	"twitch-ws-irc/tokens"
)

// twitch-auth save <token> [ttl] валидирует токен чата и сохраняет его в
// файл, откуда его читает chat-logger при пустом TWITCH_OAUTH_TOKEN.
func main() {
	if len(os.Args) < 3 || os.Args[1] != "save" {
		fmt.Fprintln(os.Stderr, "usage: twitch-auth save <oauth-token> [ttl]")
		os.Exit(1)
	}

	token, err := irc.NewOAuthToken(strings.TrimSpace(os.Args[2]))
	if err != nil {
		log.Fatalf("invalid token: %v", err)
	}

	stored := tokens.Token{Access: token.Value()}
	if len(os.Args) > 3 {
		ttl, err := time.ParseDuration(os.Args[3])
		if err != nil {
			log.Fatalf("invalid ttl: %v", err)
		}
		stored.ExpiresAt = time.Now().Add(ttl)
	}

	store := tokens.FileTokenStore{Path: strings.TrimSpace(os.Getenv("TWITCH_TOKEN_FILE"))}
	if err := store.SaveChatToken(stored); err != nil {
		log.Fatalf("save chat token: %v", err)
	}

	if stored.ExpiresAt.IsZero() {
		fmt.Println("ok, no expiry")
		return
	}
	fmt.Printf("ok, expires at %s\n", stored.ExpiresAt.Format(time.RFC3339))
}
