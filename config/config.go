package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"twitch-ws-irc/irc"
	"twitch-ws-irc/tokens"
)

// анонимный вход Twitch: ник justinfan<цифры> без PASS
const anonymousUsername = "justinfan12345"

// Config агрегирует значения конфигурации из переменных окружения.
type Config struct {
	Twitch   TwitchConfig
	Postgres PostgresConfig
	Batch    BatchConfig
	Log      LogConfig
	Metrics  MetricsConfig
}

// TwitchConfig содержит учётные данные и каналы для Twitch IRC клиента.
type TwitchConfig struct {
	Username string
	// OAuthToken содержит нормализованный токен; EmptyOAuthToken для анонимного входа.
	OAuthToken  irc.OAuthToken
	Channels    []string
	Verified    bool
	URL         string
	SettleDelay time.Duration
}

// PostgresConfig хранит параметры подключения к пулу базы данных.
type PostgresConfig struct {
	Host     string
	Port     string
	DB       string
	User     string
	Password string
}

// DSN собирает строку подключения для pgx/pgxpool.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", p.User, p.Password, p.Host, p.Port, p.DB)
}

// BatchConfig задаёт параметры батчинга и флашей при записи событий.
type BatchConfig struct {
	MaxBatch      int
	FlushEvery    time.Duration
	ChanBuffer    int
	StatsLogEvery time.Duration
	FlushTimeout  time.Duration
}

// LogConfig задаёт уровень и формат логов.
type LogConfig struct {
	Level  string
	Format string
}

// MetricsConfig задаёт адрес HTTP для /metrics; пустой отключает сервер.
type MetricsConfig struct {
	Addr string
}

// Load читает .env (если есть) и переменные окружения и возвращает валидированную Config.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("чтение .env: %w", err)
	}

	token, err := loadToken()
	if err != nil {
		return Config{}, err
	}

	verified, err := envBool("TWITCH_VERIFIED_BOT")
	if err != nil {
		return Config{}, err
	}
	settle, err := envDuration("TWITCH_SETTLE_DELAY", 2*time.Second)
	if err != nil {
		return Config{}, err
	}

	username := strings.TrimSpace(os.Getenv("TWITCH_USERNAME"))
	if username == "" && token.IsEmpty() {
		username = anonymousUsername
	}

	cfg := Config{
		Twitch: TwitchConfig{
			Username:    strings.ToLower(username),
			OAuthToken:  token,
			Channels:    splitAndTrim(os.Getenv("TWITCH_CHANNELS")),
			Verified:    verified,
			URL:         strings.TrimSpace(os.Getenv("TWITCH_WS_URL")),
			SettleDelay: settle,
		},
		Postgres: PostgresConfig{
			Host:     strings.TrimSpace(os.Getenv("POSTGRES_HOST")),
			Port:     strings.TrimSpace(os.Getenv("POSTGRES_PORT")),
			DB:       strings.TrimSpace(os.Getenv("POSTGRES_DB")),
			User:     strings.TrimSpace(os.Getenv("POSTGRES_USER")),
			Password: strings.TrimSpace(os.Getenv("POSTGRES_PASSWORD")),
		},
		Batch: BatchConfig{
			MaxBatch:      100,
			FlushEvery:    1500 * time.Millisecond,
			ChanBuffer:    4096,
			StatsLogEvery: 5 * time.Minute,
			FlushTimeout:  5 * time.Second,
		},
		Log: LogConfig{
			Level:  strings.ToLower(strings.TrimSpace(os.Getenv("LOG_LEVEL"))),
			Format: strings.ToLower(strings.TrimSpace(os.Getenv("LOG_FORMAT"))),
		},
		Metrics: MetricsConfig{
			Addr: strings.TrimSpace(os.Getenv("METRICS_ADDR")),
		},
	}

	if cfg.Batch.MaxBatch, err = envInt("BATCH_MAX", cfg.Batch.MaxBatch); err != nil {
		return Config{}, err
	}
	if cfg.Batch.FlushEvery, err = envDuration("BATCH_FLUSH_EVERY", cfg.Batch.FlushEvery); err != nil {
		return Config{}, err
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// loadToken берёт токен из TWITCH_OAUTH_TOKEN, иначе из файла TWITCH_TOKEN_FILE.
func loadToken() (irc.OAuthToken, error) {
	raw := strings.TrimSpace(os.Getenv("TWITCH_OAUTH_TOKEN"))
	if raw == "" {
		if path := strings.TrimSpace(os.Getenv("TWITCH_TOKEN_FILE")); path != "" {
			stored, err := tokens.FileTokenStore{Path: path}.LoadChatToken()
			if err != nil {
				return irc.EmptyOAuthToken, err
			}
			if stored.Expired(time.Now()) {
				return irc.EmptyOAuthToken, fmt.Errorf("токен из %s истёк %s", path, stored.ExpiresAt.Format(time.RFC3339))
			}
			raw = stored.Access
		}
	}
	if raw == "" {
		return irc.EmptyOAuthToken, nil
	}

	token, err := irc.NewOAuthToken(raw)
	if err != nil {
		return irc.EmptyOAuthToken, fmt.Errorf("TWITCH_OAUTH_TOKEN: %w", err)
	}
	return token, nil
}

func (c Config) validate() error {
	if c.Twitch.Username == "" {
		return fmt.Errorf("требуется TWITCH_USERNAME")
	}
	if strings.ContainsAny(c.Twitch.Username, " \r\n") {
		return fmt.Errorf("TWITCH_USERNAME не должен содержать пробелов")
	}
	if len(c.Twitch.Channels) == 0 {
		return fmt.Errorf("требуется TWITCH_CHANNELS")
	}
	for _, ch := range c.Twitch.Channels {
		if !irc.ValidChannelName(irc.FormatChannelName(ch)) {
			return fmt.Errorf("некорректный канал в TWITCH_CHANNELS: %q", ch)
		}
	}

	if c.Postgres.Host == "" {
		return fmt.Errorf("требуется POSTGRES_HOST")
	}
	if c.Postgres.Port == "" {
		return fmt.Errorf("требуется POSTGRES_PORT")
	}
	if c.Postgres.DB == "" {
		return fmt.Errorf("требуется POSTGRES_DB")
	}
	if c.Postgres.User == "" {
		return fmt.Errorf("требуется POSTGRES_USER")
	}
	if c.Postgres.Password == "" {
		return fmt.Errorf("требуется POSTGRES_PASSWORD")
	}

	if c.Batch.MaxBatch <= 0 {
		return fmt.Errorf("Batch.MaxBatch должен быть больше нуля")
	}
	if c.Batch.FlushEvery <= 0 {
		return fmt.Errorf("Batch.FlushEvery должен быть больше нуля")
	}
	if c.Batch.ChanBuffer <= 0 {
		return fmt.Errorf("Batch.ChanBuffer должен быть больше нуля")
	}
	if c.Batch.StatsLogEvery <= 0 {
		return fmt.Errorf("Batch.StatsLogEvery должен быть больше нуля")
	}
	if c.Batch.FlushTimeout <= 0 {
		return fmt.Errorf("Batch.FlushTimeout должен быть больше нуля")
	}

	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("неизвестный LOG_LEVEL: %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("неизвестный LOG_FORMAT: %q", c.Log.Format)
	}

	return nil
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(p), "#"))
		if p != "" {
			out = append(out, strings.ToLower(p))
		}
	}
	return out
}

func envBool(key string) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func envInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
