package service

import (
	"context"

	"go.uber.org/zap"

	"twitch-ws-irc/model"
	"twitch-ws-irc/storage"
)

// Runner описывает клиент чата, который блокируется до отмены контекста.
type Runner interface {
	Run(ctx context.Context) error
}

// Service управляет жизненным циклом Twitch клиента и записью в хранилище.
type Service struct {
	client Runner
}

// New создаёт Service с уже собранным Twitch клиентом.
func New(client Runner) *Service {
	return &Service{client: client}
}

// Run подключает Twitch клиент и блокируется до отмены контекста или ошибки.
func (s *Service) Run(ctx context.Context) error {
	return s.client.Run(ctx)
}

// Enqueuer принимает строки для асинхронной записи.
type Enqueuer interface {
	Enqueue(storage.Row) bool
}

// Handler реализует twitch.Handler и перенаправляет события в батчер.
type Handler struct {
	batcher Enqueuer
	logger  *zap.Logger
}

// NewHandler собирает Handler, используемый Twitch колбэками.
func NewHandler(batcher Enqueuer, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{batcher: batcher, logger: logger}
}

// HandleChat помещает сообщения чата в очередь батчера.
func (h *Handler) HandleChat(_ context.Context, msg model.ChatMessage) {
	if ok := h.batcher.Enqueue(storage.ChatRow(msg)); !ok {
		h.logger.Debug("батчер: сообщение отброшено", zap.String("channel", msg.Channel))
	}
}

// HandleNotice помещает notice-событие в очередь батчера.
func (h *Handler) HandleNotice(_ context.Context, notice model.Notice) {
	if ok := h.batcher.Enqueue(storage.NoticeRow(notice)); !ok {
		h.logger.Warn("батчер: NOTICE отброшен", zap.String("channel", notice.Channel), zap.String("msg_id", notice.MsgID))
	}
}

// HandleRoomState сохраняет последний снимок режимов канала.
func (h *Handler) HandleRoomState(_ context.Context, rs model.RoomState) {
	if ok := h.batcher.Enqueue(storage.RoomStateRow(rs)); !ok {
		h.logger.Warn("батчер: ROOMSTATE отброшен", zap.String("channel", rs.Channel), zap.Int64("room_id", rs.RoomID))
	}
}
