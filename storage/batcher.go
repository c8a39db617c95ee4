package storage

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"twitch-ws-irc/telemetry"
)

// BatchConfig задаёт параметры батчинга для вставки строк.
type BatchConfig struct {
	MaxBatch      int
	FlushEvery    time.Duration
	ChanBuffer    int
	StatsLogEvery time.Duration
	FlushTimeout  time.Duration
}

// Row описывает одну запись для вставки через pgx.Batch.
type Row interface {
	Table() string
	Queue(b *pgx.Batch)
}

// Batcher асинхронно вставляет строки через pgx.Batch.
type Batcher struct {
	input   chan Row
	config  BatchConfig
	sender  batchSender
	logger  *zap.Logger
	dropped atomic.Uint64
	done    chan struct{}
}

type batchSender interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// NewBatcher создаёт батчер и запускает фоновые флаши.
func NewBatcher(ctx context.Context, pool *pgxpool.Pool, cfg BatchConfig, logger *zap.Logger) *Batcher {
	return newBatcher(ctx, pool, cfg, logger)
}

// Enqueue пытается добавить строку в очередь; при переполнении возвращает false.
func (b *Batcher) Enqueue(row Row) bool {
	select {
	case b.input <- row:
		return true
	default:
		telemetry.IncLabel(telemetry.BatcherRowsDropped, row.Table())
		dropped := b.dropped.Add(1)
		if dropped%100 == 0 {
			b.logger.Warn("батчер: очередь заполнена", zap.Uint64("dropped_total", dropped))
		}
		return false
	}
}

// Dropped возвращает число строк, отброшенных из-за переполнения.
func (b *Batcher) Dropped() uint64 {
	return b.dropped.Load()
}

// Done закрывается после финального флаша при отмене контекста.
func (b *Batcher) Done() <-chan struct{} {
	return b.done
}

func (b *Batcher) run(ctx context.Context) {
	defer close(b.done)

	flushTicker := time.NewTicker(b.config.FlushEvery)
	statsTicker := time.NewTicker(b.config.StatsLogEvery)
	defer flushTicker.Stop()
	defer statsTicker.Stop()

	var (
		batch            = &pgx.Batch{}
		pending          = map[string]int{}
		queued           = 0
		totalInserted    uint64
		intervalInserted uint64
	)

	flush := func() {
		if queued == 0 {
			return
		}

		dbCtx, cancel := context.WithTimeout(context.Background(), b.config.FlushTimeout)
		defer cancel()

		br := b.sender.SendBatch(dbCtx, batch)
		if err := br.Close(); err != nil {
			b.logger.Error("батчер: ошибка флаша", zap.Error(err), zap.Int("rows", queued))
		} else {
			for table, n := range pending {
				telemetry.AddLabel(telemetry.BatcherRowsInserted, table, n)
			}
		}

		totalInserted += uint64(queued)
		intervalInserted += uint64(queued)

		batch = &pgx.Batch{}
		pending = map[string]int{}
		queued = 0
	}

	for {
		select {
		case <-ctx.Done():
			// дочитываем то, что уже в очереди
		drain:
			for {
				select {
				case row := <-b.input:
					row.Queue(batch)
					pending[row.Table()]++
					queued++
				default:
					break drain
				}
			}
			flush()
			b.logger.Info("батчер: контекст отменён", zap.Uint64("inserted_total", totalInserted))
			return
		case <-flushTicker.C:
			flush()
		case <-statsTicker.C:
			b.logger.Info("батчер: статистика",
				zap.Uint64("inserted", intervalInserted),
				zap.Duration("interval", b.config.StatsLogEvery),
				zap.Uint64("inserted_total", totalInserted),
			)
			intervalInserted = 0
		case row := <-b.input:
			row.Queue(batch)
			pending[row.Table()]++
			queued++
			if queued >= b.config.MaxBatch {
				flush()
			}
		}
	}
}

func newBatcher(ctx context.Context, sender batchSender, cfg BatchConfig, logger *zap.Logger) *Batcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Batcher{
		input:  make(chan Row, cfg.ChanBuffer),
		config: cfg,
		sender: sender,
		logger: logger,
		done:   make(chan struct{}),
	}

	go b.run(ctx)

	return b
}
