package storage

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

//go:embed schema.sql
var schema string

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Migrate создаёт таблицы, если их ещё нет. Без аргументов pgx шлёт
// запрос простым протоколом, поэтому несколько операторов проходят одним Exec.
func Migrate(ctx context.Context, db execer) error {
	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("миграция схемы: %w", err)
	}
	return nil
}
