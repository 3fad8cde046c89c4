package db

import (
	"context"

	"github.com/jackc/pgx/v5"

	dbgen "github.com/noah-isme/vaxcart-api/internal/db/gen"
)

// Beginner starts transactions; *pgxpool.Pool satisfies it.
type Beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// RunInTx runs fn with queries bound to a new transaction. The transaction
// commits when fn returns nil and rolls back otherwise.
func RunInTx(ctx context.Context, pool Beginner, fn func(*dbgen.Queries) error) error {
	return pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		return fn(dbgen.New(tx))
	})
}
