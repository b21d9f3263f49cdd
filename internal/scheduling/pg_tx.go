package scheduling

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgTxRunner runs functions inside a SERIALIZABLE postgres transaction.
// Serializable isolation is what makes two concurrent bookings of the same
// window mutually exclusive: the loser aborts with a serialization failure,
// which surfaces as ErrTxConflict and is retried by the service.
type PgTxRunner struct {
	pool *pgxpool.Pool
}

func NewPgTxRunner(pool *pgxpool.Pool) *PgTxRunner {
	return &PgTxRunner{pool: pool}
}

func (r *PgTxRunner) InTx(ctx context.Context, fn func(Repository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(NewPgRepository(tx)); err != nil {
		return classifyTxErr(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return classifyTxErr(fmt.Errorf("commit tx: %w", err))
	}

	return nil
}

// classifyTxErr tags retryable database aborts with ErrTxConflict.
// 40001 serialization_failure, 40P01 deadlock_detected, 23505 unique_violation
// (two bookings racing the occupied-override key below serializable).
func classifyTxErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "23505":
			return fmt.Errorf("%w: %s", ErrTxConflict, pgErr.Code)
		}
	}
	return err
}
