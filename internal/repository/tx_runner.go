package repository

import (
	"context"
	"fmt"
)

// withTx runs fn against a copy of the store bound to one transaction. The
// dimension cache is only updated once the transaction commits.
func (s *PostgresChunkStore) withTx(ctx context.Context, fn func(tx *PostgresChunkStore) error) error {
	if s.pool == nil {
		return fn(s)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	txStore := &PostgresChunkStore{db: tx, dims: s.dims}
	if err := fn(txStore); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.dims = txStore.dims
	return nil
}
