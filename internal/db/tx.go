package db

import (
	"context"
	"database/sql"
	"errors"
)

// InTx runs fn against a transaction of conn. The transaction is committed
// when fn returns nil and rolled back otherwise.
func InTx(ctx context.Context, conn *sql.DB, fn func(qry *Queries) error) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	err = fn(New(tx))
	if err != nil {
		rollbackErr := tx.Rollback()
		if rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
			return errors.Join(err, rollbackErr)
		}
		return err
	}
	return tx.Commit()
}
