package memory

import (
	"context"

	"plans-admin/internal/domain/ports/repository"

	"github.com/jackc/pgx/v4"
)

var _ repository.TransactionManager = TxManager{}

// TxManager runs fn directly; the in-memory repositories lock per call.
// AfterCommit hooks run when fn succeeds.
type TxManager struct{}

func (TxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	txCtx, runHooks := repository.WithAfterCommit(ctx)
	if err := fn(txCtx, repository.NoTX); err != nil {
		return err
	}
	runHooks(ctx)
	return nil
}
