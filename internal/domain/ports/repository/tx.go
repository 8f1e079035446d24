package repository

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v4"
)

type Tx interface{}

var NoTX interface{}

// TransactionManager runs fn inside a database transaction and hands the
// transaction to repositories through tx. The concrete type of tx is
// infra-defined (pgx.Tx for Postgres). Repositories must accept a nil tx and
// fall back to their non-transactional path.
//
// Implementations run the hooks registered with AfterCommit once the
// transaction has committed, and drop them on rollback.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}

type afterCommitKey struct{}

type afterCommitHooks struct {
	mu  sync.Mutex
	fns []func(context.Context)
}

// WithAfterCommit returns a context that collects AfterCommit hooks and a
// function that runs them in registration order.
func WithAfterCommit(ctx context.Context) (context.Context, func(context.Context)) {
	h := &afterCommitHooks{}
	run := func(ctx context.Context) {
		h.mu.Lock()
		fns := h.fns
		h.fns = nil
		h.mu.Unlock()
		for _, fn := range fns {
			fn(ctx)
		}
	}
	return context.WithValue(ctx, afterCommitKey{}, h), run
}

// AfterCommit defers fn until the surrounding transaction commits. Outside a
// transaction fn runs immediately.
func AfterCommit(ctx context.Context, fn func(context.Context)) {
	h, ok := ctx.Value(afterCommitKey{}).(*afterCommitHooks)
	if !ok {
		fn(ctx)
		return
	}
	h.mu.Lock()
	h.fns = append(h.fns, fn)
	h.mu.Unlock()
}
