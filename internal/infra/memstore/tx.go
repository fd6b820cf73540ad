package memstore

import (
	"context"

	"github.com/jackc/pgx/v4"

	"cyber-research-service/internal/domain/ports/repository"
)

// TxManager satisfies the transaction port for the in-memory store, where
// every repository call is already atomic. The callback simply runs with
// NoTX.
type TxManager struct{}

func NewTxManager() *TxManager { return &TxManager{} }

func (m *TxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	return fn(ctx, repository.NoTX)
}
