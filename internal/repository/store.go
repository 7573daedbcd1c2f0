package repository

import (
	"context"
	"database/sql"

	"github.com/hitoshi/writeuptracker/internal/database"
)

// PostgresStore はPostgreSQL上でTxRunnerを実装する。
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore はPostgresStoreを生成する。
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// InTx はfnを1つのトランザクション内で実行する。
func (s *PostgresStore) InTx(ctx context.Context, fn func(repos Repos) error) error {
	return database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		return fn(NewPostgresRepos(tx))
	})
}

// Repos はトランザクション外（オートコミット）のリポジトリ群を返す。
func (s *PostgresStore) Repos() Repos {
	return NewPostgresRepos(s.db)
}

// compile-time interface check
var _ TxRunner = (*PostgresStore)(nil)
