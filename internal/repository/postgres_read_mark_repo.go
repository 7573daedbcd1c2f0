package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/writeuptracker/internal/model"
)

// PostgresReadMarkRepo はPostgreSQLを使用した既読マーカーリポジトリ。
type PostgresReadMarkRepo struct {
	db DBTX
}

// NewPostgresReadMarkRepo はPostgresReadMarkRepoを生成する。
func NewPostgresReadMarkRepo(db DBTX) *PostgresReadMarkRepo {
	return &PostgresReadMarkRepo{db: db}
}

// FindByWriteupAndUser は(writeup, user)の既読マーカーを取得する。見つからない場合はnilを返す。
func (r *PostgresReadMarkRepo) FindByWriteupAndUser(ctx context.Context, writeupID int64, userID string) (*model.ReadMark, error) {
	mark := &model.ReadMark{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, writeup_id, user_id, created_at, updated_at
		 FROM read_marks
		 WHERE writeup_id = $1 AND user_id = $2
		 LIMIT 1`,
		writeupID, userID,
	).Scan(&mark.ID, &mark.WriteupID, &mark.UserID, &mark.CreatedAt, &mark.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("既読マーカーの取得に失敗しました: %w", err)
	}
	return mark, nil
}

// Create は既読マーカーを作成する。
func (r *PostgresReadMarkRepo) Create(ctx context.Context, mark *model.ReadMark) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO read_marks (id, writeup_id, user_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		mark.ID, mark.WriteupID, mark.UserID, mark.CreatedAt, mark.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("既読マーカーの作成に失敗しました: %w", err)
	}
	return nil
}

// DeleteByWriteupAndUser は(writeup, user)の既読マーカーを削除する。
func (r *PostgresReadMarkRepo) DeleteByWriteupAndUser(ctx context.Context, writeupID int64, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM read_marks WHERE writeup_id = $1 AND user_id = $2`,
		writeupID, userID,
	)
	if err != nil {
		return fmt.Errorf("既読マーカーの削除に失敗しました: %w", err)
	}
	return nil
}

// WriteupIDsByUser はユーザーが既読にしたwriteup IDを返す。
func (r *PostgresReadMarkRepo) WriteupIDsByUser(ctx context.Context, userID string) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT writeup_id FROM read_marks WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("既読writeupの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return scanIDs(rows)
}

// ReadSet はwriteupIDsのうちユーザーが既読のものを返す。
func (r *PostgresReadMarkRepo) ReadSet(ctx context.Context, userID string, writeupIDs []int64) (map[int64]bool, error) {
	result := make(map[int64]bool)
	if len(writeupIDs) == 0 {
		return result, nil
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT writeup_id FROM read_marks WHERE user_id = $1 AND writeup_id = ANY($2)`,
		userID, pq.Array(writeupIDs),
	)
	if err != nil {
		return nil, fmt.Errorf("既読状態の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	ids, err := scanIDs(rows)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		result[id] = true
	}
	return result, nil
}

// CountByUser はユーザーの既読件数を返す。
func (r *PostgresReadMarkRepo) CountByUser(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT count(DISTINCT writeup_id) FROM read_marks WHERE user_id = $1`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("既読件数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// DeleteAll は全ユーザーの既読マーカーを削除する。
func (r *PostgresReadMarkRepo) DeleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM read_marks`); err != nil {
		return fmt.Errorf("既読マーカーの全削除に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ ReadMarkRepository = (*PostgresReadMarkRepo)(nil)
