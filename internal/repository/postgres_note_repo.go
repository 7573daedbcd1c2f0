package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/writeuptracker/internal/model"
)

// PostgresNoteRepo はPostgreSQLを使用したノートリポジトリ。
type PostgresNoteRepo struct {
	db DBTX
}

// NewPostgresNoteRepo はPostgresNoteRepoを生成する。
func NewPostgresNoteRepo(db DBTX) *PostgresNoteRepo {
	return &PostgresNoteRepo{db: db}
}

// FindByWriteupAndUser は(writeup, user)のノートを取得する。見つからない場合はnilを返す。
// 複数行存在する場合は最も古い行を返す。
func (r *PostgresNoteRepo) FindByWriteupAndUser(ctx context.Context, writeupID int64, userID string) (*model.Note, error) {
	note := &model.Note{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, writeup_id, user_id, content, created_at, updated_at
		 FROM notes
		 WHERE writeup_id = $1 AND user_id = $2
		 ORDER BY created_at, id
		 LIMIT 1`,
		writeupID, userID,
	).Scan(&note.ID, &note.WriteupID, &note.UserID, &note.Content, &note.CreatedAt, &note.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ノートの取得に失敗しました: %w", err)
	}
	return note, nil
}

// Create はノートを作成する。
func (r *PostgresNoteRepo) Create(ctx context.Context, note *model.Note) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO notes (id, writeup_id, user_id, content, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		note.ID, note.WriteupID, note.UserID, note.Content, note.CreatedAt, note.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("ノートの作成に失敗しました: %w", err)
	}
	return nil
}

// UpdateContent はノート本文とupdated_atを更新する。
func (r *PostgresNoteRepo) UpdateContent(ctx context.Context, note *model.Note) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE notes SET content = $1, updated_at = $2 WHERE id = $3`,
		note.Content, note.UpdatedAt, note.ID,
	)
	if err != nil {
		return fmt.Errorf("ノートの更新に失敗しました: %w", err)
	}
	return nil
}

// FindByUserAndWriteupIDs はユーザーのノートをwriteup IDごとに返す。
func (r *PostgresNoteRepo) FindByUserAndWriteupIDs(ctx context.Context, userID string, writeupIDs []int64) (map[int64]*model.Note, error) {
	result := make(map[int64]*model.Note)
	if len(writeupIDs) == 0 {
		return result, nil
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT ON (writeup_id) id, writeup_id, user_id, content, created_at, updated_at
		 FROM notes
		 WHERE user_id = $1 AND writeup_id = ANY($2)
		 ORDER BY writeup_id, created_at, id`,
		userID, pq.Array(writeupIDs),
	)
	if err != nil {
		return nil, fmt.Errorf("ノート一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		n := &model.Note{}
		if err := rows.Scan(&n.ID, &n.WriteupID, &n.UserID, &n.Content, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, fmt.Errorf("ノートのスキャンに失敗しました: %w", err)
		}
		result[n.WriteupID] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ノート一覧の取得に失敗しました: %w", err)
	}
	return result, nil
}

// WriteupIDsWithContent は本文が空でないノートを持つwriteup IDを返す。
func (r *PostgresNoteRepo) WriteupIDsWithContent(ctx context.Context, userID string) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT writeup_id FROM notes WHERE user_id = $1 AND content <> ''`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("ノート付きwriteupの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return scanIDs(rows)
}

// CountWithContent は本文が空でないノートの件数を返す。
func (r *PostgresNoteRepo) CountWithContent(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT count(DISTINCT writeup_id) FROM notes WHERE user_id = $1 AND content <> ''`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ノート件数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// DeleteAll は全ユーザーのノートを削除する。
func (r *PostgresNoteRepo) DeleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM notes`); err != nil {
		return fmt.Errorf("ノートの全削除に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ NoteRepository = (*PostgresNoteRepo)(nil)
