package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/hitoshi/writeuptracker/internal/model"
)

// PostgresWriteupRepo はPostgreSQLを使用したwriteupリポジトリ。
type PostgresWriteupRepo struct {
	db DBTX
}

// NewPostgresWriteupRepo はPostgresWriteupRepoを生成する。
func NewPostgresWriteupRepo(db DBTX) *PostgresWriteupRepo {
	return &PostgresWriteupRepo{db: db}
}

const writeupColumns = `id, title, link, published_at, added_at, bounty::text, created_at, updated_at`

// FindExistingLinks はlinksのうち既に登録済みのものを返す。
func (r *PostgresWriteupRepo) FindExistingLinks(ctx context.Context, links []string) (map[string]struct{}, error) {
	existing := make(map[string]struct{})
	if len(links) == 0 {
		return existing, nil
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT link FROM writeups WHERE link = ANY($1)`,
		pq.Array(links),
	)
	if err != nil {
		return nil, fmt.Errorf("既存リンクの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var link string
		if err := rows.Scan(&link); err != nil {
			return nil, fmt.Errorf("既存リンクのスキャンに失敗しました: %w", err)
		}
		existing[link] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("既存リンクの取得に失敗しました: %w", err)
	}

	return existing, nil
}

// Insert はwriteupを1件挿入し、採番済みの行を返す。
func (r *PostgresWriteupRepo) Insert(ctx context.Context, w model.NewWriteup) (*model.Writeup, error) {
	row := r.db.QueryRowContext(ctx,
		`INSERT INTO writeups (title, link, published_at, added_at, bounty)
		 VALUES ($1, $2, $3, $4, $5::numeric)
		 RETURNING `+writeupColumns,
		w.Title, w.Link, w.PublishedAt, w.AddedAt, w.Bounty,
	)

	inserted, err := scanWriteup(row)
	if err != nil {
		return nil, fmt.Errorf("writeupの挿入に失敗しました: %w", err)
	}
	return inserted, nil
}

// List はfilterに一致するwriteupをソート・ページングして返す。
func (r *PostgresWriteupRepo) List(ctx context.Context, filter WriteupFilter) ([]model.Writeup, error) {
	where, args := buildWriteupWhere(filter)
	argIndex := len(args) + 1

	query := `SELECT ` + writeupColumns + ` FROM writeups` + where +
		` ORDER BY ` + orderClause(filter.SortBy, filter.SortOrder)

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIndex)
		args = append(args, filter.Limit)
		argIndex++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIndex)
		args = append(args, filter.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("writeup一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return scanWriteups(rows)
}

// Count はfilterに一致するwriteupの件数を返す。
func (r *PostgresWriteupRepo) Count(ctx context.Context, filter WriteupFilter) (int, error) {
	where, args := buildWriteupWhere(filter)

	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT count(DISTINCT id) FROM writeups`+where,
		args...,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("writeup件数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// ListByIDs は指定IDのwriteupをadded_at降順で返す。
func (r *PostgresWriteupRepo) ListByIDs(ctx context.Context, ids []int64) ([]model.Writeup, error) {
	if len(ids) == 0 {
		return []model.Writeup{}, nil
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+writeupColumns+` FROM writeups
		 WHERE id = ANY($1)
		 ORDER BY added_at DESC NULLS LAST, id DESC`,
		pq.Array(ids),
	)
	if err != nil {
		return nil, fmt.Errorf("writeupの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return scanWriteups(rows)
}

// DeleteAll は全writeupを削除する。
func (r *PostgresWriteupRepo) DeleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM writeups`); err != nil {
		return fmt.Errorf("writeupの全削除に失敗しました: %w", err)
	}
	return nil
}

// buildWriteupWhere はWHERE句と引数を組み立てる。条件が無い場合は空文字列を返す。
func buildWriteupWhere(filter WriteupFilter) (string, []any) {
	var conditions []string
	var args []any
	argIndex := 1

	if filter.RestrictIDs {
		conditions = append(conditions, fmt.Sprintf("id = ANY($%d)", argIndex))
		args = append(args, pq.Array(filter.IDs))
		argIndex++
	}

	if search := strings.TrimSpace(filter.Search); search != "" {
		conditions = append(conditions,
			fmt.Sprintf(`(title ILIKE $%d ESCAPE '\' OR link ILIKE $%d ESCAPE '\')`, argIndex, argIndex))
		args = append(args, "%"+escapeLike(search)+"%")
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

// orderClause はソート指定をORDER BY句に変換する。
// 列名はホワイトリストからのみ選ぶ。
func orderClause(sortBy model.SortField, order model.SortOrder) string {
	column := "added_at"
	if sortBy == model.SortByPublishedAt {
		column = "published_at"
	}
	direction := "DESC"
	if order == model.SortAsc {
		direction = "ASC"
	}
	return fmt.Sprintf("%s %s NULLS LAST, id %s", column, direction, direction)
}

// escapeLike はLIKEパターンのメタ文字をエスケープする。
func escapeLike(s string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(s)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWriteup(row rowScanner) (*model.Writeup, error) {
	w := &model.Writeup{}
	var publishedAt, addedAt sql.NullTime
	var bounty sql.NullString

	if err := row.Scan(
		&w.ID, &w.Title, &w.Link, &publishedAt, &addedAt, &bounty, &w.CreatedAt, &w.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if publishedAt.Valid {
		w.PublishedAt = &publishedAt.Time
	}
	if addedAt.Valid {
		w.AddedAt = &addedAt.Time
	}
	w.Bounty = nullStringPtr(bounty)
	return w, nil
}

func scanWriteups(rows *sql.Rows) ([]model.Writeup, error) {
	writeups := []model.Writeup{}
	for rows.Next() {
		w, err := scanWriteup(rows)
		if err != nil {
			return nil, fmt.Errorf("writeupのスキャンに失敗しました: %w", err)
		}
		writeups = append(writeups, *w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("writeup一覧の走査に失敗しました: %w", err)
	}
	return writeups, nil
}

// compile-time interface check
var _ WriteupRepository = (*PostgresWriteupRepo)(nil)
