package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/hitoshi/writeuptracker/internal/model"
)

// PostgresLookupRepo はPostgreSQLを使用したルックアップ（authors/programs/bugs）リポジトリ。
// テーブル名はmodel.LookupKindから決まり、ユーザー入力からは組み立てない。
type PostgresLookupRepo struct {
	db DBTX
}

// NewPostgresLookupRepo はPostgresLookupRepoを生成する。
func NewPostgresLookupRepo(db DBTX) *PostgresLookupRepo {
	return &PostgresLookupRepo{db: db}
}

func lookupTables(kind model.LookupKind) (table, joinTable, joinColumn string, err error) {
	table, joinTable, joinColumn = kind.Table(), kind.JoinTable(), kind.JoinColumn()
	if table == "" {
		return "", "", "", fmt.Errorf("unknown lookup kind: %q", kind)
	}
	return table, joinTable, joinColumn, nil
}

// FindByNames はnamesのうち既存の行を返す。
func (r *PostgresLookupRepo) FindByNames(ctx context.Context, kind model.LookupKind, names []string) ([]model.Lookup, error) {
	table, _, _, err := lookupTables(kind)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return []model.Lookup{}, nil
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name FROM `+table+` WHERE name = ANY($1)`,
		pq.Array(names),
	)
	if err != nil {
		return nil, fmt.Errorf("%sの取得に失敗しました: %w", table, err)
	}
	defer rows.Close()

	return scanLookups(rows, table)
}

// InsertNames はnamesを一括挿入し、採番済みの行を返す。
// ON CONFLICTで既存行も返すため、並行する取り込みと名前が衝突してもエラーにならない。
func (r *PostgresLookupRepo) InsertNames(ctx context.Context, kind model.LookupKind, names []string) ([]model.Lookup, error) {
	table, _, _, err := lookupTables(kind)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return []model.Lookup{}, nil
	}

	rows, err := r.db.QueryContext(ctx,
		`INSERT INTO `+table+` (name)
		 SELECT DISTINCT unnest($1::text[])
		 ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		 RETURNING id, name`,
		pq.Array(names),
	)
	if err != nil {
		return nil, fmt.Errorf("%sの一括挿入に失敗しました: %w", table, err)
	}
	defer rows.Close()

	return scanLookups(rows, table)
}

// InsertAssociations は関連行を一括挿入する。重複は無視する。
func (r *PostgresLookupRepo) InsertAssociations(ctx context.Context, kind model.LookupKind, assocs []model.WriteupAssociation) error {
	_, joinTable, joinColumn, err := lookupTables(kind)
	if err != nil {
		return err
	}
	if len(assocs) == 0 {
		return nil
	}

	writeupIDs := make([]int64, len(assocs))
	lookupIDs := make([]int64, len(assocs))
	for i, a := range assocs {
		writeupIDs[i] = a.WriteupID
		lookupIDs[i] = a.LookupID
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO `+joinTable+` (writeup_id, `+joinColumn+`)
		 SELECT * FROM unnest($1::bigint[], $2::bigint[])
		 ON CONFLICT DO NOTHING`,
		pq.Array(writeupIDs), pq.Array(lookupIDs),
	)
	if err != nil {
		return fmt.Errorf("%sの一括挿入に失敗しました: %w", joinTable, err)
	}
	return nil
}

// WriteupIDsByNames はnamesのいずれかに関連するwriteup IDを返す。
func (r *PostgresLookupRepo) WriteupIDsByNames(ctx context.Context, kind model.LookupKind, names []string) ([]int64, error) {
	table, joinTable, joinColumn, err := lookupTables(kind)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return []int64{}, nil
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT j.writeup_id
		 FROM `+joinTable+` j
		 JOIN `+table+` l ON l.id = j.`+joinColumn+`
		 WHERE l.name = ANY($1)`,
		pq.Array(names),
	)
	if err != nil {
		return nil, fmt.Errorf("%sによるwriteupの絞り込みに失敗しました: %w", table, err)
	}
	defer rows.Close()

	return scanIDs(rows)
}

// NamesByWriteupIDs はwriteup IDごとの関連名を名前順で返す。
func (r *PostgresLookupRepo) NamesByWriteupIDs(ctx context.Context, kind model.LookupKind, writeupIDs []int64) (map[int64][]string, error) {
	table, joinTable, joinColumn, err := lookupTables(kind)
	if err != nil {
		return nil, err
	}
	result := make(map[int64][]string)
	if len(writeupIDs) == 0 {
		return result, nil
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT j.writeup_id, l.name
		 FROM `+joinTable+` j
		 JOIN `+table+` l ON l.id = j.`+joinColumn+`
		 WHERE j.writeup_id = ANY($1)
		 ORDER BY l.name`,
		pq.Array(writeupIDs),
	)
	if err != nil {
		return nil, fmt.Errorf("%sの関連取得に失敗しました: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var writeupID int64
		var name string
		if err := rows.Scan(&writeupID, &name); err != nil {
			return nil, fmt.Errorf("%sの関連スキャンに失敗しました: %w", table, err)
		}
		result[writeupID] = append(result[writeupID], name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%sの関連取得に失敗しました: %w", table, err)
	}
	return result, nil
}

// List は名前の部分一致検索結果を名前順でページングして返す。
func (r *PostgresLookupRepo) List(ctx context.Context, kind model.LookupKind, search string, limit, offset int) ([]model.Lookup, error) {
	table, _, _, err := lookupTables(kind)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name FROM `+table+`
		 WHERE name ILIKE $1 ESCAPE '\'
		 ORDER BY name, id
		 LIMIT $2 OFFSET $3`,
		searchPattern(search), limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("%s一覧の取得に失敗しました: %w", table, err)
	}
	defer rows.Close()

	return scanLookups(rows, table)
}

// Count は名前の部分一致検索の総件数を返す。
func (r *PostgresLookupRepo) Count(ctx context.Context, kind model.LookupKind, search string) (int, error) {
	table, _, _, err := lookupTables(kind)
	if err != nil {
		return 0, err
	}

	var count int
	err = r.db.QueryRowContext(ctx,
		`SELECT count(*) FROM `+table+` WHERE name ILIKE $1 ESCAPE '\'`,
		searchPattern(search),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("%s件数の取得に失敗しました: %w", table, err)
	}
	return count, nil
}

// DeleteAllAssociations は関連テーブルの全行を削除する。
func (r *PostgresLookupRepo) DeleteAllAssociations(ctx context.Context, kind model.LookupKind) error {
	_, joinTable, _, err := lookupTables(kind)
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM `+joinTable); err != nil {
		return fmt.Errorf("%sの全削除に失敗しました: %w", joinTable, err)
	}
	return nil
}

// DeleteAll はルックアップテーブルの全行を削除する。
func (r *PostgresLookupRepo) DeleteAll(ctx context.Context, kind model.LookupKind) error {
	table, _, _, err := lookupTables(kind)
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM `+table); err != nil {
		return fmt.Errorf("%sの全削除に失敗しました: %w", table, err)
	}
	return nil
}

// searchPattern は部分一致用のILIKEパターンを返す。空文字列は全件一致になる。
func searchPattern(search string) string {
	return "%" + escapeLike(strings.TrimSpace(search)) + "%"
}

type idRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanLookups(rows idRows, table string) ([]model.Lookup, error) {
	lookups := []model.Lookup{}
	for rows.Next() {
		var l model.Lookup
		if err := rows.Scan(&l.ID, &l.Name); err != nil {
			return nil, fmt.Errorf("%sのスキャンに失敗しました: %w", table, err)
		}
		lookups = append(lookups, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%sの走査に失敗しました: %w", table, err)
	}
	return lookups, nil
}

func scanIDs(rows idRows) ([]int64, error) {
	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("IDのスキャンに失敗しました: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("IDの走査に失敗しました: %w", err)
	}
	return ids, nil
}

// compile-time interface check
var _ LookupRepository = (*PostgresLookupRepo)(nil)
