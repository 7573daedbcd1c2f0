package repository

import (
	"database/sql"
	"testing"
)

// 外部テストパッケージ（repository_test）から統合テスト用ヘルパーを使うための公開。
var (
	SetupIntegrationDB = setupIntegrationDB
	SeedUser           = seedUser
)

// writeupTables はwriteup関連の全テーブル。
var writeupTables = []string{
	"writeup_authors", "writeup_programs", "writeup_bugs",
	"authors", "programs", "bugs",
	"notes", "read_marks", "writeups",
}

// AssertWriteupTablesEmpty はwriteup関連の全テーブルが空であることを検証する。
func AssertWriteupTablesEmpty(t *testing.T, db *sql.DB) {
	t.Helper()

	for _, table := range writeupTables {
		var count int
		if err := db.QueryRow(`SELECT count(*) FROM ` + table).Scan(&count); err != nil {
			t.Fatalf("%sの件数取得に失敗: %v", table, err)
		}
		if count != 0 {
			t.Errorf("%s has %d rows, want 0", table, count)
		}
	}
}
