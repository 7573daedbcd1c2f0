package model

import "time"

// Note はユーザーがwriteupに付けたメモを表す。
// (writeup, user) ごとに高々1件であることはアプリケーション側で保証する。
type Note struct {
	ID        string
	WriteupID int64
	UserID    string
	Content   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ReadMark はwriteupの既読マーカーを表す。行が存在すれば既読。
type ReadMark struct {
	ID        string
	WriteupID int64
	UserID    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserStats はユーザー単位の集計値。
type UserStats struct {
	TotalWriteups int
	TotalReads    int
	TotalNotes    int
}
