// Package model はドメインモデルを定義する。
package model

import "time"

// WriteupPageSize は一覧系APIの1ページあたりの件数。
const WriteupPageSize = 100

// Writeup はバグバウンティのwriteup1件を表す。
// linkが自然キーであり、取り込み以外で作成されることはない。
type Writeup struct {
	ID          int64
	Title       string
	Link        string
	PublishedAt *time.Time
	AddedAt     *time.Time
	Bounty      *string // 数値文字列（NUMERIC列）
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// WriteupWithRelations はwriteupに著者・プログラム・バグ種別と
// 操作ユーザー自身のノート・既読フラグを非正規化して付与したモデル。
type WriteupWithRelations struct {
	Writeup
	Authors  []string
	Programs []string
	Bugs     []string
	Note     *string
	IsRead   bool
}

// NewWriteup は挿入前のwriteup行を表す。
type NewWriteup struct {
	Title       string
	Link        string
	PublishedAt *time.Time
	AddedAt     *time.Time
	Bounty      *string
}

// Lookup は著者・プログラム・バグ種別のいずれかのルックアップ行を表す。
type Lookup struct {
	ID   int64
	Name string
}

// LookupKind はルックアップエンティティの種別を表す。
type LookupKind string

const (
	LookupAuthor  LookupKind = "author"
	LookupProgram LookupKind = "program"
	LookupBug     LookupKind = "bug"
)

// LookupKinds は全ルックアップ種別を関連テーブルの削除順で返す。
func LookupKinds() []LookupKind {
	return []LookupKind{LookupAuthor, LookupProgram, LookupBug}
}

// Table はルックアップテーブル名を返す。
func (k LookupKind) Table() string {
	switch k {
	case LookupAuthor:
		return "authors"
	case LookupProgram:
		return "programs"
	case LookupBug:
		return "bugs"
	}
	return ""
}

// JoinTable はwriteupとの関連テーブル名を返す。
func (k LookupKind) JoinTable() string {
	if t := k.Table(); t != "" {
		return "writeup_" + t
	}
	return ""
}

// JoinColumn は関連テーブル上のルックアップ側外部キー列名を返す。
func (k LookupKind) JoinColumn() string {
	if k.Table() == "" {
		return ""
	}
	return string(k) + "_id"
}

// WriteupAssociation はwriteupとルックアップ行の関連1件を表す。
type WriteupAssociation struct {
	WriteupID int64
	LookupID  int64
}

// SortField はwriteup一覧のソート対象。
type SortField string

const (
	SortByPublishedAt SortField = "publishedAt"
	SortByAddedAt     SortField = "addedAt"
)

// SortOrder はソート方向。
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// WriteupQuery はwriteup一覧の検索条件を表す。
// 同一フィールド内の複数値はOR、フィールド間はANDで結合される。
type WriteupQuery struct {
	Search        string
	Authors       []string
	Programs      []string
	Bugs          []string
	OnlyWithNotes bool
	OnlyRead      bool
	SortBy        SortField
	SortOrder     SortOrder
	Page          int
}

// Page はページング済み一覧結果を表す。
type Page[T any] struct {
	Items     []T
	Total     int
	PageCount int
}

// PageCount は総件数からページ数を算出する。
func PageCount(total int) int {
	if total <= 0 {
		return 0
	}
	return (total + WriteupPageSize - 1) / WriteupPageSize
}
