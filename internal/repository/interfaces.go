// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"

	"github.com/hitoshi/writeuptracker/internal/model"
)

// DBTX は *sql.DB と *sql.Tx の共通部分。
// リポジトリはどちらの上でも動作し、トランザクションの境界は呼び出し側が決める。
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// UserRepository はユーザーデータの参照インターフェース。
// ユーザーの作成・削除は外部認証プロバイダが行う。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)
	// AnyExists はユーザーが1人以上登録済みかを返す。
	AnyExists(ctx context.Context) (bool, error)
}

// SessionRepository はセッションデータの参照インターフェース。
type SessionRepository interface {
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
}

// WriteupFilter はwriteup一覧取得のSQL条件。
type WriteupFilter struct {
	// RestrictIDs がtrueの場合、IDsに含まれるwriteupのみを対象にする。
	RestrictIDs bool
	IDs         []int64
	Search      string
	SortBy      model.SortField
	SortOrder   model.SortOrder
	Limit       int
	Offset      int
}

// WriteupRepository はwriteupの永続化インターフェース。
type WriteupRepository interface {
	// FindExistingLinks はlinksのうち既に登録済みのものを返す。
	FindExistingLinks(ctx context.Context, links []string) (map[string]struct{}, error)
	// Insert はwriteupを1件挿入し、採番済みの行を返す。
	Insert(ctx context.Context, w model.NewWriteup) (*model.Writeup, error)
	// List はfilterに一致するwriteupをソート・ページングして返す。
	List(ctx context.Context, filter WriteupFilter) ([]model.Writeup, error)
	// Count はfilterに一致するwriteupの件数（Limit/Offsetは無視）を返す。
	Count(ctx context.Context, filter WriteupFilter) (int, error)
	// ListByIDs は指定IDのwriteupをadded_at降順で返す。
	ListByIDs(ctx context.Context, ids []int64) ([]model.Writeup, error)
	// DeleteAll は全writeupを削除する。
	DeleteAll(ctx context.Context) error
}

// LookupRepository は著者・プログラム・バグ種別と、その関連テーブルの永続化インターフェース。
type LookupRepository interface {
	// FindByNames はnamesのうち既存の行を返す。
	FindByNames(ctx context.Context, kind model.LookupKind, names []string) ([]model.Lookup, error)
	// InsertNames はnamesを一括挿入し、採番済みの行を返す。
	// 既に存在する名前は挿入せず、既存行を返す。
	InsertNames(ctx context.Context, kind model.LookupKind, names []string) ([]model.Lookup, error)
	// InsertAssociations は関連行を一括挿入する。重複は無視する。
	InsertAssociations(ctx context.Context, kind model.LookupKind, assocs []model.WriteupAssociation) error
	// WriteupIDsByNames はnamesのいずれかに関連するwriteup IDを返す。
	WriteupIDsByNames(ctx context.Context, kind model.LookupKind, names []string) ([]int64, error)
	// NamesByWriteupIDs はwriteup IDごとの関連名を名前順で返す。
	NamesByWriteupIDs(ctx context.Context, kind model.LookupKind, writeupIDs []int64) (map[int64][]string, error)
	// List は名前の部分一致検索結果を名前順でページングして返す。
	List(ctx context.Context, kind model.LookupKind, search string, limit, offset int) ([]model.Lookup, error)
	// Count は名前の部分一致検索の総件数を返す。
	Count(ctx context.Context, kind model.LookupKind, search string) (int, error)
	// DeleteAllAssociations は関連テーブルの全行を削除する。
	DeleteAllAssociations(ctx context.Context, kind model.LookupKind) error
	// DeleteAll はルックアップテーブルの全行を削除する。
	DeleteAll(ctx context.Context, kind model.LookupKind) error
}

// NoteRepository はノートの永続化インターフェース。
type NoteRepository interface {
	// FindByWriteupAndUser は(writeup, user)のノートを取得する。見つからない場合はnilを返す。
	FindByWriteupAndUser(ctx context.Context, writeupID int64, userID string) (*model.Note, error)
	// Create はノートを作成する。
	Create(ctx context.Context, note *model.Note) error
	// UpdateContent はノート本文とupdated_atを更新する。
	UpdateContent(ctx context.Context, note *model.Note) error
	// FindByUserAndWriteupIDs はユーザーのノートをwriteup IDごとに返す。
	FindByUserAndWriteupIDs(ctx context.Context, userID string, writeupIDs []int64) (map[int64]*model.Note, error)
	// WriteupIDsWithContent は本文が空でないノートを持つwriteup IDを返す。
	WriteupIDsWithContent(ctx context.Context, userID string) ([]int64, error)
	// CountWithContent は本文が空でないノートの件数を返す。
	CountWithContent(ctx context.Context, userID string) (int, error)
	// DeleteAll は全ユーザーのノートを削除する。
	DeleteAll(ctx context.Context) error
}

// ReadMarkRepository は既読マーカーの永続化インターフェース。
type ReadMarkRepository interface {
	// FindByWriteupAndUser は(writeup, user)の既読マーカーを取得する。見つからない場合はnilを返す。
	FindByWriteupAndUser(ctx context.Context, writeupID int64, userID string) (*model.ReadMark, error)
	// Create は既読マーカーを作成する。
	Create(ctx context.Context, mark *model.ReadMark) error
	// DeleteByWriteupAndUser は(writeup, user)の既読マーカーを削除する。
	DeleteByWriteupAndUser(ctx context.Context, writeupID int64, userID string) error
	// WriteupIDsByUser はユーザーが既読にしたwriteup IDを返す。
	WriteupIDsByUser(ctx context.Context, userID string) ([]int64, error)
	// ReadSet はwriteupIDsのうちユーザーが既読のものを返す。
	ReadSet(ctx context.Context, userID string, writeupIDs []int64) (map[int64]bool, error)
	// CountByUser はユーザーの既読件数を返す。
	CountByUser(ctx context.Context, userID string) (int, error)
	// DeleteAll は全ユーザーの既読マーカーを削除する。
	DeleteAll(ctx context.Context) error
}

// Repos はトランザクション単位でまとめて生成されるリポジトリ群。
type Repos struct {
	Writeups  WriteupRepository
	Lookups   LookupRepository
	Notes     NoteRepository
	ReadMarks ReadMarkRepository
}

// NewPostgresRepos はdb（*sql.DB または *sql.Tx）上のリポジトリ群を生成する。
func NewPostgresRepos(db DBTX) Repos {
	return Repos{
		Writeups:  NewPostgresWriteupRepo(db),
		Lookups:   NewPostgresLookupRepo(db),
		Notes:     NewPostgresNoteRepo(db),
		ReadMarks: NewPostgresReadMarkRepo(db),
	}
}

// TxRunner はリポジトリ群を1つのトランザクション内で利用するためのインターフェース。
type TxRunner interface {
	// InTx はfnをトランザクション内で実行する。fnがエラーを返した場合はロールバックする。
	InTx(ctx context.Context, fn func(repos Repos) error) error
}
