// Package annotation はユーザーごとのwriteup注釈（既読・ノート）を管理する。
package annotation

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/writeuptracker/internal/model"
	"github.com/hitoshi/writeuptracker/internal/repository"
)

// Service は既読トグル・ノート保存・全データ削除を提供する。
// 複数文にまたがる書き込みはすべて1つのトランザクション内で行う。
type Service struct {
	store  repository.TxRunner
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(store repository.TxRunner, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		logger: logger,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// ToggleRead は既読マーカーを反転し、反転後の既読状態を返す。
// マーカーがあれば削除し、無ければ作成する。
// writeupが存在しない場合はWRITEUP_NOT_FOUNDエラーを返す。
func (s *Service) ToggleRead(ctx context.Context, userID string, writeupID int64) (bool, error) {
	var isRead bool
	err := s.store.InTx(ctx, func(repos repository.Repos) error {
		mark, err := repos.ReadMarks.FindByWriteupAndUser(ctx, writeupID, userID)
		if err != nil {
			return err
		}

		if mark != nil {
			isRead = false
			return repos.ReadMarks.DeleteByWriteupAndUser(ctx, writeupID, userID)
		}

		now := s.now()
		isRead = true
		return repos.ReadMarks.Create(ctx, &model.ReadMark{
			ID:        s.newID(),
			WriteupID: writeupID,
			UserID:    userID,
			CreatedAt: now,
			UpdatedAt: now,
		})
	})
	if err != nil {
		return false, s.mapError(err, writeupID)
	}
	return isRead, nil
}

// SetNote はノート本文を保存し、保存後のノートを返す。
// 既存ノートがあれば本文を更新し、無ければ作成する。空文字列もそのまま保存する。
// writeupが存在しない場合はWRITEUP_NOT_FOUNDエラーを返す。
func (s *Service) SetNote(ctx context.Context, userID string, writeupID int64, content string) (*model.Note, error) {
	var saved *model.Note
	err := s.store.InTx(ctx, func(repos repository.Repos) error {
		note, err := repos.Notes.FindByWriteupAndUser(ctx, writeupID, userID)
		if err != nil {
			return err
		}

		now := s.now()
		if note != nil {
			note.Content = content
			note.UpdatedAt = now
			if err := repos.Notes.UpdateContent(ctx, note); err != nil {
				return err
			}
			saved = note
			return nil
		}

		note = &model.Note{
			ID:        s.newID(),
			WriteupID: writeupID,
			UserID:    userID,
			Content:   content,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := repos.Notes.Create(ctx, note); err != nil {
			return err
		}
		saved = note
		return nil
	})
	if err != nil {
		return nil, s.mapError(err, writeupID)
	}
	return saved, nil
}

// DeleteAll は全writeupと関連データを削除する。
// 関連テーブル、ルックアップ、ノート、既読マーカー、writeupの順に削除する。
func (s *Service) DeleteAll(ctx context.Context) error {
	err := s.store.InTx(ctx, func(repos repository.Repos) error {
		for _, kind := range model.LookupKinds() {
			if err := repos.Lookups.DeleteAllAssociations(ctx, kind); err != nil {
				return err
			}
		}
		for _, kind := range model.LookupKinds() {
			if err := repos.Lookups.DeleteAll(ctx, kind); err != nil {
				return err
			}
		}
		if err := repos.Notes.DeleteAll(ctx); err != nil {
			return err
		}
		if err := repos.ReadMarks.DeleteAll(ctx); err != nil {
			return err
		}
		return repos.Writeups.DeleteAll(ctx)
	})
	if err != nil {
		return err
	}

	s.logger.Info("all writeup data deleted")
	return nil
}

// mapError は外部キー制約違反を、違反した列に応じた未検出エラーに変換する。
// user_idの違反はセッションは有効だがユーザー行が削除済みの場合に起きる。
func (s *Service) mapError(err error, writeupID int64) error {
	switch {
	case repository.IsForeignKeyViolationOn(err, repository.ColumnWriteupID):
		return model.NewWriteupNotFoundError(writeupID)
	case repository.IsForeignKeyViolationOn(err, repository.ColumnUserID):
		return model.NewUserNotFoundError()
	}
	return err
}
