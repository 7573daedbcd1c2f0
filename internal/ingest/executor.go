package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hitoshi/writeuptracker/internal/model"
	"github.com/hitoshi/writeuptracker/internal/repository"
)

// ExecuteResult はExecuteの結果。
type ExecuteResult struct {
	Inserted []model.Writeup
	// LookupsInserted は種別ごとに新規作成したルックアップ行数。
	LookupsInserted map[model.LookupKind]int
}

// Executor はResolveの結果を1つのトランザクション内で永続化する。
// 呼び出し側はトランザクションに束縛したreposを渡すこと。
type Executor struct {
	logger *slog.Logger
}

// NewExecutor はExecutorを生成する。loggerがnilの場合はslog.Default()を使用する。
func NewExecutor(logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{logger: logger}
}

// Execute は新規ルックアップ名の一括登録、writeupの登録、関連行の一括登録を順に行う。
// いずれかが失敗した場合はエラーを返し、呼び出し側のトランザクションがロールバックする。
func (e *Executor) Execute(ctx context.Context, repos repository.Repos, res Resolution, snapshot Snapshot) (*ExecuteResult, error) {
	result := &ExecuteResult{
		Inserted:        []model.Writeup{},
		LookupsInserted: make(map[model.LookupKind]int),
	}

	// 1-2. 新規名を登録し、既存分とあわせた名前→IDの対応を作る
	ids := make(map[model.LookupKind]map[string]int64, len(model.LookupKinds()))
	for _, kind := range model.LookupKinds() {
		merged := make(map[string]int64, len(snapshot.Names[kind])+len(res.NewNames[kind]))
		for name, id := range snapshot.Names[kind] {
			merged[name] = id
		}

		if names := res.NewNames[kind]; len(names) > 0 {
			inserted, err := repos.Lookups.InsertNames(ctx, kind, names)
			if err != nil {
				return nil, fmt.Errorf("insert %s names: %w", kind, err)
			}
			for _, l := range inserted {
				merged[l.Name] = l.ID
			}
			result.LookupsInserted[kind] = len(inserted)
		}
		ids[kind] = merged
	}

	// 3-4. writeupを登録し、関連を解決する
	assocs := make(map[model.LookupKind][]model.WriteupAssociation, len(model.LookupKinds()))
	for _, record := range res.Kept {
		primary := record.PrimaryLink()
		title := strings.TrimSpace(primary.Title)
		link := strings.TrimSpace(primary.Link)
		if title == "" || link == "" {
			e.logger.Debug("writeup record without title or link skipped",
				slog.String("title", title),
				slog.String("link", link),
			)
			continue
		}

		w, err := repos.Writeups.Insert(ctx, model.NewWriteup{
			Title:       title,
			Link:        link,
			PublishedAt: ParseDate(record.PublicationDate),
			AddedAt:     ParseDate(record.AddedDate),
			Bounty:      ParseBounty(record.Bounty),
		})
		if err != nil {
			return nil, fmt.Errorf("insert writeup %q: %w", link, err)
		}
		result.Inserted = append(result.Inserted, *w)

		for _, kind := range model.LookupKinds() {
			seen := make(map[int64]struct{})
			for _, name := range cleanNames(namesOf(record, kind)) {
				id, ok := ids[kind][name]
				if !ok {
					continue
				}
				if _, dup := seen[id]; dup {
					continue
				}
				seen[id] = struct{}{}
				assocs[kind] = append(assocs[kind], model.WriteupAssociation{WriteupID: w.ID, LookupID: id})
			}
		}
	}

	// 5. 関連行を一括登録する
	for _, kind := range model.LookupKinds() {
		if len(assocs[kind]) == 0 {
			continue
		}
		if err := repos.Lookups.InsertAssociations(ctx, kind, assocs[kind]); err != nil {
			return nil, fmt.Errorf("insert %s associations: %w", kind, err)
		}
	}

	return result, nil
}
