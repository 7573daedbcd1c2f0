// Package writeup はwriteupの検索・一覧・ノートのエクスポート機能を提供する。
package writeup

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/hitoshi/writeuptracker/internal/model"
	"github.com/hitoshi/writeuptracker/internal/repository"
)

// QueryService はwriteupの検索と、操作ユーザー自身の注釈を付与した一覧を提供する。
type QueryService struct {
	writeups  repository.WriteupRepository
	lookups   repository.LookupRepository
	notes     repository.NoteRepository
	readMarks repository.ReadMarkRepository
}

// NewQueryService はQueryServiceの新しいインスタンスを生成する。
func NewQueryService(repos repository.Repos) *QueryService {
	return &QueryService{
		writeups:  repos.Writeups,
		lookups:   repos.Lookups,
		notes:     repos.Notes,
		readMarks: repos.ReadMarks,
	}
}

// normalizeQuery はソート条件の既定値を補い、不正な値を検証する。
func normalizeQuery(q model.WriteupQuery) (model.WriteupQuery, error) {
	switch q.SortBy {
	case "":
		q.SortBy = model.SortByAddedAt
	case model.SortByAddedAt, model.SortByPublishedAt:
	default:
		return q, model.NewInvalidQueryError(fmt.Sprintf("sortBy=%s", q.SortBy))
	}

	switch q.SortOrder {
	case "":
		q.SortOrder = model.SortDesc
	case model.SortAsc, model.SortDesc:
	default:
		return q, model.NewInvalidQueryError(fmt.Sprintf("sortOrder=%s", q.SortOrder))
	}

	if q.Page < 1 {
		return q, model.NewInvalidQueryError(fmt.Sprintf("page=%d", q.Page))
	}

	q.Search = strings.TrimSpace(q.Search)
	return q, nil
}

// List は検索条件に一致するwriteupを1ページ分返す。
// 著者・プログラム・バグ・ノート有無・既読の各フィルタをwriteup ID集合に解決して積集合を取り、
// 積集合が空の場合はwriteupテーブルを参照せずに空の結果を返す。
func (s *QueryService) List(ctx context.Context, userID string, q model.WriteupQuery) (*model.Page[model.WriteupWithRelations], error) {
	q, err := normalizeQuery(q)
	if err != nil {
		return nil, err
	}

	ids, restricted, err := s.filterIDs(ctx, userID, q)
	if err != nil {
		return nil, err
	}
	if restricted && len(ids) == 0 {
		return emptyPage(), nil
	}

	filter := repository.WriteupFilter{
		RestrictIDs: restricted,
		IDs:         ids,
		Search:      q.Search,
		SortBy:      q.SortBy,
		SortOrder:   q.SortOrder,
		Limit:       model.WriteupPageSize,
		Offset:      (q.Page - 1) * model.WriteupPageSize,
	}

	total, err := s.writeups.Count(ctx, filter)
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return emptyPage(), nil
	}

	rows, err := s.writeups.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	items, err := s.denormalize(ctx, userID, rows)
	if err != nil {
		return nil, err
	}

	return &model.Page[model.WriteupWithRelations]{
		Items:     items,
		Total:     total,
		PageCount: model.PageCount(total),
	}, nil
}

func emptyPage() *model.Page[model.WriteupWithRelations] {
	return &model.Page[model.WriteupWithRelations]{Items: []model.WriteupWithRelations{}}
}

// filterIDs は要求されたフィルタをwriteup ID集合に解決し、その積集合を返す。
// フィルタが1つも無い場合はrestricted=falseを返す。
func (s *QueryService) filterIDs(ctx context.Context, userID string, q model.WriteupQuery) ([]int64, bool, error) {
	var sets [][]int64

	nameFilters := map[model.LookupKind][]string{
		model.LookupAuthor:  q.Authors,
		model.LookupProgram: q.Programs,
		model.LookupBug:     q.Bugs,
	}
	for _, kind := range model.LookupKinds() {
		names := trimNames(nameFilters[kind])
		if len(names) == 0 {
			continue
		}
		ids, err := s.lookups.WriteupIDsByNames(ctx, kind, names)
		if err != nil {
			return nil, false, err
		}
		sets = append(sets, ids)
	}

	if q.OnlyWithNotes {
		ids, err := s.notes.WriteupIDsWithContent(ctx, userID)
		if err != nil {
			return nil, false, err
		}
		sets = append(sets, ids)
	}

	if q.OnlyRead {
		ids, err := s.readMarks.WriteupIDsByUser(ctx, userID)
		if err != nil {
			return nil, false, err
		}
		sets = append(sets, ids)
	}

	if len(sets) == 0 {
		return nil, false, nil
	}
	return intersect(sets), true, nil
}

// intersect は全ての集合に含まれるIDを昇順で返す。
func intersect(sets [][]int64) []int64 {
	counts := make(map[int64]int)
	for _, set := range sets {
		seen := make(map[int64]struct{}, len(set))
		for _, id := range set {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			counts[id]++
		}
	}

	result := make([]int64, 0)
	for id, n := range counts {
		if n == len(sets) {
			result = append(result, id)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}

func trimNames(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// denormalize はwriteupごとに著者・プログラム・バグ名、ユーザーのノートと既読フラグを付与する。
// 関連データはページ内のIDに限定した個別クエリで取得し、メモリ上で結合する。
func (s *QueryService) denormalize(ctx context.Context, userID string, rows []model.Writeup) ([]model.WriteupWithRelations, error) {
	items := make([]model.WriteupWithRelations, 0, len(rows))
	if len(rows) == 0 {
		return items, nil
	}

	ids := make([]int64, len(rows))
	for i, w := range rows {
		ids[i] = w.ID
	}

	names := make(map[model.LookupKind]map[int64][]string, len(model.LookupKinds()))
	for _, kind := range model.LookupKinds() {
		byID, err := s.lookups.NamesByWriteupIDs(ctx, kind, ids)
		if err != nil {
			return nil, err
		}
		names[kind] = byID
	}

	notes, err := s.notes.FindByUserAndWriteupIDs(ctx, userID, ids)
	if err != nil {
		return nil, err
	}

	readSet, err := s.readMarks.ReadSet(ctx, userID, ids)
	if err != nil {
		return nil, err
	}

	for _, w := range rows {
		item := model.WriteupWithRelations{
			Writeup:  w,
			Authors:  nonNilNames(names[model.LookupAuthor][w.ID]),
			Programs: nonNilNames(names[model.LookupProgram][w.ID]),
			Bugs:     nonNilNames(names[model.LookupBug][w.ID]),
			IsRead:   readSet[w.ID],
		}
		if note, ok := notes[w.ID]; ok && note != nil {
			content := note.Content
			item.Note = &content
		}
		items = append(items, item)
	}
	return items, nil
}

func nonNilNames(names []string) []string {
	if names == nil {
		return []string{}
	}
	return names
}

// ListLookups は著者・プログラム・バグ名を部分一致検索し、名前順で1ページ分返す。
func (s *QueryService) ListLookups(ctx context.Context, kind model.LookupKind, search string, page int) (*model.Page[model.Lookup], error) {
	if kind.Table() == "" {
		return nil, model.NewInvalidQueryError(fmt.Sprintf("kind=%s", kind))
	}
	if page < 1 {
		return nil, model.NewInvalidQueryError(fmt.Sprintf("page=%d", page))
	}
	search = strings.TrimSpace(search)

	total, err := s.lookups.Count(ctx, kind, search)
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return &model.Page[model.Lookup]{Items: []model.Lookup{}}, nil
	}

	items, err := s.lookups.List(ctx, kind, search, model.WriteupPageSize, (page-1)*model.WriteupPageSize)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []model.Lookup{}
	}

	return &model.Page[model.Lookup]{
		Items:     items,
		Total:     total,
		PageCount: model.PageCount(total),
	}, nil
}

// ListWithNotes はユーザーが本文付きのノートを残した全writeupを追加日の降順で返す。
func (s *QueryService) ListWithNotes(ctx context.Context, userID string) ([]model.WriteupWithRelations, error) {
	ids, err := s.notes.WriteupIDsWithContent(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []model.WriteupWithRelations{}, nil
	}

	rows, err := s.writeups.ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	return s.denormalize(ctx, userID, rows)
}

// ExportNotesMarkdown はユーザーのノートをMarkdownテキストとして書き出す。
// ノートが1件も無い場合は空文字列を返す。
func (s *QueryService) ExportNotesMarkdown(ctx context.Context, userID string) (string, error) {
	items, err := s.ListWithNotes(ctx, userID)
	if err != nil {
		return "", err
	}
	return RenderNotesMarkdown(items), nil
}

// Stats はwriteup総数と、ユーザーの既読数・ノート数を返す。
func (s *QueryService) Stats(ctx context.Context, userID string) (*model.UserStats, error) {
	total, err := s.writeups.Count(ctx, repository.WriteupFilter{})
	if err != nil {
		return nil, err
	}
	reads, err := s.readMarks.CountByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	notes, err := s.notes.CountWithContent(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &model.UserStats{
		TotalWriteups: total,
		TotalReads:    reads,
		TotalNotes:    notes,
	}, nil
}
