package writeup

import (
	"context"

	"github.com/hitoshi/writeuptracker/internal/model"
	"github.com/hitoshi/writeuptracker/internal/repository"
)

// mockWriteupRepo はWriteupRepositoryのモック。
type mockWriteupRepo struct {
	listFn      func(ctx context.Context, filter repository.WriteupFilter) ([]model.Writeup, error)
	countFn     func(ctx context.Context, filter repository.WriteupFilter) (int, error)
	listByIDsFn func(ctx context.Context, ids []int64) ([]model.Writeup, error)

	listCalls  int
	countCalls int
}

func (m *mockWriteupRepo) FindExistingLinks(context.Context, []string) (map[string]struct{}, error) {
	return map[string]struct{}{}, nil
}

func (m *mockWriteupRepo) Insert(context.Context, model.NewWriteup) (*model.Writeup, error) {
	return nil, nil
}

func (m *mockWriteupRepo) List(ctx context.Context, filter repository.WriteupFilter) ([]model.Writeup, error) {
	m.listCalls++
	if m.listFn != nil {
		return m.listFn(ctx, filter)
	}
	return nil, nil
}

func (m *mockWriteupRepo) Count(ctx context.Context, filter repository.WriteupFilter) (int, error) {
	m.countCalls++
	if m.countFn != nil {
		return m.countFn(ctx, filter)
	}
	return 0, nil
}

func (m *mockWriteupRepo) ListByIDs(ctx context.Context, ids []int64) ([]model.Writeup, error) {
	if m.listByIDsFn != nil {
		return m.listByIDsFn(ctx, ids)
	}
	return nil, nil
}

func (m *mockWriteupRepo) DeleteAll(context.Context) error { return nil }

// mockLookupRepo はLookupRepositoryのモック。
type mockLookupRepo struct {
	writeupIDsByNamesFn func(ctx context.Context, kind model.LookupKind, names []string) ([]int64, error)
	namesByWriteupIDsFn func(ctx context.Context, kind model.LookupKind, ids []int64) (map[int64][]string, error)
	listFn              func(ctx context.Context, kind model.LookupKind, search string, limit, offset int) ([]model.Lookup, error)
	countFn             func(ctx context.Context, kind model.LookupKind, search string) (int, error)
}

func (m *mockLookupRepo) FindByNames(context.Context, model.LookupKind, []string) ([]model.Lookup, error) {
	return nil, nil
}

func (m *mockLookupRepo) InsertNames(context.Context, model.LookupKind, []string) ([]model.Lookup, error) {
	return nil, nil
}

func (m *mockLookupRepo) InsertAssociations(context.Context, model.LookupKind, []model.WriteupAssociation) error {
	return nil
}

func (m *mockLookupRepo) WriteupIDsByNames(ctx context.Context, kind model.LookupKind, names []string) ([]int64, error) {
	if m.writeupIDsByNamesFn != nil {
		return m.writeupIDsByNamesFn(ctx, kind, names)
	}
	return nil, nil
}

func (m *mockLookupRepo) NamesByWriteupIDs(ctx context.Context, kind model.LookupKind, ids []int64) (map[int64][]string, error) {
	if m.namesByWriteupIDsFn != nil {
		return m.namesByWriteupIDsFn(ctx, kind, ids)
	}
	return map[int64][]string{}, nil
}

func (m *mockLookupRepo) List(ctx context.Context, kind model.LookupKind, search string, limit, offset int) ([]model.Lookup, error) {
	if m.listFn != nil {
		return m.listFn(ctx, kind, search, limit, offset)
	}
	return nil, nil
}

func (m *mockLookupRepo) Count(ctx context.Context, kind model.LookupKind, search string) (int, error) {
	if m.countFn != nil {
		return m.countFn(ctx, kind, search)
	}
	return 0, nil
}

func (m *mockLookupRepo) DeleteAllAssociations(context.Context, model.LookupKind) error { return nil }

func (m *mockLookupRepo) DeleteAll(context.Context, model.LookupKind) error { return nil }

// mockNoteRepo はNoteRepositoryのモック。
type mockNoteRepo struct {
	byWriteupIDsFn func(ctx context.Context, userID string, ids []int64) (map[int64]*model.Note, error)
	withContentFn  func(ctx context.Context, userID string) ([]int64, error)
	countFn        func(ctx context.Context, userID string) (int, error)
}

func (m *mockNoteRepo) FindByWriteupAndUser(context.Context, int64, string) (*model.Note, error) {
	return nil, nil
}

func (m *mockNoteRepo) Create(context.Context, *model.Note) error { return nil }

func (m *mockNoteRepo) UpdateContent(context.Context, *model.Note) error { return nil }

func (m *mockNoteRepo) FindByUserAndWriteupIDs(ctx context.Context, userID string, ids []int64) (map[int64]*model.Note, error) {
	if m.byWriteupIDsFn != nil {
		return m.byWriteupIDsFn(ctx, userID, ids)
	}
	return map[int64]*model.Note{}, nil
}

func (m *mockNoteRepo) WriteupIDsWithContent(ctx context.Context, userID string) ([]int64, error) {
	if m.withContentFn != nil {
		return m.withContentFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockNoteRepo) CountWithContent(ctx context.Context, userID string) (int, error) {
	if m.countFn != nil {
		return m.countFn(ctx, userID)
	}
	return 0, nil
}

func (m *mockNoteRepo) DeleteAll(context.Context) error { return nil }

// mockReadMarkRepo はReadMarkRepositoryのモック。
type mockReadMarkRepo struct {
	byUserFn  func(ctx context.Context, userID string) ([]int64, error)
	readSetFn func(ctx context.Context, userID string, ids []int64) (map[int64]bool, error)
	countFn   func(ctx context.Context, userID string) (int, error)
}

func (m *mockReadMarkRepo) FindByWriteupAndUser(context.Context, int64, string) (*model.ReadMark, error) {
	return nil, nil
}

func (m *mockReadMarkRepo) Create(context.Context, *model.ReadMark) error { return nil }

func (m *mockReadMarkRepo) DeleteByWriteupAndUser(context.Context, int64, string) error { return nil }

func (m *mockReadMarkRepo) WriteupIDsByUser(ctx context.Context, userID string) ([]int64, error) {
	if m.byUserFn != nil {
		return m.byUserFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockReadMarkRepo) ReadSet(ctx context.Context, userID string, ids []int64) (map[int64]bool, error) {
	if m.readSetFn != nil {
		return m.readSetFn(ctx, userID, ids)
	}
	return map[int64]bool{}, nil
}

func (m *mockReadMarkRepo) CountByUser(ctx context.Context, userID string) (int, error) {
	if m.countFn != nil {
		return m.countFn(ctx, userID)
	}
	return 0, nil
}

func (m *mockReadMarkRepo) DeleteAll(context.Context) error { return nil }

type mockRepos struct {
	writeups  *mockWriteupRepo
	lookups   *mockLookupRepo
	notes     *mockNoteRepo
	readMarks *mockReadMarkRepo
}

func newMockRepos() *mockRepos {
	return &mockRepos{
		writeups:  &mockWriteupRepo{},
		lookups:   &mockLookupRepo{},
		notes:     &mockNoteRepo{},
		readMarks: &mockReadMarkRepo{},
	}
}

func (m *mockRepos) service() *QueryService {
	return NewQueryService(repository.Repos{
		Writeups:  m.writeups,
		Lookups:   m.lookups,
		Notes:     m.notes,
		ReadMarks: m.readMarks,
	})
}
