package ingest

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/hitoshi/writeuptracker/internal/model"
	"github.com/hitoshi/writeuptracker/internal/repository"
)

// memState はmemStoreが保持するテーブル内容。
type memState struct {
	writeups []model.Writeup
	lookups  map[model.LookupKind][]model.Lookup
	assocs   map[model.LookupKind][]model.WriteupAssociation
	nextID   int64
}

func (s memState) clone() memState {
	c := memState{
		writeups: append([]model.Writeup(nil), s.writeups...),
		lookups:  make(map[model.LookupKind][]model.Lookup),
		assocs:   make(map[model.LookupKind][]model.WriteupAssociation),
		nextID:   s.nextID,
	}
	for k, v := range s.lookups {
		c.lookups[k] = append([]model.Lookup(nil), v...)
	}
	for k, v := range s.assocs {
		c.assocs[k] = append([]model.WriteupAssociation(nil), v...)
	}
	return c
}

// memStore はトランザクションのロールバックを再現するインメモリのTxRunner。
type memStore struct {
	state memState

	// failInsertLink が設定されている場合、そのlinkのwriteup挿入でinsertErrを返す
	failInsertLink string
	insertErr      error
}

func newMemStore() *memStore {
	return &memStore{state: memState{
		lookups: make(map[model.LookupKind][]model.Lookup),
		assocs:  make(map[model.LookupKind][]model.WriteupAssociation),
	}}
}

func (m *memStore) InTx(ctx context.Context, fn func(repos repository.Repos) error) error {
	tx := &memTx{store: m, state: m.state.clone()}
	if err := fn(repository.Repos{Writeups: tx, Lookups: &memLookups{tx: tx}}); err != nil {
		return err
	}
	m.state = tx.state
	return nil
}

func (m *memStore) lookupNames(kind model.LookupKind) []string {
	var names []string
	for _, l := range m.state.lookups[kind] {
		names = append(names, l.Name)
	}
	sort.Strings(names)
	return names
}

func (m *memStore) namesFor(kind model.LookupKind, writeupID int64) []string {
	byID := map[int64]string{}
	for _, l := range m.state.lookups[kind] {
		byID[l.ID] = l.Name
	}
	var names []string
	for _, a := range m.state.assocs[kind] {
		if a.WriteupID == writeupID {
			names = append(names, byID[a.LookupID])
		}
	}
	sort.Strings(names)
	return names
}

type memTx struct {
	store *memStore
	state memState
}

var errNotImplemented = errors.New("not implemented in memStore")

func (t *memTx) FindExistingLinks(ctx context.Context, links []string) (map[string]struct{}, error) {
	existing := map[string]struct{}{}
	for _, w := range t.state.writeups {
		for _, l := range links {
			if w.Link == l {
				existing[l] = struct{}{}
			}
		}
	}
	return existing, nil
}

func (t *memTx) Insert(ctx context.Context, w model.NewWriteup) (*model.Writeup, error) {
	if t.store.failInsertLink != "" && w.Link == t.store.failInsertLink {
		return nil, t.store.insertErr
	}
	for _, existing := range t.state.writeups {
		if existing.Link == w.Link {
			return nil, errors.New("duplicate link")
		}
	}
	t.state.nextID++
	now := time.Now()
	row := model.Writeup{
		ID: t.state.nextID, Title: w.Title, Link: w.Link,
		PublishedAt: w.PublishedAt, AddedAt: w.AddedAt, Bounty: w.Bounty,
		CreatedAt: now, UpdatedAt: now,
	}
	t.state.writeups = append(t.state.writeups, row)
	return &row, nil
}

func (t *memTx) List(ctx context.Context, filter repository.WriteupFilter) ([]model.Writeup, error) {
	return nil, errNotImplemented
}

func (t *memTx) Count(ctx context.Context, filter repository.WriteupFilter) (int, error) {
	return 0, errNotImplemented
}

func (t *memTx) ListByIDs(ctx context.Context, ids []int64) ([]model.Writeup, error) {
	return nil, errNotImplemented
}

func (t *memTx) DeleteAll(ctx context.Context) error {
	return errNotImplemented
}

type memLookups struct {
	tx *memTx
}

func (l *memLookups) FindByNames(ctx context.Context, kind model.LookupKind, names []string) ([]model.Lookup, error) {
	var found []model.Lookup
	for _, row := range l.tx.state.lookups[kind] {
		for _, n := range names {
			if row.Name == n {
				found = append(found, row)
			}
		}
	}
	return found, nil
}

func (l *memLookups) InsertNames(ctx context.Context, kind model.LookupKind, names []string) ([]model.Lookup, error) {
	var out []model.Lookup
	for _, n := range names {
		var existing *model.Lookup
		for i := range l.tx.state.lookups[kind] {
			if l.tx.state.lookups[kind][i].Name == n {
				existing = &l.tx.state.lookups[kind][i]
			}
		}
		if existing != nil {
			out = append(out, *existing)
			continue
		}
		l.tx.state.nextID++
		row := model.Lookup{ID: l.tx.state.nextID, Name: n}
		l.tx.state.lookups[kind] = append(l.tx.state.lookups[kind], row)
		out = append(out, row)
	}
	return out, nil
}

func (l *memLookups) InsertAssociations(ctx context.Context, kind model.LookupKind, assocs []model.WriteupAssociation) error {
	l.tx.state.assocs[kind] = append(l.tx.state.assocs[kind], assocs...)
	return nil
}

func (l *memLookups) WriteupIDsByNames(ctx context.Context, kind model.LookupKind, names []string) ([]int64, error) {
	return nil, errNotImplemented
}

func (l *memLookups) NamesByWriteupIDs(ctx context.Context, kind model.LookupKind, ids []int64) (map[int64][]string, error) {
	return nil, errNotImplemented
}

func (l *memLookups) List(ctx context.Context, kind model.LookupKind, search string, limit, offset int) ([]model.Lookup, error) {
	return nil, errNotImplemented
}

func (l *memLookups) Count(ctx context.Context, kind model.LookupKind, search string) (int, error) {
	return 0, errNotImplemented
}

func (l *memLookups) DeleteAllAssociations(ctx context.Context, kind model.LookupKind) error {
	return errNotImplemented
}

func (l *memLookups) DeleteAll(ctx context.Context, kind model.LookupKind) error {
	return errNotImplemented
}

var (
	_ repository.TxRunner          = (*memStore)(nil)
	_ repository.WriteupRepository = (*memTx)(nil)
	_ repository.LookupRepository  = (*memLookups)(nil)
)
