package ingest

import (
	"sort"
	"strings"

	"github.com/hitoshi/writeuptracker/internal/model"
)

// Snapshot は取り込み開始時点の既存データ。
// Linksは登録済みリンク、Namesは種別ごとの既存ルックアップ名からIDへの対応。
type Snapshot struct {
	Links map[string]struct{}
	Names map[model.LookupKind]map[string]int64
}

// NewSnapshot は空のSnapshotを生成する。
func NewSnapshot() Snapshot {
	s := Snapshot{
		Links: make(map[string]struct{}),
		Names: make(map[model.LookupKind]map[string]int64),
	}
	for _, kind := range model.LookupKinds() {
		s.Names[kind] = make(map[string]int64)
	}
	return s
}

// Resolution はResolveの結果。
type Resolution struct {
	// Kept は登録対象のレコード（入力順）。
	Kept []model.RawRecord
	// Skipped は既存リンクまたはバッチ内重複リンクのため除外した件数。
	Skipped int
	// NewNames は種別ごとの新規ルックアップ名（昇順）。
	NewNames map[model.LookupKind][]string
}

// Resolve はバッチを既存データと突き合わせ、登録対象レコードと新規ルックアップ名を求める。
// 書き込みは行わない。
//
// 先頭リンクが空でなく既存リンクに含まれるレコードは除外する。
// 同じバッチ内で先頭リンクが重複する場合は最初のレコードのみを残す。
// 残したレコードの著者・プログラム・バグのうち、欠損値でも既存名でもないものを新規名とする。
func Resolve(records []model.RawRecord, snapshot Snapshot) Resolution {
	res := Resolution{
		Kept:     make([]model.RawRecord, 0, len(records)),
		NewNames: make(map[model.LookupKind][]string, len(model.LookupKinds())),
	}

	seenLinks := make(map[string]struct{}, len(records))
	newNames := make(map[model.LookupKind]map[string]struct{}, len(model.LookupKinds()))
	for _, kind := range model.LookupKinds() {
		newNames[kind] = make(map[string]struct{})
	}

	for _, record := range records {
		link := strings.TrimSpace(record.PrimaryLink().Link)
		if link != "" {
			if _, exists := snapshot.Links[link]; exists {
				res.Skipped++
				continue
			}
			if _, dup := seenLinks[link]; dup {
				res.Skipped++
				continue
			}
			seenLinks[link] = struct{}{}
		}

		res.Kept = append(res.Kept, record)

		for _, kind := range model.LookupKinds() {
			existing := snapshot.Names[kind]
			for _, name := range cleanNames(namesOf(record, kind)) {
				if _, ok := existing[name]; ok {
					continue
				}
				newNames[kind][name] = struct{}{}
			}
		}
	}

	for kind, set := range newNames {
		names := make([]string, 0, len(set))
		for name := range set {
			names = append(names, name)
		}
		sort.Strings(names)
		res.NewNames[kind] = names
	}

	return res
}

// SnapshotKeys はバッチから既存データの照会に必要なリンクと名前を集める。
func SnapshotKeys(records []model.RawRecord) (links []string, names map[model.LookupKind][]string) {
	linkSet := make(map[string]struct{})
	nameSets := make(map[model.LookupKind]map[string]struct{})
	for _, kind := range model.LookupKinds() {
		nameSets[kind] = make(map[string]struct{})
	}

	for _, record := range records {
		if link := strings.TrimSpace(record.PrimaryLink().Link); link != "" {
			linkSet[link] = struct{}{}
		}
		for _, kind := range model.LookupKinds() {
			for _, name := range cleanNames(namesOf(record, kind)) {
				nameSets[kind][name] = struct{}{}
			}
		}
	}

	links = sortedKeys(linkSet)
	names = make(map[model.LookupKind][]string, len(nameSets))
	for kind, set := range nameSets {
		names[kind] = sortedKeys(set)
	}
	return links, names
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
