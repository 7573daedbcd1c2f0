package ingest

import (
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/shopspring/decimal"

	"github.com/hitoshi/writeuptracker/internal/model"
)

// bountyNoise は報奨金文字列から除去する文字（数字・"."・"-" 以外）。
var bountyNoise = regexp.MustCompile(`[^0-9.\-]+`)

// isAbsent は外部フィードの値が「値なし」かを判定する。
func isAbsent(s string) bool {
	trimmed := strings.TrimSpace(s)
	return trimmed == "" || trimmed == model.AbsentValue
}

// ParseBounty は報奨金文字列を数値文字列に変換する。
// 数字・"."・"-" 以外を除去し、結果が有限の10進数として解釈できる場合のみ返す。
// 元の値が "-"、除去後が空、数値として不正、または0の場合はnilを返す。
//
//	"$500"          -> "500"
//	"$1,500"        -> "1500"
//	"$1,500-$3,000" -> nil ("1500-3000" は数値ではない)
//	"$0"            -> nil
func ParseBounty(raw string) *string {
	if isAbsent(raw) {
		return nil
	}

	cleaned := bountyNoise.ReplaceAllString(raw, "")
	if cleaned == "" {
		return nil
	}

	amount, err := decimal.NewFromString(cleaned)
	if err != nil || amount.IsZero() {
		return nil
	}
	return &cleaned
}

// ParseDate は日付文字列をUTCの時刻に変換する。
// "-" または空の場合、および解釈できない場合はnilを返す。
func ParseDate(raw string) *time.Time {
	if isAbsent(raw) {
		return nil
	}

	t, err := dateparse.ParseIn(strings.TrimSpace(raw), time.UTC)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}

// cleanNames は名前リストから欠損値を除き、前後の空白を除去して重複を取り除く。
// 出現順は維持する。
func cleanNames(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	cleaned := make([]string, 0, len(names))
	for _, name := range names {
		if isAbsent(name) {
			continue
		}
		name = strings.TrimSpace(name)
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		cleaned = append(cleaned, name)
	}
	return cleaned
}

// namesOf はレコードから種別に対応する名前リストを取り出す。
func namesOf(record model.RawRecord, kind model.LookupKind) []string {
	switch kind {
	case model.LookupAuthor:
		return record.Authors
	case model.LookupProgram:
		return record.Programs
	case model.LookupBug:
		return record.Bugs
	}
	return nil
}
