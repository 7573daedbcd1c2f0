package model

// AbsentValue は外部フィードで「値なし」を意味するリテラル。
const AbsentValue = "-"

// RawLink は外部フィードレコードのリンク要素。
type RawLink struct {
	Title string `json:"Title"`
	Link  string `json:"Link"`
}

// RawRecord は外部フィード（pentester.land）のwriteupレコード1件を表す。
// どのフィールドも "-" で欠損を示す場合がある。
type RawRecord struct {
	Links           []RawLink `json:"Links"`
	Authors         []string  `json:"Authors"`
	Programs        []string  `json:"Programs"`
	Bugs            []string  `json:"Bugs"`
	Bounty          string    `json:"Bounty"`
	PublicationDate string    `json:"PublicationDate"`
	AddedDate       string    `json:"AddedDate"`
}

// PrimaryLink は先頭リンク（フィード上の実リンク）を返す。
// リンクが無い場合はゼロ値を返す。
func (r RawRecord) PrimaryLink() RawLink {
	if len(r.Links) == 0 {
		return RawLink{}
	}
	return r.Links[0]
}

// IngestResult は取り込み1回の結果を表す。
type IngestResult struct {
	Received int // 受信したレコード数
	Invalid  int // 検証で除外したレコード数
	Skipped  int // 既存リンクのため除外したレコード数
	Inserted []Writeup
}

// Count は新規作成されたwriteup数を返す。
func (r *IngestResult) Count() int {
	if r == nil {
		return 0
	}
	return len(r.Inserted)
}
