package handler

import (
	"time"

	"github.com/hitoshi/writeuptracker/internal/model"
)

// --- レスポンス型 ---

// writeupResponse はwriteup1件のレスポンス。
type writeupResponse struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Link        string     `json:"link"`
	PublishedAt *time.Time `json:"published_at"`
	AddedAt     *time.Time `json:"added_at"`
	Bounty      *string    `json:"bounty"`
	Authors     []string   `json:"authors"`
	Programs    []string   `json:"programs"`
	Bugs        []string   `json:"bugs"`
	Note        *string    `json:"note"`
	IsRead      bool       `json:"is_read"`
}

// writeupPageResponse はwriteup一覧のレスポンス。
type writeupPageResponse struct {
	Items     []writeupResponse `json:"items"`
	Total     int               `json:"total"`
	PageCount int               `json:"page_count"`
}

// lookupResponse はルックアップ1件のレスポンス。
type lookupResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// lookupPageResponse はルックアップ一覧のレスポンス。
type lookupPageResponse struct {
	Items     []lookupResponse `json:"items"`
	Total     int              `json:"total"`
	PageCount int              `json:"page_count"`
}

// ingestResponse は取り込み結果のレスポンス。
type ingestResponse struct {
	Success  bool `json:"success"`
	Count    int  `json:"count"`
	Received int  `json:"received"`
	Invalid  int  `json:"invalid"`
	Skipped  int  `json:"skipped"`
}

// readStateResponse は既読トグル結果のレスポンス。
type readStateResponse struct {
	WriteupID int64 `json:"writeup_id"`
	IsRead    bool  `json:"is_read"`
}

// noteRequest はノート保存リクエストのボディ。
type noteRequest struct {
	Content *string `json:"content"`
}

// noteResponse はノートのレスポンス。
type noteResponse struct {
	ID        string    `json:"id"`
	WriteupID int64     `json:"writeup_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// statsResponse は集計値のレスポンス。
type statsResponse struct {
	TotalWriteups int `json:"total_writeups"`
	TotalReads    int `json:"total_reads"`
	TotalNotes    int `json:"total_notes"`
}

// userExistsResponse はユーザー存在確認のレスポンス。
type userExistsResponse struct {
	Exists bool `json:"exists"`
}

// userResponse はログイン中ユーザーのプロフィール。
type userResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{ID: u.ID, Email: u.Email, Name: u.Name, CreatedAt: u.CreatedAt}
}

func toWriteupResponse(w model.WriteupWithRelations) writeupResponse {
	return writeupResponse{
		ID:          w.ID,
		Title:       w.Title,
		Link:        w.Link,
		PublishedAt: w.PublishedAt,
		AddedAt:     w.AddedAt,
		Bounty:      w.Bounty,
		Authors:     nonNil(w.Authors),
		Programs:    nonNil(w.Programs),
		Bugs:        nonNil(w.Bugs),
		Note:        w.Note,
		IsRead:      w.IsRead,
	}
}

func toWriteupResponses(items []model.WriteupWithRelations) []writeupResponse {
	out := make([]writeupResponse, 0, len(items))
	for _, item := range items {
		out = append(out, toWriteupResponse(item))
	}
	return out
}

func toLookupPageResponse(page *model.Page[model.Lookup]) lookupPageResponse {
	items := make([]lookupResponse, 0, len(page.Items))
	for _, l := range page.Items {
		items = append(items, lookupResponse{ID: l.ID, Name: l.Name})
	}
	return lookupPageResponse{
		Items:     items,
		Total:     page.Total,
		PageCount: page.PageCount,
	}
}

func toNoteResponse(n *model.Note) noteResponse {
	return noteResponse{
		ID:        n.ID,
		WriteupID: n.WriteupID,
		Content:   n.Content,
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
	}
}

// nonNil はJSONで null ではなく [] を返すためにnilスライスを空スライスにする。
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
