// Package ingest は外部writeupレコードの検証・重複排除・一括登録パイプラインを提供する。
package ingest

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/hitoshi/writeuptracker/internal/model"
)

//go:embed writeup_record.schema.json
var writeupRecordSchemaJSON string

var (
	compileOnce       sync.Once
	compiledSchema    *jsonschema.Schema
	compiledSchemaErr error
)

// ErrNoRecords はペイロードにレコード配列が含まれないことを示す。
var ErrNoRecords = errors.New("payload does not contain a writeup array")

// Validator は外部レコード1件の構造検証と正規化を行う。
// タイトルはタグやエンティティを含めて受信したまま保持し、前後の空白のみ除去する。
// エスケープは表示側の責務とする。
type Validator struct {
	logger *slog.Logger
}

// NewValidator はValidatorを生成する。loggerがnilの場合はslog.Default()を使用する。
func NewValidator(logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{logger: logger}
}

// wireRecord は欠損フィールドと空文字列を区別するためのデコード先。
type wireRecord struct {
	Links           []model.RawLink `json:"Links"`
	Authors         []string        `json:"Authors"`
	Programs        []string        `json:"Programs"`
	Bugs            []string        `json:"Bugs"`
	Bounty          *string         `json:"Bounty"`
	PublicationDate *string         `json:"PublicationDate"`
	AddedDate       *string         `json:"AddedDate"`
}

// Validate はレコード1件をスキーマ検証し、デフォルト値を補った正規化済みレコードを返す。
// 配列フィールドは空配列、文字列フィールドは "-" がデフォルトになる。
func (v *Validator) Validate(raw json.RawMessage) (*model.RawRecord, error) {
	value, err := decodeStrictJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("decode record JSON: %w", err)
	}

	schema, err := loadSchema()
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}

	if err := schema.Validate(value); err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	var wire wireRecord
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("unmarshal record: %w", err)
	}

	return v.normalize(wire), nil
}

// ValidateBatch はレコードを1件ずつ検証し、有効なものだけを返す。
// 不正なレコードはログに記録して除外し、バッチ全体は中断しない。
func (v *Validator) ValidateBatch(raws []json.RawMessage) ([]model.RawRecord, int) {
	records := make([]model.RawRecord, 0, len(raws))
	invalid := 0

	for i, raw := range raws {
		record, err := v.Validate(raw)
		if err != nil {
			invalid++
			v.logger.Warn("invalid writeup record dropped",
				slog.Int("index", i),
				slog.String("error", err.Error()),
			)
			continue
		}
		records = append(records, *record)
	}

	return records, invalid
}

func (v *Validator) normalize(wire wireRecord) *model.RawRecord {
	record := &model.RawRecord{
		Links:           make([]model.RawLink, 0, len(wire.Links)),
		Authors:         nonNil(wire.Authors),
		Programs:        nonNil(wire.Programs),
		Bugs:            nonNil(wire.Bugs),
		Bounty:          stringOrAbsent(wire.Bounty),
		PublicationDate: stringOrAbsent(wire.PublicationDate),
		AddedDate:       stringOrAbsent(wire.AddedDate),
	}

	for _, l := range wire.Links {
		record.Links = append(record.Links, model.RawLink{
			Title: strings.TrimSpace(l.Title),
			Link:  strings.TrimSpace(l.Link),
		})
	}

	return record
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func stringOrAbsent(s *string) string {
	if s == nil {
		return model.AbsentValue
	}
	return *s
}

// DecodeBatch はアップロードされたJSONをレコード配列に分解する。
// レコードの配列、または data 配列を持つオブジェクト（フィードと同じ形式）を受け付ける。
func DecodeBatch(body []byte) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("payload is empty")
	}

	switch trimmed[0] {
	case '[':
		var records []json.RawMessage
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, fmt.Errorf("decode writeup array: %w", err)
		}
		return records, nil
	case '{':
		var doc struct {
			Data *[]json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return nil, fmt.Errorf("decode writeup document: %w", err)
		}
		if doc.Data == nil {
			return nil, ErrNoRecords
		}
		return *doc.Data, nil
	default:
		return nil, ErrNoRecords
	}
}

func loadSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020

		if err := compiler.AddResource("writeup_record.schema.json", strings.NewReader(writeupRecordSchemaJSON)); err != nil {
			compiledSchemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}

		schema, err := compiler.Compile("writeup_record.schema.json")
		if err != nil {
			compiledSchemaErr = fmt.Errorf("compile schema: %w", err)
			return
		}

		compiledSchema = schema
	})

	if compiledSchemaErr != nil {
		return nil, compiledSchemaErr
	}
	if compiledSchema == nil {
		return nil, fmt.Errorf("schema not initialized")
	}
	return compiledSchema, nil
}

func decodeStrictJSON(raw []byte) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("record is empty")
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}

	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("record contains trailing content")
	}

	return value, nil
}
