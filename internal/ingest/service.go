package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/writeuptracker/internal/metrics"
	"github.com/hitoshi/writeuptracker/internal/model"
	"github.com/hitoshi/writeuptracker/internal/repository"
)

// FeedFetcher は外部writeupフィードからレコード配列を取得するインターフェース。
type FeedFetcher interface {
	Fetch(ctx context.Context) ([]json.RawMessage, error)
}

// Service は検証 → 重複排除 → 一括登録の取り込みパイプラインを提供する。
// アップロードとフィード取得の両方がこのパイプラインを通る。
type Service struct {
	store     repository.TxRunner
	validator *Validator
	executor  *Executor
	fetcher   FeedFetcher
	metrics   metrics.MetricsCollector
	logger    *slog.Logger
}

// NewService はServiceを生成する。
// fetcherがnilの場合、SyncFeedは使用できない。collectorがnilの場合は記録しない。
func NewService(
	store repository.TxRunner,
	validator *Validator,
	executor *Executor,
	fetcher FeedFetcher,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
) *Service {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:     store,
		validator: validator,
		executor:  executor,
		fetcher:   fetcher,
		metrics:   collector,
		logger:    logger,
	}
}

// ImportJSON は手動アップロードされたJSONを取り込む。
// ボディはレコード配列、または data 配列を持つオブジェクト。
func (s *Service) ImportJSON(ctx context.Context, body []byte) (*model.IngestResult, error) {
	raws, err := DecodeBatch(body)
	if err != nil {
		return nil, model.NewInvalidPayloadError(err.Error())
	}
	return s.Ingest(ctx, metrics.SourceUpload, raws)
}

// SyncFeed は外部フィードを取得して取り込む。
// 取得に失敗した場合は何も登録せずにエラーを返す。
func (s *Service) SyncFeed(ctx context.Context) (*model.IngestResult, error) {
	if s.fetcher == nil {
		return nil, fmt.Errorf("feed fetcher is not configured")
	}

	raws, err := s.fetcher.Fetch(ctx)
	if err != nil {
		s.metrics.RecordIngestFailure(metrics.SourceFeed)
		return nil, err
	}
	return s.Ingest(ctx, metrics.SourceFeed, raws)
}

// Ingest はレコード配列を検証し、1つのトランザクション内で重複排除と一括登録を行う。
// 有効なレコードが1件も無い場合はNO_VALID_WRITEUPSエラーを返す。
// 一意制約違反（並行取り込み等）はINGEST_CONFLICTエラーとなり、バッチ全体がロールバックされる。
func (s *Service) Ingest(ctx context.Context, source string, raws []json.RawMessage) (*model.IngestResult, error) {
	start := time.Now()

	records, invalid := s.validator.ValidateBatch(raws)
	if len(records) == 0 {
		s.metrics.RecordIngestFailure(source)
		return nil, model.NewNoValidWriteupsError()
	}

	result := &model.IngestResult{
		Received: len(raws),
		Invalid:  invalid,
	}

	var executed *ExecuteResult
	err := s.store.InTx(ctx, func(repos repository.Repos) error {
		snapshot, err := loadSnapshot(ctx, repos, records)
		if err != nil {
			return err
		}

		res := Resolve(records, snapshot)
		result.Skipped = res.Skipped

		executed, err = s.executor.Execute(ctx, repos, res, snapshot)
		return err
	})
	if err != nil {
		s.metrics.RecordIngestFailure(source)
		if repository.IsUniqueViolation(err) {
			s.logger.Warn("writeup ingestion conflicted with concurrent writes",
				slog.String("source", source),
				slog.String("error", err.Error()),
			)
			return nil, model.NewIngestConflictError()
		}
		var apiErr *model.APIError
		if errors.As(err, &apiErr) {
			return nil, apiErr
		}
		return nil, fmt.Errorf("writeup ingestion failed: %w", err)
	}

	result.Inserted = executed.Inserted
	for kind, n := range executed.LookupsInserted {
		s.metrics.RecordLookupsInserted(string(kind), n)
	}
	s.metrics.RecordIngest(source, metrics.IngestStats{
		Received: result.Received,
		Invalid:  result.Invalid,
		Skipped:  result.Skipped,
		Inserted: result.Count(),
	})

	s.logger.Info("writeup ingestion completed",
		slog.String("source", source),
		slog.Int("received", result.Received),
		slog.Int("invalid", result.Invalid),
		slog.Int("skipped", result.Skipped),
		slog.Int("inserted", result.Count()),
		slog.Duration("duration", time.Since(start)),
	)

	return result, nil
}

// loadSnapshot はバッチに現れるリンクと名前に限って既存データを読み込む。
func loadSnapshot(ctx context.Context, repos repository.Repos, records []model.RawRecord) (Snapshot, error) {
	snapshot := NewSnapshot()
	links, names := SnapshotKeys(records)

	existingLinks, err := repos.Writeups.FindExistingLinks(ctx, links)
	if err != nil {
		return snapshot, err
	}
	snapshot.Links = existingLinks

	for _, kind := range model.LookupKinds() {
		existing, err := repos.Lookups.FindByNames(ctx, kind, names[kind])
		if err != nil {
			return snapshot, err
		}
		for _, l := range existing {
			snapshot.Names[kind][l.Name] = l.ID
		}
	}

	return snapshot, nil
}
