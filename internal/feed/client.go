// Package feed は外部writeupフィード（pentester.land形式のJSON）の取得を提供する。
package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/writeuptracker/internal/metrics"
	"github.com/hitoshi/writeuptracker/internal/model"
	"github.com/hitoshi/writeuptracker/internal/security"
)

const (
	// DefaultURL は既定のwriteupフィード。
	DefaultURL = "https://pentester.land/writeups.json"
	// DefaultTimeout はフィード取得のタイムアウト既定値。
	DefaultTimeout = 30 * time.Second
	// DefaultMaxBodySize はレスポンスボディの最大サイズ既定値（64MiB）。
	DefaultMaxBodySize int64 = 64 << 20

	userAgent = "writeuptracker/1.0"
)

// 取得失敗の理由（メトリクスのラベル値）
const (
	ReasonSSRF        = "ssrf"
	ReasonRequest     = "request"
	ReasonHTTPStatus  = "http_status"
	ReasonRead        = "read"
	ReasonTooLarge    = "too_large"
	ReasonEmpty       = "empty"
	ReasonDecode      = "decode"
	ReasonMissingData = "missing_data"
)

// SSRFValidator はSSRF検証のインターフェース。
type SSRFValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration) *http.Client
}

// Options はClientの設定。ゼロ値の項目には既定値を使う。
type Options struct {
	URL         string
	Timeout     time.Duration
	MaxBodySize int64
}

// Client はwriteupフィードを取得し、レコード配列に分解する。
type Client struct {
	url         string
	timeout     time.Duration
	maxBodySize int64
	guard       SSRFValidator
	httpClient  *http.Client
	metrics     metrics.MetricsCollector
	logger      *slog.Logger
}

// NewClient はClientを生成する。HTTPクライアントはguardのSSRF防止クライアントを使う。
func NewClient(opts Options, guard SSRFValidator, collector metrics.MetricsCollector, logger *slog.Logger) *Client {
	if opts.URL == "" {
		opts.URL = DefaultURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxBodySize <= 0 {
		opts.MaxBodySize = DefaultMaxBodySize
	}
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		url:         opts.URL,
		timeout:     opts.Timeout,
		maxBodySize: opts.MaxBodySize,
		guard:       guard,
		httpClient:  guard.NewSafeClient(opts.Timeout),
		metrics:     collector,
		logger:      logger,
	}
}

// WithHTTPClient はHTTPクライアントを差し替えたClientを返す。
// URLの事前検証は引き続き行う。
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	clone := *c
	clone.httpClient = hc
	return &clone
}

// URL は取得先のURLを返す。
func (c *Client) URL() string {
	return c.url
}

// Fetch はフィードを取得し、data配列の各要素を返す。
// 失敗時は何も返さず、原因ごとにFEED_FETCH_FAILED（SSRF違反はSSRF_BLOCKED、URL不正はINVALID_URL）を返す。
func (c *Client) Fetch(ctx context.Context) ([]json.RawMessage, error) {
	start := time.Now()

	if err := c.guard.ValidateURL(c.url); err != nil {
		c.fail(ReasonSSRF, err)
		if errors.Is(err, security.ErrBlockedDestination) {
			return nil, model.NewSSRFBlockedError()
		}
		return nil, model.NewInvalidURLError(err.Error())
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		c.fail(ReasonRequest, err)
		return nil, model.NewInvalidURLError(err.Error())
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.fail(ReasonRequest, err)
		return nil, model.NewFeedFetchFailedError("ネットワークエラーまたはタイムアウト")
	}
	defer resp.Body.Close()

	c.metrics.RecordFeedHTTPStatus(resp.StatusCode)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.fail(ReasonHTTPStatus, fmt.Errorf("unexpected status %d", resp.StatusCode))
		return nil, model.NewFeedFetchFailedError(fmt.Sprintf("HTTPステータス %d", resp.StatusCode))
	}

	// 上限+1バイトまで読み、上限超過を検出する
	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodySize+1))
	if err != nil {
		c.fail(ReasonRead, err)
		return nil, model.NewFeedFetchFailedError("レスポンスの読み取りに失敗しました")
	}
	if int64(len(body)) > c.maxBodySize {
		c.fail(ReasonTooLarge, fmt.Errorf("body exceeds %d bytes", c.maxBodySize))
		return nil, model.NewFeedFetchFailedError("レスポンスが大きすぎます")
	}

	records, reason, err := decodeFeed(body)
	if err != nil {
		c.fail(reason, err)
		return nil, model.NewFeedFetchFailedError(err.Error())
	}

	duration := time.Since(start)
	c.metrics.RecordFeedFetchSuccess()
	c.metrics.RecordFeedFetchLatency(duration)
	c.logger.Info("writeup feed fetched",
		slog.String("url", c.url),
		slog.Int("records", len(records)),
		slog.Int("bytes", len(body)),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return records, nil
}

// decodeFeed はフィード本文を {data: [...]} として分解する。
// 失敗時はメトリクス用の理由を併せて返す。
func decodeFeed(body []byte) ([]json.RawMessage, string, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, ReasonEmpty, errors.New("レスポンスが空です")
	}

	var doc struct {
		Data *[]json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, ReasonDecode, errors.New("JSONの形式が不正です")
	}
	if doc.Data == nil {
		return nil, ReasonMissingData, errors.New("data配列がありません")
	}
	return *doc.Data, "", nil
}

func (c *Client) fail(reason string, err error) {
	c.metrics.RecordFeedFetchFailure(reason)
	c.logger.Error("writeup feed fetch failed",
		slog.String("url", c.url),
		slog.String("reason", reason),
		slog.String("error", err.Error()),
	)
}
