// Package source はブランドのブログフィードを検出し、記事を未予約の投稿としてインポートする。
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hitoshi/postflow/internal/model"
	"github.com/hitoshi/postflow/internal/security"
)

// URLGuard はSSRF検証のインターフェース。
// security.SSRFGuardを抽象化してテストで差し替えられるようにする。
type URLGuard interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client
}

const userAgent = "Postflow/1.0 (+feed import)"

// fetchConfig はHTTP取得の上限値。
type fetchConfig struct {
	timeout     time.Duration
	maxBodySize int64
}

// page は取得したレスポンスのうち判定に必要な部分。
type page struct {
	contentType string
	body        []byte
}

// fetchPage はSSRF検証を行ったうえでURLを取得する。
// 失敗はすべて*model.APIErrorで返す。
func fetchPage(ctx context.Context, guard URLGuard, cfg fetchConfig, rawURL, accept string) (*page, error) {
	if rawURL == "" {
		return nil, model.NewInvalidURLError("URLが入力されていません")
	}
	if err := guard.ValidateURL(rawURL); err != nil {
		if errors.Is(err, security.ErrInvalidURL) {
			return nil, model.NewInvalidURLError(rawURL)
		}
		return nil, model.NewSSRFBlockedError()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, model.NewInvalidURLError(err.Error())
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", accept)

	resp, err := guard.NewSafeClient(cfg.timeout, cfg.maxBodySize).Do(req)
	if err != nil {
		return nil, model.NewFetchFailedError(err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, model.NewFetchFailedError(fmt.Sprintf("HTTPステータス %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, cfg.maxBodySize))
	if err != nil {
		return nil, model.NewFetchFailedError(fmt.Sprintf("レスポンスの読み取りに失敗: %v", err))
	}
	return &page{contentType: resp.Header.Get("Content-Type"), body: body}, nil
}
