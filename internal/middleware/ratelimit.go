package middleware

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/postflow/internal/model"
)

// RateLimiterConfig はレート制限の設定を保持する。
type RateLimiterConfig struct {
	GeneralRate     rate.Limit    // API全般のレート（req/sec）
	GeneralBurst    int           // API全般のバーストサイズ
	AutoFillRate    rate.Limit    // 自動予約・インポートのレート（req/sec）
	AutoFillBurst   int           // 自動予約・インポートのバーストサイズ
	CleanupInterval time.Duration // 期限切れエントリのクリーンアップ間隔
}

// PerMinuteConfig は1分あたりの回数からRateLimiterConfigを生成する。
// バーストは1分間の上限と同じにする。
func PerMinuteConfig(generalPerMin, autoFillPerMin int) RateLimiterConfig {
	return RateLimiterConfig{
		GeneralRate:     rate.Limit(float64(generalPerMin) / 60.0),
		GeneralBurst:    generalPerMin,
		AutoFillRate:    rate.Limit(float64(autoFillPerMin) / 60.0),
		AutoFillBurst:   autoFillPerMin,
		CleanupInterval: 5 * time.Minute,
	}
}

// DefaultRateLimiterConfig はデフォルトのレート制限設定を返す。
// API全般 120 req/min/user、自動予約 10 req/min/user。
func DefaultRateLimiterConfig() RateLimiterConfig {
	return PerMinuteConfig(120, 10)
}

// userLimiter はユーザーごとのレートリミッターとアクセス時刻を保持する。
type userLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// limiterPool は1種類のレート制限についてユーザーごとのリミッターを管理する。
type limiterPool struct {
	name  string
	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*userLimiter
}

func newLimiterPool(name string, limit rate.Limit, burst int) *limiterPool {
	return &limiterPool{
		name:     name,
		limit:    limit,
		burst:    burst,
		limiters: make(map[string]*userLimiter),
	}
}

// allow はユーザーのリミッターを取得（なければ作成）し、1トークン消費できるかを返す。
func (p *limiterPool) allow(userID string, now time.Time) bool {
	p.mu.Lock()
	ul, ok := p.limiters[userID]
	if !ok {
		ul = &userLimiter{limiter: rate.NewLimiter(p.limit, p.burst)}
		p.limiters[userID] = ul
	}
	ul.lastAccess = now
	p.mu.Unlock()

	return ul.limiter.AllowN(now, 1)
}

func (p *limiterPool) len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.limiters)
}

// evict は最終アクセスがttlより前のエントリを削除する。
func (p *limiterPool) evict(now time.Time, ttl time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for userID, ul := range p.limiters {
		if now.Sub(ul.lastAccess) > ttl {
			delete(p.limiters, userID)
		}
	}
}

// middleware はこのプールでレート制限するミドルウェアを返す。
// SessionMiddlewareの後に配置する。
func (p *limiterPool) middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := UserIDFromContext(r.Context())
			if err != nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			if !p.allow(userID, time.Now()) {
				writeRateLimitResponse(w, p.limit)
				slog.Warn("rate limit exceeded",
					slog.String("user_id", userID),
					slog.String("limit_type", p.name),
				)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RateLimiter はユーザーごとのレート制限を管理する。
// API全般と、自動予約・インポートのような重い操作向けの2種類を独立に提供する。
type RateLimiter struct {
	config   RateLimiterConfig
	general  *limiterPool
	autoFill *limiterPool
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter は新しいRateLimiterを生成する。
// バックグラウンドで期限切れエントリのクリーンアップを開始する。
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	rl := &RateLimiter{
		config:   config,
		general:  newLimiterPool("general", config.GeneralRate, config.GeneralBurst),
		autoFill: newLimiterPool("auto_fill", config.AutoFillRate, config.AutoFillBurst),
		stopCh:   make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。複数回呼んでもよい。
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

// GeneralMiddleware はAPI全般のレート制限ミドルウェアを返す。
func (rl *RateLimiter) GeneralMiddleware() func(next http.Handler) http.Handler {
	return rl.general.middleware()
}

// AutoFillMiddleware は自動予約・プレビュー・インポート専用のレート制限ミドルウェアを返す。
// API全般のレート制限とは独立に動作する。
func (rl *RateLimiter) AutoFillMiddleware() func(next http.Handler) http.Handler {
	return rl.autoFill.middleware()
}

// GeneralLimiterCount は現在管理されているAPI全般リミッターのエントリ数を返す。
func (rl *RateLimiter) GeneralLimiterCount() int {
	return rl.general.len()
}

// AutoFillLimiterCount は現在管理されている自動予約リミッターのエントリ数を返す。
func (rl *RateLimiter) AutoFillLimiterCount() int {
	return rl.autoFill.len()
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup は最終アクセス時刻がCleanupIntervalの2倍を超えたエントリを削除する。
func (rl *RateLimiter) cleanup() {
	now := time.Now()
	ttl := rl.config.CleanupInterval * 2
	rl.general.evict(now, ttl)
	rl.autoFill.evict(now, ttl)
}

// writeRateLimitResponse は429 Too Many Requestsレスポンスを書き込む。
// Retry-Afterヘッダーにはトークンが補充されるまでの推定秒数を設定する。
func writeRateLimitResponse(w http.ResponseWriter, r rate.Limit) {
	retryAfterSec := 1
	if r > 0 {
		retryAfterSec = int(math.Ceil(1.0 / float64(r)))
	}
	if retryAfterSec < 1 {
		retryAfterSec = 1
	}

	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSec))
	WriteErrorResponse(w, http.StatusTooManyRequests, &model.APIError{
		Code:     "RATE_LIMIT_EXCEEDED",
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}
