package database

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// PoolConfig はコネクションプールの設定。
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DefaultPoolConfig はAPIサーバー・ワーカー共通のプール設定を返す。
// ワーカーの並列数（AUTOFILL_MAX_CONCURRENT）に余裕を持たせた値にしている。
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxOpenConns:    20,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
	}
}

// Open はPostgreSQLの接続プールをデフォルト設定で開く。
// sql.Openは接続を試行しないため、実際の接続確認にはdb.Ping()を使用すること。
func Open(databaseURL string) (*sql.DB, error) {
	return OpenWithPool(databaseURL, DefaultPoolConfig())
}

// OpenWithPool はプール設定を指定してPostgreSQLの接続プールを開く。
// 0以下の値はdatabase/sqlの既定値のままにする。
func OpenWithPool(databaseURL string, pool PoolConfig) (*sql.DB, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("failed to open database: empty url")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if pool.MaxOpenConns > 0 {
		db.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		db.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}
	return db, nil
}
