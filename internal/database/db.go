package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// ErrNoDatabaseURL はDATABASE_URLが未設定のままPostgreSQLを開こうとした場合に返る。
// 未設定時はインメモリリポジトリを使う構成のため、ここに到達するのは呼び出し側の誤り。
var ErrNoDatabaseURL = errors.New("DATABASE_URL is not set")

// コネクションプールの設定。serveとworkerが同じDBを共有するため控えめにする。
const (
	maxOpenConns    = 10
	maxIdleConns    = 5
	connMaxLifetime = 30 * time.Minute
	pingTimeout     = 5 * time.Second
)

// Open はlib/pqでPostgreSQLの接続プールを用意する。接続の確認は行わない。
func Open(databaseURL string) (*sql.DB, error) {
	if databaseURL == "" {
		return nil, ErrNoDatabaseURL
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)
	return db, nil
}

// Connect は接続プールを用意し、pingTimeout以内に疎通できることを確認する。
// 疎通できない場合はプールを閉じてエラーを返す。
func Connect(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := Open(databaseURL)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}
