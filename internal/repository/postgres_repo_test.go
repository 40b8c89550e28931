package repository

import (
	"database/sql"
	"os"
	"testing"

	_ "github.com/lib/pq"

	"github.com/zebramusic/cloackroom-app-sub001/internal/database"
)

// setupPostgres はマイグレーション済みのテスト用データベースを返す。
// TEST_DATABASE_URL未設定または接続できない場合はスキップする。
func setupPostgres(t *testing.T) *sql.DB {
	t.Helper()

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL が未設定のためスキップ")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		t.Fatalf("データベースへの接続に失敗: %v", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		t.Skipf("テスト用データベースに接続できません（スキップ）: %v", err)
	}
	if err := database.RunMigrations(dbURL); err != nil {
		db.Close()
		t.Fatalf("マイグレーション実行に失敗: %v", err)
	}

	_, err = db.Exec(`TRUNCATE handovers, events, password_reset_tokens, sessions, staff, admins`)
	if err != nil {
		db.Close()
		t.Fatalf("テーブルの初期化に失敗: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

func TestPostgresRepositories(t *testing.T) {
	runRepositoryContract(t, func(t *testing.T) *Repositories {
		return NewPostgresRepositories(setupPostgres(t))
	})
}
