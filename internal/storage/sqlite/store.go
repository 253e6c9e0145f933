// Package sqlite はmodernc.org/sqliteによるストア実装を提供する。
//
// auth.CredentialStore と task.Repository を1つのデータベースで実装する。
// スキーマは migrations/ 以下のSQLファイルで管理し、Open時に適用する。
// 日時はUNIXナノ秒のINTEGERで保存する。
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nao1215/taskhub/pkg/migration"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

//go:embed migrations/*.sql
var migrations embed.FS

// memoryPath はインメモリデータベースを表すパス。
const memoryPath = ":memory:"

// Store はSQLiteによるストア実装。
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open はSQLiteデータベースを開き、マイグレーションを適用する。
// pathに ":memory:" を指定した場合は接続を1本に制限したインメモリデータベースを使う。
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}
	if path == memoryPath {
		// インメモリDBは接続ごとに別のデータベースになる
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("データベースへの疎通確認に失敗: %w", err)
	}

	if _, err := migration.Run(ctx, db, migrations, "migrations", logger); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("マイグレーションに失敗: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

// dsn はpragmaを付与した接続文字列を返す。
func dsn(path string) string {
	pragmas := "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	if path == memoryPath {
		return memoryPath + "?" + pragmas
	}
	return "file:" + path + "?" + pragmas + "&_pragma=journal_mode(WAL)"
}

// Ping はデータベースへの疎通を確認する。
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close はデータベース接続を閉じる。
func (s *Store) Close() error {
	return s.db.Close()
}

// isUniqueViolation は一意制約違反かどうかを返す。
func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
			sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// toNanos は日時をUNIXナノ秒に変換する。
func toNanos(t time.Time) int64 {
	return t.UTC().UnixNano()
}

// fromNanos はUNIXナノ秒をUTCの日時に変換する。
func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}
