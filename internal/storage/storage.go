// Package storage は設定に応じてストアの実装を選択する。
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/nao1215/taskhub/internal/auth"
	"github.com/nao1215/taskhub/internal/config"
	"github.com/nao1215/taskhub/internal/storage/memory"
	"github.com/nao1215/taskhub/internal/storage/mysql"
	"github.com/nao1215/taskhub/internal/storage/sqlite"
	"github.com/nao1215/taskhub/internal/task"
)

// Store はプリンシパルとタスクを永続化するストア。
type Store interface {
	auth.CredentialStore
	task.Repository
	// Ping は接続を確認する。ヘルスチェックで使う。
	Ping(ctx context.Context) error
	Close() error
}

var (
	_ Store = (*memory.Store)(nil)
	_ Store = (*sqlite.Store)(nil)
	_ Store = (*mysql.Store)(nil)
)

// Open はcfg.DB.Driverに応じたストアを開く。
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Store, error) {
	switch cfg.DB.Driver {
	case config.DriverSQLite:
		if err := ensureDir(cfg.DB.SQLitePath); err != nil {
			return nil, err
		}
		s, err := sqlite.Open(ctx, cfg.DB.SQLitePath, logger)
		if err != nil {
			return nil, fmt.Errorf("SQLiteストアのオープンに失敗: %w", err)
		}
		return s, nil
	case config.DriverMySQL:
		s, err := mysql.Open(ctx, mysqlDSN(cfg.DB), logger)
		if err != nil {
			return nil, fmt.Errorf("MySQLストアのオープンに失敗: %w", err)
		}
		return s, nil
	case config.DriverMemory:
		return memory.NewStore(), nil
	default:
		return nil, fmt.Errorf("不明なストアです: %q", cfg.DB.Driver)
	}
}

// mysqlDSN はMySQLの接続文字列を返す。MySQLDSNが空の場合はHost等から組み立てる。
func mysqlDSN(db config.DBConfig) string {
	if db.MySQLDSN != "" {
		return db.MySQLDSN
	}
	return mysql.FormatDSN(mysql.ConnParams{
		Host:     db.Host,
		Port:     db.Port,
		User:     db.User,
		Password: db.Password,
		Name:     db.Name,
	})
}

// ensureDir はSQLiteのファイルを置くディレクトリを作成する。
func ensureDir(path string) error {
	if path == ":memory:" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("データディレクトリの作成に失敗: %w", err)
	}
	return nil
}
