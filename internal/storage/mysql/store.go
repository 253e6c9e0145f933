// Package mysql はGORMとMySQLによるストア実装を提供する。
//
// auth.CredentialStore と task.Repository を実装する。
// スキーマはOpen時にAutoMigrateで作成する。日時はUNIXナノ秒のBIGINTで保存し、
// SQLite実装と同じ並び順と更新日時の前進を保証する。
package mysql

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// ConnParams はDSNを組み立てるための接続情報。
type ConnParams struct {
	// Host はホスト名。
	Host string
	// Port はポート番号。
	Port int
	// User はユーザー名。
	User string
	// Password はパスワード。
	Password string
	// Name はデータベース名。
	Name string
}

// FormatDSN は接続情報からgo-sql-driver/mysql形式のDSNを組み立てる。
func FormatDSN(p ConnParams) string {
	cfg := mysqldriver.NewConfig()
	cfg.User = p.User
	cfg.Passwd = p.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
	cfg.DBName = p.Name
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.Params = map[string]string{"charset": "utf8mb4"}
	return cfg.FormatDSN()
}

// Store はMySQLによるストア実装。
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

// Open はMySQLに接続し、スキーマを作成する。
func Open(ctx context.Context, dsn string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if _, err := mysqldriver.ParseDSN(dsn); err != nil {
		return nil, fmt.Errorf("DSNの解析に失敗: %w", err)
	}

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}

	if err := db.WithContext(ctx).AutoMigrate(&userModel{}, &taskModel{}); err != nil {
		return nil, fmt.Errorf("マイグレーションに失敗: %w", err)
	}
	logger.Info("MySQLのスキーマを確認しました")

	return &Store{db: db, logger: logger}, nil
}

// Ping はデータベースへの疎通を確認する。
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close はデータベース接続を閉じる。
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// isDuplicate は一意制約違反かどうかを返す。
func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var mysqlErr *mysqldriver.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == 1062
}
