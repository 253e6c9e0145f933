// Package config はアプリケーション設定の読み込みと検証を提供する。
//
// 優先順位は 環境変数 > 設定ファイル > 既定値。
// 設定ファイルは TASKHUB_CONFIG で指定するか、configs/config.yaml があれば読み込む。
package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	// EnvProduction は本番環境を表すAPP_ENVの値。
	EnvProduction = "production"
	// DevJWTSecret は開発環境で使うJWT署名鍵。本番環境では使用できない。
	DevJWTSecret = "taskhub-development-secret-do-not-use-in-production"
	// MinJWTSecretLength は本番環境で要求するJWT署名鍵の最小バイト数。
	MinJWTSecretLength = 32

	// configPathEnv は設定ファイルのパスを指定する環境変数。
	configPathEnv = "TASKHUB_CONFIG"
	// defaultConfigPath は既定の設定ファイルのパス。存在しない場合は読み込まない。
	defaultConfigPath = "configs/config.yaml"
)

// ストアの種類。
const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
	DriverMemory = "memory"
)

// Config はアプリケーション全体の設定。
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	DB        DBConfig        `mapstructure:"db"`
	Redis     RedisConfig     `mapstructure:"redis"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	CORS      CORSConfig      `mapstructure:"cors"`
	HTTP      HTTPConfig      `mapstructure:"http"`
}

// AppConfig はプロセス全般の設定。
type AppConfig struct {
	// Env は実行環境（development / production）。
	Env string `mapstructure:"env"`
	// HTTPAddr はHTTPサーバーのリッスンアドレス。
	HTTPAddr string `mapstructure:"http_addr"`
	// LogLevel はログレベル（debug / info / warn / error）。
	LogLevel string `mapstructure:"log_level"`
	// LogFormat はログ形式（json / text）。
	LogFormat string `mapstructure:"log_format"`
	// ShutdownTimeout はグレースフルシャットダウンの待ち時間。
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// JWTConfig はトークンの設定。
type JWTConfig struct {
	// Secret はHS256の署名鍵。
	Secret string `mapstructure:"secret"`
	// TTL はトークンの有効期間。
	TTL time.Duration `mapstructure:"ttl"`
}

// DBConfig はストアの設定。
type DBConfig struct {
	// Driver はストアの種類（sqlite / mysql / memory）。
	Driver string `mapstructure:"driver"`
	// SQLitePath はSQLiteのファイルパス。":memory:" でインメモリ。
	SQLitePath string `mapstructure:"sqlite_path"`
	// MySQLDSN はMySQLのDSN。空の場合はHost等から組み立てる。
	MySQLDSN string `mapstructure:"mysql_dsn"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
}

// RedisConfig はRedisの設定。Addrが空の場合はレート制限を行わない。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
}

// RateLimitConfig は認証エンドポイントのレート制限の設定。
type RateLimitConfig struct {
	// AuthRate は1秒あたりに補充するトークン数。
	AuthRate float64 `mapstructure:"auth_rate"`
	// AuthBurst はバケットの最大トークン数。
	AuthBurst float64 `mapstructure:"auth_burst"`
}

// CORSConfig はCORSの設定。
type CORSConfig struct {
	// AllowedOrigins は許可するオリジン。"*" ですべて許可する。
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// HTTPConfig はHTTPサーバーの設定。
type HTTPConfig struct {
	// TrustedProxies はX-Forwarded-Forを信頼するプロキシのIPアドレスまたはCIDR。
	// 空の場合はどのプロキシも信頼せず、接続元アドレスをクライアントIPとする。
	TrustedProxies []string `mapstructure:"trusted_proxies"`
}

// envBindings は設定キーと環境変数の対応。
var envBindings = map[string]string{
	"app.env":               "APP_ENV",
	"app.http_addr":         "APP_HTTP_ADDR",
	"app.log_level":         "APP_LOG_LEVEL",
	"app.log_format":        "APP_LOG_FORMAT",
	"app.shutdown_timeout":  "APP_SHUTDOWN_TIMEOUT",
	"jwt.secret":            "JWT_SECRET",
	"jwt.ttl":               "JWT_TTL",
	"db.driver":             "DB_DRIVER",
	"db.sqlite_path":        "SQLITE_PATH",
	"db.mysql_dsn":          "MYSQL_DSN",
	"db.host":               "DB_HOST",
	"db.port":               "DB_PORT",
	"db.user":               "DB_USER",
	"db.password":           "DB_PASSWORD",
	"db.name":               "DB_NAME",
	"redis.addr":            "REDIS_ADDR",
	"redis.password":        "REDIS_PASSWORD",
	"rate_limit.auth_rate":  "AUTH_RATE_LIMIT",
	"rate_limit.auth_burst": "AUTH_RATE_BURST",
	"cors.allowed_origins":  "CORS_ALLOWED_ORIGINS",
	"http.trusted_proxies":  "TRUSTED_PROXIES",
}

// setDefaults は既定値を設定する。
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("app.http_addr", ":8080")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_format", "json")
	v.SetDefault("app.shutdown_timeout", 10*time.Second)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.ttl", 7*24*time.Hour)
	v.SetDefault("db.driver", DriverSQLite)
	v.SetDefault("db.sqlite_path", "data/taskhub.db")
	v.SetDefault("db.mysql_dsn", "")
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 3306)
	v.SetDefault("db.user", "taskhub")
	v.SetDefault("db.password", "")
	v.SetDefault("db.name", "taskhub")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("rate_limit.auth_rate", 1.0)
	v.SetDefault("rate_limit.auth_burst", 5.0)
	v.SetDefault("cors.allowed_origins", []string{})
	v.SetDefault("http.trusted_proxies", []string{})
}

// Load は設定を読み込む。pathが空の場合はTASKHUB_CONFIG、次に既定のパスを使う。
// 明示的に指定したファイルが存在しない場合はエラーを返す。
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	explicit := true
	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path == "" {
		path = defaultConfigPath
		explicit = false
	}

	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("設定ファイルの読み込みに失敗: %w", err)
		}
	} else if explicit {
		return nil, fmt.Errorf("設定ファイルが見つかりません: %s: %w", path, err)
	}

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("環境変数のバインドに失敗: %s: %w", env, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("設定の解析に失敗: %w", err)
	}
	cfg.CORS.AllowedOrigins = splitList(cfg.CORS.AllowedOrigins)
	cfg.HTTP.TrustedProxies = splitList(cfg.HTTP.TrustedProxies)
	cfg.DB.Driver = strings.ToLower(strings.TrimSpace(cfg.DB.Driver))
	return &cfg, nil
}

// splitList はカンマ区切りの指定を展開し、空要素を取り除く。
func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		for _, o := range strings.Split(s, ",") {
			if o = strings.TrimSpace(o); o != "" {
				out = append(out, o)
			}
		}
	}
	return out
}

// IsProduction は本番環境かどうかを返す。
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.App.Env, EnvProduction)
}

// UsesDevSecret は開発用の署名鍵を使うかどうかを返す。
func (c *Config) UsesDevSecret() bool {
	return c.JWT.Secret == "" || c.JWT.Secret == DevJWTSecret
}

// JWTSecret は署名に使う鍵を返す。未設定の場合は開発用の鍵を返す。
// 本番環境で未設定の場合はValidateが失敗するため、ここには到達しない。
func (c *Config) JWTSecret() []byte {
	if c.JWT.Secret == "" {
		return []byte(DevJWTSecret)
	}
	return []byte(c.JWT.Secret)
}

// Validate は起動前に設定の整合性を検証する。
func (c *Config) Validate() error {
	var errs []error

	if c.IsProduction() {
		switch {
		case c.UsesDevSecret():
			errs = append(errs, errors.New("本番環境ではJWT_SECRETの設定が必須です"))
		case len(c.JWT.Secret) < MinJWTSecretLength:
			errs = append(errs, fmt.Errorf("本番環境ではJWT_SECRETは%dバイト以上必要です", MinJWTSecretLength))
		}
	}
	if c.JWT.TTL <= 0 {
		errs = append(errs, errors.New("JWT_TTLは正の値である必要があります"))
	}

	switch c.DB.Driver {
	case DriverSQLite:
		if c.DB.SQLitePath == "" {
			errs = append(errs, errors.New("SQLITE_PATHが空です"))
		}
	case DriverMySQL:
	case DriverMemory:
		if c.IsProduction() {
			errs = append(errs, errors.New("本番環境ではDB_DRIVER=memoryは使用できません"))
		}
	default:
		errs = append(errs, fmt.Errorf("不明なDB_DRIVERです: %q", c.DB.Driver))
	}

	if c.RateLimit.AuthRate < 0 || c.RateLimit.AuthBurst < 0 {
		errs = append(errs, errors.New("レート制限の値は0以上である必要があります"))
	}
	for _, p := range c.HTTP.TrustedProxies {
		if !validProxy(p) {
			errs = append(errs, fmt.Errorf("TRUSTED_PROXIESに不正な値があります: %q", p))
		}
	}
	if c.App.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("APP_SHUTDOWN_TIMEOUTは正の値である必要があります"))
	}

	return errors.Join(errs...)
}

// validProxy はIPアドレスまたはCIDRとして解釈できるかを返す。
func validProxy(s string) bool {
	if _, err := netip.ParseAddr(s); err == nil {
		return true
	}
	_, err := netip.ParsePrefix(s)
	return err == nil
}
