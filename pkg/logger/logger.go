// Package logger はlog/slogによる構造化ロガーの生成を提供する。
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

const (
	// FormatJSON はJSON形式の出力。
	FormatJSON = "json"
	// FormatText はkey=value形式の出力。
	FormatText = "text"
)

// ParseLevel はログレベル名をslog.Levelに変換する。
// 不明な名前はInfoとして扱う。
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New は指定したレベルと形式で出力先wに書き込むロガーを生成する。
// wがnilの場合は標準出力を使う。
func New(w io.Writer, level, format string) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var h slog.Handler
	if strings.EqualFold(format, FormatText) {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}
	return slog.New(h).With(slog.String("service", "taskhub"))
}

// Discard は何も出力しないロガーを返す。テストで使用する。
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
