package logger

import (
	"io"
	"log/slog"
	"os"
)

// level はSetupで生成したロガー共通の出力レベル。
// 設定読み込み前にロガーを使えるよう、初期値INFOで起動しSetLevelで変更する。
var level = new(slog.LevelVar)

// Setup はJSON構造化ログ出力のslog.Loggerを生成して返す。
// writerが指定された場合はそのwriterに出力する。
func Setup(w io.Writer) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	})
	return slog.New(handler)
}

// SetupDefault はJSON構造化ログ出力をグローバルロガーとして設定する。
// 本番ではos.Stdoutを渡すことを想定している。
func SetupDefault(w io.Writer) {
	if w == nil {
		w = os.Stdout
	}
	slog.SetDefault(Setup(w))
}

// SetLevel はSetupで生成した全ロガーの出力レベルを変更する。
func SetLevel(l slog.Level) {
	level.Set(l)
}
